/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package history keeps a local ledger of past render runs in an embedded
// SQLite database, so earlier runs stay inspectable after their run
// directories are cleaned up.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "gotikzanim/internal/log"
	"gotikzanim/internal/render"
	"gotikzanim/internal/version"
	"log/slog"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// LedgerDirName stores all per-workspace ephemeral data under the
	// workspace root.
	LedgerDirName  = ".gta"
	LedgerFileName = "history.sqlite"

	// schemaVersion tracks the local SQLite schema for the ledger.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// LedgerPath returns the full path to the workspace's ledger database file.
func LedgerPath(root string) string {
	return filepath.Join(root, LedgerDirName, LedgerFileName)
}

// Ledger is an open run-history database.
type Ledger struct {
	db *sql.DB
}

// Open ensures the ledger exists at .gta/history.sqlite under root, opens
// it, enables WAL mode, and brings the schema up to date.
func Open(root string) (*Ledger, error) {
	l := applog.WithOperation(applog.WithComponent("history"), "open").With(
		slog.String("root", root),
	)
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, LedgerDirName), 0o755); err != nil {
		l.Error("create .gta dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .gta dir: %w", err)
	}

	path := LedgerPath(root)
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	uriPath := filepath.ToSlash(path)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Set reasonable connection pool limits for embedded usage.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	// Cascade deletes from runs to run_frames depend on this.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		_ = db.Close()
		l.Error("enable foreign_keys failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureLedgerSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure ledger schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("ledger ready", slog.String("path", path))
	return &Ledger{db: db}, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	// Seed or update single-row version info
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Update app and timestamp only; keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureLedgerSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id             INTEGER PRIMARY KEY,
			started_at     TEXT    NOT NULL,
			finished_at    TEXT    NOT NULL,
			template       TEXT    NOT NULL,
			out_dir        TEXT    NOT NULL,
			artifact       TEXT,
			artifact_bytes INTEGER NOT NULL DEFAULT 0,
			frames         INTEGER NOT NULL,
			fps            INTEGER NOT NULL,
			speed          REAL    NOT NULL,
			density        INTEGER NOT NULL,
			scale          REAL    NOT NULL,
			succeeded      INTEGER NOT NULL,
			app            TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,

		`CREATE TABLE IF NOT EXISTS run_frames (
			run_id      INTEGER NOT NULL,
			frame_index INTEGER NOT NULL,
			ok          INTEGER NOT NULL,
			pages       INTEGER,
			duration_ms INTEGER NOT NULL,
			error       TEXT,
			PRIMARY KEY(run_id, frame_index),
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade; just continue
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// Template lookups for `history --template` filtering
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			if _, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_runs_template ON runs(template);`); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
		default:
			// Unknown future step; nothing to do
		}
		cur = next
	}
	return nil
}

// RecordRun inserts one finished run with its per-frame outcomes and
// returns the new run id.
func (l *Ledger) RecordRun(ctx context.Context, m render.Manifest) (int64, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, finished_at, template, out_dir, artifact, artifact_bytes,
			frames, fps, speed, density, scale, succeeded, app)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Started.UTC().Format(time.RFC3339),
		m.Finished.UTC().Format(time.RFC3339),
		m.Template, m.OutDir, m.Artifact, m.ArtifactBytes,
		m.Frames, m.FPS, m.Speed, m.Density, m.Scale, m.Succeeded,
		version.String(),
	)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("run id: %w", err)
	}

	ins, err := tx.PrepareContext(ctx,
		`INSERT INTO run_frames(run_id, frame_index, ok, pages, duration_ms, error) VALUES(?,?,?,?,?,?);`)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, fo := range m.FrameOutcomes {
		ok := 0
		if fo.OK {
			ok = 1
		}
		pages := sql.NullInt64{}
		if fo.Pages > 0 {
			pages = sql.NullInt64{Int64: int64(fo.Pages), Valid: true}
		}
		errText := sql.NullString{}
		if fo.Error != "" {
			errText = sql.NullString{String: fo.Error, Valid: true}
		}
		if _, err := ins.ExecContext(ctx, runID, fo.Index, ok, pages, fo.DurationMs, errText); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert frame outcome: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID            int64
	Started       time.Time
	Finished      time.Time
	Template      string
	OutDir        string
	Artifact      string
	ArtifactBytes int64
	Frames        int
	FPS           int
	Succeeded     int
}

// Runs lists the most recent runs, newest first. A non-empty template
// filters by template path; limit <= 0 means a default page of 20.
func (l *Ledger) Runs(ctx context.Context, template string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT id, started_at, finished_at, template, out_dir,
			COALESCE(artifact, ''), artifact_bytes, frames, fps, succeeded
		  FROM runs`
	args := []any{}
	if template != "" {
		q += ` WHERE template = ?`
		args = append(args, template)
	}
	q += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Template, &r.OutDir,
			&r.Artifact, &r.ArtifactBytes, &r.Frames, &r.FPS, &r.Succeeded); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339, started); perr == nil {
			r.Started = t
		}
		if t, perr := time.Parse(time.RFC3339, finished); perr == nil {
			r.Finished = t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// FrameRecord is one per-frame outcome row of a recorded run.
type FrameRecord struct {
	Index      int
	OK         bool
	Pages      int
	DurationMs int64
	Error      string
}

// Frames returns the per-frame outcomes of one run in index order.
func (l *Ledger) Frames(ctx context.Context, runID int64) ([]FrameRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT frame_index, ok, COALESCE(pages, 0), duration_ms, COALESCE(error, '')
		 FROM run_frames WHERE run_id = ? ORDER BY frame_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var out []FrameRecord
	for rows.Next() {
		var fr FrameRecord
		var ok int
		if err := rows.Scan(&fr.Index, &ok, &fr.Pages, &fr.DurationMs, &fr.Error); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		fr.OK = ok != 0
		out = append(out, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frames: %w", err)
	}
	return out, nil
}

// Prune removes all but the newest keep runs and returns how many were
// deleted. Frame outcomes go with their runs via the cascade.
func (l *Ledger) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune count: %w", err)
	}
	return n, nil
}
