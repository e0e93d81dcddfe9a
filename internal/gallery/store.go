/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package gallery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a run id does not exist in the gallery.
var ErrNotFound = errors.New("run not found")

// RunEntry is the listing projection of a published run.
type RunEntry struct {
	ID            int64     `json:"id"`
	Template      string    `json:"template"`
	Frames        int       `json:"frames"`
	FPS           int       `json:"fps"`
	Succeeded     int       `json:"succeeded"`
	ArtifactName  string    `json:"artifact_name"`
	ArtifactBytes int64     `json:"artifact_bytes"`
	PublishedAt   time.Time `json:"published_at"`
}

// RunUpload carries everything the server persists for one published run.
// Manifest may be nil when the client had no run.json to send.
type RunUpload struct {
	Template     string
	Frames       int
	FPS          int
	Succeeded    int
	ArtifactName string
	Artifact     []byte
	Manifest     []byte
}

// ArtifactBlob is a stored animation ready to serve back.
type ArtifactBlob struct {
	Name string
	Data []byte
}

// Store abstracts run persistence so the HTTP layer can be tested without
// a live database.
type Store interface {
	ListRuns(ctx context.Context) ([]RunEntry, error)
	InsertRun(ctx context.Context, up RunUpload) (int64, error)
	Artifact(ctx context.Context, id int64) (ArtifactBlob, error)
}

// pgStore persists runs in Postgres.
type pgStore struct {
	db *sql.DB
}

func (s *pgStore) ListRuns(ctx context.Context) ([]RunEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, template, frames, fps, succeeded, artifact_name, artifact_bytes, published_at
		FROM runs ORDER BY published_at DESC, id DESC LIMIT 100`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var list []RunEntry
	for rows.Next() {
		var e RunEntry
		if err := rows.Scan(&e.ID, &e.Template, &e.Frames, &e.FPS, &e.Succeeded, &e.ArtifactName, &e.ArtifactBytes, &e.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func (s *pgStore) InsertRun(ctx context.Context, up RunUpload) (int64, error) {
	var manifest any
	if len(up.Manifest) > 0 {
		manifest = string(up.Manifest)
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO runs(template, frames, fps, succeeded, artifact_name, artifact, artifact_bytes, manifest)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		up.Template, up.Frames, up.FPS, up.Succeeded, up.ArtifactName, up.Artifact, int64(len(up.Artifact)), manifest).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

func (s *pgStore) Artifact(ctx context.Context, id int64) (ArtifactBlob, error) {
	var blob ArtifactBlob
	row := s.db.QueryRowContext(ctx, `SELECT artifact_name, artifact FROM runs WHERE id = $1`, id)
	switch err := row.Scan(&blob.Name, &blob.Data); {
	case errors.Is(err, sql.ErrNoRows):
		return ArtifactBlob{}, ErrNotFound
	case err != nil:
		return ArtifactBlob{}, fmt.Errorf("select artifact: %w", err)
	}
	return blob, nil
}
