/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// ManifestFileName is the per-run record written into the run directory.
const ManifestFileName = "run.json"

// Manifest records one render run: the parameters, the per-frame outcomes,
// and the resulting artifact.
type Manifest struct {
	Version       int            `json:"version"`
	Template      string         `json:"template"`
	Imports       string         `json:"imports,omitempty"`
	OutDir        string         `json:"out_dir"`
	Artifact      string         `json:"artifact,omitempty"`
	ArtifactBytes int64          `json:"artifact_bytes,omitempty"`
	Frames        int            `json:"frames"`
	FPS           int            `json:"fps"`
	Speed         float64        `json:"speed"`
	Density       int            `json:"density"`
	Scale         float64        `json:"scale"`
	Started       time.Time      `json:"started"`
	Finished      time.Time      `json:"finished"`
	Succeeded     int            `json:"succeeded"`
	FrameOutcomes []FrameOutcome `json:"frame_outcomes"`
}

// FrameOutcome is the per-frame slice of the manifest.
type FrameOutcome struct {
	Index      int    `json:"index"`
	OK         bool   `json:"ok"`
	Pages      int    `json:"pages,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ManifestVersion bumps when the manifest structure changes incompatibly.
const ManifestVersion = 1

// WriteManifest writes the run manifest with transactional semantics: a
// synced temp file in the run directory renamed over the target, so a crash
// mid-write never leaves a truncated run.json.
func WriteManifest(dir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run manifest: %w", err)
	}
	data = append(data, '\n')

	target := filepath.Join(dir, ManifestFileName)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", ManifestFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp manifest: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(target); err == nil {
		_ = os.Remove(target)
	}
	if rerr := os.Rename(temp, target); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace manifest: %w", rerr)
	}
	return nil
}

// ReadManifest loads a previously written run manifest.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse run manifest: %w", err)
	}
	return m, nil
}

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return nil
}
