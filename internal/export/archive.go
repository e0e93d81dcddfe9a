/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArchiveFrames packages a run's frame images into a zip so the raw frames
// survive a cleanup pass. The run manifest rides along when present.
// Returns the number of archived frames; zero frames is an error.
func ArchiveFrames(dir, outPath string) (int, error) {
	frames, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return 0, fmt.Errorf("scan frames: %w", err)
	}
	if len(frames) == 0 {
		return 0, fmt.Errorf("no frame images to archive in %s", dir)
	}

	if !strings.HasSuffix(strings.ToLower(outPath), ".zip") {
		outPath = outPath + ".zip"
	}
	zw, f, err := createZip(outPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	for _, p := range frames {
		data, err := os.ReadFile(p)
		if err != nil {
			return 0, fmt.Errorf("read frame: %w", err)
		}
		if err := addZipFile(zw, filepath.Base(p), data); err != nil {
			return 0, fmt.Errorf("zip add frame: %w", err)
		}
	}

	if data, err := os.ReadFile(filepath.Join(dir, "run.json")); err == nil {
		if err := addZipFile(zw, "run.json", data); err != nil {
			return 0, fmt.Errorf("zip add manifest: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("close zip: %w", err)
	}
	return len(frames), nil
}

func createZip(outPath string) (*zip.Writer, *os.File, error) {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create zip: %w", err)
	}
	return zip.NewWriter(f), f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
