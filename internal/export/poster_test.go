/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func posterSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open poster: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode poster: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestWritePosterDownscalesPreservingAspect(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "frame_0000.png")
	writeTestPNG(t, src, 400, 100)

	out := filepath.Join(dir, "poster.png")
	if err := WritePoster(src, out, PosterOptions{MaxWidth: 100}); err != nil {
		t.Fatalf("WritePoster: %v", err)
	}
	w, h := posterSize(t, out)
	if w != 100 || h != 25 {
		t.Fatalf("poster size = %dx%d, want 100x25", w, h)
	}
}

func TestWritePosterNeverUpscales(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "frame_0000.png")
	writeTestPNG(t, src, 60, 40)

	out := filepath.Join(dir, "poster.png")
	if err := WritePoster(src, out, PosterOptions{MaxWidth: 500}); err != nil {
		t.Fatalf("WritePoster: %v", err)
	}
	w, h := posterSize(t, out)
	if w != 60 || h != 40 {
		t.Fatalf("poster size = %dx%d, want original 60x40", w, h)
	}
}

func TestWritePosterMissingFrame(t *testing.T) {
	dir := t.TempDir()
	err := WritePoster(filepath.Join(dir, "frame_0000.png"), filepath.Join(dir, "poster.png"), PosterOptions{})
	if err == nil {
		t.Fatalf("expected error for missing frame")
	}
}
