/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writeTestPNG creates a small solid-color image on disk.
func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 240, G: 200, B: 60, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}

func TestContactSheetCreatesPDF(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 7; i++ {
		p := filepath.Join(dir, "frame_000"+string(rune('0'+i))+".png")
		writeTestPNG(t, p, 40, 30)
		paths = append(paths, p)
	}

	out := filepath.Join(dir, "sheet.pdf")
	placed, err := ContactSheet(paths, out, SheetOptions{Title: "pipeline run"})
	if err != nil {
		t.Fatalf("ContactSheet: %v", err)
	}
	if placed != 7 {
		t.Fatalf("placed = %d, want 7", placed)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(data) == 0 || !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestContactSheetSkipsMissingFrames(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "frame_0000.png")
	writeTestPNG(t, p, 20, 20)
	paths := []string{p, filepath.Join(dir, "frame_0001.png")}

	out := filepath.Join(dir, "sheet.pdf")
	placed, err := ContactSheet(paths, out, SheetOptions{})
	if err != nil {
		t.Fatalf("ContactSheet: %v", err)
	}
	if placed != 1 {
		t.Fatalf("placed = %d, want 1", placed)
	}
}

func TestContactSheetFailsWithNoFrames(t *testing.T) {
	dir := t.TempDir()
	_, err := ContactSheet([]string{filepath.Join(dir, "frame_0000.png")}, filepath.Join(dir, "sheet.pdf"), SheetOptions{})
	if err == nil {
		t.Fatalf("expected error with no usable frames")
	}
}
