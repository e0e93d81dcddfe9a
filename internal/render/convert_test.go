/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"strings"
	"testing"
)

var (
	v7 = MagickStyle{Order: InputFirst, OptimizeArg: "Optimize"}
	v6 = MagickStyle{Order: FlagsFirst, OptimizeArg: "optimize"}
)

func TestRasterArgsV7InputPrecedesOperations(t *testing.T) {
	got := strings.Join(rasterArgs(v7, "frame_0000.pdf", "frame_0000.png", 300), " ")
	want := "frame_0000.pdf -density 300 " +
		"-background white -alpha remove -alpha off " +
		"-define png:compression-level=0 -define png:compression-strategy=0 " +
		"frame_0000.png"
	if got != want {
		t.Fatalf("v7 raster args\n got %q\nwant %q", got, want)
	}
}

func TestRasterArgsV6OperationsPrecedeInput(t *testing.T) {
	got := strings.Join(rasterArgs(v6, "frame_0000.pdf", "frame_0000.png", 450), " ")
	want := "-density 450 " +
		"-background white -alpha remove -alpha off " +
		"-define png:compression-level=0 -define png:compression-strategy=0 " +
		"frame_0000.pdf frame_0000.png"
	if got != want {
		t.Fatalf("v6 raster args\n got %q\nwant %q", got, want)
	}
}

func TestFlattenArgsBothStyles(t *testing.T) {
	gotV7 := strings.Join(flattenArgs(v7, "in.png", "out.png"), " ")
	wantV7 := "in.png -background white -alpha remove -alpha off " +
		"-define png:compression-level=0 -define png:compression-strategy=0 out.png"
	if gotV7 != wantV7 {
		t.Fatalf("v7 flatten args\n got %q\nwant %q", gotV7, wantV7)
	}

	gotV6 := strings.Join(flattenArgs(v6, "in.png", "out.png"), " ")
	wantV6 := "-background white -alpha remove -alpha off " +
		"-define png:compression-level=0 -define png:compression-strategy=0 in.png out.png"
	if gotV6 != wantV6 {
		t.Fatalf("v6 flatten args\n got %q\nwant %q", gotV6, wantV6)
	}
}

func TestRasterArgsRespectEffectiveDensity(t *testing.T) {
	// 300 DPI at scale 2.0 renders at 600 DPI, not 300 upscaled
	opts := Options{Density: 300, Scale: 2.0}
	if got := opts.EffectiveDensity(); got != 600 {
		t.Fatalf("EffectiveDensity = %d, want 600", got)
	}
	args := rasterArgs(v6, "a.pdf", "a.png", opts.EffectiveDensity())
	if args[0] != "-density" || args[1] != "600" {
		t.Fatalf("density not threaded through: %v", args[:2])
	}
}

func TestEffectiveDensityTruncates(t *testing.T) {
	opts := Options{Density: 300, Scale: 0.5}
	if got := opts.EffectiveDensity(); got != 150 {
		t.Fatalf("EffectiveDensity = %d, want 150", got)
	}
	opts = Options{Density: 333, Scale: 0.7}
	if got := opts.EffectiveDensity(); got != 233 {
		t.Fatalf("EffectiveDensity = %d, want 233 (truncated)", got)
	}
}
