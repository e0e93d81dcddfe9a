/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var (
	testWhite = color.RGBA{255, 255, 255, 255}
	testRed   = color.RGBA{255, 0, 0, 255}
	testBlue  = color.RGBA{0, 0, 255, 255}
)

func encodeTestGIF(t *testing.T, g *gif.GIF) string {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	path := filepath.Join(t.TempDir(), "test.gif")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write gif: %v", err)
	}
	return path
}

func twoFrameGIF(disposal byte) *gif.GIF {
	pal := color.Palette{testWhite, testRed, testBlue}
	f0 := image.NewPaletted(image.Rect(0, 0, 8, 8), pal)
	for i := range f0.Pix {
		f0.Pix[i] = 1 // red
	}
	f1 := image.NewPaletted(image.Rect(2, 2, 6, 6), pal)
	for i := range f1.Pix {
		f1.Pix[i] = 2 // blue, partial frame
	}
	return &gif.GIF{
		Image:    []*image.Paletted{f0, f1},
		Delay:    []int{7, 0},
		Disposal: []byte{disposal, gif.DisposalNone},
		Config:   image.Config{ColorModel: pal, Width: 8, Height: 8},
	}
}

func TestLoadAnimationCompositesPartialFrames(t *testing.T) {
	path := encodeTestGIF(t, twoFrameGIF(gif.DisposalNone))

	anim, err := LoadAnimation(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(anim.Frames) != 2 {
		t.Fatalf("frames: got %d want 2", len(anim.Frames))
	}
	if anim.Size != image.Pt(8, 8) {
		t.Fatalf("size: got %v", anim.Size)
	}
	if got := anim.Frames[0].RGBAAt(0, 0); got != testRed {
		t.Fatalf("frame 0 (0,0): got %v want red", got)
	}
	// The partial second frame paints its own region and keeps the rest.
	if got := anim.Frames[1].RGBAAt(3, 3); got != testBlue {
		t.Fatalf("frame 1 (3,3): got %v want blue", got)
	}
	if got := anim.Frames[1].RGBAAt(0, 0); got != testRed {
		t.Fatalf("frame 1 (0,0): got %v want red kept from frame 0", got)
	}
}

func TestLoadAnimationHonorsBackgroundDisposal(t *testing.T) {
	path := encodeTestGIF(t, twoFrameGIF(gif.DisposalBackground))

	anim, err := LoadAnimation(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Frame 0 was disposed to background, so only the partial blue square
	// survives into frame 1; the rest is the white backdrop.
	if got := anim.Frames[1].RGBAAt(3, 3); got != testBlue {
		t.Fatalf("frame 1 (3,3): got %v want blue", got)
	}
	if got := anim.Frames[1].RGBAAt(0, 0); got != testWhite {
		t.Fatalf("frame 1 (0,0): got %v want white after disposal", got)
	}
}

func TestAnimationDelays(t *testing.T) {
	path := encodeTestGIF(t, twoFrameGIF(gif.DisposalNone))

	anim, err := LoadAnimation(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, want := anim.Delays[0], 70*time.Millisecond; got != want {
		t.Fatalf("delay 0: got %v want %v", got, want)
	}
	// A zero GIF delay falls back to 100ms.
	if got, want := anim.Delays[1], 100*time.Millisecond; got != want {
		t.Fatalf("delay 1: got %v want %v", got, want)
	}
	if got, want := anim.Duration(), 170*time.Millisecond; got != want {
		t.Fatalf("duration: got %v want %v", got, want)
	}
}

func TestLoadAnimationMissingFile(t *testing.T) {
	if _, err := LoadAnimation(filepath.Join(t.TempDir(), "nope.gif")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadAnimationRejectsNonGIF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.gif")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadAnimation(path); err == nil {
		t.Fatalf("expected decode error")
	}
}
