/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package ui holds the optional playback window for finished animations.
// The Fyne window only compiles with -tags fyne; the GIF decoding below is
// plain library code so it stays testable in headless builds.
package ui

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Animation is a decoded GIF flattened to full frames, ready for playback.
type Animation struct {
	Frames []*image.RGBA
	Delays []time.Duration
	Size   image.Point
}

// LoadAnimation reads a GIF file and composites it into full frames.
func LoadAnimation(path string) (*Animation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open animation: %w", err)
	}
	defer f.Close()
	a, err := decodeAnimation(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return a, nil
}

// decodeAnimation composites possibly partial GIF frames onto a shared
// canvas, honoring per-frame disposal, so playback can blit whole frames.
// The backdrop is white to match the renderer's flattened output.
func decodeAnimation(r io.Reader) (*Animation, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("no frames in animation")
	}
	w, h := g.Config.Width, g.Config.Height
	if w == 0 || h == 0 {
		b := g.Image[0].Bounds()
		w, h = b.Dx(), b.Dy()
	}
	bounds := image.Rect(0, 0, w, h)
	white := image.NewUniform(color.White)
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, white, image.Point{}, draw.Src)

	anim := &Animation{Size: image.Pt(w, h)}
	for i, frame := range g.Image {
		var before *image.RGBA
		if i < len(g.Disposal) && g.Disposal[i] == gif.DisposalPrevious {
			before = cloneRGBA(canvas)
		}
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		anim.Frames = append(anim.Frames, cloneRGBA(canvas))

		d := 100 * time.Millisecond
		if i < len(g.Delay) && g.Delay[i] > 0 {
			d = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		anim.Delays = append(anim.Delays, d)

		if i < len(g.Disposal) {
			switch g.Disposal[i] {
			case gif.DisposalBackground:
				draw.Draw(canvas, frame.Bounds(), white, image.Point{}, draw.Src)
			case gif.DisposalPrevious:
				canvas = before
			}
		}
	}
	return anim, nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

// Duration is the wall-clock length of one playback loop.
func (a *Animation) Duration() time.Duration {
	var total time.Duration
	for _, d := range a.Delays {
		total += d
	}
	return total
}
