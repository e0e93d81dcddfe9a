/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// PosterOptions controls the still-image export.
type PosterOptions struct {
	MaxWidth int // default 800 px; never upscales
}

// WritePoster turns one rendered frame into a share-sized still image.
// Frames render at print densities and come out far larger than a preview
// needs, so the frame is downscaled to MaxWidth with Catmull-Rom
// resampling; frames already small enough pass through at full size.
func WritePoster(framePath, outPath string, opt PosterOptions) error {
	if opt.MaxWidth <= 0 {
		opt.MaxWidth = 800
	}

	f, err := os.Open(framePath)
	if err != nil {
		return fmt.Errorf("open frame: %w", err)
	}
	src, _, err := image.Decode(f)
	cerr := f.Close()
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	if cerr != nil {
		return fmt.Errorf("close frame: %w", cerr)
	}

	b := src.Bounds()
	out := src
	if b.Dx() > opt.MaxWidth {
		h := int(math.Round(float64(b.Dy()) * float64(opt.MaxWidth) / float64(b.Dx())))
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, opt.MaxWidth, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
		out = dst
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	of, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create poster: %w", err)
	}
	if err := png.Encode(of, out); err != nil {
		_ = of.Close()
		return fmt.Errorf("encode poster: %w", err)
	}
	if err := of.Close(); err != nil {
		return fmt.Errorf("close poster: %w", err)
	}
	return nil
}
