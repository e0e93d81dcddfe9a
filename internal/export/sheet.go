/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export derives secondary artifacts from a finished run: a PDF
// contact sheet of the frames, a downscaled poster image, and a zip archive
// of the raw frames.
package export

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	// register PNG decoding for image.DecodeConfig
	_ "image/png"
)

// SheetOptions controls the contact sheet layout. Units are millimeters.
type SheetOptions struct {
	Title   string
	Columns int     // default 5
	Margin  float64 // default 10
	Gap     float64 // default 4
}

// ContactSheet lays the frame images out on a landscape A4 grid with one
// label per cell, for flipping through a run on paper or in a PDF viewer.
// Missing or undecodable frames are skipped; the count of placed frames is
// returned, and zero placed frames is an error.
func ContactSheet(framePaths []string, outPath string, opt SheetOptions) (int, error) {
	if opt.Columns <= 0 {
		opt.Columns = 5
	}
	if opt.Margin <= 0 {
		opt.Margin = 10
	}
	if opt.Gap <= 0 {
		opt.Gap = 4
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(opt.Title, true)
	pdf.SetAuthor("Go TikZ Animator", false)
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	y := opt.Margin
	if opt.Title != "" {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Text(opt.Margin, y+4, opt.Title)
		y += 10
	}

	cellW := (pageW - 2*opt.Margin - float64(opt.Columns-1)*opt.Gap) / float64(opt.Columns)
	const labelH = 4.0

	placed := 0
	col := 0
	rowH := 0.0
	for _, p := range framePaths {
		cw, ch, err := pngSize(p)
		if err != nil {
			continue
		}
		imgH := cellW * float64(ch) / float64(cw)

		if col == opt.Columns {
			col = 0
			y += rowH + opt.Gap
			rowH = 0
		}
		if y+imgH+labelH > pageH-opt.Margin {
			pdf.AddPage()
			y = opt.Margin
			col = 0
			rowH = 0
		}

		x := opt.Margin + float64(col)*(cellW+opt.Gap)
		pdf.ImageOptions(p, x, y, cellW, imgH, false,
			gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		pdf.SetFont("Helvetica", "", 7)
		pdf.Text(x, y+imgH+3, filepath.Base(p))

		if h := imgH + labelH; h > rowH {
			rowH = h
		}
		col++
		placed++
	}
	if placed == 0 {
		return 0, fmt.Errorf("no frame images to lay out")
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return 0, fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return 0, fmt.Errorf("write contact sheet: %w", err)
	}
	return placed, nil
}

// pngSize reads just the header of an image file for its pixel dimensions.
func pngSize(path string) (w, h int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("degenerate image %s", path)
	}
	return cfg.Width, cfg.Height, nil
}
