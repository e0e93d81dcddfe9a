/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// HighDensityThreshold is the effective density above which Ghostscript is
// preferred over ImageMagick for PDF rasterization. ImageMagick delegates to
// Ghostscript internally but degrades at very high densities.
const HighDensityThreshold = 2000

// convertFrame rasterizes one compiled frame to PNG at the effective density
// (requested density already multiplied by the scale factor, so frames render
// directly at output resolution instead of being upscaled later). Unlike the
// compile step, any non-zero exit here is a hard failure for the frame.
func convertFrame(ctx context.Context, tk Toolkit, pdfPath, pngPath string, effectiveDensity int) error {
	if tk.Ghostscript != "" && effectiveDensity > HighDensityThreshold {
		return convertViaGhostscript(ctx, tk, pdfPath, pngPath, effectiveDensity)
	}
	args := rasterArgs(tk.Style, pdfPath, pngPath, effectiveDensity)
	if out, err := exec.CommandContext(ctx, tk.Magick, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("imagemagick convert failed: %s", tail(string(out), 500))
	}
	return nil
}

// convertViaGhostscript renders to an intermediate PNG with Ghostscript,
// then flattens it onto a white background with ImageMagick. The
// intermediate file is removed regardless of outcome.
func convertViaGhostscript(ctx context.Context, tk Toolkit, pdfPath, pngPath string, effectiveDensity int) error {
	tmpPath := strings.TrimSuffix(pngPath, ".png") + "_gs_temp.png"
	defer os.Remove(tmpPath)

	gsArgs := []string{
		"-dNOPAUSE", "-dBATCH", "-dQUIET",
		"-sDEVICE=png16m",
		"-r" + strconv.Itoa(effectiveDensity),
		"-dGraphicsAlphaBits=4",
		"-dTextAlphaBits=4",
		"-sOutputFile=" + tmpPath,
		pdfPath,
	}
	if out, err := exec.CommandContext(ctx, tk.Ghostscript, gsArgs...).CombinedOutput(); err != nil {
		return fmt.Errorf("ghostscript failed: %s", tail(string(out), 500))
	}

	args := flattenArgs(tk.Style, tmpPath, pngPath)
	if out, err := exec.CommandContext(ctx, tk.Magick, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("background flatten failed: %s", tail(string(out), 500))
	}
	return nil
}

// flattenOps composites onto opaque white, strips the alpha channel, and
// disables PNG compression for speed.
var flattenOps = []string{
	"-background", "white",
	"-alpha", "remove",
	"-alpha", "off",
	"-define", "png:compression-level=0",
	"-define", "png:compression-strategy=0",
}

// flattenArgs shapes the white-background flattening call for the installed
// ImageMagick.
func flattenArgs(style MagickStyle, inPath, outPath string) []string {
	if style.Order == InputFirst {
		args := []string{inPath}
		args = append(args, flattenOps...)
		return append(args, outPath)
	}
	args := append([]string{}, flattenOps...)
	return append(args, inPath, outPath)
}

// rasterArgs shapes the one-shot PDF rasterization-and-flatten call for the
// installed ImageMagick.
func rasterArgs(style MagickStyle, pdfPath, pngPath string, effectiveDensity int) []string {
	density := strconv.Itoa(effectiveDensity)
	if style.Order == InputFirst {
		args := []string{pdfPath, "-density", density}
		args = append(args, flattenOps...)
		return append(args, pngPath)
	}
	args := []string{"-density", density}
	args = append(args, flattenOps...)
	return append(args, pdfPath, pngPath)
}
