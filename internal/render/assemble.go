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
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Delay converts frames-per-second to the GIF inter-frame delay in
// hundredths of a second.
func Delay(fps int) int {
	return int(math.Round(100.0 / float64(fps)))
}

// AssembleResult reports what went into the final artifact.
type AssembleResult struct {
	Used      int
	Missing   []string
	SizeBytes int64
}

// assembleGIF combines the expected frame PNGs, in order, into one looping
// GIF. Expected paths absent from disk are skipped and reported rather than
// failing the run; zero usable frames is an error. Frame disposal mode
// "none" keeps each frame full so the animation cannot ghost, and a layer
// optimization pass shrinks the file.
func assembleGIF(ctx context.Context, tk Toolkit, framePaths []string, outPath string, fps int) (AssembleResult, error) {
	var res AssembleResult
	var inputs []string
	for _, p := range framePaths {
		if _, err := os.Stat(p); err != nil {
			res.Missing = append(res.Missing, filepath.Base(p))
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		inputs = append(inputs, abs)
	}
	if len(inputs) == 0 {
		return res, fmt.Errorf("no frame images to assemble")
	}
	res.Used = len(inputs)

	absOut, err := filepath.Abs(outPath)
	if err != nil {
		absOut = outPath
	}
	args := gifArgs(tk.Style, Delay(fps), inputs, absOut)
	if out, err := exec.CommandContext(ctx, tk.Magick, args...).CombinedOutput(); err != nil {
		return res, fmt.Errorf("gif assembly failed: %s", tail(string(out), 500))
	}

	if info, err := os.Stat(outPath); err == nil {
		res.SizeBytes = info.Size()
	}
	return res, nil
}

// gifArgs shapes the assembly call for the installed ImageMagick. On v7 the
// coalesce and layer-optimize operations follow the inputs; on v6 everything
// precedes them.
func gifArgs(style MagickStyle, delay int, inputs []string, outPath string) []string {
	head := []string{
		"-delay", strconv.Itoa(delay),
		"-loop", "0",
		"-dispose", "none",
	}
	if style.Order == InputFirst {
		args := append(head, inputs...)
		return append(args, "-coalesce", "-layers", style.OptimizeArg, outPath)
	}
	args := append(head, "-coalesce", "-layers", style.OptimizeArg)
	args = append(args, inputs...)
	return append(args, outPath)
}
