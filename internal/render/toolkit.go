/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render drives the external tools that turn per-frame documents
// into a looping GIF: pdflatex for compilation, Ghostscript and ImageMagick
// for rasterization, ImageMagick for assembly. Tool paths and the installed
// ImageMagick's invocation style are probed once and threaded through
// explicitly.
package render

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ArgOrder is the command-line shape of the installed ImageMagick.
type ArgOrder int

const (
	// InputFirst is the v7 `magick` shape: input file, then operations.
	InputFirst ArgOrder = iota
	// FlagsFirst is the v6 `convert` shape: operations, then input file.
	FlagsFirst
)

// MagickStyle captures the invocation differences between the two major
// ImageMagick versions.
type MagickStyle struct {
	Order ArgOrder
	// OptimizeArg is the -layers argument: "Optimize" on v7, "optimize"
	// on v6.
	OptimizeArg string
}

// styleFor derives the invocation style from the executable name, the same
// signal the version split is observable by without running the binary.
func styleFor(path string) MagickStyle {
	if strings.Contains(filepath.Base(path), "magick") {
		return MagickStyle{Order: InputFirst, OptimizeArg: "Optimize"}
	}
	return MagickStyle{Order: FlagsFirst, OptimizeArg: "optimize"}
}

// Toolkit holds the resolved external tool paths. Empty string means the
// tool is not installed.
type Toolkit struct {
	PDFLaTeX    string
	Magick      string
	Style       MagickStyle
	Ghostscript string
}

// lookPath is swappable in tests.
var lookPath = exec.LookPath

// Discover probes the PATH for the external tools. `magick` (v7) is
// preferred over `convert` (v6) when both are installed.
func Discover() Toolkit {
	var t Toolkit
	if p, err := lookPath("pdflatex"); err == nil {
		t.PDFLaTeX = p
	}
	if p, err := lookPath("magick"); err == nil {
		t.Magick = p
	} else if p, err := lookPath("convert"); err == nil {
		t.Magick = p
	}
	if t.Magick != "" {
		t.Style = styleFor(t.Magick)
	}
	if p, err := lookPath("gs"); err == nil {
		t.Ghostscript = p
	}
	return t
}

// ToolStatus describes one probed tool for user-facing reports.
type ToolStatus struct {
	Name     string
	Path     string
	Hint     string
	Required bool
}

// Status reports every tool the pipeline can use. Ghostscript is optional:
// it is only preferred for very high densities and ImageMagick covers the
// rest.
func (t Toolkit) Status() []ToolStatus {
	return []ToolStatus{
		{Name: "pdflatex", Path: t.PDFLaTeX, Hint: "install a LaTeX distribution (e.g. apt-get install texlive)", Required: true},
		{Name: "magick/convert", Path: t.Magick, Hint: "install ImageMagick (e.g. apt-get install imagemagick)", Required: true},
		{Name: "gs", Path: t.Ghostscript, Hint: "install Ghostscript for high-density rendering (e.g. apt-get install ghostscript)", Required: false},
	}
}

// Check fails when a required tool is missing, naming every missing one.
func (t Toolkit) Check() error {
	var missing []string
	for _, s := range t.Status() {
		if s.Required && s.Path == "" {
			missing = append(missing, s.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
	}
	return nil
}
