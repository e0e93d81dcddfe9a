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
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// compileFrame compiles one frame document to PDF. pdflatex runs twice so
// the second pass can resolve references the first pass left dangling; the
// working directory is the run directory, and texName is relative to it.
// pdflatex exits non-zero on cosmetic warnings while still producing usable
// output, so success is judged by artifact presence only.
func compileFrame(ctx context.Context, pdflatex, workDir, texName string) error {
	var lastOut []byte
	for pass := 0; pass < 2; pass++ {
		cmd := exec.CommandContext(ctx, pdflatex, "-interaction=nonstopmode", texName)
		cmd.Dir = workDir
		out, err := cmd.CombinedOutput()
		if len(out) > 0 {
			lastOut = out
		}
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	pdfName := strings.TrimSuffix(texName, filepath.Ext(texName)) + ".pdf"
	if _, err := os.Stat(filepath.Join(workDir, pdfName)); err == nil {
		return nil
	}
	return fmt.Errorf("pdflatex produced no %s: %s", pdfName, compileDiagnostics(lastOut))
}

// compileDiagnostics distills a pdflatex transcript down to the lines that
// matter: at most the last 10 lines containing an error token, or the raw
// tail when no such line exists.
func compileDiagnostics(out []byte) string {
	lines := strings.Split(string(out), "\n")
	var hits []string
	for _, l := range lines {
		if strings.Contains(l, "Error") || strings.Contains(l, "!") {
			hits = append(hits, l)
		}
	}
	if len(hits) > 10 {
		hits = hits[len(hits)-10:]
	}
	if len(hits) > 0 {
		return strings.Join(hits, "\n")
	}
	return tail(string(out), 500)
}

// tail returns at most the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// pageCount reads a compiled artifact and returns its page count. A frame
// document is expected to compile to exactly one page; the caller warns on
// anything else.
func pageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	return pdfCtx.PageCount, nil
}
