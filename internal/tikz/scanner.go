/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package tikz rewrites a TikZ template into per-frame variants and wraps
// them into compilable standalone documents. The template format stays opaque
// text; only three fixed marker shapes are recognized and replaced.
package tikz

import (
	"fmt"
	"strings"
)

// RegionKind classifies a span of template lines.
type RegionKind int

const (
	// Verbatim lines are copied through unchanged.
	Verbatim RegionKind = iota
	// PrimaryFlow is the main coin loop, replaced by the animated generator.
	PrimaryFlow
	// PostObstruction is the coin loop after the clog, dropped entirely.
	PostObstruction
	// StreamDirective is a single-line vertical stream call whose start
	// coordinate is animated.
	StreamDirective
)

func (k RegionKind) String() string {
	switch k {
	case Verbatim:
		return "verbatim"
	case PrimaryFlow:
		return "primary-flow"
	case PostObstruction:
		return "post-obstruction"
	case StreamDirective:
		return "stream-directive"
	default:
		return fmt.Sprintf("region(%d)", int(k))
	}
}

// Region is a contiguous line span [Start, End) of one kind.
type Region struct {
	Kind  RegionKind
	Start int
	End   int
}

// Marker patterns recognized in template text. Matching is plain substring
// containment, first match wins, at most one rule per line.
const (
	// PrimaryFlowMarker opens the main coin loop of the template.
	PrimaryFlowMarker = `\foreach \j in {12,...,58}`
	// PostObstructionMarker opens the after-clog coin loop. The same loop
	// header also occurs much earlier in the template with an unrelated
	// meaning, so it only counts as a marker past the line threshold.
	PostObstructionMarker = `\foreach \j in {1,...,7}`
	// StreamDirectiveMarker starts a vertical coin stream call.
	StreamDirectiveMarker = `\drawCoinStreamVertical{`
	// PostObstructionLineThreshold is the 0-based line index a
	// PostObstructionMarker must exceed to be treated as one.
	PostObstructionLineThreshold = 100
)

// SplitLines splits template text into lines without touching line content.
func SplitLines(doc string) []string { return strings.Split(doc, "\n") }

// Scan tokenizes the template into an ordered, gap-free region list covering
// every line exactly once. Loop regions run from their marker line to the
// line on which the brace balance returns to zero; the balance counts every
// open and close brace on a line, not mere presence. A loop region whose
// balance never returns to zero before end of document is a hard error.
func Scan(lines []string) ([]Region, error) {
	var regions []Region
	verbatimStart := -1

	flushVerbatim := func(end int) {
		if verbatimStart >= 0 {
			regions = append(regions, Region{Kind: Verbatim, Start: verbatimStart, End: end})
			verbatimStart = -1
		}
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		switch {
		case strings.Contains(line, PrimaryFlowMarker):
			flushVerbatim(i)
			end, err := scanBalanced(lines, i)
			if err != nil {
				return nil, err
			}
			regions = append(regions, Region{Kind: PrimaryFlow, Start: i, End: end})
			i = end
		case strings.Contains(line, PostObstructionMarker) && i > PostObstructionLineThreshold:
			flushVerbatim(i)
			end, err := scanBalanced(lines, i)
			if err != nil {
				return nil, err
			}
			regions = append(regions, Region{Kind: PostObstruction, Start: i, End: end})
			i = end
		case strings.Contains(line, StreamDirectiveMarker):
			flushVerbatim(i)
			regions = append(regions, Region{Kind: StreamDirective, Start: i, End: i + 1})
			i++
		default:
			if verbatimStart < 0 {
				verbatimStart = i
			}
			i++
		}
	}
	flushVerbatim(len(lines))
	return regions, nil
}

// scanBalanced returns the exclusive end index of the loop region opening at
// start. The marker line's own braces participate in the balance, so a loop
// written entirely on its marker line is a one-line region.
func scanBalanced(lines []string, start int) (int, error) {
	balance := 0
	for i := start; i < len(lines); i++ {
		balance += strings.Count(lines[i], "{")
		balance -= strings.Count(lines[i], "}")
		if balance <= 0 {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("tikz: unterminated region starting at line %d: brace balance never returns to zero", start+1)
}
