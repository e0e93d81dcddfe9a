/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tikz

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"

	"gotikzanim/internal/motion"
)

func testParams() motion.Params {
	return motion.Params{Progress: 0.5, FlowSpeed: 0.05, FallSpeed: 0.041, PileCount: 12}
}

func TestRewriteNoMarkersUnchanged(t *testing.T) {
	doc := "line A\nline B\nline C"
	got, err := Rewrite(doc, 0, 3, testParams())
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if got != doc {
		t.Fatalf("document without markers changed:\n%s", got)
	}
}

func TestRewritePrimaryFlowReplacesSpan(t *testing.T) {
	doc := strings.Join([]string{
		`before 1`,
		`before 2`,
		`  \foreach \j in {12,...,58} {`,
		`    \node at (\j,0) {orig};`,
		`  }`,
		`after 1`,
		`after 2`,
	}, "\n")
	p := testParams()
	got, err := Rewrite(doc, 4, 60, p)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	outLines := SplitLines(got)
	if outLines[0] != "before 1" || outLines[1] != "before 2" {
		t.Fatalf("leading verbatim lines changed: %q %q", outLines[0], outLines[1])
	}
	if outLines[len(outLines)-2] != "after 1" || outLines[len(outLines)-1] != "after 2" {
		t.Fatalf("trailing verbatim lines changed: %q %q", outLines[len(outLines)-2], outLines[len(outLines)-1])
	}
	if strings.Contains(got, "{orig}") {
		t.Fatalf("original loop body survived the rewrite")
	}
	for _, wantPart := range []string{
		fmt.Sprintf(`\pgfmathsetseed{%d}`, FlowSeed),
		fmt.Sprintf(`\pgfmathsetseed{%d}`, PileSeed),
		fmt.Sprintf(`\foreach \j in {0,...,%d} {`, FlowPositions),
		fmt.Sprintf(`\pgfmathsetmacro{\pileCount}{%d}`, p.PileCount),
		`(frame 5/60`,
	} {
		if !strings.Contains(got, wantPart) {
			t.Fatalf("rewritten output missing %q:\n%s", wantPart, got)
		}
	}
}

func TestRewriteFlowOffsetUsesMotionParams(t *testing.T) {
	doc := "\\foreach \\j in {12,...,58} {\n}"
	p := motion.Params{Progress: 0.25, FlowSpeed: 0.1, FallSpeed: 0.082, PileCount: 6}
	got, err := Rewrite(doc, 0, 4, p)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	want := `\pgfmathsetmacro{\animOffset}{-0.25 * 0.1 * (\xE - \clogEnd)}`
	if !strings.Contains(got, want) {
		t.Fatalf("offset expression missing %q:\n%s", want, got)
	}
}

func TestRewriteDropsPostObstructionLoop(t *testing.T) {
	var lines []string
	for i := 0; i <= PostObstructionLineThreshold; i++ {
		lines = append(lines, fmt.Sprintf(`%% filler %d`, i))
	}
	lines = append(lines,
		`\foreach \j in {1,...,7} {`,
		`  \node at (\j,0) {drop me};`,
		`}`,
		`tail`,
	)
	got, err := Rewrite(strings.Join(lines, "\n"), 0, 3, testParams())
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if strings.Contains(got, "drop me") {
		t.Fatalf("post-obstruction loop not dropped:\n%s", got)
	}
	outLines := SplitLines(got)
	if outLines[len(outLines)-1] != "tail" {
		t.Fatalf("line after dropped region lost: %q", outLines[len(outLines)-1])
	}
	if len(outLines) != PostObstructionLineThreshold+2 {
		t.Fatalf("expected %d lines after drop, got %d", PostObstructionLineThreshold+2, len(outLines))
	}
}

func TestRewriteStreamDirective(t *testing.T) {
	line := `    \drawCoinStreamVertical{\centerX+.5}{0.8}{6}{0.35}{-8}{8}{3}`
	p := testParams()
	got, err := Rewrite(line, 2, 10, p)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	outLines := SplitLines(got)
	if len(outLines) != 2 {
		t.Fatalf("expected annotation + directive, got %d lines:\n%s", len(outLines), got)
	}
	for _, l := range outLines {
		if !strings.HasPrefix(l, "    ") {
			t.Fatalf("indentation not preserved: %q", l)
		}
	}
	args, ok := streamArgs(outLines[1])
	if !ok {
		t.Fatalf("emitted directive is not a valid stream call: %q", outLines[1])
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		t.Fatalf("emitted y not numeric: %q", args[1])
	}
	want := 0.8 + StreamStartAdjust + p.Progress*p.FallSpeed
	if math.Abs(y-want) > 1e-9 {
		t.Fatalf("y = %v, want %v", y, want)
	}
	for i, wantArg := range map[int]string{0: `\centerX+.5`, 2: "6", 3: "0.35", 4: "-8", 5: "8", 6: "3"} {
		if args[i] != wantArg {
			t.Fatalf("arg %d = %q, want %q", i, args[i], wantArg)
		}
	}
}

func TestRewriteStreamDirectiveMalformedPassthrough(t *testing.T) {
	cases := []string{
		// six arguments
		`\drawCoinStreamVertical{\xA}{1}{6}{0.35}{-8}{8}`,
		// eight arguments
		`\drawCoinStreamVertical{\xA}{1}{6}{0.35}{-8}{8}{3}{extra}`,
		// non-numeric start coordinate
		`\drawCoinStreamVertical{\xA}{\yTop}{6}{0.35}{-8}{8}{3}`,
		// trailing junk after the last argument
		`\drawCoinStreamVertical{\xA}{1}{6}{0.35}{-8}{8}{3} trailing`,
		// unbalanced braces
		`\drawCoinStreamVertical{\xA}{1}{6}{0.35}{-8}{8}{3`,
	}
	for _, line := range cases {
		got, err := Rewrite(line, 0, 3, testParams())
		if err != nil {
			t.Fatalf("Rewrite(%q): %v", line, err)
		}
		if got != line {
			t.Fatalf("malformed directive %q was modified:\n%s", line, got)
		}
	}
}

func TestRewriteUnterminatedRegionSurfacesError(t *testing.T) {
	doc := "\\foreach \\j in {12,...,58} {\n  \\node {open;"
	if _, err := Rewrite(doc, 0, 3, testParams()); err == nil {
		t.Fatalf("expected unterminated-region error")
	}
}

func TestFnumNeverScientific(t *testing.T) {
	for _, v := range []float64{0, 0.05, 0.000001, 123.456, 1.0 / 3.0} {
		s := fnum(v)
		if strings.ContainsAny(s, "eE") {
			t.Fatalf("fnum(%v) = %q uses scientific notation", v, s)
		}
		back, err := strconv.ParseFloat(s, 64)
		if err != nil {
			t.Fatalf("fnum(%v) = %q does not parse back: %v", v, s, err)
		}
		if back != v {
			t.Fatalf("fnum(%v) = %q round-trips to %v", v, s, back)
		}
	}
}
