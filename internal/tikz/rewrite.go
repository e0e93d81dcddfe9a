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
	"strconv"
	"strings"

	"gotikzanim/internal/motion"
)

// Seeds baked into the emitted drawing code so the pseudo-random jitter is
// identical across frames. The flow and pile populations use distinct seeds
// so they do not land on the same positions.
const (
	FlowSeed = 42
	PileSeed = 44
	// FlowPositions is the fixed position count of the emitted flow loop
	// (the loop iterates 0..FlowPositions).
	FlowPositions = 60
	// StreamStartAdjust lifts the starting coordinate of a vertical stream
	// so coins begin higher up in the tube.
	StreamStartAdjust = 0.1
)

// Rewrite produces the frame-specific variant of a template: verbatim lines
// are copied byte-identical, the primary flow loop is replaced by an animated
// generator, the post-obstruction loop is dropped, and vertical stream
// directives get an animated start coordinate. frameIndex and totalFrames
// only feed the frame annotations in the emitted text; the motion state
// itself comes from p.
func Rewrite(doc string, frameIndex, totalFrames int, p motion.Params) (string, error) {
	lines := SplitLines(doc)
	regions, err := Scan(lines)
	if err != nil {
		return "", err
	}

	var out []string
	for _, r := range regions {
		switch r.Kind {
		case Verbatim:
			out = append(out, lines[r.Start:r.End]...)
		case PrimaryFlow:
			out = appendFlowLoop(out, frameIndex, totalFrames, p)
		case PostObstruction:
			// dropped: it draws coins at the pipe opening that tear
			// at the rendered frame edge
		case StreamDirective:
			out = appendStream(out, lines[r.Start], frameIndex, totalFrames, p)
		}
	}
	return strings.Join(out, "\n"), nil
}

// fnum formats a float for emission into pgfmath expressions: shortest
// decimal form, never scientific notation.
func fnum(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// coinShape is the fixed decorative coin drawn at each synthesized position,
// relative to the enclosing scope.
var coinShape = []string{
	`\fill[coinyellow] (-0.3,-0.03) arc[start angle=180, end angle=360, x radius=0.3, y radius=0.06] -- (0.3,0.03) arc[start angle=0, end angle=180, x radius=0.3, y radius=0.06] -- cycle;`,
	`\fill[coinyellow] (0,0.03) ellipse [x radius=0.3, y radius=0.06];`,
	`\draw[black,thick] (0,0.03) ellipse [x radius=0.3, y radius=0.06];`,
	`\draw[black,thick] plot[domain=pi:2*pi,samples=30] ({0.3*cos(\x r)}, {-0.03+0.06*sin(\x r)});`,
	`\draw[black,thick] (-0.3,-0.03) -- (-0.3,0.03);`,
	`\draw[black,thick] (0.3,-0.03) -- (0.3,0.03);`,
}

func appendCoin(dst []string, indent string) []string {
	for _, l := range coinShape {
		dst = append(dst, indent+l)
	}
	return dst
}

// appendFlowLoop emits the replacement for the primary flow region: a loop of
// evenly spaced coins drifting right to left behind the clog, wrapping at the
// intake and piling up at the clog, plus a static pile whose size grows with
// progress.
func appendFlowLoop(out []string, frameIndex, totalFrames int, p motion.Params) []string {
	out = append(out,
		`  \def\clogX{\xB-0.18}`,
		`  \def\clogW{0.9}`,
		`  \pgfmathsetmacro{\clogEnd}{\clogX + \clogW}`,
		fmt.Sprintf(`  %% Animated coins flowing after the clog (frame %d/%d, progress=%.3f)`, frameIndex+1, totalFrames, p.Progress),
		fmt.Sprintf(`  \pgfmathsetseed{%d}  %% Fixed seed for consistent random positions`, FlowSeed),
		fmt.Sprintf(`  \foreach \j in {0,...,%d} {`, FlowPositions),
		fmt.Sprintf(`    \pgfmathsetmacro{\baseX}{\clogEnd + 0.3 + \j*(\xE-0.5-\clogEnd-0.3)/%d}`, FlowPositions),
		fmt.Sprintf(`    \pgfmathsetmacro{\animOffset}{-%s * %s * (\xE - \clogEnd)}`, fnum(p.Progress), fnum(p.FlowSpeed)),
		`    \pgfmathsetmacro{\coinx}{\baseX + \animOffset}`,
		`    \pgfmathparse{\coinx > \xE-0.5}`,
		`    \ifnum\pgfmathresult=1`,
		`      \pgfmathsetmacro{\excess}{\coinx - (\xE-0.5)}`,
		`      \pgfmathsetmacro{\wrapDist}{mod(\excess, \xE-0.5 - \clogEnd)}`,
		`      \pgfmathsetmacro{\coinx}{\clogEnd + \wrapDist}`,
		`    \fi`,
		`    \pgfmathparse{\coinx < \clogEnd}`,
		`    \ifnum\pgfmathresult=1`,
		`      \pgfmathsetmacro{\coinx}{\clogEnd + 0.05}`,
		`    \fi`,
		`    \pgfmathparse{(\coinx >= \clogEnd) && (\coinx <= \xE-0.5) ? 1 : 0}`,
		`    \ifnum\pgfmathresult=1`,
		`      \pgfmathsetmacro{\coiny}{(rnd-0.5)*1.4*(\rA-0.08)}`,
		`      \pgfmathsetmacro{\angle}{(rnd-0.5)*40}`,
		`      \begin{scope}[shift={(\coinx,\coiny)}, rotate=\angle]`,
	)
	out = appendCoin(out, "        ")
	out = append(out,
		`      \end{scope}`,
		`    \fi`,
		`  }`,
		`  % Piled-up coins at the clog (accumulated over time)`,
		fmt.Sprintf(`  \pgfmathsetseed{%d}  %% Different seed for pile-up coins`, PileSeed),
		fmt.Sprintf(`  \pgfmathsetmacro{\pileCount}{%d}`, p.PileCount),
		`  \pgfmathparse{\pileCount > 0 ? 1 : 0}`,
		`  \ifnum\pgfmathresult=1`,
		`    \foreach \k in {0,...,\pileCount} {`,
		`      \pgfmathsetmacro{\pileX}{\clogEnd - 0.3 + \k*0.25/\pileCount}`,
		`      \pgfmathsetmacro{\pileY}{(rnd-0.5)*1.4*(\rA-0.08)}`,
		`      \pgfmathsetmacro{\pileAngle}{(rnd-0.5)*40}`,
		`      \begin{scope}[shift={(\pileX,\pileY)}, rotate=\pileAngle]`,
	)
	out = appendCoin(out, "        ")
	out = append(out,
		`      \end{scope}`,
		`    }`,
		`  \fi`,
	)
	return out
}

// appendStream rewrites a vertical stream directive. The directive must carry
// exactly seven brace arguments (x, y, count, spacing, angle1, angle2, seed)
// with a numeric y; anything else passes through byte-identical rather than
// erroring, so a hand-edited template still compiles.
func appendStream(out []string, line string, frameIndex, totalFrames int, p motion.Params) []string {
	args, ok := streamArgs(line)
	if !ok {
		return append(out, line)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
	if err != nil {
		return append(out, line)
	}
	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	adjusted := y + StreamStartAdjust + p.Progress*p.FallSpeed
	out = append(out,
		fmt.Sprintf(`%s%% Animated vertical coin stream (frame %d/%d)`, indent, frameIndex+1, totalFrames),
		fmt.Sprintf(`%s\drawCoinStreamVertical{%s}{%s}{%s}{%s}{%s}{%s}{%s}`,
			indent, args[0], fnum(adjusted), args[2], args[3], args[4], args[5], args[6]),
	)
	return out
}

// streamArgs extracts the brace arguments of a stream directive line. It
// returns ok only for exactly seven balanced groups followed by nothing but
// whitespace.
func streamArgs(line string) ([7]string, bool) {
	var args [7]string
	idx := strings.Index(line, StreamDirectiveMarker)
	if idx < 0 {
		return args, false
	}
	rest := line[idx+len(StreamDirectiveMarker)-1:] // keep the first '{'
	n := 0
	for strings.HasPrefix(rest, "{") {
		arg, tail, ok := braceGroup(rest)
		if !ok {
			return args, false
		}
		if n >= len(args) {
			return args, false // more than seven arguments
		}
		args[n] = arg
		n++
		rest = tail
	}
	if n != len(args) || strings.TrimSpace(rest) != "" {
		return args, false
	}
	return args, true
}

// braceGroup splits "{...}" off the front of s, honoring nested braces.
func braceGroup(s string) (content, rest string, ok bool) {
	if !strings.HasPrefix(s, "{") {
		return "", "", false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[1:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}
