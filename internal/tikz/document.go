/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tikz

import "strings"

// preamble is the fixed head of every frame document. The template fragment
// is compiled as a standalone single-page document.
const preamble = `\documentclass[tikz]{standalone}
\usepackage{tikz}
\usetikzlibrary{patterns,decorations.pathmorphing}
\usetikzlibrary{decorations.markings}
\usetikzlibrary{arrows.meta}
\usetikzlibrary{calc}
\tikzset{>=latex}`

// backgroundOptions forces an opaque white canvas so the rasterized frames
// have no transparent background to flicker over.
const backgroundOptions = `background rectangle/.style={fill=white}, show background rectangle`

const tikzpictureOpen = `\begin{tikzpicture}`

// importsToDisable lists preamble declarations the frame documents must not
// depend on. Each matching line is commented out.
var importsToDisable = []string{
	`\usepackage[outline]{contour}`,
	`\contourlength{1.1pt}`,
	`\usepackage{physics}`,
}

// CleanImports comments out the optional declarations in the shared import
// fragment that this template does not use. The operation is idempotent:
// lines that are already comments are left alone, so cleaning a cleaned
// fragment is a no-op.
func CleanImports(imports string) string {
	lines := SplitLines(imports)
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "%") {
			continue
		}
		for _, target := range importsToDisable {
			if strings.HasPrefix(trimmed, target) {
				indent := line[:len(line)-len(trimmed)]
				lines[i] = indent + "% " + trimmed
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// InjectBackground adds the white-background options to the first
// tikzpicture opening tag of the fragment. Existing options are kept, with
// the background options prepended; a bare opening tag gets the background
// options as its only options. Fragments without a tikzpicture are returned
// unchanged.
func InjectBackground(fragment string) string {
	idx := strings.Index(fragment, tikzpictureOpen)
	if idx < 0 {
		return fragment
	}
	head := fragment[:idx+len(tikzpictureOpen)]
	tail := fragment[idx+len(tikzpictureOpen):]
	if strings.HasPrefix(tail, "[") {
		return head + "[" + backgroundOptions + ", " + tail[1:]
	}
	return head + "[" + backgroundOptions + "]" + tail
}

// Wrap assembles a complete standalone document from a rewritten fragment
// and the shared import text: preamble, cleaned imports, background-adjusted
// fragment, terminator, in that fixed order.
func Wrap(fragment, imports string) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\n")
	b.WriteString(CleanImports(imports))
	b.WriteString("\n\n")
	b.WriteString(`\begin{document}`)
	b.WriteString("\n")
	b.WriteString(InjectBackground(fragment))
	b.WriteString("\n")
	b.WriteString(`\end{document}`)
	b.WriteString("\n")
	return b.String()
}
