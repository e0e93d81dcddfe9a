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
	"os"
	"path/filepath"
	"testing"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

func TestRunManifestConformsToSchema(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.tex")
	if err := os.WriteFile(tmpl, []byte("x"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	outDir := filepath.Join(dir, "run")

	// exercise the real writer through a run with mixed outcomes
	p := &Pipeline{
		Toolkit: stubToolkit(),
		renderFrameFn: func(ctx context.Context, opts Options, index int) FrameOutcome {
			if index == 1 {
				return FrameOutcome{Index: index, DurationMs: 3, Error: "broken frame"}
			}
			return FrameOutcome{Index: index, OK: true, Pages: 1, DurationMs: 5}
		},
		assembleFn: func(ctx context.Context, paths []string, out string, fps int) (AssembleResult, error) {
			return AssembleResult{Used: 2, SizeBytes: 42}, nil
		},
	}
	if _, err := p.Run(context.Background(), Options{
		Template: tmpl,
		OutDir:   outDir,
		Output:   filepath.Join(dir, "anim.gif"),
		Frames:   3,
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, ManifestFileName))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}

	schemaPath := filepath.Join("..", "..", "docs", "run.schema.json")
	schemaBytes, err := os.ReadFile(schemaPath)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaBytes)
	docLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		t.Fatalf("schema validate error: %v", err)
	}
	if !result.Valid() {
		for _, e := range result.Errors() {
			t.Logf("schema error: %s", e)
		}
		t.Fatalf("run manifest does not conform to schema")
	}
}
