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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	applog "gotikzanim/internal/log"
	"gotikzanim/internal/motion"
	"gotikzanim/internal/tikz"
)

// Options is the caller-configurable surface of one render run. Zero values
// fall back to the defaults the CLI documents.
type Options struct {
	Template string // template path, required
	Imports  string // shared import fragment path, optional
	OutDir   string // run directory, required
	Output   string // final GIF path, required

	Frames  int     // default 60
	FPS     int     // default 15
	Speed   float64 // default 1.0
	Density int     // default 300 DPI
	Scale   float64 // default 1.0

	Motion motion.Config // zero value means motion.Defaults()
}

func (o Options) withDefaults() Options {
	if o.Frames <= 0 {
		o.Frames = 60
	}
	if o.FPS <= 0 {
		o.FPS = 15
	}
	if o.Speed <= 0 {
		o.Speed = 1.0
	}
	if o.Density <= 0 {
		o.Density = 300
	}
	if o.Scale <= 0 {
		o.Scale = 1.0
	}
	if o.Motion == (motion.Config{}) {
		o.Motion = motion.Defaults()
	}
	return o
}

// EffectiveDensity is the resolution frames actually render at: the
// requested density multiplied by the scale factor.
func (o Options) EffectiveDensity() int {
	return int(float64(o.Density) * o.Scale)
}

// RunResult aggregates the outcome of one run.
type RunResult struct {
	Requested int
	Succeeded int
	Frames    []FrameOutcome
	Assembly  AssembleResult
	Artifact  string
	Started   time.Time
	Finished  time.Time
}

// FrameBase returns the zero-padded stem of frame i's files.
func FrameBase(i int) string { return fmt.Sprintf("frame_%04d", i) }

// FramePNGs returns the expected frame image paths of a run, in index order.
func FramePNGs(dir string, frames int) []string {
	paths := make([]string, 0, frames)
	for i := 0; i < frames; i++ {
		paths = append(paths, filepath.Join(dir, FrameBase(i)+".png"))
	}
	return paths
}

// Pipeline renders frames strictly sequentially, in increasing index order,
// and assembles whatever rendered into the final artifact. Template and
// import text are re-read fresh for every frame; no state is shared across
// iterations.
type Pipeline struct {
	Toolkit  Toolkit
	Log      *slog.Logger
	Progress io.Writer // per-frame progress lines; nil discards

	// test seams; nil means the real implementations
	renderFrameFn func(ctx context.Context, opts Options, index int) FrameOutcome
	assembleFn    func(ctx context.Context, paths []string, out string, fps int) (AssembleResult, error)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return applog.WithComponent("render")
}

func (p *Pipeline) progress() io.Writer {
	if p.Progress != nil {
		return p.Progress
	}
	return io.Discard
}

// Run executes one full render: for each frame, rewrite, wrap, compile and
// rasterize; then assemble. A failed frame is counted and excluded, not
// retried. Assembly proceeds when at least one frame rendered; zero rendered
// frames abort the run before assembly. The run manifest is written into the
// run directory in every case.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*RunResult, error) {
	opts = opts.withDefaults()
	if opts.Template == "" {
		return nil, errors.New("render: template path required")
	}
	if opts.OutDir == "" || opts.Output == "" {
		return nil, errors.New("render: output directory and artifact path required")
	}
	if err := p.Toolkit.Check(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	renderFrame := p.renderFrameFn
	if renderFrame == nil {
		renderFrame = p.renderFrame
	}
	assemble := p.assembleFn
	if assemble == nil {
		assemble = func(ctx context.Context, paths []string, out string, fps int) (AssembleResult, error) {
			return assembleGIF(ctx, p.Toolkit, paths, out, fps)
		}
	}

	log := applog.WithOperation(p.logger(), "run")
	log.Info("render started",
		slog.String("template", opts.Template),
		slog.Int("frames", opts.Frames),
		slog.Int("fps", opts.FPS),
		slog.Int("density", opts.Density),
		slog.Float64("scale", opts.Scale),
		slog.Float64("speed", opts.Speed),
	)

	res := &RunResult{Requested: opts.Frames, Started: time.Now()}
	progress := p.progress()
	for i := 0; i < opts.Frames; i++ {
		if err := ctx.Err(); err != nil {
			// a run may only be interrupted between frames
			res.Finished = time.Now()
			p.writeManifest(opts, res, log)
			return res, err
		}
		fmt.Fprintf(progress, "frame %3d/%d... ", i+1, opts.Frames)
		fo := renderFrame(ctx, opts, i)
		res.Frames = append(res.Frames, fo)
		if fo.OK {
			res.Succeeded++
			fmt.Fprintln(progress, "ok")
		} else {
			fmt.Fprintln(progress, "failed")
			log.Error("frame failed", slog.Int("frame", fo.Index), slog.String("err", fo.Error))
		}
	}

	if res.Succeeded == 0 {
		res.Finished = time.Now()
		p.writeManifest(opts, res, log)
		return res, fmt.Errorf("no frames rendered (0/%d); aborting before assembly", opts.Frames)
	}
	if res.Succeeded < opts.Frames {
		log.Warn("partial run", slog.Int("succeeded", res.Succeeded), slog.Int("requested", opts.Frames))
	}

	ar, err := assemble(ctx, FramePNGs(opts.OutDir, opts.Frames), opts.Output, opts.FPS)
	res.Assembly = ar
	res.Finished = time.Now()
	if err != nil {
		p.writeManifest(opts, res, log)
		return res, fmt.Errorf("assemble: %w", err)
	}
	res.Artifact = opts.Output
	p.writeManifest(opts, res, log)
	log.Info("render finished",
		slog.Int("succeeded", res.Succeeded),
		slog.Int("requested", opts.Frames),
		slog.String("artifact", res.Artifact),
		slog.Int64("bytes", ar.SizeBytes),
	)
	return res, nil
}

// renderFrame produces one frame end to end: fresh template read, motion
// derivation, rewrite, wrap, two-pass compile, rasterize. Each step failure
// is recorded in the outcome rather than propagated, so the driver can keep
// going.
func (p *Pipeline) renderFrame(ctx context.Context, opts Options, index int) FrameOutcome {
	start := time.Now()
	fo := FrameOutcome{Index: index}
	fail := func(err error) FrameOutcome {
		fo.Error = err.Error()
		fo.DurationMs = time.Since(start).Milliseconds()
		return fo
	}

	template, err := os.ReadFile(opts.Template)
	if err != nil {
		return fail(fmt.Errorf("read template: %w", err))
	}
	var importText string
	if opts.Imports != "" {
		b, err := os.ReadFile(opts.Imports)
		if err != nil {
			return fail(fmt.Errorf("read imports: %w", err))
		}
		importText = string(b)
	}

	params, err := opts.Motion.Compute(index, opts.Frames, opts.Speed)
	if err != nil {
		return fail(err)
	}
	rewritten, err := tikz.Rewrite(string(template), index, opts.Frames, params)
	if err != nil {
		return fail(err)
	}
	doc := tikz.Wrap(rewritten, importText)

	base := FrameBase(index)
	texName := base + ".tex"
	if err := os.WriteFile(filepath.Join(opts.OutDir, texName), []byte(doc), 0o644); err != nil {
		return fail(fmt.Errorf("write frame document: %w", err))
	}
	if err := compileFrame(ctx, p.Toolkit.PDFLaTeX, opts.OutDir, texName); err != nil {
		return fail(err)
	}

	pdfPath := filepath.Join(opts.OutDir, base+".pdf")
	if n, perr := pageCount(pdfPath); perr == nil {
		fo.Pages = n
		if n != 1 {
			p.logger().Warn("frame compiled to unexpected page count",
				slog.Int("frame", index), slog.Int("pages", n))
		}
	} else {
		p.logger().Debug("page count unavailable", slog.Int("frame", index), slog.String("err", perr.Error()))
	}

	pngPath := filepath.Join(opts.OutDir, base+".png")
	if err := convertFrame(ctx, p.Toolkit, pdfPath, pngPath, opts.EffectiveDensity()); err != nil {
		return fail(err)
	}

	fo.OK = true
	fo.DurationMs = time.Since(start).Milliseconds()
	return fo
}

func (p *Pipeline) writeManifest(opts Options, res *RunResult, log *slog.Logger) {
	m := Manifest{
		Version:       ManifestVersion,
		Template:      opts.Template,
		Imports:       opts.Imports,
		OutDir:        opts.OutDir,
		Artifact:      res.Artifact,
		ArtifactBytes: res.Assembly.SizeBytes,
		Frames:        opts.Frames,
		FPS:           opts.FPS,
		Speed:         opts.Speed,
		Density:       opts.Density,
		Scale:         opts.Scale,
		Started:       res.Started,
		Finished:      res.Finished,
		Succeeded:     res.Succeeded,
		FrameOutcomes: res.Frames,
	}
	if err := WriteManifest(opts.OutDir, m); err != nil {
		log.Warn("run manifest not written", slog.String("err", err.Error()))
	}
}

// Cleanup removes the per-frame intermediates (frame_*.tex/.pdf/.png/.aux/
// .log) from a run directory, returning how many files were removed. The
// final artifact, the run manifest, and any derived exports are untouched.
func Cleanup(dir string) (int, error) {
	removed := 0
	for _, ext := range []string{".tex", ".pdf", ".png", ".aux", ".log"} {
		matches, err := filepath.Glob(filepath.Join(dir, "frame_*"+ext))
		if err != nil {
			return removed, err
		}
		for _, m := range matches {
			if err := os.Remove(m); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
