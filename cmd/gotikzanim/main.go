/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gotikzanim/internal/config"
	"gotikzanim/internal/crash"
	"gotikzanim/internal/export"
	"gotikzanim/internal/gallery"
	"gotikzanim/internal/history"
	applog "gotikzanim/internal/log"
	"gotikzanim/internal/render"
	"gotikzanim/internal/telemetry"
	"gotikzanim/internal/ui"
	"gotikzanim/internal/version"
)

func usage() {
	fmt.Println("Go TikZ Animator")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gotikzanim version|-v|--version             Show version")
	fmt.Println("  gotikzanim probe                            Check for pdflatex, ImageMagick and Ghostscript")
	fmt.Println("  gotikzanim render [flags] <template.tex>    Render the template into a looping GIF")
	fmt.Println("  gotikzanim history [flags]                  List recent runs from the local ledger")
	fmt.Println("  gotikzanim publish [flags] [<run-dir>]      Upload a finished animation to the gallery")
	fmt.Println("  gotikzanim serve                            Run the gallery server (Postgres required)")
	fmt.Println("  gotikzanim preview <gif>                    Play an animation (build with -tags fyne)")
	fmt.Println()
	fmt.Println("Run 'gotikzanim render -h' etc. for subcommand flags.")
}

func main() {
	cfg, token, cfgErr := config.Load()
	if cfgErr != nil {
		applog.Init(applog.FromEnv())
	} else {
		applog.Init(applog.Options{
			Level:     cfg.Logging.Level,
			Format:    cfg.Logging.Format,
			AddSource: cfg.Logging.Source,
			File:      cfg.Logging.File,
		})
	}
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", cfgErr))
	}

	tcfg := telemetry.FromEnv()
	if cfg.General.TelemetryOptIn {
		tcfg.OptIn = true
	}
	telemetry.NewDefault(tcfg)

	var runDir string
	defer func() { crash.Recover(runDir) }()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("Go TikZ Animator")
			fmt.Println(version.String())
			return
		case "probe":
			runProbe()
			return
		case "render":
			runRender(l, cfg, args[2:], &runDir)
			return
		case "history":
			runHistory(args[2:])
			return
		case "publish":
			runPublish(l, cfg, token, args[2:])
			return
		case "serve":
			if err := gallery.Start(); err != nil {
				l.Error("gallery server failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "preview":
			if len(args) < 3 {
				fmt.Println("preview requires <gif>")
				usage()
				os.Exit(2)
			}
			if err := ui.Preview(args[2]); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		}
	}

	usage()
}

func runProbe() {
	tk := render.Discover()
	for _, st := range tk.Status() {
		state := "ok"
		if st.Path == "" {
			if st.Required {
				state = "missing"
			} else {
				state = "missing (optional)"
			}
		}
		fmt.Printf("%-12s %-20s %s\n", st.Name, state, st.Path)
		if st.Path == "" && st.Hint != "" {
			fmt.Printf("             hint: %s\n", st.Hint)
		}
	}
	if tk.Magick != "" {
		gen := "v6 (flags before input)"
		if tk.Style.Order == render.InputFirst {
			gen = "v7 (input before flags)"
		}
		fmt.Printf("ImageMagick call style: %s\n", gen)
	}
	if err := tk.Check(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	fmt.Println("Toolchain ready.")
}

func runRender(l *slog.Logger, cfg config.AppConfig, args []string, runDir *string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	frames := fs.Int("frames", cfg.Render.Frames, "number of frames to render")
	fps := fs.Int("fps", cfg.Render.FPS, "playback frames per second")
	speed := fs.Float64("speed", cfg.Render.Speed, "motion speed multiplier")
	density := fs.Int("density", cfg.Render.Density, "raster density in DPI")
	scale := fs.Float64("scale", cfg.Render.Scale, "output scale factor applied to density")
	outDir := fs.String("out", "", "run directory for frames and run.json (default frames_<timestamp> next to the template)")
	gifOut := fs.String("gif", "", "output GIF path; a bare name lands in the run directory (default <template>_animated.gif)")
	imports := fs.String("imports", cfg.Render.Imports, "shared import fragment (default sibling tikz_imports.tex if present)")
	preset := fs.String("preset", "", "named quality preset: "+strings.Join(render.PresetNames(), ", ")+" (explicit flags win)")
	clean := fs.Bool("clean", false, "remove frame_* intermediates after a successful run")
	sheet := fs.Bool("sheet", false, "write a contact sheet PDF of the rendered frames")
	poster := fs.Bool("poster", false, "write a PNG poster of the first rendered frame")
	archive := fs.Bool("archive", false, "zip the rendered frames into frames.zip")
	noHistory := fs.Bool("no-history", false, "do not record this run in the local history ledger")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: gotikzanim render [flags] <template.tex>")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if p := strings.TrimSpace(*preset); p != "" {
		ov, err := render.Preset(render.PresetName(p))
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			fs.Usage()
			os.Exit(2)
		}
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if !set["fps"] {
			*fps = ov.FPS
		}
		if !set["density"] {
			*density = ov.Density
		}
		if !set["scale"] {
			*scale = ov.Scale
		}
	}

	template := strings.TrimSpace(fs.Arg(0))
	if template == "" {
		template = cfg.Render.Template
	}
	if template == "" {
		fmt.Fprintln(os.Stderr, "render requires <template.tex>")
		fs.Usage()
		os.Exit(2)
	}

	stem := strings.TrimSuffix(filepath.Base(template), filepath.Ext(template))
	dir := strings.TrimSpace(*outDir)
	if dir == "" {
		dir = filepath.Join(filepath.Dir(template), "frames_"+time.Now().Format("20060102_150405"))
	}
	out := strings.TrimSpace(*gifOut)
	switch {
	case out == "":
		out = filepath.Join(dir, stem+"_animated.gif")
	case filepath.Base(out) == out:
		// A bare filename lands in the run directory; paths are respected.
		out = filepath.Join(dir, out)
	}
	imp := strings.TrimSpace(*imports)
	if imp == "" {
		sibling := filepath.Join(filepath.Dir(template), "tikz_imports.tex")
		if _, err := os.Stat(sibling); err == nil {
			imp = sibling
		}
	}

	*runDir = dir

	opts := render.Options{
		Template: template,
		Imports:  imp,
		OutDir:   dir,
		Output:   out,
		Frames:   *frames,
		FPS:      *fps,
		Speed:    *speed,
		Density:  *density,
		Scale:    *scale,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry.Event("render_started", map[string]any{
		"frames": opts.Frames,
		"fps":    opts.FPS,
	})

	p := &render.Pipeline{Toolkit: render.Discover(), Log: l, Progress: os.Stdout}
	res, err := p.Run(ctx, opts)
	if err != nil {
		telemetry.Event("render_aborted", map[string]any{"frames": opts.Frames})
		l.Error("render failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		if !*noHistory {
			recordHistory(l, dir)
		}
		flushTelemetry()
		os.Exit(1)
	}

	fmt.Printf("Rendered %d/%d frames\n", res.Succeeded, res.Requested)
	if len(res.Assembly.Missing) > 0 {
		fmt.Printf("Skipped missing frames: %s\n", strings.Join(res.Assembly.Missing, ", "))
	}
	fmt.Printf("Animation: %s (%.2f MB)\n", res.Artifact, float64(res.Assembly.SizeBytes)/(1024*1024))
	fmt.Printf("Elapsed: %s\n", res.Finished.Sub(res.Started).Round(time.Millisecond))

	telemetry.Event("render_finished", map[string]any{
		"frames":         res.Requested,
		"succeeded":      res.Succeeded,
		"duration_ms":    res.Finished.Sub(res.Started).Milliseconds(),
		"artifact_bytes": res.Assembly.SizeBytes,
	})

	if *sheet {
		sheetPath := filepath.Join(dir, "contact_sheet.pdf")
		n, err := export.ContactSheet(render.FramePNGs(dir, res.Requested), sheetPath, export.SheetOptions{Title: stem})
		if err != nil {
			l.Error("contact sheet failed", slog.Any("err", err))
			fmt.Println("Error:", err)
		} else {
			fmt.Printf("Contact sheet: %s (%d frames)\n", sheetPath, n)
		}
	}
	if *poster {
		var src string
		for _, fo := range res.Frames {
			if fo.OK {
				src = filepath.Join(dir, render.FrameBase(fo.Index)+".png")
				break
			}
		}
		if src == "" {
			l.Warn("poster skipped; no rendered frame")
		} else {
			posterPath := strings.TrimSuffix(out, filepath.Ext(out)) + "_poster.png"
			if err := export.WritePoster(src, posterPath, export.PosterOptions{}); err != nil {
				l.Error("poster failed", slog.Any("err", err))
				fmt.Println("Error:", err)
			} else {
				fmt.Printf("Poster: %s\n", posterPath)
			}
		}
	}
	if *archive {
		zipPath := filepath.Join(dir, "frames.zip")
		n, err := export.ArchiveFrames(dir, zipPath)
		if err != nil {
			l.Error("frames archive failed", slog.Any("err", err))
			fmt.Println("Error:", err)
		} else {
			fmt.Printf("Frames archive: %s (%d frames)\n", zipPath, n)
		}
	}

	if !*noHistory {
		recordHistory(l, dir)
	}

	if *clean {
		if cfg.Render.KeepFrames {
			l.Info("keep_frames set in config; skipping cleanup")
		} else {
			n, err := render.Cleanup(dir)
			if err != nil {
				l.Warn("cleanup incomplete", slog.Any("err", err))
			} else {
				fmt.Printf("Removed %d intermediate files\n", n)
			}
		}
	}

	flushTelemetry()
}

// recordHistory appends the run manifest to the local ledger. Ledger
// trouble never fails a render; it only warns.
func recordHistory(l *slog.Logger, runDir string) {
	m, err := render.ReadManifest(runDir)
	if err != nil {
		l.Warn("history: read manifest failed", slog.Any("err", err))
		return
	}
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}
	led, err := history.Open(root)
	if err != nil {
		l.Warn("history: open ledger failed", slog.Any("err", err))
		return
	}
	defer led.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := led.RecordRun(ctx, m); err != nil {
		l.Warn("history: record failed", slog.Any("err", err))
	}
}

func flushTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	telemetry.Flush(ctx)
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	template := fs.String("template", "", "filter runs by template path")
	limit := fs.Int("limit", 20, "maximum number of runs to list")
	framesID := fs.Int64("frames", 0, "show per-frame outcomes for the given run id")
	prune := fs.Int("prune", 0, "keep only the newest N runs and delete the rest")
	dir := fs.String("dir", "", "workspace root holding the ledger (default current directory)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: gotikzanim history [flags]")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	root := strings.TrimSpace(*dir)
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		root = wd
	}
	led, err := history.Open(root)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	defer led.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if *prune > 0 {
		n, err := led.Prune(ctx, *prune)
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		fmt.Printf("Pruned %d runs\n", n)
		return
	}
	if *framesID > 0 {
		recs, err := led.Frames(ctx, *framesID)
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		if len(recs) == 0 {
			fmt.Printf("No frames recorded for run %d\n", *framesID)
			return
		}
		for _, fr := range recs {
			status := "ok"
			if !fr.OK {
				status = "failed"
			}
			line := fmt.Sprintf("frame %4d  %-6s  %5d ms", fr.Index, status, fr.DurationMs)
			if fr.OK && fr.Pages != 1 {
				line += fmt.Sprintf("  pages=%d", fr.Pages)
			}
			if fr.Error != "" {
				line += "  " + fr.Error
			}
			fmt.Println(line)
		}
		return
	}

	runs, err := led.Runs(ctx, strings.TrimSpace(*template), *limit)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return
	}
	for _, r := range runs {
		artifact := r.Artifact
		if artifact == "" {
			artifact = "-"
		}
		fmt.Printf("#%-4d %s  %-24s %3d/%-3d  %s\n",
			r.ID, r.Started.Local().Format("2006-01-02 15:04"),
			filepath.Base(r.Template), r.Succeeded, r.Frames, artifact)
	}
}

func runPublish(l *slog.Logger, cfg config.AppConfig, token string, args []string) {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	gifPath := fs.String("gif", "", "animation to upload (default artifact from <run-dir>/run.json)")
	baseURL := fs.String("url", cfg.Gallery.BaseURL, "gallery base URL")
	tokenFlag := fs.String("token", "", "bearer token (default from OS keyring)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: gotikzanim publish [flags] [<run-dir>]")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	runDir := strings.TrimSpace(fs.Arg(0))
	gif := strings.TrimSpace(*gifPath)
	manifestPath := ""
	if runDir != "" {
		m, err := render.ReadManifest(runDir)
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		manifestPath = filepath.Join(runDir, render.ManifestFileName)
		if gif == "" {
			gif = m.Artifact
		}
		// The manifest records the artifact path as given at render time,
		// which is usually relative to the directory render ran in.
		if gif != "" {
			if _, err := os.Stat(gif); err != nil {
				alt := filepath.Join(runDir, filepath.Base(gif))
				if _, aerr := os.Stat(alt); aerr == nil {
					gif = alt
				}
			}
		}
	}
	if gif == "" {
		fmt.Fprintln(os.Stderr, "publish requires -gif or a <run-dir> with run.json")
		fs.Usage()
		os.Exit(2)
	}
	if _, err := os.Stat(gif); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	tok := strings.TrimSpace(*tokenFlag)
	if tok == "" {
		tok = token
	}
	if tok == "" {
		l.Warn("no gallery token; the server may reject the upload")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := gallery.NewClient(*baseURL, tok, cfg.Gallery.Timeout())
	id, err := c.Publish(ctx, gif, manifestPath)
	if err != nil {
		l.Error("publish failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	fmt.Printf("Published run #%d to %s\n", id, strings.TrimRight(*baseURL, "/"))
}
