//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"gotikzanim/internal/crash"
	applog "gotikzanim/internal/log"
)

// Preview opens a window that plays the GIF at path in a loop with
// play/pause and single-step controls.
func Preview(path string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")

	defer crash.Recover(filepath.Dir(path))

	anim, err := LoadAnimation(path)
	if err != nil {
		return err
	}
	l.Info("previewing animation",
		slog.String("file", filepath.Base(path)),
		slog.Int("frames", len(anim.Frames)))

	fyneApp := app.NewWithID("gotikzanim")
	w := fyneApp.NewWindow("Go TikZ Animator - " + filepath.Base(path))
	// Restore window size from preferences (with sane minimums)
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("preview.width", anim.Size.X+40)
	winH := prefs.IntWithFallback("preview.height", anim.Size.Y+120)
	if winW < 320 {
		winW = 320
	}
	if winH < 240 {
		winH = 240
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	img := canvas.NewImageFromImage(anim.Frames[0])
	img.FillMode = canvas.ImageFillContain
	img.SetMinSize(fyne.NewSize(float32(anim.Size.X), float32(anim.Size.Y)))

	frameLabel := widget.NewLabel(fmt.Sprintf("frame 1/%d", len(anim.Frames)))
	show := func(i int) {
		img.Image = anim.Frames[i]
		img.Refresh()
		frameLabel.SetText(fmt.Sprintf("frame %d/%d", i+1, len(anim.Frames)))
	}

	var playing atomic.Bool
	playing.Store(true)
	step := make(chan struct{}, 1)
	stop := make(chan struct{})

	var playBtn *widget.Button
	playBtn = widget.NewButton("Pause", func() {
		if playing.Load() {
			playing.Store(false)
			playBtn.SetText("Play")
		} else {
			playing.Store(true)
			playBtn.SetText("Pause")
		}
	})
	stepBtn := widget.NewButton("Step", func() {
		playing.Store(false)
		playBtn.SetText("Play")
		select {
		case step <- struct{}{}:
		default:
		}
	})

	// Playback loop owns the frame index; UI updates go through fyne.Do.
	go func() {
		i := 0
		timer := time.NewTimer(anim.Delays[0])
		defer timer.Stop()
		for {
			select {
			case <-stop:
				return
			case <-timer.C:
				if playing.Load() {
					i = (i + 1) % len(anim.Frames)
					n := i
					fyne.Do(func() { show(n) })
				}
				timer.Reset(anim.Delays[i])
			case <-step:
				i = (i + 1) % len(anim.Frames)
				n := i
				fyne.Do(func() { show(n) })
				timer.Reset(anim.Delays[i])
			}
		}
	}()

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("preview.width", int(sz.Width))
		prefs.SetInt("preview.height", int(sz.Height))
		close(stop)
		w.Close()
	})

	loopLabel := widget.NewLabel(fmt.Sprintf("loop %.1fs", anim.Duration().Seconds()))
	bottom := container.NewHBox(playBtn, stepBtn, frameLabel, loopLabel)
	w.SetContent(container.NewBorder(nil, bottom, nil, nil, img))
	w.ShowAndRun()
	return nil
}
