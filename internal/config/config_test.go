/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// memStore keeps tokens in memory so tests never touch the OS keyring.
type memStore struct{ m map[string]string }

func (s *memStore) Get(service, key string) (string, error) {
	v, ok := s.m[service+"/"+key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}
func (s *memStore) Set(service, key, value string) error {
	s.m[service+"/"+key] = value
	return nil
}
func (s *memStore) Delete(service, key string) error {
	delete(s.m, service+"/"+key)
	return nil
}

func useMemStore(t *testing.T) *memStore {
	t.Helper()
	old := tokenStore
	ms := &memStore{m: map[string]string{}}
	tokenStore = ms
	t.Cleanup(func() { tokenStore = old })
	return ms
}

func TestEnvOverridesGalleryURL(t *testing.T) {
	useMemStore(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvGalleryURL, "https://example.test:8443")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Gallery.BaseURL, "https://example.test:8443"; got != want {
		t.Fatalf("Gallery.BaseURL = %q, want %q", got, want)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	useMemStore(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvTelemetryOptIn, "true")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestMergeIncludesRender(t *testing.T) {
	// Given a file config that sets render values, mergeInto should carry them through
	dst := Defaults()
	src := Defaults()
	src.Render.Frames = 120
	src.Render.FPS = 30
	src.Render.Density = 600
	src.Render.Scale = 0.5
	src.Render.Template = "diagrams/pipeline.tex"
	src.Render.KeepFrames = true
	mergeInto(&dst, &src)
	if dst.Render.Frames != 120 || dst.Render.FPS != 30 || dst.Render.Density != 600 {
		t.Fatalf("render ints not merged: %#v", dst.Render)
	}
	if dst.Render.Scale != 0.5 || dst.Render.Template != "diagrams/pipeline.tex" || !dst.Render.KeepFrames {
		t.Fatalf("render fields not merged: %#v", dst.Render)
	}
}

func TestMergeIgnoresZeroRenderValues(t *testing.T) {
	dst := Defaults()
	var src AppConfig // all zero: nothing set in the file
	mergeInto(&dst, &src)
	if dst.Render.Frames != 60 || dst.Render.FPS != 15 || dst.Render.Density != 300 {
		t.Fatalf("defaults clobbered by empty file config: %#v", dst.Render)
	}
	if dst.Render.Scale != 1.0 || dst.Render.Speed != 1.0 {
		t.Fatalf("defaults clobbered by empty file config: %#v", dst.Render)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "C:/tmp/gta.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "C:/tmp/gta.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	useMemStore(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "X:/gta.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/gta.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ms := useMemStore(t)
	t.Setenv("HOME", t.TempDir())
	os.Unsetenv(EnvGalleryURL)

	cfg := Defaults()
	cfg.Render.FPS = 24
	cfg.Gallery.BaseURL = "https://gallery.example"
	if err := Save(cfg, "secret-token"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	p, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() error: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("config file missing after Save: %v", err)
	}
	if filepath.Base(p) != "config.yaml" {
		t.Fatalf("unexpected config filename: %s", p)
	}

	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Render.FPS != 24 || got.Gallery.BaseURL != "https://gallery.example" {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if tok != "secret-token" {
		t.Fatalf("token round trip mismatch: %q", tok)
	}
	if len(ms.m) != 1 {
		t.Fatalf("expected exactly one keyring entry, got %d", len(ms.m))
	}
}

func TestGalleryTimeout(t *testing.T) {
	g := GalleryConfig{TimeoutMs: 2500}
	if got, want := g.Timeout(), 2500*time.Millisecond; got != want {
		t.Fatalf("Timeout() = %v, want %v", got, want)
	}
	g.TimeoutMs = 0
	if got, want := g.Timeout(), 15*time.Second; got != want {
		t.Fatalf("Timeout() fallback = %v, want %v", got, want)
	}
}
