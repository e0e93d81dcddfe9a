/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package render

import "fmt"

// PresetName represents a named render preset.
type PresetName string

const (
	PresetDraft PresetName = "draft"
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// PresetOverlay holds the option values a preset pins down. Fields the
// preset leaves at zero keep whatever the caller configured.
type PresetOverlay struct {
	FPS     int
	Density int
	Scale   float64
}

// Preset maps a named preset to its option overlay. Presets shape output
// quality, not animation length; Frames is never touched.
func Preset(name PresetName) (PresetOverlay, error) {
	switch name {
	case PresetDraft:
		// fast iteration: low density, fewer updates per second
		return PresetOverlay{FPS: 10, Density: 150, Scale: 1.0}, nil
	case PresetWeb:
		return PresetOverlay{FPS: 15, Density: 300, Scale: 1.0}, nil
	case PresetPrint:
		return PresetOverlay{FPS: 15, Density: 600, Scale: 1.0}, nil
	default:
		return PresetOverlay{}, fmt.Errorf("unknown preset: %s", name)
	}
}

// PresetNames lists the accepted preset names for CLI help.
func PresetNames() []string {
	return []string{string(PresetDraft), string(PresetWeb), string(PresetPrint)}
}
