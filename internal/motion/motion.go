/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package motion derives the per-frame animation parameters from a frame
// index. It is a pure computation: same inputs, same outputs, no ambient
// state. The template rewriter consumes the resulting Params to synthesize
// frame-specific drawing code.
package motion

import (
	"fmt"
	"math"
)

// Config holds the calibration constants of the motion model. The base speeds
// are tuned so that a full loop at speed factor 1.0 drifts slowly rather than
// at a fixed physical rate.
type Config struct {
	// BaseFlowSpeed scales the horizontal drift of the flowing elements.
	BaseFlowSpeed float64
	// BaseFallSpeed scales the vertical drift of the falling streams.
	BaseFallSpeed float64
	// PileMax bounds how many accumulated elements a full loop piles up.
	PileMax int
}

// Defaults returns the calibrated constants used by the animator.
func Defaults() Config {
	return Config{
		BaseFlowSpeed: 0.05,
		BaseFallSpeed: 0.041,
		PileMax:       25,
	}
}

// Params are the derived per-frame values consumed by the rewriter.
type Params struct {
	// Progress is the loop position in [0, 1).
	Progress float64
	// FlowSpeed is BaseFlowSpeed scaled by the caller's speed factor.
	FlowSpeed float64
	// FallSpeed is BaseFallSpeed scaled by the caller's speed factor.
	FallSpeed float64
	// PileCount is the number of accumulated elements for this frame,
	// in [0, PileMax].
	PileCount int
}

// Compute derives the motion parameters for one frame. index is the 0-based
// frame number; totalFrames must be positive. speedFactor stretches or
// compresses the drift (1.0 is the calibrated pace).
func (c Config) Compute(index, totalFrames int, speedFactor float64) (Params, error) {
	if totalFrames <= 0 {
		return Params{}, fmt.Errorf("motion: total frames must be positive, got %d", totalFrames)
	}
	progress := math.Mod(float64(index)/float64(totalFrames), 1.0)
	return Params{
		Progress:  progress,
		FlowSpeed: c.BaseFlowSpeed * speedFactor,
		FallSpeed: c.BaseFallSpeed * speedFactor,
		PileCount: int(progress * float64(c.PileMax)),
	}, nil
}
