// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package dmxout

import (
	"math"

	"tau-daemon/internal/model"
)

// planckianXY approximates the CIE 1931 chromaticity of a blackbody
// radiator at the given temperature (Kim cubic spline, valid
// 1667-25000 K; inputs are clamped into that range).
func planckianXY(cct float64) (float64, float64) {
	t := math.Max(1667, math.Min(25000, cct))

	var x float64
	if t <= 4000 {
		x = -0.2661239e9/(t*t*t) - 0.2343589e6/(t*t) + 0.8776956e3/t + 0.179910
	} else {
		x = -3.0258469e9/(t*t*t) + 2.1070379e6/(t*t) + 0.2226347e3/t + 0.240390
	}

	var y float64
	switch {
	case t <= 2222:
		y = -1.1063814*x*x*x - 1.34811020*x*x + 2.18555832*x - 0.20219683
	case t <= 4000:
		y = -0.9549476*x*x*x - 1.37418593*x*x + 2.09137015*x - 0.16748867
	default:
		y = 3.0817580*x*x*x - 5.87338670*x*x + 3.75112997*x - 0.37001483
	}

	return x, y
}

// mixPlanckian solves the warm/cool drive levels that place the mixed
// chromaticity at the Planckian point for the target CCT, scaled by
// brightness. Returned levels are linear light, 0..1.
func mixPlanckian(m model.FixtureModel, cct float64, brightness float64) (float64, float64) {
	if brightness <= 0 {
		return 0, 0
	}

	xt, _ := planckianXY(cct)
	xw, yw := m.WarmXY.X, m.WarmXY.Y
	xc, yc := m.CoolXY.X, m.CoolXY.Y

	// Lever rule on the warm-cool chord: the tristimulus weights
	// (Y/y) split proportionally to the distance from each endpoint.
	var t float64
	if xc == xw {
		t = 0.5
	} else {
		t = (xc - xt) / (xc - xw)
	}
	t = math.Max(0, math.Min(1, t))

	warmY := t * yw
	coolY := (1 - t) * yc

	warmLumens := m.WarmLumens
	if warmLumens <= 0 {
		warmLumens = 1
	}
	coolLumens := m.CoolLumens
	if coolLumens <= 0 {
		coolLumens = 1
	}

	warm := warmY / warmLumens
	cool := coolY / coolLumens

	// Normalise so the dominant channel reaches the commanded brightness
	peak := math.Max(warm, cool)
	if peak <= 0 {
		return 0, 0
	}
	return warm / peak * brightness, cool / peak * brightness
}

// applyGamma converts a linear light level to a PWM drive level
func applyGamma(level, gamma float64) float64 {
	if gamma <= 0 {
		gamma = 2.2
	}
	if level <= 0 {
		return 0
	}
	if level >= 1 {
		return 1
	}
	return math.Pow(level, 1/gamma)
}

// quantise converts a 0..1 drive level to a DMX byte, clipping at 255
func quantise(level float64) uint8 {
	v := math.Round(level * 255)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
