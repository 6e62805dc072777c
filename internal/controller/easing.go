// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package controller

import "tau-daemon/internal/transition"

// easingOrDefault parses a facade easing name, falling back to the
// smooth default on unknown input rather than failing the command.
func easingOrDefault(s string) transition.Easing {
	e, err := transition.ParseEasing(s)
	if err != nil {
		return transition.EaseInOut
	}
	return e
}
