// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package model

import "errors"

// Typed domain errors returned at the mutation boundary. The facade
// maps these to protocol-level error responses.
var (
	ErrUnknownFixture = errors.New("unknown fixture")
	ErrUnknownGroup   = errors.New("unknown group")
	ErrUnknownScene   = errors.New("unknown scene")
	ErrUnknownSwitch  = errors.New("unknown switch")
	ErrUnknownProfile = errors.New("circadian profile not loaded")

	ErrBrightnessRange = errors.New("brightness out of range [0,1]")
	ErrCCTRange        = errors.New("color temperature out of range [1000,10000]")
	ErrChannelRange    = errors.New("DMX channel out of range [1,512]")

	ErrDualSwitchTarget = errors.New("switch must target exactly one of fixture or group")
	ErrGroupDepth       = errors.New("group nesting exceeds maximum depth of 4")
	ErrGroupCycle       = errors.New("group hierarchy cycle")

	ErrAlreadyRegistered = errors.New("already registered")
)
