// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package heatcontrol decides when the buffer tank takes over from the
// burner.
//
// The plant is modelled as a small state machine:
//
//	Init --Tick(>5s)--> BufferDisabled --Enable--> BufferEnabled
//	BufferEnabled --Disable--> BufferDisabled
//	BufferEnabled --ActivatePump--> PumpActive --Tick(>60s)--> PumpPause
//	PumpPause --Tick(>60s)--> BufferEnabled
//
// State.On is the pure transition function; Machine derives the event for
// each plant sample and keeps the current state. The actuator outputs are a
// pure function of the state, see State.Actuators.
package heatcontrol
