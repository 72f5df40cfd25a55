// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package heatcontrol

import (
	"strconv"

	"github.com/keepitwarm/heatctl/plant"
)

// Mode is the operating mode of the plant.
type Mode uint8

// Operating modes. ModeError is only displayed; no transition leads to it.
const (
	ModeError Mode = iota
	ModeInit
	ModeBufferDisabled
	ModeBufferEnabled
	ModePumpActive
	ModePumpPause
)

var modeLabels = [...]string{
	ModeError:          "Error",
	ModeInit:           "Init",
	ModeBufferDisabled: "Buffer Disabled",
	ModeBufferEnabled:  "Buffer Enabled",
	ModePumpActive:     "Pump Active",
	ModePumpPause:      "Pump Pause",
}

// String returns the label shown on the display.
func (m Mode) String() string {
	if int(m) < len(modeLabels) {
		return modeLabels[m]
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// State is the current mode and the time it was entered.
//
// Since is only meaningful for the timed modes Init, PumpActive and
// PumpPause; the other modes get it stamped by Machine for reporting.
type State struct {
	Mode  Mode
	Since plant.Millis
}

// Start returns the initial state at time now.
func Start(now plant.Millis) State {
	return State{Mode: ModeInit, Since: now}
}

func (s State) String() string {
	return s.Mode.String()
}

// Event is one of Tick, Enable, Disable or ActivatePump.
type Event interface {
	event()
}

// Tick advances the timed modes.
type Tick struct {
	Time plant.Millis
}

// Enable hands heating over to the buffer tank.
type Enable struct{}

// Disable returns heating to the burner.
type Disable struct{}

// ActivatePump starts pumping the buffer into the heating circuit.
type ActivatePump struct {
	Time plant.Millis
}

func (Tick) event()         {}
func (Enable) event()       {}
func (Disable) event()      {}
func (ActivatePump) event() {}

// Timing holds the dwell times of the timed modes, in milliseconds. A timed
// mode is left on the first Tick strictly later than its dwell time.
type Timing struct {
	InitDelay    plant.Millis
	PumpDuration plant.Millis
	PumpPause    plant.Millis
}

// DefaultTiming is the timing of the installed plant.
var DefaultTiming = Timing{
	InitDelay:    5000,
	PumpDuration: 60000,
	PumpPause:    60000,
}

// On applies e to s with DefaultTiming.
func (s State) On(e Event) State {
	return DefaultTiming.Next(s, e)
}

// Next returns the state following s on event e. Pairs of mode and event
// without a transition leave s unchanged.
func (t *Timing) Next(s State, e Event) State {
	switch s.Mode {
	case ModeInit:
		if ev, ok := e.(Tick); ok && ev.Time.Since(s.Since) > t.InitDelay {
			return State{Mode: ModeBufferDisabled, Since: ev.Time}
		}
	case ModeBufferDisabled:
		if _, ok := e.(Enable); ok {
			return State{Mode: ModeBufferEnabled}
		}
	case ModeBufferEnabled:
		switch ev := e.(type) {
		case Disable:
			return State{Mode: ModeBufferDisabled}
		case ActivatePump:
			return State{Mode: ModePumpActive, Since: ev.Time}
		}
	case ModePumpActive:
		if ev, ok := e.(Tick); ok && ev.Time.Since(s.Since) > t.PumpDuration {
			return State{Mode: ModePumpPause, Since: ev.Time}
		}
	case ModePumpPause:
		if ev, ok := e.(Tick); ok && ev.Time.Since(s.Since) > t.PumpPause {
			return State{Mode: ModeBufferEnabled, Since: ev.Time}
		}
	}
	return s
}

// Actuators are the relay outputs of the plant.
type Actuators struct {
	BurnerInhibit bool // keeps the burner off while the buffer heats
	Valve         bool // opens the buffer magnet valve
	Pump          bool // runs the buffer pump
}

// Actuators returns the outputs for the mode of s. It has no side effect and
// does not depend on anything but the mode.
func (s State) Actuators() Actuators {
	switch s.Mode {
	case ModeInit, ModeBufferDisabled:
		return Actuators{}
	case ModeBufferEnabled, ModePumpPause:
		return Actuators{BurnerInhibit: true, Valve: true}
	case ModePumpActive:
		return Actuators{BurnerInhibit: true, Valve: true, Pump: true}
	default:
		// Inhibited, no pump.
		return Actuators{BurnerInhibit: true}
	}
}
