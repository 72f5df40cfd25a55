// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package heatcontrol

import (
	"errors"

	"github.com/keepitwarm/heatctl/plant"
	"periph.io/x/conn/v3/physic"
)

// Config are the thresholds and dwell times of the controller.
type Config struct {
	// MinBufferTemperature is the top of buffer temperature below which the
	// buffer is disabled.
	MinBufferTemperature physic.Temperature
	// BufferHysteresis is added to MinBufferTemperature to enable the buffer.
	BufferHysteresis physic.Temperature
	Timing
}

// DefaultConfig is the configuration of the installed plant.
var DefaultConfig = Config{
	MinBufferTemperature: 60*physic.Kelvin + physic.ZeroCelsius,
	BufferHysteresis:     5 * physic.Kelvin,
	Timing:               DefaultTiming,
}

// Validate returns an error when the thresholds are unusable.
func (c *Config) Validate() error {
	if c.BufferHysteresis < 0 {
		return errors.New("heatcontrol: negative buffer hysteresis")
	}
	if c.MinBufferTemperature <= 0 {
		return errors.New("heatcontrol: minimum buffer temperature must be above absolute zero")
	}
	return nil
}

// EnableTemperature is the top of buffer temperature at which the buffer is
// enabled.
func (c *Config) EnableTemperature() physic.Temperature {
	return c.MinBufferTemperature + c.BufferHysteresis
}

// Machine feeds plant samples into the state machine.
//
// It is not safe for concurrent use.
type Machine struct {
	cfg   Config
	state State
}

// NewMachine returns a Machine in the initial state entered at now.
func NewMachine(cfg *Config, now plant.Millis) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Machine{cfg: *cfg, state: Start(now)}, nil
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// EventFor returns the event the sample raises in the current state.
//
// In BufferEnabled, Disable is checked before ActivatePump: a missing or low
// top of buffer reading or a stopped heating pump wins over a burner request.
func (m *Machine) EventFor(s *plant.Sample) Event {
	top := s.Temperatures.BufferTop
	switch m.state.Mode {
	case ModeBufferDisabled:
		if top.AtLeast(m.cfg.EnableTemperature()) && !s.Inputs.StartBurner && s.Inputs.HeatingPump {
			return Enable{}
		}
	case ModeBufferEnabled:
		if !top.AtLeast(m.cfg.MinBufferTemperature) || !s.Inputs.HeatingPump {
			return Disable{}
		}
		if s.Inputs.StartBurner && top.Valid {
			return ActivatePump{Time: s.Time}
		}
	}
	return Tick{Time: s.Time}
}

// Evaluate derives the event for s, applies it and returns the new state and
// whether the mode changed. The entry time of a new mode is the sample time.
func (m *Machine) Evaluate(s *plant.Sample) (State, bool) {
	next := m.cfg.Timing.Next(m.state, m.EventFor(s))
	changed := next.Mode != m.state.Mode
	if changed {
		next.Since = s.Time
	}
	m.state = next
	return next, changed
}
