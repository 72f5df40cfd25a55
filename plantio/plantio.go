// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package plantio reads the digital inputs and drives the relays of the
// heating plant.
package plantio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/keepitwarm/heatctl/heatcontrol"
	"github.com/keepitwarm/heatctl/plant"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// Inputs samples the three plant inputs. Levels are read as is, without
// debouncing; a high level means active.
type Inputs struct {
	startBurner   gpio.PinIn
	warmWaterPump gpio.PinIn
	heatingPump   gpio.PinIn
}

// NewInputs configures the pins as inputs with the given pull.
func NewInputs(startBurner, warmWaterPump, heatingPump gpio.PinIn, pull gpio.Pull) (*Inputs, error) {
	for _, p := range []gpio.PinIn{startBurner, warmWaterPump, heatingPump} {
		if p == nil {
			return nil, errors.New("plantio: input pin is nil")
		}
		if err := p.In(pull, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("plantio: %s: %w", p, err)
		}
	}
	return &Inputs{startBurner: startBurner, warmWaterPump: warmWaterPump, heatingPump: heatingPump}, nil
}

// Read returns the current input levels.
func (i *Inputs) Read() plant.Inputs {
	return plant.Inputs{
		StartBurner:   bool(i.startBurner.Read()),
		WarmWaterPump: bool(i.warmWaterPump.Read()),
		HeatingPump:   bool(i.heatingPump.Read()),
	}
}

func (i *Inputs) String() string {
	return fmt.Sprintf("Inputs{%s, %s, %s}", i.startBurner, i.warmWaterPump, i.heatingPump)
}

// Halt implements conn.Resource.
func (i *Inputs) Halt() error {
	return nil
}

// Outputs drives the relays and remembers the last written values.
type Outputs struct {
	mu            sync.Mutex
	burnerInhibit gpio.PinOut
	valve         gpio.PinOut
	pump          gpio.PinOut
	state         heatcontrol.Actuators
}

// NewOutputs returns Outputs with every relay switched off.
func NewOutputs(burnerInhibit, valve, pump gpio.PinOut) (*Outputs, error) {
	if burnerInhibit == nil || valve == nil || pump == nil {
		return nil, errors.New("plantio: output pin is nil")
	}
	o := &Outputs{burnerInhibit: burnerInhibit, valve: valve, pump: pump}
	if err := o.Set(heatcontrol.Actuators{}); err != nil {
		return nil, err
	}
	return o, nil
}

// Set writes all three relays. On error the remembered state reflects the
// pins written successfully.
func (o *Outputs) Set(a heatcontrol.Actuators) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.burnerInhibit.Out(gpio.Level(a.BurnerInhibit)); err != nil {
		return fmt.Errorf("plantio: burner inhibit: %w", err)
	}
	o.state.BurnerInhibit = a.BurnerInhibit
	if err := o.valve.Out(gpio.Level(a.Valve)); err != nil {
		return fmt.Errorf("plantio: valve: %w", err)
	}
	o.state.Valve = a.Valve
	if err := o.pump.Out(gpio.Level(a.Pump)); err != nil {
		return fmt.Errorf("plantio: pump: %w", err)
	}
	o.state.Pump = a.Pump
	return nil
}

// Actuators returns the last written values.
func (o *Outputs) Actuators() heatcontrol.Actuators {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// BurnerInhibit returns the last value written to the burner inhibit relay.
func (o *Outputs) BurnerInhibit() bool {
	return o.Actuators().BurnerInhibit
}

// Valve returns the last value written to the buffer valve relay.
func (o *Outputs) Valve() bool {
	return o.Actuators().Valve
}

// Pump returns the last value written to the buffer pump relay.
func (o *Outputs) Pump() bool {
	return o.Actuators().Pump
}

func (o *Outputs) String() string {
	return fmt.Sprintf("Outputs{%s, %s, %s}", o.burnerInhibit, o.valve, o.pump)
}

// Halt switches every relay off.
func (o *Outputs) Halt() error {
	return o.Set(heatcontrol.Actuators{})
}

var _ conn.Resource = &Inputs{}
var _ conn.Resource = &Outputs{}
