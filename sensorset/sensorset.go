// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sensorset samples all temperature sensors of the plant in one
// conversion cycle.
package sensorset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keepitwarm/heatctl/ds18b20"
	"github.com/keepitwarm/heatctl/plant"
	"periph.io/x/conn/v3/onewire"
)

// Sensor names, one per field of plant.Temperatures.
const (
	WarmWater    = "warm_water"
	BufferTop    = "buffer_top"
	BufferBottom = "buffer_bottom"
	HeatFlow     = "heat_flow"
	HeatReturn   = "heat_return"
)

// Names lists the valid sensor names in display order.
var Names = []string{WarmWater, BufferTop, BufferBottom, HeatFlow, HeatReturn}

// Binding ties a sensor name to a device address.
type Binding struct {
	Name    string
	Address onewire.Address
}

// DefaultBindings are the sensors installed in the plant. The warm water
// sensor was never fitted; its placeholder address fails the CRC check so the
// slot always reads as absent.
var DefaultBindings = []Binding{
	{WarmWater, 0x0000000000000028},
	{BufferTop, 0x6f041674964bff28},
	{BufferBottom, 0x61041674962fff28},
	{HeatFlow, 0xcb0416588241ff28},
	{HeatReturn, 0x7b031655587bff28},
}

// Opts holds the configuration options.
type Opts struct {
	// Persist copies the resolution to the sensors' EEPROM after
	// configuring it.
	Persist bool
	// Wait waits out the conversion time. nil sleeps; simulated buses,
	// which convert instantly, can skip the wait.
	Wait func(ctx context.Context, d time.Duration) error
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{}

// Set is the fixed list of sensors of the plant.
type Set struct {
	bus     onewire.Bus
	res     ds18b20.Resolution
	wait    func(ctx context.Context, d time.Duration) error
	sensors [5]*ds18b20.Dev
	last    [5]error
}

// New binds and configures the sensors.
//
// A binding whose address is invalid or whose sensor cannot be configured
// leaves its slot absent; the returned Set is usable and the error lists
// every such binding. Only an unknown name or an invalid resolution return a
// nil Set.
func New(bus onewire.Bus, bindings []Binding, res ds18b20.Resolution, opts *Opts) (*Set, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if res.ConversionTime() == 0 {
		return nil, fmt.Errorf("sensorset: invalid resolution %d", int(res))
	}
	s := &Set{bus: bus, res: res, wait: opts.Wait}
	if s.wait == nil {
		s.wait = wait
	}
	var errs []error
	for _, b := range bindings {
		i := index(b.Name)
		if i < 0 {
			return nil, fmt.Errorf("sensorset: unknown sensor %q", b.Name)
		}
		if s.sensors[i] != nil {
			return nil, fmt.Errorf("sensorset: sensor %q bound twice", b.Name)
		}
		d, err := ds18b20.New(bus, b.Address)
		if err == nil {
			err = configure(d, res, opts)
		}
		if err != nil {
			errs = append(errs, &BindError{Name: b.Name, Address: b.Address, Err: err})
			continue
		}
		s.sensors[i] = d
	}
	return s, errors.Join(errs...)
}

func configure(d *ds18b20.Dev, res ds18b20.Resolution, opts *Opts) error {
	if d.Family() == ds18b20.DS18S20 {
		return nil
	}
	if err := d.SetResolution(res); err != nil {
		return err
	}
	if opts.Persist {
		return d.Persist()
	}
	return nil
}

func index(name string) int {
	for i, n := range Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Resolution returns the resolution the sensors were configured with.
func (s *Set) Resolution() ds18b20.Resolution {
	return s.res
}

// Bound returns the name and address of every bound sensor.
func (s *Set) Bound() []Binding {
	var out []Binding
	for i, d := range s.sensors {
		if d != nil {
			out = append(out, Binding{Name: Names[i], Address: d.Address()})
		}
	}
	return out
}

// ReadTemperatures triggers one conversion on all sensors, waits the
// conversion time and reads every bound sensor.
//
// A sensor that cannot be read is absent from the result. An error is only
// returned when the conversion could not be triggered or ctx was cancelled
// during the wait.
func (s *Set) ReadTemperatures(ctx context.Context) (plant.Temperatures, error) {
	var t plant.Temperatures
	if err := ds18b20.StartAll(s.bus); err != nil {
		return t, fmt.Errorf("sensorset: start conversion: %w", err)
	}
	if err := s.wait(ctx, s.res.ConversionTime()); err != nil {
		return t, err
	}
	var r [5]plant.Reading
	for i, d := range s.sensors {
		s.last[i] = nil
		if d == nil {
			continue
		}
		v, err := d.ReadTemperature()
		if err != nil {
			s.last[i] = err
			continue
		}
		r[i] = plant.Present(v)
	}
	t.WarmWater, t.BufferTop, t.BufferBottom, t.HeatFlow, t.HeatReturn = r[0], r[1], r[2], r[3], r[4]
	return t, nil
}

// Errors returns the read error of every bound sensor that failed in the
// last ReadTemperatures call, keyed by sensor name.
func (s *Set) Errors() map[string]error {
	out := map[string]error{}
	for i, err := range s.last {
		if err != nil {
			out[Names[i]] = err
		}
	}
	return out
}

// BindError reports a sensor that could not be bound.
type BindError struct {
	Name    string
	Address onewire.Address
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("sensorset: %s (%#016x): %v", e.Name, uint64(e.Address), e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// wait sleeps for d or until ctx is done.
var wait = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
