// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"time"

	"github.com/keepitwarm/heatctl/config"
	"github.com/keepitwarm/heatctl/controller"
	"github.com/keepitwarm/heatctl/heatcontrol"
	"github.com/keepitwarm/heatctl/panel"
	"github.com/keepitwarm/heatctl/plantio"
	"github.com/keepitwarm/heatctl/sensorset"
	"github.com/keepitwarm/heatctl/serlog"
	"github.com/keepitwarm/heatctl/watchdog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/onewire"
)

// station is the plant hardware, real or simulated.
type station struct {
	bus onewire.Bus
	// startBurner, warmWaterPump, heatingPump.
	inputs [3]gpio.PinIn
	// burnerInhibit, valve, pump.
	outputs [3]gpio.PinOut
	lcd     panel.TextDisplay // nil without display
	dog     watchdog.Feeder
	clock   controller.Clock
	log     *serlog.Logger
	// instant skips the conversion wait of the sensors.
	instant bool
	// cycle overrides the configured cycle when not 0.
	cycle time.Duration
	// script, when set, is given the inputs and the sensor set and returns
	// the input reader the loop uses.
	script func(in *plantio.Inputs, set *sensorset.Set) controller.InputReader
}

// assemble binds the sensors and builds the control loop. The returned
// outputs must be halted by the caller.
func (s *station) assemble(cfg *config.Config) (*controller.Loop, *plantio.Outputs, error) {
	lg := s.log
	lg.Debug("Init IOs")
	in, err := plantio.NewInputs(s.inputs[0], s.inputs[1], s.inputs[2], cfg.Inputs.Pull.Pull())
	if err != nil {
		return nil, nil, err
	}
	out, err := plantio.NewOutputs(s.outputs[0], s.outputs[1], s.outputs[2])
	if err != nil {
		return nil, nil, err
	}
	lg.Debug("Done")

	var p *panel.Panel
	if s.lcd != nil {
		lg.Debug("Init display")
		p = panel.New(s.lcd)
		if err := p.ShowBanner(); err != nil {
			lg.Infof("display: %v", err)
		}
		lg.Debug("Done")
	}

	lg.Debug("Init sensors")
	so := &sensorset.Opts{Persist: cfg.Sensors.Persist}
	if s.instant {
		so.Wait = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	}
	set, err := sensorset.New(s.bus, cfg.Bindings(), cfg.Resolution(), so)
	if set == nil {
		_ = out.Halt()
		return nil, nil, err
	}
	var be *sensorset.BindError
	if errors.As(err, &be) {
		// Unbound sensors read as absent; the plant keeps running.
		lg.Infof("sensors: %v", err)
	}
	lg.Debug("Done")

	ctl := cfg.Controller()
	m, err := heatcontrol.NewMachine(&ctl, s.clock.Now())
	if err != nil {
		_ = out.Halt()
		return nil, nil, err
	}
	parts := &controller.Parts{
		Clock:    s.clock,
		Inputs:   in,
		Sensors:  set,
		Machine:  m,
		Outputs:  out,
		Log:      lg,
		Watchdog: s.dog,
	}
	if p != nil {
		parts.Display = p
	}
	if s.script != nil {
		parts.Inputs = s.script(in, set)
	}
	opts := &controller.Opts{
		Cycle:            cfg.Loop.Cycle,
		DisplayRefresh:   cfg.Loop.DisplayRefresh,
		TelemetryRefresh: cfg.Loop.TelemetryRefresh,
	}
	if s.cycle != 0 {
		opts.Cycle = s.cycle
	}
	loop, err := controller.New(parts, opts)
	if err != nil {
		_ = out.Halt()
		return nil, nil, err
	}
	return loop, out, nil
}
