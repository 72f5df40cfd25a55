// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package controller runs the control loop of the heating plant.
//
// Each cycle reads the inputs, samples the temperatures, advances the state
// machine, writes the relays, refreshes the display and the telemetry when
// due and feeds the watchdog. A cycle lasts at least Opts.Cycle.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keepitwarm/heatctl/heatcontrol"
	"github.com/keepitwarm/heatctl/plant"
	"github.com/keepitwarm/heatctl/sensorset"
	"github.com/keepitwarm/heatctl/serlog"
	"github.com/keepitwarm/heatctl/watchdog"
)

// InputReader reads the digital inputs. *plantio.Inputs implements it.
type InputReader interface {
	Read() plant.Inputs
}

// Sampler reads all temperatures. *sensorset.Set implements it.
type Sampler interface {
	ReadTemperatures(ctx context.Context) (plant.Temperatures, error)
}

// OutputWriter drives the relays. *plantio.Outputs implements it.
type OutputWriter interface {
	Set(a heatcontrol.Actuators) error
	Halt() error
}

// Display shows the status. *panel.Panel implements it.
type Display interface {
	Show(label string, t *plant.Temperatures) error
}

// Parts are the collaborators of the loop. Display and Watchdog are
// optional.
type Parts struct {
	Clock    Clock
	Inputs   InputReader
	Sensors  Sampler
	Machine  *heatcontrol.Machine
	Outputs  OutputWriter
	Display  Display
	Log      *serlog.Logger
	Watchdog watchdog.Feeder
}

// Opts is the loop cadence.
type Opts struct {
	// Cycle is the minimum duration of a cycle.
	Cycle time.Duration
	// DisplayRefresh and TelemetryRefresh are the maximum intervals between
	// two updates; a mode change updates both immediately.
	DisplayRefresh   time.Duration
	TelemetryRefresh time.Duration
}

// DefaultOpts is the cadence of the installed plant.
var DefaultOpts = Opts{
	Cycle:            time.Second,
	DisplayRefresh:   10 * time.Second,
	TelemetryRefresh: 15 * time.Second,
}

// Loop is the control loop. It is not safe for concurrent use.
type Loop struct {
	p    Parts
	opts Opts

	lastDisplay   plant.Millis
	lastTelemetry plant.Millis
	displayed     bool
	reported      bool
	cycles        int
}

// New returns a Loop.
func New(p *Parts, opts *Opts) (*Loop, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if p.Clock == nil || p.Inputs == nil || p.Sensors == nil || p.Machine == nil || p.Outputs == nil || p.Log == nil {
		return nil, errors.New("controller: missing part")
	}
	if opts.Cycle <= 0 || opts.DisplayRefresh <= 0 || opts.TelemetryRefresh <= 0 {
		return nil, errors.New("controller: intervals must be positive")
	}
	l := &Loop{p: *p, opts: *opts}
	if l.p.Watchdog == nil {
		l.p.Watchdog = watchdog.Nop{}
	}
	return l, nil
}

// Result is the outcome of one cycle.
type Result struct {
	Sample    plant.Sample
	State     heatcontrol.State
	Changed   bool
	Actuators heatcontrol.Actuators
	Displayed bool
	Reported  bool
}

// Step runs one cycle.
//
// Failures of the sensors, relays, display or watchdog do not stop the cycle;
// they are logged and returned joined. Only a cancelled ctx aborts the cycle
// early, before the machine is advanced.
func (l *Loop) Step(ctx context.Context) (Result, error) {
	var r Result
	var errs []error
	l.cycles++

	now := l.p.Clock.Now()
	r.Sample = plant.Sample{Time: now, Inputs: l.p.Inputs.Read()}
	temps, err := l.p.Sensors.ReadTemperatures(ctx)
	if ctx.Err() != nil {
		return r, ctx.Err()
	}
	if err != nil {
		l.p.Log.Debugf("sensors: %v", err)
		errs = append(errs, err)
	} else {
		r.Sample.Temperatures = temps
		r.Sample.OK = true
	}
	l.debugSample(&r.Sample)

	r.State, r.Changed = l.p.Machine.Evaluate(&r.Sample)
	if r.Changed {
		l.p.Log.Emit(serlog.LevelInfo, "state", r.State.Mode)
	}
	r.Actuators = r.State.Actuators()
	if err := l.p.Outputs.Set(r.Actuators); err != nil {
		l.p.Log.Infof("outputs: %v", err)
		errs = append(errs, err)
	}

	if l.p.Display != nil && (r.Changed || !l.displayed || now.Since(l.lastDisplay) >= millis(l.opts.DisplayRefresh)) {
		if err := l.p.Display.Show(r.State.Mode.String(), &r.Sample.Temperatures); err != nil {
			l.p.Log.Debugf("display: %v", err)
			errs = append(errs, err)
		}
		l.displayed, l.lastDisplay, r.Displayed = true, now, true
	}
	if r.Changed || !l.reported || now.Since(l.lastTelemetry) >= millis(l.opts.TelemetryRefresh) {
		l.report(&r)
		l.reported, l.lastTelemetry, r.Reported = true, now, true
	}

	if err := l.p.Watchdog.Feed(); err != nil {
		l.p.Log.Infof("watchdog: %v", err)
		errs = append(errs, err)
	}
	return r, errors.Join(errs...)
}

// Run repeats Step until ctx is done, then switches the relays off.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		if err := l.p.Outputs.Halt(); err != nil {
			l.p.Log.Infof("outputs: %v", err)
		}
	}()
	cycle := millis(l.opts.Cycle)
	for {
		start := l.p.Clock.Now()
		if _, err := l.Step(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		elapsed := l.p.Clock.Now().Since(start)
		var rest time.Duration
		if elapsed < cycle {
			rest = time.Duration(cycle-elapsed) * time.Millisecond
		}
		if err := wait(ctx, rest); err != nil {
			return err
		}
	}
}

// Cycles returns the number of cycles run.
func (l *Loop) Cycles() int {
	return l.cycles
}

func (l *Loop) debugSample(s *plant.Sample) {
	log := l.p.Log
	if !log.Enabled(serlog.LevelDebug) {
		return
	}
	log.Emit(serlog.LevelDebug, "start_burner", s.Inputs.StartBurner)
	log.Emit(serlog.LevelDebug, "warm_water_pump", s.Inputs.WarmWaterPump)
	log.Emit(serlog.LevelDebug, "heating_pump", s.Inputs.HeatingPump)
	for _, t := range temperatures(&s.Temperatures) {
		log.Emit(serlog.LevelDebug, t.name, t.r)
	}
}

func (l *Loop) report(r *Result) {
	log := l.p.Log
	if !log.Enabled(serlog.LevelTelemetry) {
		return
	}
	log.Emit(serlog.LevelTelemetry, "state", r.State.Mode)
	log.Emit(serlog.LevelTelemetry, "burner_inhibit", r.Actuators.BurnerInhibit)
	log.Emit(serlog.LevelTelemetry, "valve", r.Actuators.Valve)
	log.Emit(serlog.LevelTelemetry, "pump", r.Actuators.Pump)
	log.Emit(serlog.LevelTelemetry, "start_burner", r.Sample.Inputs.StartBurner)
	log.Emit(serlog.LevelTelemetry, "warm_water_pump", r.Sample.Inputs.WarmWaterPump)
	log.Emit(serlog.LevelTelemetry, "heating_pump", r.Sample.Inputs.HeatingPump)
	for _, t := range temperatures(&r.Sample.Temperatures) {
		log.Emit(serlog.LevelTelemetry, t.name, t.r)
	}
}

type namedReading struct {
	name string
	r    plant.Reading
}

func temperatures(t *plant.Temperatures) []namedReading {
	return []namedReading{
		{sensorset.WarmWater, t.WarmWater},
		{sensorset.BufferTop, t.BufferTop},
		{sensorset.BufferBottom, t.BufferBottom},
		{sensorset.HeatFlow, t.HeatFlow},
		{sensorset.HeatReturn, t.HeatReturn},
	}
}

func millis(d time.Duration) plant.Millis {
	return plant.Millis(d / time.Millisecond)
}

// wait sleeps for d or until ctx is done.
var wait = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r Result) String() string {
	return fmt.Sprintf("t=%d %s %+v", r.Sample.Time, r.State, r.Actuators)
}
