// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sensorset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keepitwarm/heatctl/ds18b20"
	"github.com/keepitwarm/heatctl/onewirebb"
	"github.com/keepitwarm/heatctl/onewirebb/onewirebbtest"
	"github.com/keepitwarm/heatctl/plant"
	"periph.io/x/conn/v3/onewire"
	"periph.io/x/conn/v3/onewire/onewiretest"
	"periph.io/x/conn/v3/physic"
)

var waited []time.Duration

func init() {
	wait = func(ctx context.Context, d time.Duration) error {
		waited = append(waited, d)
		return ctx.Err()
	}
}

func celsius(c float64) physic.Temperature {
	return physic.Temperature(c*float64(physic.Kelvin)) + physic.ZeroCelsius
}

// plantBus returns a simulated bus with the four installed sensors.
func plantBus(t *testing.T) (*onewirebb.Dev, map[string]*onewirebbtest.Device) {
	devs := map[string]*onewirebbtest.Device{}
	sim := onewirebbtest.New()
	for _, b := range DefaultBindings[1:] {
		d := onewirebbtest.NewDevice(b.Address)
		devs[b.Name] = d
		sim.Attach(d)
	}
	bus, err := onewirebb.New(sim, &onewirebb.Opts{Delay: sim.Delay})
	if err != nil {
		t.Fatal(err)
	}
	return bus, devs
}

func TestDefaultBindings(t *testing.T) {
	if len(DefaultBindings) != len(Names) {
		t.Fatal("one binding per name expected")
	}
	for i, b := range DefaultBindings {
		if b.Name != Names[i] {
			t.Fatalf("%d: %s", i, b.Name)
		}
		err := onewirebb.CheckAddress(b.Address)
		if b.Name == WarmWater {
			if err == nil {
				t.Fatal("warm water placeholder must not validate")
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", b.Name, err)
		}
		if ds18b20.Family(b.Address&0xff) != ds18b20.DS18B20 {
			t.Fatalf("%s: family", b.Name)
		}
	}
}

func TestNew(t *testing.T) {
	bus, devs := plantBus(t)
	s, err := New(bus, DefaultBindings, ds18b20.Bits10, nil)
	if s == nil {
		t.Fatal(err)
	}
	var be *BindError
	if !errors.As(err, &be) || be.Name != WarmWater {
		t.Fatalf("expected warm water bind error, got %v", err)
	}
	if got := len(s.Bound()); got != 4 {
		t.Fatalf("bound %d", got)
	}
	for name, d := range devs {
		if cfg := d.Scratchpad()[4]; cfg != ds18b20.Bits10.ConfigByte() {
			t.Fatalf("%s: config %#x", name, cfg)
		}
		if d.Persisted() != 0 {
			t.Fatalf("%s: persisted without asking", name)
		}
	}
	if s.Resolution() != ds18b20.Bits10 {
		t.Fatal(s.Resolution())
	}
}

func TestNew_persist(t *testing.T) {
	bus, devs := plantBus(t)
	if _, err := New(bus, DefaultBindings[1:], ds18b20.Bits12, &Opts{Persist: true}); err != nil {
		t.Fatal(err)
	}
	for name, d := range devs {
		if d.Persisted() != 1 {
			t.Fatalf("%s: persisted %d times", name, d.Persisted())
		}
	}
}

func TestNew_errors(t *testing.T) {
	bus, _ := plantBus(t)
	if s, err := New(bus, []Binding{{"attic", 0x28}}, ds18b20.Bits10, nil); s != nil || err == nil {
		t.Fatal("unknown name must fail")
	}
	b := []Binding{DefaultBindings[1], DefaultBindings[1]}
	if s, err := New(bus, b, ds18b20.Bits10, nil); s != nil || err == nil {
		t.Fatal("duplicate name must fail")
	}
	if s, err := New(bus, DefaultBindings, 13, nil); s != nil || err == nil {
		t.Fatal("bad resolution must fail")
	}
}

func TestNew_unconfigurable(t *testing.T) {
	// The write scratchpad transaction fails: the slot stays absent.
	bus := &onewiretest.Playback{Ops: []onewiretest.IO{}, DontPanic: true}
	s, err := New(bus, DefaultBindings[1:2], ds18b20.Bits10, nil)
	if s == nil || err == nil {
		t.Fatalf("%v %v", s, err)
	}
	if len(s.Bound()) != 0 {
		t.Fatal("sensor must not be bound")
	}
}

func TestReadTemperatures(t *testing.T) {
	bus, devs := plantBus(t)
	s, _ := New(bus, DefaultBindings, ds18b20.Bits10, nil)
	// 10 bits: 4 counts per degree.
	devs[BufferTop].SetRaw(65 * 4)
	devs[BufferBottom].SetRaw(40*4 + 2)
	devs[HeatFlow].SetRaw(-3)
	devs[HeatReturn].SetPresent(false)

	waited = nil
	temps, err := s.ReadTemperatures(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := plant.Temperatures{
		BufferTop:    plant.Present(celsius(65)),
		BufferBottom: plant.Present(celsius(40.5)),
		HeatFlow:     plant.Present(celsius(-0.75)),
	}
	if temps != want {
		t.Fatalf("%+v != %+v", temps, want)
	}
	if len(waited) != 1 || waited[0] != 188*time.Millisecond {
		t.Fatalf("waited %v", waited)
	}
	for name, d := range devs {
		if name != HeatReturn && d.Conversions() != 1 {
			t.Fatalf("%s: %d conversions", name, d.Conversions())
		}
	}
	errs := s.Errors()
	if len(errs) != 1 || !errors.Is(errs[HeatReturn], ds18b20.ErrNoResponse) {
		t.Fatalf("errors %v", errs)
	}

	// The sensor comes back on the next cycle.
	devs[HeatReturn].SetPresent(true)
	devs[HeatReturn].SetRaw(30 * 4)
	if temps, err = s.ReadTemperatures(context.Background()); err != nil {
		t.Fatal(err)
	}
	if temps.HeatReturn != plant.Present(celsius(30)) {
		t.Fatal(temps.HeatReturn)
	}
	if len(s.Errors()) != 0 {
		t.Fatal(s.Errors())
	}
}

func TestReadTemperatures_triggerFails(t *testing.T) {
	sim := onewirebbtest.New()
	bus, err := onewirebb.New(sim, &onewirebb.Opts{Delay: sim.Delay})
	if err != nil {
		t.Fatal(err)
	}
	s, _ := New(bus, DefaultBindings[1:], ds18b20.Bits9, nil)
	temps, err := s.ReadTemperatures(context.Background())
	var be onewire.BusError
	if !errors.As(err, &be) {
		t.Fatalf("expected bus error, got %v", err)
	}
	if temps != (plant.Temperatures{}) {
		t.Fatal("all readings must be absent")
	}
}

func TestReadTemperatures_cancelled(t *testing.T) {
	bus, _ := plantBus(t)
	s, _ := New(bus, DefaultBindings, ds18b20.Bits10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ReadTemperatures(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}

func TestReadTemperatures_customWait(t *testing.T) {
	bus, _ := plantBus(t)
	var got []time.Duration
	opts := &Opts{Wait: func(ctx context.Context, d time.Duration) error {
		got = append(got, d)
		return nil
	}}
	s, _ := New(bus, DefaultBindings, ds18b20.Bits12, opts)
	waited = nil
	if _, err := s.ReadTemperatures(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 750*time.Millisecond || len(waited) != 0 {
		t.Fatalf("custom %v package %v", got, waited)
	}
}

func TestEnumerate(t *testing.T) {
	_, devs := plantBus(t)
	stray := onewirebbtest.ROM(0x10, 0x1234)
	sim := onewirebbtest.New(onewirebbtest.NewDevice(stray))
	for _, d := range devs {
		sim.Attach(d)
	}
	bus, err := onewirebb.New(sim, &onewirebb.Opts{Delay: sim.Delay})
	if err != nil {
		t.Fatal(err)
	}
	found, err := Enumerate(bus, DefaultBindings)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 5 {
		t.Fatalf("found %v", found)
	}
	names := map[string]bool{}
	for _, f := range found {
		if f.Address == stray {
			if f.Name != "" || f.Family != ds18b20.DS18S20 {
				t.Fatal(f)
			}
			continue
		}
		names[f.Name] = true
	}
	if len(names) != 4 || names[WarmWater] {
		t.Fatal(names)
	}
	missing := Missing(found, DefaultBindings)
	if len(missing) != 1 || missing[0].Name != WarmWater {
		t.Fatal(missing)
	}
}

func TestEnumerate_error(t *testing.T) {
	sim := onewirebbtest.New()
	sim.SetStuck(true)
	bus, err := onewirebb.New(sim, &onewirebb.Opts{Delay: sim.Delay})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Enumerate(bus, nil); !errors.Is(err, onewirebb.ErrWireNotHigh) {
		t.Fatal(err)
	}
}
