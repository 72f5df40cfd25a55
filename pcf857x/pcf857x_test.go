// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pcf857x

import (
	"errors"
	"strings"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestNew(t *testing.T) {
	bus := &i2ctest.Playback{}
	dev, err := New(bus, 0x21, PCF8575)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = dev.Halt() }()
	if s := dev.String(); s != "PCF8575_21" {
		t.Fatal(s)
	}
	if dev.Width() != 16 || dev.Latch() != 0xffff {
		t.Fatalf("width %d latch %#x", dev.Width(), dev.Latch())
	}
	if dev.Pin(16) != nil || dev.Pin(-1) != nil {
		t.Fatal("out of range pin")
	}
	for i := range dev.Width() {
		p := dev.Pin(i)
		if p.Number() != i || p.Name() != p.String() || !strings.HasPrefix(p.Name(), dev.String()) {
			t.Fatalf("pin %d: %s", i, p)
		}
		if gpioreg.ByName(p.Name()) == nil {
			t.Fatalf("pin %s not registered", p)
		}
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := New(bus, 0x22, "PCF8573"); err == nil {
		t.Fatal("expected error")
	}
}

func TestHalt_unregisters(t *testing.T) {
	dev, err := New(&i2ctest.Playback{}, 0x23, PCF8574)
	if err != nil {
		t.Fatal(err)
	}
	name := dev.Pin(3).Name()
	if name != "PCF8574_23_P3" {
		t.Fatal(name)
	}
	if err := dev.Halt(); err != nil {
		t.Fatal(err)
	}
	if gpioreg.ByName(name) != nil {
		t.Fatal("pin still registered")
	}
}

func TestWrite(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: 0x27, W: []byte{0x0c}},
		{Addr: 0x27, W: []byte{0x0c}},
		{Addr: 0x27, R: []byte{0x8c}},
	}}
	dev, err := New(bus, 0x27, PCF8574)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = dev.Halt() }()
	// Identical writes are not coalesced.
	for range 2 {
		if err := dev.Write(0x10c); err != nil {
			t.Fatal(err)
		}
	}
	if dev.Latch() != 0x0c {
		t.Fatalf("latch %#x", dev.Latch())
	}
	v, err := dev.Read()
	if err != nil || v != 0x8c {
		t.Fatalf("%#x %v", v, err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestPins(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		// Relay on P4 off, on P5 off.
		{Addr: 0x20, W: []byte{0xef}},
		{Addr: 0x20, W: []byte{0xcf}},
		// P5 back on.
		{Addr: 0x20, W: []byte{0xef}},
		// Input on P0, pulled low externally.
		{Addr: 0x20, R: []byte{0xee}},
		{Addr: 0x20, R: []byte{0xef}},
	}}
	dev, err := New(bus, DefaultAddress, PCF8574)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = dev.Halt() }()
	p4, p5, p0 := dev.Pin(4), dev.Pin(5), dev.Pin(0)
	if err := p4.Out(gpio.Low); err != nil {
		t.Fatal(err)
	}
	if err := p5.Out(gpio.Low); err != nil {
		t.Fatal(err)
	}
	// Unchanged latch: no bus traffic.
	if err := p4.Out(gpio.Low); err != nil {
		t.Fatal(err)
	}
	if f := p4.Function(); f != "Out/Low" {
		t.Fatal(f)
	}
	if err := p5.Out(gpio.High); err != nil {
		t.Fatal(err)
	}
	// P0 is already released, In does not write.
	if err := p0.In(gpio.PullUp, gpio.NoEdge); err != nil {
		t.Fatal(err)
	}
	if f := p0.Function(); f != "In/High" {
		t.Fatal(f)
	}
	if l := p0.Read(); l != gpio.Low {
		t.Fatal(l)
	}
	if l := p0.Read(); l != gpio.High {
		t.Fatal(l)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestPin_misc(t *testing.T) {
	bus := &i2ctest.Playback{DontPanic: true}
	dev, err := New(bus, 0x24, PCF8574)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = dev.Halt() }()
	p := dev.Pin(1)
	if err := p.PWM(gpio.DutyHalf, 0); !errors.Is(err, ErrNotImplemented) {
		t.Fatal(err)
	}
	if p.WaitForEdge(0) {
		t.Fatal("no edge detection")
	}
	if p.Pull() != gpio.PullUp || p.DefaultPull() != gpio.PullUp {
		t.Fatal("pull")
	}
	if p.Halt() != nil {
		t.Fatal("halt")
	}
	// The bus fails: reads as Low, writes return the error.
	if p.Read() != gpio.Low {
		t.Fatal("failed read must read Low")
	}
	if err := p.Out(gpio.Low); err == nil || !strings.HasPrefix(err.Error(), "pcf857x: ") {
		t.Fatal(err)
	}
	if dev.Latch() != 0xff {
		t.Fatal("latch must not change on a failed write")
	}
}
