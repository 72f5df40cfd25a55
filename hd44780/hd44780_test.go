// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/keepitwarm/heatctl/pcf857x"
	periphDisplay "periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/display/displaytest"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

const (
	testRows = 2
	testCols = 16
)

func init() {
	sleep = func(time.Duration) {}
}

func getLCD(t *testing.T) (*Dev, *i2ctest.Record) {
	rec := &i2ctest.Record{}
	dev, err := NewPCF8574Backpack(rec, DefaultBackpackAddress, testRows, testCols)
	if err != nil {
		t.Fatal(err)
	}
	return dev, rec
}

// written returns the port values written since the last call.
func written(t *testing.T, rec *i2ctest.Record) []byte {
	var out []byte
	for _, io := range rec.Ops {
		if io.Addr != DefaultBackpackAddress || len(io.W) != 1 || len(io.R) != 0 {
			t.Fatalf("unexpected transaction %#v", io)
		}
		out = append(out, io.W[0])
	}
	rec.Ops = nil
	return out
}

func TestNew_init(t *testing.T) {
	_, rec := getLCD(t)
	got := written(t, rec)
	want := []byte{
		0x08,
		// Three times 0x3 to get its attention, then 4-bit mode.
		0x3c, 0x38, 0x3c, 0x38, 0x3c, 0x38,
		0x2c, 0x28,
		// Function set: 4-bit, 2 lines.
		0x2c, 0x28, 0x8c, 0x88,
		// Display off.
		0x0c, 0x08, 0x8c, 0x88,
		// Clear.
		0x0c, 0x08, 0x1c, 0x18,
		// Entry mode: increment.
		0x0c, 0x08, 0x6c, 0x68,
		// Display on.
		0x0c, 0x08, 0xcc, 0xc8,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("% x\n!=\n% x", got, want)
	}
}

func TestNew_geometry(t *testing.T) {
	if _, err := New(pcfPort(t), 0, 16); err == nil {
		t.Fatal("expected error")
	}
	if _, err := New(pcfPort(t), 2, 41); err == nil {
		t.Fatal("expected error")
	}
}

func pcfPort(t *testing.T) *pcf857x.Dev {
	p, err := pcf857x.New(&i2ctest.Record{}, 0x26, pcf857x.PCF8574)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Halt() })
	return p
}

func TestNew_fail(t *testing.T) {
	bus := &i2ctest.Playback{DontPanic: true}
	if _, err := NewPCF8574Backpack(bus, 0x27, 2, 16); err == nil {
		t.Fatal("expected error")
	}
}

func TestBasic(t *testing.T) {
	display, rec := getLCD(t)
	defer func() { _ = display.Halt() }()
	if s := display.String(); s != "HD44780{PCF8574_27, 16x2}" {
		t.Fatal(s)
	}
	if display.Rows() != testRows || display.Cols() != testCols {
		t.Fatalf("%dx%d", display.Cols(), display.Rows())
	}
	written(t, rec)

	if _, err := display.WriteString("A"); err != nil {
		t.Fatal(err)
	}
	if got := written(t, rec); !reflect.DeepEqual(got, []byte{0x4d, 0x49, 0x1d, 0x19}) {
		t.Fatalf("% x", got)
	}

	if err := display.MoveTo(2, 9); err != nil {
		t.Fatal(err)
	}
	if got := written(t, rec); !reflect.DeepEqual(got, []byte{0xcc, 0xc8, 0x8c, 0x88}) {
		t.Fatalf("% x", got)
	}
	if err := display.MoveTo(3, 1); err == nil {
		t.Fatal("expected out of range error")
	}
	if err := display.MoveTo(1, 17); err == nil {
		t.Fatal("expected out of range error")
	}

	if err := display.Backlight(0); err != nil {
		t.Fatal(err)
	}
	if _, err := display.WriteString("B"); err != nil {
		t.Fatal(err)
	}
	if got := written(t, rec); !reflect.DeepEqual(got, []byte{0x00, 0x45, 0x41, 0x25, 0x21}) {
		t.Fatalf("% x", got)
	}
}

func TestAddress(t *testing.T) {
	d := &Dev{rows: 4, cols: 20}
	data := []struct {
		row, col int
		want     byte
	}{
		{1, 1, 0x00},
		{2, 1, 0x40},
		{3, 1, 0x14},
		{4, 20, 0x67},
	}
	for _, line := range data {
		if got := d.address(line.row, line.col); got != line.want {
			t.Fatalf("(%d, %d): %#x != %#x", line.row, line.col, got, line.want)
		}
	}
}

func TestCursor(t *testing.T) {
	display, rec := getLCD(t)
	written(t, rec)
	if err := display.Cursor(periphDisplay.CursorUnderline, periphDisplay.CursorBlink); err != nil {
		t.Fatal(err)
	}
	// Display control with display, cursor and blink on.
	if got := written(t, rec); !reflect.DeepEqual(got, []byte{0x0c, 0x08, 0xfc, 0xf8}) {
		t.Fatalf("% x", got)
	}
	if err := display.Cursor(periphDisplay.CursorOff); err != nil {
		t.Fatal(err)
	}
	if got := written(t, rec); !reflect.DeepEqual(got, []byte{0x0c, 0x08, 0xcc, 0xc8}) {
		t.Fatalf("% x", got)
	}
	if err := display.Cursor(periphDisplay.CursorMode(99)); err == nil {
		t.Fatal("expected error")
	}
	if err := display.Move(periphDisplay.Up); !errors.Is(err, periphDisplay.ErrNotImplemented) {
		t.Fatal(err)
	}
}

func TestInterface(t *testing.T) {
	display, _ := getLCD(t)
	defer func() { _ = display.Halt() }()
	errs := displaytest.TestTextDisplay(display, false)
	for _, err := range errs {
		if !errors.Is(err, periphDisplay.ErrNotImplemented) {
			t.Error(err)
		}
	}
}

func TestHalt(t *testing.T) {
	display, rec := getLCD(t)
	written(t, rec)
	if err := display.Halt(); err != nil {
		t.Fatal(err)
	}
	got := written(t, rec)
	want := []byte{
		// Clear.
		0x0c, 0x08, 0x1c, 0x18,
		// Display off.
		0x0c, 0x08, 0x8c, 0x88,
		// Backlight off.
		0x00,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("% x", got)
	}
}
