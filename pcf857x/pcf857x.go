// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pcf857x drives the TI/NXP PCF8574 and PCF8575 I²C I/O expanders.
//
// The controller uses a PCF8574 twice: as the backpack of the character LCD,
// where the whole port is written at once, and optionally as a relay or input
// board, where single pins are used through gpio.PinIO and can be looked up
// in gpioreg by name.
//
// The port is quasi-bidirectional: writing a 1 releases the pin to a weak
// pull-up, writing a 0 sinks it to ground. A pin reads as the level an
// external circuit holds it at, so only pins written high can be used as
// inputs.
//
// # Datasheet
//
// https://www.ti.com/lit/ds/symlink/pcf8574.pdf
package pcf857x

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
)

// Variant is the chip model.
type Variant string

// Supported chips.
const (
	PCF8574 Variant = "PCF8574"
	PCF8575 Variant = "PCF8575"
)

// DefaultAddress is the address with all address pins tied low.
const DefaultAddress uint16 = 0x20

// ErrNotImplemented is returned for features the chip lacks.
var ErrNotImplemented = errors.New("pcf857x: not implemented")

// Dev is a PCF857x expander.
type Dev struct {
	mu    sync.Mutex
	d     i2c.Dev
	chip  Variant
	width int
	latch uint16 // last value written to the port
	pins  []*Pin
}

// New returns an expander at addr. No bus traffic happens until the port is
// written or read.
//
// Its pins are registered in gpioreg as "<chip>_<addr>_P<n>", for example
// "PCF8574_20_P4".
func New(bus i2c.Bus, addr uint16, chip Variant) (*Dev, error) {
	d := &Dev{d: i2c.Dev{Bus: bus, Addr: addr}, chip: chip}
	switch chip {
	case PCF8574:
		d.width = 8
	case PCF8575:
		d.width = 16
	default:
		return nil, fmt.Errorf("pcf857x: unknown variant %q", chip)
	}
	// Power-on state: every pin released high.
	d.latch = d.mask()
	d.pins = make([]*Pin, d.width)
	for i := range d.width {
		d.pins[i] = &Pin{dev: d, number: i, name: fmt.Sprintf("%s_P%d", d, i)}
		_ = gpioreg.Register(d.pins[i])
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("%s_%x", d.chip, d.d.Addr)
}

// Width returns the number of pins.
func (d *Dev) Width() int {
	return d.width
}

// Pin returns pin n, nil when out of range.
func (d *Dev) Pin(n int) *Pin {
	if n < 0 || n >= len(d.pins) {
		return nil
	}
	return d.pins[n]
}

// Write sets the whole port to v. The write always happens, even when v
// equals the current latch; the LCD backpack relies on it to strobe the
// enable line.
func (d *Dev) Write(v uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(v & d.mask())
}

// Latch returns the last value written to the port.
func (d *Dev) Latch() uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latch
}

// Read returns the levels on the port.
func (d *Dev) Read() (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.read()
}

// Halt unregisters the pins. The port is left as is so that relays do not
// change state when the process exits.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pins {
		_ = gpioreg.Unregister(p.name)
	}
	return nil
}

// update changes the bits of mask to value and writes the port if the result
// differs from the latch.
func (d *Dev) update(value, mask uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := d.latch&^mask | value&mask
	if v == d.latch {
		return nil
	}
	return d.write(v)
}

func (d *Dev) write(v uint16) error {
	w := []byte{byte(v), byte(v >> 8)}
	if err := d.d.Tx(w[:d.width/8], nil); err != nil {
		return fmt.Errorf("pcf857x: %w", err)
	}
	d.latch = v
	return nil
}

func (d *Dev) read() (uint16, error) {
	var r [2]byte
	if err := d.d.Tx(nil, r[:d.width/8]); err != nil {
		return 0, fmt.Errorf("pcf857x: %w", err)
	}
	return uint16(r[0]) | uint16(r[1])<<8, nil
}

func (d *Dev) mask() uint16 {
	return uint16(1<<d.width - 1)
}

var _ conn.Resource = &Dev{}
