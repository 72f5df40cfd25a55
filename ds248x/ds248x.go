// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds248x drives a DS2482-100 or DS2483 I²C to 1-wire bridge.
//
// The bridge generates the slot timings in hardware. It replaces the
// bit-banged master when the sensor bus is long or the host cannot hold
// microsecond timings.
package ds248x

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/onewire"
)

// DefaultAddress is the address with AD0 and AD1 tied low.
const DefaultAddress uint16 = 0x18

// Opts contains options to pass to the constructor.
type Opts struct {
	// PassivePullup disables the active pull-up, for short buses only.
	PassivePullup bool
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{}

// New resets the bridge at addr and configures it.
//
// Valid addresses are 0x18 to 0x1b.
func New(bus i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	if addr < 0x18 || addr > 0x1b {
		return nil, fmt.Errorf("ds248x: invalid address %#x", addr)
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{i2c: i2c.Dev{Bus: bus, Addr: addr}, conf: confAPU}
	if opts.PassivePullup {
		d.conf = 0
	}
	if err := d.i2c.Tx([]byte{cmdReset}, nil); err != nil {
		return nil, fmt.Errorf("ds248x: reset: %w", err)
	}
	var stat [1]byte
	if err := d.i2c.Tx([]byte{cmdSetReadPtr, regStatus}, stat[:]); err != nil {
		return nil, fmt.Errorf("ds248x: read status: %w", err)
	}
	if stat[0]&^statusLL != statusRST {
		return nil, fmt.Errorf("ds248x: unexpected status %#02x after reset", stat[0])
	}
	// The register only reads back its low nibble.
	var dcr [1]byte
	if err := d.i2c.Tx([]byte{cmdWriteConfig, config(d.conf)}, dcr[:]); err != nil {
		return nil, fmt.Errorf("ds248x: write configuration: %w", err)
	}
	if dcr[0] != d.conf {
		return nil, fmt.Errorf("ds248x: configuration reads back %#02x, wrote %#02x", dcr[0], d.conf)
	}
	return d, nil
}

// Dev is a DS248x bridge. It implements onewire.Bus and
// onewire.BusSearcher.
//
// An I²C failure or a bridge that stays busy is persistent: every following
// call returns the same error and a new Dev must be created. Failures on the
// 1-wire side implement onewire.BusError and are not persistent.
type Dev struct {
	mu   sync.Mutex
	i2c  i2c.Dev
	conf byte  // low nibble of the configuration register
	err  error // persistent error
}

func (d *Dev) String() string {
	return "DS248x{" + d.i2c.String() + "}"
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return nil
}

// Tx implements onewire.Bus.
//
// With onewire.StrongPullup the bridge powers the bus strongly after the
// last byte, which parasite powered sensors need to convert.
func (d *Dev) Tx(w, r []byte, power onewire.Pullup) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	present, err := d.reset()
	if err != nil {
		return err
	}
	if !present {
		return busError("ds248x: no device present")
	}
	strong := power == onewire.StrongPullup
	for i, b := range w {
		if strong && i == len(w)-1 && len(r) == 0 {
			d.tx([]byte{cmdWriteConfig, config(d.conf | confSPU)}, nil)
		}
		d.tx([]byte{cmd1WWrite, b}, nil)
		d.waitIdle(8 * tSlot)
	}
	for i := range r {
		if strong && i == len(r)-1 {
			d.tx([]byte{cmdWriteConfig, config(d.conf | confSPU)}, nil)
		}
		d.tx([]byte{cmd1WRead}, nil)
		d.waitIdle(8 * tSlot)
		d.tx([]byte{cmdSetReadPtr, regData}, r[i:i+1])
	}
	return d.err
}

// Search implements onewire.Bus.
func (d *Dev) Search(alarmOnly bool) ([]onewire.Address, error) {
	return onewire.Search(d, alarmOnly)
}

// SearchTriplet implements onewire.BusSearcher. Use Search instead.
func (d *Dev) SearchTriplet(direction byte) (onewire.TripletResult, error) {
	var dir byte
	if direction != 0 {
		dir = 0x80
	}
	d.tx([]byte{cmd1WTriplet, dir}, nil)
	s := d.waitIdle(3 * tSlot)
	return onewire.TripletResult{
		GotZero: s&statusSBR == 0,
		GotOne:  s&statusTSB == 0,
		Taken:   s >> 7,
	}, d.err
}

// reset resets the 1-wire bus and reports a presence pulse.
func (d *Dev) reset() (bool, error) {
	d.tx([]byte{cmd1WReset}, nil)
	s := d.waitIdle(tReset)
	if d.err != nil {
		return false, d.err
	}
	if s&statusSD != 0 {
		return false, shortedBusError("ds248x: bus has a short")
	}
	return s&statusPPD != 0, nil
}

func (d *Dev) tx(w, r []byte) {
	if d.err == nil {
		d.err = d.i2c.Tx(w, r)
	}
}

// waitIdle sleeps for delay then polls the status register until the 1-wire
// cycle completes and returns the status. It gives up after maxPolls.
func (d *Dev) waitIdle(delay time.Duration) byte {
	if d.err != nil {
		return 0
	}
	sleep(delay)
	for range maxPolls {
		var s [1]byte
		d.tx(nil, s[:])
		if d.err != nil {
			return 0
		}
		if s[0]&statusBusy == 0 {
			return s[0]
		}
		sleep(delay / 10)
	}
	d.err = errTimeout
	return 0
}

// config encodes the configuration register: the high nibble is the one's
// complement of the low nibble.
func config(low byte) byte {
	return ^low<<4 | low&0x0f
}

var errTimeout = errors.New("ds248x: timeout waiting for the 1-wire cycle")

type shortedBusError string

func (e shortedBusError) Error() string   { return string(e) }
func (e shortedBusError) IsShorted() bool { return true }
func (e shortedBusError) BusError() bool  { return true }

type busError string

func (e busError) Error() string  { return string(e) }
func (e busError) BusError() bool { return true }

var sleep = time.Sleep

const (
	cmdReset       = 0xf0
	cmdSetReadPtr  = 0xe1
	cmdWriteConfig = 0xd2
	cmd1WReset     = 0xb4
	cmd1WWrite     = 0xa5
	cmd1WRead      = 0x96
	cmd1WTriplet   = 0x78

	regStatus = 0xf0
	regData   = 0xe1

	statusBusy = 0x01
	statusPPD  = 0x02
	statusSD   = 0x04
	statusLL   = 0x08
	statusRST  = 0x10
	statusSBR  = 0x20
	statusTSB  = 0x40

	confAPU = 0x01
	confSPU = 0x04

	tReset   = 1148 * time.Microsecond
	tSlot    = 73 * time.Microsecond
	maxPolls = 30
)

var _ conn.Resource = &Dev{}
var _ onewire.Bus = &Dev{}
var _ onewire.BusSearcher = &Dev{}
