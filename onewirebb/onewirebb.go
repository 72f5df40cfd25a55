// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package onewirebb

import (
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/onewire"
	"periph.io/x/host/v3/cpu"
)

// Line is the part of gpio.PinIO the bus master needs. Any gpio.PinIO that
// can switch between output and input mode can be used.
type Line interface {
	String() string
	Out(l gpio.Level) error
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
}

// Opts contains options to pass to the constructor.
type Opts struct {
	// Pull is applied to the line whenever it is released. Use gpio.Float
	// with an external pull-up resistor (4.7kΩ typical) and gpio.PullUp only
	// for very short buses.
	Pull gpio.Pull
	// Delay waits for the given duration. nil uses a busy loop. Simulated
	// buses provide their own virtual clock here.
	Delay func(time.Duration)
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Pull: gpio.Float,
}

// Slot timings, standard speed.
const (
	tResetLow     = 480 * time.Microsecond // reset pulse
	tResetHigh    = 480 * time.Microsecond // reset recovery, includes presence window
	tPresenceWait = 60 * time.Microsecond  // first presence sample after release
	tPresenceStep = 10 * time.Microsecond  // spacing of presence samples
	tHighPoll     = 2 * time.Microsecond   // spacing of line-high polls
	tWrite1Low    = 10 * time.Microsecond
	tWrite1High   = 70 * time.Microsecond
	tWrite0Low    = 65 * time.Microsecond
	tWrite0High   = 5 * time.Microsecond
	tReadLow      = 2 * time.Microsecond
	tReadSample   = 5 * time.Microsecond
	tReadPad      = 53 * time.Microsecond

	presenceSamples = 6
	highPolls       = 125
)

// New returns a bus master driving the given line.
//
// The line is released immediately, so that devices on the bus get powered by
// the pull-up before the first reset.
func New(l Line, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{line: l, pull: opts.Pull, delay: opts.Delay}
	if d.delay == nil {
		d.delay = spin
	}
	if err := d.release(); err != nil {
		return nil, err
	}
	return d, nil
}

// Dev is a 1-wire bus master on a single GPIO line. It implements the
// onewire.Bus interface.
//
// All exported methods are safe for concurrent use; each holds the bus for its
// whole duration. The bit-level methods are meant for protocol experiments
// and tests, drivers should use Tx.
type Dev struct {
	mu    sync.Mutex // lock for the bus while a transaction is in progress
	line  Line
	pull  gpio.Pull
	delay func(time.Duration)
}

func (d *Dev) String() string {
	return "OneWireBB{" + d.line.String() + "}"
}

// Halt implements conn.Resource.
//
// It releases the line.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.release()
}

// Reset issues a reset pulse and returns true if at least one device answered
// with a presence pulse.
//
// The line must be high before the pulse is issued; if it does not return high
// within 250µs ErrWireNotHigh is returned.
func (d *Dev) Reset() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reset()
}

// WriteBit writes one time slot.
func (d *Dev) WriteBit(bit bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeBit(bit)
}

// ReadBit reads one time slot.
func (d *Dev) ReadBit() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readBit()
}

// WriteBytes writes w onto the bus, least significant bit first.
func (d *Dev) WriteBytes(w []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeBytes(w)
}

// ReadBytes fills r from the bus, least significant bit first.
func (d *Dev) ReadBytes(r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readBytes(r)
}

// Tx performs a bus transaction: a reset, then w is written and r is read.
//
// With onewire.StrongPullup the line is actively driven high after the last
// byte to power parasitic devices, until the next transaction releases it.
func (d *Dev) Tx(w, r []byte, power onewire.Pullup) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if present, err := d.reset(); err != nil {
		return err
	} else if !present {
		return busError("onewirebb: no device present")
	}
	if err := d.writeBytes(w); err != nil {
		return err
	}
	if err := d.readBytes(r); err != nil {
		return err
	}
	if power == onewire.StrongPullup {
		if err := d.line.Out(gpio.High); err != nil {
			return &PortError{Err: err}
		}
	}
	return nil
}

// Search performs a full search cycle and returns the addresses of all
// devices on the bus if alarmOnly is false and of all devices in alarm state
// if alarmOnly is true.
//
// Addresses failing the CRC check are dropped. If an error occurs during the
// search the already-discovered devices are returned with the error.
func (d *Dev) Search(alarmOnly bool) ([]onewire.Address, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := SearchState{AlarmOnly: alarmOnly}
	var out []onewire.Address
	for !s.done {
		addr, found, err := d.searchNext(&s)
		if err != nil {
			if _, ok := err.(*CRCError); ok {
				continue
			}
			return out, err
		}
		if found {
			out = append(out, addr)
		}
	}
	return out, nil
}

//

func (d *Dev) reset() (bool, error) {
	if err := d.release(); err != nil {
		return false, err
	}
	if err := d.waitHigh(); err != nil {
		return false, err
	}

	if err := d.drive(); err != nil {
		return false, err
	}
	d.delay(tResetLow)
	if err := d.release(); err != nil {
		return false, err
	}

	// Devices answer 15-60µs after the rising edge and hold the line low for
	// 60-240µs.
	d.delay(tPresenceWait)
	present := false
	for range presenceSamples {
		if d.line.Read() == gpio.Low {
			present = true
		}
		d.delay(tPresenceStep)
	}
	d.delay(tResetHigh - tPresenceWait - presenceSamples*tPresenceStep)
	return present, nil
}

// waitHigh polls the released line until the pull-up brings it high.
func (d *Dev) waitHigh() error {
	for range highPolls {
		if d.line.Read() == gpio.High {
			return nil
		}
		d.delay(tHighPoll)
	}
	return ErrWireNotHigh
}

func (d *Dev) writeBit(bit bool) error {
	low, high := tWrite0Low, tWrite0High
	if bit {
		low, high = tWrite1Low, tWrite1High
	}
	if err := d.drive(); err != nil {
		return err
	}
	d.delay(low)
	if err := d.release(); err != nil {
		return err
	}
	d.delay(high)
	return nil
}

func (d *Dev) readBit() (bool, error) {
	if err := d.drive(); err != nil {
		return false, err
	}
	d.delay(tReadLow)
	if err := d.release(); err != nil {
		return false, err
	}
	d.delay(tReadSample)
	bit := d.line.Read() == gpio.High
	d.delay(tReadPad)
	return bit, nil
}

func (d *Dev) writeByte(b byte) error {
	for range 8 {
		if err := d.writeBit(b&1 == 1); err != nil {
			return err
		}
		b >>= 1
	}
	return nil
}

func (d *Dev) readByte() (byte, error) {
	var b byte
	for range 8 {
		b >>= 1
		bit, err := d.readBit()
		if err != nil {
			return 0, err
		}
		if bit {
			b |= 0x80
		}
	}
	return b, nil
}

func (d *Dev) writeBytes(w []byte) error {
	for _, b := range w {
		if err := d.writeByte(b); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dev) readBytes(r []byte) error {
	for i := range r {
		b, err := d.readByte()
		if err != nil {
			return err
		}
		r[i] = b
	}
	return nil
}

func (d *Dev) drive() error {
	if err := d.line.Out(gpio.Low); err != nil {
		return &PortError{Err: err}
	}
	return nil
}

func (d *Dev) release() error {
	if err := d.line.In(d.pull, gpio.NoEdge); err != nil {
		return &PortError{Err: err}
	}
	return nil
}

// spin busy-waits; time.Sleep is far too coarse for µs slots.
func spin(t time.Duration) {
	cpu.Nanospin(t)
}

var _ conn.Resource = &Dev{}
var _ onewire.Bus = &Dev{}
