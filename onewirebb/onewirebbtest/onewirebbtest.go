// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package onewirebbtest provides a simulated 1-wire line for onewirebb.
//
// Sim implements onewirebb.Line on a virtual microsecond clock and decodes
// the slots written by the bus master the way real slaves do: by the length
// of the low pulse. The attached devices behave like DS18B20 temperature
// sensors.
package onewirebbtest

import (
	"encoding/binary"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/onewire"
)

// Slave side timings.
const (
	resetMin      = 480 * time.Microsecond
	write1Max     = 15 * time.Microsecond
	presenceStart = 15 * time.Microsecond
	presenceEnd   = 120 * time.Microsecond
	slotHold      = 45 * time.Microsecond
)

// Sim is a simulated 1-wire line. Pass Sim.Delay as onewirebb.Opts.Delay so
// that the master's waits advance the simulated clock.
type Sim struct {
	mu        sync.Mutex
	now       time.Duration
	driven    bool
	lowSince  time.Duration
	presence  [2]time.Duration
	holdUntil time.Duration
	stuck     bool
	outErr    error
	inErr     error
	resets    int
	devices   []*Device
}

// New returns a Sim with the given devices attached.
func New(devices ...*Device) *Sim {
	s := &Sim{}
	for _, d := range devices {
		s.Attach(d)
	}
	return s
}

// Attach connects a device to the line.
func (s *Sim) Attach(d *Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.SetPresent(true)
	s.devices = append(s.devices, d)
}

// Devices returns the attached devices.
func (s *Sim) Devices() []*Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Device(nil), s.devices...)
}

// Delay advances the simulated clock.
func (s *Sim) Delay(d time.Duration) {
	s.mu.Lock()
	s.now += d
	s.mu.Unlock()
}

// Now returns the simulated time.
func (s *Sim) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Resets returns the number of reset pulses seen.
func (s *Sim) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// SetStuck simulates a line shorted to ground.
func (s *Sim) SetStuck(stuck bool) {
	s.mu.Lock()
	s.stuck = stuck
	s.mu.Unlock()
}

// FailOut makes every subsequent Out call return err. nil clears it.
func (s *Sim) FailOut(err error) {
	s.mu.Lock()
	s.outErr = err
	s.mu.Unlock()
}

// FailIn makes every subsequent In call return err. nil clears it.
func (s *Sim) FailIn(err error) {
	s.mu.Lock()
	s.inErr = err
	s.mu.Unlock()
}

func (s *Sim) String() string {
	return "onewirebbtest.Sim"
}

// Out implements onewirebb.Line.
func (s *Sim) Out(l gpio.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outErr != nil {
		return s.outErr
	}
	if l == gpio.Low {
		if !s.driven {
			s.driven = true
			s.lowSince = s.now
		}
		return nil
	}
	// Strong pull-up ends the slot like a release.
	s.endLow()
	return nil
}

// In implements onewirebb.Line.
func (s *Sim) In(pull gpio.Pull, edge gpio.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inErr != nil {
		return s.inErr
	}
	s.endLow()
	return nil
}

// Read implements onewirebb.Line.
func (s *Sim) Read() gpio.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.stuck, s.driven:
		return gpio.Low
	case s.now >= s.presence[0] && s.now < s.presence[1]:
		return gpio.Low
	case s.now < s.holdUntil:
		return gpio.Low
	}
	return gpio.High
}

// endLow finishes a low pulse of the master and lets the devices react.
func (s *Sim) endLow() {
	if !s.driven {
		return
	}
	s.driven = false
	width := s.now - s.lowSince

	if width >= resetMin {
		s.resets++
		answered := false
		for _, d := range s.devices {
			if d.isPresent() {
				d.reset()
				answered = true
			}
		}
		if answered {
			s.presence = [2]time.Duration{s.now + presenceStart, s.now + presenceEnd}
		}
		return
	}

	// Wired-AND: a single device sending 0 holds the line low.
	level := true
	for _, d := range s.devices {
		if !d.isPresent() {
			continue
		}
		if bit, ok := d.transmit(); ok && !bit {
			level = false
		}
	}
	if !level {
		s.holdUntil = s.lowSince + slotHold
	}
	master := width < write1Max
	for _, d := range s.devices {
		if d.isPresent() {
			d.advance(master)
		}
	}
}

// ROM builds a valid address from a family code and a 48-bit serial number.
func ROM(family byte, serial uint64) onewire.Address {
	var rom [8]byte
	binary.LittleEndian.PutUint64(rom[:], serial<<8)
	rom[0] = family
	rom[7] = onewire.CalcCRC(rom[:7])
	return onewire.Address(binary.LittleEndian.Uint64(rom[:]))
}
