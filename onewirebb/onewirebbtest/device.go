// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package onewirebbtest

import (
	"encoding/binary"
	"sync"

	"periph.io/x/conn/v3/onewire"
)

// Commands understood by the simulated devices.
const (
	cmdSearchROM       = 0xf0
	cmdAlarmSearch     = 0xec
	cmdMatchROM        = 0x55
	cmdSkipROM         = 0xcc
	cmdReadROM         = 0x33
	cmdConvert         = 0x44
	cmdReadScratchpad  = 0xbe
	cmdWriteScratchpad = 0x4e
	cmdCopyScratchpad  = 0x48
)

type phase int

const (
	phaseIdle phase = iota // deselected until the next reset
	phaseROMCommand
	phaseSearch
	phaseMatch
	phaseFunction
	phaseTransmit
	phaseWrite
)

// Device is a simulated DS18B20.
type Device struct {
	mu          sync.Mutex
	rom         [8]byte
	spad        [9]byte
	raw         int16
	alarm       bool
	present     bool
	conversions int
	persisted   int

	phase  phase
	in     byte   // byte being received
	nIn    int    // bits received in in
	bitPos int    // search or match position
	step   int    // search: 0 bit, 1 complement, 2 direction
	out    []byte // bytes being transmitted
	outPos int    // bits transmitted
	wr     []byte // write scratchpad payload
}

// NewDevice returns a device with the given address in its power-up state:
// 85°C in the temperature register and 12 bit resolution.
func NewDevice(addr onewire.Address) *Device {
	d := &Device{raw: 0x0550}
	binary.LittleEndian.PutUint64(d.rom[:], uint64(addr))
	d.spad = [9]byte{0x50, 0x05, 0x4b, 0x46, 0x7f, 0xff, 0x0c, 0x10}
	d.spad[8] = onewire.CalcCRC(d.spad[:8])
	return d
}

// Address returns the device address.
func (d *Device) Address() onewire.Address {
	return onewire.Address(binary.LittleEndian.Uint64(d.rom[:]))
}

// SetRaw sets the raw temperature register value the next conversion stores.
func (d *Device) SetRaw(raw int16) {
	d.mu.Lock()
	d.raw = raw
	d.mu.Unlock()
}

// SetAlarm sets whether the device answers an alarm search.
func (d *Device) SetAlarm(alarm bool) {
	d.mu.Lock()
	d.alarm = alarm
	d.mu.Unlock()
}

// SetPresent connects or disconnects the device without detaching it.
func (d *Device) SetPresent(present bool) {
	d.mu.Lock()
	d.present = present
	d.phase = phaseIdle
	d.mu.Unlock()
}

// Scratchpad returns the current scratchpad including its CRC byte.
func (d *Device) Scratchpad() [9]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.spad
}

// Conversions returns the number of temperature conversions performed.
func (d *Device) Conversions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conversions
}

// Persisted returns the number of Copy Scratchpad commands received.
func (d *Device) Persisted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.persisted
}

func (d *Device) isPresent() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.present
}

func (d *Device) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.phase = phaseROMCommand
	d.in, d.nIn = 0, 0
	d.bitPos, d.step = 0, 0
	d.out, d.outPos = nil, 0
	d.wr = nil
}

func (d *Device) romBit(i int) bool {
	return d.rom[i/8]&(1<<(i%8)) != 0
}

// transmit returns the bit the device drives in the current slot, if any.
func (d *Device) transmit() (bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.phase {
	case phaseSearch:
		switch d.step {
		case 0:
			return d.romBit(d.bitPos), true
		case 1:
			return !d.romBit(d.bitPos), true
		}
	case phaseTransmit:
		return d.out[d.outPos/8]&(1<<(d.outPos%8)) != 0, true
	}
	return false, false
}

// advance moves the device to its next slot; bit is what the master wrote.
func (d *Device) advance(bit bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.phase {
	case phaseSearch:
		if d.step < 2 {
			d.step++
			return
		}
		d.step = 0
		if bit != d.romBit(d.bitPos) {
			d.phase = phaseIdle
			return
		}
		d.bitPos++
		if d.bitPos == 64 {
			d.phase = phaseFunction
		}
	case phaseMatch:
		if bit != d.romBit(d.bitPos) {
			d.phase = phaseIdle
			return
		}
		d.bitPos++
		if d.bitPos == 64 {
			d.phase = phaseFunction
		}
	case phaseTransmit:
		d.outPos++
		if d.outPos == 8*len(d.out) {
			d.phase = phaseIdle
		}
	case phaseROMCommand, phaseFunction, phaseWrite:
		if bit {
			d.in |= 1 << d.nIn
		}
		d.nIn++
		if d.nIn == 8 {
			b := d.in
			d.in, d.nIn = 0, 0
			d.onByte(b)
		}
	}
}

func (d *Device) onByte(b byte) {
	switch d.phase {
	case phaseROMCommand:
		switch b {
		case cmdSearchROM:
			d.phase = phaseSearch
		case cmdAlarmSearch:
			d.phase = phaseIdle
			if d.alarm {
				d.phase = phaseSearch
			}
		case cmdMatchROM:
			d.phase = phaseMatch
		case cmdSkipROM:
			d.phase = phaseFunction
		case cmdReadROM:
			d.startTransmit(d.rom[:])
		default:
			d.phase = phaseIdle
		}
	case phaseFunction:
		switch b {
		case cmdConvert:
			d.conversions++
			binary.LittleEndian.PutUint16(d.spad[:2], uint16(d.raw))
			d.spad[8] = onewire.CalcCRC(d.spad[:8])
			d.phase = phaseIdle
		case cmdReadScratchpad:
			d.startTransmit(d.spad[:])
		case cmdWriteScratchpad:
			d.wr = d.wr[:0]
			d.phase = phaseWrite
		case cmdCopyScratchpad:
			d.persisted++
			d.phase = phaseIdle
		default:
			d.phase = phaseIdle
		}
	case phaseWrite:
		d.wr = append(d.wr, b)
		if len(d.wr) == 3 {
			copy(d.spad[2:5], d.wr)
			d.spad[8] = onewire.CalcCRC(d.spad[:8])
			d.phase = phaseIdle
		}
	}
}

func (d *Device) startTransmit(b []byte) {
	d.out = append([]byte(nil), b...)
	d.outPos = 0
	d.phase = phaseTransmit
}
