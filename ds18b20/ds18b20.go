// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds18b20

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/keepitwarm/heatctl/onewirebb"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/onewire"
	"periph.io/x/conn/v3/physic"
)

// Family code of the specific device type
type Family byte

func (f Family) String() string {
	switch f {
	case DS18S20:
		return "DS18S20"
	case DS18B20:
		return "DS18B20"
	default:
		return "unknown"
	}
}

const DS18B20 Family = 0x28
const DS18S20 Family = 0x10

// Function commands, datasheet p.11.
const (
	cmdConvert         = 0x44
	cmdWriteScratchpad = 0x4e
	cmdReadScratchpad  = 0xbe
	cmdCopyScratchpad  = 0x48
	cmdSkipROM         = 0xcc
)

// StartAll starts a conversion on all DS18B20 devices on the bus at once.
//
// It returns without waiting for the conversion to finish. Results must not be
// read before Resolution.ConversionTime has elapsed; reading earlier returns
// the previous conversion or garbage.
func StartAll(o onewire.Bus) error {
	return o.Tx([]byte{cmdSkipROM, cmdConvert}, nil, onewire.StrongPullup)
}

// ConvertAll performs a conversion on all DS18B20 devices on the bus.
//
// During the conversion it places the bus in strong pull-up mode to power
// parasitic devices and returns when the conversions have completed. The wait
// is determined by the highest resolution configured on the bus, which must be
// provided.
func ConvertAll(o onewire.Bus, maxResolution Resolution) error {
	if !maxResolution.valid() {
		return errors.New("ds18b20: invalid resolution")
	}
	if err := StartAll(o); err != nil {
		return err
	}
	sleep(maxResolution.ConversionTime())
	return nil
}

// New returns an object that communicates over 1-wire to the DS18B20 sensor
// with the specified 64-bit address.
//
// No bus traffic happens here: the address is only checked for a supported
// family code and a valid CRC, so a sensor that is currently unplugged can
// still be bound.
func New(o onewire.Bus, addr onewire.Address) (*Dev, error) {
	if err := onewirebb.CheckAddress(addr); err != nil {
		return nil, fmt.Errorf("ds18b20: %w", err)
	}
	d := &Dev{onewire: onewire.Dev{Bus: o, Addr: addr}}
	switch d.Family() {
	case DS18B20:
	case DS18S20:
		d.resolution = Bits9
	default:
		return nil, fmt.Errorf("ds18b20: unsupported family code %#02x", byte(addr&0xff))
	}
	return d, nil
}

// Dev is a handle to a Dallas Semi / Maxim DS18B20 temperature sensor on a
// 1-wire bus.
type Dev struct {
	onewire    onewire.Dev // device on 1-wire bus
	resolution Resolution  // last known resolution, 0 when unknown
}

func (d *Dev) Family() Family {
	return Family(d.onewire.Addr & 0xFF)
}

// Address returns the 1-wire address of the device.
func (d *Dev) Address() onewire.Address {
	return d.onewire.Addr
}

func (d *Dev) String() string {
	return d.Family().String() + "{" + d.onewire.String() + "}"
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return nil
}

// Resolution returns the resolution last read from or written to the device,
// 0 if neither happened yet.
func (d *Dev) Resolution() Resolution {
	return d.resolution
}

// SetResolution writes the configuration register. The alarm thresholds TH
// and TL are cleared.
//
// The setting is volatile; use Persist to keep it across power cycles.
func (d *Dev) SetResolution(r Resolution) error {
	if !r.valid() {
		return errors.New("ds18b20: invalid resolution")
	}
	if d.Family() == DS18S20 {
		if r != Bits9 {
			return errors.New("ds18b20: DS18S20 resolution is fixed to 9 bits")
		}
		return nil
	}
	d.resolution = 0
	if err := d.onewire.Tx([]byte{cmdWriteScratchpad, 0, 0, r.ConfigByte()}, nil); err != nil {
		return err
	}
	d.resolution = r
	return nil
}

// Persist copies the scratchpad to the device EEPROM so that the
// configuration survives a power cycle.
func (d *Dev) Persist() error {
	if err := d.onewire.TxPower([]byte{cmdCopyScratchpad}, nil); err != nil {
		return err
	}
	// Wait for the write to complete.
	sleep(10 * time.Millisecond)
	return nil
}

// Sense converts and reads the temperature of this single device.
//
// It is meant for diagnostics; cyclic sampling of several sensors should use
// StartAll and ReadTemperature.
func (d *Dev) Sense(e *physic.Env) error {
	if err := d.onewire.TxPower([]byte{cmdConvert}, nil); err != nil {
		return err
	}
	r := d.resolution
	if !r.valid() {
		r = Bits12
	}
	sleep(r.ConversionTime())
	t, err := d.ReadTemperature()
	if err != nil {
		return err
	}
	e.Temperature = t
	return nil
}

// ReadTemperature reads the temperature resulting from the last conversion.
//
// The divisor is taken from the configuration register read along with the
// value. A device that does not answer reads as all ones and is reported as
// ErrNoResponse.
func (d *Dev) ReadTemperature() (physic.Temperature, error) {
	var spad [9]byte
	if err := d.onewire.Tx([]byte{cmdReadScratchpad}, spad[:]); err != nil {
		return 0, err
	}
	return d.parseScratchpad(spad)
}

func (d *Dev) parseScratchpad(spad [9]byte) (physic.Temperature, error) {
	raw := binary.LittleEndian.Uint16(spad[:2])
	if raw == 0xffff {
		return 0, ErrNoResponse
	}
	if !onewire.CheckCRC(spad[:]) {
		return 0, ErrScratchpadCRC
	}
	r := Bits9
	if d.Family() != DS18S20 {
		var err error
		if r, err = ResolutionFromConfig(spad[4]); err != nil {
			return 0, err
		}
	}
	d.resolution = r
	return r.toTemperature(int16(raw)), nil
}

// DataError reports scratchpad content that cannot be turned into a reading.
type DataError string

func (e DataError) Error() string  { return string(e) }
func (e DataError) BusError() bool { return true }

const (
	// ErrNoResponse is returned when the scratchpad reads as all ones.
	ErrNoResponse = DataError("ds18b20: device did not respond")
	// ErrResolution is returned for an unknown configuration register value.
	ErrResolution = DataError("ds18b20: unknown resolution in configuration register")
	// ErrScratchpadCRC is returned when the scratchpad CRC does not match.
	ErrScratchpadCRC = DataError("ds18b20: incorrect scratchpad CRC")
)

var sleep = time.Sleep

var _ conn.Resource = &Dev{}
