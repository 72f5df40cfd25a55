// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds18b20

import (
	"strconv"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Resolution is the measurement resolution in bits.
type Resolution int

// Supported resolutions. 10 bits is a good compromise between conversion
// time and the device's inherent accuracy of +/-0.5C.
const (
	Bits9  Resolution = 9
	Bits10 Resolution = 10
	Bits11 Resolution = 11
	Bits12 Resolution = 12
)

func (r Resolution) String() string {
	return strconv.Itoa(int(r)) + " bits"
}

func (r Resolution) valid() bool {
	return r >= Bits9 && r <= Bits12
}

// ConversionTime returns the time a conversion takes, datasheet p.3:
// 9bits:94ms, 10bits:188ms, 11bits:375ms, 12bits:750ms.
//
// It returns 0 for an invalid resolution.
func (r Resolution) ConversionTime() time.Duration {
	switch r {
	case Bits9:
		return 94 * time.Millisecond
	case Bits10:
		return 188 * time.Millisecond
	case Bits11:
		return 375 * time.Millisecond
	case Bits12:
		return 750 * time.Millisecond
	}
	return 0
}

// Divisor returns the number of raw counts per degree.
func (r Resolution) Divisor() int16 {
	if !r.valid() {
		return 0
	}
	return 2 << (r - Bits9)
}

// ConfigByte returns the configuration register value selecting r.
func (r Resolution) ConfigByte() byte {
	return byte(r-Bits9)<<5 | 0x1f
}

// ResolutionFromConfig decodes a configuration register value. The reserved
// bits must read as ones.
func ResolutionFromConfig(b byte) (Resolution, error) {
	for r := Bits9; r <= Bits12; r++ {
		if b == r.ConfigByte() {
			return r, nil
		}
	}
	return 0, ErrResolution
}

// Precision returns the smallest temperature step at resolution r.
func (r Resolution) Precision() physic.Temperature {
	if !r.valid() {
		return 0
	}
	return physic.Kelvin / physic.Temperature(r.Divisor())
}

func (r Resolution) toTemperature(raw int16) physic.Temperature {
	return physic.Temperature(raw)*physic.Kelvin/physic.Temperature(r.Divisor()) + physic.ZeroCelsius
}
