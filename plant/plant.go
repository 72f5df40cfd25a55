// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package plant holds the values sampled from the heating plant once per
// control cycle.
package plant

import (
	"periph.io/x/conn/v3/physic"
)

// Millis is a free running millisecond counter. It wraps after about 49.7
// days; durations must be computed with Since, never by comparing two
// instants directly.
type Millis uint32

// Since returns the time elapsed from t0 to t, correct across one wrap of
// the counter.
func (t Millis) Since(t0 Millis) Millis {
	return t - t0
}

// Reading is an optional temperature. The zero value is an absent reading.
type Reading struct {
	T     physic.Temperature
	Valid bool
}

// Absent is a missing reading: the sensor is not bound or could not be read.
var Absent = Reading{}

// Present returns a valid reading of t.
func Present(t physic.Temperature) Reading {
	return Reading{T: t, Valid: true}
}

func (r Reading) String() string {
	if !r.Valid {
		return "None"
	}
	return r.T.String()
}

// AtLeast reports whether the reading is valid and not below t.
func (r Reading) AtLeast(t physic.Temperature) bool {
	return r.Valid && r.T >= t
}

// Temperatures are the readings of all sensors of the plant.
type Temperatures struct {
	WarmWater    Reading
	BufferTop    Reading
	BufferBottom Reading
	HeatFlow     Reading
	HeatReturn   Reading
}

// Inputs is a snapshot of the digital inputs. Levels are not debounced.
type Inputs struct {
	StartBurner   bool // the boiler requests the burner
	WarmWaterPump bool // the warm water pump is running
	HeatingPump   bool // the heating circuit pump is running
}

// Sample is everything the controller knows about the plant in one cycle.
type Sample struct {
	Time         Millis
	Inputs       Inputs
	Temperatures Temperatures
	// OK is false when the sensors could not be sampled at all this cycle;
	// all temperatures are then absent.
	OK bool
}
