// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package onewirebb

import (
	"errors"
	"fmt"
)

var (
	// ErrWireNotHigh is returned when the released line does not go high
	// before a reset. The pull-up is likely missing or the bus is shorted.
	ErrWireNotHigh error = shortedBusError("onewirebb: line stuck low, missing pull-up or short")

	// ErrSearchEnd is returned by SearchNext once the enumeration is
	// exhausted. It is a sentinel, not a failure.
	ErrSearchEnd = errors.New("onewirebb: search already finished")
)

// PortError wraps a failure of the underlying GPIO pin.
type PortError struct {
	Err error
}

func (e *PortError) Error() string {
	return "onewirebb: pin error: " + e.Err.Error()
}

func (e *PortError) Unwrap() error {
	return e.Err
}

// CRCError reports a ROM code whose CRC byte does not match its content.
type CRCError struct {
	Computed byte
	Received byte
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("onewirebb: ROM CRC mismatch, computed %#02x received %#02x", e.Computed, e.Received)
}

// BusError implements onewire.BusError.
func (e *CRCError) BusError() bool { return true }

// shortedBusError implements error and onewire.ShortedBusError.
type shortedBusError string

func (e shortedBusError) Error() string   { return string(e) }
func (e shortedBusError) IsShorted() bool { return true }
func (e shortedBusError) BusError() bool  { return true }

// busError implements error and onewire.BusError.
type busError string

func (e busError) Error() string  { return string(e) }
func (e busError) BusError() bool { return true }
