// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package watchdog feeds a hardware watchdog once per control cycle.
//
// When the process stops feeding it, because the loop is stuck on the bus or
// the process died, the watchdog resets the machine.
package watchdog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Feeder is fed once per control cycle.
type Feeder interface {
	Feed() error
	Close() error
}

// DefaultPath is the Linux watchdog device node.
const DefaultPath = "/dev/watchdog"

// magicClose disarms the Linux watchdog when written before closing.
const magicClose = 'V'

// Device is a Linux watchdog device. Opening it arms the watchdog.
type Device struct {
	mu     sync.Mutex
	w      io.WriteCloser
	name   string
	closed bool
}

// Open opens and arms the watchdog at path.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("watchdog: %w", err)
	}
	return newDevice(f, path), nil
}

func newDevice(w io.WriteCloser, name string) *Device {
	return &Device{w: w, name: name}
}

func (d *Device) String() string {
	return "Watchdog{" + d.name + "}"
}

// Feed restarts the watchdog timeout.
func (d *Device) Feed() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if _, err := d.w.Write([]byte{0}); err != nil {
		return fmt.Errorf("watchdog: %w", err)
	}
	return nil
}

// Close disarms the watchdog and closes the device. On a kernel built with
// nowayout the watchdog stays armed and resets the machine.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	_, err := d.w.Write([]byte{magicClose})
	if err2 := d.w.Close(); err == nil {
		err = err2
	}
	if err != nil {
		return fmt.Errorf("watchdog: %w", err)
	}
	return nil
}

// ErrClosed is returned when feeding a closed Device.
var ErrClosed = errors.New("watchdog: closed")

// Nop is used when no hardware watchdog is configured.
type Nop struct{}

// Feed does nothing.
func (Nop) Feed() error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

var _ Feeder = &Device{}
var _ Feeder = Nop{}
