// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pcf857x

import (
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Pin is a single pin of the expander.
type Pin struct {
	dev    *Dev
	number int
	name   string
}

func (p *Pin) String() string {
	return p.name
}

// Name implements pin.Pin.
func (p *Pin) Name() string {
	return p.name
}

// Number implements pin.Pin.
func (p *Pin) Number() int {
	return p.number
}

// Function implements pin.Pin.
func (p *Pin) Function() string {
	if p.dev.Latch()&p.bit() == 0 {
		return "Out/Low"
	}
	return "In/High"
}

// Halt implements conn.Resource.
func (p *Pin) Halt() error {
	return nil
}

// In releases the pin high so an external circuit can pull it down. pull and
// edge are ignored: the pull-up is built in and the chip has no per pin edge
// detection.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	return p.dev.update(p.bit(), p.bit())
}

// Read returns the pin level. A failed bus read reads as Low.
func (p *Pin) Read() gpio.Level {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	v, err := p.dev.read()
	if err != nil {
		return gpio.Low
	}
	return v&p.bit() != 0
}

// WaitForEdge always returns false; the interrupt line of the chip does not
// tell which pin changed.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	return false
}

// Pull implements gpio.PinIn.
func (p *Pin) Pull() gpio.Pull {
	return gpio.PullUp
}

// DefaultPull implements gpio.PinIn.
func (p *Pin) DefaultPull() gpio.Pull {
	return gpio.PullUp
}

// Out drives the pin.
func (p *Pin) Out(l gpio.Level) error {
	var v uint16
	if l {
		v = p.bit()
	}
	return p.dev.update(v, p.bit())
}

// PWM returns ErrNotImplemented.
func (p *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return ErrNotImplemented
}

func (p *Pin) bit() uint16 {
	return 1 << p.number
}

var _ gpio.PinIO = &Pin{}
