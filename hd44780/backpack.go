// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

import (
	"github.com/keepitwarm/heatctl/pcf857x"
	"periph.io/x/conn/v3/i2c"
)

// DefaultBackpackAddress is the usual address of the PCF8574 LCD backpacks.
const DefaultBackpackAddress uint16 = 0x27

// NewPCF8574Backpack returns a display on the common LCD1602/LCD2004 PCF8574
// backpack at addr.
func NewPCF8574Backpack(bus i2c.Bus, addr uint16, rows, cols int) (*Dev, error) {
	pcf, err := pcf857x.New(bus, addr, pcf857x.PCF8574)
	if err != nil {
		return nil, err
	}
	d, err := New(pcf, rows, cols)
	if err != nil {
		_ = pcf.Halt()
		return nil, err
	}
	return d, nil
}
