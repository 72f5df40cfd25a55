// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package panel lays out the controller status on a 16x2 character display.
//
// Row 1 shows the operating mode, row 2 the top and bottom buffer
// temperatures:
//
//	Buffer Enabled
//	O:+065  U:+041
package panel

import (
	"fmt"
	"strings"

	"github.com/keepitwarm/heatctl/plant"
	"periph.io/x/conn/v3/physic"
)

// TextDisplay is the part of display.TextDisplay the panel uses.
type TextDisplay interface {
	Cols() int
	Clear() error
	MoveTo(row, col int) error
	WriteString(text string) (int, error)
}

// Banner is shown from start-up until the first status.
const Banner = "Heat Control"

// FormatTemperature returns r in whole degrees Celsius as a sign and three
// digits, "+065" or "-004", or "None" for an absent reading. Fractions are
// truncated toward zero. A hundreds digit above 9 is shown as a blank.
func FormatTemperature(r plant.Reading) string {
	if !r.Valid {
		return "None"
	}
	c := int64((r.T - physic.ZeroCelsius) / physic.Kelvin)
	var b [4]byte
	b[0] = '+'
	if c < 0 {
		b[0] = '-'
		c = -c
	}
	for i, div := range []int64{100, 10, 1} {
		digit := c / div
		c -= digit * div
		if digit > 9 {
			b[i+1] = ' '
			continue
		}
		b[i+1] = byte('0' + digit)
	}
	return string(b[:])
}

// Panel writes the controller status to a display.
type Panel struct {
	d TextDisplay
}

// New returns a Panel on d.
func New(d TextDisplay) *Panel {
	return &Panel{d: d}
}

// ShowBanner clears the display and shows the banner.
func (p *Panel) ShowBanner() error {
	if err := p.d.Clear(); err != nil {
		return fmt.Errorf("panel: %w", err)
	}
	if _, err := p.d.WriteString(Banner); err != nil {
		return fmt.Errorf("panel: %w", err)
	}
	return nil
}

// Show writes label on the first row, padded or cut to the display width,
// and the buffer temperatures on the second row.
func (p *Panel) Show(label string, t *plant.Temperatures) error {
	cols := p.d.Cols()
	if len(label) > cols {
		label = label[:cols]
	}
	lines := []struct {
		row, col int
		text     string
	}{
		{1, 1, label + strings.Repeat(" ", cols-len(label))},
		{2, 1, "O:" + FormatTemperature(t.BufferTop) + "  "},
		{2, 9, "U:" + FormatTemperature(t.BufferBottom) + "  "},
	}
	for _, l := range lines {
		if err := p.d.MoveTo(l.row, l.col); err != nil {
			return fmt.Errorf("panel: %w", err)
		}
		if _, err := p.d.WriteString(l.text); err != nil {
			return fmt.Errorf("panel: %w", err)
		}
	}
	return nil
}
