// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package lcdterm implements a display.TextDisplay that draws a character
// LCD on the terminal.
//
// Useful to run the controller without the hardware. When the output is a
// terminal the LCD is redrawn in place with the backlight as an ANSI color
// swatch; otherwise each refresh is printed as plain text.
package lcdterm

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"periph.io/x/conn/v3/display"
)

// Opts represents the options available for this display.
type Opts struct {
	Rows int
	Cols int
	// Backlight is the color of the swatch drawn while the backlight is on.
	Backlight color.NRGBA
	Palette   *ansi256.Palette
	// W is the output, stdout when nil.
	W io.Writer
	// ANSI forces escape sequences on W. Ignored when W is nil; stdout gets
	// them when it is a terminal.
	ANSI bool

	_ struct{}
}

// DefaultOpts is a 16x2 LCD with a green backlight.
var DefaultOpts = Opts{
	Rows:      2,
	Cols:      16,
	Backlight: color.NRGBA{R: 0x40, G: 0xff, B: 0x40, A: 0xff},
}

// Dev is a character LCD emulator that outputs to the console.
type Dev struct {
	mu         sync.Mutex
	w          io.Writer
	ansi       bool
	palette    ansi256.Palette
	light      color.NRGBA
	rows, cols int

	cells     [][]byte
	row, col  int // 0-based cursor
	on        bool
	backlight bool
	scroll    bool
	drawn     bool
	buf       bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Rows < 1 || opts.Cols < 1 {
		return nil, errors.New("lcdterm: invalid geometry")
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	d := &Dev{
		palette:   *p,
		light:     opts.Backlight,
		rows:      opts.Rows,
		cols:      opts.Cols,
		on:        true,
		backlight: true,
	}
	switch {
	case opts.W == nil:
		fd := os.Stdout.Fd()
		d.ansi = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		if d.ansi {
			d.w = colorable.NewColorableStdout()
		} else {
			d.w = colorable.NewNonColorable(os.Stdout)
		}
	case opts.ANSI:
		d.w, d.ansi = opts.W, true
	default:
		d.w = colorable.NewNonColorable(opts.W)
	}
	d.cells = make([][]byte, d.rows)
	d.clear()
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("LCDTerm{%dx%d}", d.cols, d.rows)
}

// Halt implements conn.Resource.
//
// It resets the terminal colors so the shell is not left corrupted.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ansi {
		return nil
	}
	_, err := d.w.Write([]byte("\033[0m"))
	return err
}

// Rows implements display.TextDisplay.
func (d *Dev) Rows() int { return d.rows }

// Cols implements display.TextDisplay.
func (d *Dev) Cols() int { return d.cols }

// MinRow implements display.TextDisplay.
func (d *Dev) MinRow() int { return 1 }

// MinCol implements display.TextDisplay.
func (d *Dev) MinCol() int { return 1 }

// AutoScroll implements display.TextDisplay. Text that overflows a row is
// dropped when disabled and wraps to the next row when enabled.
func (d *Dev) AutoScroll(enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scroll = enabled
	return nil
}

// Clear implements display.TextDisplay.
func (d *Dev) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clear()
	return d.refresh()
}

// Cursor is accepted but not drawn.
func (d *Dev) Cursor(modes ...display.CursorMode) error {
	return nil
}

// Display implements display.TextDisplay.
func (d *Dev) Display(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.on = on
	return d.refresh()
}

// Backlight implements display.DisplayBacklight.
func (d *Dev) Backlight(intensity display.Intensity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backlight = intensity > 0
	return d.refresh()
}

// Home implements display.TextDisplay.
func (d *Dev) Home() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.row, d.col = 0, 0
	return nil
}

// Move implements display.TextDisplay.
func (d *Dev) Move(dir display.CursorDirection) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch dir {
	case display.Forward:
		if d.col < d.cols {
			d.col++
		}
	case display.Backward:
		if d.col > 0 {
			d.col--
		}
	case display.Up:
		if d.row > 0 {
			d.row--
		}
	case display.Down:
		if d.row < d.rows-1 {
			d.row++
		}
	default:
		return fmt.Errorf("lcdterm: %w", display.ErrNotImplemented)
	}
	return nil
}

// MoveTo implements display.TextDisplay.
func (d *Dev) MoveTo(row, col int) error {
	if row < 1 || row > d.rows || col < 1 || col > d.cols {
		return fmt.Errorf("lcdterm: position (%d, %d) out of range", row, col)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.row, d.col = row-1, col-1
	return nil
}

// Write writes characters at the cursor and redraws the LCD. Bytes outside
// printable ASCII are shown as '?'.
func (d *Dev) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range p {
		if d.col >= d.cols {
			if !d.scroll {
				break
			}
			d.col = 0
			d.row = (d.row + 1) % d.rows
		}
		if c < 0x20 || c > 0x7e {
			c = '?'
		}
		d.cells[d.row][d.col] = c
		d.col++
	}
	return len(p), d.refresh()
}

// WriteString implements display.TextDisplay.
func (d *Dev) WriteString(text string) (int, error) {
	return d.Write([]byte(text))
}

// Line returns the content of row, 1-based.
func (d *Dev) Line(row int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if row < 1 || row > d.rows {
		return ""
	}
	return string(d.cells[row-1])
}

func (d *Dev) clear() {
	for i := range d.cells {
		d.cells[i] = bytes.Repeat([]byte{' '}, d.cols)
	}
	d.row, d.col = 0, 0
}

func (d *Dev) refresh() error {
	// This code is designed to minimize the amount of memory allocated per call.
	d.buf.Reset()
	if d.ansi && d.drawn {
		fmt.Fprintf(&d.buf, "\033[%dA\r", d.rows+2)
	}
	border := "+" + strings.Repeat("-", d.cols) + "+"
	_, _ = d.buf.WriteString(border)
	_, _ = d.buf.WriteString("\n")
	for _, r := range d.cells {
		_ = d.buf.WriteByte('|')
		if d.on {
			_, _ = d.buf.Write(r)
		} else {
			_, _ = d.buf.WriteString(strings.Repeat(" ", d.cols))
		}
		_, _ = d.buf.WriteString("|\n")
	}
	_, _ = d.buf.WriteString(border)
	if d.ansi {
		c := color.NRGBA{A: 0xff}
		if d.backlight {
			c = d.light
		}
		_, _ = d.buf.WriteString(" ")
		_, _ = io.WriteString(&d.buf, d.palette.Block(c))
		_, _ = d.buf.WriteString("\033[0m")
	}
	_, _ = d.buf.WriteString("\n")
	d.drawn = true
	_, err := d.buf.WriteTo(d.w)
	return err
}

var _ display.TextDisplay = &Dev{}
var _ display.DisplayBacklight = &Dev{}
var _ fmt.Stringer = &Dev{}
