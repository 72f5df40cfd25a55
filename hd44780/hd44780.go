// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hd44780 controls a Hitachi HD44780 character LCD wired in 4-bit
// mode behind a PCF8574 I²C backpack.
//
// Rows and columns are numbered from 1, as periph's display.TextDisplay
// expects.
//
// # Datasheet
//
// https://www.sparkfun.com/datasheets/LCD/HD44780.pdf
//
// https://www.handsontec.com/dataspecs/I2C_2004_LCD.pdf
package hd44780

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
)

// Port is the 8-bit expander port the display is wired to.
type Port interface {
	Write(v uint16) error
	String() string
}

// Backpack wiring: P0 RS, P1 R/W, P2 E, P3 backlight, P4-P7 D4-D7.
const (
	bitRS        = 1 << 0
	bitEnable    = 1 << 2
	bitBacklight = 1 << 3
)

// Instructions, datasheet p.24.
const (
	cmdClear          = 0x01
	cmdHome           = 0x02
	cmdEntryMode      = 0x04
	cmdDisplayControl = 0x08
	cmdShift          = 0x10
	cmdFunctionSet    = 0x20
	cmdSetDDRAM       = 0x80

	entryIncrement = 0x02
	entryShift     = 0x01
	displayOn      = 0x04
	cursorOn       = 0x02
	blinkOn        = 0x01
	shiftRight     = 0x04
	twoLines       = 0x08
)

// Execution times, datasheet p.24, with margin for a slow oscillator.
const (
	delayClear   = 2 * time.Millisecond
	delayCommand = 50 * time.Microsecond
)

// Dev is a character display.
type Dev struct {
	mu        sync.Mutex
	port      Port
	rows      int
	cols      int
	entry     byte
	control   byte
	backlight byte
}

// New initializes the display in 4-bit mode, clears it and switches the
// backlight on.
func New(port Port, rows, cols int) (*Dev, error) {
	if rows < 1 || rows > 4 || cols < 1 || cols > 40 {
		return nil, fmt.Errorf("hd44780: unsupported geometry %dx%d", cols, rows)
	}
	d := &Dev{
		port:      port,
		rows:      rows,
		cols:      cols,
		entry:     entryIncrement,
		control:   displayOn,
		backlight: bitBacklight,
	}
	if err := d.init(); err != nil {
		return nil, fmt.Errorf("hd44780: %w", err)
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("HD44780{%s, %dx%d}", d.port, d.cols, d.rows)
}

// Rows implements display.TextDisplay.
func (d *Dev) Rows() int {
	return d.rows
}

// Cols implements display.TextDisplay.
func (d *Dev) Cols() int {
	return d.cols
}

// MinRow implements display.TextDisplay.
func (d *Dev) MinRow() int {
	return 1
}

// MinCol implements display.TextDisplay.
func (d *Dev) MinCol() int {
	return 1
}

// Clear blanks the display and moves the cursor home.
func (d *Dev) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command(cmdClear); err != nil {
		return err
	}
	sleep(delayClear)
	return nil
}

// Home moves the cursor to the first row and column.
func (d *Dev) Home() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command(cmdHome); err != nil {
		return err
	}
	sleep(delayClear)
	return nil
}

// AutoScroll shifts the display instead of the cursor on each character.
func (d *Dev) AutoScroll(enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entry &^= entryShift
	if enabled {
		d.entry |= entryShift
	}
	return d.command(cmdEntryMode | d.entry)
}

// Cursor sets the cursor mode. The HD44780 has an underline cursor and a
// blinking block which can be combined.
func (d *Dev) Cursor(modes ...display.CursorMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.control
	for _, m := range modes {
		switch m {
		case display.CursorOff:
			c &^= cursorOn | blinkOn
		case display.CursorUnderline:
			c |= cursorOn
		case display.CursorBlock, display.CursorBlink:
			c |= blinkOn
		default:
			return fmt.Errorf("hd44780: unexpected cursor mode %d", m)
		}
	}
	d.control = c
	return d.command(cmdDisplayControl | c)
}

// Display switches the display on or off. The content is kept.
func (d *Dev) Display(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setDisplay(on)
}

// Move moves the cursor one position forward or backward.
func (d *Dev) Move(dir display.CursorDirection) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch dir {
	case display.Forward:
		return d.command(cmdShift | shiftRight)
	case display.Backward:
		return d.command(cmdShift)
	default:
		return fmt.Errorf("hd44780: %w", display.ErrNotImplemented)
	}
}

// MoveTo moves the cursor to row and col.
func (d *Dev) MoveTo(row, col int) error {
	if row < 1 || row > d.rows || col < 1 || col > d.cols {
		return fmt.Errorf("hd44780: position (%d, %d) out of range", row, col)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.command(cmdSetDDRAM | d.address(row, col))
}

// Write writes characters at the cursor position.
func (d *Dev) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, c := range p {
		if err := d.send(c, bitRS); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// WriteString writes text at the cursor position.
func (d *Dev) WriteString(text string) (int, error) {
	return d.Write([]byte(text))
}

// Backlight switches the backlight; any non zero intensity is on.
func (d *Dev) Backlight(intensity display.Intensity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backlight = 0
	if intensity > 0 {
		d.backlight = bitBacklight
	}
	return d.write(d.backlight)
}

// Halt clears the display and switches it and its backlight off.
func (d *Dev) Halt() error {
	err := d.Clear()
	d.mu.Lock()
	defer d.mu.Unlock()
	if err2 := d.setDisplay(false); err == nil {
		err = err2
	}
	d.backlight = 0
	if err2 := d.write(0); err == nil {
		err = err2
	}
	return err
}

// address returns the DDRAM address of a 1-based position. Rows 3 and 4
// continue rows 1 and 2 after the last column.
func (d *Dev) address(row, col int) byte {
	offsets := [4]int{0x00, 0x40, d.cols, 0x40 + d.cols}
	return byte(offsets[row-1] + col - 1)
}

func (d *Dev) setDisplay(on bool) error {
	d.control &^= displayOn
	if on {
		d.control |= displayOn
	}
	return d.command(cmdDisplayControl | d.control)
}

// init follows the 4-bit initialization by instruction, datasheet p.46.
func (d *Dev) init() error {
	sleep(50 * time.Millisecond)
	if err := d.write(d.backlight); err != nil {
		return err
	}
	for _, w := range []time.Duration{4100 * time.Microsecond, 100 * time.Microsecond, delayCommand} {
		if err := d.nibble(0x3, 0); err != nil {
			return err
		}
		sleep(w)
	}
	if err := d.nibble(0x2, 0); err != nil {
		return err
	}
	sleep(delayCommand)
	fs := byte(cmdFunctionSet)
	if d.rows > 1 {
		fs |= twoLines
	}
	for _, c := range []byte{fs, cmdDisplayControl, cmdClear, cmdEntryMode | d.entry, cmdDisplayControl | d.control} {
		if err := d.command(c); err != nil {
			return err
		}
		if c == cmdClear {
			sleep(delayClear)
		}
	}
	return nil
}

func (d *Dev) command(c byte) error {
	if err := d.send(c, 0); err != nil {
		return err
	}
	sleep(delayCommand)
	return nil
}

// send transfers one byte as two nibbles, high nibble first.
func (d *Dev) send(b, rs byte) error {
	if err := d.nibble(b>>4, rs); err != nil {
		return err
	}
	return d.nibble(b&0x0f, rs)
}

// nibble strobes four data bits into the controller. The data is latched on
// the falling edge of E; one I²C transfer lasts longer than the minimum
// enable pulse width.
func (d *Dev) nibble(n, rs byte) error {
	v := n<<4 | rs | d.backlight
	if err := d.write(v | bitEnable); err != nil {
		return err
	}
	return d.write(v)
}

func (d *Dev) write(v byte) error {
	return d.port.Write(uint16(v))
}

var sleep = time.Sleep

var _ display.TextDisplay = &Dev{}
var _ display.DisplayBacklight = &Dev{}
var _ conn.Resource = &Dev{}
