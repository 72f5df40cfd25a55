// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package panel

import (
	"errors"
	"strings"
	"testing"

	"github.com/keepitwarm/heatctl/plant"
	"periph.io/x/conn/v3/physic"
)

func celsius(c float64) plant.Reading {
	return plant.Present(physic.Temperature(c*float64(physic.Kelvin)) + physic.ZeroCelsius)
}

func TestFormatTemperature(t *testing.T) {
	data := []struct {
		r    plant.Reading
		want string
	}{
		{plant.Absent, "None"},
		{celsius(0), "+000"},
		{celsius(65), "+065"},
		{celsius(65.9375), "+065"},
		{celsius(-4), "-004"},
		{celsius(-0.5), "+000"},
		{celsius(-55), "-055"},
		{celsius(125), "+125"},
		{celsius(999), "+999"},
		{celsius(1234), "+ 34"},
	}
	for _, line := range data {
		if got := FormatTemperature(line.r); got != line.want {
			t.Errorf("%s: %q != %q", line.r, got, line.want)
		}
	}
}

// grid is a fake 16x2 display.
type grid struct {
	rows     [2][]byte
	row, col int
	err      error
}

func newGrid() *grid {
	g := &grid{}
	for i := range g.rows {
		g.rows[i] = []byte(strings.Repeat(".", 16))
	}
	return g
}

func (g *grid) Cols() int { return 16 }

func (g *grid) Clear() error {
	if g.err != nil {
		return g.err
	}
	for i := range g.rows {
		g.rows[i] = []byte(strings.Repeat(" ", 16))
	}
	g.row, g.col = 0, 0
	return nil
}

func (g *grid) MoveTo(row, col int) error {
	if g.err != nil {
		return g.err
	}
	g.row, g.col = row-1, col-1
	return nil
}

func (g *grid) WriteString(s string) (int, error) {
	if g.err != nil {
		return 0, g.err
	}
	for i := range len(s) {
		if g.col < 16 {
			g.rows[g.row][g.col] = s[i]
			g.col++
		}
	}
	return len(s), nil
}

func (g *grid) String() string {
	return string(g.rows[0]) + "|" + string(g.rows[1])
}

func TestShow(t *testing.T) {
	g := newGrid()
	p := New(g)
	if err := p.ShowBanner(); err != nil {
		t.Fatal(err)
	}
	if s := g.String(); s != "Heat Control    |                " {
		t.Fatalf("%q", s)
	}
	temps := &plant.Temperatures{BufferTop: celsius(65), BufferBottom: celsius(41.5)}
	if err := p.Show("Buffer Enabled", temps); err != nil {
		t.Fatal(err)
	}
	if s := g.String(); s != "Buffer Enabled  |O:+065  U:+041  " {
		t.Fatalf("%q", s)
	}
	// A shorter label overwrites the previous one completely.
	if err := p.Show("Init", &plant.Temperatures{}); err != nil {
		t.Fatal(err)
	}
	if s := g.String(); s != "Init            |O:None  U:None  " {
		t.Fatalf("%q", s)
	}
	if err := p.Show("A label that is far too long", temps); err != nil {
		t.Fatal(err)
	}
	if s := g.String(); s != "A label that is |O:+065  U:+041  " {
		t.Fatalf("%q", s)
	}
}

func TestShow_error(t *testing.T) {
	g := newGrid()
	g.err = errors.New("i2c nack")
	p := New(g)
	if err := p.Show("Init", &plant.Temperatures{}); !errors.Is(err, g.err) {
		t.Fatal(err)
	}
	if err := p.ShowBanner(); !errors.Is(err, g.err) {
		t.Fatal(err)
	}
}
