// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package onewirebb

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/keepitwarm/heatctl/onewirebb/onewirebbtest"
	"periph.io/x/conn/v3/onewire"
)

func TestCheckROM_oneValidCRC(t *testing.T) {
	prefixes := [][7]byte{
		{0x28, 0xff, 0x4b, 0x96, 0x74, 0x16, 0x04},
		{0x28, 0xff, 0x2f, 0x96, 0x74, 0x16, 0x04},
		{0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		{0x28, 0xac, 0x41, 0x0e, 0x07, 0x00, 0x00},
	}
	for _, p := range prefixes {
		t.Run(fmt.Sprintf("%x", p), func(t *testing.T) {
			valid := 0
			for crc := 0; crc < 256; crc++ {
				var rom [8]byte
				copy(rom[:], p[:])
				rom[7] = byte(crc)
				err := CheckROM(rom)
				if err == nil {
					valid++
					continue
				}
				var ce *CRCError
				if !errors.As(err, &ce) {
					t.Fatalf("expected CRCError, got %v", err)
				}
				if ce.Received != byte(crc) || ce.Computed == byte(crc) {
					t.Fatalf("bad error content %v", ce)
				}
			}
			if valid != 1 {
				t.Fatalf("expected exactly one valid CRC byte, got %d", valid)
			}
		})
	}
}

func TestCheckROM_known(t *testing.T) {
	// Address from a real DS18B20.
	var a onewire.Address = 0x740000070e41ac28
	if err := CheckAddress(a); err != nil {
		t.Fatal(err)
	}
	if err := CheckAddress(a ^ 0x0100); err == nil {
		t.Fatal("expected CRC failure after flipping a bit")
	}
}

// searchAll runs SearchNext until the state is exhausted.
func searchAll(t *testing.T, d *Dev, s *SearchState, max int) []onewire.Address {
	var out []onewire.Address
	for i := 0; ; i++ {
		if i > max {
			t.Fatalf("search did not finish within %d calls", max)
		}
		addr, found, err := d.SearchNext(s)
		if errors.Is(err, ErrSearchEnd) {
			return out
		}
		if err != nil {
			t.Fatal(err)
		}
		if found {
			out = append(out, addr)
		}
		if s.Done() {
			if _, _, err := d.SearchNext(s); !errors.Is(err, ErrSearchEnd) {
				t.Fatalf("expected ErrSearchEnd after done, got %v", err)
			}
			return out
		}
	}
}

func sorted(a []onewire.Address) []onewire.Address {
	b := append([]onewire.Address(nil), a...)
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	return b
}

func TestSearchNext_enumeratesAll(t *testing.T) {
	serials := [][]uint64{
		{},
		{0x1},
		{0x1, 0x2},
		{0x1, 0x2, 0x3, 0x80000000, 0xffffffffffff},
		// Shared prefixes force discrepancies deep in the address.
		{0x100000000000, 0x100000000001, 0x100000000002, 0x100000000003, 0x000000000003},
	}
	for _, line := range serials {
		t.Run(fmt.Sprintf("K=%d", len(line)), func(t *testing.T) {
			var want []onewire.Address
			var devs []*onewirebbtest.Device
			for i, s := range line {
				family := byte(0x28)
				if i%2 == 1 {
					family = 0x10
				}
				a := onewirebbtest.ROM(family, s)
				want = append(want, a)
				devs = append(devs, onewirebbtest.NewDevice(a))
			}
			d, _ := newBus(t, devs...)
			var s SearchState
			got := searchAll(t, d, &s, len(line)+1)
			if len(got) != len(want) {
				t.Fatalf("found %d devices, want %d: %x", len(got), len(want), got)
			}
			g, w := sorted(got), sorted(want)
			for i := range g {
				if g[i] != w[i] {
					t.Fatalf("found %x, want %x", g, w)
				}
			}
		})
	}
}

func TestSearchNext_emptyBus(t *testing.T) {
	d, _ := newBus(t)
	var s SearchState
	addr, found, err := d.SearchNext(&s)
	if err != nil || found || addr != 0 {
		t.Fatalf("got %x %t %v", addr, found, err)
	}
	if !s.Done() {
		t.Fatal("state must be done on an empty bus")
	}
	if _, _, err := d.SearchNext(&s); !errors.Is(err, ErrSearchEnd) {
		t.Fatalf("expected ErrSearchEnd, got %v", err)
	}
}

func TestSearchNext_order(t *testing.T) {
	// The zero branch is taken first at every discrepancy, so devices come
	// out in increasing order of their bit-reversed address.
	a := onewirebbtest.ROM(0x28, 0x2)
	b := onewirebbtest.ROM(0x28, 0x1)
	d, _ := newBus(t, onewirebbtest.NewDevice(a), onewirebbtest.NewDevice(b))
	var s SearchState
	got := searchAll(t, d, &s, 3)
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("got %x", got)
	}
}

func TestSearchNext_crcError(t *testing.T) {
	bad := onewirebbtest.ROM(0x28, 0x5) ^ (0x01 << 56)
	good := onewirebbtest.ROM(0x28, 0x6)
	d, _ := newBus(t, onewirebbtest.NewDevice(bad), onewirebbtest.NewDevice(good))
	var s SearchState
	var crcErrors int
	var found []onewire.Address
	for !s.Done() {
		addr, ok, err := d.SearchNext(&s)
		var ce *CRCError
		switch {
		case errors.As(err, &ce):
			crcErrors++
		case err != nil:
			t.Fatal(err)
		case ok:
			found = append(found, addr)
		}
	}
	if crcErrors != 1 || len(found) != 1 || found[0] != good {
		t.Fatalf("crc errors %d, found %x", crcErrors, found)
	}

	// Search drops the corrupt address.
	all, err := d.Search(false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0] != good {
		t.Fatalf("Search returned %x", all)
	}
}

func TestSearch_alarmOnly(t *testing.T) {
	a := onewirebbtest.NewDevice(onewirebbtest.ROM(0x28, 0x10))
	b := onewirebbtest.NewDevice(onewirebbtest.ROM(0x28, 0x20))
	c := onewirebbtest.NewDevice(onewirebbtest.ROM(0x28, 0x30))
	b.SetAlarm(true)
	d, _ := newBus(t, a, b, c)

	all, err := d.Search(false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 devices, got %x", all)
	}

	alarmed, err := d.Search(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(alarmed) != 1 || alarmed[0] != b.Address() {
		t.Fatalf("expected only %x, got %x", b.Address(), alarmed)
	}

	b.SetAlarm(false)
	alarmed, err = d.Search(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(alarmed) != 0 {
		t.Fatalf("expected no alarmed device, got %x", alarmed)
	}
}

func TestSearch_disconnected(t *testing.T) {
	a := onewirebbtest.NewDevice(onewirebbtest.ROM(0x28, 0x10))
	b := onewirebbtest.NewDevice(onewirebbtest.ROM(0x28, 0x20))
	d, _ := newBus(t, a, b)
	b.SetPresent(false)
	all, err := d.Search(false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0] != a.Address() {
		t.Fatalf("got %x", all)
	}
}

func TestSearch_stuck(t *testing.T) {
	d, sim := newBus(t, onewirebbtest.NewDevice(onewirebbtest.ROM(0x28, 0x10)))
	sim.SetStuck(true)
	if _, err := d.Search(false); !errors.Is(err, ErrWireNotHigh) {
		t.Fatalf("expected ErrWireNotHigh, got %v", err)
	}
}
