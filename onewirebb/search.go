// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package onewirebb

import (
	"encoding/binary"

	"periph.io/x/conn/v3/onewire"
)

// ROM commands.
const (
	cmdSearchROM   = 0xf0
	cmdAlarmSearch = 0xec
)

// SearchState is the cursor of a ROM search. The zero value starts a new
// enumeration; feed the same state back into SearchNext to visit the next
// device until Done reports true.
type SearchState struct {
	// AlarmOnly restricts the search to devices in alarm state.
	AlarmOnly bool

	lastDiscrepancy int     // 1-based bit position, 0 when none is left
	rom             [8]byte // address accumulated so far, LSB first
	done            bool
}

// Done reports whether the enumeration is exhausted.
func (s *SearchState) Done() bool {
	return s.done
}

func (s *SearchState) bit(i int) bool {
	return s.rom[i/8]&(1<<(i%8)) != 0
}

func (s *SearchState) setBit(i int, v bool) {
	if v {
		s.rom[i/8] |= 1 << (i % 8)
	} else {
		s.rom[i/8] &^= 1 << (i % 8)
	}
}

// SearchNext advances the search by one full 64-bit pass.
//
// It returns found=false when no device answered, in which case the state is
// done. A pass that ends in a bus conflict also marks the state done and
// returns the partially accumulated address with found=false. Calling
// SearchNext on a done state returns ErrSearchEnd.
//
// A returned *CRCError means the pass completed but the address is corrupt;
// the state still advanced and the next call continues with the following
// device.
func (d *Dev) SearchNext(s *SearchState) (onewire.Address, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.searchNext(s)
}

func (d *Dev) searchNext(s *SearchState) (onewire.Address, bool, error) {
	if s.done {
		return 0, false, ErrSearchEnd
	}
	present, err := d.reset()
	if err != nil {
		return 0, false, err
	}
	if !present {
		s.done = true
		return 0, false, nil
	}

	cmd := byte(cmdSearchROM)
	if s.AlarmOnly {
		cmd = cmdAlarmSearch
	}
	if err := d.writeByte(cmd); err != nil {
		return 0, false, err
	}

	lastZero := 0
	for pos := 1; pos <= 64; pos++ {
		idBit, err := d.readBit()
		if err != nil {
			return 0, false, err
		}
		cmpBit, err := d.readBit()
		if err != nil {
			return 0, false, err
		}

		var dir bool
		switch {
		case idBit && cmpBit:
			// Nobody answered.
			s.done = true
			return romAddress(s.rom), false, nil
		case idBit != cmpBit:
			dir = idBit
		default:
			switch {
			case pos == s.lastDiscrepancy:
				dir = true
			case pos > s.lastDiscrepancy:
				dir = false
			default:
				dir = s.bit(pos - 1)
			}
			if !dir {
				lastZero = pos
			}
		}

		// Devices whose bit differs drop off until the next reset.
		if err := d.writeBit(dir); err != nil {
			return 0, false, err
		}
		s.setBit(pos-1, dir)
	}

	s.lastDiscrepancy = lastZero
	if lastZero == 0 {
		s.done = true
	}
	if err := CheckROM(s.rom); err != nil {
		return 0, false, err
	}
	return romAddress(s.rom), true, nil
}

// CheckROM verifies the CRC-8 (Maxim/Dallas) in byte 7 of a ROM code against
// bytes 0 to 6.
func CheckROM(rom [8]byte) error {
	if crc := onewire.CalcCRC(rom[:7]); crc != rom[7] {
		return &CRCError{Computed: crc, Received: rom[7]}
	}
	return nil
}

// CheckAddress is CheckROM for an onewire.Address.
func CheckAddress(a onewire.Address) error {
	return CheckROM(ROM(a))
}

// ROM returns the address bytes in bus order: family code first, CRC last.
func ROM(a onewire.Address) [8]byte {
	var rom [8]byte
	binary.LittleEndian.PutUint64(rom[:], uint64(a))
	return rom
}

func romAddress(rom [8]byte) onewire.Address {
	return onewire.Address(binary.LittleEndian.Uint64(rom[:]))
}
