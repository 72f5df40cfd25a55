// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sensorset

import (
	"fmt"

	"github.com/keepitwarm/heatctl/ds18b20"
	"periph.io/x/conn/v3/onewire"
)

// Searcher enumerates the devices on a bus. onewire.Bus implements it.
type Searcher interface {
	Search(alarmOnly bool) ([]onewire.Address, error)
}

// Found is one device discovered on the bus.
type Found struct {
	Address onewire.Address
	Family  ds18b20.Family
	// Name is the binding the address belongs to, empty when unbound.
	Name string
}

func (f Found) String() string {
	name := f.Name
	if name == "" {
		name = "unbound"
	}
	return fmt.Sprintf("%#016x %s %s", uint64(f.Address), f.Family, name)
}

// Enumerate lists every device answering a search and matches it against
// bindings. Devices come out in search order.
func Enumerate(bus Searcher, bindings []Binding) ([]Found, error) {
	addrs, err := bus.Search(false)
	if err != nil {
		return nil, fmt.Errorf("sensorset: search: %w", err)
	}
	out := make([]Found, 0, len(addrs))
	for _, a := range addrs {
		f := Found{Address: a, Family: ds18b20.Family(a & 0xff)}
		for _, b := range bindings {
			if b.Address == a {
				f.Name = b.Name
				break
			}
		}
		out = append(out, f)
	}
	return out, nil
}

// Missing returns the bindings whose address was not found.
func Missing(found []Found, bindings []Binding) []Binding {
	var out []Binding
	for _, b := range bindings {
		ok := false
		for _, f := range found {
			if f.Address == b.Address {
				ok = true
				break
			}
		}
		if !ok {
			out = append(out, b)
		}
	}
	return out
}
