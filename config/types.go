// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package config

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/onewire"
)

// Address is a 1-wire address written the way it is printed on sensor
// labels: family code first, CRC last, "28 FF 4B 96 74 16 04 6F". Spaces,
// colons and dashes between bytes are optional.
type Address onewire.Address

// ParseAddress parses the label form of an address. The CRC is not checked.
func ParseAddress(s string) (Address, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	b, err := hex.DecodeString(clean)
	if err != nil || len(b) != 8 {
		return 0, fmt.Errorf("invalid 1-wire address %q", s)
	}
	return Address(binary.LittleEndian.Uint64(b)), nil
}

// Address returns the periph address.
func (a Address) Address() onewire.Address {
	return onewire.Address(a)
}

func (a Address) String() string {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(a))
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Address) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := ParseAddress(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*a = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (a Address) MarshalYAML() (any, error) {
	return a.String(), nil
}

// Pull is a pin pull setting: "float", "up" or "down".
type Pull gpio.Pull

var pulls = map[string]gpio.Pull{
	"float": gpio.Float,
	"up":    gpio.PullUp,
	"down":  gpio.PullDown,
}

// Pull returns the periph pull.
func (p Pull) Pull() gpio.Pull {
	return gpio.Pull(p)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Pull) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, ok := pulls[strings.ToLower(s)]
	if !ok {
		return fmt.Errorf("line %d: unknown pull %q, want float, up or down", n.Line, s)
	}
	*p = Pull(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (p Pull) MarshalYAML() (any, error) {
	for k, v := range pulls {
		if v == gpio.Pull(p) {
			return k, nil
		}
	}
	return nil, fmt.Errorf("unsupported pull %s", gpio.Pull(p))
}
