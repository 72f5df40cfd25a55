// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package heatctl is the buffer tank controller of a heating plant.
//
// The drivers (onewirebb, ds248x, ds18b20, pcf857x, hd44780) follow the
// periph.io device conventions. heatcontrol holds the state machine,
// controller runs it against the hardware and cmd/heatctl is the binary.
package heatctl
