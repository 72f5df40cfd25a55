// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package onewirebb implements a 1-wire bus master by bit-banging a single
// open-drain GPIO line.
//
// The Dev type implements onewire.Bus, so drivers such as ds18b20 can use it
// like any other 1-wire master. It also exposes the raw protocol primitives
// (reset/presence, bit and byte slots) and the ROM search algorithm with an
// explicit, resumable SearchState.
//
// Timing is generated in software: every wait is a busy loop, so the calling
// goroutine should be locked to its thread and the process should run with a
// real-time priority to keep slots within tolerance.
//
// # Datasheet
//
// https://www.analog.com/en/resources/technical-articles/1wire-communication-through-software.html
//
// https://www.analog.com/en/resources/app-notes/1wire-search-algorithm.html
package onewirebb
