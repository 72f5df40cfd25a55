// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// heatctl controls the buffer tank of a heating plant.
//
// It samples the tank temperatures on a 1-wire bus, reads the burner and pump
// signals on GPIO inputs and drives the burner inhibit, buffer valve and
// buffer pump relays.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
