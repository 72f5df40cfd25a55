// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/keepitwarm/heatctl/config"
	"github.com/keepitwarm/heatctl/sensorset"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/onewire"
)

var searchSimulated bool

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "List the sensors on the 1-wire bus",
	Long: `Search the 1-wire bus and print every device found, together with the
sensor it is bound to in the configuration, then the bound sensors that did
not answer.

The configuration is not changed.`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchSimulated, "simulate", false, "Search the simulated bus")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var bus onewire.Bus
	if searchSimulated {
		bus, _, err = simulatedBus(cfg)
		if err != nil {
			return err
		}
	} else {
		h, err := openHardware(cfg, false)
		if err != nil {
			return err
		}
		defer h.close()
		ow, err := openBus(cfg, h)
		if err != nil {
			return err
		}
		defer ow.Halt()
		bus = ow
	}
	return report(cfg, bus)
}

func report(cfg *config.Config, bus sensorset.Searcher) error {
	bindings := cfg.Bindings()
	found, err := sensorset.Enumerate(bus, bindings)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d devices\n", len(found))
	for _, f := range found {
		fmt.Printf("  %s (%s)\n", f, config.Address(f.Address))
	}
	missing := sensorset.Missing(found, bindings)
	if len(missing) != 0 {
		fmt.Printf("Missing %d sensors\n", len(missing))
		for _, b := range missing {
			fmt.Printf("  %s %s\n", b.Name, config.Address(b.Address))
		}
	}
	return nil
}
