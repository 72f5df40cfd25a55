// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/keepitwarm/heatctl/config"
	"github.com/keepitwarm/heatctl/serlog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	portName   string
	baudRate   int
)

var rootCmd = &cobra.Command{
	Use:   "heatctl",
	Short: "Buffer tank controller for a heating plant",
	Long: `heatctl - buffer tank controller.

Keeps the burner inhibited while the buffer tank is hot enough to feed the
heating circuit and pumps water from the tank while the burner asks to start.

The plant is described by a YAML file, see "heatctl config" for the defaults.
Log and telemetry lines go to a serial port when one is given, stdout
otherwise.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port for log and telemetry")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate of the serial port")
}

// loadConfig reads the configuration and applies the command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if portName != "" {
		cfg.Log.Port = portName
	}
	if baudRate != 0 {
		cfg.Log.Baud = baudRate
	}
	return cfg, cfg.Validate()
}

// openLog returns the logger configured by cfg. fallback receives the lines
// when no serial port is configured.
func openLog(cfg *config.Config, fallback io.Writer) (*serlog.Logger, io.Closer, error) {
	if cfg.Log.Port == "" {
		return serlog.New(fallback, cfg.LogFlags()), io.NopCloser(nil), nil
	}
	port, err := serlog.OpenSerial(cfg.Log.Port, cfg.Log.Baud)
	if err != nil {
		return nil, nil, err
	}
	return serlog.New(port, cfg.LogFlags()), port, nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		b, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(b)
		return err
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := serlog.Ports()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(portsCmd)
}
