// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/keepitwarm/heatctl/config"
	"github.com/keepitwarm/heatctl/controller"
	"github.com/keepitwarm/heatctl/ds248x"
	"github.com/keepitwarm/heatctl/hd44780"
	"github.com/keepitwarm/heatctl/onewirebb"
	"github.com/keepitwarm/heatctl/pcf857x"
	"github.com/keepitwarm/heatctl/watchdog"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/onewire"
	"periph.io/x/host/v3"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller",
	Long: `Run the control loop on the host's GPIO pins until interrupted.

The relays are switched off on exit. When a watchdog device is configured it
is fed once per cycle.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// hardware holds the host resources opened for the plant.
type hardware struct {
	i2c       i2c.BusCloser
	expanders []*pcf857x.Dev
	lcd       *hd44780.Dev
	dog       *watchdog.Device
}

func (h *hardware) close() {
	if h.dog != nil {
		if err := h.dog.Close(); err != nil {
			log.Printf("watchdog: %v", err)
		}
	}
	if h.lcd != nil {
		_ = h.lcd.Halt()
	}
	for _, x := range h.expanders {
		_ = x.Halt()
	}
	if h.i2c != nil {
		_ = h.i2c.Close()
	}
}

// openHardware initializes the host drivers and opens the I²C bus, the
// expanders and the display. Expanders are opened before any
// pin is looked up so that their pins can be named in the configuration.
func openHardware(cfg *config.Config, display bool) (*hardware, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	h := &hardware{}
	if (display && cfg.Display.Enabled) || len(cfg.Expanders) != 0 || cfg.OneWire.Bridge != 0 {
		bus, err := i2creg.Open(cfg.Display.Bus)
		if err != nil {
			return nil, err
		}
		h.i2c = bus
	}
	for _, e := range cfg.Expanders {
		x, err := pcf857x.New(h.i2c, e.Address, pcf857x.PCF8574)
		if err != nil {
			h.close()
			return nil, err
		}
		h.expanders = append(h.expanders, x)
	}
	if display && cfg.Display.Enabled {
		lcd, err := hd44780.NewPCF8574Backpack(h.i2c, cfg.Display.Address, cfg.Display.Rows, cfg.Display.Cols)
		if err != nil {
			h.close()
			return nil, err
		}
		h.lcd = lcd
	}
	return h, nil
}

func pinByName(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown pin %q", name)
	}
	return p, nil
}

func pins(names ...string) ([]gpio.PinIO, error) {
	out := make([]gpio.PinIO, 0, len(names))
	for _, n := range names {
		p, err := pinByName(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// sensorBus is the 1-wire bus master, a bridge or a bit-banged pin.
type sensorBus interface {
	onewire.Bus
	Halt() error
}

func openBus(cfg *config.Config, h *hardware) (sensorBus, error) {
	if cfg.OneWire.Bridge != 0 {
		b, err := ds248x.New(h.i2c, cfg.OneWire.Bridge, nil)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	p, err := pinByName(cfg.OneWire.Pin)
	if err != nil {
		return nil, err
	}
	b, err := onewirebb.New(p, &onewirebb.Opts{Pull: cfg.OneWire.Pull.Pull()})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lg, logCloser, err := openLog(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	lg.Info("Heat Control Init")

	h, err := openHardware(cfg, true)
	if err != nil {
		return err
	}
	defer h.close()
	bus, err := openBus(cfg, h)
	if err != nil {
		return err
	}
	defer bus.Halt()
	in, err := pins(cfg.Inputs.StartBurner, cfg.Inputs.WarmWaterPump, cfg.Inputs.HeatingPump)
	if err != nil {
		return err
	}
	out, err := pins(cfg.Outputs.BurnerInhibit, cfg.Outputs.Valve, cfg.Outputs.Pump)
	if err != nil {
		return err
	}
	s := &station{
		bus:     bus,
		inputs:  [3]gpio.PinIn{in[0], in[1], in[2]},
		outputs: [3]gpio.PinOut{out[0], out[1], out[2]},
		clock:   controller.NewMonotonicClock(),
		log:     lg,
	}
	if h.lcd != nil {
		s.lcd = h.lcd
	}
	if cfg.Watchdog.Path != "" {
		if h.dog, err = watchdog.Open(cfg.Watchdog.Path); err != nil {
			return err
		}
		s.dog = h.dog
	}
	loop, outputs, err := s.assemble(cfg)
	if err != nil {
		return err
	}
	defer outputs.Halt()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	lg.Infof("stopped after %d cycles", loop.Cycles())
	return nil
}
