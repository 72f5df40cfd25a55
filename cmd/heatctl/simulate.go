// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keepitwarm/heatctl/config"
	"github.com/keepitwarm/heatctl/controller"
	"github.com/keepitwarm/heatctl/ds18b20"
	"github.com/keepitwarm/heatctl/lcdterm"
	"github.com/keepitwarm/heatctl/onewirebb"
	"github.com/keepitwarm/heatctl/onewirebb/onewirebbtest"
	"github.com/keepitwarm/heatctl/plant"
	"github.com/keepitwarm/heatctl/plantio"
	"github.com/keepitwarm/heatctl/sensorset"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

var (
	simSpeed    int
	simDuration time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the controller on a simulated plant",
	Long: `Run the control loop against a simulated 1-wire bus and simulated input
pins, following a fixed scenario that walks through every mode: no buffer
reading, buffer hot, burner request with one pump cycle and pause, buffer
cooled down.

The display is drawn on the terminal. Log lines go to stderr unless a serial
port is given.`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simSpeed, "speed", 1, "Time acceleration factor")
	simulateCmd.Flags().DurationVar(&simDuration, "duration", 0, "Stop after this wall time, 0 runs until interrupted")
	rootCmd.AddCommand(simulateCmd)
}

// scene is a step of the scenario, active from its start time on.
type scene struct {
	from        time.Duration
	top         float64 // NaN: sensor disconnected
	startBurner bool
	heatingPump bool
}

var scenario = []scene{
	{0, math.NaN(), false, false},
	{5 * time.Second, 66, false, true},
	{20 * time.Second, 66, true, true},
	{100 * time.Second, 66, false, true},
	{150 * time.Second, 58, false, true},
	{180 * time.Second, 63, false, true},
}

// Fixed temperatures of the sensors the scenario does not drive.
var ambient = map[string]float64{
	sensorset.WarmWater:    48,
	sensorset.BufferBottom: 41,
	sensorset.HeatFlow:     55,
	sensorset.HeatReturn:   37,
}

// simulatedBus returns a simulated bus carrying one sensor per binding.
func simulatedBus(cfg *config.Config) (*onewirebb.Dev, map[string]*onewirebbtest.Device, error) {
	sim := onewirebbtest.New()
	devs := map[string]*onewirebbtest.Device{}
	for _, b := range cfg.Bindings() {
		d := onewirebbtest.NewDevice(b.Address)
		devs[b.Name] = d
		sim.Attach(d)
	}
	bus, err := onewirebb.New(sim, &onewirebb.Opts{Delay: sim.Delay})
	if err != nil {
		return nil, nil, err
	}
	return bus, devs, nil
}

// player applies the scenario before every read of the inputs, which is the
// first thing a control cycle does.
type player struct {
	clock       controller.Clock
	in          *plantio.Inputs
	res         ds18b20.Resolution
	devs        map[string]*onewirebbtest.Device
	startBurner *gpiotest.Pin
	heatingPump *gpiotest.Pin
}

func (p *player) Read() plant.Inputs {
	now := time.Duration(p.clock.Now()) * time.Millisecond
	s := scenario[0]
	for _, next := range scenario[1:] {
		if now < next.from {
			break
		}
		s = next
	}
	if top, ok := p.devs[sensorset.BufferTop]; ok {
		top.SetPresent(!math.IsNaN(s.top))
		if !math.IsNaN(s.top) {
			top.SetRaw(p.raw(s.top))
		}
	}
	setLevel(p.startBurner, s.startBurner)
	setLevel(p.heatingPump, s.heatingPump)
	return p.in.Read()
}

func (p *player) raw(c float64) int16 {
	return int16(math.Round(c * float64(p.res.Divisor())))
}

func setLevel(p *gpiotest.Pin, l bool) {
	p.Lock()
	p.L = gpio.Level(l)
	p.Unlock()
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simSpeed < 1 {
		return errors.New("speed must be at least 1")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lg, logCloser, err := openLog(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	lg.Info("Heat Control Init")

	bus, devs, err := simulatedBus(cfg)
	if err != nil {
		return err
	}
	p := &player{
		clock:       newScaledClock(simSpeed),
		res:         cfg.Resolution(),
		devs:        devs,
		startBurner: &gpiotest.Pin{N: "START_BURNER", Num: 0},
		heatingPump: &gpiotest.Pin{N: "HEATING_PUMP", Num: 2},
	}
	for name, c := range ambient {
		if d, ok := devs[name]; ok {
			d.SetRaw(p.raw(c))
		}
	}
	s := &station{
		bus: bus,
		inputs: [3]gpio.PinIn{
			p.startBurner,
			&gpiotest.Pin{N: "WARM_WATER_PUMP", Num: 1},
			p.heatingPump,
		},
		outputs: [3]gpio.PinOut{
			&gpiotest.Pin{N: "BURNER_INHIBIT", Num: 3},
			&gpiotest.Pin{N: "VALVE", Num: 4},
			&gpiotest.Pin{N: "PUMP", Num: 5},
		},
		clock:   p.clock,
		log:     lg,
		instant: true,
		cycle: cfg.Loop.Cycle / time.Duration(simSpeed),
		script: func(in *plantio.Inputs, _ *sensorset.Set) controller.InputReader {
			p.in = in
			return p
		},
	}
	if cfg.Display.Enabled {
		opts := lcdterm.DefaultOpts
		opts.Rows, opts.Cols = cfg.Display.Rows, cfg.Display.Cols
		lcd, err := lcdterm.New(&opts)
		if err != nil {
			return err
		}
		defer lcd.Halt()
		s.lcd = lcd
	}
	loop, outputs, err := s.assemble(cfg)
	if err != nil {
		return err
	}
	defer outputs.Halt()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if simDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, simDuration)
		defer cancel()
	}
	err = loop.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	lg.Infof("stopped after %d cycles", loop.Cycles())
	return nil
}

// scaledClock runs speed times faster than the wall clock.
type scaledClock struct {
	mono  *controller.MonotonicClock
	speed uint32
}

func newScaledClock(speed int) *scaledClock {
	return &scaledClock{mono: controller.NewMonotonicClock(), speed: uint32(speed)}
}

func (c *scaledClock) Now() plant.Millis {
	return plant.Millis(uint32(c.mono.Now()) * c.speed)
}
