// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config loads the controller configuration from a YAML file.
//
// Every field has a default matching the installed plant, so a file only
// needs the values that differ.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/keepitwarm/heatctl/ds18b20"
	"github.com/keepitwarm/heatctl/heatcontrol"
	"github.com/keepitwarm/heatctl/plant"
	"github.com/keepitwarm/heatctl/sensorset"
	"github.com/keepitwarm/heatctl/serlog"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Config is the whole controller configuration.
type Config struct {
	OneWire   OneWire    `yaml:"onewire"`
	Sensors   Sensors    `yaml:"sensors"`
	Inputs    Inputs     `yaml:"inputs"`
	Outputs   Outputs    `yaml:"outputs"`
	Expanders []Expander `yaml:"expanders,omitempty"`
	Control   Control    `yaml:"control"`
	Loop      Loop       `yaml:"loop"`
	Display   Display    `yaml:"display"`
	Log       Log        `yaml:"log"`
	Watchdog  Watchdog   `yaml:"watchdog"`
}

// OneWire is the bit-banged bus.
type OneWire struct {
	Pin  string `yaml:"pin"`
	Pull Pull   `yaml:"pull"`
	// Bridge is the I²C address of a DS2482 bridge mastering the bus instead
	// of Pin, 0 for none.
	Bridge uint16 `yaml:"bridge,omitempty"`
}

// Sensors are the temperature sensors.
type Sensors struct {
	Resolution int                `yaml:"resolution"`
	Persist    bool               `yaml:"persist"`
	Bindings   map[string]Address `yaml:"bindings"`
}

// Inputs are the digital input pins.
type Inputs struct {
	StartBurner   string `yaml:"start_burner"`
	WarmWaterPump string `yaml:"warm_water_pump"`
	HeatingPump   string `yaml:"heating_pump"`
	Pull          Pull   `yaml:"pull"`
}

// Outputs are the relay pins.
type Outputs struct {
	BurnerInhibit string `yaml:"burner_inhibit"`
	Valve         string `yaml:"valve"`
	Pump          string `yaml:"pump"`
}

// Expander is a PCF8574 board whose pins can be used as inputs or outputs by
// name, "PCF8574_20_P0" for pin 0 at address 0x20.
type Expander struct {
	Address uint16 `yaml:"address"`
}

// Control are the thresholds of the state machine. Temperatures are in °C.
type Control struct {
	MinBufferTemperature float64       `yaml:"min_buffer_temperature"`
	BufferHysteresis     float64       `yaml:"buffer_hysteresis"`
	InitDelay            time.Duration `yaml:"init_delay"`
	PumpDuration         time.Duration `yaml:"pump_duration"`
	PumpPause            time.Duration `yaml:"pump_pause"`
}

// Loop is the cadence of the control loop.
type Loop struct {
	Cycle            time.Duration `yaml:"cycle"`
	DisplayRefresh   time.Duration `yaml:"display_refresh"`
	TelemetryRefresh time.Duration `yaml:"telemetry_refresh"`
}

// Display is the character LCD.
type Display struct {
	Enabled bool `yaml:"enabled"`
	// Bus is the I²C bus, shared with the expanders and the 1-wire bridge.
	// Empty selects the first bus of the host.
	Bus     string `yaml:"i2c_bus"`
	Address uint16 `yaml:"address"`
	Rows    int    `yaml:"rows"`
	Cols    int    `yaml:"cols"`
}

// Log is the log and telemetry output.
type Log struct {
	// Port is the serial port; stdout when empty.
	Port      string `yaml:"port"`
	Baud      int    `yaml:"baud"`
	Debug     bool   `yaml:"debug"`
	Info      bool   `yaml:"info"`
	Telemetry bool   `yaml:"telemetry"`
}

// Watchdog is the hardware watchdog.
type Watchdog struct {
	// Path is the device node; the watchdog is not used when empty.
	Path string `yaml:"path"`
}

// Default returns the configuration of the installed plant.
func Default() *Config {
	bindings := map[string]Address{}
	for _, b := range sensorset.DefaultBindings {
		bindings[b.Name] = Address(b.Address)
	}
	return &Config{
		OneWire: OneWire{Pin: "GPIO4", Pull: Pull(gpio.Float)},
		Sensors: Sensors{Resolution: 10, Bindings: bindings},
		Inputs: Inputs{
			StartBurner:   "GPIO17",
			WarmWaterPump: "GPIO27",
			HeatingPump:   "GPIO22",
			Pull:          Pull(gpio.Float),
		},
		Outputs: Outputs{BurnerInhibit: "GPIO5", Valve: "GPIO6", Pump: "GPIO13"},
		Control: Control{
			MinBufferTemperature: 60,
			BufferHysteresis:     5,
			InitDelay:            5 * time.Second,
			PumpDuration:         60 * time.Second,
			PumpPause:            60 * time.Second,
		},
		Loop: Loop{
			Cycle:            time.Second,
			DisplayRefresh:   10 * time.Second,
			TelemetryRefresh: 15 * time.Second,
		},
		Display: Display{Enabled: true, Address: 0x27, Rows: 2, Cols: 16},
		Log:     Log{Baud: 9600, Debug: true, Info: true},
	}
}

// Parse overlays the YAML document b on the defaults. Unknown keys are an
// error.
func Parse(b []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads the file at path. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return c, nil
}

// Marshal returns c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks the values that cannot be used as is.
func (c *Config) Validate() error {
	var errs []error
	if ds18b20.Resolution(c.Sensors.Resolution).ConversionTime() == 0 {
		errs = append(errs, fmt.Errorf("sensors.resolution: %d is not in 9..12", c.Sensors.Resolution))
	}
	for name := range c.Sensors.Bindings {
		if !known(name) {
			errs = append(errs, fmt.Errorf("sensors.bindings: unknown sensor %q", name))
		}
	}
	switch {
	case c.OneWire.Bridge != 0:
		if c.OneWire.Bridge < 0x18 || c.OneWire.Bridge > 0x1b {
			errs = append(errs, fmt.Errorf("onewire.bridge: %#x is not in 0x18..0x1b", c.OneWire.Bridge))
		}
	case c.OneWire.Pin == "":
		errs = append(errs, errors.New("onewire.pin: required"))
	}
	for key, pin := range map[string]string{
		"inputs.start_burner":    c.Inputs.StartBurner,
		"inputs.warm_water_pump": c.Inputs.WarmWaterPump,
		"inputs.heating_pump":    c.Inputs.HeatingPump,
		"outputs.burner_inhibit": c.Outputs.BurnerInhibit,
		"outputs.valve":          c.Outputs.Valve,
		"outputs.pump":           c.Outputs.Pump,
	} {
		if pin == "" {
			errs = append(errs, fmt.Errorf("%s: required", key))
		}
	}
	hc := c.Controller()
	if err := hc.Validate(); err != nil {
		errs = append(errs, err)
	}
	for key, d := range map[string]time.Duration{
		"control.init_delay":     c.Control.InitDelay,
		"control.pump_duration":  c.Control.PumpDuration,
		"control.pump_pause":     c.Control.PumpPause,
		"loop.cycle":             c.Loop.Cycle,
		"loop.display_refresh":   c.Loop.DisplayRefresh,
		"loop.telemetry_refresh": c.Loop.TelemetryRefresh,
	} {
		if d <= 0 || d > maxDuration {
			errs = append(errs, fmt.Errorf("%s: %s out of range", key, d))
		}
	}
	if c.Display.Enabled && (c.Display.Rows < 1 || c.Display.Cols < 1) {
		errs = append(errs, errors.New("display: rows and cols must be positive"))
	}
	if c.Log.Port != "" && c.Log.Baud <= 0 {
		errs = append(errs, errors.New("log.baud: must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// maxDuration keeps millisecond durations well inside half the wrapping
// counter range.
const maxDuration = 24 * time.Hour

// Controller returns the state machine configuration.
func (c *Config) Controller() heatcontrol.Config {
	return heatcontrol.Config{
		MinBufferTemperature: celsius(c.Control.MinBufferTemperature),
		BufferHysteresis:     physic.Temperature(c.Control.BufferHysteresis * float64(physic.Kelvin)),
		Timing: heatcontrol.Timing{
			InitDelay:    millis(c.Control.InitDelay),
			PumpDuration: millis(c.Control.PumpDuration),
			PumpPause:    millis(c.Control.PumpPause),
		},
	}
}

// Bindings returns the sensor bindings in display order.
func (c *Config) Bindings() []sensorset.Binding {
	var out []sensorset.Binding
	for _, name := range sensorset.Names {
		if a, ok := c.Sensors.Bindings[name]; ok {
			out = append(out, sensorset.Binding{Name: name, Address: a.Address()})
		}
	}
	return out
}

// Resolution returns the sensor resolution.
func (c *Config) Resolution() ds18b20.Resolution {
	return ds18b20.Resolution(c.Sensors.Resolution)
}

// LogFlags returns the enabled log channels.
func (c *Config) LogFlags() serlog.Flags {
	return serlog.Flags{Debug: c.Log.Debug, Info: c.Log.Info, Telemetry: c.Log.Telemetry}
}

func known(name string) bool {
	for _, n := range sensorset.Names {
		if n == name {
			return true
		}
	}
	return false
}

func celsius(c float64) physic.Temperature {
	return physic.Temperature(c*float64(physic.Kelvin)) + physic.ZeroCelsius
}

func millis(d time.Duration) plant.Millis {
	return plant.Millis(d / time.Millisecond)
}
