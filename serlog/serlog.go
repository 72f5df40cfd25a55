// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package serlog writes the controller's log and telemetry lines, usually to
// a serial port.
//
// There are three independent channels. Debug and info lines are
// "key: value" with booleans as TRUE/FALSE; telemetry lines are
// "telemetry/key:=value" with booleans as On/Off, ready to be bridged to a
// message broker. Temperatures are printed in °C with one decimal.
package serlog

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/keepitwarm/heatctl/plant"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/physic"
)

// Level selects a channel.
type Level int

// Channels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelTelemetry
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelTelemetry:
		return "telemetry"
	default:
		return "Level(" + strconv.Itoa(int(l)) + ")"
	}
}

// Flags enable the channels.
type Flags struct {
	Debug     bool
	Info      bool
	Telemetry bool
}

// TelemetryPrefix starts every telemetry line.
const TelemetryPrefix = "telemetry/"

// Logger writes lines to w. It is safe for concurrent use; write errors are
// counted and otherwise ignored so logging never stops the control loop.
type Logger struct {
	mu     sync.Mutex
	w      io.Writer
	flags  Flags
	buf    []byte
	errors int
}

// New returns a Logger writing to w.
func New(w io.Writer, flags Flags) *Logger {
	return &Logger{w: w, flags: flags}
}

// Enabled reports whether level is enabled.
func (l *Logger) Enabled(level Level) bool {
	switch level {
	case LevelDebug:
		return l.flags.Debug
	case LevelInfo:
		return l.flags.Info
	case LevelTelemetry:
		return l.flags.Telemetry
	}
	return false
}

// Debug writes a free text debug line.
func (l *Logger) Debug(text string) {
	l.text(LevelDebug, text)
}

// Info writes a free text info line.
func (l *Logger) Info(text string) {
	l.text(LevelInfo, text)
}

// Debugf writes a formatted debug line.
func (l *Logger) Debugf(format string, args ...any) {
	if l.Enabled(LevelDebug) {
		l.text(LevelDebug, fmt.Sprintf(format, args...))
	}
}

// Infof writes a formatted info line.
func (l *Logger) Infof(format string, args ...any) {
	if l.Enabled(LevelInfo) {
		l.text(LevelInfo, fmt.Sprintf(format, args...))
	}
}

// Emit writes key and value on the level's channel.
//
// value is formatted by type: bool, plant.Reading, physic.Temperature,
// integers, fmt.Stringer and string. An absent reading is written as None on
// the debug and info channels and skipped on the telemetry channel.
func (l *Logger) Emit(level Level, key string, value any) {
	if !l.Enabled(level) {
		return
	}
	var v string
	if r, ok := value.(plant.Reading); ok {
		if !r.Valid {
			if level == LevelTelemetry {
				return
			}
			v = "None"
		} else {
			v = FormatFixed(r.T)
		}
	} else {
		v = format(level, value)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = l.buf[:0]
	if level == LevelTelemetry {
		l.buf = append(l.buf, TelemetryPrefix...)
		l.buf = append(l.buf, key...)
		l.buf = append(l.buf, ":="...)
	} else {
		l.buf = append(l.buf, key...)
		l.buf = append(l.buf, ": "...)
	}
	l.buf = append(l.buf, v...)
	l.buf = append(l.buf, '\n')
	l.flush()
}

// Errors returns the number of failed writes.
func (l *Logger) Errors() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errors
}

func (l *Logger) text(level Level, text string) {
	if !l.Enabled(level) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf[:0], text...)
	l.buf = append(l.buf, '\n')
	l.flush()
}

func (l *Logger) flush() {
	if _, err := l.w.Write(l.buf); err != nil {
		l.errors++
	}
}

func format(level Level, value any) string {
	switch v := value.(type) {
	case bool:
		if level == LevelTelemetry {
			if v {
				return "On"
			}
			return "Off"
		}
		if v {
			return "TRUE"
		}
		return "FALSE"
	case physic.Temperature:
		return FormatFixed(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case plant.Millis:
		return strconv.FormatUint(uint64(v), 10)
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// FormatFixed returns t in °C with one decimal, truncated toward zero:
// "65.0", "-0.5".
func FormatFixed(t physic.Temperature) string {
	tenths := int64((t - physic.ZeroCelsius) / (physic.Kelvin / 10))
	sign := ""
	if tenths < 0 {
		sign = "-"
		tenths = -tenths
	}
	return sign + strconv.FormatInt(tenths/10, 10) + "." + strconv.FormatInt(tenths%10, 10)
}

// OpenSerial opens a serial port as 8N1 at baud.
func OpenSerial(name string, baud int) (io.WriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serlog: open %s: %w", name, err)
	}
	return port, nil
}

// Ports lists the serial ports of the host.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
