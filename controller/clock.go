// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package controller

import (
	"sync/atomic"
	"time"

	"github.com/keepitwarm/heatctl/plant"
)

// Clock returns a wrapping millisecond counter.
type Clock interface {
	Now() plant.Millis
}

// MonotonicClock counts milliseconds since its creation on the monotonic
// clock, truncated to 32 bits so it wraps after about 49.7 days.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock returns a clock starting at 0.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// Now implements Clock.
func (c *MonotonicClock) Now() plant.Millis {
	return plant.Millis(uint32(time.Since(c.start).Milliseconds()))
}

// ManualClock is a Clock advanced explicitly, for tests and simulation.
type ManualClock struct {
	t atomic.Uint32
}

// NewManualClock returns a clock at t.
func NewManualClock(t plant.Millis) *ManualClock {
	c := &ManualClock{}
	c.t.Store(uint32(t))
	return c
}

// Now implements Clock.
func (c *ManualClock) Now() plant.Millis {
	return plant.Millis(c.t.Load())
}

// Advance moves the clock forward by d, wrapping like the hardware counter.
func (c *ManualClock) Advance(d time.Duration) {
	c.t.Add(uint32(d / time.Millisecond))
}
