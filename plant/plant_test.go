// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package plant

import (
	"testing"

	"periph.io/x/conn/v3/physic"
)

func TestMillis_Since(t *testing.T) {
	data := []struct {
		now, t0, want Millis
	}{
		{5001, 0, 5001},
		{0, 0, 0},
		// The counter wrapped between t0 and now.
		{10, 0xfffffff6, 20},
		{0, 0xffffffff, 1},
	}
	for _, line := range data {
		if got := line.now.Since(line.t0); got != line.want {
			t.Fatalf("%d.Since(%d) = %d, want %d", line.now, line.t0, got, line.want)
		}
	}
}

func TestReading(t *testing.T) {
	if Absent.Valid {
		t.Fatal("Absent must not be valid")
	}
	if s := Absent.String(); s != "None" {
		t.Fatal(s)
	}
	var zero Reading
	if zero != Absent {
		t.Fatal("zero value must be absent")
	}
	r := Present(25*physic.Kelvin + physic.ZeroCelsius)
	if !r.Valid {
		t.Fatal("expected valid")
	}
	if s := r.String(); s != r.T.String() {
		t.Fatal(s)
	}
	if !r.AtLeast(r.T) || r.AtLeast(r.T+physic.MilliKelvin) {
		t.Fatal("AtLeast")
	}
	if Absent.AtLeast(-physic.ZeroCelsius) {
		t.Fatal("an absent reading is never at least anything")
	}
}
