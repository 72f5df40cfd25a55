// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds18b20 interfaces to Dallas Semi / Maxim DS18B20 and DS18S20
// 1-wire temperature sensors.
//
// Sampling several sensors is done in two steps: StartAll triggers a
// conversion on every device of the bus at once, and after
// Resolution.ConversionTime each device is read with Dev.ReadTemperature.
//
// The raw value is divided by the divisor of the resolution found in the
// configuration register (2, 4, 8 or 16 counts per degree for 9 to 12 bits).
//
// # Datasheet
//
// https://datasheets.maximintegrated.com/en/ds/DS18B20.pdf
package ds18b20
