/*
nimbus - Air quality badge controller
Copyright (C) 2024, lashy0

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/


// Package airsensor runs the BME680 sensor fusion library: it picks the bus
// address, persists calibration state, decides when IAQ readings can be
// trusted and paces reads at the cadence the library asks for.
package airsensor

import "fmt"

// Sample is one output set from the fusion library.
type Sample struct {
	IAQ               uint16
	StaticIAQ         uint16
	Temperature       float64 // °C
	Humidity          float64 // %RH
	Pressure          float64 // Pa
	GasResistance     float64 // Ohm
	Accuracy          uint8
	StabilizationDone bool
	RunInDone         bool
	IAQValid          bool
}

func (s Sample) String() string {
	return fmt.Sprintf("iaq=%d static=%d acc=%d temp=%.1f hum=%.1f valid=%t",
		s.IAQ, s.StaticIAQ, s.Accuracy, s.Temperature, s.Humidity, s.IAQValid)
}

// CalibrationReady reports whether the library has finished its warm up and
// reached a medium or better accuracy.
func (s Sample) CalibrationReady() bool {
	return s.Accuracy >= 2 && s.StabilizationDone && s.RunInDone
}

type Mode uint8

const (
	ModeLP Mode = iota
	ModeULP
)

func (m Mode) String() string {
	switch m {
	case ModeLP:
		return "LP"
	case ModeULP:
		return "ULP"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

const (
	maxIAQ = 500

	// I2C addresses the BME680 can strap to, in probe order.
	PrimaryAddress   uint8 = 0x76
	SecondaryAddress uint8 = 0x77
)
