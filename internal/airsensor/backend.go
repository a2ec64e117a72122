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


package airsensor

import "time"

// BackendConfig is handed to the fusion library when it opens the sensor.
type BackendConfig struct {
	Address           uint8
	HeaterTemperature int // °C
	HeaterDuration    time.Duration
	TemperatureOffset float64
	Mode              Mode
}

// Step is the result of one pass of the fusion library.
type Step struct {
	// Outputs holds the library outputs; HasIAQ is false when this pass
	// produced no IAQ value and the other fields hold the previous values.
	Outputs Sample
	HasIAQ  bool
	// NextCall is when the library wants to be called again.
	NextCall time.Time
}

// Backend is the fusion library. It is opaque: the runtime only sees its
// outputs and a serialized state blob.
type Backend interface {
	Open(cfg BackendConfig) error
	Step(now time.Time) (Step, error)
	SetMode(m Mode) error
	GetState() ([]byte, error)
	SetState(state []byte) error
	// ResetBaseline drops the learned gas baseline so the library
	// recalibrates from scratch.
	ResetBaseline() error
	Close() error
}
