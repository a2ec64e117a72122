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


// Package telemetry publishes readings and power state changes over MQTT.
package telemetry

import (
	"encoding/json"
	"time"
)

// Reading is one published snapshot.
type Reading struct {
	Timestamp time.Time

	IAQ         int
	StaticIAQ   int
	Accuracy    int
	IAQValid    bool
	Temperature float64
	Humidity    float64
	Pressure    float64

	BatteryPercent int
	BatteryMV      int
	Charging       bool
	BatteryValid   bool
}

type Publisher interface {
	// PublishReading sends a snapshot, at most once.
	PublishReading(r Reading) error
	// PublishState sends a power state change, at least once.
	PublishState(state string, at time.Time) error
	Close() error
}

type readingPayload struct {
	Timestamp string         `json:"timestamp"`
	Air       airPayload     `json:"air"`
	Battery   batteryPayload `json:"battery"`
}

type airPayload struct {
	IAQ         int     `json:"iaq"`
	StaticIAQ   int     `json:"static_iaq"`
	Accuracy    int     `json:"accuracy"`
	Valid       bool    `json:"valid"`
	Temperature float64 `json:"temperature_c"`
	Humidity    float64 `json:"humidity_rh"`
	Pressure    float64 `json:"pressure_pa"`
}

type batteryPayload struct {
	Percent  *int `json:"percent"`
	MV       int  `json:"mv"`
	Charging bool `json:"charging"`
}

type statePayload struct {
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`
}

// FormatReading encodes a reading. An invalid battery reading has a null
// percent.
func FormatReading(r Reading) ([]byte, error) {
	p := readingPayload{
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
		Air: airPayload{
			IAQ:         r.IAQ,
			StaticIAQ:   r.StaticIAQ,
			Accuracy:    r.Accuracy,
			Valid:       r.IAQValid,
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			Pressure:    r.Pressure,
		},
		Battery: batteryPayload{MV: r.BatteryMV, Charging: r.Charging},
	}
	if r.BatteryValid {
		percent := r.BatteryPercent
		p.Battery.Percent = &percent
	}
	return json.Marshal(p)
}

func FormatState(state string, at time.Time) ([]byte, error) {
	return json.Marshal(statePayload{Timestamp: at.UTC().Format(time.RFC3339), State: state})
}
