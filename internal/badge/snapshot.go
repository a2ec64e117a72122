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


package badge

import (
	"time"

	"github.com/lashy0/nimbus/internal/airsensor"
	"github.com/lashy0/nimbus/internal/power"
	"github.com/lashy0/nimbus/internal/timedlock"
)

const (
	publishTimeout = 10 * time.Millisecond
	takeTimeout    = 5 * time.Millisecond
)

// Snapshot is what the worker hands to the UI tick.
type Snapshot struct {
	Sensor     airsensor.Sample
	HasSensor  bool
	Battery    power.BatteryReading
	Monitoring bool

	// ChargingEdge is set once per charging change and cleared by Take.
	ChargingEdge bool
	ChargingNow  bool
}

// Shared is the single hand-off point between the worker and the UI tick.
// Both sides give up after a short wait rather than stall.
type Shared struct {
	mu   *timedlock.Mutex
	snap Snapshot
}

func NewShared() *Shared {
	return &Shared{
		mu:   timedlock.New(),
		snap: Snapshot{Battery: power.BatteryReading{Percent: power.BatteryPercentUnknown}},
	}
}

// Publish replaces the snapshot. An edge the UI has not taken yet survives a
// publish that carries none. It reports false when the lock was busy.
func (s *Shared) Publish(snap Snapshot) bool {
	return s.mu.With(publishTimeout, func() {
		if !snap.ChargingEdge && s.snap.ChargingEdge {
			snap.ChargingEdge = true
			snap.ChargingNow = s.snap.ChargingNow
		}
		s.snap = snap
	})
}

// Take returns the snapshot and clears the pending charging edge.
func (s *Shared) Take() (Snapshot, bool) {
	var snap Snapshot
	ok := s.mu.With(takeTimeout, func() {
		snap = s.snap
		s.snap.ChargingEdge = false
	})
	return snap, ok
}

// Peek returns the snapshot without consuming the edge.
func (s *Shared) Peek() (Snapshot, bool) {
	var snap Snapshot
	ok := s.mu.With(takeTimeout, func() {
		snap = s.snap
	})
	return snap, ok
}
