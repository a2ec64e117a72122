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
	"context"
	"time"

	"github.com/lashy0/nimbus/internal/logging"
	"github.com/lashy0/nimbus/internal/power"
	"github.com/lashy0/nimbus/internal/telemetry"
)

const (
	DefaultTelemetryInterval = 30 * time.Second

	stateQueueLength      = 4
	telemetryFailLogEvery = 10
)

type stateChange struct {
	state power.State
	at    time.Time
}

// Reporter publishes the shared snapshot and power state changes off the
// worker goroutine, since a broker round trip can take seconds.
type Reporter struct {
	pub      telemetry.Publisher
	shared   *Shared
	interval time.Duration
	log      *logging.Logger

	states chan stateChange
	fails  *logging.EveryN
}

func NewReporter(pub telemetry.Publisher, shared *Shared, interval time.Duration, log *logging.Logger) *Reporter {
	if interval <= 0 {
		interval = DefaultTelemetryInterval
	}
	return &Reporter{
		pub:      pub,
		shared:   shared,
		interval: interval,
		log:      log,
		states:   make(chan stateChange, stateQueueLength),
		fails:    logging.NewEveryN(telemetryFailLogEvery),
	}
}

// StateChanged queues a power state for publishing. It never blocks; a full
// queue drops the change.
func (r *Reporter) StateChanged(s power.State) {
	select {
	case r.states <- stateChange{state: s, at: time.Now()}:
	default:
		r.log.Warnf("Telemetry queue full, dropped state %s", s)
	}
}

func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-r.states:
			if err := r.pub.PublishState(c.state.String(), c.at); err != nil {
				r.logFailure(err)
			} else {
				r.recovered()
			}
		case now := <-ticker.C:
			r.publishReading(now)
		}
	}
}

func (r *Reporter) publishReading(now time.Time) {
	snap, ok := r.shared.Peek()
	if !ok || !snap.HasSensor {
		return
	}
	if err := r.pub.PublishReading(readingFromSnapshot(snap, now)); err != nil {
		r.logFailure(err)
		return
	}
	r.recovered()
}

func (r *Reporter) recovered() {
	if n := r.fails.Count(); n > 0 {
		r.log.Infof("Telemetry publish recovered after %d failures", n)
		r.fails.Reset()
	}
}

func (r *Reporter) logFailure(err error) {
	if n, ok := r.fails.Hit(); ok {
		r.log.Warnf("Telemetry publish failed (%d times): %v", n, err)
	}
}

func readingFromSnapshot(snap Snapshot, at time.Time) telemetry.Reading {
	s := snap.Sensor
	return telemetry.Reading{
		Timestamp:      at,
		IAQ:            int(s.IAQ),
		StaticIAQ:      int(s.StaticIAQ),
		Accuracy:       int(s.Accuracy),
		IAQValid:       s.IAQValid,
		Temperature:    s.Temperature,
		Humidity:       s.Humidity,
		Pressure:       s.Pressure,
		BatteryPercent: snap.Battery.Percent,
		BatteryMV:      int(snap.Battery.Millivolts()),
		Charging:       snap.Battery.Charging,
		BatteryValid:   snap.Battery.Valid,
	}
}
