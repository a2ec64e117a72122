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

	"github.com/lashy0/nimbus/internal/airsensor"
	"github.com/lashy0/nimbus/internal/buttons"
	"github.com/lashy0/nimbus/internal/logging"
	"github.com/lashy0/nimbus/internal/power"
)

const (
	LoopInterval           = 100 * time.Millisecond
	DefaultBatteryInterval = 2 * time.Second
	defaultReadPeriod      = 1000 * time.Millisecond

	sensorFailLogEvery   = 10
	batteryFailLogEvery  = 20
	lowBatteryHysteresis = 5
)

// Sensor is the part of the sensor runtime the worker paces.
type Sensor interface {
	Initialized() bool
	Read() (airsensor.Sample, error)
	NextCallDelay() time.Duration
	Mode() airsensor.Mode
	SetMode(m airsensor.Mode) error
}

type BatteryReader interface {
	Read() (power.BatteryReading, error)
}

type EventQueue interface {
	Poll() (buttons.Event, bool)
}

// Input consumes button events and watches for idleness.
type Input interface {
	HandleEvent(e buttons.Event)
	ProcessIdle()
}

type PowerState interface {
	IsMonitoring() bool
}

type WorkerConfig struct {
	BatteryInterval    time.Duration
	ULPWhileMonitoring bool
	LowBatteryPercent  int
}

type WorkerDeps struct {
	Queue   EventQueue
	Input   Input
	Power   PowerState
	Battery BatteryReader

	// Sensor may be nil when no sensor was found.
	Sensor Sensor
	Shared *Shared
	Events *Events
	Log    *logging.Logger
}

// Worker is the background loop: it feeds button events to the controller,
// samples the battery and the air sensor on their own cadences and publishes
// the results for the UI tick.
type Worker struct {
	cfg WorkerConfig
	WorkerDeps

	battery      power.BatteryReading
	nextBattery  time.Time
	batteryFails *logging.EveryN
	lowBattery   bool

	sample      airsensor.Sample
	hasSample   bool
	nextRead    time.Time
	sensorFails *logging.EveryN
	iaqLog      iaqLogger
	iaqReady    bool

	pendingEdge bool
	chargingNow bool
}

func NewWorker(cfg WorkerConfig, deps WorkerDeps) *Worker {
	if cfg.BatteryInterval <= 0 {
		cfg.BatteryInterval = DefaultBatteryInterval
	}
	if deps.Log == nil {
		deps.Log = logging.Discard()
	}
	return &Worker{
		cfg:          cfg,
		WorkerDeps:   deps,
		battery:      power.BatteryReading{Percent: power.BatteryPercentUnknown},
		batteryFails: logging.NewEveryN(batteryFailLogEvery),
		sensorFails:  logging.NewEveryN(sensorFailLogEvery),
		iaqLog:       iaqLogger{log: deps.Log},
	}
}

// Run steps the worker every LoopInterval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(LoopInterval)
	defer ticker.Stop()
	for {
		w.Step(time.Now())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Step runs one iteration of the loop.
func (w *Worker) Step(now time.Time) {
	w.dispatchButtons()
	w.Input.ProcessIdle()

	monitoring := w.Power.IsMonitoring()
	w.stepBattery(monitoring, now)
	if w.Sensor != nil && w.Sensor.Initialized() {
		w.syncMode(monitoring, now)
		if !now.Before(w.nextRead) {
			w.stepSensor(now)
		}
	}

	snap := Snapshot{
		Sensor:     w.sample,
		HasSensor:  w.hasSample,
		Battery:    w.battery,
		Monitoring: monitoring,
	}
	if w.pendingEdge {
		snap.ChargingEdge = true
		snap.ChargingNow = w.chargingNow
	}
	if w.Shared.Publish(snap) {
		w.pendingEdge = false
	}
}

func (w *Worker) dispatchButtons() {
	for {
		e, ok := w.Queue.Poll()
		if !ok {
			return
		}
		w.Log.Infof("Button event: %s (%s)", e.ID, e.Kind)
		w.Input.HandleEvent(e)
	}
}

func (w *Worker) stepBattery(monitoring bool, now time.Time) {
	if monitoring || w.Battery == nil || now.Before(w.nextBattery) {
		return
	}
	w.nextBattery = now.Add(w.cfg.BatteryInterval)

	r, err := w.Battery.Read()
	if err != nil {
		if n, ok := w.batteryFails.Hit(); ok {
			w.Log.Warnf("Battery read failed (%d times): %v", n, err)
		}
		w.battery = power.BatteryReading{Percent: power.BatteryPercentUnknown}
		return
	}
	if n := w.batteryFails.Count(); n > 0 {
		w.Log.Infof("Battery read recovered after %d failures", n)
		w.batteryFails.Reset()
	}

	prev := w.battery
	if !r.Valid {
		if prev.Valid {
			w.Log.Warnf("Battery state unavailable (%d mV)", r.Millivolts())
		}
		w.battery = r
		return
	}

	if prev.Valid {
		if prev.Charging != r.Charging {
			w.chargingEdge(r)
		}
	} else if r.Charging {
		w.chargingEdge(r)
	}
	if prev.Charging != r.Charging {
		state := "battery"
		if r.Charging {
			state = "charging"
		}
		w.Log.Infof("Battery state: %s (%d mV, %d%%)", state, r.Millivolts(), r.Percent)
	}
	w.battery = r
	w.checkLowBattery(r)
}

func (w *Worker) chargingEdge(r power.BatteryReading) {
	w.pendingEdge = true
	w.chargingNow = r.Charging
	w.Events.ChargingChanged(r.Charging, r)
}

// checkLowBattery reports a low battery once per discharge.
func (w *Worker) checkLowBattery(r power.BatteryReading) {
	if r.Charging || r.Percent > w.cfg.LowBatteryPercent+lowBatteryHysteresis {
		w.lowBattery = false
		return
	}
	if w.cfg.LowBatteryPercent > 0 && r.Percent <= w.cfg.LowBatteryPercent && !w.lowBattery {
		w.lowBattery = true
		w.Log.Warnf("Battery low (%d%%)", r.Percent)
		w.Events.LowBattery(r)
	}
}

func (w *Worker) syncMode(monitoring bool, now time.Time) {
	want := airsensor.ModeLP
	if monitoring && w.cfg.ULPWhileMonitoring {
		want = airsensor.ModeULP
	}
	if w.Sensor.Mode() == want {
		return
	}
	if err := w.Sensor.SetMode(want); err != nil {
		w.Log.Warnf("BME680 mode switch failed: %v", err)
		return
	}
	w.nextRead = now.Add(w.Sensor.NextCallDelay())
}

func (w *Worker) stepSensor(now time.Time) {
	period := defaultReadPeriod
	s, err := w.Sensor.Read()
	if err != nil {
		if n, ok := w.sensorFails.Hit(); ok {
			w.Log.Warnf("BME680 read failed (%d times): %v", n, err)
		}
	} else {
		if n := w.sensorFails.Count(); n > 0 {
			w.Log.Infof("BME680 read recovered after %d failures", n)
			w.sensorFails.Reset()
		}
		w.sample = s
		w.hasSample = true
		w.iaqLog.Log(s, w.Sensor.Mode(), now)
		if s.IAQValid && !w.iaqReady {
			w.iaqReady = true
			w.Events.IAQReady(s)
		}
		if d := w.Sensor.NextCallDelay(); d > 0 {
			period = d
		}
	}
	w.nextRead = now.Add(period)
}
