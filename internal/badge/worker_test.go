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
	"testing"
	"time"

	"github.com/TheCacophonyProject/event-reporter/v3/eventclient"
	"github.com/lashy0/nimbus/internal/airsensor"
	"github.com/lashy0/nimbus/internal/buttons"
	"github.com/lashy0/nimbus/internal/logging"
	"github.com/lashy0/nimbus/internal/power"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workerFixture struct {
	w       *Worker
	queue   *buttons.Queue
	input   *fakeInput
	power   *fakePower
	battery *fakeBattery
	sensor  *fakeSensor
	shared  *Shared
	events  *[]eventclient.Event
	now     time.Time
}

func newWorkerFixture(cfg WorkerConfig) *workerFixture {
	f := &workerFixture{
		queue:   buttons.NewQueue(8, logging.Discard()),
		input:   &fakeInput{},
		power:   &fakePower{},
		battery: &fakeBattery{},
		sensor:  &fakeSensor{initialized: true, delay: 3 * time.Second},
		shared:  NewShared(),
		now:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	events, got := recordingEvents()
	f.events = got
	f.w = NewWorker(cfg, WorkerDeps{
		Queue:   f.queue,
		Input:   f.input,
		Power:   f.power,
		Battery: f.battery,
		Sensor:  f.sensor,
		Shared:  f.shared,
		Events:  events,
		Log:     logging.Discard(),
	})
	return f
}

func (f *workerFixture) step(d time.Duration) {
	f.now = f.now.Add(d)
	f.w.Step(f.now)
}

func (f *workerFixture) take(t *testing.T) Snapshot {
	t.Helper()
	snap, ok := f.shared.Take()
	require.True(t, ok)
	return snap
}

func TestWorkerDispatchesButtonsAndIdle(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.queue.Push(buttons.Event{ID: buttons.Next, Kind: buttons.Short})
	f.queue.Push(buttons.Event{ID: buttons.Prev, Kind: buttons.Long})

	f.step(0)
	require.Len(t, f.input.events, 2)
	assert.Equal(t, buttons.Next, f.input.events[0].ID)
	assert.Equal(t, buttons.Long, f.input.events[1].Kind)
	assert.Equal(t, 1, f.input.idle)

	f.step(LoopInterval)
	assert.Len(t, f.input.events, 2)
	assert.Equal(t, 2, f.input.idle)
}

func TestWorkerBatteryCadence(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{BatteryInterval: 2 * time.Second})
	f.battery.readings = []power.BatteryReading{battery(50, false)}

	f.step(0)
	assert.Equal(t, 1, f.battery.calls)
	f.step(time.Second)
	assert.Equal(t, 1, f.battery.calls)
	f.step(time.Second)
	assert.Equal(t, 2, f.battery.calls)

	snap := f.take(t)
	assert.True(t, snap.Battery.Valid)
	assert.Equal(t, 50, snap.Battery.Percent)
}

func TestWorkerSkipsBatteryWhileMonitoring(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.power.monitoring = true

	f.step(0)
	f.step(5 * time.Second)
	assert.Equal(t, 0, f.battery.calls)
	assert.True(t, f.take(t).Monitoring)
}

func TestWorkerChargingEdges(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.battery.readings = []power.BatteryReading{
		battery(50, true),
		battery(50, true),
		battery(51, false),
	}

	// Charging on the first valid reading is an edge.
	f.step(0)
	snap := f.take(t)
	assert.True(t, snap.ChargingEdge)
	assert.True(t, snap.ChargingNow)

	f.step(DefaultBatteryInterval)
	assert.False(t, f.take(t).ChargingEdge)

	f.step(DefaultBatteryInterval)
	snap = f.take(t)
	assert.True(t, snap.ChargingEdge)
	assert.False(t, snap.ChargingNow)

	assert.Equal(t, []string{"chargingStarted", "chargingStopped"}, eventTypes(*f.events))
}

func TestWorkerNoEdgeWhenFirstReadingDischarging(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.battery.readings = []power.BatteryReading{battery(80, false)}

	f.step(0)
	assert.False(t, f.take(t).ChargingEdge)
	assert.Empty(t, *f.events)
}

func TestWorkerEdgeSurvivesUntilTaken(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.battery.readings = []power.BatteryReading{battery(50, true)}

	f.step(0)
	f.step(LoopInterval)
	f.step(LoopInterval)
	snap := f.take(t)
	assert.True(t, snap.ChargingEdge)
	assert.False(t, f.take(t).ChargingEdge)
}

func TestWorkerEdgeKeptWhenPublishBlocked(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.battery.readings = []power.BatteryReading{battery(50, true)}

	require.True(t, f.shared.mu.TryLockFor(0))
	f.step(0)
	f.shared.mu.Unlock()

	f.step(LoopInterval)
	assert.True(t, f.take(t).ChargingEdge)
}

func TestWorkerBatteryFailureGivesUnknown(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.battery.readings = []power.BatteryReading{battery(50, false)}
	f.battery.errs = []error{nil, errFake}

	f.step(0)
	require.True(t, f.take(t).Battery.Valid)

	f.step(DefaultBatteryInterval)
	snap := f.take(t)
	assert.False(t, snap.Battery.Valid)
	assert.Equal(t, power.BatteryPercentUnknown, snap.Battery.Percent)
	assert.False(t, snap.Battery.Charging)
}

func TestWorkerBatteryRecoveryResetsFailures(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.battery.readings = []power.BatteryReading{battery(50, false)}
	f.battery.errs = []error{errFake, errFake}

	f.step(0)
	f.step(DefaultBatteryInterval)
	assert.EqualValues(t, 2, f.w.batteryFails.Count())

	f.step(DefaultBatteryInterval)
	assert.Zero(t, f.w.batteryFails.Count())
	assert.True(t, f.take(t).Battery.Valid)
}

func TestWorkerLowBatteryReportedOnce(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{LowBatteryPercent: 10})
	f.battery.readings = []power.BatteryReading{
		battery(12, false),
		battery(10, false),
		battery(8, false),
		battery(20, false),
		battery(9, false),
	}
	for i := 0; i < 5; i++ {
		f.step(DefaultBatteryInterval)
	}
	assert.Equal(t, []string{"lowBattery", "lowBattery"}, eventTypes(*f.events))
}

func TestWorkerSensorCadence(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.sensor.samples = []airsensor.Sample{{IAQ: 40, Accuracy: 1}}

	f.step(0)
	assert.Equal(t, 1, f.sensor.reads)
	f.step(2900 * time.Millisecond)
	assert.Equal(t, 1, f.sensor.reads)
	f.step(100 * time.Millisecond)
	assert.Equal(t, 2, f.sensor.reads)

	snap := f.take(t)
	assert.True(t, snap.HasSensor)
	assert.EqualValues(t, 40, snap.Sensor.IAQ)
}

func TestWorkerSensorZeroDelayUsesDefault(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.sensor.delay = 0

	f.step(0)
	f.step(900 * time.Millisecond)
	assert.Equal(t, 1, f.sensor.reads)
	f.step(100 * time.Millisecond)
	assert.Equal(t, 2, f.sensor.reads)
}

func TestWorkerSensorFailureRetries(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.sensor.err = errFake

	f.step(0)
	f.step(defaultReadPeriod)
	f.step(defaultReadPeriod)
	assert.Equal(t, 3, f.sensor.reads)
	assert.False(t, f.take(t).HasSensor)
}

func TestWorkerSensorRecoveryResetsFailures(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.sensor.err = errFake

	f.step(0)
	f.step(defaultReadPeriod)
	assert.EqualValues(t, 2, f.w.sensorFails.Count())

	f.sensor.err = nil
	f.step(defaultReadPeriod)
	assert.Zero(t, f.w.sensorFails.Count())
	assert.True(t, f.take(t).HasSensor)
}

func TestWorkerSkipsUninitializedSensor(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.sensor.initialized = false

	f.step(0)
	f.step(time.Minute)
	assert.Zero(t, f.sensor.reads)
}

func TestWorkerSwitchesModeWithMonitoring(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{ULPWhileMonitoring: true})

	f.step(0)
	assert.Empty(t, f.sensor.modes)

	f.power.monitoring = true
	f.step(LoopInterval)
	assert.Equal(t, []airsensor.Mode{airsensor.ModeULP}, f.sensor.modes)

	f.power.monitoring = false
	f.step(LoopInterval)
	assert.Equal(t, []airsensor.Mode{airsensor.ModeULP, airsensor.ModeLP}, f.sensor.modes)
}

func TestWorkerKeepsLPWithoutULP(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{ULPWhileMonitoring: false})
	f.power.monitoring = true

	f.step(0)
	f.step(LoopInterval)
	assert.Empty(t, f.sensor.modes)
}

func TestWorkerReportsIAQReadyOnce(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.sensor.delay = time.Second
	f.sensor.samples = []airsensor.Sample{
		{Accuracy: 0},
		{Accuracy: 1, IAQValid: true},
		{Accuracy: 1, IAQValid: false},
		{Accuracy: 2, IAQValid: true},
	}
	for i := 0; i < 4; i++ {
		f.step(time.Second)
	}
	assert.Equal(t, []string{"iaqReady"}, eventTypes(*f.events))
}

func TestWorkerWithoutSensor(t *testing.T) {
	f := newWorkerFixture(WorkerConfig{})
	f.w.Sensor = nil

	f.step(0)
	assert.False(t, f.take(t).HasSensor)
}
