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
	"fmt"
	"testing"
	"time"

	"github.com/lashy0/nimbus/internal/airsensor"
	"github.com/lashy0/nimbus/internal/errs"
	"github.com/lashy0/nimbus/internal/power"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBrightnessSetter struct {
	value int
	sets  []int
}

func (b *fakeBrightnessSetter) Get() int { return b.value }

func (b *fakeBrightnessSetter) Set(percent int, persist bool) error {
	if percent < 5 || percent > 100 {
		return fmt.Errorf("brightness %d: %w", percent, errs.ErrInvalidArgument)
	}
	b.value = percent
	b.sets = append(b.sets, percent)
	return nil
}

func (b *fakeBrightnessSetter) Step() (int, error) {
	b.value = 80
	return b.value, nil
}

type fakeActivity struct {
	marks int
}

func (a *fakeActivity) MarkActivity() { a.marks++ }

func newTestService() (service, *fakePower, *fakeBrightnessSetter, *fakeActivity) {
	p := &fakePower{state: power.StateActive, shutdowns: make(chan struct{}, 1)}
	b := &fakeBrightnessSetter{value: 60}
	a := &fakeActivity{}
	return service{power: p, brightness: b, activity: a, shared: NewShared(), board: "1.0.0"}, p, b, a
}

func TestServiceStatus(t *testing.T) {
	s, _, _, _ := newTestService()
	s.shared.Publish(Snapshot{
		HasSensor: true,
		Sensor:    airsensor.Sample{IAQ: 70, StaticIAQ: 65, Accuracy: 3, StabilizationDone: true, RunInDone: true, Temperature: 22.5},
		Battery:   battery(55, true),
	})

	status, derr := s.GetStatus()
	require.Nil(t, derr)
	assert.Equal(t, "active", status["state"].Value())
	assert.Equal(t, int32(60), status["brightness"].Value())
	assert.Equal(t, "1.0.0", status["board"].Value())
	assert.Equal(t, int32(70), status["iaq"].Value())
	assert.Equal(t, "READY", status["iaq_phase"].Value())
	assert.Equal(t, 22.5, status["temperature"].Value())
	assert.Equal(t, int32(55), status["battery_percent"].Value())
	assert.Equal(t, int32(3800), status["battery_mv"].Value())
	assert.Equal(t, true, status["battery_charging"].Value())
}

func TestServiceStatusWithoutSensor(t *testing.T) {
	s, _, _, _ := newTestService()
	status, derr := s.GetStatus()
	require.Nil(t, derr)
	assert.Contains(t, status, "battery_valid")
	assert.NotContains(t, status, "iaq")
}

func TestServiceBrightness(t *testing.T) {
	s, _, b, _ := newTestService()

	require.Nil(t, s.SetBrightness(35))
	v, derr := s.GetBrightness()
	require.Nil(t, derr)
	assert.Equal(t, int32(35), v)

	derr = s.SetBrightness(120)
	require.NotNil(t, derr)
	assert.Contains(t, derr.Body[0], "invalid argument")
	assert.Equal(t, []int{35}, b.sets)

	v, derr = s.StepBrightness()
	require.Nil(t, derr)
	assert.Equal(t, int32(80), v)
}

func TestServiceMonitoring(t *testing.T) {
	s, p, _, a := newTestService()

	require.Nil(t, s.EnterMonitoring())
	assert.True(t, p.monitoring)

	require.Nil(t, s.ExitMonitoring())
	assert.False(t, p.monitoring)
	assert.Equal(t, 1, a.marks)
}

func TestServiceShutdownReturns(t *testing.T) {
	s, p, _, _ := newTestService()
	require.Nil(t, s.Shutdown())
	select {
	case <-p.shutdowns:
	case <-time.After(time.Second):
		t.Fatal("shutdown not requested")
	}
}

type fakeRecalibrator struct {
	calls int
	err   error
}

func (r *fakeRecalibrator) ForceRecalibration() error {
	r.calls++
	return r.err
}

func TestServiceRecalibrate(t *testing.T) {
	s, _, _, _ := newTestService()
	assert.NotNil(t, s.Recalibrate())

	r := &fakeRecalibrator{}
	s.recalibrator = r
	assert.Nil(t, s.Recalibrate())
	assert.Equal(t, 1, r.calls)

	r.err = fmt.Errorf("not initialized: %w", errs.ErrInvalidState)
	derr := s.Recalibrate()
	require.NotNil(t, derr)
	assert.Equal(t, dbusName+".Recalibrate", derr.Name)
}
