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

package power

import (
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/lashy0/nimbus/internal/errs"
	"github.com/lashy0/nimbus/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBacklight struct {
	mu     sync.Mutex
	values []int
}

func (f *fakeBacklight) SetPercent(p int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = append(f.values, p)
	return nil
}

func (f *fakeBacklight) last() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.values) == 0 {
		return -1
	}
	return f.values[len(f.values)-1]
}

type fakePanel struct {
	on    bool
	calls int
}

func (f *fakePanel) SetOn(on bool) error {
	f.on = on
	f.calls++
	return nil
}

type fakeWake struct {
	mu        sync.Mutex
	cause     WakeCause
	causeErr  error
	steps     []string
	powerOffs int
}

func (f *fakeWake) WakeCause() (WakeCause, error) { return f.cause, f.causeErr }
func (f *fakeWake) DisableAllWakeSources() error {
	f.record("disable-all")
	return nil
}
func (f *fakeWake) EnableButtonWake() error {
	f.record("enable-button")
	return nil
}
func (f *fakeWake) PowerOff() {
	f.mu.Lock()
	f.powerOffs++
	f.mu.Unlock()
	f.record("power-off")
}
func (f *fakeWake) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, s)
}

func newTestManager(t *testing.T, s store.Store) (*Manager, *fakeBacklight, *fakePanel, *fakeWake) {
	t.Helper()
	bl := &fakeBacklight{}
	panel := &fakePanel{on: true}
	wake := &fakeWake{}
	b := NewBrightness(bl, s, nil)
	m := New(Config{ShutdownSettle: time.Millisecond}, Deps{
		Backlight: bl,
		Panel:     panel,
		Wake:      wake,
	}, b)
	return m, bl, panel, wake
}

func TestMonitoringTransitions(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, store.SetUint8(s, brightnessNamespace, brightnessKey, 80))
	m, bl, panel, _ := newTestManager(t, s)

	assert.Equal(t, StateActive, m.State())
	assert.False(t, m.IsMonitoring())

	require.NoError(t, m.EnterMonitoring())
	assert.True(t, m.IsMonitoring())
	assert.Equal(t, 0, bl.last())
	assert.False(t, panel.on)

	// Idempotent.
	require.NoError(t, m.EnterMonitoring())
	assert.Equal(t, 1, panel.calls)

	// Monitoring blanks the backlight without touching the stored value.
	v, err := store.GetUint8(s, brightnessNamespace, brightnessKey)
	require.NoError(t, err)
	assert.Equal(t, uint8(80), v)
	assert.Equal(t, 80, m.Brightness().Get())

	require.NoError(t, m.ExitMonitoring())
	assert.False(t, m.IsMonitoring())
	assert.True(t, panel.on)
	assert.Equal(t, 80, bl.last())

	require.NoError(t, m.ExitMonitoring())
	assert.Equal(t, 2, panel.calls)
}

func TestBrightnessNotAppliedWhileMonitoring(t *testing.T) {
	m, bl, _, _ := newTestManager(t, store.NewMemory())
	require.NoError(t, m.EnterMonitoring())

	require.NoError(t, m.Brightness().Set(30, true))
	assert.Equal(t, 0, bl.last())

	require.NoError(t, m.ExitMonitoring())
	assert.Equal(t, 30, bl.last())
}

// blockingBacklight holds non-zero writes until released, recording each value
// once the write completes.
type blockingBacklight struct {
	fakeBacklight
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBacklight) SetPercent(p int) error {
	if p > 0 {
		close(b.entered)
		<-b.release
	}
	return b.fakeBacklight.SetPercent(p)
}

func TestMonitoringWaitsForBrightnessWrite(t *testing.T) {
	bl := &blockingBacklight{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := New(Config{}, Deps{Backlight: bl, Panel: &fakePanel{on: true}}, NewBrightness(bl, nil, nil))

	setDone := make(chan error, 1)
	go func() { setDone <- m.Brightness().Set(80, false) }()
	<-bl.entered

	enterDone := make(chan error, 1)
	go func() { enterDone <- m.EnterMonitoring() }()
	select {
	case <-enterDone:
		t.Fatal("monitoring entered during a brightness write")
	case <-time.After(20 * time.Millisecond):
	}

	close(bl.release)
	require.NoError(t, <-setDone)
	require.NoError(t, <-enterDone)
	assert.True(t, m.IsMonitoring())
	assert.Equal(t, 0, bl.last())
}

func TestStateChangeCallback(t *testing.T) {
	var states []State
	b := NewBrightness(nil, nil, nil)
	m := New(Config{}, Deps{OnStateChange: func(s State) { states = append(states, s) }}, b)
	require.NoError(t, m.EnterMonitoring())
	require.NoError(t, m.EnterMonitoring())
	require.NoError(t, m.ExitMonitoring())
	assert.Equal(t, []State{StateMonitoring, StateActive}, states)
}

// runShutdown calls Shutdown on its own goroutine and reports whether it
// returned to the caller.
func runShutdown(m *Manager) (returned bool) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Shutdown()
		returned = true
	}()
	<-done
	return returned
}

func TestShutdownNeverReturnsAndRunsOnce(t *testing.T) {
	origHalt := haltFn
	origSleep := sleepFn
	defer func() {
		haltFn = origHalt
		sleepFn = origSleep
	}()
	haltFn = runtime.Goexit
	var slept []time.Duration
	sleepFn = func(d time.Duration) { slept = append(slept, d) }

	m, bl, panel, wake := newTestManager(t, store.NewMemory())
	shown := 0
	released := 0
	m.deps.ShowShutdownScreen = func() { shown++ }
	m.deps.ReleaseSensor = func() error {
		released++
		return errors.New("bus gone")
	}

	assert.False(t, runShutdown(m))
	assert.False(t, runShutdown(m))

	assert.Equal(t, StateShutdown, m.State())
	assert.Equal(t, 1, shown)
	assert.Equal(t, 1, released)
	assert.Equal(t, []time.Duration{time.Millisecond}, slept)
	assert.Equal(t, 0, bl.last())
	assert.False(t, panel.on)
	assert.Equal(t, []string{"disable-all", "enable-button", "power-off"}, wake.steps)
	assert.Equal(t, 1, wake.powerOffs)

	assert.ErrorIs(t, m.EnterMonitoring(), errs.ErrInvalidState)
	assert.NoError(t, m.ExitMonitoring())
	assert.Equal(t, StateShutdown, m.State())
}

func TestCheckWakeupReason(t *testing.T) {
	m, _, _, wake := newTestManager(t, nil)
	wake.cause = WakeButton
	assert.Equal(t, WakeButton, m.CheckWakeupReason())
	assert.Equal(t, StateActive, m.State())

	wake.causeErr = errors.New("no register")
	assert.Equal(t, WakeUndefined, m.CheckWakeupReason())
}
