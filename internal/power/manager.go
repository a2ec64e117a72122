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

// Package power owns the badge's power state: active display, monitoring
// with the display off, and the terminal power-off.
package power

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lashy0/nimbus/internal/errs"
	"github.com/lashy0/nimbus/internal/logging"
)

type State int32

const (
	StateActive State = iota
	StateMonitoring
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateMonitoring:
		return "monitoring"
	case StateShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Backlight drives the display backlight. 0 turns it off.
type Backlight interface {
	SetPercent(percent int) error
}

type Panel interface {
	SetOn(on bool) error
}

type Config struct {
	ShutdownSettle time.Duration
}

type Deps struct {
	Backlight Backlight
	Panel     Panel
	Wake      WakeController
	Log       *logging.Logger

	// ShowShutdownScreen puts the terminal screen up. It is responsible for its
	// own bounded display locking.
	ShowShutdownScreen func()
	// ReleaseSensor hands the air sensor back before power-off.
	ReleaseSensor func() error
	// OnStateChange is called after every transition, outside any lock.
	OnStateChange func(State)
}

var (
	sleepFn = time.Sleep
	// haltFn parks the caller once power-off has been requested.
	haltFn = func() { select {} }
)

type Manager struct {
	cfg  Config
	deps Deps
	log  *logging.Logger

	transition   sync.Mutex
	state        atomic.Int32
	shutdownOnce sync.Once

	brightness *Brightness
}

func New(cfg Config, deps Deps, brightness *Brightness) *Manager {
	log := deps.Log
	if log == nil {
		log = logging.Discard()
	}
	m := &Manager{
		cfg:        cfg,
		deps:       deps,
		log:        log,
		brightness: brightness,
	}
	m.state.Store(int32(StateActive))
	brightness.gate = m.whileActive
	return m
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) IsMonitoring() bool {
	return m.State() == StateMonitoring
}

func (m *Manager) Brightness() *Brightness {
	return m.brightness
}

// whileActive runs write only while the display is up, holding the
// transition lock so monitoring cannot start halfway through it.
func (m *Manager) whileActive(write func()) {
	m.transition.Lock()
	defer m.transition.Unlock()
	if m.State() != StateActive {
		return
	}
	write()
}

// EnterMonitoring turns the display off. The persisted brightness is kept.
func (m *Manager) EnterMonitoring() error {
	m.transition.Lock()
	switch m.State() {
	case StateMonitoring:
		m.transition.Unlock()
		return nil
	case StateShutdown:
		m.transition.Unlock()
		return fmt.Errorf("enter monitoring after shutdown: %w", errs.ErrInvalidState)
	}
	m.log.Info("Entering monitoring mode")
	m.state.Store(int32(StateMonitoring))
	err := m.displayDown()
	m.transition.Unlock()

	m.notify(StateMonitoring)
	return err
}

// ExitMonitoring turns the panel back on and restores the active brightness.
func (m *Manager) ExitMonitoring() error {
	m.transition.Lock()
	if m.State() != StateMonitoring {
		m.transition.Unlock()
		return nil
	}
	m.log.Info("Exiting monitoring mode")
	m.state.Store(int32(StateActive))
	err := m.displayUp()
	m.transition.Unlock()

	m.notify(StateActive)
	return err
}

func (m *Manager) displayDown() error {
	var firstErr error
	if m.deps.Backlight != nil {
		if err := m.deps.Backlight.SetPercent(0); err != nil {
			m.log.Warn("Failed to turn off backlight: ", err)
			firstErr = fmt.Errorf("backlight off: %v: %w", err, errs.ErrTransientIO)
		}
	}
	if m.deps.Panel != nil {
		if err := m.deps.Panel.SetOn(false); err != nil {
			m.log.Warn("Failed to turn off panel: ", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("panel off: %v: %w", err, errs.ErrTransientIO)
			}
		}
	}
	return firstErr
}

func (m *Manager) displayUp() error {
	var firstErr error
	if m.deps.Panel != nil {
		if err := m.deps.Panel.SetOn(true); err != nil {
			m.log.Warn("Failed to turn on panel: ", err)
			firstErr = fmt.Errorf("panel on: %v: %w", err, errs.ErrTransientIO)
		}
	}
	if m.deps.Backlight != nil {
		if err := m.deps.Backlight.SetPercent(m.brightness.Get()); err != nil {
			m.log.Warn("Failed to restore backlight: ", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("backlight on: %v: %w", err, errs.ErrTransientIO)
			}
		}
	}
	return firstErr
}

func (m *Manager) notify(s State) {
	if m.deps.OnStateChange != nil {
		m.deps.OnStateChange(s)
	}
}

// Shutdown shows the terminal screen, arms the button as the only wake source,
// releases the sensor and powers off. It does not return.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(m.shutdown)
	haltFn()
}

func (m *Manager) shutdown() {
	m.transition.Lock()
	m.state.Store(int32(StateShutdown))
	m.transition.Unlock()
	m.log.Info("Shutting down...")
	m.notify(StateShutdown)

	if m.deps.ShowShutdownScreen != nil {
		m.deps.ShowShutdownScreen()
	}
	sleepFn(m.cfg.ShutdownSettle)
	_ = m.displayDown()

	if m.deps.Wake != nil {
		if err := m.deps.Wake.DisableAllWakeSources(); err != nil {
			m.log.Warn("Failed to disable wake sources: ", err)
		}
		if err := m.deps.Wake.EnableButtonWake(); err != nil {
			m.log.Warn("Failed to enable button wake: ", err)
		}
	}
	if m.deps.ReleaseSensor != nil {
		if err := m.deps.ReleaseSensor(); err != nil {
			m.log.Warn("Failed to release sensor: ", err)
		}
	}

	m.log.Info("Powering off. Press button to wake up.")
	if m.deps.Wake != nil {
		m.deps.Wake.PowerOff()
	}
}

// CheckWakeupReason logs why the badge started. It has no effect on state.
func (m *Manager) CheckWakeupReason() WakeCause {
	cause := WakeUndefined
	if m.deps.Wake != nil {
		c, err := m.deps.Wake.WakeCause()
		if err != nil {
			m.log.Warn("Failed to read wake cause: ", err)
		} else {
			cause = c
		}
	}
	switch cause {
	case WakeButton:
		m.log.Info("Wakeup from button press")
	case WakeExt1:
		m.log.Info("Wakeup from EXT1")
	case WakeTimer:
		m.log.Info("Wakeup from timer")
	default:
		m.log.Info("Normal startup")
	}
	return cause
}
