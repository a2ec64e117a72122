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


// Package app turns button events into navigation, brightness changes and
// power transitions, and puts the badge into monitoring when it sits idle.
package app

import (
	"sync"
	"time"

	"github.com/lashy0/nimbus/internal/buttons"
	"github.com/lashy0/nimbus/internal/logging"
	"github.com/lashy0/nimbus/internal/timedlock"
	"github.com/lashy0/nimbus/internal/ui"
)

const (
	DefaultIdleTimeout = 60 * time.Second
	BrightnessStep     = 5
	ShutdownQuestion   = "Turn off\nthe device?"

	displayLockTimeout = 10 * time.Millisecond
)

var nowFn = time.Now

// PowerManager is the part of the power state machine the controller drives.
type PowerManager interface {
	IsMonitoring() bool
	EnterMonitoring() error
	ExitMonitoring() error
	Shutdown()
}

type BrightnessControl interface {
	Get() int
	Adjust(delta int) (int, error)
}

// noButton marks an unset latch.
const noButton buttons.ID = -1

// Controller is driven by the worker goroutine. Only MarkActivity may be
// called from elsewhere. Screen changes happen under the display lock.
type Controller struct {
	power      PowerManager
	brightness BrightnessControl
	screens    *ui.Screens
	display    *timedlock.Mutex
	log        *logging.Logger

	idleTimeout  time.Duration
	activityMu   sync.Mutex
	lastActivity time.Time

	questionActivatedBy buttons.ID
	ignoreNextShortFor  buttons.ID

	// deferred runs after the display lock is released.
	deferred func()
}

func New(pm PowerManager, b BrightnessControl, screens *ui.Screens, display *timedlock.Mutex, idleTimeout time.Duration, log *logging.Logger) *Controller {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Controller{
		power:               pm,
		brightness:          b,
		screens:             screens,
		display:             display,
		log:                 log,
		idleTimeout:         idleTimeout,
		questionActivatedBy: noButton,
		ignoreNextShortFor:  noButton,
	}
}

func (c *Controller) markActivity() {
	c.activityMu.Lock()
	c.lastActivity = nowFn()
	c.activityMu.Unlock()
}

// MarkActivity resets the idle timer.
func (c *Controller) MarkActivity() {
	c.markActivity()
}

func (c *Controller) sinceActivity() (time.Duration, bool) {
	c.activityMu.Lock()
	defer c.activityMu.Unlock()
	if c.lastActivity.IsZero() {
		return 0, false
	}
	return nowFn().Sub(c.lastActivity), true
}

// ProcessIdle enters monitoring once no button has been pressed for the idle
// timeout. The first call only starts the clock.
func (c *Controller) ProcessIdle() {
	if c.power.IsMonitoring() {
		return
	}
	idle, seeded := c.sinceActivity()
	if !seeded {
		c.markActivity()
		return
	}
	if idle >= c.idleTimeout {
		c.log.Info("Idle timeout reached, entering monitoring mode")
		if err := c.power.EnterMonitoring(); err != nil {
			c.log.Warn("Failed to enter monitoring: ", err)
		}
	}
}

// HandleEvent applies one button event. Events that arrive while the display
// lock is busy are dropped.
func (c *Controller) HandleEvent(e buttons.Event) {
	ok := c.display.With(displayLockTimeout, func() {
		if e.Kind == buttons.Long {
			c.onLongPress(e.ID)
		} else {
			c.onShortPress(e.ID)
		}
	})
	if !ok {
		c.log.Debugf("Display busy, dropped %s %s press", e.ID, e.Kind)
		return
	}
	if fn := c.deferred; fn != nil {
		c.deferred = nil
		fn()
	}
}

// wake leaves monitoring. It reports false when the badge was not
// monitoring.
func (c *Controller) wake() bool {
	if !c.power.IsMonitoring() {
		return false
	}
	c.log.Info("Wake display from monitoring mode")
	if err := c.power.ExitMonitoring(); err != nil {
		c.log.Warn("Failed to exit monitoring: ", err)
	}
	c.markActivity()
	return true
}

func (c *Controller) onShortPress(id buttons.ID) {
	if c.wake() {
		return
	}
	if id == c.ignoreNextShortFor {
		c.log.Debugf("Ignoring %s release after long press", id)
		c.ignoreNextShortFor = noButton
		return
	}

	switch c.screens.Current() {
	case ui.ScreenStart, ui.ScreenCalibration:
		return
	case ui.ScreenBrightness:
		delta := BrightnessStep
		if id == buttons.Prev {
			delta = -BrightnessStep
		}
		v, err := c.brightness.Adjust(delta)
		if err != nil {
			c.log.Warn("Failed to set brightness: ", err)
		}
		c.screens.UpdateBrightness(v)
	case ui.ScreenQuestion:
		if id == c.questionActivatedBy {
			c.log.Info("Question confirmed")
			c.questionActivatedBy = noButton
			c.screens.ConfirmQuestion()
		} else {
			c.log.Info("Question selection changed")
			c.questionActivatedBy = id
			c.screens.SelectQuestion(id == buttons.Prev)
		}
	default:
		if id == buttons.Prev {
			c.screens.Prev()
		} else {
			c.screens.Next()
		}
	}
	c.markActivity()
}

func (c *Controller) onLongPress(id buttons.ID) {
	if c.wake() {
		return
	}

	switch c.screens.Current() {
	case ui.ScreenStart, ui.ScreenCalibration, ui.ScreenQuestion:
		return
	case ui.ScreenBrightness:
		if id == buttons.Next {
			c.log.Info("Closing brightness")
			c.screens.HideSpecial()
		}
		c.ignoreNextShortFor = id
	default:
		c.ignoreNextShortFor = id
		if id == buttons.Next {
			c.log.Info("Long press, showing brightness")
			c.screens.ShowBrightness(c.brightness.Get())
		} else {
			c.log.Info("Long press, showing shutdown question")
			c.questionActivatedBy = id
			c.screens.ShowQuestion(ShutdownQuestion, c.onShutdownYes, c.onShutdownNo, true)
		}
	}
	c.markActivity()
}

// onShutdownYes runs with the display lock held. The power off itself takes
// the lock to draw its screen, so it is run once the lock is released.
func (c *Controller) onShutdownYes() {
	c.log.Info("Shutdown confirmed")
	c.deferred = c.power.Shutdown
}

func (c *Controller) onShutdownNo() {
	c.log.Info("Shutdown cancelled")
	c.questionActivatedBy = noButton
	c.screens.HideSpecial()
}
