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


package app

import (
	"testing"
	"time"

	"github.com/lashy0/nimbus/internal/buttons"
	"github.com/lashy0/nimbus/internal/logging"
	"github.com/lashy0/nimbus/internal/mathx"
	"github.com/lashy0/nimbus/internal/timedlock"
	"github.com/lashy0/nimbus/internal/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePower struct {
	monitoring bool
	enters     int
	exits      int
	shutdowns  int
}

func (p *fakePower) IsMonitoring() bool { return p.monitoring }

func (p *fakePower) EnterMonitoring() error {
	p.enters++
	p.monitoring = true
	return nil
}

func (p *fakePower) ExitMonitoring() error {
	p.exits++
	p.monitoring = false
	return nil
}

func (p *fakePower) Shutdown() { p.shutdowns++ }

type fakeBrightness struct {
	value int
}

func (b *fakeBrightness) Get() int { return b.value }

func (b *fakeBrightness) Adjust(delta int) (int, error) {
	b.value = mathx.Clamp(b.value+delta, 5, 100)
	return b.value, nil
}

type fixture struct {
	c       *Controller
	power   *fakePower
	bright  *fakeBrightness
	screens *ui.Screens
	display *timedlock.Mutex
	clock   *time.Time
}

func newFixture(t *testing.T) *fixture {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	old := nowFn
	nowFn = func() time.Time { return now }
	t.Cleanup(func() { nowFn = old })

	f := &fixture{
		power:   &fakePower{},
		bright:  &fakeBrightness{value: 60},
		screens: ui.NewScreens(&ui.RecordingRenderer{}, logging.Discard()),
		display: timedlock.New(),
		clock:   &now,
	}
	f.screens.FinishStartup(false)
	f.c = New(f.power, f.bright, f.screens, f.display, time.Minute, logging.Discard())
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *fixture) short(id buttons.ID) {
	f.c.HandleEvent(buttons.Event{ID: id, Kind: buttons.Short})
}

func (f *fixture) long(id buttons.ID) {
	f.c.HandleEvent(buttons.Event{ID: id, Kind: buttons.Long})
}

func TestShortPressCyclesRegularScreens(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, ui.ScreenIAQ, f.screens.Current())

	f.short(buttons.Next)
	assert.Equal(t, ui.ScreenTemp, f.screens.Current())
	f.short(buttons.Next)
	assert.Equal(t, ui.ScreenHum, f.screens.Current())
	f.short(buttons.Next)
	assert.Equal(t, ui.ScreenIAQ, f.screens.Current())
	f.short(buttons.Prev)
	assert.Equal(t, ui.ScreenHum, f.screens.Current())
}

func TestPressWhileMonitoringOnlyWakes(t *testing.T) {
	f := newFixture(t)
	f.power.monitoring = true

	f.short(buttons.Next)
	assert.Equal(t, 1, f.power.exits)
	assert.Equal(t, ui.ScreenIAQ, f.screens.Current())

	f.power.monitoring = true
	f.long(buttons.Prev)
	assert.Equal(t, 2, f.power.exits)
	assert.Equal(t, ui.ScreenIAQ, f.screens.Current())
}

func TestTransientScreensSwallowPresses(t *testing.T) {
	f := newFixture(t)
	for _, id := range []ui.ScreenID{ui.ScreenStart, ui.ScreenCalibration} {
		f.screens.Load(id)
		f.short(buttons.Next)
		f.long(buttons.Next)
		f.long(buttons.Prev)
		assert.Equal(t, id, f.screens.Current())
	}
}

func TestLongPressThenReleaseIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.long(buttons.Next)
	require.Equal(t, ui.ScreenBrightness, f.screens.Current())
	assert.Equal(t, 60, f.screens.View().Brightness)

	// The release that follows the long press does not change brightness.
	f.short(buttons.Next)
	assert.Equal(t, 60, f.bright.value)

	// The latch is single use.
	f.short(buttons.Next)
	assert.Equal(t, 65, f.bright.value)
	assert.Equal(t, 65, f.screens.View().Brightness)
}

func TestBrightnessModal(t *testing.T) {
	f := newFixture(t)
	f.short(buttons.Next)
	require.Equal(t, ui.ScreenTemp, f.screens.Current())
	f.long(buttons.Next)
	f.short(buttons.Next)

	for i := 0; i < 20; i++ {
		f.short(buttons.Prev)
	}
	assert.Equal(t, 5, f.bright.value)
	assert.Equal(t, 5, f.screens.View().Brightness)

	// PREV long press does nothing but arms the latch.
	f.long(buttons.Prev)
	assert.Equal(t, ui.ScreenBrightness, f.screens.Current())
	f.short(buttons.Prev)
	assert.Equal(t, 5, f.bright.value)

	f.long(buttons.Next)
	assert.Equal(t, ui.ScreenTemp, f.screens.Current())
	f.short(buttons.Next)
	assert.Equal(t, ui.ScreenTemp, f.screens.Current())
}

func TestShutdownQuestionConfirm(t *testing.T) {
	f := newFixture(t)
	f.long(buttons.Prev)
	require.Equal(t, ui.ScreenQuestion, f.screens.Current())
	assert.Equal(t, ShutdownQuestion, f.screens.View().Question)
	assert.True(t, f.screens.QuestionSelectedYes())

	f.short(buttons.Prev) // release
	assert.Zero(t, f.power.shutdowns)
	assert.Equal(t, ui.ScreenQuestion, f.screens.Current())

	f.short(buttons.Prev)
	assert.Equal(t, 1, f.power.shutdowns)
	// Shutdown runs without the display lock held.
	assert.True(t, f.display.TryLockFor(0))
	f.display.Unlock()
}

func TestShutdownQuestionCancel(t *testing.T) {
	f := newFixture(t)
	f.short(buttons.Next)
	f.long(buttons.Prev)
	f.short(buttons.Prev)

	f.short(buttons.Next)
	assert.False(t, f.screens.QuestionSelectedYes())
	assert.Equal(t, ui.ScreenQuestion, f.screens.Current())

	// Long presses are ignored while the question is up.
	f.long(buttons.Next)
	assert.Equal(t, ui.ScreenQuestion, f.screens.Current())

	f.short(buttons.Next)
	assert.Zero(t, f.power.shutdowns)
	assert.Equal(t, ui.ScreenTemp, f.screens.Current())
}

func TestQuestionSelectionMovesBack(t *testing.T) {
	f := newFixture(t)
	f.long(buttons.Prev)
	f.short(buttons.Prev)
	f.short(buttons.Next)
	f.short(buttons.Prev)
	assert.True(t, f.screens.QuestionSelectedYes())
	assert.Zero(t, f.power.shutdowns)
	f.short(buttons.Prev)
	assert.Equal(t, 1, f.power.shutdowns)
}

func TestBusyDisplayDropsEvent(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.display.TryLockFor(0))
	f.short(buttons.Next)
	f.display.Unlock()
	assert.Equal(t, ui.ScreenIAQ, f.screens.Current())
}

func TestIdleTimeout(t *testing.T) {
	f := newFixture(t)

	// The first call seeds the clock.
	f.advance(10 * time.Minute)
	f.c.ProcessIdle()
	assert.Zero(t, f.power.enters)

	f.advance(59 * time.Second)
	f.c.ProcessIdle()
	assert.Zero(t, f.power.enters)

	f.short(buttons.Next)
	f.advance(59 * time.Second)
	f.c.ProcessIdle()
	assert.Zero(t, f.power.enters)

	f.advance(time.Second)
	f.c.ProcessIdle()
	assert.Equal(t, 1, f.power.enters)

	// Monitoring makes it a no-op.
	f.advance(time.Hour)
	f.c.ProcessIdle()
	assert.Equal(t, 1, f.power.enters)
}

func TestWakeResetsIdleTimer(t *testing.T) {
	f := newFixture(t)
	f.c.ProcessIdle()
	f.advance(time.Minute)
	f.c.ProcessIdle()
	require.True(t, f.power.monitoring)

	f.advance(time.Hour)
	f.short(buttons.Prev)
	require.False(t, f.power.monitoring)
	f.c.ProcessIdle()
	assert.Equal(t, 1, f.power.enters)
}
