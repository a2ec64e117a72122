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
	"fmt"
	"sync"

	"github.com/lashy0/nimbus/internal/errs"
	"github.com/lashy0/nimbus/internal/logging"
	"github.com/lashy0/nimbus/internal/mathx"
	"github.com/lashy0/nimbus/internal/store"
)

const (
	DefaultBrightness = 60
	MinBrightness     = 5
	MaxBrightness     = 100

	brightnessNamespace = "app_settings"
	brightnessKey       = "brightness_pct"
)

var brightnessPresets = []int{20, 40, 60, 80, 100}

type Brightness struct {
	mu        sync.Mutex
	active    int
	backlight Backlight
	store     store.Store
	log       *logging.Logger

	// gate runs a backlight write. The manager replaces it so the write and
	// its state check happen under one transition lock.
	gate func(write func())
}

// NewBrightness loads the persisted brightness, falling back to the default
// when it is absent or unreadable. Nothing is applied to the backlight.
func NewBrightness(backlight Backlight, s store.Store, log *logging.Logger) *Brightness {
	if log == nil {
		log = logging.Discard()
	}
	b := &Brightness{
		active:    DefaultBrightness,
		backlight: backlight,
		store:     s,
		log:       log,
		gate:      func(write func()) { write() },
	}
	if s == nil {
		return b
	}
	v, err := store.GetUint8(s, brightnessNamespace, brightnessKey)
	switch {
	case err == nil:
		b.active = mathx.Clamp(int(v), MinBrightness, MaxBrightness)
	case errors.Is(err, store.ErrNotFound):
	default:
		log.Warn("Failed to load brightness, using default: ", err)
	}
	return b
}

func (b *Brightness) Get() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Set changes the active brightness and applies it unless monitoring.
func (b *Brightness) Set(percent int, persist bool) error {
	if percent < MinBrightness || percent > MaxBrightness {
		return fmt.Errorf("brightness %d%% outside [%d,%d]: %w", percent, MinBrightness, MaxBrightness, errs.ErrInvalidArgument)
	}
	b.mu.Lock()
	b.active = percent
	b.mu.Unlock()

	b.Apply()
	if persist && b.store != nil {
		if err := store.SetUint8(b.store, brightnessNamespace, brightnessKey, uint8(percent)); err != nil {
			b.log.Warn("Failed to persist brightness: ", err)
		}
	}
	return nil
}

// Step advances to the next preset above the current value, wrapping to the
// lowest preset, and persists it.
func (b *Brightness) Step() (int, error) {
	next := nextPreset(b.Get())
	return next, b.Set(next, true)
}

// Adjust moves the brightness by delta, clamped, and persists it.
func (b *Brightness) Adjust(delta int) (int, error) {
	v := mathx.Clamp(b.Get()+delta, MinBrightness, MaxBrightness)
	return v, b.Set(v, true)
}

// Apply pushes the active value to the backlight unless the display is down.
func (b *Brightness) Apply() {
	if b.backlight == nil {
		return
	}
	b.gate(b.write)
}

func (b *Brightness) write() {
	if err := b.backlight.SetPercent(b.Get()); err != nil {
		b.log.Warn("Failed to apply brightness: ", err)
	}
}

func nextPreset(current int) int {
	for _, p := range brightnessPresets {
		if p > current {
			return p
		}
	}
	return brightnessPresets[0]
}
