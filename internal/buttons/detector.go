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

package buttons

import (
	"sync"
	"time"
)

// Detector turns press/release edges of one button into events. A long press
// fires once while the button is still held. Every release held for at least
// the short press time fires a short press, including the release that ends
// a long press.
type Detector struct {
	id         ID
	shortPress time.Duration
	longPress  time.Duration
	emit       func(Event)

	mu        sync.Mutex
	pressed   bool
	pressedAt time.Time
	longSent  bool
}

func NewDetector(id ID, shortPress, longPress time.Duration, emit func(Event)) *Detector {
	return &Detector{
		id:         id,
		shortPress: shortPress,
		longPress:  longPress,
		emit:       emit,
	}
}

// Edge records a change of the button's logical state.
func (d *Detector) Edge(pressed bool, at time.Time) {
	d.mu.Lock()
	if pressed == d.pressed {
		d.mu.Unlock()
		return
	}
	d.pressed = pressed
	if pressed {
		d.pressedAt = at
		d.longSent = false
		d.mu.Unlock()
		return
	}
	held := at.Sub(d.pressedAt)
	d.mu.Unlock()

	if held >= d.shortPress {
		d.emit(Event{ID: d.id, Kind: Short, Time: at})
	}
}

// Poll fires the long press once the button has been held long enough.
func (d *Detector) Poll(now time.Time) {
	d.mu.Lock()
	fire := d.pressed && !d.longSent && now.Sub(d.pressedAt) >= d.longPress
	if fire {
		d.longSent = true
	}
	d.mu.Unlock()

	if fire {
		d.emit(Event{ID: d.id, Kind: Long, Time: now})
	}
}
