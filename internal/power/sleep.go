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

import "fmt"

type WakeCause int

const (
	WakeUndefined WakeCause = iota
	WakeButton
	WakeExt1
	WakeTimer
)

func (c WakeCause) String() string {
	switch c {
	case WakeButton:
		return "button"
	case WakeExt1:
		return "ext1"
	case WakeTimer:
		return "timer"
	case WakeUndefined:
		return "cold-boot"
	}
	return fmt.Sprintf("WakeCause(%d)", int(c))
}

// WakeController is the hardware that decides what brings the badge back
// after power-off.
type WakeController interface {
	WakeCause() (WakeCause, error)
	DisableAllWakeSources() error
	EnableButtonWake() error
	// PowerOff cuts power. On hardware it does not return.
	PowerOff()
}
