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

// ActiveLevel is the raw line level that means "pressed".
type ActiveLevel int

const (
	ActiveLow ActiveLevel = iota
	ActiveHigh
)

func (a ActiveLevel) String() string {
	if a == ActiveHigh {
		return "high"
	}
	return "low"
}

const probeSamples = 12

// ProbeActiveLevel samples an idle line. A line that idles mostly high is
// active low and the reverse. Anything in between keeps the fallback.
func ProbeActiveLevel(read func() (bool, error), fallback ActiveLevel) (ActiveLevel, int) {
	high := 0
	for i := 0; i < probeSamples; i++ {
		v, err := read()
		if err != nil {
			return fallback, high
		}
		if v {
			high++
		}
		sleepFn(probeInterval)
	}
	switch {
	case high >= probeSamples*3/4:
		return ActiveLow, high
	case high <= probeSamples/4:
		return ActiveHigh, high
	}
	return fallback, high
}

// ParseActiveLevel reads a configured level. "auto" asks for probing.
func ParseActiveLevel(s string) (level ActiveLevel, probe bool) {
	switch s {
	case "high":
		return ActiveHigh, false
	case "low":
		return ActiveLow, false
	}
	return ActiveLow, true
}
