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

package ui

import "fmt"

type ScreenID int

const (
	ScreenNone ScreenID = iota
	ScreenIAQ
	ScreenTemp
	ScreenHum
	ScreenStart
	ScreenCharging
	ScreenNoCharging
	ScreenCalibration
	ScreenBrightness
	ScreenQuestion
)

// regularScreens is the order PREV/NEXT cycle through.
var regularScreens = []ScreenID{ScreenIAQ, ScreenTemp, ScreenHum}

func (s ScreenID) String() string {
	switch s {
	case ScreenNone:
		return "none"
	case ScreenIAQ:
		return "iaq"
	case ScreenTemp:
		return "temp"
	case ScreenHum:
		return "hum"
	case ScreenStart:
		return "start"
	case ScreenCharging:
		return "charging"
	case ScreenNoCharging:
		return "no-charging"
	case ScreenCalibration:
		return "calibration"
	case ScreenBrightness:
		return "brightness"
	case ScreenQuestion:
		return "question"
	}
	return fmt.Sprintf("ScreenID(%d)", int(s))
}

// IsRegular reports whether the screen is one of the cycling data screens.
func (s ScreenID) IsRegular() bool {
	for _, r := range regularScreens {
		if r == s {
			return true
		}
	}
	return false
}

func regularIndex(s ScreenID) int {
	for i, r := range regularScreens {
		if r == s {
			return i
		}
	}
	return 0
}

// IAQLevel buckets an IAQ value into the status shown next to it.
func IAQLevel(iaq int) string {
	switch {
	case iaq <= 100:
		return "good"
	case iaq <= 200:
		return "moderate"
	case iaq <= 300:
		return "bad"
	case iaq <= 400:
		return "warning"
	default:
		return "critical"
	}
}

func TemperatureLevel(c int) string {
	switch {
	case c < 0:
		return "cold"
	case c <= 25:
		return "normal"
	default:
		return "warm"
	}
}

func HumidityLevel(rh int) string {
	switch {
	case rh < 30:
		return "dry"
	case rh < 70:
		return "good"
	default:
		return "damp"
	}
}
