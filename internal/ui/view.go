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

import (
	"fmt"

	"github.com/lashy0/nimbus/internal/mathx"
)

const BrightnessMin = 5

// View is everything a renderer needs to draw the current screen.
type View struct {
	Screen ScreenID

	IAQ              int
	IAQLevel         string
	IAQAccuracy      uint8
	Temperature      int
	TemperatureLevel string
	Humidity         int
	HumidityLevel    string

	BatteryPercent  int
	BatteryCharging bool
	BatteryText     string

	Brightness      int
	CalibrationText string

	Question            string
	QuestionYesSelected bool

	ErrorIndicator bool
}

func batteryText(percent int) string {
	if percent < 0 {
		return "-- %"
	}
	return fmt.Sprintf("%d %%", percent)
}

func calibrationText(stab, runIn bool) string {
	state := func(done bool) string {
		if done {
			return "ok"
		}
		return "wait"
	}
	return fmt.Sprintf("Calibrating...\nStab:%s Run:%s", state(stab), state(runIn))
}

func clampBrightness(v int) int {
	return mathx.Clamp(v, BrightnessMin, 100)
}
