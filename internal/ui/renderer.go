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
	"github.com/lashy0/nimbus/internal/logging"
)

type Renderer interface {
	Render(v View) error
}

// LogRenderer writes each view to the log. Used when no display service is
// configured.
type LogRenderer struct {
	Log *logging.Logger
}

func (r *LogRenderer) Render(v View) error {
	switch v.Screen {
	case ScreenIAQ:
		r.Log.Debugf("[%s] iaq=%03d (%s) acc=%d batt=%s", v.Screen, v.IAQ, v.IAQLevel, v.IAQAccuracy, v.BatteryText)
	case ScreenTemp:
		r.Log.Debugf("[%s] %d° (%s) batt=%s", v.Screen, v.Temperature, v.TemperatureLevel, v.BatteryText)
	case ScreenHum:
		r.Log.Debugf("[%s] %d%% (%s) batt=%s", v.Screen, v.Humidity, v.HumidityLevel, v.BatteryText)
	case ScreenCalibration:
		r.Log.Debugf("[%s] %q", v.Screen, v.CalibrationText)
	case ScreenBrightness:
		r.Log.Debugf("[%s] %d%%", v.Screen, v.Brightness)
	case ScreenQuestion:
		r.Log.Debugf("[%s] %q yes=%t", v.Screen, v.Question, v.QuestionYesSelected)
	default:
		r.Log.Debugf("[%s] batt=%s error=%t", v.Screen, v.BatteryText, v.ErrorIndicator)
	}
	return nil
}
