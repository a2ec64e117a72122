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
	"github.com/godbus/dbus"
)

const (
	displayDBusName = "org.cacophony.nimbus.display"
	displayDBusPath = "/org/cacophony/nimbus/display"
)

// DBusRenderer forwards views to the display process over the system bus.
type DBusRenderer struct {
	obj dbus.BusObject
}

func NewDBusRenderer() (*DBusRenderer, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	return &DBusRenderer{obj: conn.Object(displayDBusName, displayDBusPath)}, nil
}

func (r *DBusRenderer) Render(v View) error {
	return r.obj.Call(displayDBusName+".Render", 0, v.Screen.String(), viewFields(v)).Err
}

func viewFields(v View) map[string]dbus.Variant {
	fields := map[string]dbus.Variant{
		"battery_percent":  dbus.MakeVariant(int32(v.BatteryPercent)),
		"battery_charging": dbus.MakeVariant(v.BatteryCharging),
		"battery_text":     dbus.MakeVariant(v.BatteryText),
		"error_indicator":  dbus.MakeVariant(v.ErrorIndicator),
	}
	switch v.Screen {
	case ScreenIAQ:
		fields["value"] = dbus.MakeVariant(int32(v.IAQ))
		fields["level"] = dbus.MakeVariant(v.IAQLevel)
		fields["accuracy"] = dbus.MakeVariant(v.IAQAccuracy)
	case ScreenTemp:
		fields["value"] = dbus.MakeVariant(int32(v.Temperature))
		fields["level"] = dbus.MakeVariant(v.TemperatureLevel)
	case ScreenHum:
		fields["value"] = dbus.MakeVariant(int32(v.Humidity))
		fields["level"] = dbus.MakeVariant(v.HumidityLevel)
	case ScreenCalibration:
		fields["text"] = dbus.MakeVariant(v.CalibrationText)
	case ScreenBrightness:
		fields["value"] = dbus.MakeVariant(int32(v.Brightness))
	case ScreenQuestion:
		fields["text"] = dbus.MakeVariant(v.Question)
		fields["yes_selected"] = dbus.MakeVariant(v.QuestionYesSelected)
	}
	return fields
}
