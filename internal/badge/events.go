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


package badge

import (
	"time"

	"github.com/TheCacophonyProject/event-reporter/v3/eventclient"
	"github.com/lashy0/nimbus/internal/airsensor"
	"github.com/lashy0/nimbus/internal/logging"
	"github.com/lashy0/nimbus/internal/power"
)

// Events reports notable changes to the event reporter.
type Events struct {
	log     *logging.Logger
	enabled bool
	add     func(eventclient.Event) error
}

func NewEvents(enabled bool, log *logging.Logger) *Events {
	return &Events{log: log, enabled: enabled, add: eventclient.AddEvent}
}

func (e *Events) report(eventType string, details map[string]interface{}) {
	if e == nil || !e.enabled {
		return
	}
	err := e.add(eventclient.Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Details:   details,
	})
	if err != nil {
		e.log.Error("Error adding event: ", err)
	}
}

func batteryDetails(r power.BatteryReading) map[string]interface{} {
	return map[string]interface{}{
		"percent":   r.Percent,
		"voltageMV": int(r.Millivolts()),
	}
}

func (e *Events) ChargingChanged(charging bool, r power.BatteryReading) {
	if charging {
		e.report("chargingStarted", batteryDetails(r))
	} else {
		e.report("chargingStopped", batteryDetails(r))
	}
}

func (e *Events) LowBattery(r power.BatteryReading) {
	e.report("lowBattery", batteryDetails(r))
}

func (e *Events) IAQReady(s airsensor.Sample) {
	e.report("iaqReady", map[string]interface{}{
		"iaq":       int(s.IAQ),
		"staticIAQ": int(s.StaticIAQ),
		"accuracy":  int(s.Accuracy),
	})
}

func (e *Events) StateChanged(s power.State) {
	if s == power.StateShutdown {
		e.report("shutdown", map[string]interface{}{})
	}
}
