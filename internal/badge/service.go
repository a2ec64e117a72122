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
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"
	"github.com/lashy0/nimbus/internal/errs"
	"github.com/lashy0/nimbus/internal/power"
)

const (
	dbusName = "org.cacophony.nimbus"
	dbusPath = "/org/cacophony/nimbus"
)

type PowerControl interface {
	State() power.State
	EnterMonitoring() error
	ExitMonitoring() error
	Shutdown()
}

type BrightnessSetter interface {
	Get() int
	Set(percent int, persist bool) error
	Step() (int, error)
}

type ActivityMarker interface {
	MarkActivity()
}

type Recalibrator interface {
	ForceRecalibration() error
}

type service struct {
	power        PowerControl
	brightness   BrightnessSetter
	activity     ActivityMarker
	recalibrator Recalibrator
	shared       *Shared
	board        string
}

func startService(s *service) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("name already taken")
	}

	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")
	return nil
}

// GetStatus returns the power state, brightness and the latest readings.
// Readings are absent when the snapshot lock was busy.
func (s service) GetStatus() (map[string]dbus.Variant, *dbus.Error) {
	status := map[string]dbus.Variant{
		"state":      dbus.MakeVariant(s.power.State().String()),
		"brightness": dbus.MakeVariant(int32(s.brightness.Get())),
		"board":      dbus.MakeVariant(s.board),
	}
	snap, ok := s.shared.Peek()
	if !ok {
		return status, nil
	}
	status["battery_percent"] = dbus.MakeVariant(int32(snap.Battery.Percent))
	status["battery_mv"] = dbus.MakeVariant(int32(snap.Battery.Millivolts()))
	status["battery_charging"] = dbus.MakeVariant(snap.Battery.Charging)
	status["battery_valid"] = dbus.MakeVariant(snap.Battery.Valid)
	if snap.HasSensor {
		status["iaq"] = dbus.MakeVariant(int32(snap.Sensor.IAQ))
		status["static_iaq"] = dbus.MakeVariant(int32(snap.Sensor.StaticIAQ))
		status["iaq_accuracy"] = dbus.MakeVariant(snap.Sensor.Accuracy)
		status["iaq_valid"] = dbus.MakeVariant(snap.Sensor.IAQValid)
		status["iaq_phase"] = dbus.MakeVariant(ClassifyPhase(snap.Sensor).String())
		status["temperature"] = dbus.MakeVariant(snap.Sensor.Temperature)
		status["humidity"] = dbus.MakeVariant(snap.Sensor.Humidity)
		status["pressure"] = dbus.MakeVariant(snap.Sensor.Pressure)
	}
	return status, nil
}

func (s service) GetBrightness() (int32, *dbus.Error) {
	return int32(s.brightness.Get()), nil
}

func (s service) SetBrightness(percent int32) *dbus.Error {
	return dbusErr(s.brightness.Set(int(percent), true))
}

func (s service) StepBrightness() (int32, *dbus.Error) {
	v, err := s.brightness.Step()
	if err != nil {
		return int32(v), dbusErr(err)
	}
	return int32(v), nil
}

func (s service) EnterMonitoring() *dbus.Error {
	return dbusErr(s.power.EnterMonitoring())
}

// ExitMonitoring also restarts the idle timer, otherwise the badge would go
// straight back to monitoring.
func (s service) ExitMonitoring() *dbus.Error {
	s.activity.MarkActivity()
	return dbusErr(s.power.ExitMonitoring())
}

// Recalibrate drops the learnt gas baseline so the sensor calibrates again.
func (s service) Recalibrate() *dbus.Error {
	if s.recalibrator == nil {
		return dbusErr(fmt.Errorf("no air sensor: %w", errs.ErrInvalidState))
	}
	return dbusErr(s.recalibrator.ForceRecalibration())
}

// Shutdown powers the badge off. The reply is sent before power is cut.
func (s service) Shutdown() *dbus.Error {
	go s.power.Shutdown()
	return nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

func dbusErr(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	return &dbus.Error{
		Name: dbusName + "." + getCallerName(),
		Body: []interface{}{err.Error()},
	}
}

func getCallerName() string {
	fpcs := make([]uintptr, 1)
	n := runtime.Callers(3, fpcs)
	if n == 0 {
		return ""
	}
	caller := runtime.FuncForPC(fpcs[0] - 1)
	if caller == nil {
		return ""
	}
	funcNames := strings.Split(caller.Name(), ".")
	return funcNames[len(funcNames)-1]
}
