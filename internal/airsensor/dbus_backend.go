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


package airsensor

import (
	"fmt"
	"time"

	"github.com/godbus/dbus"

	"github.com/lashy0/nimbus/internal/errs"
)

const (
	bsecDBusName = "org.cacophony.bsec"
	bsecDBusPath = "/org/cacophony/bsec"
)

// DBusBackend talks to the fusion library daemon on the system bus.
type DBusBackend struct {
	obj dbus.BusObject
}

func NewDBusBackend() (*DBusBackend, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	return &DBusBackend{obj: conn.Object(bsecDBusName, bsecDBusPath)}, nil
}

func (b *DBusBackend) call(method string, args ...interface{}) *dbus.Call {
	return b.obj.Call(bsecDBusName+"."+method, 0, args...)
}

func ioErr(method string, err error) error {
	return fmt.Errorf("bsec %s: %v: %w", method, err, errs.ErrTransientIO)
}

func (b *DBusBackend) Open(cfg BackendConfig) error {
	err := b.call("Open",
		cfg.Address,
		int32(cfg.HeaterTemperature),
		int32(cfg.HeaterDuration/time.Millisecond),
		cfg.TemperatureOffset,
		uint8(cfg.Mode)).Err
	if err != nil {
		return ioErr("Open", err)
	}
	return nil
}

func (b *DBusBackend) Step(now time.Time) (Step, error) {
	var (
		out        Sample
		iaq        uint16
		staticIAQ  uint16
		hasIAQ     bool
		nextCallNs int64
	)
	err := b.call("Step", now.UnixNano()).Store(
		&iaq, &staticIAQ,
		&out.Temperature, &out.Humidity, &out.Pressure, &out.GasResistance,
		&out.Accuracy, &out.StabilizationDone, &out.RunInDone,
		&hasIAQ, &nextCallNs)
	if err != nil {
		return Step{}, ioErr("Step", err)
	}
	out.IAQ = iaq
	out.StaticIAQ = staticIAQ
	return Step{Outputs: out, HasIAQ: hasIAQ, NextCall: time.Unix(0, nextCallNs)}, nil
}

func (b *DBusBackend) SetMode(m Mode) error {
	if err := b.call("SetMode", uint8(m)).Err; err != nil {
		return ioErr("SetMode", err)
	}
	return nil
}

func (b *DBusBackend) GetState() ([]byte, error) {
	var state []byte
	if err := b.call("GetState").Store(&state); err != nil {
		return nil, ioErr("GetState", err)
	}
	return state, nil
}

func (b *DBusBackend) SetState(state []byte) error {
	if err := b.call("SetState", state).Err; err != nil {
		return ioErr("SetState", err)
	}
	return nil
}

func (b *DBusBackend) ResetBaseline() error {
	if err := b.call("ResetBaseline").Err; err != nil {
		return ioErr("ResetBaseline", err)
	}
	return nil
}

func (b *DBusBackend) Close() error {
	if err := b.call("Close").Err; err != nil {
		return ioErr("Close", err)
	}
	return nil
}
