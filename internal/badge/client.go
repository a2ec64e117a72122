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
	"fmt"
	"sort"

	"github.com/godbus/dbus"
)

// client talks to a running daemon.
type client struct {
	obj dbus.BusObject
}

func newClient() (*client, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	return &client{obj: conn.Object(dbusName, dbusPath)}, nil
}

func (c *client) call(method string, args ...interface{}) *dbus.Call {
	return c.obj.Call(dbusName+"."+method, 0, args...)
}

func (c *client) status() (map[string]dbus.Variant, error) {
	var status map[string]dbus.Variant
	if err := c.call("GetStatus").Store(&status); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	return status, nil
}

func (c *client) brightness() (int, error) {
	var v int32
	if err := c.call("GetBrightness").Store(&v); err != nil {
		return 0, fmt.Errorf("get brightness: %w", err)
	}
	return int(v), nil
}

func (c *client) setBrightness(percent int) error {
	if err := c.call("SetBrightness", int32(percent)).Err; err != nil {
		return fmt.Errorf("set brightness: %w", err)
	}
	return nil
}

func (c *client) stepBrightness() (int, error) {
	var v int32
	if err := c.call("StepBrightness").Store(&v); err != nil {
		return 0, fmt.Errorf("step brightness: %w", err)
	}
	return int(v), nil
}

func (c *client) simple(method string) error {
	if err := c.call(method).Err; err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// formatStatus renders a status map one sorted key per line.
func formatStatus(status map[string]dbus.Variant) []string {
	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, status[k].Value()))
	}
	return lines
}
