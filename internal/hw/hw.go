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


// Package hw drives the badge hardware: backlight, panel power, the power
// microcontroller (battery ADC and wake sources) and the RTC alarm.
package hw

import (
	"fmt"
	"time"

	"github.com/lashy0/nimbus/i2crequest"
	"github.com/lashy0/nimbus/internal/errs"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var sleepFn = time.Sleep

// i2c transaction timeout in milliseconds.
const txTimeout = 1000

// Init loads the periph host drivers. It must run before any pin lookup.
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to init periph host: %w", err)
	}
	return nil
}

func pinByName(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown pin %q: %w", name, errs.ErrInvalidArgument)
	}
	return p, nil
}

func readByte(addr, reg byte) (byte, error) {
	b, err := i2crequest.Tx(addr, []byte{reg}, 1, txTimeout)
	if err != nil {
		return 0, fmt.Errorf("read 0x%02x/0x%02x: %v: %w", addr, reg, err, errs.ErrTransientIO)
	}
	if len(b) != 1 {
		return 0, fmt.Errorf("read 0x%02x/0x%02x: got %d bytes: %w", addr, reg, len(b), errs.ErrTransientIO)
	}
	return b[0], nil
}

func writeByte(addr, reg, val byte) error {
	if _, err := i2crequest.Tx(addr, []byte{reg, val}, 0, txTimeout); err != nil {
		return fmt.Errorf("write 0x%02x/0x%02x: %v: %w", addr, reg, err, errs.ErrTransientIO)
	}
	return nil
}
