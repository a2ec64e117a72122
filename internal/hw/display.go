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


package hw

import (
	"fmt"

	"github.com/lashy0/nimbus/internal/errs"
	"github.com/lashy0/nimbus/internal/mathx"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Backlight dims the display with PWM on one pin.
type Backlight struct {
	pin  gpio.PinOut
	freq physic.Frequency
}

func NewBacklight(pinName string, frequencyHz int) (*Backlight, error) {
	pin, err := pinByName(pinName)
	if err != nil {
		return nil, err
	}
	return newBacklight(pin, frequencyHz), nil
}

func newBacklight(pin gpio.PinOut, frequencyHz int) *Backlight {
	if frequencyHz <= 0 {
		frequencyHz = 5000
	}
	return &Backlight{pin: pin, freq: physic.Frequency(frequencyHz) * physic.Hertz}
}

// SetPercent sets the duty cycle. Zero turns the backlight off.
func (b *Backlight) SetPercent(p int) error {
	p = mathx.Clamp(p, 0, 100)
	var err error
	switch p {
	case 0:
		err = b.pin.Out(gpio.Low)
	case 100:
		err = b.pin.Out(gpio.High)
	default:
		err = b.pin.PWM(gpio.DutyMax*gpio.Duty(p)/100, b.freq)
	}
	if err != nil {
		return fmt.Errorf("backlight %d%%: %v: %w", p, err, errs.ErrTransientIO)
	}
	return nil
}

// Panel switches the display controller supply.
type Panel struct {
	pin gpio.PinOut
}

func NewPanel(pinName string) (*Panel, error) {
	pin, err := pinByName(pinName)
	if err != nil {
		return nil, err
	}
	return &Panel{pin: pin}, nil
}

func (p *Panel) SetOn(on bool) error {
	if err := p.pin.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("panel on=%t: %v: %w", on, err, errs.ErrTransientIO)
	}
	return nil
}
