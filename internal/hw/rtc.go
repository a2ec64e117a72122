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

import "fmt"

const (
	pcf8563Address = 0x51

	pcf8563Stat2Reg = 0x01
	pcf8563AlarmAF  = 0x01 << 3
	pcf8563TimerTF  = 0x01 << 2
	pcf8563AlarmAIE = 0x01 << 1
)

// pcf8563 is the RTC. Only its alarm is used, as a timer wake source.
type pcf8563 struct{}

func (rtc *pcf8563) ReadAlarmFlag() (bool, error) {
	state, err := readByte(pcf8563Address, pcf8563Stat2Reg)
	if err != nil {
		return false, err
	}
	return state&pcf8563AlarmAF == pcf8563AlarmAF, nil
}

func (rtc *pcf8563) ClearAlarmFlag() error {
	state, err := readByte(pcf8563Address, pcf8563Stat2Reg)
	if err != nil {
		return err
	}
	state &^= pcf8563AlarmAF
	return writeByte(pcf8563Address, pcf8563Stat2Reg, state)
}

func (rtc *pcf8563) ReadAlarmEnabled() (bool, error) {
	state, err := readByte(pcf8563Address, pcf8563Stat2Reg)
	if err != nil {
		return false, err
	}
	return state&pcf8563AlarmAIE == pcf8563AlarmAIE, nil
}

func (rtc *pcf8563) SetAlarmEnabled(enabled bool) error {
	state, err := readByte(pcf8563Address, pcf8563Stat2Reg)
	if err != nil {
		return err
	}
	// Writing 1 to the flags leaves them as they are.
	state |= pcf8563AlarmAF | pcf8563TimerTF
	if enabled {
		state |= pcf8563AlarmAIE
	} else {
		state &^= pcf8563AlarmAIE
	}
	if err := writeByte(pcf8563Address, pcf8563Stat2Reg, state); err != nil {
		return err
	}

	got, err := rtc.ReadAlarmEnabled()
	if err != nil {
		return err
	}
	if got != enabled {
		return fmt.Errorf("rtc alarm enabled is %t after setting it to %t", got, enabled)
	}
	return nil
}
