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
	"os/exec"
	"strings"
	"time"

	"github.com/lashy0/nimbus/i2crequest"
	"github.com/lashy0/nimbus/internal/errs"
	"github.com/lashy0/nimbus/internal/logging"
	"github.com/lashy0/nimbus/internal/mathx"
	"github.com/lashy0/nimbus/internal/power"
	"periph.io/x/conn/v3/gpio"
)

// Register of the power microcontroller.
type Register uint8

const (
	typeReg Register = iota
	versionReg
	wakeCauseReg
	wakeSourcesReg
)

// 16 bit registers, read with a CRC.
const (
	batteryRawReg Register = iota + 0x10
	adcCalLowRawReg
	adcCalLowMVReg
	adcCalHighRawReg
	adcCalHighMVReg
)

// Wake cause values.
const (
	causeNone uint8 = iota
	causeButton
	causeExt1
	causeTimer
)

// Wake source bits.
const (
	wakeSourceButton = 1 << iota
	wakeSourceExt1
	wakeSourceTimer
)

const (
	powerMCUType    = 0xB5
	adcEnableSettle = 2 * time.Millisecond
	adcCodeMask     = 0x0FFF
)

// ADCCalibration maps raw codes to pin millivolts through two points.
type ADCCalibration struct {
	LowRaw, LowMV   int
	HighRaw, HighMV int
}

func (c ADCCalibration) usable() bool {
	return c.HighRaw > c.LowRaw && c.HighMV > c.LowMV
}

// BatteryADC reads the battery sense divider through the power MCU. The
// divider is only powered while the enable pin is high.
type BatteryADC struct {
	addr   byte
	enable gpio.PinOut
	cal    *ADCCalibration
}

// NewBatteryADC checks the power MCU and loads its ADC calibration. An empty
// enablePin means the divider is always powered.
func NewBatteryADC(addr uint8, enablePin string, log *logging.Logger) (*BatteryADC, error) {
	var enable gpio.PinOut
	if enablePin != "" {
		p, err := pinByName(enablePin)
		if err != nil {
			return nil, err
		}
		enable = p
	}
	if err := checkPowerMCU(addr); err != nil {
		return nil, err
	}
	a := &BatteryADC{addr: addr, enable: enable}
	cal, err := readCalibration(addr)
	if err != nil {
		log.Warnf("No ADC calibration, using linear conversion: %v", err)
	} else {
		log.Infof("ADC calibration %+v", cal)
		a.cal = &cal
	}
	return a, nil
}

func checkPowerMCU(addr byte) error {
	t, err := readByte(addr, byte(typeReg))
	if err != nil {
		return err
	}
	if t != powerMCUType {
		return fmt.Errorf("device at 0x%02x responded with type 0x%02x instead of 0x%02x: %w",
			addr, t, powerMCUType, errs.ErrInvalidState)
	}
	return nil
}

func readCalibration(addr byte) (ADCCalibration, error) {
	regs := []Register{adcCalLowRawReg, adcCalLowMVReg, adcCalHighRawReg, adcCalHighMVReg}
	vals := make([]int, len(regs))
	for i, reg := range regs {
		v, err := i2crequest.ReadRegister16(addr, byte(reg), txTimeout)
		if err != nil {
			return ADCCalibration{}, err
		}
		vals[i] = int(v)
	}
	cal := ADCCalibration{LowRaw: vals[0], LowMV: vals[1], HighRaw: vals[2], HighMV: vals[3]}
	if !cal.usable() {
		return ADCCalibration{}, fmt.Errorf("calibration points not usable: %+v", cal)
	}
	return cal, nil
}

func (a *BatteryADC) setEnable(on bool) error {
	if a.enable == nil {
		return nil
	}
	return a.enable.Out(gpio.Level(on))
}

func (a *BatteryADC) ReadRaw() (uint16, error) {
	if err := a.setEnable(true); err != nil {
		return 0, fmt.Errorf("adc enable: %v: %w", err, errs.ErrTransientIO)
	}
	defer a.setEnable(false)
	sleepFn(adcEnableSettle)

	raw, err := i2crequest.ReadRegister16(a.addr, byte(batteryRawReg), txTimeout)
	if err != nil {
		return 0, fmt.Errorf("battery adc: %v: %w", err, errs.ErrTransientIO)
	}
	return raw & adcCodeMask, nil
}

func (a *BatteryADC) Millivolts(raw uint16) (int, bool) {
	if a.cal == nil {
		return 0, false
	}
	c := a.cal
	return mathx.Lerp(int(raw), c.LowRaw, c.HighRaw, c.LowMV, c.HighMV), true
}

// WakeController reads and arms the wake sources on the power MCU and the
// RTC alarm.
type WakeController struct {
	addr        byte
	rtc         *pcf8563
	alarmWake   bool
	poweroffCmd string
	log         *logging.Logger
}

func NewWakeController(addr uint8, rtcAlarmWake bool, poweroffCmd string, log *logging.Logger) *WakeController {
	return &WakeController{
		addr:        addr,
		rtc:         &pcf8563{},
		alarmWake:   rtcAlarmWake,
		poweroffCmd: poweroffCmd,
		log:         log,
	}
}

// WakeCause reports why the badge came on. A power MCU without a recorded
// cause falls back to the RTC alarm flag, which is cleared once read.
func (w *WakeController) WakeCause() (power.WakeCause, error) {
	c, err := readByte(w.addr, byte(wakeCauseReg))
	if err != nil {
		return power.WakeUndefined, err
	}
	switch c {
	case causeButton:
		return power.WakeButton, nil
	case causeExt1:
		return power.WakeExt1, nil
	case causeTimer:
		return power.WakeTimer, nil
	}

	alarm, err := w.rtc.ReadAlarmFlag()
	if err != nil {
		return power.WakeUndefined, err
	}
	if !alarm {
		return power.WakeUndefined, nil
	}
	if err := w.rtc.ClearAlarmFlag(); err != nil {
		w.log.Warnf("Failed to clear RTC alarm flag: %v", err)
	}
	return power.WakeTimer, nil
}

func (w *WakeController) DisableAllWakeSources() error {
	if err := writeByte(w.addr, byte(wakeSourcesReg), 0); err != nil {
		return err
	}
	if w.alarmWake {
		return nil
	}
	return w.rtc.SetAlarmEnabled(false)
}

func (w *WakeController) EnableButtonWake() error {
	sources := byte(wakeSourceButton)
	if w.alarmWake {
		sources |= wakeSourceTimer
	}
	return writeByte(w.addr, byte(wakeSourcesReg), sources)
}

func (w *WakeController) PowerOff() {
	args := strings.Fields(w.poweroffCmd)
	if len(args) == 0 {
		w.log.Error("No poweroff command configured")
		return
	}
	w.log.Infof("Running '%s'", w.poweroffCmd)
	out, err := execCommand(args[0], args[1:]...).CombinedOutput()
	if err != nil {
		w.log.Errorf("Poweroff failed: %v, output: %s", err, string(out))
	}
}

var execCommand = exec.Command
