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

package power

import (
	"fmt"
	"math"
	"sync"

	"github.com/lashy0/nimbus/internal/errs"
	"github.com/lashy0/nimbus/internal/mathx"
	"periph.io/x/conn/v3/physic"
)

const (
	DefaultDividerRatio = 2.0

	batteryFilterAlpha      = 0.2
	batteryChargeDeltaMV    = 5.0
	batteryDischargeDeltaMV = -5.0
	batteryTrendConfirm     = 2
	batteryValidMinMV       = 2800
	batteryValidMaxMV       = 4350
	adcFullScaleMV          = 3300
	adcMaxCode              = 4095
	BatteryPercentUnknown   = -1
)

var (
	batteryMVPoints  = []int{3200, 3400, 3500, 3600, 3700, 3800, 3900, 4000, 4100, 4200}
	batteryPctPoints = []int{0, 5, 10, 20, 35, 50, 65, 80, 92, 100}
)

// BatteryADC samples the battery sense pin.
type BatteryADC interface {
	ReadRaw() (uint16, error)
	// Millivolts converts a raw code with the ADC's own calibration. ok is
	// false when no calibration is available.
	Millivolts(raw uint16) (mv int, ok bool)
}

type BatteryReading struct {
	Percent  int
	Voltage  physic.ElectricPotential
	Charging bool
	Valid    bool
}

func (r BatteryReading) Millivolts() uint16 {
	return uint16(r.Voltage / physic.MilliVolt)
}

func (r BatteryReading) String() string {
	if !r.Valid {
		return fmt.Sprintf("battery unknown (%dmV)", r.Millivolts())
	}
	return fmt.Sprintf("battery %d%% %dmV charging=%t", r.Percent, r.Millivolts(), r.Charging)
}

// BatteryMonitor filters battery voltage and tracks whether it is charging.
type BatteryMonitor struct {
	adc     BatteryADC
	divider float64

	mu             sync.Mutex
	filterValid    bool
	filteredMV     float64
	prevMV         float64
	charging       bool
	chargeCount    uint8
	dischargeCount uint8
}

func NewBatteryMonitor(adc BatteryADC, dividerRatio float64) *BatteryMonitor {
	if dividerRatio <= 0 {
		dividerRatio = DefaultDividerRatio
	}
	return &BatteryMonitor{adc: adc, divider: dividerRatio}
}

// Read samples the battery. A failed sample returns an invalid reading along
// with an error wrapping ErrTransientIO and leaves the filter untouched.
func (b *BatteryMonitor) Read() (BatteryReading, error) {
	unknown := BatteryReading{Percent: BatteryPercentUnknown}
	if b.adc == nil {
		return unknown, fmt.Errorf("battery adc not initialized: %w", errs.ErrInvalidState)
	}
	raw, err := b.adc.ReadRaw()
	if err != nil {
		return unknown, fmt.Errorf("battery adc read: %v: %w", err, errs.ErrTransientIO)
	}
	pinMV, ok := b.adc.Millivolts(raw)
	if !ok {
		pinMV = int(raw) * adcFullScaleMV / adcMaxCode
	}
	return b.process(float64(pinMV) * b.divider), nil
}

func (b *BatteryMonitor) process(battMV float64) BatteryReading {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.filterValid {
		b.filterValid = true
		b.filteredMV = battMV
		b.prevMV = battMV
	} else {
		b.filteredMV = b.filteredMV*(1-batteryFilterAlpha) + battMV*batteryFilterAlpha
	}
	delta := b.filteredMV - b.prevMV
	b.prevMV = b.filteredMV

	mv := int(math.Floor(b.filteredMV + 0.5))
	r := BatteryReading{}
	if mv > 0 {
		r.Voltage = physic.ElectricPotential(mv) * physic.MilliVolt
	}

	if mv < batteryValidMinMV || mv > batteryValidMaxMV {
		b.chargeCount = 0
		b.dischargeCount = 0
		r.Percent = BatteryPercentUnknown
		return r
	}

	b.updateTrend(delta)
	r.Percent = batteryPercent(mv)
	r.Charging = b.charging
	r.Valid = true
	return r
}

func (b *BatteryMonitor) updateTrend(delta float64) {
	switch {
	case delta >= batteryChargeDeltaMV:
		if b.chargeCount < math.MaxUint8 {
			b.chargeCount++
		}
		b.dischargeCount = 0
	case delta <= batteryDischargeDeltaMV:
		if b.dischargeCount < math.MaxUint8 {
			b.dischargeCount++
		}
		b.chargeCount = 0
	default:
		b.chargeCount = 0
		b.dischargeCount = 0
	}

	if b.chargeCount >= batteryTrendConfirm {
		b.charging = true
	} else if b.dischargeCount >= batteryTrendConfirm {
		b.charging = false
	}
}

func batteryPercent(mv int) int {
	last := len(batteryMVPoints) - 1
	if mv <= batteryMVPoints[0] {
		return batteryPctPoints[0]
	}
	if mv >= batteryMVPoints[last] {
		return batteryPctPoints[last]
	}
	for i := 1; i <= last; i++ {
		if mv <= batteryMVPoints[i] {
			return mathx.Lerp(mv, batteryMVPoints[i-1], batteryMVPoints[i], batteryPctPoints[i-1], batteryPctPoints[i])
		}
	}
	return batteryPctPoints[last]
}
