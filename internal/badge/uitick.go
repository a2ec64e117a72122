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
	"context"
	"time"

	"github.com/lashy0/nimbus/internal/airsensor"
	"github.com/lashy0/nimbus/internal/logging"
	"github.com/lashy0/nimbus/internal/power"
	"github.com/lashy0/nimbus/internal/timedlock"
	"github.com/lashy0/nimbus/internal/ui"
)

const (
	UITickInterval     = 200 * time.Millisecond
	chargingScreenTime = 3 * time.Second
	displayLockTimeout = 10 * time.Millisecond
	usableAccuracy     = 1
)

// UI copies the worker's snapshot onto the screens.
type UI struct {
	screens *ui.Screens
	display *timedlock.Mutex
	shared  *Shared
	log     *logging.Logger

	chargingShown    bool
	chargingDeadline time.Time

	phase  Phase
	usable bool
}

func NewUI(screens *ui.Screens, display *timedlock.Mutex, shared *Shared, log *logging.Logger) *UI {
	return &UI{
		screens: screens,
		display: display,
		shared:  shared,
		log:     log,
	}
}

func (u *UI) Run(ctx context.Context) error {
	ticker := time.NewTicker(UITickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			u.Tick(now)
		}
	}
}

// Tick applies one snapshot. Nothing is drawn while monitoring or when either
// lock is busy.
func (u *UI) Tick(now time.Time) {
	snap, ok := u.shared.Take()
	if !ok || snap.Monitoring {
		return
	}
	u.display.With(displayLockTimeout, func() {
		u.updateChargingOverlay(snap.ChargingEdge, snap.ChargingNow, now)
		if snap.HasSensor {
			u.updateSensor(snap.Sensor)
		}
		u.updateBattery(snap.Battery)
	})
}

func (u *UI) hideChargingScreen() {
	if u.screens.Current() == ui.ScreenCharging {
		u.screens.HideSpecial()
	}
	u.chargingShown = false
	u.chargingDeadline = time.Time{}
}

func (u *UI) updateChargingOverlay(edge, charging bool, now time.Time) {
	if edge {
		if charging {
			if u.screens.Current() != ui.ScreenCharging {
				u.screens.ShowSpecial(ui.ScreenCharging)
			}
			u.chargingShown = true
			u.chargingDeadline = now.Add(chargingScreenTime)
		} else if u.chargingShown {
			u.hideChargingScreen()
		}
	}
	if u.chargingShown && !u.chargingDeadline.IsZero() && !now.Before(u.chargingDeadline) {
		u.hideChargingScreen()
	}
}

func (u *UI) updateSensor(s airsensor.Sample) {
	u.screens.UpdateCalibrationStatus(s.StabilizationDone, s.RunInDone)
	u.screens.UpdateIAQQuality(s.Accuracy, s.StabilizationDone, s.RunInDone)
	if p := ClassifyPhase(s); p != u.phase {
		u.phase = p
		u.log.Infof("BME680 IAQ state: %s", p)
	}

	usable := s.Accuracy >= usableAccuracy
	if usable && !u.usable {
		u.log.Infof("BME680 IAQ warmup completed (accuracy=%d)", s.Accuracy)
	} else if !usable && u.usable {
		u.log.Info("BME680 IAQ warmup started")
	}
	u.usable = usable

	if usable && u.screens.Current() == ui.ScreenCalibration {
		u.screens.Load(ui.ScreenIAQ)
	}
	if usable {
		u.screens.UpdateIAQ(int(s.StaticIAQ))
	} else {
		u.screens.UpdateIAQ(0)
	}
	u.screens.UpdateTemperature(int(s.Temperature))
	u.screens.UpdateHumidity(int(s.Humidity))
}

func (u *UI) updateBattery(r power.BatteryReading) {
	if r.Valid {
		u.screens.UpdateBattery(r.Percent, r.Charging)
	} else {
		u.screens.UpdateBattery(power.BatteryPercentUnknown, false)
	}
}
