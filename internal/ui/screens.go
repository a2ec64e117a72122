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

package ui

import (
	"github.com/lashy0/nimbus/internal/logging"
)

// question is the pending yes/no dialog. Exactly one of its callbacks fires.
type question struct {
	text        string
	onYes, onNo func()
	selectedYes bool
}

// Screens tracks which screen is up and the last values pushed to it. Callers
// must hold the display lock.
type Screens struct {
	renderer Renderer
	log      *logging.Logger

	current  ScreenID
	previous ScreenID

	iaq         int
	iaqAccuracy uint8
	temp        int
	hum         int
	battPercent int
	battCharge  bool
	brightness  int
	stab        bool
	runIn       bool
	startupErr  bool

	question *question

	lastView View
	rendered bool
}

// NewScreens starts on the START screen.
func NewScreens(r Renderer, log *logging.Logger) *Screens {
	if log == nil {
		log = logging.Discard()
	}
	s := &Screens{
		renderer:    r,
		log:         log,
		current:     ScreenStart,
		previous:    ScreenNone,
		battPercent: -1,
		brightness:  60,
	}
	s.render()
	return s
}

func (s *Screens) Current() ScreenID {
	return s.current
}

func (s *Screens) Previous() ScreenID {
	return s.previous
}

// Load switches to a screen without recording it as an overlay. Loading the
// current screen does nothing.
func (s *Screens) Load(id ScreenID) {
	if s.current == id {
		return
	}
	s.current = id
	s.render()
}

func (s *Screens) Next() {
	i := regularIndex(s.current) + 1
	if i >= len(regularScreens) {
		i = 0
	}
	s.Load(regularScreens[i])
}

func (s *Screens) Prev() {
	i := regularIndex(s.current) - 1
	if i < 0 {
		i = len(regularScreens) - 1
	}
	s.Load(regularScreens[i])
}

// ShowSpecial puts up an overlay screen and remembers what was under it.
func (s *Screens) ShowSpecial(id ScreenID) {
	s.previous = s.current
	s.current = id
	s.render()
}

// HideSpecial returns to the screen under the overlay, or IAQ when that was
// not a regular screen.
func (s *Screens) HideSpecial() {
	if s.previous.IsRegular() {
		s.Load(s.previous)
		return
	}
	s.Load(ScreenIAQ)
}

func (s *Screens) ShowBrightness(percent int) {
	s.brightness = clampBrightness(percent)
	s.ShowSpecial(ScreenBrightness)
}

func (s *Screens) UpdateBrightness(percent int) {
	s.brightness = clampBrightness(percent)
	s.render()
}

func (s *Screens) ShowQuestion(text string, onYes, onNo func(), selectYes bool) {
	s.question = &question{text: text, onYes: onYes, onNo: onNo, selectedYes: selectYes}
	s.ShowSpecial(ScreenQuestion)
}

// QuestionSelectedYes reports which answer is highlighted.
func (s *Screens) QuestionSelectedYes() bool {
	return s.question != nil && s.question.selectedYes
}

func (s *Screens) SelectQuestion(yes bool) {
	if s.question == nil {
		return
	}
	s.question.selectedYes = yes
	s.render()
}

// ConfirmQuestion fires the highlighted answer's callback. Both callbacks are
// cleared first so a callback can open a new dialog.
func (s *Screens) ConfirmQuestion() {
	q := s.question
	if q == nil {
		return
	}
	cb := q.onNo
	if q.selectedYes {
		cb = q.onYes
	}
	q.onYes, q.onNo = nil, nil
	if cb != nil {
		cb()
	}
}

func (s *Screens) UpdateIAQ(v int) {
	s.iaq = v
	s.render()
}

func (s *Screens) UpdateTemperature(v int) {
	s.temp = v
	s.render()
}

func (s *Screens) UpdateHumidity(v int) {
	s.hum = v
	s.render()
}

func (s *Screens) UpdateIAQQuality(accuracy uint8, stab, runIn bool) {
	s.iaqAccuracy = accuracy
	s.stab = stab
	s.runIn = runIn
	s.render()
}

func (s *Screens) UpdateCalibrationStatus(stab, runIn bool) {
	s.stab = stab
	s.runIn = runIn
	s.render()
}

// UpdateBattery shows a battery level. Negative percent means unknown.
func (s *Screens) UpdateBattery(percent int, charging bool) {
	if percent < 0 {
		s.battPercent = -1
		s.battCharge = false
	} else {
		s.battPercent = min(percent, 100)
		s.battCharge = charging
	}
	s.render()
}

// FinishStartup leaves the START screen. A degraded startup shows the safe
// screen with the error indicator instead.
func (s *Screens) FinishStartup(degraded bool) {
	s.startupErr = degraded
	if degraded {
		s.ShowSpecial(ScreenNoCharging)
		return
	}
	if s.current == ScreenStart {
		s.Load(ScreenIAQ)
		return
	}
	s.render()
}

func (s *Screens) View() View {
	v := View{
		Screen:          s.current,
		BatteryPercent:  s.battPercent,
		BatteryCharging: s.battCharge,
		BatteryText:     batteryText(s.battPercent),
		ErrorIndicator:  s.startupErr,
	}
	switch s.current {
	case ScreenIAQ:
		v.IAQ = s.iaq
		v.IAQLevel = IAQLevel(s.iaq)
		v.IAQAccuracy = s.iaqAccuracy
	case ScreenTemp:
		v.Temperature = s.temp
		v.TemperatureLevel = TemperatureLevel(s.temp)
	case ScreenHum:
		v.Humidity = s.hum
		v.HumidityLevel = HumidityLevel(s.hum)
	case ScreenCalibration:
		v.CalibrationText = calibrationText(s.stab, s.runIn)
	case ScreenBrightness:
		v.Brightness = s.brightness
	case ScreenQuestion:
		if s.question != nil {
			v.Question = s.question.text
			v.QuestionYesSelected = s.question.selectedYes
		}
	}
	return v
}

// render pushes the view when something visible changed.
func (s *Screens) render() {
	v := s.View()
	if s.rendered && v == s.lastView {
		return
	}
	s.lastView = v
	s.rendered = true
	if s.renderer == nil {
		return
	}
	if err := s.renderer.Render(v); err != nil {
		s.log.Debug("Render failed: ", err)
	}
}
