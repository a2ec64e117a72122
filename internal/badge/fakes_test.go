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
	"time"

	"github.com/TheCacophonyProject/event-reporter/v3/eventclient"
	"github.com/lashy0/nimbus/internal/airsensor"
	"github.com/lashy0/nimbus/internal/buttons"
	"github.com/lashy0/nimbus/internal/logging"
	"github.com/lashy0/nimbus/internal/power"
	"periph.io/x/conn/v3/physic"
)

var errFake = errors.New("fake failure")

type fakeInput struct {
	events []buttons.Event
	idle   int
}

func (f *fakeInput) HandleEvent(e buttons.Event) { f.events = append(f.events, e) }
func (f *fakeInput) ProcessIdle()                { f.idle++ }

type fakePower struct {
	monitoring bool
	state      power.State
	enters     int
	exits      int
	shutdowns  chan struct{}
}

func (p *fakePower) IsMonitoring() bool { return p.monitoring }
func (p *fakePower) State() power.State { return p.state }

func (p *fakePower) EnterMonitoring() error {
	p.enters++
	p.monitoring = true
	return nil
}

func (p *fakePower) ExitMonitoring() error {
	p.exits++
	p.monitoring = false
	return nil
}

func (p *fakePower) Shutdown() {
	if p.shutdowns != nil {
		p.shutdowns <- struct{}{}
	}
}

// fakeBattery returns its readings in order and repeats the last one.
type fakeBattery struct {
	readings []power.BatteryReading
	errs     []error
	calls    int
}

func (b *fakeBattery) Read() (power.BatteryReading, error) {
	i := b.calls
	b.calls++
	if i < len(b.errs) && b.errs[i] != nil {
		return power.BatteryReading{Percent: power.BatteryPercentUnknown}, b.errs[i]
	}
	if len(b.readings) == 0 {
		return power.BatteryReading{Percent: power.BatteryPercentUnknown}, nil
	}
	if i >= len(b.readings) {
		i = len(b.readings) - 1
	}
	return b.readings[i], nil
}

func battery(percent int, charging bool) power.BatteryReading {
	return power.BatteryReading{
		Percent:  percent,
		Voltage:  3800 * physic.MilliVolt,
		Charging: charging,
		Valid:    true,
	}
}

type fakeSensor struct {
	initialized bool
	samples     []airsensor.Sample
	err         error
	delay       time.Duration
	mode        airsensor.Mode
	modes       []airsensor.Mode
	reads       int
}

func (s *fakeSensor) Initialized() bool            { return s.initialized }
func (s *fakeSensor) NextCallDelay() time.Duration { return s.delay }
func (s *fakeSensor) Mode() airsensor.Mode         { return s.mode }

func (s *fakeSensor) SetMode(m airsensor.Mode) error {
	s.modes = append(s.modes, m)
	s.mode = m
	return nil
}

func (s *fakeSensor) Read() (airsensor.Sample, error) {
	i := s.reads
	s.reads++
	if s.err != nil {
		return airsensor.Sample{}, s.err
	}
	if len(s.samples) == 0 {
		return airsensor.Sample{}, nil
	}
	if i >= len(s.samples) {
		i = len(s.samples) - 1
	}
	return s.samples[i], nil
}

func recordingEvents() (*Events, *[]eventclient.Event) {
	var got []eventclient.Event
	e := &Events{
		log:     logging.Discard(),
		enabled: true,
		add: func(ev eventclient.Event) error {
			got = append(got, ev)
			return nil
		},
	}
	return e, &got
}

func eventTypes(events []eventclient.Event) []string {
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}
