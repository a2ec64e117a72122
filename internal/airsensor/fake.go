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
	"errors"
	"sync"
	"time"
)

var ErrFakeNoDevice = errors.New("no device at address")

// Fake is a scripted Backend. Steps are returned in order; once exhausted the
// last step repeats. An empty script yields a fixed sample with accuracy 3.
type Fake struct {
	mu sync.Mutex

	// Present lists the addresses that answer. Empty means all do.
	Present  []uint8
	Steps    []Step
	StepErr  error
	State    []byte
	Interval time.Duration

	Opened      BackendConfig
	OpenCalls   int
	StepCalls   int
	Modes       []Mode
	SetStates   [][]byte
	GetStates   int
	Resets      int
	Closed      bool
	stepPointer int
}

func (f *Fake) Open(cfg BackendConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OpenCalls++
	if len(f.Present) > 0 {
		found := false
		for _, a := range f.Present {
			if a == cfg.Address {
				found = true
			}
		}
		if !found {
			return ErrFakeNoDevice
		}
	}
	f.Opened = cfg
	f.Closed = false
	return nil
}

func (f *Fake) Step(now time.Time) (Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StepCalls++
	if f.StepErr != nil {
		return Step{}, f.StepErr
	}
	interval := f.Interval
	if interval == 0 {
		interval = 3 * time.Second
	}
	if len(f.Steps) == 0 {
		return Step{
			Outputs: Sample{
				IAQ: 42, StaticIAQ: 40, Temperature: 21.5, Humidity: 45,
				Accuracy: 3, StabilizationDone: true, RunInDone: true,
			},
			HasIAQ:   true,
			NextCall: now.Add(interval),
		}, nil
	}
	s := f.Steps[f.stepPointer]
	if f.stepPointer < len(f.Steps)-1 {
		f.stepPointer++
	}
	if s.NextCall.IsZero() {
		s.NextCall = now.Add(interval)
	}
	return s, nil
}

func (f *Fake) SetMode(m Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Modes = append(f.Modes, m)
	return nil
}

func (f *Fake) GetState() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetStates++
	if f.State == nil {
		return []byte{1, 2, 3, 4}, nil
	}
	return append([]byte(nil), f.State...), nil
}

func (f *Fake) SetState(state []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetStates = append(f.SetStates, append([]byte(nil), state...))
	return nil
}

func (f *Fake) ResetBaseline() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Resets++
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
