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


package telemetry

import (
	"sync"
	"time"
)

// FakePublisher records what was published.
type FakePublisher struct {
	mu sync.Mutex

	Readings []Reading
	States   []string
	Err      error
	Closed   bool
}

func (f *FakePublisher) PublishReading(r Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Readings = append(f.Readings, r)
	return nil
}

func (f *FakePublisher) PublishState(state string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.States = append(f.States, state)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

func (f *FakePublisher) ReadingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Readings)
}

func (f *FakePublisher) StateLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.States...)
}
