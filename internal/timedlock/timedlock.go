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

// Package timedlock provides a mutex whose acquisition gives up after a
// bounded wait. Callers that fail to acquire skip their work.
package timedlock

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

type Mutex struct {
	sem *semaphore.Weighted
}

func New() *Mutex {
	return &Mutex{sem: semaphore.NewWeighted(1)}
}

// TryLockFor waits at most d for the lock and reports whether it was taken.
func (m *Mutex) TryLockFor(d time.Duration) bool {
	if m.sem.TryAcquire(1) {
		return true
	}
	if d <= 0 {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return m.sem.Acquire(ctx, 1) == nil
}

func (m *Mutex) Unlock() {
	m.sem.Release(1)
}

// With runs fn while holding the lock. It returns false, without running fn,
// when the lock could not be taken within d.
func (m *Mutex) With(d time.Duration, fn func()) bool {
	if !m.TryLockFor(d) {
		return false
	}
	defer m.Unlock()
	fn()
	return true
}
