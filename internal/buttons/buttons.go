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

// Package buttons turns the badge's two push buttons into short and long
// press events delivered through a bounded queue.
package buttons

import (
	"fmt"
	"time"

	"github.com/lashy0/nimbus/internal/logging"
)

type ID int

const (
	Prev ID = iota
	Next
)

func (id ID) String() string {
	switch id {
	case Prev:
		return "PREV"
	case Next:
		return "NEXT"
	}
	return fmt.Sprintf("ID(%d)", int(id))
}

type Kind int

const (
	Short Kind = iota
	Long
)

func (k Kind) String() string {
	if k == Long {
		return "long"
	}
	return "short"
}

type Event struct {
	ID   ID
	Kind Kind
	Time time.Time
}

const DefaultQueueLength = 8

// Queue never blocks the producer. Events that do not fit are dropped and
// counted.
type Queue struct {
	ch    chan Event
	drops *logging.EveryN
	log   *logging.Logger
}

func NewQueue(length int, log *logging.Logger) *Queue {
	if length < 1 {
		length = DefaultQueueLength
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Queue{
		ch:    make(chan Event, length),
		drops: logging.NewEveryN(20),
		log:   log,
	}
}

func (q *Queue) Push(e Event) bool {
	select {
	case q.ch <- e:
		return true
	default:
		if n, ok := q.drops.Hit(); ok {
			q.log.Warnf("Button event queue is full, dropping events (%d)", n)
		}
		return false
	}
}

// Poll returns the next queued event without waiting.
func (q *Queue) Poll() (Event, bool) {
	select {
	case e := <-q.ch:
		return e, true
	default:
		return Event{}, false
	}
}

func (q *Queue) Dropped() uint32 {
	return q.drops.Count()
}
