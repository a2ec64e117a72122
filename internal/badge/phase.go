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
	"time"

	"github.com/lashy0/nimbus/internal/airsensor"
	"github.com/lashy0/nimbus/internal/logging"
)

const (
	iaqLogPeriod = 10 * time.Second
	iaqLogDelta  = 10
)

// Phase is how far the fusion library is through its warm up.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseWarmup
	PhaseCal
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseWarmup:
		return "WARMUP"
	case PhaseCal:
		return "CAL"
	case PhaseReady:
		return "READY"
	}
	return "UNKNOWN"
}

func ClassifyPhase(s airsensor.Sample) Phase {
	if s.Accuracy == 0 {
		return PhaseWarmup
	}
	if s.StabilizationDone && s.RunInDone {
		return PhaseReady
	}
	return PhaseCal
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// iaqLogger logs IAQ snapshots at info when something moved or the period
// ran out, and at debug otherwise.
type iaqLogger struct {
	log *logging.Logger

	logged   bool
	last     airsensor.Sample
	nextTime time.Time
}

func (l *iaqLogger) Log(s airsensor.Sample, mode airsensor.Mode, now time.Time) {
	stateChanged := !l.logged ||
		s.Accuracy != l.last.Accuracy ||
		s.StabilizationDone != l.last.StabilizationDone ||
		s.RunInDone != l.last.RunInDone ||
		s.IAQValid != l.last.IAQValid
	delta := int(s.IAQ) - int(l.last.IAQ)
	if delta < 0 {
		delta = -delta
	}
	valueChanged := !l.logged || delta >= iaqLogDelta
	periodic := !now.Before(l.nextTime)

	logf := l.log.Debugf
	if stateChanged || valueChanged || periodic {
		logf = l.log.Infof
		l.logged = true
		l.last = s
		l.nextTime = now.Add(iaqLogPeriod)
	}
	logf("IAQ=%d STATIC_IAQ=%d phase=%s acc=%d valid=%s stab=%s run_in=%s mode=%s",
		s.IAQ, s.StaticIAQ, ClassifyPhase(s), s.Accuracy,
		yesNo(s.IAQValid), yesNo(s.StabilizationDone), yesNo(s.RunInDone), mode)
}
