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

package buttons

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lashy0/nimbus/internal/logging"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpioutil"
)

var (
	sleepFn       = time.Sleep
	nowFn         = time.Now
	probeInterval = time.Millisecond
)

// edgeWait bounds each WaitForEdge so held buttons are polled for long presses.
const edgeWait = 20 * time.Millisecond

type Config struct {
	ShortPress  time.Duration
	LongPress   time.Duration
	Debounce    time.Duration
	ActiveLevel string
}

type PinConfig struct {
	ID   ID
	Name string
	Pull gpio.Pull
}

type periphButton struct {
	pin    gpio.PinIO
	active ActiveLevel
	det    *Detector
}

// PeriphSource watches buttons through periph.io. host.Init must have run.
type PeriphSource struct {
	buttons []*periphButton
	log     *logging.Logger
}

func NewPeriphSource(cfg Config, pins []PinConfig, queue *Queue, log *logging.Logger) (*PeriphSource, error) {
	s := &PeriphSource{log: log}
	level, probe := ParseActiveLevel(cfg.ActiveLevel)
	for _, pc := range pins {
		p := gpioreg.ByName(pc.Name)
		if p == nil {
			return nil, fmt.Errorf("failed to find %s pin %s", pc.ID, pc.Name)
		}
		if err := p.In(pc.Pull, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("failed to configure %s pin: %v", pc.ID, err)
		}
		active := level
		if probe {
			var high int
			active, high = ProbeActiveLevel(func() (bool, error) { return p.Read() == gpio.High, nil }, level)
			log.Infof("%s %s idle_high=%d/%d -> active %s", pc.ID, pc.Name, high, probeSamples, active)
		}
		if err := p.In(pc.Pull, gpio.BothEdges); err != nil {
			return nil, fmt.Errorf("failed to enable edges on %s pin: %v", pc.ID, err)
		}
		var pin gpio.PinIO = p
		if cfg.Debounce > 0 {
			debounced, err := gpioutil.Debounce(p, cfg.Debounce, cfg.Debounce, gpio.BothEdges)
			if err != nil {
				return nil, fmt.Errorf("failed to debounce %s pin: %v", pc.ID, err)
			}
			pin = debounced
		}
		s.buttons = append(s.buttons, &periphButton{
			pin:    pin,
			active: active,
			det:    NewDetector(pc.ID, cfg.ShortPress, cfg.LongPress, func(e Event) { queue.Push(e) }),
		})
		log.Infof("%s button OK on %s", pc.ID, pc.Name)
	}
	return s, nil
}

func (s *PeriphSource) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, b := range s.buttons {
		wg.Add(1)
		go func(b *periphButton) {
			defer wg.Done()
			for ctx.Err() == nil {
				b.pin.WaitForEdge(edgeWait)
				pressed := (b.pin.Read() == gpio.High) == (b.active == ActiveHigh)
				now := nowFn()
				b.det.Edge(pressed, now)
				b.det.Poll(now)
			}
		}(b)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *PeriphSource) Close() error {
	for _, b := range s.buttons {
		if err := b.pin.Halt(); err != nil {
			s.log.Warn("Failed to halt button pin: ", err)
		}
	}
	return nil
}
