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

//go:build linux

package buttons

import (
	"context"
	"fmt"
	"time"

	"github.com/lashy0/nimbus/internal/logging"
	"github.com/warthog618/go-gpiocdev"
)

type LineConfig struct {
	ID     ID
	Offset int
	PullUp bool
}

type cdevButton struct {
	line *gpiocdev.Line
	det  *Detector
}

// CdevSource watches buttons through the GPIO character device. Edges come
// from the kernel with hardware debounce; a ticker polls for long presses.
type CdevSource struct {
	chip    *gpiocdev.Chip
	buttons []*cdevButton
	log     *logging.Logger
}

func NewCdevSource(cfg Config, chipName string, lines []LineConfig, queue *Queue, log *logging.Logger) (*CdevSource, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	s := &CdevSource{chip: chip, log: log}
	level, probe := ParseActiveLevel(cfg.ActiveLevel)

	for _, lc := range lines {
		bias := gpiocdev.WithBiasDisabled
		if lc.PullUp {
			bias = gpiocdev.WithPullUp
		}
		active := level
		if probe {
			probeLine, err := chip.RequestLine(lc.Offset, gpiocdev.AsInput, bias)
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("request %s line %d: %w", lc.ID, lc.Offset, err)
			}
			var high int
			active, high = ProbeActiveLevel(func() (bool, error) {
				v, err := probeLine.Value()
				return v == 1, err
			}, level)
			probeLine.Close()
			log.Infof("%s line %d idle_high=%d/%d -> active %s", lc.ID, lc.Offset, high, probeSamples, active)
		}

		det := NewDetector(lc.ID, cfg.ShortPress, cfg.LongPress, func(e Event) { queue.Push(e) })
		opts := []gpiocdev.LineReqOption{
			bias,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				det.Edge(evt.Type == gpiocdev.LineEventRisingEdge, nowFn())
			}),
		}
		if active == ActiveLow {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		if cfg.Debounce > 0 {
			opts = append(opts, gpiocdev.WithDebounce(cfg.Debounce))
		}
		line, err := chip.RequestLine(lc.Offset, opts...)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("request %s line %d: %w", lc.ID, lc.Offset, err)
		}
		s.buttons = append(s.buttons, &cdevButton{line: line, det: det})
		log.Infof("%s button OK on line %d", lc.ID, lc.Offset)
	}
	return s, nil
}

func (s *CdevSource) Run(ctx context.Context) error {
	ticker := time.NewTicker(edgeWait)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			for _, b := range s.buttons {
				b.det.Poll(now)
			}
		}
	}
}

func (s *CdevSource) Close() error {
	for _, b := range s.buttons {
		if err := b.line.Close(); err != nil {
			s.log.Warn("Failed to close button line: ", err)
		}
	}
	s.buttons = nil
	if s.chip != nil {
		return s.chip.Close()
	}
	return nil
}
