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
	"fmt"
	"sync"
	"time"

	"github.com/lashy0/nimbus/internal/errs"
	"github.com/lashy0/nimbus/internal/logging"
	"github.com/lashy0/nimbus/internal/mathx"
	"github.com/lashy0/nimbus/internal/store"
)

const (
	DefaultNextCallDelay = 3000 * time.Millisecond
	minNextCallDelay     = 200 * time.Millisecond
	maxNextCallDelay     = 60 * time.Second

	saveInterval          = 15 * time.Minute
	bootstrapSaveInterval = 60 * time.Second
)

// Validity policies.
const (
	// PolicyBaseline needs accuracy above zero on a number of samples in a
	// row before IAQ is trusted.
	PolicyBaseline = "baseline"
	// PolicyAccuracy trusts IAQ as soon as accuracy is above zero.
	PolicyAccuracy = "accuracy"
)

var nowFn = time.Now

type Config struct {
	ValidityPolicy         string
	BaselineMinSamples     int
	AutoRecalibrate        bool
	RecalibrateInterval    time.Duration
	ResetBaselineOnPowerOn bool
	HeaterTemperature      int
	HeaterDuration         time.Duration
	TemperatureOffset      float64
	// Addresses are tried in order until one opens. Empty means
	// PrimaryAddress then SecondaryAddress.
	Addresses []uint8
}

type progress struct {
	accuracy          uint8
	stabilizationDone bool
	runInDone         bool
}

// Runtime owns the fusion library session. It is safe for concurrent use.
type Runtime struct {
	mu      sync.Mutex
	backend Backend
	states  *stateStore
	cfg     Config
	log     *logging.Logger

	initialized  bool
	address      uint8
	mode         Mode
	nextDelay    time.Duration
	last         Sample
	validSamples int
	iaqValid     bool
	lastSave     time.Time
	saved        progress
	lastRecal    time.Time
}

// New returns a runtime over backend. A nil store disables state persistence.
func New(backend Backend, st store.Store, cfg Config, log *logging.Logger) *Runtime {
	if len(cfg.Addresses) == 0 {
		cfg.Addresses = []uint8{PrimaryAddress, SecondaryAddress}
	}
	if cfg.ValidityPolicy == "" {
		cfg.ValidityPolicy = PolicyBaseline
	}
	r := &Runtime{
		backend:   backend,
		cfg:       cfg,
		log:       log,
		nextDelay: DefaultNextCallDelay,
	}
	if st != nil {
		r.states = &stateStore{s: st}
	}
	return r
}

// Init opens the sensor. coldBoot is true when the device was powered on
// rather than woken from sleep; combined with ResetBaselineOnPowerOn it
// discards the persisted calibration so the baseline is learnt afresh.
func (r *Runtime) Init(coldBoot bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return nil
	}

	var openErr error
	opened := false
	for _, addr := range r.cfg.Addresses {
		openErr = r.backend.Open(BackendConfig{
			Address:           addr,
			HeaterTemperature: r.cfg.HeaterTemperature,
			HeaterDuration:    r.cfg.HeaterDuration,
			TemperatureOffset: r.cfg.TemperatureOffset,
			Mode:              ModeLP,
		})
		if openErr == nil {
			r.address = addr
			opened = true
			break
		}
		r.log.Warnf("BME680 not found at 0x%02x: %v", addr, openErr)
	}
	if !opened {
		return fmt.Errorf("no BME680 found: %v: %w", openErr, errs.ErrTransientIO)
	}

	resetBaseline := r.cfg.ResetBaselineOnPowerOn && coldBoot
	r.log.Infof("BME680 at 0x%02x, baseline reset on power on=%t", r.address, resetBaseline)
	if r.states != nil {
		if resetBaseline {
			if err := r.states.clear(); err != nil {
				r.log.Warnf("Failed to clear sensor state: %v", err)
			}
			r.log.Info("Sensor cold start, persisted state cleared")
		} else {
			r.restoreState()
		}
	}

	now := nowFn()
	r.initialized = true
	r.mode = ModeLP
	r.nextDelay = DefaultNextCallDelay
	r.last = Sample{}
	r.validSamples = 0
	r.iaqValid = false
	r.lastSave = time.Time{}
	r.saved = progress{}
	r.lastRecal = now
	return nil
}

func (r *Runtime) restoreState() {
	blob, err := r.states.load()
	if err == store.ErrNotFound {
		return
	}
	if err != nil {
		r.log.Warnf("Ignoring persisted sensor state: %v", err)
		return
	}
	if err := r.backend.SetState(blob); err != nil {
		r.log.Warnf("Failed to restore sensor state: %v", err)
		return
	}
	r.log.Infof("Loaded sensor state (%d bytes)", len(blob))
}

// Read runs one pass of the fusion library and returns the latest outputs.
func (r *Runtime) Read() (Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return Sample{}, fmt.Errorf("sensor read before init: %w", errs.ErrInvalidState)
	}

	now := nowFn()
	r.maybeRecalibrate(now)

	step, err := r.backend.Step(now)
	if err != nil {
		return Sample{}, err
	}
	r.nextDelay = clampDelay(step.NextCall.Sub(now))

	out := step.Outputs
	if step.HasIAQ {
		out.IAQ = mathx.Clamp(out.IAQ, 0, maxIAQ)
		out.StaticIAQ = mathx.Clamp(out.StaticIAQ, 0, maxIAQ)
		r.updateValidity(out.Accuracy)
	} else {
		out.IAQ = r.last.IAQ
		out.StaticIAQ = r.last.StaticIAQ
		out.Accuracy = r.last.Accuracy
	}
	out.IAQValid = r.iaqValid
	r.last = out

	if step.HasIAQ {
		r.saveOnProgress(now)
	}
	r.saveState(false, now)
	return r.last, nil
}

func (r *Runtime) updateValidity(accuracy uint8) {
	if accuracy == 0 {
		r.validSamples = 0
		r.iaqValid = false
		return
	}
	if r.validSamples < r.cfg.BaselineMinSamples {
		r.validSamples++
	}
	switch r.cfg.ValidityPolicy {
	case PolicyAccuracy:
		r.iaqValid = true
	default:
		r.iaqValid = r.validSamples >= r.cfg.BaselineMinSamples
	}
}

func clampDelay(d time.Duration) time.Duration {
	// Round up to whole milliseconds.
	if rem := d % time.Millisecond; rem > 0 {
		d += time.Millisecond - rem
	}
	return mathx.Clamp(d, minNextCallDelay, maxNextCallDelay)
}

func (r *Runtime) saveOnProgress(now time.Time) {
	if r.states == nil {
		return
	}
	advanced := r.last.Accuracy > r.saved.accuracy ||
		(r.last.StabilizationDone && !r.saved.stabilizationDone) ||
		(r.last.RunInDone && !r.saved.runInDone)
	if !advanced {
		return
	}
	r.saveState(true, now)
	r.saved = progress{
		accuracy:          r.last.Accuracy,
		stabilizationDone: r.last.StabilizationDone,
		runInDone:         r.last.RunInDone,
	}
}

func (r *Runtime) saveState(force bool, now time.Time) {
	if r.states == nil || !r.initialized {
		return
	}
	interval := bootstrapSaveInterval
	if r.last.CalibrationReady() {
		interval = saveInterval
	}
	if !force && !r.lastSave.IsZero() && now.Sub(r.lastSave) < interval {
		return
	}
	blob, err := r.backend.GetState()
	if err != nil {
		r.log.Warnf("Failed to get sensor state: %v", err)
		return
	}
	if err := r.states.save(blob); err != nil {
		r.log.Warnf("Failed to persist sensor state: %v", err)
		return
	}
	r.lastSave = now
}

func (r *Runtime) maybeRecalibrate(now time.Time) {
	if !r.cfg.AutoRecalibrate || r.cfg.RecalibrateInterval <= 0 {
		return
	}
	if now.Sub(r.lastRecal) < r.cfg.RecalibrateInterval {
		return
	}
	r.log.Info("Periodic sensor recalibration")
	r.recalibrate(now)
}

func (r *Runtime) recalibrate(now time.Time) {
	if err := r.backend.ResetBaseline(); err != nil {
		r.log.Warnf("Failed to reset sensor baseline: %v", err)
	}
	r.validSamples = 0
	r.iaqValid = false
	r.saved = progress{}
	r.lastRecal = now
}

// ForceRecalibration drops the learnt baseline now.
func (r *Runtime) ForceRecalibration() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return fmt.Errorf("recalibration before init: %w", errs.ErrInvalidState)
	}
	r.log.Info("Forced sensor recalibration")
	r.recalibrate(nowFn())
	return nil
}

func (r *Runtime) SetMode(m Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return fmt.Errorf("set mode before init: %w", errs.ErrInvalidState)
	}
	if m != ModeLP && m != ModeULP {
		return fmt.Errorf("sensor mode %d: %w", m, errs.ErrInvalidArgument)
	}
	if r.mode == m {
		return nil
	}
	if err := r.backend.SetMode(m); err != nil {
		return err
	}
	r.mode = m
	r.nextDelay = DefaultNextCallDelay
	r.log.Infof("Sensor mode switched to %s", m)
	return nil
}

// NextCallDelay is how long to wait before the next Read.
func (r *Runtime) NextCallDelay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return DefaultNextCallDelay
	}
	return r.nextDelay
}

func (r *Runtime) IsCalibrating() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized && !r.iaqValid
}

func (r *Runtime) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

func (r *Runtime) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

func (r *Runtime) Address() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.address
}

// Deinit saves state and closes the sensor. It is a no-op when not open.
func (r *Runtime) Deinit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return nil
	}
	r.saveState(true, nowFn())
	r.initialized = false
	r.nextDelay = DefaultNextCallDelay
	return r.backend.Close()
}
