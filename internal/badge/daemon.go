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
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/lashy0/nimbus/eeprom"
	"github.com/lashy0/nimbus/internal/airsensor"
	"github.com/lashy0/nimbus/internal/app"
	"github.com/lashy0/nimbus/internal/buttons"
	"github.com/lashy0/nimbus/internal/config"
	"github.com/lashy0/nimbus/internal/hw"
	"github.com/lashy0/nimbus/internal/power"
	"github.com/lashy0/nimbus/internal/store"
	"github.com/lashy0/nimbus/internal/telemetry"
	"github.com/lashy0/nimbus/internal/timedlock"
	"github.com/lashy0/nimbus/internal/ui"
	"periph.io/x/conn/v3/gpio"
)

const (
	startupLockTimeout    = 300 * time.Millisecond
	startupLockRetries    = 5
	startupLockRetryDelay = 30 * time.Millisecond
	degradedLockTimeout   = 100 * time.Millisecond
	shutdownLockTimeout   = 100 * time.Millisecond
)

var sleepFn = time.Sleep

type buttonSource interface {
	Run(ctx context.Context) error
	Close() error
}

// daemon holds everything built during startup.
type daemon struct {
	conf *config.Config

	display *timedlock.Mutex
	screens *ui.Screens
	store   store.Store
	board   eeprom.BoardInfo

	power      *power.Manager
	brightness *power.Brightness
	battery    *power.BatteryMonitor
	sensor     *airsensor.Runtime
	controller *app.Controller
	queue      *buttons.Queue
	source     buttonSource
	shared     *Shared
	events     *Events
	reporter   *Reporter
	publisher  telemetry.Publisher

	coldBoot bool
}

func runDaemon(configDir string) error {
	conf, err := config.Load(configDir)
	if err != nil {
		return err
	}
	go func() {
		if err := config.WatchChanges(conf, configDir, log); err != nil {
			log.Error("Failed to watch config: ", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := &daemon{
		conf:    conf,
		display: timedlock.New(),
		shared:  NewShared(),
		events:  NewEvents(conf.Events.Enable, log),
	}
	log.Info("Init UI...")
	d.screens = ui.NewScreens(newRenderer(conf.Display.Renderer), log)

	if !d.setup() || !finishStartup(d.display, d.screens, d.showCalibration()) {
		degraded(d.display, d.screens)
		<-ctx.Done()
		return nil
	}
	log.Info("System started")
	d.run(ctx)
	d.close()
	return nil
}

func newRenderer(kind string) ui.Renderer {
	if kind == "dbus" {
		r, err := ui.NewDBusRenderer()
		if err == nil {
			return r
		}
		log.Warn("Failed to connect to display service, logging screens instead: ", err)
	}
	return &ui.LogRenderer{Log: log}
}

// setup brings up the hardware. It returns false when the badge cannot run.
func (d *daemon) setup() bool {
	conf := d.conf
	log.Info("Init hardware...")
	if err := hw.Init(); err != nil {
		log.Error("Failed to init hardware: ", err)
		return false
	}

	d.store = openStore(conf.Store.Path)

	board, err := eeprom.Read()
	if err != nil {
		log.Warn("Failed to read board info: ", err)
	}
	d.board = board
	log.Infof("Board hardware %s", board.Hardware)

	log.Info("Init backlight...")
	backlight, err := hw.NewBacklight(conf.Display.BacklightPin, conf.Display.BacklightFrequency)
	if err != nil {
		log.Error("Failed to init backlight: ", err)
		return false
	}
	panel, err := hw.NewPanel(conf.Display.PanelEnablePin)
	if err != nil {
		log.Error("Failed to init panel: ", err)
		return false
	}
	d.brightness = power.NewBrightness(backlight, d.store, log)
	d.brightness.Apply()

	d.battery = d.newBatteryMonitor(board)
	d.sensor = d.newSensor()
	d.publisher = newPublisher(conf.Telemetry)
	if d.publisher != nil {
		d.reporter = NewReporter(d.publisher, d.shared, conf.Telemetry.Interval, log)
	}

	log.Info("Init power management...")
	var releaseSensor func() error
	if d.sensor != nil {
		releaseSensor = d.sensor.Deinit
	}
	d.power = power.New(power.Config{ShutdownSettle: conf.Power.ShutdownSettle}, power.Deps{
		Backlight:          backlight,
		Panel:              panel,
		Wake:               hw.NewWakeController(conf.Power.WakeControllerAddr, conf.Power.RTCAlarmWakeEnabled, conf.Power.PoweroffCommand, log),
		Log:                log,
		ShowShutdownScreen: d.showShutdownScreen,
		ReleaseSensor:      releaseSensor,
		OnStateChange:      d.stateChanged,
	}, d.brightness)
	d.coldBoot = d.power.CheckWakeupReason() == power.WakeUndefined

	if d.sensor != nil {
		log.Info("Init BME680...")
		if err := d.sensor.Init(d.coldBoot); err != nil {
			log.Error("BME680 init failed: ", err)
		} else {
			log.Infof("BME680 initialized at I2C address 0x%02X", d.sensor.Address())
		}
	}

	log.Info("Init app...")
	d.controller = app.New(d.power, d.brightness, d.screens, d.display, conf.Power.IdleTimeout, log)

	log.Info("Init buttons...")
	d.queue = buttons.NewQueue(conf.Buttons.QueueLength, log)
	source, err := newButtonSource(conf.Buttons, d.queue)
	if err != nil {
		log.Error("Buttons init failed: ", err)
		return false
	}
	d.source = source

	err = startService(&service{
		power:        d.power,
		brightness:   d.brightness,
		activity:     d.controller,
		recalibrator: d.recalibratorOrNil(),
		shared:       d.shared,
		board:        d.board.Hardware.String(),
	})
	if err != nil {
		log.Warn("Failed to start dbus service: ", err)
	}
	return true
}

func openStore(path string) store.Store {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err == nil {
		b, err := store.OpenBolt(path)
		if err == nil {
			return b
		}
		log.Warn("Failed to open state store, settings will not persist: ", err)
	} else {
		log.Warn("Failed to create state directory, settings will not persist: ", err)
	}
	return store.NewMemory()
}

func (d *daemon) newBatteryMonitor(board eeprom.BoardInfo) *power.BatteryMonitor {
	ratio := d.conf.Battery.DividerRatio
	if ratio <= 0 {
		ratio = board.DividerRatio()
	}
	var adc power.BatteryADC
	a, err := hw.NewBatteryADC(d.conf.Power.WakeControllerAddr, d.conf.Battery.ADCEnablePin, log)
	if err != nil {
		log.Warn("Failed to init battery ADC: ", err)
	} else {
		adc = a
	}
	return power.NewBatteryMonitor(adc, ratio)
}

func (d *daemon) newSensor() *airsensor.Runtime {
	sc := d.conf.Sensor
	if sc.Backend == "none" {
		log.Info("Air sensor disabled")
		return nil
	}
	backend, err := airsensor.NewDBusBackend()
	if err != nil {
		log.Error("Failed to connect to sensor service: ", err)
		return nil
	}
	return airsensor.New(backend, d.store, airsensor.Config{
		ValidityPolicy:         sc.ValidityPolicy,
		BaselineMinSamples:     sc.BaselineMinSamples,
		AutoRecalibrate:        sc.AutoRecalibrate,
		RecalibrateInterval:    sc.RecalibrateInterval,
		ResetBaselineOnPowerOn: sc.ResetBaselineOnPowerOn,
		HeaterTemperature:      sc.HeaterTemperature,
		HeaterDuration:         sc.HeaterDuration,
		TemperatureOffset:      sc.TemperatureOffset,
	}, log)
}

func newPublisher(tc config.Telemetry) telemetry.Publisher {
	if tc.Broker == "" {
		return nil
	}
	p, err := telemetry.NewMQTTPublisher(tc.Broker, tc.ClientID, tc.Topic)
	if err != nil {
		log.Warn("Failed to connect to MQTT broker, telemetry disabled: ", err)
		return nil
	}
	log.Infof("Publishing telemetry to %s every %s", tc.Broker, tc.Interval)
	return p
}

func newButtonSource(bc config.Buttons, queue *buttons.Queue) (buttonSource, error) {
	cfg := buttons.Config{
		ShortPress:  bc.ShortPress,
		LongPress:   bc.LongPress,
		Debounce:    bc.Debounce,
		ActiveLevel: bc.ActiveLevel,
	}
	if bc.Backend == "cdev" {
		return buttons.NewCdevSource(cfg, bc.Chip, []buttons.LineConfig{
			{ID: buttons.Prev, Offset: bc.PrevLine, PullUp: true},
			{ID: buttons.Next, Offset: bc.NextLine, PullUp: true},
		}, queue, log)
	}
	return buttons.NewPeriphSource(cfg, []buttons.PinConfig{
		{ID: buttons.Prev, Name: bc.PrevPin, Pull: gpio.PullUp},
		{ID: buttons.Next, Name: bc.NextPin, Pull: gpio.PullUp},
	}, queue, log)
}

func (d *daemon) showCalibration() bool {
	return d.coldBoot && d.sensor != nil && d.sensor.Initialized()
}

func (d *daemon) showShutdownScreen() {
	ok := d.display.With(shutdownLockTimeout, func() {
		d.screens.ShowSpecial(ui.ScreenNoCharging)
	})
	if !ok {
		log.Warn("Display busy, powering off without shutdown screen")
	}
}

func (d *daemon) stateChanged(s power.State) {
	d.events.StateChanged(s)
	if d.reporter != nil {
		d.reporter.StateChanged(s)
	}
}

// finishStartup leaves the START screen, retrying while the display is busy.
// A fresh baseline puts the calibration screen up.
func finishStartup(display *timedlock.Mutex, screens *ui.Screens, showCalibration bool) bool {
	for attempt := 1; attempt <= startupLockRetries; attempt++ {
		ok := display.With(startupLockTimeout, func() {
			screens.FinishStartup(false)
			if showCalibration {
				screens.ShowSpecial(ui.ScreenCalibration)
			}
		})
		if ok {
			return true
		}
		log.Warnf("Display lock timeout during startup finalization (attempt %d/%d)", attempt, startupLockRetries)
		sleepFn(startupLockRetryDelay)
	}
	log.Error("Failed to lock display for startup finalization")
	return false
}

// degraded shows the safe screen with the error indicator.
func degraded(display *timedlock.Mutex, screens *ui.Screens) {
	log.Error("Startup degraded: stopping further initialization and runtime")
	ok := display.With(degradedLockTimeout, func() {
		screens.FinishStartup(true)
	})
	if !ok {
		log.Error("Failed to lock display to show degraded startup screen")
	}
}

func (d *daemon) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	worker := NewWorker(WorkerConfig{
		BatteryInterval:    d.conf.Battery.Interval,
		ULPWhileMonitoring: d.conf.Power.ULPWhileMonitoring,
		LowBatteryPercent:  d.conf.Battery.LowPercent,
	}, WorkerDeps{
		Queue:   d.queue,
		Input:   d.controller,
		Power:   d.power,
		Battery: d.battery,
		Sensor:  d.sensorOrNil(),
		Shared:  d.shared,
		Events:  d.events,
		Log:     log,
	})
	uiTick := NewUI(d.screens, d.display, d.shared, log)

	runners := []func(context.Context) error{d.source.Run, worker.Run, uiTick.Run}
	if d.reporter != nil {
		runners = append(runners, d.reporter.Run)
	}

	var wg sync.WaitGroup
	for _, run := range runners {
		wg.Add(1)
		go func(run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil && ctx.Err() == nil {
				log.Error("Badge task stopped: ", err)
				cancel()
			}
		}(run)
	}
	<-ctx.Done()
	log.Info("Stopping")
	wg.Wait()
}

// sensorOrNil keeps a nil runtime from becoming a non-nil interface.
func (d *daemon) sensorOrNil() Sensor {
	if d.sensor == nil {
		return nil
	}
	return d.sensor
}

func (d *daemon) recalibratorOrNil() Recalibrator {
	if d.sensor == nil {
		return nil
	}
	return d.sensor
}

func (d *daemon) close() {
	if d.sensor != nil {
		if err := d.sensor.Deinit(); err != nil {
			log.Warn("Failed to release sensor: ", err)
		}
	}
	if d.source != nil {
		d.source.Close()
	}
	if d.publisher != nil {
		d.publisher.Close()
	}
	if c, ok := d.store.(interface{ Close() error }); ok {
		c.Close()
	}
}
