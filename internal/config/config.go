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

// Package config loads the badge configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	goconfig "github.com/TheCacophonyProject/go-config"
)

const (
	DefaultConfigDir = "/etc/nimbus"
	ConfigFileName   = "config.toml"
)

type ConfigArgs struct {
	ConfigDir string `arg:"-c,--config" help:"path to configuration directory" default:"/etc/nimbus"`
}

type Config struct {
	Power     Power
	Display   Display
	Buttons   Buttons
	Battery   Battery
	Sensor    Sensor
	Store     Store
	Telemetry Telemetry
	Events    Events
}

type Power struct {
	IdleTimeout         time.Duration `mapstructure:"idle-timeout"`
	ShutdownSettle      time.Duration `mapstructure:"shutdown-settle"`
	ULPWhileMonitoring  bool          `mapstructure:"ulp-while-monitoring"`
	PoweroffCommand     string        `mapstructure:"poweroff-command"`
	WakeControllerAddr  uint8         `mapstructure:"wake-controller-address"`
	RTCAlarmWakeEnabled bool          `mapstructure:"rtc-alarm-wake"`
}

type Display struct {
	Renderer           string `mapstructure:"renderer"`
	BacklightPin       string `mapstructure:"backlight-pin"`
	BacklightFrequency int    `mapstructure:"backlight-frequency"`
	PanelEnablePin     string `mapstructure:"panel-enable-pin"`
}

type Buttons struct {
	Backend     string        `mapstructure:"backend"`
	Chip        string        `mapstructure:"chip"`
	PrevPin     string        `mapstructure:"prev-pin"`
	NextPin     string        `mapstructure:"next-pin"`
	PrevLine    int           `mapstructure:"prev-line"`
	NextLine    int           `mapstructure:"next-line"`
	ActiveLevel string        `mapstructure:"active-level"`
	LongPress   time.Duration `mapstructure:"long-press"`
	ShortPress  time.Duration `mapstructure:"short-press"`
	Debounce    time.Duration `mapstructure:"debounce"`
	QueueLength int           `mapstructure:"queue-length"`
}

type Battery struct {
	Interval     time.Duration `mapstructure:"interval"`
	DividerRatio float64       `mapstructure:"divider-ratio"`
	ADCEnablePin string        `mapstructure:"adc-enable-pin"`
	LowPercent   int           `mapstructure:"low-percent"`
}

type Sensor struct {
	Backend                string        `mapstructure:"backend"`
	ValidityPolicy         string        `mapstructure:"validity-policy"`
	BaselineMinSamples     int           `mapstructure:"baseline-min-samples"`
	AutoRecalibrate        bool          `mapstructure:"auto-recalibrate"`
	RecalibrateInterval    time.Duration `mapstructure:"recalibrate-interval"`
	ResetBaselineOnPowerOn bool          `mapstructure:"reset-baseline-on-power-on"`
	HeaterTemperature      int           `mapstructure:"heater-temperature"`
	HeaterDuration         time.Duration `mapstructure:"heater-duration"`
	TemperatureOffset      float64       `mapstructure:"temperature-offset"`
}

type Store struct {
	Path string `mapstructure:"path"`
}

type Telemetry struct {
	Broker   string        `mapstructure:"broker"`
	ClientID string        `mapstructure:"client-id"`
	Topic    string        `mapstructure:"topic"`
	Interval time.Duration `mapstructure:"interval"`
}

type Events struct {
	Enable bool `mapstructure:"enable"`
}

func DefaultPower() Power {
	return Power{
		IdleTimeout:         60 * time.Second,
		ShutdownSettle:      500 * time.Millisecond,
		ULPWhileMonitoring:  true,
		PoweroffCommand:     "/sbin/poweroff",
		WakeControllerAddr:  0x25,
		RTCAlarmWakeEnabled: false,
	}
}

func DefaultDisplay() Display {
	return Display{
		Renderer:           "log",
		BacklightPin:       "GPIO18",
		BacklightFrequency: 5000,
		PanelEnablePin:     "GPIO25",
	}
}

func DefaultButtons() Buttons {
	return Buttons{
		Backend:     "periph",
		Chip:        "gpiochip0",
		PrevPin:     "GPIO5",
		NextPin:     "GPIO6",
		PrevLine:    5,
		NextLine:    6,
		ActiveLevel: "auto",
		LongPress:   1500 * time.Millisecond,
		ShortPress:  50 * time.Millisecond,
		Debounce:    20 * time.Millisecond,
		QueueLength: 8,
	}
}

func DefaultBattery() Battery {
	return Battery{
		Interval:     2 * time.Second,
		DividerRatio: 0,
		ADCEnablePin: "GPIO14",
		LowPercent:   10,
	}
}

func DefaultSensor() Sensor {
	return Sensor{
		Backend:                "dbus",
		ValidityPolicy:         "baseline",
		BaselineMinSamples:     3,
		AutoRecalibrate:        false,
		RecalibrateInterval:    12 * time.Hour,
		ResetBaselineOnPowerOn: true,
		HeaterTemperature:      300,
		HeaterDuration:         100 * time.Millisecond,
		TemperatureOffset:      0,
	}
}

func DefaultStore() Store {
	return Store{Path: "/var/lib/nimbus/state.db"}
}

func DefaultTelemetry() Telemetry {
	return Telemetry{
		ClientID: "nimbus",
		Topic:    "nimbus/badge",
		Interval: 30 * time.Second,
	}
}

func DefaultEvents() Events {
	return Events{Enable: true}
}

func Default() *Config {
	return &Config{
		Power:     DefaultPower(),
		Display:   DefaultDisplay(),
		Buttons:   DefaultButtons(),
		Battery:   DefaultBattery(),
		Sensor:    DefaultSensor(),
		Store:     DefaultStore(),
		Telemetry: DefaultTelemetry(),
		Events:    DefaultEvents(),
	}
}

// Load reads config.toml from configDir. A missing file gives the defaults.
func Load(configDir string) (*Config, error) {
	c := Default()
	if _, err := os.Stat(filepath.Join(configDir, ConfigFileName)); errors.Is(err, fs.ErrNotExist) {
		return c, c.Validate()
	}
	conf, err := goconfig.New(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %v", err)
	}

	sections := map[string]interface{}{
		"power":     &c.Power,
		"display":   &c.Display,
		"buttons":   &c.Buttons,
		"battery":   &c.Battery,
		"sensor":    &c.Sensor,
		"store":     &c.Store,
		"telemetry": &c.Telemetry,
		"events":    &c.Events,
	}
	for key, section := range sections {
		if err := conf.Unmarshal(key, section); err != nil {
			return nil, fmt.Errorf("failed to parse '%s' section: %v", key, err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Power.IdleTimeout <= 0 {
		return fmt.Errorf("power.idle-timeout must be positive")
	}
	if c.Buttons.LongPress <= c.Buttons.ShortPress {
		return fmt.Errorf("buttons.long-press must be longer than buttons.short-press")
	}
	if c.Buttons.QueueLength < 1 {
		return fmt.Errorf("buttons.queue-length must be at least 1")
	}
	switch c.Sensor.ValidityPolicy {
	case "baseline", "accuracy":
	default:
		return fmt.Errorf("unknown sensor.validity-policy '%s'", c.Sensor.ValidityPolicy)
	}
	if c.Battery.Interval <= 0 {
		return fmt.Errorf("battery.interval must be positive")
	}
	return nil
}
