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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lashy0/nimbus/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, 60*time.Second, c.Power.IdleTimeout)
	assert.Equal(t, 8, c.Buttons.QueueLength)
	assert.Equal(t, "baseline", c.Sensor.ValidityPolicy)
}

func TestLoadMissingDirectory(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadOverridesSection(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[power]
idle-timeout = "2m"
ulp-while-monitoring = false

[sensor]
validity-policy = "accuracy"
auto-recalibrate = true
recalibrate-interval = "6h"
`)
	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, c.Power.IdleTimeout)
	assert.False(t, c.Power.ULPWhileMonitoring)
	assert.Equal(t, 500*time.Millisecond, c.Power.ShutdownSettle)
	assert.Equal(t, "accuracy", c.Sensor.ValidityPolicy)
	assert.True(t, c.Sensor.AutoRecalibrate)
	assert.Equal(t, 6*time.Hour, c.Sensor.RecalibrateInterval)
	assert.Equal(t, 3, c.Sensor.BaselineMinSamples)
	assert.Equal(t, DefaultButtons(), c.Buttons)
}

func TestLoadRejectsBadPolicy(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[sensor]
validity-policy = "sometimes"
`)
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestChanged(t *testing.T) {
	dir := t.TempDir()
	log := logging.Discard()
	writeConfig(t, dir, "[battery]\nlow-percent = 15\n")
	c, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, changed(c, dir, log))

	writeConfig(t, dir, "[battery]\nlow-percent = 20\n")
	assert.True(t, changed(c, dir, log))

	writeConfig(t, dir, "[battery\n")
	assert.False(t, changed(c, dir, log))
}
