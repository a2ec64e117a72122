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

	"github.com/google/go-cmp/cmp"
	"github.com/lashy0/nimbus/internal/logging"
	"github.com/rjeczalik/notify"
)

var exitFn = os.Exit

// WatchChanges compares the config from when first loaded to a new config each
// time the config file is modified. If there is a difference the program exits
// and systemd restarts the service with the new config.
func WatchChanges(conf *Config, configDir string, log *logging.Logger) error {
	configFilePath := filepath.Join(configDir, ConfigFileName)
	fsEvents := make(chan notify.EventInfo, 1)
	if err := notify.Watch(configFilePath, fsEvents, notify.InCloseWrite, notify.InMovedTo); err != nil {
		return err
	}
	defer notify.Stop(fsEvents)

	for range fsEvents {
		if changed(conf, configDir, log) {
			log.Info("Config changed. Exiting to allow systemctl to restart service.")
			exitFn(0)
			return nil
		}
	}
	return nil
}

func changed(conf *Config, configDir string, log *logging.Logger) bool {
	newConfig, err := Load(configDir)
	if err != nil {
		log.Error("error reloading config: ", err)
		return false
	}
	diff := cmp.Diff(conf, newConfig)
	log.Debug("Config diff: ", diff)
	if diff == "" {
		log.Info("No relevant changes detected in config file.")
		return false
	}
	return true
}
