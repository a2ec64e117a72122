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

// Package store is a namespaced key/value store for settings and sensor
// calibration state that survive power cycles.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lashy0/nimbus/internal/errs"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	Get(namespace, key string) ([]byte, error)
	Set(namespace, key string, value []byte) error
	Delete(namespace, key string) error
}

func GetUint8(s Store, namespace, key string) (uint8, error) {
	b, err := s.Get(namespace, key)
	if err != nil {
		return 0, err
	}
	if len(b) != 1 {
		return 0, fmt.Errorf("%s/%s: expected 1 byte, got %d: %w", namespace, key, len(b), errs.ErrPersistence)
	}
	return b[0], nil
}

func SetUint8(s Store, namespace, key string, v uint8) error {
	return s.Set(namespace, key, []byte{v})
}

func GetUint32(s Store, namespace, key string) (uint32, error) {
	b, err := s.Get(namespace, key)
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, fmt.Errorf("%s/%s: expected 4 bytes, got %d: %w", namespace, key, len(b), errs.ErrPersistence)
	}
	return binary.BigEndian.Uint32(b), nil
}

func SetUint32(s Store, namespace, key string, v uint32) error {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return s.Set(namespace, key, b)
}
