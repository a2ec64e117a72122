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

package store

import (
	"fmt"
	"sync"

	"github.com/lashy0/nimbus/internal/errs"
)

// Memory is an in-process store used when no state file is configured and in tests.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
	// FailWrites makes every Set and Delete fail, to exercise fallback paths.
	FailWrites bool
}

func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

func memKey(namespace, key string) string {
	return namespace + "/" + key
}

func (m *Memory) Get(namespace, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[memKey(namespace, key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return fmt.Errorf("set %s/%s: %w", namespace, key, errs.ErrPersistence)
	}
	m.data[memKey(namespace, key)] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return fmt.Errorf("delete %s/%s: %w", namespace, key, errs.ErrPersistence)
	}
	delete(m.data, memKey(namespace, key))
	return nil
}
