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
	"errors"
	"path/filepath"
	"testing"

	"github.com/lashy0/nimbus/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	_, err := GetUint8(s, "app_settings", "brightness_pct")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, SetUint8(s, "app_settings", "brightness_pct", 75))
	v, err := GetUint8(s, "app_settings", "brightness_pct")
	require.NoError(t, err)
	assert.Equal(t, uint8(75), v)

	require.NoError(t, SetUint32(s, "bme680", "bsec_len", 139))
	l, err := GetUint32(s, "bme680", "bsec_len")
	require.NoError(t, err)
	assert.Equal(t, uint32(139), l)

	// Same key in another namespace is independent.
	_, err = s.Get("bme680", "brightness_pct")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = GetUint8(s, "bme680", "bsec_len")
	assert.ErrorIs(t, err, errs.ErrPersistence)

	blob := []byte{1, 2, 3, 4, 5}
	require.NoError(t, s.Set("bme680", "bsec_state", blob))
	blob[0] = 9
	got, err := s.Get("bme680", "bsec_state")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got)

	require.NoError(t, s.Delete("bme680", "bsec_state"))
	_, err = s.Get("bme680", "bsec_state")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete("missing", "key"))
}

func TestMemory(t *testing.T) {
	testStore(t, NewMemory())
}

func TestMemoryFailWrites(t *testing.T) {
	m := NewMemory()
	m.FailWrites = true
	err := SetUint8(m, "app_settings", "brightness_pct", 50)
	assert.True(t, errors.Is(err, errs.ErrPersistence))
}

func TestBolt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "nimbus.db")
	b, err := OpenBolt(path)
	require.NoError(t, err)
	testStore(t, b)

	require.NoError(t, SetUint8(b, "app_settings", "brightness_pct", 40))
	require.NoError(t, b.Close())

	b, err = OpenBolt(path)
	require.NoError(t, err)
	defer b.Close()
	v, err := GetUint8(b, "app_settings", "brightness_pct")
	require.NoError(t, err)
	assert.Equal(t, uint8(40), v)
}
