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
	"errors"
	"fmt"

	"github.com/sigurn/crc8"

	"github.com/lashy0/nimbus/internal/errs"
	"github.com/lashy0/nimbus/internal/store"
)

const (
	stateNamespace = "bme680"
	stateKey       = "bsec_state"
	stateLenKey    = "bsec_len"

	// Largest state blob the fusion library produces.
	maxStateSize = 221
)

var (
	errStateSize = errors.New("bad state size")
	errStateCRC  = errors.New("state crc mismatch")
)

var stateCRCTable = crc8.MakeTable(crc8.Params{
	Poly:   0x31,
	Init:   0xFF,
	RefIn:  false,
	RefOut: false,
	XorOut: 0x00,
})

// stateStore keeps the library state blob in the store. The blob is written
// with a trailing CRC8 and its length is stored separately so a torn write is
// caught on load.
type stateStore struct {
	s store.Store
}

func (ss stateStore) load() ([]byte, error) {
	n, err := store.GetUint32(ss.s, stateNamespace, stateLenKey)
	if err != nil {
		return nil, err
	}
	if n == 0 || n > maxStateSize {
		return nil, fmt.Errorf("%w: %d: %w", errStateSize, n, errs.ErrPersistence)
	}
	framed, err := ss.s.Get(stateNamespace, stateKey)
	if err != nil {
		return nil, err
	}
	if len(framed) != int(n)+1 {
		return nil, fmt.Errorf("%w: have %d want %d: %w", errStateSize, len(framed)-1, n, errs.ErrPersistence)
	}
	blob, sum := framed[:n], framed[n]
	if crc8.Checksum(blob, stateCRCTable) != sum {
		return nil, fmt.Errorf("%w: %w", errStateCRC, errs.ErrPersistence)
	}
	return blob, nil
}

func (ss stateStore) save(blob []byte) error {
	if len(blob) == 0 || len(blob) > maxStateSize {
		return fmt.Errorf("%w: %d: %w", errStateSize, len(blob), errs.ErrInvalidArgument)
	}
	framed := make([]byte, len(blob)+1)
	copy(framed, blob)
	framed[len(blob)] = crc8.Checksum(blob, stateCRCTable)
	if err := ss.s.Set(stateNamespace, stateKey, framed); err != nil {
		return err
	}
	return store.SetUint32(ss.s, stateNamespace, stateLenKey, uint32(len(blob)))
}

func (ss stateStore) clear() error {
	if err := ss.s.Delete(stateNamespace, stateKey); err != nil {
		return err
	}
	return ss.s.Delete(stateNamespace, stateLenKey)
}
