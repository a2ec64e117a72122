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

package i2crequest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateCRC(t *testing.T) {
	// CRC-16/AUG-CCITT check value.
	assert.Equal(t, uint16(0xE5CC), CalculateCRC([]byte("123456789")))
	assert.Equal(t, uint16(0x1D0F), CalculateCRC(nil))
}

func TestReadRegister16(t *testing.T) {
	defer StopMock()
	MockTxResponses([]TxResponse{{Response: WithCRC([]byte{0x08, 0xF8})}})

	v, err := ReadRegister16(0x25, 0x10, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x08F8), v)

	reqs := MockedRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, byte(0x25), reqs[0].Address)
	assert.Equal(t, WithCRC([]byte{0x10}), reqs[0].Write)
	assert.Equal(t, 4, reqs[0].ReadLen)
}

func TestTxWithCRCMismatch(t *testing.T) {
	defer StopMock()
	MockTxResponses([]TxResponse{{Response: []byte{0x01, 0x02, 0x00, 0x00}}})
	_, err := TxWithCRC(0x25, []byte{0x10}, 2, 1000)
	assert.ErrorContains(t, err, "CRC mismatch")
}

func TestMockErrorsAndExhaustion(t *testing.T) {
	defer StopMock()
	MockTxResponses([]TxResponse{{Err: errors.New("nak")}})
	assert.EqualError(t, CheckAddress(0x50, 1000), "nak")
	assert.Error(t, CheckAddress(0x50, 1000))
}

func TestWriteRegister(t *testing.T) {
	defer StopMock()
	MockTxResponses([]TxResponse{{Response: []byte{}}})
	require.NoError(t, WriteRegister(0x25, 0x20, 0x01, 1000))
	assert.Equal(t, WithCRC([]byte{0x20, 0x01}), MockedRequests()[0].Write)
}
