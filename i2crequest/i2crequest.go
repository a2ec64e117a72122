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

// Package i2crequest performs I2C transactions through the system I2C bus
// service, so several processes can share the bus.
package i2crequest

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus"
)

const (
	dbusName = "org.cacophony.i2c"
	dbusPath = "/org/cacophony/i2c"
)

type TxResponse struct {
	Response []byte
	Err      error
}

// TxRequest is a transaction seen by the mock.
type TxRequest struct {
	Address byte
	Write   []byte
	ReadLen int
}

var (
	mockMu        sync.Mutex
	mockResponses []TxResponse
	mockRequests  []TxRequest
	mocked        bool
)

// MockTxResponses replaces the bus with a script of responses, returned in
// order. Once the script runs out every transaction fails.
func MockTxResponses(responses []TxResponse) {
	mockMu.Lock()
	defer mockMu.Unlock()
	mockResponses = append([]TxResponse(nil), responses...)
	mockRequests = nil
	mocked = true
}

// MockedRequests returns the transactions made since MockTxResponses.
func MockedRequests() []TxRequest {
	mockMu.Lock()
	defer mockMu.Unlock()
	return append([]TxRequest(nil), mockRequests...)
}

func StopMock() {
	mockMu.Lock()
	defer mockMu.Unlock()
	mocked = false
	mockResponses = nil
	mockRequests = nil
}

// mockTx returns nil when the bus is not mocked.
func mockTx(address byte, write []byte, readLen int) *TxResponse {
	mockMu.Lock()
	defer mockMu.Unlock()
	if !mocked {
		return nil
	}
	mockRequests = append(mockRequests, TxRequest{Address: address, Write: append([]byte(nil), write...), ReadLen: readLen})
	if len(mockResponses) == 0 {
		return &TxResponse{Err: fmt.Errorf("no mocked response for address 0x%02X", address)}
	}
	r := mockResponses[0]
	mockResponses = mockResponses[1:]
	return &r
}

// Tx writes then reads readLen bytes. timeout is in milliseconds.
func Tx(address byte, write []byte, readLen, timeout int) ([]byte, error) {
	if r := mockTx(address, write, readLen); r != nil {
		return r.Response, r.Err
	}
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	obj := conn.Object(dbusName, dbusPath)

	var response []byte
	if err := obj.Call(dbusName+".Tx", 0, address, write, readLen, timeout).Store(&response); err != nil {
		return nil, err
	}
	return response, nil
}

func CheckAddress(address byte, timeout int) error {
	_, err := Tx(address, []byte{0x00}, 1, timeout)
	return err
}

// TxWithCRC appends a CRC to the write and checks the CRC on the response.
func TxWithCRC(address byte, write []byte, readLen, timeout int) ([]byte, error) {
	crc := CalculateCRC(write)
	writeWithCRC := append(append([]byte(nil), write...), byte(crc>>8), byte(crc&0xFF))

	if readLen != 0 {
		readLen += 2
	}
	response, err := Tx(address, writeWithCRC, readLen, timeout)
	if err != nil {
		return nil, err
	}
	if readLen == 0 {
		return []byte{}, nil
	}
	if len(response) < 2 {
		return nil, fmt.Errorf("short response: %d bytes", len(response))
	}
	data := response[:len(response)-2]
	received := uint16(response[len(response)-2])<<8 | uint16(response[len(response)-1])
	if calculated := CalculateCRC(data); calculated != received {
		return nil, fmt.Errorf("CRC mismatch: received 0x%X, calculated 0x%X", received, calculated)
	}
	return data, nil
}

// ReadRegister16 reads a big-endian 16 bit register behind a CRC-checked transaction.
func ReadRegister16(address, register byte, timeout int) (uint16, error) {
	b, err := TxWithCRC(address, []byte{register}, 2, timeout)
	if err != nil {
		return 0, err
	}
	if len(b) != 2 {
		return 0, fmt.Errorf("register 0x%02X: expected 2 bytes, got %d", register, len(b))
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func WriteRegister(address, register, value byte, timeout int) error {
	_, err := TxWithCRC(address, []byte{register, value}, 0, timeout)
	return err
}

// CalculateCRC is CRC-16/AUG-CCITT (poly 0x1021, init 0x1D0F).
func CalculateCRC(data []byte) uint16 {
	var crc uint16 = 0x1D0F
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// WithCRC returns data followed by its CRC, as a device would answer.
func WithCRC(data []byte) []byte {
	crc := CalculateCRC(data)
	return append(append([]byte(nil), data...), byte(crc>>8), byte(crc&0xFF))
}
