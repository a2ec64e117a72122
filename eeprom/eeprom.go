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

// Package eeprom reads the badge's board information block: a magic byte,
// format version, hardware revision, board id and manufacture time, closed
// by a CRC.
package eeprom

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/lashy0/nimbus/i2crequest"
)

const (
	Address   = 0x50
	magicByte = 0xCA
	// Magic 1, version 1, hardware 3, id 8, time 4, crc 2.
	dataLength = 1 + 1 + 3 + 8 + 4 + 2
	// The chip can only be read one page at a time.
	pageLength = 16
	txTimeout  = 1000
)

var (
	ErrEmpty   = errors.New("eeprom no data found")
	ErrCRCFail = errors.New("eeprom CRC check failed")
)

type SemVer struct {
	Major byte `json:"major"`
	Minor byte `json:"minor"`
	Patch byte `json:"patch"`
}

func (v SemVer) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (v SemVer) AtLeast(o SemVer) bool {
	if v.Major != o.Major {
		return v.Major > o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor > o.Minor
	}
	return v.Patch >= o.Patch
}

type BoardInfo struct {
	Version  byte      `json:"version"`
	Hardware SemVer    `json:"hardware"`
	ID       uint64    `json:"id"`
	Time     time.Time `json:"time"`
	// Present is false when no chip answered and defaults were used.
	Present bool `json:"present"`
}

// noChipBoard describes the early prototype boards that had no EEPROM.
var noChipBoard = BoardInfo{
	Version:  1,
	Hardware: SemVer{Major: 0, Minor: 1, Patch: 0},
}

// Battery divider ratio by board revision.
var dividerRevisions = []struct {
	from  SemVer
	ratio float64
}{
	{SemVer{1, 0, 0}, 2.0},
	{SemVer{0, 0, 0}, 1.5},
}

// DividerRatio is the battery sense divider fitted to this revision.
func (b BoardInfo) DividerRatio() float64 {
	for _, r := range dividerRevisions {
		if b.Hardware.AtLeast(r.from) {
			return r.ratio
		}
	}
	return dividerRevisions[len(dividerRevisions)-1].ratio
}

// Read returns the board info, or the prototype defaults when no chip is fitted.
func Read() (BoardInfo, error) {
	if err := i2crequest.CheckAddress(Address, txTimeout); err != nil {
		return noChipBoard, nil
	}
	data, err := readChip()
	if err != nil {
		return noChipBoard, err
	}
	info, err := Decode(data)
	if err != nil {
		return noChipBoard, err
	}
	info.Present = true
	return info, nil
}

func readChip() ([]byte, error) {
	data := []byte{}
	for i := 0; i < dataLength; i += pageLength {
		readLen := min(pageLength, dataLength-i)
		page, err := i2crequest.Tx(Address, []byte{byte(i)}, readLen, txTimeout)
		if err != nil {
			return nil, err
		}
		data = append(data, page...)
	}
	if len(data) != dataLength {
		return nil, fmt.Errorf("expected %d bytes, got %d", dataLength, len(data))
	}
	return data, nil
}

func Decode(data []byte) (BoardInfo, error) {
	if len(data) != dataLength {
		return BoardInfo{}, fmt.Errorf("expected %d bytes, got %d", dataLength, len(data))
	}
	if bytes.Count(data, []byte{0xFF}) == len(data) {
		return BoardInfo{}, ErrEmpty
	}
	if data[0] != magicByte {
		return BoardInfo{}, fmt.Errorf("invalid first byte: %#02X, expecting %#02X", data[0], magicByte)
	}
	calculated := i2crequest.CalculateCRC(data[:len(data)-2])
	received := binary.BigEndian.Uint16(data[len(data)-2:])
	if calculated != received {
		return BoardInfo{}, ErrCRCFail
	}

	body := data[1:]
	return BoardInfo{
		Version:  body[0],
		Hardware: SemVer{Major: body[1], Minor: body[2], Patch: body[3]},
		ID:       binary.BigEndian.Uint64(body[4:12]),
		Time:     time.Unix(int64(binary.BigEndian.Uint32(body[12:16])), 0).Truncate(time.Second),
	}, nil
}

func (b BoardInfo) Encode() []byte {
	out := []byte{magicByte, b.Version, b.Hardware.Major, b.Hardware.Minor, b.Hardware.Patch}
	out = binary.BigEndian.AppendUint64(out, b.ID)
	out = binary.BigEndian.AppendUint32(out, uint32(b.Time.Unix()))
	crc := i2crequest.CalculateCRC(out)
	return append(out, byte(crc>>8), byte(crc&0xFF))
}

// Write provisions a board and reads the block back to check it.
func Write(b BoardInfo) error {
	if err := i2crequest.CheckAddress(Address, txTimeout); err != nil {
		return fmt.Errorf("no eeprom chip: %v", err)
	}
	data := b.Encode()
	for i := 0; i < len(data); i += pageLength {
		end := min(i+pageLength, len(data))
		if _, err := i2crequest.Tx(Address, append([]byte{byte(i)}, data[i:end]...), 0, txTimeout); err != nil {
			return err
		}
	}
	readBack, err := readChip()
	if err != nil {
		return err
	}
	if !bytes.Equal(readBack, data) {
		return errors.New("data mismatch")
	}
	return nil
}
