// SPDX-License-Identifier: AGPL-3.0-or-later
// dabmux - A software DAB ensemble multiplexer
// Copyright (C) 2026 The dabmux Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package crc16_test

import (
	"testing"

	"github.com/digitalradio/dabmux/internal/crc16"
	"github.com/stretchr/testify/assert"
)

func TestChecksumKnownVector(t *testing.T) {
	t.Parallel()
	// "123456789" is the standard CRC catalogue check string; CRC-16/
	// CCITT-FALSE yields 0x29B1 for it, and Checksum's final inversion
	// turns that into 0xD64E.
	got := crc16.Checksum([]byte("123456789"))
	assert.Equal(t, uint16(0xD64E), got)
}

func TestChecksumEmpty(t *testing.T) {
	t.Parallel()
	got := crc16.Checksum(nil)
	assert.Equal(t, uint16(0xFFFF)^0xFFFF, got)
}

func TestUpdateMatchesChecksum(t *testing.T) {
	t.Parallel()
	data := []byte("the quick brown fox jumps over the lazy dog")
	whole := crc16.Checksum(data)

	partial := uint16(crc16.InitialValue)
	partial = crc16.Update(partial, data[:10])
	partial = crc16.Update(partial, data[10:])
	partial ^= 0xFFFF

	assert.Equal(t, whole, partial)
}

func TestAppendAddsTwoBigEndianBytes(t *testing.T) {
	t.Parallel()
	data := []byte{0x01, 0x02, 0x03}
	out := crc16.Append(nil, data)
	assert.Len(t, out, 2)
	sum := crc16.Checksum(data)
	assert.Equal(t, byte(sum>>8), out[0])
	assert.Equal(t, byte(sum), out[1])
}
