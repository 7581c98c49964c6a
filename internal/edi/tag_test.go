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

package edi_test

import (
	"testing"

	"github.com/digitalradio/dabmux/internal/edi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAFPacketStartsWithAFSync(t *testing.T) {
	t.Parallel()
	af := edi.BuildAFPacket([]byte{0x01, 0x02, 0x03}, 1)
	assert.Equal(t, byte('A'), af[0])
	assert.Equal(t, byte('F'), af[1])
}

func TestBuildFrameAlignsToEightBytes(t *testing.T) {
	t.Parallel()
	a := edi.NewAssembler()
	d := edi.DetiFields{
		FICF:  true,
		ATSTF: true,
		MID:   1,
		FIC:   make([]byte, 96),
	}
	subs := []edi.SubChannelPayload{
		{SCId: 1, SAD: 0, TPL: 0x22, MST: make([]byte, 10)},
	}
	frame := a.BuildFrame(d, subs, [2]int16{})
	assert.Zero(t, len(frame)%edi.DefaultAlignment, "frame length %d must be a multiple of %d", len(frame), edi.DefaultAlignment)
}

func TestBuildFrameAlreadyAlignedAddsNoPadding(t *testing.T) {
	t.Parallel()
	a := edi.NewAssembler()
	d := edi.DetiFields{MID: 1}
	frame := a.BuildFrame(d, nil, [2]int16{})
	// one *ptr item (8+2) + one deti item (8+14) = 32 bytes, already
	// 8-byte aligned, so no *dmy item should be appended.
	assert.Equal(t, 32, len(frame))
}

func TestBuildFrameEncodesSubChannelOrderAndFields(t *testing.T) {
	t.Parallel()
	a := edi.NewAssembler()
	d := edi.DetiFields{MID: 2, UTCOffset: 5, Seconds: 0x01020304}
	subs := []edi.SubChannelPayload{
		{SCId: 3, SAD: 0x00AB, TPL: 0x22, MST: []byte{0xDE, 0xAD}},
	}
	frame := a.BuildFrame(d, subs, [2]int16{})

	// *ptr item: name(4) + len(4) + value(2) = 10 bytes.
	deti := frame[10:]
	assert.Equal(t, []byte("deti"), deti[0:4])
	payload := deti[8:]
	assert.Equal(t, byte(5), payload[6], "UTCOffset byte")
	assert.Equal(t, byte(0x01), payload[7])
	assert.Equal(t, byte(0x04), payload[10])

	estStart := 10 + 8 + 14
	est := frame[estStart:]
	assert.Equal(t, []byte("est1"), est[0:4])
	estPayload := est[8:]
	assert.Equal(t, byte(3), estPayload[0])
	assert.Equal(t, byte(0x00), estPayload[1])
	assert.Equal(t, byte(0xAB), estPayload[2])
	assert.Equal(t, byte(0x22), estPayload[3])
	assert.Equal(t, []byte{0xDE, 0xAD}, estPayload[4:6])
}

func TestBuildFrameAddsODRvAndODRaTags(t *testing.T) {
	t.Parallel()
	a := edi.NewAssembler()
	a.EnableODRVersion("1.2.3", 1000, func() int64 { return 1100 })
	a.EnableAudioLevels()

	frame := a.BuildFrame(edi.DetiFields{MID: 1}, nil, [2]int16{-10, -20})
	assert.Contains(t, string(frame), "ODRv")
	assert.Contains(t, string(frame), "ODRa")
}

func TestWrapAFPacketIncrementsSeqAndIsRecoverableBySetSeq(t *testing.T) {
	t.Parallel()
	a := edi.NewAssembler()
	payload := []byte{0xAA, 0xBB}

	first := a.WrapAFPacket(payload)
	second := a.WrapAFPacket(payload)
	assert.NotEqual(t, first[6:8], second[6:8], "SEQ field must advance between calls")

	a.SetSeq(0xFFFE)
	third := a.WrapAFPacket(payload)
	assert.Equal(t, []byte{0xFF, 0xFF}, third[6:8])
}

func TestBuildAFPacketLengthFieldAndHeaderFlags(t *testing.T) {
	t.Parallel()
	payload := []byte{1, 2, 3, 4, 5}
	af := edi.BuildAFPacket(payload, 7)

	require.Equal(t, 10+len(payload)+2, len(af))
	length := uint32(af[2])<<24 | uint32(af[3])<<16 | uint32(af[4])<<8 | uint32(af[5])
	assert.Equal(t, uint32(len(payload)), length)
	assert.Equal(t, byte(0x80), af[8], "ARCF CRC flag must be set")
	assert.Equal(t, byte('T'), af[9])
}

func TestSubChannelPayloadsFromPreservesOrder(t *testing.T) {
	t.Parallel()
	order := []uint8{2, 1, 3}
	sad := map[uint8]uint16{1: 10, 2: 20, 3: 30}
	tpl := map[uint8]uint8{1: 0x21, 2: 0x22, 3: 0x23}
	mst := map[uint8][]byte{1: {0x01}, 2: {0x02}, 3: {0x03}}

	got := edi.SubChannelPayloadsFrom(order, sad, tpl, mst)
	require.Len(t, got, 3)
	assert.Equal(t, uint8(2), got[0].SCId)
	assert.Equal(t, uint16(20), got[0].SAD)
	assert.Equal(t, uint8(1), got[1].SCId)
	assert.Equal(t, uint8(3), got[2].SCId)
}

func TestUTCOffsetFromTAISubtracts32(t *testing.T) {
	t.Parallel()
	assert.Equal(t, int8(5), edi.UTCOffsetFromTAI(37))
	assert.Equal(t, int8(-32), edi.UTCOffsetFromTAI(0))
}
