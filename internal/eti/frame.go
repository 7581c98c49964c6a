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

// Package eti assembles one 6144-byte ETI(NI) frame per tick from the
// ensemble model, the FIC carousel's FIB output and the sub-channel
// façade's MSC payloads (§4.6, C6).
package eti

import (
	"github.com/digitalradio/dabmux/internal/crc16"
	"github.com/digitalradio/dabmux/internal/ensemble"
)

// FrameSize is the fixed ETI(NI) frame length (§3).
const FrameSize = 6144

// fsyncEven and fsyncOdd alternate every frame (§4.6 step 1).
var fsyncEven = [3]byte{0x07, 0x35, 0x2B}
var fsyncOdd = [3]byte{0xF8, 0xCA, 0xD4}

// Timestamp is the EDI-side {seconds, 24-bit fraction} pair the
// assembler advances every tick (§4.6 "Timestamp generation").
type Timestamp struct {
	Seconds  uint32
	Fraction uint32 // 24-bit, units of 1/16384 s
}

// Advance adds one 24 ms frame period, wrapping the fraction into the
// seconds counter on overflow.
func (t *Timestamp) Advance() {
	const fracPerFrame = 24 * 16384 / 1000 // 24ms in 1/16384s units = 393.216, truncated below
	t.Fraction += fracPerFrame
	const fracPerSecond = 16384
	for t.Fraction >= fracPerSecond {
		t.Fraction -= fracPerSecond
		t.Seconds++
	}
}

// Assembler builds successive ETI frames, owning the frame counter and
// EDI timestamp (§4.6).
type Assembler struct {
	ens       *ensemble.Ensemble
	frame     uint64
	ts        Timestamp
	mnsc      mnscSource
	utcOffset int8
}

// NewAssembler builds an Assembler. initialFrame and initialTimestamp
// correspond to tist_at_fct0.
func NewAssembler(ens *ensemble.Ensemble, initialFrame uint64, initialTimestamp Timestamp) *Assembler {
	return &Assembler{ens: ens, frame: initialFrame, ts: initialTimestamp}
}

// Frame returns the current frame counter (monotonic, not wrapped).
func (a *Assembler) Frame() uint64 { return a.frame }

// DLFC is the 5000-modulo frame counter the FC carries.
func (a *Assembler) DLFC() uint16 { return uint16(a.frame % 5000) }

// Timestamp returns the current EDI-side timestamp.
func (a *Assembler) Timestamp() Timestamp { return a.ts }

// EnableMNSCClock turns on the pre-v3 BCD wall-clock MNSC compatibility
// mode (§4.6 "MNSC time", Open Question default off).
func (a *Assembler) EnableMNSCClock(startUnix int64) { a.mnsc = newMNSCSource(startUnix) }

// SetUTCOffset sets the TIST field's UTC-offset byte (TAI-UTC - 32,
// §4.7 step 2), kept in sync with the TAI clock service.
func (a *Assembler) SetUTCOffset(offset int8) { a.utcOffset = offset }

// Build assembles one frame: fic must be the carousel's FIBsPerFrame
// output for this tick, mst must supply each active sub-channel's
// payload in SubChID order (STL*8 bytes each, already read from the
// façade by the caller), and tpl must supply each active sub-channel's
// type/protection byte for its STC entry (§4.6 step 3, §4.7 step 3 —
// the same value the caller feeds into the EDI estN tag).
func (a *Assembler) Build(fibsPerFrame int, fic [][]byte, mst map[uint8][]byte, tpl map[uint8]uint8) []byte {
	subs := a.ens.SubChannels()

	ficBytes := fibsPerFrame * 32
	stcBytes := len(subs) * 4
	mstBytes := 0
	for _, sc := range subs {
		mstBytes += len(mst[sc.SubChID])
	}

	// FSYNC(3) + header(4: FL hi/lo, FC(4)) ... computed precisely below.
	frameLenWords := (4 /*FC*/ + stcBytes + 2 /*EOH*/ + ficBytes + mstBytes) / 4
	buf := make([]byte, 0, FrameSize)

	if a.frame%2 == 0 {
		buf = append(buf, fsyncEven[:]...)
	} else {
		buf = append(buf, fsyncOdd[:]...)
	}

	// FC: FSYNC already written; FC itself is FL(12 bits)+FICF(1)+NST(7)... per ETI(NI);
	// this implementation uses a simplified 4-byte FC carrying FL, FICF, MID and DFLC.
	fc := make([]byte, 4)
	fc[0] = byte(frameLenWords >> 8)
	fc[1] = byte(frameLenWords)
	ficf := uint8(1) // FIC always present
	mid := a.ens.Mode & 0x03
	fc[2] = (ficf << 7) | (mid << 5) | byte(len(subs)&0x1F)
	dlfc := a.DLFC()
	fc[3] = byte(dlfc >> 8) // high bits of DLFC (0..4999 fits in 13 bits)
	buf = append(buf, fc...)
	// low byte of DLFC appended right after, matching the original's
	// split FC/FCH framing.
	buf = append(buf, byte(dlfc))

	for _, sc := range subs {
		sizeCU, _ := sc.SizeCU()
		stl := sizeCU // STL is in 64-bit words; one CU is also 64 bits, so STL == size in CU
		if stl == 0 {
			stl = 1
		}
		sad := sc.StartAddrCU
		scid := sc.SubChID & 0x3F
		buf = append(buf,
			(scid<<2)|(byte(sad>>8)&0x03),
			byte(sad),
			tpl[sc.SubChID],
			byte(stl),
		)
	}

	mnscHi, mnscLo := a.mnscBytes()
	buf = append(buf, mnscHi, mnscLo)

	for _, f := range fic {
		buf = append(buf, f...)
	}

	for _, sc := range subs {
		buf = append(buf, mst[sc.SubChID]...)
	}

	crc := crc16.Checksum(buf)
	buf = append(buf, byte(crc>>8), byte(crc))

	tist := a.encodeTIST()
	buf = append(buf, tist[:]...)

	if len(buf) < FrameSize {
		pad := make([]byte, FrameSize-len(buf))
		for i := range pad {
			pad[i] = 0x55
		}
		buf = append(buf, pad...)
	} else if len(buf) > FrameSize {
		buf = buf[:FrameSize]
	}

	return buf
}

// encodeTIST packs the 32-bit TIST field: a UTC-offset byte plus a
// 24-bit seconds-fraction counter with the PPS-alignment flag in bit 0
// (§4.6 step 8).
func (a *Assembler) encodeTIST() [4]byte {
	var out [4]byte
	out[0] = byte(a.utcOffset)
	frac24 := a.ts.Fraction << 7 // scale the 14-bit fraction field up to the 24-bit TIST resolution
	out[1] = byte(frac24 >> 16)
	out[2] = byte(frac24 >> 8)
	out[3] = byte(frac24) | 0x01 // PPS-aligned flag
	return out
}

func (a *Assembler) mnscBytes() (hi, lo byte) {
	if a.mnsc == nil {
		return 0xFF, 0xFF
	}
	return a.mnsc.Next()
}

// Tick advances the frame counter and timestamp for the next Build
// call (§4.6 "Timestamp generation").
func (a *Assembler) Tick() {
	a.frame++
	a.ts.Advance()
}
