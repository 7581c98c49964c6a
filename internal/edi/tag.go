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

// Package edi implements the EDI TAG assembler, AF packet framing, PFT
// fragmentation and the transport/time-spread layer (§4.7-4.9, C7-C9).
package edi

import (
	"github.com/digitalradio/dabmux/internal/crc16"
)

// DefaultAlignment is the TAG packet's padding boundary in bytes (§4.7 step 6).
const DefaultAlignment = 8

// TagItem is one `{name(4), length-in-bits(4), value}` entry (§3).
type TagItem struct {
	Name  [4]byte
	Value []byte
}

func tagItem(name string, value []byte) TagItem {
	var n [4]byte
	copy(n[:], name)
	return TagItem{Name: n, Value: value}
}

// Encode serializes one TAG item: 4-byte name, 4-byte bit-length,
// value.
func (t TagItem) Encode() []byte {
	bits := uint32(len(t.Value)) * 8
	out := make([]byte, 0, 8+len(t.Value))
	out = append(out, t.Name[:]...)
	out = append(out, byte(bits>>24), byte(bits>>16), byte(bits>>8), byte(bits))
	out = append(out, t.Value...)
	return out
}

// DetiFields carries the per-frame values the `deti` tag encodes
// (§4.7 step 2).
type DetiFields struct {
	STAT    byte
	FCT     uint16 // low 8 bits of DLFC plus high bits per ETI(NI)
	FICF    bool
	ATSTF   bool
	MID     uint8
	FP      uint8
	MNSC    uint16
	UTCOffset int8 // TAI-UTC - 32
	Seconds uint32 // SI seconds since 2000-01-01T00:00:00Z
	TSTA    uint32 // 24-bit sub-second, top byte unused
	FIC     []byte
	RFUD    []byte
}

// Assembler builds one TAG packet per ETI frame (§4.7).
type Assembler struct {
	alignment int
	seq       uint16
	odrVersion string
	startUnix  int64
	uptimeFunc func() int64
	audioLevels bool
}

// NewAssembler builds a TAG assembler with the default 8-byte alignment.
func NewAssembler() *Assembler {
	return &Assembler{alignment: DefaultAlignment}
}

// SetAlignment overrides the TAG packet padding boundary (§4.7 step 6).
func (a *Assembler) SetAlignment(n int) { a.alignment = n }

// EnableODRVersion turns on the optional ODRv tag (SUPPLEMENTED
// FEATURES #4), reporting version and uptime since startUnix.
func (a *Assembler) EnableODRVersion(version string, startUnix int64, uptime func() int64) {
	a.odrVersion = version
	a.startUnix = startUnix
	a.uptimeFunc = uptime
}

// EnableAudioLevels turns on the optional ODRa tag.
func (a *Assembler) EnableAudioLevels() { a.audioLevels = true }

// SubChannelPayload is one estN tag's content (§4.7 step 3).
type SubChannelPayload struct {
	SCId uint8
	SAD  uint16
	TPL  uint8
	MST  []byte
}

// BuildFrame assembles the `*ptr`/`deti`/`estN...` TAG packet for one
// ETI frame and returns its raw bytes (payload of the AF packet, §4.7
// steps 1-6).
func (a *Assembler) BuildFrame(d DetiFields, subs []SubChannelPayload, audioLevel [2]int16) []byte {
	var items []TagItem

	items = append(items, tagItem("*ptr", []byte{0x00, 0x00})) // value is 2 zero bytes; the protocol name and major/minor version fields are not carried

	items = append(items, tagItem("deti", encodeDeti(d)))

	for i, s := range subs {
		items = append(items, tagItem(estName(i+1), encodeEst(s)))
	}

	if a.odrVersion != "" {
		uptime := uint32(0)
		if a.uptimeFunc != nil {
			uptime = uint32(a.uptimeFunc())
		}
		val := append([]byte(a.odrVersion), byte(uptime>>24), byte(uptime>>16), byte(uptime>>8), byte(uptime))
		items = append(items, tagItem("ODRv", val))
	}
	if a.audioLevels {
		items = append(items, tagItem("ODRa", []byte{
			byte(audioLevel[0] >> 8), byte(audioLevel[0]),
			byte(audioLevel[1] >> 8), byte(audioLevel[1]),
		}))
	}

	var buf []byte
	for _, it := range items {
		buf = append(buf, it.Encode()...)
	}

	align := a.alignment
	if align <= 0 {
		align = DefaultAlignment
	}
	if rem := len(buf) % align; rem != 0 {
		pad := align - rem
		dmy := tagItem("*dmy", make([]byte, maxInt(pad-8, 0)))
		buf = append(buf, dmy.Encode()...)
		if rem2 := len(buf) % align; rem2 != 0 {
			buf = append(buf, make([]byte, align-rem2)...)
		}
	}
	return buf
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func estName(n int) string {
	return "est" + string(rune('0'+n))
}

func encodeDeti(d DetiFields) []byte {
	out := make([]byte, 14+len(d.FIC)+len(d.RFUD))
	out[0] = d.STAT
	out[1] = byte(d.FCT >> 8)
	out[2] = byte(d.FCT)
	ficf := uint8(0)
	if d.FICF {
		ficf = 1
	}
	atstf := uint8(0)
	if d.ATSTF {
		atstf = 1
	}
	out[3] = (ficf << 7) | (atstf << 6) | (d.MID&0x03)<<4 | (d.FP & 0x0F)
	out[4] = byte(d.MNSC >> 8)
	out[5] = byte(d.MNSC)
	out[6] = byte(d.UTCOffset)
	out[7] = byte(d.Seconds >> 24)
	out[8] = byte(d.Seconds >> 16)
	out[9] = byte(d.Seconds >> 8)
	out[10] = byte(d.Seconds)
	out[11] = byte(d.TSTA >> 16)
	out[12] = byte(d.TSTA >> 8)
	out[13] = byte(d.TSTA)
	off := 14
	off += copy(out[off:], d.FIC)
	copy(out[off:], d.RFUD)
	return out
}

func encodeEst(s SubChannelPayload) []byte {
	out := make([]byte, 4+len(s.MST))
	out[0] = s.SCId
	out[1] = byte(s.SAD >> 8)
	out[2] = byte(s.SAD)
	out[3] = s.TPL
	copy(out[4:], s.MST)
	return out
}

// WrapAFPacket wraps a TAG packet payload as one AF packet (§3, §4.7
// step 7), bumping the assembler's SEQ counter.
func (a *Assembler) WrapAFPacket(payload []byte) []byte {
	a.seq++
	return BuildAFPacket(payload, a.seq)
}

// SetSeq force-sets the AF SEQ counter (§4.9 "Sequence numbers"),
// subsequent WrapAFPacket calls resume incrementing from here.
func (a *Assembler) SetSeq(seq uint16) { a.seq = seq }

// BuildAFPacket frames payload as an AF packet with the given SEQ
// (§3, §6 "EDI wire format"): SYNC="AF", LEN(4), SEQ(2), ARCF(1),
// PT(1='T'), payload, CRC(2) over the entire packet.
func BuildAFPacket(payload []byte, seq uint16) []byte {
	out := make([]byte, 0, 10+len(payload)+2)
	out = append(out, 'A', 'F')
	l := uint32(len(payload))
	out = append(out, byte(l>>24), byte(l>>16), byte(l>>8), byte(l))
	out = append(out, byte(seq>>8), byte(seq))
	out = append(out, 0x80) // ARCF: CRC flag set
	out = append(out, 'T')
	out = append(out, payload...)
	crc := crc16.Checksum(out)
	out = append(out, byte(crc>>8), byte(crc))
	return out
}

// SubChannelPayloadsFrom builds estN tag payloads from the ETI
// assembler's sub-channel list and MST bytes, preserving SubChID
// order (§4.7 step 3).
func SubChannelPayloadsFrom(order []uint8, sad map[uint8]uint16, tpl map[uint8]uint8, mst map[uint8][]byte) []SubChannelPayload {
	out := make([]SubChannelPayload, 0, len(order))
	for _, id := range order {
		out = append(out, SubChannelPayload{SCId: id, SAD: sad[id], TPL: tpl[id], MST: mst[id]})
	}
	return out
}

// UTCOffsetFromTAI derives the deti tag's UTCO field (§4.7 step 2).
func UTCOffsetFromTAI(taiUTCOffsetSeconds int) int8 {
	return int8(taiUTCOffsetSeconds - 32)
}
