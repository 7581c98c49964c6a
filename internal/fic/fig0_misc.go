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

package fic

import (
	"time"

	"github.com/digitalradio/dabmux/internal/ensemble"
)

// FIG0_3 carries packet-mode component description: the packet SCId,
// the datagroup flag and the owning SId for one packet component per
// call (§4.4). Packet address, CAOrg and DSCTy are not encoded.
type FIG0_3 struct {
	ens    *ensemble.Ensemble
	cursor int
}

func NewFIG0_3(ens *ensemble.Ensemble) *FIG0_3 { return &FIG0_3{ens: ens} }

func (f *FIG0_3) FIGType() uint8 { return 0 }
func (f *FIG0_3) FIGExt() uint8  { return 3 }
func (f *FIG0_3) Rate() Rate     { return RateB }

func (f *FIG0_3) packetComponents() []ensemble.Component {
	var out []ensemble.Component
	for _, c := range f.ens.Components() {
		if c.IsPacket {
			out = append(out, c)
		}
	}
	return out
}

func (f *FIG0_3) Fill(buf []byte) int {
	comps := f.packetComponents()
	if len(comps) == 0 {
		return 0
	}
	if f.cursor >= len(comps) {
		f.cursor = 0
	}
	c := comps[f.cursor]
	const size = 7
	if len(buf) < size {
		return 0
	}
	writeFIG0Header(buf, size-2, false, false, false, 3)
	buf[2] = byte(c.PacketSCId >> 8)
	buf[3] = byte(c.PacketSCId)
	datagroup := uint8(0)
	if c.IsDatagroup {
		datagroup = 1
	}
	buf[4] = (datagroup << 7) | 0x10 /* CAOrg flag=0, DG=datagroup, rfa */
	buf[5] = byte(c.SId >> 8)
	buf[6] = byte(c.SId)
	f.cursor++
	if f.cursor >= len(comps) {
		f.cursor = 0
	}
	return size
}

func (f *FIG0_3) CompleteFigTransmitted() bool { return f.cursor == 0 }

// FIG0_5 carries one component's language per call (§4.4).
type FIG0_5 struct {
	ens    *ensemble.Ensemble
	cursor int
}

func NewFIG0_5(ens *ensemble.Ensemble) *FIG0_5 { return &FIG0_5{ens: ens} }

func (f *FIG0_5) FIGType() uint8 { return 0 }
func (f *FIG0_5) FIGExt() uint8  { return 5 }
func (f *FIG0_5) Rate() Rate     { return RateC }

func (f *FIG0_5) withLanguage() []ensemble.Component {
	var out []ensemble.Component
	for _, c := range f.ens.Components() {
		if c.Language != 0 {
			out = append(out, c)
		}
	}
	return out
}

func (f *FIG0_5) Fill(buf []byte) int {
	comps := f.withLanguage()
	if len(comps) == 0 {
		return 0
	}
	if f.cursor >= len(comps) {
		f.cursor = 0
	}
	c := comps[f.cursor]
	const size = 4
	if len(buf) < size {
		return 0
	}
	writeFIG0Header(buf, size-2, false, false, false, 5)
	buf[2] = 0x80 | byte(c.SubChID&0x3F) // long-form flag + subch id
	buf[3] = c.Language
	f.cursor++
	if f.cursor >= len(comps) {
		f.cursor = 0
	}
	return size
}

func (f *FIG0_5) CompleteFigTransmitted() bool { return f.cursor == 0 }

// FIG0_6 carries one linkage set per call (§4.4 "service linking").
type FIG0_6 struct {
	ens    *ensemble.Ensemble
	cursor int
}

func NewFIG0_6(ens *ensemble.Ensemble) *FIG0_6 { return &FIG0_6{ens: ens} }

func (f *FIG0_6) FIGType() uint8 { return 0 }
func (f *FIG0_6) FIGExt() uint8  { return 6 }
func (f *FIG0_6) Rate() Rate     { return RateC }

func (f *FIG0_6) Fill(buf []byte) int {
	sets := f.ens.LinkageSets()
	if len(sets) == 0 {
		return 0
	}
	if f.cursor >= len(sets) {
		f.cursor = 0
	}
	ls := sets[f.cursor]
	size := 4 + len(ls.Services)*2
	if len(buf) < size {
		return 0
	}
	writeFIG0Header(buf, size-2, false, false, false, 6)
	flags := uint8(0)
	if ls.Active {
		flags |= 0x80
	}
	if ls.Hard {
		flags |= 0x40
	}
	if ls.International {
		flags |= 0x20
	}
	buf[2] = flags | byte(ls.LSN>>8)&0x0F
	buf[3] = byte(ls.LSN)
	off := 4
	for _, sid := range ls.Services {
		buf[off] = byte(sid >> 8)
		buf[off+1] = byte(sid)
		off += 2
	}
	f.cursor++
	if f.cursor >= len(sets) {
		f.cursor = 0
	}
	return size
}

func (f *FIG0_6) CompleteFigTransmitted() bool { return f.cursor == 0 }

// FIG0_8 carries a packet-mode component's global definition: the
// SCId-to-service mapping used when a component's id is not locally
// scoped (§4.4).
type FIG0_8 struct {
	ens    *ensemble.Ensemble
	cursor int
}

func NewFIG0_8(ens *ensemble.Ensemble) *FIG0_8 { return &FIG0_8{ens: ens} }

func (f *FIG0_8) FIGType() uint8 { return 0 }
func (f *FIG0_8) FIGExt() uint8  { return 8 }
func (f *FIG0_8) Rate() Rate     { return RateC }

func (f *FIG0_8) Fill(buf []byte) int {
	comps := f.ens.Components()
	if len(comps) == 0 {
		return 0
	}
	if f.cursor >= len(comps) {
		f.cursor = 0
	}
	c := comps[f.cursor]
	isData := c.IsPacket
	idLen := 2
	if isData {
		idLen = 4
	}
	const extLen = 2
	size := 2 + idLen + 1 + extLen
	if len(buf) < size {
		return 0
	}
	writeFIG0Header(buf, size-2, false, false, isData, 8)
	off := 2
	if isData {
		buf[off] = byte(c.SId >> 24)
		buf[off+1] = byte(c.SId >> 16)
		buf[off+2] = byte(c.SId >> 8)
		buf[off+3] = byte(c.SId)
		off += 4
	} else {
		buf[off] = byte(c.SId >> 8)
		buf[off+1] = byte(c.SId)
		off += 2
	}
	buf[off] = 0x80 | (c.SCIdS & 0x0F) // Ext=1 (SCId follows), LS flag
	off++
	buf[off] = byte(c.PacketSCId >> 8)
	buf[off+1] = byte(c.PacketSCId)
	f.cursor++
	if f.cursor >= len(comps) {
		f.cursor = 0
	}
	return size
}

func (f *FIG0_8) CompleteFigTransmitted() bool { return f.cursor == 0 }

// FIG0_9 carries the ensemble's LTO/international-table information
// (§4.4, SUPPLEMENTED FEATURES #2). The ensemble ECC (country) is not
// encoded.
type FIG0_9 struct {
	ens *ensemble.Ensemble
}

func NewFIG0_9(ens *ensemble.Ensemble) *FIG0_9 { return &FIG0_9{ens: ens} }

func (f *FIG0_9) FIGType() uint8 { return 0 }
func (f *FIG0_9) FIGExt() uint8  { return 9 }
func (f *FIG0_9) Rate() Rate     { return RateC }

func (f *FIG0_9) Fill(buf []byte) int {
	const size = 5
	if len(buf) < size {
		return 0
	}
	ext := uint8(0)
	if f.ens.ExtendedField {
		ext = 1
	}
	writeFIG0Header(buf, size-2, false, false, false, 9)
	lto := int(f.ens.LTO)
	sign := uint8(0)
	if lto < 0 {
		sign = 0x20
		lto = -lto
	}
	buf[2] = sign | (uint8(lto) & 0x1F) // Ext(3)=0 reserved, sign+half-hours
	buf[3] = f.ens.InternationalTableId
	buf[4] = ext << 7
	return size
}

func (f *FIG0_9) CompleteFigTransmitted() bool { return true }

// mjd converts a UTC time.Time to its Modified Julian Date, matching the
// original's date/time FIG (FIG0_10 in the original).
func mjd(t time.Time) int {
	y, m, d := t.Date()
	a := (14 - int(m)) / 12
	yy := y + 4800 - a
	mm := int(m) + 12*a - 3
	jdn := d + (153*mm+2)/5 + 365*yy + yy/4 - yy/100 + yy/400 - 32045
	return jdn - 2400001
}

// FIG0_10 carries the MJD date and UTC time, toggling between the short
// (hh:mm) and long (hh:mm:ss) forms (SUPPLEMENTED FEATURES #2b).
type FIG0_10 struct {
	now        func() time.Time
	longForm   bool
	toggleTick int
}

func NewFIG0_10(now func() time.Time) *FIG0_10 { return &FIG0_10{now: now} }

func (f *FIG0_10) FIGType() uint8 { return 0 }
func (f *FIG0_10) FIGExt() uint8  { return 10 }
func (f *FIG0_10) Rate() Rate     { return RateB }

func (f *FIG0_10) Fill(buf []byte) int {
	f.toggleTick++
	if f.toggleTick >= 10 { // alternate forms roughly every 10 emissions
		f.longForm = !f.longForm
		f.toggleTick = 0
	}

	size := 5
	if f.longForm {
		size = 6
	}
	if len(buf) < size {
		return 0
	}
	t := f.now().UTC()
	days := mjd(t)

	writeFIG0Header(buf, size-2, false, false, false, 10)
	buf[2] = byte(days >> 9)
	buf[3] = byte(days>>1) & 0xFF
	utcFlag := uint8(0)
	if f.longForm {
		utcFlag = 1
	}
	b4 := byte(days<<7) & 0x80
	b4 |= byte(t.Hour()&0x1F) << 2
	b4 |= byte(t.Minute()>>4) & 0x03
	buf[4] = b4
	if utcFlag == 1 {
		buf[5] = (byte(t.Minute()&0x0F) << 4) | (byte(t.Second()&0x3F) >> 2) | 0x01
	} else {
		buf[4] |= (byte(t.Minute()&0x0F) >> 3) & 0x01
	}
	return size
}

func (f *FIG0_10) CompleteFigTransmitted() bool { return true }

// FIG0_14 carries the FEC scheme for one packet-mode sub-channel using
// the selected FEC scheme per call (§4.4).
type FIG0_14 struct {
	ens    *ensemble.Ensemble
	cursor int
}

func NewFIG0_14(ens *ensemble.Ensemble) *FIG0_14 { return &FIG0_14{ens: ens} }

func (f *FIG0_14) FIGType() uint8 { return 0 }
func (f *FIG0_14) FIGExt() uint8  { return 14 }
func (f *FIG0_14) Rate() Rate     { return RateC }

func (f *FIG0_14) withFEC() []ensemble.SubChannel {
	var out []ensemble.SubChannel
	for _, sc := range f.ens.SubChannels() {
		if sc.Type == ensemble.SubChannelPacket && sc.FECScheme != 0 {
			out = append(out, sc)
		}
	}
	return out
}

func (f *FIG0_14) Fill(buf []byte) int {
	subs := f.withFEC()
	if len(subs) == 0 {
		return 0
	}
	if f.cursor >= len(subs) {
		f.cursor = 0
	}
	sc := subs[f.cursor]
	const size = 3
	if len(buf) < size {
		return 0
	}
	writeFIG0Header(buf, size-2, false, false, false, 14)
	buf[2] = (sc.SubChID&0x3F)<<2 | sc.FECScheme&0x03
	f.cursor++
	if f.cursor >= len(subs) {
		f.cursor = 0
	}
	return size
}

func (f *FIG0_14) CompleteFigTransmitted() bool { return f.cursor == 0 }
