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

import "github.com/digitalradio/dabmux/internal/ensemble"

// FIG0_0 is the Multiplex Configuration Info FIG (ensemble id, change
// flag, CIF count, alarm flag). It is emitted first in FIB0 on every
// frame whose number is a multiple of four (§4.4, enforced by the
// carousel's mandatory placement rule rather than by this type).
type FIG0_0 struct {
	ens *ensemble.Ensemble

	frame func() uint64

	lastGeneration  uint64
	changeUntilTick int
}

func NewFIG0_0(ens *ensemble.Ensemble, frame func() uint64) *FIG0_0 {
	return &FIG0_0{ens: ens, frame: frame, lastGeneration: ens.Generation()}
}

func (f *FIG0_0) FIGType() uint8 { return 0 }
func (f *FIG0_0) FIGExt() uint8  { return 0 }
func (f *FIG0_0) Rate() Rate     { return RateA }

func (f *FIG0_0) Fill(buf []byte) int {
	const size = 6
	if len(buf) < size {
		return 0
	}
	gen := f.ens.Generation()
	if gen != f.lastGeneration {
		f.lastGeneration = gen
		f.changeUntilTick = 4 // raise the change flag for one CIF's worth of frames
	}
	changeFlag := uint8(0)
	if f.changeUntilTick > 0 {
		changeFlag = 1
		f.changeUntilTick--
	}

	cifCount := f.frame() % 5000
	cifHi := uint8((cifCount / 250) & 0x1F)
	cifLo := uint8(cifCount % 250)

	writeFIG0Header(buf, size-2, false, false, false, 0)
	buf[2] = byte(f.ens.EId >> 8)
	buf[3] = byte(f.ens.EId)
	buf[4] = (changeFlag << 6) | (0 << 5) /* Al */ | cifHi
	buf[5] = cifLo
	return size
}

func (f *FIG0_0) CompleteFigTransmitted() bool { return true }

// FIG0_7 announces the number of services in the ensemble
// (configuration-management redirection, §4.4). It must immediately
// follow FIG 0/0 when present; the carousel enforces the adjacency.
type FIG0_7 struct {
	ens *ensemble.Ensemble
}

func NewFIG0_7(ens *ensemble.Ensemble) *FIG0_7 { return &FIG0_7{ens: ens} }

func (f *FIG0_7) FIGType() uint8 { return 0 }
func (f *FIG0_7) FIGExt() uint8  { return 7 }
func (f *FIG0_7) Rate() Rate     { return RateA }

func (f *FIG0_7) Fill(buf []byte) int {
	const size = 3
	if len(buf) < size {
		return 0
	}
	writeFIG0Header(buf, size-2, false, false, false, 7)
	buf[2] = byte(len(f.ens.Services()))
	return size
}

func (f *FIG0_7) CompleteFigTransmitted() bool { return true }

// FIG0_1 is the sub-channel organisation FIG: start CU address, CU
// size and protection profile for one sub-channel per call, cycling
// through all sub-channels (§4.4).
type FIG0_1 struct {
	ens    *ensemble.Ensemble
	cursor int
}

func NewFIG0_1(ens *ensemble.Ensemble) *FIG0_1 { return &FIG0_1{ens: ens} }

func (f *FIG0_1) FIGType() uint8 { return 0 }
func (f *FIG0_1) FIGExt() uint8  { return 1 }
func (f *FIG0_1) Rate() Rate     { return RateB }

func (f *FIG0_1) Fill(buf []byte) int {
	subs := f.ens.SubChannels()
	if len(subs) == 0 {
		return 0
	}
	if f.cursor >= len(subs) {
		f.cursor = 0
	}
	sc := subs[f.cursor]
	uep := sc.Protection.Kind == ensemble.ProtectionUEP
	size := 6
	if uep {
		size = 5
	}
	if len(buf) < size {
		return 0
	}
	writeFIG0Header(buf, size-2, false, false, false, 1)
	buf[2] = (sc.SubChID&0x3F)<<2 | byte(sc.StartAddrCU>>8)&0x03
	buf[3] = byte(sc.StartAddrCU)
	if uep {
		buf[4] = byte(sc.Protection.TableSwitch&0x01)<<6 | byte(sc.Protection.TableIndex&0x3F)
	} else {
		sizeCU, _ := sc.SizeCU()
		buf[4] = 0x80 | byte(sc.Protection.Option&0x03)<<4 | byte(sc.Protection.Level&0x03)<<2 | byte(sizeCU>>8)&0x03
		buf[5] = byte(sizeCU)
	}
	f.cursor++
	if f.cursor >= len(subs) {
		f.cursor = 0
	}
	return size
}

func (f *FIG0_1) CompleteFigTransmitted() bool { return f.cursor == 0 }

// FIG0_2 is the service organisation FIG: the SId and the set of
// sub-channel ids of its components, one service per call (§4.4).
type FIG0_2 struct {
	ens    *ensemble.Ensemble
	cursor int
}

func NewFIG0_2(ens *ensemble.Ensemble) *FIG0_2 { return &FIG0_2{ens: ens} }

func (f *FIG0_2) FIGType() uint8 { return 0 }
func (f *FIG0_2) FIGExt() uint8  { return 2 }
func (f *FIG0_2) Rate() Rate     { return RateB }

func (f *FIG0_2) Fill(buf []byte) int {
	svcs := f.ens.Services()
	if len(svcs) == 0 {
		return 0
	}
	if f.cursor >= len(svcs) {
		f.cursor = 0
	}
	svc := svcs[f.cursor]
	components := f.ens.ComponentsForService(svc.SId)

	size := 5 + len(components)*2
	if svc.IsDataSId {
		size += 2
	}
	if len(buf) < size {
		return 0
	}
	writeFIG0Header(buf, size-2, false, false, svc.IsDataSId, 2)
	off := 2
	if svc.IsDataSId {
		buf[off] = byte(svc.SId >> 24)
		buf[off+1] = byte(svc.SId >> 16)
		buf[off+2] = byte(svc.SId >> 8)
		buf[off+3] = byte(svc.SId)
		off += 4
	} else {
		buf[off] = byte(svc.SId >> 8)
		buf[off+1] = byte(svc.SId)
		off += 2
	}
	buf[off] = byte(len(components))
	off++
	for _, c := range components {
		scid := c.SCIdS & 0x0F
		typ := byte(c.Type)
		b0 := (scid << 4) | (typ & 0x0F)
		b1 := c.SubChID
		if c.Primary {
			b0 |= 0x00
		} else {
			b0 |= 0x80
		}
		buf[off] = b0
		buf[off+1] = b1
		off += 2
	}
	f.cursor++
	if f.cursor >= len(svcs) {
		f.cursor = 0
	}
	return size
}

func (f *FIG0_2) CompleteFigTransmitted() bool { return f.cursor == 0 }

// FIG0_17 carries one service's programme type (PTy) per call; the
// language field is not sent (§4.4's "FIG 0/17 Programme type").
type FIG0_17 struct {
	ens    *ensemble.Ensemble
	cursor int
}

func NewFIG0_17(ens *ensemble.Ensemble) *FIG0_17 { return &FIG0_17{ens: ens} }

func (f *FIG0_17) FIGType() uint8 { return 0 }
func (f *FIG0_17) FIGExt() uint8  { return 17 }
func (f *FIG0_17) Rate() Rate     { return RateC }

func (f *FIG0_17) Fill(buf []byte) int {
	svcs := f.ens.Services()
	if len(svcs) == 0 {
		return 0
	}
	if f.cursor >= len(svcs) {
		f.cursor = 0
	}
	svc := svcs[f.cursor]
	const size = 6
	if len(buf) < size {
		return 0
	}
	writeFIG0Header(buf, size-2, false, false, false, 17)
	buf[2] = byte(svc.SId >> 8)
	buf[3] = byte(svc.SId)
	buf[4] = 0 // SD/PS/L flags, language field omitted when L=0
	buf[5] = svc.PTy & 0x1F
	f.cursor++
	if f.cursor >= len(svcs) {
		f.cursor = 0
	}
	return size
}

func (f *FIG0_17) CompleteFigTransmitted() bool { return f.cursor == 0 }

// FIG0_13 announces one user application per call for the components
// that declare one (§4.4).
type FIG0_13 struct {
	ens          *ensemble.Ensemble
	compCursor   int
	appCursor    int
}

func NewFIG0_13(ens *ensemble.Ensemble) *FIG0_13 { return &FIG0_13{ens: ens} }

func (f *FIG0_13) FIGType() uint8 { return 0 }
func (f *FIG0_13) FIGExt() uint8  { return 13 }
func (f *FIG0_13) Rate() Rate     { return RateC }

func (f *FIG0_13) Fill(buf []byte) int {
	comps := f.ens.Components()
	var withApps []ensemble.Component
	for _, c := range comps {
		if len(c.Apps) > 0 {
			withApps = append(withApps, c)
		}
	}
	if len(withApps) == 0 {
		return 0
	}
	if f.compCursor >= len(withApps) {
		f.compCursor = 0
		f.appCursor = 0
	}
	c := withApps[f.compCursor]
	if f.appCursor >= len(c.Apps) {
		f.appCursor = 0
		f.compCursor++
		if f.compCursor >= len(withApps) {
			f.compCursor = 0
		}
		c = withApps[f.compCursor]
	}
	app := c.Apps[f.appCursor]

	size := 8 + len(app.Data)
	if len(buf) < size {
		return 0
	}
	writeFIG0Header(buf, size-2, false, false, false, 13)
	buf[2] = byte(c.SId >> 8)
	buf[3] = byte(c.SId)
	buf[4] = (c.SCIdS & 0x0F) << 4
	buf[4] |= 1 // number of user applications in this entry
	buf[5] = byte(app.AppType >> 8)
	buf[6] = byte(app.AppType)
	buf[7] = byte(len(app.Data))
	copy(buf[8:], app.Data)

	f.appCursor++
	if f.appCursor >= len(c.Apps) {
		f.appCursor = 0
		f.compCursor++
		if f.compCursor >= len(withApps) {
			f.compCursor = 0
		}
	}
	return size
}

func (f *FIG0_13) CompleteFigTransmitted() bool {
	return f.compCursor == 0 && f.appCursor == 0
}
