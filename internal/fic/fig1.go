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

// FIG1_0 carries the ensemble's 16-character EBU-Latin short label
// (§3 "FIG1 short label", §4.4).
type FIG1_0 struct {
	ens *ensemble.Ensemble
}

func NewFIG1_0(ens *ensemble.Ensemble) *FIG1_0 { return &FIG1_0{ens: ens} }

func (f *FIG1_0) FIGType() uint8 { return 1 }
func (f *FIG1_0) FIGExt() uint8  { return 0 }
func (f *FIG1_0) Rate() Rate     { return RateB }

func (f *FIG1_0) Fill(buf []byte) int {
	const size = 2 + 2 + 16 + 2
	if len(buf) < size {
		return 0
	}
	writeFIG1Header(buf, size-2, false, 0, 0)
	buf[2] = byte(f.ens.EId >> 8)
	buf[3] = byte(f.ens.EId)
	copy(buf[4:20], ensemble.EBULatinBytes(f.ens.Short.Short))
	flag := f.ens.Short.CharacterFlag
	buf[20] = byte(flag >> 8)
	buf[21] = byte(flag)
	return size
}

func (f *FIG1_0) CompleteFigTransmitted() bool { return true }

// FIG1_1 cycles the programme services' 16-byte short labels, one per
// call (§4.4 "FIG 1/1, 1/4, 1/5").
type FIG1_1 struct {
	ens    *ensemble.Ensemble
	cursor int
}

func NewFIG1_1(ens *ensemble.Ensemble) *FIG1_1 { return &FIG1_1{ens: ens} }

func (f *FIG1_1) FIGType() uint8 { return 1 }
func (f *FIG1_1) FIGExt() uint8  { return 1 }
func (f *FIG1_1) Rate() Rate     { return RateB }

func (f *FIG1_1) Fill(buf []byte) int {
	svcs := f.ens.Services()
	if len(svcs) == 0 {
		return 0
	}
	if f.cursor >= len(svcs) {
		f.cursor = 0
	}
	svc := svcs[f.cursor]
	const size = 2 + 2 + 16 + 2
	if len(buf) < size {
		return 0
	}
	writeFIG1Header(buf, size-2, false, 0, 1)
	buf[2] = byte(svc.SId >> 8)
	buf[3] = byte(svc.SId)
	copy(buf[4:20], ensemble.EBULatinBytes(svc.Short.Short))
	flag := svc.Short.CharacterFlag
	buf[20] = byte(flag >> 8)
	buf[21] = byte(flag)
	f.cursor++
	if f.cursor >= len(svcs) {
		f.cursor = 0
	}
	return size
}

func (f *FIG1_1) CompleteFigTransmitted() bool { return f.cursor == 0 }

// FIG1_4 cycles service component labels (§4.4).
type FIG1_4 struct {
	ens    *ensemble.Ensemble
	cursor int
}

func NewFIG1_4(ens *ensemble.Ensemble) *FIG1_4 { return &FIG1_4{ens: ens} }

func (f *FIG1_4) FIGType() uint8 { return 1 }
func (f *FIG1_4) FIGExt() uint8  { return 4 }
func (f *FIG1_4) Rate() Rate     { return RateB }

func (f *FIG1_4) Fill(buf []byte) int {
	comps := f.ens.Components()
	if len(comps) == 0 {
		return 0
	}
	if f.cursor >= len(comps) {
		f.cursor = 0
	}
	c := comps[f.cursor]
	const size = 2 + 3 + 16 + 2
	if len(buf) < size {
		return 0
	}
	writeFIG1Header(buf, size-2, false, 0, 4)
	buf[2] = c.SCIdS & 0x0F
	buf[3] = byte(c.SId >> 8)
	buf[4] = byte(c.SId)
	copy(buf[5:21], ensemble.EBULatinBytes(c.Short.Short))
	flag := c.Short.CharacterFlag
	buf[21] = byte(flag >> 8)
	buf[22] = byte(flag)
	f.cursor++
	if f.cursor >= len(comps) {
		f.cursor = 0
	}
	return size
}

func (f *FIG1_4) CompleteFigTransmitted() bool { return f.cursor == 0 }

// FIG1_5 carries data-service labels (32-bit SId form, §4.4).
type FIG1_5 struct {
	ens    *ensemble.Ensemble
	cursor int
}

func NewFIG1_5(ens *ensemble.Ensemble) *FIG1_5 { return &FIG1_5{ens: ens} }

func (f *FIG1_5) FIGType() uint8 { return 1 }
func (f *FIG1_5) FIGExt() uint8  { return 5 }
func (f *FIG1_5) Rate() Rate     { return RateB }

func (f *FIG1_5) Fill(buf []byte) int {
	var dataSvcs []ensemble.Service
	for _, s := range f.ens.Services() {
		if s.IsDataSId {
			dataSvcs = append(dataSvcs, s)
		}
	}
	if len(dataSvcs) == 0 {
		return 0
	}
	if f.cursor >= len(dataSvcs) {
		f.cursor = 0
	}
	svc := dataSvcs[f.cursor]
	const size = 2 + 4 + 16 + 2
	if len(buf) < size {
		return 0
	}
	writeFIG1Header(buf, size-2, false, 0, 5)
	buf[2] = byte(svc.SId >> 24)
	buf[3] = byte(svc.SId >> 16)
	buf[4] = byte(svc.SId >> 8)
	buf[5] = byte(svc.SId)
	copy(buf[6:22], ensemble.EBULatinBytes(svc.Short.Short))
	flag := svc.Short.CharacterFlag
	buf[22] = byte(flag >> 8)
	buf[23] = byte(flag)
	f.cursor++
	if f.cursor >= len(dataSvcs) {
		f.cursor = 0
	}
	return size
}

func (f *FIG1_5) CompleteFigTransmitted() bool { return f.cursor == 0 }
