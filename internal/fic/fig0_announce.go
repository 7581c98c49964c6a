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
	"github.com/digitalradio/dabmux/internal/fic/transition"
)

// announcementTimeout is the hold period a newly active or newly
// inactive cluster spends in its transient bucket before settling into
// repeated/absent (§4.5.2).
const announcementTimeout = 2 * time.Second

// FIG0_18 announces, per cluster, which announcement types are
// supported and on which cluster id (§4.4, §4.5.2).
type FIG0_18 struct {
	ens     *ensemble.Ensemble
	cursor  int
	handler *transition.Handler[uint8]
}

func NewFIG0_18(ens *ensemble.Ensemble) *FIG0_18 {
	return &FIG0_18{ens: ens, handler: transition.New[uint8](announcementTimeout)}
}

func (f *FIG0_18) FIGType() uint8 { return 0 }
func (f *FIG0_18) FIGExt() uint8  { return 18 }
func (f *FIG0_18) Rate() Rate     { return RateB }

func (f *FIG0_18) activeClusters() []uint8 {
	seen := make(map[uint8]bool)
	var out []uint8
	for _, svc := range f.ens.Services() {
		if svc.Announcements == 0 {
			continue
		}
		for _, cl := range svc.Clusters {
			if !seen[cl] {
				seen[cl] = true
				out = append(out, cl)
			}
		}
	}
	return out
}

func (f *FIG0_18) Fill(buf []byte) int {
	clusters := f.activeClusters()
	f.handler.Update(clusters)
	if len(clusters) == 0 {
		return 0
	}
	if f.cursor >= len(clusters) {
		f.cursor = 0
	}
	cluster := clusters[f.cursor]

	var asw uint16
	var sids []uint32
	for _, svc := range f.ens.Services() {
		for _, cl := range svc.Clusters {
			if cl == cluster {
				asw |= svc.Announcements
				sids = append(sids, svc.SId)
			}
		}
	}

	size := 5 + len(sids)*2
	if len(buf) < size {
		return 0
	}
	writeFIG0Header(buf, size-2, false, false, false, 18)
	buf[2] = byte(asw >> 8)
	buf[3] = byte(asw)
	off := 4
	for _, sid := range sids {
		buf[off] = byte(sid >> 8)
		buf[off+1] = byte(sid)
		off += 2
	}
	buf[off] = cluster
	f.cursor++
	if f.cursor >= len(clusters) {
		f.cursor = 0
	}
	return size
}

func (f *FIG0_18) CompleteFigTransmitted() bool { return f.cursor == 0 }

// FIG0_19 switches announcement clusters on. It is emitted at rate A
// while any currently active cluster is new and drops to B once all of
// them have settled into repeated (§4.5.2). Only clusters that services
// currently announce are emitted: a cluster that turns inactive is not
// sent again, so no switch-off is signalled and its disabled period does
// not raise the rate.
type FIG0_19 struct {
	ens     *ensemble.Ensemble
	cursor  int
	handler *transition.Handler[uint8]
	rate    Rate
}

func NewFIG0_19(ens *ensemble.Ensemble) *FIG0_19 {
	return &FIG0_19{ens: ens, handler: transition.New[uint8](announcementTimeout), rate: RateB}
}

func (f *FIG0_19) FIGType() uint8 { return 0 }
func (f *FIG0_19) FIGExt() uint8  { return 19 }
func (f *FIG0_19) Rate() Rate     { return f.rate }

func (f *FIG0_19) activeClusters() []uint8 {
	seen := make(map[uint8]bool)
	var out []uint8
	for _, svc := range f.ens.Services() {
		if svc.Announcements == 0 {
			continue
		}
		for _, cl := range svc.Clusters {
			if !seen[cl] {
				seen[cl] = true
				out = append(out, cl)
			}
		}
	}
	return out
}

func (f *FIG0_19) Fill(buf []byte) int {
	clusters := f.activeClusters()
	f.handler.Update(clusters)

	f.rate = RateB
	for _, cl := range clusters {
		switch f.handler.StateOf(cl) {
		case transition.StateNew, transition.StateDisabled:
			f.rate = RateA
		}
	}

	if len(clusters) == 0 {
		return 0
	}
	if f.cursor >= len(clusters) {
		f.cursor = 0
	}
	cluster := clusters[f.cursor]
	active := f.handler.StateOf(cluster) != transition.StateDisabled

	var asw uint16
	for _, svc := range f.ens.Services() {
		for _, cl := range svc.Clusters {
			if cl == cluster {
				asw |= svc.Announcements
			}
		}
	}
	if !active {
		asw = 0
	}

	const size = 5
	if len(buf) < size {
		return 0
	}
	writeFIG0Header(buf, size-2, false, false, false, 19)
	buf[2] = cluster
	buf[3] = byte(asw >> 8)
	buf[4] = byte(asw)
	f.cursor++
	if f.cursor >= len(clusters) {
		f.cursor = 0
	}
	return size
}

func (f *FIG0_19) CompleteFigTransmitted() bool { return f.cursor == 0 }

// FIG0_21 carries one alternative-frequency information entry per call
// (§4.4).
type FIG0_21 struct {
	ens    *ensemble.Ensemble
	cursor int
}

func NewFIG0_21(ens *ensemble.Ensemble) *FIG0_21 { return &FIG0_21{ens: ens} }

func (f *FIG0_21) FIGType() uint8 { return 0 }
func (f *FIG0_21) FIGExt() uint8  { return 21 }
func (f *FIG0_21) Rate() Rate     { return RateD }

func (f *FIG0_21) Fill(buf []byte) int {
	fis := f.ens.FrequencyInfos()
	if len(fis) == 0 {
		return 0
	}
	if f.cursor >= len(fis) {
		f.cursor = 0
	}
	fi := fis[f.cursor]

	size := 4 + len(fi.Frequencies)*3
	if len(buf) < size {
		return 0
	}
	writeFIG0Header(buf, size-2, false, false, false, 21)
	buf[2] = fi.RegionId
	buf[3] = (fi.RangeModulation & 0x07) << 5
	buf[3] |= byte(len(fi.Frequencies)) & 0x1F
	off := 4
	for _, freq := range fi.Frequencies {
		khz := freq / 1000
		buf[off] = byte(khz >> 16)
		buf[off+1] = byte(khz >> 8)
		buf[off+2] = byte(khz)
		off += 3
	}
	f.cursor++
	if f.cursor >= len(fis) {
		f.cursor = 0
	}
	return size
}

func (f *FIG0_21) CompleteFigTransmitted() bool { return f.cursor == 0 }

// FIG0_24 carries one other-ensemble cross-reference per call (§4.4).
type FIG0_24 struct {
	ens    *ensemble.Ensemble
	cursor int
}

func NewFIG0_24(ens *ensemble.Ensemble) *FIG0_24 { return &FIG0_24{ens: ens} }

func (f *FIG0_24) FIGType() uint8 { return 0 }
func (f *FIG0_24) FIGExt() uint8  { return 24 }
func (f *FIG0_24) Rate() Rate     { return RateD }

func (f *FIG0_24) Fill(buf []byte) int {
	others := f.ens.OtherEnsembles()
	if len(others) == 0 {
		return 0
	}
	if f.cursor >= len(others) {
		f.cursor = 0
	}
	oe := others[f.cursor]

	size := 5 + len(oe.Services)*2
	if len(buf) < size {
		return 0
	}
	writeFIG0Header(buf, size-2, false, false, false, 24)
	cont := uint8(0)
	if oe.Cont {
		cont = 1
	}
	buf[2] = (cont << 7) | byte(len(oe.Services))&0x1F
	buf[3] = byte(oe.EId >> 8)
	buf[4] = byte(oe.EId)
	off := 5
	for _, sid := range oe.Services {
		buf[off] = byte(sid >> 8)
		buf[off+1] = byte(sid)
		off += 2
	}
	f.cursor++
	if f.cursor >= len(others) {
		f.cursor = 0
	}
	return size
}

func (f *FIG0_24) CompleteFigTransmitted() bool { return f.cursor == 0 }
