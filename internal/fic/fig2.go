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

// fig2Segments cuts a long label into <=16-byte character-field
// segments and tracks the cursor/toggle state across Fill calls
// (§4.4 "FIG 2 segmentation", S6).
type fig2Segments struct {
	segments  [][]byte
	cursor    int
	lastLabel string
	toggle    bool
}

// load (re)segments label if it differs from the last loaded label,
// inverting the toggle bit only on an actual content change.
func (s *fig2Segments) load(label string) {
	if label != s.lastLabel {
		s.toggle = !s.toggle
		s.lastLabel = label
	}
	s.segments = s.segments[:0]
	b := []byte(label)
	for i := 0; i < len(b); i += 16 {
		end := i + 16
		if end > len(b) {
			end = len(b)
		}
		s.segments = append(s.segments, b[i:end])
	}
	s.cursor = 0
}

func (s *fig2Segments) ready() bool    { return len(s.segments) > 0 }
func (s *fig2Segments) complete() bool { return s.ready() && s.cursor >= len(s.segments) }

// segmentCount is SegmentCount = ceil(bytes/16) - 1 (§4.4).
func (s *fig2Segments) segmentCount() uint8 { return uint8(len(s.segments) - 1) }

func (s *fig2Segments) currentSegment() []byte {
	if s.cursor >= len(s.segments) {
		return nil
	}
	return s.segments[s.cursor]
}

func (s *fig2Segments) advance() []byte {
	if s.cursor >= len(s.segments) {
		return nil
	}
	seg := s.segments[s.cursor]
	s.cursor++
	return seg
}

func (s *fig2Segments) toggleFlag() bool { return s.toggle }

func (s *fig2Segments) clear() { s.segments = nil; s.cursor = 0 }

// writeExtendedLabelHeader writes the 3-byte {Rfa:4, SegmentCount:3,
// EncodingFlag:1}{CharacterFlag:16} header carried only by segment 0.
func writeExtendedLabelHeader(buf []byte, segCount uint8) {
	buf[0] = (segCount & 0x07) << 1 // EncodingFlag=0 (UTF-8) in bit 0
	buf[1] = 0xFF
	buf[2] = 0x00
}

// FIG2_0 carries the ensemble's long (FIG2/UTF-8) label, segmented
// (§4.4, S6).
type FIG2_0 struct {
	ens      *ensemble.Ensemble
	segments fig2Segments
}

func NewFIG2_0(ens *ensemble.Ensemble) *FIG2_0 { return &FIG2_0{ens: ens} }

func (f *FIG2_0) FIGType() uint8 { return 2 }
func (f *FIG2_0) FIGExt() uint8  { return 0 }
func (f *FIG2_0) Rate() Rate     { return RateB }

func (f *FIG2_0) Fill(buf []byte) int {
	if f.ens.Long.Long == "" {
		return 0
	}
	if !f.segments.ready() {
		f.segments.load(f.ens.Long.Long)
	}
	first := f.segments.cursor == 0
	seg := f.segments.currentSegment()
	size := 2 + 2 + len(seg)
	if first {
		size += 3
	}
	if len(buf) < size {
		return 0
	}
	writeFIG2Header(buf, size-2, f.segments.toggleFlag(), uint8(f.segments.cursor), 0)
	buf[2] = byte(f.ens.EId >> 8)
	buf[3] = byte(f.ens.EId)
	off := 4
	if first {
		writeExtendedLabelHeader(buf[off:], f.segments.segmentCount())
		off += 3
	}
	copy(buf[off:], f.segments.advance())
	if f.segments.complete() {
		f.segments.clear()
	}
	return size
}

func (f *FIG2_0) CompleteFigTransmitted() bool { return !f.segments.ready() }

// fig2ServiceLabels implements FIG 2/1 (programme) and 2/5 (data)
// jointly, as the teacher does (§4.4).
type fig2ServiceLabels struct {
	ens        *ensemble.Ensemble
	programme  bool
	cursor     int
	perService map[uint32]*fig2Segments
}

func newFIG2ServiceLabels(ens *ensemble.Ensemble, programme bool) *fig2ServiceLabels {
	return &fig2ServiceLabels{ens: ens, programme: programme, perService: make(map[uint32]*fig2Segments)}
}

func (f *fig2ServiceLabels) fill(buf []byte, ext uint8) int {
	svcs := f.ens.Services()
	written := 0
	for f.cursor < len(svcs) {
		svc := svcs[f.cursor]
		isData := svc.IsDataSId
		if isData == f.programme || svc.Long.Long == "" {
			f.cursor++
			continue
		}
		seg, ok := f.perService[svc.SId]
		if !ok {
			seg = &fig2Segments{}
			f.perService[svc.SId] = seg
		}
		if !seg.ready() {
			seg.load(svc.Long.Long)
		}
		idLen := 2
		if isData {
			idLen = 4
		}
		first := seg.cursor == 0
		segBytes := seg.currentSegment()
		need := 2 + idLen + len(segBytes)
		if first {
			need += 3
		}
		if len(buf)-written < need {
			break
		}
		out := buf[written:]
		writeFIG2Header(out, need-2, seg.toggleFlag(), uint8(seg.cursor), ext)
		off := 2
		if isData {
			out[off] = byte(svc.SId >> 24)
			out[off+1] = byte(svc.SId >> 16)
			out[off+2] = byte(svc.SId >> 8)
			out[off+3] = byte(svc.SId)
			off += 4
		} else {
			out[off] = byte(svc.SId >> 8)
			out[off+1] = byte(svc.SId)
			off += 2
		}
		if first {
			writeExtendedLabelHeader(out[off:], seg.segmentCount())
			off += 3
		}
		copy(out[off:], seg.advance())
		written += need
		if seg.complete() {
			seg.clear()
			f.cursor++
		}
	}
	if f.cursor >= len(svcs) {
		f.cursor = 0
	}
	return written
}

// FIG2_1 carries programme service long labels.
type FIG2_1 struct{ inner *fig2ServiceLabels }

func NewFIG2_1(ens *ensemble.Ensemble) *FIG2_1 {
	return &FIG2_1{inner: newFIG2ServiceLabels(ens, true)}
}
func (f *FIG2_1) FIGType() uint8               { return 2 }
func (f *FIG2_1) FIGExt() uint8                { return 1 }
func (f *FIG2_1) Rate() Rate                   { return RateB }
func (f *FIG2_1) Fill(buf []byte) int          { return f.inner.fill(buf, 1) }
func (f *FIG2_1) CompleteFigTransmitted() bool { return f.inner.cursor == 0 }

// FIG2_5 carries data service long labels.
type FIG2_5 struct{ inner *fig2ServiceLabels }

func NewFIG2_5(ens *ensemble.Ensemble) *FIG2_5 {
	return &FIG2_5{inner: newFIG2ServiceLabels(ens, false)}
}
func (f *FIG2_5) FIGType() uint8               { return 2 }
func (f *FIG2_5) FIGExt() uint8                { return 5 }
func (f *FIG2_5) Rate() Rate                   { return RateB }
func (f *FIG2_5) Fill(buf []byte) int          { return f.inner.fill(buf, 5) }
func (f *FIG2_5) CompleteFigTransmitted() bool { return f.inner.cursor == 0 }

// FIG2_4 carries service-component long labels (§4.4).
type FIG2_4 struct {
	ens          *ensemble.Ensemble
	cursor       int
	perComponent map[componentKey]*fig2Segments
}

type componentKey struct {
	sid   uint32
	scids uint8
}

func NewFIG2_4(ens *ensemble.Ensemble) *FIG2_4 {
	return &FIG2_4{ens: ens, perComponent: make(map[componentKey]*fig2Segments)}
}

func (f *FIG2_4) FIGType() uint8 { return 2 }
func (f *FIG2_4) FIGExt() uint8  { return 4 }
func (f *FIG2_4) Rate() Rate     { return RateB }

func (f *FIG2_4) Fill(buf []byte) int {
	comps := f.ens.Components()
	written := 0
	for f.cursor < len(comps) {
		c := comps[f.cursor]
		if c.Short.Long == "" {
			f.cursor++
			continue
		}
		key := componentKey{c.SId, c.SCIdS}
		seg, ok := f.perComponent[key]
		if !ok {
			seg = &fig2Segments{}
			f.perComponent[key] = seg
		}
		if !seg.ready() {
			seg.load(c.Short.Long)
		}
		svcType, _ := f.ens.ServiceType(c.SId)
		isProgramme := svcType == ensemble.ServiceTypeAudio
		idLen := 5
		if isProgramme {
			idLen = 3
		}
		first := seg.cursor == 0
		segBytes := seg.currentSegment()
		need := 2 + idLen + len(segBytes)
		if first {
			need += 3
		}
		if len(buf)-written < need {
			break
		}
		out := buf[written:]
		writeFIG2Header(out, need-2, seg.toggleFlag(), uint8(seg.cursor), 4)
		off := 2
		if isProgramme {
			out[off] = c.SCIdS & 0x0F
			out[off+1] = byte(c.SId >> 8)
			out[off+2] = byte(c.SId)
			off += 3
		} else {
			out[off] = c.SCIdS & 0x0F
			out[off+1] = byte(c.SId >> 24)
			out[off+2] = byte(c.SId >> 16)
			out[off+3] = byte(c.SId >> 8)
			out[off+4] = byte(c.SId)
			off += 5
		}
		if first {
			writeExtendedLabelHeader(out[off:], seg.segmentCount())
			off += 3
		}
		copy(out[off:], seg.advance())
		written += need
		if seg.complete() {
			seg.clear()
			f.cursor++
		}
	}
	if f.cursor >= len(comps) {
		f.cursor = 0
	}
	return written
}

func (f *FIG2_4) CompleteFigTransmitted() bool { return f.cursor == 0 }
