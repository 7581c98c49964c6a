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

package output

import (
	"log/slog"
	"sync"

	"github.com/digitalradio/dabmux/internal/edi"
	"github.com/digitalradio/dabmux/internal/metrics"
)

// namedSink pairs a sink with the name used in logs/metrics and a
// "simul" flag: failures on a simul sink are fatal to the frame-timing
// loop's pacing (§4.10 step 1), all others are merely skipped.
type namedSink struct {
	name  string
	sink  ETISink
	simul bool
	dead  bool
}

// EDIPipeline bundles the TAG assembler, PFT fragmenter and spreader
// for one EDI destination (§4.7-§4.9).
type EDIPipeline struct {
	Assembler *edi.Assembler
	PFT       *edi.PFT
	Spreader  *edi.Spreader
}

// Multiplexer holds the ordered ETI sink list and the EDI pipelines,
// dispatching each finished frame to both (§4.10).
type Multiplexer struct {
	mu       sync.Mutex
	sinks    []*namedSink
	pipelines []*EDIPipeline
	metrics  *metrics.Metrics
}

// New builds an empty Multiplexer.
func New(m *metrics.Metrics) *Multiplexer {
	return &Multiplexer{metrics: m}
}

// AddETISink appends an ETI sink, observed in insertion order (§4.10
// "ordered list of ETI sinks").
func (mux *Multiplexer) AddETISink(name string, sink ETISink, simul bool) {
	mux.mu.Lock()
	defer mux.mu.Unlock()
	mux.sinks = append(mux.sinks, &namedSink{name: name, sink: sink, simul: simul})
}

// AddEDIPipeline appends an EDI destination pipeline.
func (mux *Multiplexer) AddEDIPipeline(p *EDIPipeline) {
	mux.mu.Lock()
	defer mux.mu.Unlock()
	mux.pipelines = append(mux.pipelines, p)
}

// DispatchResult reports whether the paced (simul) sink, if any,
// failed — the frame-timing loop must treat that as fatal (§4.10/§7
// error kind 6 carve-out for the simul sink).
type DispatchResult struct {
	SimulSinkErr error
}

// DispatchETI writes frame to every ETI sink in order. A non-simul
// sink failure is logged and the sink is marked dead; a simul sink
// failure is returned so the caller can abort pacing.
func (mux *Multiplexer) DispatchETI(frame []byte) DispatchResult {
	mux.mu.Lock()
	sinks := make([]*namedSink, len(mux.sinks))
	copy(sinks, mux.sinks)
	mux.mu.Unlock()

	var result DispatchResult
	for _, s := range sinks {
		if s.dead {
			continue
		}
		if err := s.sink.WriteFrame(frame); err != nil {
			if mux.metrics != nil {
				mux.metrics.TransportErrorsTotal.WithLabelValues(s.name).Inc()
			}
			if s.simul {
				result.SimulSinkErr = err
				continue
			}
			slog.Warn("ETI sink write failed, marking dead", "sink", s.name, "error", err)
			mux.mu.Lock()
			s.dead = true
			mux.mu.Unlock()
		}
	}
	return result
}

// DispatchEDI builds one deti/estN TAG packet from d and subs for
// every registered pipeline, wraps it as an AF packet, PFT-fragments
// it and schedules the fragments on that pipeline's spreader (§4.10
// step 2).
func (mux *Multiplexer) DispatchEDI(d edi.DetiFields, subs []edi.SubChannelPayload, audioLevel [2]int16) {
	mux.mu.Lock()
	pipelines := make([]*EDIPipeline, len(mux.pipelines))
	copy(pipelines, mux.pipelines)
	mux.mu.Unlock()

	for _, p := range pipelines {
		payload := p.Assembler.BuildFrame(d, subs, audioLevel)
		af := p.Assembler.WrapAFPacket(payload)
		fragments, err := p.PFT.Assemble(af)
		if err != nil {
			slog.Warn("EDI PFT assembly failed", "error", err)
			continue
		}
		p.Spreader.SendAFPacket(fragments)
	}
}

// ReviveSink clears the dead flag for name, allowing periodic
// reconnect attempts to resume delivery (§7 error kind 6).
func (mux *Multiplexer) ReviveSink(name string) {
	mux.mu.Lock()
	defer mux.mu.Unlock()
	for _, s := range mux.sinks {
		if s.name == name {
			s.dead = false
		}
	}
}

// Close shuts down every sink.
func (mux *Multiplexer) Close() {
	mux.mu.Lock()
	defer mux.mu.Unlock()
	for _, s := range mux.sinks {
		if err := s.sink.Close(); err != nil {
			slog.Warn("error closing ETI sink", "sink", s.name, "error", err)
		}
	}
}
