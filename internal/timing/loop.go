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

// Package timing drives the per-frame pipeline (C11): pull sub-channel
// payloads, assemble FIC, build the ETI frame, dispatch it, and repeat
// at either a free-running 24ms pace (simul mode) or paced by the
// slowest downstream sink (input-paced mode), §4.11.
package timing

import (
	"context"
	"log/slog"
	"time"

	"github.com/digitalradio/dabmux/internal/config"
	"github.com/digitalradio/dabmux/internal/edi"
	"github.com/digitalradio/dabmux/internal/ensemble"
	"github.com/digitalradio/dabmux/internal/eti"
	"github.com/digitalradio/dabmux/internal/fic"
	"github.com/digitalradio/dabmux/internal/metrics"
	"github.com/digitalradio/dabmux/internal/output"
	"github.com/digitalradio/dabmux/internal/subchannel"
	"github.com/digitalradio/dabmux/internal/tai"
)

// framePeriod is the fixed ETI tick duration (§3, §4.11).
const framePeriod = 24 * time.Millisecond

// InputPacedSink is implemented by an ETI sink whose Write blocks
// until accepted by a downstream device, e.g. a hardware E1 card
// (§4.11 "input-paced mode").
type InputPacedSink interface {
	WriteFrame(frame []byte) error
}

// Loop owns the frame counter, EDI timestamp, FIC carousel and ETI
// assembler, and drives one tick per iteration (§4.11).
type Loop struct {
	ens       *ensemble.Ensemble
	facade    *subchannel.Facade
	carousel  *fic.Carousel
	assembler *eti.Assembler
	mux       *output.Multiplexer
	clock     *tai.Clock
	metrics   *metrics.Metrics

	mode           config.PacingMode
	fibsPerFrame   int
	inputPacedSink InputPacedSink
}

// New builds a frame-timing loop. initialFrame/initialTimestamp seed
// the ETI assembler's counters (tist_at_fct0, §4.6).
func New(
	ens *ensemble.Ensemble,
	facade *subchannel.Facade,
	carousel *fic.Carousel,
	mux *output.Multiplexer,
	clock *tai.Clock,
	m *metrics.Metrics,
	cfg config.TimingConfig,
	initialFrame uint64,
	initialTimestamp eti.Timestamp,
) *Loop {
	l := &Loop{
		ens:          ens,
		facade:       facade,
		carousel:     carousel,
		assembler:    eti.NewAssembler(ens, initialFrame, initialTimestamp),
		mux:          mux,
		clock:        clock,
		metrics:      m,
		mode:         cfg.Mode,
		fibsPerFrame: cfg.TransmissionMode.FIBsPerFrame(),
	}
	if cfg.MNSCPreV3 {
		l.assembler.EnableMNSCClock(time.Now().Unix())
	}
	return l
}

// SetInputPacedSink installs the blocking sink that governs the
// iteration cadence in input-paced mode (§4.11).
func (l *Loop) SetInputPacedSink(sink InputPacedSink) { l.inputPacedSink = sink }

// Run drives the loop until ctx is cancelled, returning the first
// fatal error encountered (§7 error kind 8: clock-not-set aborts).
func (l *Loop) Run(ctx context.Context) error {
	if _, err := l.clock.Offset(ctx); err != nil {
		return err
	}

	var lastTick time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		start := time.Now()
		if err := l.tick(ctx); err != nil {
			return err
		}

		switch l.mode {
		case config.PacingModeInputPaced:
			// Pacing is dictated entirely by the blocking sink inside
			// tick(); nothing more to wait for here.
		default:
			elapsed := time.Since(start)
			sleep := framePeriod - elapsed
			if sleep > 0 {
				time.Sleep(sleep)
			} else if !lastTick.IsZero() {
				slog.Warn("frame-timing loop overran its 24ms budget", "elapsed", elapsed)
			}
			lastTick = start
		}
	}
}

// tick performs the five per-iteration steps of §4.11: (a) advance
// frame counter and timestamps; (b) pull MSC payloads; (c) assemble
// FIC; (d) build the ETI frame; (e) dispatch.
func (l *Loop) tick(ctx context.Context) error {
	frame := l.assembler.Frame()

	offset, err := l.clock.Offset(ctx)
	if err != nil {
		slog.Warn("TAI offset unavailable this tick, reusing previous UTC offset", "error", err)
	} else {
		l.assembler.SetUTCOffset(edi.UTCOffsetFromTAI(offset))
	}

	subs := l.ens.SubChannels()
	mst := make(map[uint8][]byte, len(subs))
	sad := make(map[uint8]uint16, len(subs))
	tpl := make(map[uint8]uint8, len(subs))
	order := make([]uint8, 0, len(subs))
	for _, sc := range subs {
		sizeCU, _ := sc.SizeCU()
		bytesPerFrame := sizeCU * 8 // 1 CU = 8 bytes of MSC payload per 24ms frame
		mst[sc.SubChID] = l.facade.Read(sc.SubChID, bytesPerFrame, frame)
		sad[sc.SubChID] = uint16(sc.StartAddrCU)
		tpl[sc.SubChID] = protectionTPL(sc.Protection)
		order = append(order, sc.SubChID)
	}

	fibs := l.carousel.Tick(frame, l.fibsPerFrame)

	eframe := l.assembler.Build(l.fibsPerFrame, fibs, mst, tpl)

	if l.metrics != nil {
		l.metrics.FramesEmittedTotal.Inc()
	}

	result := l.mux.DispatchETI(eframe)
	if result.SimulSinkErr != nil {
		return result.SimulSinkErr
	}

	var fic32 []byte
	for _, f := range fibs {
		fic32 = append(fic32, f...)
	}
	ts := l.assembler.Timestamp()
	deti := edi.DetiFields{
		FICF:  true,
		ATSTF: true,
		MID:   l.ens.Mode,
		FP:    0,
		UTCOffset: edi.UTCOffsetFromTAI(offset),
		Seconds:   ts.Seconds,
		TSTA:      ts.Fraction << 7,
		FIC:       fic32,
	}
	subPayloads := edi.SubChannelPayloadsFrom(order, sad, tpl, mst)
	l.mux.DispatchEDI(deti, subPayloads, [2]int16{})

	if l.inputPacedSink != nil {
		if err := l.inputPacedSink.WriteFrame(eframe); err != nil {
			slog.Warn("input-paced sink write failed", "error", err)
		}
	}

	l.assembler.Tick()
	return nil
}

// protectionTPL encodes the sub-channel's Type/Protection/Level into
// the EDI estN tag's TPL byte (§4.7 step 3).
func protectionTPL(p ensemble.Protection) uint8 {
	if p.Kind == ensemble.ProtectionUEP {
		return uint8(p.TableIndex) & 0x1F
	}
	return 0x20 | uint8(p.Option&0x03)<<2 | uint8(p.Level&0x03)
}
