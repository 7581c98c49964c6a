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
	"log/slog"
	"sort"

	"github.com/digitalradio/dabmux/internal/crc16"
	"github.com/digitalradio/dabmux/internal/logging"
	"github.com/digitalradio/dabmux/internal/metrics"
)

// fibDataSize is the number of usable bytes in one FIB before the
// 0xFF terminator and CRC-16 (§3 "FIG packet container").
const fibDataSize = 30

// FIBSize is the total wire size of one FIB: data + terminator byte
// already counted in fibDataSize's 30, plus the 2-byte CRC.
const FIBSize = 32

type scheduledProducer struct {
	producer   Producer
	key        Key
	deadline   int64 // remaining nanoseconds until repetition-rate violation
	lastRate   Rate
}

// Carousel packs registered Producers into FIBs every 24 ms tick,
// enforcing each producer's repetition-rate deadline (§4.5).
type Carousel struct {
	scheduled []*scheduledProducer
	limiter   *logging.RateLimiter
	metrics   *metrics.Metrics
}

// New builds a carousel over the given producers, each initialized
// with a full deadline of its own rate-class period.
func New(producers []Producer, m *metrics.Metrics) *Carousel {
	c := &Carousel{
		limiter: logging.NewRateLimiter(250),
		metrics: m,
	}
	for _, p := range producers {
		c.scheduled = append(c.scheduled, &scheduledProducer{
			producer: p,
			key:      KeyOf(p),
			deadline: p.Rate().Period().Nanoseconds(),
			lastRate: p.Rate(),
		})
	}
	return c
}

// Tick decrements every producer's deadline by one frame period, packs
// fibsPerFrame FIBs (3 for transmission mode 1, 4 otherwise, per §3/§4.6),
// and returns their 32-byte wire representations (data + CRC-16).
func (c *Carousel) Tick(frame uint64, fibsPerFrame int) [][]byte {
	for _, s := range c.scheduled {
		s.deadline -= tickDuration.Nanoseconds()
		if r := s.producer.Rate(); r != s.lastRate {
			s.deadline = r.Period().Nanoseconds()
			s.lastRate = r
		}
	}

	candidates := make([]*scheduledProducer, len(c.scheduled))
	copy(candidates, c.scheduled)

	fibs := make([][]byte, fibsPerFrame)
	for fibIdx := 0; fibIdx < fibsPerFrame; fibIdx++ {
		fibs[fibIdx], candidates = c.packFIB(fibIdx, frame, candidates)
	}

	for _, s := range c.scheduled {
		if s.deadline < 0 {
			if emit, suppressed := c.limiter.Allow(figTag(s.key), frame); emit {
				slog.Warn("FIG repetition-rate deadline missed",
					"fig_type", s.key.Type, "fig_extension", s.key.Ext, "suppressed", suppressed)
			}
			if c.metrics != nil {
				c.metrics.FIGDeadlineMissTotal.WithLabelValues(figTypeLabel(s.key.Type), figExtLabel(s.key.Ext)).Inc()
			}
		}
	}

	return fibs
}

// packFIB implements §4.5.2's per-FIB packing algorithm and returns the
// finished 32-byte FIB plus the candidate list for the next FIB
// (producers that returned 0 bytes here are retried on the next FIB;
// producers never reached this FIB remain untouched).
func (c *Carousel) packFIB(fibIdx int, frame uint64, candidates []*scheduledProducer) ([]byte, []*scheduledProducer) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].deadline < candidates[j].deadline
	})

	buf := make([]byte, 0, fibDataSize)
	remaining := fibDataSize

	var rest []*scheduledProducer

	if fibIdx == 0 {
		var fig00, fig07 *scheduledProducer
		var kept []*scheduledProducer
		for _, s := range candidates {
			switch {
			case s.key.Type == 0 && s.key.Ext == 0 && fig00 == nil:
				fig00 = s
			case s.key.Type == 0 && s.key.Ext == 7 && fig07 == nil:
				fig07 = s
			default:
				kept = append(kept, s)
			}
		}
		candidates = kept
		if fig00 != nil && frame%4 == 0 {
			buf, remaining = c.emit(fig00, buf, remaining)
			if fig07 != nil {
				buf, remaining = c.emit(fig07, buf, remaining)
			}
		}
		// Whether or not frame%4==0, fig00/fig07 are withheld from the
		// general candidate list for this FIB: they are never scheduled
		// through the general Fill loop below, only through the
		// mandatory-placement branch above (§4.5.2 step 4). They remain
		// in c.scheduled and reappear in candidates on the next Tick.
	}

	i := 0
	for remaining > 0 && i < len(candidates) {
		s := candidates[i]
		i++
		n := s.producer.Fill(buf[len(buf):cap(buf)][:min(remaining, cap(buf)-len(buf))])
		if n == 0 {
			rest = append(rest, s)
			continue
		}
		if n < 3 {
			slog.Error("FIG producer contract violation: fill wrote fewer than 3 bytes",
				"fig_type", s.key.Type, "fig_extension", s.key.Ext, "bytes", n)
			rest = append(rest, s)
			continue
		}
		buf = buf[:len(buf)+n]
		remaining -= n
		if c.metrics != nil {
			c.metrics.FIGEmittedTotal.WithLabelValues(figTypeLabel(s.key.Type), figExtLabel(s.key.Ext)).Inc()
		}
		if s.producer.CompleteFigTransmitted() {
			s.deadline = s.lastRate.Period().Nanoseconds()
		}
		rest = append(rest, s)
	}
	rest = append(rest, candidates[i:]...)

	data := make([]byte, fibDataSize)
	copy(data, buf)
	for i := len(buf); i < fibDataSize; i++ {
		data[i] = 0xFF
	}
	wire := crc16.Append(data, data)
	return wire, rest
}

func (c *Carousel) emit(s *scheduledProducer, buf []byte, remaining int) ([]byte, int) {
	room := buf[len(buf):cap(buf)]
	if cap(room) > remaining {
		room = room[:remaining]
	} else {
		room = room[:cap(room)]
	}
	n := s.producer.Fill(room)
	if n < 3 {
		return buf, remaining
	}
	buf = buf[:len(buf)+n]
	remaining -= n
	if c.metrics != nil {
		c.metrics.FIGEmittedTotal.WithLabelValues(figTypeLabel(s.key.Type), figExtLabel(s.key.Ext)).Inc()
	}
	if s.producer.CompleteFigTransmitted() {
		s.deadline = s.lastRate.Period().Nanoseconds()
	}
	return buf, remaining
}

func figTag(k Key) string    { return figTypeLabel(k.Type) + "/" + figExtLabel(k.Ext) }
func figTypeLabel(t uint8) string { return string(rune('0' + t)) }
func figExtLabel(e uint8) string {
	const hex = "0123456789abcdef"
	if e < 16 {
		return string([]byte{hex[e]})
	}
	return string([]byte{hex[e>>4], hex[e&0xF]})
}
