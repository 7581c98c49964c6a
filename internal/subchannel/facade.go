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

// Package subchannel is the uniform pull interface over heterogeneous
// sub-channel input adapters (§1, §4.2). The adapters themselves (file,
// FIFO, UDP, ZeroMQ, STI-D) are external collaborators; this package only
// defines the contract and the per-tick buffering/underrun policy.
package subchannel

import (
	"log/slog"
	"sync"
	"time"

	"github.com/digitalradio/dabmux/internal/logging"
	"github.com/digitalradio/dabmux/internal/metrics"
)

// Reader is implemented by a sub-channel input adapter. Read must not
// block for longer than one 24 ms tick; a blocking adapter that exceeds
// this is a contract violation the façade logs but cannot prevent (§4.2).
type Reader interface {
	// Read fills dst[:n] with up to len(dst) bytes and returns n. It may
	// return fewer bytes than len(dst); the façade zero-pads the rest.
	Read(dst []byte) (n int, err error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(dst []byte) (int, error)

func (f ReaderFunc) Read(dst []byte) (int, error) { return f(dst) }

// Facade pulls exactly one buffer per sub-channel per tick, applying the
// silence/padding policy and rate-limited underrun logging (§4.2).
type Facade struct {
	mu       sync.RWMutex
	readers  map[uint8]Reader
	limiter  *logging.RateLimiter
	metrics  *metrics.Metrics
}

// New creates an empty façade. windowFrames controls how often a
// persistently-underrunning sub-channel is logged (default 250 frames,
// i.e. once per 6 s, per §4.2/§7).
func New(m *metrics.Metrics, windowFrames uint64) *Facade {
	return &Facade{
		readers: make(map[uint8]Reader),
		limiter: logging.NewRateLimiter(windowFrames),
		metrics: m,
	}
}

// SetReader installs (or replaces) the adapter for a sub-channel.
func (f *Facade) SetReader(subChID uint8, r Reader) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readers[subChID] = r
}

// RemoveReader uninstalls a sub-channel's adapter.
func (f *Facade) RemoveReader(subChID uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.readers, subChID)
}

// Read pulls requiredBytes for subChID into a freshly allocated buffer,
// zero-padding (silence) for any shortfall as required by §4.2. If no
// adapter is installed the whole buffer is silence.
func (f *Facade) Read(subChID uint8, requiredBytes int, frame uint64) []byte {
	buf := make([]byte, requiredBytes)
	f.mu.RLock()
	r, ok := f.readers[subChID]
	f.mu.RUnlock()
	if !ok {
		return buf
	}

	start := time.Now()
	n, err := r.Read(buf)
	elapsed := time.Since(start)
	if f.metrics != nil {
		f.metrics.SubChannelReadSeconds.WithLabelValues(subChIDLabel(subChID)).Observe(elapsed.Seconds())
	}
	if err != nil && n <= 0 {
		n = 0
	}
	if n < requiredBytes {
		for i := n; i < requiredBytes; i++ {
			buf[i] = 0
		}
		if f.metrics != nil {
			f.metrics.SubChannelUnderrunTotal.WithLabelValues(subChIDLabel(subChID)).Inc()
		}
		if emit, suppressed := f.limiter.Allow(subChIDLabel(subChID), frame); emit {
			slog.Warn("sub-channel input underrun, padding with silence",
				"subchannel_id", subChID, "requested", requiredBytes, "got", n, "suppressed", suppressed)
		}
	}
	if elapsed > 24*time.Millisecond {
		slog.Warn("sub-channel adapter blocked longer than one tick", "subchannel_id", subChID, "elapsed", elapsed)
	}
	return buf
}

func subChIDLabel(id uint8) string {
	const hexDigits = "0123456789abcdef"
	return string([]byte{'0', 'x', hexDigits[id>>4], hexDigits[id&0xF]})
}
