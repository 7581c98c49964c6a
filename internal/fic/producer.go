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

// Package fic implements the FIG producers and the FIB carousel that
// packs them into the Fast Information Channel (§4.4, §4.5).
package fic

import "time"

// Rate is a FIG's repetition-rate class (§8): the nominal maximum
// period within which at least one emission must occur.
type Rate uint8

const (
	RateA Rate = iota // 96 ms
	RateB             // 1 s
	RateC             // 10 s
	RateD             // 30 s
	RateE             // 2 min
)

// Period returns the nominal maximum repetition period for a rate class.
func (r Rate) Period() time.Duration {
	switch r {
	case RateA:
		return 96 * time.Millisecond
	case RateB:
		return time.Second
	case RateC:
		return 10 * time.Second
	case RateD:
		return 30 * time.Second
	case RateE:
		return 2 * time.Minute
	default:
		return time.Second
	}
}

func (r Rate) String() string {
	switch r {
	case RateA:
		return "A"
	case RateB:
		return "B"
	case RateC:
		return "C"
	case RateD:
		return "D"
	case RateE:
		return "E"
	default:
		return "?"
	}
}

// tickDuration is the fixed frame period driving deadline decrements
// (§4.5.1).
const tickDuration = 24 * time.Millisecond

// Producer is implemented by every FIG encoder (§4.4). A producer is
// stateless-per-call except for its own rotating cursor: the carousel
// owns deadline bookkeeping, the producer only knows how to serialize
// its next logical unit.
type Producer interface {
	// FIGType returns the 3-bit FIG type (0, 1 or 2).
	FIGType() uint8
	// FIGExt returns the FIG extension number (0/x, 1/x, 2/x).
	FIGExt() uint8
	// Rate returns the producer's current repetition-rate class. It may
	// change over time (e.g. FIG 0/19 during a transition, §4.5.2).
	Rate() Rate
	// Fill writes at most len(buf) bytes of the next logical unit into
	// buf and returns the number of bytes written. Returning 1 or 2 is a
	// contract violation (§4.4): the 2-byte FIG header alone must never
	// be emitted without payload. A producer that cannot fit its next
	// unit in len(buf) returns 0 without mutating its cursor.
	Fill(buf []byte) int
	// CompleteFigTransmitted reports whether the most recent non-zero
	// Fill call finished transmitting the producer's full logical
	// content (e.g. the last service in a rotating service list),
	// signalling the carousel to reset this producer's deadline.
	CompleteFigTransmitted() bool
}

// Key identifies a producer by its wire type/extension, used for
// per-FIG deadline-miss aggregation and periodicity bookkeeping.
type Key struct {
	Type uint8
	Ext  uint8
}

func KeyOf(p Producer) Key { return Key{Type: p.FIGType(), Ext: p.FIGExt()} }
