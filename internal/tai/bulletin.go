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

// Package tai maintains the current TAI-UTC offset by downloading,
// caching and parsing IETF leap-second bulletins (§4.3).
package tai

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

// ntpUnixEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01).
const ntpUnixEpochOffset = 2208988800

// BulletinStatus is the state-machine position of one bulletin source
// (§4.3: Empty -> Downloaded -> Parsed -> Usable -> Expired).
type BulletinStatus uint8

const (
	StatusEmpty BulletinStatus = iota
	StatusDownloaded
	StatusParsed
	StatusUsable
	StatusExpired
)

func (s BulletinStatus) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusDownloaded:
		return "downloaded"
	case StatusParsed:
		return "parsed"
	case StatusUsable:
		return "usable"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// BulletinState is the parsed, queryable form of a leap-second bulletin
// (§3 "BulletinState (TAI)").
type BulletinState struct {
	Status    BulletinStatus
	Offset    int   // TAI-UTC offset, seconds
	ExpiresAt int64 // Unix seconds
}

// ExpiresIn returns seconds until expiry relative to now (may be negative).
func (b BulletinState) ExpiresIn(nowUnix int64) int64 {
	return b.ExpiresAt - nowUnix
}

// Usable reports whether the bulletin is parsed and not yet expired,
// per §3's derived `usable = valid ∧ expires_in > 0`.
func (b BulletinState) Usable(nowUnix int64) bool {
	return (b.Status == StatusUsable || b.Status == StatusParsed) && b.ExpiresIn(nowUnix) > 0
}

var (
	leapLineRe   = regexp.MustCompile(`^(\d+)\s+(\d+)\s+#.*$`)
	expiryLineRe = regexp.MustCompile(`^#@\s+(\d+)\s*$`)
)

// ParseBulletin reads a leap-second bulletin text stream and returns its
// BulletinState as of nowUnix. Offsets whose NTP timestamp is in the
// future are ignored (§4.3), so the same bytes parsed at two different
// "now" instants can yield different offsets — but parsing the same
// bulletin twice at the same instant is idempotent (TAI idempotence,
// §7 property 9).
func ParseBulletin(r io.Reader, nowUnix int64) (BulletinState, error) {
	scanner := bufio.NewScanner(r)
	nowNTP := nowUnix + ntpUnixEpochOffset

	var (
		haveExpiry   bool
		expiresAtNTP int64
		bestNTP      int64
		bestOffset   int
		haveOffset   bool
	)

	for scanner.Scan() {
		line := scanner.Text()
		if m := expiryLineRe.FindStringSubmatch(line); m != nil {
			v, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return BulletinState{}, fmt.Errorf("tai: malformed expiry line %q: %w", line, err)
			}
			expiresAtNTP = v
			haveExpiry = true
			continue
		}
		if m := leapLineRe.FindStringSubmatch(line); m != nil {
			entryNTP, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return BulletinState{}, fmt.Errorf("tai: malformed leap line %q: %w", line, err)
			}
			offset, err := strconv.Atoi(m[2])
			if err != nil {
				return BulletinState{}, fmt.Errorf("tai: malformed leap line %q: %w", line, err)
			}
			if entryNTP > nowNTP {
				continue // future entry, not yet in effect
			}
			if !haveOffset || entryNTP > bestNTP {
				bestNTP = entryNTP
				bestOffset = offset
				haveOffset = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return BulletinState{}, fmt.Errorf("tai: reading bulletin: %w", err)
	}
	if !haveExpiry {
		return BulletinState{}, fmt.Errorf("tai: bulletin has no expiry (#@) line")
	}
	if !haveOffset {
		return BulletinState{}, fmt.Errorf("tai: bulletin has no applicable leap-second entry")
	}

	state := BulletinState{
		Status:    StatusParsed,
		Offset:    bestOffset,
		ExpiresAt: expiresAtNTP - ntpUnixEpochOffset,
	}
	if state.Usable(nowUnix) {
		state.Status = StatusUsable
	} else {
		state.Status = StatusExpired
	}
	return state, nil
}
