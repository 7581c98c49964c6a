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

package eti

// mnscSource yields the next 16-bit MNSC value on each frame, used by
// the optional pre-v3 BCD wall-clock compatibility mode (§4.6 "MNSC
// time", REDESIGN/Open Questions: default off).
type mnscSource interface {
	Next() (hi, lo byte)
}

// bcdClockMNSC spreads a BCD-encoded wall clock across four successive
// frames: seconds, minutes, hours, then date (day and month; the year is
// not carried), cycling every 4 frames. The clock starts at startUnix and
// advances with the frame count, 24 ms per frame.
type bcdClockMNSC struct {
	unixSeconds int64
	frames      int64
	slot        int
}

func newMNSCSource(startUnix int64) *bcdClockMNSC {
	return &bcdClockMNSC{unixSeconds: startUnix}
}

func bcd(v int) byte {
	return byte(((v / 10) << 4) | (v % 10))
}

func (m *bcdClockMNSC) Next() (hi, lo byte) {
	const secsPerDay = 86400
	now := m.unixSeconds + m.frames*24/1000
	days := now / secsPerDay
	secOfDay := now % secsPerDay
	hour := int(secOfDay / 3600)
	minute := int((secOfDay % 3600) / 60)
	second := int(secOfDay % 60)

	// Civil date from days-since-epoch (1970-01-01), the inverse of the
	// Julian-day computation in package fic's mjd().
	y, mo, d := civilFromDays(days)

	switch m.slot {
	case 0:
		hi, lo = bcd(second), 0
	case 1:
		hi, lo = bcd(minute), 0
	case 2:
		hi, lo = bcd(hour), 0
	case 3:
		hi = bcd(d)
		lo = bcd(mo)
		_ = y
	}

	m.frames++
	m.slot++
	if m.slot >= 4 {
		m.slot = 0
	}
	return hi, lo
}

// civilFromDays converts a day count since 1970-01-01 to a proleptic
// Gregorian (year, month, day), the inverse of the Julian-day
// computation mjd() performs in the FIG 0/10 producer.
func civilFromDays(days int64) (year, month, day int) {
	z := days + 719468
	era := z / 146097
	if z < 0 {
		era = (z - 146096) / 146097
	}
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d := doy - (153*mp+2)/5 + 1
	m := mp + 3
	if mp >= 10 {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}
	return int(y), int(m), int(d)
}
