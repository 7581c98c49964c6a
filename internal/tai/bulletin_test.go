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

package tai_test

import (
	"strings"
	"testing"

	"github.com/digitalradio/dabmux/internal/tai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBulletin = `#	Updated through IERS Bulletin C65
#	File expires on:  28 December 2023
#
#@	3913488000
#
2272060800	10	# 1 Jan 1972
2287785600	11	# 1 Jul 1972
2303683200	12	# 1 Jan 1973
3692217600	37	# 1 Jan 2017
4102444800	38	# far-future entry, must be ignored
`

func TestParseBulletinUsesMostRecentPastEntry(t *testing.T) {
	t.Parallel()
	// now = NTP 3692217600 + 1000 (just after the 2017 leap second, well before expiry)
	now := int64(3692217600+1000) - 2208988800
	s, err := tai.ParseBulletin(strings.NewReader(sampleBulletin), now)
	require.NoError(t, err)
	assert.Equal(t, 37, s.Offset)
	assert.Equal(t, tai.StatusUsable, s.Status)
}

func TestParseBulletinIgnoresFutureEntries(t *testing.T) {
	t.Parallel()
	now := int64(3692217600+1000) - 2208988800
	s, err := tai.ParseBulletin(strings.NewReader(sampleBulletin), now)
	require.NoError(t, err)
	assert.NotEqual(t, 38, s.Offset)
}

func TestParseBulletinMarksExpiredWhenPastExpiry(t *testing.T) {
	t.Parallel()
	now := int64(3913488000+10) - 2208988800
	s, err := tai.ParseBulletin(strings.NewReader(sampleBulletin), now)
	require.NoError(t, err)
	assert.Equal(t, tai.StatusExpired, s.Status)
	assert.False(t, s.Usable(now))
	assert.Less(t, s.ExpiresIn(now), int64(0))
}

func TestParseBulletinIsIdempotent(t *testing.T) {
	t.Parallel()
	now := int64(3692217600+1000) - 2208988800
	a, err := tai.ParseBulletin(strings.NewReader(sampleBulletin), now)
	require.NoError(t, err)
	b, err := tai.ParseBulletin(strings.NewReader(sampleBulletin), now)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseBulletinRejectsMissingExpiry(t *testing.T) {
	t.Parallel()
	_, err := tai.ParseBulletin(strings.NewReader("2272060800 10 # 1 Jan 1972\n"), 0)
	assert.Error(t, err)
}

func TestParseBulletinRejectsNoApplicableEntry(t *testing.T) {
	t.Parallel()
	_, err := tai.ParseBulletin(strings.NewReader("#@ 3913488000\n"), 0)
	assert.Error(t, err)
}
