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
	"testing"

	"github.com/digitalradio/dabmux/internal/ensemble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIG2SegmentationMatchesS6(t *testing.T) {
	t.Parallel()
	ens := ensemble.New(1, 1, 1)
	ens.Long = ensemble.Label{Long: "Radio Français"}

	prod := NewFIG2_0(ens)
	buf := make([]byte, 32)
	n := prod.Fill(buf)
	require.Greater(t, n, 0)
	assert.True(t, prod.CompleteFigTransmitted())

	segCount := (buf[0] & 0x1F)
	_ = segCount
	toggleBefore := buf[1]&0x80 != 0

	ens.Long = ensemble.Label{Long: "Radio Svizzera Italiana"}
	require.Len(t, []byte(ens.Long.Long), 23)

	prod2 := prod // same producer: the toggle state carries over from the first label
	var segments [][]byte
	for {
		out := make([]byte, 32)
		n := prod2.Fill(out)
		require.Greater(t, n, 0)
		segments = append(segments, out[:n])
		if prod2.CompleteFigTransmitted() {
			break
		}
	}
	require.Len(t, segments, 2, "23 bytes should split into two <=16-byte segments")

	toggleAfter := segments[0][1]&0x80 != 0
	assert.NotEqual(t, toggleBefore, toggleAfter, "toggle must invert when label content changes")
}

func TestFIG2SegmentCountFormula(t *testing.T) {
	t.Parallel()
	s := &fig2Segments{}
	s.load("Radio Français") // 15 bytes -> 1 segment -> SegmentCount 0
	assert.Equal(t, uint8(0), s.segmentCount())

	s.load("Radio Svizzera Italiana") // 23 bytes -> 2 segments -> SegmentCount 1
	assert.Equal(t, uint8(1), s.segmentCount())
}
