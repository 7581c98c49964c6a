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

package edi_test

import (
	"testing"

	"github.com/digitalradio/dabmux/internal/edi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleWithRSProducesHeaderedFragments(t *testing.T) {
	t.Parallel()
	p, err := edi.NewPFT(100, 3, 12000)
	require.NoError(t, err)

	af := make([]byte, 500)
	for i := range af {
		af[i] = byte(i)
	}

	frags, err := p.Assemble(af)
	require.NoError(t, err)
	require.NotEmpty(t, frags)
	for _, f := range frags {
		assert.Equal(t, byte('P'), f[0])
		assert.Equal(t, byte('F'), f[1])
	}
}

func TestAssembleWithoutRSFragmentsOnly(t *testing.T) {
	t.Parallel()
	p, err := edi.NewPFT(0, 0, 12000)
	require.NoError(t, err)

	af := make([]byte, 3000)
	frags, err := p.Assemble(af)
	require.NoError(t, err)
	assert.Greater(t, len(frags), 1, "3000 bytes with 1400-byte MTU must split into multiple fragments")
}

func TestAssembleIncrementsPSeqAcrossCalls(t *testing.T) {
	t.Parallel()
	p, err := edi.NewPFT(50, 1, 12000)
	require.NoError(t, err)

	af := make([]byte, 60)
	f1, err := p.Assemble(af)
	require.NoError(t, err)
	f2, err := p.Assemble(af)
	require.NoError(t, err)

	pseq1 := uint16(f1[0][2])<<8 | uint16(f1[0][3])
	pseq2 := uint16(f2[0][2])<<8 | uint16(f2[0][3])
	assert.Equal(t, pseq1+1, pseq2)
}

func TestNewPFTRejectsOversizedChunk(t *testing.T) {
	t.Parallel()
	_, err := edi.NewPFT(208, 1, 12000)
	assert.Error(t, err)
}

func TestAssembleMatchesKnownChunkingScenario(t *testing.T) {
	t.Parallel()
	// k=207, m=1, len=500: num_chunks=3, chunk_len=167, zero_pad=1,
	// rs_block=645, max_payload=72, num_fragments=9, fragment_size=72.
	p, err := edi.NewPFT(207, 1, 12000)
	require.NoError(t, err)

	af := make([]byte, 500)
	frags, err := p.Assemble(af)
	require.NoError(t, err)
	require.Len(t, frags, 9)

	const headerLen = 2 + 2 + 3 + 3 + 2 + 2 + 2 + 2 // PSync+PSeq+Findex+Fcount+Plen+RSk/RSz+source+dest
	for _, f := range frags {
		assert.Equal(t, headerLen+72+2, len(f), "each fragment carries a 72-byte payload plus a 2-byte CRC")
	}
}
