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

package edi

import (
	"testing"

	"github.com/klauspost/reedsolomon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProtectChunkRecoversFromErasedShards exercises the length-1-shard
// bridge between protect's byte-oriented RS(255,207) scheme and
// klauspost/reedsolomon's shard API (§8 testable property 8): it
// erases the maximum recoverable number of symbols from one chunk's
// codeword and reconstructs the original data byte-for-byte via the
// library's own Reconstruct/Verify.
func TestProtectChunkRecoversFromErasedShards(t *testing.T) {
	t.Parallel()
	p := &PFT{k: 100}

	af := make([]byte, 250)
	for i := range af {
		af[i] = byte(i * 7)
	}

	rsBlock, chunkLen, numChunks, err := p.protect(af)
	require.NoError(t, err)
	require.Equal(t, 3, numChunks)
	require.Greater(t, chunkLen, 48, "test erases shards within [0,48) of the data range")

	chunkStride := chunkLen + ParityBytes
	chunk := rsBlock[:chunkStride]

	// Rebuild the full 255-symbol codeword: transmitted data bytes,
	// then the untransmitted virtual-shortening zero tail, then parity.
	shards := make([][]byte, rsDataShards+ParityBytes)
	for j := 0; j < rsDataShards; j++ {
		if j < chunkLen {
			shards[j] = []byte{chunk[j]}
		} else {
			shards[j] = []byte{0}
		}
	}
	for j := 0; j < ParityBytes; j++ {
		shards[rsDataShards+j] = []byte{chunk[chunkLen+j]}
	}

	want := make([][]byte, len(shards))
	for i, s := range shards {
		want[i] = append([]byte{}, s...)
	}

	// Erase ParityBytes symbols total, split across data and parity,
	// the maximum this RS(255,207) scheme can recover.
	for i := 0; i < ParityBytes/2; i++ {
		shards[i*2] = nil
	}
	for i := 0; i < ParityBytes/2; i++ {
		shards[rsDataShards+i] = nil
	}

	enc, err := reedsolomon.New(rsDataShards, ParityBytes)
	require.NoError(t, err)
	require.NoError(t, enc.Reconstruct(shards))

	ok, err := enc.Verify(shards)
	require.NoError(t, err)
	assert.True(t, ok, "reconstructed codeword must verify against RS parity")

	for i := range shards {
		assert.Equal(t, want[i], shards[i], "shard %d must reconstruct byte-for-byte", i)
	}
}
