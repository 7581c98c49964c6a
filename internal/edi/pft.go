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
	"fmt"

	"github.com/digitalradio/dabmux/internal/crc16"
	"github.com/klauspost/reedsolomon"
)

// PFT fragments and optionally Reed-Solomon protects AF packets into
// wire fragments per ETSI TS 102 821 §7.2 (C8).
type PFT struct {
	k                  int // RS data word length, max 207
	m                  int // number of recoverable fragments
	destPort           uint16
	pseq               uint16
	enableTransport    bool
	enableFragmentation bool
}

// ParityBytes is the fixed RS(255,207) parity length.
const ParityBytes = 48

// rsDataShards is the fixed RS(255,207) total data-shard count; chunks
// shorter than this are zero-padded up to it before encoding.
const rsDataShards = 207

// NewPFT builds a PFT fragmenter. k is the RS data word length (<=207,
// 0 disables Reed-Solomon), m is the number of fragments the scheme
// must be able to recover from loss.
func NewPFT(k, m int, destPort uint16) (*PFT, error) {
	if k > 207 {
		return nil, fmt.Errorf("edi: PFT chunk size %d too large (max 207)", k)
	}
	return &PFT{k: k, m: m, destPort: destPort, enableTransport: true, enableFragmentation: true}, nil
}

func ceilDiv(a, b int) int {
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}

// protect applies RS(255,207) FEC to the AF packet, returning the
// concatenation of (chunk, 48 parity bytes) for each chunk, plus the
// chunk length and the number of chunks used (§7.2.2).
func (p *PFT) protect(afPacket []byte) (rsBlock []byte, chunkLen, numChunks int, err error) {
	numChunks = ceilDiv(len(afPacket), p.k)
	chunkLen = ceilDiv(len(afPacket), numChunks)
	if chunkLen > 207 {
		return nil, 0, 0, fmt.Errorf("edi: PFT chunk length %d too large (max 207)", chunkLen)
	}

	zeroPad := numChunks*chunkLen - len(afPacket)
	padded := append(append([]byte{}, afPacket...), make([]byte, zeroPad)...)

	enc, err := reedsolomon.New(rsDataShards, ParityBytes)
	if err != nil {
		return nil, 0, 0, err
	}

	for i := 0; i < len(padded); i += chunkLen {
		chunk := make([]byte, rsDataShards)
		copy(chunk, padded[i:i+chunkLen])

		shards := make([][]byte, rsDataShards+ParityBytes)
		for j := 0; j < rsDataShards; j++ {
			shards[j] = []byte{chunk[j]}
		}
		for j := 0; j < ParityBytes; j++ {
			shards[rsDataShards+j] = make([]byte, 1)
		}
		if err := enc.Encode(shards); err != nil {
			return nil, 0, 0, err
		}

		rsBlock = append(rsBlock, padded[i:i+chunkLen]...)
		for j := 0; j < ParityBytes; j++ {
			rsBlock = append(rsBlock, shards[rsDataShards+j][0])
		}
	}
	return rsBlock, chunkLen, numChunks, nil
}

// protectAndFragment splits the (optionally RS-protected) AF packet
// into interleaved fragments (§7.2.2 "s_max"/"fragment_size").
func (p *PFT) protectAndFragment(afPacket []byte) (fragments [][]byte, chunkLen, numChunks int, err error) {
	enableRS := p.m > 0 && p.k > 0

	if enableRS {
		rsBlock, cl, nc, err := p.protect(afPacket)
		if err != nil {
			return nil, 0, 0, err
		}
		chunkLen, numChunks = cl, nc

		maxPayload := (numChunks * ParityBytes) / (p.m + 1)
		if maxPayload == 0 {
			maxPayload = 1
		}
		numFragments := ceilDiv(len(rsBlock), maxPayload)
		fragmentSize := ceilDiv(len(rsBlock), numFragments)

		fragments = make([][]byte, numFragments)
		for i := range fragments {
			fragments[i] = make([]byte, fragmentSize)
			for j := 0; j < fragmentSize; j++ {
				ix := j*numFragments + i
				if ix < len(rsBlock) {
					fragments[i][j] = rsBlock[ix]
				}
			}
		}
		return fragments, chunkLen, numChunks, nil
	}

	const maxPayloadNoRS = 1400
	numFragments := ceilDiv(len(afPacket), maxPayloadNoRS)
	fragmentSize := ceilDiv(len(afPacket), numFragments)
	fragments = make([][]byte, numFragments)
	for i := range fragments {
		start := i * fragmentSize
		end := start + fragmentSize
		if end > len(afPacket) {
			end = len(afPacket)
		}
		fragments[i] = append([]byte{}, afPacket[start:end]...)
	}
	return fragments, 0, 0, nil
}

// Assemble splits one AF packet into its wire-ready PF fragments,
// each carrying the PFT header (PSync/PSeq/Findex/Fcount/Plen,
// optional RSk/RSz, optional transport source/dest, CRC) per §7.2.1.
func (p *PFT) Assemble(afPacket []byte) ([][]byte, error) {
	fragments, chunkLen, _, err := p.protectAndFragment(afPacket)
	if err != nil {
		return nil, err
	}
	enableRS := p.m > 0 && p.k > 0
	numChunks := ceilDiv(len(afPacket), max1(p.k))
	zeroPad := 0
	if enableRS {
		zeroPad = numChunks*chunkLen - len(afPacket)
	}

	fcount := len(fragments)
	out := make([][]byte, 0, fcount)
	for findex, frag := range fragments {
		pkt := make([]byte, 0, 10+len(frag)+6)
		pkt = append(pkt, 'P', 'F')
		pkt = append(pkt, byte(p.pseq>>8), byte(p.pseq))
		pkt = append(pkt, byte(findex>>16), byte(findex>>8), byte(findex))
		pkt = append(pkt, byte(fcount>>16), byte(fcount>>8), byte(fcount))

		plen := uint16(len(frag))
		if enableRS {
			plen |= 0x8000
		}
		if p.enableTransport {
			plen |= 0x4000
		}
		pkt = append(pkt, byte(plen>>8), byte(plen))

		if enableRS {
			pkt = append(pkt, byte(chunkLen), byte(zeroPad))
		}
		if p.enableTransport {
			pkt = append(pkt, 0x00, 0x00) // source address, unused
			pkt = append(pkt, byte(p.destPort>>8), byte(p.destPort))
		}

		crc := crc16.Checksum(pkt)
		pkt = append(pkt, byte(crc>>8), byte(crc))
		pkt = append(pkt, frag...)

		out = append(out, pkt)
	}
	p.pseq++
	return out, nil
}

func max1(k int) int {
	if k <= 0 {
		return 1
	}
	return k
}
