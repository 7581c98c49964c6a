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

package ensemble

import "fmt"

// SubChannelType distinguishes the four sub-channel payload kinds (§3).
type SubChannelType uint8

const (
	SubChannelDABAudio SubChannelType = iota
	SubChannelDABPlusAudio
	SubChannelPacket
	SubChannelDataStream
)

// InputDescriptor names the collaborator that feeds a sub-channel's
// bytes each tick (§1 Non-goals: the adapter itself is external, only
// its address is modelled here).
type InputDescriptor struct {
	Proto string // e.g. "file", "fifo", "udp", "zmq", "sti-d"
	Name  string
}

// SubChannel is one MSC sub-channel (§3).
type SubChannel struct {
	SubChID      uint8
	Type         SubChannelType
	BitrateKbps  int
	StartAddrCU  int
	Protection   Protection
	Input        InputDescriptor

	// FECScheme is the packet-mode FEC scheme (FIG 0/14): 0 means no
	// FEC, 1 selects the single RS(204,188)-derived scheme this FIG
	// currently defines. Meaningful only when Type is SubChannelPacket.
	FECScheme uint8
}

// SizeCU returns the number of Capacity Units this sub-channel occupies,
// derived from its bitrate and protection profile (§3).
func (s SubChannel) SizeCU() (int, error) {
	if s.BitrateKbps <= 0 || s.BitrateKbps%8 != 0 {
		return 0, fmt.Errorf("subchannel %d: bitrate %d is not a positive multiple of 8 kbps", s.SubChID, s.BitrateKbps)
	}
	return s.Protection.CUSize(s.BitrateKbps)
}

// Range returns the [start, end) CU range occupied by this sub-channel.
func (s SubChannel) Range() (start, end int, err error) {
	size, err := s.SizeCU()
	if err != nil {
		return 0, 0, err
	}
	return s.StartAddrCU, s.StartAddrCU + size, nil
}

// TotalCU is the number of Capacity Units in one CIF (§3, §4.6).
const TotalCU = 864
