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

// writeFIG0Header writes the 2-byte FIG type 0 header: byte0 =
// {length:5, type:3}, byte1 = {C/N:1, OE:1, P/D:1, extension:5}. length
// is the number of bytes following the header (not including it).
func writeFIG0Header(buf []byte, length int, cn, oe, pd bool, ext uint8) {
	buf[0] = byte(length&0x1F) | (0 << 5)
	b1 := ext & 0x1F
	if cn {
		b1 |= 0x80
	}
	if oe {
		b1 |= 0x40
	}
	if pd {
		b1 |= 0x20
	}
	buf[1] = b1
}

// writeFIG1Header writes the 2-byte FIG type 1 header: byte0 =
// {length:5, type:3=1}, byte1 = {charset:4, OE:1, extension:3}.
func writeFIG1Header(buf []byte, length int, oe bool, charset, ext uint8) {
	buf[0] = byte(length&0x1F) | (1 << 5)
	b1 := ext & 0x07
	if oe {
		b1 |= 0x08
	}
	b1 |= (charset & 0x0F) << 4
	buf[1] = b1
}

// writeFIG2Header writes the 2-byte FIG type 2 header: byte0 =
// {length:5, type:3=2}, byte1 = {toggle:1, segIndex:3, rfu:1, ext:3}
// (§4.4 "FIG 2 segmentation").
func writeFIG2Header(buf []byte, length int, toggle bool, segIndex uint8, ext uint8) {
	buf[0] = byte(length&0x1F) | (2 << 5)
	b1 := ext & 0x07
	b1 |= (segIndex & 0x07) << 4
	if toggle {
		b1 |= 0x80
	}
	buf[1] = b1
}
