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

// ComponentType enumerates the service-component types FIG 0/2, 0/3, 0/8
// carry (audio sub-types and data/packet application types collapse into
// this single tag for the purposes of the carousel).
type ComponentType uint16

// Component belongs to a Service and references a SubChannel (§3).
type Component struct {
	SId       uint32
	SubChID   uint8
	SCIdS     uint8 // 4-bit service component id within the service
	Type      ComponentType
	Short     Label
	Primary   bool

	// Language is the ISO-639-derived language code FIG 0/5 carries for
	// this component, 0 when unset.
	Language uint8

	// Packet-mode fields, meaningful only when the referenced
	// sub-channel's Type is SubChannelPacket.
	IsPacket    bool
	PacketSCId  uint16
	PacketAddr  uint16
	AppType     uint16
	IsDatagroup bool

	// Apps announces user-application information for FIG 0/13.
	Apps []UserApplication
}

// UserApplication is one FIG 0/13 entry.
type UserApplication struct {
	AppType uint16
	Data    []byte
}

// Service is the root addressable broadcast offering (§3).
type Service struct {
	SId        uint32
	IsDataSId  bool // true selects the 32-bit data-service SId form
	PTy        uint8
	Language   uint8
	Programme  bool
	Short      Label
	Long       Label
	Announcements uint16 // bitmap, FIG 0/18/0/19
	Clusters      []uint8
}

// ServiceType is derived from the primary component's sub-channel type
// (§3).
type ServiceType uint8

const (
	ServiceTypeAudio ServiceType = iota
	ServiceTypeData
)
