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

package config

// LogLevel selects the minimum slog level the multiplexer emits.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// TransmissionMode is the DAB transmission mode (ETSI EN 300 401), which
// governs the number of FIBs per ETI frame (§4.6) among other timing
// constants.
type TransmissionMode uint8

const (
	TransmissionModeI TransmissionMode = iota + 1
	TransmissionModeII
	TransmissionModeIII
	TransmissionModeIV
)

// FIBsPerFrame returns the number of FIBs carried by one ETI frame for
// this transmission mode: 3 for mode I, 4 otherwise.
func (m TransmissionMode) FIBsPerFrame() int {
	if m == TransmissionModeI {
		return 3
	}
	return 4
}

// ETISinkKind selects how an ETI(NI) sink frames the outgoing bytes (§6).
type ETISinkKind string

const (
	ETISinkRaw       ETISinkKind = "raw"
	ETISinkStreamed  ETISinkKind = "streamed"
	ETISinkFramed    ETISinkKind = "framed"
	ETISinkTCPServer ETISinkKind = "tcpserver"
	ETISinkTCPClient ETISinkKind = "tcpclient"
	ETISinkUDP       ETISinkKind = "udp"
)

// EDITransportKind selects the EDI destination's transport (§4.9).
type EDITransportKind string

const (
	EDITransportUDP       EDITransportKind = "udp"
	EDITransportTCPServer EDITransportKind = "tcpserver"
	EDITransportTCPClient EDITransportKind = "tcpclient"
)

// PacingMode selects the frame-timing loop's clock source (§4.11).
type PacingMode string

const (
	PacingModeSimul      PacingMode = "simul"
	PacingModeInputPaced PacingMode = "input-paced"
)
