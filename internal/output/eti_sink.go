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

// Package output implements the output multiplexer (C10): an ordered
// list of ETI sinks plus the EDI pipeline, driven once per finished
// frame by the frame-timing loop (§4.10).
package output

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/digitalradio/dabmux/internal/config"
)

// ETISink accepts one complete ETI(NI) frame at a time and frames it
// onto the wire according to its own kind (§6 "ETI(NI) frame bytes").
type ETISink interface {
	WriteFrame(frame []byte) error
	Close() error
}

// rawSink concatenates frames verbatim (already 6144 bytes each, so no
// additional padding is needed beyond what Build produced).
type rawSink struct{ w io.WriteCloser }

func (s *rawSink) WriteFrame(frame []byte) error {
	_, err := s.w.Write(frame)
	return err
}
func (s *rawSink) Close() error { return s.w.Close() }

// streamedSink prepends a 2-byte big-endian length to each frame.
type streamedSink struct{ w io.WriteCloser }

func (s *streamedSink) WriteFrame(frame []byte) error {
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(frame)))
	if _, err := s.w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := s.w.Write(frame)
	return err
}
func (s *streamedSink) Close() error { return s.w.Close() }

// framedSink writes a 4-byte total-frame-count header before the first
// frame, then `{2-byte length, payload}` per frame (§6).
type framedSink struct {
	w           io.WriteCloser
	totalFrames uint32
	wroteHeader bool
}

func (s *framedSink) WriteFrame(frame []byte) error {
	if !s.wroteHeader {
		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], s.totalFrames)
		if _, err := s.w.Write(hdr[:]); err != nil {
			return err
		}
		s.wroteHeader = true
	}
	var lenHdr [2]byte
	binary.BigEndian.PutUint16(lenHdr[:], uint16(len(frame)))
	if _, err := s.w.Write(lenHdr[:]); err != nil {
		return err
	}
	_, err := s.w.Write(frame)
	return err
}
func (s *framedSink) Close() error { return s.w.Close() }

// NewFileSink wraps a writer as one of the raw/streamed/framed ETI
// sink kinds (§6). totalFrames is only meaningful for ETISinkFramed.
func NewFileSink(kind config.ETISinkKind, w io.WriteCloser, totalFrames uint32) (ETISink, error) {
	switch kind {
	case config.ETISinkRaw:
		return &rawSink{w: w}, nil
	case config.ETISinkStreamed:
		return &streamedSink{w: w}, nil
	case config.ETISinkFramed:
		return &framedSink{w: w, totalFrames: totalFrames}, nil
	default:
		return nil, fmt.Errorf("output: %q is not a file-backed ETI sink kind", kind)
	}
}

// netSink wraps any io.WriteCloser (TCP server/client or UDP
// connection) that expects a continuous streamed-framed byte stream,
// matching the wire format of streamedSink (§6).
type netSink struct {
	w      io.WriteCloser
	kind   config.ETISinkKind
	failed bool
}

// NewNetSink wraps a dialed/accepted network connection as an ETI
// sink (§6 EDITransportKind siblings tcpserver/tcpclient/udp).
func NewNetSink(kind config.ETISinkKind, w io.WriteCloser) *netSink {
	return &netSink{w: w, kind: kind}
}

func (s *netSink) WriteFrame(frame []byte) error {
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(frame)))
	if _, err := s.w.Write(hdr[:]); err != nil {
		s.failed = true
		return err
	}
	if _, err := s.w.Write(frame); err != nil {
		s.failed = true
		return err
	}
	s.failed = false
	return nil
}
func (s *netSink) Close() error { return s.w.Close() }

// Failed reports whether the last write to this sink errored (§7
// error kind 6: "a failed sink is marked and skipped").
func (s *netSink) Failed() bool { return s.failed }
