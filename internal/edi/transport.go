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
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Sender is a single EDI destination: it can take a raw PFT fragment
// and deliver it over the wire (§4.9, C9).
type Sender interface {
	Send(fragment []byte) error
	Close() error
}

// UDPSender writes each PFT fragment as one UDP datagram.
type UDPSender struct {
	conn *net.UDPConn
}

// NewUDPSender dials a UDP destination (§6 "EDI transport").
func NewUDPSender(addr string) (*UDPSender, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("edi: resolve udp addr %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("edi: dial udp %q: %w", addr, err)
	}
	return &UDPSender{conn: conn}, nil
}

func (u *UDPSender) Send(fragment []byte) error {
	_, err := u.conn.Write(fragment)
	return err
}

func (u *UDPSender) Close() error { return u.conn.Close() }

// TCPClientSender maintains an outgoing TCP connection, each fragment
// length-prefixed so the far end can frame the stream.
type TCPClientSender struct {
	mu   sync.Mutex
	addr string
	conn net.Conn
}

// NewTCPClientSender lazily dials addr on first Send; subsequent
// failures trigger a reconnect on the next call.
func NewTCPClientSender(addr string) *TCPClientSender {
	return &TCPClientSender{addr: addr}
}

func (c *TCPClientSender) Send(fragment []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		conn, err := net.Dial("tcp", c.addr)
		if err != nil {
			return fmt.Errorf("edi: dial tcp %q: %w", c.addr, err)
		}
		c.conn = conn
	}
	if err := writeFramed(c.conn, fragment); err != nil {
		c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *TCPClientSender) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// TCPServerSender accepts incoming connections and fans each fragment
// out to every connected peer, dropping peers on write error.
type TCPServerSender struct {
	mu    sync.Mutex
	ln    net.Listener
	peers map[net.Conn]struct{}
}

// NewTCPServerSender listens on addr and begins accepting peers.
func NewTCPServerSender(addr string) (*TCPServerSender, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("edi: listen tcp %q: %w", addr, err)
	}
	s := &TCPServerSender{ln: ln, peers: make(map[net.Conn]struct{})}
	go s.acceptLoop()
	return s, nil
}

func (s *TCPServerSender) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.peers[conn] = struct{}{}
		s.mu.Unlock()
		slog.Info("EDI TCP peer connected", "remote", conn.RemoteAddr())
	}
}

func (s *TCPServerSender) Send(fragment []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.peers {
		if err := writeFramed(conn, fragment); err != nil {
			conn.Close()
			delete(s.peers, conn)
		}
	}
	return nil
}

func (s *TCPServerSender) Close() error {
	s.mu.Lock()
	for conn := range s.peers {
		conn.Close()
	}
	s.peers = nil
	s.mu.Unlock()
	return s.ln.Close()
}

func writeFramed(conn net.Conn, fragment []byte) error {
	lenPrefix := []byte{byte(len(fragment) >> 24), byte(len(fragment) >> 16), byte(len(fragment) >> 8), byte(len(fragment))}
	if _, err := conn.Write(lenPrefix); err != nil {
		return err
	}
	_, err := conn.Write(fragment)
	return err
}

// Spreader implements the PFT time-spread scheduler (§4.9 "critical
// invariant"): fragments of one AF packet are scheduled at deadlines
// spread over the 24ms frame period and a dedicated loop wakes every
// 500µs to drain whatever is due. SendAFPacket only inserts into the
// deadline map; it never performs I/O itself.
type Spreader struct {
	sender         Sender
	spreadingFactor float64

	mu       sync.Mutex
	pending  map[time.Time][][]byte
	nowFunc  func() time.Time
}

// pollInterval is the scheduler's wakeup period (§4.9).
const pollInterval = 500 * time.Microsecond

// framePeriodUs is the ETI frame duration in microseconds.
const framePeriodUs = 24000

// NewSpreader builds a Spreader targeting sender, with spreadingFactor
// s >= 0 controlling how widely one AF packet's fragments are spaced
// across the frame period (s > 1.0 interleaves with later packets).
func NewSpreader(sender Sender, spreadingFactor float64) *Spreader {
	return &Spreader{
		sender:          sender,
		spreadingFactor: spreadingFactor,
		pending:         make(map[time.Time][][]byte),
		nowFunc:         time.Now,
	}
}

// SendAFPacket schedules fragments' deadlines without performing I/O
// (§4.9 "send_af_packet only inserts into the map").
func (s *Spreader) SendAFPacket(fragments [][]byte) {
	n := len(fragments)
	if n == 0 {
		return
	}
	intervalUs := s.spreadingFactor * float64(framePeriodUs) / float64(n)
	interval := time.Duration(intervalUs * float64(time.Microsecond))

	now := s.nowFunc()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, frag := range fragments {
		deadline := now.Add(time.Duration(i) * interval)
		s.pending[deadline] = append(s.pending[deadline], frag)
	}
}

// drainDue sends every fragment whose deadline has passed, returning
// the count sent.
func (s *Spreader) drainDue() int {
	now := s.nowFunc()
	s.mu.Lock()
	var due []time.Time
	for deadline := range s.pending {
		if !deadline.After(now) {
			due = append(due, deadline)
		}
	}
	var frags [][]byte
	for _, d := range due {
		frags = append(frags, s.pending[d]...)
		delete(s.pending, d)
	}
	s.mu.Unlock()

	for _, f := range frags {
		if err := s.sender.Send(f); err != nil {
			slog.Warn("EDI fragment send failed", "error", err)
		}
	}
	return len(frags)
}

// TestDrainDue exposes drainDue for tests outside this package; it is
// not meant for production callers, who should rely on Run.
func (s *Spreader) TestDrainDue() int { return s.drainDue() }

// TestSetNow overrides the Spreader's clock for deterministic tests.
func (s *Spreader) TestSetNow(now func() time.Time) { s.nowFunc = now }

// Run blocks, waking every 500µs to drain due fragments, until ctx is
// cancelled (§4.9, §5 "dedicated task").
func (s *Spreader) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.drainDue()
		}
	}
}
