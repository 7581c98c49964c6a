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
	"time"

	"github.com/digitalradio/dabmux/internal/edi"
	"github.com/stretchr/testify/assert"
)

type fakeSender struct {
	sent [][]byte
}

func (f *fakeSender) Send(fragment []byte) error {
	f.sent = append(f.sent, fragment)
	return nil
}
func (f *fakeSender) Close() error { return nil }

func TestSpreaderOnlySendsFragmentsPastDeadline(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	s := edi.NewSpreader(sender, 1.0)
	fixedNow := time.Unix(2000, 0)
	s.TestSetNow(func() time.Time { return fixedNow })

	frags := [][]byte{{1}, {2}, {3}}
	s.SendAFPacket(frags)

	// Immediately after scheduling, only fragment 0 (deadline == now)
	// can be due; later fragments are spaced across the frame period.
	sent := s.TestDrainDue()
	assert.Equal(t, 1, sent)
}

func TestSpreaderDrainsAllAfterFramePeriodElapses(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	s := edi.NewSpreader(sender, 1.0)
	s.TestSetNow(func() time.Time { return time.Unix(1000, 0) })

	frags := [][]byte{{1}, {2}, {3}, {4}}
	s.SendAFPacket(frags)

	s.TestSetNow(func() time.Time { return time.Unix(1000, 0).Add(30 * time.Millisecond) })
	sent := s.TestDrainDue()
	assert.Equal(t, 4, sent)
	assert.Len(t, sender.sent, 4)
}
