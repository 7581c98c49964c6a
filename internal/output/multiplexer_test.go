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

package output_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/digitalradio/dabmux/internal/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestRawSinkWritesFrameVerbatim(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	sink, err := output.NewFileSink("raw", nopCloser{buf}, 0)
	require.NoError(t, err)

	frame := bytes.Repeat([]byte{0xAA}, 6144)
	require.NoError(t, sink.WriteFrame(frame))
	assert.Equal(t, frame, buf.Bytes())
}

func TestStreamedSinkPrependsLength(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	sink, err := output.NewFileSink("streamed", nopCloser{buf}, 0)
	require.NoError(t, err)

	frame := bytes.Repeat([]byte{0xBB}, 100)
	require.NoError(t, sink.WriteFrame(frame))
	got := buf.Bytes()
	assert.Equal(t, []byte{0x00, 0x64}, got[:2])
	assert.Equal(t, frame, got[2:])
}

func TestFramedSinkWritesCountHeaderOnce(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	sink, err := output.NewFileSink("framed", nopCloser{buf}, 2)
	require.NoError(t, err)

	frame := bytes.Repeat([]byte{0xCC}, 10)
	require.NoError(t, sink.WriteFrame(frame))
	require.NoError(t, sink.WriteFrame(frame))

	got := buf.Bytes()
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x02}, got[:4])
	// first frame: 2-byte len + 10 bytes; second frame immediately after,
	// with no repeated count header.
	assert.Equal(t, []byte{0x00, 0x0A}, got[4:6])
	assert.Equal(t, []byte{0x00, 0x0A}, got[4+2+10:4+2+10+2])
}

type failingSink struct{ err error }

func (f *failingSink) WriteFrame(frame []byte) error { return f.err }
func (f *failingSink) Close() error                  { return nil }

func TestDispatchETIMarksNonSimulSinkDeadAfterFailure(t *testing.T) {
	t.Parallel()
	sink := &failingSink{err: errors.New("disk full")}
	mux := output.New(nil)
	mux.AddETISink("broken", sink, false)

	frame := make([]byte, 6144)
	r1 := mux.DispatchETI(frame)
	assert.NoError(t, r1.SimulSinkErr, "a non-simul sink's failure is never surfaced via SimulSinkErr")

	// Once marked dead, subsequent dispatches skip it rather than
	// attempting another write.
	r2 := mux.DispatchETI(frame)
	assert.NoError(t, r2.SimulSinkErr)
}

func TestDispatchETISurfacesSimulSinkFailure(t *testing.T) {
	t.Parallel()
	mux := output.New(nil)
	mux.AddETISink("simul", &failingSink{err: errors.New("pacing lost")}, true)

	frame := make([]byte, 6144)
	r := mux.DispatchETI(frame)
	assert.Error(t, r.SimulSinkErr)
}
