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

package timing_test

import (
	"context"
	"testing"
	"time"

	"github.com/digitalradio/dabmux/internal/config"
	"github.com/digitalradio/dabmux/internal/ensemble"
	"github.com/digitalradio/dabmux/internal/eti"
	"github.com/digitalradio/dabmux/internal/fic"
	"github.com/digitalradio/dabmux/internal/output"
	"github.com/digitalradio/dabmux/internal/subchannel"
	"github.com/digitalradio/dabmux/internal/tai"
	"github.com/digitalradio/dabmux/internal/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSink struct {
	frames [][]byte
}

func (s *countingSink) WriteFrame(frame []byte) error {
	cp := append([]byte{}, frame...)
	s.frames = append(s.frames, cp)
	return nil
}
func (s *countingSink) Close() error { return nil }

func s1Ensemble(t *testing.T) *ensemble.Ensemble {
	t.Helper()
	e := ensemble.New(0xABCD, 0xE1, 1)
	label, err := ensemble.NewLabel("Test    ", "Test")
	require.NoError(t, err)
	e.Short = label
	e.AddSubChannel(ensemble.SubChannel{
		SubChID: 1, Type: ensemble.SubChannelDABPlusAudio, BitrateKbps: 128,
		Protection: ensemble.Protection{Kind: ensemble.ProtectionEEP, Option: 0, Level: 2},
	})
	e.AddService(ensemble.Service{SId: 0x1000, Short: label})
	e.AddComponent(ensemble.Component{SId: 0x1000, SubChID: 1, Primary: true})
	return e
}

func TestLoopEmitsFixedSizeFrames(t *testing.T) {
	t.Parallel()
	e := s1Ensemble(t)
	facade := subchannel.New(nil, 250)
	var frameCounter uint64
	carousel := fic.New([]fic.Producer{
		fic.NewFIG0_0(e, func() uint64 { c := frameCounter; frameCounter++; return c }),
		fic.NewFIG1_0(e),
	}, nil)
	mux := output.New(nil)
	sink := &countingSink{}
	mux.AddETISink("test", sink, false)

	clock := tai.New(config.TAIConfig{}, nil)
	clock.SetOverride(37)

	l := timing.New(e, facade, carousel, mux, clock, nil,
		config.TimingConfig{Mode: config.PacingModeInputPaced, TransmissionMode: config.TransmissionModeI},
		0, eti.Timestamp{})
	l.SetInputPacedSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_ = l.Run(ctx)

	require.NotEmpty(t, sink.frames)
	assert.Len(t, sink.frames[0], eti.FrameSize)
}
