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

package ensemble_test

import (
	"testing"

	"github.com/digitalradio/dabmux/internal/ensemble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s1Ensemble(t *testing.T) *ensemble.Ensemble {
	t.Helper()
	e := ensemble.New(0xABCD, 0xE1, 1)

	shortLabel, err := ensemble.NewLabel("Test    ", "Test")
	require.NoError(t, err)
	e.Short = shortLabel

	e.AddSubChannel(ensemble.SubChannel{
		SubChID:     1,
		Type:        ensemble.SubChannelDABPlusAudio,
		BitrateKbps: 128,
		StartAddrCU: 0,
		Protection: ensemble.Protection{
			Kind:   ensemble.ProtectionEEP,
			Option: 0,
			Level:  2, // displayed "3", i.e. EEP 3-A
		},
	})

	svcLabel, err := ensemble.NewLabel("Test    ", "Test")
	require.NoError(t, err)
	e.AddService(ensemble.Service{
		SId:       0x1000,
		Programme: true,
		Short:     svcLabel,
		Long:      svcLabel,
	})
	e.AddComponent(ensemble.Component{
		SId:     0x1000,
		SubChID: 1,
		Primary: true,
		Short:   svcLabel,
	})
	return e
}

func TestS1EnsembleValidates(t *testing.T) {
	t.Parallel()
	e := s1Ensemble(t)
	errs := e.Validate()
	assert.Empty(t, errs)
}

func TestS1SubChannelCUSizeMatchesScenario(t *testing.T) {
	t.Parallel()
	e := s1Ensemble(t)
	sc, ok := e.SubChannel(1)
	require.True(t, ok)
	size, err := sc.SizeCU()
	require.NoError(t, err)
	assert.Equal(t, 96, size, "S1: EEP 3-A at 128 kbps should occupy 96 CU")
}

func TestServiceTypeResolvesFromPrimaryComponent(t *testing.T) {
	t.Parallel()
	e := s1Ensemble(t)
	st, ok := e.ServiceType(0x1000)
	require.True(t, ok)
	assert.Equal(t, ensemble.ServiceTypeAudio, st)
}

func TestValidateDetectsCUOverlap(t *testing.T) {
	t.Parallel()
	e := ensemble.New(1, 1, 1)
	e.AddSubChannel(ensemble.SubChannel{
		SubChID: 1, Type: ensemble.SubChannelDABAudio, BitrateKbps: 128, StartAddrCU: 0,
		Protection: ensemble.Protection{Kind: ensemble.ProtectionEEP, Option: 0, Level: 2},
	})
	e.AddSubChannel(ensemble.SubChannel{
		SubChID: 2, Type: ensemble.SubChannelDABAudio, BitrateKbps: 128, StartAddrCU: 10,
		Protection: ensemble.Protection{Kind: ensemble.ProtectionEEP, Option: 0, Level: 2},
	})
	errs := e.Validate()
	require.NotEmpty(t, errs)
}

func TestValidateDetectsMissingSubChannelReference(t *testing.T) {
	t.Parallel()
	e := ensemble.New(1, 1, 1)
	e.AddComponent(ensemble.Component{SId: 5, SubChID: 9})
	errs := e.Validate()
	require.NotEmpty(t, errs)
}

func TestValidateRejectsOversizeLongLabel(t *testing.T) {
	t.Parallel()
	e := ensemble.New(1, 1, 1)
	label, err := ensemble.NewLabel("Short   ", "this long label text is deliberately far too long to fit in 32 bytes")
	require.NoError(t, err)
	e.Long = label
	errs := e.Validate()
	require.NotEmpty(t, errs)
}

func TestMutateBumpsGeneration(t *testing.T) {
	t.Parallel()
	e := ensemble.New(1, 1, 1)
	before := e.Generation()
	e.Mutate(func(e *ensemble.Ensemble) {
		e.EId = 2
	})
	assert.Greater(t, e.Generation(), before)
}

func TestSubChannelsSortedByID(t *testing.T) {
	t.Parallel()
	e := ensemble.New(1, 1, 1)
	e.AddSubChannel(ensemble.SubChannel{SubChID: 5, BitrateKbps: 8, Protection: ensemble.Protection{Kind: ensemble.ProtectionEEP, Level: 0}})
	e.AddSubChannel(ensemble.SubChannel{SubChID: 2, BitrateKbps: 8, Protection: ensemble.Protection{Kind: ensemble.ProtectionEEP, Level: 0}})
	got := e.SubChannels()
	require.Len(t, got, 2)
	assert.Equal(t, uint8(2), got[0].SubChID)
	assert.Equal(t, uint8(5), got[1].SubChID)
}
