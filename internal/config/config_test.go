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

package config_test

import (
	"testing"

	"github.com/digitalradio/dabmux/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDestination() config.EDIDestinationConfig {
	return config.EDIDestinationConfig{
		Transport:    config.EDITransportUDP,
		Host:         "239.1.2.3",
		Port:         12345,
		FragmentSize: 207,
		RSParity:     1,
		SpreadFactor: 1.0,
	}
}

func TestValidateAcceptsDefaultDestination(t *testing.T) {
	t.Parallel()
	cfg := config.Config{EDIDestinations: []config.EDIDestinationConfig{validDestination()}}
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsOversizeFragment(t *testing.T) {
	t.Parallel()
	dest := validDestination()
	dest.FragmentSize = 208
	cfg := config.Config{EDIDestinations: []config.EDIDestinationConfig{dest}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsTooMuchParity(t *testing.T) {
	t.Parallel()
	dest := validDestination()
	dest.RSParity = 6
	cfg := config.Config{EDIDestinations: []config.EDIDestinationConfig{dest}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeParameters(t *testing.T) {
	t.Parallel()
	dest := validDestination()
	dest.RSParity = -1
	cfg := config.Config{EDIDestinations: []config.EDIDestinationConfig{dest}}
	assert.Error(t, cfg.Validate())
}

func TestTransmissionModeFIBsPerFrame(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 3, config.TransmissionModeI.FIBsPerFrame())
	assert.Equal(t, 4, config.TransmissionModeII.FIBsPerFrame())
	assert.Equal(t, 4, config.TransmissionModeIII.FIBsPerFrame())
	assert.Equal(t, 4, config.TransmissionModeIV.FIBsPerFrame())
}
