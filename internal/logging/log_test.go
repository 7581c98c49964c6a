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

package logging_test

import (
	"testing"

	"github.com/digitalradio/dabmux/internal/config"
	"github.com/digitalradio/dabmux/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestNewReturnsLoggerForEveryLevel(t *testing.T) {
	t.Parallel()
	for _, lvl := range []config.LogLevel{
		config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarn, config.LogLevelError, "bogus",
	} {
		logger := logging.New(lvl)
		assert.NotNil(t, logger)
	}
}

func TestRateLimiterWindowing(t *testing.T) {
	t.Parallel()
	rl := logging.NewRateLimiter(250)

	emit, suppressed := rl.Allow("subch:1", 0)
	assert.True(t, emit)
	assert.Equal(t, uint64(0), suppressed)

	for frame := uint64(1); frame < 250; frame++ {
		emit, _ := rl.Allow("subch:1", frame)
		assert.False(t, emit)
	}

	emit, suppressed = rl.Allow("subch:1", 250)
	assert.True(t, emit)
	assert.Equal(t, uint64(249), suppressed)
}

func TestRateLimiterTagsAreIndependent(t *testing.T) {
	t.Parallel()
	rl := logging.NewRateLimiter(250)

	emitA, _ := rl.Allow("fig:0/1", 10)
	emitB, _ := rl.Allow("fig:1/0", 10)
	assert.True(t, emitA)
	assert.True(t, emitB)
}
