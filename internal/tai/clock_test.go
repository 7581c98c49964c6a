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

package tai_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/digitalradio/dabmux/internal/config"
	"github.com/digitalradio/dabmux/internal/tai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockOverrideIsServedWithoutNetwork(t *testing.T) {
	t.Parallel()
	c := tai.New(config.TAIConfig{}, nil)
	c.SetOverride(37)

	offset, err := c.Offset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 37, offset)

	st := c.Status()
	assert.True(t, st.Usable(st.ExpiresAt-1))
}

func TestClockSetURLsClearsOverride(t *testing.T) {
	t.Parallel()
	c := tai.New(config.TAIConfig{}, nil)
	c.SetOverride(37)
	c.SetURLs([]string{"https://example.invalid/leap-seconds.list"})

	_, err := c.Offset(context.Background())
	assert.Error(t, err, "no reachable source: clock should report not-set rather than silently reusing the cleared override")
}

func TestClockFallsBackToDiskCache(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "leap-seconds.cache")
	require.NoError(t, os.WriteFile(cachePath, []byte(
		"#@ 4102444800\n3692218600 37  # dabmux cached bulletin\n"), 0o644))

	c := tai.New(config.TAIConfig{CachePath: cachePath}, nil)
	offset, err := c.Offset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 37, offset)
}

func TestClockWithNoSourcesReportsNotSet(t *testing.T) {
	t.Parallel()
	c := tai.New(config.TAIConfig{CachePath: filepath.Join(t.TempDir(), "missing.cache")}, nil)
	_, err := c.Offset(context.Background())
	assert.Error(t, err)
}
