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

package transition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntryPromotesToRepeatedAfterTimeout(t *testing.T) {
	t.Parallel()
	h := New[string](10 * time.Millisecond)
	fixed := time.Now()
	h.now = func() time.Time { return fixed }

	h.Update([]string{"cluster-1"})
	assert.Equal(t, StateNew, h.StateOf("cluster-1"))

	fixed = fixed.Add(20 * time.Millisecond)
	h.Update([]string{"cluster-1"})
	assert.Equal(t, StateRepeated, h.StateOf("cluster-1"))
}

func TestDeactivatedRepeatedEntryBecomesDisabledThenAbsent(t *testing.T) {
	t.Parallel()
	h := New[string](10 * time.Millisecond)
	fixed := time.Now()
	h.now = func() time.Time { return fixed }

	h.Update([]string{"cluster-1"})
	fixed = fixed.Add(20 * time.Millisecond)
	h.Update([]string{"cluster-1"})
	require.Equal(t, StateRepeated, h.StateOf("cluster-1"))

	h.Update(nil)
	assert.Equal(t, StateDisabled, h.StateOf("cluster-1"))

	fixed = fixed.Add(20 * time.Millisecond)
	h.Update(nil)
	assert.Equal(t, StateAbsent, h.StateOf("cluster-1"))
}

func TestReactivatingADisabledEntryRestartsAsNew(t *testing.T) {
	t.Parallel()
	h := New[string](10 * time.Millisecond)
	fixed := time.Now()
	h.now = func() time.Time { return fixed }

	h.Update([]string{"cluster-1"})
	h.Update(nil) // new -> disabled directly
	require.Equal(t, StateDisabled, h.StateOf("cluster-1"))

	h.Update([]string{"cluster-1"})
	assert.Equal(t, StateNew, h.StateOf("cluster-1"))
}

func TestActiveListsNewAndRepeatedOnly(t *testing.T) {
	t.Parallel()
	h := New[string](time.Millisecond)
	fixed := time.Now()
	h.now = func() time.Time { return fixed }

	h.Update([]string{"a", "b"})
	fixed = fixed.Add(5 * time.Millisecond)
	h.Update([]string{"a"}) // a -> repeated, b -> disabled

	assert.Equal(t, StateRepeated, h.StateOf("a"))
	assert.Equal(t, StateDisabled, h.StateOf("b"))
	assert.ElementsMatch(t, []string{"a"}, h.Active())
}
