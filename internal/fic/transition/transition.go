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

// Package transition implements the four-bucket announcement state
// machine FIG 0/18 and 0/19 need: an entry is new, repeated, disabled or
// absent entirely, with a configurable timeout moving it between
// buckets (§4.5.2, grounded on src/fig/TransitionHandler.h).
package transition

import "time"

// Handler tracks state for comparable entry keys T across successive
// Update calls. The caller decides is-active for each entry; Handler
// only buckets it.
type Handler[T comparable] struct {
	timeout time.Duration
	now     func() time.Time

	newEntries      map[T]time.Time
	repeatedEntries map[T]struct{}
	disabledEntries map[T]time.Time
}

// New builds a Handler with the given new/disabled hold timeout.
func New[T comparable](timeout time.Duration) *Handler[T] {
	return &Handler[T]{
		timeout:         timeout,
		now:             time.Now,
		newEntries:      make(map[T]time.Time),
		repeatedEntries: make(map[T]struct{}),
		disabledEntries: make(map[T]time.Time),
	}
}

// Update moves every entry in allActive between buckets according to
// its current activity, mirroring TransitionHandler::update_state.
// allActive must list every currently-active entry; anything
// previously seen but missing from this call is treated as inactive.
func (h *Handler[T]) Update(allActive []T) {
	now := h.now()
	active := make(map[T]struct{}, len(allActive))
	for _, e := range allActive {
		active[e] = struct{}{}
		h.activate(e, now)
	}
	for e := range h.newEntries {
		if _, ok := active[e]; !ok {
			h.deactivate(e, now)
		}
	}
	for e := range h.repeatedEntries {
		if _, ok := active[e]; !ok {
			h.deactivate(e, now)
		}
	}
	for e, until := range h.disabledEntries {
		if _, ok := active[e]; !ok && until.Before(now) {
			delete(h.disabledEntries, e)
		}
	}
}

func (h *Handler[T]) activate(e T, now time.Time) {
	if _, ok := h.repeatedEntries[e]; ok {
		return
	}
	if until, ok := h.newEntries[e]; ok {
		if !until.After(now) {
			h.repeatedEntries[e] = struct{}{}
			delete(h.newEntries, e)
		}
		return
	}
	if _, ok := h.disabledEntries[e]; ok {
		h.newEntries[e] = now.Add(h.timeout)
		delete(h.disabledEntries, e)
		return
	}
	h.newEntries[e] = now.Add(h.timeout)
}

func (h *Handler[T]) deactivate(e T, now time.Time) {
	if _, ok := h.disabledEntries[e]; ok {
		return
	}
	if _, ok := h.repeatedEntries[e]; ok {
		h.disabledEntries[e] = now.Add(h.timeout)
		delete(h.repeatedEntries, e)
		return
	}
	if _, ok := h.newEntries[e]; ok {
		h.disabledEntries[e] = now.Add(h.timeout)
		delete(h.newEntries, e)
	}
}

// State is the bucket an entry currently sits in.
type State uint8

const (
	StateAbsent State = iota
	StateNew
	StateRepeated
	StateDisabled
)

// StateOf reports which bucket e is currently in.
func (h *Handler[T]) StateOf(e T) State {
	if _, ok := h.repeatedEntries[e]; ok {
		return StateRepeated
	}
	if _, ok := h.newEntries[e]; ok {
		return StateNew
	}
	if _, ok := h.disabledEntries[e]; ok {
		return StateDisabled
	}
	return StateAbsent
}

// Active lists every entry currently in the new or repeated buckets,
// i.e. the set FIG 0/19 must announce this tick.
func (h *Handler[T]) Active() []T {
	out := make([]T, 0, len(h.newEntries)+len(h.repeatedEntries))
	for e := range h.newEntries {
		out = append(out, e)
	}
	for e := range h.repeatedEntries {
		out = append(out, e)
	}
	return out
}
