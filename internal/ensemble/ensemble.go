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

// Package ensemble is the in-memory description of a DAB ensemble: its
// services, components and sub-channels (§3, §4.1). It is a flat arena
// addressed by stable integer IDs rather than a pointer graph, so FIG
// producers can iterate cheaply and the carousel never has to worry
// about cycles (§9).
package ensemble

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Ensemble is the root aggregate (§3). All mutation goes through
// Mutate, which takes the write lock, applies fn and bumps Generation;
// it does not call Validate — mirroring §9's "message queue drained
// between frames" design: callers are expected to call Mutate only
// between ticks.
type Ensemble struct {
	mu sync.RWMutex

	EId  uint16
	ECC  uint8
	Mode uint8 // transmission mode 1..4
	Short Label
	Long  Label

	services   map[uint32]*Service
	components []*Component
	subchannels map[uint8]*SubChannel

	// LTO is the local time offset in half-hour steps, signed, carried
	// by FIG 0/9 (§3, SUPPLEMENTED FEATURES #2).
	LTO int8
	// InternationalTableId selects the FIG 0/9 programme-type table.
	InternationalTableId uint8
	// ExtendedField enables the FIG 0/9 Ext field (international table
	// extension beyond the basic set).
	ExtendedField bool

	linkageSets    []LinkageSet
	frequencies    []FrequencyInfo
	otherEnsembles []OtherEnsembleInfo

	generation atomic.Uint64
}

// New creates an empty ensemble.
func New(eid uint16, ecc uint8, mode uint8) *Ensemble {
	return &Ensemble{
		EId:         eid,
		ECC:         ecc,
		Mode:        mode,
		services:    make(map[uint32]*Service),
		subchannels: make(map[uint8]*SubChannel),
	}
}

// Generation returns a monotonically increasing counter bumped on every
// successful Mutate call. FIG 0/0's change-flag logic (SUPPLEMENTED
// FEATURES #1) compares this across ticks to know when to raise the CIF
// change flag for one CIF after a reconfiguration.
func (e *Ensemble) Generation() uint64 {
	return e.generation.Load()
}

// AddSubChannel inserts or replaces a sub-channel definition.
func (e *Ensemble) AddSubChannel(sc SubChannel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subchannels[sc.SubChID] = &sc
}

// AddService inserts or replaces a service definition.
func (e *Ensemble) AddService(svc Service) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.services[svc.SId] = &svc
}

// AddComponent appends a component.
func (e *Ensemble) AddComponent(c Component) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.components = append(e.components, &c)
}

// Mutate runs fn under the write lock, then bumps Generation. fn should
// not block; the carousel and timing loop only ever call the read-side
// accessors, so Mutate is safe to call from a remote-control task
// concurrently with ticking (§9).
func (e *Ensemble) Mutate(fn func(*Ensemble)) {
	e.mu.Lock()
	fn(e)
	e.mu.Unlock()
	e.generation.Add(1)
}

// SubChannel looks up a sub-channel by id.
func (e *Ensemble) SubChannel(id uint8) (SubChannel, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sc, ok := e.subchannels[id]
	if !ok {
		return SubChannel{}, false
	}
	return *sc, true
}

// SubChannels returns all sub-channels sorted by SubChID ascending, the
// order the MST concatenates payloads in (§4.6).
func (e *Ensemble) SubChannels() []SubChannel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]SubChannel, 0, len(e.subchannels))
	for _, sc := range e.subchannels {
		out = append(out, *sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubChID < out[j].SubChID })
	return out
}

// Service looks up a service by SId.
func (e *Ensemble) Service(sid uint32) (Service, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.services[sid]
	if !ok {
		return Service{}, false
	}
	return *s, true
}

// Services returns all services sorted by SId ascending.
func (e *Ensemble) Services() []Service {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Service, 0, len(e.services))
	for _, s := range e.services {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SId < out[j].SId })
	return out
}

// ComponentsForService iterates the components owned by sid, in
// insertion order.
func (e *Ensemble) ComponentsForService(sid uint32) []Component {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Component
	for _, c := range e.components {
		if c.SId == sid {
			out = append(out, *c)
		}
	}
	return out
}

// Components returns every component, in insertion order.
func (e *Ensemble) Components() []Component {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Component, len(e.components))
	for i, c := range e.components {
		out[i] = *c
	}
	return out
}

// PrimaryComponent returns the primary component of a service, if any.
func (e *Ensemble) PrimaryComponent(sid uint32) (Component, bool) {
	for _, c := range e.ComponentsForService(sid) {
		if c.Primary {
			return c, true
		}
	}
	return Component{}, false
}

// ServiceType resolves a service's type via its primary component's
// sub-channel type (§3 "derived" field).
func (e *Ensemble) ServiceType(sid uint32) (ServiceType, bool) {
	primary, ok := e.PrimaryComponent(sid)
	if !ok {
		return 0, false
	}
	sc, ok := e.SubChannel(primary.SubChID)
	if !ok {
		return 0, false
	}
	if sc.Type == SubChannelPacket || sc.Type == SubChannelDataStream {
		return ServiceTypeData, true
	}
	return ServiceTypeAudio, true
}

// Validate runs the consistency checks §4.1 mandates: CU non-overlap,
// label encodability/length, unique sub-channel ids, and packet
// component sub-channel typing. It is called once at startup and after
// every Mutate in the embedding application's control loop.
func (e *Ensemble) Validate() []error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var errs []error

	type cuRange struct {
		id         uint8
		start, end int
	}
	var ranges []cuRange
	for id, sc := range e.subchannels {
		start, end, err := sc.Range()
		if err != nil {
			errs = append(errs, fmt.Errorf("subchannel %d: %w", id, err))
			continue
		}
		if start < 0 || end > TotalCU {
			errs = append(errs, fmt.Errorf("subchannel %d: CU range [%d,%d) outside [0,%d)", id, start, end, TotalCU))
		}
		ranges = append(ranges, cuRange{id, start, end})
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })
	for i := 1; i < len(ranges); i++ {
		if ranges[i].start < ranges[i-1].end {
			errs = append(errs, fmt.Errorf("subchannel %d CU range [%d,%d) overlaps subchannel %d's [%d,%d)",
				ranges[i].id, ranges[i].start, ranges[i].end,
				ranges[i-1].id, ranges[i-1].start, ranges[i-1].end))
		}
	}

	if err := e.Short.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ensemble short label: %w", err))
	}
	if err := e.Long.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ensemble long label: %w", err))
	}

	for _, svc := range e.services {
		if err := svc.Short.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("service 0x%x short label: %w", svc.SId, err))
		}
		if err := svc.Long.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("service 0x%x long label: %w", svc.SId, err))
		}
	}

	for _, c := range e.components {
		sc, ok := e.subchannels[c.SubChID]
		if !ok {
			errs = append(errs, fmt.Errorf("component of service 0x%x references nonexistent subchannel %d", c.SId, c.SubChID))
			continue
		}
		if c.IsPacket && sc.Type != SubChannelPacket {
			errs = append(errs, fmt.Errorf("component of service 0x%x declares packet mode but subchannel %d is not packet type", c.SId, c.SubChID))
		}
		if err := c.Short.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("component of service 0x%x short label: %w", c.SId, err))
		}
	}

	return errs
}
