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

package ensemble

// LinkageSet describes one FIG 0/6 service-linking entry: a linkage set
// number shared by every service in Services that are interchangeable
// for a receiver following a linked broadcast (§3 "service linking").
type LinkageSet struct {
	LSN           uint16
	Active        bool
	Hard          bool
	International bool
	Services      []uint32
}

// FrequencyInfo is one FIG 0/21 entry: the alternative RF frequencies a
// receiver can retune to for the same ensemble or a linked one.
type FrequencyInfo struct {
	// RegionId groups entries sharing the same FI list, 0 when unused.
	RegionId uint8
	// RangeModulation distinguishes DAB (0), FM (1), DRM (... ) etc.
	RangeModulation uint8
	Frequencies     []uint32 // Hz, ascending
}

// OtherEnsembleInfo is one FIG 0/24 entry: another ensemble and the
// subset of this ensemble's services also carried there.
type OtherEnsembleInfo struct {
	EId      uint16
	Services []uint32
	Cont     bool // "continuous output" flag
}

// LinkageSets returns the ensemble's configured FIG 0/6 linkage sets.
func (e *Ensemble) LinkageSets() []LinkageSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]LinkageSet(nil), e.linkageSets...)
}

// SetLinkageSets replaces the linkage-set list. Callers mutate through
// Mutate so Generation is bumped consistently.
func (e *Ensemble) SetLinkageSets(sets []LinkageSet) { e.linkageSets = sets }

// FrequencyInfos returns the ensemble's configured FIG 0/21 entries.
func (e *Ensemble) FrequencyInfos() []FrequencyInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]FrequencyInfo(nil), e.frequencies...)
}

func (e *Ensemble) SetFrequencyInfos(fis []FrequencyInfo) { e.frequencies = fis }

// OtherEnsembles returns the ensemble's configured FIG 0/24 entries.
func (e *Ensemble) OtherEnsembles() []OtherEnsembleInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]OtherEnsembleInfo(nil), e.otherEnsembles...)
}

func (e *Ensemble) SetOtherEnsembles(oes []OtherEnsembleInfo) { e.otherEnsembles = oes }
