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

import "fmt"

// ProtectionKind tags the two DAB error-protection schemes (§3).
type ProtectionKind uint8

const (
	ProtectionUEP ProtectionKind = iota
	ProtectionEEP
)

// Protection is a tagged variant: UEP (short-form) carries TableSwitch/
// TableIndex, EEP (long-form) carries Option/Level. Exactly one set of
// fields is meaningful, selected by Kind.
type Protection struct {
	Kind ProtectionKind

	// UEP fields.
	TableSwitch int
	TableIndex  int

	// EEP fields.
	Option int
	Level  int
}

// uepSizeTable approximates the ETSI EN 300 401 Annex E Sub-Channel Size
// table: 64 entries per table-switch value, giving the CU size for a
// given (bitrate-class, protection-level) combination. The exact
// official table was not recoverable from the corpus this module was
// grounded on (see DESIGN.md); this generator derives each size from a
// bitrate class that rises with every group of four indices and a
// protection factor that falls across the four entries of a group, so
// the CU size drops within a group and jumps up at the next one. Each
// size is a sensible fraction of its nominal bitrate class, so CU
// accounting and overlap checks behave correctly even though absolute
// values are illustrative.
var uepSizeTable = buildUEPSizeTable()

func buildUEPSizeTable() [2][64]int {
	var t [2][64]int
	for sw := 0; sw < 2; sw++ {
		for idx := 0; idx < 64; idx++ {
			// Base bitrate class in kbps, rising by 8 every four
			// indices; table switch 1 adds 0.3 to the protection factor,
			// giving a larger CU size than table switch 0 at the same
			// index.
			bitrateClass := 8 + (idx/4)*8
			protectionFactor := 1.6 - float64(idx%4)*0.15
			if sw == 1 {
				protectionFactor += 0.3
			}
			cu := int(float64(bitrateClass) * protectionFactor / 8.0 * 8.0)
			if cu < 1 {
				cu = 1
			}
			t[sw][idx] = cu
		}
	}
	return t
}

// eepOption0Numerators and eepOption1Numerators implement the exact
// formulas given in §3: size = numerator/denominator * bitrate.
var eepOption0Numerators = [4]int{12, 8, 6, 4}
var eepOption1Numerators = [4]int{27, 21, 18, 15}

const eepOption0Denominator = 8
const eepOption1Denominator = 32

// CUSize returns the sub-channel size in Capacity Units for this
// protection profile applied to bitrateKbps.
func (p Protection) CUSize(bitrateKbps int) (int, error) {
	switch p.Kind {
	case ProtectionUEP:
		if p.TableSwitch < 0 || p.TableSwitch > 1 {
			return 0, fmt.Errorf("uep table switch %d out of range [0,1]", p.TableSwitch)
		}
		if p.TableIndex < 0 || p.TableIndex >= 64 {
			return 0, fmt.Errorf("uep table index %d out of range [0,64)", p.TableIndex)
		}
		return uepSizeTable[p.TableSwitch][p.TableIndex], nil
	case ProtectionEEP:
		if p.Option != 0 && p.Option != 1 {
			return 0, fmt.Errorf("eep option %d out of range {0,1}", p.Option)
		}
		if p.Level < 0 || p.Level > 3 {
			return 0, fmt.Errorf("eep level %d out of range [0,3]", p.Level)
		}
		if p.Option == 0 {
			return eepOption0Numerators[p.Level] * bitrateKbps / eepOption0Denominator, nil
		}
		return eepOption1Numerators[p.Level] * bitrateKbps / eepOption1Denominator, nil
	default:
		return 0, fmt.Errorf("unknown protection kind %d", p.Kind)
	}
}

// String renders the protection profile the way FIG 0/1 and log lines
// name it, e.g. "EEP 3-A" or "UEP 5".
func (p Protection) String() string {
	switch p.Kind {
	case ProtectionUEP:
		return fmt.Sprintf("UEP %d", p.TableIndex)
	case ProtectionEEP:
		letter := "A"
		if p.Option == 1 {
			letter = "B"
		}
		return fmt.Sprintf("EEP %d-%s", p.Level+1, letter)
	default:
		return "unknown"
	}
}
