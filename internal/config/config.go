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

package config

import (
	"fmt"
	"time"
)

// Config stores the ambient runtime configuration for the multiplexer
// core: logging, metrics, the TAI clock subsystem, and the EDI/ETI output
// destinations. It deliberately does not describe the ensemble itself
// (§1 Non-goals) — that is supplied by the embedding application via
// ensemble.Ensemble, built however that application likes.
type Config struct {
	LogLevel LogLevel `yaml:"log_level" default:"info"`

	Metrics MetricsConfig `yaml:"metrics"`

	Timing TimingConfig `yaml:"timing"`

	TAI TAIConfig `yaml:"tai"`

	ETISinks []ETISinkConfig `yaml:"eti_sinks"`

	EDIDestinations []EDIDestinationConfig `yaml:"edi_destinations"`
}

// MetricsConfig configures the Prometheus HTTP exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Bind    string `yaml:"bind" default:"0.0.0.0"`
	Port    int    `yaml:"port" default:"9464"`
}

// TimingConfig configures the frame-timing loop (§4.11).
type TimingConfig struct {
	Mode             PacingMode       `yaml:"mode" default:"simul"`
	TransmissionMode TransmissionMode `yaml:"transmission_mode" default:"1"`
	// MNSCPreV3 enables the independent-second-counter BCD wall-clock
	// MNSC mode kept for compatibility with one known receiver (Open
	// Questions, §4.6). Default off.
	MNSCPreV3 bool `yaml:"mnsc_pre_v3" default:"false"`
}

// TAIConfig configures the TAI-UTC clock service (§4.3).
type TAIConfig struct {
	CachePath           string        `yaml:"cache_path" default:"/var/tmp/odr-dabmux-leap-seconds.cache"`
	URLs                []string      `yaml:"urls"`
	RefreshInterval     time.Duration `yaml:"refresh_interval" default:"1h"`
	RefreshRetryBackoff time.Duration `yaml:"refresh_retry_backoff" default:"1h"`
	FetchTimeout        time.Duration `yaml:"fetch_timeout" default:"10s"`
	// RedisAddr, if set, is used as a shared bulletin cache in addition
	// to the on-disk cache (DOMAIN STACK, SPEC_FULL.md).
	RedisAddr string `yaml:"redis_addr"`
	// AllowClockSet gates the legacy SUPPORT_SETTING_CLOCK_TAI host-clock
	// mutation capability. Default: exposed but disabled (Open
	// Questions).
	AllowClockSet bool `yaml:"allow_clock_set" default:"false"`
}

// ETISinkConfig describes one ETI(NI) output sink (§6).
type ETISinkConfig struct {
	Kind ETISinkKind `yaml:"kind"`
	URI  string      `yaml:"uri"`
}

// EDIDestinationConfig describes one EDI destination (§4.8, §4.9).
type EDIDestinationConfig struct {
	Transport EDITransportKind `yaml:"transport"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`

	SourceHost string `yaml:"source_host"`
	SourcePort int    `yaml:"source_port"`
	TTL        int    `yaml:"ttl" default:"10"`

	// PFT parameters (§4.8). RSParity (m) zero skips Reed-Solomon
	// protection and sends the AF packet in MTU-sized fragments. A
	// FragmentSize (k) of zero or less is replaced by 207 when the EDI
	// pipeline is built.
	FragmentSize int `yaml:"pft_fragment_size" default:"207"`
	RSParity     int `yaml:"pft_rs_parity" default:"1"`

	// SpreadFactor is the PFT time-spread factor s (§4.9); 0 disables
	// spreading and fragments are sent back-to-back.
	SpreadFactor float64 `yaml:"spread_factor" default:"1.0"`

	// TCP server only.
	MaxQueuedFrames int `yaml:"max_queued_frames" default:"500"`
	PrerollFrames   int `yaml:"preroll_frames" default:"5"`
}

// Validate checks the configuration for fatal startup errors (§7.1, §7.7).
func (c *Config) Validate() error {
	for i, dest := range c.EDIDestinations {
		if dest.FragmentSize > 207 {
			return fmt.Errorf("edi_destinations[%d]: pft_fragment_size %d exceeds the RS(255,207) maximum of 207", i, dest.FragmentSize)
		}
		if dest.RSParity > 5 {
			return fmt.Errorf("edi_destinations[%d]: pft_rs_parity %d exceeds the maximum of 5", i, dest.RSParity)
		}
		if dest.RSParity < 0 || dest.FragmentSize < 0 {
			return fmt.Errorf("edi_destinations[%d]: pft parameters must be non-negative", i)
		}
	}
	return nil
}
