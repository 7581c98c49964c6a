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

// Package metrics exposes Prometheus counters/gauges for the multiplex
// engine: frame emission, FIC carousel scheduling, sub-channel input
// health, and the EDI output pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/gauge/histogram the core publishes.
type Metrics struct {
	FramesEmittedTotal   prometheus.Counter
	FrameAssemblySeconds prometheus.Histogram

	FIGEmittedTotal      *prometheus.CounterVec
	FIGDeadlineMissTotal *prometheus.CounterVec

	SubChannelUnderrunTotal *prometheus.CounterVec
	SubChannelReadSeconds   *prometheus.HistogramVec

	AFPacketsSentTotal      *prometheus.CounterVec
	PFTFragmentsSentTotal   *prometheus.CounterVec
	PFTFragmentsDroppedTotal *prometheus.CounterVec
	TransportErrorsTotal    *prometheus.CounterVec

	TAIBulletinUsable   prometheus.Gauge
	TAIBulletinExpiresIn prometheus.Gauge
	TAIOffsetSeconds    prometheus.Gauge
}

// New creates and registers the metric set against the default registry.
func New() *Metrics {
	m := &Metrics{
		FramesEmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dabmux_frames_emitted_total",
			Help: "Total number of ETI frames assembled and dispatched.",
		}),
		FrameAssemblySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dabmux_frame_assembly_seconds",
			Help:    "Time spent assembling one ETI frame.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		FIGEmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dabmux_fig_emitted_total",
			Help: "Total FIG emissions by type/extension.",
		}, []string{"type", "extension"}),
		FIGDeadlineMissTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dabmux_fig_deadline_miss_total",
			Help: "Total FIG repetition-rate deadline misses by type/extension.",
		}, []string{"type", "extension"}),
		SubChannelUnderrunTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dabmux_subchannel_underrun_total",
			Help: "Total ticks where a sub-channel adapter returned fewer bytes than requested.",
		}, []string{"subchannel_id"}),
		SubChannelReadSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dabmux_subchannel_read_seconds",
			Help:    "Duration of a sub-channel read() call.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}, []string{"subchannel_id"}),
		AFPacketsSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dabmux_edi_af_packets_sent_total",
			Help: "Total EDI AF packets sent, by destination.",
		}, []string{"destination"}),
		PFTFragmentsSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dabmux_edi_pft_fragments_sent_total",
			Help: "Total PFT fragments sent, by destination.",
		}, []string{"destination"}),
		PFTFragmentsDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dabmux_edi_pft_fragments_dropped_total",
			Help: "Total PFT fragments dropped (queue overrun), by destination.",
		}, []string{"destination"}),
		TransportErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dabmux_output_transport_errors_total",
			Help: "Total output transport errors, by sink/destination.",
		}, []string{"sink"}),
		TAIBulletinUsable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dabmux_tai_bulletin_usable",
			Help: "1 if the current TAI leap-second bulletin is usable, 0 otherwise.",
		}),
		TAIBulletinExpiresIn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dabmux_tai_bulletin_expires_in_seconds",
			Help: "Seconds until the current TAI bulletin expires (negative if already expired).",
		}),
		TAIOffsetSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dabmux_tai_utc_offset_seconds",
			Help: "Current TAI-UTC offset in seconds.",
		}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	prometheus.MustRegister(
		m.FramesEmittedTotal,
		m.FrameAssemblySeconds,
		m.FIGEmittedTotal,
		m.FIGDeadlineMissTotal,
		m.SubChannelUnderrunTotal,
		m.SubChannelReadSeconds,
		m.AFPacketsSentTotal,
		m.PFTFragmentsSentTotal,
		m.PFTFragmentsDroppedTotal,
		m.TransportErrorsTotal,
		m.TAIBulletinUsable,
		m.TAIBulletinExpiresIn,
		m.TAIOffsetSeconds,
	)
}
