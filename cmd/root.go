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

// Package cmd wires the multiplexer's ambient services (config, logging,
// metrics, TAI clock) to the frame-timing loop and starts the `muxd`
// binary, following the teacher's cobra+configulator+gocron+ztrue/shutdown
// wiring pattern.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/digitalradio/dabmux/internal/config"
	"github.com/digitalradio/dabmux/internal/edi"
	"github.com/digitalradio/dabmux/internal/ensemble"
	"github.com/digitalradio/dabmux/internal/eti"
	"github.com/digitalradio/dabmux/internal/fic"
	"github.com/digitalradio/dabmux/internal/logging"
	"github.com/digitalradio/dabmux/internal/metrics"
	"github.com/digitalradio/dabmux/internal/output"
	"github.com/digitalradio/dabmux/internal/subchannel"
	"github.com/digitalradio/dabmux/internal/tai"
	"github.com/digitalradio/dabmux/internal/timing"
	"github.com/USA-RedDragon/configulator"
	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"
)

// NewCommand builds the muxd root command.
func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "muxd",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fmt.Printf("muxd - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	c, err := configulator.FromContext[config.Config](ctx)
	if err != nil {
		return fmt.Errorf("failed to get config from context: %w", err)
	}
	cfg, err := c.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.SetDefault(logging.New(cfg.LogLevel))

	m := metrics.New()

	metricsSrv := metrics.NewServer(cfg.Metrics)
	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	if cfg.Metrics.Enabled {
		go func() {
			if err := metricsSrv.Start(metricsCtx); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	clock := tai.New(cfg.TAI, m)
	if err := clock.StartBackgroundRefresh(ctx); err != nil {
		return fmt.Errorf("failed to start TAI refresh: %w", err)
	}
	defer func() {
		if err := clock.StopBackgroundRefresh(); err != nil {
			slog.Warn("failed to stop TAI refresh", "error", err)
		}
	}()

	// Building the ensemble model (services, components, sub-channels,
	// labels) is explicitly out of scope for this core (§1 Non-goals);
	// an embedding application supplies it. This binary demonstrates the
	// wiring with a minimal single-service ensemble.
	ens := demoEnsemble()

	facade := subchannel.New(m, 250)
	for _, sc := range ens.SubChannels() {
		facade.SetReader(sc.SubChID, subchannel.ReaderFunc(func(dst []byte) (int, error) {
			return len(dst), nil // silence; a real adapter replaces this per sub-channel
		}))
	}

	var frame uint64
	carousel := fic.New([]fic.Producer{
		fic.NewFIG0_0(ens, func() uint64 { return frame }),
		fic.NewFIG0_1(ens),
		fic.NewFIG0_2(ens),
		fic.NewFIG1_0(ens),
	}, m)

	mux := output.New(m)
	for i, sinkCfg := range cfg.ETISinks {
		sink, simul, err := buildETISink(sinkCfg)
		if err != nil {
			return fmt.Errorf("eti_sinks[%d]: %w", i, err)
		}
		mux.AddETISink(fmt.Sprintf("eti-%d", i), sink, simul)
	}

	var wg sync.WaitGroup
	spreadCtx, cancelSpread := context.WithCancel(ctx)
	defer cancelSpread()
	for i, destCfg := range cfg.EDIDestinations {
		pipeline, err := buildEDIPipeline(destCfg)
		if err != nil {
			return fmt.Errorf("edi_destinations[%d]: %w", i, err)
		}
		mux.AddEDIPipeline(pipeline)
		wg.Add(1)
		go func(p *output.EDIPipeline) {
			defer wg.Done()
			p.Spreader.Run(spreadCtx)
		}(pipeline)
	}

	loop := timing.New(ens, facade, carousel, mux, clock, m, cfg.Timing, 0, eti.Timestamp{})

	loopCtx, cancelLoop := context.WithCancel(ctx)
	loopErrCh := make(chan error, 1)
	go func() { loopErrCh <- loop.Run(loopCtx) }()

	stop := func(sig os.Signal) {
		slog.Error("shutting down due to signal", "signal", sig)
		cancelLoop()
		const timeout = 10 * time.Second
		select {
		case <-loopErrCh:
		case <-time.After(timeout):
			slog.Error("timing loop did not stop in time, forcing exit")
		}
		cancelSpread()
		wg.Wait()
		mux.Close()
		stopMetrics()
		os.Exit(0)
	}
	defer stop(syscall.SIGINT)
	shutdown.AddWithParam(stop)
	shutdown.Listen(syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	return nil
}

// buildETISink opens the destination named by cfg.URI and wraps it with
// the framing selected by its `type` query parameter (§6).
func buildETISink(cfg config.ETISinkConfig) (output.ETISink, bool, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, false, fmt.Errorf("parsing sink URI: %w", err)
	}

	switch u.Scheme {
	case "", "file":
		f, err := os.OpenFile(u.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, false, fmt.Errorf("opening ETI output file: %w", err)
		}
		kind := config.ETISinkKind(u.Query().Get("type"))
		if kind == "" {
			kind = config.ETISinkRaw
		}
		sink, err := output.NewFileSink(kind, f, 0)
		if err != nil {
			return nil, false, err
		}
		return sink, true, nil
	case "tcp", "udp":
		conn, err := net.Dial(u.Scheme, u.Host)
		if err != nil {
			return nil, false, fmt.Errorf("dialing ETI sink: %w", err)
		}
		return output.NewNetSink(config.ETISinkKind(u.Scheme), conn), false, nil
	default:
		return nil, false, fmt.Errorf("unsupported ETI sink scheme %q", u.Scheme)
	}
}

// buildEDIPipeline assembles the TAG assembler, PFT fragmenter,
// transport sender and spreader for one configured EDI destination
// (§4.7-§4.9).
func buildEDIPipeline(cfg config.EDIDestinationConfig) (*output.EDIPipeline, error) {
	assembler := edi.NewAssembler()

	k := cfg.FragmentSize
	if k <= 0 {
		k = 207
	}
	pft, err := edi.NewPFT(k, cfg.RSParity, uint16(cfg.Port))
	if err != nil {
		return nil, err
	}

	sender, err := buildEDISender(cfg)
	if err != nil {
		return nil, err
	}

	spreadFactor := cfg.SpreadFactor
	if spreadFactor < 0 {
		spreadFactor = 0
	}
	spreader := edi.NewSpreader(sender, spreadFactor)

	return &output.EDIPipeline{Assembler: assembler, PFT: pft, Spreader: spreader}, nil
}

func buildEDISender(cfg config.EDIDestinationConfig) (edi.Sender, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	switch cfg.Transport {
	case config.EDITransportUDP:
		return edi.NewUDPSender(addr)
	case config.EDITransportTCPClient:
		return edi.NewTCPClientSender(addr), nil
	case config.EDITransportTCPServer:
		return edi.NewTCPServerSender(addr)
	default:
		return nil, fmt.Errorf("unsupported EDI transport %q", cfg.Transport)
	}
}

// demoEnsemble builds a minimal one-service ensemble so the binary runs
// end to end out of the box; a real deployment supplies its own ensemble
// via this package's API instead of calling this function (§1 Non-goals:
// ensemble description parsing is out of scope for the core).
func demoEnsemble() *ensemble.Ensemble {
	e := ensemble.New(0x4001, 0xE1, 1)
	label, _ := ensemble.NewLabel("muxd demo", "muxd")
	e.Short = label
	e.AddSubChannel(ensemble.SubChannel{
		SubChID:     1,
		Type:        ensemble.SubChannelDABPlusAudio,
		BitrateKbps: 128,
		Protection:  ensemble.Protection{Kind: ensemble.ProtectionEEP, Option: 0, Level: 2},
	})
	e.AddService(ensemble.Service{SId: 0x5001, Short: label})
	e.AddComponent(ensemble.Component{SId: 0x5001, SubChID: 1, Primary: true})
	return e
}
