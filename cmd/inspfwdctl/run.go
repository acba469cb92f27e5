package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/eiannone/keyboard"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fventuri/inspfwd/internal/analyzer"
	"github.com/fventuri/inspfwd/internal/analyzer/wsanalyzer"
	"github.com/fventuri/inspfwd/internal/config"
	"github.com/fventuri/inspfwd/internal/consumer"
	"github.com/fventuri/inspfwd/internal/forwarder"
	"github.com/fventuri/inspfwd/internal/metrics"
	"github.com/fventuri/inspfwd/internal/persistence"
)

func newRunCommand() *cobra.Command {
	var configPath string
	fs := &cobra.Command{
		Use:   "run",
		Short: "Connect to the analyzer and drive the forwarder tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMain(configPath)
		},
	}
	fs.Flags().StringVar(&configPath, "config", "", "YAML configuration file")
	return fs
}

// loggingSink is the default consumer.Consumer wired to every channel
// loaded from the persistence file: it logs lifecycle events and
// counts samples, pausable via the interactive space key the same
// way the teacher's userCommandTogglePause gates receiveMessages.
type loggingSink struct {
	name   string
	paused *atomic.Bool
	count  atomic.Int64
	enable *consumer.EnableState
}

func newLoggingSink(name string, paused *atomic.Bool, enabled bool) *loggingSink {
	return &loggingSink{name: name, paused: paused, enable: consumer.NewEnableState(enabled)}
}

func (s *loggingSink) Opened(an analyzer.Analyzer, h analyzer.Handle, ch consumer.ChannelInfo, cfg analyzer.Config) {
	log.Info().Str("channel", s.name).Int64("handle", int64(h)).Bool("enabled", s.enable.Enabled()).Msg("channel opened")
}

func (s *loggingSink) Samples(buf []complex64, count int) {
	if s.paused.Load() || !s.enable.Enabled() {
		return
	}
	if s.count.Add(int64(count))%100_000 < int64(count) {
		log.Debug().Str("channel", s.name).Int64("total_samples", s.count.Load()).Msg("samples")
	}
}

func (s *loggingSink) Closed() {
	log.Info().Str("channel", s.name).Msg("channel closed")
}

func (s *loggingSink) EnableStateChanged(enabled bool) {
	log.Info().Str("channel", s.name).Bool("enabled", enabled).Msg("enable state changed")
}

// Enabled and SetEnabled satisfy consumer.EnabledReporter and
// consumer.Toggleable, letting the view-model read and flip this
// sink's enabled flag without widening the Consumer interface itself.
func (s *loggingSink) Enabled() bool { return s.enable.Enabled() }

func (s *loggingSink) SetEnabled(enabled bool) {
	s.enable.SetEnabled(enabled, s.EnableStateChanged)
}

func runMain(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	client, err := wsanalyzer.Dial(cfg.WebsocketAddress, cfg.SourceInfoWait)
	if err != nil {
		return err
	}
	defer client.Close()

	fwd := forwarder.New(cfg.MaxBandwidth)
	fwd.SetAnalyzer(client)

	var paused atomic.Bool
	if cfg.PersistencePath != "" {
		f, err := os.Open(cfg.PersistencePath)
		if err != nil {
			return fmt.Errorf("run: open persistence file: %w", err)
		}
		snap, err := persistence.Load(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("run: load persistence file: %w", err)
		}
		if snap.FrontEnd.CenterFrequency != 0 {
			if err := client.SetFrequency(snap.FrontEnd.CenterFrequency); err != nil {
				return fmt.Errorf("run: set frequency: %w", err)
			}
		}
		err = persistence.Apply(fwd, snap, func(m persistence.MasterSpec, c persistence.ChannelSpec) consumer.Consumer {
			return consumer.NewMetricsConsumer(newLoggingSink(c.Name, &paused, c.Enabled))
		})
		if err != nil {
			return fmt.Errorf("run: apply persistence snapshot: %w", err)
		}
	}

	registry := metrics.NewRegistry()
	go serveMetrics(cfg.MetricsAddress, registry)

	if err := keyboard.Open(); err != nil {
		log.Warn().Err(err).Msg("interactive keyboard control unavailable")
	} else {
		defer keyboard.Close()
		go watchKeys(&paused)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		<-sigs
		cancel()
	}()

	fwd.OpenAll()
	return client.Run(ctx, fwd)
}

func serveMetrics(addr string, registry *metrics.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn().Err(err).Str("address", addr).Msg("metrics server stopped")
	}
}

// watchKeys mirrors the teacher's getKeyPresses goroutine: space
// toggles pause, q/Ctrl-C requests shutdown.
func watchKeys(paused *atomic.Bool) {
	for {
		char, key, err := keyboard.GetKey()
		if err != nil {
			return
		}
		switch {
		case key == keyboard.KeyCtrlC || char == 'q' || char == 'Q':
			syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
			return
		case key == keyboard.KeySpace:
			paused.Store(!paused.Load())
		}
	}
}
