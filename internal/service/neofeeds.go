package service

import (
	"context"
	"time"

	"github.com/R3E-Network/neofeeds/internal/config"
	"github.com/R3E-Network/neofeeds/internal/metrics"
	"github.com/R3E-Network/neofeeds/internal/publish"
	"github.com/R3E-Network/neofeeds/internal/scheduler"
	"github.com/R3E-Network/neofeeds/internal/server"
	"github.com/R3E-Network/neofeeds/internal/source"
	"github.com/R3E-Network/neofeeds/pkg/logging"
)

// Version is stamped at build time.
var Version = "dev"

// Service composes the feed pipeline: config, fetcher, gating engine,
// scheduler, and the HTTP control plane.
type Service struct {
	*BaseService

	cfg       *config.FeedsConfig
	engine    *publish.Engine
	scheduler *scheduler.Scheduler
	server    *server.Server
	log       *logging.Logger
}

// Options wires the service's external dependencies.
type Options struct {
	Config      *config.FeedsConfig
	Ledger      publish.LedgerReader
	Writer      publish.LedgerWriter
	Attestation []byte
	Server      server.Options
	Log         *logging.Logger
	Metrics     *metrics.Metrics
}

// New builds a fully wired neofeeds service.
func New(opts Options) *Service {
	fetcher := source.NewFetcher(opts.Config.StrictMode)
	engine := publish.NewEngine(opts.Config.PublishPolicy, opts.Ledger, opts.Writer, opts.Attestation, opts.Log, opts.Metrics)
	sched := scheduler.New(opts.Config, fetcher, engine, opts.Log, opts.Metrics)
	srv := server.New(opts.Server, opts.Config, sched, engine, opts.Metrics, opts.Log)

	s := &Service{
		BaseService: NewBase("neofeeds", "NeoFeeds Publisher", Version, opts.Log),
		cfg:         opts.Config,
		engine:      engine,
		scheduler:   sched,
		server:      srv,
		log:         opts.Log,
	}

	s.WithHydrate(sched.Start)
	s.WithStats(func() map[string]any {
		snapshots := engine.Snapshots()
		published := 0
		for _, snap := range snapshots {
			if snap.LastRoundID > 0 {
				published++
			}
		}
		return map[string]any{
			"feeds":             len(opts.Config.GetEnabledFeeds()),
			"symbols_published": published,
		}
	})
	s.AddWorker(func(ctx context.Context) {
		if err := srv.Start(); err != nil {
			opts.Log.WithError(err).Error("http server terminated")
		}
	})
	return s
}

// Scheduler exposes the tick driver, used by the control plane wiring.
func (s *Service) Scheduler() *scheduler.Scheduler { return s.scheduler }

// Engine exposes the gating engine.
func (s *Service) Engine() *publish.Engine { return s.engine }

// Shutdown stops scheduling, drains HTTP, and signals workers.
func (s *Service) Shutdown(ctx context.Context) error {
	s.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.log.WithError(err).Warn("http shutdown incomplete")
	}

	return s.Stop()
}
