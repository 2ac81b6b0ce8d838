package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"sitewatch/internal/api"
	"sitewatch/internal/checker"
	"sitewatch/internal/clock"
	"sitewatch/internal/config"
	"sitewatch/internal/evaluator"
	"sitewatch/internal/ingest"
	"sitewatch/internal/ledger"
	"sitewatch/internal/logging"
	"sitewatch/internal/notify"
	"sitewatch/internal/scheduler"
	"sitewatch/internal/stats"
	"sitewatch/internal/store"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config snapshot and shared runtime components.
// Returns: runnable monitoring service.
type Service struct {
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func()
	store     store.Store
	pipeline  *Pipeline
	sched     *scheduler.Scheduler
	httpSrv   *http.Server
	natsSub   interface{ Close() error }
	readyFlag atomic.Bool
	clock     clock.Clock
}

// NewService builds the service from one validated config.
// Params: cfg runtime configuration; clk clock implementation.
// Returns: initialized service or setup error.
func NewService(cfg config.Config, clk clock.Clock) (*Service, error) {
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		closeLog()
		return nil, err
	}

	lg := ledger.New(st, clk)
	dispatcher := notify.NewDispatcher(cfg.Notify, logger)
	router := notify.NewRouter(st, dispatcher, logger)
	chk := checker.New(checker.HeuristicScorer{}, clk)
	pipeline := NewPipeline(st, chk, evaluator.New(lg), router, logger)
	sched := scheduler.New(pipeline.Probe, cfg.Scheduler.StaggerEnabled(), logger)

	service := &Service{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		store:    st,
		pipeline: pipeline,
		sched:    sched,
		clock:    clk,
	}

	agg := stats.New(st, clk, cfg.Service.StatsWindowHours)
	apiSrv := api.New(cfg.API, logger, st, lg, agg, sched, pipeline, clk,
		cfg.Service.RecentChecksLimit, service.readyFlag.Load)
	service.httpSrv = &http.Server{
		Addr:              cfg.API.Listen,
		Handler:           apiSrv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := service.buildNATSSubscriber(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	return service, nil
}

// Run starts the service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	s.sched.Start(runCtx)
	if err := s.registerEnabledSites(runCtx); err != nil {
		_ = s.shutdown()
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("api server starting", "listen", s.cfg.API.Listen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("api server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// registerEnabledSites schedules every enabled site at boot.
// Params: ctx boot context.
// Returns: store error when the site list cannot be loaded.
func (s *Service) registerEnabledSites(ctx context.Context) error {
	sites, err := s.store.ListEnabledSites(ctx)
	if err != nil {
		return fmt.Errorf("load enabled sites: %w", err)
	}
	for _, site := range sites {
		s.sched.Register(site, site.Interval())
	}
	s.logger.Info("monitoring started", "sites", len(sites))
	return nil
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("api shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("api shutdown: %w", err))
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats subscriber close failed", "error", err.Error())
			markErr(fmt.Errorf("nats subscriber close: %w", err))
		}
	}
	s.sched.Stop()
	if err := s.store.Close(); err != nil {
		s.logger.Error("store close failed", "error", err.Error())
		markErr(fmt.Errorf("store close: %w", err))
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.natsSub != nil {
		_ = s.natsSub.Close()
		s.natsSub = nil
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildNATSSubscriber starts NATS result ingest when enabled.
// Params: none.
// Returns: initialization error.
func (s *Service) buildNATSSubscriber() error {
	if !s.cfg.Ingest.NATS.Enabled {
		return nil
	}
	subscriber, err := ingest.NewNATSSubscriber(s.cfg.Ingest.NATS, s.pipeline, s.logger)
	if err != nil {
		return err
	}
	s.natsSub = subscriber
	return nil
}
