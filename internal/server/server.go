/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires configuration, storage, the build engine and the
// HTTP surface into a running process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/pseudovision/internal/api"
	"github.com/friendsincode/pseudovision/internal/cache"
	"github.com/friendsincode/pseudovision/internal/config"
	"github.com/friendsincode/pseudovision/internal/db"
	"github.com/friendsincode/pseudovision/internal/eventbus"
	"github.com/friendsincode/pseudovision/internal/events"
	"github.com/friendsincode/pseudovision/internal/guide"
	"github.com/friendsincode/pseudovision/internal/leadership"
	"github.com/friendsincode/pseudovision/internal/library"
	"github.com/friendsincode/pseudovision/internal/playout"
	"github.com/friendsincode/pseudovision/internal/resolver"
	"github.com/friendsincode/pseudovision/internal/scheduler"
	"github.com/friendsincode/pseudovision/internal/telemetry"
	"github.com/friendsincode/pseudovision/internal/timeutil"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg           *config.Config
	logger        zerolog.Logger
	router        chi.Router
	httpServer    *http.Server
	metricsServer *http.Server
	closers       []func() error

	db                   *gorm.DB
	cache                *cache.Cache
	bus                  events.PubSub
	builder              *playout.Builder
	scanner              *library.Scanner
	guide                *guide.Renderer
	api                  *api.API
	scheduler            *scheduler.Service
	leaderAwareScheduler *scheduler.LeaderAwareScheduler

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.TracingMiddleware("pseudovision-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.api.Routes(srv.router)
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.MetricsBind != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", telemetry.Handler())
		srv.metricsServer = &http.Server{
			Addr:              cfg.MetricsBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 15 * time.Second,
		}
	}

	return srv, nil
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := os.MkdirAll(s.cfg.MediaRoot, 0755); err != nil {
		return fmt.Errorf("create media directory %s: %w", s.cfg.MediaRoot, err)
	}

	if err := s.initBus(); err != nil {
		return err
	}

	// Redis cache is optional; on failure the process serves straight
	// from the database.
	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = s.cfg.RedisAddr
	cacheCfg.RedisPassword = s.cfg.RedisPassword
	cacheCfg.RedisDB = s.cfg.RedisDB
	entityCache, err := cache.New(cacheCfg, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
	} else {
		s.cache = entityCache
		s.DeferClose(func() error { return s.cache.Close() })
	}

	clock := timeutil.SystemClock{}
	res := resolver.New(database, s.logger)
	s.builder = playout.NewBuilder(database, res, clock, s.bus, s.logger)
	s.scanner = library.NewScanner(database, s.bus, s.cfg.FFprobePath, s.cfg.ProbeTimeout, s.cfg.ScanConcurrency, s.logger)
	s.guide = guide.NewRenderer(database, clock, s.cfg.BaseURL, s.logger)

	buildOpts := playout.Options{
		LookaheadHours: s.cfg.LookaheadHours,
		ZoneID:         s.cfg.ZoneID,
	}
	s.scheduler = scheduler.New(database, s.builder, s.cfg.RebuildInterval, buildOpts, s.logger)
	if s.cache != nil {
		s.scheduler.SetCache(s.cache)
	}

	if s.cfg.LeaderElectionEnabled {
		electionConfig := leadership.DefaultConfig()
		electionConfig.RedisAddr = s.cfg.RedisAddr
		electionConfig.RedisPassword = s.cfg.RedisPassword
		electionConfig.RedisDB = s.cfg.RedisDB
		electionConfig.InstanceID = s.cfg.InstanceID

		election, err := leadership.NewElection(electionConfig, s.logger)
		if err != nil {
			return fmt.Errorf("create leader election: %w", err)
		}

		s.leaderAwareScheduler = scheduler.NewLeaderAware(s.scheduler, election, s.logger)
		s.DeferClose(func() error { return s.leaderAwareScheduler.Stop() })

		s.logger.Info().
			Str("redis_addr", s.cfg.RedisAddr).
			Str("instance_id", electionConfig.InstanceID).
			Msg("leader election enabled for rebuild loop")
	}

	s.api = api.New(database, s.builder, buildOpts, s.scanner, s.guide, s.cache, s.bus, clock, s.logger)
	return nil
}

// initBus selects the event transport. Single-instance deployments use
// the in-process bus; nats and redis fan events out across instances.
func (s *Server) initBus() error {
	switch s.cfg.EventBusBackend {
	case config.EventBusNATS:
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		bus, err := eventbus.NewNATSBus(natsCfg, s.logger)
		if err != nil {
			return fmt.Errorf("create NATS event bus: %w", err)
		}
		s.bus = bus
		s.DeferClose(bus.Close)
	case config.EventBusRedis:
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = s.cfg.RedisAddr
		redisCfg.Password = s.cfg.RedisPassword
		redisCfg.DB = s.cfg.RedisDB
		bus, err := eventbus.NewRedisBus(redisCfg, s.cfg.InstanceID, s.logger)
		if err != nil {
			return fmt.Errorf("create Redis event bus: %w", err)
		}
		s.bus = bus
		s.DeferClose(bus.Close)
	default:
		s.bus = events.NewBus()
	}
	return nil
}

// HTTPServer exposes the HTTP server for the caller to manage.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// MetricsServer exposes the metrics listener, nil when disabled.
func (s *Server) MetricsServer() *http.Server {
	return s.metricsServer
}

// Close stops background workers and releases resources.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()

	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers cleanup to run on Close, in reverse order.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.leaderAwareScheduler != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.leaderAwareScheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("leader-aware rebuild loop exited")
			}
		}()
	} else if s.scheduler != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("rebuild loop exited")
			}
		}()
	}

	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db)
				}
			}
		}()
	}

	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}
}

// runCacheInvalidationListener drops cached documents when another
// instance mutates the entities behind them.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	channelCreated := s.bus.Subscribe(events.EventChannelCreated)
	channelUpdated := s.bus.Subscribe(events.EventChannelUpdated)
	channelDeleted := s.bus.Subscribe(events.EventChannelDeleted)
	buildComplete := s.bus.Subscribe(events.EventBuildComplete)
	manualCreated := s.bus.Subscribe(events.EventManualEventCreated)
	manualUpdated := s.bus.Subscribe(events.EventManualEventUpdated)
	manualDeleted := s.bus.Subscribe(events.EventManualEventDeleted)
	defer func() {
		s.bus.Unsubscribe(events.EventChannelCreated, channelCreated)
		s.bus.Unsubscribe(events.EventChannelUpdated, channelUpdated)
		s.bus.Unsubscribe(events.EventChannelDeleted, channelDeleted)
		s.bus.Unsubscribe(events.EventBuildComplete, buildComplete)
		s.bus.Unsubscribe(events.EventManualEventCreated, manualCreated)
		s.bus.Unsubscribe(events.EventManualEventUpdated, manualUpdated)
		s.bus.Unsubscribe(events.EventManualEventDeleted, manualDeleted)
	}()

	invalidateChannel := func(payload events.Payload) {
		channelID, _ := payload["channel_id"].(string)
		if channelID == "" {
			if err := s.cache.FlushAll(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("cache flush failed")
			}
			return
		}
		if err := s.cache.InvalidateChannel(ctx, channelID); err != nil {
			s.logger.Warn().Err(err).Str("channel_id", channelID).Msg("cache invalidation failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-channelCreated:
			invalidateChannel(payload)
		case payload := <-channelUpdated:
			invalidateChannel(payload)
		case payload := <-channelDeleted:
			invalidateChannel(payload)
		case payload := <-buildComplete:
			invalidateChannel(payload)
		case payload := <-manualCreated:
			invalidateChannel(payload)
		case payload := <-manualUpdated:
			invalidateChannel(payload)
		case payload := <-manualDeleted:
			invalidateChannel(payload)
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel != nil {
		s.bgCancel()
	}
	s.bgWG.Wait()
}
