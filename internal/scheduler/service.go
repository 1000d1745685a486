/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler runs the background rebuild loop that keeps every
// playout's timeline extended out to the lookahead horizon.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/pseudovision/internal/cache"
	"github.com/friendsincode/pseudovision/internal/models"
	"github.com/friendsincode/pseudovision/internal/playout"
	"github.com/friendsincode/pseudovision/internal/telemetry"
)

// retainPast bounds how much history a timeline keeps. Events that
// finished earlier than this are reaped on the hourly cleanup.
const retainPast = 7 * 24 * time.Hour

// Service orchestrates periodic playout rebuilds.
type Service struct {
	db       *gorm.DB
	builder  *playout.Builder
	cache    *cache.Cache
	logger   zerolog.Logger
	interval time.Duration
	opts     playout.Options

	mu          sync.Mutex
	lastCleanup time.Time
}

// New constructs the rebuild service. cache may be nil.
func New(db *gorm.DB, builder *playout.Builder, interval time.Duration, opts playout.Options, logger zerolog.Logger) *Service {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Service{
		db:       db,
		builder:  builder,
		interval: interval,
		opts:     opts,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// SetCache sets the cache instance for post-build invalidation.
func (s *Service) SetCache(c *cache.Cache) {
	s.cache = c
}

// Run executes the rebuild loop until the context is cancelled. The
// first tick fires immediately so a fresh deployment has timelines
// without waiting a full interval.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("rebuild loop started")
	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("rebuild loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	telemetry.SchedulerTicksTotal.Inc()

	var playouts []models.Playout
	if err := s.db.WithContext(ctx).Find(&playouts).Error; err != nil {
		s.logger.Error().Err(err).Msg("rebuild loop failed to load playouts")
		telemetry.SchedulerErrorsTotal.WithLabelValues("load_playouts").Inc()
		return
	}

	for _, p := range playouts {
		if ctx.Err() != nil {
			return
		}
		result, err := s.builder.Build(ctx, p.ID, s.opts)
		if errors.Is(err, playout.ErrBuildInProgress) {
			continue
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("playout_id", p.ID).Msg("scheduled rebuild failed")
			telemetry.SchedulerErrorsTotal.WithLabelValues("build").Inc()
			continue
		}
		if result.Outcome == playout.OutcomeBuilt && result.EventCount > 0 && s.cache != nil {
			if err := s.cache.InvalidateChannel(ctx, p.ChannelID); err != nil {
				s.logger.Debug().Err(err).Str("channel_id", p.ChannelID).Msg("cache invalidation failed")
			}
		}
	}

	s.maybeCleanupOldEvents(ctx)
}

// maybeCleanupOldEvents deletes events that finished more than a week
// ago. Runs at most once per hour to avoid unnecessary DB churn.
func (s *Service) maybeCleanupOldEvents(ctx context.Context) {
	s.mu.Lock()
	if time.Since(s.lastCleanup) < time.Hour {
		s.mu.Unlock()
		return
	}
	s.lastCleanup = time.Now()
	s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-retainPast)
	result := s.db.WithContext(ctx).
		Where("finish_at < ?", cutoff).
		Delete(&models.PlayoutEvent{})
	if result.Error != nil {
		s.logger.Warn().Err(result.Error).Msg("failed to clean up old playout events")
		return
	}
	if result.RowsAffected > 0 {
		s.logger.Info().Int64("events", result.RowsAffected).Msg("reaped expired playout events")
	}
}
