package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/pseudovision/internal/leadership"
)

// LeaderAwareScheduler wraps the rebuild service and only runs it while
// this instance holds the leadership lease.
type LeaderAwareScheduler struct {
	service  *Service
	election *leadership.Election
	logger   zerolog.Logger

	ctx            context.Context
	cancelFunc     context.CancelFunc
	serviceRunning bool
}

// NewLeaderAware creates a leader-aware rebuild service wrapper.
func NewLeaderAware(service *Service, election *leadership.Election, logger zerolog.Logger) *LeaderAwareScheduler {
	return &LeaderAwareScheduler{
		service:  service,
		election: election,
		logger:   logger.With().Str("component", "leader_aware_scheduler").Logger(),
	}
}

// Start begins monitoring leadership status and manages the rebuild loop
// lifecycle.
func (las *LeaderAwareScheduler) Start(ctx context.Context) error {
	las.ctx = ctx

	las.logger.Info().Msg("starting leader-aware rebuild service")

	if err := las.election.Start(ctx); err != nil {
		return err
	}

	go las.monitorLeadership()

	return nil
}

// Stop stops the rebuild loop and releases leadership.
func (las *LeaderAwareScheduler) Stop() error {
	las.logger.Info().Msg("stopping leader-aware rebuild service")

	if las.serviceRunning && las.cancelFunc != nil {
		las.cancelFunc()
		las.serviceRunning = false
	}

	return las.election.Stop()
}

// monitorLeadership watches for leadership changes and starts or stops
// the rebuild loop accordingly.
func (las *LeaderAwareScheduler) monitorLeadership() {
	leaderCh := las.election.LeaderCh()

	if las.election.IsLeader() {
		las.startService()
	}

	for {
		select {
		case <-las.ctx.Done():
			return
		case isLeader := <-leaderCh:
			if isLeader {
				las.logger.Info().Msg("became leader, starting rebuild loop")
				las.startService()
			} else {
				las.logger.Warn().Msg("lost leadership, stopping rebuild loop")
				las.stopService()
			}
		}
	}
}

func (las *LeaderAwareScheduler) startService() {
	if las.serviceRunning {
		las.logger.Warn().Msg("rebuild loop already running")
		return
	}

	ctx, cancel := context.WithCancel(las.ctx)
	las.cancelFunc = cancel
	las.serviceRunning = true

	go func() {
		if err := las.service.Run(ctx); err != nil && err != context.Canceled {
			las.logger.Error().Err(err).Msg("rebuild loop error")
		}
		las.serviceRunning = false
	}()
}

func (las *LeaderAwareScheduler) stopService() {
	if !las.serviceRunning {
		return
	}

	if las.cancelFunc != nil {
		las.cancelFunc()
		las.cancelFunc = nil
	}

	// Give the loop a moment to observe cancellation.
	time.Sleep(100 * time.Millisecond)
	las.serviceRunning = false
}

// IsLeader returns whether this instance is the leader.
func (las *LeaderAwareScheduler) IsLeader() bool {
	return las.election.IsLeader()
}
