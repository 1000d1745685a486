/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package leadership elects the single instance that runs the rebuild
// loop. The election is a Redis lease: the holder renews it ahead of
// expiry and everyone else retries until the key frees up.
package leadership

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/pseudovision/internal/telemetry"
)

const (
	defaultElectionKey     = "pseudovision:leader:rebuild"
	defaultLeaseDuration   = 15 * time.Second
	defaultRenewalInterval = 5 * time.Second
	defaultRetryInterval   = 2 * time.Second
)

// acquireScript takes the lease if it is free or already ours, renewing
// the TTL in the same round trip. Returns 1 when we hold the lease.
const acquireScript = `
local holder = redis.call("get", KEYS[1])
if holder == false then
  redis.call("set", KEYS[1], ARGV[1], "px", ARGV[2])
  return 1
end
if holder == ARGV[1] then
  redis.call("pexpire", KEYS[1], ARGV[2])
  return 1
end
return 0
`

// releaseScript deletes the lease only while we still hold it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0
`

// ElectionConfig tunes the lease behaviour.
type ElectionConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ElectionKey is the Redis key holding the current leader's id.
	ElectionKey string

	// LeaseDuration bounds how long a crashed leader blocks the loop.
	LeaseDuration time.Duration

	// RenewalInterval is the holder's renewal cadence. Must be well
	// under LeaseDuration.
	RenewalInterval time.Duration

	// RetryInterval is the follower's acquisition cadence.
	RetryInterval time.Duration

	// InstanceID identifies this process in the lease.
	InstanceID string
}

// DefaultConfig returns the stock election tuning.
func DefaultConfig() ElectionConfig {
	return ElectionConfig{
		RedisAddr:       "localhost:6379",
		ElectionKey:     defaultElectionKey,
		LeaseDuration:   defaultLeaseDuration,
		RenewalInterval: defaultRenewalInterval,
		RetryInterval:   defaultRetryInterval,
		InstanceID:      uuid.NewString(),
	}
}

// Election campaigns for the rebuild-loop lease.
type Election struct {
	client *redis.Client
	logger zerolog.Logger
	cfg    ElectionConfig

	leading  atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	leaderCh chan bool
}

// NewElection connects to Redis and validates the configuration. The
// campaign does not start until Start is called.
func NewElection(cfg ElectionConfig, logger zerolog.Logger) (*Election, error) {
	if cfg.ElectionKey == "" {
		cfg.ElectionKey = defaultElectionKey
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = defaultLeaseDuration
	}
	if cfg.RenewalInterval <= 0 {
		cfg.RenewalInterval = defaultRenewalInterval
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.RenewalInterval >= cfg.LeaseDuration {
		return nil, fmt.Errorf("renewal interval %v must be shorter than the lease %v",
			cfg.RenewalInterval, cfg.LeaseDuration)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect election redis: %w", err)
	}

	return &Election{
		client:   client,
		logger:   logger.With().Str("component", "leader_election").Logger(),
		cfg:      cfg,
		done:     make(chan struct{}),
		leaderCh: make(chan bool, 1),
	}, nil
}

// Start launches the campaign loop.
func (e *Election) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.logger.Info().
		Str("instance_id", e.cfg.InstanceID).
		Dur("lease", e.cfg.LeaseDuration).
		Msg("campaigning for the rebuild lease")

	go e.campaign(ctx)
	return nil
}

// Stop ends the campaign, releases a held lease and closes the client.
func (e *Election) Stop() error {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}

	if e.leading.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.client.Eval(ctx, releaseScript, []string{e.cfg.ElectionKey}, e.cfg.InstanceID).Err(); err != nil {
			e.logger.Error().Err(err).Msg("lease release failed, it will expire on its own")
		}
		e.setLeading(false)
	}
	return e.client.Close()
}

// IsLeader reports whether this instance currently holds the lease.
func (e *Election) IsLeader() bool {
	return e.leading.Load()
}

// LeaderCh streams leadership transitions. The channel is buffered and
// lossy; consumers should treat it as a wakeup and read IsLeader.
func (e *Election) LeaderCh() <-chan bool {
	return e.leaderCh
}

// GetLeader returns the instance id holding the lease, or empty when
// the loop is currently leaderless.
func (e *Election) GetLeader(ctx context.Context) (string, error) {
	holder, err := e.client.Get(ctx, e.cfg.ElectionKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read election key: %w", err)
	}
	return holder, nil
}

// campaign runs until the context ends. Holders tick at the renewal
// interval, followers at the retry interval.
func (e *Election) campaign(ctx context.Context) {
	defer close(e.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		held, err := e.tryAcquire(ctx)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				e.logger.Warn().Err(err).Msg("lease attempt failed")
			}
			e.setLeading(false)
		case held:
			e.setLeading(true)
		default:
			e.setLeading(false)
		}

		if e.leading.Load() {
			timer.Reset(e.cfg.RenewalInterval)
		} else {
			timer.Reset(e.cfg.RetryInterval)
		}
	}
}

// tryAcquire grabs or renews the lease atomically.
func (e *Election) tryAcquire(ctx context.Context) (bool, error) {
	res, err := e.client.Eval(ctx, acquireScript,
		[]string{e.cfg.ElectionKey},
		e.cfg.InstanceID, e.cfg.LeaseDuration.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("lease script: %w", err)
	}
	return res == 1, nil
}

// setLeading records a transition, updates the gauges and nudges the
// listeners.
func (e *Election) setLeading(leading bool) {
	if !e.leading.CompareAndSwap(!leading, leading) {
		return
	}

	if leading {
		e.logger.Info().Str("instance_id", e.cfg.InstanceID).Msg("acquired the rebuild lease")
		telemetry.LeaderElectionStatus.WithLabelValues(e.cfg.InstanceID).Set(1)
		telemetry.LeaderElectionChanges.WithLabelValues(e.cfg.InstanceID, "acquired").Inc()
	} else {
		e.logger.Warn().Str("instance_id", e.cfg.InstanceID).Msg("lost the rebuild lease")
		telemetry.LeaderElectionStatus.WithLabelValues(e.cfg.InstanceID).Set(0)
		telemetry.LeaderElectionChanges.WithLabelValues(e.cfg.InstanceID, "lost").Inc()
	}

	select {
	case e.leaderCh <- leading:
	default:
	}
}
