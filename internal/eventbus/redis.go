/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/pseudovision/internal/events"
)

// Redis channels carry one event type each.
const redisChannelPrefix = "pseudovision:events:"

// envelope is the wire form of a mirrored event. Origin filters out our
// own publishes when they echo back from Redis.
type envelope struct {
	Type    events.EventType `json:"type"`
	Payload events.Payload   `json:"payload"`
	Origin  string           `json:"origin"`
	SentAt  time.Time        `json:"sent_at"`
}

// RedisConfig configures the Redis event bridge.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// After MaxFailures consecutive publish or receive failures the
	// bridge degrades to local-only delivery until Redis answers again.
	MaxFailures   int
	CheckInterval time.Duration
}

// DefaultRedisConfig returns the stock bridge configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		PoolSize:      10,
		MinIdleConns:  2,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxFailures:   5,
		CheckInterval: 30 * time.Second,
	}
}

// RedisBus fans build and cache-invalidation events out across
// instances. Local delivery always goes through the in-process bus;
// Redis only mirrors payloads between nodes, so a Redis outage degrades
// to single-node behaviour instead of losing events.
type RedisBus struct {
	client *redis.Client
	local  *events.Bus
	logger zerolog.Logger
	origin string

	maxFailures int

	mu       sync.Mutex
	remote   map[events.EventType]*redis.PubSub
	refs     map[events.EventType]int
	degraded bool
	failures int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisBus connects the bridge. An unreachable Redis is not fatal:
// the bus starts degraded and recovers on the check interval.
func NewRedisBus(cfg RedisConfig, nodeID string, logger zerolog.Logger) (*RedisBus, error) {
	ctx, cancel := context.WithCancel(context.Background())

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	rb := &RedisBus{
		client:      client,
		local:       events.NewBus(),
		logger:      logger.With().Str("component", "redis_eventbus").Logger(),
		origin:      nodeID,
		maxFailures: cfg.MaxFailures,
		remote:      make(map[events.EventType]*redis.PubSub),
		refs:        make(map[events.EventType]int),
		ctx:         ctx,
		cancel:      cancel,
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		rb.degraded = true
		rb.logger.Warn().Err(err).Str("addr", cfg.Addr).
			Msg("redis unreachable, event delivery is local-only until it recovers")
	} else {
		rb.logger.Info().Str("addr", cfg.Addr).Msg("redis event bridge connected")
	}

	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	rb.wg.Add(1)
	go rb.healthLoop(interval)

	return rb, nil
}

// Subscribe registers a local subscriber and opens the matching Redis
// subscription on first use of the event type.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := rb.local.Subscribe(eventType)

	rb.mu.Lock()
	rb.refs[eventType]++
	if !rb.degraded {
		rb.ensureRemoteLocked(eventType)
	}
	rb.mu.Unlock()

	return sub
}

// ensureRemoteLocked opens the Redis subscription for the type if none
// is live. Caller holds rb.mu.
func (rb *RedisBus) ensureRemoteLocked(eventType events.EventType) {
	if _, live := rb.remote[eventType]; live {
		return
	}
	ps := rb.client.Subscribe(rb.ctx, redisChannelPrefix+string(eventType))
	rb.remote[eventType] = ps
	rb.wg.Add(1)
	go rb.relay(eventType, ps)
}

// relay feeds mirrored payloads from Redis into the local bus.
func (rb *RedisBus) relay(eventType events.EventType, ps *redis.PubSub) {
	defer rb.wg.Done()

	for {
		select {
		case <-rb.ctx.Done():
			return
		case msg, ok := <-ps.Channel():
			if !ok {
				rb.mu.Lock()
				if rb.remote[eventType] == ps {
					delete(rb.remote, eventType)
				}
				rb.mu.Unlock()
				rb.recordFailure()
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				rb.logger.Error().Err(err).Str("event_type", string(eventType)).
					Msg("dropping undecodable mirrored event")
				continue
			}
			if env.Origin == rb.origin {
				continue
			}
			rb.local.Publish(eventType, env.Payload)
		}
	}
}

// Publish delivers locally and mirrors the payload to the other nodes.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.Publish(eventType, payload)

	rb.mu.Lock()
	degraded := rb.degraded
	rb.mu.Unlock()
	if degraded {
		return
	}

	data, err := json.Marshal(envelope{
		Type:    eventType,
		Payload: payload,
		Origin:  rb.origin,
		SentAt:  time.Now(),
	})
	if err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).
			Msg("event payload not serialisable, mirror skipped")
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()
	if err := rb.client.Publish(ctx, redisChannelPrefix+string(eventType), data).Err(); err != nil {
		rb.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("mirror publish failed")
		rb.recordFailure()
		return
	}

	rb.mu.Lock()
	rb.failures = 0
	rb.mu.Unlock()
}

// Unsubscribe drops the local subscriber and tears the Redis
// subscription down with the last one.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.local.Unsubscribe(eventType, sub)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.refs[eventType] > 0 {
		rb.refs[eventType]--
	}
	if rb.refs[eventType] == 0 {
		if ps, live := rb.remote[eventType]; live {
			_ = ps.Close()
			delete(rb.remote, eventType)
		}
		delete(rb.refs, eventType)
	}
}

// Close stops the relays and releases the client.
func (rb *RedisBus) Close() error {
	rb.cancel()

	rb.mu.Lock()
	for _, ps := range rb.remote {
		_ = ps.Close()
	}
	rb.remote = make(map[events.EventType]*redis.PubSub)
	rb.mu.Unlock()

	rb.wg.Wait()
	return rb.client.Close()
}

func (rb *RedisBus) recordFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.failures++
	if rb.failures >= rb.maxFailures && !rb.degraded {
		rb.degraded = true
		rb.logger.Warn().Int("failures", rb.failures).
			Msg("redis failure threshold reached, degrading to local-only delivery")
	}
}

// healthLoop probes Redis while degraded and restores the mirrored
// subscriptions once it answers again.
func (rb *RedisBus) healthLoop(interval time.Duration) {
	defer rb.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rb.ctx.Done():
			return
		case <-ticker.C:
			rb.mu.Lock()
			degraded := rb.degraded
			rb.mu.Unlock()
			if !degraded {
				continue
			}

			ctx, cancel := context.WithTimeout(rb.ctx, 5*time.Second)
			err := rb.client.Ping(ctx).Err()
			cancel()
			if err != nil {
				continue
			}

			rb.mu.Lock()
			rb.degraded = false
			rb.failures = 0
			for eventType, n := range rb.refs {
				if n > 0 {
					rb.ensureRemoteLocked(eventType)
				}
			}
			rb.mu.Unlock()
			rb.logger.Info().Msg("redis recovered, event mirroring resumed")
		}
	}
}
