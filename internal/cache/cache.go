/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently accessed data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values for different cache types
const (
	DefaultChannelListTTL = 5 * time.Minute
	DefaultEventWindowTTL = 1 * time.Minute
	DefaultGuideTTL       = 2 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyChannelList = "pseudovision:cache:channels"
	KeyEventWindow = "pseudovision:cache:events:" // + channel_id
	KeyGuide       = "pseudovision:cache:guide:"  // + format (xmltv|m3u|hdhr)
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	ChannelListTTL time.Duration
	EventWindowTTL time.Duration
	GuideTTL       time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		ChannelListTTL: DefaultChannelListTTL,
		EventWindowTTL: DefaultEventWindowTTL,
		GuideTTL:       DefaultGuideTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Channel caching methods

// CachedChannel represents a cached channel record.
type CachedChannel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Number    int    `json:"number"`
	GuideMode string `json:"guide_mode"`
}

// GetChannelList retrieves the cached list of channels.
func (c *Cache) GetChannelList(ctx context.Context) ([]CachedChannel, bool) {
	var channels []CachedChannel
	found, err := c.get(ctx, KeyChannelList, &channels)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(channels)).Msg("channel list cache hit")
	return channels, true
}

// SetChannelList caches the list of channels.
func (c *Cache) SetChannelList(ctx context.Context, channels []CachedChannel) error {
	c.logger.Debug().Int("count", len(channels)).Msg("caching channel list")
	return c.set(ctx, KeyChannelList, channels, c.config.ChannelListTTL)
}

// InvalidateChannelList removes the channel list from cache.
func (c *Cache) InvalidateChannelList(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating channel list cache")
	return c.delete(ctx, KeyChannelList)
}

// Event window caching methods

// CachedEvent represents one upcoming timeline event for a channel.
type CachedEvent struct {
	ID          string    `json:"id"`
	MediaItemID *string   `json:"media_item_id,omitempty"`
	Kind        string    `json:"kind"`
	StartAt     time.Time `json:"start_at"`
	FinishAt    time.Time `json:"finish_at"`
	GuideGroup  int       `json:"guide_group"`
	Title       string    `json:"title"`
}

// GetEventWindow retrieves the cached upcoming events for a channel.
func (c *Cache) GetEventWindow(ctx context.Context, channelID string) ([]CachedEvent, bool) {
	var events []CachedEvent
	found, err := c.get(ctx, KeyEventWindow+channelID, &events)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("channel_id", channelID).Int("count", len(events)).Msg("event window cache hit")
	return events, true
}

// SetEventWindow caches the upcoming events for a channel.
func (c *Cache) SetEventWindow(ctx context.Context, channelID string, events []CachedEvent) error {
	c.logger.Debug().Str("channel_id", channelID).Int("count", len(events)).Msg("caching event window")
	return c.set(ctx, KeyEventWindow+channelID, events, c.config.EventWindowTTL)
}

// InvalidateEventWindow removes a channel's cached event window.
func (c *Cache) InvalidateEventWindow(ctx context.Context, channelID string) error {
	c.logger.Debug().Str("channel_id", channelID).Msg("invalidating event window cache")
	return c.delete(ctx, KeyEventWindow+channelID)
}

// Guide document caching methods

// GetGuide retrieves a cached rendered guide document for a format.
func (c *Cache) GetGuide(ctx context.Context, format string) ([]byte, bool) {
	if !c.IsAvailable() {
		return nil, false
	}
	data, err := c.client.Get(ctx, KeyGuide+format).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.handleError(err, "get")
		return nil, false
	}
	c.logger.Debug().Str("format", format).Int("bytes", len(data)).Msg("guide cache hit")
	return data, true
}

// SetGuide caches a rendered guide document.
func (c *Cache) SetGuide(ctx context.Context, format string, doc []byte) error {
	if !c.IsAvailable() {
		return nil
	}
	c.logger.Debug().Str("format", format).Int("bytes", len(doc)).Msg("caching guide document")
	if err := c.client.Set(ctx, KeyGuide+format, doc, c.config.GuideTTL).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

// InvalidateGuides removes every cached guide document.
func (c *Cache) InvalidateGuides(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating guide caches")
	return c.deletePattern(ctx, KeyGuide+"*")
}

// Bulk invalidation methods

// InvalidateChannel removes all caches affected by a channel change.
func (c *Cache) InvalidateChannel(ctx context.Context, channelID string) error {
	c.logger.Debug().Str("channel_id", channelID).Msg("invalidating all channel caches")

	if err := c.InvalidateChannelList(ctx); err != nil {
		return err
	}
	if err := c.InvalidateEventWindow(ctx, channelID); err != nil {
		return err
	}
	return c.InvalidateGuides(ctx)
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, "pseudovision:cache:*")
}
