/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// EventBusBackend selects the cross-instance event transport.
type EventBusBackend string

const (
	EventBusMemory EventBusBackend = "memory"
	EventBusNATS   EventBusBackend = "nats"
	EventBusRedis  EventBusBackend = "redis"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	LogLevel    string
	HTTPBind    string
	HTTPPort    int
	BaseURL     string // Public base URL (e.g., http://192.168.1.50:8409)
	MetricsBind string

	DBBackend DatabaseBackend
	DBDSN     string

	// Media scanning
	MediaRoot       string
	FFmpegPath      string
	FFprobePath     string
	ScanConcurrency int
	ProbeTimeout    time.Duration

	// Playout build scheduling
	LookaheadHours  int
	RebuildInterval time.Duration
	ZoneID          string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Multi-instance configuration
	LeaderElectionEnabled bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	InstanceID            string

	// Event bus fan-out
	EventBusBackend EventBusBackend
	NATSURL         string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("PSV_ENV", "development"),
		LogLevel:    getEnv("PSV_LOG_LEVEL", ""),
		HTTPBind:    getEnv("PSV_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("PSV_HTTP_PORT", 8409),
		BaseURL:     getEnv("PSV_BASE_URL", ""),
		MetricsBind: getEnv("PSV_METRICS_BIND", "127.0.0.1:9000"),

		DBBackend: DatabaseBackend(getEnv("PSV_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:     getEnv("PSV_DB_DSN", ""),

		MediaRoot:       getEnv("PSV_MEDIA_ROOT", "./media"),
		FFmpegPath:      getEnv("PSV_FFMPEG_PATH", "ffmpeg"),
		FFprobePath:     getEnv("PSV_FFPROBE_PATH", "ffprobe"),
		ScanConcurrency: getEnvInt("PSV_SCAN_CONCURRENCY", 4),
		ProbeTimeout:    time.Duration(getEnvInt("PSV_PROBE_TIMEOUT_MS", 15000)) * time.Millisecond,

		LookaheadHours:  getEnvInt("PSV_LOOKAHEAD_HOURS", 72),
		RebuildInterval: time.Duration(getEnvInt("PSV_REBUILD_INTERVAL_MINUTES", 15)) * time.Minute,
		ZoneID:          getEnv("PSV_ZONE_ID", "UTC"),

		TracingEnabled:    getEnvBool("PSV_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("PSV_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("PSV_TRACING_SAMPLE_RATE", 1.0),

		LeaderElectionEnabled: getEnvBool("PSV_LEADER_ELECTION_ENABLED", false),
		RedisAddr:             getEnv("PSV_REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("PSV_REDIS_PASSWORD", ""),
		RedisDB:               getEnvInt("PSV_REDIS_DB", 0),
		InstanceID:            getEnv("PSV_INSTANCE_ID", ""),

		EventBusBackend: EventBusBackend(getEnv("PSV_EVENTBUS_BACKEND", string(EventBusMemory))),
		NATSURL:         getEnv("PSV_NATS_URL", "nats://localhost:4222"),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("PSV_DB_DSN must be provided")
	}
	switch cfg.EventBusBackend {
	case EventBusMemory, EventBusNATS, EventBusRedis:
	default:
		return nil, fmt.Errorf("unsupported event bus backend %q", cfg.EventBusBackend)
	}
	if cfg.LookaheadHours <= 0 {
		return nil, fmt.Errorf("PSV_LOOKAHEAD_HOURS must be positive")
	}
	if cfg.LeaderElectionEnabled && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("PSV_REDIS_ADDR is required when leader election is enabled")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}
