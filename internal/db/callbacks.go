/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/pseudovision/internal/telemetry"
)

const startedAtKey = "psv:query_started"

// RegisterCallbacks hooks per-operation latency and error observation
// into the gorm pipeline. Timeline reaps and bulk event inserts dominate
// the write side, so the labels split by operation and table.
func RegisterCallbacks(database *gorm.DB) error {
	cb := database.Callback()
	return errors.Join(
		cb.Query().Before("gorm:query").Register("psv:query_start", markStart),
		cb.Query().After("gorm:query").Register("psv:query_done", observe("select")),
		cb.Create().Before("gorm:create").Register("psv:create_start", markStart),
		cb.Create().After("gorm:create").Register("psv:create_done", observe("insert")),
		cb.Update().Before("gorm:update").Register("psv:update_start", markStart),
		cb.Update().After("gorm:update").Register("psv:update_done", observe("update")),
		cb.Delete().Before("gorm:delete").Register("psv:delete_start", markStart),
		cb.Delete().After("gorm:delete").Register("psv:delete_done", observe("delete")),
		cb.Row().Before("gorm:row").Register("psv:row_start", markStart),
		cb.Row().After("gorm:row").Register("psv:row_done", observe("row")),
	)
}

func markStart(database *gorm.DB) {
	database.InstanceSet(startedAtKey, time.Now())
}

// observe returns the after-hook for one operation kind. Not-found is a
// normal outcome for lookups and never counts as an error.
func observe(operation string) func(*gorm.DB) {
	return func(database *gorm.DB) {
		raw, ok := database.InstanceGet(startedAtKey)
		if !ok {
			return
		}
		started, ok := raw.(time.Time)
		if !ok {
			return
		}

		table := database.Statement.Table
		if table == "" {
			table = "unknown"
		}
		telemetry.DatabaseQueryDuration.
			WithLabelValues(operation, table).
			Observe(time.Since(started).Seconds())

		if database.Error != nil && !errors.Is(database.Error, gorm.ErrRecordNotFound) {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation, "exec_failed").Inc()
		}
	}
}

// UpdateConnectionMetrics snapshots the pool gauge. The server calls
// this on a 30-second ticker.
func UpdateConnectionMetrics(database *gorm.DB) {
	sqlDB, err := database.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}
