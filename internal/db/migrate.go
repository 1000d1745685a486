/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/pseudovision/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		// Library backends
		&models.MediaSource{},
		&models.Library{},
		&models.MediaItem{},
		&models.MediaVersion{},

		// Collections
		&models.Collection{},
		&models.CollectionItem{},
		&models.TraktListItem{},

		// Scheduling
		&models.Channel{},
		&models.Schedule{},
		&models.Slot{},
		&models.FillerPreset{},

		// Compiled timelines
		&models.Playout{},
		&models.PlayoutEvent{},
	); err != nil {
		return err
	}

	if err := applyPostgresTimelineGuard(database); err != nil {
		return err
	}

	return nil
}

// applyPostgresTimelineGuard installs a trigger that rejects malformed or
// overlapping automatic events at the database layer. Manual events may
// overlap automatic ones; that conflict is resolved by rebuilds, not here.
func applyPostgresTimelineGuard(database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}

	stmt := `
CREATE OR REPLACE FUNCTION prevent_playout_event_overlap()
RETURNS trigger
LANGUAGE plpgsql
AS $$
BEGIN
  IF NEW.finish_at <= NEW.start_at THEN
    RAISE EXCEPTION 'playout event finish must be after start'
      USING ERRCODE = '23514';
  END IF;

  IF NEW.is_manual = false AND EXISTS (
    SELECT 1
    FROM playout_events pe
    WHERE pe.playout_id = NEW.playout_id
      AND pe.id <> NEW.id
      AND pe.is_manual = false
      AND tstzrange(pe.start_at, pe.finish_at, '[)') && tstzrange(NEW.start_at, NEW.finish_at, '[)')
  ) THEN
    RAISE EXCEPTION 'overlapping automatic events are not allowed for playout %', NEW.playout_id
      USING ERRCODE = '23514';
  END IF;

  RETURN NEW;
END;
$$;

DROP TRIGGER IF EXISTS trg_prevent_playout_event_overlap ON playout_events;

CREATE TRIGGER trg_prevent_playout_event_overlap
BEFORE INSERT OR UPDATE OF playout_id, start_at, finish_at
ON playout_events
FOR EACH ROW
EXECUTE FUNCTION prevent_playout_event_overlap();
`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply postgres timeline guard: %w", err)
	}

	return nil
}
