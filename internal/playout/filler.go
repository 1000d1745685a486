/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/pseudovision/internal/enumerator"
	"github.com/friendsincode/pseudovision/internal/models"
	"github.com/friendsincode/pseudovision/internal/resolver"
	"github.com/friendsincode/pseudovision/internal/timeutil"
)

// roleKinds maps a preset role onto the event kind it emits.
var roleKinds = map[models.FillerRole]models.EventKind{
	models.RolePre:      models.EventPre,
	models.RoleMid:      models.EventMid,
	models.RolePost:     models.EventPost,
	models.RoleTail:     models.EventTail,
	models.RoleFallback: models.EventFallback,
}

// Filler selects filler items to bridge gaps in the timeline. The
// content resolver is passed per call so builds can hand in their
// transaction-bound instance.
type Filler struct {
	logger zerolog.Logger
}

// NewFiller constructs the filler engine.
func NewFiller(logger zerolog.Logger) *Filler {
	return &Filler{logger: logger}
}

// Fill bridges [from, to) using the preset, drawing from the cursor's
// enumerator for the preset's content source. The enumerator advance is
// saved back into the cursor; an empty item list terminates immediately
// with no events and no enumerator movement.
func (f *Filler) Fill(ctx context.Context, res *resolver.Resolver, cursor *Cursor, playout models.Playout, preset models.FillerPreset, from, to time.Time) ([]models.PlayoutEvent, error) {
	return f.fill(ctx, res, cursor, playout, preset, preset.Mode, from, to)
}

// FillTail bridges a block remainder. The gap is hard bounded by the
// block end, so count presets are overridden with duration semantics and
// no event may cross `to`.
func (f *Filler) FillTail(ctx context.Context, res *resolver.Resolver, cursor *Cursor, playout models.Playout, preset models.FillerPreset, from, to time.Time) ([]models.PlayoutEvent, error) {
	return f.fill(ctx, res, cursor, playout, preset, models.FillerDuration, from, to)
}

func (f *Filler) fill(ctx context.Context, res *resolver.Resolver, cursor *Cursor, playout models.Playout, preset models.FillerPreset, mode models.FillerMode, from, to time.Time) ([]models.PlayoutEvent, error) {
	items, err := res.ItemsForPreset(ctx, preset)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	key := FillerKey(preset)
	enum := cursor.Enumerator(key, items, models.OrderShuffle, playout.Seed)

	kind, ok := roleKinds[preset.Role]
	if !ok {
		kind = models.EventPad
	}

	var events []models.PlayoutEvent
	switch mode {
	case models.FillerCount:
		events = f.fillCount(cursor, playout, preset, enum, kind, from, countOf(preset))
	case models.FillerRandomCount:
		// Seed from the gap start so rebuilds of the same window pick
		// the same count.
		rng := rand.New(rand.NewSource(playout.Seed + from.Unix()))
		n := countOf(preset)
		if n > 0 {
			n = 1 + rng.Intn(n)
		}
		events = f.fillCount(cursor, playout, preset, enum, kind, from, n)
	case models.FillerPadToMinute:
		pad := 30
		if preset.PadToNearestMinute != nil && *preset.PadToNearestMinute > 0 {
			pad = *preset.PadToNearestMinute
		}
		target := timeutil.NextMinuteMultiple(from, pad)
		if target.After(to) {
			target = to
		}
		events = f.fillDuration(cursor, playout, preset, enum, kind, from, target)
	default:
		events = f.fillDuration(cursor, playout, preset, enum, kind, from, to)
	}

	cursor.SaveEnumerator(key, enum)
	return events, nil
}

// fillDuration draws items until the next one would cross the target
// boundary. No partial items are emitted.
func (f *Filler) fillDuration(cursor *Cursor, playout models.Playout, preset models.FillerPreset, enum *enumerator.Enumerator, kind models.EventKind, from, to time.Time) []models.PlayoutEvent {
	var events []models.PlayoutEvent
	cur := from
	zeroDraws := 0

	for {
		if enum.Empty() {
			return events
		}
		item, ok := enum.Next()
		if !ok {
			return events
		}
		dur := item.Version.Duration
		if dur <= 0 {
			// Zero-duration placeholders never advance the clock; give
			// up after a full pass of them.
			zeroDraws++
			if zeroDraws > 64 {
				f.logger.Warn().Str("preset", preset.ID).Msg("filler source contains only zero-duration items")
				return events
			}
			continue
		}
		zeroDraws = 0
		if cur.Add(dur).After(to) {
			return events
		}
		events = append(events, fillerEvent(playout, item, kind, cur, dur))
		cur = cur.Add(dur)
	}
}

// fillCount draws exactly n playable items irrespective of any end time.
func (f *Filler) fillCount(cursor *Cursor, playout models.Playout, preset models.FillerPreset, enum *enumerator.Enumerator, kind models.EventKind, from time.Time, n int) []models.PlayoutEvent {
	var events []models.PlayoutEvent
	cur := from
	zeroDraws := 0

	for len(events) < n {
		if enum.Empty() {
			return events
		}
		item, ok := enum.Next()
		if !ok {
			return events
		}
		dur := item.Version.Duration
		if dur <= 0 {
			zeroDraws++
			if zeroDraws > 64 {
				f.logger.Warn().Str("preset", preset.ID).Msg("filler source contains only zero-duration items")
				return events
			}
			continue
		}
		zeroDraws = 0
		events = append(events, fillerEvent(playout, item, kind, cur, dur))
		cur = cur.Add(dur)
	}
	return events
}

func fillerEvent(playout models.Playout, item models.MediaItem, kind models.EventKind, start time.Time, dur time.Duration) models.PlayoutEvent {
	return models.PlayoutEvent{
		ID:          uuid.NewString(),
		PlayoutID:   playout.ID,
		MediaItemID: &item.ID,
		Kind:        kind,
		StartAt:     start,
		FinishAt:    start.Add(dur),
		IsManual:    false,
	}
}

func countOf(preset models.FillerPreset) int {
	if preset.Count == nil || *preset.Count < 0 {
		return 0
	}
	return *preset.Count
}
