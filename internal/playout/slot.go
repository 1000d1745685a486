/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/pseudovision/internal/enumerator"
	"github.com/friendsincode/pseudovision/internal/models"
)

// floodFallback bounds a flood slot when no later fixed anchor exists.
const floodFallback = 2 * time.Hour

// maxZeroDraws bounds consecutive zero-duration draws before a fill loop
// gives up on its source.
const maxZeroDraws = 64

// dispatchSlot runs one slot against the build state, appending emitted
// events and advancing the cursor. floodEnd is non-nil only for flood
// slots that have a later fixed anchor to run up against.
func (b *Builder) dispatchSlot(ctx context.Context, st *buildState, slot models.Slot, floodEnd *time.Time) error {
	items, err := st.res.ItemsForSlot(ctx, slot)
	if err != nil {
		// Resolution failures skip the slot but keep the build alive.
		b.logger.Warn().
			Err(err).
			Str("playout_id", st.playout.ID).
			Str("slot_id", slot.ID).
			Msg("slot content source failed to resolve, skipping slot")
		return nil
	}
	if len(items) == 0 {
		st.cursor.BumpGuideGroup()
		return nil
	}

	order := slot.PlaybackOrder
	if order == "" {
		order = models.OrderChronological
	}
	key := CollectionKey(slot)
	enum := st.cursor.Enumerator(key, items, order, st.playout.Seed)

	switch slot.FillMode {
	case models.FillOnce:
		b.fillOnce(st, slot, enum)
	case models.FillCount:
		b.fillCountSlot(st, slot, enum)
	case models.FillBlock:
		if err := b.fillBlock(ctx, st, slot, enum); err != nil {
			return err
		}
	case models.FillFlood:
		b.fillFlood(st, slot, enum, floodEnd)
	default:
		b.logger.Warn().
			Str("slot_id", slot.ID).
			Str("fill_mode", string(slot.FillMode)).
			Msg("unknown fill mode, slot skipped")
		return nil
	}

	st.cursor.SaveEnumerator(key, enum)
	return nil
}

// fillOnce emits a single content event and moves next_start past it.
func (b *Builder) fillOnce(st *buildState, slot models.Slot, enum *enumerator.Enumerator) {
	group := st.cursor.BumpGuideGroup()
	item, ok := b.drawPlayable(enum, slot.ID)
	if !ok {
		return
	}
	ev := contentEvent(st.playout, slot, item, st.cursor.NextStart, group)
	st.events = append(st.events, ev)
	st.cursor.NextStart = ev.FinishAt
}

// fillCountSlot emits exactly item_count events back to back. All of them
// share one guide group.
func (b *Builder) fillCountSlot(st *buildState, slot models.Slot, enum *enumerator.Enumerator) {
	n := 0
	if slot.ItemCount != nil && *slot.ItemCount > 0 {
		n = *slot.ItemCount
	}
	group := st.cursor.BumpGuideGroup()

	for i := 0; i < n; i++ {
		item, ok := b.drawPlayable(enum, slot.ID)
		if !ok {
			return
		}
		ev := contentEvent(st.playout, slot, item, st.cursor.NextStart, group)
		st.events = append(st.events, ev)
		st.cursor.NextStart = ev.FinishAt
	}
}

// fillBlock fills the fixed window [next_start, next_start+D), then closes
// the remainder per tail_mode. next_start always lands on the block end,
// regardless of how much of the window was filled.
func (b *Builder) fillBlock(ctx context.Context, st *buildState, slot models.Slot, enum *enumerator.Enumerator) error {
	if slot.BlockDuration == nil || *slot.BlockDuration <= 0 {
		return nil
	}
	blockEnd := st.cursor.NextStart.Add(*slot.BlockDuration)
	group := st.cursor.BumpGuideGroup()
	cur := st.cursor.NextStart

	for {
		item, ok := b.drawPlayable(enum, slot.ID)
		if !ok {
			break
		}
		dur := item.Version.Duration
		if cur.Add(dur).After(blockEnd) {
			break
		}
		ev := contentEvent(st.playout, slot, item, cur, group)
		st.events = append(st.events, ev)
		cur = ev.FinishAt
	}

	if cur.Before(blockEnd) {
		switch slot.TailMode {
		case models.TailFiller:
			preset, err := b.tailPreset(ctx, st, slot)
			if err != nil {
				return err
			}
			if preset != nil {
				tail, err := b.filler.FillTail(ctx, st.res, st.cursor, st.playout, *preset, cur, blockEnd)
				if err != nil {
					return err
				}
				stampProvenance(tail, slot.ID, group)
				st.events = append(st.events, tail...)
			}
		case models.TailOffline:
			st.events = append(st.events, offlineEvent(st.playout, slot, cur, blockEnd, group))
		}
		// TailNone leaves [cur, blockEnd) as a gap.
	}

	st.cursor.NextStart = blockEnd
	return nil
}

// fillFlood fills up to the next fixed anchor, or a fallback window when
// none exists. An item that would cross the boundary is dropped, never
// truncated.
func (b *Builder) fillFlood(st *buildState, slot models.Slot, enum *enumerator.Enumerator, floodEnd *time.Time) {
	end := st.cursor.NextStart.Add(floodFallback)
	if floodEnd != nil {
		end = *floodEnd
	}
	group := st.cursor.BumpGuideGroup()
	cur := st.cursor.NextStart

	for {
		item, ok := b.drawPlayable(enum, slot.ID)
		if !ok {
			break
		}
		dur := item.Version.Duration
		if cur.Add(dur).After(end) {
			break
		}
		ev := contentEvent(st.playout, slot, item, cur, group)
		st.events = append(st.events, ev)
		cur = ev.FinishAt
	}

	st.cursor.NextStart = end
}

// drawPlayable advances the enumerator past zero-duration placeholders to
// the next playable item.
func (b *Builder) drawPlayable(enum *enumerator.Enumerator, slotID string) (models.MediaItem, bool) {
	for zeroDraws := 0; zeroDraws <= maxZeroDraws; zeroDraws++ {
		item, ok := enum.Next()
		if !ok {
			return models.MediaItem{}, false
		}
		if item.Version.Duration > 0 {
			return item, true
		}
	}
	b.logger.Warn().Str("slot_id", slotID).Msg("slot source contains only zero-duration items")
	return models.MediaItem{}, false
}

// tailPreset resolves the tail filler for a slot, preferring the slot
// override over the channel default. The load goes through the build
// transaction.
func (b *Builder) tailPreset(ctx context.Context, st *buildState, slot models.Slot) (*models.FillerPreset, error) {
	id := slot.TailFillerID
	if id == nil {
		id = st.channel.TailFillerID
	}
	if id == nil {
		return nil, nil
	}
	var preset models.FillerPreset
	if err := st.tx.WithContext(ctx).First(&preset, "id = ?", *id).Error; err != nil {
		return nil, err
	}
	return &preset, nil
}

func contentEvent(playout models.Playout, slot models.Slot, item models.MediaItem, start time.Time, group int) models.PlayoutEvent {
	slotID := slot.ID
	return models.PlayoutEvent{
		ID:          uuid.NewString(),
		PlayoutID:   playout.ID,
		MediaItemID: &item.ID,
		Kind:        models.EventContent,
		StartAt:     start,
		FinishAt:    start.Add(item.Version.Duration),
		GuideGroup:  group,
		SlotID:      &slotID,
		IsManual:    false,
		CustomTitle: slot.CustomTitle,
	}
}

func offlineEvent(playout models.Playout, slot models.Slot, start, finish time.Time, group int) models.PlayoutEvent {
	slotID := slot.ID
	return models.PlayoutEvent{
		ID:         uuid.NewString(),
		PlayoutID:  playout.ID,
		Kind:       models.EventOffline,
		StartAt:    start,
		FinishAt:   finish,
		GuideGroup: group,
		SlotID:     &slotID,
		IsManual:   false,
	}
}

// stampProvenance backfills slot and guide metadata onto filler events,
// which the filler engine emits without build context.
func stampProvenance(events []models.PlayoutEvent, slotID string, group int) {
	for i := range events {
		id := slotID
		events[i].SlotID = &id
		events[i].GuideGroup = group
	}
}
