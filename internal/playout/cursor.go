/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playout contains the build engine that compiles a channel's
// schedule into a concrete, persisted event timeline.
package playout

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/friendsincode/pseudovision/internal/enumerator"
	"github.com/friendsincode/pseudovision/internal/models"
)

// Cursor is the full resumption state of one playout. Builds thread a
// cursor value through the slot loop and persist it exactly once at the
// end of the transaction; nothing outside the build driver mutates it.
type Cursor struct {
	NextStart        time.Time  `json:"next_start"`
	SlotIndex        int        `json:"slot_index"`
	CountRemaining   *int       `json:"count_remaining,omitempty"`
	BlockEndsAt      *time.Time `json:"block_ends_at,omitempty"`
	InFlood          bool       `json:"in_flood"`
	InDurationFiller bool       `json:"in_duration_filler"`
	NextGuideGroup   int        `json:"next_guide_group"`

	EnumeratorStates map[string]enumerator.State `json:"enumerator_states"`
}

// NewCursor returns a fresh cursor positioned at start.
func NewCursor(start time.Time) Cursor {
	return Cursor{
		NextStart:        start.Truncate(time.Second),
		NextGuideGroup:   1,
		EnumeratorStates: make(map[string]enumerator.State),
	}
}

// CollectionKey derives the stable enumerator-state bucket for a slot's
// content source. Slots drawing from the same collection share one key,
// so enumeration continues across slots rather than restarting.
func CollectionKey(slot models.Slot) string {
	if slot.CollectionID != nil {
		return "collection:" + *slot.CollectionID
	}
	if slot.MediaItemID != nil {
		return "item:" + *slot.MediaItemID
	}
	return ""
}

// FillerKey derives the enumerator-state bucket for a filler preset.
func FillerKey(preset models.FillerPreset) string {
	if preset.CollectionID != nil {
		return "collection:" + *preset.CollectionID
	}
	if preset.MediaItemID != nil {
		return "item:" + *preset.MediaItemID
	}
	return ""
}

// Enumerator restores the enumerator stored under key, or builds a fresh
// one with the playout seed when no state exists yet.
func (c *Cursor) Enumerator(key string, items []models.MediaItem, order models.PlaybackOrder, seed int64) *enumerator.Enumerator {
	if state, ok := c.EnumeratorStates[key]; ok {
		return enumerator.Restore(items, state)
	}
	return enumerator.New(items, order, seed)
}

// SaveEnumerator overwrites the stored state for key with the
// enumerator's current projection.
func (c *Cursor) SaveEnumerator(key string, e *enumerator.Enumerator) {
	if c.EnumeratorStates == nil {
		c.EnumeratorStates = make(map[string]enumerator.State)
	}
	c.EnumeratorStates[key] = e.State()
}

// BumpGuideGroup claims the current guide group and advances the counter.
func (c *Cursor) BumpGuideGroup() int {
	group := c.NextGuideGroup
	c.NextGuideGroup++
	return group
}

// AdvanceSlot moves the cursor to the next slot, wrapping at the end of
// the schedule.
func (c *Cursor) AdvanceSlot(slotCount int) {
	if slotCount <= 0 {
		return
	}
	c.SlotIndex = (c.SlotIndex + 1) % slotCount
}

// MarshalCursor serialises the cursor to its durable JSON form.
func MarshalCursor(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return string(raw), nil
}

// UnmarshalCursor restores a cursor from its durable JSON form.
func UnmarshalCursor(raw string) (Cursor, error) {
	var c Cursor
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}
	if c.EnumeratorStates == nil {
		c.EnumeratorStates = make(map[string]enumerator.State)
	}
	return c, nil
}
