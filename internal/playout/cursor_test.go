/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"testing"
	"time"

	"github.com/friendsincode/pseudovision/internal/enumerator"
	"github.com/friendsincode/pseudovision/internal/models"
)

func TestCursorRoundTrip(t *testing.T) {
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewCursor(start)
	c.SlotIndex = 3
	c.NextGuideGroup = 17
	c.InFlood = true
	c.EnumeratorStates["collection:abc"] = enumerator.State{
		Index:         5,
		Seed:          99,
		PlaybackOrder: models.OrderShuffle,
	}

	raw, err := MarshalCursor(c)
	if err != nil {
		t.Fatalf("MarshalCursor: %v", err)
	}
	restored, err := UnmarshalCursor(raw)
	if err != nil {
		t.Fatalf("UnmarshalCursor: %v", err)
	}

	if !restored.NextStart.Equal(c.NextStart) {
		t.Errorf("NextStart = %v, want %v", restored.NextStart, c.NextStart)
	}
	if restored.SlotIndex != c.SlotIndex {
		t.Errorf("SlotIndex = %d, want %d", restored.SlotIndex, c.SlotIndex)
	}
	if restored.NextGuideGroup != c.NextGuideGroup {
		t.Errorf("NextGuideGroup = %d, want %d", restored.NextGuideGroup, c.NextGuideGroup)
	}
	if !restored.InFlood {
		t.Error("InFlood lost in round trip")
	}
	state, ok := restored.EnumeratorStates["collection:abc"]
	if !ok {
		t.Fatal("enumerator state lost in round trip")
	}
	if state.Index != 5 || state.Seed != 99 || state.PlaybackOrder != models.OrderShuffle {
		t.Errorf("enumerator state = %+v", state)
	}
}

func TestUnmarshalCursorInitialisesStates(t *testing.T) {
	c, err := UnmarshalCursor(`{"next_start":"2026-05-01T12:00:00Z","slot_index":0,"next_guide_group":1}`)
	if err != nil {
		t.Fatalf("UnmarshalCursor: %v", err)
	}
	if c.EnumeratorStates == nil {
		t.Fatal("EnumeratorStates should never be nil after restore")
	}
}

func TestCollectionKey(t *testing.T) {
	collectionID := "c1"
	itemID := "m1"

	if got := CollectionKey(models.Slot{CollectionID: &collectionID}); got != "collection:c1" {
		t.Errorf("collection slot key = %q", got)
	}
	if got := CollectionKey(models.Slot{MediaItemID: &itemID}); got != "item:m1" {
		t.Errorf("item slot key = %q", got)
	}
	if got := CollectionKey(models.Slot{}); got != "" {
		t.Errorf("empty slot key = %q, want empty", got)
	}
}

func TestBumpGuideGroupMonotonic(t *testing.T) {
	c := NewCursor(time.Now())

	first := c.BumpGuideGroup()
	second := c.BumpGuideGroup()
	if first != 1 || second != 2 {
		t.Fatalf("guide groups = %d, %d, want 1, 2", first, second)
	}
}

func TestAdvanceSlotWraps(t *testing.T) {
	c := NewCursor(time.Now())
	c.SlotIndex = 2

	c.AdvanceSlot(3)
	if c.SlotIndex != 0 {
		t.Fatalf("SlotIndex = %d, want 0", c.SlotIndex)
	}
}

// Serialising mid-enumeration and restoring must resume at the same
// position.
func TestCursorRestoreResumesEnumeration(t *testing.T) {
	items := []models.MediaItem{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	c := NewCursor(time.Now())

	enum := c.Enumerator("collection:x", items, models.OrderChronological, 0)
	enum.Next()
	enum.Next()
	c.SaveEnumerator("collection:x", enum)

	raw, err := MarshalCursor(c)
	if err != nil {
		t.Fatalf("MarshalCursor: %v", err)
	}
	restored, err := UnmarshalCursor(raw)
	if err != nil {
		t.Fatalf("UnmarshalCursor: %v", err)
	}

	resumed := restored.Enumerator("collection:x", items, models.OrderChronological, 0)
	item, ok := resumed.Next()
	if !ok {
		t.Fatal("restored enumerator returned no item")
	}
	if item.ID != "3" {
		t.Fatalf("restored enumerator yielded id %q, want %q", item.ID, "3")
	}
}
