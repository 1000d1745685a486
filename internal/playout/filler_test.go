/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/pseudovision/internal/models"
	"github.com/friendsincode/pseudovision/internal/resolver"
)

func seedFillerItem(t *testing.T, database *gorm.DB, id string, dur time.Duration) {
	t.Helper()
	item := models.MediaItem{
		ID:        id,
		LibraryID: "lib-1",
		Kind:      models.MediaFiller,
		Title:     "Bumper " + id,
		Path:      "/media/bumpers/" + id + ".mkv",
		Version:   models.MediaVersion{ID: "v" + id, Duration: dur, Container: "mkv"},
	}
	if err := database.Create(&item).Error; err != nil {
		t.Fatalf("seed filler item %s: %v", id, err)
	}
}

func newTestFiller() *Filler {
	return NewFiller(zerolog.Nop())
}

func newTestResolver(database *gorm.DB) *resolver.Resolver {
	return resolver.New(database, zerolog.Nop())
}

func TestFillerDurationStopsBeforeBoundary(t *testing.T) {
	database := openTestDB(t)
	seedFillerItem(t, database, "f1", 7*time.Minute)

	preset := models.FillerPreset{
		ID: "fp-1", Name: "Bumpers", Role: models.RoleTail,
		Mode: models.FillerDuration, MediaItemID: strPtr("f1"),
	}
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(20 * time.Minute)
	cursor := NewCursor(from)

	evs, err := newTestFiller().Fill(context.Background(), newTestResolver(database), &cursor, models.Playout{ID: "po-1", Seed: 7}, preset, from, to)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}

	// Two 7-minute draws fit; the third would cross the boundary and is
	// dropped, never truncated.
	if len(evs) != 2 {
		t.Fatalf("event count = %d, want 2", len(evs))
	}
	for i, ev := range evs {
		if ev.FinishAt.After(to) {
			t.Errorf("event %d runs past the gap end", i)
		}
		if ev.Kind != models.EventTail {
			t.Errorf("event %d kind = %s, want tail", i, ev.Kind)
		}
	}
	if !evs[1].StartAt.Equal(evs[0].FinishAt) {
		t.Error("filler events must be back to back")
	}
}

func TestFillerCountIgnoresGapEnd(t *testing.T) {
	database := openTestDB(t)
	seedFillerItem(t, database, "f1", 7*time.Minute)

	preset := models.FillerPreset{
		ID: "fp-1", Name: "Bumpers", Role: models.RolePre,
		Mode: models.FillerCount, Count: intPtr(3), MediaItemID: strPtr("f1"),
	}
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	cursor := NewCursor(from)

	evs, err := newTestFiller().Fill(context.Background(), newTestResolver(database), &cursor, models.Playout{ID: "po-1", Seed: 7}, preset, from, from.Add(time.Minute))
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("event count = %d, want exactly the preset count 3", len(evs))
	}
	if evs[0].Kind != models.EventPre {
		t.Errorf("kind = %s, want pre", evs[0].Kind)
	}
}

func TestFillerPadToMinuteClampsToGap(t *testing.T) {
	database := openTestDB(t)
	seedFillerItem(t, database, "f1", time.Minute)

	preset := models.FillerPreset{
		ID: "fp-1", Name: "Bumpers", Role: models.RolePost,
		Mode: models.FillerPadToMinute, PadToNearestMinute: intPtr(30),
		MediaItemID: strPtr("f1"),
	}
	from := time.Date(2026, 3, 10, 0, 7, 0, 0, time.UTC)
	to := time.Date(2026, 3, 10, 0, 10, 0, 0, time.UTC)
	cursor := NewCursor(from)

	evs, err := newTestFiller().Fill(context.Background(), newTestResolver(database), &cursor, models.Playout{ID: "po-1", Seed: 7}, preset, from, to)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}

	// The 30-minute pad target lies past the gap end, so the gap end
	// wins: three one-minute draws fill [00:07, 00:10).
	if len(evs) != 3 {
		t.Fatalf("event count = %d, want 3", len(evs))
	}
	if last := evs[len(evs)-1]; !last.FinishAt.Equal(to) {
		t.Errorf("last event finishes at %v, want %v", last.FinishAt, to)
	}
}

func TestFillerEmptySourceProducesNothing(t *testing.T) {
	database := openTestDB(t)
	seedManualCollection(t, database, "col-empty", "Empty", nil)

	preset := models.FillerPreset{
		ID: "fp-1", Name: "Bumpers", Role: models.RoleTail,
		Mode: models.FillerDuration, CollectionID: strPtr("col-empty"),
	}
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	cursor := NewCursor(from)

	evs, err := newTestFiller().Fill(context.Background(), newTestResolver(database), &cursor, models.Playout{ID: "po-1", Seed: 7}, preset, from, from.Add(time.Hour))
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if len(evs) != 0 {
		t.Fatalf("event count = %d, want 0", len(evs))
	}
	if _, ok := cursor.EnumeratorStates[FillerKey(preset)]; ok {
		t.Error("empty source must not leave an enumerator state behind")
	}
}

func TestFillerZeroDurationSourceGivesUp(t *testing.T) {
	database := openTestDB(t)
	seedFillerItem(t, database, "f0", 0)

	preset := models.FillerPreset{
		ID: "fp-1", Name: "Broken", Role: models.RoleTail,
		Mode: models.FillerDuration, MediaItemID: strPtr("f0"),
	}
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	cursor := NewCursor(from)

	evs, err := newTestFiller().Fill(context.Background(), newTestResolver(database), &cursor, models.Playout{ID: "po-1", Seed: 7}, preset, from, from.Add(time.Hour))
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if len(evs) != 0 {
		t.Fatalf("event count = %d, want 0 from a zero-duration source", len(evs))
	}
}

// A count preset used as a block tail must not run past the block end.
func TestFillTailOverridesCountMode(t *testing.T) {
	database := openTestDB(t)
	seedFillerItem(t, database, "f1", 7*time.Minute)

	preset := models.FillerPreset{
		ID: "fp-1", Name: "Bumpers", Role: models.RoleTail,
		Mode: models.FillerCount, Count: intPtr(5), MediaItemID: strPtr("f1"),
	}
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(20 * time.Minute)
	cursor := NewCursor(from)

	evs, err := newTestFiller().FillTail(context.Background(), newTestResolver(database), &cursor, models.Playout{ID: "po-1", Seed: 7}, preset, from, to)
	if err != nil {
		t.Fatalf("FillTail: %v", err)
	}

	// Duration semantics win on the tail path: two 7-minute draws fit,
	// the preset count of 5 is ignored.
	if len(evs) != 2 {
		t.Fatalf("event count = %d, want 2", len(evs))
	}
	for i, ev := range evs {
		if ev.FinishAt.After(to) {
			t.Errorf("tail event %d runs past the block end", i)
		}
	}
}
