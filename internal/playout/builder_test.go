/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/pseudovision/internal/db"
	"github.com/friendsincode/pseudovision/internal/models"
	"github.com/friendsincode/pseudovision/internal/resolver"
	"github.com/friendsincode/pseudovision/internal/timeutil"
)

// Ten movies with durations, in minutes, indexed by id 1..10.
var fixtureMinutes = []int{20, 25, 30, 15, 40, 35, 22, 28, 18, 33}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func seedMovies(t *testing.T, database *gorm.DB) {
	t.Helper()
	for i, mins := range fixtureMinutes {
		id := strconv.Itoa(i + 1)
		item := models.MediaItem{
			ID:        id,
			LibraryID: "lib-1",
			Kind:      models.MediaMovie,
			Title:     "Movie " + id,
			Path:      "/media/movie-" + id + ".mkv",
			Version: models.MediaVersion{
				ID:        "v" + id,
				Duration:  time.Duration(mins) * time.Minute,
				Container: "mkv",
			},
		}
		if err := database.Create(&item).Error; err != nil {
			t.Fatalf("seed movie %s: %v", id, err)
		}
	}
}

func seedManualCollection(t *testing.T, database *gorm.DB, id, name string, memberIDs []string) {
	t.Helper()
	col := models.Collection{ID: id, Name: name, Kind: models.CollectionManual}
	if err := database.Create(&col).Error; err != nil {
		t.Fatalf("seed collection %s: %v", id, err)
	}
	for i, mediaID := range memberIDs {
		order := i
		row := models.CollectionItem{CollectionID: id, MediaItemID: mediaID, CustomOrder: &order}
		if err := database.Create(&row).Error; err != nil {
			t.Fatalf("seed collection item %s/%s: %v", id, mediaID, err)
		}
	}
}

func idRange(from, to int) []string {
	ids := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		ids = append(ids, strconv.Itoa(i))
	}
	return ids
}

// setupBuild seeds the movie fixture, collections A (1..5), B (6..10) and
// C (1..10), one channel with one playout, and a schedule holding the
// given slots. Slot IDs, indexes and defaults are filled in.
func setupBuild(t *testing.T, slots []models.Slot) (*gorm.DB, string) {
	t.Helper()
	database := openTestDB(t)
	seedMovies(t, database)
	seedManualCollection(t, database, "col-a", "Collection A", idRange(1, 5))
	seedManualCollection(t, database, "col-b", "Collection B", idRange(6, 10))
	seedManualCollection(t, database, "col-c", "Collection C", idRange(1, 10))

	schedule := models.Schedule{
		ID:                     "sched-1",
		Name:                   "Main",
		FixedStartTimeBehavior: models.FixedStartSkip,
	}
	if err := database.Create(&schedule).Error; err != nil {
		t.Fatalf("seed schedule: %v", err)
	}
	for i := range slots {
		slots[i].ID = fmt.Sprintf("slot-%d", i+1)
		slots[i].ScheduleID = schedule.ID
		slots[i].SlotIndex = i
		if slots[i].Anchor == "" {
			slots[i].Anchor = models.AnchorSequential
		}
		if slots[i].PlaybackOrder == "" {
			slots[i].PlaybackOrder = models.OrderChronological
		}
		if err := database.Create(&slots[i]).Error; err != nil {
			t.Fatalf("seed slot %d: %v", i, err)
		}
	}

	channel := models.Channel{ID: "chan-1", Name: "Test Channel", Number: 1, GuideMode: models.GuideModeDefault}
	if err := database.Create(&channel).Error; err != nil {
		t.Fatalf("seed channel: %v", err)
	}
	playout := models.Playout{ID: "po-1", ChannelID: channel.ID, ScheduleID: schedule.ID, Seed: 42}
	if err := database.Create(&playout).Error; err != nil {
		t.Fatalf("seed playout: %v", err)
	}
	return database, playout.ID
}

func newTestBuilder(database *gorm.DB, now time.Time) *Builder {
	res := resolver.New(database, zerolog.Nop())
	return NewBuilder(database, res, timeutil.FixedClock{Instant: now}, nil, zerolog.Nop())
}

func loadTimeline(t *testing.T, database *gorm.DB, playoutID string) []models.PlayoutEvent {
	t.Helper()
	var evs []models.PlayoutEvent
	if err := database.Order("start_at ASC").Find(&evs, "playout_id = ?", playoutID).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	return evs
}

func assertTimelineInvariants(t *testing.T, evs []models.PlayoutEvent) {
	t.Helper()
	for i, ev := range evs {
		if !ev.FinishAt.After(ev.StartAt) {
			t.Errorf("event %d finishes at or before its start (%v / %v)", i, ev.StartAt, ev.FinishAt)
		}
		if ev.Kind != models.EventOffline && ev.MediaItemID == nil {
			t.Errorf("event %d has no media item", i)
		}
		if i > 0 && ev.StartAt.Before(evs[i-1].StartAt) {
			t.Errorf("event %d starts before its predecessor", i)
		}
		if i > 0 && ev.GuideGroup < evs[i-1].GuideGroup {
			t.Errorf("event %d regresses the guide group (%d after %d)", i, ev.GuideGroup, evs[i-1].GuideGroup)
		}
	}
}

func TestBuildOnceThenCount(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	database, playoutID := setupBuild(t, []models.Slot{
		{Anchor: models.AnchorSequential, FillMode: models.FillOnce, CollectionID: strPtr("col-a")},
		{Anchor: models.AnchorSequential, FillMode: models.FillCount, ItemCount: intPtr(3), CollectionID: strPtr("col-b")},
	})
	b := newTestBuilder(database, now)

	result, err := b.Build(context.Background(), playoutID, Options{LookaheadHours: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Outcome != OutcomeBuilt {
		t.Fatalf("outcome = %s, want built", result.Outcome)
	}

	evs := loadTimeline(t, database, playoutID)
	assertTimelineInvariants(t, evs)
	if len(evs) != 4 {
		t.Fatalf("event count = %d, want 4", len(evs))
	}

	wantIDs := []string{"1", "6", "7", "8"}
	wantMins := []int{20, 35, 22, 28}
	cur := now
	for i, ev := range evs {
		if *ev.MediaItemID != wantIDs[i] {
			t.Errorf("event %d media = %s, want %s", i, *ev.MediaItemID, wantIDs[i])
		}
		if !ev.StartAt.Equal(cur) {
			t.Errorf("event %d start = %v, want %v (timeline must be gapless)", i, ev.StartAt, cur)
		}
		wantDur := time.Duration(wantMins[i]) * time.Minute
		if got := ev.FinishAt.Sub(ev.StartAt); got != wantDur {
			t.Errorf("event %d duration = %v, want %v", i, got, wantDur)
		}
		cur = ev.FinishAt
	}

	// The once slot claims its own guide group; the count slot's three
	// events share the next one.
	if evs[0].GuideGroup != 1 {
		t.Errorf("once guide group = %d, want 1", evs[0].GuideGroup)
	}
	for i := 1; i < 4; i++ {
		if evs[i].GuideGroup != 2 {
			t.Errorf("count event %d guide group = %d, want 2", i, evs[i].GuideGroup)
		}
	}
}

func TestBuildBlockBoundaries(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	database, playoutID := setupBuild(t, []models.Slot{
		{
			Anchor:        models.AnchorSequential,
			FillMode:      models.FillBlock,
			BlockDuration: durPtr(2 * time.Hour),
			TailMode:      models.TailNone,
			CollectionID:  strPtr("col-c"),
		},
	})
	b := newTestBuilder(database, now)

	result, err := b.Build(context.Background(), playoutID, Options{LookaheadHours: 3})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	evs := loadTimeline(t, database, playoutID)
	assertTimelineInvariants(t, evs)

	// Block one holds 1..4 (20+25+30+15 = 90 of 120 minutes; 40 would
	// overflow); block two resumes at 5 and holds 5..7 (40+35+22 = 97).
	if len(evs) != 7 {
		t.Fatalf("event count = %d, want 7", len(evs))
	}
	blockTwoStart := now.Add(2 * time.Hour)
	for i, ev := range evs[:4] {
		if ev.FinishAt.After(blockTwoStart) {
			t.Errorf("block-one event %d runs past the block end", i)
		}
		if ev.GuideGroup != 1 {
			t.Errorf("block-one event %d guide group = %d, want 1", i, ev.GuideGroup)
		}
	}
	if !evs[4].StartAt.Equal(blockTwoStart) {
		t.Errorf("second block starts at %v, want exactly %v", evs[4].StartAt, blockTwoStart)
	}
	for i, ev := range evs[4:] {
		if ev.GuideGroup != 2 {
			t.Errorf("block-two event %d guide group = %d, want 2", i, ev.GuideGroup)
		}
	}
	if got := *evs[4].MediaItemID; got != "5" {
		t.Errorf("second block resumes at media %s, want 5", got)
	}

	// next_start always lands on the block end, overflow or not.
	if want := now.Add(4 * time.Hour); !result.NextStart.Equal(want) {
		t.Errorf("NextStart = %v, want %v", result.NextStart, want)
	}
}

func TestBuildFloodBetweenFixedAnchors(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	database, playoutID := setupBuild(t, []models.Slot{
		{Anchor: models.AnchorFixed, StartTime: durPtr(0), FillMode: models.FillFlood, CollectionID: strPtr("col-a")},
		{Anchor: models.AnchorFixed, StartTime: durPtr(6 * time.Hour), FillMode: models.FillFlood, CollectionID: strPtr("col-b")},
		{Anchor: models.AnchorFixed, StartTime: durPtr(12 * time.Hour), FillMode: models.FillOnce, CollectionID: strPtr("col-c")},
	})
	b := newTestBuilder(database, now)

	if _, err := b.Build(context.Background(), playoutID, Options{LookaheadHours: 12}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	evs := loadTimeline(t, database, playoutID)
	assertTimelineInvariants(t, evs)

	// A (130 min per pass) yields 14 items inside [00:00, 06:00); B
	// (136 min per pass) yields 13 inside [06:00, 12:00); the noon slot
	// emits one.
	if len(evs) != 28 {
		t.Fatalf("event count = %d, want 28", len(evs))
	}

	sixAM := now.Add(6 * time.Hour)
	noon := now.Add(12 * time.Hour)
	for i, ev := range evs {
		id, _ := strconv.Atoi(*ev.MediaItemID)
		switch {
		case ev.StartAt.Before(sixAM):
			if id < 1 || id > 5 {
				t.Errorf("event %d in the morning window draws media %d, want 1..5", i, id)
			}
			if ev.FinishAt.After(sixAM) {
				t.Errorf("event %d crosses the 06:00 anchor", i)
			}
		case ev.StartAt.Before(noon):
			if id < 6 || id > 10 {
				t.Errorf("event %d in the afternoon window draws media %d, want 6..10", i, id)
			}
			if ev.FinishAt.After(noon) {
				t.Errorf("event %d crosses the 12:00 anchor", i)
			}
		}
	}

	last := evs[len(evs)-1]
	if !last.StartAt.Equal(noon) {
		t.Errorf("noon slot starts at %v, want exactly %v", last.StartAt, noon)
	}
	if *last.MediaItemID != "1" {
		t.Errorf("noon slot media = %s, want 1 (fresh enumeration over C)", *last.MediaItemID)
	}
}

func TestBuildEmptyCollectionBumpsGuideOnly(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	database, playoutID := setupBuild(t, []models.Slot{
		{Anchor: models.AnchorSequential, FillMode: models.FillOnce, CollectionID: strPtr("col-empty")},
	})
	seedManualCollection(t, database, "col-empty", "Empty", nil)
	b := newTestBuilder(database, now)

	result, err := b.Build(context.Background(), playoutID, Options{LookaheadHours: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.EventCount != 0 {
		t.Fatalf("event count = %d, want 0", result.EventCount)
	}

	var playout models.Playout
	if err := database.First(&playout, "id = ?", playoutID).Error; err != nil {
		t.Fatalf("reload playout: %v", err)
	}
	cursor, err := UnmarshalCursor(playout.Cursor)
	if err != nil {
		t.Fatalf("restore cursor: %v", err)
	}
	if !cursor.NextStart.Equal(now) {
		t.Errorf("NextStart = %v, want unchanged %v", cursor.NextStart, now)
	}
	if cursor.NextGuideGroup != 2 {
		t.Errorf("NextGuideGroup = %d, want 2 (empty slot still claims a group)", cursor.NextGuideGroup)
	}
}

func TestBuildZeroItemCount(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	database, playoutID := setupBuild(t, []models.Slot{
		{Anchor: models.AnchorSequential, FillMode: models.FillCount, ItemCount: intPtr(0), CollectionID: strPtr("col-a")},
	})
	b := newTestBuilder(database, now)

	result, err := b.Build(context.Background(), playoutID, Options{LookaheadHours: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.EventCount != 0 {
		t.Fatalf("event count = %d, want 0", result.EventCount)
	}
}

func TestBuildZeroBlockDuration(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	database, playoutID := setupBuild(t, []models.Slot{
		{Anchor: models.AnchorSequential, FillMode: models.FillBlock, BlockDuration: durPtr(0), CollectionID: strPtr("col-a")},
	})
	b := newTestBuilder(database, now)

	result, err := b.Build(context.Background(), playoutID, Options{LookaheadHours: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.EventCount != 0 {
		t.Fatalf("event count = %d, want 0", result.EventCount)
	}

	var playout models.Playout
	if err := database.First(&playout, "id = ?", playoutID).Error; err != nil {
		t.Fatalf("reload playout: %v", err)
	}
	cursor, err := UnmarshalCursor(playout.Cursor)
	if err != nil {
		t.Fatalf("restore cursor: %v", err)
	}
	if !cursor.NextStart.Equal(now) {
		t.Errorf("NextStart = %v, want unchanged %v", cursor.NextStart, now)
	}
}

func TestRebuildPreservesManualAndPastEvents(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	database, playoutID := setupBuild(t, []models.Slot{
		{Anchor: models.AnchorSequential, FillMode: models.FillOnce, CollectionID: strPtr("col-a")},
	})

	preexisting := []models.PlayoutEvent{
		{
			ID: "manual-1", PlayoutID: playoutID, MediaItemID: strPtr("9"),
			Kind: models.EventContent, IsManual: true,
			StartAt: now.Add(30 * time.Minute), FinishAt: now.Add(45 * time.Minute),
			GuideGroup: 1,
		},
		{
			ID: "stale-1", PlayoutID: playoutID, MediaItemID: strPtr("2"),
			Kind: models.EventContent, IsManual: false,
			StartAt: now.Add(10 * time.Minute), FinishAt: now.Add(35 * time.Minute),
			GuideGroup: 1,
		},
		{
			ID: "past-1", PlayoutID: playoutID, MediaItemID: strPtr("3"),
			Kind: models.EventContent, IsManual: false,
			StartAt: now.Add(-2 * time.Hour), FinishAt: now.Add(-90 * time.Minute),
			GuideGroup: 1,
		},
	}
	for _, ev := range preexisting {
		if err := database.Create(&ev).Error; err != nil {
			t.Fatalf("seed event %s: %v", ev.ID, err)
		}
	}

	b := newTestBuilder(database, now)
	if _, err := b.Build(context.Background(), playoutID, Options{LookaheadHours: 1}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	var count int64
	database.Model(&models.PlayoutEvent{}).Where("id = ?", "manual-1").Count(&count)
	if count != 1 {
		t.Error("manual event did not survive the rebuild")
	}
	database.Model(&models.PlayoutEvent{}).Where("id = ?", "past-1").Count(&count)
	if count != 1 {
		t.Error("already-aired event did not survive the rebuild")
	}
	database.Model(&models.PlayoutEvent{}).Where("id = ?", "stale-1").Count(&count)
	if count != 0 {
		t.Error("stale automatic event was not reaped")
	}

	database.Model(&models.PlayoutEvent{}).
		Where("playout_id = ? AND is_manual = ? AND start_at >= ?", playoutID, false, now).
		Count(&count)
	if count != 3 {
		t.Errorf("rebuilt automatic events = %d, want 3", count)
	}
}

// A second build from the persisted cursor must continue the timeline
// gaplessly and resume enumeration where the first build stopped.
func TestRebuildResumesFromCursor(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	database, playoutID := setupBuild(t, []models.Slot{
		{Anchor: models.AnchorSequential, FillMode: models.FillOnce, CollectionID: strPtr("col-a")},
	})

	b1 := newTestBuilder(database, now)
	first, err := b1.Build(context.Background(), playoutID, Options{LookaheadHours: 1})
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	// 20 + 25 + 30 minutes of media 1..3 pushes next_start past the
	// one-hour horizon.
	if first.EventCount != 3 {
		t.Fatalf("first build event count = %d, want 3", first.EventCount)
	}

	later := first.NextStart
	b2 := newTestBuilder(database, later)
	if _, err := b2.Build(context.Background(), playoutID, Options{LookaheadHours: 1}); err != nil {
		t.Fatalf("second Build: %v", err)
	}

	evs := loadTimeline(t, database, playoutID)
	assertTimelineInvariants(t, evs)
	if len(evs) != 6 {
		t.Fatalf("event count after rebuild = %d, want 6", len(evs))
	}

	wantIDs := []string{"1", "2", "3", "4", "5", "1"}
	cur := now
	for i, ev := range evs {
		if *ev.MediaItemID != wantIDs[i] {
			t.Errorf("event %d media = %s, want %s", i, *ev.MediaItemID, wantIDs[i])
		}
		if !ev.StartAt.Equal(cur) {
			t.Errorf("event %d start = %v, want %v (rebuild must be gapless)", i, ev.StartAt, cur)
		}
		cur = ev.FinishAt
	}
}

func TestBuildMissingScheduleIsNoSchedule(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	database := openTestDB(t)
	channel := models.Channel{ID: "chan-1", Name: "Orphan", Number: 1}
	if err := database.Create(&channel).Error; err != nil {
		t.Fatalf("seed channel: %v", err)
	}
	playout := models.Playout{ID: "po-1", ChannelID: channel.ID, ScheduleID: "ghost", Seed: 1}
	if err := database.Create(&playout).Error; err != nil {
		t.Fatalf("seed playout: %v", err)
	}

	b := newTestBuilder(database, now)
	result, err := b.Build(context.Background(), playout.ID, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Outcome != OutcomeNoSchedule {
		t.Fatalf("outcome = %s, want no_schedule", result.Outcome)
	}
}

// Every read a build performs must go through its own transaction, so a
// pool capped at one connection can never deadlock mid-build.
func TestBuildWithSingleConnectionPool(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	database, playoutID := setupBuild(t, []models.Slot{
		{Anchor: models.AnchorSequential, FillMode: models.FillOnce, CollectionID: strPtr("col-a")},
	})
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	b := newTestBuilder(database, now)
	result, err := b.Build(context.Background(), playoutID, Options{LookaheadHours: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.EventCount == 0 {
		t.Fatal("build produced no events")
	}
}

func TestBuildBlockTailFillerStaysInsideBlock(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	database, playoutID := setupBuild(t, []models.Slot{
		{
			Anchor:        models.AnchorSequential,
			FillMode:      models.FillBlock,
			BlockDuration: durPtr(110 * time.Minute),
			TailMode:      models.TailFiller,
			TailFillerID:  strPtr("fp-tail"),
			CollectionID:  strPtr("col-a"),
		},
	})
	seedFillerItem(t, database, "f1", 7*time.Minute)
	preset := models.FillerPreset{
		ID: "fp-tail", Name: "Tail Bumpers", Role: models.RoleTail,
		Mode: models.FillerCount, Count: intPtr(5), MediaItemID: strPtr("f1"),
	}
	if err := database.Create(&preset).Error; err != nil {
		t.Fatalf("seed preset: %v", err)
	}

	b := newTestBuilder(database, now)
	result, err := b.Build(context.Background(), playoutID, Options{LookaheadHours: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	evs := loadTimeline(t, database, playoutID)
	assertTimelineInvariants(t, evs)

	// Content 1..4 fills 90 of 110 minutes; the 20-minute remainder takes
	// two 7-minute bumpers. The preset's count of 5 would cross the block
	// end and is overridden on the tail path.
	if len(evs) != 6 {
		t.Fatalf("event count = %d, want 6", len(evs))
	}
	blockEnd := now.Add(110 * time.Minute)
	for i, ev := range evs {
		if ev.FinishAt.After(blockEnd) {
			t.Errorf("event %d finishes at %v, past the block end %v", i, ev.FinishAt, blockEnd)
		}
	}
	for i, ev := range evs[4:] {
		if ev.Kind != models.EventTail {
			t.Errorf("tail event %d kind = %s, want tail", i, ev.Kind)
		}
		if ev.GuideGroup != 1 {
			t.Errorf("tail event %d guide group = %d, want the block's group 1", i, ev.GuideGroup)
		}
	}
	if !result.NextStart.Equal(blockEnd) {
		t.Errorf("NextStart = %v, want the block end %v", result.NextStart, blockEnd)
	}
}

func TestValidateEventsRejectsOverlap(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	good := []models.PlayoutEvent{
		{ID: "a", MediaItemID: strPtr("1"), Kind: models.EventContent, StartAt: now, FinishAt: now.Add(time.Hour), GuideGroup: 1},
		{ID: "b", MediaItemID: strPtr("2"), Kind: models.EventContent, StartAt: now.Add(time.Hour), FinishAt: now.Add(2 * time.Hour), GuideGroup: 1},
	}
	if err := validateEvents(good); err != nil {
		t.Fatalf("back-to-back events must validate: %v", err)
	}

	bad := []models.PlayoutEvent{
		{ID: "a", MediaItemID: strPtr("1"), Kind: models.EventContent, StartAt: now, FinishAt: now.Add(time.Hour), GuideGroup: 1},
		{ID: "b", MediaItemID: strPtr("2"), Kind: models.EventContent, StartAt: now.Add(30 * time.Minute), FinishAt: now.Add(90 * time.Minute), GuideGroup: 1},
	}
	if err := validateEvents(bad); err == nil {
		t.Fatal("overlapping events must be rejected")
	}
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func durPtr(d time.Duration) *time.Duration { return &d }
