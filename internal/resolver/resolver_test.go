/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/pseudovision/internal/db"
	"github.com/friendsincode/pseudovision/internal/models"
)

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

func seedItem(t *testing.T, database *gorm.DB, id string) {
	t.Helper()
	item := models.MediaItem{
		ID:        id,
		LibraryID: "lib-1",
		Kind:      models.MediaMovie,
		Title:     "Item " + id,
		Path:      "/media/" + id + ".mkv",
		Version:   models.MediaVersion{ID: "v" + id, Duration: 30 * time.Minute},
	}
	if err := database.Create(&item).Error; err != nil {
		t.Fatalf("seed item %s: %v", id, err)
	}
}

func seedCollection(t *testing.T, database *gorm.DB, col models.Collection) {
	t.Helper()
	if err := database.Create(&col).Error; err != nil {
		t.Fatalf("seed collection %s: %v", col.ID, err)
	}
}

func addMember(t *testing.T, database *gorm.DB, collectionID, mediaItemID string, order *int) {
	t.Helper()
	row := models.CollectionItem{CollectionID: collectionID, MediaItemID: mediaItemID, CustomOrder: order}
	if err := database.Create(&row).Error; err != nil {
		t.Fatalf("seed member %s/%s: %v", collectionID, mediaItemID, err)
	}
}

func itemIDs(items []models.MediaItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

func assertOrder(t *testing.T, items []models.MediaItem, want []string) {
	t.Helper()
	got := itemIDs(items)
	if len(got) != len(want) {
		t.Fatalf("item ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item ids = %v, want %v", got, want)
		}
	}
}

func TestManualCollectionOrdering(t *testing.T) {
	database := openTestDB(t)
	for _, id := range []string{"a", "b", "c"} {
		seedItem(t, database, id)
	}
	seedCollection(t, database, models.Collection{ID: "col-1", Name: "Manual", Kind: models.CollectionManual})

	// c carries an explicit order; a and b fall back to id order after it.
	zero := 0
	addMember(t, database, "col-1", "c", &zero)
	addMember(t, database, "col-1", "a", nil)
	addMember(t, database, "col-1", "b", nil)

	items, err := New(database, zerolog.Nop()).Collection(context.Background(), "col-1")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	assertOrder(t, items, []string{"c", "a", "b"})

	if items[0].Version.Duration != 30*time.Minute {
		t.Error("resolved items must carry their version")
	}
}

func TestPlaylistFlattensChildrenInOrder(t *testing.T) {
	database := openTestDB(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		seedItem(t, database, id)
	}
	seedCollection(t, database, models.Collection{ID: "child-1", Name: "Child One", Kind: models.CollectionManual})
	seedCollection(t, database, models.Collection{ID: "child-2", Name: "Child Two", Kind: models.CollectionManual})
	first, second := 0, 1
	addMember(t, database, "child-1", "c", &first)
	addMember(t, database, "child-1", "d", &second)
	addMember(t, database, "child-2", "a", &first)
	addMember(t, database, "child-2", "b", &second)

	seedCollection(t, database, models.Collection{
		ID: "pl-1", Name: "Playlist", Kind: models.CollectionPlaylist,
		Config: map[string]any{"items": []any{"child-2", "child-1"}},
	})

	items, err := New(database, zerolog.Nop()).Collection(context.Background(), "pl-1")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	assertOrder(t, items, []string{"a", "b", "c", "d"})
}

func TestMultiCollectionUsesMembersKey(t *testing.T) {
	database := openTestDB(t)
	seedItem(t, database, "a")
	seedCollection(t, database, models.Collection{ID: "child-1", Name: "Child", Kind: models.CollectionManual})
	addMember(t, database, "child-1", "a", nil)

	seedCollection(t, database, models.Collection{
		ID: "multi-1", Name: "Multi", Kind: models.CollectionMulti,
		Config: map[string]any{"members": []any{"child-1"}},
	})

	items, err := New(database, zerolog.Nop()).Collection(context.Background(), "multi-1")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	assertOrder(t, items, []string{"a"})
}

func TestSingleItemSlot(t *testing.T) {
	database := openTestDB(t)
	seedItem(t, database, "a")

	id := "a"
	items, err := New(database, zerolog.Nop()).ItemsForSlot(context.Background(), models.Slot{ID: "slot-1", MediaItemID: &id})
	if err != nil {
		t.Fatalf("ItemsForSlot: %v", err)
	}
	assertOrder(t, items, []string{"a"})
}

func TestSlotWithoutSourceFails(t *testing.T) {
	database := openTestDB(t)

	_, err := New(database, zerolog.Nop()).ItemsForSlot(context.Background(), models.Slot{ID: "slot-1"})
	if err == nil {
		t.Fatal("expected an error for a slot without a content source")
	}
}

// A self-referencing playlist must terminate at the recursion bound
// instead of spinning.
func TestRecursiveCollectionTruncates(t *testing.T) {
	database := openTestDB(t)
	seedCollection(t, database, models.Collection{
		ID: "loop-1", Name: "Loop", Kind: models.CollectionPlaylist,
		Config: map[string]any{"items": []any{"loop-1"}},
	})

	items, err := New(database, zerolog.Nop()).Collection(context.Background(), "loop-1")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("item count = %d, want 0", len(items))
	}
}
