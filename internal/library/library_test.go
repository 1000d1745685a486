/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package library

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

func TestIsMediaFile(t *testing.T) {
	for _, name := range []string{"movie.mkv", "clip.MP4", "show.ts", "old.mpeg"} {
		if !isMediaFile(name) {
			t.Errorf("isMediaFile(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"poster.jpg", "notes.txt", "movie.nfo", "noext"} {
		if isMediaFile(name) {
			t.Errorf("isMediaFile(%q) = true, want false", name)
		}
	}
}

func TestKindForPath(t *testing.T) {
	if got := kindForPath("/media/shows/Show/Season 01/e01.mkv"); got != models.MediaEpisode {
		t.Errorf("season layout kind = %s, want episode", got)
	}
	if got := kindForPath("/media/shows/Show/Specials/e00.mkv"); got != models.MediaEpisode {
		t.Errorf("specials layout kind = %s, want episode", got)
	}
	if got := kindForPath("/media/movies/Feature (2020)/feature.mkv"); got != models.MediaMovie {
		t.Errorf("movie layout kind = %s, want movie", got)
	}
}

func TestTitleForPath(t *testing.T) {
	if got := titleForPath("/media/movies/The Feature.mkv"); got != "The Feature" {
		t.Errorf("title = %q, want %q", got, "The Feature")
	}
}

func TestJellyfinSyncLibrary(t *testing.T) {
	database := openTestDB(t)

	const thirtyMinTicks = int64(30) * 60 * 10_000_000

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Query().Get("ParentId") != "remote-lib-1" {
			t.Errorf("ParentId = %q, want remote-lib-1", r.URL.Query().Get("ParentId"))
		}
		page := map[string]any{
			"TotalRecordCount": 2,
			"Items": []map[string]any{
				{
					"Id": "jf-movie-1", "Name": "Feature", "Type": "Movie",
					"RunTimeTicks": thirtyMinTicks,
					"Path":         "/remote/movies/feature.mkv",
					"Container":    "mkv",
				},
				{
					"Id": "jf-ep-1", "Name": "Pilot", "Type": "Episode",
					"SeriesId": "jf-series-1", "IndexNumber": 1,
					"RunTimeTicks": thirtyMinTicks / 2,
				},
			},
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	source := models.MediaSource{
		ID: "src-1", Kind: models.SourceJellyfin, Name: "Jellyfin",
		ConnectionConfig: map[string]any{"base_url": server.URL, "api_key": "secret"},
	}
	if err := database.Create(&source).Error; err != nil {
		t.Fatalf("seed source: %v", err)
	}
	lib := models.Library{ID: "lib-1", MediaSourceID: source.ID, Name: "Movies", Path: "remote-lib-1"}
	if err := database.Create(&lib).Error; err != nil {
		t.Fatalf("seed library: %v", err)
	}

	sync := NewJellyfinSync(database, zerolog.Nop())
	if err := sync.SyncLibrary(context.Background(), source, lib); err != nil {
		t.Fatalf("SyncLibrary: %v", err)
	}

	if gotAuth != `MediaBrowser Token="secret"` {
		t.Errorf("Authorization = %q", gotAuth)
	}

	var movie models.MediaItem
	if err := database.Preload("Version").First(&movie, "path = ?", "/remote/movies/feature.mkv").Error; err != nil {
		t.Fatalf("load synced movie: %v", err)
	}
	if movie.Kind != models.MediaMovie || movie.Title != "Feature" {
		t.Errorf("movie = %+v", movie)
	}
	if movie.Version.Duration != 30*time.Minute {
		t.Errorf("movie duration = %v, want 30m (ticks are 100ns units)", movie.Version.Duration)
	}

	// Episodes without a remote path fall back to a jellyfin:// pseudo
	// path and keep their series linkage.
	var episode models.MediaItem
	if err := database.Preload("Version").First(&episode, "path = ?", "jellyfin://jf-ep-1").Error; err != nil {
		t.Fatalf("load synced episode: %v", err)
	}
	if episode.Kind != models.MediaEpisode || episode.Position != 1 {
		t.Errorf("episode = %+v", episode)
	}
	if episode.ParentID == nil || *episode.ParentID != "jf-series-1" {
		t.Error("episode must keep its series id as parent")
	}

	var reloaded models.Library
	if err := database.First(&reloaded, "id = ?", lib.ID).Error; err != nil {
		t.Fatalf("reload library: %v", err)
	}
	if reloaded.LastScanAt == nil {
		t.Error("sync must stamp last_scan_at")
	}
}

// A second sync of the same items must update in place, not duplicate.
func TestJellyfinSyncIsIdempotent(t *testing.T) {
	database := openTestDB(t)

	ticks := int64(10) * 60 * 10_000_000
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := map[string]any{
			"TotalRecordCount": 1,
			"Items": []map[string]any{
				{
					"Id": "jf-1", "Name": "Short", "Type": "Movie",
					"RunTimeTicks": ticks, "Path": "/remote/short.mkv",
				},
			},
		}
		_ = json.NewEncoder(w).Encode(page)
		ticks *= 2
	}))
	defer server.Close()

	source := models.MediaSource{
		ID: "src-1", Kind: models.SourceJellyfin, Name: "Jellyfin",
		ConnectionConfig: map[string]any{"base_url": server.URL, "api_key": "secret"},
	}
	if err := database.Create(&source).Error; err != nil {
		t.Fatalf("seed source: %v", err)
	}
	lib := models.Library{ID: "lib-1", MediaSourceID: source.ID, Name: "Movies", Path: "remote-lib-1"}
	if err := database.Create(&lib).Error; err != nil {
		t.Fatalf("seed library: %v", err)
	}

	sync := NewJellyfinSync(database, zerolog.Nop())
	for i := 0; i < 2; i++ {
		if err := sync.SyncLibrary(context.Background(), source, lib); err != nil {
			t.Fatalf("SyncLibrary pass %d: %v", i+1, err)
		}
	}

	var count int64
	database.Model(&models.MediaItem{}).Count(&count)
	if count != 1 {
		t.Fatalf("media item count = %d, want 1", count)
	}

	var item models.MediaItem
	if err := database.Preload("Version").First(&item, "path = ?", "/remote/short.mkv").Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.Version.Duration != 20*time.Minute {
		t.Errorf("duration = %v, want 20m from the second pass", item.Version.Duration)
	}
}

func TestSyncRequiresConnectionConfig(t *testing.T) {
	database := openTestDB(t)
	source := models.MediaSource{ID: "src-1", Kind: models.SourceJellyfin, Name: "Broken"}
	lib := models.Library{ID: "lib-1", MediaSourceID: source.ID, Name: "Movies", Path: "x"}

	sync := NewJellyfinSync(database, zerolog.Nop())
	if err := sync.SyncLibrary(context.Background(), source, lib); err == nil {
		t.Fatal("expected an error for a source without base_url/api_key")
	}
}
