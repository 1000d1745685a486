/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package library

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/pseudovision/internal/models"
	"github.com/friendsincode/pseudovision/internal/telemetry"
)

// JellyfinSync pulls item metadata from a Jellyfin server into local
// libraries. Durations arrive as ticks (100ns units).
type JellyfinSync struct {
	db     *gorm.DB
	client *http.Client
	logger zerolog.Logger
}

// NewJellyfinSync constructs a Jellyfin sync client.
func NewJellyfinSync(database *gorm.DB, logger zerolog.Logger) *JellyfinSync {
	return &JellyfinSync{
		db:     database,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger.With().Str("component", "jellyfin").Logger(),
	}
}

// jellyfinItem is the subset of the Jellyfin item document we consume.
type jellyfinItem struct {
	ID            string `json:"Id"`
	Name          string `json:"Name"`
	Type          string `json:"Type"`
	SeriesID      string `json:"SeriesId"`
	IndexNumber   int    `json:"IndexNumber"`
	RunTimeTicks  int64  `json:"RunTimeTicks"`
	Path          string `json:"Path"`
	Container     string `json:"Container"`
}

type jellyfinItemsPage struct {
	Items            []jellyfinItem `json:"Items"`
	TotalRecordCount int            `json:"TotalRecordCount"`
}

// SyncLibrary pulls the remote library's items and upserts them locally.
// The media source's connection config must carry base_url, api_key and
// the remote parent id for this library.
func (j *JellyfinSync) SyncLibrary(ctx context.Context, source models.MediaSource, lib models.Library) error {
	baseURL, _ := source.ConnectionConfig["base_url"].(string)
	apiKey, _ := source.ConnectionConfig["api_key"].(string)
	if baseURL == "" || apiKey == "" {
		return fmt.Errorf("media source %s is missing base_url or api_key", source.ID)
	}

	j.logger.Info().Str("library_id", lib.ID).Str("base_url", baseURL).Msg("jellyfin sync started")

	const pageSize = 200
	for start := 0; ; start += pageSize {
		page, err := j.fetchItems(ctx, baseURL, apiKey, lib.Path, start, pageSize)
		if err != nil {
			return err
		}
		for _, item := range page.Items {
			if err := j.upsertItem(ctx, lib, item); err != nil {
				j.logger.Warn().Err(err).Str("jellyfin_id", item.ID).Msg("jellyfin item upsert failed")
				telemetry.ScanItemsTotal.WithLabelValues("error").Inc()
			}
		}
		if start+pageSize >= page.TotalRecordCount {
			break
		}
	}

	now := time.Now().UTC()
	return j.db.WithContext(ctx).Model(&models.Library{}).
		Where("id = ?", lib.ID).
		Update("last_scan_at", now).Error
}

func (j *JellyfinSync) fetchItems(ctx context.Context, baseURL, apiKey, parentID string, start, limit int) (*jellyfinItemsPage, error) {
	query := url.Values{}
	query.Set("ParentId", parentID)
	query.Set("Recursive", "true")
	query.Set("IncludeItemTypes", "Movie,Episode")
	query.Set("Fields", "Path")
	query.Set("StartIndex", fmt.Sprintf("%d", start))
	query.Set("Limit", fmt.Sprintf("%d", limit))

	endpoint := fmt.Sprintf("%s/Items?%s", baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf(`MediaBrowser Token="%s"`, apiKey))

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jellyfin items request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jellyfin items request: unexpected status %d", resp.StatusCode)
	}

	var page jellyfinItemsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode jellyfin items: %w", err)
	}
	return &page, nil
}

func (j *JellyfinSync) upsertItem(ctx context.Context, lib models.Library, remote jellyfinItem) error {
	duration := time.Duration(remote.RunTimeTicks) * 100 * time.Nanosecond
	path := remote.Path
	if path == "" {
		path = "jellyfin://" + remote.ID
	}

	var item models.MediaItem
	err := j.db.WithContext(ctx).First(&item, "path = ?", path).Error
	switch {
	case err == nil:
		if err := j.db.WithContext(ctx).Model(&models.MediaVersion{}).
			Where("media_item_id = ?", item.ID).
			Update("duration", duration).Error; err != nil {
			return err
		}
		telemetry.ScanItemsTotal.WithLabelValues("updated").Inc()
		return nil
	case err == gorm.ErrRecordNotFound:
		kind := models.MediaMovie
		var parentID *string
		if remote.Type == "Episode" {
			kind = models.MediaEpisode
			if remote.SeriesID != "" {
				seriesID := remote.SeriesID
				parentID = &seriesID
			}
		}
		item = models.MediaItem{
			ID:        uuid.NewString(),
			LibraryID: lib.ID,
			Kind:      kind,
			Title:     remote.Name,
			SortKey:   remote.Name,
			ParentID:  parentID,
			Position:  remote.IndexNumber,
			Path:      path,
			Version: models.MediaVersion{
				ID:        uuid.NewString(),
				Duration:  duration,
				Container: remote.Container,
			},
		}
		if err := j.db.WithContext(ctx).Create(&item).Error; err != nil {
			return err
		}
		telemetry.ScanItemsTotal.WithLabelValues("created").Inc()
		return nil
	default:
		return err
	}
}
