/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package resolver expands collection references into ordered media item
// lists for the build engine.
package resolver

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/pseudovision/internal/models"
)

// maxDepth bounds playlist/multi recursion. Reference cycles are not
// detected; hitting the bound logs a warning and stops descending.
const maxDepth = 8

// Resolver loads and flattens collection contents.
type Resolver struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New constructs a collection resolver.
func New(db *gorm.DB, logger zerolog.Logger) *Resolver {
	return &Resolver{db: db, logger: logger}
}

// WithDB returns a resolver bound to the given handle. The build engine
// uses this to keep resolution reads inside its transaction.
func (r *Resolver) WithDB(db *gorm.DB) *Resolver {
	return &Resolver{db: db, logger: r.logger}
}

// ItemsForSlot resolves the slot's content source to an ordered item
// list. Single-item slots yield a one-element vector.
func (r *Resolver) ItemsForSlot(ctx context.Context, slot models.Slot) ([]models.MediaItem, error) {
	if slot.MediaItemID != nil {
		return r.singleItem(ctx, *slot.MediaItemID)
	}
	if slot.CollectionID != nil {
		return r.Collection(ctx, *slot.CollectionID)
	}
	return nil, fmt.Errorf("slot %s has no content source", slot.ID)
}

// ItemsForPreset resolves a filler preset's content source.
func (r *Resolver) ItemsForPreset(ctx context.Context, preset models.FillerPreset) ([]models.MediaItem, error) {
	if preset.MediaItemID != nil {
		return r.singleItem(ctx, *preset.MediaItemID)
	}
	if preset.CollectionID != nil {
		return r.Collection(ctx, *preset.CollectionID)
	}
	return nil, fmt.Errorf("filler preset %s has no content source", preset.ID)
}

func (r *Resolver) singleItem(ctx context.Context, mediaItemID string) ([]models.MediaItem, error) {
	var item models.MediaItem
	err := r.db.WithContext(ctx).Preload("Version").First(&item, "id = ?", mediaItemID).Error
	if err != nil {
		return nil, fmt.Errorf("load media item %s: %w", mediaItemID, err)
	}
	return []models.MediaItem{item}, nil
}

// Collection expands a collection reference to an ordered item list.
func (r *Resolver) Collection(ctx context.Context, collectionID string) ([]models.MediaItem, error) {
	return r.resolve(ctx, collectionID, 0)
}

func (r *Resolver) resolve(ctx context.Context, collectionID string, depth int) ([]models.MediaItem, error) {
	if depth > maxDepth {
		r.logger.Warn().
			Str("collection_id", collectionID).
			Int("depth", depth).
			Msg("collection recursion depth exceeded, truncating")
		return nil, nil
	}

	var collection models.Collection
	if err := r.db.WithContext(ctx).First(&collection, "id = ?", collectionID).Error; err != nil {
		return nil, fmt.Errorf("load collection %s: %w", collectionID, err)
	}

	switch collection.Kind {
	case models.CollectionManual:
		return r.manualItems(ctx, collectionID)
	case models.CollectionPlaylist:
		return r.childItems(ctx, collection, "items", depth)
	case models.CollectionMulti:
		return r.childItems(ctx, collection, "members", depth)
	case models.CollectionTrakt:
		return r.traktItems(ctx, collectionID)
	case models.CollectionSmart, models.CollectionRerun:
		r.logger.Warn().
			Str("collection_id", collectionID).
			Str("kind", string(collection.Kind)).
			Msg("collection kind not supported yet, resolving to empty")
		return nil, nil
	default:
		r.logger.Error().
			Str("collection_id", collectionID).
			Str("kind", string(collection.Kind)).
			Msg("unknown collection kind")
		return nil, nil
	}
}

func (r *Resolver) manualItems(ctx context.Context, collectionID string) ([]models.MediaItem, error) {
	var items []models.MediaItem
	err := r.db.WithContext(ctx).
		Preload("Version").
		Joins("JOIN collection_items ON collection_items.media_item_id = media_items.id").
		Where("collection_items.collection_id = ?", collectionID).
		Order("COALESCE(collection_items.custom_order, 2147483647) ASC, media_items.id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("resolve manual collection %s: %w", collectionID, err)
	}
	return items, nil
}

func (r *Resolver) traktItems(ctx context.Context, collectionID string) ([]models.MediaItem, error) {
	var items []models.MediaItem
	err := r.db.WithContext(ctx).
		Preload("Version").
		Joins("JOIN trakt_list_items ON trakt_list_items.media_item_id = media_items.id").
		Where("trakt_list_items.collection_id = ?", collectionID).
		Order("trakt_list_items.media_item_id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("resolve trakt collection %s: %w", collectionID, err)
	}
	return items, nil
}

// childItems flattens child collection references stored in the config
// document under the given key, preserving declaration order.
func (r *Resolver) childItems(ctx context.Context, collection models.Collection, key string, depth int) ([]models.MediaItem, error) {
	ids := childIDs(collection.Config, key)
	if len(ids) == 0 {
		return nil, nil
	}

	var flattened []models.MediaItem
	for _, childID := range ids {
		items, err := r.resolve(ctx, childID, depth+1)
		if err != nil {
			return nil, err
		}
		flattened = append(flattened, items...)
	}
	return flattened, nil
}

func childIDs(config map[string]any, key string) []string {
	if config == nil {
		return nil
	}
	raw, ok := config[key].([]any)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(raw))
	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			ids = append(ids, v)
		case map[string]any:
			if id, ok := v["collection_id"].(string); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
