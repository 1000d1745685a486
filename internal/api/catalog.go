/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/pseudovision/internal/events"
	"github.com/friendsincode/pseudovision/internal/models"
)

// scanTimeout bounds a background library scan triggered over HTTP.
const scanTimeout = 2 * time.Hour

type scheduleRequest struct {
	Name                   string `json:"name"`
	FixedStartTimeBehavior string `json:"fixed_start_time_behavior"`
	ShuffleSlots           *bool  `json:"shuffle_slots"`
	RandomStartPoint       *bool  `json:"random_start_point"`
}

type slotRequest struct {
	SlotIndex     *int    `json:"slot_index"`
	Anchor        string  `json:"anchor"`
	StartTimeMS   *int64  `json:"start_time_ms"`
	FillMode      string  `json:"fill_mode"`
	ItemCount     *int    `json:"item_count"`
	BlockMS       *int64  `json:"block_duration_ms"`
	TailMode      string  `json:"tail_mode"`
	CollectionID  *string `json:"collection_id"`
	MediaItemID   *string `json:"media_item_id"`
	PlaybackOrder string  `json:"playback_order"`
	TailFillerID  *string `json:"tail_filler_id"`
	CustomTitle   *string `json:"custom_title"`
}

func (a *API) handleSchedulesList(w http.ResponseWriter, r *http.Request) {
	var schedules []models.Schedule
	if err := a.db.WithContext(r.Context()).Find(&schedules).Error; err != nil {
		a.logger.Error().Err(err).Msg("list schedules failed")
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (a *API) handleSchedulesCreate(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	behavior := models.FixedStartTimeBehavior(req.FixedStartTimeBehavior)
	if behavior == "" {
		behavior = models.FixedStartSkip
	}
	if behavior != models.FixedStartSkip && behavior != models.FixedStartPlay {
		writeError(w, http.StatusBadRequest, "invalid_fixed_start_time_behavior")
		return
	}

	schedule := models.Schedule{
		ID:                     uuid.NewString(),
		Name:                   req.Name,
		FixedStartTimeBehavior: behavior,
	}
	if req.ShuffleSlots != nil {
		schedule.ShuffleSlots = *req.ShuffleSlots
	}
	if req.RandomStartPoint != nil {
		schedule.RandomStartPoint = *req.RandomStartPoint
	}

	if err := a.db.WithContext(r.Context()).Create(&schedule).Error; err != nil {
		a.logger.Error().Err(err).Msg("create schedule failed")
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusCreated, schedule)
}

func (a *API) handleSchedulesGet(w http.ResponseWriter, r *http.Request) {
	schedule, ok := a.loadSchedule(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (a *API) handleSchedulesUpdate(w http.ResponseWriter, r *http.Request) {
	schedule, ok := a.loadSchedule(w, r, false)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	updates := map[string]any{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.FixedStartTimeBehavior != "" {
		behavior := models.FixedStartTimeBehavior(req.FixedStartTimeBehavior)
		if behavior != models.FixedStartSkip && behavior != models.FixedStartPlay {
			writeError(w, http.StatusBadRequest, "invalid_fixed_start_time_behavior")
			return
		}
		updates["fixed_start_time_behavior"] = behavior
	}
	if req.ShuffleSlots != nil {
		updates["shuffle_slots"] = *req.ShuffleSlots
	}
	if req.RandomStartPoint != nil {
		updates["random_start_point"] = *req.RandomStartPoint
	}

	if len(updates) > 0 {
		if err := a.db.WithContext(r.Context()).Model(&models.Schedule{}).
			Where("id = ?", schedule.ID).Updates(updates).Error; err != nil {
			writeInternalError(w)
			return
		}
	}
	if err := a.db.WithContext(r.Context()).First(&schedule, "id = ?", schedule.ID).Error; err != nil {
		writeInternalError(w)
		return
	}

	a.publishInvalidation(events.EventScheduleUpdated, events.Payload{"schedule_id": schedule.ID})
	writeJSON(w, http.StatusOK, schedule)
}

func (a *API) handleSchedulesDelete(w http.ResponseWriter, r *http.Request) {
	schedule, ok := a.loadSchedule(w, r, false)
	if !ok {
		return
	}

	// Playouts referencing the schedule keep their compiled events but
	// fail their next rebuild until re-pointed.
	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schedule_id = ?", schedule.ID).Delete(&models.Slot{}).Error; err != nil {
			return err
		}
		return tx.Delete(&schedule).Error
	})
	if err != nil {
		a.logger.Error().Err(err).Str("schedule_id", schedule.ID).Msg("delete schedule failed")
		writeInternalError(w)
		return
	}

	a.publishInvalidation(events.EventScheduleDeleted, events.Payload{"schedule_id": schedule.ID})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSlotsList(w http.ResponseWriter, r *http.Request) {
	schedule, ok := a.loadSchedule(w, r, false)
	if !ok {
		return
	}

	var slots []models.Slot
	if err := a.db.WithContext(r.Context()).
		Where("schedule_id = ?", schedule.ID).
		Order("slot_index ASC").
		Find(&slots).Error; err != nil {
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (a *API) handleSlotsCreate(w http.ResponseWriter, r *http.Request) {
	schedule, ok := a.loadSchedule(w, r, false)
	if !ok {
		return
	}

	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	slot, code := slotFromRequest(schedule.ID, req)
	if code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	if slot.SlotIndex == 0 && req.SlotIndex == nil {
		// Append after the current highest index.
		var max *int
		if err := a.db.WithContext(r.Context()).Model(&models.Slot{}).
			Where("schedule_id = ?", schedule.ID).
			Select("MAX(slot_index)").Scan(&max).Error; err != nil {
			writeInternalError(w)
			return
		}
		if max != nil {
			slot.SlotIndex = *max + 1
		}
	}

	if err := a.db.WithContext(r.Context()).Create(&slot).Error; err != nil {
		a.logger.Error().Err(err).Str("schedule_id", schedule.ID).Msg("create slot failed")
		writeInternalError(w)
		return
	}

	a.publishInvalidation(events.EventScheduleUpdated, events.Payload{"schedule_id": schedule.ID})
	writeJSON(w, http.StatusCreated, slot)
}

func (a *API) handleSlotsUpdate(w http.ResponseWriter, r *http.Request) {
	schedule, ok := a.loadSchedule(w, r, false)
	if !ok {
		return
	}
	slotID := chi.URLParam(r, "slotID")

	var slot models.Slot
	err := a.db.WithContext(r.Context()).First(&slot, "id = ? AND schedule_id = ?", slotID, schedule.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeInternalError(w)
		return
	}

	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	updated, code := slotFromRequest(schedule.ID, req)
	if code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}
	updated.ID = slot.ID
	updated.CreatedAt = slot.CreatedAt
	if req.SlotIndex == nil {
		updated.SlotIndex = slot.SlotIndex
	}

	if err := a.db.WithContext(r.Context()).Save(&updated).Error; err != nil {
		a.logger.Error().Err(err).Str("slot_id", slot.ID).Msg("update slot failed")
		writeInternalError(w)
		return
	}

	a.publishInvalidation(events.EventScheduleUpdated, events.Payload{"schedule_id": schedule.ID})
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleSlotsDelete(w http.ResponseWriter, r *http.Request) {
	schedule, ok := a.loadSchedule(w, r, false)
	if !ok {
		return
	}
	slotID := chi.URLParam(r, "slotID")

	result := a.db.WithContext(r.Context()).
		Where("id = ? AND schedule_id = ?", slotID, schedule.ID).
		Delete(&models.Slot{})
	if result.Error != nil {
		writeInternalError(w)
		return
	}
	if result.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	a.publishInvalidation(events.EventScheduleUpdated, events.Payload{"schedule_id": schedule.ID})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) loadSchedule(w http.ResponseWriter, r *http.Request, withSlots bool) (models.Schedule, bool) {
	scheduleID := chi.URLParam(r, "scheduleID")
	if scheduleID == "" {
		writeError(w, http.StatusBadRequest, "schedule_id_required")
		return models.Schedule{}, false
	}

	q := a.db.WithContext(r.Context())
	if withSlots {
		q = q.Preload("Slots", func(db *gorm.DB) *gorm.DB {
			return db.Order("slots.slot_index ASC")
		})
	}

	var schedule models.Schedule
	err := q.First(&schedule, "id = ?", scheduleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return models.Schedule{}, false
	}
	if err != nil {
		a.logger.Error().Err(err).Str("schedule_id", scheduleID).Msg("load schedule failed")
		writeInternalError(w)
		return models.Schedule{}, false
	}
	return schedule, true
}

// slotFromRequest validates and builds a slot. The returned code is
// empty on success.
func slotFromRequest(scheduleID string, req slotRequest) (models.Slot, string) {
	anchor := models.SlotAnchor(req.Anchor)
	if anchor == "" {
		anchor = models.AnchorSequential
	}
	if anchor != models.AnchorFixed && anchor != models.AnchorSequential {
		return models.Slot{}, "invalid_anchor"
	}
	if anchor == models.AnchorFixed && req.StartTimeMS == nil {
		return models.Slot{}, "start_time_required"
	}

	fillMode := models.FillMode(req.FillMode)
	switch fillMode {
	case models.FillOnce, models.FillCount, models.FillBlock, models.FillFlood:
	case "":
		fillMode = models.FillOnce
	default:
		return models.Slot{}, "invalid_fill_mode"
	}
	if fillMode == models.FillCount && req.ItemCount == nil {
		return models.Slot{}, "item_count_required"
	}

	tailMode := models.TailMode(req.TailMode)
	switch tailMode {
	case models.TailNone, models.TailFiller, models.TailOffline:
	case "":
		tailMode = models.TailNone
	default:
		return models.Slot{}, "invalid_tail_mode"
	}

	order := models.PlaybackOrder(req.PlaybackOrder)
	switch order {
	case models.OrderChronological, models.OrderShuffle, models.OrderRandom, models.OrderSeasonEpisode:
	case "":
		order = models.OrderChronological
	default:
		return models.Slot{}, "invalid_playback_order"
	}

	slot := models.Slot{
		ID:            uuid.NewString(),
		ScheduleID:    scheduleID,
		Anchor:        anchor,
		FillMode:      fillMode,
		ItemCount:     req.ItemCount,
		TailMode:      tailMode,
		CollectionID:  req.CollectionID,
		MediaItemID:   req.MediaItemID,
		PlaybackOrder: order,
		TailFillerID:  req.TailFillerID,
		CustomTitle:   req.CustomTitle,
	}
	if req.SlotIndex != nil {
		slot.SlotIndex = *req.SlotIndex
	}
	if req.StartTimeMS != nil {
		d := time.Duration(*req.StartTimeMS) * time.Millisecond
		slot.StartTime = &d
	}
	if req.BlockMS != nil {
		d := time.Duration(*req.BlockMS) * time.Millisecond
		slot.BlockDuration = &d
	}

	if !slot.HasExactlyOneSource() {
		return models.Slot{}, "exactly_one_source_required"
	}
	return slot, ""
}

type collectionRequest struct {
	Name   string         `json:"name"`
	Kind   string         `json:"kind"`
	Config map[string]any `json:"config"`
}

type collectionItemsRequest struct {
	Items []struct {
		MediaItemID string `json:"media_item_id"`
		CustomOrder *int   `json:"custom_order"`
	} `json:"items"`
}

func (a *API) handleCollectionsList(w http.ResponseWriter, r *http.Request) {
	var collections []models.Collection
	if err := a.db.WithContext(r.Context()).Find(&collections).Error; err != nil {
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, collections)
}

func (a *API) handleCollectionsCreate(w http.ResponseWriter, r *http.Request) {
	var req collectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	kind := models.CollectionKind(req.Kind)
	switch kind {
	case models.CollectionManual, models.CollectionPlaylist, models.CollectionMulti,
		models.CollectionTrakt, models.CollectionSmart, models.CollectionRerun:
	default:
		writeError(w, http.StatusBadRequest, "invalid_kind")
		return
	}

	collection := models.Collection{
		ID:     uuid.NewString(),
		Name:   req.Name,
		Kind:   kind,
		Config: req.Config,
	}
	if err := a.db.WithContext(r.Context()).Create(&collection).Error; err != nil {
		a.logger.Error().Err(err).Msg("create collection failed")
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusCreated, collection)
}

func (a *API) handleCollectionsGet(w http.ResponseWriter, r *http.Request) {
	collection, ok := a.loadCollection(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, collection)
}

func (a *API) handleCollectionsUpdate(w http.ResponseWriter, r *http.Request) {
	collection, ok := a.loadCollection(w, r)
	if !ok {
		return
	}

	var req collectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	updates := map[string]any{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Config != nil {
		updates["config"] = req.Config
	}

	if len(updates) > 0 {
		if err := a.db.WithContext(r.Context()).Model(&models.Collection{}).
			Where("id = ?", collection.ID).Updates(updates).Error; err != nil {
			writeInternalError(w)
			return
		}
	}
	if err := a.db.WithContext(r.Context()).First(&collection, "id = ?", collection.ID).Error; err != nil {
		writeInternalError(w)
		return
	}

	a.publishInvalidation(events.EventCollectionUpdated, events.Payload{"collection_id": collection.ID})
	writeJSON(w, http.StatusOK, collection)
}

func (a *API) handleCollectionsDelete(w http.ResponseWriter, r *http.Request) {
	collection, ok := a.loadCollection(w, r)
	if !ok {
		return
	}

	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", collection.ID).Delete(&models.CollectionItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("collection_id = ?", collection.ID).Delete(&models.TraktListItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&collection).Error
	})
	if err != nil {
		writeInternalError(w)
		return
	}

	a.publishInvalidation(events.EventCollectionDeleted, events.Payload{"collection_id": collection.ID})
	w.WriteHeader(http.StatusNoContent)
}

// handleCollectionItemsReplace swaps a manual collection's membership
// for the supplied list.
func (a *API) handleCollectionItemsReplace(w http.ResponseWriter, r *http.Request) {
	collection, ok := a.loadCollection(w, r)
	if !ok {
		return
	}
	if collection.Kind != models.CollectionManual {
		writeError(w, http.StatusBadRequest, "manual_collections_only")
		return
	}

	var req collectionItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", collection.ID).Delete(&models.CollectionItem{}).Error; err != nil {
			return err
		}
		for _, item := range req.Items {
			row := models.CollectionItem{
				CollectionID: collection.ID,
				MediaItemID:  item.MediaItemID,
				CustomOrder:  item.CustomOrder,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		a.logger.Error().Err(err).Str("collection_id", collection.ID).Msg("replace collection items failed")
		writeInternalError(w)
		return
	}

	a.publishInvalidation(events.EventCollectionUpdated, events.Payload{"collection_id": collection.ID})
	writeJSON(w, http.StatusOK, map[string]int{"count": len(req.Items)})
}

func (a *API) loadCollection(w http.ResponseWriter, r *http.Request) (models.Collection, bool) {
	collectionID := chi.URLParam(r, "collectionID")
	if collectionID == "" {
		writeError(w, http.StatusBadRequest, "collection_id_required")
		return models.Collection{}, false
	}

	var collection models.Collection
	err := a.db.WithContext(r.Context()).First(&collection, "id = ?", collectionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return models.Collection{}, false
	}
	if err != nil {
		writeInternalError(w)
		return models.Collection{}, false
	}
	return collection, true
}

type sourceRequest struct {
	Name             string         `json:"name"`
	Kind             string         `json:"kind"`
	ConnectionConfig map[string]any `json:"connection_config"`
}

type libraryRequest struct {
	MediaSourceID string `json:"media_source_id"`
	Name          string `json:"name"`
	Path          string `json:"path"`
}

func (a *API) handleSourcesList(w http.ResponseWriter, r *http.Request) {
	var sources []models.MediaSource
	if err := a.db.WithContext(r.Context()).Preload("Libraries").Find(&sources).Error; err != nil {
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

func (a *API) handleSourcesCreate(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	kind := models.MediaSourceKind(req.Kind)
	if kind != models.SourceLocal && kind != models.SourceJellyfin {
		writeError(w, http.StatusBadRequest, "invalid_kind")
		return
	}

	source := models.MediaSource{
		ID:               uuid.NewString(),
		Kind:             kind,
		Name:             req.Name,
		ConnectionConfig: req.ConnectionConfig,
	}
	if err := a.db.WithContext(r.Context()).Create(&source).Error; err != nil {
		a.logger.Error().Err(err).Msg("create media source failed")
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusCreated, source)
}

func (a *API) handleSourcesGet(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	var source models.MediaSource
	err := a.db.WithContext(r.Context()).Preload("Libraries").First(&source, "id = ?", sourceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, source)
}

func (a *API) handleSourcesDelete(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	result := a.db.WithContext(r.Context()).Where("id = ?", sourceID).Delete(&models.MediaSource{})
	if result.Error != nil {
		writeInternalError(w)
		return
	}
	if result.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleLibrariesList(w http.ResponseWriter, r *http.Request) {
	var libraries []models.Library
	if err := a.db.WithContext(r.Context()).Find(&libraries).Error; err != nil {
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, libraries)
}

func (a *API) handleLibrariesCreate(w http.ResponseWriter, r *http.Request) {
	var req libraryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.MediaSourceID == "" || req.Path == "" {
		writeError(w, http.StatusBadRequest, "media_source_id_and_path_required")
		return
	}

	var source models.MediaSource
	err := a.db.WithContext(r.Context()).First(&source, "id = ?", req.MediaSourceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "source_not_found")
		return
	}
	if err != nil {
		writeInternalError(w)
		return
	}

	lib := models.Library{
		ID:            uuid.NewString(),
		MediaSourceID: source.ID,
		Name:          req.Name,
		Path:          req.Path,
	}
	if err := a.db.WithContext(r.Context()).Create(&lib).Error; err != nil {
		a.logger.Error().Err(err).Msg("create library failed")
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusCreated, lib)
}

func (a *API) handleLibrariesGet(w http.ResponseWriter, r *http.Request) {
	libraryID := chi.URLParam(r, "libraryID")
	var lib models.Library
	err := a.db.WithContext(r.Context()).First(&lib, "id = ?", libraryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, lib)
}

func (a *API) handleLibrariesDelete(w http.ResponseWriter, r *http.Request) {
	libraryID := chi.URLParam(r, "libraryID")
	result := a.db.WithContext(r.Context()).Where("id = ?", libraryID).Delete(&models.Library{})
	if result.Error != nil {
		writeInternalError(w)
		return
	}
	if result.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLibraryScan kicks off a background scan of the library root.
func (a *API) handleLibraryScan(w http.ResponseWriter, r *http.Request) {
	libraryID := chi.URLParam(r, "libraryID")
	var lib models.Library
	err := a.db.WithContext(r.Context()).First(&lib, "id = ?", libraryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeInternalError(w)
		return
	}

	go func(id string) {
		ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
		defer cancel()
		if err := a.scanner.ScanLibrary(ctx, id); err != nil {
			a.logger.Error().Err(err).Str("library_id", id).Msg("triggered scan failed")
		}
	}(lib.ID)

	writeJSON(w, http.StatusAccepted, map[string]string{"message": "scan triggered"})
}
