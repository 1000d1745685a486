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
	"github.com/friendsincode/pseudovision/internal/playout"
)

// maxUpcomingEvents caps the timeline listing response.
const maxUpcomingEvents = 500

// buildTimeout bounds a background rebuild triggered over HTTP.
const buildTimeout = 5 * time.Minute

type playoutCreateRequest struct {
	ScheduleID string `json:"schedule_id"`
	Seed       *int64 `json:"seed"`
}

type manualEventRequest struct {
	MediaItemID *string `json:"media_item_id"`
	Kind        string  `json:"kind"`
	StartAt     string  `json:"start_at"`
	FinishAt    string  `json:"finish_at"`
	CustomTitle *string `json:"custom_title"`
}

func (a *API) handlePlayoutGet(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	var p models.Playout
	err := a.db.WithContext(r.Context()).First(&p, "channel_id = ?", channel.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("channel_id", channel.ID).Msg("load playout failed")
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handlePlayoutBuild creates the channel's playout row if needed and
// kicks off a rebuild on a background worker. Concurrent triggers for
// the same playout collapse into one build.
func (a *API) handlePlayoutBuild(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	var req playoutCreateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
	}

	var p models.Playout
	err := a.db.WithContext(r.Context()).First(&p, "channel_id = ?", channel.ID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if req.ScheduleID == "" {
			writeError(w, http.StatusBadRequest, "schedule_id_required")
			return
		}
		var schedule models.Schedule
		if err := a.db.WithContext(r.Context()).First(&schedule, "id = ?", req.ScheduleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				writeError(w, http.StatusNotFound, "schedule_not_found")
				return
			}
			writeInternalError(w)
			return
		}
		seed := time.Now().UnixNano()
		if req.Seed != nil {
			seed = *req.Seed
		}
		p = models.Playout{
			ID:         uuid.NewString(),
			ChannelID:  channel.ID,
			ScheduleID: req.ScheduleID,
			Seed:       seed,
		}
		if err := a.db.WithContext(r.Context()).Create(&p).Error; err != nil {
			a.logger.Error().Err(err).Str("channel_id", channel.ID).Msg("create playout failed")
			writeInternalError(w)
			return
		}
	case err != nil:
		writeInternalError(w)
		return
	default:
		if req.ScheduleID != "" && req.ScheduleID != p.ScheduleID {
			if err := a.db.WithContext(r.Context()).Model(&p).
				Update("schedule_id", req.ScheduleID).Error; err != nil {
				writeInternalError(w)
				return
			}
		}
	}

	go func(playoutID, channelID string) {
		ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
		defer cancel()
		result, err := a.builder.Build(ctx, playoutID, a.buildOpts)
		if err != nil {
			if !errors.Is(err, playout.ErrBuildInProgress) {
				a.logger.Error().Err(err).Str("playout_id", playoutID).Msg("triggered build failed")
			}
			return
		}
		if a.cache != nil && result.EventCount > 0 {
			if err := a.cache.InvalidateChannel(ctx, channelID); err != nil {
				a.logger.Warn().Err(err).Str("channel_id", channelID).Msg("cache invalidation failed")
			}
		}
	}(p.ID, channel.ID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "rebuild triggered"})
}

func (a *API) handlePlayoutEventsList(w http.ResponseWriter, r *http.Request) {
	p, ok := a.loadPlayout(w, r)
	if !ok {
		return
	}

	var evs []models.PlayoutEvent
	err := a.db.WithContext(r.Context()).
		Where("playout_id = ? AND finish_at > ?", p.ID, a.clock.Now()).
		Order("start_at ASC").
		Limit(maxUpcomingEvents).
		Find(&evs).Error
	if err != nil {
		a.logger.Error().Err(err).Str("playout_id", p.ID).Msg("list playout events failed")
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

func (a *API) handlePlayoutEventsCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := a.loadPlayout(w, r)
	if !ok {
		return
	}

	var req manualEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	event, code := manualEventFromRequest(p.ID, req)
	if code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	if err := a.db.WithContext(r.Context()).Create(&event).Error; err != nil {
		a.logger.Error().Err(err).Str("playout_id", p.ID).Msg("create manual event failed")
		writeInternalError(w)
		return
	}

	a.publishInvalidation(events.EventManualEventCreated, events.Payload{
		"playout_id": p.ID,
		"event_id":   event.ID,
	})
	a.invalidateChannelCache(r, p.ChannelID)
	writeJSON(w, http.StatusCreated, event)
}

func (a *API) handlePlayoutEventsUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := a.loadPlayout(w, r)
	if !ok {
		return
	}
	event, ok := a.loadManualEvent(w, r, p.ID)
	if !ok {
		return
	}

	var req manualEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	updates := map[string]any{}
	if req.StartAt != "" {
		startAt, err := time.Parse(time.RFC3339, req.StartAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_at")
			return
		}
		event.StartAt = startAt
		updates["start_at"] = startAt
	}
	if req.FinishAt != "" {
		finishAt, err := time.Parse(time.RFC3339, req.FinishAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_finish_at")
			return
		}
		event.FinishAt = finishAt
		updates["finish_at"] = finishAt
	}
	if !event.FinishAt.After(event.StartAt) {
		writeError(w, http.StatusBadRequest, "finish_before_start")
		return
	}
	if req.MediaItemID != nil {
		event.MediaItemID = req.MediaItemID
		updates["media_item_id"] = req.MediaItemID
	}
	if req.CustomTitle != nil {
		event.CustomTitle = req.CustomTitle
		updates["custom_title"] = req.CustomTitle
	}

	if len(updates) > 0 {
		if err := a.db.WithContext(r.Context()).Model(&models.PlayoutEvent{}).
			Where("id = ?", event.ID).Updates(updates).Error; err != nil {
			a.logger.Error().Err(err).Str("event_id", event.ID).Msg("update manual event failed")
			writeInternalError(w)
			return
		}
	}

	a.publishInvalidation(events.EventManualEventUpdated, events.Payload{
		"playout_id": p.ID,
		"event_id":   event.ID,
	})
	a.invalidateChannelCache(r, p.ChannelID)
	writeJSON(w, http.StatusOK, event)
}

func (a *API) handlePlayoutEventsDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := a.loadPlayout(w, r)
	if !ok {
		return
	}
	event, ok := a.loadManualEvent(w, r, p.ID)
	if !ok {
		return
	}

	if err := a.db.WithContext(r.Context()).Delete(&event).Error; err != nil {
		a.logger.Error().Err(err).Str("event_id", event.ID).Msg("delete manual event failed")
		writeInternalError(w)
		return
	}

	a.publishInvalidation(events.EventManualEventDeleted, events.Payload{
		"playout_id": p.ID,
		"event_id":   event.ID,
	})
	a.invalidateChannelCache(r, p.ChannelID)
	w.WriteHeader(http.StatusNoContent)
}

// loadPlayout resolves the channel URL param to its playout row.
func (a *API) loadPlayout(w http.ResponseWriter, r *http.Request) (models.Playout, bool) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return models.Playout{}, false
	}

	var p models.Playout
	err := a.db.WithContext(r.Context()).First(&p, "channel_id = ?", channel.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return models.Playout{}, false
	}
	if err != nil {
		a.logger.Error().Err(err).Str("channel_id", channel.ID).Msg("load playout failed")
		writeInternalError(w)
		return models.Playout{}, false
	}
	return p, true
}

// loadManualEvent fetches the event and rejects edits to builder-owned
// rows. Automatic events only change through rebuilds.
func (a *API) loadManualEvent(w http.ResponseWriter, r *http.Request, playoutID string) (models.PlayoutEvent, bool) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "event_id_required")
		return models.PlayoutEvent{}, false
	}

	var event models.PlayoutEvent
	err := a.db.WithContext(r.Context()).First(&event, "id = ? AND playout_id = ?", eventID, playoutID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return models.PlayoutEvent{}, false
	}
	if err != nil {
		a.logger.Error().Err(err).Str("event_id", eventID).Msg("load event failed")
		writeInternalError(w)
		return models.PlayoutEvent{}, false
	}
	if !event.IsManual {
		writeError(w, http.StatusBadRequest, "not_manual")
		return models.PlayoutEvent{}, false
	}
	return event, true
}

// manualEventFromRequest validates and builds a manual event. The
// returned code is empty on success.
func manualEventFromRequest(playoutID string, req manualEventRequest) (models.PlayoutEvent, string) {
	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return models.PlayoutEvent{}, "invalid_start_at"
	}
	finishAt, err := time.Parse(time.RFC3339, req.FinishAt)
	if err != nil {
		return models.PlayoutEvent{}, "invalid_finish_at"
	}
	if !finishAt.After(startAt) {
		return models.PlayoutEvent{}, "finish_before_start"
	}

	kind := models.EventKind(req.Kind)
	if kind == "" {
		kind = models.EventContent
	}
	if kind != models.EventOffline && req.MediaItemID == nil {
		return models.PlayoutEvent{}, "media_item_id_required"
	}

	return models.PlayoutEvent{
		ID:          uuid.NewString(),
		PlayoutID:   playoutID,
		MediaItemID: req.MediaItemID,
		Kind:        kind,
		StartAt:     startAt,
		FinishAt:    finishAt,
		IsManual:    true,
		CustomTitle: req.CustomTitle,
	}, ""
}
