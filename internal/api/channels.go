/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/pseudovision/internal/events"
	"github.com/friendsincode/pseudovision/internal/models"
)

type channelRequest struct {
	Name             string  `json:"name"`
	Number           int     `json:"number"`
	GuideMode        string  `json:"guide_mode"`
	PreFillerID      *string `json:"pre_filler_id"`
	MidFillerID      *string `json:"mid_filler_id"`
	PostFillerID     *string `json:"post_filler_id"`
	TailFillerID     *string `json:"tail_filler_id"`
	FallbackFillerID *string `json:"fallback_filler_id"`
}

func (a *API) handleChannelsList(w http.ResponseWriter, r *http.Request) {
	var channels []models.Channel
	if err := a.db.WithContext(r.Context()).Order("number ASC").Find(&channels).Error; err != nil {
		a.logger.Error().Err(err).Msg("list channels failed")
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (a *API) handleChannelsCreate(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if req.Number <= 0 {
		writeError(w, http.StatusBadRequest, "number_required")
		return
	}

	mode := models.GuideMode(req.GuideMode)
	if mode == "" {
		mode = models.GuideModeDefault
	}
	if mode != models.GuideModeDefault && mode != models.GuideModeBlocks {
		writeError(w, http.StatusBadRequest, "invalid_guide_mode")
		return
	}

	channel := models.Channel{
		ID:               uuid.NewString(),
		Name:             req.Name,
		Number:           req.Number,
		GuideMode:        mode,
		PreFillerID:      req.PreFillerID,
		MidFillerID:      req.MidFillerID,
		PostFillerID:     req.PostFillerID,
		TailFillerID:     req.TailFillerID,
		FallbackFillerID: req.FallbackFillerID,
	}
	if err := a.db.WithContext(r.Context()).Create(&channel).Error; err != nil {
		a.logger.Error().Err(err).Msg("create channel failed")
		writeInternalError(w)
		return
	}

	a.logger.Info().Str("channel_id", channel.ID).Str("name", channel.Name).Msg("channel created")
	a.publishInvalidation(events.EventChannelCreated, events.Payload{"channel_id": channel.ID})
	writeJSON(w, http.StatusCreated, channel)
}

func (a *API) handleChannelsGet(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, channel)
}

func (a *API) handleChannelsUpdate(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	updates := map[string]any{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Number > 0 {
		updates["number"] = req.Number
	}
	if req.GuideMode != "" {
		mode := models.GuideMode(req.GuideMode)
		if mode != models.GuideModeDefault && mode != models.GuideModeBlocks {
			writeError(w, http.StatusBadRequest, "invalid_guide_mode")
			return
		}
		updates["guide_mode"] = mode
	}
	if req.PreFillerID != nil {
		updates["pre_filler_id"] = req.PreFillerID
	}
	if req.MidFillerID != nil {
		updates["mid_filler_id"] = req.MidFillerID
	}
	if req.PostFillerID != nil {
		updates["post_filler_id"] = req.PostFillerID
	}
	if req.TailFillerID != nil {
		updates["tail_filler_id"] = req.TailFillerID
	}
	if req.FallbackFillerID != nil {
		updates["fallback_filler_id"] = req.FallbackFillerID
	}

	if len(updates) > 0 {
		if err := a.db.WithContext(r.Context()).Model(&models.Channel{}).
			Where("id = ?", channel.ID).Updates(updates).Error; err != nil {
			a.logger.Error().Err(err).Msg("update channel failed")
			writeInternalError(w)
			return
		}
	}

	if err := a.db.WithContext(r.Context()).First(&channel, "id = ?", channel.ID).Error; err != nil {
		writeInternalError(w)
		return
	}

	a.publishInvalidation(events.EventChannelUpdated, events.Payload{"channel_id": channel.ID})
	a.invalidateChannelCache(r, channel.ID)
	writeJSON(w, http.StatusOK, channel)
}

func (a *API) handleChannelsDelete(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	// Drop the channel together with its compiled timeline.
	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var p models.Playout
		err := tx.First(&p, "channel_id = ?", channel.ID).Error
		switch {
		case err == nil:
			if err := tx.Where("playout_id = ?", p.ID).Delete(&models.PlayoutEvent{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&p).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}
		return tx.Delete(&channel).Error
	})
	if err != nil {
		a.logger.Error().Err(err).Str("channel_id", channel.ID).Msg("delete channel failed")
		writeInternalError(w)
		return
	}

	a.publishInvalidation(events.EventChannelDeleted, events.Payload{"channel_id": channel.ID})
	a.invalidateChannelCache(r, channel.ID)
	w.WriteHeader(http.StatusNoContent)
}

// loadChannel fetches the channel from the URL param, writing the error
// response itself when the lookup fails.
func (a *API) loadChannel(w http.ResponseWriter, r *http.Request) (models.Channel, bool) {
	channelID := chi.URLParam(r, "channelID")
	if channelID == "" {
		writeError(w, http.StatusBadRequest, "channel_id_required")
		return models.Channel{}, false
	}

	var channel models.Channel
	err := a.db.WithContext(r.Context()).First(&channel, "id = ?", channelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return models.Channel{}, false
	}
	if err != nil {
		a.logger.Error().Err(err).Str("channel_id", channelID).Msg("load channel failed")
		writeInternalError(w)
		return models.Channel{}, false
	}
	return channel, true
}

func (a *API) publishInvalidation(eventType events.EventType, payload events.Payload) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(eventType, payload)
}

func (a *API) invalidateChannelCache(r *http.Request, channelID string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.InvalidateChannel(r.Context(), channelID); err != nil {
		a.logger.Warn().Err(err).Str("channel_id", channelID).Msg("cache invalidation failed")
	}
}
