/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP management and guide surface.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/pseudovision/internal/cache"
	"github.com/friendsincode/pseudovision/internal/events"
	"github.com/friendsincode/pseudovision/internal/guide"
	"github.com/friendsincode/pseudovision/internal/library"
	"github.com/friendsincode/pseudovision/internal/playout"
	"github.com/friendsincode/pseudovision/internal/timeutil"
)

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	builder   *playout.Builder
	buildOpts playout.Options
	scanner   *library.Scanner
	guide     *guide.Renderer
	cache     *cache.Cache
	bus       events.PubSub
	clock     timeutil.Clock
	logger    zerolog.Logger
}

// New creates the API router wrapper. cache may be nil.
func New(db *gorm.DB, builder *playout.Builder, buildOpts playout.Options, scanner *library.Scanner, guideRenderer *guide.Renderer, cacheLayer *cache.Cache, bus events.PubSub, clock timeutil.Clock, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		builder:   builder,
		buildOpts: buildOpts,
		scanner:   scanner,
		guide:     guideRenderer,
		cache:     cacheLayer,
		bus:       bus,
		clock:     clock,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts every endpoint on the given router.
func (a *API) Routes(r chi.Router) {
	r.Get("/health", a.handleHealth)

	// Guide outputs consumed by IPTV clients.
	r.Get("/iptv/xmltv.xml", a.handleXMLTV)
	r.Get("/iptv/channels.m3u", a.handleM3U)
	r.Get("/discover.json", a.handleDiscover)
	r.Get("/lineup.json", a.handleLineup)
	r.Get("/lineup_status.json", a.handleLineupStatus)

	r.Route("/api", func(r chi.Router) {
		r.Route("/channels", func(r chi.Router) {
			r.Get("/", a.handleChannelsList)
			r.Post("/", a.handleChannelsCreate)
			r.Route("/{channelID}", func(r chi.Router) {
				r.Get("/", a.handleChannelsGet)
				r.Put("/", a.handleChannelsUpdate)
				r.Delete("/", a.handleChannelsDelete)

				r.Route("/playout", func(r chi.Router) {
					r.Get("/", a.handlePlayoutGet)
					r.Post("/", a.handlePlayoutBuild)
					r.Route("/events", func(r chi.Router) {
						r.Get("/", a.handlePlayoutEventsList)
						r.Post("/", a.handlePlayoutEventsCreate)
						r.Put("/{eventID}", a.handlePlayoutEventsUpdate)
						r.Delete("/{eventID}", a.handlePlayoutEventsDelete)
					})
				})
			})
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", a.handleSchedulesList)
			r.Post("/", a.handleSchedulesCreate)
			r.Route("/{scheduleID}", func(r chi.Router) {
				r.Get("/", a.handleSchedulesGet)
				r.Put("/", a.handleSchedulesUpdate)
				r.Delete("/", a.handleSchedulesDelete)
				r.Route("/slots", func(r chi.Router) {
					r.Get("/", a.handleSlotsList)
					r.Post("/", a.handleSlotsCreate)
					r.Put("/{slotID}", a.handleSlotsUpdate)
					r.Delete("/{slotID}", a.handleSlotsDelete)
				})
			})
		})

		r.Route("/collections", func(r chi.Router) {
			r.Get("/", a.handleCollectionsList)
			r.Post("/", a.handleCollectionsCreate)
			r.Route("/{collectionID}", func(r chi.Router) {
				r.Get("/", a.handleCollectionsGet)
				r.Put("/", a.handleCollectionsUpdate)
				r.Delete("/", a.handleCollectionsDelete)
				r.Put("/items", a.handleCollectionItemsReplace)
			})
		})

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", a.handleSourcesList)
			r.Post("/", a.handleSourcesCreate)
			r.Route("/{sourceID}", func(r chi.Router) {
				r.Get("/", a.handleSourcesGet)
				r.Delete("/", a.handleSourcesDelete)
			})
		})

		r.Route("/libraries", func(r chi.Router) {
			r.Get("/", a.handleLibrariesList)
			r.Post("/", a.handleLibrariesCreate)
			r.Route("/{libraryID}", func(r chi.Router) {
				r.Get("/", a.handleLibrariesGet)
				r.Delete("/", a.handleLibrariesDelete)
				r.Post("/scan", a.handleLibraryScan)
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
