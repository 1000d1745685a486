/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/friendsincode/pseudovision/internal/guide"
	"github.com/friendsincode/pseudovision/internal/telemetry"
)

func (a *API) handleXMLTV(w http.ResponseWriter, r *http.Request) {
	telemetry.GuideRequestsTotal.WithLabelValues("xmltv").Inc()

	if doc, ok := a.cachedGuide(r, "xmltv"); ok {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write(doc)
		return
	}

	ctx, span := telemetry.StartGuideSpan(r.Context(), "xmltv")
	doc, err := a.guide.RenderXMLTV(ctx, guide.DefaultWindow)
	span.End()
	if err != nil {
		a.logger.Error().Err(err).Msg("render xmltv failed")
		writeInternalError(w)
		return
	}
	a.storeGuide(r, "xmltv", doc)

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(doc)
}

func (a *API) handleM3U(w http.ResponseWriter, r *http.Request) {
	telemetry.GuideRequestsTotal.WithLabelValues("m3u").Inc()

	if doc, ok := a.cachedGuide(r, "m3u"); ok {
		w.Header().Set("Content-Type", "audio/x-mpegurl")
		_, _ = w.Write(doc)
		return
	}

	ctx, span := telemetry.StartGuideSpan(r.Context(), "m3u")
	doc, err := a.guide.RenderM3U(ctx)
	span.End()
	if err != nil {
		a.logger.Error().Err(err).Msg("render m3u failed")
		writeInternalError(w)
		return
	}
	a.storeGuide(r, "m3u", doc)

	w.Header().Set("Content-Type", "audio/x-mpegurl")
	_, _ = w.Write(doc)
}

func (a *API) handleDiscover(w http.ResponseWriter, r *http.Request) {
	telemetry.GuideRequestsTotal.WithLabelValues("hdhr_discover").Inc()
	writeJSON(w, http.StatusOK, a.guide.Discover())
}

func (a *API) handleLineup(w http.ResponseWriter, r *http.Request) {
	telemetry.GuideRequestsTotal.WithLabelValues("hdhr_lineup").Inc()

	lineup, err := a.guide.Lineup(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("render lineup failed")
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, lineup)
}

// handleLineupStatus reports a completed virtual channel scan, which is
// what HDHomeRun clients expect from a fixed lineup.
func (a *API) handleLineupStatus(w http.ResponseWriter, r *http.Request) {
	telemetry.GuideRequestsTotal.WithLabelValues("hdhr_lineup_status").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"ScanInProgress": 0,
		"ScanPossible":   0,
		"Source":         "Cable",
		"SourceList":     []string{"Cable"},
	})
}

func (a *API) cachedGuide(r *http.Request, format string) ([]byte, bool) {
	if a.cache == nil {
		return nil, false
	}
	return a.cache.GetGuide(r.Context(), format)
}

func (a *API) storeGuide(r *http.Request, format string, doc []byte) {
	if a.cache == nil {
		return
	}
	if err := a.cache.SetGuide(r.Context(), format, doc); err != nil {
		a.logger.Warn().Err(err).Str("format", format).Msg("guide cache store failed")
	}
}
