/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package guide renders the compiled timelines for EPG, M3U and
// HDHomeRun consumers.
package guide

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/pseudovision/internal/models"
	"github.com/friendsincode/pseudovision/internal/timeutil"
)

// xmltvTimeLayout is the XMLTV timestamp format.
const xmltvTimeLayout = "20060102150405 -0700"

// DefaultWindow bounds how far ahead the rendered guide looks.
const DefaultWindow = 24 * time.Hour

// TV is the XMLTV document root.
type TV struct {
	XMLName   xml.Name     `xml:"tv"`
	Generator string       `xml:"generator-info-name,attr,omitempty"`
	Channels  []XMLChannel `xml:"channel"`
	Programs  []Programme  `xml:"programme"`
}

// XMLChannel is one channel element.
type XMLChannel struct {
	ID          string   `xml:"id,attr"`
	DisplayName []string `xml:"display-name"`
}

// Programme is one programme element.
type Programme struct {
	Start   string `xml:"start,attr"`
	Stop    string `xml:"stop,attr"`
	Channel string `xml:"channel,attr"`
	Title   Title  `xml:"title"`
	Desc    string `xml:"desc,omitempty"`
}

// Title carries the programme title with an optional language code.
type Title struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

// Renderer loads timelines and renders guide documents.
type Renderer struct {
	db      *gorm.DB
	clock   timeutil.Clock
	logger  zerolog.Logger
	baseURL string
}

// NewRenderer constructs a guide renderer. baseURL is used for stream
// and lineup URLs in the M3U and HDHomeRun outputs.
func NewRenderer(database *gorm.DB, clock timeutil.Clock, baseURL string, logger zerolog.Logger) *Renderer {
	return &Renderer{
		db:      database,
		clock:   clock,
		logger:  logger.With().Str("component", "guide").Logger(),
		baseURL: baseURL,
	}
}

// guideRow is one timeline event joined with its media item title.
type guideRow struct {
	StartAt     time.Time
	FinishAt    time.Time
	GuideGroup  int
	Kind        models.EventKind
	CustomTitle *string
	Title       string
}

// RenderXMLTV renders the EPG for every channel over the window.
// Channels in blocks guide mode collapse each guide group into a single
// programme named after its first content event.
func (r *Renderer) RenderXMLTV(ctx context.Context, window time.Duration) ([]byte, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	now := r.clock.Now()

	var channels []models.Channel
	if err := r.db.WithContext(ctx).Order("number ASC").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("load channels: %w", err)
	}

	tv := TV{Generator: "pseudovision"}
	for _, channel := range channels {
		channelID := fmt.Sprintf("%d.pseudovision", channel.Number)
		tv.Channels = append(tv.Channels, XMLChannel{
			ID:          channelID,
			DisplayName: []string{channel.Name, fmt.Sprintf("%d", channel.Number)},
		})

		rows, err := r.loadWindow(ctx, channel.ID, now, now.Add(window))
		if err != nil {
			return nil, err
		}
		if channel.GuideMode == models.GuideModeBlocks {
			rows = collapseGuideGroups(rows)
		}
		for _, row := range rows {
			tv.Programs = append(tv.Programs, Programme{
				Start:   row.StartAt.Format(xmltvTimeLayout),
				Stop:    row.FinishAt.Format(xmltvTimeLayout),
				Channel: channelID,
				Title:   Title{Lang: "en", Value: programmeTitle(row)},
			})
		}
	}

	out, err := xml.MarshalIndent(tv, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal xmltv: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// loadWindow returns the channel's events overlapping [from, to),
// joined with item titles, ordered by start.
func (r *Renderer) loadWindow(ctx context.Context, channelID string, from, to time.Time) ([]guideRow, error) {
	var rows []guideRow
	err := r.db.WithContext(ctx).
		Model(&models.PlayoutEvent{}).
		Select("playout_events.start_at, playout_events.finish_at, playout_events.guide_group, playout_events.kind, playout_events.custom_title, COALESCE(media_items.title, '') AS title").
		Joins("JOIN playouts ON playouts.id = playout_events.playout_id").
		Joins("LEFT JOIN media_items ON media_items.id = playout_events.media_item_id").
		Where("playouts.channel_id = ? AND playout_events.start_at < ? AND playout_events.finish_at > ?", channelID, to, from).
		Order("playout_events.start_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load guide window for channel %s: %w", channelID, err)
	}
	return rows, nil
}

// collapseGuideGroups merges consecutive rows with the same guide group
// into one spanning row titled by the group's first content event.
func collapseGuideGroups(rows []guideRow) []guideRow {
	var merged []guideRow
	for _, row := range rows {
		n := len(merged)
		if n > 0 && merged[n-1].GuideGroup == row.GuideGroup {
			merged[n-1].FinishAt = row.FinishAt
			if merged[n-1].Kind != models.EventContent && row.Kind == models.EventContent {
				merged[n-1].Kind = row.Kind
				merged[n-1].Title = row.Title
				merged[n-1].CustomTitle = row.CustomTitle
			}
			continue
		}
		merged = append(merged, row)
	}
	return merged
}

func programmeTitle(row guideRow) string {
	if row.CustomTitle != nil && *row.CustomTitle != "" {
		return *row.CustomTitle
	}
	if row.Kind == models.EventOffline {
		return "Off Air"
	}
	if row.Title != "" {
		return row.Title
	}
	return "Unknown"
}
