/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package guide

import (
	"context"
	"fmt"

	"github.com/friendsincode/pseudovision/internal/models"
)

// DiscoverResponse is the HDHomeRun discovery document.
type DiscoverResponse struct {
	FriendlyName    string `json:"FriendlyName"`
	ModelNumber     string `json:"ModelNumber"`
	FirmwareName    string `json:"FirmwareName"`
	FirmwareVersion string `json:"FirmwareVersion"`
	DeviceID        string `json:"DeviceID"`
	DeviceAuth      string `json:"DeviceAuth"`
	BaseURL         string `json:"BaseURL"`
	LineupURL       string `json:"LineupURL"`
	TunerCount      int    `json:"TunerCount"`
}

// LineupEntry is one channel in the HDHomeRun lineup.
type LineupEntry struct {
	GuideNumber string `json:"GuideNumber"`
	GuideName   string `json:"GuideName"`
	URL         string `json:"URL"`
}

// Discover returns the HDHomeRun discovery document for this instance.
func (r *Renderer) Discover() DiscoverResponse {
	return DiscoverResponse{
		FriendlyName:    "Pseudovision",
		ModelNumber:     "HDHR-PSV",
		FirmwareName:    "pseudovision",
		FirmwareVersion: "1.0",
		DeviceID:        "PSV00001",
		DeviceAuth:      "pseudovision",
		BaseURL:         r.baseURL,
		LineupURL:       r.baseURL + "/lineup.json",
		TunerCount:      4,
	}
}

// Lineup returns the HDHomeRun channel lineup.
func (r *Renderer) Lineup(ctx context.Context) ([]LineupEntry, error) {
	var channels []models.Channel
	if err := r.db.WithContext(ctx).Order("number ASC").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("load channels: %w", err)
	}

	lineup := make([]LineupEntry, 0, len(channels))
	for _, channel := range channels {
		lineup = append(lineup, LineupEntry{
			GuideNumber: fmt.Sprintf("%d", channel.Number),
			GuideName:   channel.Name,
			URL:         fmt.Sprintf("%s/iptv/channel/%d.ts", r.baseURL, channel.Number),
		})
	}
	return lineup, nil
}
