/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package guide

import (
	"bytes"
	"context"
	"fmt"

	"github.com/friendsincode/pseudovision/internal/models"
)

// RenderM3U renders the channel lineup as an extended M3U playlist with
// tvg attributes matching the XMLTV channel ids.
func (r *Renderer) RenderM3U(ctx context.Context) ([]byte, error) {
	var channels []models.Channel
	if err := r.db.WithContext(ctx).Order("number ASC").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("load channels: %w", err)
	}

	buf := &bytes.Buffer{}
	buf.WriteString("#EXTM3U\n")
	for _, channel := range channels {
		tvgID := fmt.Sprintf("%d.pseudovision", channel.Number)
		buf.WriteString(fmt.Sprintf(
			`#EXTINF:-1 tvg-chno="%d" tvg-id="%s" tvg-name="%s" group-title="Pseudovision",%s`+"\n",
			channel.Number, tvgID, channel.Name, channel.Name,
		))
		buf.WriteString(fmt.Sprintf("%s/iptv/channel/%d.ts\n", r.baseURL, channel.Number))
	}
	return buf.Bytes(), nil
}
