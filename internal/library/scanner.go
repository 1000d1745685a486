/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package library scans media source backends and keeps the media item
// catalogue current.
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/pseudovision/internal/events"
	"github.com/friendsincode/pseudovision/internal/models"
	"github.com/friendsincode/pseudovision/internal/telemetry"
)

// Scanner walks local library roots and probes playable files.
type Scanner struct {
	db           *gorm.DB
	logger       zerolog.Logger
	bus          events.PubSub
	ffprobePath  string
	probeTimeout time.Duration
	concurrency  int
}

// NewScanner constructs a library scanner. bus may be nil.
func NewScanner(database *gorm.DB, bus events.PubSub, ffprobePath string, probeTimeout time.Duration, concurrency int, logger zerolog.Logger) *Scanner {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if probeTimeout <= 0 {
		probeTimeout = 15 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Scanner{
		db:           database,
		logger:       logger.With().Str("component", "library").Logger(),
		bus:          bus,
		ffprobePath:  ffprobePath,
		probeTimeout: probeTimeout,
		concurrency:  concurrency,
	}
}

// ScanLibrary walks the library's root, probes every media file and
// upserts the corresponding media items. Files that vanished from disk
// are left in place; pruning is a separate operator action.
func (s *Scanner) ScanLibrary(ctx context.Context, libraryID string) error {
	var lib models.Library
	if err := s.db.WithContext(ctx).First(&lib, "id = ?", libraryID).Error; err != nil {
		return fmt.Errorf("load library %s: %w", libraryID, err)
	}

	s.publish(events.EventScanStarted, lib)
	s.logger.Info().Str("library_id", lib.ID).Str("path", lib.Path).Msg("library scan started")

	paths := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				if err := s.processFile(ctx, lib, path); err != nil {
					s.logger.Warn().Err(err).Str("path", path).Msg("scan failed for file")
					telemetry.ScanItemsTotal.WithLabelValues("error").Inc()
				}
			}
		}()
	}

	walkErr := filepath.WalkDir(lib.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !isMediaFile(d.Name()) {
			return nil
		}
		paths <- path
		return nil
	})
	close(paths)
	wg.Wait()

	if walkErr != nil && walkErr != ctx.Err() {
		return fmt.Errorf("walk library %s: %w", lib.ID, walkErr)
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&models.Library{}).
		Where("id = ?", lib.ID).
		Update("last_scan_at", now).Error; err != nil {
		return fmt.Errorf("stamp library scan time: %w", err)
	}

	s.publish(events.EventScanFinished, lib)
	s.logger.Info().Str("library_id", lib.ID).Msg("library scan finished")
	return walkErr
}

// processFile probes one file and upserts its media item and version.
func (s *Scanner) processFile(ctx context.Context, lib models.Library, path string) error {
	duration, err := s.probeDuration(ctx, path)
	if err != nil {
		return err
	}

	var item models.MediaItem
	err = s.db.WithContext(ctx).First(&item, "path = ?", path).Error
	switch {
	case err == nil:
		if err := s.db.WithContext(ctx).Model(&models.MediaVersion{}).
			Where("media_item_id = ?", item.ID).
			Update("duration", duration).Error; err != nil {
			return fmt.Errorf("update version for %s: %w", path, err)
		}
		telemetry.ScanItemsTotal.WithLabelValues("updated").Inc()
		return nil
	case err == gorm.ErrRecordNotFound:
		item = models.MediaItem{
			ID:        uuid.NewString(),
			LibraryID: lib.ID,
			Kind:      kindForPath(path),
			Title:     titleForPath(path),
			SortKey:   strings.ToLower(titleForPath(path)),
			Path:      path,
			Version: models.MediaVersion{
				ID:        uuid.NewString(),
				Duration:  duration,
				Container: strings.TrimPrefix(filepath.Ext(path), "."),
			},
		}
		if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
			return fmt.Errorf("create media item for %s: %w", path, err)
		}
		telemetry.ScanItemsTotal.WithLabelValues("created").Inc()
		return nil
	default:
		return fmt.Errorf("lookup media item for %s: %w", path, err)
	}
}

// probeDuration extracts the container duration via ffprobe.
func (s *Scanner) probeDuration(ctx context.Context, path string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}

	secs, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration for %s: %w", path, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (s *Scanner) publish(eventType events.EventType, lib models.Library) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventType, events.Payload{
		"library_id": lib.ID,
		"path":       lib.Path,
	})
}

func isMediaFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".mkv", ".mp4", ".avi", ".mov", ".m4v", ".ts", ".webm", ".mpg", ".mpeg":
		return true
	default:
		return false
	}
}

func kindForPath(path string) models.MediaItemKind {
	// Episode layouts keep files under show/season directories; anything
	// else scans in as a movie.
	dir := strings.ToLower(filepath.Base(filepath.Dir(path)))
	if strings.HasPrefix(dir, "season") || strings.HasPrefix(dir, "specials") {
		return models.MediaEpisode
	}
	return models.MediaMovie
}

func titleForPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
