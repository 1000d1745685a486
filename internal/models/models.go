/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// Channel is an addressable logical IPTV stream. It carries at most one
// active playout.
type Channel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	Number    int    `gorm:"index"`
	GuideMode GuideMode `gorm:"type:varchar(16)"`

	// Channel-level filler defaults, overridable per slot.
	PreFillerID      *string `gorm:"type:uuid"`
	MidFillerID      *string `gorm:"type:uuid"`
	PostFillerID     *string `gorm:"type:uuid"`
	TailFillerID     *string `gorm:"type:uuid"`
	FallbackFillerID *string `gorm:"type:uuid"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GuideMode controls EPG rendering granularity for a channel.
type GuideMode string

const (
	GuideModeDefault GuideMode = "default"
	GuideModeBlocks  GuideMode = "blocks"
)

// Schedule is a named, reusable ordered sequence of slots.
type Schedule struct {
	ID   string `gorm:"type:uuid;primaryKey"`
	Name string `gorm:"uniqueIndex"`

	FixedStartTimeBehavior FixedStartTimeBehavior `gorm:"type:varchar(8)"`
	ShuffleSlots           bool
	RandomStartPoint       bool

	Slots []Slot `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FixedStartTimeBehavior is the policy when a fixed anchor is already past.
type FixedStartTimeBehavior string

const (
	FixedStartSkip FixedStartTimeBehavior = "skip"
	FixedStartPlay FixedStartTimeBehavior = "play"
)

// SlotAnchor selects how a slot's start instant is derived.
type SlotAnchor string

const (
	AnchorFixed      SlotAnchor = "fixed"
	AnchorSequential SlotAnchor = "sequential"
)

// FillMode enumerates the four slot fill strategies.
type FillMode string

const (
	FillOnce  FillMode = "once"
	FillCount FillMode = "count"
	FillBlock FillMode = "block"
	FillFlood FillMode = "flood"
)

// TailMode controls what happens with the remainder of a block slot.
type TailMode string

const (
	TailNone    TailMode = "none"
	TailFiller  TailMode = "filler"
	TailOffline TailMode = "offline"
)

// PlaybackOrder selects enumeration order over a slot's items.
type PlaybackOrder string

const (
	OrderChronological PlaybackOrder = "chronological"
	OrderShuffle       PlaybackOrder = "shuffle"
	OrderRandom        PlaybackOrder = "random"
	OrderSeasonEpisode PlaybackOrder = "season_episode"
)

// Slot is one entry in a schedule. Exactly one of CollectionID or
// MediaItemID is set; the API layer enforces the XOR before persistence.
type Slot struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	ScheduleID string `gorm:"type:uuid;index:idx_slots_schedule_order,priority:1"`
	SlotIndex  int    `gorm:"index:idx_slots_schedule_order,priority:2"`

	Anchor    SlotAnchor `gorm:"type:varchar(16)"`
	StartTime *time.Duration // offset from local midnight, fixed anchor only

	FillMode      FillMode `gorm:"type:varchar(8)"`
	ItemCount     *int
	BlockDuration *time.Duration
	TailMode      TailMode `gorm:"type:varchar(8)"`

	CollectionID *string `gorm:"type:uuid;index"`
	MediaItemID  *string `gorm:"type:uuid"`

	PlaybackOrder PlaybackOrder `gorm:"type:varchar(16)"`

	// Per-slot filler overrides; nil falls back to the channel default.
	PreFillerID      *string `gorm:"type:uuid"`
	MidFillerID      *string `gorm:"type:uuid"`
	PostFillerID     *string `gorm:"type:uuid"`
	TailFillerID     *string `gorm:"type:uuid"`
	FallbackFillerID *string `gorm:"type:uuid"`

	CustomTitle *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasExactlyOneSource reports whether the slot satisfies the source XOR
// constraint.
func (s Slot) HasExactlyOneSource() bool {
	return (s.CollectionID != nil) != (s.MediaItemID != nil)
}

// Playout is the compiled, persisted timeline for one channel.
type Playout struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	ChannelID  string `gorm:"type:uuid;uniqueIndex"`
	ScheduleID string `gorm:"type:uuid;index"`
	Seed       int64

	// Cursor holds the full resumption state as an opaque JSON document;
	// only the build engine reads or writes it.
	Cursor string `gorm:"type:jsonb"`

	LastBuiltAt  *time.Time
	BuildSuccess bool
	BuildMessage *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventKind tags the provenance of a playout event.
type EventKind string

const (
	EventContent  EventKind = "content"
	EventPre      EventKind = "pre"
	EventMid      EventKind = "mid"
	EventPost     EventKind = "post"
	EventPad      EventKind = "pad"
	EventTail     EventKind = "tail"
	EventFallback EventKind = "fallback"
	EventOffline  EventKind = "offline"
)

// PlayoutEvent is a single scheduled airing in the half-open interval
// [StartAt, FinishAt). MediaItemID is nil only for offline events, which
// represent a deliberate dead-air span.
type PlayoutEvent struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	PlayoutID   string    `gorm:"type:uuid;index:idx_events_playout_start,priority:1"`
	MediaItemID *string   `gorm:"type:uuid;index"`
	Kind        EventKind `gorm:"type:varchar(16)"`

	StartAt  time.Time `gorm:"index:idx_events_playout_start,priority:2"`
	FinishAt time.Time

	GuideGroup int
	SlotID     *string `gorm:"type:uuid"`
	IsManual   bool    `gorm:"index"`

	CustomTitle *string
	InPoint     *time.Duration
	OutPoint    *time.Duration

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CollectionKind discriminates the closed set of collection variants.
type CollectionKind string

const (
	CollectionManual   CollectionKind = "manual"
	CollectionPlaylist CollectionKind = "playlist"
	CollectionMulti    CollectionKind = "multi"
	CollectionTrakt    CollectionKind = "trakt"
	CollectionSmart    CollectionKind = "smart"
	CollectionRerun    CollectionKind = "rerun"
)

// Collection is a named container resolving to an ordered item list.
// Playlist and multi collections keep their member references inside
// Config ({"items": [...]} / {"members": [...]}).
type Collection struct {
	ID     string         `gorm:"type:uuid;primaryKey"`
	Name   string         `gorm:"uniqueIndex"`
	Kind   CollectionKind `gorm:"type:varchar(16)"`
	Config map[string]any `gorm:"type:jsonb;serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CollectionItem is the junction row for manual collections.
type CollectionItem struct {
	CollectionID string `gorm:"type:uuid;primaryKey"`
	MediaItemID  string `gorm:"type:uuid;primaryKey"`
	CustomOrder  *int
}

// TraktListItem maps an externally synced trakt list entry onto a local
// media item.
type TraktListItem struct {
	CollectionID string `gorm:"type:uuid;primaryKey"`
	MediaItemID  string `gorm:"type:uuid;primaryKey"`
	TraktID      int64
}

// MediaItemKind enumerates addressable content types.
type MediaItemKind string

const (
	MediaMovie   MediaItemKind = "movie"
	MediaEpisode MediaItemKind = "episode"
	MediaVideo   MediaItemKind = "other_video"
	MediaSong    MediaItemKind = "song"
	MediaFiller  MediaItemKind = "filler"
)

// MediaItem is an addressable unit of playable content. Duration lives on
// the version row; items with a zero-duration version are skippable
// placeholders.
type MediaItem struct {
	ID       string        `gorm:"type:uuid;primaryKey"`
	LibraryID string       `gorm:"type:uuid;index"`
	Kind     MediaItemKind `gorm:"type:varchar(16)"`
	Title    string        `gorm:"index"`
	SortKey  string
	ParentID *string `gorm:"type:uuid;index"` // season/show for episodes
	Position int     // episode number within parent

	Path string `gorm:"index"`

	Version MediaVersion `gorm:"foreignKey:MediaItemID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MediaVersion carries playable file details for a media item.
type MediaVersion struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	MediaItemID string `gorm:"type:uuid;uniqueIndex"`
	Duration    time.Duration
	Container   string `gorm:"type:varchar(16)"`
	SizeBytes   int64
}

// FillerRole names the gap a preset is allowed to fill.
type FillerRole string

const (
	RolePre      FillerRole = "pre"
	RoleMid      FillerRole = "mid"
	RolePost     FillerRole = "post"
	RoleTail     FillerRole = "tail"
	RoleFallback FillerRole = "fallback"
)

// FillerMode selects the preset's fill algorithm.
type FillerMode string

const (
	FillerDuration    FillerMode = "duration"
	FillerCount       FillerMode = "count"
	FillerRandomCount FillerMode = "random_count"
	FillerPadToMinute FillerMode = "pad_to_minute"
)

// FillerPreset is a named filler policy with a content source.
type FillerPreset struct {
	ID   string     `gorm:"type:uuid;primaryKey"`
	Name string     `gorm:"uniqueIndex"`
	Role FillerRole `gorm:"type:varchar(16)"`
	Mode FillerMode `gorm:"type:varchar(16)"`

	Count             *int
	PadToNearestMinute *int

	CollectionID *string `gorm:"type:uuid"`
	MediaItemID  *string `gorm:"type:uuid"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MediaSourceKind enumerates library backends.
type MediaSourceKind string

const (
	SourceLocal    MediaSourceKind = "local"
	SourceJellyfin MediaSourceKind = "jellyfin"
)

// MediaSource is an external library backend registration.
type MediaSource struct {
	ID               string          `gorm:"type:uuid;primaryKey"`
	Kind             MediaSourceKind `gorm:"type:varchar(16)"`
	Name             string          `gorm:"uniqueIndex"`
	ConnectionConfig map[string]any  `gorm:"type:jsonb;serializer:json"`

	Libraries []Library `gorm:"foreignKey:MediaSourceID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Library is one scannable content root within a media source.
type Library struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	MediaSourceID string `gorm:"type:uuid;index"`
	Name          string
	Path          string
	LastScanAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
