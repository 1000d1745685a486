/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/pseudovision/internal/events"
	"github.com/friendsincode/pseudovision/internal/models"
	"github.com/friendsincode/pseudovision/internal/resolver"
	"github.com/friendsincode/pseudovision/internal/telemetry"
	"github.com/friendsincode/pseudovision/internal/timeutil"
)

// Options tune a single build invocation.
type Options struct {
	LookaheadHours int
	ZoneID         string
}

const defaultLookaheadHours = 72

// Outcome classifies a finished build.
type Outcome string

const (
	OutcomeBuilt      Outcome = "built"
	OutcomeNoSchedule Outcome = "no_schedule"
)

// Result summarises one build invocation.
type Result struct {
	Outcome    Outcome
	ChannelID  string
	EventCount int
	NextStart  time.Time
}

// ErrBuildInProgress is returned when a build for the same playout is
// already running in this process.
var ErrBuildInProgress = errors.New("playout build already in progress")

// Builder compiles a channel's schedule into a persisted event timeline.
// Builds on the same playout are serialised per process; the whole build
// runs inside one transaction so readers never observe a half-replaced
// timeline.
type Builder struct {
	db       *gorm.DB
	resolver *resolver.Resolver
	filler   *Filler
	clock    timeutil.Clock
	logger   zerolog.Logger
	bus      events.PubSub

	locks sync.Map // playout id -> *sync.Mutex
}

// NewBuilder constructs a build driver. bus may be nil.
func NewBuilder(db *gorm.DB, res *resolver.Resolver, clock timeutil.Clock, bus events.PubSub, logger zerolog.Logger) *Builder {
	return &Builder{
		db:       db,
		resolver: res,
		filler:   NewFiller(logger),
		clock:    clock,
		logger:   logger,
		bus:      bus,
	}
}

// buildState threads one build's working set through the slot loop. tx
// and res are bound to the build transaction, so every read the loop
// performs sees the same snapshot the insert will commit into.
type buildState struct {
	playout  models.Playout
	channel  models.Channel
	schedule models.Schedule
	slots    []models.Slot
	cursor   *Cursor
	events   []models.PlayoutEvent
	loc      *time.Location
	now      time.Time
	horizon  time.Time
	tx       *gorm.DB
	res      *resolver.Resolver
}

// Build compiles the playout's timeline out to the lookahead horizon.
// It reaps the automatic event suffix, runs the slot loop, bulk-inserts
// the produced events and persists the advanced cursor, all in one
// transaction. Rebuilding is idempotent.
func (b *Builder) Build(ctx context.Context, playoutID string, opts Options) (Result, error) {
	unlock, ok := b.tryLock(playoutID)
	if !ok {
		return Result{}, ErrBuildInProgress
	}
	defer unlock()

	started := b.clock.Now()
	ctx, span := telemetry.StartBuildSpan(ctx, playoutID)
	result, err := b.run(ctx, playoutID, opts)
	telemetry.EndBuildSpan(span, result.ChannelID, string(result.Outcome), result.EventCount, err)
	telemetry.ObserveBuild(string(result.Outcome), err, time.Since(started), result.EventCount)

	if err != nil {
		b.recordFailure(ctx, playoutID, err)
		b.publish(events.EventBuildFailed, playoutID, result.ChannelID, 0)
		return result, err
	}
	if result.Outcome == OutcomeBuilt {
		b.publish(events.EventBuildComplete, playoutID, result.ChannelID, result.EventCount)
	}
	return result, nil
}

func (b *Builder) run(ctx context.Context, playoutID string, opts Options) (Result, error) {
	if opts.LookaheadHours <= 0 {
		opts.LookaheadHours = defaultLookaheadHours
	}

	var playout models.Playout
	if err := b.db.WithContext(ctx).First(&playout, "id = ?", playoutID).Error; err != nil {
		return Result{}, fmt.Errorf("load playout %s: %w", playoutID, err)
	}
	var channel models.Channel
	if err := b.db.WithContext(ctx).First(&channel, "id = ?", playout.ChannelID).Error; err != nil {
		return Result{}, fmt.Errorf("load channel %s: %w", playout.ChannelID, err)
	}

	var schedule models.Schedule
	err := b.db.WithContext(ctx).
		Preload("Slots", func(tx *gorm.DB) *gorm.DB { return tx.Order("slot_index ASC") }).
		First(&schedule, "id = ?", playout.ScheduleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{Outcome: OutcomeNoSchedule, ChannelID: channel.ID}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("load schedule %s: %w", playout.ScheduleID, err)
	}
	if len(schedule.Slots) == 0 {
		return Result{Outcome: OutcomeNoSchedule, ChannelID: channel.ID}, nil
	}

	now := b.clock.Now().Truncate(time.Second)
	st := &buildState{
		playout:  playout,
		channel:  channel,
		schedule: schedule,
		slots:    scheduleSlots(schedule, playout.Seed),
		loc:      timeutil.LoadLocation(opts.ZoneID),
		now:      now,
		horizon:  now.Add(time.Duration(opts.LookaheadHours) * time.Hour),
	}

	cursor, err := b.loadCursor(playout, schedule, st.slots, now)
	if err != nil {
		return Result{}, err
	}
	st.cursor = &cursor

	txErr := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st.tx = tx
		st.res = b.resolver.WithDB(tx)

		if err := tx.
			Where("playout_id = ? AND start_at >= ? AND is_manual = ?", playout.ID, now, false).
			Delete(&models.PlayoutEvent{}).Error; err != nil {
			return fmt.Errorf("reap automatic events: %w", err)
		}

		if err := b.slotLoop(ctx, st); err != nil {
			return err
		}
		if err := validateEvents(st.events); err != nil {
			return err
		}

		if len(st.events) > 0 {
			if err := tx.CreateInBatches(st.events, 500).Error; err != nil {
				return fmt.Errorf("insert events: %w", err)
			}
		}

		raw, err := MarshalCursor(*st.cursor)
		if err != nil {
			return err
		}
		builtAt := b.clock.Now()
		return tx.Model(&models.Playout{}).
			Where("id = ?", playout.ID).
			Updates(map[string]any{
				"cursor":        raw,
				"last_built_at": builtAt,
				"build_success": true,
				"build_message": nil,
			}).Error
	})
	if txErr != nil {
		return Result{}, txErr
	}

	b.logger.Info().
		Str("playout_id", playout.ID).
		Str("channel_id", channel.ID).
		Int("events", len(st.events)).
		Time("next_start", st.cursor.NextStart).
		Msg("playout build complete")

	return Result{Outcome: OutcomeBuilt, ChannelID: channel.ID, EventCount: len(st.events), NextStart: st.cursor.NextStart}, nil
}

// slotLoop walks slots round-robin until next_start passes the horizon. A
// progress guard stops the loop if a full cycle of slots neither emits
// events nor advances the clock, which happens when every source is empty
// or misconfigured.
func (b *Builder) slotLoop(ctx context.Context, st *buildState) error {
	n := len(st.slots)
	ptr := st.cursor.SlotIndex % n
	stalled := 0

	for !st.cursor.NextStart.After(st.horizon) {
		slot := st.slots[ptr]
		prevStart := st.cursor.NextStart
		prevCount := len(st.events)

		if slot.Anchor == models.AnchorFixed && slot.StartTime != nil &&
			st.schedule.FixedStartTimeBehavior == models.FixedStartSkip {
			fire := timeutil.NextFixedStart(st.cursor.NextStart, *slot.StartTime, st.loc)
			if fire.After(st.cursor.NextStart) {
				st.cursor.NextStart = fire
			}
		}

		var floodEnd *time.Time
		if slot.FillMode == models.FillFlood {
			floodEnd = nextFixedAfter(st.slots, ptr, st.cursor.NextStart, st.loc)
		}

		if err := b.dispatchSlot(ctx, st, slot, floodEnd); err != nil {
			return err
		}

		ptr = (ptr + 1) % n
		st.cursor.AdvanceSlot(n)

		if len(st.events) == prevCount && !st.cursor.NextStart.After(prevStart) {
			stalled++
			if stalled >= n {
				b.logger.Warn().
					Str("playout_id", st.playout.ID).
					Msg("no slot made progress over a full schedule cycle, stopping build")
				break
			}
		} else {
			stalled = 0
		}
	}
	return nil
}

// loadCursor restores the persisted cursor, or initialises one for a
// first build, honouring the schedule's random start point.
func (b *Builder) loadCursor(playout models.Playout, schedule models.Schedule, slots []models.Slot, now time.Time) (Cursor, error) {
	if playout.Cursor != "" {
		cursor, err := UnmarshalCursor(playout.Cursor)
		if err != nil {
			return Cursor{}, fmt.Errorf("restore cursor for playout %s: %w", playout.ID, err)
		}
		// Never schedule into the past after a long outage.
		if cursor.NextStart.Before(now) {
			cursor.NextStart = now
		}
		return cursor, nil
	}

	cursor := NewCursor(now)
	if schedule.RandomStartPoint && len(slots) > 1 {
		rng := rand.New(rand.NewSource(playout.Seed))
		cursor.SlotIndex = rng.Intn(len(slots))
	}
	return cursor, nil
}

// scheduleSlots applies the schedule's slot-order options. Shuffling is
// seeded from the playout so the order is stable across rebuilds.
func scheduleSlots(schedule models.Schedule, seed int64) []models.Slot {
	slots := make([]models.Slot, len(schedule.Slots))
	copy(slots, schedule.Slots)
	if schedule.ShuffleSlots && len(slots) > 1 {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(slots), func(i, j int) { slots[i], slots[j] = slots[j], slots[i] })
	}
	return slots
}

// nextFixedAfter finds the next fire time of the first fixed-anchor slot
// after ptr, scanning the remainder of the cycle. Returns nil when the
// schedule has no other fixed anchor.
func nextFixedAfter(slots []models.Slot, ptr int, after time.Time, loc *time.Location) *time.Time {
	n := len(slots)
	for i := 1; i < n; i++ {
		slot := slots[(ptr+i)%n]
		if slot.Anchor != models.AnchorFixed || slot.StartTime == nil {
			continue
		}
		fire := timeutil.NextFixedStart(after, *slot.StartTime, loc)
		return &fire
	}
	return nil
}

// validateEvents enforces the timeline invariants before anything is
// persisted. A violation aborts the whole transaction.
func validateEvents(evs []models.PlayoutEvent) error {
	for i := range evs {
		if !evs[i].FinishAt.After(evs[i].StartAt) {
			return fmt.Errorf("event %s finishes at or before its start", evs[i].ID)
		}
		if evs[i].Kind != models.EventOffline && evs[i].MediaItemID == nil {
			return fmt.Errorf("event %s has no media item", evs[i].ID)
		}
		if i > 0 && evs[i].StartAt.Before(evs[i-1].StartAt) {
			return fmt.Errorf("event %s starts before its predecessor", evs[i].ID)
		}
		if i > 0 && evs[i].StartAt.Before(evs[i-1].FinishAt) {
			return fmt.Errorf("event %s overlaps its predecessor", evs[i].ID)
		}
		if i > 0 && evs[i].GuideGroup < evs[i-1].GuideGroup {
			return fmt.Errorf("event %s regresses the guide group", evs[i].ID)
		}
	}
	return nil
}

// recordFailure stamps the playout row with the build diagnostic, outside
// the aborted transaction.
func (b *Builder) recordFailure(ctx context.Context, playoutID string, buildErr error) {
	msg := buildErr.Error()
	err := b.db.WithContext(ctx).Model(&models.Playout{}).
		Where("id = ?", playoutID).
		Updates(map[string]any{
			"last_built_at": b.clock.Now(),
			"build_success": false,
			"build_message": msg,
		}).Error
	if err != nil {
		b.logger.Error().Err(err).Str("playout_id", playoutID).Msg("failed to record build failure")
	}
}

func (b *Builder) tryLock(playoutID string) (func(), bool) {
	v, _ := b.locks.LoadOrStore(playoutID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, false
	}
	return mu.Unlock, true
}

func (b *Builder) publish(eventType events.EventType, playoutID, channelID string, count int) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(eventType, events.Payload{
		"playout_id": playoutID,
		"channel_id": channelID,
		"events":     count,
	})
}
