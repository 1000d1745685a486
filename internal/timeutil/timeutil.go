/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timeutil supplies the wall-clock source and the calendar
// arithmetic used by the playout build engine.
package timeutil

import "time"

// Clock abstracts the wall-clock source so builds are testable at a fixed
// instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports the same instant.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time { return c.Instant }

// NextMinuteMultiple returns the next multiple of n minutes at or after
// from, computed on UTC epoch seconds.
func NextMinuteMultiple(from time.Time, n int) time.Time {
	if n <= 0 {
		return from
	}
	step := int64(n) * 60
	sec := from.Unix()
	rem := sec % step
	if rem == 0 {
		return time.Unix(sec, 0).UTC()
	}
	return time.Unix(sec-rem+step, 0).UTC()
}

// NextFixedStart computes the next fire instant of a fixed-anchor slot
// with time-of-day offset from local midnight, at or after the given
// instant. An anchor landing exactly on the instant fires immediately;
// only anchors already past roll over to the next day.
//
// The day is treated as a flat 24 hours; DST transitions shift the local
// wall time rather than stretching or shrinking the day. This mirrors the
// behaviour of the scheduling data model and is a documented limitation.
func NextFixedStart(after time.Time, offset time.Duration, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := after.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	candidate := midnight.Add(offset)
	if !candidate.Before(after) {
		return candidate.UTC()
	}
	return candidate.Add(24 * time.Hour).UTC()
}

// LoadLocation resolves a zone name, falling back to UTC when the name is
// empty or unknown.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
