/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeutil

import (
	"testing"
	"time"
)

func TestNextMinuteMultiple(t *testing.T) {
	from := time.Date(2026, 3, 10, 14, 7, 12, 0, time.UTC)

	got := NextMinuteMultiple(from, 30)
	want := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextMinuteMultiple = %v, want %v", got, want)
	}
}

func TestNextMinuteMultipleOnBoundary(t *testing.T) {
	from := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	got := NextMinuteMultiple(from, 30)
	if !got.Equal(from) {
		t.Fatalf("NextMinuteMultiple on boundary = %v, want %v", got, from)
	}
}

func TestNextFixedStartLaterToday(t *testing.T) {
	after := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)

	got := NextFixedStart(after, 6*time.Hour, time.UTC)
	want := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextFixedStart = %v, want %v", got, want)
	}
}

func TestNextFixedStartFiresOnExactInstant(t *testing.T) {
	after := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

	got := NextFixedStart(after, 6*time.Hour, time.UTC)
	if !got.Equal(after) {
		t.Fatalf("anchor landing on the instant should fire immediately, got %v", got)
	}
}

func TestNextFixedStartRollsToNextDay(t *testing.T) {
	after := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

	got := NextFixedStart(after, 6*time.Hour, time.UTC)
	want := time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextFixedStart = %v, want %v", got, want)
	}
}

func TestLoadLocationFallsBackToUTC(t *testing.T) {
	if loc := LoadLocation(""); loc != time.UTC {
		t.Fatalf("empty name should resolve to UTC, got %v", loc)
	}
	if loc := LoadLocation("Not/AZone"); loc != time.UTC {
		t.Fatalf("unknown name should resolve to UTC, got %v", loc)
	}
}
