/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package enumerator implements the restartable, looping iterators the
// build engine draws media items from. An enumerator's position survives
// process restarts through its State projection, which the cursor
// persists alongside the playout row.
package enumerator

import (
	"math/rand"
	"sort"

	"github.com/friendsincode/pseudovision/internal/models"
)

// State is the durable projection of an enumerator. Restoring from a
// state rebuilds any permutation deterministically from (Seed, len(items))
// and then re-applies Index.
type State struct {
	Index         int                  `json:"index"`
	Seed          int64                `json:"seed"`
	PlaybackOrder models.PlaybackOrder `json:"playback_order"`
}

// Enumerator yields media items from a fixed vector in a selectable
// order. Next never returns an item from an empty vector; callers must
// check Empty before looping.
type Enumerator struct {
	items []models.MediaItem
	state State

	// permutation of indices, present for shuffle and random orders
	perm []int
}

// New builds an enumerator over items with the given order and seed.
func New(items []models.MediaItem, order models.PlaybackOrder, seed int64) *Enumerator {
	return Restore(items, State{Seed: seed, PlaybackOrder: order})
}

// Restore rebuilds an enumerator from a persisted state. The permutation
// for shuffle/random orders is recomputed lazily from the state's seed,
// so the same state over the same item vector yields the same sequence.
func Restore(items []models.MediaItem, state State) *Enumerator {
	e := &Enumerator{items: items, state: state}

	switch state.PlaybackOrder {
	case models.OrderShuffle:
		e.perm = permutation(state.Seed, len(items))
	case models.OrderRandom:
		// Random reshuffles once per pass; the stored seed already
		// accounts for completed passes.
		e.perm = permutation(state.Seed, len(items))
	case models.OrderSeasonEpisode:
		e.items = sortSeasonEpisode(items)
	}

	return e
}

// Empty reports whether the enumerator has no items to yield.
func (e *Enumerator) Empty() bool { return len(e.items) == 0 }

// State returns the durable projection of the enumerator's position.
func (e *Enumerator) State() State { return e.state }

// Next returns the current item and advances the enumerator. The second
// return is false when the vector is empty.
func (e *Enumerator) Next() (models.MediaItem, bool) {
	n := len(e.items)
	if n == 0 {
		return models.MediaItem{}, false
	}

	pos := e.state.Index % n

	// A random-order enumerator draws a fresh permutation at every pass
	// boundary, deriving the next seed so restarts land on the same deck.
	if e.state.PlaybackOrder == models.OrderRandom && pos == 0 && e.state.Index > 0 {
		e.state.Seed++
		e.perm = permutation(e.state.Seed, n)
	}

	var item models.MediaItem
	switch e.state.PlaybackOrder {
	case models.OrderShuffle, models.OrderRandom:
		item = e.items[e.perm[pos]]
	default:
		// chronological, season_episode (pre-sorted), and anything
		// unrecognised fall through to vector order
		item = e.items[pos]
	}

	e.state.Index++
	return item, true
}

func permutation(seed int64, n int) []int {
	if n <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	return rng.Perm(n)
}

func sortSeasonEpisode(items []models.MediaItem) []models.MediaItem {
	sorted := make([]models.MediaItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := "", ""
		if sorted[i].ParentID != nil {
			pi = *sorted[i].ParentID
		}
		if sorted[j].ParentID != nil {
			pj = *sorted[j].ParentID
		}
		if pi != pj {
			return pi < pj
		}
		return sorted[i].Position < sorted[j].Position
	})
	return sorted
}
