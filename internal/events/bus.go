/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventBuildComplete EventType = "playout.build_complete"
	EventBuildFailed   EventType = "playout.build_failed"
	EventHealth        EventType = "health"

	// Cache invalidation events
	EventChannelCreated    EventType = "cache.channel_created"
	EventChannelUpdated    EventType = "cache.channel_updated"
	EventChannelDeleted    EventType = "cache.channel_deleted"
	EventScheduleUpdated   EventType = "cache.schedule_updated"
	EventScheduleDeleted   EventType = "cache.schedule_deleted"
	EventCollectionUpdated EventType = "cache.collection_updated"
	EventCollectionDeleted EventType = "cache.collection_deleted"
	EventMediaUpdated      EventType = "cache.media_updated"
	EventMediaDeleted      EventType = "cache.media_deleted"

	// Library scan lifecycle
	EventScanStarted  EventType = "library.scan_started"
	EventScanFinished EventType = "library.scan_finished"

	// Manual timeline edits
	EventManualEventCreated EventType = "timeline.manual_created"
	EventManualEventUpdated EventType = "timeline.manual_updated"
	EventManualEventDeleted EventType = "timeline.manual_deleted"
)

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// PubSub is the surface shared by the in-process bus and the
// distributed buses in internal/eventbus.
type PubSub interface {
	Subscribe(eventType EventType) Subscriber
	Publish(eventType EventType, payload Payload)
	Unsubscribe(eventType EventType, sub Subscriber)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
	close(sub)
}
