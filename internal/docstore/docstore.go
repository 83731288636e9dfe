// Package docstore abstracts the remote document database the sync core
// runs against: keyed JSON documents grouped into collections, with a
// watch primitive that pushes a full snapshot of the matched document(s)
// on every change.
package docstore

import (
	"context"
	"encoding/json"
	"sync"
)

// RawDoc is one stored document. Callers decode Data into their own types.
type RawDoc struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals a document into out.
func (d RawDoc) Decode(out any) error {
	return json.Unmarshal(d.Data, out)
}

// Event is a single-document watch delivery. Doc is nil when the document
// was deleted.
type Event struct {
	Doc *RawDoc
}

// CollectionEvent is a collection watch delivery: the full current
// contents of the collection.
type CollectionEvent struct {
	Docs []RawDoc
}

// Filter is a top-level field equality constraint for Query.
type Filter struct {
	Field  string
	Equals any
}

// Store is the document database contract. Get returns NOT_FOUND for an
// absent document; Create returns ALREADY_EXISTS for a present one, which
// makes get-or-create flows idempotent under races. Transient failures
// carry the UNAVAILABLE code.
type Store interface {
	Get(ctx context.Context, collection, id string, out any) error
	Create(ctx context.Context, collection, id string, doc any) error
	Set(ctx context.Context, collection, id string, doc any) error
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filters []Filter) ([]RawDoc, error)

	// Watch delivers the current snapshot immediately, then a new one on
	// every change. WatchCollection does the same for a whole collection.
	Watch(ctx context.Context, collection, id string) (*Subscription, error)
	WatchCollection(ctx context.Context, collection string) (*CollectionSubscription, error)
}

// Subscription is a cancellable single-document watch handle. Deliveries
// coalesce: a slow consumer sees the latest snapshot, not every
// intermediate one. After Cancel returns, no new delivery starts and C is
// closed; a delivery already in flight may complete first.
type Subscription struct {
	C <-chan Event

	events   chan Event
	mu       sync.Mutex
	closed   bool
	onCancel func()
}

func NewSubscription(onCancel func()) *Subscription {
	events := make(chan Event, 1)
	return &Subscription{C: events, events: events, onCancel: onCancel}
}

// Deliver hands a snapshot to the consumer, replacing any undrained one.
func (s *Subscription) Deliver(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		// Drop the stale snapshot in favor of the newest.
		select {
		case <-s.events:
		default:
		}
		s.events <- ev
	}
}

func (s *Subscription) Cancel() {
	if s.onCancel != nil {
		s.onCancel()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// CollectionSubscription mirrors Subscription for collection watches.
type CollectionSubscription struct {
	C <-chan CollectionEvent

	events   chan CollectionEvent
	mu       sync.Mutex
	closed   bool
	onCancel func()
}

func NewCollectionSubscription(onCancel func()) *CollectionSubscription {
	events := make(chan CollectionEvent, 1)
	return &CollectionSubscription{C: events, events: events, onCancel: onCancel}
}

func (s *CollectionSubscription) Deliver(ev CollectionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		select {
		case <-s.events:
		default:
		}
		s.events <- ev
	}
}

func (s *CollectionSubscription) Cancel() {
	if s.onCancel != nil {
		s.onCancel()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}
