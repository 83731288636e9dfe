package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/duetapp/duet-sync/pkg/apperr"
)

// MemoryStore is an in-process Store used by tests and dev mode. It
// implements the same watch semantics as the production store.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]map[string]json.RawMessage
	docSubs  map[string][]*docSub
	collSubs map[string][]*CollectionSubscription
}

type docSub struct {
	id  string
	sub *Subscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:     make(map[string]map[string]json.RawMessage),
		docSubs:  make(map[string][]*docSub),
		collSubs: make(map[string][]*CollectionSubscription),
	}
}

func (m *MemoryStore) Get(_ context.Context, collection, id string, out any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data[collection][id]
	if !ok {
		return apperr.NotFound(fmt.Sprintf("document %s/%s not found", collection, id))
	}
	return json.Unmarshal(raw, out)
}

func (m *MemoryStore) Create(_ context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperr.Wrap(apperr.CodeInvalidArgument, "document not serializable", err)
	}
	m.mu.Lock()
	if _, ok := m.data[collection][id]; ok {
		m.mu.Unlock()
		return apperr.AlreadyExists(fmt.Sprintf("document %s/%s already exists", collection, id))
	}
	m.put(collection, id, raw)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Set(_ context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperr.Wrap(apperr.CodeInvalidArgument, "document not serializable", err)
	}
	m.mu.Lock()
	m.put(collection, id, raw)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[collection][id]
	if !ok {
		return apperr.NotFound(fmt.Sprintf("document %s/%s not found", collection, id))
	}
	var merged map[string]any
	if err := json.Unmarshal(raw, &merged); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "stored document corrupt", err)
	}
	for k, v := range fields {
		merged[k] = v
	}
	next, err := json.Marshal(merged)
	if err != nil {
		return apperr.Wrap(apperr.CodeInvalidArgument, "update fields not serializable", err)
	}
	m.put(collection, id, next)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[collection][id]; !ok {
		return apperr.NotFound(fmt.Sprintf("document %s/%s not found", collection, id))
	}
	delete(m.data[collection], id)
	m.notifyLocked(collection, id)
	return nil
}

func (m *MemoryStore) Query(_ context.Context, collection string, filters []Filter) ([]RawDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RawDoc
	for _, doc := range m.snapshotLocked(collection) {
		if matchesFilters(doc, filters) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *MemoryStore) Watch(_ context.Context, collection, id string) (*Subscription, error) {
	var sub *Subscription
	entry := &docSub{id: id}
	sub = NewSubscription(func() {
		m.mu.Lock()
		subs := m.docSubs[collection]
		for i, s := range subs {
			if s == entry {
				m.docSubs[collection] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
	})
	entry.sub = sub

	m.mu.Lock()
	m.docSubs[collection] = append(m.docSubs[collection], entry)
	sub.Deliver(Event{Doc: m.docLocked(collection, id)})
	m.mu.Unlock()
	return sub, nil
}

func (m *MemoryStore) WatchCollection(_ context.Context, collection string) (*CollectionSubscription, error) {
	var sub *CollectionSubscription
	sub = NewCollectionSubscription(func() {
		m.mu.Lock()
		subs := m.collSubs[collection]
		for i, s := range subs {
			if s == sub {
				m.collSubs[collection] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
	})

	m.mu.Lock()
	m.collSubs[collection] = append(m.collSubs[collection], sub)
	sub.Deliver(CollectionEvent{Docs: m.snapshotLocked(collection)})
	m.mu.Unlock()
	return sub, nil
}

// put stores raw and fans the change out. Caller holds the write lock.
func (m *MemoryStore) put(collection, id string, raw json.RawMessage) {
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]json.RawMessage)
	}
	m.data[collection][id] = raw
	m.notifyLocked(collection, id)
}

func (m *MemoryStore) notifyLocked(collection, id string) {
	doc := m.docLocked(collection, id)
	for _, entry := range m.docSubs[collection] {
		if entry.id == id {
			entry.sub.Deliver(Event{Doc: doc})
		}
	}
	if len(m.collSubs[collection]) > 0 {
		snapshot := m.snapshotLocked(collection)
		for _, sub := range m.collSubs[collection] {
			sub.Deliver(CollectionEvent{Docs: snapshot})
		}
	}
}

func (m *MemoryStore) docLocked(collection, id string) *RawDoc {
	raw, ok := m.data[collection][id]
	if !ok {
		return nil
	}
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	return &RawDoc{ID: id, Data: cp}
}

func (m *MemoryStore) snapshotLocked(collection string) []RawDoc {
	docs := make([]RawDoc, 0, len(m.data[collection]))
	for id := range m.data[collection] {
		docs = append(docs, *m.docLocked(collection, id))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

func matchesFilters(doc RawDoc, filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}
	var fields map[string]any
	if err := json.Unmarshal(doc.Data, &fields); err != nil {
		return false
	}
	for _, f := range filters {
		got, ok := fields[f.Field]
		if !ok || fmt.Sprint(got) != fmt.Sprint(f.Equals) {
			return false
		}
	}
	return true
}
