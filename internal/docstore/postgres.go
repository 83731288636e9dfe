package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/duetapp/duet-sync/pkg/apperr"
)

// notifyChannel is the postgres NOTIFY channel every write publishes to.
// All writers are expected to go through this store type; an external
// writer bypassing it would not be observed by watchers.
const notifyChannel = "duet_doc_changes"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection  TEXT        NOT NULL,
	id          TEXT        NOT NULL,
	data        JSONB       NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

// PostgresStore keeps documents as JSONB rows and pushes changes to
// watchers through LISTEN/NOTIFY.
type PostgresStore struct {
	db       *sqlx.DB
	listener *pq.Listener
	log      zerolog.Logger

	mu       sync.RWMutex
	docSubs  map[string][]*docSub
	collSubs map[string][]*CollectionSubscription

	stop chan struct{}
}

func NewPostgresStore(db *sqlx.DB, dsn string, log zerolog.Logger) (*PostgresStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, apperr.Unavailable("failed to ensure documents table", err)
	}

	listener := pq.NewListener(dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("docstore listener event")
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		return nil, apperr.Unavailable("failed to listen on change channel", err)
	}

	p := &PostgresStore{
		db:       db,
		listener: listener,
		log:      log,
		docSubs:  make(map[string][]*docSub),
		collSubs: make(map[string][]*CollectionSubscription),
		stop:     make(chan struct{}),
	}
	go p.listenLoop()
	return p, nil
}

// Close stops change delivery. Open subscriptions stop receiving events;
// cancelling them afterwards is still safe.
func (p *PostgresStore) Close() error {
	close(p.stop)
	return p.listener.Close()
}

func (p *PostgresStore) Get(ctx context.Context, collection, id string, out any) error {
	raw, err := p.getRaw(ctx, collection, id)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *PostgresStore) getRaw(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(fmt.Sprintf("document %s/%s not found", collection, id))
	}
	if err != nil {
		return nil, apperr.Unavailable("document read failed", err)
	}
	return raw, nil
}

func (p *PostgresStore) Create(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperr.Wrap(apperr.CodeInvalidArgument, "document not serializable", err)
	}
	res, err := p.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, raw,
	)
	if err != nil {
		return apperr.Unavailable("document create failed", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperr.Unavailable("document create failed", err)
	}
	if rows == 0 {
		return apperr.AlreadyExists(fmt.Sprintf("document %s/%s already exists", collection, id))
	}
	p.publish(ctx, collection, id)
	return nil
}

func (p *PostgresStore) Set(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperr.Wrap(apperr.CodeInvalidArgument, "document not serializable", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id)
		 DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		collection, id, raw,
	)
	if err != nil {
		return apperr.Unavailable("document write failed", err)
	}
	p.publish(ctx, collection, id)
	return nil
}

func (p *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return apperr.Wrap(apperr.CodeInvalidArgument, "update fields not serializable", err)
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND id = $2`,
		collection, id, raw,
	)
	if err != nil {
		return apperr.Unavailable("document update failed", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperr.Unavailable("document update failed", err)
	}
	if rows == 0 {
		return apperr.NotFound(fmt.Sprintf("document %s/%s not found", collection, id))
	}
	p.publish(ctx, collection, id)
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return apperr.Unavailable("document delete failed", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperr.Unavailable("document delete failed", err)
	}
	if rows == 0 {
		return apperr.NotFound(fmt.Sprintf("document %s/%s not found", collection, id))
	}
	p.publish(ctx, collection, id)
	return nil
}

func (p *PostgresStore) Query(ctx context.Context, collection string, filters []Filter) ([]RawDoc, error) {
	query := `SELECT id, data FROM documents WHERE collection = $1`
	args := []any{collection}
	for _, f := range filters {
		query += fmt.Sprintf(" AND data->>$%d = $%d", len(args)+1, len(args)+2)
		args = append(args, f.Field, fmt.Sprint(f.Equals))
	}
	query += ` ORDER BY id`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Unavailable("document query failed", err)
	}
	defer rows.Close()

	var docs []RawDoc
	for rows.Next() {
		var doc RawDoc
		if err := rows.Scan(&doc.ID, &doc.Data); err != nil {
			return nil, apperr.Unavailable("document query failed", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("document query failed", err)
	}
	return docs, nil
}

func (p *PostgresStore) Watch(ctx context.Context, collection, id string) (*Subscription, error) {
	var sub *Subscription
	entry := &docSub{id: id}
	sub = NewSubscription(func() {
		p.mu.Lock()
		subs := p.docSubs[collection]
		for i, s := range subs {
			if s == entry {
				p.docSubs[collection] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		p.mu.Unlock()
	})
	entry.sub = sub

	// Snapshot, initial delivery and registration happen under the
	// registry lock: a concurrent fanout blocks on it and then re-reads
	// fresh state, so the initial snapshot can never land on top of a
	// newer delivery.
	p.mu.Lock()
	defer p.mu.Unlock()

	raw, err := p.getRaw(ctx, collection, id)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}
	if err != nil {
		// Absent documents deliver nil.
		sub.Deliver(Event{})
	} else {
		sub.Deliver(Event{Doc: &RawDoc{ID: id, Data: raw}})
	}
	p.docSubs[collection] = append(p.docSubs[collection], entry)
	return sub, nil
}

func (p *PostgresStore) WatchCollection(ctx context.Context, collection string) (*CollectionSubscription, error) {
	var sub *CollectionSubscription
	sub = NewCollectionSubscription(func() {
		p.mu.Lock()
		subs := p.collSubs[collection]
		for i, s := range subs {
			if s == sub {
				p.collSubs[collection] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		p.mu.Unlock()
	})

	// Same ordering discipline as Watch.
	p.mu.Lock()
	defer p.mu.Unlock()

	docs, err := p.Query(ctx, collection, nil)
	if err != nil {
		return nil, err
	}
	sub.Deliver(CollectionEvent{Docs: docs})
	p.collSubs[collection] = append(p.collSubs[collection], sub)
	return sub, nil
}

// publish announces a change after the row write committed. A lost
// notification only delays watchers, so failures are logged and swallowed.
func (p *PostgresStore) publish(ctx context.Context, collection, id string) {
	payload := collection + "|" + id
	if _, err := p.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, payload); err != nil {
		p.log.Warn().Err(err).Str("doc", payload).Msg("change notify failed")
	}
}

func (p *PostgresStore) listenLoop() {
	for {
		select {
		case <-p.stop:
			return
		case n := <-p.listener.Notify:
			if n == nil {
				// Listener reconnected; watchers may have missed events.
				continue
			}
			parts := strings.SplitN(n.Extra, "|", 2)
			if len(parts) != 2 {
				continue
			}
			go p.fanout(parts[0], parts[1])
		case <-time.After(90 * time.Second):
			go func() {
				if err := p.listener.Ping(); err != nil {
					p.log.Warn().Err(err).Msg("docstore listener ping failed")
				}
			}()
		}
	}
}

// fanout re-reads fresh state and hands it to every matching watcher.
func (p *PostgresStore) fanout(collection, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p.mu.RLock()
	var docTargets []*docSub
	for _, entry := range p.docSubs[collection] {
		if entry.id == id {
			docTargets = append(docTargets, entry)
		}
	}
	collTargets := append([]*CollectionSubscription(nil), p.collSubs[collection]...)
	p.mu.RUnlock()

	if len(docTargets) > 0 {
		raw, err := p.getRaw(ctx, collection, id)
		ev := Event{}
		switch {
		case err == nil:
			ev.Doc = &RawDoc{ID: id, Data: raw}
		case !apperr.IsNotFound(err):
			p.log.Warn().Err(err).Str("collection", collection).Str("id", id).Msg("watch re-read failed")
			return
		}
		for _, entry := range docTargets {
			entry.sub.Deliver(ev)
		}
	}

	if len(collTargets) > 0 {
		docs, err := p.Query(ctx, collection, nil)
		if err != nil {
			p.log.Warn().Err(err).Str("collection", collection).Msg("watch re-read failed")
			return
		}
		for _, sub := range collTargets {
			sub.Deliver(CollectionEvent{Docs: docs})
		}
	}
}
