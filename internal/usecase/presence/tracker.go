// Package presence writes and observes advisory online/last-seen state.
// Presence is never authoritative: every write here is best-effort and
// failures are logged, not surfaced.
package presence

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/duetapp/duet-sync/internal/docstore"
	"github.com/duetapp/duet-sync/internal/domain"
)

// heartbeatTTL bounds how long the redis fast-path key survives without a
// refresh.
const heartbeatTTL = 2 * time.Minute

type Tracker struct {
	store docstore.Store
	redis *redis.Client
	log   zerolog.Logger
	now   func() time.Time
}

func NewTracker(store docstore.Store, redisClient *redis.Client, log zerolog.Logger) *Tracker {
	return &Tracker{
		store: store,
		redis: redisClient,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func heartbeatKey(userID string) string {
	return "presence:online:" + userID
}

// SetPresence updates the profile document's advisory presence fields and
// refreshes the redis heartbeat. Neither write may fail the caller.
func (t *Tracker) SetPresence(ctx context.Context, userID string, online bool) {
	now := t.now()
	err := t.store.Update(ctx, domain.CollectionUsers, userID, map[string]any{
		"is_online":    online,
		"last_seen_at": now,
	})
	if err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("presence write failed")
	}

	if t.redis == nil {
		return
	}
	if online {
		err = t.redis.Set(ctx, heartbeatKey(userID), now.Format(time.RFC3339), heartbeatTTL).Err()
	} else {
		err = t.redis.Del(ctx, heartbeatKey(userID)).Err()
	}
	if err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("presence heartbeat failed")
	}
}

// OnlineNow answers from the redis fast path without touching the
// document store. Absence of a heartbeat reads as offline.
func (t *Tracker) OnlineNow(ctx context.Context, userID string) bool {
	if t.redis == nil {
		return false
	}
	n, err := t.redis.Exists(ctx, heartbeatKey(userID)).Result()
	if err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("presence heartbeat read failed")
		return false
	}
	return n > 0
}

// ProfileSubscription delivers the watched profile on every change, or
// nil when the profile document is deleted. After Cancel returns no new
// value is delivered.
type ProfileSubscription struct {
	C <-chan *domain.UserProfile

	inner     *docstore.Subscription
	cancelled atomic.Bool
}

func (s *ProfileSubscription) Cancel() {
	s.cancelled.Store(true)
	s.inner.Cancel()
}

// Watch observes one user's profile document.
func (t *Tracker) Watch(ctx context.Context, userID string) (*ProfileSubscription, error) {
	inner, err := t.store.Watch(ctx, domain.CollectionUsers, userID)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.UserProfile, 1)
	sub := &ProfileSubscription{C: out, inner: inner}

	go func() {
		defer close(out)
		for ev := range inner.C {
			if sub.cancelled.Load() {
				return
			}
			var profile *domain.UserProfile
			if ev.Doc != nil {
				profile = &domain.UserProfile{}
				if err := ev.Doc.Decode(profile); err != nil {
					t.log.Warn().Err(err).Str("user_id", userID).Msg("profile snapshot decode failed")
					continue
				}
			}
			select {
			case out <- profile:
			default:
				// Replace an undrained snapshot with the newest.
				select {
				case <-out:
				default:
				}
				out <- profile
			}
		}
	}()

	return sub, nil
}
