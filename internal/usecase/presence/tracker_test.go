package presence

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duetapp/duet-sync/internal/docstore"
	"github.com/duetapp/duet-sync/internal/domain"
)

func newTestTracker(t *testing.T) (*Tracker, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	tracker := NewTracker(store, nil, zerolog.Nop())
	tracker.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return tracker, store
}

func TestSetPresenceUpdatesProfile(t *testing.T) {
	tracker, store := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, domain.CollectionUsers, "u1", domain.NewUserProfile("u1", "alice", "a@example.com")))
	tracker.SetPresence(ctx, "u1", true)

	var p domain.UserProfile
	require.NoError(t, store.Get(ctx, domain.CollectionUsers, "u1", &p))
	assert.True(t, p.IsOnline)
	require.NotNil(t, p.LastSeenAt)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), p.LastSeenAt.UTC())

	tracker.SetPresence(ctx, "u1", false)
	require.NoError(t, store.Get(ctx, domain.CollectionUsers, "u1", &p))
	assert.False(t, p.IsOnline)
}

func TestSetPresenceSwallowsMissingProfile(t *testing.T) {
	tracker, _ := newTestTracker(t)

	// Must not panic or surface the write failure.
	tracker.SetPresence(context.Background(), "ghost", true)
}

func TestOnlineNowWithoutHeartbeatBackend(t *testing.T) {
	tracker, _ := newTestTracker(t)
	assert.False(t, tracker.OnlineNow(context.Background(), "u1"))
}

func recvProfile(t *testing.T, ch <-chan *domain.UserProfile) *domain.UserProfile {
	t.Helper()
	select {
	case p, ok := <-ch:
		require.True(t, ok, "subscription channel closed unexpectedly")
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for profile delivery")
		return nil
	}
}

func TestWatchDeliversProfileChanges(t *testing.T) {
	tracker, store := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, domain.CollectionUsers, "u1", domain.NewUserProfile("u1", "alice", "a@example.com")))

	sub, err := tracker.Watch(ctx, "u1")
	require.NoError(t, err)
	defer sub.Cancel()

	first := recvProfile(t, sub.C)
	require.NotNil(t, first)
	assert.False(t, first.IsOnline)

	tracker.SetPresence(ctx, "u1", true)
	next := recvProfile(t, sub.C)
	require.NotNil(t, next)
	assert.True(t, next.IsOnline)

	require.NoError(t, store.Delete(ctx, domain.CollectionUsers, "u1"))
	assert.Nil(t, recvProfile(t, sub.C), "deletion is observed as a nil profile")
}

func TestWatchCancelStopsDelivery(t *testing.T) {
	tracker, store := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, domain.CollectionUsers, "u1", domain.NewUserProfile("u1", "alice", "a@example.com")))

	sub, err := tracker.Watch(ctx, "u1")
	require.NoError(t, err)
	recvProfile(t, sub.C)

	sub.Cancel()
	tracker.SetPresence(ctx, "u1", true)

	select {
	case _, open := <-sub.C:
		assert.False(t, open, "no delivery after cancel")
	case <-time.After(100 * time.Millisecond):
		// Channel may close asynchronously; silence is also acceptable.
	}
}
