package identity

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duetapp/duet-sync/internal/config"
	"github.com/duetapp/duet-sync/internal/docstore"
	"github.com/duetapp/duet-sync/internal/domain"
	"github.com/duetapp/duet-sync/pkg/apperr"
)

type presenceStub struct {
	calls atomic.Int32
}

func (p *presenceStub) SetPresence(_ context.Context, _ string, _ bool) {
	p.calls.Add(1)
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestResolver(t *testing.T) (*Resolver, *docstore.MemoryStore, *presenceStub) {
	t.Helper()
	store := docstore.NewMemoryStore()
	presence := &presenceStub{}
	admin := config.AdminConfig{Email: "admin@duet.app", Username: "root"}
	return NewResolver(store, presence, admin, testSecret, zerolog.Nop()), store, presence
}

func TestResolveExistingProfile(t *testing.T) {
	r, store, presence := newTestResolver(t)
	ctx := context.Background()

	stored := domain.NewUserProfile("u1", "alice", "alice@example.com")
	require.NoError(t, store.Set(ctx, domain.CollectionUsers, "u1", stored))

	got, err := r.Resolve(ctx, "u1", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.False(t, got.IsPrivileged)

	require.Eventually(t, func() bool {
		return presence.calls.Load() > 0
	}, time.Second, 10*time.Millisecond, "resolution triggers the presence side effect")
}

func TestResolveMissingProfile(t *testing.T) {
	r, _, _ := newTestResolver(t)

	_, err := r.Resolve(context.Background(), "ghost", "ghost@example.com")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestResolveReservedIdentityWithoutDocument(t *testing.T) {
	r, store, _ := newTestResolver(t)
	ctx := context.Background()

	got, err := r.Resolve(ctx, "admin-1", "Admin@Duet.App")
	require.NoError(t, err)
	assert.True(t, got.IsPrivileged, "reserved identity is privileged even before any document exists")
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.Equal(t, "root", got.Username)

	// The backing document converges in the background.
	require.Eventually(t, func() bool {
		var p domain.UserProfile
		if err := store.Get(ctx, domain.CollectionUsers, "admin-1", &p); err != nil {
			return false
		}
		return p.IsPrivileged
	}, time.Second, 10*time.Millisecond)
}

func TestResolveReservedIdentityRepairsDemotedDocument(t *testing.T) {
	r, store, _ := newTestResolver(t)
	ctx := context.Background()

	demoted := domain.NewUserProfile("admin-1", "root", "admin@duet.app")
	require.NoError(t, store.Set(ctx, domain.CollectionUsers, "admin-1", demoted))

	got, err := r.Resolve(ctx, "admin-1", "admin@duet.app")
	require.NoError(t, err)
	assert.True(t, got.IsPrivileged)
	assert.Equal(t, domain.RoleAdmin, got.Role)

	require.Eventually(t, func() bool {
		var p domain.UserProfile
		if err := store.Get(ctx, domain.CollectionUsers, "admin-1", &p); err != nil {
			return false
		}
		return p.IsPrivileged && p.Role == domain.RoleAdmin
	}, time.Second, 10*time.Millisecond)
}

// vanishingDocStore reports every field update as targeting a missing
// document, forcing the repair path onto its full-document fallback.
type vanishingDocStore struct {
	*docstore.MemoryStore
}

func (s *vanishingDocStore) Update(_ context.Context, collection, id string, _ map[string]any) error {
	return apperr.NotFound(fmt.Sprintf("document %s/%s not found", collection, id))
}

func TestRepairWritesDetachedCopy(t *testing.T) {
	store := &vanishingDocStore{MemoryStore: docstore.NewMemoryStore()}
	presence := &presenceStub{}
	admin := config.AdminConfig{Email: "admin@duet.app", Username: "root"}
	r := NewResolver(store, presence, admin, testSecret, zerolog.Nop())
	ctx := context.Background()

	demoted := domain.NewUserProfile("admin-1", "root", "admin@duet.app")
	require.NoError(t, store.Set(ctx, domain.CollectionUsers, "admin-1", demoted))

	got, err := r.Resolve(ctx, "admin-1", "admin@duet.app")
	require.NoError(t, err)

	// The caller owns the returned profile; mutating it must not bleed
	// into the document the background repair writes.
	got.Username = "not-root"
	got.IsPrivileged = false

	require.Eventually(t, func() bool {
		var p domain.UserProfile
		if err := store.Get(ctx, domain.CollectionUsers, "admin-1", &p); err != nil {
			return false
		}
		return p.IsPrivileged && p.Role == domain.RoleAdmin && p.Username == "root"
	}, time.Second, 10*time.Millisecond)
}

func TestResolveNormalizesStaleRole(t *testing.T) {
	r, store, _ := newTestResolver(t)
	ctx := context.Background()

	stale := domain.NewUserProfile("u1", "bob", "bob@example.com")
	stale.Role = domain.RoleAdmin
	require.NoError(t, store.Set(ctx, domain.CollectionUsers, "u1", stale))

	got, err := r.Resolve(ctx, "u1", "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, got.Role, "role string without the privilege flag is demoted on read")
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestPrincipalFromToken(t *testing.T) {
	r, _, _ := newTestResolver(t)

	signed := signToken(t, testSecret, jwt.MapClaims{"sub": "u1", "email": "alice@example.com"})
	id, email, err := r.PrincipalFromToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
	assert.Equal(t, "alice@example.com", email)
}

func TestPrincipalFromTokenRejectsBadInput(t *testing.T) {
	r, _, _ := newTestResolver(t)

	_, _, err := r.PrincipalFromToken("not-a-token")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	wrongKey := signToken(t, "another-secret-another-secret-xx", jwt.MapClaims{"sub": "u1"})
	_, _, err = r.PrincipalFromToken(wrongKey)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	noSubject := signToken(t, testSecret, jwt.MapClaims{"email": "x@example.com"})
	_, _, err = r.PrincipalFromToken(noSubject)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
