package profile

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duetapp/duet-sync/internal/docstore"
	"github.com/duetapp/duet-sync/internal/domain"
	"github.com/duetapp/duet-sync/internal/usecase/access"
	"github.com/duetapp/duet-sync/pkg/apperr"
)

type uploaderStub struct {
	fail bool
}

func (u *uploaderStub) Upload(_ context.Context, ownerScope string, _ []byte) (string, error) {
	if u.fail {
		return "", apperr.Unavailable("object storage unreachable", nil)
	}
	return "https://cdn.example/" + ownerScope + "/photo.jpg", nil
}

func newTestUseCase(t *testing.T) (*ProfileUseCase, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	uc := NewProfileUseCase(store, &uploaderStub{}, access.NewPolicy(), zerolog.Nop())
	uc.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return uc, store
}

func createUser(t *testing.T, uc *ProfileUseCase, id string) *domain.UserProfile {
	t.Helper()
	p, err := uc.CreateProfile(context.Background(), &CreateProfileRequest{
		ID: id, Username: id, Email: id + "@example.com",
	})
	require.NoError(t, err)
	return p
}

func TestCreateProfile(t *testing.T) {
	uc, _ := newTestUseCase(t)

	p := createUser(t, uc, "alice")
	assert.Equal(t, domain.RoleUser, p.Role)
	assert.True(t, p.ReadReceiptsEnabled)
	assert.True(t, p.ShowOnlineStatus)
	assert.False(t, p.AppearOffline)

	_, err := uc.CreateProfile(context.Background(), &CreateProfileRequest{
		ID: "alice", Username: "alice2", Email: "alice2@example.com",
	})
	assert.ErrorIs(t, err, domain.ErrProfileAlreadyExists)
}

func TestCreateProfileValidation(t *testing.T) {
	uc, _ := newTestUseCase(t)

	_, err := uc.CreateProfile(context.Background(), &CreateProfileRequest{
		ID: "u1", Username: "x", Email: "not-an-email",
	})
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

func TestUpdateProfilePartial(t *testing.T) {
	uc, _ := newTestUseCase(t)
	createUser(t, uc, "alice")
	ctx := context.Background()

	bio := "Trail runner and amateur chef."
	tag := "INFJ"
	updated, err := uc.UpdateProfile(ctx, "alice", &UpdateProfileRequest{
		Bio:            &bio,
		PersonalityTag: &tag,
	})
	require.NoError(t, err)
	assert.Equal(t, bio, updated.Bio)
	assert.Equal(t, "INFJ", updated.PersonalityTag)
	assert.Equal(t, "alice", updated.Username, "untouched fields survive a partial update")

	hidden := false
	updated, err = uc.UpdateProfile(ctx, "alice", &UpdateProfileRequest{VisibleToOthers: &hidden})
	require.NoError(t, err)
	assert.False(t, updated.Visible())
	assert.Equal(t, bio, updated.Bio)
}

func TestUpdateProfileMissing(t *testing.T) {
	uc, _ := newTestUseCase(t)

	name := "ghost"
	_, err := uc.UpdateProfile(context.Background(), "ghost", &UpdateProfileRequest{Username: &name})
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestAdminUpdateRequiresPrivilege(t *testing.T) {
	uc, _ := newTestUseCase(t)
	createUser(t, uc, "alice")

	regular := domain.NewUserProfile("bob", "bob", "b@example.com")
	name := "renamed"
	_, err := uc.AdminUpdateProfile(context.Background(), regular, "alice", &UpdateProfileRequest{Username: &name})
	assert.ErrorIs(t, err, domain.ErrAdminOnly)

	admin := domain.NewUserProfile("root", "root", "root@example.com")
	admin.IsPrivileged = true
	updated, err := uc.AdminUpdateProfile(context.Background(), admin, "alice", &UpdateProfileRequest{Username: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Username)
}

func TestAddPhoto(t *testing.T) {
	uc, _ := newTestUseCase(t)
	createUser(t, uc, "alice")
	ctx := context.Background()

	updated, err := uc.AddPhoto(ctx, "alice", []byte{0xFF})
	require.NoError(t, err)
	require.Len(t, updated.Photos, 1)
	assert.Equal(t, "https://cdn.example/users/alice/photo.jpg", updated.Photos[0])

	for i := 1; i < domain.MaxPhotos; i++ {
		_, err = uc.AddPhoto(ctx, "alice", []byte{0xFF})
		require.NoError(t, err)
	}

	_, err = uc.AddPhoto(ctx, "alice", []byte{0xFF})
	assert.ErrorIs(t, err, domain.ErrTooManyPhotos)
}

func TestRecordProfileView(t *testing.T) {
	uc, _ := newTestUseCase(t)
	createUser(t, uc, "alice")
	ctx := context.Background()

	uc.RecordProfileView(ctx, "alice", "bob")
	uc.RecordProfileView(ctx, "alice", "bob")
	uc.RecordProfileView(ctx, "alice", "alice")
	uc.RecordProfileView(ctx, "ghost", "bob")

	p, err := uc.GetProfile(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, p.ProfileViews, 1, "self views and repeats do not add entries")
	assert.Equal(t, "bob", p.ProfileViews[0].ViewerID)
}

func TestDeleteProfile(t *testing.T) {
	uc, _ := newTestUseCase(t)
	createUser(t, uc, "alice")
	ctx := context.Background()

	regular := domain.NewUserProfile("bob", "bob", "b@example.com")
	assert.ErrorIs(t, uc.DeleteProfile(ctx, regular, "alice"), domain.ErrAdminOnly)

	admin := domain.NewUserProfile("root", "root", "root@example.com")
	admin.IsPrivileged = true
	require.NoError(t, uc.DeleteProfile(ctx, admin, "alice"))

	_, err := uc.GetProfile(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)

	assert.ErrorIs(t, uc.DeleteProfile(ctx, admin, "alice"), domain.ErrProfileNotFound)
}

func TestListVisible(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	createUser(t, uc, "alice")
	createUser(t, uc, "bob")
	hidden := createUser(t, uc, "carol")
	off := false
	_, err := uc.UpdateProfile(ctx, hidden.ID, &UpdateProfileRequest{VisibleToOthers: &off})
	require.NoError(t, err)

	viewer, err := uc.GetProfile(ctx, "alice")
	require.NoError(t, err)

	visible, err := uc.ListVisible(ctx, viewer)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "bob", visible[0].ID)
}
