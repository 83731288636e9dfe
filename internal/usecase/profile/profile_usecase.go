// Package profile manages user profile documents: creation, partial
// updates, photo materialization and the advisory profile-view trail.
package profile

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/duetapp/duet-sync/internal/docstore"
	"github.com/duetapp/duet-sync/internal/domain"
	"github.com/duetapp/duet-sync/internal/usecase/access"
	"github.com/duetapp/duet-sync/pkg/apperr"
)

// Uploader materializes photo bytes into reference URLs.
type Uploader interface {
	Upload(ctx context.Context, ownerScope string, data []byte) (string, error)
}

type ProfileUseCase struct {
	store    docstore.Store
	uploader Uploader
	policy   access.Policy
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

func NewProfileUseCase(store docstore.Store, uploader Uploader, policy access.Policy, log zerolog.Logger) *ProfileUseCase {
	return &ProfileUseCase{
		store:    store,
		uploader: uploader,
		policy:   policy,
		validate: validator.New(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateProfileRequest represents profile creation (onboarding).
type CreateProfileRequest struct {
	ID       string `validate:"required"`
	Username string `validate:"required,min=2,max=100"`
	Email    string `validate:"required,email"`
}

// UpdateProfileRequest represents a partial profile update. Nil fields
// are left untouched.
type UpdateProfileRequest struct {
	Username       *string `json:"username" validate:"omitempty,min=2,max=100"`
	Bio            *string `json:"bio" validate:"omitempty,max=500"`
	Gender         *string `json:"gender" validate:"omitempty,oneof=male female other"`
	PersonalityTag *string `json:"personality_tag" validate:"omitempty,max=10"`
	BirthDate      *time.Time `json:"birth_date"`
	Hobbies        *[]string  `json:"hobbies" validate:"omitempty,max=20"`
	RedFlags       *[]string  `json:"red_flags" validate:"omitempty,max=20"`

	VisibleToOthers     *bool `json:"visible_to_others"`
	ReadReceiptsEnabled *bool `json:"read_receipts_enabled"`
	ShowOnlineStatus    *bool `json:"show_online_status"`
	ShowLastSeen        *bool `json:"show_last_seen"`
	AppearOffline       *bool `json:"appear_offline"`
}

// CreateProfile creates the profile document for a new user.
func (uc *ProfileUseCase) CreateProfile(ctx context.Context, req *CreateProfileRequest) (*domain.UserProfile, error) {
	if err := uc.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidArgument, "invalid profile", err)
	}

	profile := domain.NewUserProfile(req.ID, req.Username, req.Email)
	profile.CreatedAt = uc.now()
	err := uc.store.Create(ctx, domain.CollectionUsers, profile.ID, profile)
	if apperr.CodeOf(err) == apperr.CodeAlreadyExists {
		return nil, domain.ErrProfileAlreadyExists
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// GetProfile returns one profile by id.
func (uc *ProfileUseCase) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := uc.store.Get(ctx, domain.CollectionUsers, userID, &profile); err != nil {
		if apperr.IsNotFound(err) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile applies the caller's own partial update.
func (uc *ProfileUseCase) UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*domain.UserProfile, error) {
	return uc.applyUpdate(ctx, userID, req)
}

// AdminUpdateProfile applies a partial update to any profile on behalf of
// a privileged actor.
func (uc *ProfileUseCase) AdminUpdateProfile(ctx context.Context, actor *domain.UserProfile, targetID string, req *UpdateProfileRequest) (*domain.UserProfile, error) {
	if !actor.IsPrivileged {
		return nil, domain.ErrAdminOnly
	}
	return uc.applyUpdate(ctx, targetID, req)
}

func (uc *ProfileUseCase) applyUpdate(ctx context.Context, userID string, req *UpdateProfileRequest) (*domain.UserProfile, error) {
	if err := uc.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidArgument, "invalid profile update", err)
	}

	profile, err := uc.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		profile.Username = *req.Username
	}
	if req.Bio != nil {
		profile.Bio = *req.Bio
	}
	if req.Gender != nil {
		profile.Gender = domain.Gender(*req.Gender)
	}
	if req.PersonalityTag != nil {
		profile.PersonalityTag = *req.PersonalityTag
	}
	if req.BirthDate != nil {
		profile.BirthDate = *req.BirthDate
	}
	if req.Hobbies != nil {
		profile.Hobbies = *req.Hobbies
	}
	if req.RedFlags != nil {
		profile.RedFlags = *req.RedFlags
	}
	if req.VisibleToOthers != nil {
		profile.VisibleToOthers = req.VisibleToOthers
	}
	if req.ReadReceiptsEnabled != nil {
		profile.ReadReceiptsEnabled = *req.ReadReceiptsEnabled
	}
	if req.ShowOnlineStatus != nil {
		profile.ShowOnlineStatus = *req.ShowOnlineStatus
	}
	if req.ShowLastSeen != nil {
		profile.ShowLastSeen = *req.ShowLastSeen
	}
	if req.AppearOffline != nil {
		profile.AppearOffline = *req.AppearOffline
	}
	profile.UpdatedAt = uc.now()

	if err := uc.store.Set(ctx, domain.CollectionUsers, userID, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// AddPhoto uploads the photo bytes and appends the resulting URL to the
// profile's gallery. Only URLs are ever stored on the document.
func (uc *ProfileUseCase) AddPhoto(ctx context.Context, userID string, data []byte) (*domain.UserProfile, error) {
	profile, err := uc.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(profile.Photos) >= domain.MaxPhotos {
		return nil, domain.ErrTooManyPhotos
	}

	url, err := uc.uploader.Upload(ctx, "users/"+userID, data)
	if err != nil {
		return nil, err
	}
	profile.Photos = append(profile.Photos, url)

	if err := uc.store.Update(ctx, domain.CollectionUsers, userID, map[string]any{
		"photos": profile.Photos,
	}); err != nil {
		return nil, err
	}
	return profile, nil
}

// RecordProfileView notes that viewer looked at target's profile. The
// trail is advisory; failures are logged and swallowed.
func (uc *ProfileUseCase) RecordProfileView(ctx context.Context, targetID, viewerID string) {
	if targetID == viewerID {
		return
	}
	target, err := uc.GetProfile(ctx, targetID)
	if err != nil {
		uc.log.Warn().Err(err).Str("user_id", targetID).Msg("profile view read failed")
		return
	}
	target.RecordView(viewerID, uc.now())
	if err := uc.store.Update(ctx, domain.CollectionUsers, targetID, map[string]any{
		"profile_views": target.ProfileViews,
	}); err != nil {
		uc.log.Warn().Err(err).Str("user_id", targetID).Msg("profile view write failed")
	}
}

// DeleteProfile removes a profile document. Privileged actors only; the
// auth account itself is outside this core and stays untouched.
func (uc *ProfileUseCase) DeleteProfile(ctx context.Context, actor *domain.UserProfile, targetID string) error {
	if !actor.IsPrivileged {
		return domain.ErrAdminOnly
	}
	err := uc.store.Delete(ctx, domain.CollectionUsers, targetID)
	if apperr.IsNotFound(err) {
		return domain.ErrProfileNotFound
	}
	return err
}

// ListVisible returns every profile the viewer is allowed to see,
// filtered through the visibility policy.
func (uc *ProfileUseCase) ListVisible(ctx context.Context, viewer *domain.UserProfile) ([]domain.UserProfile, error) {
	docs, err := uc.store.Query(ctx, domain.CollectionUsers, nil)
	if err != nil {
		return nil, err
	}
	profiles := make([]domain.UserProfile, 0, len(docs))
	for _, doc := range docs {
		var p domain.UserProfile
		if err := doc.Decode(&p); err != nil {
			uc.log.Warn().Err(err).Str("user_id", doc.ID).Msg("skipping undecodable profile")
			continue
		}
		profiles = append(profiles, p)
	}
	return uc.policy.FilterUsers(profiles, viewer), nil
}
