// Package identity turns authenticated principals into resolved profiles
// and keeps the reserved administrative identity self-consistent.
package identity

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/duetapp/duet-sync/internal/config"
	"github.com/duetapp/duet-sync/internal/docstore"
	"github.com/duetapp/duet-sync/internal/domain"
	"github.com/duetapp/duet-sync/pkg/apperr"
)

// PresenceWriter is the advisory presence side effect triggered on every
// successful resolution.
type PresenceWriter interface {
	SetPresence(ctx context.Context, userID string, online bool)
}

type Resolver struct {
	store     docstore.Store
	presence  PresenceWriter
	admin     config.AdminConfig
	jwtSecret string
	log       zerolog.Logger
}

func NewResolver(
	store docstore.Store,
	presence PresenceWriter,
	admin config.AdminConfig,
	jwtSecret string,
	log zerolog.Logger,
) *Resolver {
	return &Resolver{
		store:     store,
		presence:  presence,
		admin:     admin,
		jwtSecret: jwtSecret,
		log:       log,
	}
}

// Resolve maps an authenticated principal to its profile.
//
// A principal whose email matches the injected reserved identity is always
// returned privileged, regardless of what the store holds; a disagreeing
// or missing stored document is repaired in the background. Repair and
// presence failures never block or fail resolution. A missing profile for
// a non-reserved principal is NOT_FOUND, distinguishable from transient
// store failures (UNAVAILABLE).
func (r *Resolver) Resolve(ctx context.Context, principalID, principalEmail string) (*domain.UserProfile, error) {
	reserved := r.admin.Email != "" && strings.EqualFold(principalEmail, r.admin.Email)

	var profile domain.UserProfile
	err := r.store.Get(ctx, domain.CollectionUsers, principalID, &profile)

	switch {
	case err == nil:
		if reserved && !profile.IsPrivileged {
			profile.IsPrivileged = true
			profile.NormalizeRole()
			// The goroutine gets its own copy; the caller owns profile
			// and may mutate it after Resolve returns.
			snapshot := profile
			go r.repairAdmin(principalID, &snapshot)
		} else {
			// The role string must agree with the privilege flag on read.
			profile.NormalizeRole()
		}
	case apperr.IsNotFound(err):
		if !reserved {
			return nil, domain.ErrProfileNotFound
		}
		admin := r.adminProfile(principalID, principalEmail)
		profile = *admin
		go r.repairAdmin(principalID, admin)
	default:
		return nil, err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r.presence.SetPresence(ctx, principalID, true)
	}()

	return &profile, nil
}

func (r *Resolver) adminProfile(principalID, email string) *domain.UserProfile {
	username := r.admin.Username
	if username == "" {
		username = "admin"
	}
	profile := domain.NewUserProfile(principalID, username, email)
	profile.IsPrivileged = true
	profile.NormalizeRole()
	return profile
}

// repairAdmin converges the stored document on the privileged state.
// Privilege resolution must not block on a write, so this runs in the
// background and swallows failures.
func (r *Resolver) repairAdmin(principalID string, profile *domain.UserProfile) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := r.store.Update(ctx, domain.CollectionUsers, principalID, map[string]any{
		"is_privileged": true,
		"role":          domain.RoleAdmin,
	})
	if apperr.IsNotFound(err) {
		err = r.store.Set(ctx, domain.CollectionUsers, principalID, profile)
	}
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", principalID).Msg("admin profile repair failed")
	}
}

// PrincipalFromToken extracts the principal id and email from a bearer
// token at the core's inbound edge. Anything beyond claim extraction is
// the auth layer's business.
func (r *Resolver) PrincipalFromToken(tokenString string) (principalID, email string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return []byte(r.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", "", domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", domain.ErrInvalidToken
	}

	principalID, _ = claims["sub"].(string)
	email, _ = claims["email"].(string)
	if principalID == "" {
		return "", "", domain.ErrInvalidToken
	}
	return principalID, email, nil
}
