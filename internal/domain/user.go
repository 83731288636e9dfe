package domain

import "time"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// DefaultVisibleToOthers is the read-boundary default for profiles that
// predate the visibility toggle: an absent field means visible. Keep this
// a named constant — an implicit falsy check inverts the default silently.
const DefaultVisibleToOthers = true

// MaxPhotos is the per-profile photo cap.
const MaxPhotos = 5

// MaxProfileViews bounds the profile-view ring buffer.
const MaxProfileViews = 100

// ProfileView records one viewer's most recent visit.
type ProfileView struct {
	ViewerID string    `json:"viewer_id"`
	ViewedAt time.Time `json:"viewed_at"`
}

type UserProfile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	BirthDate      time.Time `json:"birth_date"`
	Gender         Gender    `json:"gender"`
	PersonalityTag string    `json:"personality_tag"`
	Bio            string    `json:"bio"`

	IsPrivileged    bool  `json:"is_privileged"`
	Role            string `json:"role"`
	VisibleToOthers *bool  `json:"visible_to_others,omitempty"`

	APICallLimit int `json:"api_call_limit"`
	APICallsUsed int `json:"api_calls_used"`

	IsOnline   bool       `json:"is_online"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`

	ReadReceiptsEnabled bool `json:"read_receipts_enabled"`
	ShowOnlineStatus    bool `json:"show_online_status"`
	ShowLastSeen        bool `json:"show_last_seen"`
	AppearOffline       bool `json:"appear_offline"`

	Hobbies  []string `json:"hobbies"`
	RedFlags []string `json:"red_flags"`
	Photos   []string `json:"photos"`

	ProfileViews []ProfileView `json:"profile_views,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserProfile returns a profile with the documented privacy defaults:
// read receipts, online status and last-seen visibility on, appear-offline
// off.
func NewUserProfile(id, username, email string) *UserProfile {
	now := time.Now().UTC()
	return &UserProfile{
		ID:                  id,
		Username:            username,
		Email:               email,
		Role:                RoleUser,
		ReadReceiptsEnabled: true,
		ShowOnlineStatus:    true,
		ShowLastSeen:        true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Age returns the user's age in full years.
func (u *UserProfile) Age() int {
	if u.BirthDate.IsZero() {
		return 0
	}
	now := time.Now()
	age := now.Year() - u.BirthDate.Year()
	if now.YearDay() < u.BirthDate.YearDay() {
		age--
	}
	return age
}

// Visible applies the absent-defaults-to-visible rule. This is the only
// place the default is interpreted.
func (u *UserProfile) Visible() bool {
	if u.VisibleToOthers == nil {
		return DefaultVisibleToOthers
	}
	return *u.VisibleToOthers
}

// NormalizeRole keeps the redundant role string consistent with the
// privilege flag. The flag wins.
func (u *UserProfile) NormalizeRole() {
	if u.IsPrivileged {
		u.Role = RoleAdmin
	} else if u.Role == RoleAdmin {
		u.Role = RoleUser
	}
}

// RecordView upserts a viewer into the profile-view ring buffer: at most
// one entry per viewer, newest wins, oldest entries dropped past the cap.
func (u *UserProfile) RecordView(viewerID string, at time.Time) {
	views := make([]ProfileView, 0, len(u.ProfileViews)+1)
	for _, v := range u.ProfileViews {
		if v.ViewerID != viewerID {
			views = append(views, v)
		}
	}
	views = append(views, ProfileView{ViewerID: viewerID, ViewedAt: at})
	if len(views) > MaxProfileViews {
		views = views[len(views)-MaxProfileViews:]
	}
	u.ProfileViews = views
}

// PublicPresence applies the profile's privacy toggles to its presence
// state: appear-offline and a disabled online indicator hide liveness,
// and last-seen is withheld unless shared.
func (u *UserProfile) PublicPresence() (online bool, lastSeen *time.Time) {
	if !u.AppearOffline && u.ShowOnlineStatus {
		online = u.IsOnline
	}
	if u.ShowLastSeen && !u.AppearOffline {
		lastSeen = u.LastSeenAt
	}
	return online, lastSeen
}

// personalityGroups maps each classification code to its group. Codes
// outside the vocabulary fall into the empty group and never match.
var personalityGroups = map[string]string{
	"INTJ": "Analysts", "INTP": "Analysts", "ENTJ": "Analysts", "ENTP": "Analysts",
	"INFJ": "Diplomats", "INFP": "Diplomats", "ENFJ": "Diplomats", "ENFP": "Diplomats",
	"ISTJ": "Sentinels", "ISFJ": "Sentinels", "ESTJ": "Sentinels", "ESFJ": "Sentinels",
	"ISTP": "Explorers", "ISFP": "Explorers", "ESTP": "Explorers", "ESFP": "Explorers",
}

// PersonalityGroup returns the group of the profile's personality tag,
// or "" when the tag is unset or unknown.
func (u *UserProfile) PersonalityGroup() string {
	return personalityGroups[u.PersonalityTag]
}
