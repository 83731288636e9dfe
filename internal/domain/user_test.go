package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisibleDefaultsToTrue(t *testing.T) {
	u := NewUserProfile("u1", "alice", "alice@example.com")
	assert.True(t, u.Visible(), "absent visibility field must read as visible")

	hidden := false
	u.VisibleToOthers = &hidden
	assert.False(t, u.Visible())

	shown := true
	u.VisibleToOthers = &shown
	assert.True(t, u.Visible())
}

func TestNormalizeRole(t *testing.T) {
	u := NewUserProfile("u1", "alice", "alice@example.com")

	u.IsPrivileged = true
	u.NormalizeRole()
	assert.Equal(t, RoleAdmin, u.Role)

	u.IsPrivileged = false
	u.NormalizeRole()
	assert.Equal(t, RoleUser, u.Role, "role string must follow the flag, not the other way around")
}

func TestRecordViewDeduplicatesViewer(t *testing.T) {
	u := NewUserProfile("u1", "alice", "alice@example.com")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	u.RecordView("v1", base)
	u.RecordView("v2", base.Add(time.Minute))
	u.RecordView("v1", base.Add(2*time.Minute))

	require.Len(t, u.ProfileViews, 2)
	assert.Equal(t, "v2", u.ProfileViews[0].ViewerID)
	assert.Equal(t, "v1", u.ProfileViews[1].ViewerID)
	assert.Equal(t, base.Add(2*time.Minute), u.ProfileViews[1].ViewedAt, "repeat view keeps the newest timestamp")
}

func TestRecordViewDropsOldestPastCap(t *testing.T) {
	u := NewUserProfile("u1", "alice", "alice@example.com")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < MaxProfileViews+10; i++ {
		u.RecordView(fmt.Sprintf("viewer-%d", i), base.Add(time.Duration(i)*time.Second))
	}

	require.Len(t, u.ProfileViews, MaxProfileViews)
	assert.Equal(t, "viewer-10", u.ProfileViews[0].ViewerID)
	assert.Equal(t, fmt.Sprintf("viewer-%d", MaxProfileViews+9), u.ProfileViews[len(u.ProfileViews)-1].ViewerID)
}

func TestPublicPresence(t *testing.T) {
	lastSeen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	u := NewUserProfile("u1", "alice", "alice@example.com")
	u.IsOnline = true
	u.LastSeenAt = &lastSeen

	online, seen := u.PublicPresence()
	assert.True(t, online)
	require.NotNil(t, seen)
	assert.Equal(t, lastSeen, *seen)

	u.AppearOffline = true
	online, seen = u.PublicPresence()
	assert.False(t, online, "appear-offline hides liveness even while online")
	assert.Nil(t, seen)

	u.AppearOffline = false
	u.ShowOnlineStatus = false
	online, _ = u.PublicPresence()
	assert.False(t, online)

	u.ShowLastSeen = false
	_, seen = u.PublicPresence()
	assert.Nil(t, seen)
}

func TestPersonalityGroup(t *testing.T) {
	u := NewUserProfile("u1", "alice", "alice@example.com")

	u.PersonalityTag = "INTJ"
	assert.Equal(t, "Analysts", u.PersonalityGroup())

	u.PersonalityTag = "ENFP"
	assert.Equal(t, "Diplomats", u.PersonalityGroup())

	u.PersonalityTag = "XXXX"
	assert.Empty(t, u.PersonalityGroup(), "unknown codes never match any group")

	u.PersonalityTag = ""
	assert.Empty(t, u.PersonalityGroup())
}
