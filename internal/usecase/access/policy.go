// Package access holds the single visibility policy consulted both when
// narrowing queries and as the defensive post-filter on bulk reads.
package access

import "github.com/duetapp/duet-sync/internal/domain"

type Policy struct{}

func NewPolicy() Policy {
	return Policy{}
}

// FilterUsers returns the subset of allUsers the caller may see.
// Privileged callers see everything. Regular callers never see
// themselves, privileged profiles, or profiles hidden from others;
// a profile with the visibility field unset counts as visible.
func (Policy) FilterUsers(allUsers []domain.UserProfile, caller *domain.UserProfile) []domain.UserProfile {
	if caller.IsPrivileged {
		return allUsers
	}
	visible := make([]domain.UserProfile, 0, len(allUsers))
	for _, u := range allUsers {
		if u.ID == caller.ID || u.IsPrivileged || !u.Visible() {
			continue
		}
		visible = append(visible, u)
	}
	return visible
}

// FilterChats keeps only conversations the caller participates in, unless
// the caller is privileged. Applying it to an already-narrowed result is
// a no-op, so it is safe as a second line of defense behind a server-side
// participant filter.
func (Policy) FilterChats(chats []domain.Conversation, caller *domain.UserProfile) []domain.Conversation {
	if caller.IsPrivileged {
		return chats
	}
	visible := make([]domain.Conversation, 0, len(chats))
	for _, c := range chats {
		if c.HasParticipant(caller.ID) {
			visible = append(visible, c)
		}
	}
	return visible
}

// CanViewChat distinguishes "you can't see this" from "this doesn't
// exist" for single-conversation reads.
func (Policy) CanViewChat(chat *domain.Conversation, caller *domain.UserProfile) bool {
	return caller.IsPrivileged || chat.HasParticipant(caller.ID)
}
