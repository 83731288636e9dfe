package domain

import "time"

// TypingTTL is how long a typing-indicator entry stays live. Stale entries
// are filtered by readers, never swept in the background.
const TypingTTL = 3 * time.Second

type Conversation struct {
	ID           string               `json:"id"`
	Participants []string             `json:"participants"`
	LastMessage  *Message             `json:"last_message,omitempty"`
	TypingUsers  map[string]time.Time `json:"typing_users,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (c *Conversation) OtherParticipant(userID string) (string, bool) {
	for _, p := range c.Participants {
		if p != userID {
			return p, true
		}
	}
	return "", false
}

// ActiveTypers returns the participants whose typing timestamp is within
// TypingTTL of now, excluding the caller.
func (c *Conversation) ActiveTypers(selfID string, now time.Time) []string {
	var typers []string
	for userID, ts := range c.TypingUsers {
		if userID == selfID {
			continue
		}
		if now.Sub(ts) < TypingTTL {
			typers = append(typers, userID)
		}
	}
	return typers
}
