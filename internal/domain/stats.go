package domain

import "time"

// ConversationStats is the precomputed per-conversation aggregate. It is
// the only state the aggregator needs: message history is never rescanned.
type ConversationStats struct {
	ChatID          string    `json:"chat_id"`
	MessagesCount   int       `json:"messages_count"`
	ConsecutiveDays int       `json:"consecutive_days"`
	LastMessageDate time.Time `json:"last_message_date"`
	Milestones      []string  `json:"milestones"`
}

func (s *ConversationStats) HasMilestone(id string) bool {
	for _, m := range s.Milestones {
		if m == id {
			return true
		}
	}
	return false
}

// AddMilestone appends id if absent. Milestones are append-only.
func (s *ConversationStats) AddMilestone(id string) {
	if !s.HasMilestone(id) {
		s.Milestones = append(s.Milestones, id)
	}
}
