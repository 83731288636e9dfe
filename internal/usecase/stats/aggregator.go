// Package stats keeps per-conversation aggregates current without ever
// rescanning message history.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/duetapp/duet-sync/internal/config"
	"github.com/duetapp/duet-sync/internal/docstore"
	"github.com/duetapp/duet-sync/internal/domain"
	"github.com/duetapp/duet-sync/pkg/apperr"
)

var (
	defaultMessageMilestones = []int{20, 50, 100, 250, 500}
	defaultStreakMilestones  = []int{3, 7, 14}
)

type Aggregator struct {
	store             docstore.Store
	messageMilestones []int
	streakMilestones  []int
	log               zerolog.Logger
	now               func() time.Time
}

func NewAggregator(store docstore.Store, cfg config.StatsConfig, log zerolog.Logger) *Aggregator {
	messageMilestones := cfg.MessageMilestones
	if len(messageMilestones) == 0 {
		messageMilestones = defaultMessageMilestones
	}
	streakMilestones := cfg.StreakMilestones
	if len(streakMilestones) == 0 {
		streakMilestones = defaultStreakMilestones
	}
	return &Aggregator{
		store:             store,
		messageMilestones: messageMilestones,
		streakMilestones:  streakMilestones,
		log:               log,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// OnMessageSent advances the conversation's aggregate by one message:
// count, consecutive-day streak and any newly crossed milestones. A
// strict read-modify-write over the stats document only.
func (a *Aggregator) OnMessageSent(ctx context.Context, chatID string) (*domain.ConversationStats, error) {
	var s domain.ConversationStats
	err := a.store.Get(ctx, domain.CollectionChatStats, chatID, &s)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}
	s.ChatID = chatID

	now := a.now()
	today := calendarDay(now)
	last := calendarDay(s.LastMessageDate)

	s.MessagesCount++
	switch {
	case s.LastMessageDate.IsZero():
		s.ConsecutiveDays = 1
	case today.Equal(last):
		// Same-day repeat, streak unchanged.
	case today.Equal(last.AddDate(0, 0, 1)):
		s.ConsecutiveDays++
	default:
		s.ConsecutiveDays = 1
	}
	s.LastMessageDate = now

	for _, threshold := range a.messageMilestones {
		if s.MessagesCount >= threshold {
			s.AddMilestone(fmt.Sprintf("messages_%d", threshold))
		}
	}
	for _, threshold := range a.streakMilestones {
		if s.ConsecutiveDays >= threshold {
			s.AddMilestone(fmt.Sprintf("streak_%d", threshold))
		}
	}

	if err := a.store.Set(ctx, domain.CollectionChatStats, chatID, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Get returns the current aggregate for a conversation.
func (a *Aggregator) Get(ctx context.Context, chatID string) (*domain.ConversationStats, error) {
	var s domain.ConversationStats
	if err := a.store.Get(ctx, domain.CollectionChatStats, chatID, &s); err != nil {
		if apperr.IsNotFound(err) {
			return nil, domain.ErrStatsNotFound
		}
		return nil, err
	}
	return &s, nil
}

// calendarDay truncates to the UTC calendar date.
func calendarDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
