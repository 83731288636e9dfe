package stats

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duetapp/duet-sync/internal/config"
	"github.com/duetapp/duet-sync/internal/docstore"
	"github.com/duetapp/duet-sync/internal/domain"
)

func newTestAggregator(t *testing.T) (*Aggregator, *time.Time) {
	t.Helper()
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := NewAggregator(docstore.NewMemoryStore(), config.StatsConfig{}, zerolog.Nop())
	a.now = func() time.Time { return current }
	return a, &current
}

func TestFirstMessageStartsStreak(t *testing.T) {
	a, _ := newTestAggregator(t)

	s, err := a.OnMessageSent(context.Background(), "a_b")
	require.NoError(t, err)
	assert.Equal(t, 1, s.MessagesCount)
	assert.Equal(t, 1, s.ConsecutiveDays)
	assert.Empty(t, s.Milestones)
}

func TestSameDayMessagesKeepStreak(t *testing.T) {
	a, current := newTestAggregator(t)
	ctx := context.Background()

	_, err := a.OnMessageSent(ctx, "a_b")
	require.NoError(t, err)

	*current = current.Add(5 * time.Hour)
	s, err := a.OnMessageSent(ctx, "a_b")
	require.NoError(t, err)
	assert.Equal(t, 2, s.MessagesCount)
	assert.Equal(t, 1, s.ConsecutiveDays)
}

func TestConsecutiveDaysExtendStreak(t *testing.T) {
	a, current := newTestAggregator(t)
	ctx := context.Background()

	start := *current
	for day := 0; day < 3; day++ {
		*current = start.AddDate(0, 0, day)
		_, err := a.OnMessageSent(ctx, "a_b")
		require.NoError(t, err)
	}

	s, err := a.Get(ctx, "a_b")
	require.NoError(t, err)
	assert.Equal(t, 3, s.ConsecutiveDays)
	assert.Contains(t, s.Milestones, "streak_3")
}

func TestGapResetsStreak(t *testing.T) {
	a, current := newTestAggregator(t)
	ctx := context.Background()

	_, err := a.OnMessageSent(ctx, "a_b")
	require.NoError(t, err)

	*current = current.AddDate(0, 0, 2)
	s, err := a.OnMessageSent(ctx, "a_b")
	require.NoError(t, err)
	assert.Equal(t, 1, s.ConsecutiveDays, "a missed day starts the streak over")
}

func TestMessageMilestonesAppendOnce(t *testing.T) {
	a, _ := newTestAggregator(t)
	ctx := context.Background()

	var s *domain.ConversationStats
	var err error
	for i := 0; i < 21; i++ {
		s, err = a.OnMessageSent(ctx, "a_b")
		require.NoError(t, err)
	}

	assert.Equal(t, 21, s.MessagesCount)
	count := 0
	for _, m := range s.Milestones {
		if m == "messages_20" {
			count++
		}
	}
	assert.Equal(t, 1, count, "crossing a threshold records the milestone exactly once")
}

func TestStreakSurvivesMidnightBoundary(t *testing.T) {
	a, current := newTestAggregator(t)
	ctx := context.Background()

	*current = time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	_, err := a.OnMessageSent(ctx, "a_b")
	require.NoError(t, err)

	*current = time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC)
	s, err := a.OnMessageSent(ctx, "a_b")
	require.NoError(t, err)
	assert.Equal(t, 2, s.ConsecutiveDays, "calendar days, not 24h windows")
}

func TestGetMissingStats(t *testing.T) {
	a, _ := newTestAggregator(t)

	_, err := a.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrStatsNotFound)
}
