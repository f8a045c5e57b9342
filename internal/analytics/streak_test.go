package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/devledger/internal/domain"
)

func activityOn(day time.Time) domain.Activity {
	return domain.Activity{UserID: "user-1", CreatedAt: day}
}

func TestStreakConsecutiveDays(t *testing.T) {
	d := time.Date(2024, time.March, 10, 15, 30, 0, 0, time.UTC)
	activities := []domain.Activity{
		activityOn(d),
		activityOn(d.AddDate(0, 0, -1)),
		activityOn(d.AddDate(0, 0, -2)),
		// gap at d-3
		activityOn(d.AddDate(0, 0, -5)),
	}

	state := ComputeStreak("user-1", activities)
	require.Equal(t, 3, state.CurrentStreakDays)
	require.Equal(t, d.Truncate(24*time.Hour), state.LastQualifyingDay)
}

func TestStreakBrokenByGap(t *testing.T) {
	d := time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC)
	activities := []domain.Activity{
		activityOn(d),
		activityOn(d.AddDate(0, 0, -2)),
	}

	state := ComputeStreak("user-1", activities)
	require.Equal(t, 1, state.CurrentStreakDays)
}

func TestStreakSingleDay(t *testing.T) {
	d := time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC)
	state := ComputeStreak("user-1", []domain.Activity{activityOn(d), activityOn(d.Add(time.Hour))})
	require.Equal(t, 1, state.CurrentStreakDays)
}

func TestStreakNoActivities(t *testing.T) {
	state := ComputeStreak("user-1", nil)
	require.Equal(t, 0, state.CurrentStreakDays)
	require.True(t, state.LastQualifyingDay.IsZero())
}

func TestStreakAnchoredAtLastActiveDayNotToday(t *testing.T) {
	yesterday := time.Date(2024, time.March, 9, 12, 0, 0, 0, time.UTC)
	activities := []domain.Activity{
		activityOn(yesterday),
		activityOn(yesterday.AddDate(0, 0, -1)),
	}

	state := ComputeStreak("user-1", activities)
	require.Equal(t, 2, state.CurrentStreakDays)

	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	require.True(t, state.Alive(now))
	require.False(t, state.Alive(now.AddDate(0, 0, 2)))
}

func TestStreakOrderIndependent(t *testing.T) {
	d := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	forward := []domain.Activity{
		activityOn(d.AddDate(0, 0, -2)),
		activityOn(d.AddDate(0, 0, -1)),
		activityOn(d),
	}
	backward := []domain.Activity{forward[2], forward[0], forward[1]}

	require.Equal(t, ComputeStreak("user-1", forward), ComputeStreak("user-1", backward))
}
