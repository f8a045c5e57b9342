// Package analytics derives summaries, streaks, trends, and reports from the
// activity ledger. All computations here are pure and synchronous.
package analytics

import (
	"time"

	"example.com/devledger/internal/domain"
)

// ComputeStreak buckets activities by UTC calendar day of the provider
// timestamp and walks backward from the most recent active day until the
// first gap. The anchor is the most recent day with any activity, not
// necessarily today; whether the streak is still alive is a separate,
// display-only question (StreakState.Alive).
func ComputeStreak(userID string, activities []domain.Activity) domain.StreakState {
	state := domain.StreakState{UserID: userID}
	if len(activities) == 0 {
		return state
	}

	days := make(map[time.Time]struct{}, len(activities))
	var latest time.Time
	for _, a := range activities {
		day := a.CreatedAt.UTC().Truncate(24 * time.Hour)
		days[day] = struct{}{}
		if day.After(latest) {
			latest = day
		}
	}

	streak := 0
	for day := latest; ; day = day.AddDate(0, 0, -1) {
		if _, ok := days[day]; !ok {
			break
		}
		streak++
	}

	state.CurrentStreakDays = streak
	state.LastQualifyingDay = latest
	return state
}
