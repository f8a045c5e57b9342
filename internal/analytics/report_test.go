package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/devledger/internal/domain"
)

func TestStartOfWeek(t *testing.T) {
	// 2024-03-10 is a Sunday; its week starts on Monday 2024-03-04.
	sunday := time.Date(2024, time.March, 10, 18, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), StartOfWeek(sunday))

	monday := time.Date(2024, time.March, 4, 0, 30, 0, 0, time.UTC)
	require.Equal(t, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), StartOfWeek(monday))
}

func TestComposeWeeklyReportDeduplicatesJournalLists(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	entries := []domain.JournalEntry{
		{Achievements: []string{"shipped v2", "fixed CI"}, Challenges: []string{"flaky tests"}},
		{Achievements: []string{"fixed CI", "wrote docs"}, Challenges: []string{"flaky tests", "scope creep"}},
	}

	report := ComposeWeeklyReport("user-1", domain.ActivitySummary{ProductivityScore: 8}, domain.ProductivityMetrics{}, domain.StreakState{CurrentStreakDays: 5}, domain.TrendStable, entries, now)

	require.Equal(t, []string{"shipped v2", "fixed CI", "wrote docs"}, report.Achievements)
	require.Equal(t, []string{"flaky tests", "scope creep"}, report.Challenges)
	require.Empty(t, report.Recommendations)
}

func TestComposeWeeklyReportAllRulesCanFire(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	report := ComposeWeeklyReport("user-1", domain.ActivitySummary{ProductivityScore: 2}, domain.ProductivityMetrics{}, domain.StreakState{CurrentStreakDays: 1}, domain.TrendDown, nil, now)

	require.Len(t, report.Recommendations, 3)
	// declaration order: score rule, streak rule, trend rule
	require.Contains(t, report.Recommendations[0], "below 5")
	require.Contains(t, report.Recommendations[1], "streak")
	require.Contains(t, report.Recommendations[2], "trending down")
}

func TestComposeWeeklyReportRulesAreIndependent(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	report := ComposeWeeklyReport("user-1", domain.ActivitySummary{ProductivityScore: 9}, domain.ProductivityMetrics{}, domain.StreakState{CurrentStreakDays: 1}, domain.TrendUp, nil, now)

	require.Len(t, report.Recommendations, 1)
	require.Contains(t, report.Recommendations[0], "streak")
}
