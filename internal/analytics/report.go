package analytics

import (
	"time"

	"example.com/devledger/internal/domain"
)

// recommendationRule pairs a condition with its suggestion text. Rules are
// independent, evaluated unconditionally, and emitted in declaration order.
type recommendationRule struct {
	applies func(domain.WeeklyReport) bool
	text    string
}

var recommendationRules = []recommendationRule{
	{
		applies: func(r domain.WeeklyReport) bool { return r.Summary.ProductivityScore < 5 },
		text:    "Productivity score is below 5; consider setting smaller, more achievable goals.",
	},
	{
		applies: func(r domain.WeeklyReport) bool { return r.StreakDays < 3 },
		text:    "Activity streak is under 3 days; aim for at least one contribution every day.",
	},
	{
		applies: func(r domain.WeeklyReport) bool { return r.Trend == domain.TrendDown },
		text:    "Activity is trending down; review your priorities for the coming week.",
	},
}

// StartOfWeek returns the UTC Monday midnight of the week containing t.
func StartOfWeek(t time.Time) time.Time {
	t = t.UTC()
	daysBack := int(t.Weekday()) - 1
	if daysBack < 0 {
		daysBack = 6
	}
	monday := t.AddDate(0, 0, -daysBack)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// ComposeWeeklyReport merges the week summary, productivity metrics, streak,
// trend, and journal entries into a report. Achievements and challenges are
// the order-preserving union of journal lists with duplicates removed, not
// ranked.
func ComposeWeeklyReport(userID string, summary domain.ActivitySummary, metrics domain.ProductivityMetrics, streak domain.StreakState, trend domain.TrendDirection, entries []domain.JournalEntry, now time.Time) domain.WeeklyReport {
	report := domain.WeeklyReport{
		UserID:      userID,
		WeekStart:   summary.Start,
		WeekEnd:     summary.End,
		Summary:     summary,
		Metrics:     metrics,
		StreakDays:  streak.CurrentStreakDays,
		Trend:       trend,
		GeneratedAt: now,
	}

	for _, entry := range entries {
		report.Achievements = appendUnique(report.Achievements, entry.Achievements)
		report.Challenges = appendUnique(report.Challenges, entry.Challenges)
	}

	for _, rule := range recommendationRules {
		if rule.applies(report) {
			report.Recommendations = append(report.Recommendations, rule.text)
		}
	}

	return report
}

func appendUnique(dst []string, items []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range items {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}
