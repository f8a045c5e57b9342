package analytics

import (
	"sort"
	"time"

	"example.com/devledger/internal/domain"
	"example.com/devledger/internal/scoring"
)

// topN is the truncation length for top-repository and top-language lists.
const topN = 5

// weekdaysMondayFirst fixes the tie-break ordering for the most-active
// weekday so the result is deterministic.
var weekdaysMondayFirst = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// Summarize aggregates activities over the half-open window [start, end).
// An activity stamped exactly at end is excluded; one at start is included.
// Activities without a language tag are left out of the language breakdown
// rather than bucketed into an "unknown" group.
func Summarize(userID string, activities []domain.Activity, start, end time.Time) domain.ActivitySummary {
	summary := domain.ActivitySummary{
		UserID:                 userID,
		Start:                  start,
		End:                    end,
		ActivitiesByType:       make(map[domain.ActivityType]int),
		ActivitiesByRepository: make(map[string]int),
		TopRepositories:        []domain.GroupCount{},
		TopLanguages:           []domain.GroupCount{},
	}

	byLanguage := make(map[string]int)
	byWeekday := make(map[time.Weekday]int)
	inWindow := make([]domain.Activity, 0, len(activities))

	for _, a := range activities {
		if a.CreatedAt.Before(start) || !a.CreatedAt.Before(end) {
			continue
		}
		inWindow = append(inWindow, a)
		summary.ActivitiesByType[a.Type]++
		if a.Repository != "" {
			summary.ActivitiesByRepository[a.Repository]++
		}
		if lang := a.Language(); lang != "" {
			byLanguage[lang]++
		}
		byWeekday[a.CreatedAt.UTC().Weekday()]++
	}

	summary.TotalActivities = len(inWindow)
	summary.ProductivityScore = scoring.ProductivityScore(inWindow)
	summary.TopRepositories = topGroups(summary.ActivitiesByRepository, topN)
	summary.TopLanguages = topGroups(byLanguage, topN)
	summary.MostActiveWeekday = mostActiveWeekday(byWeekday)

	if days := end.Sub(start).Hours() / 24; days > 0 {
		summary.AvgActivitiesPerDay = float64(len(inWindow)) / days
	}

	return summary
}

// topGroups orders groups by descending count, ties broken by key, and
// truncates to n.
func topGroups(counts map[string]int, n int) []domain.GroupCount {
	groups := make([]domain.GroupCount, 0, len(counts))
	for key, count := range counts {
		groups = append(groups, domain.GroupCount{Key: key, Count: count})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Key < groups[j].Key
	})
	if len(groups) > n {
		groups = groups[:n]
	}
	return groups
}

func mostActiveWeekday(counts map[time.Weekday]int) string {
	best := ""
	bestCount := 0
	for _, day := range weekdaysMondayFirst {
		if counts[day] > bestCount {
			best = day.String()
			bestCount = counts[day]
		}
	}
	return best
}
