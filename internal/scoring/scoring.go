// Package scoring maps activity types to weighted scores. Weights are fixed
// per source; scores are assigned once at ingestion and never recomputed
// implicitly.
package scoring

import "example.com/devledger/internal/domain"

// Table maps activity types to their weights for one source.
type Table map[domain.ActivityType]int

var githubTable = Table{
	domain.TypeCommit:      10,
	domain.TypePullRequest: 20,
	domain.TypeIssue:       15,
	domain.TypeRelease:     50,
	domain.TypeFork:        5,
	domain.TypeStar:        2,
}

var stackOverflowTable = Table{
	domain.TypeQuestion: 15,
	domain.TypeAnswer:   25,
	domain.TypeComment:  5,
	domain.TypeBadge:    30,
}

var tablesBySource = map[domain.Source]Table{
	domain.SourceGitHub:        githubTable,
	domain.SourceStackOverflow: stackOverflowTable,
}

// ForSource returns the weight table for a source; nil when unknown.
func ForSource(source domain.Source) Table {
	return tablesBySource[source]
}

// Score returns the weight for an activity type under the given source.
// Unknown (source, type) pairs score zero.
func Score(source domain.Source, activityType domain.ActivityType) int {
	return tablesBySource[source][activityType]
}

// ProductivityScore normalizes the summed weights of a set of activities to
// the 0-10 scale. Raw sums routinely exceed the scale for active users; the
// clamp is a deliberate saturating normalization.
func ProductivityScore(activities []domain.Activity) float64 {
	total := 0
	for _, a := range activities {
		total += a.Score
	}
	score := float64(total) / 10
	if score > 10 {
		return 10
	}
	if score < 0 {
		return 0
	}
	return score
}
