// Package domain defines the canonical activity ledger model shared by
// ingestion, persistence, and analytics.
package domain

import (
	"fmt"
	"time"
)

// Source identifies the external provider an activity was ingested from.
type Source string

const (
	SourceGitHub        Source = "github"
	SourceStackOverflow Source = "stackoverflow"
)

// ActivityType is the shared event taxonomy all providers map onto.
type ActivityType string

const (
	TypeCommit      ActivityType = "commit"
	TypePullRequest ActivityType = "pr"
	TypeIssue       ActivityType = "issue"
	TypeRelease     ActivityType = "release"
	TypeFork        ActivityType = "fork"
	TypeStar        ActivityType = "star"

	TypeQuestion ActivityType = "question"
	TypeAnswer   ActivityType = "answer"
	TypeComment  ActivityType = "comment"
	TypeBadge    ActivityType = "badge"
)

// MetadataLanguage is the well-known metadata key carrying the primary
// programming language of an activity.
const MetadataLanguage = "language"

// ActivityDraft is a fully-formed activity produced by a provider adapter,
// missing only the storage-assigned ID and the ingestion-time score.
type ActivityDraft struct {
	UserID     string
	Source     Source
	Type       ActivityType
	Repository string
	Title      string
	URL        string
	Tags       []string
	CreatedAt  time.Time
	Metadata   map[string]string
}

// NaturalKey derives the deterministic dedup key for the draft. Version
// control events key on (repository, title, created_at); Q&A events key on
// (source, url). The owning user is a separate column of the unique index,
// so it is not folded into the key itself. The key must be stable across
// repeated fetches of the same underlying provider event.
func (d ActivityDraft) NaturalKey() string {
	switch d.Type {
	case TypeQuestion, TypeAnswer, TypeComment, TypeBadge:
		return fmt.Sprintf("%s|%s", d.Source, d.URL)
	default:
		return fmt.Sprintf("%s|%s|%s", d.Repository, d.Title, d.CreatedAt.UTC().Format(time.RFC3339))
	}
}

// Activity is the canonical ingested event. Activities are created only by
// ingestion and are read-only afterwards; the score is assigned once and
// never mutated implicitly.
type Activity struct {
	ID         string
	UserID     string
	Source     Source
	Type       ActivityType
	NaturalKey string
	Repository string
	Title      string
	URL        string
	Tags       []string
	CreatedAt  time.Time
	Score      int
	Metadata   map[string]string
	IngestedAt time.Time
}

// Language returns the language metadata value, empty when untagged.
func (a Activity) Language() string {
	return a.Metadata[MetadataLanguage]
}

// ProviderAccount links a ledger user to an external provider identity and
// carries the sync cursor for incremental fetches.
type ProviderAccount struct {
	UserID       string
	Source       Source
	ExternalID   string
	Cursor       string
	LastSyncedAt time.Time
}

// Cursor models the pagination token for activity listing.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// StreakState is the derived consecutive-active-day state for a user. It is
// recomputed from activity timestamps and never independently mutable.
type StreakState struct {
	UserID            string
	CurrentStreakDays int
	LastQualifyingDay time.Time
}

// Alive reports whether the streak is still extendable at the given instant:
// the last qualifying day is today or yesterday in UTC terms. Display-only;
// the stored count is anchored at the last active day regardless.
func (s StreakState) Alive(now time.Time) bool {
	if s.CurrentStreakDays == 0 {
		return false
	}
	today := now.UTC().Truncate(24 * time.Hour)
	last := s.LastQualifyingDay.UTC().Truncate(24 * time.Hour)
	return !last.Before(today.AddDate(0, 0, -1))
}

// GroupCount is a named bucket size used by top-N listings.
type GroupCount struct {
	Key   string
	Count int
}

// ActivitySummary is the derived, non-persisted aggregate for a user over a
// half-open window [Start, End).
type ActivitySummary struct {
	UserID                 string
	Start                  time.Time
	End                    time.Time
	TotalActivities        int
	ActivitiesByType       map[ActivityType]int
	ActivitiesByRepository map[string]int
	TopRepositories        []GroupCount
	TopLanguages           []GroupCount
	AvgActivitiesPerDay    float64
	MostActiveWeekday      string
	ProductivityScore      float64
}

// TrendDirection classifies a recent window against the prior one.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// PeriodMetrics is the score breakdown for one time window.
type PeriodMetrics struct {
	Start         time.Time
	End           time.Time
	ActivityCount int
	Score         float64
}

// ProductivityMetrics groups daily/weekly/monthly score breakdowns. The
// monthly window additionally carries the completed-project count supplied
// by the project collaborator.
type ProductivityMetrics struct {
	UserID            string
	Daily             PeriodMetrics
	Weekly            PeriodMetrics
	Monthly           PeriodMetrics
	CompletedProjects int
	WeeklyTrend       TrendDirection
}

// JournalEntry is the read-only view of a user-authored journal record.
type JournalEntry struct {
	UserID             string
	Date               time.Time
	Achievements       []string
	Challenges         []string
	Mood               string
	ProductivityRating int
}

// WeeklyReport composes the week summary, metrics, streak, trend and
// journal-derived lists into a single report.
type WeeklyReport struct {
	UserID          string
	WeekStart       time.Time
	WeekEnd         time.Time
	Summary         ActivitySummary
	Metrics         ProductivityMetrics
	StreakDays      int
	Trend           TrendDirection
	Achievements    []string
	Challenges      []string
	Recommendations []string
	GeneratedAt     time.Time
}

// SyncResult reports per-source ingestion counts rather than an
// all-or-nothing success flag.
type SyncResult struct {
	UserID  string
	Source  Source
	Added   int
	Skipped int
	Errors  []string
}
