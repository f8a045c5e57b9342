// Package ledger orchestrates the activity ledger read side: listing,
// summaries, productivity metrics, streaks and the weekly report. Writes go
// through the ingest runner; this service never mutates stored activities.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"example.com/devledger/internal/analytics"
	"example.com/devledger/internal/cache"
	"example.com/devledger/internal/domain"
	"example.com/devledger/internal/persistence"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	derivedTTL = 60 * time.Second
)

// ErrInvalidPageToken is returned when a listing token cannot be decoded.
var ErrInvalidPageToken = errors.New("invalid page token")

// Service exposes the ledger read API over an ActivityStore and its
// collaborators.
type Service struct {
	store    domain.ActivityStore
	syncer   domain.Syncer
	journal  domain.JournalReader
	projects domain.ProjectCounter
	cache    cache.Cache
	logger   *log.Logger
	now      func() time.Time
}

// Option customises Service construction.
type Option func(*Service)

// WithCache memoizes streak and summary reads in the given cache.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService wires the service. journal and projects may be nil; the weekly
// report and monthly metrics then omit journal-derived data.
func NewService(store domain.ActivityStore, syncer domain.Syncer, journal domain.JournalReader, projects domain.ProjectCounter, opts ...Option) *Service {
	s := &Service{
		store:    store,
		syncer:   syncer,
		journal:  journal,
		projects: projects,
		cache:    cache.Noop{},
		logger:   log.New(os.Stdout, "[ledger] ", log.LstdFlags),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs ingestion for one provider account and invalidates derived reads
// for the user.
func (s *Service) Sync(ctx context.Context, userID string, source domain.Source) (domain.SyncResult, error) {
	result, err := s.syncer.Sync(ctx, userID, source)
	if err != nil {
		return result, err
	}
	s.invalidate(ctx, userID)
	return result, nil
}

// SyncAll runs ingestion for every linked account of the user.
func (s *Service) SyncAll(ctx context.Context, userID string) ([]domain.SyncResult, error) {
	results, err := s.syncer.SyncAll(ctx, userID)
	if err != nil {
		return results, err
	}
	s.invalidate(ctx, userID)
	return results, nil
}

// ListActivities returns one page of activities, newest first, with the
// token for the next page. An empty token means the listing is exhausted.
func (s *Service) ListActivities(ctx context.Context, userID, pageToken string, limit int) ([]domain.Activity, string, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	cursor, err := persistence.DecodeCursor(pageToken)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}

	activities, next, err := s.store.ListByUser(ctx, userID, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	return activities, persistence.EncodeCursor(next), nil
}

// GetSummary aggregates activities over the half-open window [start, end).
func (s *Service) GetSummary(ctx context.Context, userID string, start, end time.Time) (domain.ActivitySummary, error) {
	key := summaryKey(userID, start, end)
	var summary domain.ActivitySummary
	if s.cached(ctx, key, &summary) {
		return summary, nil
	}

	activities, err := s.store.ListByUserRange(ctx, userID, start, end)
	if err != nil {
		return domain.ActivitySummary{}, err
	}
	summary = analytics.Summarize(userID, activities, start, end)
	s.memoize(ctx, key, summary)
	return summary, nil
}

// GetProductivityMetrics builds the rolling daily/weekly/monthly breakdown
// anchored at the current time.
func (s *Service) GetProductivityMetrics(ctx context.Context, userID string) (domain.ProductivityMetrics, error) {
	return analytics.ComputeProductivityMetrics(ctx, s.store, s.projects, userID, s.now())
}

// GetStreak recomputes the consecutive-active-day state for the user.
func (s *Service) GetStreak(ctx context.Context, userID string) (domain.StreakState, error) {
	key := streakKey(userID)
	var streak domain.StreakState
	if s.cached(ctx, key, &streak) {
		return streak, nil
	}

	activities, err := s.store.ListAllByUser(ctx, userID)
	if err != nil {
		return domain.StreakState{}, err
	}
	streak = analytics.ComputeStreak(userID, activities)
	s.memoize(ctx, key, streak)
	return streak, nil
}

// GetTrend classifies recent activity volume against the prior period.
func (s *Service) GetTrend(ctx context.Context, userID string, period time.Duration) (domain.TrendDirection, error) {
	return analytics.ComputeTrend(ctx, s.store, userID, period, s.now())
}

// GetWeeklyReport composes the report for the calendar week containing now:
// the week summary, productivity metrics, streak, weekly trend and the
// journal-derived achievement and challenge lists.
func (s *Service) GetWeeklyReport(ctx context.Context, userID string) (domain.WeeklyReport, error) {
	now := s.now()
	weekStart := analytics.StartOfWeek(now)
	weekEnd := weekStart.AddDate(0, 0, 7)

	summary, err := s.GetSummary(ctx, userID, weekStart, weekEnd)
	if err != nil {
		return domain.WeeklyReport{}, err
	}
	metrics, err := s.GetProductivityMetrics(ctx, userID)
	if err != nil {
		return domain.WeeklyReport{}, err
	}
	streak, err := s.GetStreak(ctx, userID)
	if err != nil {
		return domain.WeeklyReport{}, err
	}

	var entries []domain.JournalEntry
	if s.journal != nil {
		entries, err = s.journal.EntriesInRange(ctx, userID, weekStart, weekEnd)
		if err != nil {
			// The report is still useful without journal data.
			s.logger.Printf("journal read failed for user %s: %v", userID, err)
			entries = nil
		}
	}

	return analytics.ComposeWeeklyReport(userID, summary, metrics, streak, metrics.WeeklyTrend, entries, now), nil
}

func (s *Service) cached(ctx context.Context, key string, out any) bool {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.logger.Printf("discarding unreadable cache entry %s: %v", key, err)
		return false
	}
	return true
}

func (s *Service) memoize(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, derivedTTL); err != nil {
		s.logger.Printf("cache write failed for %s: %v", key, err)
	}
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, streakKey(userID)); err != nil {
		s.logger.Printf("cache invalidation failed for user %s: %v", userID, err)
	}
}

func streakKey(userID string) string {
	return "devledger:streak:" + userID
}

func summaryKey(userID string, start, end time.Time) string {
	return fmt.Sprintf("devledger:summary:%s:%d:%d", userID, start.Unix(), end.Unix())
}
