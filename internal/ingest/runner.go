// Package ingest orchestrates provider fetches into the activity ledger:
// fetch since cursor, score, upsert, advance cursor. Retry policy lives
// here; adapters and the store stay policy-free.
package ingest

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"example.com/devledger/internal/domain"
	"example.com/devledger/internal/observability"
	"example.com/devledger/internal/scoring"
)

const (
	defaultMaxAttempts      = 4
	defaultBaseDelay        = 2 * time.Second
	defaultMaxRateLimitWait = 5 * time.Minute
)

// SyncEventRecorder is implemented by stores that journal completed sync
// runs through the outbox.
type SyncEventRecorder interface {
	RecordSyncCompleted(ctx context.Context, result domain.SyncResult, finishedAt time.Time) error
}

// Option configures optional behaviour for the Runner.
type Option func(*Runner)

// WithLogger overrides the logger used to report retry and upsert problems.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithRetryPolicy tunes fetch retries: attempts bounds transient retries,
// baseDelay seeds the exponential backoff, maxRateLimitWait caps how long a
// provider-supplied delay is honored.
func WithRetryPolicy(attempts int, baseDelay, maxRateLimitWait time.Duration) Option {
	return func(r *Runner) {
		if attempts > 0 {
			r.maxAttempts = attempts
		}
		if baseDelay > 0 {
			r.baseDelay = baseDelay
		}
		if maxRateLimitWait > 0 {
			r.maxRateLimitWait = maxRateLimitWait
		}
	}
}

// Runner runs ingestion for (user, source) pairs. Tasks for different users
// or different sources are safe to run concurrently: the store's upsert
// contract is the only synchronization needed.
type Runner struct {
	store            domain.ActivityStore
	adapters         map[domain.Source]domain.ProviderAdapter
	maxAttempts      int
	baseDelay        time.Duration
	maxRateLimitWait time.Duration
	logger           *log.Logger
}

// NewRunner constructs a Runner over the given adapters.
func NewRunner(store domain.ActivityStore, adapters []domain.ProviderAdapter, opts ...Option) *Runner {
	r := &Runner{
		store:            store,
		adapters:         make(map[domain.Source]domain.ProviderAdapter, len(adapters)),
		maxAttempts:      defaultMaxAttempts,
		baseDelay:        defaultBaseDelay,
		maxRateLimitWait: defaultMaxRateLimitWait,
		logger:           log.New(log.Writer(), "[ingest] ", log.LstdFlags),
	}
	for _, adapter := range adapters {
		r.adapters[adapter.Source()] = adapter
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sync ingests new events for one (user, source) pair. Re-running with no
// new provider events yields Added=0: the natural-key constraint absorbs
// replays, duplicate cron triggers, and concurrent requests.
func (r *Runner) Sync(ctx context.Context, userID string, source domain.Source) (domain.SyncResult, error) {
	result := domain.SyncResult{UserID: userID, Source: source}

	adapter, ok := r.adapters[source]
	if !ok {
		return result, domain.ErrUnknownSource
	}

	account, err := r.store.GetAccount(ctx, userID, source)
	if err != nil {
		return result, err
	}
	if account == nil {
		return result, domain.ErrAccountNotFound
	}

	start := time.Now()
	fetched, err := r.fetchWithRetry(ctx, adapter, account.ExternalID, account.Cursor)
	if err != nil {
		observability.RecordSyncRun(string(source), "fetch_failed", time.Since(start))
		return result, err
	}

	result.Skipped += fetched.Malformed
	if fetched.Malformed > 0 {
		observability.RecordMalformedEvents(string(source), fetched.Malformed)
	}

	now := time.Now().UTC()
	for _, draft := range fetched.Drafts {
		draft.UserID = userID
		activity := domain.Activity{
			ID:         uuid.NewString(),
			UserID:     userID,
			Source:     draft.Source,
			Type:       draft.Type,
			NaturalKey: draft.NaturalKey(),
			Repository: draft.Repository,
			Title:      draft.Title,
			URL:        draft.URL,
			Tags:       draft.Tags,
			CreatedAt:  draft.CreatedAt,
			Score:      scoring.Score(draft.Source, draft.Type),
			Metadata:   draft.Metadata,
			IngestedAt: now,
		}

		_, inserted, err := r.store.Upsert(ctx, activity)
		if err != nil {
			// Each key is individually atomic; one bad row does not abort
			// the batch.
			r.logger.Printf("upsert failed (user=%s, source=%s, key=%s): %v", userID, source, activity.NaturalKey, err)
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if inserted {
			result.Added++
		} else {
			result.Skipped++
		}
	}

	if fetched.NextCursor != "" && fetched.NextCursor != account.Cursor {
		if err := r.store.SetCursor(ctx, userID, source, fetched.NextCursor, now); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	observability.RecordSyncRun(string(source), "ok", time.Since(start))
	observability.RecordActivitiesDeduped(string(source), result.Skipped)

	if recorder, ok := r.store.(SyncEventRecorder); ok {
		if err := recorder.RecordSyncCompleted(ctx, result, now); err != nil {
			r.logger.Printf("sync event record failed (user=%s, source=%s): %v", userID, source, err)
		}
	}

	return result, nil
}

// SyncAll fans out one task per registered source for the user. Failure
// domains are independent: one provider failing is reported in its own
// result and never aborts the others.
func (r *Runner) SyncAll(ctx context.Context, userID string) ([]domain.SyncResult, error) {
	accounts, err := r.store.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]domain.SyncResult, len(accounts))
	done := make(chan struct{})
	for i, account := range accounts {
		go func(i int, source domain.Source) {
			defer func() { done <- struct{}{} }()
			result, err := r.Sync(ctx, userID, source)
			if err != nil {
				result.UserID = userID
				result.Source = source
				result.Errors = append(result.Errors, err.Error())
			}
			results[i] = result
		}(i, account.Source)
	}
	for range accounts {
		<-done
	}
	close(done)

	return results, nil
}

// fetchWithRetry applies the retry taxonomy: transient provider failures
// back off exponentially, rate limits honor the provider delay, auth and
// malformed-request failures surface immediately.
func (r *Runner) fetchWithRetry(ctx context.Context, adapter domain.ProviderAdapter, externalID, cursor string) (domain.FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		result, err := adapter.FetchSince(ctx, externalID, cursor)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var rateLimited *domain.RateLimitedError
		var wait time.Duration
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return domain.FetchResult{}, err
		case errors.Is(err, domain.ErrAuthExpired):
			return domain.FetchResult{}, err
		case errors.As(err, &rateLimited):
			wait = rateLimited.RetryAfter
			if wait > r.maxRateLimitWait {
				return domain.FetchResult{}, err
			}
		case errors.Is(err, domain.ErrProviderUnavailable):
			wait = r.baseDelay << attempt
		default:
			return domain.FetchResult{}, err
		}

		if attempt == r.maxAttempts-1 {
			break
		}
		r.logger.Printf("fetch retry in %s (source=%s, attempt=%d): %v", wait, adapter.Source(), attempt+1, err)
		select {
		case <-ctx.Done():
			return domain.FetchResult{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	return domain.FetchResult{}, lastErr
}
