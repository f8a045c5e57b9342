package domain

import (
	"context"
	"time"
)

// FetchResult is the normalized output of one provider fetch. Malformed
// counts individual events that could not be decoded and were skipped;
// unrecognized event kinds are dropped without being counted as failures.
type FetchResult struct {
	Drafts     []ActivityDraft
	NextCursor string
	Malformed  int
}

// ProviderAdapter turns raw provider events into activity drafts. Adapters
// perform only the outbound HTTP call; they never write to the store.
type ProviderAdapter interface {
	Source() Source
	FetchSince(ctx context.Context, externalUserID, cursor string) (FetchResult, error)
}

// ActivityStore captures persistence operations for the activity ledger and
// provider accounts. Upsert is the load-bearing contract: concurrent calls
// with the same (user, natural key) must resolve to exactly one stored row,
// with inserted=false and the pre-existing record returned to the loser.
type ActivityStore interface {
	Upsert(ctx context.Context, activity Activity) (Activity, bool, error)
	ListByUser(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	ListByUserRange(ctx context.Context, userID string, start, end time.Time) ([]Activity, error)
	ListAllByUser(ctx context.Context, userID string) ([]Activity, error)
	CountByUserRange(ctx context.Context, userID string, start, end time.Time) (int, error)

	GetAccount(ctx context.Context, userID string, source Source) (*ProviderAccount, error)
	PutAccount(ctx context.Context, account ProviderAccount) error
	ListAccountsByUser(ctx context.Context, userID string) ([]ProviderAccount, error)
	ListAccounts(ctx context.Context) ([]ProviderAccount, error)
	SetCursor(ctx context.Context, userID string, source Source, cursor string, syncedAt time.Time) error
}

// JournalReader is the read-only journal collaborator used by the report
// composer.
type JournalReader interface {
	EntriesInRange(ctx context.Context, userID string, start, end time.Time) ([]JournalEntry, error)
}

// ProjectCounter is the read-only project collaborator used by monthly
// productivity metrics.
type ProjectCounter interface {
	CompletedProjects(ctx context.Context, userID string, start, end time.Time) (int, error)
}

// Syncer runs provider ingestion for a user. Implementations own retry
// policy and fan-out across sources.
type Syncer interface {
	Sync(ctx context.Context, userID string, source Source) (SyncResult, error)
	SyncAll(ctx context.Context, userID string) ([]SyncResult, error)
}
