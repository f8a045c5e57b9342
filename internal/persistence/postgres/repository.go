// Package postgres provides the Postgres-backed activity ledger store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/devledger/internal/domain"
	"example.com/devledger/internal/events"
	"example.com/devledger/internal/observability"
)

const activityColumns = `activity_id, user_id, source, activity_type, natural_key, repository, title, url, tags, created_at, score, metadata, ingested_at`

// Repository provides Postgres persistence for activities, provider
// accounts, and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert stores the activity atomically keyed by (user_id, natural_key). The
// unique index makes concurrent upserts of the same key resolve to exactly
// one row; the loser gets inserted=false and the winner's record. A fresh
// insert also records an activity.ingested outbox row in the same
// transaction.
func (r *Repository) Upsert(ctx context.Context, activity domain.Activity) (domain.Activity, bool, error) {
	metadata, err := json.Marshal(activity.Metadata)
	if err != nil {
		return domain.Activity{}, false, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Activity{}, false, err
	}
	defer tx.Rollback(ctx)

	const insert = `INSERT INTO activities (` + activityColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        ON CONFLICT (user_id, natural_key) DO NOTHING
        RETURNING activity_id`

	var insertedID string
	err = tx.QueryRow(ctx, insert,
		activity.ID,
		activity.UserID,
		string(activity.Source),
		string(activity.Type),
		activity.NaturalKey,
		activity.Repository,
		activity.Title,
		activity.URL,
		activity.Tags,
		activity.CreatedAt,
		activity.Score,
		metadata,
		activity.IngestedAt,
	).Scan(&insertedID)

	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race or replayed fetch: hand back the stored winner.
		if err := tx.Commit(ctx); err != nil {
			return domain.Activity{}, false, err
		}
		existing, err := r.getByNaturalKey(ctx, activity.UserID, activity.NaturalKey)
		if err != nil {
			return domain.Activity{}, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return domain.Activity{}, false, err
	}

	if err := r.insertOutbox(ctx, tx, "activity.ingested", activity.UserID, events.ActivityIngested{
		ActivityID: activity.ID,
		UserID:     activity.UserID,
		Source:     string(activity.Source),
		Type:       string(activity.Type),
		Repository: activity.Repository,
		CreatedAt:  activity.CreatedAt,
		Score:      activity.Score,
	}, activity.ID); err != nil {
		return domain.Activity{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Activity{}, false, err
	}
	observability.RecordActivityIngested(string(activity.Source), activity.IngestedAt)
	return activity, true, nil
}

func (r *Repository) getByNaturalKey(ctx context.Context, userID, naturalKey string) (domain.Activity, error) {
	const query = `SELECT ` + activityColumns + ` FROM activities WHERE user_id=$1 AND natural_key=$2`
	row := r.pool.QueryRow(ctx, query, userID, naturalKey)
	return scanActivity(row)
}

// ListByUser returns activities ordered newest first with cursor pagination.
func (r *Repository) ListByUser(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	args := []interface{}{userID, limit}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id=$1`
	if cursor != nil {
		query += ` AND (created_at, activity_id) < ($3, $4)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, activity_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0, limit)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

// ListByUserRange returns activities with created_at in [start, end).
func (r *Repository) ListByUserRange(ctx context.Context, userID string, start, end time.Time) ([]domain.Activity, error) {
	const query = `SELECT ` + activityColumns + ` FROM activities
        WHERE user_id=$1 AND created_at >= $2 AND created_at < $3
        ORDER BY created_at`
	return r.queryActivities(ctx, query, userID, start, end)
}

// ListAllByUser returns the full ledger for a user, used by the streak
// calculator.
func (r *Repository) ListAllByUser(ctx context.Context, userID string) ([]domain.Activity, error) {
	const query = `SELECT ` + activityColumns + ` FROM activities WHERE user_id=$1 ORDER BY created_at`
	return r.queryActivities(ctx, query, userID)
}

// CountByUserRange counts activities with created_at in [start, end).
func (r *Repository) CountByUserRange(ctx context.Context, userID string, start, end time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM activities WHERE user_id=$1 AND created_at >= $2 AND created_at < $3`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID, start, end).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Repository) queryActivities(ctx context.Context, query string, args ...interface{}) ([]domain.Activity, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, activity)
	}
	return results, rows.Err()
}

// GetAccount fetches the provider account for (user, source); nil when not
// registered.
func (r *Repository) GetAccount(ctx context.Context, userID string, source domain.Source) (*domain.ProviderAccount, error) {
	const query = `SELECT user_id, source, external_id, sync_cursor, last_synced_at
        FROM provider_accounts WHERE user_id=$1 AND source=$2`
	account, err := scanAccount(r.pool.QueryRow(ctx, query, userID, string(source)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// PutAccount registers or updates a provider account.
func (r *Repository) PutAccount(ctx context.Context, account domain.ProviderAccount) error {
	const stmt = `INSERT INTO provider_accounts (user_id, source, external_id, sync_cursor, last_synced_at)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (user_id, source) DO UPDATE
        SET external_id = EXCLUDED.external_id`
	_, err := r.pool.Exec(ctx, stmt,
		account.UserID, string(account.Source), account.ExternalID, account.Cursor, account.LastSyncedAt)
	return err
}

// ListAccountsByUser returns all provider accounts for a user.
func (r *Repository) ListAccountsByUser(ctx context.Context, userID string) ([]domain.ProviderAccount, error) {
	const query = `SELECT user_id, source, external_id, sync_cursor, last_synced_at
        FROM provider_accounts WHERE user_id=$1 ORDER BY source`
	return r.queryAccounts(ctx, query, userID)
}

// ListAccounts returns every registered provider account, used by the sync
// worker loop.
func (r *Repository) ListAccounts(ctx context.Context) ([]domain.ProviderAccount, error) {
	const query = `SELECT user_id, source, external_id, sync_cursor, last_synced_at
        FROM provider_accounts ORDER BY user_id, source`
	return r.queryAccounts(ctx, query)
}

func (r *Repository) queryAccounts(ctx context.Context, query string, args ...interface{}) ([]domain.ProviderAccount, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.ProviderAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, account)
	}
	return results, rows.Err()
}

// SetCursor advances the sync cursor after a successful fetch.
func (r *Repository) SetCursor(ctx context.Context, userID string, source domain.Source, cursor string, syncedAt time.Time) error {
	const stmt = `UPDATE provider_accounts SET sync_cursor=$3, last_synced_at=$4 WHERE user_id=$1 AND source=$2`
	tag, err := r.pool.Exec(ctx, stmt, userID, string(source), cursor, syncedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// RecordSyncCompleted writes a sync.completed outbox row so downstream
// consumers can observe sync runs.
func (r *Repository) RecordSyncCompleted(ctx context.Context, result domain.SyncResult, finishedAt time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Each run is its own aggregate; the dedupe key must not collapse
	// distinct runs for the same account.
	aggregateID := fmt.Sprintf("%s:%s:%d", result.UserID, result.Source, finishedAt.UnixNano())
	if err := r.insertOutbox(ctx, tx, "sync.completed", result.UserID, events.SyncCompleted{
		UserID:     result.UserID,
		Source:     string(result.Source),
		Added:      result.Added,
		Skipped:    result.Skipped,
		ErrorCount: len(result.Errors),
		FinishedAt: finishedAt,
	}, aggregateID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, eventType, userID string, payload interface{}, aggregateID string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s", aggregateID, eventType)
	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		userID,
		meta.AggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		userID,
		body,
		dedupeKey,
	)
	return err
}

type activityRow interface {
	Scan(dest ...interface{}) error
}

func scanActivity(row activityRow) (domain.Activity, error) {
	var (
		activity domain.Activity
		source   string
		kind     string
		metadata []byte
	)
	if err := row.Scan(
		&activity.ID, &activity.UserID, &source, &kind, &activity.NaturalKey,
		&activity.Repository, &activity.Title, &activity.URL, &activity.Tags,
		&activity.CreatedAt, &activity.Score, &metadata, &activity.IngestedAt,
	); err != nil {
		return domain.Activity{}, err
	}
	activity.Source = domain.Source(source)
	activity.Type = domain.ActivityType(kind)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &activity.Metadata); err != nil {
			return domain.Activity{}, err
		}
	}
	return activity, nil
}

func scanAccount(row activityRow) (domain.ProviderAccount, error) {
	var (
		account domain.ProviderAccount
		source  string
	)
	if err := row.Scan(&account.UserID, &source, &account.ExternalID, &account.Cursor, &account.LastSyncedAt); err != nil {
		return domain.ProviderAccount{}, err
	}
	account.Source = domain.Source(source)
	return account, nil
}

// EventMetadata describes how an outbox event is routed.
type EventMetadata struct {
	AggregateType string
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"activity.ingested": {
		AggregateType: "activity",
		Topic:         "ledger_activity_events",
		SchemaSubject: "ledger_activity_events-value",
	},
	"sync.completed": {
		AggregateType: "sync_run",
		Topic:         "ledger_sync_events",
		SchemaSubject: "ledger_sync_events-value",
	},
}
