package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DLQManager handles retrying failed outbox messages and quarantining exhausted entries.
type DLQManager struct {
	pool       *pgxpool.Pool
	maxRetries int
	baseDelay  time.Duration
}

// NewDLQManager constructs a DLQManager with the provided pool and retry configuration.
func NewDLQManager(pool *pgxpool.Pool, maxRetries int, baseDelay time.Duration) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &DLQManager{pool: pool, maxRetries: maxRetries, baseDelay: baseDelay}
}

// RunOnce processes a batch of DLQ entries and returns the count of successfully
// re-queued messages.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	const query = `SELECT dlq_id, user_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, dedupe_key, retry_count
                    FROM outbox_dlq
                   WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
                   ORDER BY created_at
                   LIMIT $1`

	rows, err := m.pool.Query(ctx, query, batchSize)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	processed := 0
	for rows.Next() {
		entry, scanErr := scanDLQEntry(rows)
		if scanErr != nil {
			err = errors.Join(err, scanErr)
			continue
		}
		if procErr := m.handleEntry(ctx, entry); procErr != nil {
			err = errors.Join(err, procErr)
		} else {
			processed++
		}
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		err = errors.Join(err, rowsErr)
	}
	updateBacklogGauge(ctx, m.pool)
	return processed, err
}

// handleEntry applies retry/quarantine logic for a single DLQ entry.
func (m *DLQManager) handleEntry(ctx context.Context, entry dlqEntry) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if entry.RetryCount >= m.maxRetries {
		if _, err := tx.Exec(ctx, `UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`, "retry limit reached", entry.ID); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		recordDLQQuarantined(entry)
		return nil
	}

	insertErr := requeueOutbox(ctx, tx, entry)
	if insertErr != nil {
		delay := m.backoffDelay(entry.RetryCount + 1)
		if _, err := tx.Exec(ctx,
			`UPDATE outbox_dlq
               SET retry_count = retry_count + 1,
                   last_attempt_at = NOW(),
                   next_retry_at = NOW() + $1::interval,
                   reason = $2
             WHERE dlq_id = $3`,
			delay, insertErr.Error(), entry.ID,
		); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		recordDLQRetry(entry)
		return nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, entry.ID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	recordDLQRequeued(entry)
	recordDLQProcessed(entry)
	return nil
}

// backoffDelay calculates exponential backoff capped at one hour.
func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt-1)) * m.baseDelay
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}

// requeueOutbox puts the payload back on the primary outbox table for replay.
// The original published row still holds the dedupe key, so a conflict resets
// that row for redelivery instead of dropping the retry.
func requeueOutbox(ctx context.Context, tx pgx.Tx, entry dlqEntry) error {
	if entry.SchemaSubject == "" {
		return fmt.Errorf("missing schema_subject for dlq entry %d", entry.ID)
	}

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
                   VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
                   ON CONFLICT (dedupe_key) DO UPDATE
                   SET published_at = NULL, claimed_at = NULL`

	_, err := tx.Exec(ctx, stmt,
		entry.UserID,
		entry.AggregateType,
		entry.AggregateID,
		entry.EventType,
		entry.Topic,
		entry.SchemaSubject,
		entry.PartitionKey,
		entry.Payload,
		entry.DedupeKey,
	)
	return err
}

// dlqEntry represents an outbox_dlq row selected for processing.
type dlqEntry struct {
	ID            int64
	UserID        string
	EventID       int64
	EventType     string
	Topic         string
	Payload       []byte
	Reason        string
	AggregateType string
	AggregateID   string
	SchemaSubject string
	PartitionKey  string
	DedupeKey     string
	RetryCount    int
}

func scanDLQEntry(rows pgx.Rows) (dlqEntry, error) {
	var entry dlqEntry
	if err := rows.Scan(&entry.ID, &entry.UserID, &entry.EventID, &entry.EventType, &entry.Topic, &entry.Payload, &entry.Reason, &entry.AggregateType, &entry.AggregateID, &entry.SchemaSubject, &entry.PartitionKey, &entry.DedupeKey, &entry.RetryCount); err != nil {
		return dlqEntry{}, err
	}
	return entry, nil
}
