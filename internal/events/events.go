// Package events defines the payloads published through the ledger outbox.
package events

import "time"

// ActivityIngested is emitted once per newly stored activity. Deduplicated
// upserts do not emit it.
type ActivityIngested struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	Source     string    `json:"source"`
	Type       string    `json:"activity_type"`
	Repository string    `json:"repository,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Score      int       `json:"score"`
}

// SyncCompleted is emitted at the end of each (user, source) sync run.
type SyncCompleted struct {
	UserID     string    `json:"user_id"`
	Source     string    `json:"source"`
	Added      int       `json:"added"`
	Skipped    int       `json:"skipped"`
	ErrorCount int       `json:"error_count"`
	FinishedAt time.Time `json:"finished_at"`
}
