package journal

import (
	"context"
	"time"

	"example.com/devledger/internal/domain"
)

// Static serves a fixed set of entries and a fixed project count. Used when
// no journal service is configured and in tests.
type Static struct {
	Entries  []domain.JournalEntry
	Projects int
}

func (s Static) EntriesInRange(ctx context.Context, userID string, start, end time.Time) ([]domain.JournalEntry, error) {
	var out []domain.JournalEntry
	for _, e := range s.Entries {
		if e.UserID != userID {
			continue
		}
		if e.Date.Before(start) || !e.Date.Before(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s Static) CompletedProjects(ctx context.Context, userID string, start, end time.Time) (int, error) {
	return s.Projects, nil
}
