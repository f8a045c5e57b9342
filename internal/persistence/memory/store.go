// Package memory provides an in-memory ActivityStore for local development
// and tests. It honors the same upsert atomicity contract as the Postgres
// store, with a single mutex standing in for the unique index.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/devledger/internal/domain"
)

type accountKey struct {
	userID string
	source domain.Source
}

// Store keeps activities keyed by (user, natural key).
type Store struct {
	mu         sync.Mutex
	activities map[string]map[string]domain.Activity // userID -> naturalKey -> activity
	accounts   map[accountKey]domain.ProviderAccount
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		activities: make(map[string]map[string]domain.Activity),
		accounts:   make(map[accountKey]domain.ProviderAccount),
	}
}

// Upsert implements domain.ActivityStore.
func (s *Store) Upsert(_ context.Context, activity domain.Activity) (domain.Activity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.activities[activity.UserID]
	if !ok {
		byKey = make(map[string]domain.Activity)
		s.activities[activity.UserID] = byKey
	}
	if existing, ok := byKey[activity.NaturalKey]; ok {
		return existing, false, nil
	}
	byKey[activity.NaturalKey] = activity
	return activity, true, nil
}

// ListByUser implements cursor pagination over the in-memory ledger.
func (s *Store) ListByUser(_ context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	all := s.snapshot(userID)
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	results := make([]domain.Activity, 0, limit)
	for _, a := range all {
		if cursor != nil {
			if a.CreatedAt.After(cursor.CreatedAt) || (a.CreatedAt.Equal(cursor.CreatedAt) && a.ID >= cursor.ID) {
				continue
			}
		}
		results = append(results, a)
		if len(results) == limit {
			break
		}
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

// ListByUserRange returns activities with CreatedAt in [start, end).
func (s *Store) ListByUserRange(_ context.Context, userID string, start, end time.Time) ([]domain.Activity, error) {
	var results []domain.Activity
	for _, a := range s.snapshot(userID) {
		if a.CreatedAt.Before(start) || !a.CreatedAt.Before(end) {
			continue
		}
		results = append(results, a)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.Before(results[j].CreatedAt) })
	return results, nil
}

// ListAllByUser implements domain.ActivityStore.
func (s *Store) ListAllByUser(_ context.Context, userID string) ([]domain.Activity, error) {
	results := s.snapshot(userID)
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.Before(results[j].CreatedAt) })
	return results, nil
}

// CountByUserRange implements domain.ActivityStore.
func (s *Store) CountByUserRange(ctx context.Context, userID string, start, end time.Time) (int, error) {
	activities, err := s.ListByUserRange(ctx, userID, start, end)
	if err != nil {
		return 0, err
	}
	return len(activities), nil
}

// GetAccount implements domain.ActivityStore.
func (s *Store) GetAccount(_ context.Context, userID string, source domain.Source) (*domain.ProviderAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountKey{userID, source}]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

// PutAccount implements domain.ActivityStore.
func (s *Store) PutAccount(_ context.Context, account domain.ProviderAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accountKey{account.UserID, account.Source}] = account
	return nil
}

// ListAccountsByUser implements domain.ActivityStore.
func (s *Store) ListAccountsByUser(_ context.Context, userID string) ([]domain.ProviderAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var results []domain.ProviderAccount
	for key, account := range s.accounts {
		if key.userID == userID {
			results = append(results, account)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Source < results[j].Source })
	return results, nil
}

// ListAccounts implements domain.ActivityStore.
func (s *Store) ListAccounts(_ context.Context) ([]domain.ProviderAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]domain.ProviderAccount, 0, len(s.accounts))
	for _, account := range s.accounts {
		results = append(results, account)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].UserID != results[j].UserID {
			return results[i].UserID < results[j].UserID
		}
		return results[i].Source < results[j].Source
	})
	return results, nil
}

// SetCursor implements domain.ActivityStore.
func (s *Store) SetCursor(_ context.Context, userID string, source domain.Source, cursor string, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := accountKey{userID, source}
	account, ok := s.accounts[key]
	if !ok {
		return domain.ErrAccountNotFound
	}
	account.Cursor = cursor
	account.LastSyncedAt = syncedAt
	s.accounts[key] = account
	return nil
}

func (s *Store) snapshot(userID string) []domain.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey := s.activities[userID]
	results := make([]domain.Activity, 0, len(byKey))
	for _, a := range byKey {
		results = append(results, a)
	}
	return results
}
