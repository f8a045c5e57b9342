package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/devledger/internal/domain"
)

func TestUpsertDeduplicatesByNaturalKey(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	first := domain.Activity{ID: "a-1", UserID: "user-1", NaturalKey: "octo/api|fix|2024-03-10T00:00:00Z", Score: 10, CreatedAt: time.Now().UTC()}
	stored, inserted, err := store.Upsert(ctx, first)
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, "a-1", stored.ID)

	replay := first
	replay.ID = "a-2"
	stored, inserted, err = store.Upsert(ctx, replay)
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, "a-1", stored.ID, "loser must receive the pre-existing record")

	all, err := store.ListAllByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestUpsertConcurrentSameKeyExactlyOneWinner(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	insertedCount := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			activity := domain.Activity{
				ID:         fmt.Sprintf("a-%d", i),
				UserID:     "user-1",
				NaturalKey: "octo/api|same|2024-03-10T00:00:00Z",
				CreatedAt:  time.Now().UTC(),
			}
			_, inserted, err := store.Upsert(ctx, activity)
			require.NoError(t, err)
			insertedCount <- inserted
		}(i)
	}
	wg.Wait()
	close(insertedCount)

	winners := 0
	for inserted := range insertedCount {
		if inserted {
			winners++
		}
	}
	require.Equal(t, 1, winners)

	all, err := store.ListAllByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestListByUserRangeHalfOpen(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	for i, ts := range []time.Time{start, start.Add(time.Hour), end} {
		_, _, err := store.Upsert(ctx, domain.Activity{
			ID: fmt.Sprintf("a-%d", i), UserID: "user-1",
			NaturalKey: fmt.Sprintf("key-%d", i), CreatedAt: ts,
		})
		require.NoError(t, err)
	}

	inRange, err := store.ListByUserRange(ctx, "user-1", start, end)
	require.NoError(t, err)
	require.Len(t, inRange, 2)

	count, err := store.CountByUserRange(ctx, "user-1", start, end)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestListByUserPagination(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, _, err := store.Upsert(ctx, domain.Activity{
			ID: fmt.Sprintf("a-%d", i), UserID: "user-1",
			NaturalKey: fmt.Sprintf("key-%d", i), CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	page, next, err := store.ListByUser(ctx, "user-1", nil, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.NotNil(t, next)
	require.Equal(t, "a-4", page[0].ID)

	page, next, err = store.ListByUser(ctx, "user-1", next, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Nil(t, next)
	require.Equal(t, "a-0", page[1].ID)
}

func TestAccountCursorRoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.ErrorIs(t, store.SetCursor(ctx, "user-1", domain.SourceGitHub, "300", time.Now()), domain.ErrAccountNotFound)

	require.NoError(t, store.PutAccount(ctx, domain.ProviderAccount{
		UserID: "user-1", Source: domain.SourceGitHub, ExternalID: "octocat",
	}))

	syncedAt := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetCursor(ctx, "user-1", domain.SourceGitHub, "300", syncedAt))

	account, err := store.GetAccount(ctx, "user-1", domain.SourceGitHub)
	require.NoError(t, err)
	require.NotNil(t, account)
	require.Equal(t, "300", account.Cursor)
	require.Equal(t, syncedAt, account.LastSyncedAt)
}
