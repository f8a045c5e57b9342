package journal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/devledger/internal/domain"
)

func TestEntriesInRange(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entries":[{"user_id":"u1","date":"2025-06-02T00:00:00Z","achievements":["shipped parser"],"challenges":["flaky CI"],"mood":"good","productivity_rating":4}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	entries, err := client.EntriesInRange(context.Background(), "u1", start, end)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "u1", entries[0].UserID)
	require.Equal(t, []string{"shipped parser"}, entries[0].Achievements)
	require.Equal(t, []string{"flaky CI"}, entries[0].Challenges)
	require.Equal(t, 4, entries[0].ProductivityRating)

	require.Equal(t, "/v1/users/u1/entries", gotPath)
	require.Contains(t, gotQuery, "start=2025-06-02T00%3A00%3A00Z")
	require.Contains(t, gotQuery, "end=2025-06-09T00%3A00%3A00Z")
}

func TestEntriesInRangeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.EntriesInRange(context.Background(), "u1", time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 500")
}

func TestCompletedProjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/users/u1/projects/completed", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count":3}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	count, err := client.CompletedProjects(context.Background(), "u1", time.Now().Add(-30*24*time.Hour), time.Now())
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestStaticFiltersByUserAndRange(t *testing.T) {
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)
	static := Static{
		Entries: []domain.JournalEntry{
			{UserID: "u1", Date: start.AddDate(0, 0, 1)},
			{UserID: "u2", Date: start.AddDate(0, 0, 1)},
			{UserID: "u1", Date: end},
		},
		Projects: 2,
	}

	entries, err := static.EntriesInRange(context.Background(), "u1", start, end)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	count, err := static.CompletedProjects(context.Background(), "u1", start, end)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
