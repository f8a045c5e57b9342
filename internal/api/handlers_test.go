package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"example.com/devledger/internal/auth"
	"example.com/devledger/internal/domain"
	"example.com/devledger/internal/ledger"
	"example.com/devledger/internal/persistence/memory"
	"example.com/devledger/internal/scoring"
)

type stubSyncer struct {
	result  domain.SyncResult
	results []domain.SyncResult
	err     error
}

func (s *stubSyncer) Sync(ctx context.Context, userID string, source domain.Source) (domain.SyncResult, error) {
	return s.result, s.err
}

func (s *stubSyncer) SyncAll(ctx context.Context, userID string) ([]domain.SyncResult, error) {
	return s.results, s.err
}

func seed(t *testing.T, store *memory.Store, userID string, typ domain.ActivityType, createdAt time.Time) {
	t.Helper()
	draft := domain.ActivityDraft{
		UserID:     userID,
		Source:     domain.SourceGitHub,
		Type:       typ,
		Repository: "acme/api",
		Title:      string(typ) + " " + createdAt.Format(time.RFC3339),
		CreatedAt:  createdAt,
	}
	_, _, err := store.Upsert(context.Background(), domain.Activity{
		ID:         uuid.NewString(),
		UserID:     userID,
		Source:     draft.Source,
		Type:       typ,
		NaturalKey: draft.NaturalKey(),
		Repository: draft.Repository,
		Title:      draft.Title,
		CreatedAt:  createdAt,
		Score:      scoring.Score(draft.Source, typ),
		IngestedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("seed upsert: %v", err)
	}
}

func withClaims(req *http.Request, scopes ...string) *http.Request {
	claims := &auth.Claims{
		Subject:   "user-1",
		Scopes:    make(map[string]struct{}, len(scopes)),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	for _, scope := range scopes {
		claims.Scopes[scope] = struct{}{}
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func newTestHandler(store *memory.Store, syncer domain.Syncer, now time.Time) *Handler {
	service := ledger.NewService(store, syncer, nil, nil, ledger.WithClock(func() time.Time { return now }))
	handler := NewHandler(service)
	handler.now = func() time.Time { return now }
	return handler
}

func TestSummarySuccess(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2025, time.June, 4, 15, 0, 0, 0, time.UTC)
	seed(t, store, "user-1", domain.TypeCommit, now.AddDate(0, 0, -2))
	seed(t, store, "user-1", domain.TypeCommit, now.AddDate(0, 0, -1))
	seed(t, store, "user-1", domain.TypeStar, now.Add(-time.Hour))

	handler := newTestHandler(store, &stubSyncer{}, now)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/summary", nil), auth.ScopeLedgerRead)
	rr := httptest.NewRecorder()
	handler.summary(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp SummaryView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TotalActivities != 3 {
		t.Fatalf("expected 3 activities got %d", resp.TotalActivities)
	}
	if resp.ActivitiesByType["commit"] != 2 || resp.ActivitiesByType["star"] != 1 {
		t.Fatalf("unexpected type counts %v", resp.ActivitiesByType)
	}
	if resp.ProductivityScore <= 2.19 || resp.ProductivityScore >= 2.21 {
		t.Fatalf("unexpected productivity score %f", resp.ProductivityScore)
	}
}

func TestSummaryRejectsBadRange(t *testing.T) {
	handler := newTestHandler(memory.NewStore(), &stubSyncer{}, time.Now())

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/summary?start=2025-06-08T00:00:00Z&end=2025-06-01T00:00:00Z", nil), auth.ScopeLedgerRead)
	rr := httptest.NewRecorder()
	handler.summary(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestListActivitiesPaginated(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2025, time.June, 4, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		seed(t, store, "user-1", domain.TypeCommit, now.Add(time.Duration(-i)*time.Hour))
	}
	handler := newTestHandler(store, &stubSyncer{}, now)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/activities?limit=3", nil), auth.ScopeLedgerRead)
	rr := httptest.NewRecorder()
	handler.listActivities(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var first ListActivitiesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &first); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(first.Items) != 3 || first.NextCursor == "" {
		t.Fatalf("expected 3 items with cursor, got %d items cursor=%q", len(first.Items), first.NextCursor)
	}

	req = withClaims(httptest.NewRequest(http.MethodGet, "/v1/activities?cursor="+first.NextCursor, nil), auth.ScopeLedgerRead)
	rr = httptest.NewRecorder()
	handler.listActivities(rr, req)

	var second ListActivitiesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &second); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(second.Items) != 1 || second.NextCursor != "" {
		t.Fatalf("expected final page of 1, got %d items cursor=%q", len(second.Items), second.NextCursor)
	}
}

func TestListActivitiesRejectsBadCursor(t *testing.T) {
	handler := newTestHandler(memory.NewStore(), &stubSyncer{}, time.Now())

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/activities?cursor=%21%21", nil), auth.ScopeLedgerRead)
	rr := httptest.NewRecorder()
	handler.listActivities(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestStreakEndpoint(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2025, time.June, 4, 15, 0, 0, 0, time.UTC)
	seed(t, store, "user-1", domain.TypeCommit, now.AddDate(0, 0, -1))
	seed(t, store, "user-1", domain.TypeCommit, now.Add(-time.Hour))

	handler := newTestHandler(store, &stubSyncer{}, now)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/streak", nil), auth.ScopeLedgerRead)
	rr := httptest.NewRecorder()
	handler.streak(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp StreakView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CurrentStreakDays != 2 || !resp.Alive {
		t.Fatalf("unexpected streak %+v", resp)
	}
}

func TestSyncSingleSource(t *testing.T) {
	syncer := &stubSyncer{result: domain.SyncResult{UserID: "user-1", Source: domain.SourceGitHub, Added: 2, Skipped: 1}}
	handler := newTestHandler(memory.NewStore(), syncer, time.Now())

	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/sync", strings.NewReader(`{"source":"github"}`)), auth.ScopeLedgerWrite)
	rr := httptest.NewRecorder()
	handler.sync(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp SyncResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Added != 2 || resp.Results[0].Skipped != 1 {
		t.Fatalf("unexpected results %+v", resp.Results)
	}
}

func TestSyncMapsProviderErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"account missing", domain.ErrAccountNotFound, http.StatusNotFound},
		{"unknown source", domain.ErrUnknownSource, http.StatusBadRequest},
		{"auth expired", domain.ErrAuthExpired, http.StatusBadGateway},
		{"unavailable", domain.ErrProviderUnavailable, http.StatusBadGateway},
		{"rate limited", &domain.RateLimitedError{RetryAfter: 90 * time.Second}, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(memory.NewStore(), &stubSyncer{err: tc.err}, time.Now())

			req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/sync", strings.NewReader(`{"source":"github"}`)), auth.ScopeLedgerWrite)
			rr := httptest.NewRecorder()
			handler.sync(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d got %d: %s", tc.wantStatus, rr.Code, rr.Body.String())
			}
			if tc.wantStatus == http.StatusServiceUnavailable && rr.Header().Get("Retry-After") != "90" {
				t.Fatalf("expected Retry-After 90 got %q", rr.Header().Get("Retry-After"))
			}
		})
	}
}

func TestSyncRequiresWriteScope(t *testing.T) {
	handler := newTestHandler(memory.NewStore(), &stubSyncer{}, time.Now())

	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/sync", nil), auth.ScopeLedgerRead)
	rr := httptest.NewRecorder()
	handler.sync(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestReadAllowedWithWriteScope(t *testing.T) {
	handler := newTestHandler(memory.NewStore(), &stubSyncer{}, time.Now())

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/streak", nil), auth.ScopeLedgerWrite)
	rr := httptest.NewRecorder()
	handler.streak(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestEndpointsRequireClaims(t *testing.T) {
	handler := newTestHandler(memory.NewStore(), &stubSyncer{}, time.Now())

	rr := httptest.NewRecorder()
	handler.streak(rr, httptest.NewRequest(http.MethodGet, "/v1/streak", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestWeeklyReportEndpoint(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2025, time.June, 4, 15, 0, 0, 0, time.UTC)
	seed(t, store, "user-1", domain.TypeCommit, now.AddDate(0, 0, -1))

	handler := newTestHandler(store, &stubSyncer{}, now)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/report/weekly", nil), auth.ScopeLedgerRead)
	rr := httptest.NewRecorder()
	handler.weeklyReport(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp WeeklyReportView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.WeekStart.Weekday() != time.Monday {
		t.Fatalf("expected Monday week start got %s", resp.WeekStart.Weekday())
	}
	if resp.StreakDays != 1 {
		t.Fatalf("expected streak 1 got %d", resp.StreakDays)
	}
	if len(resp.Recommendations) == 0 {
		t.Fatal("expected recommendations for a low-score week")
	}
}
