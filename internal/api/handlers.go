// Package api exposes HTTP handlers for the ledger service. All endpoints
// operate on the authenticated user; the bearer token subject is the user ID.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"example.com/devledger/internal/auth"
	"example.com/devledger/internal/domain"
	"example.com/devledger/internal/ledger"
)

// Handler coordinates HTTP requests with the ledger service.
type Handler struct {
	service *ledger.Service
	now     func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(service *ledger.Service) *Handler {
	return &Handler{service: service, now: time.Now}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/sync", h.sync)
	mux.HandleFunc("/v1/activities", h.listActivities)
	mux.HandleFunc("/v1/summary", h.summary)
	mux.HandleFunc("/v1/productivity", h.productivity)
	mux.HandleFunc("/v1/streak", h.streak)
	mux.HandleFunc("/v1/report/weekly", h.weeklyReport)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeLedgerWrite)
	if !ok {
		return
	}

	var req SyncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
	}

	var results []domain.SyncResult
	var err error
	if req.Source == "" {
		results, err = h.service.SyncAll(r.Context(), claims.Subject)
	} else {
		var result domain.SyncResult
		result, err = h.service.Sync(r.Context(), claims.Subject, domain.Source(req.Source))
		results = []domain.SyncResult{result}
	}
	if err != nil {
		writeSyncError(w, err)
		return
	}

	resp := SyncResponse{Results: make([]SyncResultView, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, SyncResultView{
			Source:  string(res.Source),
			Added:   res.Added,
			Skipped: res.Skipped,
			Errors:  res.Errors,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeLedgerRead)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	activities, next, err := h.service.ListActivities(r.Context(), claims.Subject, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidPageToken) {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := ListActivitiesResponse{
		Items:      make([]ActivityView, 0, len(activities)),
		NextCursor: next,
	}
	for _, activity := range activities {
		resp.Items = append(resp.Items, toActivityView(activity))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeLedgerRead)
	if !ok {
		return
	}

	end := h.now().UTC()
	start := end.AddDate(0, 0, -7)
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "start must be RFC3339")
			return
		}
		start = parsed
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "end must be RFC3339")
			return
		}
		end = parsed
	}
	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "validation_failed", "start must be before end")
		return
	}

	summary, err := h.service.GetSummary(r.Context(), claims.Subject, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toSummaryView(summary))
}

func (h *Handler) productivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeLedgerRead)
	if !ok {
		return
	}

	metrics, err := h.service.GetProductivityMetrics(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toMetricsView(metrics))
}

func (h *Handler) streak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeLedgerRead)
	if !ok {
		return
	}

	streak, err := h.service.GetStreak(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := StreakView{
		CurrentStreakDays: streak.CurrentStreakDays,
		Alive:             streak.Alive(h.now()),
	}
	if streak.CurrentStreakDays > 0 {
		last := streak.LastQualifyingDay
		resp.LastQualifyingDay = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) weeklyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeLedgerRead)
	if !ok {
		return
	}

	report, err := h.service.GetWeeklyReport(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := WeeklyReportView{
		WeekStart:       report.WeekStart,
		WeekEnd:         report.WeekEnd,
		Summary:         toSummaryView(report.Summary),
		Metrics:         toMetricsView(report.Metrics),
		StreakDays:      report.StreakDays,
		Trend:           string(report.Trend),
		Achievements:    report.Achievements,
		Challenges:      report.Challenges,
		Recommendations: report.Recommendations,
		GeneratedAt:     report.GeneratedAt,
	}
	writeJSON(w, http.StatusOK, resp)
}

func requireScope(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	// Write scope implies read.
	if !claims.HasScope(scope) && !(scope == auth.ScopeLedgerRead && claims.HasScope(auth.ScopeLedgerWrite)) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return nil, false
	}
	return claims, true
}

func writeSyncError(w http.ResponseWriter, err error) {
	var rateLimited *domain.RateLimitedError
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no linked account for source")
	case errors.Is(err, domain.ErrUnknownSource):
		writeError(w, http.StatusBadRequest, "validation_failed", "unknown source")
	case errors.Is(err, domain.ErrAuthExpired):
		writeError(w, http.StatusBadGateway, "provider_auth_expired", "provider credentials expired; relink the account")
	case errors.As(err, &rateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(int(rateLimited.RetryAfter.Seconds())))
		writeError(w, http.StatusServiceUnavailable, "provider_rate_limited", "provider rate limit exceeded")
	case errors.Is(err, domain.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, "provider_unavailable", "provider is unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// SyncRequest is the payload for POST /v1/sync. An empty source syncs every
// linked account.
type SyncRequest struct {
	Source string `json:"source"`
}

// SyncResultView reports per-source ingestion counts.
type SyncResultView struct {
	Source  string   `json:"source"`
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// SyncResponse packages sync results.
type SyncResponse struct {
	Results []SyncResultView `json:"results"`
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID string            `json:"activity_id"`
	Source     string            `json:"source"`
	Type       string            `json:"type"`
	Repository string            `json:"repository,omitempty"`
	Title      string            `json:"title"`
	URL        string            `json:"url,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Score      int               `json:"score"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	IngestedAt time.Time         `json:"ingested_at"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// GroupCountView is a named bucket size.
type GroupCountView struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// SummaryView is the aggregate over one window.
type SummaryView struct {
	Start                  time.Time        `json:"start"`
	End                    time.Time        `json:"end"`
	TotalActivities        int              `json:"total_activities"`
	ActivitiesByType       map[string]int   `json:"activities_by_type"`
	ActivitiesByRepository map[string]int   `json:"activities_by_repository"`
	TopRepositories        []GroupCountView `json:"top_repositories"`
	TopLanguages           []GroupCountView `json:"top_languages"`
	AvgActivitiesPerDay    float64          `json:"avg_activities_per_day"`
	MostActiveWeekday      string           `json:"most_active_weekday,omitempty"`
	ProductivityScore      float64          `json:"productivity_score"`
}

// PeriodMetricsView is one window of the productivity breakdown.
type PeriodMetricsView struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	ActivityCount int       `json:"activity_count"`
	Score         float64   `json:"score"`
}

// MetricsView is the rolling daily/weekly/monthly breakdown.
type MetricsView struct {
	Daily             PeriodMetricsView `json:"daily"`
	Weekly            PeriodMetricsView `json:"weekly"`
	Monthly           PeriodMetricsView `json:"monthly"`
	CompletedProjects int               `json:"completed_projects"`
	WeeklyTrend       string            `json:"weekly_trend"`
}

// StreakView reports the consecutive-active-day state.
type StreakView struct {
	CurrentStreakDays int        `json:"current_streak_days"`
	LastQualifyingDay *time.Time `json:"last_qualifying_day,omitempty"`
	Alive             bool       `json:"alive"`
}

// WeeklyReportView is the composite weekly report.
type WeeklyReportView struct {
	WeekStart       time.Time   `json:"week_start"`
	WeekEnd         time.Time   `json:"week_end"`
	Summary         SummaryView `json:"summary"`
	Metrics         MetricsView `json:"metrics"`
	StreakDays      int         `json:"streak_days"`
	Trend           string      `json:"trend"`
	Achievements    []string    `json:"achievements,omitempty"`
	Challenges      []string    `json:"challenges,omitempty"`
	Recommendations []string    `json:"recommendations,omitempty"`
	GeneratedAt     time.Time   `json:"generated_at"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(activity domain.Activity) ActivityView {
	return ActivityView{
		ActivityID: activity.ID,
		Source:     string(activity.Source),
		Type:       string(activity.Type),
		Repository: activity.Repository,
		Title:      activity.Title,
		URL:        activity.URL,
		Tags:       activity.Tags,
		CreatedAt:  activity.CreatedAt,
		Score:      activity.Score,
		Metadata:   activity.Metadata,
		IngestedAt: activity.IngestedAt,
	}
}

func toSummaryView(summary domain.ActivitySummary) SummaryView {
	view := SummaryView{
		Start:                  summary.Start,
		End:                    summary.End,
		TotalActivities:        summary.TotalActivities,
		ActivitiesByType:       make(map[string]int, len(summary.ActivitiesByType)),
		ActivitiesByRepository: summary.ActivitiesByRepository,
		TopRepositories:        toGroupViews(summary.TopRepositories),
		TopLanguages:           toGroupViews(summary.TopLanguages),
		AvgActivitiesPerDay:    summary.AvgActivitiesPerDay,
		MostActiveWeekday:      summary.MostActiveWeekday,
		ProductivityScore:      summary.ProductivityScore,
	}
	for typ, count := range summary.ActivitiesByType {
		view.ActivitiesByType[string(typ)] = count
	}
	return view
}

func toGroupViews(groups []domain.GroupCount) []GroupCountView {
	out := make([]GroupCountView, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupCountView{Key: g.Key, Count: g.Count})
	}
	return out
}

func toMetricsView(metrics domain.ProductivityMetrics) MetricsView {
	return MetricsView{
		Daily:             toPeriodView(metrics.Daily),
		Weekly:            toPeriodView(metrics.Weekly),
		Monthly:           toPeriodView(metrics.Monthly),
		CompletedProjects: metrics.CompletedProjects,
		WeeklyTrend:       string(metrics.WeeklyTrend),
	}
}

func toPeriodView(period domain.PeriodMetrics) PeriodMetricsView {
	return PeriodMetricsView{
		Start:         period.Start,
		End:           period.End,
		ActivityCount: period.ActivityCount,
		Score:         period.Score,
	}
}
