package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"example.com/devledger/internal/domain"
)

// StackOverflowAdapter reads a user's timeline from the Stack Exchange API.
type StackOverflowAdapter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewStackOverflowAdapter constructs an adapter against the given API base
// URL (normally https://api.stackexchange.com/2.3).
func NewStackOverflowAdapter(baseURL, apiKey string) *StackOverflowAdapter {
	return &StackOverflowAdapter{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: newHTTPClient(),
	}
}

// Source implements domain.ProviderAdapter.
func (a *StackOverflowAdapter) Source() domain.Source { return domain.SourceStackOverflow }

type stackOverflowTimeline struct {
	Items   []json.RawMessage `json:"items"`
	Backoff int               `json:"backoff"`
}

type stackOverflowItem struct {
	TimelineType string `json:"timeline_type"`
	CreationDate int64  `json:"creation_date"`
	Title        string `json:"title"`
	Link         string `json:"link"`
	Detail       string `json:"detail"`
}

// timelineTypes maps the provider taxonomy onto the canonical one. Kinds
// absent from this table (revisions, suggestions, ...) are dropped.
var timelineTypes = map[string]domain.ActivityType{
	"question":  domain.TypeQuestion,
	"answer":    domain.TypeAnswer,
	"commented": domain.TypeComment,
	"badge":     domain.TypeBadge,
}

// FetchSince pulls timeline items newer than the cursor, which is the unix
// creation timestamp of the most recently ingested item.
func (a *StackOverflowAdapter) FetchSince(ctx context.Context, externalUserID, cursor string) (domain.FetchResult, error) {
	url := fmt.Sprintf("%s/users/%s/timeline?site=stackoverflow&pagesize=100", a.baseURL, externalUserID)
	if cursor != "" {
		url += "&fromdate=" + cursor
	}
	if a.apiKey != "" {
		url += "&key=" + a.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.FetchResult{}, err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.FetchResult{}, err
		}
		return domain.FetchResult{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.FetchResult{}, classifyStatus(resp)
	}

	var timeline stackOverflowTimeline
	if err := json.NewDecoder(resp.Body).Decode(&timeline); err != nil {
		return domain.FetchResult{}, fmt.Errorf("%w: decoding timeline: %v", domain.ErrProviderUnavailable, err)
	}
	if timeline.Backoff > 0 {
		return domain.FetchResult{}, &domain.RateLimitedError{RetryAfter: time.Duration(timeline.Backoff) * time.Second}
	}

	result := domain.FetchResult{NextCursor: cursor}
	var newest int64
	if cursor != "" {
		newest, _ = strconv.ParseInt(cursor, 10, 64)
	}

	for _, raw := range timeline.Items {
		var item stackOverflowItem
		if err := json.Unmarshal(raw, &item); err != nil || item.CreationDate == 0 || item.Link == "" {
			result.Malformed++
			continue
		}

		activityType, ok := timelineTypes[item.TimelineType]
		if !ok {
			continue
		}

		title := item.Title
		if title == "" {
			title = item.Detail
		}

		result.Drafts = append(result.Drafts, domain.ActivityDraft{
			Source:    domain.SourceStackOverflow,
			Type:      activityType,
			Title:     title,
			URL:       item.Link,
			CreatedAt: time.Unix(item.CreationDate, 0).UTC(),
			Metadata:  map[string]string{"external_user": externalUserID},
		})
		if item.CreationDate > newest {
			newest = item.CreationDate
		}
	}

	if newest > 0 {
		result.NextCursor = strconv.FormatInt(newest, 10)
	}
	return result, nil
}
