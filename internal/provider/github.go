package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"example.com/devledger/internal/domain"
)

// GitHubAdapter reads a user's public events feed and maps it onto the
// shared activity taxonomy.
type GitHubAdapter struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewGitHubAdapter constructs an adapter against the given API base URL.
// The token is optional; unauthenticated requests hit lower rate limits.
func NewGitHubAdapter(baseURL, token string) *GitHubAdapter {
	return &GitHubAdapter{
		baseURL:    baseURL,
		token:      token,
		httpClient: newHTTPClient(),
	}
}

// Source implements domain.ProviderAdapter.
func (a *GitHubAdapter) Source() domain.Source { return domain.SourceGitHub }

// githubEvent is the envelope shared by all event kinds in the feed. The
// kind-specific payload stays raw until the kind is recognized.
type githubEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Repo      githubRepo      `json:"repo"`
	Payload   json.RawMessage `json:"payload"`
}

type githubRepo struct {
	Name string `json:"name"`
}

type githubPushPayload struct {
	Commits []struct {
		Message string `json:"message"`
	} `json:"commits"`
}

type githubPullRequestPayload struct {
	PullRequest struct {
		Title string `json:"title"`
		Base  struct {
			Repo struct {
				Language string `json:"language"`
			} `json:"repo"`
		} `json:"base"`
	} `json:"pull_request"`
}

type githubIssuePayload struct {
	Issue struct {
		Title string `json:"title"`
	} `json:"issue"`
}

type githubReleasePayload struct {
	Release struct {
		Name    string `json:"name"`
		TagName string `json:"tag_name"`
	} `json:"release"`
}

// FetchSince pulls events newer than the cursor, which is the ID of the most
// recently ingested event. The feed is ordered newest first, so collection
// stops at the first already-seen ID.
func (a *GitHubAdapter) FetchSince(ctx context.Context, externalUserID, cursor string) (domain.FetchResult, error) {
	url := fmt.Sprintf("%s/users/%s/events?per_page=100", a.baseURL, externalUserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.FetchResult{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
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

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return domain.FetchResult{}, fmt.Errorf("%w: decoding events feed: %v", domain.ErrProviderUnavailable, err)
	}

	result := domain.FetchResult{NextCursor: cursor}
	for i, item := range raw {
		var event githubEvent
		if err := json.Unmarshal(item, &event); err != nil || event.ID == "" || event.CreatedAt.IsZero() {
			result.Malformed++
			continue
		}
		if i == 0 {
			result.NextCursor = event.ID
		}
		if cursor != "" && event.ID == cursor {
			break
		}

		draft, ok, err := a.mapEvent(externalUserID, event)
		if err != nil {
			result.Malformed++
			continue
		}
		if !ok {
			// Unrecognized event kind. Dropped so feed evolution never
			// breaks ingestion.
			continue
		}
		result.Drafts = append(result.Drafts, draft)
	}

	return result, nil
}

// mapEvent matches one feed event kind onto the canonical activity type.
// ok=false marks the explicit ignored variant for unknown kinds.
func (a *GitHubAdapter) mapEvent(externalUserID string, event githubEvent) (domain.ActivityDraft, bool, error) {
	draft := domain.ActivityDraft{
		Source:     domain.SourceGitHub,
		Repository: event.Repo.Name,
		CreatedAt:  event.CreatedAt,
		Metadata:   map[string]string{"external_user": externalUserID, "event_id": event.ID},
	}

	switch event.Type {
	case "PushEvent":
		var payload githubPushPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return domain.ActivityDraft{}, false, err
		}
		draft.Type = domain.TypeCommit
		draft.Title = fmt.Sprintf("push %s", event.ID)
		if len(payload.Commits) > 0 {
			draft.Title = payload.Commits[0].Message
		}
		draft.Metadata["commit_count"] = fmt.Sprintf("%d", len(payload.Commits))
	case "PullRequestEvent":
		var payload githubPullRequestPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return domain.ActivityDraft{}, false, err
		}
		draft.Type = domain.TypePullRequest
		draft.Title = payload.PullRequest.Title
		if lang := payload.PullRequest.Base.Repo.Language; lang != "" {
			draft.Metadata[domain.MetadataLanguage] = lang
		}
	case "IssuesEvent":
		var payload githubIssuePayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return domain.ActivityDraft{}, false, err
		}
		draft.Type = domain.TypeIssue
		draft.Title = payload.Issue.Title
	case "ReleaseEvent":
		var payload githubReleasePayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return domain.ActivityDraft{}, false, err
		}
		draft.Type = domain.TypeRelease
		draft.Title = payload.Release.Name
		if draft.Title == "" {
			draft.Title = payload.Release.TagName
		}
	case "ForkEvent":
		draft.Type = domain.TypeFork
		draft.Title = "fork " + event.Repo.Name
	case "WatchEvent":
		draft.Type = domain.TypeStar
		draft.Title = "star " + event.Repo.Name
	default:
		return domain.ActivityDraft{}, false, nil
	}

	return draft, true, nil
}
