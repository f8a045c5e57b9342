// Package journal reads user journal entries and completed-project counts
// from the companion journal service over HTTP.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"example.com/devledger/internal/domain"
)

const requestTimeout = 10 * time.Second

// Client implements domain.JournalReader and domain.ProjectCounter against
// the journal service REST API. Both reads are best-effort collaborators;
// callers decide whether a failure is fatal.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client with sane defaults.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

type entryPayload struct {
	UserID             string    `json:"user_id"`
	Date               time.Time `json:"date"`
	Achievements       []string  `json:"achievements"`
	Challenges         []string  `json:"challenges"`
	Mood               string    `json:"mood"`
	ProductivityRating int       `json:"productivity_rating"`
}

// EntriesInRange returns journal entries for the user within [start, end).
func (c *Client) EntriesInRange(ctx context.Context, userID string, start, end time.Time) ([]domain.JournalEntry, error) {
	endpoint := fmt.Sprintf("%s/v1/users/%s/entries?%s", c.baseURL, url.PathEscape(userID), rangeQuery(start, end))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("journal entries: status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Entries []entryPayload `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	entries := make([]domain.JournalEntry, 0, len(payload.Entries))
	for _, e := range payload.Entries {
		entries = append(entries, domain.JournalEntry{
			UserID:             e.UserID,
			Date:               e.Date,
			Achievements:       e.Achievements,
			Challenges:         e.Challenges,
			Mood:               e.Mood,
			ProductivityRating: e.ProductivityRating,
		})
	}
	return entries, nil
}

// CompletedProjects returns the number of projects the user completed within
// [start, end).
func (c *Client) CompletedProjects(ctx context.Context, userID string, start, end time.Time) (int, error) {
	endpoint := fmt.Sprintf("%s/v1/users/%s/projects/completed?%s", c.baseURL, url.PathEscape(userID), rangeQuery(start, end))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("completed projects: status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}
	return payload.Count, nil
}

func rangeQuery(start, end time.Time) string {
	values := url.Values{}
	values.Set("start", start.UTC().Format(time.RFC3339))
	values.Set("end", end.UTC().Format(time.RFC3339))
	return values.Encode()
}
