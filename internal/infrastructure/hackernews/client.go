package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"NewsDigest/internal/feed"
	"NewsDigest/internal/ports"
)

const defaultBaseURL = "https://hacker-news.firebaseio.com/v0"

// fetchInterval spaces successive story fetches as a courtesy to the API,
// not for correctness.
const fetchInterval = 200 * time.Millisecond

// Client pulls top stories from the Hacker News Firebase API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

var _ feed.Source = (*Client)(nil)

// NewClient wires an HTTP client; baseURL defaults to the public API.
func NewClient(baseURL string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		http:    client,
		limiter: rate.NewLimiter(rate.Every(fetchInterval), 1),
	}
}

// Name identifies the source inside the feed registry.
func (c *Client) Name() string {
	return "hackernews"
}

// ListTopIDs returns up to limit ids from the top-stories listing.
func (c *Client) ListTopIDs(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	if err := c.get(ctx, c.baseURL+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("list top stories: %w", err)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type storyPayload struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	By          string `json:"by"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Time        int64  `json:"time"`
}

// FetchStory loads one item. Records that are not stories, or stories
// without an outbound URL (Ask HN etc.), yield nil.
func (c *Client) FetchStory(ctx context.Context, id int64) (*ports.FeedStory, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var payload *storyPayload
	if err := c.get(ctx, fmt.Sprintf("%s/item/%d.json", c.baseURL, id), &payload); err != nil {
		return nil, fmt.Errorf("fetch story %d: %w", id, err)
	}

	if payload == nil || payload.Type != "story" || payload.URL == "" {
		return nil, nil
	}

	return &ports.FeedStory{
		ID:          payload.ID,
		Title:       payload.Title,
		URL:         payload.URL,
		Text:        payload.Text,
		By:          payload.By,
		Score:       payload.Score,
		Descendants: payload.Descendants,
		Time:        time.Unix(payload.Time, 0).UTC(),
	}, nil
}

func (c *Client) get(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
