package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, items map[int64]map[string]any) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, r *http.Request) {
		ids := make([]int64, 0, len(items))
		for id := range items {
			ids = append(ids, id)
		}
		json.NewEncoder(w).Encode(ids)
	})
	for id, payload := range items {
		payload := payload
		mux.HandleFunc(fmt.Sprintf("/item/%d.json", id), func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(payload)
		})
	}
	return httptest.NewServer(mux)
}

func TestListTopIDsAppliesLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]int64{1, 2, 3, 4, 5})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)

	ids, err := client.ListTopIDs(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListTopIDs returned error: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
}

func TestFetchStory(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, map[int64]map[string]any{
		42: {
			"id":          42,
			"type":        "story",
			"title":       "A story",
			"url":         "https://example.com/a",
			"by":          "alice",
			"score":       120,
			"descendants": 37,
			"time":        1700000000,
		},
	})
	defer server.Close()

	client := NewClient(server.URL, nil)

	story, err := client.FetchStory(context.Background(), 42)
	if err != nil {
		t.Fatalf("FetchStory returned error: %v", err)
	}
	if story == nil {
		t.Fatalf("expected a story")
	}
	if story.Title != "A story" || story.URL != "https://example.com/a" {
		t.Fatalf("unexpected story %+v", story)
	}
	if story.Score != 120 || story.Descendants != 37 {
		t.Fatalf("unexpected engagement %+v", story)
	}
	if story.Time.Unix() != 1700000000 {
		t.Fatalf("unexpected time %v", story.Time)
	}
}

func TestFetchStorySkipsNonStories(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, map[int64]map[string]any{
		1: {"id": 1, "type": "job", "title": "Hiring", "url": "https://example.com/j"},
		2: {"id": 2, "type": "story", "title": "Ask HN: no url"},
	})
	defer server.Close()

	client := NewClient(server.URL, nil)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		story, err := client.FetchStory(ctx, id)
		if err != nil {
			t.Fatalf("FetchStory(%d) returned error: %v", id, err)
		}
		if story != nil {
			t.Fatalf("expected nil for record %d, got %+v", id, story)
		}
	}
}

func TestFetchStoryNullRecord(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)

	story, err := client.FetchStory(context.Background(), 99)
	if err != nil {
		t.Fatalf("FetchStory returned error: %v", err)
	}
	if story != nil {
		t.Fatalf("expected nil for deleted record, got %+v", story)
	}
}

func TestFetchStoryErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	if _, err := client.FetchStory(context.Background(), 1); err == nil {
		t.Fatalf("expected error for server failure")
	}
}
