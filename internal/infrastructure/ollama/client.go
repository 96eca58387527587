package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"NewsDigest/internal/config"
	"NewsDigest/internal/ports"
)

// Chat answers can take minutes when the model is cold-loading; embeddings
// are much cheaper.
const (
	embedTimeout = 2 * time.Minute
	chatTimeout  = 10 * time.Minute
)

var jsonBlockExpr = regexp.MustCompile(`(?s)\{.*\}`)

// Client talks to a local Ollama server for embeddings and JSON-mode chat.
type Client struct {
	baseURL     string
	chatModel   string
	embedModel  string
	temperature float64
	embedHTTP   *http.Client
	chatHTTP    *http.Client
}

var _ ports.Embedder = (*Client)(nil)
var _ ports.ChatModel = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.OllamaConfig) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		chatModel:   cfg.ChatModel,
		embedModel:  cfg.EmbedModel,
		temperature: cfg.Temperature,
		embedHTTP:   &http.Client{Timeout: embedTimeout},
		chatHTTP:    &http.Client{Timeout: chatTimeout},
	}
}

// Embed maps text to the embedding model's fixed-length vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := map[string]any{
		"model":  c.embedModel,
		"prompt": text,
	}

	var resp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := c.post(ctx, c.embedHTTP, "/api/embeddings", payload, &resp); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty vector from model %s", c.embedModel)
	}
	return resp.Embedding, nil
}

// ChatJSON sends a system+user prompt and parses the reply as a JSON
// object. Models occasionally wrap the object in prose; the first {...}
// block is extracted as a fallback.
func (c *Client) ChatJSON(ctx context.Context, system, user string) (map[string]any, error) {
	payload := map[string]any{
		"model":  c.chatModel,
		"stream": false,
		"format": "json",
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user + "\nReturn ONLY JSON."},
		},
		"options": map[string]any{"temperature": c.temperature},
	}

	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := c.post(ctx, c.chatHTTP, "/api/chat", payload, &resp); err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	return extractJSON(resp.Message.Content)
}

func extractJSON(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}

	block := jsonBlockExpr.FindString(text)
	if block == "" {
		return nil, fmt.Errorf("model did not return JSON: %s", truncate(text, 2000))
	}
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		return nil, fmt.Errorf("parse JSON block: %w", err)
	}
	return out, nil
}

// Ping verifies the server is reachable by listing installed models.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	resp, err := c.embedHTTP.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned %s", resp.Status)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (c *Client) post(ctx context.Context, client *http.Client, path string, payload, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
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
