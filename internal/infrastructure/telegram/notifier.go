package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsDigest/internal/config"
	"NewsDigest/internal/ports"
)

// Notifier sends digest messages to a Telegram chat via the bot API.
type Notifier struct {
	enabled   bool
	botToken  string
	chatID    string
	parseMode string
	client    *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier builds a notifier from configuration.
func NewNotifier(cfg config.TelegramConfig) *Notifier {
	parseMode := cfg.ParseMode
	if parseMode == "" {
		parseMode = "MarkdownV2"
	}
	return &Notifier{
		enabled:   cfg.Enabled,
		botToken:  cfg.BotToken,
		chatID:    cfg.ChatID,
		parseMode: parseMode,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Send posts the message. A disabled notifier is a silent no-op; an enabled
// one without credentials is a configuration error.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if !n.enabled {
		return nil
	}
	if n.botToken == "" || n.chatID == "" {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"chat_id":                  n.chatID,
		"text":                     text,
		"parse_mode":               n.parseMode,
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	return nil
}
