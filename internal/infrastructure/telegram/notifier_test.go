package telegram

import (
	"context"
	"testing"

	"NewsDigest/internal/config"
)

func TestSendDisabledIsNoOp(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier(config.TelegramConfig{Enabled: false})
	if err := notifier.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("disabled notifier must be a no-op, got %v", err)
	}
}

func TestSendEnabledWithoutCredentialsFails(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier(config.TelegramConfig{Enabled: true})
	if err := notifier.Send(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

func TestNewNotifierDefaultsParseMode(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier(config.TelegramConfig{})
	if notifier.parseMode != "MarkdownV2" {
		t.Fatalf("expected MarkdownV2 default, got %s", notifier.parseMode)
	}
}
