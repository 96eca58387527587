package feed

import (
	"context"
	"testing"

	"NewsDigest/internal/ports"
)

type stubSource struct {
	name string
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) ListTopIDs(context.Context, int) ([]int64, error) {
	return nil, nil
}

func (s *stubSource) FetchStory(context.Context, int64) (*ports.FeedStory, error) {
	return nil, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register(&stubSource{name: "hackernews"})

	source, err := registry.Resolve("hackernews")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if source.Name() != "hackernews" {
		t.Fatalf("unexpected source %s", source.Name())
	}
}

func TestRegistryResolveUnknown(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if _, err := registry.Resolve("lobsters"); err == nil {
		t.Fatalf("expected error for unregistered source")
	}
}

func TestRegistryRegisterReplaces(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	first := &stubSource{name: "hackernews"}
	second := &stubSource{name: "hackernews"}
	registry.Register(first)
	registry.Register(second)

	source, err := registry.Resolve("hackernews")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if source != second {
		t.Fatalf("expected later registration to win")
	}
}
