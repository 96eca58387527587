package feed

import (
	"fmt"

	"NewsDigest/internal/ports"
)

// Source is one upstream feed implementation (Hacker News today; the
// registry leaves room for Lobsters, RSS, etc.).
type Source interface {
	Name() string
	ports.FeedSource
}

// Registry keeps a mapping from feed-source names to their implementations.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

// Register adds or replaces a feed source implementation.
func (r *Registry) Register(source Source) {
	if r.sources == nil {
		r.sources = map[string]Source{}
	}
	r.sources[source.Name()] = source
}

// Resolve returns a feed source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Source, error) {
	if source, ok := r.sources[name]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("feed source %s is not registered", name)
}
