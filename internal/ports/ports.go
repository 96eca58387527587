package ports

import (
	"context"
	"errors"
	"time"

	"NewsDigest/internal/domain"
)

// ErrDuplicateURL is returned by ItemStore.Insert when the URL already exists.
var ErrDuplicateURL = errors.New("item url already exists")

// FeedStory is one raw record pulled from an upstream feed. Only records
// of type "story" that carry a URL make it into the store.
type FeedStory struct {
	ID          int64
	Title       string
	URL         string
	Text        string
	By          string
	Score       int
	Descendants int
	Time        time.Time
}

// FeedSource pulls candidate stories from an upstream feed.
type FeedSource interface {
	ListTopIDs(ctx context.Context, limit int) ([]int64, error)
	FetchStory(ctx context.Context, id int64) (*FeedStory, error)
}

// ItemStore persists ingested items.
type ItemStore interface {
	Insert(ctx context.Context, item *domain.Item) error
	Recent(ctx context.Context, limit int) ([]domain.Item, error)
}

// EmbeddingStore persists one embedding per item.
type EmbeddingStore interface {
	Has(ctx context.Context, itemID int64) (bool, error)
	InsertEmbedding(ctx context.Context, emb domain.Embedding) error
	All(ctx context.Context) ([]domain.Embedding, error)
}

// EvaluationStore persists persona verdicts.
type EvaluationStore interface {
	Exists(ctx context.Context, itemID int64, persona string) (bool, error)
	InsertEvaluation(ctx context.Context, ev domain.Evaluation) error
	KeptSince(ctx context.Context, persona string, cutoff time.Time) ([]domain.EvaluatedItem, error)
}

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChatModel answers a system+user prompt with a JSON object.
type ChatModel interface {
	ChatJSON(ctx context.Context, system, user string) (map[string]any, error)
}

// Evaluator produces a verdict for one (persona, item) pair.
type Evaluator interface {
	Evaluate(ctx context.Context, persona string, item domain.Item) (domain.Verdict, error)
}

// Notifier delivers a rendered digest message to the outbound channel.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// PageEnricher extracts body text from a story's web page.
type PageEnricher interface {
	ExtractText(ctx context.Context, pageURL string) (string, error)
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
