package dedup

import (
	"context"
	"fmt"
	"log/slog"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/index"
	"NewsDigest/internal/ports"
)

// embedTextLimit caps the body text fed to the embedder. Shorter feature
// text keeps embedding calls fast without losing much signal.
const embedTextLimit = 600

// searchK is how many neighbors are retrieved; only the top-1 is inspected.
const searchK = 5

// Match identifies the nearest indexed neighbor of a candidate.
type Match struct {
	ItemID     int64
	Similarity float64
}

// Engine decides whether a candidate item is a semantic duplicate of an
// already-stored item. It owns the lifecycle of the persisted vector index.
type Engine struct {
	embeddings ports.EmbeddingStore
	embedder   ports.Embedder
	indexDir   string
	threshold  float64
	logger     *slog.Logger
}

// New wires the engine. threshold is the minimum cosine similarity for a
// duplicate verdict.
func New(embeddings ports.EmbeddingStore, embedder ports.Embedder, indexDir string, threshold float64, logger *slog.Logger) *Engine {
	return &Engine{
		embeddings: embeddings,
		embedder:   embedder,
		indexDir:   indexDir,
		threshold:  threshold,
		logger:     logger,
	}
}

// EmbedText derives the deterministic feature string an item is embedded
// from: title, URL, and at most the first 600 runes of body text.
func EmbedText(item domain.Item) string {
	text := item.Text
	if runes := []rune(text); len(runes) > embedTextLimit {
		text = string(runes[:embedTextLimit])
	}
	return item.Title + "\n" + item.URL + "\n" + text
}

// EnsureEmbedding stores an embedding for the item unless one exists.
// Idempotent: a second call for the same item is a no-op.
func (e *Engine) EnsureEmbedding(ctx context.Context, item domain.Item) error {
	exists, err := e.embeddings.Has(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("check embedding for item %d: %w", item.ID, err)
	}
	if exists {
		return nil
	}

	vec, err := e.embedder.Embed(ctx, EmbedText(item))
	if err != nil {
		return fmt.Errorf("embed item %d: %w", item.ID, err)
	}

	if err := e.embeddings.InsertEmbedding(ctx, domain.Embedding{
		ItemID: item.ID,
		Dim:    len(vec),
		Vector: vec,
	}); err != nil {
		return fmt.Errorf("store embedding for item %d: %w", item.ID, err)
	}
	return nil
}

// RebuildIndex reconstructs the vector index from every stored embedding and
// persists it. With zero embeddings nothing is written.
func (e *Engine) RebuildIndex(ctx context.Context) error {
	rows, err := e.embeddings.All(ctx)
	if err != nil {
		return fmt.Errorf("load embeddings: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	vectors := make([][]float32, len(rows))
	ids := make([]int64, len(rows))
	for i, row := range rows {
		vectors[i] = row.Vector
		ids[i] = row.ItemID
	}

	ix, err := index.Build(vectors, ids)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if ix == nil {
		return nil
	}

	if err := index.Save(ix, e.indexDir); err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	e.debug("index rebuilt", "vectors", ix.Len())
	return nil
}

// Classify reports whether the item duplicates an indexed item. With no
// persisted index the answer is conservatively "not a duplicate". Only the
// literal top-1 hit is inspected: a self-match (the candidate's own
// embedding may already be indexed) is never a duplicate signal, and the
// next-closest hit is not promoted in its place. The nearest match is
// returned even for non-duplicates, for observability.
func (e *Engine) Classify(ctx context.Context, item domain.Item) (bool, *Match, error) {
	ix, err := index.Load(e.indexDir)
	if err != nil {
		return false, nil, fmt.Errorf("load index: %w", err)
	}
	if ix == nil {
		return false, nil, nil
	}

	query, err := e.embedder.Embed(ctx, EmbedText(item))
	if err != nil {
		return false, nil, fmt.Errorf("embed candidate %d: %w", item.ID, err)
	}

	hits := ix.Search(query, searchK)
	if len(hits) == 0 {
		return false, nil, nil
	}

	nearest := &Match{ItemID: hits[0].ItemID, Similarity: hits[0].Similarity}
	if nearest.ItemID != item.ID && nearest.Similarity >= e.threshold {
		return true, nearest, nil
	}
	return false, nearest, nil
}

func (e *Engine) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
