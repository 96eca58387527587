package dedup

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"NewsDigest/internal/domain"
)

type fakeEmbeddingStore struct {
	rows map[int64]domain.Embedding
}

func newFakeEmbeddingStore() *fakeEmbeddingStore {
	return &fakeEmbeddingStore{rows: map[int64]domain.Embedding{}}
}

func (s *fakeEmbeddingStore) Has(_ context.Context, itemID int64) (bool, error) {
	_, ok := s.rows[itemID]
	return ok, nil
}

func (s *fakeEmbeddingStore) InsertEmbedding(_ context.Context, emb domain.Embedding) error {
	if _, ok := s.rows[emb.ItemID]; ok {
		return nil
	}
	s.rows[emb.ItemID] = emb
	return nil
}

func (s *fakeEmbeddingStore) All(_ context.Context) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, 0, len(s.rows))
	for _, emb := range s.rows {
		out = append(out, emb)
	}
	return out, nil
}

// fakeEmbedder keys vectors by the title line of the feature text.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	title, _, _ := strings.Cut(text, "\n")
	vec, ok := e.vectors[title]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", title)
	}
	return vec, nil
}

func testItem(id int64, title string) domain.Item {
	return domain.Item{ID: id, Title: title, URL: "https://example.com/" + title}
}

func TestEmbedTextTruncatesBody(t *testing.T) {
	t.Parallel()

	item := domain.Item{
		Title: "Title",
		URL:   "https://example.com/x",
		Text:  strings.Repeat("a", 1000),
	}
	text := EmbedText(item)

	lines := strings.SplitN(text, "\n", 3)
	if len(lines) != 3 {
		t.Fatalf("expected three feature lines, got %d", len(lines))
	}
	if lines[0] != "Title" || lines[1] != "https://example.com/x" {
		t.Fatalf("unexpected feature prefix: %q %q", lines[0], lines[1])
	}
	if len([]rune(lines[2])) != 600 {
		t.Fatalf("expected body truncated to 600 runes, got %d", len([]rune(lines[2])))
	}
}

func TestEnsureEmbeddingIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeEmbeddingStore()
	embedder := &fakeEmbedder{vectors: map[string][]float32{"a": {1, 0}}}
	engine := New(store, embedder, t.TempDir(), 0.86, nil)

	item := testItem(1, "a")
	for i := 0; i < 3; i++ {
		if err := engine.EnsureEmbedding(context.Background(), item); err != nil {
			t.Fatalf("EnsureEmbedding returned error: %v", err)
		}
	}

	if embedder.calls != 1 {
		t.Fatalf("expected exactly one embed call, got %d", embedder.calls)
	}
	if len(store.rows) != 1 {
		t.Fatalf("expected one stored embedding, got %d", len(store.rows))
	}
}

func TestClassifyWithoutIndexIsNotDuplicate(t *testing.T) {
	t.Parallel()

	engine := New(newFakeEmbeddingStore(), &fakeEmbedder{}, t.TempDir(), 0.86, nil)

	isDup, match, err := engine.Classify(context.Background(), testItem(1, "a"))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if isDup || match != nil {
		t.Fatalf("expected non-duplicate with no index, got dup=%v match=%+v", isDup, match)
	}
}

func TestClassifyDetectsDuplicateAboveThreshold(t *testing.T) {
	t.Parallel()

	store := newFakeEmbeddingStore()
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"stored":    {1, 0},
		"candidate": {0.9, 0.43589}, // cosine ~0.90 against stored
	}}
	engine := New(store, embedder, t.TempDir(), 0.86, nil)

	ctx := context.Background()
	if err := engine.EnsureEmbedding(ctx, testItem(1, "stored")); err != nil {
		t.Fatalf("EnsureEmbedding: %v", err)
	}
	if err := engine.RebuildIndex(ctx); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}

	isDup, match, err := engine.Classify(ctx, testItem(2, "candidate"))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if !isDup {
		t.Fatalf("expected duplicate verdict")
	}
	if match == nil || match.ItemID != 1 {
		t.Fatalf("expected nearest item 1, got %+v", match)
	}
	if match.Similarity < 0.86 {
		t.Fatalf("similarity %f should exceed threshold", match.Similarity)
	}
}

func TestClassifyKeepsDistinctItem(t *testing.T) {
	t.Parallel()

	store := newFakeEmbeddingStore()
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"stored":    {1, 0},
		"candidate": {0.5, 0.86603}, // cosine ~0.50 against stored
	}}
	engine := New(store, embedder, t.TempDir(), 0.86, nil)

	ctx := context.Background()
	if err := engine.EnsureEmbedding(ctx, testItem(1, "stored")); err != nil {
		t.Fatalf("EnsureEmbedding: %v", err)
	}
	if err := engine.RebuildIndex(ctx); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}

	isDup, match, err := engine.Classify(ctx, testItem(2, "candidate"))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if isDup {
		t.Fatalf("expected non-duplicate, nearest %+v", match)
	}
	if match == nil || match.ItemID != 1 {
		t.Fatalf("expected nearest reported for observability, got %+v", match)
	}
}

func TestClassifyDuplicateAtExactThreshold(t *testing.T) {
	t.Parallel()

	// the cutoff is inclusive: a similarity exactly equal to the
	// threshold is a duplicate. Measure the similarity the engine
	// computes, then reuse it verbatim as the threshold.
	dir := t.TempDir()
	store := newFakeEmbeddingStore()
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"stored":    {1, 0},
		"candidate": {0.86, 0.5102},
	}}

	ctx := context.Background()
	measure := New(store, embedder, dir, 2.0, nil)
	if err := measure.EnsureEmbedding(ctx, testItem(1, "stored")); err != nil {
		t.Fatalf("EnsureEmbedding: %v", err)
	}
	if err := measure.RebuildIndex(ctx); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}

	isDup, match, err := measure.Classify(ctx, testItem(2, "candidate"))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if isDup {
		t.Fatalf("unreachable threshold must not flag a duplicate")
	}
	if match == nil {
		t.Fatalf("expected a nearest match to measure")
	}

	engine := New(store, embedder, dir, match.Similarity, nil)
	isDup, match, err = engine.Classify(ctx, testItem(2, "candidate"))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if !isDup {
		t.Fatalf("similarity %f equal to the threshold must read as duplicate", match.Similarity)
	}
}

func TestClassifyKeepsJustBelowThreshold(t *testing.T) {
	t.Parallel()

	store := newFakeEmbeddingStore()
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"stored":    {1, 0},
		"candidate": {0.85, 0.5268}, // cosine ~0.85 against stored
	}}
	engine := New(store, embedder, t.TempDir(), 0.86, nil)

	ctx := context.Background()
	if err := engine.EnsureEmbedding(ctx, testItem(1, "stored")); err != nil {
		t.Fatalf("EnsureEmbedding: %v", err)
	}
	if err := engine.RebuildIndex(ctx); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}

	isDup, match, err := engine.Classify(ctx, testItem(2, "candidate"))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if isDup {
		t.Fatalf("similarity just below the threshold must not be a duplicate, nearest %+v", match)
	}
	if match == nil || match.Similarity >= 0.86 || match.Similarity < 0.84 {
		t.Fatalf("expected nearest similarity just under the cutoff, got %+v", match)
	}
}

func TestClassifyIgnoresSelfMatch(t *testing.T) {
	t.Parallel()

	// item 1's own embedding is indexed and item 2 sits above the
	// threshold; only the literal top-1 (itself) is inspected, so item 1
	// must not be flagged against item 2
	store := newFakeEmbeddingStore()
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"one": {1, 0},
		"two": {0.95, 0.31225},
	}}
	engine := New(store, embedder, t.TempDir(), 0.86, nil)

	ctx := context.Background()
	for id, title := range map[int64]string{1: "one", 2: "two"} {
		if err := engine.EnsureEmbedding(ctx, testItem(id, title)); err != nil {
			t.Fatalf("EnsureEmbedding: %v", err)
		}
	}
	if err := engine.RebuildIndex(ctx); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}

	isDup, match, err := engine.Classify(ctx, testItem(1, "one"))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if isDup {
		t.Fatalf("self-match must not be a duplicate signal, got %+v", match)
	}
	if match == nil || match.ItemID != 1 {
		t.Fatalf("expected top-1 to be the item itself, got %+v", match)
	}
}

func TestRebuildIndexWithNoEmbeddingsIsNoOp(t *testing.T) {
	t.Parallel()

	engine := New(newFakeEmbeddingStore(), &fakeEmbedder{}, t.TempDir(), 0.86, nil)
	if err := engine.RebuildIndex(context.Background()); err != nil {
		t.Fatalf("RebuildIndex returned error: %v", err)
	}
}
