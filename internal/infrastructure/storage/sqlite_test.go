package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func insertItem(t *testing.T, store *Store, url, title string) domain.Item {
	t.Helper()

	item := domain.Item{
		Source:   "hackernews",
		URL:      url,
		Title:    title,
		Metadata: map[string]any{"score": 50},
	}
	if err := store.Insert(context.Background(), &item); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	return item
}

func TestInsertAssignsIDAndCreatedAt(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	item := insertItem(t, store, "https://example.com/a", "A")

	if item.ID == 0 {
		t.Fatalf("expected generated id")
	}
	if item.CreatedAt.IsZero() {
		t.Fatalf("expected created_at filled in")
	}
}

func TestInsertDuplicateURL(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	insertItem(t, store, "https://example.com/a", "A")

	dup := domain.Item{Source: "hackernews", URL: "https://example.com/a", Title: "A again"}
	err := store.Insert(context.Background(), &dup)
	if !errors.Is(err, ports.ErrDuplicateURL) {
		t.Fatalf("expected ErrDuplicateURL, got %v", err)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, url := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
		item := domain.Item{
			Source:    "hackernews",
			URL:       url,
			Title:     url,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Insert(ctx, &item); err != nil {
			t.Fatalf("Insert returned error: %v", err)
		}
	}

	items, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].URL != "https://example.com/3" || items[1].URL != "https://example.com/2" {
		t.Fatalf("unexpected order: %s, %s", items[0].URL, items[1].URL)
	}
	if items[0].Metadata == nil {
		t.Fatalf("expected metadata round-tripped")
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	item := insertItem(t, store, "https://example.com/a", "A")

	has, err := store.Has(ctx, item.ID)
	if err != nil {
		t.Fatalf("Has returned error: %v", err)
	}
	if has {
		t.Fatalf("expected no embedding yet")
	}

	vector := []float32{0.25, -1.5, 3.75}
	if err := store.InsertEmbedding(ctx, domain.Embedding{
		ItemID: item.ID,
		Dim:    len(vector),
		Vector: vector,
	}); err != nil {
		t.Fatalf("InsertEmbedding returned error: %v", err)
	}

	has, err = store.Has(ctx, item.ID)
	if err != nil {
		t.Fatalf("Has returned error: %v", err)
	}
	if !has {
		t.Fatalf("expected embedding present")
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All returned error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 embedding, got %d", len(all))
	}
	if all[0].ItemID != item.ID || all[0].Dim != 3 {
		t.Fatalf("unexpected embedding %+v", all[0])
	}
	for i, want := range vector {
		if all[0].Vector[i] != want {
			t.Fatalf("vector[%d] = %f, want %f", i, all[0].Vector[i], want)
		}
	}
}

func TestInsertEmbeddingTwiceKeepsFirst(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	item := insertItem(t, store, "https://example.com/a", "A")

	first := domain.Embedding{ItemID: item.ID, Dim: 2, Vector: []float32{1, 0}}
	second := domain.Embedding{ItemID: item.ID, Dim: 2, Vector: []float32{0, 1}}

	if err := store.InsertEmbedding(ctx, first); err != nil {
		t.Fatalf("first InsertEmbedding: %v", err)
	}
	if err := store.InsertEmbedding(ctx, second); err != nil {
		t.Fatalf("second InsertEmbedding should be ignored, got %v", err)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All returned error: %v", err)
	}
	if len(all) != 1 || all[0].Vector[0] != 1 {
		t.Fatalf("expected first embedding retained, got %+v", all)
	}
}

func TestEvaluationExistsAndIdempotentInsert(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	item := insertItem(t, store, "https://example.com/a", "A")

	exists, err := store.Exists(ctx, item.ID, domain.PersonaGenAINews)
	if err != nil {
		t.Fatalf("Exists returned error: %v", err)
	}
	if exists {
		t.Fatalf("expected no evaluation yet")
	}

	score := 80
	ev := domain.Evaluation{
		ItemID:   item.ID,
		Persona:  domain.PersonaGenAINews,
		Decision: domain.DecisionKeep,
		Score:    &score,
		Payload:  map[string]any{"topic": "tooling"},
	}
	if err := store.InsertEvaluation(ctx, ev); err != nil {
		t.Fatalf("InsertEvaluation returned error: %v", err)
	}

	// replay with a different decision must be ignored
	ev.Decision = domain.DecisionDrop
	if err := store.InsertEvaluation(ctx, ev); err != nil {
		t.Fatalf("replayed InsertEvaluation returned error: %v", err)
	}

	exists, err = store.Exists(ctx, item.ID, domain.PersonaGenAINews)
	if err != nil {
		t.Fatalf("Exists returned error: %v", err)
	}
	if !exists {
		t.Fatalf("expected evaluation present")
	}

	kept, err := store.KeptSince(ctx, domain.PersonaGenAINews, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("KeptSince returned error: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("expected the original keep retained, got %d rows", len(kept))
	}
	if kept[0].Evaluation.Decision != domain.DecisionKeep {
		t.Fatalf("expected first verdict kept, got %s", kept[0].Evaluation.Decision)
	}
}

func TestKeptSinceFiltersAndOrders(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	old := insertItemAt(t, store, "https://example.com/old", time.Now().UTC().Add(-48*time.Hour))
	lowItem := insertItemAt(t, store, "https://example.com/low", time.Now().UTC())
	highItem := insertItemAt(t, store, "https://example.com/high", time.Now().UTC())
	dropped := insertItemAt(t, store, "https://example.com/drop", time.Now().UTC())
	unscored := insertItemAt(t, store, "https://example.com/unscored", time.Now().UTC())

	low, high := 40, 95
	evals := []domain.Evaluation{
		{ItemID: old.ID, Persona: domain.PersonaGenAINews, Decision: domain.DecisionKeep, Score: &high},
		{ItemID: lowItem.ID, Persona: domain.PersonaGenAINews, Decision: domain.DecisionKeep, Score: &low},
		{ItemID: highItem.ID, Persona: domain.PersonaGenAINews, Decision: domain.DecisionKeep, Score: &high},
		{ItemID: dropped.ID, Persona: domain.PersonaGenAINews, Decision: domain.DecisionDrop, Score: &high},
		{ItemID: unscored.ID, Persona: domain.PersonaGenAINews, Decision: domain.DecisionKeep},
	}
	for _, ev := range evals {
		ev.Payload = map[string]any{}
		if err := store.InsertEvaluation(ctx, ev); err != nil {
			t.Fatalf("InsertEvaluation returned error: %v", err)
		}
	}

	kept, err := store.KeptSince(ctx, domain.PersonaGenAINews, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("KeptSince returned error: %v", err)
	}
	if len(kept) != 3 {
		t.Fatalf("expected 3 kept rows inside window, got %d", len(kept))
	}
	if kept[0].Item.URL != "https://example.com/high" {
		t.Fatalf("expected highest score first, got %s", kept[0].Item.URL)
	}
	if kept[1].Item.URL != "https://example.com/low" {
		t.Fatalf("expected scored before unscored, got %s", kept[1].Item.URL)
	}
	if kept[2].Evaluation.Score != nil {
		t.Fatalf("expected unscored row last, got %+v", kept[2].Evaluation)
	}
}

func insertItemAt(t *testing.T, store *Store, url string, createdAt time.Time) domain.Item {
	t.Helper()

	item := domain.Item{
		Source:    "hackernews",
		URL:       url,
		Title:     url,
		Metadata:  map[string]any{},
		CreatedAt: createdAt,
	}
	if err := store.Insert(context.Background(), &item); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	return item
}

func TestFloat32BytesRoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 1, -1, 3.14159, -2.5e-8}
	out := bytesToFloat32s(float32sToBytes(in))
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d vs %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("value %d mismatch: %f vs %f", i, in[i], out[i])
		}
	}
}
