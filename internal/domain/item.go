package domain

import "time"

// Item is a deduplicated content record. The canonical URL is the sole
// identity key: ingesting an already-seen URL is rejected, never merged.
type Item struct {
	ID          int64
	Source      string
	URL         string
	Title       string
	Text        string
	PublishedAt time.Time
	Metadata    map[string]any
	CreatedAt   time.Time
}

// Embedding is the fixed-length vector derived from an item's content.
// Exactly one exists per item; it is created lazily and never updated.
type Embedding struct {
	ItemID    int64
	Dim       int
	Vector    []float32
	CreatedAt time.Time
}

// Decision values stored on evaluations.
const (
	DecisionKeep = "keep"
	DecisionDrop = "drop"
)

// Persona tags for the enabled evaluation profiles.
const (
	PersonaGenAINews    = "GENAI_NEWS"
	PersonaProductIdeas = "PRODUCT_IDEAS"
)

// Verdict is the structured result of evaluating one item for one persona.
type Verdict struct {
	Decision string
	Score    *int
	Payload  map[string]any
}

// Evaluation persists a verdict for one (item, persona) pair.
type Evaluation struct {
	ID        int64
	ItemID    int64
	Persona   string
	Decision  string
	Score     *int
	Payload   map[string]any
	CreatedAt time.Time
}

// EvaluatedItem joins an evaluation with its item for digest building.
type EvaluatedItem struct {
	Item       Item
	Evaluation Evaluation
}
