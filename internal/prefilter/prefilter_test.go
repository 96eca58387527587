package prefilter

import (
	"testing"

	"NewsDigest/internal/domain"
)

func item(title string, score int) domain.Item {
	return domain.Item{
		Title:    title,
		Metadata: map[string]any{"score": score},
	}
}

func TestApplyDropsEmptyTitles(t *testing.T) {
	t.Parallel()

	rules := Rules{}
	kept := rules.Apply([]domain.Item{{Title: "   "}, item("Real story", 50)})
	if len(kept) != 1 || kept[0].Title != "Real story" {
		t.Fatalf("expected only the titled item, got %+v", kept)
	}
}

func TestApplyEnforcesMinScore(t *testing.T) {
	t.Parallel()

	rules := Rules{MinScore: 30}
	kept := rules.Apply([]domain.Item{item("low", 10), item("high", 45)})
	if len(kept) != 1 || kept[0].Title != "high" {
		t.Fatalf("expected only the high-score item, got %+v", kept)
	}
}

func TestApplyKeepsItemsWithoutScore(t *testing.T) {
	t.Parallel()

	// no score in metadata means the engagement rule cannot apply
	rules := Rules{MinScore: 30}
	kept := rules.Apply([]domain.Item{{Title: "no metadata"}})
	if len(kept) != 1 {
		t.Fatalf("expected unscored item kept, got %+v", kept)
	}
}

func TestApplyBlocklistMatchesCaseInsensitive(t *testing.T) {
	t.Parallel()

	rules := Rules{Blocklist: []string{"hiring"}}
	kept := rules.Apply([]domain.Item{
		item("Who is HIRING this month", 100),
		item("New database release", 100),
	})
	if len(kept) != 1 || kept[0].Title != "New database release" {
		t.Fatalf("expected blocklisted item dropped, got %+v", kept)
	}
}

func TestApplyKeywordRequirementSearchesTitleAndText(t *testing.T) {
	t.Parallel()

	rules := Rules{RequireKeywords: true, Keywords: []string{"llm"}}

	inTitle := item("LLM inference tricks", 50)
	inText := item("Serving models", 50)
	inText.Text = "Notes on llm batching"
	neither := item("Gardening tips", 50)

	kept := rules.Apply([]domain.Item{inTitle, inText, neither})
	if len(kept) != 2 {
		t.Fatalf("expected 2 keyword matches, got %+v", kept)
	}
}

func TestApplyPreservesOrder(t *testing.T) {
	t.Parallel()

	rules := Rules{}
	kept := rules.Apply([]domain.Item{item("a", 1), item("b", 2), item("c", 3)})
	if len(kept) != 3 || kept[0].Title != "a" || kept[2].Title != "c" {
		t.Fatalf("expected input order preserved, got %+v", kept)
	}
}
