package prefilter

import (
	"strings"

	"NewsDigest/internal/domain"
)

// Rules is the cheap filter applied before any model call: blocklist,
// engagement minimum, and an optional keyword requirement.
type Rules struct {
	MinScore        int
	RequireKeywords bool
	Keywords        []string
	Blocklist       []string
}

// Apply keeps items that pass every rule, preserving input order.
func (r Rules) Apply(items []domain.Item) []domain.Item {
	kept := make([]domain.Item, 0, len(items))

	for _, it := range items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}

		if len(r.Blocklist) > 0 && containsAny(title, r.Blocklist) {
			continue
		}

		// engagement threshold lives in source metadata
		if score, ok := metadataScore(it.Metadata); ok && score < r.MinScore {
			continue
		}

		if r.RequireKeywords && len(r.Keywords) > 0 {
			hay := title
			if it.Text != "" {
				hay += " " + it.Text
			}
			if !containsAny(hay, r.Keywords) {
				continue
			}
		}

		kept = append(kept, it)
	}

	return kept
}

func containsAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, term := range terms {
		if term != "" && strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func metadataScore(meta map[string]any) (int, bool) {
	if meta == nil {
		return 0, false
	}
	switch v := meta["score"].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
