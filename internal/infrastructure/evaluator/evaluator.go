package evaluator

import (
	"context"
	"encoding/json"
	"fmt"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// promptTextLimit caps the body text included in the evaluation prompt.
const promptTextLimit = 1200

const genaiNewsSystem = `You are an evaluator for a daily GenAI/AI engineering news digest.
Return ONLY valid JSON matching this schema:
{
  "relevance_score": 0-100,
  "topic": "short label",
  "why_it_matters": "1-2 sentences",
  "target_audience": "who cares",
  "decision": "keep" or "drop"
}
Be strict: keep only high-signal items, drop vague/low-value items.
`

const productIdeasSystem = `You are an evaluator for product/startup ideas.
Return ONLY valid JSON matching this schema:
{
  "idea_type": "e.g. B2B SaaS, devtool, consumer",
  "problem_statement": "clear pain",
  "solution_summary": "clear solution",
  "maturity_level": "idea|prototype|market",
  "reusability_score": 0-100,
  "decision": "keep" or "drop"
}
Be strict: keep only strong, actionable ideas.
`

// scoreFields maps each persona to the payload field carrying its score.
var scoreFields = map[string]string{
	domain.PersonaGenAINews:    "relevance_score",
	domain.PersonaProductIdeas: "reusability_score",
}

var systemPrompts = map[string]string{
	domain.PersonaGenAINews:    genaiNewsSystem,
	domain.PersonaProductIdeas: productIdeasSystem,
}

// Evaluator scores items against persona profiles via a JSON-mode chat model.
type Evaluator struct {
	chat ports.ChatModel
}

var _ ports.Evaluator = (*Evaluator)(nil)

// New wires the chat model.
func New(chat ports.ChatModel) *Evaluator {
	return &Evaluator{chat: chat}
}

// Evaluate produces a validated verdict for one (persona, item) pair.
func (e *Evaluator) Evaluate(ctx context.Context, persona string, item domain.Item) (domain.Verdict, error) {
	system, ok := systemPrompts[persona]
	if !ok {
		return domain.Verdict{}, fmt.Errorf("unknown persona %s", persona)
	}

	raw, err := e.chat.ChatJSON(ctx, system, itemPrompt(item))
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("evaluate item %d persona %s: %w", item.ID, persona, err)
	}

	return verdictFromPayload(persona, raw)
}

func itemPrompt(item domain.Item) string {
	text := item.Text
	if runes := []rune(text); len(runes) > promptTextLimit {
		text = string(runes[:promptTextLimit])
	}

	meta, _ := json.Marshal(item.Metadata)
	return fmt.Sprintf(`Evaluate this item:

TITLE: %s
URL: %s
SOURCE: %s
TEXT: %s
METADATA: %s
`, item.Title, item.URL, item.Source, text, meta)
}

func verdictFromPayload(persona string, payload map[string]any) (domain.Verdict, error) {
	decision, _ := payload["decision"].(string)
	if decision != domain.DecisionKeep && decision != domain.DecisionDrop {
		return domain.Verdict{}, fmt.Errorf("persona %s: invalid decision %q", persona, decision)
	}

	verdict := domain.Verdict{Decision: decision, Payload: payload}

	if field := scoreFields[persona]; field != "" {
		score, err := intField(payload, field)
		if err != nil {
			return domain.Verdict{}, fmt.Errorf("persona %s: %w", persona, err)
		}
		if score < 0 || score > 100 {
			return domain.Verdict{}, fmt.Errorf("persona %s: %s %d out of range", persona, field, score)
		}
		verdict.Score = &score
	}

	return verdict, nil
}

func intField(payload map[string]any, field string) (int, error) {
	switch v := payload[field].(type) {
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("field %s is not an integer: %v", field, v)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("field %s missing or not numeric", field)
	}
}
