package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// Entry is one kept item inside a digest artifact.
type Entry struct {
	Title      string         `json:"title"`
	URL        string         `json:"url"`
	Score      *int           `json:"score"`
	Summary    string         `json:"summary"`
	Evaluation map[string]any `json:"evaluation"`
	Metadata   map[string]any `json:"metadata"`
}

// Document is the JSON digest artifact for one persona.
type Document struct {
	Persona     string  `json:"persona"`
	Date        string  `json:"date"`
	WindowHours int     `json:"window_hours"`
	CutoffUTC   string  `json:"cutoff_utc"`
	Count       int     `json:"count"`
	Items       []Entry `json:"items"`
}

// Artifact reports where a persona's digest was written.
type Artifact struct {
	Persona  string
	Kept     int
	JSONPath string
	MDPath   string
}

// Builder writes per-persona digest artifacts (JSON plus a companion
// Markdown rendering) from kept evaluations within the time window.
type Builder struct {
	evaluations ports.EvaluationStore
	outDir      string
	windowHours int
	logger      *slog.Logger
}

// NewBuilder wires the evaluation store and output settings.
func NewBuilder(evaluations ports.EvaluationStore, outDir string, windowHours int, logger *slog.Logger) *Builder {
	if windowHours <= 0 {
		windowHours = 24
	}
	return &Builder{
		evaluations: evaluations,
		outDir:      outDir,
		windowHours: windowHours,
		logger:      logger,
	}
}

// BuildForPersona assembles and writes both artifacts for one persona.
func (b *Builder) BuildForPersona(ctx context.Context, persona string, now time.Time) (Artifact, error) {
	if err := os.MkdirAll(b.outDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create output dir: %w", err)
	}

	cutoff := now.UTC().Add(-time.Duration(b.windowHours) * time.Hour)

	rows, err := b.evaluations.KeptSince(ctx, persona, cutoff)
	if err != nil {
		return Artifact{}, fmt.Errorf("load kept evaluations for %s: %w", persona, err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			Title:      row.Item.Title,
			URL:        row.Item.URL,
			Score:      row.Evaluation.Score,
			Summary:    summaryFor(persona, row.Evaluation.Payload),
			Evaluation: row.Evaluation.Payload,
			Metadata:   row.Item.Metadata,
		})
	}

	date := now.Format("2006-01-02")
	doc := Document{
		Persona:     persona,
		Date:        date,
		WindowHours: b.windowHours,
		CutoffUTC:   cutoff.Format("2006-01-02T15:04:05"),
		Count:       len(entries),
		Items:       entries,
	}

	slug := strings.ToLower(persona)
	jsonPath := filepath.Join(b.outDir, fmt.Sprintf("%s_%s.json", slug, date))
	mdPath := filepath.Join(b.outDir, fmt.Sprintf("%s_%s.md", slug, date))

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal digest: %w", err)
	}
	if err := os.WriteFile(jsonPath, raw, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write digest json: %w", err)
	}

	if err := os.WriteFile(mdPath, []byte(renderMarkdown(doc)), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write digest markdown: %w", err)
	}

	b.debug("digest built", "persona", persona, "kept", len(entries), "json", jsonPath)

	return Artifact{Persona: persona, Kept: len(entries), JSONPath: jsonPath, MDPath: mdPath}, nil
}

// ReadDocument loads a previously written JSON artifact.
func ReadDocument(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read digest %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("parse digest %s: %w", path, err)
	}
	return doc, nil
}

// summaryFor picks a summary with no extra model call: prefer an explicit
// summary field, then the persona's best fallback signal.
func summaryFor(persona string, payload map[string]any) string {
	candidates := []string{"summary"}
	if persona == domain.PersonaGenAINews {
		candidates = append(candidates, "topic")
	} else {
		candidates = append(candidates, "solution_summary")
	}

	for _, field := range candidates {
		if v, ok := payload[field].(string); ok {
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func renderMarkdown(doc Document) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s Digest - %s\n", doc.Persona, doc.Date)
	fmt.Fprintf(&sb, "_Window: last %d hours_\n\n", doc.WindowHours)

	if len(doc.Items) == 0 {
		sb.WriteString("_No items kept today._\n")
		return sb.String()
	}

	for i, entry := range doc.Items {
		fmt.Fprintf(&sb, "## %d. %s\n", i+1, entry.Title)
		fmt.Fprintf(&sb, "- Link: %s\n", entry.URL)
		if entry.Score != nil {
			fmt.Fprintf(&sb, "- Score: %d\n", *entry.Score)
		}
		if entry.Summary != "" {
			fmt.Fprintf(&sb, "- Summary: %s\n", entry.Summary)
		}

		if badge := engagementBadge(entry.Metadata); badge != "" {
			fmt.Fprintf(&sb, "- Engagement: %s\n", badge)
		}

		switch doc.Persona {
		case domain.PersonaGenAINews:
			fmt.Fprintf(&sb, "- Topic: %s\n", stringField(entry.Evaluation, "topic"))
			fmt.Fprintf(&sb, "- Why it matters: %s\n", stringField(entry.Evaluation, "why_it_matters"))
			fmt.Fprintf(&sb, "- Audience: %s\n", stringField(entry.Evaluation, "target_audience"))
		case domain.PersonaProductIdeas:
			fmt.Fprintf(&sb, "- Idea type: %s\n", stringField(entry.Evaluation, "idea_type"))
			fmt.Fprintf(&sb, "- Problem: %s\n", stringField(entry.Evaluation, "problem_statement"))
			fmt.Fprintf(&sb, "- Solution: %s\n", stringField(entry.Evaluation, "solution_summary"))
			fmt.Fprintf(&sb, "- Maturity: %s\n", stringField(entry.Evaluation, "maturity_level"))
		}

		sb.WriteString("\n---\n")
	}

	return sb.String()
}

func engagementBadge(meta map[string]any) string {
	points := firstNumber(meta, "score", "points")
	comments := firstNumber(meta, "comments", "descendants")

	var parts []string
	if points != nil {
		parts = append(parts, fmt.Sprintf("points %d", *points))
	}
	if comments != nil {
		parts = append(parts, fmt.Sprintf("comments %d", *comments))
	}
	return strings.Join(parts, " | ")
}

func firstNumber(meta map[string]any, fields ...string) *int {
	for _, field := range fields {
		switch v := meta[field].(type) {
		case int:
			return &v
		case int64:
			n := int(v)
			return &n
		case float64:
			n := int(v)
			return &n
		}
	}
	return nil
}

func stringField(payload map[string]any, field string) string {
	if v, ok := payload[field].(string); ok {
		return v
	}
	return ""
}

func (b *Builder) debug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}
