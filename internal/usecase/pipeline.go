package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsDigest/internal/dedup"
	"NewsDigest/internal/digest"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/prefilter"
	"NewsDigest/internal/runlock"
)

// Summary reports what one pipeline run did.
type Summary struct {
	Ingested           int
	IngestSkipped      int
	Considered         int
	AfterPrefilter     int
	AfterDedup         int
	EvaluationsCreated int
	Digests            []digest.Artifact
}

// PipelineDeps wires all collaborators into the orchestration pipeline.
type PipelineDeps struct {
	Lock          *runlock.Lock
	Source        ports.FeedSource
	SourceTag     string
	Items         ports.ItemStore
	Evaluations   ports.EvaluationStore
	Dedup         *dedup.Engine
	Evaluator     ports.Evaluator
	DigestBuilder *digest.Builder
	Notifier      ports.Notifier
	Enricher      ports.PageEnricher
	RenderDigests func(docs []digest.Document) string
	Personas      []string
	Prefilter     prefilter.Rules
	IngestLimit   int
	RecentLimit   int
	EvalMaxItems  int
	Logger        *slog.Logger
}

// Pipeline drives one full digest run: ingest, prefilter, dedup, evaluate,
// build digests, deliver. It is the only component that sees the whole flow.
type Pipeline struct {
	deps PipelineDeps
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.IngestLimit <= 0 {
		deps.IngestLimit = 30
	}
	if deps.RecentLimit <= 0 {
		deps.RecentLimit = 100
	}
	if deps.EvalMaxItems <= 0 {
		deps.EvalMaxItems = 10
	}
	return &Pipeline{deps: deps}
}

// Run executes the pipeline once under the run lock. Ingestion-source and
// evaluation failures abort the run; delivery failures and per-item insert
// conflicts do not.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	if err := p.deps.Lock.Acquire(); err != nil {
		return Summary{}, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := p.deps.Lock.Release(); err != nil {
			p.warn("release run lock", "error", err)
		}
	}()

	var summary Summary

	ingested, skipped, err := p.ingest(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary.Ingested = ingested
	summary.IngestSkipped = skipped

	recent, err := p.deps.Items.Recent(ctx, p.deps.RecentLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("load recent items: %w", err)
	}
	summary.Considered = len(recent)

	prefiltered := p.deps.Prefilter.Apply(recent)
	summary.AfterPrefilter = len(prefiltered)

	candidates := prefiltered
	if len(candidates) > p.deps.EvalMaxItems {
		candidates = candidates[:p.deps.EvalMaxItems]
	}

	survivors, err := p.dedupe(ctx, candidates)
	if err != nil {
		return Summary{}, err
	}
	summary.AfterDedup = len(survivors)

	summary.EvaluationsCreated, err = p.evaluate(ctx, survivors)
	if err != nil {
		return Summary{}, err
	}

	now := time.Now()
	for _, persona := range p.deps.Personas {
		artifact, err := p.deps.DigestBuilder.BuildForPersona(ctx, persona, now)
		if err != nil {
			return Summary{}, fmt.Errorf("build digest for %s: %w", persona, err)
		}
		summary.Digests = append(summary.Digests, artifact)
	}

	// delivery failures must not fail the run
	if err := p.deliver(ctx, summary.Digests); err != nil {
		p.warn("digest delivery failed", "error", err)
	}

	p.info("run complete",
		"ingested", summary.Ingested,
		"skipped", summary.IngestSkipped,
		"considered", summary.Considered,
		"after_prefilter", summary.AfterPrefilter,
		"after_dedup", summary.AfterDedup,
		"evaluations_created", summary.EvaluationsCreated)

	return summary, nil
}

// ingest pulls candidate stories and stores the new ones. Per-item insert
// conflicts are skipped; listing and fetch errors propagate.
func (p *Pipeline) ingest(ctx context.Context) (inserted, skipped int, err error) {
	ids, err := p.deps.Source.ListTopIDs(ctx, p.deps.IngestLimit)
	if err != nil {
		return 0, 0, fmt.Errorf("list feed ids: %w", err)
	}

	for _, id := range ids {
		story, err := p.deps.Source.FetchStory(ctx, id)
		if err != nil {
			return inserted, skipped, fmt.Errorf("fetch story %d: %w", id, err)
		}
		if story == nil {
			continue
		}

		text := story.Text
		if text == "" && p.deps.Enricher != nil {
			if extracted, err := p.deps.Enricher.ExtractText(ctx, story.URL); err != nil {
				p.debug("page enrichment failed", "url", story.URL, "error", err)
			} else {
				text = extracted
			}
		}

		item := domain.Item{
			Source:      p.deps.SourceTag,
			URL:         story.URL,
			Title:       story.Title,
			Text:        text,
			PublishedAt: story.Time,
			Metadata: map[string]any{
				"hn_id":       story.ID,
				"score":       story.Score,
				"by":          story.By,
				"descendants": story.Descendants,
			},
		}

		switch err := p.deps.Items.Insert(ctx, &item); {
		case err == nil:
			inserted++
		case errors.Is(err, ports.ErrDuplicateURL):
			skipped++
			p.debug("story already ingested", "url", story.URL)
		default:
			skipped++
			p.warn("insert item failed", "url", story.URL, "error", err)
		}
	}

	return inserted, skipped, nil
}

// dedupe ensures embeddings exist, rebuilds the index once, and drops
// candidates classified as semantic duplicates.
func (p *Pipeline) dedupe(ctx context.Context, candidates []domain.Item) ([]domain.Item, error) {
	for _, item := range candidates {
		if err := p.deps.Dedup.EnsureEmbedding(ctx, item); err != nil {
			return nil, err
		}
	}

	if err := p.deps.Dedup.RebuildIndex(ctx); err != nil {
		return nil, err
	}

	survivors := make([]domain.Item, 0, len(candidates))
	for _, item := range candidates {
		isDup, match, err := p.deps.Dedup.Classify(ctx, item)
		if err != nil {
			return nil, err
		}
		if isDup {
			p.info("dedup drop",
				"item", item.ID,
				"nearest", match.ItemID,
				"similarity", fmt.Sprintf("%.2f", match.Similarity))
			continue
		}
		survivors = append(survivors, item)
	}

	return survivors, nil
}

// evaluate runs every enabled persona over each survivor, skipping pairs
// that already have a stored verdict.
func (p *Pipeline) evaluate(ctx context.Context, items []domain.Item) (int, error) {
	created := 0

	for _, item := range items {
		for _, persona := range p.deps.Personas {
			exists, err := p.deps.Evaluations.Exists(ctx, item.ID, persona)
			if err != nil {
				return created, fmt.Errorf("check evaluation item %d persona %s: %w", item.ID, persona, err)
			}
			if exists {
				continue
			}

			verdict, err := p.deps.Evaluator.Evaluate(ctx, persona, item)
			if err != nil {
				return created, err
			}

			if err := p.deps.Evaluations.InsertEvaluation(ctx, domain.Evaluation{
				ItemID:   item.ID,
				Persona:  persona,
				Decision: verdict.Decision,
				Score:    verdict.Score,
				Payload:  verdict.Payload,
			}); err != nil {
				return created, fmt.Errorf("store evaluation item %d persona %s: %w", item.ID, persona, err)
			}
			created++
		}
	}

	return created, nil
}

func (p *Pipeline) deliver(ctx context.Context, artifacts []digest.Artifact) error {
	if p.deps.Notifier == nil || p.deps.RenderDigests == nil || len(artifacts) == 0 {
		return nil
	}

	docs := make([]digest.Document, 0, len(artifacts))
	for _, artifact := range artifacts {
		doc, err := digest.ReadDocument(artifact.JSONPath)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	return p.deps.Notifier.Send(ctx, p.deps.RenderDigests(docs))
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Debug(msg, args...)
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Warn(msg, args...)
	}
}
