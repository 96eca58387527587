package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"NewsDigest/internal/config"
	"NewsDigest/internal/dedup"
	"NewsDigest/internal/digest"
	"NewsDigest/internal/feed"
	"NewsDigest/internal/infrastructure/enrich"
	"NewsDigest/internal/infrastructure/evaluator"
	"NewsDigest/internal/infrastructure/hackernews"
	"NewsDigest/internal/infrastructure/ollama"
	"NewsDigest/internal/infrastructure/scheduler"
	"NewsDigest/internal/infrastructure/storage"
	"NewsDigest/internal/infrastructure/telegram"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/prefilter"
	"NewsDigest/internal/runlock"
	"NewsDigest/internal/usecase"
)

// App owns the composed object graph for one process.
type App struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.Store
	llm      *ollama.Client
	pipeline *usecase.Pipeline
	runner   *usecase.ScheduledRunner
}

// New loads configuration and wires every component.
func New() (*App, error) {
	cfg := config.Load()
	return NewWithConfig(cfg)
}

// NewWithConfig wires every component from an already-loaded configuration.
func NewWithConfig(cfg config.Config) (*App, error) {
	logger := logging.NewWithFile(cfg.Logging.Level, cfg.Logging.File)

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	registry := feed.NewRegistry()
	registry.Register(hackernews.NewClient(cfg.Feed.BaseURL, nil))

	source, err := registry.Resolve(cfg.Feed.Source)
	if err != nil {
		store.Close()
		return nil, err
	}

	llm := ollama.NewClient(cfg.Ollama)

	engine := dedup.New(store, llm, cfg.Dedup.IndexDir, cfg.Dedup.SimThreshold,
		logger.With("component", "dedup"))

	builder := digest.NewBuilder(store, cfg.Digest.OutDir, cfg.Digest.WindowHours,
		logger.With("component", "digest"))

	var enricher ports.PageEnricher
	if cfg.Feed.EnrichPages {
		enricher = enrich.NewPageExtractor(nil)
	}

	telegramMax := cfg.Notifications.Telegram.MaxItems

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Lock:          runlock.New(cfg.Lock.Path, cfg.Lock.Timeout()),
		Source:        source,
		SourceTag:     source.Name(),
		Items:         store,
		Evaluations:   store,
		Dedup:         engine,
		Evaluator:     evaluator.New(llm),
		DigestBuilder: builder,
		Notifier:      telegram.NewNotifier(cfg.Notifications.Telegram),
		Enricher:      enricher,
		RenderDigests: func(docs []digest.Document) string {
			return telegram.BuildCombinedText(docs, telegramMax)
		},
		Personas: cfg.Evaluation.Personas(),
		Prefilter: prefilter.Rules{
			MinScore:        cfg.Feed.MinScore,
			RequireKeywords: cfg.Feed.RequireKeywords,
			Keywords:        cfg.Feed.Keywords,
			Blocklist:       cfg.Feed.Blocklist,
		},
		IngestLimit:  cfg.Feed.IngestLimit,
		RecentLimit:  cfg.Feed.RecentLimit,
		EvalMaxItems: cfg.Evaluation.MaxItems,
		Logger:       logger.With("component", "pipeline"),
	})

	runner := usecase.NewScheduledRunner(
		scheduler.NewIntervalScheduler(cfg.Scheduler.Interval()),
		pipeline,
		logger.With("component", "scheduler"))

	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		llm:      llm,
		pipeline: pipeline,
		runner:   runner,
	}, nil
}

// Logger exposes the application logger for command-level messages.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// RunOnce executes a single pipeline run.
func (a *App) RunOnce(ctx context.Context) (usecase.Summary, error) {
	return a.pipeline.Run(ctx)
}

// RunScheduled starts recurring runs and blocks until the context ends.
func (a *App) RunScheduled(ctx context.Context) error {
	if err := a.runner.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	<-ctx.Done()
	return a.runner.Stop(context.Background())
}

// Doctor verifies that every external dependency the pipeline needs is
// reachable and configured. All checks run; the first failure is returned.
func (a *App) Doctor(ctx context.Context) error {
	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"database", a.store.Ping},
		{"ollama", a.llm.Ping},
		{"output dir", a.checkOutDir},
		{"telegram", a.checkTelegram},
	}

	var firstErr error
	for _, check := range checks {
		if err := check.fn(ctx); err != nil {
			a.logger.Error("doctor check failed", "check", check.name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", check.name, err)
			}
			continue
		}
		a.logger.Info("doctor check ok", "check", check.name)
	}
	return firstErr
}

func (a *App) checkOutDir(context.Context) error {
	return os.MkdirAll(a.cfg.Digest.OutDir, 0o755)
}

func (a *App) checkTelegram(context.Context) error {
	tg := a.cfg.Notifications.Telegram
	if !tg.Enabled {
		return nil
	}
	if tg.BotToken == "" || tg.ChatID == "" {
		return fmt.Errorf("enabled but missing bot token or chat id")
	}
	return nil
}

// Close releases held resources.
func (a *App) Close() error {
	return a.store.Close()
}
