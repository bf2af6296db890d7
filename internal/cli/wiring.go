package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/hypothesis-lab/internal/classify"
	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
	"github.com/joseph-ayodele/hypothesis-lab/internal/document"
	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
	"github.com/joseph-ayodele/hypothesis-lab/internal/llm/providers"
	"github.com/joseph-ayodele/hypothesis-lab/internal/pipeline"
	"github.com/joseph-ayodele/hypothesis-lab/internal/repository"
)

// app is the wired object graph shared by serve, analyze and jobs.
type app struct {
	cfg       *common.Config
	logger    *slog.Logger
	processor *pipeline.Processor
	provider  llm.ProviderConfig
	db        *repository.DB // nil when the ledger is disabled
	jobs      repository.AnalysisJobRepository
}

// buildApp wires every component from cfg. The ledger is opened and migrated
// only when a driver is configured.
func buildApp(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, provider: providerConfig(cfg.LLM)}

	if cfg.Ledger.Driver != "" {
		db, err := repository.Open(ctx, repository.Config{
			Driver:          cfg.Ledger.Driver,
			DSN:             cfg.Ledger.DSN,
			MaxConns:        cfg.Ledger.MaxConns,
			MinConns:        cfg.Ledger.MinConns,
			MaxConnLifetime: cfg.Ledger.MaxConnLifetime,
			DialTimeout:     cfg.Ledger.DialTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		if err := repository.Migrate(ctx, db, logger); err != nil {
			db.Close(logger)
			return nil, fmt.Errorf("migrate ledger: %w", err)
		}
		a.db = db
		a.jobs = repository.NewAnalysisJobRepository(db, logger)
	}

	extractor := document.NewExtractor(
		document.DefaultSources(cfg.Document.PDFEngine, cfg.Document.MaxPages, logger),
		document.Options{
			MaxPages: cfg.Document.MaxPages,
			MaxChars: cfg.Document.MaxChars,
			MinChars: cfg.Document.MinChars,
		},
		logger,
	)
	classifier := classify.New(classify.Options{Threshold: cfg.Classify.Threshold}, logger)
	validator := llm.NewValidator(llm.ParseScorePolicy(cfg.LLM.ScorePolicy), logger)
	contract := llm.DefaultContract().WithTarget(cfg.LLM.TargetHypotheses)

	a.processor = pipeline.NewProcessor(
		logger,
		extractor,
		classifier,
		providers.NewInvoker(logger),
		validator,
		contract,
		a.jobs,
	)

	logger.Info("app.wired",
		"provider", a.provider.Provider,
		"model", a.provider.Model,
		"structured", a.provider.Structured,
		"ledger", cfg.Ledger.Driver,
	)
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close(a.logger)
	}
}

// providerConfig is the one place configuration becomes a ProviderConfig.
func providerConfig(c common.LLMConfig) llm.ProviderConfig {
	model := c.Model
	if model == "" {
		model = providers.DefaultModel(c.Provider)
	}
	return llm.ProviderConfig{
		Provider:    c.Provider,
		Model:       model,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Timeout:     c.Timeout,
		Structured:  c.Structured,
	}
}
