// Package pipeline runs one document through extraction, classification and
// model analysis.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/hypothesis-lab/internal/classify"
	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
	"github.com/joseph-ayodele/hypothesis-lab/internal/document"
	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
	"github.com/joseph-ayodele/hypothesis-lab/internal/repository"
)

// ModelInvoker is the provider call the processor depends on.
type ModelInvoker interface {
	Invoke(ctx context.Context, req llm.PromptRequest, cfg llm.ProviderConfig) (llm.ModelReply, error)
}

// Processor coordinates the stages. It holds no per-invocation state, so one
// Processor serves concurrent calls.
type Processor struct {
	Logger     *slog.Logger
	Extractor  *document.Extractor
	Classifier *classify.Classifier
	Invoker    ModelInvoker
	Validator  *llm.Validator
	Contract   llm.SchemaContract
	Jobs       repository.AnalysisJobRepository // optional ledger
}

func NewProcessor(
	logger *slog.Logger,
	extractor *document.Extractor,
	classifier *classify.Classifier,
	invoker ModelInvoker,
	validator *llm.Validator,
	contract llm.SchemaContract,
	jobs repository.AnalysisJobRepository,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Logger:     logger,
		Extractor:  extractor,
		Classifier: classifier,
		Invoker:    invoker,
		Validator:  validator,
		Contract:   contract,
		Jobs:       jobs,
	}
}

// Analyze runs the whole pipeline for one document. Every returned error is a
// *common.PipelineError.
func (p *Processor) Analyze(ctx context.Context, doc document.Document, cfg llm.ProviderConfig) (*llm.AnalysisResult, error) {
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
		ctx = common.WithRequestID(ctx, reqID)
	}
	logger := common.LoggerFromContext(ctx, p.Logger).With("req_id", reqID)
	start := time.Now()

	rec := p.startJob(ctx, logger, reqID, doc, cfg)
	if rec.id != uuid.Nil {
		ctx = common.WithJobID(ctx, rec.id.String())
		logger = logger.With("job_id", rec.id.String())
		rec.logger = logger
	}

	res, trace, err := p.run(ctx, logger, doc, cfg)
	trace.Elapsed = time.Since(start)
	if err != nil {
		perr := common.AsPipelineError(err)
		rec.finish(ctx, trace, perr)
		logFailure(logger, perr, trace.Elapsed)
		return nil, perr
	}
	trace.Hypotheses = len(res.Hypotheses)
	rec.finish(ctx, trace, nil)

	logger.Info("pipeline.analyze.ok",
		"document", doc.Name,
		"hypotheses", len(res.Hypotheses),
		"elapsed_ms", trace.Elapsed.Milliseconds(),
	)
	return &res, nil
}

func (p *Processor) run(ctx context.Context, logger *slog.Logger, doc document.Document, cfg llm.ProviderConfig) (llm.AnalysisResult, repository.JobOutcome, error) {
	var trace repository.JobOutcome

	excerpt, err := p.extractStage(ctx, logger, doc)
	trace.Pages = excerpt.PageCount
	trace.PagesConsulted = excerpt.PagesConsulted
	trace.ExcerptChars = excerpt.Len()
	if err != nil {
		return llm.AnalysisResult{}, trace, err
	}

	res, model, err := p.modelStage(ctx, logger, excerpt, cfg)
	trace.Model = model
	return res, trace, err
}

func logFailure(logger *slog.Logger, perr *common.PipelineError, elapsed time.Duration) {
	attrs := []any{
		"kind", string(perr.Kind),
		"detail", perr.Detail,
		"elapsed_ms", elapsed.Milliseconds(),
	}
	switch perr.Kind {
	case common.KindRejectedDocument:
		logger.Info("pipeline.analyze.rejected", append(attrs, "origin", string(perr.Origin), "reason", perr.Reason)...)
	case common.KindUnreadableDocument:
		logger.Warn("pipeline.analyze.unreadable", attrs...)
	default:
		logger.Error("pipeline.analyze.error", attrs...)
	}
}
