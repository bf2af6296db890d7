package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
	"github.com/joseph-ayodele/hypothesis-lab/internal/document"
	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
	"github.com/joseph-ayodele/hypothesis-lab/internal/repository"
)

// jobRecord writes one ledger row. Ledger errors are logged and never change
// the outcome of an invocation. A zero record (no ledger) does nothing.
type jobRecord struct {
	jobs   repository.AnalysisJobRepository
	id     uuid.UUID
	logger *slog.Logger
}

func (p *Processor) startJob(ctx context.Context, logger *slog.Logger, reqID string, doc document.Document, cfg llm.ProviderConfig) jobRecord {
	if p.Jobs == nil {
		return jobRecord{}
	}
	id, err := p.Jobs.Start(ctx, repository.JobStart{
		RequestID:    reqID,
		DocumentName: doc.Name,
		Format:       doc.Format,
		SizeBytes:    int64(doc.Size()),
		Provider:     cfg.Provider,
		Model:        cfg.Model,
	})
	if err != nil {
		logger.Warn("pipeline.ledger.start_error", "error", err)
		return jobRecord{}
	}
	return jobRecord{jobs: p.Jobs, id: id, logger: logger}
}

func (r jobRecord) finish(ctx context.Context, out repository.JobOutcome, perr *common.PipelineError) {
	if r.jobs == nil {
		return
	}
	// The ledger write must land even when the caller went away.
	ctx = context.WithoutCancel(ctx)

	var err error
	switch {
	case perr == nil:
		err = r.jobs.FinishSuccess(ctx, r.id, out)
	case perr.Kind == common.KindRejectedDocument:
		out.ErrorKind = string(perr.Kind)
		out.RejectOrigin = string(perr.Origin)
		err = r.jobs.FinishRejected(ctx, r.id, out)
	default:
		out.ErrorKind = string(perr.Kind)
		err = r.jobs.FinishFailure(ctx, r.id, out)
	}
	if err != nil {
		r.logger.Warn("pipeline.ledger.finish_error", "job_id", r.id, "error", err)
	}
}
