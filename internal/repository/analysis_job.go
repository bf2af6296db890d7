package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/hypothesis-lab/constants"
)

const jobTable = "analysis_job"

// AnalysisJob is one ledger row. It records how an invocation went, never
// what the analysis said.
type AnalysisJob struct {
	ID             uuid.UUID
	RequestID      string
	DocumentName   string
	Format         string
	SizeBytes      int64
	Pages          int
	PagesConsulted int
	ExcerptChars   int
	Provider       string
	Model          string
	Status         constants.JobStatus
	ErrorKind      string
	RejectOrigin   string
	Hypotheses     int
	StartedAt      time.Time
	FinishedAt     *time.Time
	ElapsedMS      int64
}

// JobStart describes an invocation as it begins.
type JobStart struct {
	RequestID    string
	DocumentName string
	Format       string
	SizeBytes    int64
	Provider     string
	Model        string
}

// JobOutcome describes how an invocation ended.
type JobOutcome struct {
	Pages          int
	PagesConsulted int
	ExcerptChars   int
	Model          string
	Hypotheses     int
	ErrorKind      string
	RejectOrigin   string
	Elapsed        time.Duration
}

type AnalysisJobRepository interface {
	Start(ctx context.Context, in JobStart) (uuid.UUID, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID, out JobOutcome) error
	FinishRejected(ctx context.Context, jobID uuid.UUID, out JobOutcome) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, out JobOutcome) error
	List(ctx context.Context, f ListFilter) ([]AnalysisJob, error)
}

// ListFilter narrows List. From and To bound started_at (To is exclusive);
// Limit <= 0 returns every matching row.
type ListFilter struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

type analysisJobRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewAnalysisJobRepository(db *DB, log *slog.Logger) AnalysisJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &analysisJobRepo{db: db, log: log, now: time.Now}
}

func (r *analysisJobRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect)
}

func (r *analysisJobRepo) Start(ctx context.Context, in JobStart) (uuid.UUID, error) {
	id := uuid.New()
	query, args := r.builder().Insert(jobTable).
		Columns(
			"id", "request_id", "document_name", "format", "size_bytes",
			"pages", "pages_consulted", "excerpt_chars", "provider", "model",
			"status", "error_kind", "reject_origin", "hypotheses",
			"started_at", "finished_at", "elapsed_ms",
		).
		Values(
			id.String(), in.RequestID, in.DocumentName, in.Format, in.SizeBytes,
			0, 0, 0, in.Provider, in.Model,
			string(constants.JobStatusRunning), "", "", 0,
			r.now().UnixMilli(), int64(0), int64(0),
		).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.log.Error("analysis_job.start.error", "request_id", in.RequestID, "err", err)
		return uuid.Nil, fmt.Errorf("insert analysis_job: %w", err)
	}
	r.log.Debug("analysis_job.start", "job_id", id, "request_id", in.RequestID, "format", in.Format)
	return id, nil
}

func (r *analysisJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, out JobOutcome) error {
	return r.finish(ctx, jobID, constants.JobStatusSucceeded, out)
}

func (r *analysisJobRepo) FinishRejected(ctx context.Context, jobID uuid.UUID, out JobOutcome) error {
	return r.finish(ctx, jobID, constants.JobStatusRejected, out)
}

func (r *analysisJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, out JobOutcome) error {
	return r.finish(ctx, jobID, constants.JobStatusFailed, out)
}

func (r *analysisJobRepo) finish(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, out JobOutcome) error {
	upd := r.builder().Update(jobTable).
		Set("status", string(status)).
		Set("pages", out.Pages).
		Set("pages_consulted", out.PagesConsulted).
		Set("excerpt_chars", out.ExcerptChars).
		Set("hypotheses", out.Hypotheses).
		Set("error_kind", out.ErrorKind).
		Set("reject_origin", out.RejectOrigin).
		Set("finished_at", r.now().UnixMilli()).
		Set("elapsed_ms", out.Elapsed.Milliseconds())
	if out.Model != "" {
		upd = upd.Set("model", out.Model)
	}
	query, args := upd.Where(entsql.EQ("id", jobID.String())).Query()

	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("analysis_job.finish.error", "job_id", jobID, "status", status, "err", err)
		return fmt.Errorf("update analysis_job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("analysis_job %s not found", jobID)
	}
	r.log.Debug("analysis_job.finish", "job_id", jobID, "status", status, "error_kind", out.ErrorKind)
	return nil
}

// List returns the most recent jobs first.
func (r *analysisJobRepo) List(ctx context.Context, f ListFilter) ([]AnalysisJob, error) {
	b := r.builder()
	sel := b.Select(
		"id", "request_id", "document_name", "format", "size_bytes",
		"pages", "pages_consulted", "excerpt_chars", "provider", "model",
		"status", "error_kind", "reject_origin", "hypotheses",
		"started_at", "finished_at", "elapsed_ms",
	).From(b.Table(jobTable)).OrderBy(entsql.Desc("started_at"))
	var preds []*entsql.Predicate
	if f.From != nil {
		preds = append(preds, entsql.GTE("started_at", f.From.UnixMilli()))
	}
	if f.To != nil {
		preds = append(preds, entsql.LT("started_at", f.To.UnixMilli()))
	}
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	if f.Limit > 0 {
		sel = sel.Limit(f.Limit)
	}
	query, args := sel.Query()

	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analysis_job: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []AnalysisJob
	for rows.Next() {
		var (
			j                   AnalysisJob
			id, status          string
			startedMS, finishMS int64
		)
		if err := rows.Scan(
			&id, &j.RequestID, &j.DocumentName, &j.Format, &j.SizeBytes,
			&j.Pages, &j.PagesConsulted, &j.ExcerptChars, &j.Provider, &j.Model,
			&status, &j.ErrorKind, &j.RejectOrigin, &j.Hypotheses,
			&startedMS, &finishMS, &j.ElapsedMS,
		); err != nil {
			return nil, fmt.Errorf("scan analysis_job: %w", err)
		}
		if j.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse job id: %w", err)
		}
		j.Status = constants.JobStatus(status)
		j.StartedAt = time.UnixMilli(startedMS).UTC()
		if finishMS > 0 {
			t := time.UnixMilli(finishMS).UTC()
			j.FinishedAt = &t
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
