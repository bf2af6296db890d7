package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
	"github.com/joseph-ayodele/hypothesis-lab/internal/document"
	"github.com/joseph-ayodele/hypothesis-lab/internal/export"
	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
)

// DefaultMaxUploadBytes caps an upload when Options leaves it unset.
const DefaultMaxUploadBytes int64 = 20 << 20

// Analyzer runs one document through the pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, doc document.Document, cfg llm.ProviderConfig) (*llm.AnalysisResult, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

type Options struct {
	Provider       llm.ProviderConfig
	MaxUploadBytes int64
	Limiter        *ClientLimiter  // nil disables admission limiting
	Export         *export.Service // nil disables /jobs/export
	Ledger         Pinger          // nil skips the ledger health probe
}

// Server is the serving boundary. It owns no pipeline state; every request
// gets a fresh invocation.
type Server struct {
	analyzer Analyzer
	opts     Options
	logger   *slog.Logger
}

func New(analyzer Analyzer, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Server{analyzer: analyzer, opts: opts, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/jobs/export", s.handleExport)
	r.Group(func(r chi.Router) {
		if s.opts.Limiter != nil {
			r.Use(s.opts.Limiter.Middleware)
		}
		r.Post("/generate-hypothesis", s.handleGenerate)
	})
	return r
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := uuid.New().String()
	w.Header().Set("X-Request-ID", reqID)
	logger := s.logger.With("req_id", reqID)
	ctx := common.WithLogger(common.WithRequestID(r.Context(), reqID), s.logger)

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			logger.Warn("server.analyze.too_large", "limit_bytes", s.opts.MaxUploadBytes)
			writeError(w, http.StatusBadRequest, "The uploaded file is too large.")
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, "Missing multipart field \"file\".")
		default:
			logger.Warn("server.analyze.bad_form", "err", err)
			writeError(w, http.StatusBadRequest, "Expected a multipart/form-data upload.")
		}
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Warn("server.analyze.read_error", "err", err)
		writeError(w, http.StatusBadRequest, "Could not read the uploaded file.")
		return
	}

	name := filepath.Base(strings.TrimSpace(header.Filename))
	doc := document.NewDocument(name, data, "")
	res, err := s.analyzer.Analyze(ctx, doc, s.opts.Provider)
	if err != nil {
		perr := common.AsPipelineError(err)
		s.logOutcome(logger, perr, time.Since(start))
		writePipelineError(w, perr)
		return
	}

	logger.Info("server.analyze.ok",
		"document", name,
		"bytes", len(data),
		"hypotheses", len(res.Hypotheses),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) logOutcome(logger *slog.Logger, perr *common.PipelineError, elapsed time.Duration) {
	attrs := []any{"kind", string(perr.Kind), "elapsed_ms", elapsed.Milliseconds()}
	if perr.Kind == common.KindRejectedDocument {
		logger.Info("server.analyze.rejected", append(attrs, "origin", string(perr.Origin))...)
		return
	}
	logger.Warn("server.analyze.failed", attrs...)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ledger != nil {
		if err := s.opts.Ledger.HealthCheck(r.Context(), 2*time.Second); err != nil {
			s.logger.Warn("server.health.ledger_down", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "ledger": "unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleExport streams the job ledger as XLSX. Optional from/to query
// parameters take YYYY-MM-DD dates.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.opts.Export == nil {
		writeError(w, http.StatusNotFound, "The job ledger is not enabled.")
		return
	}

	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}

	xlsx, err := s.opts.Export.JobsXLSX(r.Context(), export.Window(from, to, time.Now()))
	if err != nil {
		s.logger.Error("server.export.failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Export failed.")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="analysis_jobs.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
