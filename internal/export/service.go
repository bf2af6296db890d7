package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/hypothesis-lab/internal/repository"
)

const sheet = "Jobs"

// Service produces XLSX bytes from the analysis_job ledger.
type Service struct {
	jobs   repository.AnalysisJobRepository
	logger *slog.Logger
}

func NewService(jobs repository.AnalysisJobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// Window normalizes an optional date range to whole UTC days.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all jobs.
func Window(from, to *time.Time, now time.Time) repository.ListFilter {
	var f repository.ListFilter
	if from != nil {
		d := dayStart(*from)
		f.From = &d
	}
	if to != nil {
		d := dayStart(*to).AddDate(0, 0, 1)
		f.To = &d
	} else if from != nil {
		d := dayStart(now).AddDate(0, 0, 1)
		f.To = &d
	}
	return f
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// JobsXLSX returns a workbook with one row per ledger entry matching f.
func (s *Service) JobsXLSX(ctx context.Context, f repository.ListFilter) ([]byte, error) {
	start := time.Now()

	rows, err := s.jobs.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	x := excelize.NewFile()
	defer func() { _ = x.Close() }()
	if err := x.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{
		"Started",
		"Status",
		"Document",
		"Format",
		"Size (bytes)",
		"Pages",
		"Pages Read",
		"Excerpt Chars",
		"Provider",
		"Model",
		"Hypotheses",
		"Error Kind",
		"Reject Origin",
		"Elapsed (ms)",
		"Request ID",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = x.SetCellValue(sheet, cell, h)
	}

	for i, r := range rows {
		line := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, line)
			_ = x.SetCellValue(sheet, cell, v)
		}
		write(1, r.StartedAt.UTC().Format(time.RFC3339))
		write(2, string(r.Status))
		write(3, truncate(r.DocumentName, 80))
		write(4, r.Format)
		write(5, r.SizeBytes)
		write(6, r.Pages)
		write(7, r.PagesConsulted)
		write(8, r.ExcerptChars)
		write(9, r.Provider)
		write(10, r.Model)
		write(11, r.Hypotheses)
		write(12, r.ErrorKind)
		write(13, r.RejectOrigin)
		write(14, r.ElapsedMS)
		write(15, r.RequestID)
	}

	_ = x.SetColWidth(sheet, "A", "A", 22) // started
	_ = x.SetColWidth(sheet, "B", "B", 12)
	_ = x.SetColWidth(sheet, "C", "C", 40) // document
	_ = x.SetColWidth(sheet, "I", "J", 20) // provider, model
	_ = x.SetColWidth(sheet, "L", "L", 28)
	_ = x.SetColWidth(sheet, "O", "O", 38) // request id

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
