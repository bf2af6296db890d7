package document

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		r.logger.Error("document.exec.error",
			"cmd", name,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"err", err,
			"stderr", truncateBytes(errb.String(), 8<<10),
		)
	} else {
		r.logger.Debug("document.exec.ok",
			"cmd", name,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

// PDFToTextSource shells out to poppler's pdftotext. It keeps reading order
// on multi-column layouts better than the pure-Go engines, at the cost of an
// external binary.
type PDFToTextSource struct {
	Binary   string // default "pdftotext"
	LastPage int    // 0 reads every page
	Runner   Runner
	Logger   *slog.Logger
}

func NewPDFToTextSource(lastPage int, logger *slog.Logger) *PDFToTextSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFToTextSource{Binary: "pdftotext", LastPage: lastPage, Runner: execRunner{logger: logger}, Logger: logger}
}

func (s *PDFToTextSource) Open(ctx context.Context, data []byte) (PageReader, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty PDF content")
	}
	tmp, err := os.CreateTemp("", "hl-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	// pdftotext -layout -enc UTF-8 -eol unix [-l N] <path> -
	args := []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}
	if s.LastPage > 0 {
		args = append(args, "-l", strconv.Itoa(s.LastPage))
	}
	args = append(args, tmp.Name(), "-")

	out, errb, err := s.Runner.Run(ctx, s.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(truncateBytes(string(errb), 512)))
	}
	return splitFormFeeds(string(out)), nil
}

// splitFormFeeds splits pdftotext output into pages. pdftotext ends every
// page with a form feed, so the trailing empty segment is dropped.
func splitFormFeeds(s string) StaticPages {
	pages := strings.Split(s, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return StaticPages(pages)
}

func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
