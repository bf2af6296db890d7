package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/hypothesis-lab/constants"
)

// FallbackSource tries Primary and opens with Secondary when Primary fails.
type FallbackSource struct {
	Primary   PageSource
	Secondary PageSource
	Logger    *slog.Logger
}

func (s *FallbackSource) Open(ctx context.Context, data []byte) (PageReader, error) {
	pr, err := s.Primary.Open(ctx, data)
	if err == nil {
		return pr, nil
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("document.open.fallback", "error", err)
	pr, err2 := s.Secondary.Open(ctx, data)
	if err2 != nil {
		return nil, errors.Join(err, err2)
	}
	return pr, nil
}

// Sources maps document formats to page sources.
type Sources map[string]PageSource

// DefaultSources wires the PDF engine named by engine ("auto", "ledongthuc",
// "pdfcpu" or "pdftotext") plus the HTML and text sources. maxPages bounds
// what pdftotext renders.
func DefaultSources(engine string, maxPages int, logger *slog.Logger) Sources {
	var pdfSrc PageSource
	switch engine {
	case "pdfcpu":
		pdfSrc = NewPDFCPUSource()
	case "pdftotext":
		pdfSrc = NewPDFToTextSource(maxPages, logger)
	case "ledongthuc":
		pdfSrc = NewPDFSource()
	default:
		pdfSrc = &FallbackSource{Primary: NewPDFSource(), Secondary: NewPDFCPUSource(), Logger: logger}
	}
	return Sources{
		constants.PDF:  pdfSrc,
		constants.HTML: NewHTMLSource(),
		constants.TEXT: NewTextSource(),
	}
}

// For returns the source for a document's format.
func (s Sources) For(doc Document) (PageSource, error) {
	if doc.Format == "" {
		return nil, fmt.Errorf("unsupported document format")
	}
	src, ok := s[doc.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported document format: %s", doc.Format)
	}
	return src, nil
}

func resolveFormat(name string, data []byte, hint string) string {
	if hint != "" {
		return hint
	}
	if f := constants.SniffFormat(data); f != "" {
		return f
	}
	return constants.MapExtToFormat(filepath.Ext(name))
}
