package document

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
)

// Options bounds the excerpt.
type Options struct {
	MaxPages int
	MaxChars int
	MinChars int
}

// DefaultOptions returns the bounds used when a config leaves them unset.
func DefaultOptions() Options {
	return Options{MaxPages: 10, MaxChars: 8000, MinChars: 50}
}

// Extractor derives a bounded Excerpt from a Document.
type Extractor struct {
	sources Sources
	opts    Options
	logger  *slog.Logger
}

// NewExtractor creates an extractor. Zero-valued options fall back to
// DefaultOptions.
func NewExtractor(sources Sources, opts Options, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultOptions()
	if opts.MaxPages <= 0 {
		opts.MaxPages = d.MaxPages
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = d.MaxChars
	}
	if opts.MinChars < 0 {
		opts.MinChars = 0
	}
	return &Extractor{sources: sources, opts: opts, logger: logger}
}

// Options returns the effective bounds.
func (e *Extractor) Options() Options { return e.opts }

// Extract reads at most MaxPages pages, joins the non-empty ones with a
// newline and cuts the result to MaxChars characters. Pages beyond MaxPages
// are never requested from the reader.
func (e *Extractor) Extract(ctx context.Context, doc Document) (Excerpt, error) {
	start := time.Now()
	src, err := e.sources.For(doc)
	if err != nil {
		return Excerpt{}, common.Unreadable(err.Error(), err)
	}
	pr, err := src.Open(ctx, doc.Bytes())
	if err != nil {
		return Excerpt{}, common.Unreadable("open document", err)
	}

	total := pr.NumPages()
	limit := min(total, e.opts.MaxPages)

	var parts []string
	consulted := 0
	for n := 1; n <= limit; n++ {
		if err := ctx.Err(); err != nil {
			return Excerpt{}, common.Transient("extraction cancelled", err)
		}
		text, err := pr.PageText(n)
		consulted++
		if err != nil {
			return Excerpt{}, common.Unreadable(fmt.Sprintf("read page %d", n), err)
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}

	text, truncated := cutRunes(strings.Join(parts, "\n"), e.opts.MaxChars)
	text = strings.TrimSpace(text)
	ex := Excerpt{Text: text, PageCount: total, PagesConsulted: consulted, Truncated: truncated}

	if text == "" {
		return Excerpt{}, common.Unreadable("no text on the consulted pages", nil)
	}
	if ex.Len() < e.opts.MinChars {
		return Excerpt{}, common.Unreadable(fmt.Sprintf("excerpt has %d characters, need %d", ex.Len(), e.opts.MinChars), nil)
	}

	e.logger.Debug("document.extract.ok",
		"name", doc.Name,
		"format", doc.Format,
		"pages", total,
		"pages_consulted", consulted,
		"chars", ex.Len(),
		"truncated", truncated,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ex, nil
}

// cutRunes keeps the first max characters of s.
func cutRunes(s string, max int) (string, bool) {
	if len(s) <= max {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}
