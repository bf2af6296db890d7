package document

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// TextSource reads plain text. Form feeds separate pages, the convention
// pdftotext uses, so text dumps of PDFs keep their page structure.
type TextSource struct{}

func NewTextSource() *TextSource { return &TextSource{} }

func (s *TextSource) Open(_ context.Context, data []byte) (PageReader, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("text is not valid UTF-8")
	}
	return StaticPages(strings.Split(string(data), "\f")), nil
}

// StaticPages is an in-memory PageReader and PageSource.
type StaticPages []string

func (p StaticPages) NumPages() int { return len(p) }

func (p StaticPages) PageText(n int) (string, error) {
	if n < 1 || n > len(p) {
		return "", fmt.Errorf("page %d out of range", n)
	}
	return strings.TrimSpace(p[n-1]), nil
}

func (p StaticPages) Open(context.Context, []byte) (PageReader, error) { return p, nil }
