package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFSource reads page text with ledongthuc/pdf (pure Go, decodes font
// encodings into UTF-8).
type PDFSource struct{}

func NewPDFSource() *PDFSource { return &PDFSource{} }

type pdfPages struct {
	r *pdf.Reader
}

// Open parses the cross-reference table. ledongthuc/pdf panics on some
// malformed inputs, so panics are turned into errors.
func (s *PDFSource) Open(_ context.Context, data []byte) (pr PageReader, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty PDF content")
	}
	defer func() {
		if r := recover(); r != nil {
			pr, err = nil, fmt.Errorf("open pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &pdfPages{r: r}, nil
}

func (p *pdfPages) NumPages() int { return p.r.NumPage() }

func (p *pdfPages) PageText(n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d: %v", n, r)
		}
	}()
	page := p.r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", n, err)
	}
	return strings.TrimSpace(text), nil
}
