package document

import (
	"context"
	"strings"
)

// Document is an uploaded file. Its bytes are never modified after NewDocument.
type Document struct {
	Name   string
	Format string // constants.PDF | constants.HTML | constants.TEXT
	data   []byte
}

// NewDocument wraps raw upload bytes. The format is sniffed from the content
// when hint is empty.
func NewDocument(name string, data []byte, formatHint string) Document {
	return Document{Name: name, Format: resolveFormat(name, data, formatHint), data: data}
}

// Bytes returns the raw document bytes. Callers must not modify them.
func (d Document) Bytes() []byte { return d.data }

// Size is the document length in bytes.
func (d Document) Size() int { return len(d.data) }

// PageReader gives random access to per-page text. Pages are 1-based.
type PageReader interface {
	NumPages() int
	PageText(n int) (string, error)
}

// PageSource opens raw bytes of one format as a PageReader. An error from Open
// means the document is unreadable.
type PageSource interface {
	Open(ctx context.Context, data []byte) (PageReader, error)
}

// Excerpt is the bounded text derived from a Document.
type Excerpt struct {
	Text           string // case preserved; the only form sent to a model
	PageCount      int    // pages in the source document
	PagesConsulted int    // pages actually read, <= MaxPages
	Truncated      bool   // the concatenation was cut at MaxChars
}

// Normalized is the lower-cased excerpt for keyword heuristics.
func (e Excerpt) Normalized() string {
	return strings.ToLower(e.Text)
}

// Len is the excerpt length in characters (runes).
func (e Excerpt) Len() int {
	return len([]rune(e.Text))
}
