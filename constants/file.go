package constants

import (
	"bytes"
	"net/http"
	"strings"
)

// Document formats understood by the page sources.
const (
	PDF  = "PDF"
	HTML = "HTML"
	TEXT = "TEXT"
)

// FileTypes holds the formats recorded in the analysis_job ledger.
var FileTypes = []string{PDF, HTML, TEXT}

// AllowedExtensions holds the upload extensions accepted by the CLI.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"html": {},
	"htm":  {},
	"txt":  {},
	"md":   {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to one of the known formats, or "".
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "html", "htm":
		return HTML
	case "txt", "md":
		return TEXT
	default:
		return ""
	}
}

// SniffFormat detects the format from the leading bytes of a document. PDF
// files are recognised by their header even when a client sends them with a
// generic content type.
func SniffFormat(data []byte) string {
	if bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return PDF
	}
	ct := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(ct, "text/html"):
		return HTML
	case strings.HasPrefix(ct, "text/plain"):
		return TEXT
	default:
		return ""
	}
}
