package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
)

const snippetRunes = 200

// fencedBlock matches a markdown code block whose markers sit on their own
// lines. JSON strings cannot hold a raw newline, so the lazy body never stops
// inside a string value.
var fencedBlock = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n(.*?)\r?\n[ \t]*```")

// Repair recovers a JSON object from a model reply. It tries the whole reply,
// then the body of each fenced code block, and finally the window from the
// first '{' to the last '}'. Braces are not matched and text inside the
// object is never rewritten.
func Repair(raw string) (Candidate, error) {
	text := strings.TrimSpace(raw)

	if c, ok := decodeObject(text); ok {
		return c, nil
	}
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		if c, ok := decodeWindow(m[1]); ok {
			return c, nil
		}
	}
	if c, ok := decodeWindow(text); ok {
		return c, nil
	}
	return nil, common.Malformed("no JSON object in reply: "+Snippet(raw), nil)
}

func decodeWindow(s string) (Candidate, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return decodeObject(s[start : end+1])
}

func decodeObject(s string) (Candidate, bool) {
	if s == "" || s[0] != '{' {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
		return nil, false
	}
	return Candidate(m), true
}

// Snippet shortens text for error details.
func Snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetRunes {
		return string(r)
	}
	return string(r[:snippetRunes]) + "…"
}
