package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
)

// ProviderError is the adapter-level failure: the HTTP status when one was
// received and the upstream message.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

var quotaVocabulary = []string{
	"quota",
	"rate limit",
	"rate_limit",
	"ratelimit",
	"too many requests",
	"resource_exhausted",
	"resource has been exhausted",
}

// ClassifyError maps an adapter error onto QuotaExceeded or
// TransientProviderFailure. Secrets are scrubbed from the detail.
func ClassifyError(err error, cfg ProviderConfig) *common.PipelineError {
	if err == nil {
		return nil
	}
	var pe *common.PipelineError
	if errors.As(err, &pe) {
		return pe
	}

	detail := Scrub(err.Error(), cfg.APIKey)

	var perr *ProviderError
	status := 0
	if errors.As(err, &perr) {
		status = perr.Status
	}

	switch {
	case status == http.StatusTooManyRequests || hasQuotaVocabulary(err.Error()):
		return common.QuotaExceeded(detail, err)
	case status == http.StatusNotFound:
		return common.Transient("model not found: "+detail, err)
	case errors.Is(err, context.DeadlineExceeded):
		return common.Transient("provider call timed out", err)
	case errors.Is(err, context.Canceled):
		return common.Transient("provider call cancelled", err)
	default:
		return common.Transient(detail, err)
	}
}

func hasQuotaVocabulary(msg string) bool {
	m := strings.ToLower(msg)
	for _, w := range quotaVocabulary {
		if strings.Contains(m, w) {
			return true
		}
	}
	return false
}

var (
	reBearer   = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._\-]+`)
	reKeyParam = regexp.MustCompile(`(?i)((?:api[_-]?key|key|x-goog-api-key|x-api-key)[=:]\s*)[A-Za-z0-9._\-]+`)
	reSKKey    = regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{8,}`)
)

// Scrub removes credentials from text bound for logs or error details.
func Scrub(s, apiKey string) string {
	if apiKey != "" {
		s = strings.ReplaceAll(s, apiKey, "[redacted]")
	}
	s = reBearer.ReplaceAllString(s, "${1}[redacted]")
	s = reKeyParam.ReplaceAllString(s, "${1}[redacted]")
	s = reSKKey.ReplaceAllString(s, "[redacted]")
	return s
}
