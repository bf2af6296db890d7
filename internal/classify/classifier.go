// Package classify decides whether a document belongs to the accepted class.
package classify

import (
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/joseph-ayodele/hypothesis-lab/constants"
	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
	"github.com/joseph-ayodele/hypothesis-lab/internal/document"
	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
)

// Outcome tags a Verdict.
type Outcome int

const (
	Accepted Outcome = iota
	RejectedLocal
	RejectedByModel
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case RejectedLocal:
		return "rejected_local"
	case RejectedByModel:
		return "rejected_by_model"
	default:
		return "unknown"
	}
}

// Verdict is the classifier's decision. Reason is empty for Accepted.
type Verdict struct {
	Outcome Outcome
	Reason  string
	Matched []string // indicator terms found, local checks only
}

// Err converts a rejection into a RejectedDocument error, or nil.
func (v Verdict) Err() error {
	switch v.Outcome {
	case RejectedLocal:
		return common.Rejected(common.RejectLocal, v.Reason)
	case RejectedByModel:
		return common.Rejected(common.RejectModel, v.Reason)
	default:
		return nil
	}
}

const maxReasonRunes = 300

// Options tunes a Classifier.
type Options struct {
	Indicators []string
	Threshold  int // reject when more than Threshold indicators match
	Sentinel   string
}

// DefaultOptions returns the resume/CV heuristic.
func DefaultOptions() Options {
	return Options{
		Indicators: constants.ResumeIndicators,
		Threshold:  constants.ResumeThreshold,
		Sentinel:   constants.RejectionSentinel,
	}
}

// Classifier combines the local keyword heuristic with the model sentinel
// check. It holds no per-call state.
type Classifier struct {
	opts   Options
	policy *bluemonday.Policy
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Classifier {
	d := DefaultOptions()
	if len(opts.Indicators) == 0 {
		opts.Indicators = d.Indicators
	}
	if opts.Threshold <= 0 {
		opts.Threshold = d.Threshold
	}
	if opts.Sentinel == "" {
		opts.Sentinel = d.Sentinel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{opts: opts, policy: bluemonday.StrictPolicy(), logger: logger}
}

// Sentinel is the token the prompt asks the model to emit on rejection.
func (c *Classifier) Sentinel() string { return c.opts.Sentinel }

// CheckLocal counts distinct indicator terms in the lower-cased excerpt.
func (c *Classifier) CheckLocal(ex document.Excerpt) Verdict {
	text := ex.Normalized()
	var matched []string
	for _, term := range c.opts.Indicators {
		if strings.Contains(text, strings.ToLower(term)) {
			matched = append(matched, term)
		}
	}
	if len(matched) > c.opts.Threshold {
		c.logger.Info("classify.local.rejected", "matched", matched, "threshold", c.opts.Threshold)
		return Verdict{
			Outcome: RejectedLocal,
			Reason: fmt.Sprintf("the document looks like a %s rather than a %s (matched: %s)",
				constants.DisallowedCategory, constants.AcceptedCategory, strings.Join(matched, ", ")),
			Matched: matched,
		}
	}
	return Verdict{Outcome: Accepted, Matched: matched}
}

// CheckReply looks for the rejection sentinel or a reserved "rejected": true
// field in a raw model reply. It runs before any schema validation.
func (c *Classifier) CheckReply(raw string) Verdict {
	hasSentinel := strings.Contains(strings.ToUpper(raw), strings.ToUpper(c.opts.Sentinel))

	var reason string
	flagged := false
	if cand, err := llm.Repair(raw); err == nil {
		if b, ok := cand["rejected"].(bool); ok && b {
			flagged = true
		}
		if s, ok := cand["reason"].(string); ok {
			reason = s
		}
	}
	if !hasSentinel && !flagged {
		return Verdict{Outcome: Accepted}
	}

	reason = c.cleanReason(reason)
	if reason == "" {
		reason = "the document is not a " + constants.AcceptedCategory
	}
	c.logger.Info("classify.model.rejected", "sentinel", hasSentinel, "field", flagged)
	return Verdict{Outcome: RejectedByModel, Reason: reason}
}

// cleanReason reduces a model-supplied reason to bounded plain text.
func (c *Classifier) cleanReason(s string) string {
	s = html.UnescapeString(c.policy.Sanitize(s))
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, c.opts.Sentinel))
	s = strings.TrimSpace(strings.TrimLeft(s, ":-"))
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxReasonRunes {
		s = string(r[:maxReasonRunes]) + "…"
	}
	return s
}
