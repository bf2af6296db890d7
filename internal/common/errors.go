package common

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies every failure the analysis pipeline can produce.
type Kind string

const (
	KindUnreadableDocument       Kind = "UNREADABLE_DOCUMENT"
	KindRejectedDocument         Kind = "REJECTED_DOCUMENT"
	KindQuotaExceeded            Kind = "QUOTA_EXCEEDED"
	KindMalformedModelOutput     Kind = "MALFORMED_MODEL_OUTPUT"
	KindTransientProviderFailure Kind = "TRANSIENT_PROVIDER_FAILURE"
)

// RejectOrigin tells which filter rejected a document.
type RejectOrigin string

const (
	RejectLocal RejectOrigin = "local"
	RejectModel RejectOrigin = "model"
)

// Sentinels for errors.Is checks; every PipelineError matches exactly one.
var (
	ErrUnreadable = errors.New("unreadable document")
	ErrRejected   = errors.New("rejected document")
	ErrQuota      = errors.New("provider quota exceeded")
	ErrMalformed  = errors.New("malformed model output")
	ErrTransient  = errors.New("transient provider failure")
)

// PipelineError is the only error type returned across stage boundaries.
//
// Reason is safe to show to callers (a rejection reason, for instance). Detail
// is diagnostic text for logs and must never be sent to a caller.
type PipelineError struct {
	Kind   Kind
	Origin RejectOrigin // set for KindRejectedDocument only
	Reason string
	Detail string
	Cause  error
}

func (e *PipelineError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Origin != "" {
		b.WriteString("(" + string(e.Origin) + ")")
	}
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match a PipelineError against the kind sentinels.
func (e *PipelineError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *PipelineError) sentinel() error {
	switch e.Kind {
	case KindUnreadableDocument:
		return ErrUnreadable
	case KindRejectedDocument:
		return ErrRejected
	case KindQuotaExceeded:
		return ErrQuota
	case KindMalformedModelOutput:
		return ErrMalformed
	case KindTransientProviderFailure:
		return ErrTransient
	default:
		return nil
	}
}

// PublicMessage is the caller-facing text for the error. It never includes
// Detail or Cause.
func (e *PipelineError) PublicMessage() string {
	switch e.Kind {
	case KindUnreadableDocument:
		return "No readable text in the document."
	case KindRejectedDocument:
		if e.Reason != "" {
			return "Document rejected: " + e.Reason
		}
		return "Document rejected: not an accepted document type."
	case KindQuotaExceeded:
		return "The analysis provider quota was reached. Please wait a couple of minutes and retry, or use a smaller document."
	case KindMalformedModelOutput:
		return "The analysis service returned an unusable response. Please try again."
	case KindTransientProviderFailure:
		return "The analysis service is temporarily unavailable. Please try again later."
	default:
		return "Internal error."
	}
}

// Error constructors

func Unreadable(detail string, cause error) *PipelineError {
	return &PipelineError{Kind: KindUnreadableDocument, Detail: detail, Cause: cause}
}

func Rejected(origin RejectOrigin, reason string) *PipelineError {
	return &PipelineError{Kind: KindRejectedDocument, Origin: origin, Reason: reason}
}

func QuotaExceeded(detail string, cause error) *PipelineError {
	return &PipelineError{Kind: KindQuotaExceeded, Detail: detail, Cause: cause}
}

func Malformed(detail string, cause error) *PipelineError {
	return &PipelineError{Kind: KindMalformedModelOutput, Detail: detail, Cause: cause}
}

func Transient(detail string, cause error) *PipelineError {
	return &PipelineError{Kind: KindTransientProviderFailure, Detail: detail, Cause: cause}
}

// AsPipelineError extracts a *PipelineError from err. Anything else (a bug or
// an unexpected context error) is reported as a transient provider failure so
// the serving boundary always has a kind to switch on.
func AsPipelineError(err error) *PipelineError {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return Transient(fmt.Sprintf("unclassified: %v", err), err)
}
