package classify

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
	"github.com/joseph-ayodele/hypothesis-lab/internal/document"
)

func excerpt(text string) document.Excerpt { return document.Excerpt{Text: text} }

func TestCheckLocal_SixIndicatorsRejects(t *testing.T) {
	c := New(DefaultOptions(), nil)
	v := c.CheckLocal(excerpt("JANE DOE. Objective: grow. Experience: 5 years. Education: BSc. Skills: Go. Contact: jane@x. Certifications: CKA."))
	assert.Equal(t, RejectedLocal, v.Outcome)
	assert.Equal(t, 6, len(v.Matched))
	assert.Equal(t, true, strings.Contains(v.Reason, "resume/CV"))
	assert.Equal(t, true, errors.Is(v.Err(), common.ErrRejected))
	assert.Equal(t, common.RejectLocal, common.AsPipelineError(v.Err()).Origin)
}

func TestCheckLocal_AtThresholdAccepts(t *testing.T) {
	c := New(DefaultOptions(), nil)
	// experience, education, skills, contact: exactly four.
	v := c.CheckLocal(excerpt("Prior experience with education data shows skills transfer; contact the authors."))
	assert.Equal(t, Accepted, v.Outcome)
	assert.Equal(t, 4, len(v.Matched))
	assert.Equal(t, nil, v.Err())
}

func TestCheckLocal_CountsDistinctTerms(t *testing.T) {
	c := New(DefaultOptions(), nil)
	v := c.CheckLocal(excerpt(strings.Repeat("experience ", 50)))
	assert.Equal(t, Accepted, v.Outcome)
	assert.Equal(t, 1, len(v.Matched))
}

func TestCheckLocal_CaseInsensitive(t *testing.T) {
	c := New(Options{Threshold: 1}, nil)
	v := c.CheckLocal(excerpt("CURRICULUM VITAE with LinkedIn profile"))
	assert.Equal(t, RejectedLocal, v.Outcome)
}

func TestCheckReply(t *testing.T) {
	c := New(DefaultOptions(), nil)
	tests := []struct {
		name    string
		raw     string
		outcome Outcome
		reason  string
	}{
		{"valid analysis", `{"summary":"S","hypotheses":[]}`, Accepted, ""},
		{"bare sentinel", "INVALID_DOCUMENT", RejectedByModel, "the document is not a research paper"},
		{"lower-case sentinel in prose", "sorry, invalid_document here", RejectedByModel, "the document is not a research paper"},
		{"reserved field", `{"rejected": true, "reason": "INVALID_DOCUMENT: this is an invoice"}`, RejectedByModel, "this is an invoice"},
		{"reserved field without sentinel", "```json\n{\"rejected\": true, \"reason\": \"A cooking recipe.\"}\n```", RejectedByModel, "A cooking recipe."},
		{"markup in reason", `{"rejected": true, "reason": "<b>resume</b> &amp; cover letter"}`, RejectedByModel, "resume & cover letter"},
		{"rejected false", `{"rejected": false, "summary": "S"}`, Accepted, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.CheckReply(tt.raw)
			assert.Equal(t, tt.outcome, v.Outcome)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestCheckReply_ReasonIsBounded(t *testing.T) {
	c := New(DefaultOptions(), nil)
	v := c.CheckReply(`{"rejected": true, "reason": "` + strings.Repeat("word ", 200) + `"}`)
	assert.Equal(t, true, len([]rune(v.Reason)) <= maxReasonRunes+1)
}
