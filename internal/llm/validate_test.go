package llm

import (
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
)

func mustRepair(t *testing.T, raw string) Candidate {
	t.Helper()
	c, err := Repair(raw)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	return c
}

func TestValidate_RoundTrip(t *testing.T) {
	v := NewValidator(ScoreClamp, nil)
	res, err := v.Validate(mustRepair(t, validReply), DefaultContract())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	want := AnalysisResult{
		Summary: "S",
		Hypotheses: []Hypothesis{
			{Title: "T", Gap: "G", Hypothesis: "H", Impact: 9, Feasibility: 7},
		},
	}
	assert.Equal(t, want, res)
}

func TestValidate_ScoresOutOfRange(t *testing.T) {
	raw := `{"summary":"S","hypotheses":[
		{"title":"T1","gap":"G","hypothesis":"H","impact":0,"feasibility":11},
		{"title":"T2","gap":"G","hypothesis":"H","impact":5,"feasibility":5}]}`

	t.Run("clamp", func(t *testing.T) {
		res, err := NewValidator(ScoreClamp, nil).Validate(mustRepair(t, raw), DefaultContract())
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		assert.Equal(t, 1, res.Hypotheses[0].Impact)
		assert.Equal(t, 10, res.Hypotheses[0].Feasibility)
		assert.Equal(t, 5, res.Hypotheses[1].Impact)
	})

	t.Run("reject", func(t *testing.T) {
		_, err := NewValidator(ScoreReject, nil).Validate(mustRepair(t, raw), DefaultContract())
		if !errors.Is(err, common.ErrMalformed) {
			t.Fatalf("expected malformed, got %v", err)
		}
	})
}

func TestValidate_LenientScores(t *testing.T) {
	raw := `{"summary":"S","hypotheses":[{"title":"T","gap":"G","hypothesis":"H","impact":"8","feasibility":6.6}]}`
	res, err := NewValidator(ScoreClamp, nil).Validate(mustRepair(t, raw), DefaultContract())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	assert.Equal(t, 8, res.Hypotheses[0].Impact)
	assert.Equal(t, 7, res.Hypotheses[0].Feasibility)
}

func TestValidate_RejectPolicyFractionalOutOfRange(t *testing.T) {
	for _, score := range []string{`0.5`, `10.4`, `"10.4"`, `"0.5/10"`} {
		t.Run(score, func(t *testing.T) {
			raw := `{"summary":"S","hypotheses":[{"title":"T","gap":"G","hypothesis":"H","impact":` + score + `,"feasibility":5}]}`
			_, err := NewValidator(ScoreReject, nil).Validate(mustRepair(t, raw), DefaultContract())
			if !errors.Is(err, common.ErrMalformed) {
				t.Fatalf("expected malformed, got %v", err)
			}
		})
	}
}

func TestValidate_RejectPolicyRoundsInRange(t *testing.T) {
	raw := `{"summary":"S","hypotheses":[{"title":"T","gap":"G","hypothesis":"H","impact":9.6,"feasibility":"1.4"}]}`
	res, err := NewValidator(ScoreReject, nil).Validate(mustRepair(t, raw), DefaultContract())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	assert.Equal(t, 10, res.Hypotheses[0].Impact)
	assert.Equal(t, 1, res.Hypotheses[0].Feasibility)
}

func TestValidate_ClampPolicyFractionalOutOfRange(t *testing.T) {
	raw := `{"summary":"S","hypotheses":[{"title":"T","gap":"G","hypothesis":"H","impact":0.5,"feasibility":10.4}]}`
	res, err := NewValidator(ScoreClamp, nil).Validate(mustRepair(t, raw), DefaultContract())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	assert.Equal(t, 1, res.Hypotheses[0].Impact)
	assert.Equal(t, 10, res.Hypotheses[0].Feasibility)
}

func TestValidate_KeepsStringValuesVerbatim(t *testing.T) {
	raw := `{"summary":" S ","hypotheses":[{"title":"T ","gap":"  G","hypothesis":"H\n","impact":9,"feasibility":7}]}`
	res, err := NewValidator(ScoreClamp, nil).Validate(mustRepair(t, raw), DefaultContract())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	want := AnalysisResult{
		Summary:    " S ",
		Hypotheses: []Hypothesis{{Title: "T ", Gap: "  G", Hypothesis: "H\n", Impact: 9, Feasibility: 7}},
	}
	assert.Equal(t, want, res)
}

func TestValidate_SynonymsAndUnknownKeys(t *testing.T) {
	raw := `{"summary":"S","rejected":false,"research_hypotheses":[
		{"title":"T","research_gap":"G","hypothesis":"H","impact_score":4,"feasibility":3,"notes":"x"}]}`
	res, err := NewValidator(ScoreClamp, nil).Validate(mustRepair(t, raw), DefaultContract())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	assert.Equal(t, "G", res.Hypotheses[0].Gap)
	assert.Equal(t, 4, res.Hypotheses[0].Impact)
}

func TestValidate_AllOrNothing(t *testing.T) {
	tests := map[string]string{
		"missing summary":       `{"hypotheses":[{"title":"T","gap":"G","hypothesis":"H","impact":9,"feasibility":7}]}`,
		"empty hypotheses":      `{"summary":"S","hypotheses":[]}`,
		"missing gap":           `{"summary":"S","hypotheses":[{"title":"T","hypothesis":"H","impact":9,"feasibility":7}]}`,
		"one bad of two":        `{"summary":"S","hypotheses":[{"title":"T","gap":"G","hypothesis":"H","impact":9,"feasibility":7},{"title":"T"}]}`,
		"score not a number":    `{"summary":"S","hypotheses":[{"title":"T","gap":"G","hypothesis":"H","impact":"high","feasibility":7}]}`,
		"hypotheses not a list": `{"summary":"S","hypotheses":"none"}`,
		"blank required string": `{"summary":"   ","hypotheses":[{"title":"T","gap":"G","hypothesis":"H","impact":9,"feasibility":7}]}`,
		"blank item string":     `{"summary":"S","hypotheses":[{"title":"T","gap":" \t ","hypothesis":"H","impact":9,"feasibility":7}]}`,
	}
	v := NewValidator(ScoreClamp, nil)
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(mustRepair(t, raw), DefaultContract())
			if !errors.Is(err, common.ErrMalformed) {
				t.Fatalf("expected malformed, got %v", err)
			}
		})
	}
}

func TestValidate_AcceptsCountOtherThanTarget(t *testing.T) {
	raw := `{"summary":"S","hypotheses":[
		{"title":"A","gap":"G","hypothesis":"H","impact":9,"feasibility":7},
		{"title":"B","gap":"G","hypothesis":"H","impact":9,"feasibility":7}]}`
	res, err := NewValidator(ScoreClamp, nil).Validate(mustRepair(t, raw), DefaultContract().WithTarget(5))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	assert.Equal(t, 2, len(res.Hypotheses))
}

func TestValidator_CompilesSchemaOncePerContract(t *testing.T) {
	v := NewValidator(ScoreClamp, nil)
	a, err := v.schemaFor(DefaultContract())
	assert.Equal(t, nil, err)
	b, err := v.schemaFor(DefaultContract())
	assert.Equal(t, nil, err)
	assert.Equal(t, true, a == b)

	c, err := v.schemaFor(DefaultContract().WithTarget(5))
	assert.Equal(t, nil, err)
	assert.Equal(t, true, a != c)
}
