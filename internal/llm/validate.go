package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
)

// Validator turns a repaired Candidate into an AnalysisResult or fails with
// a MalformedModelOutput error. A result is all-or-nothing.
type Validator struct {
	policy ScorePolicy
	logger *slog.Logger

	mu       sync.Mutex
	compiled map[SchemaContract]*jsonschema.Schema
}

func NewValidator(policy ScorePolicy, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = ScoreClamp
	}
	return &Validator{policy: policy, logger: logger, compiled: map[SchemaContract]*jsonschema.Schema{}}
}

// Policy reports the configured score policy.
func (v *Validator) Policy() ScorePolicy { return v.policy }

func (v *Validator) Validate(c Candidate, contract SchemaContract) (AnalysisResult, error) {
	schema, err := v.schemaFor(contract)
	if err != nil {
		return AnalysisResult{}, common.Malformed("schema compile", err)
	}

	norm, _ := NormalizeCandidate(c, contract, v.logger)
	if changed := CoerceScores(norm, contract, v.policy); len(changed) > 0 {
		v.logger.Warn("llm.validate.scores_coerced", "fields", changed, "policy", string(v.policy))
	}

	if err := schema.Validate(map[string]any(norm)); err != nil {
		return AnalysisResult{}, common.Malformed("reply does not match schema", err)
	}
	if field := blankText(norm, contract); field != "" {
		return AnalysisResult{}, common.Malformed("blank value for "+field, nil)
	}

	res := buildResult(norm, contract)
	if len(res.Hypotheses) != contract.TargetHypotheses {
		v.logger.Info("llm.validate.hypothesis_count",
			"got", len(res.Hypotheses), "target", contract.TargetHypotheses)
	}
	return res, nil
}

func (v *Validator) schemaFor(contract SchemaContract) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.compiled[contract]; ok {
		return s, nil
	}
	s, err := compileSchema(contract.JSONSchema())
	if err != nil {
		return nil, err
	}
	v.compiled[contract] = s
	return s, nil
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// buildResult reads a schema-valid candidate by contract field names.
func buildResult(c Candidate, contract SchemaContract) AnalysisResult {
	f := contract.Fields
	res := AnalysisResult{Summary: c[f.Summary].(string)}
	for _, el := range c[f.Hypotheses].([]any) {
		obj := el.(map[string]any)
		res.Hypotheses = append(res.Hypotheses, Hypothesis{
			Title:       obj[f.Title].(string),
			Gap:         obj[f.Gap].(string),
			Hypothesis:  obj[f.Hypothesis].(string),
			Impact:      int(obj[f.Impact].(float64)),
			Feasibility: int(obj[f.Feasibility].(float64)),
		})
	}
	return res
}
