package llm

// Fields names the keys of the reply object.
type Fields struct {
	Summary     string
	Hypotheses  string
	Title       string
	Gap         string
	Hypothesis  string
	Impact      string
	Feasibility string
}

// SchemaContract is the single definition of the reply shape. The prompt
// builder renders it and the validator checks against it.
type SchemaContract struct {
	Fields           Fields
	TargetHypotheses int // advisory; any non-empty list validates
	ScoreMin         int
	ScoreMax         int
	SummarySentences int
}

// DefaultContract returns the contract used by the service.
func DefaultContract() SchemaContract {
	return SchemaContract{
		Fields: Fields{
			Summary:     "summary",
			Hypotheses:  "hypotheses",
			Title:       "title",
			Gap:         "gap",
			Hypothesis:  "hypothesis",
			Impact:      "impact",
			Feasibility: "feasibility",
		},
		TargetHypotheses: 5,
		ScoreMin:         1,
		ScoreMax:         10,
		SummarySentences: 2,
	}
}

// WithTarget returns a copy with a different target hypothesis count.
func (c SchemaContract) WithTarget(n int) SchemaContract {
	if n > 0 {
		c.TargetHypotheses = n
	}
	return c
}

// TextFields lists the string fields of a hypothesis record.
func (c SchemaContract) TextFields() []string {
	return []string{c.Fields.Title, c.Fields.Gap, c.Fields.Hypothesis}
}

// ScoreFields lists the integer score fields of a hypothesis record.
func (c SchemaContract) ScoreFields() []string {
	return []string{c.Fields.Impact, c.Fields.Feasibility}
}

// JSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Providers with a structured mode get it as a constraint and the validator
// compiles the same map.
func (c SchemaContract) JSONSchema() map[string]any {
	itemProps := map[string]any{}
	for _, f := range c.TextFields() {
		itemProps[f] = map[string]any{"type": "string", "minLength": 1}
	}
	for _, f := range c.ScoreFields() {
		itemProps[f] = map[string]any{"type": "integer", "minimum": c.ScoreMin, "maximum": c.ScoreMax}
	}
	required := append(c.TextFields(), c.ScoreFields()...)

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			c.Fields.Summary: map[string]any{"type": "string", "minLength": 1},
			c.Fields.Hypotheses: map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties":           itemProps,
					"required":             required,
				},
			},
		},
		"required": []string{c.Fields.Summary, c.Fields.Hypotheses},
	}
}

// allowedKeys lists every key the contract defines, top level and per item.
func (c SchemaContract) allowedKeys() (top, item map[string]struct{}) {
	top = map[string]struct{}{c.Fields.Summary: {}, c.Fields.Hypotheses: {}}
	item = map[string]struct{}{}
	for _, f := range append(c.TextFields(), c.ScoreFields()...) {
		item[f] = struct{}{}
	}
	return top, item
}
