package llm

import (
	"log/slog"
	"maps"
	"strings"
)

// synonyms maps keys models commonly use instead of the contract names.
var synonyms = map[string]string{
	"overview":            "summary",
	"abstract_summary":    "summary",
	"research_hypotheses": "hypotheses",
	"hypothesis_list":     "hypotheses",
	"name":                "title",
	"research_gap":        "gap",
	"statement":           "hypothesis",
	"impact_score":        "impact",
	"feasibility_score":   "feasibility",
}

// NormalizeCandidate prepares a repaired reply for schema validation:
//   - renames known synonyms of contract fields
//   - drops keys the contract does not define
//
// String values are kept exactly as the model wrote them. Required fields are
// never invented. The returned list names every change.
func NormalizeCandidate(c Candidate, contract SchemaContract, logger *slog.Logger) (Candidate, []string) {
	if logger == nil {
		logger = slog.Default()
	}
	top, item := contract.allowedKeys()
	names := contractNames(contract)

	out := Candidate(maps.Clone(map[string]any(c)))
	changes := normalizeObject(out, top, names, "")

	if list, ok := out[contract.Fields.Hypotheses].([]any); ok {
		cleaned := make([]any, 0, len(list))
		for i, el := range list {
			obj, ok := el.(map[string]any)
			if !ok {
				cleaned = append(cleaned, el)
				continue
			}
			obj = maps.Clone(obj)
			changes = append(changes, normalizeObject(obj, item, names, contract.Fields.Hypotheses+"["+itoa(i)+"].")...)
			cleaned = append(cleaned, obj)
		}
		out[contract.Fields.Hypotheses] = cleaned
	}

	if len(changes) > 0 {
		logger.Debug("llm.validate.normalize", "changes", changes)
	}
	return out, changes
}

func normalizeObject(m map[string]any, allowed map[string]struct{}, names map[string]string, prefix string) []string {
	var changes []string
	for from, to := range names {
		if _, ok := allowed[to]; !ok {
			continue
		}
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			changes = append(changes, prefix+from+"->"+to)
		}
	}
	for k := range m {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			changes = append(changes, prefix+k+"(unknown)")
		}
	}
	return changes
}

// blankText returns the path of the first required text field that holds only
// whitespace, or "" when every one has visible content. The schema's minLength
// counts whitespace, so this check runs alongside it.
func blankText(c Candidate, contract SchemaContract) string {
	isBlank := func(v any) bool {
		s, ok := v.(string)
		return ok && strings.TrimSpace(s) == ""
	}
	if isBlank(c[contract.Fields.Summary]) {
		return contract.Fields.Summary
	}
	list, _ := c[contract.Fields.Hypotheses].([]any)
	for i, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		for _, f := range contract.TextFields() {
			if isBlank(obj[f]) {
				return contract.Fields.Hypotheses + "[" + itoa(i) + "]." + f
			}
		}
	}
	return ""
}

// contractNames resolves the synonym table against the contract's field names
// so a renamed contract field still receives its synonyms.
func contractNames(c SchemaContract) map[string]string {
	d := DefaultContract().Fields
	actual := map[string]string{
		d.Summary:     c.Fields.Summary,
		d.Hypotheses:  c.Fields.Hypotheses,
		d.Title:       c.Fields.Title,
		d.Gap:         c.Fields.Gap,
		d.Hypothesis:  c.Fields.Hypothesis,
		d.Impact:      c.Fields.Impact,
		d.Feasibility: c.Fields.Feasibility,
	}
	out := make(map[string]string, len(synonyms))
	for from, to := range synonyms {
		if from == actual[to] {
			continue
		}
		out[from] = actual[to]
	}
	return out
}
