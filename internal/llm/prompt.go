package llm

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/hypothesis-lab/constants"
)

// BuildPrompt renders the prompt for one excerpt. The output depends only on
// its arguments, and the excerpt is embedded exactly as given.
func BuildPrompt(excerpt string, contract SchemaContract, sentinel string) PromptRequest {
	return PromptRequest{
		System:   BuildSystemPrompt(contract, sentinel),
		User:     BuildUserPrompt(excerpt),
		Excerpt:  excerpt,
		Contract: contract,
	}
}

// BuildSystemPrompt composes the role framing, output shape and rejection rule.
func BuildSystemPrompt(contract SchemaContract, sentinel string) string {
	f := contract.Fields
	parts := []string{
		"Act as a senior research scientist reviewing the excerpt of a " + constants.AcceptedCategory + ".",
		"Return ONLY a single JSON object, with no markdown and no commentary.",
		fmt.Sprintf("%q: a %d sentence overview of the paper.", f.Summary, contract.SummarySentences),
		fmt.Sprintf("%q: an array of %d research hypotheses that build on the paper.", f.Hypotheses, contract.TargetHypotheses),
		"Each hypothesis is an object with exactly these fields: " + renderItemShape(contract) + ".",
		fmt.Sprintf("%q names the hypothesis in a few words.", f.Title),
		fmt.Sprintf("%q describes the open gap in the paper it addresses.", f.Gap),
		fmt.Sprintf("%q states the testable hypothesis.", f.Hypothesis),
		fmt.Sprintf("%q and %q are integers from %d to %d.", f.Impact, f.Feasibility, contract.ScoreMin, contract.ScoreMax),
		"Example shape: " + renderExample(contract),
		fmt.Sprintf("If the document is not a %s (for example a %s, invoice or form), do not analyze it. "+
			"Instead return exactly {\"rejected\": true, \"reason\": \"%s: <one short sentence>\"}.",
			constants.AcceptedCategory, constants.DisallowedCategory, sentinel),
		"Never output null. Never add fields that are not listed.",
	}
	return strings.Join(parts, "\n")
}

// BuildUserPrompt wraps the excerpt in delimiters.
func BuildUserPrompt(excerpt string) string {
	var b strings.Builder
	b.WriteString("Paper excerpt:\n<<<\n")
	b.WriteString(excerpt)
	b.WriteString("\n>>>")
	return b.String()
}

func renderItemShape(c SchemaContract) string {
	var fields []string
	for _, name := range c.TextFields() {
		fields = append(fields, fmt.Sprintf("%q (string)", name))
	}
	for _, name := range c.ScoreFields() {
		fields = append(fields, fmt.Sprintf("%q (integer)", name))
	}
	return strings.Join(fields, ", ")
}

func renderExample(c SchemaContract) string {
	f := c.Fields
	return fmt.Sprintf(`{%q: "...", %q: [{%q: "...", %q: "...", %q: "...", %q: %d, %q: %d}]}`,
		f.Summary, f.Hypotheses, f.Title, f.Gap, f.Hypothesis,
		f.Impact, c.ScoreMax-1, f.Feasibility, c.ScoreMax-3)
}
