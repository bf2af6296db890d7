package llm

import (
	"context"
	"time"
)

// ProviderConfig selects and parameterizes one reasoning provider. It is built
// at the edge (CLI, server) and passed in explicitly; nothing below reads the
// environment.
type ProviderConfig struct {
	Provider    string // gemini | openai | anthropic | ollama
	Model       string // empty picks the provider default
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	Structured  bool // ask for JSON-constrained output where supported
}

// PromptRequest is the rendered prompt for one invocation.
type PromptRequest struct {
	System   string // role framing, output contract and rejection rule
	User     string // the excerpt block
	Excerpt  string // excerpt exactly as received
	Contract SchemaContract
}

// Text joins System and User for providers without a separate system slot.
func (r PromptRequest) Text() string {
	return r.System + "\n\n" + r.User
}

// ModelReply is the raw provider output.
type ModelReply struct {
	Text       string
	Provider   string
	Model      string
	Structured bool // structured mode was requested, not a guarantee of JSON
	Elapsed    time.Duration
}

// Hypothesis is one research hypothesis in an AnalysisResult.
type Hypothesis struct {
	Title       string `json:"title" yaml:"title"`
	Gap         string `json:"gap" yaml:"gap"`
	Hypothesis  string `json:"hypothesis" yaml:"hypothesis"`
	Impact      int    `json:"impact" yaml:"impact"`           // 1..10
	Feasibility int    `json:"feasibility" yaml:"feasibility"` // 1..10
}

// AnalysisResult is the validated analysis returned to callers.
type AnalysisResult struct {
	Summary    string       `json:"summary" yaml:"summary"`
	Hypotheses []Hypothesis `json:"hypotheses" yaml:"hypotheses"`
}

// Candidate is a parsed but unvalidated reply object.
type Candidate map[string]any

// Reasoner is one provider adapter. Implementations return *ProviderError (or
// a wrapped SDK error) on failure; classification happens in the Invoker.
type Reasoner interface {
	Name() string
	Generate(ctx context.Context, req PromptRequest) (ModelReply, error)
}
