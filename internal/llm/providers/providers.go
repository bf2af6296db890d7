// Package providers registers every reasoning provider adapter.
package providers

import (
	"log/slog"

	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
	"github.com/joseph-ayodele/hypothesis-lab/internal/llm/anthropic"
	"github.com/joseph-ayodele/hypothesis-lab/internal/llm/gemini"
	"github.com/joseph-ayodele/hypothesis-lab/internal/llm/ollama"
	"github.com/joseph-ayodele/hypothesis-lab/internal/llm/openai"
)

// Factories maps provider names to adapter constructors.
func Factories() map[string]llm.Factory {
	return map[string]llm.Factory{
		"gemini":    gemini.New,
		"openai":    openai.New,
		"anthropic": anthropic.New,
		"ollama":    ollama.New,
	}
}

// NewInvoker returns an invoker with every adapter registered.
func NewInvoker(logger *slog.Logger) *llm.Invoker {
	return llm.NewInvoker(Factories(), logger)
}

// DefaultModel names the model used when a config leaves it empty.
func DefaultModel(provider string) string {
	switch provider {
	case "gemini":
		return gemini.DefaultModel
	case "openai":
		return openai.DefaultModel
	case "anthropic":
		return anthropic.DefaultModel
	case "ollama":
		return ollama.DefaultModel
	default:
		return ""
	}
}
