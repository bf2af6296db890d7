package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
)

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Client talks to a local Ollama server over /api/generate.
type Client struct {
	cfg    llm.ProviderConfig
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg llm.ProviderConfig, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = llm.DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// New is the llm.Factory for this provider.
func New(p llm.ProviderConfig, logger *slog.Logger) (llm.Reasoner, error) {
	return NewClient(p, logger), nil
}

func (c *Client) Name() string { return "ollama" }

func (c *Client) Generate(ctx context.Context, req llm.PromptRequest) (llm.ModelReply, error) {
	body := generateRequest{
		Model:  c.cfg.Model,
		Prompt: req.User,
		System: req.System,
		Stream: false,
		Options: map[string]any{
			"temperature": c.cfg.Temperature,
		},
	}
	if c.cfg.MaxTokens > 0 {
		body.Options["num_predict"] = c.cfg.MaxTokens
	}
	if c.cfg.Structured {
		body.Format = "json"
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/generate"
	raw, status, err := llm.PostJSON(ctx, c.http, llm.JSONCall{
		Provider: c.Name(),
		URL:      endpoint,
		Body:     body,
		APIKey:   c.cfg.APIKey,
	}, c.logger)
	if err != nil {
		var perr *llm.ProviderError
		if errors.As(err, &perr) {
			var apiErr generateResponse
			if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
				perr.Message = llm.Scrub(apiErr.Error, c.cfg.APIKey)
			}
			return llm.ModelReply{}, perr
		}
		return llm.ModelReply{}, &llm.ProviderError{Provider: c.Name(), Status: status, Err: err}
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return llm.ModelReply{}, &llm.ProviderError{Provider: c.Name(), Message: fmt.Sprintf("decode ollama response: %v", err), Err: err}
	}
	if out.Error != "" {
		return llm.ModelReply{}, &llm.ProviderError{Provider: c.Name(), Message: out.Error}
	}
	model := out.Model
	if model == "" {
		model = c.cfg.Model
	}
	return llm.ModelReply{Text: strings.TrimSpace(out.Response), Model: model}, nil
}
