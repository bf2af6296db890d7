package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
)

// DefaultModel is the lowest-cost model of the family.
const DefaultModel = "claude-3-5-haiku-latest"

const defaultMaxTokens = 2048

// Client adapts the Anthropic messages API. Anthropic has no JSON response
// mode, so Structured only adds a reminder to the system prompt.
type Client struct {
	cfg    llm.ProviderConfig
	client anthropic.Client
	logger *slog.Logger
}

func NewClient(cfg llm.ProviderConfig, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = llm.DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{cfg: cfg, client: anthropic.NewClient(opts...), logger: logger}
}

// New is the llm.Factory for this provider.
func New(p llm.ProviderConfig, logger *slog.Logger) (llm.Reasoner, error) {
	if p.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	return NewClient(p, logger), nil
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) Generate(ctx context.Context, req llm.PromptRequest) (llm.ModelReply, error) {
	system := req.System
	if c.cfg.Structured {
		system += "\nRespond with the JSON object only."
	}
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.cfg.Model),
		MaxTokens:   int64(c.cfg.MaxTokens),
		Temperature: anthropic.Float(float64(c.cfg.Temperature)),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return llm.ModelReply{}, &llm.ProviderError{Provider: c.Name(), Status: apiErr.StatusCode, Err: err}
		}
		return llm.ModelReply{}, &llm.ProviderError{Provider: c.Name(), Err: err}
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return llm.ModelReply{}, &llm.ProviderError{Provider: c.Name(), Message: "no text in anthropic response"}
	}
	c.logger.Debug("llm.anthropic.usage",
		"model", string(resp.Model),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", string(resp.StopReason),
	)
	return llm.ModelReply{Text: strings.TrimSpace(sb.String()), Model: string(resp.Model)}, nil
}
