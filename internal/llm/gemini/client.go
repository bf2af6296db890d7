package gemini

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
)

// DefaultModel is the flash tier, sized for the excerpt budget.
const DefaultModel = "gemini-2.5-flash"

// Client adapts the Gemini API through google.golang.org/genai.
type Client struct {
	cfg    llm.ProviderConfig
	logger *slog.Logger
}

func NewClient(cfg llm.ProviderConfig, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = llm.DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

// New is the llm.Factory for this provider.
func New(p llm.ProviderConfig, logger *slog.Logger) (llm.Reasoner, error) {
	if p.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	return NewClient(p, logger), nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Generate(ctx context.Context, req llm.PromptRequest) (llm.ModelReply, error) {
	cc := &genai.ClientConfig{
		APIKey:     c.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: c.cfg.Timeout},
	}
	if c.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return llm.ModelReply{}, &llm.ProviderError{Provider: c.Name(), Message: "client setup", Err: err}
	}

	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(c.cfg.Temperature),
	}
	if c.cfg.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(c.cfg.MaxTokens)
	}
	if c.cfg.Structured {
		gc.ResponseMIMEType = "application/json"
	}

	resp, err := client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(req.User), gc)
	if err != nil {
		return llm.ModelReply{}, c.wrapError(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		reason := "empty response"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = "blocked: " + string(resp.PromptFeedback.BlockReason)
		}
		return llm.ModelReply{}, &llm.ProviderError{Provider: c.Name(), Message: reason}
	}
	model := resp.ModelVersion
	if model == "" {
		model = c.cfg.Model
	}
	if resp.UsageMetadata != nil {
		c.logger.Debug("llm.gemini.usage",
			"model", model,
			"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
			"candidate_tokens", resp.UsageMetadata.CandidatesTokenCount,
		)
	}
	return llm.ModelReply{Text: text, Model: model}, nil
}

func (c *Client) wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.ProviderError{Provider: c.Name(), Status: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &llm.ProviderError{Provider: c.Name(), Status: apiErrPtr.Code, Message: apiErrPtr.Message, Err: err}
	}
	return &llm.ProviderError{Provider: c.Name(), Err: err}
}
