package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
)

func (c *Client) Name() string { return "openai" }

// Generate implements llm.Reasoner over chat completions.
func (c *Client) Generate(ctx context.Context, req llm.PromptRequest) (llm.ModelReply, error) {
	if c.cfg.APIKey == "" {
		return llm.ModelReply{}, &llm.ProviderError{Provider: c.Name(), Message: "api key is required"}
	}
	cc := goopenai.DefaultConfig(c.cfg.APIKey)
	if c.cfg.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(c.cfg.BaseURL, "/")
	}
	cc.HTTPClient = c.http
	client := goopenai.NewClientWithConfig(cc)

	chatReq := goopenai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.System},
			{Role: goopenai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if c.cfg.Structured {
		chatReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return llm.ModelReply{}, c.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return llm.ModelReply{}, &llm.ProviderError{Provider: c.Name(), Message: "no choices in openai response"}
	}
	c.logger.Debug("llm.openai.usage",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	model := resp.Model
	if model == "" {
		model = c.cfg.Model
	}
	return llm.ModelReply{
		Text:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Model: model,
	}, nil
}

func (c *Client) wrapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &llm.ProviderError{Provider: c.Name(), Status: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.ProviderError{Provider: c.Name(), Status: reqErr.HTTPStatusCode, Err: err}
	}
	return &llm.ProviderError{Provider: c.Name(), Message: fmt.Sprintf("openai request: %v", err), Err: err}
}
