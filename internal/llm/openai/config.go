package openai

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
)

// DefaultModel is the lowest-cost chat model of the family.
const DefaultModel = "gpt-4o-mini"

// Config for the OpenAI client.
type Config struct {
	APIKey      string
	BaseURL     string // default https://api.openai.com/v1
	Model       string
	Temperature float32 // 0..2
	MaxTokens   int
	Timeout     time.Duration // http client timeout
	Structured  bool          // response_format json_object
}

// ConfigFrom maps a ProviderConfig onto the client config.
func ConfigFrom(p llm.ProviderConfig) Config {
	return Config{
		APIKey:      p.APIKey,
		BaseURL:     p.BaseURL,
		Model:       p.Model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Timeout:     p.Timeout,
		Structured:  p.Structured,
	}
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = llm.DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// New is the llm.Factory for this provider.
func New(p llm.ProviderConfig, logger *slog.Logger) (llm.Reasoner, error) {
	return NewClient(ConfigFrom(p), logger), nil
}
