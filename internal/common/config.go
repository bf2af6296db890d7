package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Document DocumentConfig `mapstructure:"document" yaml:"document"`
	Classify ClassifyConfig `mapstructure:"classify" yaml:"classify"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Ledger   LedgerConfig   `mapstructure:"ledger" yaml:"ledger"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug | info | warn | error
	Format string `mapstructure:"format" yaml:"format"` // json | text
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr" yaml:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr" yaml:"grpc_addr"` // empty disables gRPC
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	RatePerSecond   float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	RateBurst       int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DocumentConfig bounds the excerpt sent to the model.
type DocumentConfig struct {
	MaxPages  int    `mapstructure:"max_pages" yaml:"max_pages"`
	MaxChars  int    `mapstructure:"max_chars" yaml:"max_chars"`
	MinChars  int    `mapstructure:"min_chars" yaml:"min_chars"`
	PDFEngine string `mapstructure:"pdf_engine" yaml:"pdf_engine"` // auto | ledongthuc | pdfcpu | pdftotext
}

// ClassifyConfig tunes the local acceptability heuristic.
type ClassifyConfig struct {
	Threshold int `mapstructure:"threshold" yaml:"threshold"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider         string        `mapstructure:"provider" yaml:"provider"`
	Model            string        `mapstructure:"model" yaml:"model"`
	APIKey           string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL          string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Temperature      float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens        int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Structured       bool          `mapstructure:"structured" yaml:"structured"`
	ScorePolicy      string        `mapstructure:"score_policy" yaml:"score_policy"` // clamp | reject
	TargetHypotheses int           `mapstructure:"target_hypotheses" yaml:"target_hypotheses"`
}

// LedgerConfig points at the analysis_job ledger. An empty driver disables it.
type LedgerConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // sqlite | postgres | ""
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns" yaml:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

// SupportedProviders lists the provider names the invoker can build.
var SupportedProviders = []string{"gemini", "openai", "anthropic", "ollama"}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Server: ServerConfig{
			HTTPAddr:        ":8000",
			GRPCAddr:        "",
			MaxUploadBytes:  20 << 20,
			RatePerSecond:   0.5,
			RateBurst:       3,
			ShutdownTimeout: 15 * time.Second,
		},
		Document: DocumentConfig{
			MaxPages:  10,
			MaxChars:  8000,
			MinChars:  50,
			PDFEngine: "auto",
		},
		Classify: ClassifyConfig{Threshold: 4},
		LLM: LLMConfig{
			Provider:         "gemini",
			Model:            "",
			Temperature:      0.2,
			MaxTokens:        2048,
			Timeout:          30 * time.Second,
			Structured:       true,
			ScorePolicy:      "clamp",
			TargetHypotheses: 5,
		},
		Ledger: LedgerConfig{
			Driver:          "",
			MaxConns:        5,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
	}
}

// SetDefaults registers DefaultConfig on v so env vars and config files can
// override individual keys.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("server.http_addr", d.Server.HTTPAddr)
	v.SetDefault("server.grpc_addr", d.Server.GRPCAddr)
	v.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)
	v.SetDefault("server.rate_per_second", d.Server.RatePerSecond)
	v.SetDefault("server.rate_burst", d.Server.RateBurst)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("document.max_pages", d.Document.MaxPages)
	v.SetDefault("document.max_chars", d.Document.MaxChars)
	v.SetDefault("document.min_chars", d.Document.MinChars)
	v.SetDefault("document.pdf_engine", d.Document.PDFEngine)

	v.SetDefault("classify.threshold", d.Classify.Threshold)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.structured", d.LLM.Structured)
	v.SetDefault("llm.score_policy", d.LLM.ScorePolicy)
	v.SetDefault("llm.target_hypotheses", d.LLM.TargetHypotheses)

	v.SetDefault("ledger.driver", d.Ledger.Driver)
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("ledger.max_conns", d.Ledger.MaxConns)
	v.SetDefault("ledger.min_conns", d.Ledger.MinConns)
	v.SetDefault("ledger.max_conn_lifetime", d.Ledger.MaxConnLifetime)
	v.SetDefault("ledger.dial_timeout", d.Ledger.DialTimeout)
}

// LoadConfig decodes the merged viper state (defaults, file, env, flags) and
// fills a missing API key from the provider's conventional env variable.
func LoadConfig(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.APIKey == "" {
		if env := ProviderKeyEnv(cfg.LLM.Provider); env != "" {
			cfg.LLM.APIKey = os.Getenv(env)
		}
	}
	if cfg.LLM.Provider == "ollama" && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	return cfg, nil
}

// ProviderKeyEnv names the conventional API key variable of a provider.
func ProviderKeyEnv(provider string) string {
	switch provider {
	case "gemini":
		return "GEMINI_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("llm.provider", c.LLM.Provider, Required, OneOf(SupportedProviders...))
	v.Field("llm.score_policy", c.LLM.ScorePolicy, OneOf("clamp", "reject"))
	v.Field("llm.target_hypotheses", c.LLM.TargetHypotheses, Positive)
	v.Field("document.max_pages", c.Document.MaxPages, Positive)
	v.Field("document.max_chars", c.Document.MaxChars, Positive)
	v.Field("document.pdf_engine", c.Document.PDFEngine, OneOf("auto", "ledongthuc", "pdfcpu", "pdftotext"))
	v.Field("classify.threshold", c.Classify.Threshold, Positive)
	v.Field("log.format", c.Log.Format, OneOf("json", "text"))
	if c.LLM.Provider != "ollama" {
		if ProviderKeyEnv(c.LLM.Provider) != "" && c.LLM.APIKey == "" {
			v.errors = append(v.errors, ValidationError{
				Field:   "llm.api_key",
				Value:   "",
				Message: "is required (or set " + ProviderKeyEnv(c.LLM.Provider) + ")",
			})
		}
	}
	if c.Ledger.Driver != "" {
		v.Field("ledger.driver", c.Ledger.Driver, OneOf("sqlite", "postgres"))
		v.Field("ledger.dsn", c.Ledger.DSN, Required)
	}
	if err := v.Error(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
