package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/spf13/viper"

	"github.com/joseph-ayodele/hypothesis-lab/constants"
	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
	"github.com/joseph-ayodele/hypothesis-lab/internal/document"
	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
	"github.com/joseph-ayodele/hypothesis-lab/internal/repository"
)

const paperText = `Attention-based sequence models have improved machine translation quality,
but their cost grows quadratically with input length. We study sparse attention
patterns on long scientific documents and report perplexity and latency.`

const modelReply = "```json\n" + `{
  "summary": "The paper studies sparse attention. It reports gains on long inputs.",
  "hypotheses": [
    {"title": "Adaptive sparsity", "gap": "Fixed patterns", "hypothesis": "Learned sparsity helps", "impact": "8", "feasibility": 6.4},
    {"title": "Memory tokens", "gap": "Context loss", "hypothesis": "Global tokens recover context", "impact": 12, "feasibility": 5}
  ]
}` + "\n```"

func fakeOllama(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"model": "llama3.2", "response": reply, "done": true})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *common.Config {
	cfg := common.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.BaseURL = baseURL
	cfg.LLM.Timeout = 5 * time.Second
	cfg.Ledger.Driver = "sqlite"
	cfg.Ledger.DSN = "file::memory:"
	return cfg
}

func TestBuildApp_AnalyzeWithLedger(t *testing.T) {
	ctx := context.Background()
	ollama := fakeOllama(t, modelReply)
	cfg := testConfig(ollama.URL)
	assert.Equal(t, nil, cfg.Validate())

	a, err := buildApp(ctx, cfg, slog.Default())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()

	assert.Equal(t, "llama3.2", a.provider.Model)

	doc := document.NewDocument("paper.txt", []byte(paperText), "")
	res, err := a.processor.Analyze(ctx, doc, a.provider)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	assert.Equal(t, 2, len(res.Hypotheses))
	assert.Equal(t, 8, res.Hypotheses[0].Impact)
	assert.Equal(t, 6, res.Hypotheses[0].Feasibility)
	assert.Equal(t, 10, res.Hypotheses[1].Impact)

	jobs, err := a.jobs.List(ctx, repository.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	assert.Equal(t, 1, len(jobs))
	assert.Equal(t, constants.JobStatusSucceeded, jobs[0].Status)
	assert.Equal(t, "ollama", jobs[0].Provider)
	assert.Equal(t, 2, jobs[0].Hypotheses)
}

func TestBuildApp_ModelRejection(t *testing.T) {
	ctx := context.Background()
	ollama := fakeOllama(t, `{"rejected": true, "reason": "INVALID_DOCUMENT: this is a resume"}`)
	cfg := testConfig(ollama.URL)
	cfg.Ledger.Driver = ""

	a, err := buildApp(ctx, cfg, slog.Default())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()
	assert.Equal(t, true, a.jobs == nil)

	_, err = a.processor.Analyze(ctx, document.NewDocument("paper.txt", []byte(paperText), ""), a.provider)
	assert.Equal(t, true, errors.Is(err, common.ErrRejected))
	perr := common.AsPipelineError(err)
	assert.Equal(t, common.RejectModel, perr.Origin)
	assert.Equal(t, "this is a resume", perr.Reason)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HYPOTHESIS_LLM_PROVIDER", "OpenAI")
	t.Setenv("HYPOTHESIS_DOCUMENT_MAX_PAGES", "3")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := common.LoadConfig(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Document.MaxPages)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, nil, cfg.Validate())

	pc := providerConfig(cfg.LLM)
	assert.Equal(t, "gpt-4o-mini", pc.Model)
	assert.Equal(t, 30*time.Second, pc.Timeout)
}

func TestRedacted(t *testing.T) {
	cfg := *common.DefaultConfig()
	cfg.LLM.APIKey = "secret"
	cfg.Ledger.Driver = "postgres"
	cfg.Ledger.DSN = "postgres://u:p@h/db"

	out := redacted(cfg)
	assert.Equal(t, "****", out.LLM.APIKey)
	assert.Equal(t, "****", out.Ledger.DSN)
	assert.Equal(t, "secret", cfg.LLM.APIKey)

	var buf bytes.Buffer
	assert.Equal(t, nil, writeConfig(&buf, out))
	assert.Equal(t, false, strings.Contains(buf.String(), "secret"))
	assert.Equal(t, true, strings.Contains(buf.String(), "provider: gemini"))
}

func TestWriteResult(t *testing.T) {
	res := &llm.AnalysisResult{
		Summary:    "S.",
		Hypotheses: []llm.Hypothesis{{Title: "T", Gap: "G", Hypothesis: "H", Impact: 3, Feasibility: 9}},
	}

	var js bytes.Buffer
	assert.Equal(t, nil, writeResult(&js, res, "json"))
	var back llm.AnalysisResult
	assert.Equal(t, nil, json.Unmarshal(js.Bytes(), &back))
	assert.Equal(t, *res, back)

	var ym bytes.Buffer
	assert.Equal(t, nil, writeResult(&ym, res, "yaml"))
	assert.Equal(t, true, strings.Contains(ym.String(), "feasibility: 9"))

	assert.NotEqual(t, nil, writeResult(&ym, res, "xml"))
}

func TestParseDay(t *testing.T) {
	d, err := parseDay("2026-01-31")
	assert.Equal(t, nil, err)
	assert.Equal(t, 31, d.Day())

	d, err = parseDay("  ")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, d == nil)

	_, err = parseDay("yesterday")
	assert.NotEqual(t, nil, err)
}

func TestNewLogger(t *testing.T) {
	l := newLogger(common.LogConfig{Level: "warn", Format: "text"})
	assert.Equal(t, false, l.Enabled(context.Background(), slog.LevelInfo))
	assert.Equal(t, true, l.Enabled(context.Background(), slog.LevelWarn))

	l = newLogger(common.LogConfig{Level: "nonsense"})
	assert.Equal(t, true, l.Enabled(context.Background(), slog.LevelInfo))
}
