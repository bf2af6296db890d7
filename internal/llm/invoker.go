package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
)

// DefaultTimeout bounds a provider call when the config leaves it unset.
const DefaultTimeout = 30 * time.Second

// Factory builds a Reasoner for one invocation.
type Factory func(cfg ProviderConfig, logger *slog.Logger) (Reasoner, error)

// Invoker sends a prompt to the configured provider. It never retries.
type Invoker struct {
	factories map[string]Factory
	logger    *slog.Logger
}

func NewInvoker(factories map[string]Factory, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{factories: factories, logger: logger}
}

// Providers lists the registered provider names.
func (i *Invoker) Providers() []string {
	names := make([]string, 0, len(i.factories))
	for n := range i.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke performs a single awaited provider call bounded by cfg.Timeout.
// Errors are *common.PipelineError of kind QuotaExceeded or
// TransientProviderFailure.
func (i *Invoker) Invoke(ctx context.Context, req PromptRequest, cfg ProviderConfig) (ModelReply, error) {
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
		ctx = common.WithRequestID(ctx, reqID)
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	factory, ok := i.factories[provider]
	if !ok {
		return ModelReply{}, common.Transient(fmt.Sprintf("unknown provider %q", cfg.Provider), nil)
	}
	reasoner, err := factory(cfg, i.logger)
	if err != nil {
		return ModelReply{}, common.Transient("provider setup: "+Scrub(err.Error(), cfg.APIKey), nil)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := i.logger.With("req_id", reqID, "provider", reasoner.Name())
	if jobID := common.JobIDFromContext(ctx); jobID != "" {
		log = log.With("job_id", jobID)
	}

	start := time.Now()
	log.Info("llm.invoke.start",
		"model", cfg.Model,
		"structured", cfg.Structured,
		"prompt_len", len(req.System)+len(req.User),
	)

	reply, err := reasoner.Generate(callCtx, req)
	elapsed := time.Since(start)
	if err != nil {
		perr := ClassifyError(err, cfg)
		log.Error("llm.invoke.error",
			"kind", string(perr.Kind),
			"detail", perr.Detail,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		return ModelReply{}, perr
	}

	reply.Provider = reasoner.Name()
	reply.Structured = cfg.Structured
	reply.Elapsed = elapsed
	log.Info("llm.invoke.ok",
		"model", reply.Model,
		"reply_len", len(reply.Text),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return reply, nil
}
