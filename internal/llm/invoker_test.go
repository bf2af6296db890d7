package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
)

type stubReasoner struct {
	calls int
	reply string
	err   error
	delay time.Duration
}

func (s *stubReasoner) Name() string { return "stub" }

func (s *stubReasoner) Generate(ctx context.Context, _ PromptRequest) (ModelReply, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ModelReply{}, ctx.Err()
		}
	}
	if s.err != nil {
		return ModelReply{}, s.err
	}
	return ModelReply{Text: s.reply, Model: "stub-1"}, nil
}

func stubInvoker(r *stubReasoner) *Invoker {
	return NewInvoker(map[string]Factory{
		"stub": func(ProviderConfig, *slog.Logger) (Reasoner, error) { return r, nil },
	}, nil)
}

func TestInvoke_Success(t *testing.T) {
	r := &stubReasoner{reply: validReply}
	reply, err := stubInvoker(r).Invoke(context.Background(), PromptRequest{}, ProviderConfig{Provider: "stub", Structured: true})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	assert.Equal(t, validReply, reply.Text)
	assert.Equal(t, "stub", reply.Provider)
	assert.Equal(t, "stub-1", reply.Model)
	assert.Equal(t, true, reply.Structured)
	assert.Equal(t, 1, r.calls)
}

func TestInvoke_NoRetryOnQuota(t *testing.T) {
	r := &stubReasoner{err: &ProviderError{Provider: "stub", Status: 429}}
	_, err := stubInvoker(r).Invoke(context.Background(), PromptRequest{}, ProviderConfig{Provider: "stub"})
	assert.Equal(t, true, errors.Is(err, common.ErrQuota))
	assert.Equal(t, 1, r.calls)
}

func TestInvoke_Timeout(t *testing.T) {
	r := &stubReasoner{reply: validReply, delay: time.Second}
	_, err := stubInvoker(r).Invoke(context.Background(), PromptRequest{}, ProviderConfig{Provider: "stub", Timeout: 20 * time.Millisecond})
	assert.Equal(t, true, errors.Is(err, common.ErrTransient))
}

func TestInvoke_UnknownProvider(t *testing.T) {
	_, err := stubInvoker(&stubReasoner{}).Invoke(context.Background(), PromptRequest{}, ProviderConfig{Provider: "nope"})
	assert.Equal(t, true, errors.Is(err, common.ErrTransient))
}

func TestInvoke_FactoryErrorIsScrubbed(t *testing.T) {
	inv := NewInvoker(map[string]Factory{
		"stub": func(cfg ProviderConfig, _ *slog.Logger) (Reasoner, error) {
			return nil, errors.New("bad key " + cfg.APIKey)
		},
	}, nil)
	_, err := inv.Invoke(context.Background(), PromptRequest{}, ProviderConfig{Provider: "stub", APIKey: "k-12345678"})
	pe := common.AsPipelineError(err)
	assert.Equal(t, common.KindTransientProviderFailure, pe.Kind)
	assert.Equal(t, "provider setup: bad key [redacted]", pe.Detail)
}

func TestInvoke_LogsCarryRequestAndJobID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	r := &stubReasoner{reply: validReply}
	inv := NewInvoker(map[string]Factory{
		"stub": func(ProviderConfig, *slog.Logger) (Reasoner, error) { return r, nil },
	}, logger)

	ctx := common.WithJobID(common.WithRequestID(context.Background(), "req-7"), "job-7")
	_, err := inv.Invoke(ctx, PromptRequest{}, ProviderConfig{Provider: "stub"})
	assert.Equal(t, nil, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, 2, len(lines))
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line %q: %v", line, err)
		}
		assert.Equal(t, "req-7", entry["req_id"])
		assert.Equal(t, "job-7", entry["job_id"])
		assert.Equal(t, "stub", entry["provider"])
	}
}
