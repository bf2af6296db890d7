package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
)

// JSONCall is one POST of a JSON body to a provider endpoint.
type JSONCall struct {
	Provider string
	URL      string
	Body     any
	Headers  map[string]string
	// APIKey is scrubbed from logged URLs and error messages.
	APIKey string
}

// PostJSON sends call and returns the raw response body and status. A non-2xx
// answer comes back as a *ProviderError named after call.Provider, with the
// body scrubbed of credentials. Log lines carry the request id from ctx so a
// provider round trip can be matched to the inbound request.
func PostJSON(ctx context.Context, client *http.Client, call JSONCall, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	log := logger.With("req_id", reqID, "provider", call.Provider)
	if jobID := common.JobIDFromContext(ctx); jobID != "" {
		log = log.With("job_id", jobID)
	}

	payload, err := json.Marshal(call.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("encode %s request: %w", call.Provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build %s request: %w", call.Provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range call.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	log.Debug("llm.http.request", "url", Scrub(call.URL, call.APIKey), "content_length", len(payload))

	resp, err := client.Do(req)
	if err != nil {
		log.Warn("llm.http.send_error", "error", Scrub(err.Error(), call.APIKey), "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warn("llm.http.body_close_error", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	log.Info("llm.http.response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read %s response: %w", call.Provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return raw, resp.StatusCode, &ProviderError{
			Provider: call.Provider,
			Status:   resp.StatusCode,
			Message:  Scrub(Snippet(strings.TrimSpace(string(raw))), call.APIKey),
		}
	}
	return raw, resp.StatusCode, nil
}
