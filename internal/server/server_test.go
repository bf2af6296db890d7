package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
	"github.com/joseph-ayodele/hypothesis-lab/internal/document"
	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
)

type stubAnalyzer struct {
	mu    sync.Mutex
	res   *llm.AnalysisResult
	err   error
	names []string
}

func (a *stubAnalyzer) Analyze(_ context.Context, doc document.Document, _ llm.ProviderConfig) (*llm.AnalysisResult, error) {
	a.mu.Lock()
	a.names = append(a.names, doc.Name)
	a.mu.Unlock()
	return a.res, a.err
}

func sampleResult() *llm.AnalysisResult {
	return &llm.AnalysisResult{
		Summary: "Two sentences. Of summary.",
		Hypotheses: []llm.Hypothesis{
			{Title: "T", Gap: "G", Hypothesis: "H", Impact: 7, Feasibility: 4},
		},
	}
}

func uploadRequest(t *testing.T, field, name string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write(body)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/generate-hypothesis", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		kind common.Kind
		http int
		grpc codes.Code
	}{
		{common.KindUnreadableDocument, http.StatusBadRequest, codes.InvalidArgument},
		{common.KindRejectedDocument, http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{common.KindQuotaExceeded, http.StatusTooManyRequests, codes.ResourceExhausted},
		{common.KindMalformedModelOutput, http.StatusBadGateway, codes.Internal},
		{common.KindTransientProviderFailure, http.StatusServiceUnavailable, codes.Unavailable},
	}
	for _, c := range cases {
		assert.Equal(t, c.http, httpStatus(c.kind))
		assert.Equal(t, c.grpc, grpcCode(c.kind))
	}
}

func TestGenerate_OK(t *testing.T) {
	an := &stubAnalyzer{res: sampleResult()}
	srv := New(an, Options{}, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "file", "paper.pdf", []byte("%PDF-1.4 body")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "", rec.Header().Get("X-Request-ID"))
	var got llm.AnalysisResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	assert.Equal(t, *sampleResult(), got)
	assert.Equal(t, []string{"paper.pdf"}, an.names)
}

func TestGenerate_PipelineErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{common.Unreadable("no text", nil), http.StatusBadRequest},
		{common.Rejected(common.RejectModel, "this is a CV"), http.StatusUnprocessableEntity},
		{common.QuotaExceeded("429 from upstream key=secret", nil), http.StatusTooManyRequests},
		{common.Malformed("no JSON object in reply: garbage", nil), http.StatusBadGateway},
		{common.Transient("dial tcp: refused", nil), http.StatusServiceUnavailable},
		{errors.New("unexpected"), http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		srv := New(&stubAnalyzer{err: c.err}, Options{}, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, uploadRequest(t, "file", "doc.pdf", []byte("data")))

		assert.Equal(t, c.status, rec.Code)
		perr := common.AsPipelineError(c.err)
		body := decodeError(t, rec)
		assert.Equal(t, perr.PublicMessage(), body.Detail)
		assert.Equal(t, string(perr.Kind), body.Kind)
		if perr.Detail != "" {
			assert.Equal(t, false, strings.Contains(rec.Body.String(), perr.Detail))
		}
		if perr.Kind == common.KindQuotaExceeded {
			assert.Equal(t, quotaRetryAfter, rec.Header().Get("Retry-After"))
		}
	}
}

func TestGenerate_RejectionCarriesReason(t *testing.T) {
	srv := New(&stubAnalyzer{err: common.Rejected(common.RejectLocal, "resume indicators found")}, Options{}, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "file", "cv.pdf", []byte("data")))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, true, strings.Contains(decodeError(t, rec).Detail, "resume indicators found"))
}

func TestGenerate_BadUploads(t *testing.T) {
	an := &stubAnalyzer{res: sampleResult()}
	srv := New(an, Options{MaxUploadBytes: 256}, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "document", "paper.pdf", []byte("data")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "file", "big.pdf", bytes.Repeat([]byte("x"), 4096)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate-hypothesis", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, 0, len(an.names))
}

func TestGenerate_RateLimited(t *testing.T) {
	an := &stubAnalyzer{res: sampleResult()}
	srv := New(an, Options{Limiter: NewClientLimiter(0.001, 1, time.Minute)}, nil)
	router := srv.Router()

	first := httptest.NewRecorder()
	router.ServeHTTP(first, uploadRequest(t, "file", "a.pdf", []byte("data")))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, uploadRequest(t, "file", "b.pdf", []byte("data")))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, 1, len(an.names))

	// health is not limited
	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestClientLimiter_PerClient(t *testing.T) {
	l := NewClientLimiter(0.001, 1, time.Minute)
	assert.Equal(t, true, l.Allow("10.0.0.1"))
	assert.Equal(t, false, l.Allow("10.0.0.1"))
	assert.Equal(t, true, l.Allow("10.0.0.2"))

	var disabled *ClientLimiter
	assert.Equal(t, true, disabled.Allow("anyone"))
	assert.Equal(t, true, NewClientLimiter(0, 1, time.Minute).Allow("x"))

	assert.Equal(t, "192.0.2.1", clientIP("192.0.2.1:5555"))
	assert.Equal(t, "::1", clientIP("[::1]:80"))
}

type downPinger struct{}

func (downPinger) HealthCheck(context.Context, time.Duration) error { return errors.New("down") }

func TestHealthAndExport(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&stubAnalyzer{}, Options{}, nil).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	New(&stubAnalyzer{}, Options{Ledger: downPinger{}}, nil).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	New(&stubAnalyzer{}, Options{}, nil).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/export", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, d == nil)

	d, err = parseDate("2026-02-03")
	assert.Equal(t, nil, err)
	assert.Equal(t, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), *d)

	_, err = parseDate("03/02/2026")
	assert.NotEqual(t, nil, err)
}

func dialBuf(t *testing.T, srv *Server) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := srv.NewGRPCServer()
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPC_Analyze(t *testing.T) {
	an := &stubAnalyzer{res: sampleResult()}
	conn := dialBuf(t, New(an, Options{}, nil))

	ctx := metadata.AppendToOutgoingContext(context.Background(), DocumentNameKey, "paper.pdf")
	out := new(structpb.Struct)
	err := conn.Invoke(ctx, AnalyzeMethod, wrapperspb.Bytes([]byte("%PDF-1.4")), out)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	m := out.AsMap()
	assert.Equal(t, "Two sentences. Of summary.", m["summary"])
	hyps := m["hypotheses"].([]any)
	assert.Equal(t, 1, len(hyps))
	assert.Equal(t, float64(7), hyps[0].(map[string]any)["impact"])
	assert.Equal(t, []string{"paper.pdf"}, an.names)
}

func TestGRPC_Errors(t *testing.T) {
	conn := dialBuf(t, New(&stubAnalyzer{err: common.Rejected(common.RejectModel, "cv")}, Options{}, nil))

	err := conn.Invoke(context.Background(), AnalyzeMethod, wrapperspb.Bytes([]byte("data")), new(structpb.Struct))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	err = conn.Invoke(context.Background(), AnalyzeMethod, wrapperspb.Bytes(nil), new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_Health(t *testing.T) {
	conn := dialBuf(t, New(&stubAnalyzer{}, Options{}, nil))
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: AnalysisServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestGRPC_ServiceInfoHasNoProtoFile(t *testing.T) {
	gs := New(&stubAnalyzer{}, Options{}, nil).NewGRPCServer()
	info, ok := gs.GetServiceInfo()[AnalysisServiceName]
	assert.Equal(t, true, ok)
	assert.Equal(t, nil, info.Metadata)
	assert.Equal(t, "Analyze", info.Methods[0].Name)
}

func TestGRPC_ReflectionListsServices(t *testing.T) {
	conn := dialBuf(t, New(&stubAnalyzer{}, Options{}, nil))
	stream, err := reflectionpb.NewServerReflectionClient(conn).ServerReflectionInfo(context.Background())
	if err != nil {
		t.Fatalf("reflection: %v", err)
	}
	err = stream.Send(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_ListServices{},
	})
	assert.Equal(t, nil, err)
	resp, err := stream.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	_ = stream.CloseSend()

	var names []string
	for _, svc := range resp.GetListServicesResponse().GetService() {
		names = append(names, svc.GetName())
	}
	assert.Equal(t, true, slices.Contains(names, AnalysisServiceName))
	assert.Equal(t, true, slices.Contains(names, healthpb.Health_ServiceDesc.ServiceName))
}
