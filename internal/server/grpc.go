package server

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
	"github.com/joseph-ayodele/hypothesis-lab/internal/document"
)

const (
	AnalysisServiceName = "hypothesislab.v1.AnalysisService"
	AnalyzeMethod       = "/" + AnalysisServiceName + "/Analyze"

	// DocumentNameKey is the metadata key carrying the uploaded file name.
	DocumentNameKey = "x-document-name"
)

// AnalysisServiceServer is the gRPC face of the pipeline. The request is the
// raw document; the response is the analysis as a JSON-shaped Struct.
type AnalysisServiceServer interface {
	Analyze(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error)
}

var analysisServiceDesc = grpc.ServiceDesc{
	ServiceName: AnalysisServiceName,
	HandlerType: (*AnalysisServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Analyze", Handler: analyzeHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func analyzeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalysisServiceServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AnalyzeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalysisServiceServer).Analyze(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// grpcService adapts Server to AnalysisServiceServer.
type grpcService struct {
	s *Server
}

func (g *grpcService) Analyze(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	start := time.Now()
	data := in.GetValue()
	if len(data) == 0 {
		return nil, errInvalidArg("document bytes are required")
	}
	if int64(len(data)) > g.s.opts.MaxUploadBytes {
		return nil, errInvalidArg("document is too large")
	}

	name := "upload"
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(DocumentNameKey); len(v) > 0 && strings.TrimSpace(v[0]) != "" {
			name = strings.TrimSpace(v[0])
		}
	}

	reqID := uuid.New().String()
	logger := g.s.logger.With("req_id", reqID, "transport", "grpc")
	ctx = common.WithLogger(common.WithRequestID(ctx, reqID), g.s.logger)

	res, err := g.s.analyzer.Analyze(ctx, document.NewDocument(name, data, ""), g.s.opts.Provider)
	if err != nil {
		perr := common.AsPipelineError(err)
		g.s.logOutcome(logger, perr, time.Since(start))
		return nil, grpcError(perr)
	}

	out, err := toStruct(res)
	if err != nil {
		logger.Error("server.grpc.encode_failed", "err", err)
		return nil, errInternal("could not encode result")
	}
	logger.Info("server.analyze.ok",
		"document", name,
		"hypotheses", len(res.Hypotheses),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// toStruct converts v to a Struct through its JSON form so the field names
// match the HTTP response.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// NewGRPCServer builds a gRPC server with the analysis, health and reflection
// services registered.
func (s *Server) NewGRPCServer() *grpc.Server {
	var interceptors []grpc.UnaryServerInterceptor
	if s.opts.Limiter != nil {
		interceptors = append(interceptors, s.opts.Limiter.UnaryInterceptor())
	}
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(interceptors...),
		grpc.MaxRecvMsgSize(int(s.opts.MaxUploadBytes)+4096),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(AnalysisServiceName, healthpb.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(gs)

	gs.RegisterService(&analysisServiceDesc, &grpcService{s: s})
	return gs
}
