package server

import (
	"encoding/json"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
)

// quotaRetryAfter is the Retry-After hint, in seconds, sent with quota failures.
const quotaRetryAfter = "120"

// httpStatus maps a pipeline failure kind to its HTTP status.
func httpStatus(kind common.Kind) int {
	switch kind {
	case common.KindUnreadableDocument:
		return http.StatusBadRequest
	case common.KindRejectedDocument:
		return http.StatusUnprocessableEntity
	case common.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case common.KindMalformedModelOutput:
		return http.StatusBadGateway
	case common.KindTransientProviderFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// grpcCode maps a pipeline failure kind to its gRPC status code.
func grpcCode(kind common.Kind) codes.Code {
	switch kind {
	case common.KindUnreadableDocument:
		return codes.InvalidArgument
	case common.KindRejectedDocument:
		return codes.FailedPrecondition
	case common.KindQuotaExceeded:
		return codes.ResourceExhausted
	case common.KindMalformedModelOutput:
		return codes.Internal
	case common.KindTransientProviderFailure:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}

// errorBody is the JSON error envelope. Detail is the public message only.
type errorBody struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a plain request error that never reached the pipeline.
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Detail: msg})
}

// writePipelineError translates a pipeline failure into a response.
func writePipelineError(w http.ResponseWriter, perr *common.PipelineError) {
	if perr.Kind == common.KindQuotaExceeded {
		w.Header().Set("Retry-After", quotaRetryAfter)
	}
	writeJSON(w, httpStatus(perr.Kind), errorBody{
		Detail: perr.PublicMessage(),
		Kind:   string(perr.Kind),
	})
}

// grpcError is the gRPC counterpart of writePipelineError.
func grpcError(perr *common.PipelineError) error {
	return status.Error(grpcCode(perr.Kind), perr.PublicMessage())
}

func errInvalidArg(msg string) error { return status.Error(codes.InvalidArgument, msg) }

func errInternal(msg string) error { return status.Error(codes.Internal, msg) }
