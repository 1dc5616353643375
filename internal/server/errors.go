package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/abhisek/chemgen/internal/attachment"
	"github.com/abhisek/chemgen/internal/llm"
	"github.com/abhisek/chemgen/internal/questiongen"
	"github.com/abhisek/chemgen/internal/session"
)

// Error codes returned in the "code" field.
const (
	codeBadRequest     = "bad_request"
	codeAttachment     = "attachment"
	codeInvalid        = "invalid_operation"
	codeNotFound       = "not_found"
	codeBusy           = "busy"
	codeRemoved        = "removed"
	codeChanged        = "changed"
	codeAuthentication = "authentication"
	codeRateLimited    = "rate_limited"
	codeMalformed      = "malformed_response"
	codeCommunication  = "communication"
	codeInternal       = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// badRequest is a request that could not be decoded.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps an operation error onto a status code and a user message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := session.UserMessage(err)

	var br *badRequest
	switch {
	case errors.As(err, &br):
		msg = br.msg
	case errors.Is(err, session.ErrNotFound):
		msg = "Question not found."
	}

	if status >= http.StatusInternalServerError {
		slog.Warn("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func classify(err error) (int, string) {
	var (
		br          *badRequest
		attachErr   *attachment.AttachmentReadError
		unsupported *llm.ErrUnsupportedAttachment
		invalid     *questiongen.InvalidOperationError
		malformed   *questiongen.MalformedResponseError
		rateLimit   *llm.ErrRateLimit
	)

	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, codeBadRequest
	case errors.As(err, &attachErr), errors.As(err, &unsupported):
		return http.StatusBadRequest, codeAttachment
	case errors.As(err, &invalid):
		return http.StatusBadRequest, codeInvalid
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrTransformInFlight):
		return http.StatusConflict, codeBusy
	case errors.Is(err, session.ErrItemRemoved):
		return http.StatusGone, codeRemoved
	case errors.Is(err, session.ErrItemChanged):
		return http.StatusConflict, codeChanged
	case llm.IsAuthentication(err):
		return http.StatusServiceUnavailable, codeAuthentication
	case errors.As(err, &rateLimit):
		return http.StatusTooManyRequests, codeRateLimited
	case errors.As(err, &malformed):
		return http.StatusBadGateway, codeMalformed
	default:
		return http.StatusBadGateway, codeCommunication
	}
}
