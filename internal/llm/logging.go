package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/abhisek/chemgen/internal/metrics"
	"github.com/abhisek/chemgen/internal/store"
)

// LoggingProvider is a decorator that records every LLM request as an event
// and as metrics.
type LoggingProvider struct {
	inner     Provider
	name      string
	eventRepo store.EventRepo
}

// WithLogging wraps a Provider with event logging. A nil repo disables
// event persistence but keeps metrics.
func WithLogging(p Provider, name string, repo store.EventRepo) Provider {
	return &LoggingProvider{inner: p, name: name, eventRepo: repo}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	latency := time.Since(start)

	data := store.LLMRequestEventData{
		Provider:    l.name,
		Model:       l.inner.ModelID(),
		Purpose:     purpose,
		LatencyMs:   latency.Milliseconds(),
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}

	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Model = resp.Model
		data.ResponseBody = resp.Text
	}

	if err != nil {
		data.ErrorMessage = err.Error()
		if mt, ok := err.(*ErrMaxTokensExceeded); ok {
			data.ResponseBody = mt.Text
		}
	}

	metrics.RecordLLMRequest(purpose, outcomeLabel(err), latency, data.InputTokens, data.OutputTokens)

	// Log the event but don't fail the request if logging fails.
	if l.eventRepo != nil {
		if logErr := l.eventRepo.AppendLLMRequest(ctx, data); logErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to log LLM request event: %v\n", logErr)
		}
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// outcomeLabel buckets an error into a low-cardinality metrics label.
func outcomeLabel(err error) string {
	switch err.(type) {
	case nil:
		return "success"
	case *ErrAuthentication:
		return "auth_error"
	case *ErrRateLimit:
		return "rate_limited"
	case *ErrEmptyResponse:
		return "empty"
	case *ErrMaxTokensExceeded:
		return "truncated"
	case *ErrUnsupportedAttachment:
		return "unsupported"
	default:
		return "transport_error"
	}
}

// serializeRequest builds a readable representation of the LLM request.
// Attachment payloads are summarized, never stored.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n", m.Role)
		b.WriteString(m.Content)
		b.WriteString("\n")
		for _, a := range m.Attachments {
			fmt.Fprintf(&b, "[attachment %s, %d bytes]\n", a.MediaType, base64.StdEncoding.DecodedLen(len(a.Data)))
		}
		b.WriteString("\n")
	}

	if req.Schema != nil {
		schemaDef, err := json.Marshal(req.Schema.Definition)
		if err == nil {
			fmt.Fprintf(&b, "[schema: %s]\n", req.Schema.Name)
			b.Write(schemaDef)
			b.WriteString("\n")
		}
	}

	return b.String()
}
