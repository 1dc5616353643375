package llm

import (
	"errors"
	"fmt"
	"time"
)

// ErrAuthentication indicates a missing or rejected API credential.
// It is reported to users separately from generic failures.
type ErrAuthentication struct {
	Provider string
	Err      error
}

func (e *ErrAuthentication) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s authentication failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s authentication failed: missing API key", e.Provider)
}

func (e *ErrAuthentication) Unwrap() error { return e.Err }

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrTransport indicates the provider is down, unreachable, or failed the
// request for a reason other than authentication or rate limiting.
type ErrTransport struct {
	Err error
}

func (e *ErrTransport) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM transport error: %v", e.Err)
	}
	return "LLM transport error"
}

func (e *ErrTransport) Unwrap() error { return e.Err }

// ErrEmptyResponse indicates the provider answered without any text.
type ErrEmptyResponse struct {
	Model string
}

func (e *ErrEmptyResponse) Error() string {
	return fmt.Sprintf("empty response from %s", e.Model)
}

// ErrMaxTokensExceeded indicates the response was truncated because it
// hit the MaxTokens limit.
type ErrMaxTokensExceeded struct {
	Text string
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "LLM response truncated: max tokens exceeded"
}

// ErrUnsupportedAttachment indicates the provider cannot accept an inline
// attachment of the given media type.
type ErrUnsupportedAttachment struct {
	Provider  string
	MediaType string
}

func (e *ErrUnsupportedAttachment) Error() string {
	return fmt.Sprintf("%s does not accept %s attachments", e.Provider, e.MediaType)
}

// ErrUnknownProvider is returned for an unrecognized provider name.
type ErrUnknownProvider struct {
	Name string
}

func (e *ErrUnknownProvider) Error() string {
	return fmt.Sprintf("unknown LLM provider: %q", e.Name)
}

// IsAuthentication reports whether err is, or wraps, an ErrAuthentication.
func IsAuthentication(err error) bool {
	var authErr *ErrAuthentication
	return errors.As(err, &authErr)
}
