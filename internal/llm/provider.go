package llm

import (
	"context"
)

// Provider is the core abstraction for LLM interaction.
// Consumers call Generate with a Request and receive the raw response text.
type Provider interface {
	// Generate sends a prompt to the LLM and returns its response text.
	// The request's Schema field, when set, instructs the provider to return
	// JSON conforming to that schema. Parsing the JSON is the caller's job.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system instruction. Sets the LLM's role and rules.
	System string

	// Messages is the conversation history. Generate/Transform/Regenerate
	// send a single user message; Critique may replay earlier exchanges.
	Messages []Message

	// Schema is the JSON Schema the response must conform to.
	// When set, the provider asks for application/json output using its
	// native structured output mechanism. When nil, the response is prose.
	Schema *Schema

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	// Default: 0.0 (provider default) when not set.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string

	// Attachments are inline binary parts sent after the text content.
	// Only user messages carry attachments.
	Attachments []Attachment
}

// Attachment is an inline binary part of a message, e.g. a pasted image or
// a PDF exam sheet.
type Attachment struct {
	// MediaType is the IANA media type, e.g. "image/png", "application/pdf".
	MediaType string

	// Data is the standard base64 encoding of the bytes, without any
	// data-URL prefix.
	Data string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies this schema (schema name for OpenAI, cache key for
	// local validation). Kebab-case, e.g. "analysis-batch".
	Name string

	// Description is a human-readable description of what this schema
	// represents.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the LLM's output.
type Response struct {
	// Text is the raw response text. For structured requests this is JSON,
	// possibly wrapped in a code fence by the model.
	Text string

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason indicates why generation stopped.
	// Normalized to: "end", "max_tokens", "error"
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
