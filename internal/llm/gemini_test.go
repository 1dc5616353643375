package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestGeminiProvider(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewGeminiProvider(context.Background(), GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-flash",
		BaseURL: server.URL,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestGeminiProvider_HappyPath(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": `{"questions":[]}`}},
				},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]any{
				"promptTokenCount":     12,
				"candidatesTokenCount": 7,
				"totalTokenCount":      19,
			},
			"modelVersion": "gemini-2.5-flash",
		})
	}

	p := newTestGeminiProvider(t, handler)
	resp, err := p.Generate(context.Background(), Request{
		System:   "You are a chemistry exam author.",
		Messages: []Message{{Role: RoleUser, Content: "Generate."}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != `{"questions":[]}` {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if resp.Usage.TotalTokens != 19 {
		t.Fatalf("expected 19 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if resp.Model != "gemini-2.5-flash" {
		t.Fatalf("expected model gemini-2.5-flash, got %q", resp.Model)
	}
}

func TestGeminiProvider_RateLimit(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    429,
				"message": "Resource has been exhausted",
				"status":  "RESOURCE_EXHAUSTED",
			},
		})
	}

	p := newTestGeminiProvider(t, handler)
	_, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "test"}},
	})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T (%v)", err, err)
	}
}

func TestNewGeminiProvider_MissingKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), GeminiConfig{Model: "gemini-flash"})
	if !IsAuthentication(err) {
		t.Fatalf("expected ErrAuthentication, got: %T (%v)", err, err)
	}
}

func TestGeminiModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gemini-flash", "gemini-2.5-flash"},
		{"gemini-pro", "gemini-2.5-pro"},
		{"gemini-lite", "gemini-2.5-flash-lite"},
		{"gemini-2.0-flash", "gemini-2.0-flash"}, // Pass-through
	}
	for _, tt := range tests {
		got := resolveModel(tt.input, geminiModels)
		if got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestBuildGeminiSchema(t *testing.T) {
	def := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questionText": map[string]any{"type": "string"},
			"correctAnswer": map[string]any{
				"type":     "string",
				"nullable": true,
			},
			"cognitiveLevel": map[string]any{"type": "string", "enum": []any{"Biết", "Hiểu", "Vận dụng"}},
			"options": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "object"},
			},
		},
		"required": []any{"questionText", "cognitiveLevel"},
	}

	schema := buildGeminiSchema(def)

	if schema.Type != "OBJECT" {
		t.Fatalf("expected OBJECT type, got %s", schema.Type)
	}
	if len(schema.Properties) != 4 {
		t.Fatalf("expected 4 properties, got %d", len(schema.Properties))
	}
	if schema.Properties["questionText"].Type != "STRING" {
		t.Fatalf("expected STRING for questionText, got %s", schema.Properties["questionText"].Type)
	}
	answer := schema.Properties["correctAnswer"]
	if answer.Nullable == nil || !*answer.Nullable {
		t.Fatal("expected correctAnswer to be nullable")
	}
	if schema.Properties["questionText"].Nullable != nil {
		t.Fatal("expected questionText nullability to be unset")
	}
	if len(schema.Properties["cognitiveLevel"].Enum) != 3 {
		t.Fatalf("expected 3 enum values, got %d", len(schema.Properties["cognitiveLevel"].Enum))
	}
	if schema.Properties["options"].Items.Type != "OBJECT" {
		t.Fatalf("expected OBJECT for options items, got %s", schema.Properties["options"].Items.Type)
	}
	if len(schema.Required) != 2 {
		t.Fatalf("expected 2 required fields, got %d", len(schema.Required))
	}
}

func TestBuildGeminiContents(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	contents, err := buildGeminiContents([]Message{
		{
			Role:        RoleUser,
			Content:     "Analyze.",
			Attachments: []Attachment{{MediaType: "image/png", Data: base64.StdEncoding.EncodeToString(png)}},
		},
		{Role: RoleAssistant, Content: "Done."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	if contents[1].Role != "model" {
		t.Fatalf("expected assistant to map to model role, got %q", contents[1].Role)
	}
	parts := contents[0].Parts
	if len(parts) != 2 {
		t.Fatalf("expected text and inline parts, got %d", len(parts))
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MIMEType != "image/png" {
		t.Fatal("expected inline image/png part")
	}
	if string(parts[1].InlineData.Data) != string(png) {
		t.Fatal("expected decoded attachment bytes")
	}
}

func TestBuildGeminiContents_BadBase64(t *testing.T) {
	_, err := buildGeminiContents([]Message{{
		Role:        RoleUser,
		Content:     "x",
		Attachments: []Attachment{{MediaType: "image/png", Data: "not base64!"}},
	}})
	if err == nil {
		t.Fatal("expected decode error")
	}
}
