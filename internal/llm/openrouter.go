package llm

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// openrouterModels maps friendly names to OpenRouter model slugs.
var openrouterModels = map[string]string{
	"gemini-flash":  "google/gemini-2.5-flash",
	"claude-sonnet": "anthropic/claude-sonnet-4.5",
	"gpt-4o-mini":   "openai/gpt-4o-mini",
}

// NewOpenRouterProvider creates a provider targeting the OpenRouter API.
// OpenRouter exposes an OpenAI-compatible API, so the OpenAI SDK is reused.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenAIProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}

	return newOpenAICompatible("openrouter", OpenAIConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: baseURL,
	}, openrouterModels)
}
