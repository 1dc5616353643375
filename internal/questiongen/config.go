package questiongen

// Config controls the behavior of the Service.
type Config struct {
	// Validators run in order on every normalized result. Warnings are
	// logged; the first rejection drops the result.
	Validators []Validator

	// MaxTokens is the token budget for structured responses.
	MaxTokens int

	// CritiqueMaxTokens is the token budget for critique replies.
	CritiqueMaxTokens int

	// Temperature controls LLM output randomness (0.0-1.0).
	Temperature float64

	// OutputLanguage is the language of prose fields.
	OutputLanguage string

	// CheckConformance logs schema violations of structured responses.
	CheckConformance bool
}

// DefaultConfig returns a Config with the standard validator chain
// and recommended defaults.
func DefaultConfig() Config {
	return Config{
		Validators: []Validator{
			&RequiredFieldsValidator{},
			&OptionKeysValidator{},
			&TrueFalseCompletenessValidator{},
		},
		MaxTokens:         8192,
		CritiqueMaxTokens: 2048,
		Temperature:       0.7,
		OutputLanguage:    DefaultOutputLanguage,
		CheckConformance:  true,
	}
}
