package questiongen

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/chemgen/internal/llm"
)

// Validator checks a normalized result.
// Implementations should be stateless and safe for concurrent use.
type Validator interface {
	// Name returns a short identifier for logs, e.g. "required-fields".
	Name() string

	// Validate returns nil if the result passes.
	Validate(r *AnalysisResult) *ValidationError
}

// ValidationError describes why a result failed a check. A Warning is a
// data-quality defect that is logged and kept; anything else rejects the
// result.
type ValidationError struct {
	Validator string
	Message   string
	Warning   bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// RequiredFieldsValidator rejects results without a stem or an answer.
type RequiredFieldsValidator struct{}

func (v *RequiredFieldsValidator) Name() string { return "required-fields" }

func (v *RequiredFieldsValidator) Validate(r *AnalysisResult) *ValidationError {
	if strings.TrimSpace(r.Generated.Stem) == "" {
		return &ValidationError{Validator: v.Name(), Message: "generated stem is empty"}
	}
	if strings.TrimSpace(r.Generated.CorrectAnswer) == "" {
		return &ValidationError{Validator: v.Name(), Message: "correct answer is empty"}
	}
	return nil
}

// OptionKeysValidator checks that option keys fit the format: A–D for
// multiple choice, a–d for true/false.
type OptionKeysValidator struct{}

func (v *OptionKeysValidator) Name() string { return "option-keys" }

func (v *OptionKeysValidator) Validate(r *AnalysisResult) *ValidationError {
	q := r.Generated
	switch q.Metadata.Format {
	case FormatMultipleChoice:
		if len(q.OptionKeys()) < 2 {
			return &ValidationError{Validator: v.Name(), Message: "multiple choice question has fewer than two options"}
		}
		if bad := keysOutside(q, "ABCD"); len(bad) > 0 {
			return &ValidationError{
				Validator: v.Name(),
				Message:   fmt.Sprintf("unexpected option keys %v", bad),
				Warning:   true,
			}
		}
	case FormatTrueFalse:
		if bad := keysOutside(q, "abcd"); len(bad) > 0 {
			return &ValidationError{
				Validator: v.Name(),
				Message:   fmt.Sprintf("unexpected statement keys %v", bad),
				Warning:   true,
			}
		}
	}
	return nil
}

func keysOutside(q GeneratedQuestion, allowed string) []string {
	var bad []string
	for _, k := range q.OptionKeys() {
		if len(k) != 1 || !strings.Contains(strings.ToLower(allowed), strings.ToLower(k)) {
			bad = append(bad, k)
		}
	}
	return bad
}

// TrueFalseCompletenessValidator warns when a true/false question lacks
// any of its four statements or their analyses. It never rejects.
type TrueFalseCompletenessValidator struct{}

func (v *TrueFalseCompletenessValidator) Name() string { return "truefalse-completeness" }

func (v *TrueFalseCompletenessValidator) Validate(r *AnalysisResult) *ValidationError {
	if r.Generated.Metadata.Format != FormatTrueFalse {
		return nil
	}
	if missing := r.Generated.MissingSubQuestions(); len(missing) > 0 {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("missing statements %s", strings.Join(missing, ", ")),
			Warning:   true,
		}
	}
	return nil
}

// schemaCache caches compiled JSON schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// CheckConformance validates raw response text against schema. The result
// is diagnostic only; normalization stays lenient either way.
func CheckConformance(schema *llm.Schema, raw string) error {
	if schema == nil {
		return nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(StripFence(raw)), &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	compiled, err := getCompiledSchema(schema)
	if err != nil {
		return fmt.Errorf("compile schema %q: %w", schema.Name, err)
	}

	if err := compiled.Validate(parsed); err != nil {
		return fmt.Errorf("schema %q: %w", schema.Name, err)
	}
	return nil
}

// getCompiledSchema returns a cached compiled schema or compiles and caches it.
func getCompiledSchema(schema *llm.Schema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The compiler wants a decoded JSON value, not the Go map literal.
	defBytes, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}
	defParsed = expandNullable(defParsed)

	c := jsonschema.NewCompiler()
	schemaURL := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(schemaURL, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}

	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schema.Name, compiled)
	return compiled, nil
}

// expandNullable rewrites the OpenAPI-style "nullable" flag, which JSON
// Schema ignores, into a type union with "null".
func expandNullable(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = expandNullable(child)
		}
		if nullable, _ := t["nullable"].(bool); nullable {
			if typ, ok := t["type"].(string); ok {
				t["type"] = []any{typ, "null"}
			}
			delete(t, "nullable")
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = expandNullable(child)
		}
		return t
	default:
		return v
	}
}
