package questiongen

import (
	"strings"
	"testing"
)

func trueFalseResult(keys ...string) *AnalysisResult {
	opts := map[string]string{}
	subs := map[string]SubQuestionAnalysis{}
	yes := true
	for _, k := range keys {
		opts[k] = "statement " + k
		subs[k] = SubQuestionAnalysis{Level: LevelKnow, CompetencyCode: "HH1.1", Rationale: "r", IsCorrect: &yes}
	}
	return &AnalysisResult{
		Generated: GeneratedQuestion{
			Stem:                "Stem",
			Options:             opts,
			SubQuestionAnalysis: subs,
			CorrectAnswer:       "a-Đ",
			Metadata:            Metadata{Format: FormatTrueFalse},
		},
	}
}

func TestRequiredFields(t *testing.T) {
	v := &RequiredFieldsValidator{}
	r := trueFalseResult("a", "b", "c", "d")
	if err := v.Validate(r); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	r.Generated.Stem = " "
	err := v.Validate(r)
	if err == nil {
		t.Fatal("expected error for empty stem")
	}
	if err.Validator != "required-fields" || err.Warning {
		t.Errorf("unexpected error: %+v", err)
	}
}

func TestTrueFalseCompleteness(t *testing.T) {
	v := &TrueFalseCompletenessValidator{}
	if err := v.Validate(trueFalseResult("a", "b", "c", "d")); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	err := v.Validate(trueFalseResult("a", "B"))
	if err == nil {
		t.Fatal("expected warning for missing statements")
	}
	if !err.Warning {
		t.Error("completeness must only warn")
	}
	if !strings.Contains(err.Message, "c, d") {
		t.Errorf("message should name missing keys: %q", err.Message)
	}
}

func TestTrueFalseCompleteness_OtherFormats(t *testing.T) {
	r := trueFalseResult()
	r.Generated.Metadata.Format = FormatShortAnswer
	if err := (&TrueFalseCompletenessValidator{}).Validate(r); err != nil {
		t.Errorf("expected nil for short answer, got %v", err)
	}
}

func TestOptionKeys(t *testing.T) {
	v := &OptionKeysValidator{}

	mc := &AnalysisResult{Generated: GeneratedQuestion{
		Options:  map[string]string{"A": "x", "b": "y", "C": "", "D": "z"},
		Metadata: Metadata{Format: FormatMultipleChoice},
	}}
	if err := v.Validate(mc); err != nil {
		t.Errorf("mixed-case A-D should pass: %v", err)
	}

	mc.Generated.Options = map[string]string{"A": "only"}
	if err := v.Validate(mc); err == nil || err.Warning {
		t.Errorf("single option should be rejected, got %v", err)
	}

	mc.Generated.Options = map[string]string{"A": "x", "B": "y", "E": "z"}
	if err := v.Validate(mc); err == nil || !err.Warning {
		t.Errorf("key E should warn, got %v", err)
	}

	tf := trueFalseResult("a", "b", "c", "d")
	tf.Generated.Options["e"] = "extra"
	if err := v.Validate(tf); err == nil || !err.Warning {
		t.Errorf("key e should warn, got %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Validator: "option-keys", Message: "bad"}
	if got := err.Error(); got != `validator "option-keys": bad` {
		t.Errorf("got %q", got)
	}
}

func TestCheckConformance(t *testing.T) {
	if err := CheckConformance(AnalysisResultSchema, validEntry()); err != nil {
		t.Errorf("valid entry should conform: %v", err)
	}
	if err := CheckConformance(BatchSchema, "```json\n{\"analysisResults\":["+validEntry()+"]}\n```"); err != nil {
		t.Errorf("fenced batch should conform: %v", err)
	}
	if err := CheckConformance(AnalysisResultSchema, `{"source":{}}`); err == nil {
		t.Error("expected violation for missing fields")
	}
	if err := CheckConformance(nil, "anything"); err != nil {
		t.Errorf("nil schema should pass: %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]QuestionFormat{
		"mcq":                      FormatMultipleChoice,
		"TF":                       FormatTrueFalse,
		"short_answer":             FormatShortAnswer,
		"Trắc nghiệm đúng sai":     FormatTrueFalse,
		" multiple_choice ":        FormatMultipleChoice,
		"Trắc nghiệm trả lời ngắn": FormatShortAnswer,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("essay"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	if l, err := ParseLevel("apply"); err != nil || l != LevelApply {
		t.Errorf("got %q, %v", l, err)
	}
	if l, err := ParseLevel("Hiểu"); err != nil || l != LevelUnderstand {
		t.Errorf("got %q, %v", l, err)
	}
	if _, err := ParseLevel("create"); err == nil {
		t.Error("expected error")
	}
}
