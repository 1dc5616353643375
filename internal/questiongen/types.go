package questiongen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/abhisek/chemgen/internal/attachment"
)

// QuestionFormat is the presentation format of a generated question. The
// values are the labels the model sees and returns.
type QuestionFormat string

const (
	FormatMultipleChoice QuestionFormat = "Trắc nghiệm nhiều lựa chọn"
	FormatTrueFalse      QuestionFormat = "Trắc nghiệm đúng sai"
	FormatShortAnswer    QuestionFormat = "Trắc nghiệm trả lời ngắn"
)

// AllFormats lists every format in display order.
var AllFormats = []QuestionFormat{FormatMultipleChoice, FormatTrueFalse, FormatShortAnswer}

// Code returns a short ASCII identifier, used in file names and the CLI.
func (f QuestionFormat) Code() string {
	switch f {
	case FormatMultipleChoice:
		return "mcq"
	case FormatTrueFalse:
		return "tf"
	case FormatShortAnswer:
		return "short"
	default:
		return "unknown"
	}
}

// Valid reports whether f is one of the three formats.
func (f QuestionFormat) Valid() bool {
	switch f {
	case FormatMultipleChoice, FormatTrueFalse, FormatShortAnswer:
		return true
	}
	return false
}

// ParseFormat accepts either the wire label or a short alias
// (mcq, tf, short, multiple_choice, true_false, short_answer).
func ParseFormat(s string) (QuestionFormat, error) {
	s = strings.TrimSpace(s)
	for _, f := range AllFormats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	switch strings.ToLower(s) {
	case "mcq", "mc", "multiple_choice", "multiple-choice":
		return FormatMultipleChoice, nil
	case "tf", "true_false", "true-false", "truefalse":
		return FormatTrueFalse, nil
	case "short", "short_answer", "short-answer":
		return FormatShortAnswer, nil
	}
	return "", fmt.Errorf("unknown question format %q", s)
}

// CognitiveLevel is the depth of reasoning a question requires.
type CognitiveLevel string

const (
	LevelKnow       CognitiveLevel = "Biết"
	LevelUnderstand CognitiveLevel = "Hiểu"
	LevelApply      CognitiveLevel = "Vận dụng"
)

// AllLevels lists the levels in ascending order.
var AllLevels = []CognitiveLevel{LevelKnow, LevelUnderstand, LevelApply}

// ParseLevel accepts the wire label or know/understand/apply.
func ParseLevel(s string) (CognitiveLevel, error) {
	s = strings.TrimSpace(s)
	for _, l := range AllLevels {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	switch strings.ToLower(s) {
	case "know":
		return LevelKnow, nil
	case "understand":
		return LevelUnderstand, nil
	case "apply":
		return LevelApply, nil
	}
	return "", fmt.Errorf("unknown cognitive level %q", s)
}

// SubQuestionKeys are the lettered statements of a true/false question.
var SubQuestionKeys = []string{"a", "b", "c", "d"}

// SubQuestionAnalysis is the assessment of one lettered statement.
// IsCorrect is only set for true/false questions.
type SubQuestionAnalysis struct {
	Level          CognitiveLevel `json:"level"`
	CompetencyCode string         `json:"competencyCode"`
	Rationale      string         `json:"rationale"`
	IsCorrect      *bool          `json:"isCorrect,omitempty"`
}

// SourceAnalysis is the model's assessment of the input question.
type SourceAnalysis struct {
	OriginalTopic        string                         `json:"originalTopic"`
	OriginalQuestionText string                         `json:"originalQuestionText,omitempty"`
	CompetencyCode       string                         `json:"competencyCode"`
	Level                CognitiveLevel                 `json:"level"`
	AnalysisReasoning    string                         `json:"analysisReasoning"`
	SubQuestionAnalysis  map[string]SubQuestionAnalysis `json:"subQuestionAnalysis,omitempty"`
}

// Metadata describes a generated question.
type Metadata struct {
	Format                QuestionFormat `json:"format"`
	CompetencyCode        string         `json:"competencyCode"`
	CompetencyDescription string         `json:"competencyDescription"`
	Level                 CognitiveLevel `json:"level"`
	ContextType           string         `json:"contextType"`
	RationaleLevel        string         `json:"rationaleLevel"`
	RationaleCompetency   string         `json:"rationaleCompetency"`
}

// GeneratedQuestion is a rewritten question with its answer key.
//
// CorrectAnswer depends on the format: an option letter, a true/false
// summary such as "a-Đ, b-S, c-Đ, d-S", or the literal short answer.
type GeneratedQuestion struct {
	Stem                string                         `json:"stem"`
	Options             map[string]string              `json:"options,omitempty"`
	SubQuestionAnalysis map[string]SubQuestionAnalysis `json:"subQuestionAnalysis,omitempty"`
	CorrectAnswer       string                         `json:"correctAnswer"`
	Explanation         string                         `json:"explanation"`
	Metadata            Metadata                       `json:"metadata"`
}

// Option returns the option text for key, matching case-insensitively.
func (q GeneratedQuestion) Option(key string) (string, bool) {
	return lookupFold(q.Options, key)
}

// SubQuestion returns the analysis for key, matching case-insensitively.
func (q GeneratedQuestion) SubQuestion(key string) (SubQuestionAnalysis, bool) {
	return lookupFold(q.SubQuestionAnalysis, key)
}

// OptionKeys returns the keys of the non-empty options in sorted order.
// When both casings of a letter carry text, the upper-case key is kept.
func (q GeneratedQuestion) OptionKeys() []string {
	seen := make(map[string]string, len(q.Options))
	for k, v := range q.Options {
		if strings.TrimSpace(v) == "" {
			continue
		}
		fold := strings.ToLower(k)
		if prev, ok := seen[fold]; !ok || k < prev {
			seen[fold] = k
		}
	}
	keys := make([]string, 0, len(seen))
	for _, k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i]) < strings.ToLower(keys[j])
	})
	return keys
}

// MissingSubQuestions returns the a–d keys that have no statement or no
// analysis. Only meaningful for true/false questions.
func (q GeneratedQuestion) MissingSubQuestions() []string {
	var missing []string
	for _, k := range SubQuestionKeys {
		text, hasText := q.Option(k)
		_, hasAnalysis := q.SubQuestion(k)
		if !hasText || strings.TrimSpace(text) == "" || !hasAnalysis {
			missing = append(missing, k)
		}
	}
	return missing
}

// lookupFold prefers an exact key and falls back to any other casing.
// Zero values count as absent, so {"A": "x", "a": null} resolves "a" to "x".
func lookupFold[V comparable](m map[string]V, key string) (V, bool) {
	var zero V
	if v, ok := m[key]; ok && v != zero {
		return v, true
	}
	for k, v := range m {
		if v != zero && strings.EqualFold(k, key) {
			return v, true
		}
	}
	return zero, false
}

// AnalysisResult pairs the source assessment with the generated question.
// Every AI operation returns values of this shape.
type AnalysisResult struct {
	Source    SourceAnalysis    `json:"source"`
	Generated GeneratedQuestion `json:"generated"`
}

// AnchorText is the most original form of the question available: the
// captured input text, or the generated stem when none was captured.
func (r AnalysisResult) AnchorText() string {
	if strings.TrimSpace(r.Source.OriginalQuestionText) != "" {
		return r.Source.OriginalQuestionText
	}
	return r.Generated.Stem
}

// Format returns the format of the generated question.
func (r AnalysisResult) Format() QuestionFormat {
	return r.Generated.Metadata.Format
}

// GenerateInput is the user's submission: text and attachments plus the
// requested output format.
type GenerateInput struct {
	Input  attachment.Input
	Format QuestionFormat
}

// CritiqueExchange is one earlier objection and the model's reply.
type CritiqueExchange struct {
	Objection string `json:"objection"`
	Reply     string `json:"reply"`
}
