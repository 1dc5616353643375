package questiongen

import "github.com/abhisek/chemgen/internal/llm"

func levelEnum() []any {
	out := make([]any, len(AllLevels))
	for i, l := range AllLevels {
		out[i] = string(l)
	}
	return out
}

func formatEnum() []any {
	out := make([]any, len(AllFormats))
	for i, f := range AllFormats {
		out[i] = string(f)
	}
	return out
}

func subQuestionDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"level": map[string]any{
				"type": "string",
				"enum": levelEnum(),
			},
			"competencyCode": map[string]any{
				"type":        "string",
				"description": "Competency code for this statement, e.g. HH1.1",
			},
			"rationale": map[string]any{
				"type":        "string",
				"description": "Why this level and competency were assigned",
			},
			"isCorrect": map[string]any{
				"type":        "boolean",
				"description": "Whether the statement is true (true/false format only)",
			},
		},
		"required": []any{"level", "competencyCode", "rationale"},
	}
}

// subQuestionMap is the a–d map shared by source and generated.
func subQuestionMap(description string) map[string]any {
	props := map[string]any{}
	for _, k := range SubQuestionKeys {
		props[k] = subQuestionDefinition()
	}
	return map[string]any{
		"type":        "object",
		"description": description,
		"nullable":    true,
		"properties":  props,
	}
}

func optionsDefinition() map[string]any {
	props := map[string]any{}
	for _, k := range []string{"A", "B", "C", "D", "a", "b", "c", "d"} {
		props[k] = map[string]any{"type": "string", "nullable": true}
	}
	return map[string]any{
		"type":        "object",
		"description": "A-D for multiple choice, a-d statements for true/false, omitted for short answer",
		"nullable":    true,
		"properties":  props,
	}
}

func analysisResultDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"source": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"originalTopic": map[string]any{"type": "string"},
					"originalQuestionText": map[string]any{
						"type":        "string",
						"description": "Verbatim text of the input question this result was derived from",
					},
					"competencyCode":      map[string]any{"type": "string"},
					"level":               map[string]any{"type": "string", "enum": levelEnum()},
					"analysisReasoning":   map[string]any{"type": "string"},
					"subQuestionAnalysis": subQuestionMap("Per-statement analysis when the input is a true/false question"),
				},
				"required": []any{"originalTopic", "competencyCode", "level", "analysisReasoning"},
			},
			"generated": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"stem":                map[string]any{"type": "string"},
					"options":             optionsDefinition(),
					"subQuestionAnalysis": subQuestionMap("Per-statement analysis, required for true/false"),
					"correctAnswer":       map[string]any{"type": "string"},
					"explanation":         map[string]any{"type": "string"},
					"metadata": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"format":                map[string]any{"type": "string", "enum": formatEnum()},
							"competencyCode":        map[string]any{"type": "string"},
							"competencyDescription": map[string]any{"type": "string"},
							"level":                 map[string]any{"type": "string", "enum": levelEnum()},
							"contextType":           map[string]any{"type": "string"},
							"rationaleLevel":        map[string]any{"type": "string"},
							"rationaleCompetency":   map[string]any{"type": "string"},
						},
						"required": []any{
							"format", "competencyCode", "competencyDescription", "level",
							"contextType", "rationaleLevel", "rationaleCompetency",
						},
					},
				},
				"required": []any{"stem", "correctAnswer", "explanation", "metadata"},
			},
		},
		"required": []any{"source", "generated"},
	}
}

// SubQuestionSchema describes one lettered statement of a true/false
// question.
var SubQuestionSchema = &llm.Schema{
	Name:        "sub-question-analysis",
	Description: "Level, competency and correctness of one true/false statement",
	Definition:  subQuestionDefinition(),
}

// AnalysisResultSchema is the single-result contract used by transform and
// regenerate.
var AnalysisResultSchema = &llm.Schema{
	Name:        "analysis-result",
	Description: "Analysis of a chemistry question and a newly generated question",
	Definition:  analysisResultDefinition(),
}

// BatchSchema wraps one result per question detected in the input.
var BatchSchema = &llm.Schema{
	Name:        "analysis-batch",
	Description: "One analysis result per question detected in the input",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"analysisResults": map[string]any{
				"type":  "array",
				"items": analysisResultDefinition(),
			},
		},
		"required": []any{"analysisResults"},
	},
}
