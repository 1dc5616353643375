package questiongen

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// fencePattern matches a response wrapped in a Markdown code fence, with or
// without a language tag.
var fencePattern = regexp.MustCompile("(?s)^```[A-Za-z0-9_+-]*[ \\t]*\\r?\\n?(.*?)\\s*```$")

// Key aliases the model is known to use.
var (
	sourceKeys    = []string{"source", "sourceAnalysis"}
	generatedKeys = []string{"generated", "generatedQuestion"}
)

// StripFence trims whitespace and removes a surrounding code fence.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// parseJSON keeps numbers as json.Number so a numeric answer keeps its
// literal form when coerced to text.
func parseJSON(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(StripFence(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Err: err}
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, &MalformedResponseError{Raw: raw, Err: errors.New("trailing data after JSON value")}
	}
	return v, nil
}

// NormalizeBatch turns a Generate response into results. Entries missing
// either part are dropped and counted; an empty slice is a valid outcome.
func NormalizeBatch(raw string) ([]AnalysisResult, int, error) {
	v, err := parseJSON(raw)
	if err != nil {
		return nil, 0, err
	}

	entries, err := batchEntries(v)
	if err != nil {
		return nil, 0, &MalformedResponseError{Raw: raw, Err: err}
	}

	results := make([]AnalysisResult, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		r, ok := resolveEntry(e)
		if !ok {
			dropped++
			continue
		}
		results = append(results, r)
	}
	return results, dropped, nil
}

// batchEntries locates the result list: the analysisResults field, a bare
// top-level array, or a lone result object.
func batchEntries(v any) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case map[string]any:
		if list, ok := t["analysisResults"]; ok {
			switch l := list.(type) {
			case []any:
				return l, nil
			case nil:
				return nil, nil
			default:
				return nil, fmt.Errorf("analysisResults is %T, not an array", list)
			}
		}
		if _, ok := firstObject(t, sourceKeys); ok {
			return []any{t}, nil
		}
		if _, ok := firstObject(t, generatedKeys); ok {
			return []any{t}, nil
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected top-level %T", v)
	}
}

// NormalizeSingle turns a Transform or Regenerate response into one result.
// A one-element batch is accepted.
func NormalizeSingle(raw string) (AnalysisResult, error) {
	v, err := parseJSON(raw)
	if err != nil {
		return AnalysisResult{}, err
	}

	var entry any = v
	if _, isList := v.([]any); isList || hasKey(v, "analysisResults") {
		entries, err := batchEntries(v)
		if err != nil {
			return AnalysisResult{}, &MalformedResponseError{Raw: raw, Err: err}
		}
		if len(entries) != 1 {
			return AnalysisResult{}, &MalformedResponseError{
				Raw: raw,
				Err: fmt.Errorf("expected one result, got %d", len(entries)),
			}
		}
		entry = entries[0]
	}

	r, ok := resolveEntry(entry)
	if !ok {
		return AnalysisResult{}, &MalformedResponseError{
			Raw: raw,
			Err: errors.New("result is missing source or generated"),
		}
	}
	return r, nil
}

// NormalizeProse returns a Critique reply. Prose is passed through.
func NormalizeProse(raw string) string {
	return strings.TrimSpace(raw)
}

func hasKey(v any, key string) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	_, ok = m[key]
	return ok
}

func firstObject(m map[string]any, keys []string) (map[string]any, bool) {
	for _, k := range keys {
		if obj, ok := m[k].(map[string]any); ok {
			return obj, true
		}
	}
	return nil, false
}

// resolveEntry maps alias keys onto the canonical shape. It reports false
// when either part is absent, null, not an object, or of the wrong shape.
func resolveEntry(e any) (AnalysisResult, bool) {
	m, ok := e.(map[string]any)
	if !ok {
		return AnalysisResult{}, false
	}
	src, ok := firstObject(m, sourceKeys)
	if !ok {
		return AnalysisResult{}, false
	}
	gen, ok := firstObject(m, generatedKeys)
	if !ok {
		return AnalysisResult{}, false
	}

	var r AnalysisResult
	if !decodeInto(coerceScalars(src), &r.Source) || !decodeInto(coerceScalars(gen), &r.Generated) {
		return AnalysisResult{}, false
	}
	return r, true
}

func decodeInto(obj map[string]any, dst any) bool {
	b, err := json.Marshal(obj)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

// coerceScalars rewrites the scalar values of obj to the types the result
// model expects: isCorrect becomes a boolean (or null when unreadable) and
// every other scalar becomes text. A list of scalars is joined by newlines.
// Nested objects are walked; obj is not modified.
func coerceScalars(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if k == "isCorrect" {
			out[k] = coerceBool(v)
			continue
		}
		out[k] = coerceText(v)
	}
	return out
}

func coerceText(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return coerceScalars(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case []any:
		lines := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := coerceText(e).(string)
			if !ok {
				return v
			}
			lines = append(lines, s)
		}
		return strings.Join(lines, "\n")
	default:
		return v
	}
}

func coerceBool(v any) any {
	switch t := v.(type) {
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		return f != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "đúng", "đ", "yes", "1":
			return true
		case "false", "sai", "s", "no", "0":
			return false
		}
	}
	return nil
}
