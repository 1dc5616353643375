// Package questiongen builds prompts for the four question operations,
// calls the LLM gateway once per operation and normalizes the answers.
package questiongen

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abhisek/chemgen/internal/llm"
	"github.com/abhisek/chemgen/internal/metrics"
)

// Service runs question operations against an LLM provider. Every method
// makes at most one provider call and never retries.
type Service struct {
	provider llm.Provider
	config   Config
	log      *slog.Logger
}

// New creates a Service with the given provider and config.
func New(provider llm.Provider, cfg Config) *Service {
	return &Service{provider: provider, config: cfg, log: slog.Default().With("component", "questiongen")}
}

// ModelID reports the model behind the provider.
func (s *Service) ModelID() string {
	return s.provider.ModelID()
}

// Generate analyses the user's input and returns one result per detected
// question. An empty slice means the model found nothing usable.
func (s *Service) Generate(ctx context.Context, in GenerateInput) ([]AnalysisResult, error) {
	req, err := s.build(OpGenerate, PromptInput{Input: in.Input, Format: in.Format})
	if err != nil {
		return nil, err
	}

	raw, err := s.call(llm.WithPurpose(ctx, llm.PurposeGenerate), req)
	if err != nil {
		return nil, err
	}

	results, dropped, err := NormalizeBatch(raw)
	if err != nil {
		s.logMalformed(OpGenerate, err)
		return nil, err
	}

	kept := make([]AnalysisResult, 0, len(results))
	for i := range results {
		if verr := s.validate(&results[i]); verr != nil {
			dropped++
			continue
		}
		kept = append(kept, results[i])
	}

	metrics.RecordNormalized(len(kept), dropped)
	if dropped > 0 {
		s.log.Info("dropped incomplete results", "op", OpGenerate, "kept", len(kept), "dropped", dropped)
	}
	return kept, nil
}

// Transform rewrites the generated question of r into a different format.
func (s *Service) Transform(ctx context.Context, r AnalysisResult, format QuestionFormat) (AnalysisResult, error) {
	req, err := s.build(OpTransform, PromptInput{Result: &r, Format: format})
	if err != nil {
		return AnalysisResult{}, err
	}
	return s.single(llm.WithPurpose(ctx, llm.PurposeTransform), OpTransform, req)
}

// Regenerate asks for a different question in the same format as r.
func (s *Service) Regenerate(ctx context.Context, r AnalysisResult) (AnalysisResult, error) {
	req, err := s.build(OpRegenerate, PromptInput{Result: &r})
	if err != nil {
		return AnalysisResult{}, err
	}
	return s.single(llm.WithPurpose(ctx, llm.PurposeRegenerate), OpRegenerate, req)
}

// Critique returns the model's prose reply to a user's objection. history
// holds earlier exchanges about the same result, oldest first.
func (s *Service) Critique(ctx context.Context, r AnalysisResult, objection string, history []CritiqueExchange) (string, error) {
	req, err := s.build(OpCritique, PromptInput{Result: &r, Objection: objection, History: history})
	if err != nil {
		return "", err
	}
	req.MaxTokens = s.config.CritiqueMaxTokens

	raw, err := s.call(llm.WithPurpose(ctx, llm.PurposeCritique), req)
	if err != nil {
		return "", err
	}
	return NormalizeProse(raw), nil
}

func (s *Service) build(op Operation, in PromptInput) (llm.Request, error) {
	in.OutputLanguage = s.config.OutputLanguage
	req, err := BuildRequest(op, in)
	if err != nil {
		return llm.Request{}, err
	}
	req.MaxTokens = s.config.MaxTokens
	req.Temperature = s.config.Temperature
	return req, nil
}

func (s *Service) call(ctx context.Context, req llm.Request) (string, error) {
	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("LLM %s failed: %w", llm.PurposeFrom(ctx), err)
	}
	if s.config.CheckConformance && req.Schema != nil {
		if cerr := CheckConformance(req.Schema, resp.Text); cerr != nil {
			s.log.Debug("response does not conform to schema", "schema", req.Schema.Name, "error", cerr)
		}
	}
	return resp.Text, nil
}

func (s *Service) single(ctx context.Context, op Operation, req llm.Request) (AnalysisResult, error) {
	raw, err := s.call(ctx, req)
	if err != nil {
		return AnalysisResult{}, err
	}

	r, err := NormalizeSingle(raw)
	if err != nil {
		s.logMalformed(op, err)
		metrics.RecordNormalized(0, 1)
		return AnalysisResult{}, err
	}

	if verr := s.validate(&r); verr != nil {
		metrics.RecordNormalized(0, 1)
		return AnalysisResult{}, &MalformedResponseError{Raw: raw, Err: verr}
	}

	metrics.RecordNormalized(1, 0)
	return r, nil
}

// validate runs the chain, logging warnings. It returns the first
// rejecting error.
func (s *Service) validate(r *AnalysisResult) *ValidationError {
	for _, v := range s.config.Validators {
		verr := v.Validate(r)
		if verr == nil {
			continue
		}
		if verr.Warning {
			s.log.Warn("result accepted with defect", "validator", verr.Validator, "detail", verr.Message)
			if verr.Validator == (&TrueFalseCompletenessValidator{}).Name() {
				metrics.RecordTrueFalseIncomplete()
			}
			continue
		}
		s.log.Info("result rejected", "validator", verr.Validator, "detail", verr.Message)
		return verr
	}
	return nil
}

func (s *Service) logMalformed(op Operation, err error) {
	if merr, ok := err.(*MalformedResponseError); ok {
		s.log.Warn("malformed AI response", "op", op, "error", merr.Err, "raw", merr.Raw)
	}
}
