package questiongen

import (
	"context"
	"errors"
	"testing"

	"github.com/abhisek/chemgen/internal/attachment"
	"github.com/abhisek/chemgen/internal/llm"
)

func newTestService(responses ...llm.MockResponse) (*Service, *llm.MockProvider) {
	mock := llm.NewMockProvider(responses...)
	return New(mock, DefaultConfig()), mock
}

func TestService_Generate(t *testing.T) {
	raw := "```json\n{\"analysisResults\":[" + validEntry() + ",{\"source\":" + validSource + "}]}\n```"
	svc, mock := newTestService(llm.MockResponse{Text: raw})

	results, err := svc.Generate(context.Background(), GenerateInput{
		Input:  attachment.Input{Text: "Câu 1: HCl là gì?"},
		Format: FormatMultipleChoice,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	call, ok := mock.LastCall()
	if !ok {
		t.Fatal("expected a provider call")
	}
	if call.Schema != BatchSchema {
		t.Error("generate should use BatchSchema")
	}
	if call.MaxTokens != DefaultConfig().MaxTokens {
		t.Errorf("MaxTokens = %d", call.MaxTokens)
	}
}

func TestService_GenerateEmptyInputNoCall(t *testing.T) {
	svc, mock := newTestService()
	_, err := svc.Generate(context.Background(), GenerateInput{Format: FormatMultipleChoice})
	var inv *InvalidOperationError
	if !errors.As(err, &inv) {
		t.Fatalf("expected *InvalidOperationError, got %v", err)
	}
	if mock.CallCount() != 0 {
		t.Errorf("expected no provider call, got %d", mock.CallCount())
	}
}

func TestService_GenerateNoResults(t *testing.T) {
	svc, _ := newTestService(llm.MockResponse{Text: `{"analysisResults":[]}`})
	results, err := svc.Generate(context.Background(), GenerateInput{
		Input:  attachment.Input{Text: "hello"},
		Format: FormatShortAnswer,
	})
	if err != nil {
		t.Fatalf("empty batch is not an error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestService_GenerateDropsRejected(t *testing.T) {
	noStem := `{"source":` + validSource + `,"generated":{"stem":"","correctAnswer":"A","explanation":"e","metadata":{"format":"Trắc nghiệm trả lời ngắn"}}}`
	svc, _ := newTestService(llm.MockResponse{Text: `[` + noStem + `,` + validEntry() + `]`})

	results, err := svc.Generate(context.Background(), GenerateInput{
		Input:  attachment.Input{Text: "x"},
		Format: FormatMultipleChoice,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Generated.CorrectAnswer != "B" {
		t.Errorf("expected only the valid entry, got %+v", results)
	}
}

func TestService_GenerateMalformed(t *testing.T) {
	svc, _ := newTestService(llm.MockResponse{Text: "Sorry, I cannot help."})
	_, err := svc.Generate(context.Background(), GenerateInput{
		Input:  attachment.Input{Text: "x"},
		Format: FormatMultipleChoice,
	})
	var merr *MalformedResponseError
	if !errors.As(err, &merr) {
		t.Fatalf("expected *MalformedResponseError, got %v", err)
	}
}

func TestService_AuthenticationDistinct(t *testing.T) {
	svc := New(llm.Unconfigured(&llm.ErrAuthentication{Provider: "gemini"}), DefaultConfig())
	_, err := svc.Generate(context.Background(), GenerateInput{
		Input:  attachment.Input{Text: "x"},
		Format: FormatMultipleChoice,
	})
	if !llm.IsAuthentication(err) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	var transport *llm.ErrTransport
	if errors.As(err, &transport) {
		t.Error("authentication must not look like a transport error")
	}
}

func TestService_TransportErrorSingleAttempt(t *testing.T) {
	svc, mock := newTestService(
		llm.MockResponse{Err: &llm.ErrTransport{Err: errors.New("connection reset")}},
		llm.MockResponse{Text: validEntry()},
	)
	r := sampleResult()
	_, err := svc.Regenerate(context.Background(), r)
	var transport *llm.ErrTransport
	if !errors.As(err, &transport) {
		t.Fatalf("expected *llm.ErrTransport, got %v", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("expected a single attempt, got %d calls", mock.CallCount())
	}
}

func TestService_Transform(t *testing.T) {
	svc, mock := newTestService(llm.MockResponse{Text: validEntry()})
	r := sampleResult()

	out, err := svc.Transform(context.Background(), r, FormatMultipleChoice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Generated.Metadata.Format != FormatMultipleChoice {
		t.Errorf("format = %q", out.Generated.Metadata.Format)
	}
	call, _ := mock.LastCall()
	if call.Schema != AnalysisResultSchema {
		t.Error("transform should use AnalysisResultSchema")
	}
}

func TestService_TransformSameFormatNoCall(t *testing.T) {
	svc, mock := newTestService(llm.MockResponse{Text: validEntry()})
	_, err := svc.Transform(context.Background(), sampleResult(), FormatShortAnswer)
	var inv *InvalidOperationError
	if !errors.As(err, &inv) {
		t.Fatalf("expected *InvalidOperationError, got %v", err)
	}
	if mock.CallCount() != 0 {
		t.Error("no provider call expected")
	}
}

func TestService_RegenerateMissingPart(t *testing.T) {
	svc, _ := newTestService(llm.MockResponse{Text: `{"source":` + validSource + `}`})
	_, err := svc.Regenerate(context.Background(), sampleResult())
	var merr *MalformedResponseError
	if !errors.As(err, &merr) {
		t.Fatalf("expected *MalformedResponseError, got %v", err)
	}
}

func TestService_TrueFalseIncompleteAccepted(t *testing.T) {
	tf := `{"source":` + validSource + `,"generated":{"stem":"s","options":{"a":"x","b":"y"},"subQuestionAnalysis":{"a":{"level":"Biết","competencyCode":"HH1.1","rationale":"r","isCorrect":true}},"correctAnswer":"a-Đ, b-S","explanation":"e","metadata":{"format":"Trắc nghiệm đúng sai","competencyCode":"HH1.1","competencyDescription":"d","level":"Biết","contextType":"lab","rationaleLevel":"r","rationaleCompetency":"r"}}}`
	svc, _ := newTestService(llm.MockResponse{Text: tf})

	r := sampleResult()
	out, err := svc.Transform(context.Background(), r, FormatTrueFalse)
	if err != nil {
		t.Fatalf("incomplete true/false should be accepted: %v", err)
	}
	if got := out.Generated.MissingSubQuestions(); len(got) != 3 {
		t.Errorf("expected b, c, d missing, got %v", got)
	}
	sub, ok := out.Generated.SubQuestion("A")
	if !ok || sub.IsCorrect == nil || !*sub.IsCorrect {
		t.Errorf("case-insensitive sub-question lookup failed: %+v", sub)
	}
}

func TestService_Critique(t *testing.T) {
	svc, mock := newTestService(llm.MockResponse{Text: "  The level is justified.\n"})
	reply, err := svc.Critique(context.Background(), sampleResult(), "Too hard", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply != "The level is justified." {
		t.Errorf("reply = %q", reply)
	}
	call, _ := mock.LastCall()
	if call.Schema != nil {
		t.Error("critique should have no schema")
	}
	if call.MaxTokens != DefaultConfig().CritiqueMaxTokens {
		t.Errorf("MaxTokens = %d", call.MaxTokens)
	}
}
