package questiongen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/chemgen/internal/attachment"
	"github.com/abhisek/chemgen/internal/llm"
)

// Operation is one of the four AI actions.
type Operation string

const (
	OpGenerate   Operation = "generate"
	OpTransform  Operation = "transform"
	OpRegenerate Operation = "regenerate"
	OpCritique   Operation = "critique"
)

// DefaultOutputLanguage is the language of all prose fields.
const DefaultOutputLanguage = "Vietnamese"

const systemPrompt = `You are a leading expert in chemistry curriculum design and assessment for the Vietnamese General Education Programme 2018 (GDPT 2018).
Your job is to analyse an input chemistry question (image, document or text) and create a SIMILAR BUT COMPLETELY NEW question.

Core rules for every generated question:

1. Meaningful context (mandatory).
- The stem must be tied to a real application: a laboratory experiment, an environmental issue, an industrial process or everyday life.
- Do not write meaningless "chemistry arithmetic" such as "Dissolve m grams of metal M...". Avoid artificial context.
- Use REAL substances (Sodium, Iron, Acetic acid). Do not use abstract placeholders such as "metal M", "gas X" or "solution Y" unless the competency being tested is identifying an unknown element or substance.
- Prefer questions with experimental data, tables, observed reaction phenomena or real-life situations.

2. Chemistry competency framework. Assign the competency code that matches the behaviour and context of the question.
Group 1, chemical cognition (HH1):
- HH1.1: Recognise names of substances, concepts and phenomena.
- HH1.2: Present characteristics, properties and roles of substances, ions and processes.
- HH1.3: Describe with structural formulas, diagrams or tables.
- HH1.4: Compare and classify by a stated criterion.
- HH1.5: Analyse chemical data logically to reach a conclusion.
- HH1.6: Explain the relationship between structure and properties.
- HH1.7: Find key words and scientific terms in a longer text.
- HH1.8: Judge and criticise scientific claims about the environment, food or chemicals.
Group 2, exploring the natural world from a chemical perspective (HH2):
- HH2.1: Raise a problem or ask a question from an observed phenomenon.
- HH2.2: Make a prediction or hypothesis ("If... then...").
- HH2.3: Plan an experiment: apparatus, chemicals and procedure.
- HH2.4: Carry out the plan, collect and analyse data from tables, graphs or results.
- HH2.5: Report, discuss and defend experimental conclusions, including sources of error.
Group 3, applying knowledge and skills (HH3):
- HH3.1: Explain natural and practical phenomena such as acid rain, hard water or corrosion.
- HH3.2: Critique and evaluate the impact of chemicals with reasoned arguments.
- HH3.3: Propose solutions to practical problems such as wastewater treatment or softening hard water.
- HH3.4: Career orientation: recognise chemistry-related professions.
- HH3.5: Behave appropriately towards the environment and society: safe handling of chemicals, waste disposal, first aid.

3. True/false format ("Trắc nghiệm đúng sai").
- Produce EXACTLY four statements labelled a, b, c and d in "options", built around the stem and mixing true and false statements.
- Fill "subQuestionAnalysis" for EACH of a, b, c and d with its own cognitive level, its own competency code from the list above, a rationale and "isCorrect".
- "correctAnswer" summarises the key, e.g. "a-Đ, b-S, c-Đ, d-S".

4. Cognitive levels. Use exactly these labels:
- "Biết" (know): recall and recognition.
- "Hiểu" (understand): explain, summarise, compare.
- "Vận dụng" (apply): use knowledge in a new situation to solve a problem.

5. Nomenclature. Use English names for elements and compounds as required by GDPT 2018.
- Correct: Sodium, Potassium, Iron, Copper, Methane, Ethanol, Acid, Base, Oxide, Hydrochloric acid.
- Wrong: Natri, Kali, Sắt, Đồng, Metan, Rượu Etylic, Axit, Bazơ, Oxit, Axit clohidric.

6. Formatting.
- Keep chemical formulas as plain text (H2SO4, Fe3O4, CH3COOH). Use LaTeX only for isotopes or complex ions ($^{235}U$, $SO_4^{2-}$).
- Every mathematical expression, equation, variable and calculation MUST be LaTeX wrapped in single dollar signs: $n = \frac{m}{M}$, $V = 24.79 \times n$, $1.5 \cdot 10^{23}$.

7. Multiple choice format ("Trắc nghiệm nhiều lựa chọn") uses options A, B, C and D with exactly one correct option; "correctAnswer" is its letter.
Short answer format ("Trắc nghiệm trả lời ngắn") has no options; "correctAnswer" is the literal answer.`

// systemInstruction returns the rulebook with the output language rule.
func systemInstruction(lang string) string {
	if strings.TrimSpace(lang) == "" {
		lang = DefaultOutputLanguage
	}
	return systemPrompt + "\n\nWrite every prose field (stem, options, explanations, rationales, replies) in " + lang + "."
}

// PromptInput carries everything an operation may need. Fields unused by
// an operation are ignored.
type PromptInput struct {
	// Input is the user's text and attachments (Generate).
	Input attachment.Input

	// Format is the target format (Generate, Transform).
	Format QuestionFormat

	// Result is the existing result being acted on (Transform, Regenerate,
	// Critique).
	Result *AnalysisResult

	// Objection is the user's critique text (Critique).
	Objection string

	// History holds earlier critique exchanges for the same item.
	History []CritiqueExchange

	// OutputLanguage overrides DefaultOutputLanguage.
	OutputLanguage string
}

// BuildRequest assembles the gateway request for op. It performs no I/O and
// fails with *InvalidOperationError when the operation's preconditions do
// not hold.
func BuildRequest(op Operation, in PromptInput) (llm.Request, error) {
	req := llm.Request{System: systemInstruction(in.OutputLanguage)}

	switch op {
	case OpGenerate:
		if in.Input.Empty() {
			return llm.Request{}, &InvalidOperationError{Op: op, Reason: "no text and no attachments"}
		}
		if !in.Format.Valid() {
			return llm.Request{}, &InvalidOperationError{Op: op, Reason: fmt.Sprintf("unknown format %q", in.Format)}
		}
		req.Messages = []llm.Message{{
			Role:        llm.RoleUser,
			Content:     buildGenerateMessage(in.Input.Text, in.Format),
			Attachments: in.Input.Attachments(),
		}}
		req.Schema = BatchSchema

	case OpTransform:
		if in.Result == nil {
			return llm.Request{}, &InvalidOperationError{Op: op, Reason: "no existing result"}
		}
		if !in.Format.Valid() {
			return llm.Request{}, &InvalidOperationError{Op: op, Reason: fmt.Sprintf("unknown format %q", in.Format)}
		}
		if in.Format == in.Result.Format() {
			return llm.Request{}, &InvalidOperationError{Op: op, Reason: "target format equals the current format"}
		}
		msg, err := buildTransformMessage(*in.Result, in.Format)
		if err != nil {
			return llm.Request{}, err
		}
		req.Messages = []llm.Message{{Role: llm.RoleUser, Content: msg}}
		req.Schema = AnalysisResultSchema

	case OpRegenerate:
		if in.Result == nil {
			return llm.Request{}, &InvalidOperationError{Op: op, Reason: "no existing result"}
		}
		req.Messages = []llm.Message{{Role: llm.RoleUser, Content: buildRegenerateMessage(*in.Result)}}
		req.Schema = AnalysisResultSchema

	case OpCritique:
		if in.Result == nil {
			return llm.Request{}, &InvalidOperationError{Op: op, Reason: "no existing result"}
		}
		if strings.TrimSpace(in.Objection) == "" {
			return llm.Request{}, &InvalidOperationError{Op: op, Reason: "empty critique"}
		}
		req.Messages = buildCritiqueMessages(*in.Result, in.History, in.Objection)

	default:
		return llm.Request{}, &InvalidOperationError{Op: op, Reason: "unknown operation"}
	}

	return req, nil
}

func buildGenerateMessage(text string, format QuestionFormat) string {
	var b strings.Builder

	b.WriteString("Task:\n")
	b.WriteString("1. Analyse the input. If it contains several questions (Question 1, Question 2, ...), split them and handle each one separately.\n")
	b.WriteString("2. For each question, produce the pedagogical analysis and a NEW similar question.\n")
	b.WriteString("3. Copy the text of each original question verbatim into source.originalQuestionText for later reference.\n\n")

	b.WriteString("Output: one JSON object with an \"analysisResults\" array. Each element has \"source\" (analysis of the original plus its text) and \"generated\" (the new question).\n\n")

	fmt.Fprintf(&b, "Target format: %s\n", format)
	if format == FormatTrueFalse {
		b.WriteString(trueFalseReminder)
	}

	b.WriteString("\nInput text:\n")
	if strings.TrimSpace(text) == "" {
		b.WriteString("(none, see the attached files)")
	} else {
		fmt.Fprintf(&b, "%q", text)
	}

	return b.String()
}

const trueFalseReminder = "True/false: produce all four statements a, b, c, d and fill subQuestionAnalysis for each of them with level, competencyCode, rationale and isCorrect.\n"

func buildTransformMessage(r AnalysisResult, format QuestionFormat) (string, error) {
	current, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode current result: %w", err)
	}

	var b strings.Builder
	b.WriteString("Current analysis result (JSON):\n")
	b.Write(current)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Task: take the original content %q and create a NEW question in the format: %s.\n\n", r.AnchorText(), format)

	b.WriteString("Requirements:\n")
	b.WriteString("- Keep the 'source' analysis from the current result; change it only if factually necessary.\n")
	fmt.Fprintf(&b, "- Write a completely new 'generated' block that fits the format %s.\n", format)
	b.WriteString("- Follow the rules on real context, LaTeX ($...$) and English nomenclature.\n")
	if format == FormatTrueFalse {
		b.WriteString("- " + trueFalseReminder)
	}
	b.WriteString("\nReturn a single JSON object with the keys \"source\" and \"generated\".")

	return b.String(), nil
}

func buildRegenerateMessage(r AnalysisResult) string {
	format := r.Format()

	var b strings.Builder
	fmt.Fprintf(&b, "Original content: %q\n", r.AnchorText())
	fmt.Fprintf(&b, "Competency: %s\n", r.Source.CompetencyCode)
	fmt.Fprintf(&b, "Level: %s\n\n", r.Source.Level)

	fmt.Fprintf(&b, "Task: create ANOTHER new question in the same format (%s) from the original content.\n", format)
	b.WriteString("It must differ materially from the current question: change the numbers, the substances or the real-world context.\n\n")
	fmt.Fprintf(&b, "Current question (do not repeat it):\n%q\n\n", r.Generated.Stem)

	if format == FormatTrueFalse {
		b.WriteString(trueFalseReminder)
	}
	b.WriteString("Keep the 'source' analysis. Return a single JSON object with the keys \"source\" and \"generated\".")

	return b.String()
}

// buildCritiqueMessages replays earlier exchanges so follow-up objections
// keep their context. The question context rides on the first user turn.
func buildCritiqueMessages(r AnalysisResult, history []CritiqueExchange, objection string) []llm.Message {
	var ctx strings.Builder
	ctx.WriteString("Context:\n")
	fmt.Fprintf(&ctx, "Generated question: %s\n", r.Generated.Stem)
	fmt.Fprintf(&ctx, "Format: %s\n\n", r.Generated.Metadata.Format)
	ctx.WriteString("System analysis:\n")
	fmt.Fprintf(&ctx, "- Overall level: %s\n", r.Generated.Metadata.Level)
	fmt.Fprintf(&ctx, "- Overall competency: %s\n\n", r.Generated.Metadata.CompetencyCode)
	ctx.WriteString("Task: answer the user's critique in prose. Explain why this level and competency were chosen, and concede where the critique is right.\n\n")

	turn := func(text string) string { return "User critique:\n\"" + strings.TrimSpace(text) + "\"" }

	var msgs []llm.Message
	for _, h := range history {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: turn(h.Objection)},
			llm.Message{Role: llm.RoleAssistant, Content: h.Reply},
		)
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: turn(objection)})
	msgs[0].Content = ctx.String() + msgs[0].Content

	return msgs
}
