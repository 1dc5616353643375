// Package export renders a generated question as a Word worksheet: the
// student-facing question, a page break, then the answer key for the
// instructor.
package export

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/fumiama/go-docx"

	"github.com/abhisek/chemgen/internal/metrics"
	"github.com/abhisek/chemgen/internal/questiongen"
)

// MediaType is the content type of the exported file.
const MediaType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

const (
	title        = "PHIẾU CÂU HỎI KIỂM TRA ĐÁNH GIÁ - GDPT 2018"
	keyTitle     = "HƯỚNG DẪN CHẤM & PHÂN TÍCH CHI TIẾT"
	answerLine   = "Trả lời: ..........................................................................................................."
	pending      = "(chờ phân tích)"
	colorGrey    = "666666"
	colorGreen   = "2E7D32"
	colorRed     = "D32F2F"
	sizeTitle    = "32"
	sizeHeading  = "28"
	quickKeySep  = "   ;   "
	verdictTrue  = "Đúng"
	verdictFalse = "Sai"
	verdictNone  = "—"
)

// WriteQuestion writes q as a .docx document to w. The output depends only
// on q.
func WriteQuestion(w io.Writer, q questiongen.GeneratedQuestion) error {
	doc := Build(q)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	metrics.RecordExport()
	return nil
}

// Build lays out the worksheet.
func Build(q questiongen.GeneratedQuestion) *docx.Docx {
	doc := docx.New().WithDefaultTheme()

	writeStudentSection(doc, q)
	doc.AddParagraph().AddPageBreaks()
	writeAnswerKey(doc, q)

	return doc
}

func writeStudentSection(doc *docx.Docx, q questiongen.GeneratedQuestion) {
	doc.AddParagraph().Justification("center").AddText(title).Bold().Size(sizeTitle)
	doc.AddParagraph().Justification("center").
		AddText("Dạng câu hỏi: " + string(q.Metadata.Format)).Italic().Color(colorGrey)

	p := doc.AddParagraph()
	preserve(p.AddText("Nội dung câu hỏi: ")).Bold().Size(sizeHeading)
	p.AddText(q.Stem).Size(sizeHeading)

	switch q.Metadata.Format {
	case questiongen.FormatMultipleChoice:
		for _, k := range q.OptionKeys() {
			text, _ := q.Option(k)
			op := doc.AddParagraph()
			preserve(op.AddText(k + ". ")).Bold()
			op.AddText(text)
		}

	case questiongen.FormatTrueFalse:
		keys := statementKeys(q)
		tbl := doc.AddTable(len(keys)+1, 3, 0, nil)
		header(tbl.TableRows[0], "Ý hỏi", "Nội dung mệnh đề", "Đúng / Sai")
		for i, k := range keys {
			text, _ := q.Option(k)
			row := tbl.TableRows[i+1]
			row.TableCells[0].AddParagraph().Justification("center").AddText(k + ")")
			row.TableCells[1].AddParagraph().AddText(text)
			row.TableCells[2].AddParagraph()
		}
		doc.AddParagraph()

	case questiongen.FormatShortAnswer:
		doc.AddParagraph().AddText(answerLine).Italic()
	}
}

func writeAnswerKey(doc *docx.Docx, q questiongen.GeneratedQuestion) {
	doc.AddParagraph().Justification("center").AddText(keyTitle).Bold().Color(colorGreen).Size(sizeHeading)

	labelled(doc, "Chỉ báo năng lực (Chung): ", q.Metadata.CompetencyCode)
	labelled(doc, "Cấp độ tư duy (Chung): ", string(q.Metadata.Level))
	labelled(doc, "Mô tả năng lực: ", q.Metadata.CompetencyDescription)
	labelled(doc, "Bối cảnh thực tiễn: ", q.Metadata.ContextType)
	doc.AddParagraph()

	switch q.Metadata.Format {
	case questiongen.FormatTrueFalse:
		p := doc.AddParagraph()
		preserve(p.AddText("ĐÁP ÁN NHANH: ")).Bold().Color(colorRed)
		preserve(p.AddText(QuickKey(q))).Bold()

		doc.AddParagraph().AddText("Bảng phân tích chi tiết từng lệnh hỏi:").Bold()
		tbl := doc.AddTable(len(questiongen.SubQuestionKeys)+1, 6, 0, nil)
		header(tbl.TableRows[0], "Ý", "Nội dung", "Kết luận", "Cấp độ", "Mã chỉ báo", "Giải thích chi tiết")
		for i, k := range questiongen.SubQuestionKeys {
			row := tbl.TableRows[i+1]
			text, _ := q.Option(k)
			row.TableCells[0].AddParagraph().Justification("center").AddText(k + ")")
			row.TableCells[1].AddParagraph().AddText(text)

			sub, ok := q.SubQuestion(k)
			if !ok {
				row.TableCells[2].AddParagraph().Justification("center").AddText(pending).Italic().Color(colorGrey)
				row.TableCells[3].AddParagraph()
				row.TableCells[4].AddParagraph()
				row.TableCells[5].AddParagraph()
				continue
			}
			v := verdict(sub.IsCorrect)
			color := colorRed
			if v == verdictTrue {
				color = colorGreen
			}
			row.TableCells[2].AddParagraph().Justification("center").AddText(v).Bold().Color(color)
			row.TableCells[3].AddParagraph().Justification("center").AddText(string(sub.Level))
			row.TableCells[4].AddParagraph().Justification("center").AddText(sub.CompetencyCode)
			row.TableCells[5].AddParagraph().AddText(sub.Rationale)
		}
		doc.AddParagraph()

	case questiongen.FormatMultipleChoice:
		p := doc.AddParagraph()
		preserve(p.AddText("ĐÁP ÁN ĐÚNG: ")).Bold()
		p.AddText(CorrectOption(q)).Bold().Color(colorRed)
		writeRationale(doc, q)

	default:
		p := doc.AddParagraph()
		preserve(p.AddText("ĐÁP ÁN: ")).Bold()
		p.AddText(q.CorrectAnswer).Bold().Color(colorRed)
		writeRationale(doc, q)
	}

	doc.AddParagraph().AddText("Hướng dẫn giải chi tiết:").Bold().Underline("single")
	doc.AddParagraph().AddText(q.Explanation)
}

func writeRationale(doc *docx.Docx, q questiongen.GeneratedQuestion) {
	doc.AddParagraph().AddText("Căn cứ đánh giá:").Bold()
	doc.AddParagraph().AddText("- Cấp độ tư duy: " + q.Metadata.RationaleLevel)
	doc.AddParagraph().AddText("- Chỉ báo năng lực: " + q.Metadata.RationaleCompetency)
	doc.AddParagraph()
}

func labelled(doc *docx.Docx, label, value string) {
	p := doc.AddParagraph()
	preserve(p.AddText(label)).Bold()
	p.AddText(value)
}

// preserve keeps leading and trailing spaces of r's text when rendered.
func preserve(r *docx.Run) *docx.Run {
	for _, c := range r.Children {
		if t, ok := c.(*docx.Text); ok {
			t.XMLSpace = "preserve"
		}
	}
	return r
}

func header(row *docx.WTableRow, labels ...string) {
	for i, l := range labels {
		row.TableCells[i].AddParagraph().Justification("center").AddText(l).Bold()
	}
}

// statementKeys returns the a–d keys that have statement text, lower-cased.
func statementKeys(q questiongen.GeneratedQuestion) []string {
	var keys []string
	for _, k := range questiongen.SubQuestionKeys {
		if text, ok := q.Option(k); ok && strings.TrimSpace(text) != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func verdict(isCorrect *bool) string {
	switch {
	case isCorrect == nil:
		return verdictNone
	case *isCorrect:
		return verdictTrue
	default:
		return verdictFalse
	}
}

// QuickKey summarises a true/false key, e.g. "a) Đúng   ;   b) Sai".
// A statement without analysis is shown as pending.
func QuickKey(q questiongen.GeneratedQuestion) string {
	parts := make([]string, 0, len(questiongen.SubQuestionKeys))
	for _, k := range questiongen.SubQuestionKeys {
		sub, ok := q.SubQuestion(k)
		if !ok {
			parts = append(parts, k+") "+pending)
			continue
		}
		parts = append(parts, k+") "+verdict(sub.IsCorrect))
	}
	return strings.Join(parts, quickKeySep)
}

// CorrectOption expands a multiple-choice answer letter into "K. text",
// matching the key case-insensitively. An unmatched answer is returned
// as is.
func CorrectOption(q questiongen.GeneratedQuestion) string {
	key := strings.TrimSpace(q.CorrectAnswer)
	for _, k := range q.OptionKeys() {
		if strings.EqualFold(k, key) {
			text, _ := q.Option(k)
			return k + ". " + text
		}
	}
	return q.CorrectAnswer
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename returns the download name for q exported at t.
func Filename(q questiongen.GeneratedQuestion, t time.Time) string {
	code := unsafeFileChars.ReplaceAllString(strings.TrimSpace(q.Metadata.CompetencyCode), "_")
	if code == "" {
		code = "NA"
	}
	return fmt.Sprintf("Phieu_cau_hoi_%s_%d.docx", code, t.UnixMilli())
}
