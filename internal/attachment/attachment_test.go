package attachment

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
	"testing/iotest"

	"github.com/fumiama/go-docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	p, err := Encode(bytes.NewReader([]byte("hello")), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.MediaType)
	assert.Equal(t, "aGVsbG8=", p.Data)
	assert.Equal(t, 5, p.Size())

	att := p.LLM()
	assert.Equal(t, "image/png", att.MediaType)
	assert.Equal(t, "aGVsbG8=", att.Data)
}

func TestEncode_ReadFailure(t *testing.T) {
	_, err := Encode(iotest.ErrReader(errors.New("disk gone")), "application/pdf")
	var readErr *AttachmentReadError
	require.ErrorAs(t, err, &readErr)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestStripDataURL(t *testing.T) {
	tests := []struct {
		in       string
		wantType string
		wantData string
	}{
		{"data:image/png;base64,iVBORw0KGgo=", "image/png", "iVBORw0KGgo="},
		{"data:image/jpeg;base64,/9j/", "image/jpeg", "/9j/"},
		{"iVBORw0KGgo=", "", "iVBORw0KGgo="},
		{"  data:application/pdf;base64,JVBERi0=\n", "application/pdf", "JVBERi0="},
	}
	for _, tt := range tests {
		mt, data := StripDataURL(tt.in)
		assert.Equal(t, tt.wantType, mt, tt.in)
		assert.Equal(t, tt.wantData, data, tt.in)
	}
}

func TestClassify(t *testing.T) {
	pngHead := []byte("\x89PNG\r\n\x1a\n0000")
	pdfHead := []byte("%PDF-1.7\n")

	tests := []struct {
		name      string
		mediaType string
		filename  string
		head      []byte
		want      Kind
		wantType  string
	}{
		{"declared image", "image/webp", "paste", nil, KindImage, "image/webp"},
		{"declared with params", "image/png; charset=binary", "", nil, KindImage, "image/png"},
		{"pdf by extension", "", "de-thi.pdf", nil, KindPDF, MediaTypePDF},
		{"docx by extension", "application/octet-stream", "De_thi.DOCX", nil, KindDocx, MediaTypeDocx},
		{"declared docx", MediaTypeDocx, "x", nil, KindDocx, MediaTypeDocx},
		{"sniffed png", "", "blob", pngHead, KindImage, "image/png"},
		{"sniffed pdf", "application/octet-stream", "", pdfHead, KindPDF, MediaTypePDF},
		{"plain text", "text/plain", "notes.txt", nil, KindUnsupported, "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, mt := Classify(tt.mediaType, tt.filename, tt.head)
			assert.Equal(t, tt.want, kind)
			assert.Equal(t, tt.wantType, mt)
		})
	}
}

func buildDocx(t *testing.T) []byte {
	t.Helper()
	doc := docx.New().WithDefaultTheme()
	doc.AddParagraph().AddText("Câu 1: Cho 5,6 gam Iron tác dụng với dung dịch HCl dư.")
	doc.AddParagraph().AddText("A. 1,12 lít")
	tbl := doc.AddTable(1, 2, 0, nil)
	tbl.TableRows[0].TableCells[0].AddParagraph().AddText("a)")
	tbl.TableRows[0].TableCells[1].AddParagraph().AddText("Iron bị oxi hóa.")

	var buf bytes.Buffer
	_, err := doc.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestExtractDocxText(t *testing.T) {
	data := buildDocx(t)

	text, err := ExtractDocxText(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Contains(t, text, "Câu 1: Cho 5,6 gam Iron tác dụng với dung dịch HCl dư.")
	assert.Contains(t, text, "A. 1,12 lít")
	assert.Contains(t, text, "a) | Iron bị oxi hóa.")
}

func TestExtractDocxText_NotAZip(t *testing.T) {
	data := []byte("definitely not a zip archive")
	_, err := ExtractDocxText(bytes.NewReader(data), int64(len(data)))
	var readErr *AttachmentReadError
	require.ErrorAs(t, err, &readErr)
}

func TestPrepare_DocxMergedIntoText(t *testing.T) {
	data := buildDocx(t)

	in, err := Prepare("Phân tích đề sau:", nil, &File{Name: "de.docx", Content: data})
	require.NoError(t, err)
	assert.Nil(t, in.Document, "docx must never be sent as binary")
	assert.Contains(t, in.Text, "Phân tích đề sau:\n\nCâu 1")
	assert.Empty(t, in.Attachments())
}

func TestPrepare_PDFAndImageInline(t *testing.T) {
	pdf := []byte("%PDF-1.4\n...")
	png := []byte("\x89PNG\r\n\x1a\n....")

	in, err := Prepare("", &File{Name: "paste.png", MediaType: "image/png", Content: png}, &File{Name: "de.pdf", Content: pdf})
	require.NoError(t, err)
	require.NotNil(t, in.Image)
	require.NotNil(t, in.Document)
	assert.Equal(t, MediaTypePDF, in.Document.MediaType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pdf), in.Document.Data)

	atts := in.Attachments()
	require.Len(t, atts, 2)
	assert.Equal(t, "image/png", atts[0].MediaType)
	assert.False(t, in.Empty())
}

func TestPrepare_Rejections(t *testing.T) {
	_, err := Prepare("x", nil, &File{Name: "notes.txt", MediaType: "text/plain", Content: []byte("hi")})
	var readErr *AttachmentReadError
	require.ErrorAs(t, err, &readErr)
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
	assert.Equal(t, "notes.txt", readErr.Name)

	_, err = Prepare("x", &File{Name: "de.pdf", MediaType: MediaTypePDF, Content: []byte("%PDF")}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)

	_, err = Prepare("x", nil, &File{Name: "broken.docx", Content: []byte("PK not really")})
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, "broken.docx", readErr.Name)
}

func TestInputEmpty(t *testing.T) {
	assert.True(t, Input{Text: "   "}.Empty())
	assert.False(t, Input{Text: "Câu 1"}.Empty())
	assert.False(t, Input{Image: &Payload{MediaType: "image/png"}}.Empty())
}
