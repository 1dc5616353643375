// Package attachment turns user-supplied files into the inline payloads
// sent to the LLM gateway.
package attachment

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/abhisek/chemgen/internal/llm"
)

// Media types handled explicitly.
const (
	MediaTypePDF  = "application/pdf"
	MediaTypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Kind is the routing class of an attachment.
type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindPDF
	KindDocx
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	case KindDocx:
		return "docx"
	default:
		return "unsupported"
	}
}

// Payload is base64-encoded file content tagged with its media type.
type Payload struct {
	MediaType string `json:"mediaType"`
	Data      string `json:"data"`
}

// LLM converts the payload to a gateway attachment.
func (p Payload) LLM() llm.Attachment {
	return llm.Attachment{MediaType: p.MediaType, Data: p.Data}
}

// Size returns the decoded byte length.
func (p Payload) Size() int {
	return base64.StdEncoding.DecodedLen(len(p.Data))
}

// Encode reads r to completion and returns its standard base64 encoding.
// The result never carries a data-URL prefix.
func Encode(r io.Reader, mediaType string) (Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Payload{}, &AttachmentReadError{Err: err}
	}
	return Payload{
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(data),
	}, nil
}

// StripDataURL splits a "data:<type>;base64,<data>" string. Input without
// the envelope is returned unchanged with an empty media type.
func StripDataURL(s string) (mediaType, data string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return "", s
	}
	header, body, ok := strings.Cut(s, ",")
	if !ok {
		return "", s
	}
	header = strings.TrimPrefix(header, "data:")
	header = strings.TrimSuffix(header, ";base64")
	return header, body
}

// Classify resolves the routing kind of a file. The declared media type
// wins; an empty or generic one falls back to the file extension and then
// to sniffing head, which may be nil.
func Classify(mediaType, filename string, head []byte) (Kind, string) {
	mt := normalizeMediaType(mediaType)
	if mt == "" || mt == "application/octet-stream" {
		mt = typeByExtension(filename)
	}
	if (mt == "" || mt == "application/octet-stream") && len(head) > 0 {
		mt = normalizeMediaType(http.DetectContentType(head))
	}

	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage, mt
	case mt == MediaTypePDF:
		return KindPDF, mt
	case mt == MediaTypeDocx:
		return KindDocx, mt
	case mt == "application/zip" && strings.EqualFold(filepath.Ext(filename), ".docx"):
		return KindDocx, MediaTypeDocx
	default:
		return KindUnsupported, mt
	}
}

// typeByExtension consults the mime table, which lacks .docx on systems
// without a mime.types file.
func typeByExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return ""
	}
	if ext == ".docx" {
		return MediaTypeDocx
	}
	return normalizeMediaType(mime.TypeByExtension(ext))
}

func normalizeMediaType(mt string) string {
	if mt == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(mt)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mt))
	}
	return parsed
}

// File is a raw upload as received from the HTTP or CLI surface.
type File struct {
	Name      string
	MediaType string
	Content   []byte
}

// Input is the user's generate request before it is handed to the prompt
// builder: free text plus at most one image and one document.
type Input struct {
	Text     string
	Image    *Payload
	Document *Payload
}

// Attachments returns the inline parts in send order, image first.
func (in Input) Attachments() []llm.Attachment {
	var out []llm.Attachment
	if in.Image != nil {
		out = append(out, in.Image.LLM())
	}
	if in.Document != nil {
		out = append(out, in.Document.LLM())
	}
	return out
}

// Empty reports whether there is nothing to analyse.
func (in Input) Empty() bool {
	return strings.TrimSpace(in.Text) == "" && in.Image == nil && in.Document == nil
}

// Prepare applies the routing rule to raw uploads. A PDF is attached
// inline; a Word document is converted to text and appended to the free
// text. Either file may be nil.
func Prepare(text string, image, document *File) (Input, error) {
	in := Input{Text: text}

	if image != nil {
		kind, mt := Classify(image.MediaType, image.Name, image.Content)
		if kind != KindImage {
			return Input{}, &AttachmentReadError{
				Name: image.Name,
				Err:  fmt.Errorf("%w: %s is not an image", ErrUnsupportedMediaType, displayType(mt)),
			}
		}
		p, err := Encode(bytes.NewReader(image.Content), mt)
		if err != nil {
			return Input{}, named(err, image.Name)
		}
		in.Image = &p
	}

	if document != nil {
		kind, mt := Classify(document.MediaType, document.Name, document.Content)
		switch kind {
		case KindPDF:
			p, err := Encode(bytes.NewReader(document.Content), mt)
			if err != nil {
				return Input{}, named(err, document.Name)
			}
			in.Document = &p
		case KindDocx:
			extracted, err := ExtractDocxText(bytes.NewReader(document.Content), int64(len(document.Content)))
			if err != nil {
				return Input{}, named(err, document.Name)
			}
			in.Text = mergeText(in.Text, extracted)
		default:
			return Input{}, &AttachmentReadError{
				Name: document.Name,
				Err:  fmt.Errorf("%w: %s", ErrUnsupportedMediaType, displayType(mt)),
			}
		}
	}

	return in, nil
}

func mergeText(text, extracted string) string {
	text = strings.TrimSpace(text)
	extracted = strings.TrimSpace(extracted)
	switch {
	case extracted == "":
		return text
	case text == "":
		return extracted
	default:
		return text + "\n\n" + extracted
	}
}

func named(err error, name string) error {
	if re, ok := err.(*AttachmentReadError); ok && re.Name == "" {
		re.Name = name
	}
	return err
}

func displayType(mt string) string {
	if mt == "" {
		return "unknown type"
	}
	return mt
}
