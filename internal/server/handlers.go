package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abhisek/chemgen/internal/attachment"
	"github.com/abhisek/chemgen/internal/export"
	"github.com/abhisek/chemgen/internal/questiongen"
	"github.com/abhisek/chemgen/internal/session"
)

// Handler serves the question endpoints over one session.
type Handler struct {
	sess    *session.Session
	model   string
	cfg     Config
	limiter *ipRateLimiter
}

// NewHandler creates a Handler. model is reported by the status endpoint.
func NewHandler(sess *session.Session, model string, cfg Config) *Handler {
	return &Handler{
		sess:    sess,
		model:   model,
		cfg:     cfg,
		limiter: newIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
}

// Routes returns the question routes. Routes that call the model are rate
// limited per client IP.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/status", h.status)

	r.Route("/questions", func(r chi.Router) {
		r.Get("/", h.list)
		r.Delete("/", h.clear)
		r.With(h.limiter.Middleware).Post("/", h.generate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Delete("/", h.remove)
			r.Get("/critiques", h.critiques)
			r.Get("/export", h.export)

			r.Group(func(r chi.Router) {
				r.Use(h.limiter.Middleware)
				r.Post("/transform", h.transform)
				r.Post("/regenerate", h.regenerate)
				r.Post("/critique", h.critique)
			})
		})
	})

	return r
}

type statusResponse struct {
	Busy      bool                  `json:"busy"`
	Operation questiongen.Operation `json:"operation,omitempty"`
	Items     int                   `json:"items"`
	Model     string                `json:"model"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	snap := h.sess.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		Busy:      snap.Busy,
		Operation: snap.Operation,
		Items:     len(snap.Items),
		Model:     h.model,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": h.sess.Items()})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	h.sess.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	it, err := h.sess.Item(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.Remove(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) critiques(w http.ResponseWriter, r *http.Request) {
	it, err := h.sess.Item(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	exchanges := it.Critiques
	if exchanges == nil {
		exchanges = []questiongen.CritiqueExchange{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"critiques": exchanges})
}

// export renders the whole document before writing so that a failure can
// still be reported as JSON.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	it, err := h.sess.Item(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteQuestion(&buf, it.Result.Generated); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Could not create the Word file.", Code: codeInternal})
		return
	}

	name := export.Filename(it.Result.Generated, time.Now())
	w.Header().Set("Content-Type", export.MediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// filePayload is an attachment sent inline in a JSON body. Data may be
// plain base64 or a data URL.
type filePayload struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	Data      string `json:"data"`
}

type generateRequest struct {
	Text     string       `json:"text"`
	Format   string       `json:"format"`
	Image    *filePayload `json:"image,omitempty"`
	Document *filePayload `json:"document,omitempty"`
}

type generateResponse struct {
	Items   []session.Item `json:"items"`
	Message string         `json:"message,omitempty"`
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)

	req, image, document, err := h.decodeGenerate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	format := questiongen.FormatMultipleChoice
	if req.Format != "" {
		f, err := questiongen.ParseFormat(req.Format)
		if err != nil {
			writeError(w, r, &badRequest{msg: err.Error()})
			return
		}
		format = f
	}

	in, err := attachment.Prepare(req.Text, image, document)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.sess.Generate(r.Context(), in, format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(items) == 0 {
		writeJSON(w, http.StatusOK, generateResponse{Items: []session.Item{}, Message: session.MsgNoResults})
		return
	}
	writeJSON(w, http.StatusCreated, generateResponse{Items: items})
}

func (h *Handler) decodeGenerate(r *http.Request) (generateRequest, *attachment.File, *attachment.File, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return h.decodeMultipart(r)
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, nil, nil, &badRequest{msg: "Invalid request body."}
	}
	image, err := req.Image.file()
	if err != nil {
		return req, nil, nil, err
	}
	document, err := req.Document.file()
	if err != nil {
		return req, nil, nil, err
	}
	return req, image, document, nil
}

func (h *Handler) decodeMultipart(r *http.Request) (generateRequest, *attachment.File, *attachment.File, error) {
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		return generateRequest{}, nil, nil, &badRequest{msg: "Invalid upload."}
	}
	req := generateRequest{
		Text:   r.FormValue("text"),
		Format: r.FormValue("format"),
	}
	image, err := formFile(r, "image")
	if err != nil {
		return req, nil, nil, err
	}
	document, err := formFile(r, "document")
	if err != nil {
		return req, nil, nil, err
	}
	return req, image, document, nil
}

func formFile(r *http.Request, field string) (*attachment.File, error) {
	f, fh, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, &attachment.AttachmentReadError{Name: field, Err: err}
	}
	defer f.Close()
	return readFile(f, fh)
}

func readFile(f multipart.File, fh *multipart.FileHeader) (*attachment.File, error) {
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, &attachment.AttachmentReadError{Name: fh.Filename, Err: err}
	}
	return &attachment.File{
		Name:      fh.Filename,
		MediaType: fh.Header.Get("Content-Type"),
		Content:   content,
	}, nil
}

func (p *filePayload) file() (*attachment.File, error) {
	if p == nil || p.Data == "" {
		return nil, nil
	}
	mt, data := attachment.StripDataURL(p.Data)
	if p.MediaType != "" {
		mt = p.MediaType
	}
	content, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, &attachment.AttachmentReadError{Name: p.Name, Err: err}
	}
	return &attachment.File{Name: p.Name, MediaType: mt, Content: content}, nil
}

type transformRequest struct {
	Format string `json:"format"`
}

func (h *Handler) transform(w http.ResponseWriter, r *http.Request) {
	var req transformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &badRequest{msg: "Invalid request body."})
		return
	}
	format, err := questiongen.ParseFormat(req.Format)
	if err != nil {
		writeError(w, r, &badRequest{msg: err.Error()})
		return
	}

	it, err := h.sess.Transform(r.Context(), chi.URLParam(r, "id"), format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *Handler) regenerate(w http.ResponseWriter, r *http.Request) {
	it, err := h.sess.Regenerate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

type critiqueRequest struct {
	Critique string `json:"critique"`
}

type critiqueResponse struct {
	Reply     string                         `json:"reply"`
	Critiques []questiongen.CritiqueExchange `json:"critiques"`
}

func (h *Handler) critique(w http.ResponseWriter, r *http.Request) {
	var req critiqueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &badRequest{msg: "Invalid request body."})
		return
	}

	id := chi.URLParam(r, "id")
	reply, err := h.sess.Critique(r.Context(), id, req.Critique)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := critiqueResponse{Reply: reply, Critiques: []questiongen.CritiqueExchange{}}
	if it, err := h.sess.Item(id); err == nil && it.Critiques != nil {
		resp.Critiques = it.Critiques
	}
	writeJSON(w, http.StatusOK, resp)
}
