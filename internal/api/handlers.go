package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "software-quoter/internal/common/errors"
	"software-quoter/internal/models"
	"software-quoter/internal/quote/ingest"
	"software-quoter/internal/quote/presentation"
	"software-quoter/internal/quote/session"
)

// fileSummary describes an attachment without echoing its content.
type fileSummary struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Bytes int    `json:"bytes"`
}

type sessionResponse struct {
	ID         string                `json:"id"`
	State      session.State         `json:"state"`
	Input      models.ProjectInput   `json:"input"`
	Files      []fileSummary         `json:"files"`
	Result     *models.QuoteResponse `json:"result,omitempty"`
	EmailDraft string                `json:"emailDraft,omitempty"`
	Error      *session.ErrorInfo    `json:"error,omitempty"`
	Skipped    []models.SkippedFile  `json:"skippedFiles,omitempty"`
	CreatedAt  time.Time             `json:"createdAt"`
	UpdatedAt  time.Time             `json:"updatedAt"`
}

func toSessionResponse(s *session.Session) sessionResponse {
	files := make([]fileSummary, 0, len(s.Files))
	for _, f := range s.Files {
		files = append(files, fileSummary{
			Name:  f.Name,
			Type:  f.Type,
			Bytes: base64.StdEncoding.DecodedLen(len(f.Data)),
		})
	}
	return sessionResponse{
		ID:         s.ID,
		State:      s.State,
		Input:      s.Input,
		Files:      files,
		Result:     s.Result,
		EmailDraft: s.EmailDraft,
		Error:      s.Error,
		Skipped:    s.Skipped,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

func (h *Handler) writeSession(w http.ResponseWriter, status int, s *session.Session) {
	writeJSON(w, status, toSessionResponse(s))
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		return apperrors.NewInputParsingFailedError(err)
	}
	return nil
}

// ==========================
// Catalog
// ==========================

func (h *Handler) projectTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"projectTypes": models.ProjectTypes(),
		"default":      models.DefaultProjectInput(),
	})
}

// ==========================
// Sessions
// ==========================

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.NewSession(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusCreated, sess)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess)
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.End(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateInput(w http.ResponseWriter, r *http.Request) {
	var in models.ProjectInput
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.svc.UpdateInput(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess)
}

// ==========================
// Attachments
// ==========================

type encodedFiles struct {
	Files []models.UploadedFile `json:"files"`
}

// addFiles accepts either a multipart form with "files" parts or a JSON body
// of base64 encoded files.
func (h *Handler) addFiles(w http.ResponseWriter, r *http.Request) {
	var sources []ingest.Source

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(int64(h.cfg.UploadMemoryMB) << 20); err != nil {
			h.writeError(w, r, apperrors.NewInputParsingFailedError(err))
			return
		}
		defer r.MultipartForm.RemoveAll()

		for _, fh := range r.MultipartForm.File["files"] {
			sources = append(sources, ingest.FromReader(fh.Filename, fh.Header.Get("Content-Type"), func() (io.ReadCloser, error) {
				return fh.Open()
			}))
		}
	} else {
		var body encodedFiles
		if err := decodeBody(r, &body); err != nil {
			h.writeError(w, r, err)
			return
		}
		for _, f := range body.Files {
			sources = append(sources, ingest.FromEncoded(f.Name, f.Type, f.Data))
		}
	}

	sess, err := h.svc.AddFiles(r.Context(), chi.URLParam(r, "id"), sources)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess)
}

func (h *Handler) removeFile(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, r, apperrors.NewInputParsingFailedError(fmt.Errorf("file index: %w", err)))
		return
	}
	sess, err := h.svc.RemoveFile(r.Context(), chi.URLParam(r, "id"), index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess)
}

// ==========================
// Submission and editing
// ==========================

// submit answers 200 with the result, or 502 when the generator failed and
// the session is showing that error.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sess.State == session.StateErrorShown {
		h.writeSession(w, http.StatusBadGateway, sess)
		return
	}
	h.writeSession(w, http.StatusOK, sess)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Edit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess)
}

func (h *Handler) cancelEdit(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.CancelEdit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess)
}

// ==========================
// Result presentation
// ==========================

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	theme := h.cfg.DefaultTheme
	if raw := r.URL.Query().Get("theme"); raw != "" {
		parsed, err := presentation.ParseTheme(raw)
		if err != nil {
			h.writeError(w, r, apperrors.NewValidationFailedError(err.Error()))
			return
		}
		theme = parsed
	}

	doc, err := h.svc.Export(r.Context(), chi.URLParam(r, "id"), theme)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

type emailDraftRequest struct {
	Text string `json:"text"`
}

func (h *Handler) editEmailDraft(w http.ResponseWriter, r *http.Request) {
	var body emailDraftRequest
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.svc.EditEmailDraft(r.Context(), chi.URLParam(r, "id"), body.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess)
}

type sendEmailRequest struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
}

func (h *Handler) sendEmailDraft(w http.ResponseWriter, r *http.Request) {
	var body sendEmailRequest
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	messageID, err := h.svc.SendEmailDraft(r.Context(), chi.URLParam(r, "id"), body.To, body.Subject)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"messageId": messageID})
}
