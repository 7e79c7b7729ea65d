// Package session holds the per-user quote session and its state machine.
package session

import (
	"time"

	apperrors "software-quoter/internal/common/errors"
	"software-quoter/internal/models"
)

type State string

const (
	StateIdle                State = "idle"
	StateLoading             State = "loading"
	StateResultShown         State = "result-shown"
	StateIdleWithPriorResult State = "idle-with-prior-result"
	StateErrorShown          State = "error-shown"
)

// editable states accept form and attachment changes and a new submission.
func (s State) editable() bool {
	switch s {
	case StateIdle, StateIdleWithPriorResult, StateErrorShown:
		return true
	}
	return false
}

// ErrorInfo is the error currently shown to the user.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Session struct {
	ID         string                `json:"id"`
	State      State                 `json:"state"`
	Input      models.ProjectInput   `json:"input"`
	Files      []models.UploadedFile `json:"files"`
	Result     *models.QuoteResponse `json:"result,omitempty"`
	EmailDraft string                `json:"emailDraft,omitempty"`
	Error      *ErrorInfo            `json:"error,omitempty"`
	Skipped    []models.SkippedFile  `json:"skipped,omitempty"`
	CreatedAt  time.Time             `json:"createdAt"`
	UpdatedAt  time.Time             `json:"updatedAt"`
}

func New(id string, input models.ProjectInput, now time.Time) *Session {
	return &Session{
		ID:        id,
		State:     StateIdle,
		Input:     input,
		Files:     []models.UploadedFile{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Files = append([]models.UploadedFile{}, s.Files...)
	c.Skipped = append([]models.SkippedFile(nil), s.Skipped...)
	c.Result = s.Result.Clone()
	if s.Error != nil {
		e := *s.Error
		c.Error = &e
	}
	return &c
}

func (s *Session) reject(event string) error {
	if s.State == StateLoading {
		return apperrors.NewSubmissionInProgressError()
	}
	return apperrors.NewInvalidStateTransitionError(string(s.State), event)
}

// BeginSubmit enters loading and clears any prior result or error.
func (s *Session) BeginSubmit() error {
	if !s.State.editable() {
		return s.reject("submit")
	}
	s.State = StateLoading
	s.Result = nil
	s.EmailDraft = ""
	s.Error = nil
	s.Skipped = nil
	return nil
}

// Complete stores a new result, replacing any previous one entirely.
func (s *Session) Complete(q *models.QuoteResponse, skipped []models.SkippedFile) error {
	if s.State != StateLoading {
		return apperrors.NewInvalidStateTransitionError(string(s.State), "complete")
	}
	s.State = StateResultShown
	s.Result = q.Clone()
	s.EmailDraft = q.ClientEmailDraft
	s.Error = nil
	s.Skipped = append([]models.SkippedFile(nil), skipped...)
	return nil
}

// Fail shows err. No partial result is kept.
func (s *Session) Fail(err error) error {
	if s.State != StateLoading {
		return apperrors.NewInvalidStateTransitionError(string(s.State), "fail")
	}
	stdErr := apperrors.Normalize(err)
	s.State = StateErrorShown
	s.Result = nil
	s.EmailDraft = ""
	s.Error = &ErrorInfo{Code: string(stdErr.Code), Message: apperrors.UserMessage(stdErr)}
	return nil
}

// Edit re-opens the form while keeping the prior result.
func (s *Session) Edit() error {
	if s.State != StateResultShown {
		return s.reject("edit")
	}
	s.State = StateIdleWithPriorResult
	return nil
}

func (s *Session) CancelEdit() error {
	if s.State != StateIdleWithPriorResult || s.Result == nil {
		return s.reject("cancel-edit")
	}
	s.State = StateResultShown
	return nil
}

func (s *Session) UpdateInput(in models.ProjectInput) error {
	if !s.State.editable() {
		return s.reject("update-input")
	}
	s.Input = in
	return nil
}

// AddFiles appends to the attachment list; it never clears prior entries.
func (s *Session) AddFiles(files []models.UploadedFile, skipped []models.SkippedFile) error {
	if !s.State.editable() {
		return s.reject("add-files")
	}
	s.Files = append(s.Files, files...)
	s.Skipped = append([]models.SkippedFile(nil), skipped...)
	return nil
}

// RemoveFile drops the i-th attachment, preserving the order of the rest.
func (s *Session) RemoveFile(i int) error {
	if !s.State.editable() {
		return s.reject("remove-file")
	}
	if i < 0 || i >= len(s.Files) {
		return apperrors.NewFileIndexOutOfRangeError(i, len(s.Files))
	}
	files := make([]models.UploadedFile, 0, len(s.Files)-1)
	files = append(files, s.Files[:i]...)
	files = append(files, s.Files[i+1:]...)
	s.Files = files
	return nil
}

func (s *Session) EditEmailDraft(text string) error {
	if s.State != StateResultShown {
		if s.Result == nil && s.State != StateLoading {
			return apperrors.NewNoResultError()
		}
		return s.reject("edit-email-draft")
	}
	s.EmailDraft = text
	return nil
}
