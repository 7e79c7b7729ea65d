// Package quote orchestrates a quote session: attachments, submission to the
// generator, presentation, export and email delivery.
package quote

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "software-quoter/internal/common/errors"
	"software-quoter/internal/common/logger"
	"software-quoter/internal/common/metrics"
	"software-quoter/internal/common/observability"
	"software-quoter/internal/models"
	"software-quoter/internal/quote/delivery"
	"software-quoter/internal/quote/ingest"
	"software-quoter/internal/quote/presentation"
	"software-quoter/internal/quote/request"
	"software-quoter/internal/quote/session"
)

// Generator produces a quote from a composed request.
type Generator interface {
	Generate(ctx context.Context, req request.Request) (*models.QuoteResponse, error)
}

// Sender delivers an email and returns its message ID.
type Sender interface {
	Send(ctx context.Context, msg delivery.Message) (string, error)
}

type Dependencies struct {
	Sessions      *session.Manager
	Ingester      *ingest.Ingester
	Builder       *request.Builder
	Generator     Generator
	Exporter      presentation.Exporter
	Sender        Sender
	Observability *observability.Observability
	Presentation  presentation.Options
	Logger        logger.Logger

	// LoadingTimeout is how long a session may stay loading before a new
	// submission takes it over. Defaults to defaultLoadingTimeout.
	LoadingTimeout time.Duration
}

const defaultLoadingTimeout = 2 * time.Minute

type Service struct {
	sessions  *session.Manager
	ingester  *ingest.Ingester
	builder   *request.Builder
	generator Generator
	exporter  presentation.Exporter
	sender    Sender
	obs       *observability.Observability
	viewOpts  presentation.Options
	logger    logger.Logger

	loadingTimeout time.Duration
	now            func() time.Time
}

func NewService(deps Dependencies) *Service {
	loadingTimeout := deps.LoadingTimeout
	if loadingTimeout <= 0 {
		loadingTimeout = defaultLoadingTimeout
	}
	return &Service{
		sessions:  deps.Sessions,
		ingester:  deps.Ingester,
		builder:   deps.Builder,
		generator: deps.Generator,
		exporter:  deps.Exporter,
		sender:    deps.Sender,
		obs:       deps.Observability,
		viewOpts:  deps.Presentation,
		logger:    deps.Logger,

		loadingTimeout: loadingTimeout,
		now:            time.Now,
	}
}

// Outcome is the result of one generation, with the warnings gathered on
// the way.
type Outcome struct {
	Quote          *models.QuoteResponse        `json:"quote"`
	Skipped        []models.SkippedFile         `json:"skippedFiles,omitempty"`
	Reconciliation presentation.Reconciliation `json:"reconciliation"`
}

// ==========================
// Session lifecycle
// ==========================

func (s *Service) NewSession(ctx context.Context) (*session.Session, error) {
	return s.sessions.Create(ctx, models.DefaultProjectInput())
}

func (s *Service) Get(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Get(ctx, id)
}

func (s *Service) End(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}

func (s *Service) UpdateInput(ctx context.Context, id string, in models.ProjectInput) (*session.Session, error) {
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		return sess.UpdateInput(in)
	})
}

// AddFiles reads every source, then appends the readable ones. Unreadable
// sources are reported on the session, never as an error.
func (s *Service) AddFiles(ctx context.Context, id string, sources []ingest.Source) (*session.Session, error) {
	if _, err := s.sessions.Get(ctx, id); err != nil {
		return nil, err
	}
	result := s.ingester.Ingest(ctx, sources)
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		return sess.AddFiles(result.Files, result.Skipped)
	})
}

func (s *Service) RemoveFile(ctx context.Context, id string, index int) (*session.Session, error) {
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		return sess.RemoveFile(index)
	})
}

func (s *Service) Edit(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		return sess.Edit()
	})
}

func (s *Service) CancelEdit(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		return sess.CancelEdit()
	})
}

func (s *Service) EditEmailDraft(ctx context.Context, id, text string) (*session.Session, error) {
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		return sess.EditEmailDraft(text)
	})
}

// ==========================
// Submission
// ==========================

// Submit validates the form, generates a quote and lands the session in
// result-shown or error-shown. A generator failure is recorded on the
// session and is not returned as an error. Caller cancellation does not
// abort an in-flight generation.
func (s *Service) Submit(ctx context.Context, id string) (*session.Session, error) {
	var (
		params models.ProjectParams
		files  []models.UploadedFile
	)

	_, err := s.sessions.Update(ctx, id, func(sess *session.Session) error {
		if sess.State == session.StateLoading {
			if err := s.takeOverStale(sess); err != nil {
				return err
			}
		}
		p, err := sess.Input.Coerce()
		if err != nil {
			return err
		}
		if err := sess.BeginSubmit(); err != nil {
			return err
		}
		params = p
		files = append([]models.UploadedFile(nil), sess.Files...)
		return nil
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeValidationFailed) {
			s.recordSubmission(ctx, "invalid")
		}
		return nil, err
	}

	detached := context.WithoutCancel(ctx)
	outcome, genErr := s.generate(detached, params, files)

	final, err := s.sessions.Update(detached, id, func(sess *session.Session) error {
		if genErr != nil {
			return sess.Fail(genErr)
		}
		return sess.Complete(outcome.Quote, outcome.Skipped)
	})
	if err != nil {
		s.logger.Error("Failed to record submission result", map[string]interface{}{
			"sessionId": id,
			"error":     err.Error(),
		})
		s.recordSubmission(ctx, "failed")
		s.failLoading(detached, id, err)
		return nil, err
	}

	if genErr != nil {
		s.recordSubmission(ctx, "failed")
	} else {
		s.recordSubmission(ctx, "succeeded")
	}
	return final, nil
}

// takeOverStale fails a loading session whose submission has not been
// recorded within the loading timeout, so it can be submitted again.
func (s *Service) takeOverStale(sess *session.Session) error {
	age := s.now().Sub(sess.UpdatedAt)
	if age <= s.loadingTimeout {
		return apperrors.NewSubmissionInProgressError()
	}
	s.logger.Warn("Taking over stale submission", map[string]interface{}{
		"sessionId":  sess.ID,
		"loadingFor": age.String(),
	})
	return sess.Fail(apperrors.NewGeneratorTimeoutError(fmt.Errorf("submission result not recorded after %s", age.Round(time.Second))))
}

// failLoading moves a session out of loading after its result could not be
// saved. If this save fails too, takeOverStale clears it later.
func (s *Service) failLoading(ctx context.Context, id string, cause error) {
	_, err := s.sessions.Update(ctx, id, func(sess *session.Session) error {
		if sess.State != session.StateLoading {
			return nil
		}
		return sess.Fail(cause)
	})
	if err != nil {
		s.logger.Error("Failed to leave loading state", map[string]interface{}{
			"sessionId": id,
			"error":     err.Error(),
		})
	}
}

// Generate runs one session-less generation for the CLI and the job worker.
func (s *Service) Generate(ctx context.Context, in models.ProjectInput, files []models.UploadedFile) (*Outcome, error) {
	params, err := in.Coerce()
	if err != nil {
		s.recordSubmission(ctx, "invalid")
		return nil, err
	}

	outcome, err := s.generate(ctx, params, files)
	if err != nil {
		s.recordSubmission(ctx, "failed")
		return nil, err
	}
	s.recordSubmission(ctx, "succeeded")
	return outcome, nil
}

// Ingest reads sources without touching any session.
func (s *Service) Ingest(ctx context.Context, sources []ingest.Source) ingest.Result {
	return s.ingester.Ingest(ctx, sources)
}

func (s *Service) generate(ctx context.Context, params models.ProjectParams, files []models.UploadedFile) (*Outcome, error) {
	ctx, span := s.obs.StartSpan(ctx, "quote.generate")
	defer span.End()

	req := s.builder.Build(params, files)

	start := time.Now()
	q, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.obs.RecordGeneration(ctx, time.Since(start), "failed")
		return nil, apperrors.Normalize(err)
	}
	s.obs.RecordGeneration(ctx, time.Since(start), "succeeded")

	rec := presentation.Reconcile(q)
	if !rec.Consistent {
		metrics.BreakdownMismatches.Inc()
		s.logger.Warn("Breakdown does not sum to the declared total", map[string]interface{}{
			"project":      params.ProjectName,
			"total":        rec.Declared,
			"breakdownSum": rec.BreakdownSum,
			"delta":        rec.Delta,
		})
	}
	if params.HasTargetCost() {
		tolerance := math.Max(1, 0.005*params.TargetCost)
		if math.Abs(q.TotalEstimatedCost-params.TargetCost) > tolerance {
			metrics.TargetCostMismatches.Inc()
			s.logger.Warn("Quote total differs from the requested target cost", map[string]interface{}{
				"project":    params.ProjectName,
				"targetCost": params.TargetCost,
				"total":      q.TotalEstimatedCost,
			})
		}
	}

	return &Outcome{Quote: q, Skipped: req.Skipped, Reconciliation: rec}, nil
}

func (s *Service) recordSubmission(ctx context.Context, outcome string) {
	metrics.QuoteSubmissions.WithLabelValues(outcome).Inc()
	s.obs.RecordSubmission(ctx, outcome)
}

// ==========================
// Presentation
// ==========================

func (s *Service) View(ctx context.Context, id string) (*presentation.View, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Result == nil {
		return nil, apperrors.NewNoResultError()
	}
	v := presentation.Build(sess.Result, sess.EmailDraft, s.viewOpts)
	return &v, nil
}

// Export renders the current result as a fixed-layout document.
func (s *Service) Export(ctx context.Context, id string, theme presentation.Theme) (*presentation.Document, error) {
	if s.exporter == nil {
		metrics.Exports.WithLabelValues("unavailable").Inc()
		return nil, apperrors.NewExportUnavailableError()
	}

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Result == nil {
		return nil, apperrors.NewNoResultError()
	}

	doc, err := s.ExportQuote(sess.Result, sess.EmailDraft, sess.Input.ProjectName, theme)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Quote exported", map[string]interface{}{
		"sessionId": id,
		"filename":  doc.Filename,
		"bytes":     len(doc.Body),
	})
	return doc, nil
}

// ExportQuote renders q without a session.
func (s *Service) ExportQuote(q *models.QuoteResponse, emailDraft, projectName string, theme presentation.Theme) (*presentation.Document, error) {
	if s.exporter == nil {
		metrics.Exports.WithLabelValues("unavailable").Inc()
		return nil, apperrors.NewExportUnavailableError()
	}

	v := presentation.Build(q, emailDraft, s.viewOpts)
	doc, err := s.exporter.Export(v, presentation.ExportOptions{
		Theme:       theme,
		ProjectName: projectName,
		Brand:       s.viewOpts.Brand,
	})
	if err != nil {
		metrics.Exports.WithLabelValues("failed").Inc()
		stdErr, ok := apperrors.As(err)
		if !ok {
			stdErr = apperrors.NewExportFailedError(err)
		}
		return nil, stdErr
	}
	metrics.Exports.WithLabelValues("succeeded").Inc()
	return doc, nil
}

// SendEmailDraft delivers the current (possibly edited) draft.
func (s *Service) SendEmailDraft(ctx context.Context, id string, to []string, subject string) (string, error) {
	if s.sender == nil {
		return "", apperrors.NewDeliveryUnavailableError()
	}

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if sess.Result == nil {
		return "", apperrors.NewNoResultError()
	}

	if strings.TrimSpace(subject) == "" {
		subject = fmt.Sprintf("Quote: %s", sess.Result.ProjectTitle)
	}
	return s.sender.Send(ctx, delivery.Message{
		To:      to,
		Subject: subject,
		Body:    sess.EmailDraft,
	})
}
