// Package genai calls the hosted generative model that produces quotes.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "software-quoter/internal/common/errors"
	commonhttp "software-quoter/internal/common/http"
	"software-quoter/internal/common/logger"
	"software-quoter/internal/common/metrics"
	"software-quoter/internal/common/validation"
	"software-quoter/internal/models"
	"software-quoter/internal/quote/request"
)

var (
	ErrTransport       = errors.New("GENERATOR_TRANSPORT")
	ErrUnauthorized    = errors.New("GENERATOR_UNAUTHORIZED")
	ErrTimeout         = errors.New("GENERATOR_TIMEOUT")
	ErrStatus          = errors.New("GENERATOR_STATUS")
	ErrEmptyResponse   = errors.New("GENERATOR_EMPTY_RESPONSE")
	ErrInvalidResponse = errors.New("GENERATOR_INVALID_RESPONSE")
)

const apiKeyHeader = "x-goog-api-key"

type Client struct {
	config *Config
	http   *commonhttp.Client
	tracer trace.Tracer
	logger logger.Logger
}

type Option func(*Client)

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithHTTPClient overrides the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = commonhttp.NewClientWith(hc) }
}

func NewClient(cfg *Config, log logger.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}

	c := &Client{
		config: cfg,
		http:   commonhttp.NewClient(cfg.Timeout),
		tracer: otel.Tracer("software-quoter/genai"),
		logger: log.With(map[string]interface{}{"model": cfg.Model}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate sends one generateContent call and returns the validated quote.
// Every failure is a StandardError from the GENERATOR_ family. There is no
// retry.
func (c *Client) Generate(ctx context.Context, req request.Request) (*models.QuoteResponse, error) {
	ctx, span := c.tracer.Start(ctx, "genai.generateContent", trace.WithAttributes(
		attribute.String("genai.model", c.config.Model),
		attribute.Int("genai.parts", len(req.Parts)),
	))
	defer span.End()

	start := time.Now()
	quote, err := c.generate(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		stdErr := toStandardError(err)
		metrics.GeneratorRequestDuration.WithLabelValues(string(stdErr.Code)).Observe(elapsed.Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stdErr.Code))
		c.logger.Error("Quote generation failed", map[string]interface{}{
			"errorCode":  string(stdErr.Code),
			"error":      err.Error(),
			"durationMs": elapsed.Milliseconds(),
		})
		return nil, stdErr
	}

	metrics.GeneratorRequestDuration.WithLabelValues("success").Observe(elapsed.Seconds())
	span.SetStatus(codes.Ok, "")
	c.logger.Info("Quote generated", map[string]interface{}{
		"durationMs":     elapsed.Milliseconds(),
		"totalCost":      quote.TotalEstimatedCost,
		"breakdownItems": len(quote.Breakdown),
	})
	return quote, nil
}

func (c *Client) generate(ctx context.Context, req request.Request) (*models.QuoteResponse, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: toParts(req.Parts)}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   toSchema(req.Schema),
			Temperature:      c.config.Temperature,
		},
	}

	resp, err := c.http.DoJSON(ctx, http.MethodPost, c.endpoint(), map[string]string{
		apiKeyHeader: c.config.APIKey,
	}, body)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var envelope generateResponse
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrInvalidResponse, err)
	}

	text := envelope.text()
	if text == "" {
		reason := "no candidates"
		if envelope.PromptFeedback != nil && envelope.PromptFeedback.BlockReason != "" {
			reason = "blocked: " + envelope.PromptFeedback.BlockReason
		} else if len(envelope.Candidates) > 0 {
			reason = "finish reason " + envelope.Candidates[0].FinishReason
		}
		return nil, fmt.Errorf("%w: %s", ErrEmptyResponse, reason)
	}

	result := validation.ValidateDocument([]byte(text), req.Schema)
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, strings.Join(result.GetErrorMessages(), "; "))
	}

	var quote models.QuoteResponse
	if err := json.Unmarshal([]byte(text), &quote); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &quote, nil
}

func (c *Client) endpoint() string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, url.PathEscape(c.config.Model))
}

func statusError(resp *commonhttp.Response) error {
	detail := strings.TrimSpace(string(resp.Body))
	var apiErr apiError
	if err := json.Unmarshal(resp.Body, &apiErr); err == nil && apiErr.Error.Message != "" {
		detail = apiErr.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", ErrUnauthorized, resp.StatusCode, detail)
	case resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(detail), "api key"):
		return fmt.Errorf("%w: status %d: %s", ErrUnauthorized, resp.StatusCode, detail)
	case resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d: %s", ErrTimeout, resp.StatusCode, detail)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrStatus, resp.StatusCode, detail)
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func toStandardError(err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrTimeout):
		return apperrors.NewGeneratorTimeoutError(err)
	case errors.Is(err, ErrUnauthorized):
		return apperrors.NewGeneratorAuthFailedError(err.Error())
	case errors.Is(err, ErrEmptyResponse):
		e := apperrors.NewGeneratorEmptyResponseError()
		e.Details = err.Error()
		return e
	case errors.Is(err, ErrInvalidResponse):
		return apperrors.NewGeneratorInvalidResponseError(err.Error())
	default:
		return apperrors.NewGeneratorRequestFailedError(err)
	}
}
