package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "software-quoter/internal/common/errors"
	"software-quoter/internal/common/logger"
	"software-quoter/internal/models"
	"software-quoter/internal/quote/request"
)

const quoteJSON = `{
  "projectTitle": "Shop",
  "executiveSummary": "An online store.",
  "totalEstimatedCost": 16800,
  "mvpCost": 9000,
  "infrastructureCriticalCost": 600,
  "breakdown": [
    {"category": "Backend", "cost": 8400, "description": "APIs"},
    {"category": "Frontend", "cost": 8400, "description": "UI"}
  ],
  "marketComparison": {"lowEstimate": 12000, "highEstimate": 30000, "averageDays": 60, "marketTrend": "Stable"},
  "technicalRecommendations": ["Use CI"],
  "clientEmailDraft": "Dear client"
}`

func envelope(text string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content":      map[string]interface{}{"role": "model", "parts": []interface{}{map[string]interface{}{"text": text}}},
				"finishReason": "STOP",
			},
		},
	})
	return string(body)
}

func sampleRequest() request.Request {
	return request.Request{
		Parts: []request.Part{
			{Text: "prompt"},
			{MIMEType: "image/png", Data: "aW1n"},
		},
		Schema: request.ResponseShape(),
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "test-key"
	cfg.Timeout = 2 * time.Second

	c, err := NewClient(cfg, logger.NewTestLogger(t), opts...)
	require.NoError(t, err)
	return c
}

// ==========================
// Success path
// ==========================

func TestGenerate_Success(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &captured))

		_, _ = io.WriteString(w, envelope(quoteJSON))
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	c := newTestClient(t, srv, WithTracer(tp.Tracer("test")))
	quote, err := c.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, "Shop", quote.ProjectTitle)
	assert.Equal(t, 16800.0, quote.TotalEstimatedCost)
	assert.Len(t, quote.Breakdown, 2)
	assert.Equal(t, 60.0, quote.MarketComparison.AverageDays)

	cfg := captured["generationConfig"].(map[string]interface{})
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.InDelta(t, 0.4, cfg["temperature"], 1e-9)
	responseSchema := cfg["responseSchema"].(map[string]interface{})
	assert.Equal(t, "OBJECT", responseSchema["type"])
	props := responseSchema["properties"].(map[string]interface{})
	assert.Equal(t, "ARRAY", props["breakdown"].(map[string]interface{})["type"])

	contents := captured["contents"].([]interface{})
	parts := contents[0].(map[string]interface{})["parts"].([]interface{})
	require.Len(t, parts, 2)
	assert.Equal(t, "prompt", parts[0].(map[string]interface{})["text"])
	inline := parts[1].(map[string]interface{})["inlineData"].(map[string]interface{})
	assert.Equal(t, "image/png", inline["mimeType"])

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "genai.generateContent", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

func TestGenerate_TargetCostRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		require.NoError(t, json.Unmarshal(raw, &body))
		require.NotEmpty(t, body.Contents)
		prompt := body.Contents[0].Parts[0].Text

		reply := quoteJSON
		if strings.Contains(prompt, "manual target cost of $12000") {
			reply = strings.NewReplacer(`"totalEstimatedCost": 16800`, `"totalEstimatedCost": 12000`,
				`"cost": 8400`, `"cost": 6000`).Replace(quoteJSON)
		}
		_, _ = io.WriteString(w, envelope(reply))
	}))
	defer srv.Close()

	params := models.ProjectParams{
		ProjectName:    "Shop",
		ProjectType:    models.ProjectTypeStore,
		Description:    "Online store",
		TeamSize:       2,
		HourlyRate:     35,
		HoursPerDay:    6,
		EstimatedWeeks: 8,
		ServerCost:     50,
		TargetCost:     12000,
	}
	req := request.NewBuilder(request.Options{}, logger.NewTestLogger(t)).Build(params, nil)

	quote, err := newTestClient(t, srv).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 12000.0, quote.TotalEstimatedCost)
	require.Len(t, quote.Breakdown, 2)
	assert.Equal(t, 12000.0, quote.Breakdown[0].Cost+quote.Breakdown[1].Cost)
}

// ==========================
// Failure mapping
// ==========================

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode apperrors.ErrorCode
	}{
		{name: "unauthorized", status: http.StatusForbidden, body: `{"error":{"code":403,"message":"denied"}}`, wantCode: apperrors.ErrCodeGeneratorAuthFailed},
		{name: "invalid key", status: http.StatusBadRequest, body: `{"error":{"code":400,"message":"API key not valid."}}`, wantCode: apperrors.ErrCodeGeneratorAuthFailed},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantCode: apperrors.ErrCodeGeneratorRequestFailed},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`, wantCode: apperrors.ErrCodeGeneratorEmptyResponse},
		{name: "empty text", status: http.StatusOK, body: envelope("   "), wantCode: apperrors.ErrCodeGeneratorEmptyResponse},
		{name: "malformed json text", status: http.StatusOK, body: envelope(`{"projectTitle": `), wantCode: apperrors.ErrCodeGeneratorInvalidResponse},
		{name: "schema violation", status: http.StatusOK, body: envelope(`{"projectTitle": "x"}`), wantCode: apperrors.ErrCodeGeneratorInvalidResponse},
		{name: "broken envelope", status: http.StatusOK, body: `<html>`, wantCode: apperrors.ErrCodeGeneratorInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			recorder := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

			quote, err := newTestClient(t, srv, WithTracer(tp.Tracer("test"))).Generate(context.Background(), sampleRequest())
			require.Error(t, err)
			assert.Nil(t, quote)
			assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
			assert.Equal(t, apperrors.GeneratorFailureMessage, apperrors.UserMessage(err))

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, codes.Error, spans[0].Status().Code)
		})
	}
}

func TestGenerate_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.Generate(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGeneratorRequestFailed), "got %v", err)
}

func TestGenerate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := c.Generate(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGeneratorTimeout), "got %v", err)
}

// ==========================
// Config
// ==========================

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate())

	cfg.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.Temperature = 3
	assert.Error(t, cfg.Validate())

	_, err := NewClient(DefaultConfig(), logger.NewNoOpLogger())
	assert.Error(t, err)
}

func TestToSchema_DropsNumericBounds(t *testing.T) {
	s := toSchema(request.ResponseShape())
	total := s.Properties["totalEstimatedCost"]
	require.NotNil(t, total)
	assert.Equal(t, "NUMBER", total.Type)
	assert.NotEmpty(t, total.Description)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "minimum")
	assert.NotContains(t, string(data), "additionalProperties")
}
