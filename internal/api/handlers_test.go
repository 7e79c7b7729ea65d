package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "software-quoter/internal/common/errors"
	"software-quoter/internal/common/logger"
	"software-quoter/internal/models"
	"software-quoter/internal/quote"
	"software-quoter/internal/quote/ingest"
	"software-quoter/internal/quote/presentation"
	"software-quoter/internal/quote/request"
	"software-quoter/internal/quote/session"
)

type stubGenerator struct {
	quote *models.QuoteResponse
	err   error
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, req request.Request) (*models.QuoteResponse, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.quote.Clone(), nil
}

func sampleQuote() *models.QuoteResponse {
	return &models.QuoteResponse{
		ProjectTitle:               "Shop",
		ExecutiveSummary:           "Online store",
		TotalEstimatedCost:         16800,
		MVPCost:                    9000,
		InfrastructureCriticalCost: 600,
		Breakdown: []models.BreakdownItem{
			{Category: "Backend", Cost: 8400, Description: "APIs"},
			{Category: "Frontend", Cost: 8400, Description: "UI"},
		},
		MarketComparison:         models.MarketComparison{LowEstimate: 12000, HighEstimate: 30000, AverageDays: 56, MarketTrend: "Stable"},
		TechnicalRecommendations: []string{"Use CI"},
		ClientEmailDraft:         "Dear client",
	}
}

func newTestServer(t *testing.T, gen quote.Generator) *httptest.Server {
	t.Helper()
	return newTestServerWith(t, gen, Config{AllowedOrigins: []string{"*"}})
}

func newTestServerWith(t *testing.T, gen quote.Generator, cfg Config) *httptest.Server {
	t.Helper()
	log := logger.NewTestLogger(t)

	exp, err := presentation.NewHTMLExporter()
	require.NoError(t, err)

	svc := quote.NewService(quote.Dependencies{
		Sessions:  session.NewManager(session.NewMemoryStore(time.Hour), log),
		Ingester:  ingest.NewIngester(2, log),
		Builder:   request.NewBuilder(request.Options{}, log),
		Generator: gen,
		Exporter:  exp,
		Logger:    log,
	})

	h := NewHandler(svc, cfg, log)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func createSession(t *testing.T, base string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, base+"/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "idle", body["state"])
	return body["id"].(string)
}

func validInput() models.ProjectInput {
	in := models.DefaultProjectInput()
	in.ProjectName = "Shop"
	in.Description = "Online store"
	return in
}

func errorCode(body map[string]interface{}) string {
	e, ok := body["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := e["code"].(string)
	return code
}

// ==========================
// Health and catalog
// ==========================

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{quote: sampleQuote()})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])
}

func TestReady_Failing(t *testing.T) {
	log := logger.NewTestLogger(t)
	h := NewHandler(nil, Config{ReadyCheck: func(ctx context.Context) error {
		return errors.New("redis down")
	}}, log)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "redis down", body["error"])
}

func TestProjectTypes(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{quote: sampleQuote()})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/project-types", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	types := body["projectTypes"].([]interface{})
	assert.Len(t, types, len(models.ProjectTypes()))
	assert.Equal(t, string(models.ProjectTypeWebApp), types[0])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{quote: sampleQuote()})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// ==========================
// Session flow
// ==========================

func TestSessionFlow(t *testing.T) {
	gen := &stubGenerator{quote: sampleQuote()}
	srv := newTestServer(t, gen)
	base := srv.URL + "/api/v1/sessions/"
	id := createSession(t, srv.URL)

	resp, _ := doJSON(t, http.MethodPut, base+id+"/input", validInput())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, base+id+"/files", map[string]interface{}{
		"files": []models.UploadedFile{
			{Name: "flow.json", Type: "application/json", Data: base64.StdEncoding.EncodeToString([]byte(`{"nodes":[]}`))},
			{Name: "broken.png", Type: "image/png", Data: "***"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["files"], 1)
	assert.Len(t, body["skippedFiles"], 1)

	resp, body = doJSON(t, http.MethodPost, base+id+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "result-shown", body["state"])
	assert.Equal(t, "Dear client", body["emailDraft"])
	assert.Equal(t, 1, gen.calls)

	resp, body = doJSON(t, http.MethodGet, base+id+"/view", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Shop", body["title"])

	resp, body = doJSON(t, http.MethodPut, base+id+"/email-draft", map[string]string{"text": "Edited"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Edited", body["emailDraft"])

	resp, body = doJSON(t, http.MethodPost, base+id+"/edit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle-with-prior-result", body["state"])

	resp, body = doJSON(t, http.MethodPost, base+id+"/edit/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "result-shown", body["state"])
	assert.Equal(t, "Edited", body["emailDraft"])

	resp, _ = doJSON(t, http.MethodDelete, base+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, base+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeSessionNotFound), errorCode(body))
}

func TestSubmit_InvalidInput(t *testing.T) {
	gen := &stubGenerator{quote: sampleQuote()}
	srv := newTestServer(t, gen)
	id := createSession(t, srv.URL)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+id+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeValidationFailed), errorCode(body))
	assert.Equal(t, 0, gen.calls)
}

func TestSubmit_GeneratorFailure(t *testing.T) {
	gen := &stubGenerator{err: apperrors.NewGeneratorTimeoutError(errors.New("deadline"))}
	srv := newTestServer(t, gen)
	base := srv.URL + "/api/v1/sessions/"
	id := createSession(t, srv.URL)

	resp, _ := doJSON(t, http.MethodPut, base+id+"/input", validInput())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, base+id+"/submit", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "error-shown", body["state"])
	assert.Equal(t, string(apperrors.ErrCodeGeneratorTimeout), errorCode(body))
	assert.Nil(t, body["result"])

	resp, body = doJSON(t, http.MethodGet, base+id+"/view", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeNoResult), errorCode(body))
}

func TestEdit_WithoutResult(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{quote: sampleQuote()})
	id := createSession(t, srv.URL)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+id+"/edit", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeInvalidStateTransition), errorCode(body))
}

// ==========================
// Attachments
// ==========================

func TestAddFiles_Multipart(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{quote: sampleQuote()})
	id := createSession(t, srv.URL)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "flow.json")
	require.NoError(t, err)
	_, err = part.Write([]byte(`{"nodes":[{"id":1}]}`))
	require.NoError(t, err)
	part, err = mw.CreateFormFile("files", "screen.png")
	require.NoError(t, err)
	_, err = part.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/v1/sessions/"+id+"/files", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	files := body["files"].([]interface{})
	require.Len(t, files, 2)
	assert.Equal(t, "flow.json", files[0].(map[string]interface{})["name"])
	assert.Equal(t, "image/png", files[1].(map[string]interface{})["type"])
}

func TestAddFiles_MultipartLargerThanMemoryBound(t *testing.T) {
	srv := newTestServerWith(t, &stubGenerator{quote: sampleQuote()}, Config{UploadMemoryMB: 1})
	id := createSession(t, srv.URL)

	const size = 3 << 20
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "screen.png")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0x42}, size))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/v1/sessions/"+id+"/files", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	files := body["files"].([]interface{})
	require.Len(t, files, 1)
	assert.InDelta(t, size, files[0].(map[string]interface{})["bytes"], 2)
}

func TestRemoveFile(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{quote: sampleQuote()})
	base := srv.URL + "/api/v1/sessions/"
	id := createSession(t, srv.URL)

	resp, _ := doJSON(t, http.MethodPost, base+id+"/files", map[string]interface{}{
		"files": []models.UploadedFile{
			{Name: "a.json", Type: "application/json", Data: base64.StdEncoding.EncodeToString([]byte(`{}`))},
			{Name: "b.json", Type: "application/json", Data: base64.StdEncoding.EncodeToString([]byte(`[]`))},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tests := []struct {
		name       string
		index      string
		wantStatus int
		wantCode   string
	}{
		{name: "out of range", index: "5", wantStatus: http.StatusNotFound, wantCode: string(apperrors.ErrCodeFileIndexOutOfRange)},
		{name: "not a number", index: "x", wantStatus: http.StatusBadRequest, wantCode: string(apperrors.ErrCodeInputParsingFailed)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodDelete, base+id+"/files/"+tt.index, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, errorCode(body))
		})
	}

	resp, body := doJSON(t, http.MethodDelete, base+id+"/files/0", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	files := body["files"].([]interface{})
	require.Len(t, files, 1)
	assert.Equal(t, "b.json", files[0].(map[string]interface{})["name"])
}

// ==========================
// Export and email
// ==========================

func submitted(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	id := createSession(t, srv.URL)
	base := srv.URL + "/api/v1/sessions/" + id
	resp, _ := doJSON(t, http.MethodPut, base+"/input", validInput())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return id
}

func TestExport(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{quote: sampleQuote()})
	id := submitted(t, srv)

	resp, err := http.Get(srv.URL + "/api/v1/sessions/" + id + "/export?theme=dark")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="quote-shop.html"`)
}

func TestExport_UnknownTheme(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{quote: sampleQuote()})
	id := submitted(t, srv)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sessions/"+id+"/export?theme=neon", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeValidationFailed), errorCode(body))
}

func TestSendEmailDraft_NoSender(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{quote: sampleQuote()})
	id := submitted(t, srv)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+id+"/email-draft/send", map[string]interface{}{
		"to": []string{"client@example.com"},
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeDeliveryUnavailable), errorCode(body))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code apperrors.ErrorCode
		want int
	}{
		{apperrors.ErrCodeValidationFailed, http.StatusUnprocessableEntity},
		{apperrors.ErrCodeSessionNotFound, http.StatusNotFound},
		{apperrors.ErrCodeSubmissionInProgress, http.StatusConflict},
		{apperrors.ErrCodeGeneratorAuthFailed, http.StatusBadGateway},
		{apperrors.ErrCodeExportUnavailable, http.StatusServiceUnavailable},
		{apperrors.ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.code))
		})
	}
}
