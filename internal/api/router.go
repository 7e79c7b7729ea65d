// Package api exposes quote sessions over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"software-quoter/internal/common/logger"
	"software-quoter/internal/quote"
	"software-quoter/internal/quote/presentation"
)

type Config struct {
	AllowedOrigins []string
	// UploadMemoryMB bounds multipart memory; larger uploads spill to temp files.
	UploadMemoryMB int
	DefaultTheme   presentation.Theme
	// ReadyCheck reports whether backing services are reachable.
	ReadyCheck func(ctx context.Context) error
}

type Handler struct {
	svc    *quote.Service
	cfg    Config
	logger logger.Logger
}

func NewHandler(svc *quote.Service, cfg Config, log logger.Logger) *Handler {
	if cfg.UploadMemoryMB <= 0 {
		cfg.UploadMemoryMB = 32
	}
	if cfg.DefaultTheme == "" {
		cfg.DefaultTheme = presentation.ThemeLight
	}
	return &Handler{svc: svc, cfg: cfg, logger: log}
}

// Router builds the chi router with health, metrics and the v1 API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Get("/ready", h.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/project-types", h.projectTypes)

		r.Post("/sessions", h.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.endSession)
			r.Put("/input", h.updateInput)
			r.Post("/files", h.addFiles)
			r.Delete("/files/{index}", h.removeFile)
			r.Post("/submit", h.submit)
			r.Post("/edit", h.edit)
			r.Post("/edit/cancel", h.cancelEdit)
			r.Get("/view", h.view)
			r.Get("/export", h.export)
			r.Put("/email-draft", h.editEmailDraft)
			r.Post("/email-draft/send", h.sendEmailDraft)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	if h.cfg.ReadyCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.cfg.ReadyCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
}
