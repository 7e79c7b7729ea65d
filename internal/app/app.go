// Package app assembles the quote service from configuration.
package app

import (
	"context"
	"fmt"

	"software-quoter/internal/common/aws"
	"software-quoter/internal/common/config"
	"software-quoter/internal/common/database"
	"software-quoter/internal/common/logger"
	"software-quoter/internal/common/observability"
	"software-quoter/internal/quote"
	"software-quoter/internal/quote/delivery"
	"software-quoter/internal/quote/genai"
	"software-quoter/internal/quote/ingest"
	"software-quoter/internal/quote/presentation"
	"software-quoter/internal/quote/request"
	"software-quoter/internal/quote/session"
)

type App struct {
	Service       *quote.Service
	Observability *observability.Observability
	Redis         *database.RedisClient

	closers []func() error
}

// Options let callers replace the generator, mostly for tests.
type Options struct {
	Generator quote.Generator
}

func New(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	a := &App{Observability: observability.New(cfg.App.Name, log)}

	store, err := a.sessionStore(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	generator := opts.Generator
	if generator == nil {
		client, err := genai.NewClient(&genai.Config{
			BaseURL:     cfg.APIs.GenAI.BaseURL,
			APIKey:      cfg.APIs.GenAI.APIKey,
			Model:       cfg.APIs.GenAI.Model,
			Temperature: cfg.APIs.GenAI.Temperature,
			Timeout:     config.GetDuration(cfg.APIs.GenAI.Timeout),
		}, log, genai.WithTracer(a.Observability.Tracer()))
		if err != nil {
			a.Close()
			return nil, err
		}
		generator = client
	}

	var exporter presentation.Exporter
	if cfg.Export.Enabled {
		exp, err := presentation.NewHTMLExporter()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init exporter: %w", err)
		}
		exporter = exp
	}

	var sender quote.Sender
	if cfg.Integrations.AWS.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init ses: %w", err)
		}
		sender = delivery.NewSESSender(sesClient, cfg.Integrations.AWS.SES.FromEmail, log)
	}

	a.Service = quote.NewService(quote.Dependencies{
		Sessions: session.NewManager(store, log),
		Ingester: ingest.NewIngester(cfg.Quote.IngestConcurrency, log),
		Builder: request.NewBuilder(request.Options{
			Brand:              cfg.App.Brand,
			WorkingDaysPerWeek: cfg.Quote.WorkingDaysPerWeek,
		}, log),
		Generator:     generator,
		Exporter:      exporter,
		Sender:        sender,
		Observability: a.Observability,
		Presentation: presentation.Options{
			Brand:  cfg.App.Brand,
			Locale: cfg.Quote.Locale,
		},
		Logger:         log,
		LoadingTimeout: config.GetDuration(cfg.APIs.GenAI.Timeout),
	})

	log.Info("Quote service initialized", map[string]interface{}{
		"sessionBackend": cfg.Session.Backend,
		"model":          cfg.APIs.GenAI.Model,
		"export":         exporter != nil,
		"email":          sender != nil,
	})
	return a, nil
}

func (a *App) sessionStore(ctx context.Context, cfg *config.Config, log logger.Logger) (session.Store, error) {
	ttl := config.GetDuration(cfg.Session.TTL)
	if cfg.Session.Backend != config.SessionBackendRedis {
		return session.NewMemoryStore(ttl), nil
	}

	rdb, err := database.NewRedis(ctx, cfg.Database.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.Redis = rdb
	a.closers = append(a.closers, rdb.Close)
	log.Info("Redis connected", map[string]interface{}{"address": cfg.Database.Redis.Address})
	return session.NewRedisStore(rdb, cfg.Database.Redis.KeyPrefix, ttl), nil
}

// Ready reports whether the session backend is reachable.
func (a *App) Ready(ctx context.Context) error {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Ping(ctx)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
	a.Observability.Shutdown()
}
