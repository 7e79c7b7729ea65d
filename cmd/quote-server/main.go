package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"software-quoter/internal/api"
	"software-quoter/internal/app"
	"software-quoter/internal/common/camunda"
	"software-quoter/internal/common/config"
	apperrors "software-quoter/internal/common/errors"
	"software-quoter/internal/common/logger"
	"software-quoter/internal/quote/presentation"
	gq "software-quoter/internal/workers/quoting/generate-quote"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (defaults to configs/config.yaml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting quote server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		zapLog.Fatal("service init failed", zap.Error(err))
	}
	defer application.Close()

	var (
		zeebe     *camunda.Client
		jobWorker worker.JobWorker
	)
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClient(ctx, camunda.ConfigFrom(cfg.Camunda), log)
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}

		wcfg := config.GetWorkerConfig(cfg, gq.TaskType)
		handler := gq.NewHandler(&gq.Config{
			Enabled:       wcfg.Enabled,
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout),
		}, application.Service, log)
		jobWorker = camunda.StartWorker(zeebe.GetClient(), gq.TaskType, wcfg, handler.Handle, log)
	}

	readyCheck := func(ctx context.Context) error {
		if err := application.Ready(ctx); err != nil {
			return err
		}
		if zeebe != nil {
			return zeebe.HealthCheck(ctx)
		}
		return nil
	}

	theme, _ := presentation.ParseTheme(cfg.Export.DefaultTheme)
	handler := api.NewHandler(application.Service, api.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		UploadMemoryMB: cfg.Server.UploadMemoryMB,
		DefaultTheme:   theme,
		ReadyCheck:     readyCheck,
	}, log)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler.Router(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if jobWorker != nil {
		jobWorker.Close()
		jobWorker.AwaitClose()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Quote server stopped gracefully")
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, apperrors.NewConfigInvalidError(err)
	}
	return cfg, nil
}
