package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appaudit "github.com/payflowhq/invoice-audit/internal/application/audit"
	"github.com/payflowhq/invoice-audit/internal/config"
	domain "github.com/payflowhq/invoice-audit/internal/domain/audit"
	openaiclient "github.com/payflowhq/invoice-audit/internal/infra/ai/openai"
	"github.com/payflowhq/invoice-audit/internal/infra/extract"
	"github.com/payflowhq/invoice-audit/internal/infra/httpserver"
	"github.com/payflowhq/invoice-audit/internal/middleware"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// path config.yaml (optional unless CONFIG_PATH is set)
	path := ""
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	} else if _, err := os.Stat("config.yaml"); err == nil {
		path = "config.yaml"
	}

	// load config, fail fast on anything the service cannot run without
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)

	// init extractor
	extractor := extract.NewCommandExtractor(cfg.Extractor.Binary, cfg.Extractor.Timeout, logger)

	// init AI client
	aiClient := openaiclient.NewClient(openaiclient.Config{
		APIKey:      cfg.Provider.APIKey,
		BaseURL:     cfg.Provider.BaseURL,
		Model:       cfg.Provider.Model,
		Temperature: cfg.Provider.Temperature,
		MaxTokens:   cfg.Provider.MaxTokens,
		Timeout:     cfg.Provider.Timeout,
	}, logger)

	// init service
	svc := &appaudit.Service{
		Extractor: extractor,
		AI:        aiClient,
		Logger:    logger,
		Limits: domain.UnpackLimits{
			MaxInvoices:    cfg.Limits.MaxInvoices,
			MaxMemberBytes: cfg.Limits.MaxMemberBytes,
		},
		MaxPromptChars: cfg.Limits.MaxPromptChars,
	}

	// init router
	handler := httpserver.NewRouter(svc, logger, httpserver.Options{
		MaxUploadBytes: cfg.Limits.MaxUploadBytes,
		Health: map[string]middleware.HealthChecker{
			"extractor": &middleware.ExtractorHealthChecker{Binary: cfg.Extractor.Binary},
			"provider": middleware.CheckFunc(func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				_, err := aiClient.ListModels(ctx)
				return err
			}),
		},
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// run server
	go func() {
		logger.Info("server.start", "addr", addr, "model", cfg.Provider.Model)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("server.shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server.shutdown.err", "err", err)
	}
}

func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
