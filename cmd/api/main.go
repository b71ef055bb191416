package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/leavend/refgen/internal/gateway"
	"github.com/leavend/refgen/internal/generation"
	"github.com/leavend/refgen/internal/http/handlers"
	"github.com/leavend/refgen/internal/http/httpapi"
	"github.com/leavend/refgen/internal/infra"
	"github.com/leavend/refgen/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	st, err := store.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid store configuration")
	}
	if err := st.Open(ctx); err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close store")
		}
	}()

	gw, err := gateway.New(ctx, gateway.Options{
		APIKey:         cfg.GeminiAPIKey,
		Model:          cfg.GeminiModel,
		DisabledModels: cfg.GeminiDisabledModels,
		Timeout:        cfg.GeminiTimeout,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create model gateway")
	}
	if !gw.Configured() {
		logger.Warn().Msg("GEMINI_API_KEY is not set; generation requests will fail")
	}

	svc := generation.NewService(store.NewPrompts(st), store.NewArtifacts(st), gw, logger)
	svc.HasStoreURL = cfg.HasStoreURL()

	app := handlers.NewApp(svc, logger, cfg.MaxUploadBytes)
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router, logger)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("addr", server.Addr()).
		Str("store", cfg.StoreDriver).
		Str("model", gw.SelectModel(gateway.TaskVision)).
		Msg("API starting")
	if err := server.Run(runCtx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}
