package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/leavend/refgen/internal/gateway"
	"github.com/leavend/refgen/internal/infra"
	"github.com/leavend/refgen/internal/store"
)

type report struct {
	Store           string                   `json:"store"`
	Images          int64                    `json:"images"`
	GeneratedImages int64                    `json:"generatedImages"`
	Gateway         gateway.ConnectionStatus `json:"gateway"`
}

func main() {
	var (
		keyFlag   string
		modelFlag string
		skipStore bool
	)
	flag.StringVar(&keyFlag, "key", "", "Gemini API key (fallbacks to GEMINI_API_KEY)")
	flag.StringVar(&modelFlag, "model", "", "model to probe (fallbacks to GEMINI_MODEL)")
	flag.BoolVar(&skipStore, "skip-store", false, "only probe the model gateway")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if key := strings.TrimSpace(keyFlag); key != "" {
		cfg.GeminiAPIKey = key
	}
	if model := strings.TrimSpace(modelFlag); model != "" {
		cfg.GeminiModel = model
	}

	logger := infra.NewLogger("cli").With().Str("cmd", "probe").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := report{Store: cfg.StoreDriver}
	failed := false

	if !skipStore {
		st, err := store.New(cfg, logger)
		if err == nil {
			err = st.Open(ctx)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open %s store: %v\n", cfg.StoreDriver, err)
			os.Exit(1)
		}
		defer st.Close()

		if out.Images, err = store.NewPrompts(st).Count(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to count images: %v\n", err)
			failed = true
		}
		if out.GeneratedImages, err = store.NewArtifacts(st).Count(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to count generated images: %v\n", err)
			failed = true
		}
	}

	gw, err := gateway.New(ctx, gateway.Options{
		APIKey:         cfg.GeminiAPIKey,
		Model:          cfg.GeminiModel,
		DisabledModels: cfg.GeminiDisabledModels,
		Timeout:        cfg.GeminiTimeout,
		Logger:         logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create gateway: %v\n", err)
		os.Exit(1)
	}
	out.Gateway = gw.TestConnection(ctx)
	if !out.Gateway.Connected {
		failed = true
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)

	if failed {
		os.Exit(1)
	}
}
