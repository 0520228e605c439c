package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dgallion1/codebook/internal/api"
	"github.com/dgallion1/codebook/internal/artifact"
	"github.com/dgallion1/codebook/internal/classify"
	"github.com/dgallion1/codebook/internal/config"
	"github.com/dgallion1/codebook/internal/llm"
	"github.com/dgallion1/codebook/internal/parser"
	"github.com/dgallion1/codebook/internal/pipeline"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	reasoner, err := llm.NewReasoner(llm.Options{
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel(),
		APIKey:   cfg.LLMAPIKey(),
		BaseURL:  cfg.LLMBaseURL(),
		System:   classify.AnalystInstructions,
		Timeout:  cfg.LLMTimeout,
	})
	if err != nil {
		log.Error("reasoning service", "error", err)
		os.Exit(1)
	}
	meter := llm.NewMetered(reasoner, llm.NewLLMStats(time.Hour), cfg.LLMModel(), log)

	store, err := artifact.Open(artifact.Options{
		Backend:         cfg.ArtifactBackend,
		Dir:             cfg.ArtifactDir,
		SQLitePath:      cfg.SQLitePath,
		PathstoreURL:    cfg.PathstoreURL,
		PathstoreAPIKey: cfg.PathstoreAPIKey,
	})
	if err != nil {
		log.Error("artifact store", "backend", cfg.ArtifactBackend, "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	classifier := classify.New(meter, classify.Options{ClampConfidence: cfg.ClampConfidence, Timeout: cfg.LLMTimeout}, log)
	p := pipeline.New(parser.DefaultMatchers(), classifier, log)
	orch := pipeline.NewOrchestrator(cfg, p, store, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, meter, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		store.Close()
		if c, ok := reasoner.(interface{ Close() }); ok {
			c.Close()
		}
	}()

	log.Info("starting codebook server",
		"port", cfg.Port,
		"provider", cfg.LLMProvider,
		"model", cfg.LLMModel(),
		"artifacts", cfg.ArtifactBackend,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}
