package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/carelane/orchestrator/internal/adapter/llm"
	"github.com/carelane/orchestrator/internal/audit"
	"github.com/carelane/orchestrator/internal/capability"
	"github.com/carelane/orchestrator/internal/config"
	"github.com/carelane/orchestrator/internal/identity"
	"github.com/carelane/orchestrator/internal/orchestrator"
	"github.com/carelane/orchestrator/internal/policy"
	"github.com/carelane/orchestrator/internal/repository"
	"github.com/carelane/orchestrator/internal/scheduling"
	handler "github.com/carelane/orchestrator/internal/transport/http"
)

func main() {
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	log.Info().
		Int("http_port", cfg.HTTPPort).
		Str("database", cfg.DatabaseURL).
		Str("llm_base_url", cfg.LLMBaseURL).
		Msg("starting orchestrator")

	store, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer store.Close()

	sink := audit.NewStoreSink(store, log)

	llmClient := llm.NewLLMClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout)

	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize policy engine")
	}

	resolver := identity.NewResolver(store, nil, 0)
	scheduler := scheduling.New(store, sink, log, nil)

	registry := capability.NewRegistry(
		capability.NewIntake(llmClient, cfg.LLMModelFast, resolver, scheduler, policyEngine, sink, log),
		capability.NewBriefing(llmClient, cfg.LLMModelPrimary, scheduler, sink, log),
		capability.NewComms(llmClient, cfg.LLMModelFast, sink, log),
		capability.NewComplianceAudit(llmClient, cfg.LLMModelPrimary, sink, log),
	)

	orch := orchestrator.New(registry, sink, log, orchestrator.Options{
		MaxSteps:    cfg.MaxSteps,
		MaxDuration: cfg.MaxDuration,
	})

	h := handler.NewHandler(orch, scheduler, store, registry, cfg.DefaultWorkspaceID, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	h.RegisterRoutes(e)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()
	log.Info().Int("port", cfg.HTTPPort).Msg("api started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shut down gracefully")
	}
	log.Info().Msg("orchestrator stopped")
}
