package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joeshaw/envdecode"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chefai"
	"chefai/cookbook"
	"chefai/coordinator"
	"chefai/slack"
	"chefai/tools"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var modelConfig chefai.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var agentConfig chefai.AgentConfig
	if err := envdecode.Decode(&agentConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var s3Config chefai.S3Config
	if err := envdecode.Decode(&s3Config); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	if agentConfig.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		chefai.Dump(os.Stderr, modelConfig, agentConfig)
	}

	states, closeStates, err := newStates(ctx, agentConfig, s3Config)
	if err != nil {
		slog.Error("SETUP: Failed to open storage", "backend", agentConfig.StorageBackend, "error", err)
		return
	}
	defer func() {
		if err := closeStates(); err != nil {
			slog.Error("SETUP: Failed to close storage", "error", err)
		}
	}()

	recipes := cookbook.NewRecipeStore(states.recipes)
	pantry := cookbook.NewPantryStore(states.pantry)
	categories := cookbook.NewCategoryStore(states.categories)
	registry := tools.NewRegistry(recipes, pantry)
	slog.Info("SETUP: Stores ready", "backend", agentConfig.StorageBackend, "tools", len(registry.GetTools()))

	llm, err := newLLM(ctx, modelConfig)
	if err != nil {
		slog.Error("SETUP: Failed to create model client", "provider", modelConfig.Provider, "error", err)
		return
	}

	turnLogger, flush, err := newTurnLogger(agentConfig.TurnLogDir, modelConfig.ModelID)
	if err != nil {
		slog.Error("SETUP: Failed to create turn logger", "error", err)
		return
	}
	defer func() {
		if err := flush(); err != nil {
			slog.Error("SETUP: Failed to flush turn log", "error", err)
		}
	}()

	opts := coordinator.Options{
		HistoryWindow:  agentConfig.HistoryWindow,
		MaxRecipes:     agentConfig.MaxRecipeAttachments,
		MaxIngredients: agentConfig.MaxIngredientAttachments,
		Logger:         turnLogger,
	}

	if agentConfig.TelemetryEnabled {
		tracerProvider, meterProvider, otelShutdown, err := chefai.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return
		}
		defer func() {
			if err := otelShutdown(context.Background()); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()
		opts.Tracer = tracerProvider.Tracer(chefai.TracerNameOrchestrator)
		opts.Meter = meterProvider.Meter(chefai.TracerNameOrchestrator)

		var span trace.Span
		ctx, span = opts.Tracer.Start(ctx, "assistant.session", trace.WithAttributes(
			attribute.String("model.provider", modelConfig.Provider),
			attribute.String("model.id", modelConfig.ModelID),
			attribute.String("storage.backend", agentConfig.StorageBackend),
		))
		defer span.End()
	}

	var notifier chefai.Notifier
	if agentConfig.SlackWebhookURL != "" {
		notifier = slack.NewClient(agentConfig.SlackWebhookURL, nil)
	}

	s := &session{
		orch:       coordinator.New(llm, registry, opts),
		recipes:    recipes,
		pantry:     pantry,
		categories: categories,
		notifier:   notifier,
		channel:    agentConfig.SlackChannel,
		out:        os.Stdout,
	}
	if err := s.run(ctx, os.Stdin); err != nil {
		slog.Error("Session ended with error", "error", err)
	}
}
