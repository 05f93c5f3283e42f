package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"

	"chefai"
	"chefai/cookbook"
	"chefai/coordinator"
	"chefai/coordinator/bedrock"
	"chefai/tools"
	"chefai/tools/storage"
)

// Params is one turn. History carries the conversation between invocations.
type Params struct {
	Text        string                `json:"text"`
	ImageBase64 string                `json:"image_base64,omitempty"`
	ImageMIME   string                `json:"image_mime,omitempty"`
	RecipeID    string                `json:"recipe_id,omitempty"`
	History     []coordinator.Message `json:"history,omitempty"`
}

type Results struct {
	Reply coordinator.Message `json:"reply"`
	Error string              `json:"error,omitempty"`
}

type handler struct {
	llm      coordinator.LLMClient
	recipes  *cookbook.RecipeStore
	registry *tools.Registry
	opts     coordinator.Options
}

func main() {
	ctx := context.Background()

	var modelConfig chefai.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		slog.Error("SETUP: Failed to decode model config", "error", err)
		return
	}

	var agentConfig chefai.AgentConfig
	if err := envdecode.Decode(&agentConfig); err != nil {
		slog.Error("SETUP: Failed to decode agent config", "error", err)
		return
	}

	var s3Config chefai.S3Config
	if err := envdecode.Decode(&s3Config); err != nil {
		slog.Error("SETUP: Failed to decode S3 config", "error", err)
		return
	}
	if s3Config.Bucket == "" {
		slog.Error("SETUP: Missing S3 config: ARTIFACTS_S3_BUCKET must be set")
		return
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		slog.Error("SETUP: Failed to load AWS config", "error", err)
		return
	}
	s3Client := s3.NewFromConfig(awsCfg)

	recipes := cookbook.NewRecipeStore(storage.NewS3State(s3Client, s3Config.Bucket, s3Config.RecipesKey))
	pantry := cookbook.NewPantryStore(storage.NewS3State(s3Client, s3Config.Bucket, s3Config.PantryKey))
	slog.Info("SETUP: S3 recipe and pantry state initialized", "bucket", s3Config.Bucket)

	h := &handler{
		llm: bedrock.NewLLMClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.LLMOptions{
			ModelID:     modelConfig.ModelID,
			MaxTokens:   modelConfig.MaxTokens,
			Temperature: &modelConfig.Temperature,
			TopP:        modelConfig.TopP,
		}),
		recipes:  recipes,
		registry: tools.NewRegistry(recipes, pantry),
		opts: coordinator.Options{
			HistoryWindow:  agentConfig.HistoryWindow,
			MaxRecipes:     agentConfig.MaxRecipeAttachments,
			MaxIngredients: agentConfig.MaxIngredientAttachments,
			Logger:         chefai.NewStdoutTurnLogger(),
		},
	}

	if agentConfig.TelemetryEnabled {
		tracerProvider, meterProvider, otelShutdown, err := chefai.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return
		}
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()
		h.opts.Tracer = tracerProvider.Tracer(chefai.TracerNameLambda)
		h.opts.Meter = meterProvider.Meter(chefai.TracerNameLambda)
	}

	lambda.Start(h.handle)
}

// handle runs one turn on a conversation restored from params.History. A
// failed turn still returns the apology as the reply, with the cause in Error.
func (h *handler) handle(ctx context.Context, params Params) (Results, error) {
	turn := coordinator.Turn{Text: params.Text}
	if params.ImageBase64 != "" {
		turn.Image = &coordinator.Image{Data: params.ImageBase64, MIMEType: params.ImageMIME}
	}
	if params.RecipeID != "" {
		r, err := h.recipes.Get(ctx, params.RecipeID)
		if err != nil {
			return Results{}, fmt.Errorf("attach recipe %s: %w", params.RecipeID, err)
		}
		turn.Recipe = &r
	}

	orch := coordinator.New(h.llm, h.registry, h.opts)
	if err := orch.Restore(params.History); err != nil {
		return Results{}, err
	}

	reply, err := orch.Send(ctx, turn)
	if errors.Is(err, coordinator.ErrEmptyTurn) {
		return Results{}, err
	}
	if err != nil {
		slog.Error("RESULT: Turn failed", "error", err)
		return Results{Reply: reply, Error: err.Error()}, nil
	}
	return Results{Reply: reply}, nil
}
