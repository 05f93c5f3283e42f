package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"chefai"
	"chefai/coordinator"
	"chefai/coordinator/bedrock"
	"chefai/coordinator/mock"
	"chefai/coordinator/openai"
	"chefai/tools/storage"
)

type states struct {
	recipes    storage.State
	pantry     storage.State
	categories storage.State
}

// newStates opens the three store blobs on the configured backend. The
// returned func releases whatever the backend holds open.
func newStates(ctx context.Context, cfg chefai.AgentConfig, s3cfg chefai.S3Config) (states, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StorageBackend {
	case "", "file":
		return states{
			recipes:    storage.NewFileState(cfg.ArtifactsRecipesPath),
			pantry:     storage.NewFileState(cfg.ArtifactsPantryPath),
			categories: storage.NewFileState(cfg.ArtifactsCategoriesPath),
		}, noop, nil

	case "sqlite":
		db, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return states{}, noop, err
		}
		return states{
			recipes:    storage.NewSQLiteState(db, "recipes"),
			pantry:     storage.NewSQLiteState(db, "pantry"),
			categories: storage.NewSQLiteState(db, "categories"),
		}, db.Close, nil

	case "s3":
		if s3cfg.Bucket == "" {
			return states{}, noop, errors.New("missing S3 config: ARTIFACTS_S3_BUCKET must be set")
		}
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return states{}, noop, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return states{
			recipes:    storage.NewS3State(client, s3cfg.Bucket, s3cfg.RecipesKey),
			pantry:     storage.NewS3State(client, s3cfg.Bucket, s3cfg.PantryKey),
			categories: storage.NewS3State(client, s3cfg.Bucket, s3cfg.CategoriesKey),
		}, noop, nil

	default:
		return states{}, noop, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func newLLM(ctx context.Context, cfg chefai.ModelConfig) (coordinator.LLMClient, error) {
	switch cfg.Provider {
	case "", "openai":
		return openai.NewLLMClient(openai.ClientOpts{
			BaseURL:           cfg.BaseURL,
			ModelID:           cfg.ModelID,
			APIKey:            cfg.APIKey,
			MaxTokens:         cfg.MaxTokens,
			Temperature:       &cfg.Temperature,
			TopP:              cfg.TopP,
			RequestsPerMinute: cfg.RequestsPerMinute,
		}), nil

	case "bedrock":
		brc, err := newBedrockRuntimeClient(ctx)
		if err != nil {
			return nil, err
		}
		return bedrock.NewLLMClient(brc, bedrock.LLMOptions{
			ModelID:     cfg.ModelID,
			MaxTokens:   cfg.MaxTokens,
			Temperature: &cfg.Temperature,
			TopP:        cfg.TopP,
		}), nil

	case "mock":
		return mock.NewLLMClient(), nil

	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func newBedrockRuntimeClient(ctx context.Context) (*bedrockruntime.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

func newTurnLogger(dir, modelID string) (chefai.TurnLogger, func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	logFile, err := os.OpenFile(chefai.NewTurnLogFilePath(dir, modelID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := chefai.NewFileTurnLogger(logFile)
	flush := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, flush, nil
}
