package chefai

// ModelConfig selects the model provider. MODEL_API_KEY is required only when
// MODEL_BASE_URL points at api.openai.com; a local Ollama server runs without it.
type ModelConfig struct {
	Provider          string  `env:"MODEL_PROVIDER,default=openai"`
	ModelID           string  `env:"MODEL_ID,default=gpt-4o-mini"`
	APIKey            string  `env:"MODEL_API_KEY"`
	BaseURL           string  `env:"MODEL_BASE_URL,default=https://api.openai.com/v1"`
	MaxTokens         int32   `env:"MAX_TOKENS,default=1024"`
	Temperature       float32 `env:"TEMPERATURE,default=0.7"`
	TopP              float32 `env:"TOP_P,default=0.9"`
	RequestsPerMinute int     `env:"MODEL_REQUESTS_PER_MINUTE,default=0"`
}

type AgentConfig struct {
	StorageBackend           string `env:"STORAGE_BACKEND,default=file"`
	ArtifactsRecipesPath     string `env:"ARTIFACTS_RECIPES_PATH,default=artifacts/recipes.json"`
	ArtifactsPantryPath      string `env:"ARTIFACTS_PANTRY_PATH,default=artifacts/pantry.json"`
	ArtifactsCategoriesPath  string `env:"ARTIFACTS_CATEGORIES_PATH,default=artifacts/categories.json"`
	SQLitePath               string `env:"SQLITE_PATH,default=artifacts/chefai.db"`
	HistoryWindow            int    `env:"HISTORY_WINDOW,default=10"`
	MaxRecipeAttachments     int    `env:"MAX_RECIPE_ATTACHMENTS,default=5"`
	MaxIngredientAttachments int    `env:"MAX_INGREDIENT_ATTACHMENTS,default=8"`
	TurnLogDir               string `env:"TURN_LOG_DIR,default=logs"`
	TelemetryEnabled         bool   `env:"TELEMETRY_ENABLED,default=false"`
	SlackWebhookURL          string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel             string `env:"SLACK_CHANNEL,default=#kitchen"`
	Debug                    bool   `env:"CHEFAI_DEBUG,default=false"`
}

// S3Config locates the three store blobs when STORAGE_BACKEND=s3.
type S3Config struct {
	Bucket        string `env:"ARTIFACTS_S3_BUCKET"`
	RecipesKey    string `env:"ARTIFACTS_RECIPES_S3_KEY,default=recipes.json"`
	PantryKey     string `env:"ARTIFACTS_PANTRY_S3_KEY,default=pantry.json"`
	CategoriesKey string `env:"ARTIFACTS_CATEGORIES_S3_KEY,default=categories.json"`
}
