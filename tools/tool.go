package tools

import (
	"context"
	"encoding/json"
	"strings"

	"chefai/cookbook"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// Tool is a capability the assistant can invoke. Run never returns a Go error:
// failures are reported as an error Result so the model can explain them.
type Tool interface {
	Name() string
	Title() string
	Description() string
	InputSchema() *jsonschema.Schema
	Run(ctx context.Context, args json.RawMessage) Result
}

// Call is one tool invocation requested by the model. Arguments holds the raw
// JSON object the model produced.
type Call struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// RawArguments converts the arguments text a model produced into JSON.
// Blank text becomes {}. Text that is not valid JSON is kept as a JSON string,
// so the tool rejects it and the call still serializes.
func RawArguments(text string) json.RawMessage {
	text = strings.TrimSpace(text)
	if text == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(text)) {
		return json.RawMessage(text)
	}
	b, _ := json.Marshal(text)
	return b
}

// WithValidArguments returns a copy of calls whose Arguments are valid JSON.
func WithValidArguments(calls []Call) []Call {
	if calls == nil {
		return nil
	}
	out := make([]Call, len(calls))
	for i, c := range calls {
		c.Arguments = RawArguments(string(c.Arguments))
		out[i] = c
	}
	return out
}

// RecipeStore is the slice of cookbook.RecipeStore the tools depend on.
type RecipeStore interface {
	All(ctx context.Context) ([]cookbook.Recipe, error)
	Get(ctx context.Context, id string) (cookbook.Recipe, error)
	Search(ctx context.Context, query string) ([]cookbook.Recipe, error)
	Save(ctx context.Context, r cookbook.Recipe) (cookbook.Recipe, error)
	Update(ctx context.Context, id string, patch cookbook.RecipePatch) (cookbook.Recipe, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// PantryStore is the slice of cookbook.PantryStore the tools depend on.
type PantryStore interface {
	All(ctx context.Context) ([]cookbook.PantryIngredient, error)
	Add(ctx context.Context, it cookbook.PantryIngredient) (cookbook.PantryIngredient, error)
	Update(ctx context.Context, id string, patch cookbook.PantryPatch) (cookbook.PantryIngredient, error)
	Delete(ctx context.Context, id string) (bool, error)
	Subtract(ctx context.Context, consumed []cookbook.IngredientRef) error
}
