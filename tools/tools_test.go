package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"chefai/cookbook"
	"chefai/tools/storage"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	recipes     *cookbook.RecipeStore
	pantry      *cookbook.PantryStore
	recipeState *storage.MemoryState
	pantryState *storage.MemoryState
	executor    *Executor
}

func newFixture(t *testing.T, recipesJSON, pantryJSON string) *fixture {
	t.Helper()

	seed := func(s string) []byte {
		if s == "" {
			return nil
		}
		return []byte(s)
	}
	n := 0
	ids := func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}

	f := &fixture{
		recipeState: storage.NewMemoryState(seed(recipesJSON)),
		pantryState: storage.NewMemoryState(seed(pantryJSON)),
	}
	clock := cookbook.WithClock(func() time.Time { return fixedNow })
	f.recipes = cookbook.NewRecipeStore(f.recipeState, clock, cookbook.WithIDGenerator(ids))
	f.pantry = cookbook.NewPantryStore(f.pantryState, clock, cookbook.WithIDGenerator(ids))
	f.executor = NewExecutor(NewRegistry(f.recipes, f.pantry))
	return f
}

func (f *fixture) run(t *testing.T, name string, args any) Result {
	t.Helper()
	var raw json.RawMessage
	switch a := args.(type) {
	case nil:
	case string:
		raw = json.RawMessage(a)
	default:
		b, err := json.Marshal(a)
		require.NoError(t, err)
		raw = b
	}
	return f.executor.Execute(context.Background(), Call{ID: "call-1", Name: name, Arguments: raw})
}

func wire(t *testing.T, r Result) string {
	t.Helper()
	b, err := json.Marshal(r)
	require.NoError(t, err)
	return string(b)
}
