package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"chefai/cookbook"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

const defaultRecipeCategory = "Uncategorized"

type GetRecipes struct{ store RecipeStore }

func NewGetRecipes(store RecipeStore) *GetRecipes { return &GetRecipes{store: store} }

func (t *GetRecipes) Name() string        { return "get_recipes" }
func (t *GetRecipes) Title() string       { return "List Recipes" }
func (t *GetRecipes) Description() string { return "Returns every recipe saved in the user's cookbook." }

func (t *GetRecipes) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}}
}

func (t *GetRecipes) Run(ctx context.Context, _ json.RawMessage) Result {
	recipes, err := t.store.All(ctx)
	if err != nil {
		return ErrorResult("Failed to load recipes: %v", err)
	}
	return RecipeListResult(recipes)
}

type SearchRecipe struct{ store RecipeStore }

func NewSearchRecipe(store RecipeStore) *SearchRecipe { return &SearchRecipe{store: store} }

func (t *SearchRecipe) Name() string  { return "search_recipe" }
func (t *SearchRecipe) Title() string { return "Search Recipes" }
func (t *SearchRecipe) Description() string {
	return "Finds saved recipes whose name or description contains the query, ignoring case."
}

func (t *SearchRecipe) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"query": stringProp("Text to look for in recipe names and descriptions."),
		},
		Required: []string{"query"},
	}
}

func (t *SearchRecipe) Run(ctx context.Context, raw json.RawMessage) Result {
	var args struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(raw, t.InputSchema(), &args); err != nil {
		return ErrorResult("%v", err)
	}
	recipes, err := t.store.Search(ctx, strings.TrimSpace(args.Query))
	if err != nil {
		return ErrorResult("Failed to search recipes: %v", err)
	}
	return RecipeListResult(recipes)
}

type CreateRecipe struct{ store RecipeStore }

func NewCreateRecipe(store RecipeStore) *CreateRecipe { return &CreateRecipe{store: store} }

func (t *CreateRecipe) Name() string  { return "create_recipe" }
func (t *CreateRecipe) Title() string { return "Create Recipe" }
func (t *CreateRecipe) Description() string {
	return "Saves a new recipe to the cookbook. Category defaults to Uncategorized."
}

func (t *CreateRecipe) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"name":        stringProp("Recipe name."),
			"description": stringProp("Short description."),
			"category":    stringProp("Cookbook category, e.g. Breakfast or Dinner."),
			"ingredients": ingredientsProp(),
			"steps":       stepsProp(),
			"portions":    stringProp("Number of portions."),
			"cookTime":    stringProp("Cooking time, e.g. 30 min."),
		},
		Required: []string{"name"},
	}
}

func (t *CreateRecipe) Run(ctx context.Context, raw json.RawMessage) Result {
	var args struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Category    string          `json:"category"`
		Ingredients []ingredientArg `json:"ingredients"`
		Steps       []string        `json:"steps"`
		Portions    flexString      `json:"portions"`
		CookTime    string          `json:"cookTime"`
	}
	if err := decodeArgs(raw, t.InputSchema(), &args); err != nil {
		return ErrorResult("%v", err)
	}

	category := strings.TrimSpace(args.Category)
	if category == "" {
		category = defaultRecipeCategory
	}
	steps := args.Steps
	if steps == nil {
		steps = []string{}
	}

	saved, err := t.store.Save(ctx, cookbook.Recipe{
		Name:        args.Name,
		Description: args.Description,
		Category:    category,
		Ingredients: toIngredientRefs(args.Ingredients),
		Steps:       steps,
		Portions:    string(args.Portions),
		CookTime:    args.CookTime,
	})
	if errors.Is(err, cookbook.ErrInvalidRecipe) {
		return ErrorResult("Recipe name is required")
	}
	if err != nil {
		return ErrorResult("Failed to save recipe: %v", err)
	}
	return RecipeResult(saved)
}

type EditRecipe struct{ store RecipeStore }

func NewEditRecipe(store RecipeStore) *EditRecipe { return &EditRecipe{store: store} }

func (t *EditRecipe) Name() string  { return "edit_recipe" }
func (t *EditRecipe) Title() string { return "Edit Recipe" }
func (t *EditRecipe) Description() string {
	return "Updates an existing recipe by id. Only the fields provided are changed."
}

func (t *EditRecipe) InputSchema() *jsonschema.Schema {
	schema := NewCreateRecipe(nil).InputSchema()
	schema.Properties["id"] = stringProp("Id of the recipe to edit.")
	schema.Required = []string{"id"}
	return schema
}

func (t *EditRecipe) Run(ctx context.Context, raw json.RawMessage) Result {
	var args struct {
		ID          string           `json:"id"`
		Name        *string          `json:"name"`
		Description *string          `json:"description"`
		Category    *string          `json:"category"`
		Ingredients *[]ingredientArg `json:"ingredients"`
		Steps       *[]string        `json:"steps"`
		Portions    *flexString      `json:"portions"`
		CookTime    *string          `json:"cookTime"`
	}
	if err := decodeArgs(raw, t.InputSchema(), &args); err != nil {
		return ErrorResult("%v", err)
	}

	patch := cookbook.RecipePatch{
		Name:        args.Name,
		Description: args.Description,
		Category:    args.Category,
		Steps:       args.Steps,
		Portions:    args.Portions.ptr(),
		CookTime:    args.CookTime,
	}
	if args.Ingredients != nil {
		refs := toIngredientRefs(*args.Ingredients)
		patch.Ingredients = &refs
	}

	updated, err := t.store.Update(ctx, args.ID, patch)
	switch {
	case errors.Is(err, cookbook.ErrRecipeNotFound):
		return ErrorResult("Recipe not found")
	case errors.Is(err, cookbook.ErrInvalidRecipe):
		return ErrorResult("Recipe name is required")
	case err != nil:
		return ErrorResult("Failed to update recipe: %v", err)
	}
	return RecipeResult(updated)
}
