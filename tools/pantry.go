package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"chefai/cookbook"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

const defaultPantryCategory = "Other"

type GetPantryIngredients struct{ store PantryStore }

func NewGetPantryIngredients(store PantryStore) *GetPantryIngredients {
	return &GetPantryIngredients{store: store}
}

func (t *GetPantryIngredients) Name() string  { return "get_pantry_ingredients" }
func (t *GetPantryIngredients) Title() string { return "List Pantry" }
func (t *GetPantryIngredients) Description() string {
	return "Returns every ingredient currently in the user's pantry with quantity and unit."
}

func (t *GetPantryIngredients) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}}
}

func (t *GetPantryIngredients) Run(ctx context.Context, _ json.RawMessage) Result {
	items, err := t.store.All(ctx)
	if err != nil {
		return ErrorResult("Failed to load pantry: %v", err)
	}
	return IngredientListResult(items)
}

type AddPantryIngredient struct{ store PantryStore }

func NewAddPantryIngredient(store PantryStore) *AddPantryIngredient {
	return &AddPantryIngredient{store: store}
}

func (t *AddPantryIngredient) Name() string  { return "add_pantry_ingredient" }
func (t *AddPantryIngredient) Title() string { return "Add Pantry Ingredient" }
func (t *AddPantryIngredient) Description() string {
	return "Adds an ingredient to the pantry. Category defaults to Other."
}

func (t *AddPantryIngredient) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"name":     stringProp("Ingredient name."),
			"quantity": stringProp("Amount as a number, e.g. \"2\"."),
			"unit":     stringProp("Unit such as g, ml, cup, pcs."),
			"category": stringProp("Pantry category, e.g. Dairy or Spices."),
		},
		Required: []string{"name", "quantity"},
	}
}

func (t *AddPantryIngredient) Run(ctx context.Context, raw json.RawMessage) Result {
	var args struct {
		Name     string     `json:"name"`
		Quantity flexString `json:"quantity"`
		Unit     string     `json:"unit"`
		Category string     `json:"category"`
	}
	if err := decodeArgs(raw, t.InputSchema(), &args); err != nil {
		return ErrorResult("%v", err)
	}
	if strings.TrimSpace(args.Name) == "" {
		return ErrorResult("Ingredient name is required")
	}

	category := strings.TrimSpace(args.Category)
	if category == "" {
		category = defaultPantryCategory
	}

	added, err := t.store.Add(ctx, cookbook.PantryIngredient{
		Name:     args.Name,
		Quantity: string(args.Quantity),
		Unit:     strings.TrimSpace(args.Unit),
		Category: category,
	})
	if err != nil {
		return ErrorResult("Failed to add ingredient: %v", err)
	}
	return IngredientResult(added)
}

type EditPantryIngredient struct{ store PantryStore }

func NewEditPantryIngredient(store PantryStore) *EditPantryIngredient {
	return &EditPantryIngredient{store: store}
}

func (t *EditPantryIngredient) Name() string  { return "edit_pantry_ingredient" }
func (t *EditPantryIngredient) Title() string { return "Edit Pantry Ingredient" }
func (t *EditPantryIngredient) Description() string {
	return "Updates a pantry ingredient by id. Only the fields provided are changed."
}

func (t *EditPantryIngredient) InputSchema() *jsonschema.Schema {
	schema := NewAddPantryIngredient(nil).InputSchema()
	schema.Properties["id"] = stringProp("Id of the pantry ingredient to edit.")
	schema.Required = []string{"id"}
	return schema
}

func (t *EditPantryIngredient) Run(ctx context.Context, raw json.RawMessage) Result {
	var args struct {
		ID       string      `json:"id"`
		Name     *string     `json:"name"`
		Quantity *flexString `json:"quantity"`
		Unit     *string     `json:"unit"`
		Category *string     `json:"category"`
	}
	if err := decodeArgs(raw, t.InputSchema(), &args); err != nil {
		return ErrorResult("%v", err)
	}

	updated, err := t.store.Update(ctx, args.ID, cookbook.PantryPatch{
		Name:     args.Name,
		Quantity: args.Quantity.ptr(),
		Unit:     args.Unit,
		Category: args.Category,
	})
	if errors.Is(err, cookbook.ErrIngredientNotFound) {
		return ErrorResult("Ingredient not found")
	}
	if err != nil {
		return ErrorResult("Failed to update ingredient: %v", err)
	}
	return IngredientResult(updated)
}

type RemovePantryIngredient struct{ store PantryStore }

func NewRemovePantryIngredient(store PantryStore) *RemovePantryIngredient {
	return &RemovePantryIngredient{store: store}
}

func (t *RemovePantryIngredient) Name() string  { return "remove_pantry_ingredient" }
func (t *RemovePantryIngredient) Title() string { return "Remove Pantry Ingredient" }
func (t *RemovePantryIngredient) Description() string {
	return "Removes a pantry ingredient by id."
}

func (t *RemovePantryIngredient) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"id": stringProp("Id of the pantry ingredient to remove."),
		},
		Required: []string{"id"},
	}
}

// Run succeeds whether or not the id existed.
func (t *RemovePantryIngredient) Run(ctx context.Context, raw json.RawMessage) Result {
	var args struct {
		ID string `json:"id"`
	}
	if err := decodeArgs(raw, t.InputSchema(), &args); err != nil {
		return ErrorResult("%v", err)
	}
	if _, err := t.store.Delete(ctx, args.ID); err != nil {
		return ErrorResult("Failed to remove ingredient: %v", err)
	}
	return SuccessResult()
}

type RecipesFromPantry struct {
	recipes RecipeStore
	pantry  PantryStore
}

func NewRecipesFromPantry(recipes RecipeStore, pantry PantryStore) *RecipesFromPantry {
	return &RecipesFromPantry{recipes: recipes, pantry: pantry}
}

func (t *RecipesFromPantry) Name() string  { return "recipes_from_pantry" }
func (t *RecipesFromPantry) Title() string { return "Recipes From Pantry" }
func (t *RecipesFromPantry) Description() string {
	return "Returns saved recipes whose ingredients are all present in the pantry by name. Quantities are not checked."
}

func (t *RecipesFromPantry) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}}
}

func (t *RecipesFromPantry) Run(ctx context.Context, _ json.RawMessage) Result {
	items, err := t.pantry.All(ctx)
	if err != nil {
		return ErrorResult("Failed to load pantry: %v", err)
	}
	recipes, err := t.recipes.All(ctx)
	if err != nil {
		return ErrorResult("Failed to load recipes: %v", err)
	}

	have := make(map[string]struct{}, len(items))
	for _, it := range items {
		have[strings.ToLower(strings.TrimSpace(it.Name))] = struct{}{}
	}

	out := make([]cookbook.Recipe, 0)
	for _, r := range recipes {
		if coveredBy(r, have) {
			out = append(out, r)
		}
	}
	return RecipeListResult(out)
}

func coveredBy(r cookbook.Recipe, have map[string]struct{}) bool {
	for _, ing := range r.Ingredients {
		if _, ok := have[strings.ToLower(strings.TrimSpace(ing.Name))]; !ok {
			return false
		}
	}
	return true
}
