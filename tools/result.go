package tools

import (
	"encoding/json"
	"fmt"

	"chefai/cookbook"
)

// Kind tags what a Result carries. Attachment extraction switches on it
// instead of inspecting payload shapes.
type Kind int

const (
	KindError Kind = iota
	KindStatus
	KindRecipe
	KindRecipeList
	KindIngredient
	KindIngredientList
)

func (k Kind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindStatus:
		return "status"
	case KindRecipe:
		return "recipe"
	case KindRecipeList:
		return "recipe_list"
	case KindIngredient:
		return "ingredient"
	case KindIngredientList:
		return "ingredient_list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the typed outcome of a tool run. Only the fields matching Kind are set.
type Result struct {
	Kind        Kind
	Recipes     []cookbook.Recipe
	Recipe      cookbook.Recipe
	Ingredients []cookbook.PantryIngredient
	Ingredient  cookbook.PantryIngredient
	Message     string
}

func RecipeListResult(recipes []cookbook.Recipe) Result {
	if recipes == nil {
		recipes = []cookbook.Recipe{}
	}
	return Result{Kind: KindRecipeList, Recipes: recipes}
}

func RecipeResult(r cookbook.Recipe) Result {
	return Result{Kind: KindRecipe, Recipe: r}
}

func IngredientListResult(items []cookbook.PantryIngredient) Result {
	if items == nil {
		items = []cookbook.PantryIngredient{}
	}
	return Result{Kind: KindIngredientList, Ingredients: items}
}

func IngredientResult(it cookbook.PantryIngredient) Result {
	return Result{Kind: KindIngredient, Ingredient: it}
}

func SuccessResult() Result {
	return Result{Kind: KindStatus}
}

func ErrorResult(format string, args ...any) Result {
	return Result{Kind: KindError, Message: fmt.Sprintf(format, args...)}
}

func (r Result) IsError() bool { return r.Kind == KindError }

// MarshalJSON renders the wire payload sent back to the model: lists as bare
// arrays, single entities wrapped in {"success":true,...} and failures as
// {"error": reason}.
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindRecipeList:
		return json.Marshal(nonNilSlice(r.Recipes))
	case KindIngredientList:
		return json.Marshal(nonNilSlice(r.Ingredients))
	case KindRecipe:
		return json.Marshal(struct {
			Success bool            `json:"success"`
			Recipe  cookbook.Recipe `json:"recipe"`
		}{true, r.Recipe})
	case KindIngredient:
		return json.Marshal(struct {
			Success    bool                      `json:"success"`
			Ingredient cookbook.PantryIngredient `json:"ingredient"`
		}{true, r.Ingredient})
	case KindStatus:
		return []byte(`{"success":true}`), nil
	case KindError:
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Message})
	default:
		return nil, fmt.Errorf("unknown result kind %s", r.Kind)
	}
}

// Text is the JSON string placed in the tool result message.
func (r Result) Text() string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"error":"Unserializable result"}`
	}
	return string(b)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
