package coordinator

import (
	"chefai/cookbook"
	"chefai/tools"
)

const (
	DefaultMaxRecipes     = 5
	DefaultMaxIngredients = 8
)

// Attachments are the recipe and ingredient cards shown under a reply.
type Attachments struct {
	Recipes     []cookbook.Recipe
	Ingredients []cookbook.PantryIngredient
}

// Extract collects attachments from tool results in result order, then item
// order, stopping at the caps. Error and status results contribute nothing.
func Extract(results []tools.CallResult, maxRecipes, maxIngredients int) Attachments {
	out := Attachments{
		Recipes:     []cookbook.Recipe{},
		Ingredients: []cookbook.PantryIngredient{},
	}
	for _, r := range results {
		res := r.Result
		switch res.Kind {
		case tools.KindRecipeList:
			out.Recipes = appendCapped(out.Recipes, maxRecipes, res.Recipes...)
		case tools.KindRecipe:
			out.Recipes = appendCapped(out.Recipes, maxRecipes, res.Recipe)
		case tools.KindIngredientList:
			if len(res.Ingredients) > 0 {
				out.Ingredients = appendCapped(out.Ingredients, maxIngredients, res.Ingredients...)
			}
		}
	}
	return out
}

func appendCapped[T any](dst []T, limit int, items ...T) []T {
	for _, it := range items {
		if len(dst) >= limit {
			break
		}
		dst = append(dst, it)
	}
	return dst
}
