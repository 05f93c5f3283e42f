package tools

import "fmt"

// Registry is the fixed, ordered set of tools offered to the model.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
}

// NewRegistry wires the assistant's tool set to the given stores.
func NewRegistry(recipes RecipeStore, pantry PantryStore) *Registry {
	return newRegistry(
		NewGetRecipes(recipes),
		NewSearchRecipe(recipes),
		NewCreateRecipe(recipes),
		NewEditRecipe(recipes),
		NewGetPantryIngredients(pantry),
		NewAddPantryIngredient(pantry),
		NewEditPantryIngredient(pantry),
		NewRemovePantryIngredient(pantry),
		NewRecipesFromPantry(recipes, pantry),
	)
}

func newRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: tools, byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := r.byName[t.Name()]; dup {
			panic(fmt.Sprintf("duplicate tool %q", t.Name()))
		}
		r.byName[t.Name()] = t
	}
	return r
}

// GetTools returns the tools in registration order.
func (r *Registry) GetTools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// GetTool retrieves a tool by name.
func (r *Registry) GetTool(name string) (Tool, error) {
	tool, exists := r.byName[name]
	if !exists {
		return nil, fmt.Errorf("tool %q not found in registry", name)
	}
	return tool, nil
}
