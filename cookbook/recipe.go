package cookbook

import (
	"context"
	"strings"
	"time"

	"chefai/tools/storage"
)

type IngredientRef struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
}

type Recipe struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Ingredients []IngredientRef `json:"ingredients"`
	Steps       []string        `json:"steps"`
	Image       string          `json:"image,omitempty"`
	Portions    string          `json:"portions,omitempty"`
	CookTime    string          `json:"cookTime,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
}

// RecipePatch carries merge-patch updates: nil fields are left untouched.
type RecipePatch struct {
	Name        *string
	Description *string
	Category    *string
	Ingredients *[]IngredientRef
	Steps       *[]string
	Image       *string
	Portions    *string
	CookTime    *string
}

func (p RecipePatch) apply(r *Recipe) {
	if p.Name != nil {
		r.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		r.Description = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Ingredients != nil {
		r.Ingredients = nonNil(*p.Ingredients)
	}
	if p.Steps != nil {
		r.Steps = nonNil(*p.Steps)
	}
	if p.Image != nil {
		r.Image = *p.Image
	}
	if p.Portions != nil {
		r.Portions = strings.TrimSpace(*p.Portions)
	}
	if p.CookTime != nil {
		r.CookTime = strings.TrimSpace(*p.CookTime)
	}
}

type RecipeStore struct {
	c    collection[Recipe]
	opts options
}

func NewRecipeStore(state storage.State, opts ...Option) *RecipeStore {
	return &RecipeStore{
		c:    collection[Recipe]{state: state, name: "recipes"},
		opts: newOptions(opts),
	}
}

func (s *RecipeStore) All(ctx context.Context) ([]Recipe, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.c.load(ctx)
}

func (s *RecipeStore) Get(ctx context.Context, id string) (Recipe, error) {
	recipes, err := s.All(ctx)
	if err != nil {
		return Recipe{}, err
	}
	for _, r := range recipes {
		if r.ID == id {
			return r, nil
		}
	}
	return Recipe{}, ErrRecipeNotFound
}

// Search returns recipes whose name or description contains query, ignoring case.
// An empty query matches everything.
func (s *RecipeStore) Search(ctx context.Context, query string) ([]Recipe, error) {
	recipes, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	out := make([]Recipe, 0, len(recipes))
	for _, r := range recipes {
		if strings.Contains(strings.ToLower(r.Name), q) || strings.Contains(strings.ToLower(r.Description), q) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ByCategory filters by exact category; the "All" pseudo-category returns everything.
func (s *RecipeStore) ByCategory(ctx context.Context, category string) ([]Recipe, error) {
	recipes, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	if category == CategoryAll {
		return recipes, nil
	}
	out := make([]Recipe, 0)
	for _, r := range recipes {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out, nil
}

// Save stores r as a new recipe, assigning its id and creation time.
func (s *RecipeStore) Save(ctx context.Context, r Recipe) (Recipe, error) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return Recipe{}, ErrInvalidRecipe
	}
	r.Description = strings.TrimSpace(r.Description)
	r.Portions = strings.TrimSpace(r.Portions)
	r.CookTime = strings.TrimSpace(r.CookTime)
	r.Ingredients = nonNil(r.Ingredients)
	r.Steps = nonNil(r.Steps)

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	recipes, err := s.c.load(ctx)
	if err != nil {
		return Recipe{}, err
	}

	id, err := uniqueID(s.opts.newID, func(id string) bool {
		for _, existing := range recipes {
			if existing.ID == id {
				return true
			}
		}
		return false
	})
	if err != nil {
		return Recipe{}, err
	}
	r.ID = id
	r.CreatedAt = s.opts.now()
	r.UpdatedAt = nil

	if err := s.c.save(ctx, append(recipes, r)); err != nil {
		return Recipe{}, err
	}
	return r, nil
}

// Update merges patch into the recipe with the given id.
func (s *RecipeStore) Update(ctx context.Context, id string, patch RecipePatch) (Recipe, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	recipes, err := s.c.load(ctx)
	if err != nil {
		return Recipe{}, err
	}
	for i := range recipes {
		if recipes[i].ID != id {
			continue
		}
		updated := recipes[i]
		patch.apply(&updated)
		if updated.Name == "" {
			return Recipe{}, ErrInvalidRecipe
		}
		now := s.opts.now()
		updated.UpdatedAt = &now
		recipes[i] = updated

		if err := s.c.save(ctx, recipes); err != nil {
			return Recipe{}, err
		}
		return updated, nil
	}
	return Recipe{}, ErrRecipeNotFound
}

// Delete removes the recipe and reports whether anything was removed.
func (s *RecipeStore) Delete(ctx context.Context, id string) (bool, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	recipes, err := s.c.load(ctx)
	if err != nil {
		return false, err
	}
	kept := recipes[:0]
	for _, r := range recipes {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(recipes) {
		return false, nil
	}
	return true, s.c.save(ctx, kept)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
