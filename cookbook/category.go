package cookbook

import (
	"context"
	"slices"
	"strings"

	"chefai/tools/storage"
)

// CategoryAll is the synthetic category that matches every recipe. It is
// always listed first and can never be renamed or deleted.
const CategoryAll = "All"

var DefaultCategories = []string{CategoryAll, "Breakfast", "Lunch", "Dinner", "Snacks", "Desserts"}

type CategoryStore struct {
	c collection[string]
}

func NewCategoryStore(state storage.State) *CategoryStore {
	return &CategoryStore{c: collection[string]{state: state, name: "categories"}}
}

// All returns the ordered category list, seeding the defaults on first use.
func (s *CategoryStore) All(ctx context.Context) ([]string, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.loadOrSeed(ctx)
}

func (s *CategoryStore) Add(ctx context.Context, name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == CategoryAll {
		return nil, ErrInvalidCategory
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	cats, err := s.loadOrSeed(ctx)
	if err != nil {
		return nil, err
	}
	if slices.Contains(cats, name) {
		return cats, nil
	}
	cats = append(cats, name)
	return cats, s.c.save(ctx, cats)
}

// Rename replaces oldName with newName in place. Blank or unchanged names are a no-op.
func (s *CategoryStore) Rename(ctx context.Context, oldName, newName string) ([]string, error) {
	newName = strings.TrimSpace(newName)
	if oldName == CategoryAll || newName == CategoryAll {
		return nil, ErrInvalidCategory
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	cats, err := s.loadOrSeed(ctx)
	if err != nil {
		return nil, err
	}
	if newName == "" || newName == oldName {
		return cats, nil
	}
	for i, c := range cats {
		if c == oldName {
			cats[i] = newName
		}
	}
	return cats, s.c.save(ctx, cats)
}

func (s *CategoryStore) Delete(ctx context.Context, names ...string) ([]string, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	cats, err := s.loadOrSeed(ctx)
	if err != nil {
		return nil, err
	}
	cats = slices.DeleteFunc(cats, func(c string) bool {
		return c != CategoryAll && slices.Contains(names, c)
	})
	return cats, s.c.save(ctx, cats)
}

// Reorder persists the given order of real categories, with "All" pinned first.
func (s *CategoryStore) Reorder(ctx context.Context, order []string) ([]string, error) {
	cats := make([]string, 0, len(order)+1)
	cats = append(cats, CategoryAll)
	for _, c := range order {
		if c != CategoryAll && !slices.Contains(cats, c) {
			cats = append(cats, c)
		}
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return cats, s.c.save(ctx, cats)
}

func (s *CategoryStore) loadOrSeed(ctx context.Context) ([]string, error) {
	cats, err := s.c.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(cats) > 0 {
		return cats, nil
	}
	cats = slices.Clone(DefaultCategories)
	return cats, s.c.save(ctx, cats)
}
