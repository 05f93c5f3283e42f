package cookbook

import (
	"context"
	"strconv"
	"strings"
	"time"

	"chefai/tools/storage"
)

type PantryIngredient struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Quantity  string     `json:"quantity"`
	Unit      string     `json:"unit"`
	Category  string     `json:"category"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// PantryPatch carries merge-patch updates: nil fields are left untouched.
type PantryPatch struct {
	Name     *string
	Quantity *string
	Unit     *string
	Category *string
}

func (p PantryPatch) apply(it *PantryIngredient) {
	if p.Name != nil {
		it.Name = strings.TrimSpace(*p.Name)
	}
	if p.Quantity != nil {
		it.Quantity = strings.TrimSpace(*p.Quantity)
	}
	if p.Unit != nil {
		it.Unit = *p.Unit
	}
	if p.Category != nil {
		it.Category = *p.Category
	}
}

type PantryStore struct {
	c    collection[PantryIngredient]
	opts options
}

func NewPantryStore(state storage.State, opts ...Option) *PantryStore {
	return &PantryStore{
		c:    collection[PantryIngredient]{state: state, name: "pantry"},
		opts: newOptions(opts),
	}
}

func (s *PantryStore) All(ctx context.Context) ([]PantryIngredient, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.c.load(ctx)
}

// Add stores a new pantry item, assigning its id and creation time.
func (s *PantryStore) Add(ctx context.Context, it PantryIngredient) (PantryIngredient, error) {
	it.Name = strings.TrimSpace(it.Name)
	it.Quantity = strings.TrimSpace(it.Quantity)

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	items, err := s.c.load(ctx)
	if err != nil {
		return PantryIngredient{}, err
	}

	id, err := uniqueID(s.opts.newID, func(id string) bool {
		for _, existing := range items {
			if existing.ID == id {
				return true
			}
		}
		return false
	})
	if err != nil {
		return PantryIngredient{}, err
	}
	it.ID = id
	it.CreatedAt = s.opts.now()
	it.UpdatedAt = nil

	if err := s.c.save(ctx, append(items, it)); err != nil {
		return PantryIngredient{}, err
	}
	return it, nil
}

func (s *PantryStore) Update(ctx context.Context, id string, patch PantryPatch) (PantryIngredient, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	items, err := s.c.load(ctx)
	if err != nil {
		return PantryIngredient{}, err
	}
	for i := range items {
		if items[i].ID != id {
			continue
		}
		patch.apply(&items[i])
		now := s.opts.now()
		items[i].UpdatedAt = &now

		if err := s.c.save(ctx, items); err != nil {
			return PantryIngredient{}, err
		}
		return items[i], nil
	}
	return PantryIngredient{}, ErrIngredientNotFound
}

// Delete removes the item and reports whether anything was removed.
func (s *PantryStore) Delete(ctx context.Context, id string) (bool, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	items, err := s.c.load(ctx)
	if err != nil {
		return false, err
	}
	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return false, nil
	}
	return true, s.c.save(ctx, kept)
}

// Subtract decrements pantry quantities by the consumed amounts. Items are
// matched by trimmed, case-insensitive name and, when the consumed entry names
// a unit, by unit too. Quantities floor at zero and emptied items are removed.
// Entries without a usable quantity or match are skipped.
func (s *PantryStore) Subtract(ctx context.Context, consumed []IngredientRef) error {
	if len(consumed) == 0 {
		return nil
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	items, err := s.c.load(ctx)
	if err != nil {
		return err
	}

	changed := false
	for _, ing := range consumed {
		want, ok := parseQuantity(ing.Quantity)
		if !ok || want == 0 {
			continue
		}
		name := normalize(ing.Name)
		if name == "" {
			continue
		}
		unit := normalize(ing.Unit)

		for i := range items {
			if normalize(items[i].Name) != name || (unit != "" && normalize(items[i].Unit) != unit) {
				continue
			}
			have, ok := parseQuantity(items[i].Quantity)
			if !ok {
				break
			}
			items[i].Quantity = formatQuantity(max(0, have-want))
			changed = true
			break
		}
	}
	if !changed {
		return nil
	}

	kept := items[:0]
	for _, it := range items {
		if q, ok := parseQuantity(it.Quantity); ok && q == 0 {
			continue
		}
		kept = append(kept, it)
	}
	return s.c.save(ctx, kept)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseQuantity(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func formatQuantity(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
