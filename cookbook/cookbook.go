// Package cookbook holds the recipe, pantry and category collections and the
// rules for mutating them. Each store keeps its whole collection as one JSON
// blob in a storage.State.
package cookbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"chefai/tools/storage"

	"github.com/google/uuid"
)

var (
	ErrRecipeNotFound     = errors.New("recipe not found")
	ErrIngredientNotFound = errors.New("ingredient not found")
	ErrInvalidRecipe      = errors.New("invalid recipe")
	ErrInvalidCategory    = errors.New("invalid category")
)

const maxIDAttempts = 8

type options struct {
	now   func() time.Time
	newID func() string
}

type Option func(*options)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides how new ids are minted. Generated ids that collide
// with an existing entry are retried.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func newOptions(opts []Option) options {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// collection loads and saves a JSON array of T. The mutex serialises
// read-modify-write cycles within one process.
type collection[T any] struct {
	mu    sync.Mutex
	state storage.State
	name  string
}

func (c *collection[T]) load(ctx context.Context) ([]T, error) {
	b, err := c.state.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.name, err)
	}
	if len(b) == 0 {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", c.name, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (c *collection[T]) save(ctx context.Context, items []T) error {
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	if err := c.state.Save(ctx, b); err != nil {
		return fmt.Errorf("write %s: %w", c.name, err)
	}
	return nil
}

func uniqueID(newID func() string, taken func(string) bool) (string, error) {
	for range maxIDAttempts {
		id := newID()
		if id != "" && !taken(id) {
			return id, nil
		}
	}
	return "", errors.New("could not allocate a unique id")
}
