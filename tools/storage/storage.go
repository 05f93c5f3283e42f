// Package storage persists opaque JSON blobs under a single key, the way a
// mobile key-value store would. The cookbook stores layer their collections
// on top of a State.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when nothing has been saved under the key yet.
var ErrNotFound = errors.New("state not found")

type State interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}
