package storage

import (
	"context"
	"errors"
	"sync"
)

// MemoryState is an in-memory State, used for tests and ephemeral sessions.
type MemoryState struct {
	mu      sync.Mutex
	data    []byte
	loadErr error
	saveErr error
	saves   int
}

func NewMemoryState(data []byte) *MemoryState {
	return &MemoryState{data: data}
}

// NewMemoryStateWithError returns a state whose Load and Save both fail with err.
func NewMemoryStateWithError(err error) *MemoryState {
	if err == nil {
		err = errors.New("state unavailable")
	}
	return &MemoryState{loadErr: err, saveErr: err}
}

func (m *MemoryState) Load(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return nil, ErrNotFound
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *MemoryState) Save(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = make([]byte, len(data))
	copy(m.data, data)
	m.saves++
	return nil
}

// Saves reports how many successful writes the state has seen.
func (m *MemoryState) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
