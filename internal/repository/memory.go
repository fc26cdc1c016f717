package repository

import (
	"context"
	"sync"

	"nvdiff/internal/domain"
)

// Memory is a LedgerStore that keeps everything in process memory
type Memory struct {
	mu      sync.RWMutex
	entries []domain.Entry
	meta    map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{meta: make(map[string]string)}
}

// Load returns copies of every stored entry
func (m *Memory) Load(ctx context.Context) ([]domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Entry, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Clone()
	}
	return out, nil
}

// Append stores a batch of entries
func (m *Memory) Append(ctx context.Context, entries []domain.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.entries = append(m.entries, e.Clone())
	}
	return nil
}

// GetMeta returns a metadata value
func (m *Memory) GetMeta(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.meta[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// PutMeta sets a metadata value
func (m *Memory) PutMeta(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[key] = value
	return nil
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}
