package repository

import (
	"context"
	"errors"

	"nvdiff/internal/domain"
)

// ErrNotFound is returned when a metadata key does not exist
var ErrNotFound = errors.New("not found")

// LedgerStore persists lifecycle ledger entries
type LedgerStore interface {
	// Load returns every persisted entry in sequence order
	Load(ctx context.Context) ([]domain.Entry, error)

	// Append persists a batch of entries atomically. Either all entries are
	// stored or none are.
	Append(ctx context.Context, entries []domain.Entry) error

	// Metadata, used for per-dataset bookkeeping such as the last cycle
	GetMeta(ctx context.Context, key string) (string, error)
	PutMeta(ctx context.Context, key, value string) error

	// Close releases resources
	Close() error
}
