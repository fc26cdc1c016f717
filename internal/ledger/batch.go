package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"nvdiff/internal/domain"
)

// ErrBatchClosed is returned when a committed or discarded batch is reused
var ErrBatchClosed = errors.New("batch already closed")

// Batch stages entries for one comparison cycle. Nothing is visible to
// readers until Commit succeeds.
type Batch struct {
	l       *Ledger
	staged  []domain.Entry
	pending map[domain.NID][]domain.Entry
	closed  bool
}

// Begin starts a batch
func (l *Ledger) Begin() *Batch {
	return &Batch{l: l, pending: make(map[domain.NID][]domain.Entry)}
}

// Append validates an entry against the committed history plus what this
// batch has already staged
func (b *Batch) Append(e domain.Entry) error {
	if b.closed {
		return ErrBatchClosed
	}

	b.l.mu.RLock()
	history := b.l.byNID[e.NID]
	b.l.mu.RUnlock()

	if err := check(append(history[:len(history):len(history)], b.pending[e.NID]...), e); err != nil {
		return err
	}

	e = e.Clone()
	b.pending[e.NID] = append(b.pending[e.NID], e)
	b.staged = append(b.staged, e)
	return nil
}

// Len returns the number of staged entries
func (b *Batch) Len() int {
	return len(b.staged)
}

// Entries returns copies of the staged entries
func (b *Batch) Entries() []domain.Entry {
	out := make([]domain.Entry, len(b.staged))
	for i, e := range b.staged {
		out[i] = e.Clone()
	}
	return out
}

// Commit persists the staged entries and applies them to the ledger. The
// staged entries are re-validated under the write lock, so a batch that lost
// a race with another commit fails instead of corrupting a history.
func (b *Batch) Commit(ctx context.Context) error {
	if b.closed {
		return ErrBatchClosed
	}
	defer b.Discard()

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(b.staged) == 0 {
		return nil
	}

	l := b.l
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[domain.NID][]domain.Entry)
	entries := make([]domain.Entry, len(b.staged))
	for i, e := range b.staged {
		history := l.byNID[e.NID]
		if err := check(append(history[:len(history):len(history)], seen[e.NID]...), e); err != nil {
			return err
		}
		e.Seq = l.lastSeq + int64(i) + 1
		seen[e.NID] = append(seen[e.NID], e)
		entries[i] = e
	}

	if l.store != nil {
		if err := l.store.Append(ctx, entries); err != nil {
			return fmt.Errorf("failed to persist ledger batch: %w", err)
		}
	}

	for _, e := range entries {
		l.apply(e)
	}
	l.cache.Purge()

	l.logger.Debug("committed ledger batch",
		zap.Int("entries", len(entries)),
		zap.Int64("last_seq", l.lastSeq),
	)
	return nil
}

// Discard drops the staged entries. Safe to call more than once.
func (b *Batch) Discard() {
	b.closed = true
	b.staged = nil
	b.pending = nil
}
