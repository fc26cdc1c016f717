// Package ledger records the effect history of every NID and reconstructs
// object state as of any past date.
//
// The ledger is an append-only event log. Each NID's entries start with an
// Addition, are strictly ordered by timestamp, and end with at most one
// Retirement. Writes go through a Batch: entries are staged and validated,
// then persisted and applied together on Commit. Reconstruction is a pure
// fold over the committed entries (see Replay).
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"nvdiff/internal/domain"
	"nvdiff/internal/repository"
)

// ErrUnknownNID is returned by lookups for a NID with no entries
var ErrUnknownNID = errors.New("unknown nid")

// DefaultCacheSize bounds the reconstruct cache
const DefaultCacheSize = 4096

// Status is the lifecycle state of a NID
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusActive  Status = "active"
	StatusRetired Status = "retired"
)

type cacheKey struct {
	nid  domain.NID
	asOf int64
}

// Ledger is the lifecycle ledger
type Ledger struct {
	mu      sync.RWMutex
	byNID   map[domain.NID][]domain.Entry
	order   []domain.NID
	lastSeq int64

	store  repository.LedgerStore
	cache  *lru.Cache[cacheKey, *domain.Feature]
	logger *zap.Logger
}

// Option configures a Ledger
type Option func(*options)

type options struct {
	cacheSize int
	logger    *zap.Logger
}

// WithCacheSize sets the number of reconstructed states kept in memory
func WithCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an empty ledger backed by store. A nil store keeps the ledger
// in memory only.
func New(store repository.LedgerStore, opts ...Option) (*Ledger, error) {
	o := options{cacheSize: DefaultCacheSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	cache, err := lru.New[cacheKey, *domain.Feature](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconstruct cache: %w", err)
	}

	return &Ledger{
		byNID:  make(map[domain.NID][]domain.Entry),
		store:  store,
		cache:  cache,
		logger: o.logger,
	}, nil
}

// Open creates a ledger from every entry persisted in store. Entries are
// re-validated as they are loaded; a store holding an invalid sequence
// cannot be opened.
func Open(ctx context.Context, store repository.LedgerStore, opts ...Option) (*Ledger, error) {
	l, err := New(store, opts...)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return l, nil
	}

	entries, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	for _, e := range entries {
		if err := check(l.byNID[e.NID], e); err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.Seq, err)
		}
		l.apply(e)
	}

	l.logger.Info("opened ledger",
		zap.Int("entries", len(entries)),
		zap.Int("nids", len(l.order)),
	)
	return l, nil
}

func (l *Ledger) apply(e domain.Entry) {
	if _, seen := l.byNID[e.NID]; !seen {
		l.order = append(l.order, e.NID)
	}
	l.byNID[e.NID] = append(l.byNID[e.NID], e)
	if e.Seq > l.lastSeq {
		l.lastSeq = e.Seq
	}
}

// Append validates, persists and applies a single entry
func (l *Ledger) Append(ctx context.Context, e domain.Entry) error {
	b := l.Begin()
	if err := b.Append(e); err != nil {
		b.Discard()
		return err
	}
	return b.Commit(ctx)
}

// Has reports whether the NID has ever been recorded
func (l *Ledger) Has(nid domain.NID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byNID[nid]
	return ok
}

// Status returns the current lifecycle state of a NID
func (l *Ledger) Status(nid domain.NID) Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.byNID[nid]
	switch {
	case !ok:
		return StatusUnknown
	case h[len(h)-1].Effect == domain.EffectRetirement:
		return StatusRetired
	default:
		return StatusActive
	}
}

// History returns a copy of the entries recorded for a NID
func (l *Ledger) History(nid domain.NID) []domain.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h := l.byNID[nid]
	out := make([]domain.Entry, len(h))
	for i, e := range h {
		out[i] = e.Clone()
	}
	return out
}

// Len returns the number of committed entries
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, h := range l.byNID {
		n += len(h)
	}
	return n
}

// NIDs returns every recorded NID in order of first appearance
func (l *Ledger) NIDs() []domain.NID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.NID(nil), l.order...)
}

// Reconstruct returns the state of a NID as of a point in time, or nil when
// the object did not exist then
func (l *Ledger) Reconstruct(nid domain.NID, asOf time.Time) (*domain.Feature, error) {
	key := cacheKey{nid: nid, asOf: asOf.UnixNano()}
	if f, ok := l.cache.Get(key); ok {
		return cloneFeature(f), nil
	}

	// the read lock is held across Add so a concurrent commit cannot purge
	// the cache between replay and insert
	l.mu.RLock()
	defer l.mu.RUnlock()

	h, ok := l.byNID[nid]
	if !ok {
		return nil, fmt.Errorf("reconstruct %s: %w", nid, ErrUnknownNID)
	}
	f := Replay(h, asOf)
	l.cache.Add(key, f)
	return cloneFeature(f), nil
}

// Dataset reconstructs every object that existed at asOf, ordered by kind
// then NID
func (l *Ledger) Dataset(asOf time.Time) []domain.Feature {
	l.mu.RLock()
	var out []domain.Feature
	for _, nid := range l.order {
		if f := Replay(l.byNID[nid], asOf); f != nil {
			out = append(out, *f)
		}
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].NID < out[j].NID
	})
	return out
}

// Active returns the current state of every NID not yet retired, keyed by NID
func (l *Ledger) Active(kind domain.FeatureKind) map[domain.NID]domain.Feature {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[domain.NID]domain.Feature)
	for nid, h := range l.byNID {
		last := h[len(h)-1]
		if last.Effect == domain.EffectRetirement || last.Kind != kind {
			continue
		}
		if f := Replay(h, last.Timestamp); f != nil {
			out[nid] = *f
		}
	}
	return out
}

// Store returns the backing store, nil for an in-memory ledger
func (l *Ledger) Store() repository.LedgerStore {
	return l.store
}

// Close closes the backing store
func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

func cloneFeature(f *domain.Feature) *domain.Feature {
	if f == nil {
		return nil
	}
	c := f.Clone()
	return &c
}
