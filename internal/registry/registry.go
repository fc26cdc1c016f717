// Package registry issues persistent identifiers (NIDs) and records which
// object each NID is bound to in the current generation.
//
// The registry never decides correspondence between snapshots. The comparator
// does that and reports its decision through Bind; the registry only enforces
// that a NID, once bound, is never rebound to a different object.
package registry

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"nvdiff/internal/domain"
)

// KnownFunc reports whether a NID has ever been issued, typically backed by
// the lifecycle ledger
type KnownFunc func(nid domain.NID) bool

// Registry tracks NID bindings for one comparison cycle
type Registry struct {
	known KnownFunc

	mu     sync.Mutex
	issued map[domain.NID]struct{}
	byKey  map[string]domain.NID
	byNID  map[domain.NID]string
	prior  map[string]domain.NID
}

// New creates a registry. known may be nil when no history exists.
func New(known KnownFunc) *Registry {
	return &Registry{
		known:  known,
		issued: make(map[domain.NID]struct{}),
		byKey:  make(map[string]domain.NID),
		byNID:  make(map[domain.NID]string),
		prior:  make(map[string]domain.NID),
	}
}

// NewNID generates a 128-bit random identifier rendered as 32 hex characters
func NewNID() domain.NID {
	return domain.NID(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// Issue returns a NID never issued before. Generation itself takes no lock;
// only the uniqueness bookkeeping does.
func (r *Registry) Issue() domain.NID {
	for {
		nid := NewNID()
		if r.known != nil && r.known(nid) {
			continue
		}

		r.mu.Lock()
		_, dup := r.issued[nid]
		_, seeded := r.byNID[nid]
		if !dup && !seeded {
			r.issued[nid] = struct{}{}
			r.mu.Unlock()
			return nid
		}
		r.mu.Unlock()
	}
}

// Seed records the binding an object had in the previous snapshot. Seeded
// bindings answer Lookup for old objects and are never reissued.
func (r *Registry) Seed(nid domain.NID, oldKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prior[oldKey] = nid
	r.issued[nid] = struct{}{}
}

// Lookup resolves the NID an old object carries, which a corresponding new
// object inherits
func (r *Registry) Lookup(oldKey string) (domain.NID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nid, ok := r.prior[oldKey]
	return nid, ok
}

// Bind records that nid identifies the object newKey in the new generation.
// Binding the same pair twice is a no-op; any other rebinding fails with an
// identifier conflict.
func (r *Registry) Bind(nid domain.NID, newKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bound, ok := r.byNID[nid]; ok && bound != newKey {
		return &domain.ConflictError{NID: nid, Key: newKey, Existing: bound}
	}
	if bound, ok := r.byKey[newKey]; ok && bound != nid {
		return &domain.ConflictError{NID: nid, Key: newKey, Existing: string(bound)}
	}

	r.byNID[nid] = newKey
	r.byKey[newKey] = nid
	return nil
}

// Bound returns the NID bound to a new-generation key
func (r *Registry) Bound(newKey string) (domain.NID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nid, ok := r.byKey[newKey]
	return nid, ok
}

// Bindings returns a copy of the current generation's key to NID map
func (r *Registry) Bindings() map[string]domain.NID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]domain.NID, len(r.byKey))
	for k, v := range r.byKey {
		out[k] = v
	}
	return out
}
