package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to these so callers can use
// errors.Is regardless of the detail carried.
var (
	// ErrIdentifierConflict: a NID would be rebound to a different object.
	// Fatal for that object only.
	ErrIdentifierConflict = errors.New("identifier conflict")

	// ErrLifecycleViolation: the ledger sequence invariant would break. Signals
	// upstream data corruption; the whole cycle is flagged for review.
	ErrLifecycleViolation = errors.New("lifecycle violation")

	// ErrAmbiguousCorrespondence: a pairing cannot be classified under the
	// configured method. Recovered by Retirement + Addition.
	ErrAmbiguousCorrespondence = errors.New("ambiguous correspondence")

	// ErrInvalidGeometry: a linear element has fewer than two vertices
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrCycleFlagged: a comparison cycle was rejected for manual review
	ErrCycleFlagged = errors.New("cycle flagged for manual review")
)

// ConflictError reports an attempt to rebind a NID or an object key
type ConflictError struct {
	NID      NID
	Key      string
	Existing string // the key (or NID) the other side is already bound to
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: nid %s cannot bind to %s (bound to %s)",
		ErrIdentifierConflict, e.NID, e.Key, e.Existing)
}

func (e *ConflictError) Unwrap() error {
	return ErrIdentifierConflict
}

// LifecycleError reports an append that would break the ledger sequence
type LifecycleError struct {
	NID    NID
	Effect Effect
	Reason string
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s: nid %s, %s: %s", ErrLifecycleViolation, e.NID, e.Effect, e.Reason)
}

func (e *LifecycleError) Unwrap() error {
	return ErrLifecycleViolation
}

// AmbiguityError reports why a pairing could not be classified
type AmbiguityError struct {
	Key    string
	Reason string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrAmbiguousCorrespondence, e.Key, e.Reason)
}

func (e *AmbiguityError) Unwrap() error {
	return ErrAmbiguousCorrespondence
}
