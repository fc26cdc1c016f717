package compare

import (
	"nvdiff/internal/domain"
)

// Side names which snapshot an outcome's object belongs to
type Side string

const (
	SideOld Side = "old"
	SideNew Side = "new"
)

// Outcome is the classification of one object in one cycle. A pair whose
// continuity is broken yields two outcomes: the Retirement of the old object
// and the Addition of the new one.
type Outcome struct {
	Kind   domain.FeatureKind
	OldKey string
	NewKey string
	NID    domain.NID
	Effect domain.Effect
	Reason string

	// Segments holds one raw effect per segment of a segmented new element
	Segments []domain.Effect

	// State is the object's replayable state; nil for Retirement
	State *domain.Feature

	// Err marks an object that could not be finalized
	Err error
}

// Side returns the snapshot the outcome's key refers to
func (o Outcome) Side() Side {
	if o.Effect == domain.EffectRetirement || o.NewKey == "" {
		return SideOld
	}
	return SideNew
}

// Key returns the snapshot-local key of the object
func (o Outcome) Key() string {
	if o.Side() == SideOld {
		return o.OldKey
	}
	return o.NewKey
}

// Failed reports whether the object could not be finalized
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Result is the full output of one comparison
type Result struct {
	Method    domain.ComparisonMethod
	Elements  []Outcome
	Junctions []Outcome
}

// Outcomes returns element outcomes followed by junction outcomes
func (r *Result) Outcomes() []Outcome {
	out := make([]Outcome, 0, len(r.Elements)+len(r.Junctions))
	out = append(out, r.Elements...)
	return append(out, r.Junctions...)
}

// Failed returns the outcomes that carry an error
func (r *Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes() {
		if o.Failed() {
			out = append(out, o)
		}
	}
	return out
}

// Counts tallies successful outcomes by effect
func (r *Result) Counts(kind domain.FeatureKind) map[domain.Effect]int {
	counts := make(map[domain.Effect]int, len(domain.AllEffects))
	for _, o := range r.Outcomes() {
		if o.Kind == kind && !o.Failed() {
			counts[o.Effect]++
		}
	}
	return counts
}

// ForNew finds the successful outcome of a new-snapshot object
func (r *Result) ForNew(kind domain.FeatureKind, key string) (Outcome, bool) {
	for _, o := range r.Outcomes() {
		if o.Kind == kind && o.NewKey == key && o.Effect != domain.EffectRetirement && !o.Failed() {
			return o, true
		}
	}
	return Outcome{}, false
}
