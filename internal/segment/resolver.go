// Package segment collapses per-segment effects of a segmented linear element
// into the single effect reported for its NID.
package segment

import (
	"errors"
	"fmt"

	"nvdiff/internal/domain"
)

// ErrNoSegments is returned when there is nothing to resolve
var ErrNoSegments = errors.New("no segment effects to resolve")

// Resolve returns the element-level effect for a set of raw segment effects.
//
// The highest-priority effect wins: Addition, then GeometricModification,
// then DescriptiveModification, then Confirmation. Retirement is only the
// result when every segment was retired; a retired segment next to surviving
// ones means the element lost extent and counts as a GeometricModification.
func Resolve(effects []domain.Effect) (domain.Effect, error) {
	if len(effects) == 0 {
		return "", ErrNoSegments
	}

	retired := 0
	var best domain.Effect
	for _, e := range effects {
		if !e.Valid() {
			return "", fmt.Errorf("unknown segment effect %q", e)
		}
		if e == domain.EffectRetirement {
			retired++
			continue
		}
		if best == "" || e.Priority() > best.Priority() {
			best = e
		}
	}

	switch {
	case retired == len(effects):
		return domain.EffectRetirement, nil
	case retired > 0:
		return Max(best, domain.EffectGeometricModification), nil
	default:
		return best, nil
	}
}

// ResolveElement resolves the effects recorded on an element's segments.
// Every segment must carry the same NID.
func ResolveElement(segments []domain.Segment) (domain.NID, domain.Effect, error) {
	if len(segments) == 0 {
		return "", "", ErrNoSegments
	}

	nid := segments[0].NID
	effects := make([]domain.Effect, 0, len(segments))
	for _, s := range segments {
		if s.NID != nid {
			return "", "", fmt.Errorf("segment %d: nid %s differs from %s", s.Index, s.NID, nid)
		}
		effects = append(effects, s.Effect)
	}

	effect, err := Resolve(effects)
	if err != nil {
		return "", "", err
	}
	return nid, effect, nil
}

// Max returns the higher-priority of two effects. An empty effect loses to
// anything.
func Max(a, b domain.Effect) domain.Effect {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if b.Priority() > a.Priority() {
		return b
	}
	return a
}
