package segment

import (
	"math"

	"nvdiff/internal/domain"
)

// Of returns the segments of an element. An unsegmented element is treated as
// a single segment spanning its whole geometry.
func Of(e *domain.LinearElement) []domain.Segment {
	if e.Segmented() {
		return e.Segments
	}
	return []domain.Segment{{
		Index:      0,
		Geometry:   e.Geometry,
		Attributes: e.Attributes,
		NID:        e.NID,
	}}
}

// span is the extent of a run along a reference line
type span struct {
	lo, hi float64
	ok     bool // at least one endpoint lies on the line
}

func locate(ref domain.LineString, run domain.LineString, tol float64) span {
	var sp span
	for _, p := range []domain.Point{run.Start(), run.End()} {
		m, d := ref.Locate(p)
		if d > tol {
			continue
		}
		if !sp.ok {
			sp = span{lo: m, hi: m, ok: true}
			continue
		}
		sp.lo = math.Min(sp.lo, m)
		sp.hi = math.Max(sp.hi, m)
	}
	return sp
}

// overlap is the shared length of two spans
func (s span) overlap(o span) float64 {
	if !s.ok || !o.ok {
		return 0
	}
	return math.Min(s.hi, o.hi) - math.Max(s.lo, o.lo)
}

// ClassifySegments assigns a raw effect to every attribute run of one element
// pair. oldGeom and newGeom are the geometries of the two elements.
//
// Runs are placed along the old element's geometry and compared with the old
// runs they overlap. A new run lying on the old geometry is a Confirmation
// when its attributes equal those of every old run it overlaps and a
// DescriptiveModification otherwise. A new run that overlaps old runs but
// leaves the old geometry is a GeometricModification. A new run sharing no
// extent with the old element is an Addition.
//
// The result holds one effect per new run in order, followed by one effect
// per old run no new run overlaps: DescriptiveModification when the new
// element still covers its extent, Retirement when that extent is gone.
// Splitting or merging runs under unchanged geometry therefore never yields
// an Addition or a Retirement.
func ClassifySegments(oldGeom, newGeom domain.LineString, old, cur []domain.Segment, tolerance float64) []domain.Effect {
	oldSpans := make([]span, len(old))
	for j := range old {
		oldSpans[j] = locate(oldGeom, old[j].Geometry, tolerance)
	}
	overlapped := make([]bool, len(old))

	effects := make([]domain.Effect, 0, len(cur)+len(old))
	for i := range cur {
		run := cur[i].Geometry
		sp := locate(oldGeom, run, tolerance)
		onOld := oldGeom.Covers(run, tolerance)

		var hits []int
		for j := range old {
			if sp.overlap(oldSpans[j]) > tolerance {
				hits = append(hits, j)
				overlapped[j] = true
			}
		}

		switch {
		case len(hits) == 0 && onOld:
			// a run over extent the old element had, but no old run did
			effects = append(effects, domain.EffectDescriptiveModification)
		case len(hits) == 0:
			effects = append(effects, domain.EffectAddition)
		case !onOld:
			effects = append(effects, domain.EffectGeometricModification)
		default:
			effect := domain.EffectConfirmation
			for _, j := range hits {
				if !domain.AttributesEqual(old[j].Attributes, cur[i].Attributes) {
					effect = domain.EffectDescriptiveModification
					break
				}
			}
			effects = append(effects, effect)
		}
	}

	for j := range old {
		if overlapped[j] {
			continue
		}
		if newGeom.Covers(old[j].Geometry, tolerance) {
			effects = append(effects, domain.EffectDescriptiveModification)
		} else {
			effects = append(effects, domain.EffectRetirement)
		}
	}
	return effects
}
