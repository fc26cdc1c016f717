package compare

import (
	"nvdiff/internal/domain"
	"nvdiff/internal/registry"
	"nvdiff/internal/topology"
)

// reconcileJunctions pairs new junctions with old ones and classifies them.
//
// Under the topological method a junction bounding a continued element first
// inherits the old junction at the corresponding end, even if it moved. Any
// junction still unpaired is then matched by position. Each old junction is
// used at most once.
func (c *Comparator) reconcileJunctions(reg *registry.Registry, old, cur *topology.Network, continued []domain.Pair) []Outcome {
	assigned := make(map[string]*domain.Junction)
	usedOld := make(map[string]bool)
	assign := func(nj, oj *domain.Junction) {
		if _, done := assigned[nj.Key]; done || usedOld[oj.Key] {
			return
		}
		assigned[nj.Key] = oj
		usedOld[oj.Key] = true
	}

	if c.method == domain.MethodTopological {
		for _, p := range continued {
			of, ot, err := old.JunctionsOf(p.Old)
			if err != nil {
				continue
			}
			nf, nt, err := cur.JunctionsOf(p.New)
			if err != nil {
				continue
			}
			direct := of.Position.Distance(nf.Position) + ot.Position.Distance(nt.Position)
			swapped := of.Position.Distance(nt.Position) + ot.Position.Distance(nf.Position)
			if swapped < direct {
				nf, nt = nt, nf
			}
			assign(nf, of)
			assign(nt, ot)
		}
	}

	for _, nj := range cur.Junctions() {
		if _, done := assigned[nj.Key]; done {
			continue
		}
		if oj, ok := old.JunctionAt(nj.Position); ok {
			assign(nj, oj)
		}
	}

	var out []Outcome
	for _, nj := range cur.Junctions() {
		oj, ok := assigned[nj.Key]
		if !ok || oj.NID == "" {
			out = append(out, c.addJunction(reg, nj))
			continue
		}

		o := Outcome{
			Kind:   domain.KindJunction,
			OldKey: oj.Key,
			NewKey: nj.Key,
			NID:    oj.NID,
			Effect: junctionEffect(oj, nj, c.tolerance),
		}
		if err := reg.Bind(oj.NID, junctionSlot(nj.Key)); err != nil {
			o.Err = err
			out = append(out, o)
			continue
		}
		o.State = junctionState(nj, oj.NID)
		out = append(out, o)
	}

	for _, oj := range old.Junctions() {
		if usedOld[oj.Key] || oj.NID == "" {
			continue
		}
		out = append(out, Outcome{
			Kind:   domain.KindJunction,
			OldKey: oj.Key,
			NID:    oj.NID,
			Effect: domain.EffectRetirement,
			Reason: "no junction at this position",
		})
	}
	return out
}

func (c *Comparator) addJunction(reg *registry.Registry, nj *domain.Junction) Outcome {
	nid := reg.Issue()
	o := Outcome{
		Kind:   domain.KindJunction,
		NewKey: nj.Key,
		NID:    nid,
		Effect: domain.EffectAddition,
	}
	if err := reg.Bind(nid, junctionSlot(nj.Key)); err != nil {
		o.Err = err
		return o
	}
	o.State = junctionState(nj, nid)
	return o
}

func junctionEffect(oj, nj *domain.Junction, tolerance float64) domain.Effect {
	if !topology.SamePosition(oj, nj, tolerance) {
		return domain.EffectGeometricModification
	}
	if !domain.AttributesEqual(oj.Feature().Attributes, nj.Feature().Attributes) {
		return domain.EffectDescriptiveModification
	}
	return domain.EffectConfirmation
}

func junctionState(nj *domain.Junction, nid domain.NID) *domain.Feature {
	f := nj.Feature()
	f.NID = nid
	return &f
}
