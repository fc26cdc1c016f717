package service

import (
	"nvdiff/internal/compare"
	"nvdiff/internal/domain"
	"nvdiff/internal/topology"
)

// annotate returns a copy of cur with the NID and effect of every surviving
// element, segment and junction. Junctions are taken from the network so
// derived junctions are included. Objects that failed keep an empty effect.
func annotate(cur *domain.Snapshot, net *topology.Network, res *compare.Result) *domain.Snapshot {
	out := cur.Clone()

	for i := range out.Elements {
		e := &out.Elements[i]
		if built, ok := net.Element(e.Key); ok {
			e.From, e.To = built.From, built.To
		}
		o, ok := res.ForNew(domain.KindElement, e.Key)
		if !ok {
			e.Effect = ""
			continue
		}
		e.NID = o.NID
		e.Effect = o.Effect
		for j := range e.Segments {
			e.Segments[j].NID = o.NID
			if j < len(o.Segments) {
				e.Segments[j].Effect = o.Segments[j]
			}
		}
	}

	out.Junctions = make([]domain.Junction, 0, len(net.Junctions()))
	for _, j := range net.Junctions() {
		c := j.Clone()
		c.Type = j.InferType()
		c.Incident = nil
		c.Effect = ""
		if o, ok := res.ForNew(domain.KindJunction, j.Key); ok {
			c.NID = o.NID
			c.Effect = o.Effect
		}
		out.Junctions = append(out.Junctions, *c)
	}
	return out
}

// linkPoints sets the roadnid of every point feature to the NID of the
// nearest element, searching no further than the longest vertex-to-vertex
// span in the network. It returns the number of unlinked points per table.
func linkPoints(out *domain.Snapshot, net *topology.Network) map[string]int {
	if len(out.Points) == 0 {
		return nil
	}

	nids := make(map[string]domain.NID, len(out.Elements))
	var reach float64
	for _, e := range out.Elements {
		nids[e.Key] = e.NID
		if l := e.Geometry.MaxSegmentLength(); l > reach {
			reach = l
		}
	}

	unlinked := make(map[string]int)
	for i := range out.Points {
		p := &out.Points[i]
		if p.Attributes == nil {
			p.Attributes = make(map[string]string)
		}
		e, _, ok := net.NearestElement(p.Position, reach)
		if !ok || nids[e.Key] == "" {
			delete(p.Attributes, domain.AttrRoadNID)
			unlinked[p.Table]++
			continue
		}
		p.Attributes[domain.AttrRoadNID] = string(nids[e.Key])
	}
	return unlinked
}
