// Package topology builds the junction/element graph of one snapshot and
// answers adjacency questions about it.
//
// Junctions are derived from element endpoints snapped together within the
// geometric tolerance. Producer-supplied junction records are merged onto the
// same positions and keep their keys, types and attributes. Junctions refer
// to elements by key only; the Network owns every record.
package topology

import (
	"fmt"
	"math"
	"maps"

	"nvdiff/internal/domain"
)

type cell struct {
	x, y int64
}

// Network is the topology of one snapshot
type Network struct {
	tolerance float64
	cellSize  float64

	elements map[string]*domain.LinearElement
	order    []string

	junctions map[string]*domain.Junction
	jorder    []string
	grid      map[cell][]string
}

// Build creates the network for a snapshot's elements and junction records.
// Input records are cloned; the caller's snapshot is never modified.
func Build(elements []domain.LinearElement, records []domain.Junction, tolerance float64) (*Network, error) {
	if tolerance < 0 {
		return nil, fmt.Errorf("negative tolerance %g", tolerance)
	}

	n := &Network{
		tolerance: tolerance,
		cellSize:  tolerance,
		elements:  make(map[string]*domain.LinearElement, len(elements)),
		junctions: make(map[string]*domain.Junction),
		grid:      make(map[cell][]string),
	}
	if n.cellSize == 0 {
		n.cellSize = 1
	}

	for i := range records {
		rec := records[i]
		if existing := n.junctionNear(rec.Position); existing != nil {
			if rec.Type != "" {
				existing.Type = rec.Type
			}
			if rec.NID != "" && existing.NID == "" {
				existing.NID = rec.NID
			}
			if existing.Attributes == nil {
				existing.Attributes = make(map[string]string)
			}
			maps.Copy(existing.Attributes, rec.Attributes)
			continue
		}
		j := rec.Clone()
		j.Incident = nil
		if j.Key == "" {
			j.Key = n.nextJunctionKey()
		}
		if _, dup := n.junctions[j.Key]; dup {
			return nil, fmt.Errorf("junction %s: duplicate key", j.Key)
		}
		n.addJunction(j)
	}

	for i := range elements {
		e := elements[i].Clone()
		if !e.Geometry.Valid() {
			return nil, fmt.Errorf("element %s: %w", e.Key, domain.ErrInvalidGeometry)
		}
		if _, dup := n.elements[e.Key]; dup {
			return nil, fmt.Errorf("element %s: duplicate key", e.Key)
		}

		from := n.snap(e.Geometry.Start())
		to := n.snap(e.Geometry.End())
		e.From, e.To = from.Key, to.Key
		from.Incident = append(from.Incident, e.Key)
		if to != from {
			to.Incident = append(to.Incident, e.Key)
		}

		n.elements[e.Key] = e
		n.order = append(n.order, e.Key)
	}

	return n, nil
}

// Tolerance returns the positional tolerance the network was built with
func (n *Network) Tolerance() float64 {
	return n.tolerance
}

// Elements returns every element in input order
func (n *Network) Elements() []*domain.LinearElement {
	out := make([]*domain.LinearElement, 0, len(n.order))
	for _, k := range n.order {
		out = append(out, n.elements[k])
	}
	return out
}

// Element finds an element by key
func (n *Network) Element(key string) (*domain.LinearElement, bool) {
	e, ok := n.elements[key]
	return e, ok
}

// Junctions returns every junction in creation order
func (n *Network) Junctions() []*domain.Junction {
	out := make([]*domain.Junction, 0, len(n.jorder))
	for _, k := range n.jorder {
		out = append(out, n.junctions[k])
	}
	return out
}

// Junction finds a junction by key
func (n *Network) Junction(key string) (*domain.Junction, bool) {
	j, ok := n.junctions[key]
	return j, ok
}

// JunctionAt finds the junction within tolerance of p
func (n *Network) JunctionAt(p domain.Point) (*domain.Junction, bool) {
	j := n.junctionNear(p)
	return j, j != nil
}

// ElementsSharingJunction returns the elements bounded by a junction
func (n *Network) ElementsSharingJunction(junctionKey string) []*domain.LinearElement {
	j, ok := n.junctions[junctionKey]
	if !ok {
		return nil
	}
	out := make([]*domain.LinearElement, 0, len(j.Incident))
	for _, k := range j.Incident {
		if e, ok := n.elements[k]; ok {
			out = append(out, e)
		}
	}
	return out
}

// JunctionsOf returns the two junctions bounding an element
func (n *Network) JunctionsOf(elementKey string) (*domain.Junction, *domain.Junction, error) {
	e, ok := n.elements[elementKey]
	if !ok {
		return nil, nil, fmt.Errorf("element %s not found", elementKey)
	}
	from, okFrom := n.junctions[e.From]
	to, okTo := n.junctions[e.To]
	if !okFrom || !okTo {
		return nil, nil, fmt.Errorf("element %s: bounding junction missing", elementKey)
	}
	return from, to, nil
}

// SamePosition reports whether two junctions from different snapshots are
// the same node, judged by position alone
func SamePosition(a, b *domain.Junction, tolerance float64) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Position.Within(b.Position, tolerance)
}

// NearestElement finds the element closest to p, provided it lies within
// maxDist
func (n *Network) NearestElement(p domain.Point, maxDist float64) (*domain.LinearElement, float64, bool) {
	var best *domain.LinearElement
	bestDist := math.Inf(1)
	for _, k := range n.order {
		e := n.elements[k]
		if d := e.Geometry.DistanceTo(p); d < bestDist {
			best, bestDist = e, d
		}
	}
	if best == nil || bestDist > maxDist {
		return nil, 0, false
	}
	return best, bestDist, true
}

// snap returns the junction at p, creating it if none lies within tolerance
func (n *Network) snap(p domain.Point) *domain.Junction {
	if j := n.junctionNear(p); j != nil {
		return j
	}
	j := domain.NewJunction(n.nextJunctionKey(), p)
	n.addJunction(j)
	return j
}

func (n *Network) addJunction(j *domain.Junction) {
	n.junctions[j.Key] = j
	n.jorder = append(n.jorder, j.Key)
	c := n.cellOf(j.Position)
	n.grid[c] = append(n.grid[c], j.Key)
}

func (n *Network) junctionNear(p domain.Point) *domain.Junction {
	c := n.cellOf(p)
	var best *domain.Junction
	bestDist := math.Inf(1)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, k := range n.grid[cell{c.x + dx, c.y + dy}] {
				j := n.junctions[k]
				d := j.Position.Distance(p)
				if d <= n.tolerance && d < bestDist {
					best, bestDist = j, d
				}
			}
		}
	}
	return best
}

func (n *Network) cellOf(p domain.Point) cell {
	return cell{
		x: int64(math.Floor(p.X / n.cellSize)),
		y: int64(math.Floor(p.Y / n.cellSize)),
	}
}

func (n *Network) nextJunctionKey() string {
	for i := len(n.jorder); ; i++ {
		key := fmt.Sprintf("J%06d", i+1)
		if _, taken := n.junctions[key]; !taken {
			return key
		}
	}
}
