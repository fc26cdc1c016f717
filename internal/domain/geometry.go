package domain

import (
	"fmt"
	"math"
)

// Point is a vertex in the dataset's planar coordinate space
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// NewPoint creates a point
func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the euclidean distance between two points
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Within reports whether q lies within tol of p
func (p Point) Within(q Point, tol float64) bool {
	return p.Distance(q) <= tol
}

func (p Point) String() string {
	return fmt.Sprintf("(%g %g)", p.X, p.Y)
}

// LineString is an ordered sequence of vertices
type LineString []Point

// Valid reports whether the line has at least two vertices
func (l LineString) Valid() bool {
	return len(l) >= 2
}

// Start returns the first vertex
func (l LineString) Start() Point {
	if len(l) == 0 {
		return Point{}
	}
	return l[0]
}

// End returns the last vertex
func (l LineString) End() Point {
	if len(l) == 0 {
		return Point{}
	}
	return l[len(l)-1]
}

// Reversed returns a copy with vertex order reversed
func (l LineString) Reversed() LineString {
	out := make(LineString, len(l))
	for i, p := range l {
		out[len(l)-1-i] = p
	}
	return out
}

// Clone returns an independent copy
func (l LineString) Clone() LineString {
	if l == nil {
		return nil
	}
	out := make(LineString, len(l))
	copy(out, l)
	return out
}

// Length returns the planar length of the line
func (l LineString) Length() float64 {
	var total float64
	for i := 1; i < len(l); i++ {
		total += l[i-1].Distance(l[i])
	}
	return total
}

// MaxSegmentLength returns the longest distance between adjacent vertices
func (l LineString) MaxSegmentLength() float64 {
	var longest float64
	for i := 1; i < len(l); i++ {
		if d := l[i-1].Distance(l[i]); d > longest {
			longest = d
		}
	}
	return longest
}

// EqualWithin reports whether both lines have the same vertices within tol.
// Digitizing direction is ignored: a reversed line is the same geometry.
func (l LineString) EqualWithin(other LineString, tol float64) bool {
	if len(l) != len(other) {
		return false
	}
	return sameVertices(l, other, tol) || sameVertices(l, other.Reversed(), tol)
}

func sameVertices(a, b LineString, tol float64) bool {
	for i := range a {
		if !a[i].Within(b[i], tol) {
			return false
		}
	}
	return true
}

// SameEndpoints reports whether both lines are bounded by the same two
// positions within tol, in either direction.
func (l LineString) SameEndpoints(other LineString, tol float64) bool {
	if !l.Valid() || !other.Valid() {
		return false
	}
	if l.Start().Within(other.Start(), tol) && l.End().Within(other.End(), tol) {
		return true
	}
	return l.Start().Within(other.End(), tol) && l.End().Within(other.Start(), tol)
}

// DistanceTo returns the shortest distance from p to the line
func (l LineString) DistanceTo(p Point) float64 {
	switch len(l) {
	case 0:
		return math.Inf(1)
	case 1:
		return l[0].Distance(p)
	}
	best := math.Inf(1)
	for i := 1; i < len(l); i++ {
		if d := segmentDistance(l[i-1], l[i], p); d < best {
			best = d
		}
	}
	return best
}

// Locate projects p onto the line. It returns the distance along the line
// from its start to the projected point, and the distance from p to it.
func (l LineString) Locate(p Point) (measure, dist float64) {
	switch len(l) {
	case 0:
		return 0, math.Inf(1)
	case 1:
		return 0, l[0].Distance(p)
	}
	dist = math.Inf(1)
	walked := 0.0
	for i := 1; i < len(l); i++ {
		a, b := l[i-1], l[i]
		q, t := project(a, b, p)
		if d := p.Distance(q); d < dist {
			dist = d
			measure = walked + t*a.Distance(b)
		}
		walked += a.Distance(b)
	}
	return measure, dist
}

// Covers reports whether every vertex of other lies on l within tol
func (l LineString) Covers(other LineString, tol float64) bool {
	for _, p := range other {
		if l.DistanceTo(p) > tol {
			return false
		}
	}
	return true
}

// segmentDistance is the distance from p to the segment ab
func segmentDistance(a, b, p Point) float64 {
	q, _ := project(a, b, p)
	return p.Distance(q)
}

// project returns the point of segment ab closest to p and its parameter
// along ab in [0, 1]
func project(a, b, p Point) (Point, float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a, 0
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return Point{X: a.X + t*dx, Y: a.Y + t*dy}, t
}
