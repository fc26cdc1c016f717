package domain

import (
	"crypto/sha256"
	"fmt"
	"maps"
	"math"
	"strings"
)

// NID is a persistent identifier, 32 lowercase hex characters
type NID string

// Common provenance attributes carried by every record. The comparator treats
// them as opaque descriptive fields.
const (
	AttrDatasetName = "datasetnam"
	AttrSpecVersion = "specvers"
	AttrAcqTech     = "acqtech"
	AttrProvider    = "provider"
	AttrJuncType    = "junctype"
	AttrRoadNID     = "roadnid"
)

// LinearElement is a versioned network edge between two junctions
type LinearElement struct {
	Key        string            `json:"key" yaml:"key"`
	NID        NID               `json:"nid,omitempty" yaml:"nid,omitempty"`
	Geometry   LineString        `json:"geometry" yaml:"geometry"`
	From       string            `json:"from_junction,omitempty" yaml:"from_junction,omitempty"`
	To         string            `json:"to_junction,omitempty" yaml:"to_junction,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Segments   []Segment         `json:"segments,omitempty" yaml:"segments,omitempty"`
	Effect     Effect            `json:"effect,omitempty" yaml:"effect,omitempty"`
}

// NewLinearElement creates an element with initialized attributes
func NewLinearElement(key string, geometry LineString) *LinearElement {
	return &LinearElement{
		Key:        key,
		Geometry:   geometry,
		Attributes: make(map[string]string),
	}
}

// SetAttribute sets a descriptive attribute
func (e *LinearElement) SetAttribute(key, value string) {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
}

// Attribute gets a descriptive attribute
func (e *LinearElement) Attribute(key string) (string, bool) {
	if e.Attributes == nil {
		return "", false
	}
	val, ok := e.Attributes[key]
	return val, ok
}

// Clone returns a deep copy; cycles never mutate input records
func (e *LinearElement) Clone() *LinearElement {
	out := *e
	out.Geometry = e.Geometry.Clone()
	out.Attributes = maps.Clone(e.Attributes)
	if e.Segments != nil {
		out.Segments = make([]Segment, len(e.Segments))
		for i, s := range e.Segments {
			out.Segments[i] = s.Clone()
		}
	}
	return &out
}

// Feature returns the replayable state of the element
func (e *LinearElement) Feature() Feature {
	return Feature{
		Kind:       KindElement,
		NID:        e.NID,
		Key:        e.Key,
		Geometry:   e.Geometry.Clone(),
		Attributes: maps.Clone(e.Attributes),
	}
}

// Segmented reports whether the element is stored as attribute segments
func (e *LinearElement) Segmented() bool {
	return len(e.Segments) > 0
}

// GeometryKey creates a deterministic key for the element's geometry with
// coordinates snapped to a grid of size tol. Direction is normalized so a
// reversed line yields the same key.
func (e *LinearElement) GeometryKey(tol float64) string {
	return GeometryKey(e.Geometry, tol)
}

// GeometryKey is the free-standing form of LinearElement.GeometryKey
func GeometryKey(l LineString, tol float64) string {
	forward := snapCoords(l, tol)
	backward := snapCoords(l.Reversed(), tol)
	key := forward
	if backward < forward {
		key = backward
	}
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash[:16])
}

func snapCoords(l LineString, tol float64) string {
	var b strings.Builder
	for _, p := range l {
		x, y := p.X, p.Y
		if tol > 0 {
			x = math.Round(x/tol) * tol
			y = math.Round(y/tol) * tol
		}
		fmt.Fprintf(&b, "%.9f,%.9f;", x, y)
	}
	return b.String()
}

// AttributesEqual compares two descriptive attribute maps. Missing keys and
// empty values are treated alike.
func AttributesEqual(a, b map[string]string) bool {
	for k, va := range a {
		if b[k] != va {
			return false
		}
	}
	for k, vb := range b {
		if a[k] != vb {
			return false
		}
	}
	return true
}
