package domain

import "maps"

// JunctionType classifies a network node
type JunctionType string

const (
	JunctionIntersection JunctionType = "Intersection" // three or more lines meet
	JunctionDeadEnd      JunctionType = "DeadEnd"      // end of a line touching nothing else
	JunctionFerry        JunctionType = "Ferry"        // road meets ferry route
	JunctionNatProvTer   JunctionType = "NatProvTer"   // dataset boundary crossing
)

// Junction is a network node bounding one or more linear elements
type Junction struct {
	Key        string            `json:"key" yaml:"key"`
	NID        NID               `json:"nid,omitempty" yaml:"nid,omitempty"`
	Position   Point             `json:"position" yaml:"position"`
	Type       JunctionType      `json:"type,omitempty" yaml:"type,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`

	// Incident holds the keys of elements bounded by this junction. The
	// topology model owns the elements; these are lookups only.
	Incident []string `json:"-" yaml:"-"`

	Effect Effect `json:"effect,omitempty" yaml:"effect,omitempty"`
}

// NewJunction creates a junction with initialized attributes
func NewJunction(key string, position Point) *Junction {
	return &Junction{
		Key:        key,
		Position:   position,
		Attributes: make(map[string]string),
	}
}

// Degree returns the number of incident elements
func (j *Junction) Degree() int {
	return len(j.Incident)
}

// InferType derives the junction type from its degree unless the producer
// supplied one explicitly
func (j *Junction) InferType() JunctionType {
	if j.Type != "" {
		return j.Type
	}
	if j.Degree() >= 3 {
		return JunctionIntersection
	}
	return JunctionDeadEnd
}

// Clone returns a deep copy
func (j *Junction) Clone() *Junction {
	out := *j
	out.Attributes = maps.Clone(j.Attributes)
	out.Incident = append([]string(nil), j.Incident...)
	return &out
}

// Feature returns the replayable state of the junction
func (j *Junction) Feature() Feature {
	attrs := maps.Clone(j.Attributes)
	if attrs == nil {
		attrs = make(map[string]string)
	}
	attrs[AttrJuncType] = string(j.InferType())
	return Feature{
		Kind:       KindJunction,
		NID:        j.NID,
		Key:        j.Key,
		Geometry:   LineString{j.Position},
		Attributes: attrs,
	}
}
