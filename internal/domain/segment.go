package domain

import "maps"

// Segment is a run of homogeneous attributes along a linear element. It shares
// the owning element's NID and never outlives it.
type Segment struct {
	Index      int               `json:"index" yaml:"index"`
	Geometry   LineString        `json:"geometry" yaml:"geometry"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	NID        NID               `json:"nid,omitempty" yaml:"nid,omitempty"`
	Effect     Effect            `json:"effect,omitempty" yaml:"effect,omitempty"`
}

// Clone returns a deep copy
func (s Segment) Clone() Segment {
	s.Geometry = s.Geometry.Clone()
	s.Attributes = maps.Clone(s.Attributes)
	return s
}
