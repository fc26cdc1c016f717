package domain

import "maps"

// FeatureKind distinguishes the object classes tracked in the ledger
type FeatureKind string

const (
	KindElement  FeatureKind = "element"
	KindJunction FeatureKind = "junction"
)

// Feature is the state of one tracked object at one point in its life cycle
type Feature struct {
	Kind       FeatureKind       `json:"kind" yaml:"kind"`
	NID        NID               `json:"nid" yaml:"nid"`
	Key        string            `json:"key,omitempty" yaml:"key,omitempty"`
	Geometry   LineString        `json:"geometry" yaml:"geometry"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Clone returns a deep copy
func (f Feature) Clone() Feature {
	f.Geometry = f.Geometry.Clone()
	f.Attributes = maps.Clone(f.Attributes)
	return f
}
