package domain

import (
	"fmt"
	"maps"
	"time"
)

// PointFeature is a point record linked to the network by the NID of the
// nearest element (blocked passages, toll points)
type PointFeature struct {
	Key        string            `json:"key" yaml:"key"`
	Table      string            `json:"table" yaml:"table"`
	Position   Point             `json:"position" yaml:"position"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Snapshot is one delivered vintage of a dataset. Snapshots are read-only once
// loaded; a comparison cycle produces new records instead of mutating them.
type Snapshot struct {
	Dataset   string          `json:"dataset" yaml:"dataset"`
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
	Elements  []LinearElement `json:"elements" yaml:"elements"`
	Junctions []Junction      `json:"junctions,omitempty" yaml:"junctions,omitempty"`
	Points    []PointFeature  `json:"points,omitempty" yaml:"points,omitempty"`
}

// NewSnapshot creates an empty snapshot
func NewSnapshot(dataset string, ts time.Time) *Snapshot {
	return &Snapshot{
		Dataset:   dataset,
		Timestamp: ts,
		Elements:  make([]LinearElement, 0),
	}
}

// AddElement adds an element to the snapshot
func (s *Snapshot) AddElement(e LinearElement) {
	s.Elements = append(s.Elements, e)
}

// AddJunction adds a producer-supplied junction record
func (s *Snapshot) AddJunction(j Junction) {
	s.Junctions = append(s.Junctions, j)
}

// AddPoint adds a point feature
func (s *Snapshot) AddPoint(p PointFeature) {
	s.Points = append(s.Points, p)
}

// Element finds an element by key
func (s *Snapshot) Element(key string) (*LinearElement, bool) {
	for i := range s.Elements {
		if s.Elements[i].Key == key {
			return &s.Elements[i], true
		}
	}
	return nil, false
}

// Validate checks the structural requirements a snapshot must meet before it
// can be compared: unique non-empty keys, usable geometry and segments that
// lie on their element within tolerance and carry its NID or none. When
// requireNID is set every element must already carry a NID.
func (s *Snapshot) Validate(requireNID bool, tolerance float64) error {
	seen := make(map[string]struct{}, len(s.Elements))
	for i := range s.Elements {
		e := &s.Elements[i]
		if e.Key == "" {
			return fmt.Errorf("element %d: empty key", i)
		}
		if _, dup := seen[e.Key]; dup {
			return fmt.Errorf("element %s: duplicate key", e.Key)
		}
		seen[e.Key] = struct{}{}
		if !e.Geometry.Valid() {
			return fmt.Errorf("element %s: %w", e.Key, ErrInvalidGeometry)
		}
		if requireNID && e.NID == "" {
			return fmt.Errorf("element %s: missing nid", e.Key)
		}
		for j := range e.Segments {
			if err := e.validateSegment(&e.Segments[j], tolerance); err != nil {
				return fmt.Errorf("element %s segment %d: %w", e.Key, j, err)
			}
		}
	}
	return nil
}

func (e *LinearElement) validateSegment(seg *Segment, tolerance float64) error {
	if !seg.Geometry.Valid() {
		return ErrInvalidGeometry
	}
	if !e.Geometry.Covers(seg.Geometry, tolerance) {
		return fmt.Errorf("does not lie on the element: %w", ErrInvalidGeometry)
	}
	if seg.NID != "" && seg.NID != e.NID {
		return fmt.Errorf("nid %s differs from element nid %q", seg.NID, e.NID)
	}
	return nil
}

// Clone returns a deep copy
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Dataset:   s.Dataset,
		Timestamp: s.Timestamp,
		Elements:  make([]LinearElement, len(s.Elements)),
	}
	for i := range s.Elements {
		out.Elements[i] = *s.Elements[i].Clone()
	}
	for i := range s.Junctions {
		out.Junctions = append(out.Junctions, *s.Junctions[i].Clone())
	}
	for _, p := range s.Points {
		p.Attributes = maps.Clone(p.Attributes)
		out.Points = append(out.Points, p)
	}
	return out
}
