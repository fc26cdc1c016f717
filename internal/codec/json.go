package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"nvdiff/internal/domain"
)

// JSONCodec reads and writes snapshots in the JSON encoding of
// domain.Snapshot. Geometry is written as {"x":..,"y":..} objects.
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse imports a snapshot from JSON. Unknown fields and a missing
// timestamp are rejected, as they are for YAML.
func (c *JSONCodec) Parse(r io.Reader) (*domain.Snapshot, error) {
	var s domain.Snapshot
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if s.Timestamp.IsZero() {
		return nil, errors.New("snapshot has no timestamp")
	}

	if s.Elements == nil {
		s.Elements = make([]domain.LinearElement, 0)
	}
	for i := range s.Elements {
		for j := range s.Elements[i].Segments {
			s.Elements[i].Segments[j].Index = j
		}
	}
	for i := range s.Junctions {
		if s.Junctions[i].Attributes == nil {
			s.Junctions[i].Attributes = make(map[string]string)
		}
	}
	return &s, nil
}

// Export writes a snapshot as indented JSON
func (c *JSONCodec) Export(s *domain.Snapshot, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
