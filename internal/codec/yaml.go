package codec

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"nvdiff/internal/domain"
)

// timestamp layouts accepted on import; exports always use the first
var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// YAMLCodec handles YAML import/export. Coordinates are written as compact
// [x, y] pairs.
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlSnapshot represents the YAML structure for a snapshot
type yamlSnapshot struct {
	Dataset   string         `yaml:"dataset"`
	Timestamp string         `yaml:"timestamp"`
	Elements  []yamlElement  `yaml:"elements"`
	Junctions []yamlJunction `yaml:"junctions,omitempty"`
	Points    []yamlPoint    `yaml:"points,omitempty"`
}

type yamlElement struct {
	Key        string            `yaml:"key"`
	NID        string            `yaml:"nid,omitempty"`
	Effect     string            `yaml:"effect,omitempty"`
	Geometry   [][]float64       `yaml:"geometry,flow"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
	Segments   []yamlSegment     `yaml:"segments,omitempty"`
}

type yamlSegment struct {
	NID        string            `yaml:"nid,omitempty"`
	Effect     string            `yaml:"effect,omitempty"`
	Geometry   [][]float64       `yaml:"geometry,flow"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

type yamlJunction struct {
	Key        string            `yaml:"key"`
	NID        string            `yaml:"nid,omitempty"`
	Effect     string            `yaml:"effect,omitempty"`
	Type       string            `yaml:"type,omitempty"`
	Position   []float64         `yaml:"position,flow"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

type yamlPoint struct {
	Key        string            `yaml:"key"`
	Table      string            `yaml:"table"`
	Position   []float64         `yaml:"position,flow"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

// Parse imports a snapshot from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*domain.Snapshot, error) {
	var ys yamlSnapshot
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&ys); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	ts, err := ParseTimestamp(ys.Timestamp)
	if err != nil {
		return nil, err
	}
	s := domain.NewSnapshot(ys.Dataset, ts)

	for _, ye := range ys.Elements {
		geom, err := toLineString(ye.Geometry)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", ye.Key, err)
		}
		e := domain.LinearElement{
			Key:        ye.Key,
			NID:        domain.NID(ye.NID),
			Effect:     domain.Effect(ye.Effect),
			Geometry:   geom,
			Attributes: ye.Attributes,
		}
		for i, yseg := range ye.Segments {
			geom, err := toLineString(yseg.Geometry)
			if err != nil {
				return nil, fmt.Errorf("element %s segment %d: %w", ye.Key, i, err)
			}
			e.Segments = append(e.Segments, domain.Segment{
				Index:      i,
				NID:        domain.NID(yseg.NID),
				Effect:     domain.Effect(yseg.Effect),
				Geometry:   geom,
				Attributes: yseg.Attributes,
			})
		}
		s.AddElement(e)
	}

	for _, yj := range ys.Junctions {
		pos, err := toPoint(yj.Position)
		if err != nil {
			return nil, fmt.Errorf("junction %s: %w", yj.Key, err)
		}
		j := domain.NewJunction(yj.Key, pos)
		j.NID = domain.NID(yj.NID)
		j.Effect = domain.Effect(yj.Effect)
		j.Type = domain.JunctionType(yj.Type)
		for k, v := range yj.Attributes {
			j.Attributes[k] = v
		}
		s.AddJunction(*j)
	}

	for _, yp := range ys.Points {
		pos, err := toPoint(yp.Position)
		if err != nil {
			return nil, fmt.Errorf("point %s: %w", yp.Key, err)
		}
		s.AddPoint(domain.PointFeature{Key: yp.Key, Table: yp.Table, Position: pos, Attributes: yp.Attributes})
	}

	return s, nil
}

// Export exports a snapshot to YAML
func (c *YAMLCodec) Export(s *domain.Snapshot, w io.Writer) error {
	ys := yamlSnapshot{
		Dataset:   s.Dataset,
		Timestamp: s.Timestamp.UTC().Format(timestampLayouts[0]),
		Elements:  make([]yamlElement, 0, len(s.Elements)),
	}

	for _, e := range s.Elements {
		ye := yamlElement{
			Key:        e.Key,
			NID:        string(e.NID),
			Effect:     string(e.Effect),
			Geometry:   fromLineString(e.Geometry),
			Attributes: e.Attributes,
		}
		for _, seg := range e.Segments {
			ye.Segments = append(ye.Segments, yamlSegment{
				NID:        string(seg.NID),
				Effect:     string(seg.Effect),
				Geometry:   fromLineString(seg.Geometry),
				Attributes: seg.Attributes,
			})
		}
		ys.Elements = append(ys.Elements, ye)
	}

	for _, j := range s.Junctions {
		ys.Junctions = append(ys.Junctions, yamlJunction{
			Key:        j.Key,
			NID:        string(j.NID),
			Effect:     string(j.Effect),
			Type:       string(j.Type),
			Position:   []float64{j.Position.X, j.Position.Y},
			Attributes: j.Attributes,
		})
	}

	for _, p := range s.Points {
		ys.Points = append(ys.Points, yamlPoint{
			Key:        p.Key,
			Table:      p.Table,
			Position:   []float64{p.Position.X, p.Position.Y},
			Attributes: p.Attributes,
		})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&ys); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}

// ParseTimestamp parses a snapshot timestamp in any of the accepted layouts
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing snapshot timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid snapshot timestamp %q", s)
}

func toPoint(c []float64) (domain.Point, error) {
	if len(c) != 2 {
		return domain.Point{}, fmt.Errorf("coordinate needs 2 values, got %d", len(c))
	}
	return domain.NewPoint(c[0], c[1]), nil
}

func toLineString(coords [][]float64) (domain.LineString, error) {
	l := make(domain.LineString, 0, len(coords))
	for _, c := range coords {
		p, err := toPoint(c)
		if err != nil {
			return nil, err
		}
		l = append(l, p)
	}
	return l, nil
}

func fromLineString(l domain.LineString) [][]float64 {
	out := make([][]float64, len(l))
	for i, p := range l {
		out[i] = []float64{p.X, p.Y}
	}
	return out
}
