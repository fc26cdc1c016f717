// Package codec reads and writes snapshots and change logs.
//
// Snapshots are exchanged as YAML or JSON. The format is picked from the
// file extension. Exported snapshots carry the NID and effect assigned to
// every element, segment and junction.
package codec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"nvdiff/internal/domain"
)

// Importer interface for importing snapshots from various formats
type Importer interface {
	Parse(r io.Reader) (*domain.Snapshot, error)
	Format() string
}

// Exporter interface for exporting snapshots to various formats
type Exporter interface {
	Export(s *domain.Snapshot, w io.Writer) error
	Format() string
}

// Codec is both an Importer and an Exporter
type Codec interface {
	Importer
	Exporter
}

// ForPath returns the codec matching a file extension
func ForPath(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAMLCodec(), nil
	case ".json":
		return NewJSONCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", filepath.Ext(path))
	}
}

// ReadFile loads a snapshot from disk
func ReadFile(path string) (*domain.Snapshot, error) {
	c, err := ForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	s, err := c.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// WriteFile stores a snapshot on disk, creating parent directories
func WriteFile(path string, s *domain.Snapshot) error {
	c, err := ForPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := c.Export(s, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
