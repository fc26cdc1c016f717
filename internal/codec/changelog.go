package codec

import (
	"fmt"
	"os"
	"path/filepath"

	"nvdiff/internal/domain"
)

// WriteChangeLogs writes one file per change log into dir and returns the
// paths written
func WriteChangeLogs(dir string, logs []domain.ChangeLog) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create change log dir: %w", err)
	}

	paths := make([]string, 0, len(logs))
	for _, l := range logs {
		path := filepath.Join(dir, l.Name())
		if err := os.WriteFile(path, []byte(l.Body()), 0644); err != nil {
			return paths, fmt.Errorf("write change log %s: %w", l.Name(), err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
