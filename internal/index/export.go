package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// Export writes the committed snapshot as indented JSON to path. The file
// is replaced atomically so readers never see a half-written export.
func (s *Store) Export(path string) error {
	if path == "" {
		return fmt.Errorf("%w: export path is required", ErrInvalidInput)
	}
	snap := s.Snapshot()
	if !snap.Meta.Built() {
		return ErrEmptyIndex
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("index: export: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("index: export: create dir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("index: export %s: %w", path, err)
	}
	return nil
}

// DefaultExportPath is where Export writes when the caller names no file.
func (s *Store) DefaultExportPath() string {
	return filepath.Join(s.cfg.DataDir, "index.json")
}

// ExportPath resolves a caller-named export file. An empty name is the
// default path. Relative names are taken from the data directory, and the
// result must be a .json file inside it.
func (s *Store) ExportPath(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return s.DefaultExportPath(), nil
	}
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		return "", fmt.Errorf("%w: export file %q must end in .json", ErrInvalidInput, name)
	}

	root, err := filepath.Abs(s.cfg.DataDir)
	if err != nil {
		return "", fmt.Errorf("index: export: %w", err)
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: export file %q is outside the data directory %s", ErrInvalidInput, name, root)
	}
	return path, nil
}
