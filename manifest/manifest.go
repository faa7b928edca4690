// Package manifest loads the list of paths to track and the source each
// path is snapshotted from
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/brettbedarf/vfs"
	"github.com/brettbedarf/vfs/snapshotters"
)

const defaultSourceType = snapshotters.LocalSourceType

// Entry is a tracked path bound to the snapshotter that observes it
type Entry struct {
	ID          uuid.UUID
	Path        string
	SourceType  string
	Snapshotter vfs.Snapshotter
}

type Manifest struct {
	Entries []Entry
}

// Paths returns the entry paths in manifest order
func (m *Manifest) Paths() []string {
	paths := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		paths[i] = e.Path
	}
	return paths
}

// Unmarshal parses a JSON manifest, building snapshotters with r
func Unmarshal(data []byte, r *snapshotters.Registry) (*Manifest, error) {
	var dto ManifestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	return convert(dto, r)
}

// UnmarshalYAML parses a YAML manifest, building snapshotters with r
func UnmarshalYAML(data []byte, r *snapshotters.Registry) (*Manifest, error) {
	// sources are kept generic so they can be handed to providers as JSON
	var raw struct {
		Entries []struct {
			Path   string         `yaml:"path"`
			ID     *string        `yaml:"id"`
			Source map[string]any `yaml:"source"`
		} `yaml:"entries"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	dto := ManifestDTO{Entries: make([]EntryDTO, 0, len(raw.Entries))}
	for i, e := range raw.Entries {
		entry := EntryDTO{Path: e.Path, ID: e.ID}
		if e.Source != nil {
			src, err := json.Marshal(e.Source)
			if err != nil {
				return nil, fmt.Errorf("entry %d: invalid source: %w", i, err)
			}
			entry.Source = src
		}
		dto.Entries = append(dto.Entries, entry)
	}
	return convert(dto, r)
}

// LoadFile reads a manifest. Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadFile(path string, r *snapshotters.Registry) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m *Manifest
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		m, err = UnmarshalYAML(data, r)
	case ".json":
		m, err = Unmarshal(data, r)
	default:
		return nil, fmt.Errorf("unknown manifest file extension: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest %s: %w", path, err)
	}
	return m, nil
}

func convert(dto ManifestDTO, r *snapshotters.Registry) (*Manifest, error) {
	m := &Manifest{Entries: make([]Entry, 0, len(dto.Entries))}
	for i, e := range dto.Entries {
		entry, err := convertEntry(e, r)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		m.Entries = append(m.Entries, entry)
	}
	return m, nil
}

func convertEntry(dto EntryDTO, r *snapshotters.Registry) (Entry, error) {
	if strings.TrimSpace(dto.Path) == "" {
		return Entry{}, fmt.Errorf("path is required")
	}

	id := uuid.New()
	if dto.ID != nil {
		parsed, err := uuid.Parse(*dto.ID)
		if err != nil {
			return Entry{}, fmt.Errorf("invalid id %q: %w", *dto.ID, err)
		}
		id = parsed
	}

	raw := []byte(dto.Source)
	if len(raw) == 0 {
		raw = []byte(fmt.Sprintf(`{"type":%q}`, defaultSourceType))
	}
	var src SourceDTO
	if err := json.Unmarshal(raw, &src); err != nil {
		return Entry{}, fmt.Errorf("invalid source: %w", err)
	}

	s, err := r.NewSnapshotter(raw)
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		ID:          id,
		Path:        dto.Path,
		SourceType:  src.Type,
		Snapshotter: s,
	}, nil
}
