package acquire

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ManifestFileName is the file, inside the data directory, that records
// completed acquisitions.
const ManifestFileName = "manifest.json"

// ManifestEntry records one extracted NDK.
type ManifestEntry struct {
	URL         string `json:"url"`
	Root        string `json:"root"`
	Archive     string `json:"archive"`
	Bytes       int64  `json:"bytes"`
	Entries     int    `json:"entries"`
	InstalledAt string `json:"installed_at"`
}

// Manifest maps extracted roots to their entries.
type Manifest struct {
	Entries map[string]ManifestEntry `json:"entries"`
}

// Sorted returns entries newest first.
func (m Manifest) Sorted() []ManifestEntry {
	out := make([]ManifestEntry, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].InstalledAt != out[j].InstalledAt {
			return out[i].InstalledAt > out[j].InstalledAt
		}
		return out[i].Root < out[j].Root
	})
	return out
}

// LoadManifest reads the manifest at path. A missing file yields an empty
// manifest.
func LoadManifest(path string) (Manifest, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{Entries: map[string]ManifestEntry{}}, nil
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(contents, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if manifest.Entries == nil {
		manifest.Entries = map[string]ManifestEntry{}
	}
	return manifest, nil
}

// SaveManifest replaces the manifest at path atomically.
func SaveManifest(path string, m Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare manifest directory: %w", err)
	}

	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "manifest-*.json")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("write manifest temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close manifest temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// recordInstall adds or replaces the entry for e.Root.
func recordInstall(path string, e ManifestEntry) error {
	m, err := LoadManifest(path)
	if err != nil {
		return err
	}
	if e.InstalledAt == "" {
		e.InstalledAt = time.Now().UTC().Format(time.RFC3339)
	}
	m.Entries[e.Root] = e
	return SaveManifest(path, m)
}
