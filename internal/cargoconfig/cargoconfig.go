// Package cargoconfig renders resolved toolsets as Cargo target stanzas.
package cargoconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	mapset "github.com/deckarep/golang-set/v2"

	"andrust/internal/toolset"
)

// RelativePath is where the configuration lives under a project root.
var RelativePath = filepath.Join(".cargo", "config")

// Entry is the body of one [target.<triple>] stanza.
type Entry struct {
	Archiver string `toml:"ar" json:"ar"`
	Linker   string `toml:"linker" json:"linker"`
}

type document struct {
	Target map[string]Entry `toml:"target"`
}

// Render produces one stanza per toolset in triple order, separated by a
// blank line.
func Render(set mapset.Set[toolset.Resolved]) ([]byte, error) {
	var buf bytes.Buffer
	for i, ts := range toolset.Sorted(set) {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "[target.%s]\n", ts.Triple)
		if err := toml.NewEncoder(&buf).Encode(Entry{Archiver: ts.Archiver, Linker: ts.Linker}); err != nil {
			return nil, fmt.Errorf("encode %s: %w", ts.Triple, err)
		}
	}
	return buf.Bytes(), nil
}

// Write renders set into <projectRoot>/.cargo/config, replacing any existing
// file. An empty projectRoot means the working directory.
func Write(set mapset.Set[toolset.Resolved], projectRoot string) (string, error) {
	if projectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine project root: %w", err)
		}
		projectRoot = wd
	}

	data, err := Render(set)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(projectRoot, RelativePath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create cargo dir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("write cargo config: %w", err)
	}
	return dest, nil
}

// Read decodes the target stanzas of an existing configuration file. Other
// tables in the file are ignored.
func Read(path string) (map[toolset.Triple]Entry, error) {
	var doc document
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("read cargo config: %w", err)
	}
	out := make(map[toolset.Triple]Entry, len(doc.Target))
	for name, entry := range doc.Target {
		out[toolset.Triple(name)] = entry
	}
	return out, nil
}
