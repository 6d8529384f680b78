// Package toolsettest builds fake NDK installations for tests.
package toolsettest

import (
	"os"
	"path/filepath"
	"testing"

	"andrust/internal/toolset"
)

// Populate creates every archiver and linker named by templates under root.
func Populate(t testing.TB, root string, templates map[toolset.Triple]toolset.Template) {
	t.Helper()
	for _, tpl := range templates {
		for _, rel := range []string{tpl.Archiver, tpl.Linker} {
			p := filepath.Join(root, filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				t.Fatalf("mkdir %s: %v", filepath.Dir(p), err)
			}
			if err := os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755); err != nil {
				t.Fatalf("write %s: %v", p, err)
			}
		}
	}
}

// Templates returns a small fixed catalog independent of the running host.
func Templates() map[toolset.Triple]toolset.Template {
	host, _ := toolset.HostFor("linux")
	return toolset.TemplatesFor(host)
}
