package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LatestSubdir returns the most recently modified directory directly under
// container. On equal modification times the first entry in directory order
// wins.
func LatestSubdir(container string) (string, error) {
	entries, err := os.ReadDir(container)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", container, err)
	}

	var (
		latest string
		newest int64
	)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		mtime := info.ModTime().UnixNano()
		if latest == "" || mtime > newest {
			latest = entry.Name()
			newest = mtime
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no version directories in %s", container)
	}
	return filepath.Join(container, latest), nil
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
