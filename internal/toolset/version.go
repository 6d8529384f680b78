package toolset

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const sourcePropertiesFile = "source.properties"

// ErrNoRevision is returned when an NDK root carries no Pkg.Revision entry.
var ErrNoRevision = errors.New("ndk revision not recorded")

// ReadRevision parses Pkg.Revision from the source.properties file shipped at
// the top of every NDK distribution.
func ReadRevision(root string) (*semver.Version, error) {
	f, err := os.Open(filepath.Join(root, sourcePropertiesFile))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", sourcePropertiesFile, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok || strings.TrimSpace(key) != "Pkg.Revision" {
			continue
		}
		v, err := semver.NewVersion(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("parse ndk revision %q: %w", strings.TrimSpace(value), err)
		}
		return v, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", sourcePropertiesFile, err)
	}
	return nil, ErrNoRevision
}

// MeetsMinimum reports whether rev satisfies the minimum revision. An empty
// minimum is always satisfied.
func MeetsMinimum(rev *semver.Version, minimum string) (bool, error) {
	minimum = strings.TrimSpace(minimum)
	if minimum == "" {
		return true, nil
	}
	if rev == nil {
		return false, nil
	}
	c, err := semver.NewConstraint(">= " + minimum)
	if err != nil {
		return false, fmt.Errorf("parse minimum revision %q: %w", minimum, err)
	}
	return c.Check(rev), nil
}
