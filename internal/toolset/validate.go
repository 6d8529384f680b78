package toolset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// ErrNoTemplates is returned when validation is asked to check nothing.
var ErrNoTemplates = errors.New("no toolset templates for host")

// MissingBinaryError reports the first required binary absent under a root.
type MissingBinaryError struct {
	Root   string
	Triple Triple
	Path   string
	Err    error
}

func (e *MissingBinaryError) Error() string {
	return fmt.Sprintf("%s: missing %s", e.Triple, e.Path)
}

func (e *MissingBinaryError) Unwrap() error { return e.Err }

// Validate checks that every template's archiver and linker exist under root.
// It stops at the first missing path.
func Validate(root string, templates map[Triple]Template) error {
	if len(templates) == 0 {
		return ErrNoTemplates
	}
	for _, triple := range SortedTriples(templates) {
		tpl := templates[triple]
		for _, rel := range []string{tpl.Archiver, tpl.Linker} {
			p := filepath.Join(root, filepath.FromSlash(rel))
			if _, err := os.Stat(p); err != nil {
				return &MissingBinaryError{Root: root, Triple: triple, Path: p, Err: err}
			}
		}
	}
	return nil
}

// Bind validates root and joins it with every template.
func Bind(root string, templates map[Triple]Template) (mapset.Set[Resolved], error) {
	if err := Validate(root, templates); err != nil {
		return nil, err
	}
	set := mapset.NewSetWithSize[Resolved](len(templates))
	for triple, tpl := range templates {
		set.Add(Resolved{
			Triple:   triple,
			Archiver: filepath.Join(root, filepath.FromSlash(tpl.Archiver)),
			Linker:   filepath.Join(root, filepath.FromSlash(tpl.Linker)),
		})
	}
	return set, nil
}

// Sorted returns the members of set ordered by triple.
func Sorted(set mapset.Set[Resolved]) []Resolved {
	if set == nil {
		return nil
	}
	items := set.ToSlice()
	sort.Slice(items, func(i, j int) bool { return items[i].Triple < items[j].Triple })
	return items
}
