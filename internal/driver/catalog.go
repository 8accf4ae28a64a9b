package driver

import (
	"sort"
	"strings"
)

// Ref names a driver and the precondition it must pass in explicit mode.
// A Ref with an empty Name is the null driver.
type Ref struct {
	Name         string  `json:"name" yaml:"name"`
	Precondition Request `json:"precondition" yaml:"precondition"`
}

// IsNull reports whether r refers to no driver.
func (r Ref) IsNull() bool {
	return strings.TrimSpace(r.Name) == ""
}

// Catalog resolves driver names to the drivers available for loading.
type Catalog interface {
	Lookup(name string) (Ref, bool)
}

// MapCatalog is a Catalog backed by a map keyed by driver name.
type MapCatalog map[string]Ref

// NewMapCatalog indexes refs by name, skipping null refs.
func NewMapCatalog(refs ...Ref) MapCatalog {
	c := make(MapCatalog, len(refs))
	for _, r := range refs {
		if r.IsNull() {
			continue
		}
		c[strings.TrimSpace(r.Name)] = r
	}
	return c
}

func (c MapCatalog) Lookup(name string) (Ref, bool) {
	r, ok := c[strings.TrimSpace(name)]
	return r, ok
}

// Names returns the catalog's driver names in sorted order.
func (c MapCatalog) Names() []string {
	out := make([]string, 0, len(c))
	for name := range c {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
