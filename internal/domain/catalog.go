package domain

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Garage is a catalog entry: a canonical name and its total capacity.
type Garage struct {
	Name     string `yaml:"name" json:"name"`
	Capacity int    `yaml:"capacity" json:"capacity"`
}

// Catalog is the immutable set of garages the service reports on.
// The zero value is an empty catalog.
type Catalog struct {
	garages []Garage
	index   map[string]int
}

type catalogFile struct {
	Garages []Garage `yaml:"garages"`
}

// NewCatalog validates the entries and builds a Catalog. Names are trimmed;
// they must be non-empty and unique, and capacities must be positive.
func NewCatalog(garages ...Garage) (*Catalog, error) {
	if len(garages) == 0 {
		return nil, errors.New("catalog has no garages")
	}

	c := &Catalog{
		garages: make([]Garage, 0, len(garages)),
		index:   make(map[string]int, len(garages)),
	}
	for i, g := range garages {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog entry %d: empty name", i)
		}
		if g.Capacity <= 0 {
			return nil, fmt.Errorf("catalog entry %q: capacity must be positive, got %d", name, g.Capacity)
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("catalog entry %q: duplicate name", name)
		}
		c.index[name] = len(c.garages)
		c.garages = append(c.garages, Garage{Name: name, Capacity: g.Capacity})
	}
	return c, nil
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return NewCatalog(f.Garages...)
}

// DefaultCatalog returns the compiled-in catalog of the reference deployment.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// Capacity returns the total capacity for an exact garage name.
func (c *Catalog) Capacity(name string) (int, bool) {
	if c == nil {
		return 0, false
	}
	i, ok := c.index[name]
	if !ok {
		return 0, false
	}
	return c.garages[i].Capacity, true
}

// Garages returns a copy of the catalog entries in declaration order.
func (c *Catalog) Garages() []Garage {
	if c == nil {
		return nil
	}
	out := make([]Garage, len(c.garages))
	copy(out, c.garages)
	return out
}

// Len returns the number of garages in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.garages)
}
