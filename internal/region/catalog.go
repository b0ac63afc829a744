// Package region holds the geographic catalog of query units and the sampler
// that picks a bounded, region-balanced subset of them for one run.
package region

import (
	_ "embed"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed regions.yaml
var defaultCatalogYAML []byte

// Unit is one queryable city/zip pair inside a region.
type Unit struct {
	City string `yaml:"city" json:"city"`
	Zip  string `yaml:"zip" json:"zip"`
}

// Catalog maps state -> region -> units. State keys are full, title-cased
// names.
type Catalog struct {
	states map[string]map[string][]Unit
	byCity map[string]string // "city|state" lowercased -> region
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads a catalog from a YAML file. An empty path returns the
// built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "region: read catalog %s", path)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw map[string]map[string][]Unit
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "region: parse catalog")
	}
	if len(raw) == 0 {
		return nil, eris.New("region: catalog is empty")
	}

	c := &Catalog{
		states: make(map[string]map[string][]Unit, len(raw)),
		byCity: make(map[string]string),
	}
	for state, regions := range raw {
		full := NormalizeState(state)
		if full == "" {
			return nil, eris.New("region: catalog has a blank state key")
		}
		dst := c.states[full]
		if dst == nil {
			dst = make(map[string][]Unit, len(regions))
			c.states[full] = dst
		}
		for name, units := range regions {
			for i, u := range units {
				if strings.TrimSpace(u.City) == "" || strings.TrimSpace(u.Zip) == "" {
					return nil, eris.Errorf("region: %s/%s unit %d needs city and zip", full, name, i)
				}
				dst[name] = append(dst[name], Unit{City: strings.TrimSpace(u.City), Zip: strings.TrimSpace(u.Zip)})
				c.byCity[cityKey(u.City, full)] = name
			}
		}
	}
	return c, nil
}

// States returns the catalog's states in sorted order.
func (c *Catalog) States() []string {
	out := make([]string, 0, len(c.states))
	for s := range c.states {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Regions returns the sorted region names for a state.
func (c *Catalog) Regions(state string) []string {
	regions := c.states[NormalizeState(state)]
	out := make([]string, 0, len(regions))
	for r := range regions {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Units returns a copy of the units in one region.
func (c *Catalog) Units(state, region string) []Unit {
	units := c.states[NormalizeState(state)][region]
	out := make([]Unit, len(units))
	copy(out, units)
	return out
}

// UnitCount returns the total number of units across all states.
func (c *Catalog) UnitCount() int {
	n := 0
	for _, regions := range c.states {
		for _, units := range regions {
			n += len(units)
		}
	}
	return n
}

// RegionForCity resolves a city to its catalog region, or "" if unknown.
func (c *Catalog) RegionForCity(city, state string) string {
	return c.byCity[cityKey(city, NormalizeState(state))]
}

func cityKey(city, state string) string {
	return strings.ToLower(strings.Join(strings.Fields(city), " ")) + "|" + strings.ToLower(state)
}
