package schema

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var profileFS embed.FS

// Profile names a field set.
type Profile string

const (
	ProfileMinimal Profile = "minimal"
	ProfileFull    Profile = "full"
	ProfileLegacy  Profile = "legacy"
)

var profileAliases = map[string]Profile{
	"minimal":   ProfileMinimal,
	"demo":      ProfileMinimal,
	"questions": ProfileMinimal,
	"full":      ProfileFull,
	"intake":    ProfileFull,
	"legacy":    ProfileLegacy,
	"patient":   ProfileLegacy,
}

// ParseProfile resolves a profile name or alias.
func ParseProfile(s string) (Profile, error) {
	if p, ok := profileAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p, nil
	}
	return "", fmt.Errorf("unknown schema profile %q", s)
}

type profileFile struct {
	Name   Profile           `yaml:"name"`
	Fields []FieldDescriptor `yaml:"fields"`
}

// Catalog holds every profile registry.
type Catalog struct {
	registries map[Profile]*Registry
}

// LoadCatalog parses the embedded profile definitions.
func LoadCatalog() (*Catalog, error) {
	entries, err := profileFS.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	c := &Catalog{registries: make(map[Profile]*Registry)}
	for _, e := range entries {
		raw, err := profileFS.ReadFile("profiles/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read profile %s: %w", e.Name(), err)
		}
		reg, err := ParseRegistry(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse profile %s: %w", e.Name(), err)
		}
		c.registries[Profile(reg.Name())] = reg
	}
	for _, p := range []Profile{ProfileMinimal, ProfileFull, ProfileLegacy} {
		if _, ok := c.registries[p]; !ok {
			return nil, fmt.Errorf("profile %s is missing", p)
		}
	}
	return c, nil
}

// ParseRegistry builds a registry from a YAML profile document.
func ParseRegistry(raw []byte) (*Registry, error) {
	var pf profileFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, err
	}
	if pf.Name == "" {
		return nil, fmt.Errorf("profile has no name")
	}
	return NewRegistry(string(pf.Name), pf.Fields)
}

func (c *Catalog) Get(p Profile) (*Registry, error) {
	r, ok := c.registries[p]
	if !ok {
		return nil, fmt.Errorf("unknown schema profile %q", p)
	}
	return r, nil
}

func (c *Catalog) Profiles() []Profile {
	out := make([]Profile, 0, len(c.registries))
	for p := range c.registries {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
