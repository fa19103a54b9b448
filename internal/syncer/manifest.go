// Package syncer compiles registry state into markdown documents and
// pushes them to targets declared in a YAML manifest.
package syncer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// manifestVersion is the only manifest schema this engine accepts.
const manifestVersion = "1"

// Filters narrow which registry rows a target receives. Status entries
// prefixed with "!" exclude that status.
type Filters struct {
	MinTier *float64 `yaml:"min_tier,omitempty"`
	MaxHops *int     `yaml:"max_hops,omitempty"`
	Status  []string `yaml:"status,omitempty"`
}

// Defaults apply to every target unless overridden.
type Defaults struct {
	Prefix  string   `yaml:"prefix,omitempty"`
	Sources []string `yaml:"sources,omitempty"`
	Filters *Filters `yaml:"filters,omitempty"`
}

// Target is one sync destination.
type Target struct {
	Name              string   `yaml:"name"`
	Project           string   `yaml:"project"`
	Prefix            string   `yaml:"prefix,omitempty"`
	Sources           []string `yaml:"sources,omitempty"`
	AdditionalSources []string `yaml:"additional_sources,omitempty"`
	Filters           *Filters `yaml:"filters,omitempty"`
	Enabled           *bool    `yaml:"enabled,omitempty"`
}

// Manifest is the parsed sync configuration. name_map translates
// registry project names into target-side display names; the "*" key
// is the fallback.
type Manifest struct {
	Version  string              `yaml:"version"`
	Defaults Defaults            `yaml:"defaults,omitempty"`
	NameMap  map[string][]string `yaml:"name_map,omitempty"`
	Targets  []Target            `yaml:"targets"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("manifest version %q not supported, want %q", m.Version, manifestVersion)
	}
	for i, t := range m.Targets {
		if t.Name == "" {
			return nil, fmt.Errorf("target %d: name is required", i)
		}
		if t.Project == "" {
			return nil, fmt.Errorf("target %q: project is required", t.Name)
		}
	}
	return &m, nil
}

// ResolvedTarget is a target with defaults merged and sources expanded.
type ResolvedTarget struct {
	Name    string
	Project string
	Prefix  string
	Sources []string
	Filters Filters
	Enabled bool
}

// Resolve merges manifest defaults into a target and expands the "*"
// source wildcard into every compiler.
func (m *Manifest) Resolve(t *Target) ResolvedTarget {
	r := ResolvedTarget{
		Name:    t.Name,
		Project: t.Project,
		Prefix:  t.Prefix,
		Enabled: t.Enabled == nil || *t.Enabled,
	}
	if r.Prefix == "" {
		r.Prefix = m.Defaults.Prefix
	}
	if r.Prefix == "" {
		r.Prefix = "forge"
	}

	sources := t.Sources
	if len(sources) == 0 {
		sources = m.Defaults.Sources
	}
	if len(sources) == 0 {
		sources = []string{"*"}
	}
	seen := map[string]bool{}
	for _, s := range append(sources, t.AdditionalSources...) {
		if s == "*" {
			for _, name := range CompilerNames() {
				if !seen[name] {
					seen[name] = true
					r.Sources = append(r.Sources, name)
				}
			}
			continue
		}
		if !seen[s] {
			seen[s] = true
			r.Sources = append(r.Sources, s)
		}
	}

	if m.Defaults.Filters != nil {
		r.Filters = *m.Defaults.Filters
	}
	if t.Filters != nil {
		if t.Filters.MinTier != nil {
			r.Filters.MinTier = t.Filters.MinTier
		}
		if t.Filters.MaxHops != nil {
			r.Filters.MaxHops = t.Filters.MaxHops
		}
		if len(t.Filters.Status) > 0 {
			r.Filters.Status = t.Filters.Status
		}
	}
	return r
}

// DisplayName maps a registry project name to the target-side name,
// preferring an exact name_map entry, then the "*" fallback.
func (m *Manifest) DisplayName(project string) string {
	if names, ok := m.NameMap[project]; ok && len(names) > 0 {
		return names[0]
	}
	if names, ok := m.NameMap["*"]; ok && len(names) > 0 {
		return names[0]
	}
	return project
}

// statusAllowed applies the status spec: plain entries allow, "!x"
// entries exclude. An empty spec allows everything.
func statusAllowed(spec []string, status string) bool {
	if len(spec) == 0 {
		return true
	}
	allowed := false
	hasAllow := false
	for _, s := range spec {
		if len(s) > 0 && s[0] == '!' {
			if s[1:] == status {
				return false
			}
			continue
		}
		hasAllow = true
		if s == status {
			allowed = true
		}
	}
	if !hasAllow {
		return true
	}
	return allowed
}
