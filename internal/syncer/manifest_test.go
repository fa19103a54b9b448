package syncer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifestRejectsWrongVersion(t *testing.T) {
	path := writeManifest(t, `
version: "2"
targets:
  - name: vault
    project: forge
`)
	_, err := LoadManifest(path)
	assert.ErrorContains(t, err, "version")
}

func TestLoadManifestRequiresNameAndProject(t *testing.T) {
	path := writeManifest(t, `
version: "1"
targets:
  - project: forge
`)
	_, err := LoadManifest(path)
	assert.ErrorContains(t, err, "name is required")

	path = writeManifest(t, `
version: "1"
targets:
  - name: vault
`)
	_, err = LoadManifest(path)
	assert.ErrorContains(t, err, "project is required")
}

func TestResolveExpandsWildcardSources(t *testing.T) {
	m := &Manifest{Version: "1"}
	target := &Target{Name: "vault", Project: "forge"}

	r := m.Resolve(target)
	assert.Equal(t, CompilerNames(), r.Sources)
	assert.Equal(t, "forge", r.Prefix)
	assert.True(t, r.Enabled)
}

func TestResolveMergesDefaultsAndOverrides(t *testing.T) {
	minTier := 0.5
	maxHops := 2
	m := &Manifest{
		Version: "1",
		Defaults: Defaults{
			Prefix:  "brain",
			Sources: []string{"decisions"},
			Filters: &Filters{MinTier: &minTier},
		},
	}
	target := &Target{
		Name:              "vault",
		Project:           "forge",
		AdditionalSources: []string{"threads", "decisions"},
		Filters:           &Filters{MaxHops: &maxHops},
	}

	r := m.Resolve(target)
	assert.Equal(t, "brain", r.Prefix)
	assert.Equal(t, []string{"decisions", "threads"}, r.Sources)
	require.NotNil(t, r.Filters.MinTier)
	assert.Equal(t, 0.5, *r.Filters.MinTier)
	require.NotNil(t, r.Filters.MaxHops)
	assert.Equal(t, 2, *r.Filters.MaxHops)
}

func TestResolveDisabledTarget(t *testing.T) {
	m := &Manifest{Version: "1"}
	disabled := false
	r := m.Resolve(&Target{Name: "vault", Project: "forge", Enabled: &disabled})
	assert.False(t, r.Enabled)
}

func TestDisplayNamePrefersExactThenFallback(t *testing.T) {
	m := &Manifest{
		NameMap: map[string][]string{
			"forge": {"Forge OS"},
			"*":     {"Unknown Project"},
		},
	}
	assert.Equal(t, "Forge OS", m.DisplayName("forge"))
	assert.Equal(t, "Unknown Project", m.DisplayName("atlas"))

	empty := &Manifest{}
	assert.Equal(t, "atlas", empty.DisplayName("atlas"))
}

func TestStatusAllowed(t *testing.T) {
	assert.True(t, statusAllowed(nil, "active"))
	assert.True(t, statusAllowed([]string{"active"}, "active"))
	assert.False(t, statusAllowed([]string{"active"}, "superseded"))
	assert.False(t, statusAllowed([]string{"!resolved"}, "resolved"))
	// Exclusions alone allow everything else.
	assert.True(t, statusAllowed([]string{"!resolved"}, "open"))
	// Mixed: exclusions win, then the allow-list applies.
	assert.False(t, statusAllowed([]string{"active", "!superseded"}, "deprecated"))
}
