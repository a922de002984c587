package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kofron/lattice/internal/paths"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	p := paths.New(t.TempDir())

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, DivergenceWarn, cfg.Divergence.OnMutatingCommand)
	assert.Equal(t, 25, cfg.Global.Doctor.Bootstrap.MaxSyntheticHeads)
	assert.Empty(t, cfg.UnknownKeys)
}

func TestLoadParsesKnownSections(t *testing.T) {
	p := paths.New(t.TempDir())
	require.NoError(t, os.MkdirAll(p.Root(), 0o755))

	body := `
[repo]
trunk = "develop"
remote = "origin"
forge = "github"

[global.doctor.bootstrap]
max_synthetic_heads = 10

[divergence]
on_mutating_command = "refuse"
`
	require.NoError(t, os.WriteFile(p.Config(), []byte(body), 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "develop", cfg.Repo.Trunk)
	assert.Equal(t, "origin", cfg.Repo.Remote)
	assert.Equal(t, "github", cfg.Repo.Forge)
	assert.Equal(t, 10, cfg.Global.Doctor.Bootstrap.MaxSyntheticHeads)
	assert.Equal(t, DivergenceRefuse, cfg.Divergence.OnMutatingCommand)
}

func TestLoadRecordsUnknownKeysWithoutFailing(t *testing.T) {
	p := paths.New(t.TempDir())
	require.NoError(t, os.MkdirAll(p.Root(), 0o755))

	body := `
[repo]
trunk = "main"
future_field = "added-by-a-newer-lattice"
`
	require.NoError(t, os.WriteFile(p.Config(), []byte(body), 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Repo.Trunk)
	assert.NotEmpty(t, cfg.UnknownKeys)
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	p := paths.New(t.TempDir())
	require.NoError(t, os.MkdirAll(p.Root(), 0o755))
	require.NoError(t, os.WriteFile(p.Config(), []byte("not = [valid toml"), 0o644))

	_, err := Load(p)
	assert.Error(t, err)
}

func TestLoadDefaultsDivergenceWhenSectionOmitted(t *testing.T) {
	p := paths.New(t.TempDir())
	require.NoError(t, os.MkdirAll(p.Root(), 0o755))
	require.NoError(t, os.WriteFile(p.Config(), []byte(`[repo]
trunk = "main"
`), 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, DivergenceWarn, cfg.Divergence.OnMutatingCommand)
}

func TestConfigPathIsUnderCommonDirLattice(t *testing.T) {
	p := paths.New("/repo/.git")
	assert.Equal(t, filepath.Join("/repo/.git", "lattice", "config.toml"), p.Config())
}
