// Package config loads <common_dir>/lattice/config.toml: trunk/remote/forge
// overrides, doctor bootstrap budgets, and the divergence policy Gate
// consults before a mutating command proceeds.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/kofron/lattice/internal/paths"
)

// DivergencePolicy controls what Gate does when a scan reports the
// repository has diverged from the ledger's last recorded fingerprint
// while a mutating command is in play.
type DivergencePolicy string

const (
	// DivergenceWarn lets the command proceed; nothing about the divergence
	// is printed.
	DivergenceWarn DivergencePolicy = "warn"
	// DivergenceRefuse downgrades the gate result to NeedsRepair.
	DivergenceRefuse DivergencePolicy = "refuse"
)

// RepoConfig is the [repo] table: per-repository overrides that the
// Scanner would otherwise have to infer from the VCS itself.
type RepoConfig struct {
	Trunk  string `toml:"trunk"`
	Remote string `toml:"remote"`
	Forge  string `toml:"forge"`
}

// DoctorBootstrapConfig is the [global.doctor.bootstrap] table. It is
// parsed and kept on the Config; no doctor code path reads
// MaxSyntheticHeads.
type DoctorBootstrapConfig struct {
	MaxSyntheticHeads int `toml:"max_synthetic_heads"`
}

// GlobalConfig is the [global] table, currently just doctor bootstrap budgets.
type GlobalConfig struct {
	Doctor struct {
		Bootstrap DoctorBootstrapConfig `toml:"bootstrap"`
	} `toml:"doctor"`
}

// DivergenceConfig is the [divergence] table.
type DivergenceConfig struct {
	OnMutatingCommand DivergencePolicy `toml:"on_mutating_command"`
}

// Config is the full contents of config.toml.
type Config struct {
	Repo       RepoConfig       `toml:"repo"`
	Global     GlobalConfig     `toml:"global"`
	Divergence DivergenceConfig `toml:"divergence"`

	// UnknownKeys lists top-level-and-nested keys the decoder didn't
	// recognise. Callers warn about these; they never fail the load.
	UnknownKeys []string
}

// Default returns the configuration used when no config.toml exists yet.
func Default() *Config {
	return &Config{
		Global: GlobalConfig{
			Doctor: struct {
				Bootstrap DoctorBootstrapConfig `toml:"bootstrap"`
			}{Bootstrap: DoctorBootstrapConfig{MaxSyntheticHeads: 25}},
		},
		Divergence: DivergenceConfig{OnMutatingCommand: DivergenceWarn},
	}
}

// Load reads config.toml from p. A missing file is not an error: it
// returns Default(). Unknown keys are recorded on UnknownKeys rather than
// rejected, so a config written by a newer lattice still loads today.
func Load(p paths.LatticePaths) (*Config, error) {
	path := p.Config()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		for _, key := range undecoded {
			cfg.UnknownKeys = append(cfg.UnknownKeys, key.String())
		}
	}
	if cfg.Divergence.OnMutatingCommand == "" {
		cfg.Divergence.OnMutatingCommand = DivergenceWarn
	}

	return cfg, nil
}
