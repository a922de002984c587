// Package paths centralises every on-disk location Lattice derives from a
// repository's common_dir. No other package computes these paths directly.
package paths

import "path/filepath"

// LatticePaths is the set of locations under <common_dir>/lattice that hold
// Lattice's own state, separate from anything the VCS itself manages.
type LatticePaths struct {
	commonDir string
}

// New derives LatticePaths from a repository's common_dir (shared by every
// linked worktree).
func New(commonDir string) LatticePaths {
	return LatticePaths{commonDir: filepath.Clean(commonDir)}
}

// Root is <common_dir>/lattice, the directory every other path lives under.
func (p LatticePaths) Root() string {
	return filepath.Join(p.commonDir, "lattice")
}

// Config is <common_dir>/lattice/config.toml.
func (p LatticePaths) Config() string {
	return filepath.Join(p.Root(), "config.toml")
}

// Lock is <common_dir>/lattice/lock, the file RepoLock flocks.
func (p LatticePaths) Lock() string {
	return filepath.Join(p.Root(), "lock")
}

// OpState is <common_dir>/lattice/op-state.json, the marker naming the
// in-progress operation (if any).
func (p LatticePaths) OpState() string {
	return filepath.Join(p.Root(), "op-state.json")
}

// OpsDir is <common_dir>/lattice/ops, holding one journal file per operation.
func (p LatticePaths) OpsDir() string {
	return filepath.Join(p.Root(), "ops")
}

// OpJournal is <common_dir>/lattice/ops/<op_id>.json, the append-only
// journal for a single operation.
func (p LatticePaths) OpJournal(opID string) string {
	return filepath.Join(p.OpsDir(), opID+".json")
}

// CacheDir is <common_dir>/lattice/cache, for ephemeral derived data
// (forge auth caches, doctor scratch state) that can always be regenerated.
func (p LatticePaths) CacheDir() string {
	return filepath.Join(p.Root(), "cache")
}
