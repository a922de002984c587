// Package scanner performs the single pure read the rest of Lattice builds
// on: refs, metadata, and VCS state go in, an immutable RepoSnapshot comes
// out. It never mutates the repository.
package scanner

import (
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/vcsgw"
)

// TrackedBranch pairs a branch's metadata blob oid (for CAS) with its
// parsed record.
type TrackedBranch struct {
	RefOid latticemodel.Oid
	Record *latticemodel.MetadataRecord
}

// StackGraph is the adjacency derived from every tracked branch's parent
// field: Children maps a branch (or trunk, keyed by its name) to the
// branches stacked directly on it; Parents is its inverse.
type StackGraph struct {
	Children map[latticemodel.BranchName][]latticemodel.BranchName
	Parents  map[latticemodel.BranchName]latticemodel.BranchName
}

// DivergenceInfo is populated when the scanner's fingerprint differs from
// the most recent Committed/DoctorApplied event the ledger recorded.
type DivergenceInfo struct {
	RecordedFingerprint latticemodel.Fingerprint
	CurrentFingerprint  latticemodel.Fingerprint
}

// RepoSnapshot is the immutable result of one Scan. It is owned exclusively
// by the command invocation that produced it.
type RepoSnapshot struct {
	Branches map[latticemodel.BranchName]latticemodel.Oid
	Tracked  map[latticemodel.BranchName]TrackedBranch

	Trunk latticemodel.BranchName

	CurrentBranch latticemodel.BranchName // empty if HEAD is detached
	VcsState      vcsgw.VcsState

	Graph StackGraph

	Capabilities CapabilitySet
	Health       HealthReport
	Fingerprint  latticemodel.Fingerprint

	Divergence *DivergenceInfo

	Worktrees []vcsgw.Worktree
}
