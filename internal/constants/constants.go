// Package constants holds defaults shared across Lattice's packages that
// would otherwise be repeated string/duration literals: the remote name
// used when config.toml sets no [repo].remote, trunk-branch guesses the scanner tries,
// and subprocess timeouts.
package constants

import "time"

// Remote names
const (
	DefaultCoreRemote = "origin"
)

// Branch names
const (
	DefaultBranch = "main"
	MasterBranch  = "master"
)

// Timeouts
const (
	DefaultFetchTimeout     = 30 * time.Second
	DefaultOperationTimeout = 10 * time.Second
	QuickOperationTimeout   = 5 * time.Second
	BranchOperationTimeout  = 2 * time.Second
)
