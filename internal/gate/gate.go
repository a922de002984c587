// Package gate evaluates a command's RequirementSet against a scan,
// enforces the frozen-branch policy, and is the only place a command
// observes a RepoSnapshot. Commands never call the scanner directly.
package gate

import (
	"github.com/kofron/lattice/internal/config"
	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/scanner"
)

// RequirementSet names a subset of capabilities a command needs before it
// may plan or execute.
type RequirementSet struct {
	Name         string
	Capabilities []scanner.Capability
}

var (
	ReadOnly = RequirementSet{
		Name:         "READ_ONLY",
		Capabilities: []scanner.Capability{scanner.CapRepoOpen},
	}
	Navigation = RequirementSet{
		Name:         "NAVIGATION",
		Capabilities: []scanner.Capability{scanner.CapRepoOpen, scanner.CapWorkingDir},
	}
	Mutating = RequirementSet{
		Name: "MUTATING",
		Capabilities: []scanner.Capability{
			scanner.CapRepoOpen, scanner.CapWorkingDir, scanner.CapTrunkKnown,
			scanner.CapNoOpsInProgress, scanner.CapWorktreeClean, scanner.CapMetadataReadable,
		},
	}
	MutatingMetadataOnly = RequirementSet{
		Name: "MUTATING_METADATA_ONLY",
		Capabilities: []scanner.Capability{
			scanner.CapRepoOpen, scanner.CapTrunkKnown, scanner.CapNoOpsInProgress, scanner.CapMetadataReadable,
		},
	}
	Remote = RequirementSet{
		Name: "REMOTE",
		Capabilities: append(append([]scanner.Capability{}, Mutating.Capabilities...),
			scanner.CapRemoteConfigured, scanner.CapForgeAuthenticated),
	}
	RemoteBareAllowed = RequirementSet{
		Name: "REMOTE_BARE_ALLOWED",
		Capabilities: append(append([]scanner.Capability{}, MutatingMetadataOnly.Capabilities...),
			scanner.CapRemoteConfigured, scanner.CapForgeAuthenticated),
	}
	Recovery = RequirementSet{
		Name:         "RECOVERY",
		Capabilities: []scanner.Capability{scanner.CapRepoOpen},
	}
)

// ReadyContext is what a gated command receives: the snapshot plus
// whatever scope data the caller's scope resolver attached.
type ReadyContext struct {
	Snapshot  *scanner.RepoSnapshot
	ScopeData map[string]string
}

// RepairBundle is returned instead of a ReadyContext when the snapshot
// does not satisfy a RequirementSet.
type RepairBundle struct {
	MissingCapabilities []scanner.Capability
	RelatedIssues       []scanner.Issue
	SuggestedFixes      []string
}

// Result is the outcome of a Gate call: exactly one of Ready/Repair is set.
type Result struct {
	Ready  *ReadyContext
	Repair *RepairBundle
}

// Gate evaluates req against snap, applying the divergence policy from cfg
// before returning Ready or NeedsRepair.
func Gate(snap *scanner.RepoSnapshot, req RequirementSet, cfg *config.Config) Result {
	missing := snap.Capabilities.Missing(req.Capabilities)
	if len(missing) > 0 {
		return Result{Repair: buildRepairBundle(snap, missing)}
	}

	if isMutating(req) && snap.Divergence != nil && cfg.Divergence.OnMutatingCommand == config.DivergenceRefuse {
		return Result{Repair: &RepairBundle{
			RelatedIssues:  []scanner.Issue{{ID: "divergence_observed", Severity: scanner.SeverityError, Message: "repository has diverged from the last recorded operation"}},
			SuggestedFixes: []string{"doctor --deep-remote"},
		}}
	}

	return Result{Ready: &ReadyContext{Snapshot: snap, ScopeData: map[string]string{}}}
}

// CheckFrozen enforces the frozen-policy: every branch in touched whose
// metadata marks it frozen blocks the command.
func CheckFrozen(snap *scanner.RepoSnapshot, touched []latticemodel.BranchName) error {
	for _, branch := range touched {
		tracked, ok := snap.Tracked[branch]
		if !ok {
			continue
		}
		if tracked.Record.IsFrozen() {
			return errs.FrozenBranch(string(branch))
		}
	}
	return nil
}

func isMutating(req RequirementSet) bool {
	return req.Name == Mutating.Name || req.Name == MutatingMetadataOnly.Name ||
		req.Name == Remote.Name || req.Name == RemoteBareAllowed.Name
}

func buildRepairBundle(snap *scanner.RepoSnapshot, missing []scanner.Capability) *RepairBundle {
	bundle := &RepairBundle{MissingCapabilities: missing}

	for _, cap := range missing {
		switch cap {
		case scanner.CapTrunkKnown:
			bundle.SuggestedFixes = append(bundle.SuggestedFixes, "configure [repo].trunk in config.toml, or create a main/master branch")
		case scanner.CapNoOpsInProgress:
			bundle.SuggestedFixes = append(bundle.SuggestedFixes, "run 'lattice continue' or 'lattice abort' to resolve the in-progress operation")
		case scanner.CapWorktreeClean:
			bundle.SuggestedFixes = append(bundle.SuggestedFixes, "resolve the VCS's in-progress operation in this worktree")
		case scanner.CapMetadataReadable:
			bundle.SuggestedFixes = append(bundle.SuggestedFixes, "run 'lattice doctor' to repair corrupt metadata")
		case scanner.CapRemoteConfigured:
			bundle.SuggestedFixes = append(bundle.SuggestedFixes, "configure [repo].remote in config.toml")
		case scanner.CapForgeAuthenticated:
			bundle.SuggestedFixes = append(bundle.SuggestedFixes, "run 'lattice auth' to authenticate with the forge")
		case scanner.CapNotBareRepo:
			bundle.SuggestedFixes = append(bundle.SuggestedFixes, "this command cannot run against a bare repository")
		}
	}

	bundle.RelatedIssues = append(bundle.RelatedIssues, snap.Health.Issues...)

	return bundle
}
