// Package planner turns a gated ReadyContext into a Plan: one file per
// command, each a pure function from (ReadyContext, command args) to a
// plan.Plan. Commands never touch the VCS Gateway directly — planning is
// side-effect free so it can be retried, logged, or offered by the doctor
// without re-running any I/O.
package planner

import (
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/journal"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
	"github.com/kofron/lattice/internal/scanner"
)

// Command is the contract every mutating subcommand implements: which
// capabilities it needs, and how it turns a ready snapshot into a Plan.
type Command interface {
	// Requirements names the RequirementSet Gate must satisfy before Plan
	// is called.
	Requirements() gate.RequirementSet
	// Plan builds the Plan for this invocation. It must not perform I/O;
	// all inputs come from ready.Snapshot and the command's own fields.
	Plan(ready *gate.ReadyContext) (*plan.Plan, error)
}

// NewOpID mints a fresh operation id for a Plan about to be executed.
func NewOpID() string {
	return journal.NewOpID()
}

// newPlan is the shared constructor every command file uses to start
// building its step list.
func newPlan(command string) *plan.Plan {
	return &plan.Plan{OpID: NewOpID(), Command: command}
}

// requireTracked looks up a tracked branch or returns InvalidInput.
func requireTracked(snap *scanner.RepoSnapshot, name latticemodel.BranchName) (scanner.TrackedBranch, error) {
	tb, ok := snap.Tracked[name]
	if !ok {
		return scanner.TrackedBranch{}, errs.InvalidInput(fmt.Sprintf("branch %q is not tracked; run 'lattice track %s' first", name, name))
	}
	return tb, nil
}

// requireBranch looks up a branch ref's current oid or returns InvalidInput.
func requireBranch(snap *scanner.RepoSnapshot, name latticemodel.BranchName) (latticemodel.Oid, error) {
	oid, ok := snap.Branches[name]
	if !ok {
		return "", errs.InvalidInput(fmt.Sprintf("branch %q does not exist", name))
	}
	return oid, nil
}

// parentTip resolves the current tip oid of a tracked branch's parent,
// whether that parent is the trunk or another stacked branch.
func parentTip(snap *scanner.RepoSnapshot, parent latticemodel.Parent) (latticemodel.Oid, error) {
	switch parent.Kind {
	case latticemodel.ParentKindTrunk:
		return requireBranch(snap, snap.Trunk)
	case latticemodel.ParentKindBranch:
		return requireBranch(snap, parent.Name)
	default:
		return "", errs.InternalBug(fmt.Sprintf("unknown parent kind %q", parent.Kind))
	}
}

// writeMetadataStep builds a WriteMetadataCas step for record, CAS-guarded
// by the branch's current metadata ref oid, after refreshing its UpdatedAt.
func writeMetadataStep(snap *scanner.RepoSnapshot, name latticemodel.BranchName, record *latticemodel.MetadataRecord, now time.Time) plan.Step {
	record.Touch(now)
	existing := snap.Tracked[name]
	return plan.Step{
		Kind:      plan.StepWriteMetadataCas,
		Branch:    name,
		OldRefOid: existing.RefOid,
		Metadata:  record,
	}
}
