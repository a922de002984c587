package planner

import (
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
)

// Revert plans a git revert of Sha on the current branch, journaled and
// CAS-verified like any other mutating command.
type Revert struct {
	Sha string
	Now time.Time
}

func (c *Revert) Requirements() gate.RequirementSet { return gate.Mutating }

func (c *Revert) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	if snap.CurrentBranch == "" {
		return nil, errs.InvalidInput("no current branch to revert on")
	}
	if err := gate.CheckFrozen(snap, []latticemodel.BranchName{snap.CurrentBranch}); err != nil {
		return nil, err
	}

	p := newPlan("revert")
	p.Steps = append(p.Steps,
		plan.Step{Kind: plan.StepCheckpoint, Name: "revert"},
		plan.Step{Kind: plan.StepRunVcs, Args: []string{"revert", "--no-edit", c.Sha}, Description: fmt.Sprintf("revert %s", c.Sha)},
		plan.Step{Kind: plan.StepPotentialConflictPause, Branch: snap.CurrentBranch, VcsOperation: "revert"},
	)

	if tracked, ok := snap.Tracked[snap.CurrentBranch]; ok {
		updated := *tracked.Record
		p.Steps = append(p.Steps, writeMetadataStep(snap, snap.CurrentBranch, &updated, c.Now))
	}

	return p, nil
}
