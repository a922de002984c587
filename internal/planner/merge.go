package planner

import (
	"fmt"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
)

// Merge merges Branch's linked pull request via the forge, then fetches
// trunk locally so a subsequent restack sees the merged commit.
type Merge struct {
	Branch latticemodel.BranchName
	Method string // "merge", "squash", or "rebase"
}

func (c *Merge) Requirements() gate.RequirementSet { return gate.Remote }

func (c *Merge) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	tracked, err := requireTracked(snap, c.Branch)
	if err != nil {
		return nil, err
	}
	if tracked.Record.Pr.State != latticemodel.PrStateLinked {
		return nil, errs.InvalidInput(fmt.Sprintf("branch %q has no linked pull request", c.Branch))
	}

	p := newPlan("merge")
	p.Steps = append(p.Steps,
		plan.Step{Kind: plan.StepForgeMergePr, Branch: c.Branch, PrNumber: tracked.Record.Pr.Number, MergeMethod: c.Method},
		plan.Step{Kind: plan.StepForgeFetch, Description: "fetch after merge"},
	)
	return p, nil
}
