package planner

import (
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
	"github.com/kofron/lattice/internal/scanner"
)

// Reorder permutes a contiguous run of single-child branches starting at
// Top (trunk-most) into NewOrder, replanning each as a rebase --onto its
// new predecessor.
type Reorder struct {
	Top      latticemodel.BranchName
	NewOrder []latticemodel.BranchName
	Now      time.Time
}

func (c *Reorder) Requirements() gate.RequirementSet { return gate.Mutating }

func (c *Reorder) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot

	run, err := c.runStartingAt(snap)
	if err != nil {
		return nil, err
	}
	if len(c.NewOrder) != len(run) {
		return nil, errs.InvalidInput(fmt.Sprintf("new order names %d branches but the run starting at %q has %d", len(c.NewOrder), c.Top, len(run)))
	}
	runSet := map[latticemodel.BranchName]bool{}
	for _, b := range run {
		runSet[b] = true
	}
	for _, b := range c.NewOrder {
		if !runSet[b] {
			return nil, errs.InvalidInput(fmt.Sprintf("%q is not part of the run starting at %q", b, c.Top))
		}
		if err := gate.CheckFrozen(snap, []latticemodel.BranchName{b}); err != nil {
			return nil, err
		}
	}

	parentName := parentOf(snap.Tracked[c.Top].Record, snap.Trunk)
	parentOid, err := requireBranch(snap, parentName)
	if err != nil {
		return nil, err
	}

	p := newPlan("reorder")
	for _, name := range c.NewOrder {
		tracked, err := requireTracked(snap, name)
		if err != nil {
			return nil, err
		}
		p.Steps = append(p.Steps,
			plan.Step{Kind: plan.StepCheckpoint, Name: fmt.Sprintf("reorder-%s", name)},
			plan.Step{
				Kind: plan.StepRunVcs,
				Args: []string{"rebase", "--onto", string(parentOid), string(tracked.Record.Base.Oid), string(name)},
				Description: fmt.Sprintf("rebase %s onto %s as part of reorder", name, parentName),
			},
			plan.Step{Kind: plan.StepPotentialConflictPause, Branch: name, VcsOperation: "rebase"},
		)

		updated := *tracked.Record
		updated.Parent = latticemodel.Parent{Kind: parentKindFor(parentName, snap.Trunk), Name: parentName}
		updated.Base = latticemodel.Base{Oid: parentOid}
		p.Steps = append(p.Steps, writeMetadataStep(snap, name, &updated, c.Now))

		parentName = name
		// parentOid for the next iteration isn't knowable without running
		// the rebase; reorder plans the run from the run's pre-reorder
		// tips and expects fast-verify to catch drift, same as restack.
	}

	return p, nil
}

// runStartingAt walks single-child descendants from Top until a branch has
// zero or more than one child, returning the contiguous run including Top.
func (c *Reorder) runStartingAt(snap *scanner.RepoSnapshot) ([]latticemodel.BranchName, error) {
	if _, err := requireTracked(snap, c.Top); err != nil {
		return nil, err
	}
	run := []latticemodel.BranchName{c.Top}
	cur := c.Top
	for {
		children := snap.Graph.Children[cur]
		if len(children) != 1 {
			break
		}
		cur = children[0]
		run = append(run, cur)
	}
	return run, nil
}
