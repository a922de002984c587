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

// Move re-parents Branch onto Onto. Descendants always get a cascading
// restack sub-plan; there is no option to limit the move to Branch alone.
type Move struct {
	Branch latticemodel.BranchName
	Onto   latticemodel.BranchName
	Now    time.Time
}

func (c *Move) Requirements() gate.RequirementSet { return gate.Mutating }

func (c *Move) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	tracked, err := requireTracked(snap, c.Branch)
	if err != nil {
		return nil, err
	}
	if err := gate.CheckFrozen(snap, []latticemodel.BranchName{c.Branch}); err != nil {
		return nil, err
	}
	if c.Onto == c.Branch {
		return nil, errs.InvalidInput("a branch cannot be moved onto itself")
	}

	var newParent latticemodel.Parent
	if c.Onto == snap.Trunk {
		newParent = latticemodel.Parent{Kind: latticemodel.ParentKindTrunk, Name: snap.Trunk}
	} else {
		if isDescendant(snap, c.Branch, c.Onto) {
			return nil, errs.InvalidInput(fmt.Sprintf("%q is a descendant of %q; moving onto it would create a cycle", c.Onto, c.Branch))
		}
		if _, err := requireTracked(snap, c.Onto); err != nil {
			return nil, err
		}
		newParent = latticemodel.Parent{Kind: latticemodel.ParentKindBranch, Name: c.Onto}
	}

	newBase, err := requireBranch(snap, c.Onto)
	if err != nil {
		return nil, err
	}

	p := newPlan("move")
	p.Steps = append(p.Steps,
		plan.Step{Kind: plan.StepCheckpoint, Name: fmt.Sprintf("move-%s", c.Branch)},
		plan.Step{
			Kind: plan.StepRunVcs,
			Args: []string{"rebase", "--onto", string(newBase), string(tracked.Record.Base.Oid), string(c.Branch)},
			Description: fmt.Sprintf("rebase %s onto %s", c.Branch, c.Onto),
		},
		plan.Step{Kind: plan.StepPotentialConflictPause, Branch: c.Branch, VcsOperation: "rebase"},
	)

	updated := *tracked.Record
	updated.Parent = newParent
	updated.Base = latticemodel.Base{Oid: newBase}
	p.Steps = append(p.Steps, writeMetadataStep(snap, c.Branch, &updated, c.Now))

	for _, descendant := range subtreeOf(snap, c.Branch)[1:] {
		descTracked, err := requireTracked(snap, descendant)
		if err != nil {
			return nil, err
		}
		p.Steps = append(p.Steps,
			plan.Step{Kind: plan.StepCheckpoint, Name: fmt.Sprintf("move-cascade-%s", descendant)},
			plan.Step{
				Kind: plan.StepRunVcs,
				Args: []string{"rebase", "--onto", string(newBase), string(descTracked.Record.Base.Oid), string(descendant)},
				Description: fmt.Sprintf("cascade restack %s", descendant),
			},
			plan.Step{Kind: plan.StepPotentialConflictPause, Branch: descendant, VcsOperation: "rebase"},
		)
	}

	return p, nil
}

// isDescendant reports whether candidate is in name's subtree.
func isDescendant(snap *scanner.RepoSnapshot, name, candidate latticemodel.BranchName) bool {
	for _, b := range subtreeOf(snap, name)[1:] {
		if b == candidate {
			return true
		}
	}
	return false
}
