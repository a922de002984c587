package planner

import (
	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
)

// Checkout switches the worktree to Branch.
type Checkout struct {
	Branch latticemodel.BranchName
}

func (Checkout) Requirements() gate.RequirementSet { return gate.Navigation }

func (c Checkout) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	if _, err := requireBranch(ready.Snapshot, c.Branch); err != nil {
		return nil, err
	}
	p := newPlan("checkout")
	p.Steps = append(p.Steps, plan.Step{Kind: plan.StepCheckout, Branch: c.Branch, CheckoutReason: "explicit checkout"})
	return p, nil
}

// Up checks out the current branch's first tracked child, or errors if
// there is none (or more than one, since "up" is unambiguous only for a
// single-child stack).
type Up struct{}

func (Up) Requirements() gate.RequirementSet { return gate.Navigation }

func (Up) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	children := snap.Graph.Children[snap.CurrentBranch]
	if len(children) == 0 {
		return nil, errs.InvalidInput("already at the top of the stack")
	}
	if len(children) > 1 {
		return nil, errs.InvalidInput("current branch has more than one child; use 'lattice checkout' to pick one")
	}
	return Checkout{Branch: children[0]}.Plan(ready)
}

// Down checks out the current branch's parent.
type Down struct{}

func (Down) Requirements() gate.RequirementSet { return gate.Navigation }

func (Down) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	tracked, err := requireTracked(snap, snap.CurrentBranch)
	if err != nil {
		return nil, errs.InvalidInput("current branch is not tracked")
	}
	return Checkout{Branch: parentOf(tracked.Record, snap.Trunk)}.Plan(ready)
}

// Top checks out the leaf farthest from trunk, reached by always taking the
// single child; errors if the stack branches.
type Top struct{}

func (Top) Requirements() gate.RequirementSet { return gate.Navigation }

func (Top) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	cur := snap.CurrentBranch
	for {
		children := snap.Graph.Children[cur]
		if len(children) == 0 {
			break
		}
		if len(children) > 1 {
			return nil, errs.InvalidInput("stack branches above the current position; use 'lattice checkout' to pick a path")
		}
		cur = children[0]
	}
	return Checkout{Branch: cur}.Plan(ready)
}

// Bottom checks out the root of the current stack (the trunk child the
// current branch descends from).
type Bottom struct{}

func (Bottom) Requirements() gate.RequirementSet { return gate.Navigation }

func (Bottom) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	cur := snap.CurrentBranch
	for {
		parent, ok := snap.Graph.Parents[cur]
		if !ok || parent == snap.Trunk {
			break
		}
		cur = parent
	}
	return Checkout{Branch: cur}.Plan(ready)
}
