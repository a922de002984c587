package planner

import (
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
)

// Delete removes a branch's ref and metadata. Force allows deleting a
// branch with children, reparenting them onto the deleted branch's parent
// (an unmerged-ref-with-children refusal otherwise matches real git's
// safety posture).
type Delete struct {
	Name  latticemodel.BranchName
	Force bool
	Now   time.Time
}

func (c *Delete) Requirements() gate.RequirementSet { return gate.Mutating }

func (c *Delete) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	oid, err := requireBranch(snap, c.Name)
	if err != nil {
		return nil, err
	}
	if err := gate.CheckFrozen(snap, []latticemodel.BranchName{c.Name}); err != nil {
		return nil, err
	}

	children := snap.Graph.Children[c.Name]
	if len(children) > 0 && !c.Force {
		return nil, errs.InvalidInput(fmt.Sprintf("branch %q has %d dependent branch(es); pass --force to reparent them", c.Name, len(children)))
	}

	p := newPlan("delete")
	tracked, isTracked := snap.Tracked[c.Name]

	if isTracked && len(children) > 0 {
		for _, child := range children {
			childTracked, err := requireTracked(snap, child)
			if err != nil {
				return nil, err
			}
			reparented := *childTracked.Record
			reparented.Parent = tracked.Record.Parent
			p.Steps = append(p.Steps, writeMetadataStep(snap, child, &reparented, c.Now))
		}
	}

	if isTracked {
		p.Steps = append(p.Steps, plan.Step{Kind: plan.StepDeleteMetadataCas, Branch: c.Name, OldRefOid: tracked.RefOid})
	}
	p.Steps = append(p.Steps, plan.Step{
		Kind: plan.StepUpdateRefCas, Refname: string(latticemodel.HeadsRef(c.Name)), OldOid: oid, NewOid: latticemodel.ZeroOid,
		Reason: "delete",
	})

	return p, nil
}
