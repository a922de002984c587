package planner

import (
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
)

// Pop removes Branch from the middle of a stack without discarding its
// commits: its children are reparented onto its former parent, and the
// branch ref itself is moved aside to an anonymous snapshot ref for
// recovery rather than deleted.
type Pop struct {
	Branch latticemodel.BranchName
	Now    time.Time
}

func (c *Pop) Requirements() gate.RequirementSet { return gate.Mutating }

func (c *Pop) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	tracked, err := requireTracked(snap, c.Branch)
	if err != nil {
		return nil, err
	}
	if err := gate.CheckFrozen(snap, []latticemodel.BranchName{c.Branch}); err != nil {
		return nil, err
	}
	oid, err := requireBranch(snap, c.Branch)
	if err != nil {
		return nil, err
	}
	formerParent := parentOf(tracked.Record, snap.Trunk)

	p := newPlan("pop")
	p.Steps = append(p.Steps, plan.Step{
		Kind: plan.StepCreateSnapshotBranch, BranchName: fmt.Sprintf("lattice/popped/%s", c.Branch),
		HeadBranch: string(c.Branch), HeadOid: oid,
	})

	for _, child := range snap.Graph.Children[c.Branch] {
		childTracked, err := requireTracked(snap, child)
		if err != nil {
			return nil, err
		}
		reparented := *childTracked.Record
		reparented.Parent = latticemodel.Parent{Kind: parentKindFor(formerParent, snap.Trunk), Name: formerParent}
		reparented.Base = tracked.Record.Base
		p.Steps = append(p.Steps, writeMetadataStep(snap, child, &reparented, c.Now))
	}

	p.Steps = append(p.Steps,
		plan.Step{Kind: plan.StepDeleteMetadataCas, Branch: c.Branch, OldRefOid: tracked.RefOid},
		plan.Step{Kind: plan.StepUpdateRefCas, Refname: string(latticemodel.HeadsRef(c.Branch)), OldOid: oid, NewOid: latticemodel.ZeroOid, Reason: "pop"},
	)

	return p, nil
}
