package planner

import (
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
)

// Rename renames a tracked branch's VCS ref and updates every child's
// parent pointer plus its own metadata key in one plan.
type Rename struct {
	From latticemodel.BranchName
	To   latticemodel.BranchName
	Now  time.Time
}

func (c *Rename) Requirements() gate.RequirementSet { return gate.Mutating }

func (c *Rename) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	tracked, err := requireTracked(snap, c.From)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Branches[c.To]; ok {
		return nil, errs.InvalidInput(fmt.Sprintf("branch %q already exists", c.To))
	}
	if err := gate.CheckFrozen(snap, []latticemodel.BranchName{c.From}); err != nil {
		return nil, err
	}
	if _, err := requireBranch(snap, c.From); err != nil {
		return nil, err
	}

	p := newPlan("rename")
	p.Steps = append(p.Steps,
		plan.Step{Kind: plan.StepRunVcs, Args: []string{"branch", "-m", string(c.From), string(c.To)}, Description: fmt.Sprintf("rename %s to %s", c.From, c.To)},
		plan.Step{Kind: plan.StepDeleteMetadataCas, Branch: c.From, OldRefOid: tracked.RefOid},
	)

	renamed := *tracked.Record
	renamed.Branch = latticemodel.BranchRef{Name: c.To}
	renamed.Touch(c.Now)
	p.Steps = append(p.Steps, plan.Step{
		Kind: plan.StepWriteMetadataCas, Branch: c.To, OldRefOid: latticemodel.ZeroOid, Metadata: &renamed,
	})

	for _, child := range snap.Graph.Children[c.From] {
		childTracked, err := requireTracked(snap, child)
		if err != nil {
			return nil, err
		}
		reparented := *childTracked.Record
		reparented.Parent.Name = c.To
		p.Steps = append(p.Steps, writeMetadataStep(snap, child, &reparented, c.Now))
	}

	return p, nil
}
