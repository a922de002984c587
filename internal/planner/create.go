package planner

import (
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
)

// Create checks out a new branch stacked on the current branch (or Onto, if
// set) and tracks it. Insert reparents the current children of the parent
// onto the new branch, per spec.md scenario 2.
type Create struct {
	Name  latticemodel.BranchName
	Onto  latticemodel.BranchName // empty means "current branch"
	Insert bool
	Now   time.Time
}

func (c *Create) Requirements() gate.RequirementSet { return gate.Mutating }

func (c *Create) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	if _, ok := snap.Branches[c.Name]; ok {
		return nil, errs.InvalidInput(fmt.Sprintf("branch %q already exists", c.Name))
	}

	parentName := c.Onto
	if parentName == "" {
		parentName = snap.CurrentBranch
	}
	if parentName == "" {
		return nil, errs.InvalidInput("no current branch to stack on; pass --onto")
	}

	var parent latticemodel.Parent
	if parentName == snap.Trunk {
		parent = latticemodel.Parent{Kind: latticemodel.ParentKindTrunk, Name: snap.Trunk}
	} else {
		if _, err := requireTracked(snap, parentName); err != nil {
			return nil, err
		}
		parent = latticemodel.Parent{Kind: latticemodel.ParentKindBranch, Name: parentName}
	}

	parentTipOid, err := requireBranch(snap, parentName)
	if err != nil {
		return nil, err
	}

	p := newPlan("create")
	p.Steps = append(p.Steps,
		plan.Step{Kind: plan.StepRunVcs, Args: []string{"checkout", "-b", string(c.Name)}, Description: fmt.Sprintf("create branch %s", c.Name)},
		plan.Step{
			Kind: plan.StepWriteMetadataCas, Branch: c.Name, OldRefOid: latticemodel.ZeroOid,
			Metadata: latticemodel.NewMetadataRecord(c.Name, parent, parentTipOid, c.Now),
		},
	)

	if c.Insert {
		for _, child := range snap.Graph.Children[parentName] {
			childTracked, err := requireTracked(snap, child)
			if err != nil {
				return nil, err
			}
			reparented := *childTracked.Record
			reparented.Parent = latticemodel.Parent{Kind: latticemodel.ParentKindBranch, Name: c.Name}
			p.Steps = append(p.Steps, writeMetadataStep(snap, child, &reparented, c.Now))
		}
	}

	return p, nil
}
