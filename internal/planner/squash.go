package planner

import (
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
)

// Squash collapses every commit on Branch since its recorded base into a
// single commit, via an interactive-rebase-equivalent reset+commit. Base
// itself is unchanged; children still restack cleanly against the new tip
// once their own restack runs.
type Squash struct {
	Branch  latticemodel.BranchName
	Message string
	Now     time.Time
}

func (c *Squash) Requirements() gate.RequirementSet { return gate.Mutating }

func (c *Squash) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	tracked, err := requireTracked(snap, c.Branch)
	if err != nil {
		return nil, err
	}
	if err := gate.CheckFrozen(snap, []latticemodel.BranchName{c.Branch}); err != nil {
		return nil, err
	}

	p := newPlan("squash")
	p.Steps = append(p.Steps,
		plan.Step{Kind: plan.StepCheckpoint, Name: fmt.Sprintf("squash-%s", c.Branch)},
		plan.Step{
			Kind: plan.StepRunVcs,
			Args: []string{"reset", "--soft", string(tracked.Record.Base.Oid)},
			Description: fmt.Sprintf("reset %s to its base before recommitting", c.Branch),
		},
		plan.Step{
			Kind: plan.StepRunVcs,
			Args: []string{"commit", "-m", c.Message},
			Description: fmt.Sprintf("recommit %s as one commit", c.Branch),
		},
	)

	updated := *tracked.Record
	p.Steps = append(p.Steps, writeMetadataStep(snap, c.Branch, &updated, c.Now))
	return p, nil
}

// Fold merges Branch's commits into its parent and removes Branch,
// reparenting Branch's children onto the parent. If Keep is set, the
// branch ref stays as an alias pointing at the parent's new tip instead of
// being deleted.
type Fold struct {
	Branch latticemodel.BranchName
	Keep   bool
	Now    time.Time
}

func (c *Fold) Requirements() gate.RequirementSet { return gate.Mutating }

func (c *Fold) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	tracked, err := requireTracked(snap, c.Branch)
	if err != nil {
		return nil, err
	}
	if err := gate.CheckFrozen(snap, []latticemodel.BranchName{c.Branch}); err != nil {
		return nil, err
	}
	parentName := parentOf(tracked.Record, snap.Trunk)

	p := newPlan("fold")
	p.Steps = append(p.Steps,
		plan.Step{Kind: plan.StepCheckpoint, Name: fmt.Sprintf("fold-%s", c.Branch)},
		plan.Step{Kind: plan.StepRunVcs, Args: []string{"checkout", string(parentName)}, Description: "switch to parent"},
		plan.Step{
			Kind: plan.StepRunVcs,
			Args: []string{"merge", "--ff-only", string(c.Branch)},
			Description: fmt.Sprintf("fast-forward %s onto %s", parentName, c.Branch),
		},
	)

	for _, child := range snap.Graph.Children[c.Branch] {
		childTracked, err := requireTracked(snap, child)
		if err != nil {
			return nil, err
		}
		reparented := *childTracked.Record
		reparented.Parent = latticemodel.Parent{Kind: parentKindFor(parentName, snap.Trunk), Name: parentName}
		p.Steps = append(p.Steps, writeMetadataStep(snap, child, &reparented, c.Now))
	}

	if c.Keep {
		updated := *tracked.Record
		updated.Parent = latticemodel.Parent{Kind: parentKindFor(parentName, snap.Trunk), Name: parentName}
		p.Steps = append(p.Steps, writeMetadataStep(snap, c.Branch, &updated, c.Now))
	} else {
		p.Steps = append(p.Steps,
			plan.Step{Kind: plan.StepDeleteMetadataCas, Branch: c.Branch, OldRefOid: tracked.RefOid},
			plan.Step{
				Kind: plan.StepUpdateRefCas, Refname: string(latticemodel.HeadsRef(c.Branch)),
				OldOid: snap.Branches[c.Branch], NewOid: latticemodel.ZeroOid, Reason: "fold",
			},
		)
	}

	return p, nil
}

func parentOf(r *latticemodel.MetadataRecord, trunk latticemodel.BranchName) latticemodel.BranchName {
	if r.Parent.Kind == latticemodel.ParentKindTrunk {
		return trunk
	}
	return r.Parent.Name
}

func parentKindFor(name, trunk latticemodel.BranchName) latticemodel.ParentKind {
	if name == trunk {
		return latticemodel.ParentKindTrunk
	}
	return latticemodel.ParentKindBranch
}
