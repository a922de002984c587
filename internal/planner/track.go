package planner

import (
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
)

// Track records metadata for an existing, untracked branch.
type Track struct {
	Branch latticemodel.BranchName
	Parent latticemodel.Parent
	Now    time.Time
}

func (c *Track) Requirements() gate.RequirementSet { return gate.MutatingMetadataOnly }

func (c *Track) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	if _, ok := snap.Tracked[c.Branch]; ok {
		return nil, errs.InvalidInput(fmt.Sprintf("branch %q is already tracked", c.Branch))
	}
	if _, err := requireBranch(snap, c.Branch); err != nil {
		return nil, err
	}
	base, err := parentTip(snap, c.Parent)
	if err != nil {
		return nil, err
	}

	record := latticemodel.NewMetadataRecord(c.Branch, c.Parent, base, c.Now)
	p := newPlan("track")
	p.Steps = append(p.Steps, plan.Step{
		Kind:      plan.StepWriteMetadataCas,
		Branch:    c.Branch,
		OldRefOid: latticemodel.ZeroOid,
		Metadata:  record,
	})
	return p, nil
}

// Untrack removes metadata for a branch without touching the branch ref
// itself — spec.md's "track; untrack is identity on refs" invariant.
type Untrack struct {
	Branch latticemodel.BranchName
}

func (c *Untrack) Requirements() gate.RequirementSet { return gate.MutatingMetadataOnly }

func (c *Untrack) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	tracked, err := requireTracked(snap, c.Branch)
	if err != nil {
		return nil, err
	}
	if err := gate.CheckFrozen(snap, []latticemodel.BranchName{c.Branch}); err != nil {
		return nil, err
	}

	p := newPlan("untrack")
	p.Steps = append(p.Steps, plan.Step{
		Kind:      plan.StepDeleteMetadataCas,
		Branch:    c.Branch,
		OldRefOid: tracked.RefOid,
	})
	return p, nil
}
