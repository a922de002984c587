package planner

import (
	"time"

	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
)

// Freeze marks a tracked branch frozen, blocking further mutation until
// Unfreeze. This command is exempt from CheckFrozen itself — freezing an
// already-frozen branch updates the reason and is idempotent.
type Freeze struct {
	Branch latticemodel.BranchName
	Scope  string
	Reason string
	Now    time.Time
}

func (c *Freeze) Requirements() gate.RequirementSet { return gate.MutatingMetadataOnly }

func (c *Freeze) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	tracked, err := requireTracked(snap, c.Branch)
	if err != nil {
		return nil, err
	}

	record := *tracked.Record
	record.Freeze = latticemodel.Freeze{State: latticemodel.FreezeStateFrozen, Scope: c.Scope, Reason: c.Reason}

	p := newPlan("freeze")
	p.Steps = append(p.Steps, writeMetadataStep(snap, c.Branch, &record, c.Now))
	return p, nil
}

// Unfreeze clears a branch's frozen state.
type Unfreeze struct {
	Branch latticemodel.BranchName
	Now    time.Time
}

func (c *Unfreeze) Requirements() gate.RequirementSet { return gate.MutatingMetadataOnly }

func (c *Unfreeze) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	tracked, err := requireTracked(snap, c.Branch)
	if err != nil {
		return nil, err
	}

	record := *tracked.Record
	record.Freeze = latticemodel.Freeze{State: latticemodel.FreezeStateUnfrozen}

	p := newPlan("unfreeze")
	p.Steps = append(p.Steps, writeMetadataStep(snap, c.Branch, &record, c.Now))
	return p, nil
}
