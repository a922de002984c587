package planner

import (
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/forge"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
)

// Submit pushes Branch and opens or updates its pull request. ExistingPr
// is populated by the submit command's FindPrByHead call
// (cmd/lattice/submit.go) before Plan is invoked —
// Plan itself performs no I/O, so the async forge lookup happens in the
// command-dispatch layer, not here.
type Submit struct {
	Branch     latticemodel.BranchName
	ExistingPr *forge.Pr
	Title      string
	Body       string
	Draft      bool
	Now        time.Time
}

func (c *Submit) Requirements() gate.RequirementSet { return gate.Remote }

func (c *Submit) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	tracked, err := requireTracked(snap, c.Branch)
	if err != nil {
		return nil, err
	}
	baseName := parentOf(tracked.Record, snap.Trunk)

	p := newPlan("submit")
	p.Steps = append(p.Steps, plan.Step{
		Kind: plan.StepForgePush, Branch: c.Branch,
		Description: fmt.Sprintf("push %s", c.Branch),
	})

	updated := *tracked.Record
	if c.ExistingPr == nil {
		p.Steps = append(p.Steps, plan.Step{
			Kind: plan.StepForgeCreatePr, Branch: c.Branch,
			PrTitle: c.Title, PrBody: c.Body, PrBase: string(baseName), Draft: c.Draft,
		})
		updated.Pr = latticemodel.PrLink{State: latticemodel.PrStateLinked, Forge: "github"}
	} else {
		p.Steps = append(p.Steps, plan.Step{
			Kind: plan.StepForgeUpdatePr, Branch: c.Branch, PrNumber: c.ExistingPr.Number,
			PrTitle: c.Title, PrBody: c.Body, PrBase: string(baseName),
		})
		updated.Pr = latticemodel.PrLink{State: latticemodel.PrStateLinked, Forge: "github", Number: c.ExistingPr.Number, URL: c.ExistingPr.URL}
	}
	p.Steps = append(p.Steps, writeMetadataStep(snap, c.Branch, &updated, c.Now))

	return p, nil
}

// Sync plans a ForgeFetch of the remote plus one more ForgeFetch step per
// tracked branch; each runs the same plain fetch of the remote. It does
// not query forge PR state.
type Sync struct {
	Now time.Time
}

func (c *Sync) Requirements() gate.RequirementSet { return gate.Remote }

func (c *Sync) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	if snap.Trunk == "" {
		return nil, errs.NeedsRepair("no trunk branch to sync against")
	}

	p := newPlan("sync")
	p.Steps = append(p.Steps, plan.Step{Kind: plan.StepForgeFetch, Description: "fetch remote refs"})
	for name := range snap.Tracked {
		p.Steps = append(p.Steps, plan.Step{Kind: plan.StepForgeFetch, Branch: name, Description: fmt.Sprintf("check PR state for %s", name)})
	}
	return p, nil
}
