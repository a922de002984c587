package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
	"github.com/kofron/lattice/internal/scanner"
)

// Restack walks the stack graph downstack-first from Only (or the whole
// tree if Only is empty) and emits a rebase for every branch whose
// recorded base no longer matches its parent's current tip.
//
// Each out-of-date branch yields a Checkpoint, a RunVcs rebase --onto, and
// a WriteMetadataCas updating base to the parent's new tip.
type Restack struct {
	Only      latticemodel.BranchName // empty means restack the whole stack
	Downstack bool                    // Only plus everything it depends on
	Now       time.Time
}

func (c *Restack) Requirements() gate.RequirementSet { return gate.Mutating }

func (c *Restack) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot

	roots := rootsOf(snap)
	var order []latticemodel.BranchName
	if c.Only != "" {
		if _, err := requireTracked(snap, c.Only); err != nil {
			return nil, err
		}
		if c.Downstack {
			order = append(ancestryChain(snap, c.Only), c.Only)
		} else {
			order = subtreeOf(snap, c.Only)
		}
	} else {
		for _, root := range roots {
			order = append(order, subtreeOf(snap, root)...)
		}
	}

	p := newPlan("restack")
	effectiveTip := map[latticemodel.BranchName]latticemodel.Oid{}
	for name, oid := range snap.Branches {
		effectiveTip[name] = oid
	}

	for _, name := range order {
		tracked, err := requireTracked(snap, name)
		if err != nil {
			return nil, err
		}
		if tracked.Record.IsFrozen() {
			continue
		}

		var parentName latticemodel.BranchName
		switch tracked.Record.Parent.Kind {
		case latticemodel.ParentKindTrunk:
			parentName = snap.Trunk
		case latticemodel.ParentKindBranch:
			parentName = tracked.Record.Parent.Name
		}
		newParentTip, ok := effectiveTip[parentName]
		if !ok {
			return nil, errs.InternalBug(fmt.Sprintf("parent %q of %q has no known tip", parentName, name))
		}

		if newParentTip == tracked.Record.Base.Oid {
			continue // already aligned; no-op per spec's idempotency invariant
		}

		oldBase := tracked.Record.Base.Oid
		p.Steps = append(p.Steps,
			plan.Step{Kind: plan.StepCheckpoint, Name: fmt.Sprintf("restack-%s", name)},
			plan.Step{
				Kind: plan.StepRunVcs,
				Args: []string{"rebase", "--onto", string(newParentTip), string(oldBase), string(name)},
				Description: fmt.Sprintf("rebase %s onto %s", name, parentName),
				ExpectedEffects: []string{fmt.Sprintf("refs/heads/%s moves", name)},
			},
			plan.Step{Kind: plan.StepPotentialConflictPause, Branch: name, VcsOperation: "rebase"},
		)

		updated := *tracked.Record
		updated.Base = latticemodel.Base{Oid: newParentTip}
		p.Steps = append(p.Steps, writeMetadataStep(snap, name, &updated, c.Now))

		// The rebase's new tip isn't knowable without running git, so a
		// deep stack's lower branches are planned against their pre-rebase
		// parent tip and restacked again on the next invocation; the
		// executor's fast-verify catches a stale plan before it commits.
	}

	return p, nil
}

// rootsOf returns every tracked branch whose parent is the trunk, in
// stable sorted order.
func rootsOf(snap *scanner.RepoSnapshot) []latticemodel.BranchName {
	var roots []latticemodel.BranchName
	for name, tb := range snap.Tracked {
		if tb.Record.Parent.Kind == latticemodel.ParentKindTrunk {
			roots = append(roots, name)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots
}

// subtreeOf returns name followed by every descendant, in breadth-first,
// deterministic order.
func subtreeOf(snap *scanner.RepoSnapshot, name latticemodel.BranchName) []latticemodel.BranchName {
	order := []latticemodel.BranchName{name}
	queue := []latticemodel.BranchName{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		children := append([]latticemodel.BranchName{}, snap.Graph.Children[cur]...)
		sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
		order = append(order, children...)
		queue = append(queue, children...)
	}
	return order
}

// ancestryChain returns name's ancestors from the trunk-most down to (but
// not including) name itself. The trunk is not part of the chain.
func ancestryChain(snap *scanner.RepoSnapshot, name latticemodel.BranchName) []latticemodel.BranchName {
	var chain []latticemodel.BranchName
	cur := name
	for {
		parent, ok := snap.Graph.Parents[cur]
		if !ok || parent == snap.Trunk {
			break
		}
		chain = append([]latticemodel.BranchName{parent}, chain...)
		cur = parent
	}
	return chain
}
