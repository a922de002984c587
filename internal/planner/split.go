package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
)

// SplitPiece is one resulting branch of a split, trunk-most commit last
// (its tip). The boundaries themselves — by commit or by changed file —
// are computed by the caller before Plan runs, since that analysis reads
// commit contents and has no business in a pure planning function.
type SplitPiece struct {
	Name   latticemodel.BranchName
	TipOid latticemodel.Oid
}

// Split turns Source into an ordered chain of new branches, each becoming
// the parent of the next, with the last becoming the parent of whatever
// used to depend on Source.
type Split struct {
	Source latticemodel.BranchName
	Pieces []SplitPiece // ordered trunk-most first
	Now    time.Time
}

func (c *Split) Requirements() gate.RequirementSet { return gate.Mutating }

func (c *Split) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	tracked, err := requireTracked(snap, c.Source)
	if err != nil {
		return nil, err
	}
	if err := gate.CheckFrozen(snap, []latticemodel.BranchName{c.Source}); err != nil {
		return nil, err
	}
	if len(c.Pieces) == 0 {
		return nil, errs.InvalidInput("split requires at least one piece")
	}
	for _, piece := range c.Pieces {
		if _, ok := snap.Branches[piece.Name]; ok {
			return nil, errs.InvalidInput(fmt.Sprintf("branch %q already exists", piece.Name))
		}
	}

	p := newPlan("split")
	parentName := parentOf(tracked.Record, snap.Trunk)
	parentOid, err := requireBranch(snap, parentName)
	if err != nil {
		return nil, err
	}
	parentKind := parentKindFor(parentName, snap.Trunk)

	for _, piece := range c.Pieces {
		p.Steps = append(p.Steps, plan.Step{
			Kind: plan.StepCreateSnapshotBranch, BranchName: string(piece.Name),
			HeadOid: piece.TipOid,
		})
		record := latticemodel.NewMetadataRecord(piece.Name,
			latticemodel.Parent{Kind: parentKind, Name: parentName}, parentOid, c.Now)
		p.Steps = append(p.Steps, plan.Step{
			Kind: plan.StepWriteMetadataCas, Branch: piece.Name, OldRefOid: latticemodel.ZeroOid, Metadata: record,
		})

		parentName = piece.Name
		parentOid = piece.TipOid
		parentKind = latticemodel.ParentKindBranch
	}

	lastPiece := c.Pieces[len(c.Pieces)-1]
	for _, child := range snap.Graph.Children[c.Source] {
		childTracked, err := requireTracked(snap, child)
		if err != nil {
			return nil, err
		}
		reparented := *childTracked.Record
		reparented.Parent = latticemodel.Parent{Kind: latticemodel.ParentKindBranch, Name: lastPiece.Name}
		reparented.Base = latticemodel.Base{Oid: lastPiece.TipOid}
		p.Steps = append(p.Steps, writeMetadataStep(snap, child, &reparented, c.Now))
	}

	p.Steps = append(p.Steps,
		plan.Step{Kind: plan.StepDeleteMetadataCas, Branch: c.Source, OldRefOid: tracked.RefOid},
		plan.Step{Kind: plan.StepUpdateRefCas, Refname: string(latticemodel.HeadsRef(c.Source)), OldOid: snap.Branches[c.Source], NewOid: latticemodel.ZeroOid, Reason: "split"},
	)

	return p, nil
}

// SplitByFile extracts the changes touching Files out of Source into a new
// branch forked at Source's recorded base, leaving Source holding only
// whatever doesn't touch those files and reparented onto the new branch.
// FileDiff and RemainingDiff are unified diffs the caller extracted via
// vcsgw.Gateway.Diff before constructing this command — diff extraction is
// I/O and has no business inside a pure Plan.
type SplitByFile struct {
	Source        latticemodel.BranchName
	NewBranch     latticemodel.BranchName
	Files         []string
	FileDiff      []byte
	RemainingDiff []byte
	Now           time.Time
}

func (c *SplitByFile) Requirements() gate.RequirementSet { return gate.Mutating }

func (c *SplitByFile) Plan(ready *gate.ReadyContext) (*plan.Plan, error) {
	snap := ready.Snapshot
	tracked, err := requireTracked(snap, c.Source)
	if err != nil {
		return nil, err
	}
	if err := gate.CheckFrozen(snap, []latticemodel.BranchName{c.Source}); err != nil {
		return nil, err
	}
	if _, ok := snap.Branches[c.NewBranch]; ok {
		return nil, errs.InvalidInput(fmt.Sprintf("branch %q already exists", c.NewBranch))
	}
	if len(c.FileDiff) == 0 {
		return nil, errs.InvalidInput("no changes to the specified files in this branch")
	}

	baseOid := tracked.Record.Base.Oid
	parentName := parentOf(tracked.Record, snap.Trunk)
	parentKind := parentKindFor(parentName, snap.Trunk)
	newRef := string(latticemodel.HeadsRef(c.NewBranch))
	fileList := strings.Join(c.Files, ", ")

	p := newPlan("split-by-file")
	p.Steps = append(p.Steps,
		plan.Step{Kind: plan.StepCheckpoint, Name: fmt.Sprintf("split-by-file-%s", c.Source)},
		plan.Step{
			Kind: plan.StepRunVcs,
			Args: []string{"checkout", "-b", string(c.NewBranch), string(baseOid)},
			Description: fmt.Sprintf("create %s at %s's base", c.NewBranch, c.Source),
		},
		plan.Step{
			Kind: plan.StepRunVcs, Args: []string{"apply", "--index"}, Stdin: c.FileDiff,
			Description: "apply changes to " + fileList,
		},
		plan.Step{
			Kind: plan.StepRunVcs,
			Args: []string{"commit", "-m", fmt.Sprintf("split from %s: changes to %s", c.Source, fileList)},
			Description: "commit extracted file changes",
		},
	)

	newRecord := latticemodel.NewMetadataRecord(c.NewBranch,
		latticemodel.Parent{Kind: parentKind, Name: parentName}, baseOid, c.Now)
	p.Steps = append(p.Steps, plan.Step{
		Kind: plan.StepWriteMetadataCas, Branch: c.NewBranch, OldRefOid: latticemodel.ZeroOid, Metadata: newRecord,
	})

	p.Steps = append(p.Steps,
		plan.Step{Kind: plan.StepRunVcs, Args: []string{"checkout", string(c.Source)}, Description: "switch back to " + string(c.Source)},
		plan.Step{
			Kind: plan.StepRunVcs, Args: []string{"reset", "--hard", string(baseOid)},
			Description: fmt.Sprintf("reset %s to base before reapplying remaining changes", c.Source),
		},
	)
	if len(c.RemainingDiff) > 0 {
		p.Steps = append(p.Steps,
			plan.Step{Kind: plan.StepRunVcs, Args: []string{"apply", "--index"}, Stdin: c.RemainingDiff, Description: "apply remaining changes"},
			plan.Step{Kind: plan.StepRunVcs, Args: []string{"commit", "-m", "remaining changes after split"}, Description: "commit remaining changes"},
		)
	}

	updated := *tracked.Record
	updated.Parent = latticemodel.Parent{Kind: latticemodel.ParentKindBranch, Name: c.NewBranch}
	updated.Base = latticemodel.Base{Oid: baseOid} // resolved to NewBranch's real tip at execution time
	updated.Touch(c.Now)
	p.Steps = append(p.Steps, plan.Step{
		Kind: plan.StepWriteMetadataCas, Branch: c.Source, OldRefOid: tracked.RefOid,
		Metadata: &updated, ResolveBaseFromRef: newRef,
	})

	return p, nil
}
