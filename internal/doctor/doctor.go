// Package doctor diagnoses a RepoSnapshot's HealthReport (and, where a
// forge is configured, live PR state) into concrete Fix options. A Fix
// renders to an ordinary plan.Plan and runs through the same Executor
// every other command uses — doctor has no private mutation path.
package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/forge"
	"github.com/kofron/lattice/internal/journal"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
	"github.com/kofron/lattice/internal/scanner"
)

// FixKind names one of the repair actions doctor can propose.
type FixKind string

const (
	FixTrackExisting  FixKind = "track_existing"
	FixFetchAndTrack  FixKind = "fetch_and_track"
	FixLinkPr         FixKind = "link_pr"
	FixUnlinkPr       FixKind = "unlink_pr"
	FixReparentTrunk  FixKind = "reparent_to_trunk"
	FixUpdateBase     FixKind = "update_base"
	FixDeleteMetadata FixKind = "delete_metadata"
)

// Fix is one proposed repair. Only the fields relevant to Kind are set,
// mirroring plan.Step's tagged-union shape.
type Fix struct {
	ID     string
	Kind   FixKind
	Branch latticemodel.BranchName
	Reason string

	// TrackExisting / FetchAndTrack
	Parent latticemodel.Parent
	Pr     *forge.Pr

	// UpdateBase
	NewBase latticemodel.Oid
}

// Report is the full set of Fixes a Diagnose pass proposes, alongside the
// raw scanner issues that could not be mapped to an automatic fix.
type Report struct {
	Fixes     []Fix
	Unfixable []scanner.Issue
}

// Diagnose inspects snap's HealthReport and, when forgePlatform is
// non-nil, reconciles each tracked branch's recorded Pr link against the
// forge's live state. It performs no mutation; every Fix is rendered
// separately by Render.
func Diagnose(ctx context.Context, snap *scanner.RepoSnapshot, forgePlatform forge.Platform) (*Report, error) {
	report := &Report{}

	for _, issue := range snap.Health.Issues {
		switch issue.ID {
		case scanner.IssueMissingParent:
			report.Fixes = append(report.Fixes, Fix{
				ID: nextFixID(), Kind: FixReparentTrunk,
				Branch: latticemodel.BranchName(issue.Branch), Reason: issue.Message,
			})

		case scanner.IssueBaseUnreachable:
			fix, ok := buildUpdateBaseFix(snap, issue)
			if ok {
				report.Fixes = append(report.Fixes, fix)
			} else {
				report.Unfixable = append(report.Unfixable, issue)
			}

		case scanner.IssueOrphanMetadata:
			report.Fixes = append(report.Fixes, Fix{
				ID: nextFixID(), Kind: FixDeleteMetadata,
				Branch: latticemodel.BranchName(issue.Branch), Reason: issue.Message,
			})

		default:
			// missing_trunk, metadata_corrupt, graph_cycle, and a worktree
			// occupancy issue all need a human decision (which trunk, which
			// commit is authoritative); doctor surfaces them without a fix.
			report.Unfixable = append(report.Unfixable, issue)
		}
	}

	if forgePlatform != nil {
		prFixes, err := reconcilePrLinks(ctx, snap, forgePlatform)
		if err != nil {
			return nil, err
		}
		report.Fixes = append(report.Fixes, prFixes...)
	}

	return report, nil
}

// buildUpdateBaseFix computes the tracked branch's current parent tip for
// an IssueBaseUnreachable whose cause was "parent moved" rather than a
// truly unreachable object (the scanner reports both at different
// severities; only the warn-level "needs a restack" case has a safe fix).
func buildUpdateBaseFix(snap *scanner.RepoSnapshot, issue scanner.Issue) (Fix, bool) {
	if issue.Severity != scanner.SeverityWarn {
		return Fix{}, false
	}
	branch := latticemodel.BranchName(issue.Branch)
	if _, ok := snap.Tracked[branch]; !ok {
		return Fix{}, false
	}
	parentName := snap.Graph.Parents[branch]
	newBase, ok := snap.Branches[parentName]
	if !ok {
		return Fix{}, false
	}
	return Fix{
		ID: nextFixID(), Kind: FixUpdateBase, Branch: branch,
		NewBase: newBase, Reason: issue.Message,
	}, true
}

// reconcilePrLinks compares every tracked branch's recorded Pr link against
// the forge's live state, proposing LinkPr/UnlinkPr where they disagree.
// Discovering synthetic stack heads (a PR with no local branch at all)
// needs a list-open-PRs call the Platform interface does not expose, so
// this pass does not attempt that sweep.
func reconcilePrLinks(ctx context.Context, snap *scanner.RepoSnapshot, forgePlatform forge.Platform) ([]Fix, error) {
	var fixes []Fix
	for name, tracked := range snap.Tracked {
		switch tracked.Record.Pr.State {
		case latticemodel.PrStateLinked:
			pr, err := forgePlatform.GetPr(ctx, tracked.Record.Pr.Number)
			if err != nil {
				fixes = append(fixes, Fix{
					ID: nextFixID(), Kind: FixUnlinkPr, Branch: name,
					Reason: fmt.Sprintf("linked PR #%d could not be found on %s: %v", tracked.Record.Pr.Number, forgePlatform.Name(), err),
				})
				continue
			}
			if pr.State == forge.PrStateClosed || pr.State == forge.PrStateMerged {
				fixes = append(fixes, Fix{
					ID: nextFixID(), Kind: FixUnlinkPr, Branch: name,
					Reason: fmt.Sprintf("PR #%d is %s", pr.Number, pr.State),
				})
			}

		case latticemodel.PrStateNone:
			pr, err := forgePlatform.FindPrByHead(ctx, string(name))
			if err != nil {
				continue
			}
			if pr != nil {
				fixes = append(fixes, Fix{
					ID: nextFixID(), Kind: FixLinkPr, Branch: name, Pr: pr,
					Reason: fmt.Sprintf("open PR #%d targets this branch but metadata has no link", pr.Number),
				})
			}
		}
	}
	return fixes, nil
}

var fixCounter int

// nextFixID mints a short, process-local id ("fix-3") that labels a
// proposed fix in doctor's report. Not persisted; the counter is
// package-level, so ids keep increasing across Diagnose calls in one process.
func nextFixID() string {
	fixCounter++
	return fmt.Sprintf("fix-%d", fixCounter)
}

// Render turns one Fix into an executable Plan. now stamps the
// MetadataRecord.Timestamps.UpdatedAt field on any metadata write.
func Render(snap *scanner.RepoSnapshot, fix Fix, now time.Time) (*plan.Plan, error) {
	p := &plan.Plan{OpID: journal.NewOpID(), Command: "doctor:" + string(fix.Kind)}

	switch fix.Kind {
	case FixTrackExisting:
		oid, ok := snap.Branches[fix.Branch]
		if !ok {
			return nil, errs.InvalidInput(fmt.Sprintf("branch %q does not exist locally", fix.Branch))
		}
		record := latticemodel.NewMetadataRecord(fix.Branch, fix.Parent, oid, now)
		if fix.Pr != nil {
			record.Pr = latticemodel.PrLink{State: latticemodel.PrStateLinked, Forge: "github", Number: fix.Pr.Number, URL: fix.Pr.URL}
		}
		p.Steps = append(p.Steps, plan.Step{
			Kind: plan.StepWriteMetadataCas, Branch: fix.Branch, OldRefOid: latticemodel.ZeroOid, Metadata: record,
		})

	case FixFetchAndTrack:
		if fix.Pr == nil {
			return nil, errs.InternalBug("FixFetchAndTrack requires a Pr")
		}
		p.Steps = append(p.Steps,
			plan.Step{Kind: plan.StepForgeFetch, Description: fmt.Sprintf("fetch %s", fix.Branch)},
			plan.Step{Kind: plan.StepRunVcs, Args: []string{"branch", "--track", string(fix.Branch), "origin/" + string(fix.Branch)}, Description: "create local tracking branch"},
		)
		record := latticemodel.NewMetadataRecord(fix.Branch, fix.Parent, latticemodel.ZeroOid, now)
		record.Pr = latticemodel.PrLink{State: latticemodel.PrStateLinked, Forge: "github", Number: fix.Pr.Number, URL: fix.Pr.URL}
		p.Steps = append(p.Steps, plan.Step{
			Kind: plan.StepWriteMetadataCas, Branch: fix.Branch, OldRefOid: latticemodel.ZeroOid, Metadata: record,
		})

	case FixLinkPr:
		tracked, ok := snap.Tracked[fix.Branch]
		if !ok || fix.Pr == nil {
			return nil, errs.InvalidInput(fmt.Sprintf("branch %q is not tracked or no Pr supplied", fix.Branch))
		}
		updated := *tracked.Record
		updated.Pr = latticemodel.PrLink{State: latticemodel.PrStateLinked, Forge: "github", Number: fix.Pr.Number, URL: fix.Pr.URL}
		updated.Touch(now)
		p.Steps = append(p.Steps, plan.Step{
			Kind: plan.StepWriteMetadataCas, Branch: fix.Branch, OldRefOid: tracked.RefOid, Metadata: &updated,
		})

	case FixUnlinkPr:
		tracked, ok := snap.Tracked[fix.Branch]
		if !ok {
			return nil, errs.InvalidInput(fmt.Sprintf("branch %q is not tracked", fix.Branch))
		}
		updated := *tracked.Record
		updated.Pr = latticemodel.PrLink{State: latticemodel.PrStateNone}
		updated.Touch(now)
		p.Steps = append(p.Steps, plan.Step{
			Kind: plan.StepWriteMetadataCas, Branch: fix.Branch, OldRefOid: tracked.RefOid, Metadata: &updated,
		})

	case FixReparentTrunk:
		tracked, ok := snap.Tracked[fix.Branch]
		if !ok {
			return nil, errs.InvalidInput(fmt.Sprintf("branch %q is not tracked", fix.Branch))
		}
		trunkOid, ok := snap.Branches[snap.Trunk]
		if !ok {
			return nil, errs.NeedsRepair("trunk branch does not exist")
		}
		updated := *tracked.Record
		updated.Parent = latticemodel.Parent{Kind: latticemodel.ParentKindTrunk, Name: snap.Trunk}
		updated.Base = latticemodel.Base{Oid: trunkOid}
		updated.Touch(now)
		p.Steps = append(p.Steps, plan.Step{
			Kind: plan.StepWriteMetadataCas, Branch: fix.Branch, OldRefOid: tracked.RefOid, Metadata: &updated,
		})

	case FixUpdateBase:
		tracked, ok := snap.Tracked[fix.Branch]
		if !ok {
			return nil, errs.InvalidInput(fmt.Sprintf("branch %q is not tracked", fix.Branch))
		}
		updated := *tracked.Record
		updated.Base = latticemodel.Base{Oid: fix.NewBase}
		updated.Touch(now)
		p.Steps = append(p.Steps, plan.Step{
			Kind: plan.StepWriteMetadataCas, Branch: fix.Branch, OldRefOid: tracked.RefOid, Metadata: &updated,
		})

	case FixDeleteMetadata:
		tracked, ok := snap.Tracked[fix.Branch]
		if !ok {
			return nil, errs.InvalidInput(fmt.Sprintf("branch %q is not tracked", fix.Branch))
		}
		p.Steps = append(p.Steps, plan.Step{
			Kind: plan.StepDeleteMetadataCas, Branch: fix.Branch, OldRefOid: tracked.RefOid,
		})

	default:
		return nil, errs.InternalBug(fmt.Sprintf("doctor has no renderer for fix kind %q", fix.Kind))
	}

	return p, nil
}
