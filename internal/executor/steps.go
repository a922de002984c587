package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/journal"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
	"github.com/kofron/lattice/internal/vcsgw"
)

// executeStep carries out one plan.Step. A non-nil *pausedStep return means
// a RunVcs-family step left the VCS mid-operation; the caller stops the
// loop there rather than treating it as a failure.
func (e *Executor) executeStep(ctx context.Context, j *journal.Journal, step plan.Step, now time.Time) (*pausedStep, error) {
	switch step.Kind {
	case plan.StepUpdateRefCas:
		if err := e.gw.UpdateRefCas(ctx, step.Refname, string(step.NewOid), string(step.OldOid)); err != nil {
			return nil, wrapCas(err)
		}
		return nil, j.AppendRefUpdate(step.Refname, string(step.OldOid), string(step.NewOid), now)

	case plan.StepDeleteRefCas:
		if err := e.gw.DeleteRefCas(ctx, step.Refname, string(step.OldOid)); err != nil {
			return nil, wrapCas(err)
		}
		return nil, j.AppendRefUpdate(step.Refname, string(step.OldOid), string(latticemodel.ZeroOid), now)

	case plan.StepWriteMetadataCas:
		if step.ResolveBaseFromRef != "" {
			oid, err := e.gw.ResolveRef(ctx, step.ResolveBaseFromRef)
			if err != nil {
				return nil, fmt.Errorf("resolving base ref %s: %w", step.ResolveBaseFromRef, err)
			}
			step.Metadata.Base.Oid = latticemodel.Oid(oid)
		}
		newOid, err := e.store.WriteCas(ctx, step.Branch, step.OldRefOid, step.Metadata)
		if err != nil {
			return nil, wrapCas(err)
		}
		return nil, j.AppendMetadataWrite(string(step.Branch), string(step.OldRefOid), string(newOid), now)

	case plan.StepDeleteMetadataCas:
		if err := e.store.DeleteCas(ctx, step.Branch, step.OldRefOid); err != nil {
			return nil, wrapCas(err)
		}
		return nil, j.AppendMetadataDelete(string(step.Branch), string(step.OldRefOid), now)

	case plan.StepCreateSnapshotBranch:
		ref := "refs/heads/" + step.BranchName
		if err := e.gw.UpdateRefCas(ctx, ref, string(step.HeadOid), string(latticemodel.ZeroOid)); err != nil {
			return nil, wrapCas(err)
		}
		return nil, j.AppendRefUpdate(ref, "", string(step.HeadOid), now)

	case plan.StepCheckout:
		if _, err := e.gw.RunGit(ctx, "checkout", string(step.Branch)); err != nil {
			return nil, fmt.Errorf("checking out %s: %w", step.Branch, err)
		}
		return nil, j.AppendVcsProcess([]string{"checkout", string(step.Branch)}, step.CheckoutReason, now)

	case plan.StepRunVcs:
		return e.runVcsStep(ctx, j, step, now)

	case plan.StepCheckpoint:
		return nil, j.AppendCheckpoint(step.Name, now)

	case plan.StepPotentialConflictPause:
		if state := e.gw.State(ctx); state != vcsgw.VcsStateClean {
			return &pausedStep{branch: step.Branch, vcsState: state}, nil
		}
		return nil, nil

	case plan.StepForgeFetch:
		if err := e.gw.Fetch(ctx, e.remote); err != nil {
			return nil, err
		}
		return nil, j.AppendVcsProcess([]string{"fetch", e.remote}, step.Description, now)

	case plan.StepForgePush:
		if err := e.gw.Push(ctx, e.remote, string(step.Branch), true); err != nil {
			return nil, err
		}
		return nil, j.AppendVcsProcess([]string{"push", e.remote, string(step.Branch)}, step.Description, now)

	case plan.StepForgeCreatePr:
		return nil, e.withForge("create pr", func() error {
			_, err := e.forge.CreatePr(ctx, step.PrBase, string(step.Branch), step.PrTitle, step.PrBody, step.Draft)
			return err
		}, j, step, now)

	case plan.StepForgeUpdatePr:
		return nil, e.withForge("update pr", func() error {
			_, err := e.forge.UpdatePr(ctx, step.PrNumber, step.PrTitle, step.PrBody)
			return err
		}, j, step, now)

	case plan.StepForgeDraftToggle:
		return nil, e.withForge("toggle draft", func() error {
			_, err := e.forge.SetDraft(ctx, step.PrNumber, step.Draft)
			return err
		}, j, step, now)

	case plan.StepForgeRequestReviewers:
		return nil, e.withForge("request reviewers", func() error {
			return e.forge.RequestReviewers(ctx, step.PrNumber, step.Reviewers)
		}, j, step, now)

	case plan.StepForgeMergePr:
		return nil, e.withForge("merge pr", func() error {
			return e.forge.MergePr(ctx, step.PrNumber, step.MergeMethod)
		}, j, step, now)

	default:
		return nil, errs.InternalBug(fmt.Sprintf("executor has no handler for step kind %q", step.Kind))
	}
}

// runVcsStep runs a RunVcs step's git subcommand and polls VCS state
// afterward; a foreground operation left in-progress (rebase/merge/revert
// conflict) is reported as a pause, not an error, even though git itself
// exits non-zero in that case.
func (e *Executor) runVcsStep(ctx context.Context, j *journal.Journal, step plan.Step, now time.Time) (*pausedStep, error) {
	var runErr error
	if step.Stdin != nil {
		_, runErr = e.gw.RunGitStdin(ctx, step.Stdin, step.Args...)
	} else {
		_, runErr = e.gw.RunGit(ctx, step.Args...)
	}

	if state := e.gw.State(ctx); state != vcsgw.VcsStateClean {
		return &pausedStep{vcsState: state}, nil
	}
	if runErr != nil {
		return nil, fmt.Errorf("running %v: %w", step.Args, runErr)
	}
	return nil, j.AppendVcsProcess(step.Args, step.Description, now)
}

// withForge runs a forge operation and journals it as a VcsProcess entry
// labelled by op on success, keeping the journal's vocabulary uniform
// across local and network effects.
func (e *Executor) withForge(op string, call func() error, j *journal.Journal, step plan.Step, now time.Time) error {
	if e.forge == nil {
		return errs.InvalidInput(fmt.Sprintf("no forge configured for %s", op))
	}
	if err := call(); err != nil {
		return err
	}
	return j.AppendVcsProcess(nil, fmt.Sprintf("forge: %s (%s)", op, step.Branch), now)
}

// wrapCas turns a *vcsgw.CasFailedError into the typed errs.CasFailed so
// the runner and abort path report a consistent message regardless of
// whether the failure came from a ref or a metadata write.
func wrapCas(err error) error {
	var casErr *vcsgw.CasFailedError
	if errors.As(err, &casErr) {
		return errs.CasFailed(casErr.Ref, casErr.Expected, casErr.Actual)
	}
	return err
}
