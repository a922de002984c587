// Package rollback implements the three recovery operations that sit
// outside the Executor's forward step loop: abort (reverse an
// in-progress operation), continue (resume one paused on a VCS
// conflict), and undo (force-reverse a committed one, named by op id).
// None of them invents a private mutation path; continue re-enters the
// Executor's own step loop, and abort/undo apply CAS or forced ref
// writes through the same Gateway every other component uses.
package rollback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/executor"
	"github.com/kofron/lattice/internal/journal"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/ledger"
	"github.com/kofron/lattice/internal/metadata"
	"github.com/kofron/lattice/internal/paths"
	"github.com/kofron/lattice/internal/plan"
	"github.com/kofron/lattice/internal/scanner"
	"github.com/kofron/lattice/internal/vcsgw"
)

// Result reports what a reverse traversal (Abort or Undo) accomplished.
type Result struct {
	RestoredRefs []string
	Failed       []FailedStep
}

// FailedStep is one journal entry a reverse traversal could not undo,
// along with why, per spec.md section 4.9.
type FailedStep struct {
	Kind   journal.StepEntryKind
	Detail string
}

// Recovery bundles the collaborators abort/continue/undo need. It does not
// embed *executor.Executor directly so continue can construct one lazily
// with the caller's forge/remote configuration.
type Recovery struct {
	gw    *vcsgw.Gateway
	store *metadata.Store
	led   *ledger.Ledger
	paths paths.LatticePaths
}

// New builds a Recovery over the same Gateway/Store/Ledger/Paths an
// Executor would use.
func New(gw *vcsgw.Gateway, store *metadata.Store, led *ledger.Ledger, p paths.LatticePaths) *Recovery {
	return &Recovery{gw: gw, store: store, led: led, paths: p}
}

// Abort reverse-traverses the journal for the in-progress or paused
// operation named by state, restoring refs it can and reporting the rest
// as failed. It always removes the op-state marker and marks the journal
// rolled_back, even when some steps could not be fully undone.
func (r *Recovery) Abort(ctx context.Context, state *journal.OpState, now time.Time) (*Result, error) {
	if !state.CheckOriginWorktree(r.gw.GitDir()) {
		return nil, errs.InvalidInput(fmt.Sprintf("operation %q was started from a different worktree (%s); run abort there", state.OpID, state.OriginWorktree))
	}

	j, err := journal.Load(r.paths, state.OpID)
	if err != nil {
		return nil, fmt.Errorf("loading journal %s: %w", state.OpID, err)
	}

	result := r.reverseTraverse(ctx, j)

	if err := j.MarkRolledBack(now); err != nil {
		return nil, fmt.Errorf("marking journal rolled back: %w", err)
	}
	if _, err := r.led.Append(ctx, ledger.Event{
		Kind:    ledger.KindAborted,
		OpID:    j.OpID,
		Command: j.Command,
		Error:   "aborted by user",
	}, now); err != nil {
		return nil, fmt.Errorf("appending Aborted: %w", err)
	}
	if err := journal.RemoveOpState(r.paths); err != nil {
		return nil, fmt.Errorf("removing op-state: %w", err)
	}

	return result, nil
}

// Undo force-reverses the committed journal named by opID; it does not look
// up the most recent one itself. It uses forced ref writes rather than CAS since the current ref state may have diverged from
// what that operation left behind. Remote effects (pushes, PR creation) are
// reported as failed with guidance since they cannot be reversed locally.
func (r *Recovery) Undo(ctx context.Context, opID string, now time.Time) (*Result, error) {
	j, err := journal.Load(r.paths, opID)
	if err != nil {
		return nil, fmt.Errorf("loading journal %s: %w", opID, err)
	}
	if j.Phase != journal.PhaseCommitted {
		return nil, errs.InvalidInput(fmt.Sprintf("operation %q is not committed (phase %s); only committed operations can be undone", opID, j.Phase))
	}

	result := r.reverseTraverseForced(ctx, j)

	if _, err := r.led.Append(ctx, ledger.Event{
		Kind:    ledger.KindAborted,
		OpID:    j.OpID,
		Command: j.Command,
		Error:   "undone by user",
	}, now); err != nil {
		return nil, fmt.Errorf("appending undo event: %w", err)
	}

	return result, nil
}

// reverseTraverse walks j.Steps back-to-front, CAS-restoring what it can.
func (r *Recovery) reverseTraverse(ctx context.Context, j *journal.Journal) *Result {
	result := &Result{}
	for i := len(j.Steps) - 1; i >= 0; i-- {
		entry := j.Steps[i]
		switch entry.Kind {
		case journal.StepKindRefUpdate:
			if err := r.restoreRef(ctx, entry, false); err != nil {
				result.Failed = append(result.Failed, FailedStep{Kind: entry.Kind, Detail: err.Error()})
				continue
			}
			result.RestoredRefs = append(result.RestoredRefs, entry.Refname)

		case journal.StepKindMetadataWrite:
			if err := r.restoreMetadataWrite(ctx, entry, false); err != nil {
				result.Failed = append(result.Failed, FailedStep{Kind: entry.Kind, Detail: err.Error()})
				continue
			}
			result.RestoredRefs = append(result.RestoredRefs, string(latticemodel.MetadataRef(latticemodel.BranchName(entry.Branch))))

		case journal.StepKindMetadataDelete:
			result.Failed = append(result.Failed, FailedStep{
				Kind:   entry.Kind,
				Detail: fmt.Sprintf("metadata for %s was deleted; its prior content was not stored and cannot be restored", entry.Branch),
			})

		default:
			// Checkpoint, VcsProcess, ConflictPaused: markers or process
			// records with no ref state to reverse.
		}
	}
	return result
}

// reverseTraverseForced is reverseTraverse but uses forced writes, since
// undo may run long after the operation and the refs may have moved again.
func (r *Recovery) reverseTraverseForced(ctx context.Context, j *journal.Journal) *Result {
	result := &Result{}
	for i := len(j.Steps) - 1; i >= 0; i-- {
		entry := j.Steps[i]
		switch entry.Kind {
		case journal.StepKindRefUpdate:
			if err := r.restoreRef(ctx, entry, true); err != nil {
				result.Failed = append(result.Failed, FailedStep{Kind: entry.Kind, Detail: err.Error()})
				continue
			}
			result.RestoredRefs = append(result.RestoredRefs, entry.Refname)

		case journal.StepKindMetadataWrite:
			if err := r.restoreMetadataWrite(ctx, entry, true); err != nil {
				result.Failed = append(result.Failed, FailedStep{Kind: entry.Kind, Detail: err.Error()})
				continue
			}
			result.RestoredRefs = append(result.RestoredRefs, string(latticemodel.MetadataRef(latticemodel.BranchName(entry.Branch))))

		case journal.StepKindMetadataDelete:
			result.Failed = append(result.Failed, FailedStep{
				Kind:   entry.Kind,
				Detail: fmt.Sprintf("metadata for %s was deleted; its prior content was not stored and cannot be restored", entry.Branch),
			})

		case journal.StepKindVcsProcess:
			if isRemoteEffect(entry.Description) {
				result.Failed = append(result.Failed, FailedStep{
					Kind:   entry.Kind,
					Detail: fmt.Sprintf("%q cannot be reversed locally; the forge may need manual cleanup", entry.Description),
				})
			}

		default:
		}
	}
	return result
}

func isRemoteEffect(description string) bool {
	return len(description) >= 5 && description[:5] == "forge"
}

// restoreRef CAS-sets (or forced-sets, when forced) entry.Refname back to
// OldOid, deleting it if OldOid is empty (the step created the ref).
func (r *Recovery) restoreRef(ctx context.Context, entry journal.StepEntry, forced bool) error {
	if entry.OldOid == "" {
		if forced {
			return r.gw.DeleteRefForce(ctx, entry.Refname)
		}
		if err := r.gw.DeleteRefCas(ctx, entry.Refname, entry.NewOid); err != nil {
			return err
		}
		return nil
	}
	if forced {
		return r.gw.UpdateRefForce(ctx, entry.Refname, entry.OldOid)
	}
	return r.gw.UpdateRefCas(ctx, entry.Refname, entry.OldOid, entry.NewOid)
}

// restoreMetadataWrite reverses a metadata write only when the branch was
// previously untracked (OldOid empty); otherwise the prior blob content was
// never retained and cannot be reconstructed.
func (r *Recovery) restoreMetadataWrite(ctx context.Context, entry journal.StepEntry, forced bool) error {
	if entry.OldOid != "" {
		return fmt.Errorf("prior metadata content for %s was not retained", entry.Branch)
	}
	branch := latticemodel.BranchName(entry.Branch)
	if forced {
		return r.gw.DeleteRefForce(ctx, string(latticemodel.MetadataRef(branch)))
	}
	newOid, err := latticemodel.NewOid(entry.NewOid)
	if err != nil {
		return err
	}
	return r.store.DeleteCas(ctx, branch, newOid)
}

// Continue resumes a paused operation: the caller has already run the
// VCS's own continuation command (e.g. `git rebase --continue`) after
// resolving conflicts by hand. Continue deserialises the ConflictPaused
// entry's remaining steps and feeds them back through a fresh Executor,
// picking up the step loop exactly where it left off.
func Continue(ctx context.Context, exec *executor.Executor, p paths.LatticePaths, state *journal.OpState, snap *scanner.RepoSnapshot, now time.Time) (*executor.Result, error) {
	if !state.CheckOriginWorktree(exec.GitDir()) {
		return nil, errs.InvalidInput(fmt.Sprintf("operation %q was started from a different worktree (%s); run continue there", state.OpID, state.OriginWorktree))
	}
	if state.Phase != journal.PhasePaused {
		return nil, errs.InvalidInput(fmt.Sprintf("operation %q is not paused (phase %s)", state.OpID, state.Phase))
	}

	j, err := journal.Load(p, state.OpID)
	if err != nil {
		return nil, fmt.Errorf("loading journal %s: %w", state.OpID, err)
	}
	if len(j.Steps) == 0 || j.Steps[len(j.Steps)-1].Kind != journal.StepKindConflictPaused {
		return nil, errs.InternalBug(fmt.Sprintf("journal %s is marked paused but its last entry is not ConflictPaused", state.OpID))
	}
	lastPause := j.Steps[len(j.Steps)-1]

	var remaining []plan.Step
	if err := json.Unmarshal(lastPause.RemainingSteps, &remaining); err != nil {
		return nil, fmt.Errorf("parsing remaining steps for %s: %w", state.OpID, err)
	}

	resumed := &plan.Plan{OpID: state.OpID, Command: state.Command, Steps: remaining}
	return exec.Resume(ctx, j, snap, resumed, now)
}
