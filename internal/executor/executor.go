// Package executor is the sole mutation pathway over a repository: every
// Plan a command produces is carried out here and nowhere else. It
// acquires the repo lock, writes an op-state marker, journals each step
// with fsync before moving to the next, CAS-verifies every ref and
// metadata write, and appends IntentRecorded/Committed/Aborted events to
// the ledger.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/constants"
	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/forge"
	"github.com/kofron/lattice/internal/journal"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/ledger"
	"github.com/kofron/lattice/internal/metadata"
	"github.com/kofron/lattice/internal/paths"
	"github.com/kofron/lattice/internal/plan"
	"github.com/kofron/lattice/internal/scanner"
	"github.com/kofron/lattice/internal/vcsgw"
)

// Outcome names which of the three terminal states Execute reached.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePaused  Outcome = "paused"
	OutcomeAborted Outcome = "aborted"
)

// Result is what Execute returns for every Outcome. Only the fields
// relevant to Outcome are populated.
type Result struct {
	Outcome Outcome

	// Success
	Fingerprint latticemodel.Fingerprint

	// Paused
	Branch         latticemodel.BranchName
	VcsState       vcsgw.VcsState
	RemainingSteps []plan.Step

	// Aborted
	Err          error
	AppliedSteps int
}

// Executor is constructed once per command invocation with the
// collaborators a Plan's steps may need.
type Executor struct {
	gw     *vcsgw.Gateway
	store  *metadata.Store
	ledger *ledger.Ledger
	paths  paths.LatticePaths
	forge  forge.Platform // nil if no forge is configured; Forge* steps then fail fast
	remote string
}

// New builds an Executor. forgePlatform may be nil for repositories with no
// forge configured; Plan()s from MUTATING/MUTATING_METADATA_ONLY commands
// never reference Forge* steps, so this only matters for REMOTE commands.
func New(gw *vcsgw.Gateway, store *metadata.Store, led *ledger.Ledger, p paths.LatticePaths, forgePlatform forge.Platform, remote string) *Executor {
	if remote == "" {
		remote = constants.DefaultCoreRemote
	}
	return &Executor{gw: gw, store: store, ledger: led, paths: p, forge: forgePlatform, remote: remote}
}

// Execute carries out p against snap's observed state. now is the caller's
// clock reading, threaded through so journal/ledger timestamps are
// deterministic in tests.
func (e *Executor) Execute(ctx context.Context, snap *scanner.RepoSnapshot, p *plan.Plan, now time.Time) (*Result, error) {
	if existing, err := journal.ReadOpState(e.paths); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, errs.OperationInProgress(existing.Command, existing.OpID)
	}

	if p.IsEmpty() {
		return &Result{Outcome: OutcomeSuccess, Fingerprint: snap.Fingerprint}, nil
	}

	lock, err := paths.Acquire(e.paths)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	if touched := p.TouchedBranches(); len(touched) > 0 {
		if err := e.checkWorktreeOccupancy(snap, touched); err != nil {
			return &Result{Outcome: OutcomeAborted, Err: err}, nil
		}
	}

	j, err := journal.Create(e.paths, p.OpID, p.Command, now)
	if err != nil {
		return nil, fmt.Errorf("creating journal: %w", err)
	}

	if err := journal.WriteOpState(e.paths, journal.OpState{
		OpID:           p.OpID,
		Command:        p.Command,
		Phase:          journal.PhaseInProgress,
		OriginWorktree: e.gw.GitDir(),
		StartedAt:      now,
	}); err != nil {
		return nil, fmt.Errorf("writing op-state: %w", err)
	}

	digest, err := p.Digest()
	if err != nil {
		return nil, fmt.Errorf("digesting plan: %w", err)
	}
	if _, err := e.ledger.Append(ctx, ledger.Event{
		Kind:              ledger.KindIntentRecorded,
		OpID:              p.OpID,
		Command:           p.Command,
		Digest:            digest,
		FingerprintBefore: snap.Fingerprint,
	}, now); err != nil {
		return nil, fmt.Errorf("appending IntentRecorded: %w", err)
	}

	return e.runSteps(ctx, j, snap, p, now)
}

// GitDir exposes the worktree this Executor runs in, so callers resuming a
// paused operation (internal/rollback) can check it against the op-state's
// origin_worktree before continuing.
func (e *Executor) GitDir() string { return e.gw.GitDir() }

// Resume re-enters the step loop of an already-paused operation: j is its
// existing journal (last entry ConflictPaused), p is the remaining steps
// deserialised from that entry. The caller (internal/rollback.Continue) has
// already run the VCS's own continuation command before calling this.
func (e *Executor) Resume(ctx context.Context, j *journal.Journal, snap *scanner.RepoSnapshot, p *plan.Plan, now time.Time) (*Result, error) {
	lock, err := paths.Acquire(e.paths)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	if err := journal.WriteOpState(e.paths, journal.OpState{
		OpID:           j.OpID,
		Command:        j.Command,
		Phase:          journal.PhaseInProgress,
		OriginWorktree: e.gw.GitDir(),
		StartedAt:      j.StartedAt,
	}); err != nil {
		return nil, fmt.Errorf("writing op-state: %w", err)
	}

	return e.runSteps(ctx, j, snap, p, now)
}

// runSteps carries out steps 8-10 of the Executor contract: per-step
// dispatch, then the post-execution fingerprint/Committed/journal-commit
// tail. Shared by Execute (a fresh journal) and Resume (a paused one).
func (e *Executor) runSteps(ctx context.Context, j *journal.Journal, snap *scanner.RepoSnapshot, p *plan.Plan, now time.Time) (*Result, error) {
	for i, step := range p.Steps {
		paused, err := e.executeStep(ctx, j, step, now)
		if err != nil {
			return e.abort(ctx, j, snap, i, err, now)
		}
		if paused != nil {
			// A RunVcs step that stops mid-operation reports no branch; when
			// its PotentialConflictPause marker follows, pause under the
			// marker's branch and leave the marker out of the remaining steps.
			if paused.branch == "" && i+1 < len(p.Steps) && p.Steps[i+1].Kind == plan.StepPotentialConflictPause {
				paused.branch = p.Steps[i+1].Branch
				i++
			}
			return e.pause(j, p, i, *paused, now)
		}
	}

	fingerprint, err := e.rescanFingerprint(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing post-execution fingerprint: %w", err)
	}

	if _, err := e.ledger.Append(ctx, ledger.Event{
		Kind:             ledger.KindCommitted,
		OpID:             p.OpID,
		Command:          p.Command,
		FingerprintAfter: fingerprint,
	}, now); err != nil {
		return nil, fmt.Errorf("appending Committed: %w", err)
	}

	if err := j.MarkCommitted(now); err != nil {
		return nil, fmt.Errorf("marking journal committed: %w", err)
	}
	if err := journal.RemoveOpState(e.paths); err != nil {
		return nil, fmt.Errorf("removing op-state: %w", err)
	}

	return &Result{Outcome: OutcomeSuccess, Fingerprint: fingerprint}, nil
}

// checkWorktreeOccupancy refuses to mutate a branch checked out in a
// worktree other than the one this Executor runs in. A read-your-own-write
// check: the current worktree may freely mutate its own checked-out branch.
func (e *Executor) checkWorktreeOccupancy(snap *scanner.RepoSnapshot, touched []latticemodel.BranchName) error {
	want := map[latticemodel.BranchName]bool{}
	for _, b := range touched {
		want[b] = true
	}
	for _, wt := range snap.Worktrees {
		if wt.Branch == "" || !want[latticemodel.BranchName(wt.Branch)] {
			continue
		}
		if wt.Path == e.gw.Workdir() {
			continue
		}
		return errs.WorktreeOccupied(wt.Branch, wt.Path)
	}
	return nil
}

// pausedStep carries the detail needed to build a Paused Result when
// executeStep detects a foreground VCS operation left in-progress.
type pausedStep struct {
	branch   latticemodel.BranchName
	vcsState vcsgw.VcsState
}

// abort marks the journal rolled_back, appends Aborted, drops the op-state,
// and releases nothing itself (the caller's defer handles the lock).
func (e *Executor) abort(ctx context.Context, j *journal.Journal, snap *scanner.RepoSnapshot, appliedSteps int, cause error, now time.Time) (*Result, error) {
	if err := j.MarkRolledBack(now); err != nil {
		return nil, fmt.Errorf("marking journal rolled back: %w", err)
	}
	if _, err := e.ledger.Append(ctx, ledger.Event{
		Kind:              ledger.KindAborted,
		OpID:              j.OpID,
		Command:           j.Command,
		FingerprintBefore: snap.Fingerprint,
		Error:             cause.Error(),
	}, now); err != nil {
		return nil, fmt.Errorf("appending Aborted: %w", err)
	}
	if err := journal.RemoveOpState(e.paths); err != nil {
		return nil, fmt.Errorf("removing op-state after abort: %w", err)
	}
	return &Result{Outcome: OutcomeAborted, Err: cause, AppliedSteps: appliedSteps}, nil
}

// pause transitions the journal and op-state to paused and serialises every
// step after the one that paused, so `lattice continue` can resume exactly
// where the foreground VCS operation left off.
func (e *Executor) pause(j *journal.Journal, p *plan.Plan, index int, paused pausedStep, now time.Time) (*Result, error) {
	remaining := p.Steps[index+1:]
	remainingJSON, err := json.Marshal(remaining)
	if err != nil {
		return nil, fmt.Errorf("serialising remaining steps: %w", err)
	}

	remainingPlan := &plan.Plan{OpID: p.OpID, Command: p.Command, Steps: remaining}
	var remainingBranches []string
	for _, b := range remainingPlan.TouchedBranches() {
		remainingBranches = append(remainingBranches, string(b))
	}

	if err := j.AppendConflictPaused(string(paused.branch), string(paused.vcsState), remainingBranches, remainingJSON, now); err != nil {
		return nil, fmt.Errorf("appending ConflictPaused: %w", err)
	}
	if err := j.MarkPaused(); err != nil {
		return nil, fmt.Errorf("marking journal paused: %w", err)
	}
	if err := journal.WriteOpState(e.paths, journal.OpState{
		OpID:           j.OpID,
		Command:        j.Command,
		Phase:          journal.PhasePaused,
		OriginWorktree: e.gw.GitDir(),
		StartedAt:      j.StartedAt,
	}); err != nil {
		return nil, fmt.Errorf("updating op-state to paused: %w", err)
	}

	return &Result{
		Outcome:        OutcomePaused,
		Branch:         paused.branch,
		VcsState:       paused.vcsState,
		RemainingSteps: remaining,
	}, nil
}

// rescanFingerprint recomputes the fingerprint from the refs this Executor
// can see directly rather than constructing a full scanner.Scanner, which
// would need a *config.Config this package has no reason to hold. It reads
// exactly the same ref set scanner.Scan does.
func (e *Executor) rescanFingerprint(ctx context.Context) (latticemodel.Fingerprint, error) {
	heads, err := e.gw.ListHeadRefs(ctx)
	if err != nil {
		return "", err
	}
	metadataRefs, err := e.gw.ListMetadataRefs(ctx)
	if err != nil {
		return "", err
	}

	refs := make([]latticemodel.RefOid, 0, len(heads)+len(metadataRefs))
	for _, r := range heads {
		oid, err := latticemodel.NewOid(r.Oid)
		if err != nil {
			continue
		}
		refs = append(refs, latticemodel.RefOid{Ref: latticemodel.RefName(r.Ref), Oid: oid})
	}
	for _, r := range metadataRefs {
		oid, err := latticemodel.NewOid(r.Oid)
		if err != nil {
			continue
		}
		refs = append(refs, latticemodel.RefOid{Ref: latticemodel.RefName(r.Ref), Oid: oid})
	}
	return latticemodel.ComputeFingerprint(refs), nil
}
