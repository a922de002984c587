// Package runner drives every command through the lifecycle spec.md's
// overview names: Scan, Gate, Plan, Execute, and a post-execution Verify.
// cmd/lattice never calls the scanner, gate, or executor directly — it
// builds a planner.Command or planner.ReadOnlyQuery and hands it here.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/kofron/lattice/internal/config"
	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/executor"
	"github.com/kofron/lattice/internal/forge"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/journal"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/ledger"
	"github.com/kofron/lattice/internal/metadata"
	"github.com/kofron/lattice/internal/paths"
	"github.com/kofron/lattice/internal/plan"
	"github.com/kofron/lattice/internal/planner"
	"github.com/kofron/lattice/internal/rollback"
	"github.com/kofron/lattice/internal/scanner"
	"github.com/kofron/lattice/internal/vcsgw"
)

// GateRefusedError is returned when a scan does not satisfy a command's
// RequirementSet; the CLI renders Bundle via ui.Output.RepairBundle.
type GateRefusedError struct {
	Bundle *gate.RepairBundle
}

func (e *GateRefusedError) Error() string {
	return fmt.Sprintf("repository is not ready (%d missing capabilities)", len(e.Bundle.MissingCapabilities))
}

// Runner owns the collaborators every lifecycle stage shares: one Scanner
// reading the repository, one Executor mutating it, built once per process
// invocation from the repository the CLI opened.
type Runner struct {
	gw    *vcsgw.Gateway
	store *metadata.Store
	led   *ledger.Ledger
	paths paths.LatticePaths
	cfg   *config.Config
	scan  *scanner.Scanner
	exec  *executor.Executor
}

// New builds a Runner. forgePlatform may be nil when no forge is configured
// or authenticated; only REMOTE-requirement commands ever reach a step that
// needs it.
func New(gw *vcsgw.Gateway, store *metadata.Store, led *ledger.Ledger, p paths.LatticePaths, cfg *config.Config, forgePlatform forge.Platform, remote string) *Runner {
	return &Runner{
		gw: gw, store: store, led: led, paths: p, cfg: cfg,
		scan: scanner.New(gw, store, led, cfg),
		exec: executor.New(gw, store, led, p, forgePlatform, remote),
	}
}

// Scan exposes the underlying Scanner for callers that need a raw
// RepoSnapshot outside the Gate path (doctor, the stack-tree printer).
func (r *Runner) Scan(ctx context.Context) (*scanner.RepoSnapshot, error) {
	return r.scan.Scan(ctx)
}

// Ready scans and gates req, returning GateRefusedError if the snapshot
// doesn't satisfy it.
func (r *Runner) Ready(ctx context.Context, req gate.RequirementSet) (*gate.ReadyContext, *scanner.RepoSnapshot, error) {
	snap, err := r.scan.Scan(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning repository: %w", err)
	}
	result := gate.Gate(snap, req, r.cfg)
	if result.Repair != nil {
		return nil, snap, &GateRefusedError{Bundle: result.Repair}
	}
	return result.Ready, snap, nil
}

// Continue resumes a paused operation's remaining steps, then runs the
// same fastVerify every other successful Execute runs through.
func (r *Runner) Continue(ctx context.Context, state *journal.OpState, now time.Time) (*executor.Result, error) {
	snap, err := r.scan.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning repository: %w", err)
	}
	result, err := rollback.Continue(ctx, r.exec, r.paths, state, snap, now)
	if err != nil {
		return nil, err
	}
	if result.Outcome == executor.OutcomeSuccess {
		// fastVerify needs the plan that ran; Resume doesn't return it, so
		// re-derive the ledger-fingerprint half of the check directly.
		recorded, ok, err := r.led.LastRecordedFingerprint(ctx)
		if err != nil {
			return result, errs.InternalBug(fmt.Sprintf("fast_verify: reading ledger fingerprint failed: %v", err))
		}
		if !ok || recorded != result.Fingerprint {
			return result, errs.InternalBug("fast_verify: ledger fingerprint does not match the one Execute committed")
		}
	}
	return result, nil
}

// RunQuery runs a read-only query: Scan, Gate, then the query's own Run.
func (r *Runner) RunQuery(ctx context.Context, q planner.ReadOnlyQuery) (any, error) {
	ready, _, err := r.Ready(ctx, q.Requirements())
	if err != nil {
		return nil, err
	}
	return q.Run(ready)
}

// RunCommand runs a mutating command through the full lifecycle: Scan,
// Gate, Plan, Execute, and a post-success Verify. An empty plan short
// circuits before Execute, matching spec.md's idempotency invariant.
func (r *Runner) RunCommand(ctx context.Context, cmd planner.Command, now time.Time) (*executor.Result, error) {
	ready, snap, err := r.Ready(ctx, cmd.Requirements())
	if err != nil {
		return nil, err
	}

	p, err := cmd.Plan(ready)
	if err != nil {
		return nil, err
	}
	return r.executePlan(ctx, snap, p, now)
}

// RunPlan executes an already-built Plan against req's gate (used by
// 'lattice doctor --fix', whose Fix renders a Plan directly rather than
// going through a planner.Command).
func (r *Runner) RunPlan(ctx context.Context, req gate.RequirementSet, p *plan.Plan, now time.Time) (*executor.Result, error) {
	_, snap, err := r.Ready(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.executePlan(ctx, snap, p, now)
}

func (r *Runner) executePlan(ctx context.Context, snap *scanner.RepoSnapshot, p *plan.Plan, now time.Time) (*executor.Result, error) {
	if p.IsEmpty() {
		return &executor.Result{Outcome: executor.OutcomeSuccess}, nil
	}

	result, err := r.exec.Execute(ctx, snap, p, now)
	if err != nil {
		return nil, err
	}
	if result.Outcome == executor.OutcomeSuccess {
		if verr := r.fastVerify(ctx, p, result); verr != nil {
			return result, verr
		}
	}
	return result, nil
}

// fastVerify re-scans after a committed Execute and checks the snapshot
// agrees with what the plan claimed to do: every metadata ref the plan
// wrote parses back into a tracked record, every branch ref a DeleteRefCas
// step removed is gone, and the ledger's last recorded fingerprint matches what Execute
// returned. Any disagreement is a programming bug, not a user error.
func (r *Runner) fastVerify(ctx context.Context, p *plan.Plan, result *executor.Result) error {
	snap, err := r.scan.Scan(ctx)
	if err != nil {
		return errs.InternalBug(fmt.Sprintf("fast_verify re-scan failed: %v", err))
	}

	for _, step := range p.Steps {
		switch step.Kind {
		case plan.StepWriteMetadataCas:
			if _, ok := snap.Tracked[step.Branch]; !ok {
				return errs.InternalBug(fmt.Sprintf("fast_verify: %q was written but is not tracked after re-scan", step.Branch))
			}
		case plan.StepDeleteRefCas:
			if name, ok := latticemodel.BranchFromHeadsRef(latticemodel.RefName(step.Refname)); ok {
				if _, stillThere := snap.Branches[name]; stillThere {
					return errs.InternalBug(fmt.Sprintf("fast_verify: ref %s was deleted but still resolves", step.Refname))
				}
			}
		}
	}

	recorded, ok, err := r.led.LastRecordedFingerprint(ctx)
	if err != nil {
		return errs.InternalBug(fmt.Sprintf("fast_verify: reading ledger fingerprint failed: %v", err))
	}
	if !ok || recorded != result.Fingerprint {
		return errs.InternalBug("fast_verify: ledger fingerprint does not match the one Execute committed")
	}

	return nil
}

