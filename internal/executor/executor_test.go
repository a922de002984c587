package executor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/journal"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/ledger"
	"github.com/kofron/lattice/internal/metadata"
	"github.com/kofron/lattice/internal/paths"
	"github.com/kofron/lattice/internal/plan"
	"github.com/kofron/lattice/internal/scanner"
	"github.com/kofron/lattice/internal/vcsgw"
)

type fixture struct {
	root  string
	gw    *vcsgw.Gateway
	store *metadata.Store
	led   *ledger.Ledger
	paths paths.LatticePaths
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "--initial-branch=main")
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0644))
	run("add", "README.md")
	run("commit", "-m", "init")

	gw, err := vcsgw.Open(root)
	require.NoError(t, err)

	return &fixture{
		root:  root,
		gw:    gw,
		store: metadata.New(gw),
		led:   ledger.New(gw),
		paths: paths.New(gw.CommonDir()),
	}
}

func (f *fixture) run(t *testing.T, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = f.root
	cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func (f *fixture) executor() *Executor {
	return New(f.gw, f.store, f.led, f.paths, nil, "origin")
}

func (f *fixture) snapshot(t *testing.T) *scanner.RepoSnapshot {
	t.Helper()
	main, err := f.gw.ResolveRef(context.Background(), "refs/heads/main")
	require.NoError(t, err)
	mainOid, err := latticemodel.NewOid(main)
	require.NoError(t, err)
	return &scanner.RepoSnapshot{
		Branches:    map[latticemodel.BranchName]latticemodel.Oid{"main": mainOid},
		Tracked:     map[latticemodel.BranchName]scanner.TrackedBranch{},
		Trunk:       "main",
		Fingerprint: latticemodel.ComputeFingerprint(nil),
		Worktrees:   []vcsgw.Worktree{{Path: f.root, Branch: "main"}},
	}
}

func TestExecuteEmptyPlanIsImmediateSuccess(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t)
	p := &plan.Plan{OpID: "op-1", Command: "noop"}

	res, err := f.executor().Execute(context.Background(), snap, p, time.Now())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, snap.Fingerprint, res.Fingerprint)

	state, err := journal.ReadOpState(f.paths)
	require.NoError(t, err)
	assert.Nil(t, state, "an empty plan must not write an op-state marker")
}

func TestExecuteRefusesWhenOperationInProgress(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t)
	now := time.Now()

	require.NoError(t, journal.WriteOpState(f.paths, journal.OpState{
		OpID: "stuck-op", Command: "restack", Phase: journal.PhaseInProgress, StartedAt: now,
	}))

	p := &plan.Plan{OpID: "op-2", Command: "track", Steps: []plan.Step{
		{Kind: plan.StepCheckpoint, Name: "x"},
	}}
	_, err := f.executor().Execute(context.Background(), snap, p, now)
	require.Error(t, err)
	var latticeErr *errs.LatticeError
	require.ErrorAs(t, err, &latticeErr)
	assert.Equal(t, errs.KindOperationInProgress, latticeErr.Kind)
}

func TestExecuteCommitsMetadataWriteAndRemovesOpState(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t)
	now := time.Now()

	record := latticemodel.NewMetadataRecord("feature-a", latticemodel.Parent{Kind: latticemodel.ParentKindTrunk, Name: "main"}, snap.Branches["main"], now)
	p := &plan.Plan{OpID: "op-3", Command: "track", Steps: []plan.Step{
		{Kind: plan.StepWriteMetadataCas, Branch: "feature-a", OldRefOid: latticemodel.ZeroOid, Metadata: record},
	}}

	res, err := f.executor().Execute(context.Background(), snap, p, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)

	entry, err := f.store.Read(context.Background(), "feature-a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, latticemodel.BranchName("feature-a"), entry.Record.Branch.Name)

	state, err := journal.ReadOpState(f.paths)
	require.NoError(t, err)
	assert.Nil(t, state)

	j, err := journal.Load(f.paths, "op-3")
	require.NoError(t, err)
	assert.Equal(t, journal.PhaseCommitted, j.Phase)
}

func TestExecuteAbortsOnCasFailure(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t)
	now := time.Now()

	p := &plan.Plan{OpID: "op-4", Command: "track", Steps: []plan.Step{
		// OldRefOid is wrong on purpose: there is no existing metadata yet,
		// so a non-zero expected old can never match.
		{Kind: plan.StepWriteMetadataCas, Branch: "feature-a", OldRefOid: "1111111111111111111111111111111111111111",
			Metadata: latticemodel.NewMetadataRecord("feature-a", latticemodel.Parent{Kind: latticemodel.ParentKindTrunk, Name: "main"}, snap.Branches["main"], now)},
	}}

	res, err := f.executor().Execute(context.Background(), snap, p, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, res.Outcome)
	require.Error(t, res.Err)

	state, err := journal.ReadOpState(f.paths)
	require.NoError(t, err)
	assert.Nil(t, state, "abort must remove the op-state marker")

	j, err := journal.Load(f.paths, "op-4")
	require.NoError(t, err)
	assert.Equal(t, journal.PhaseRolledBack, j.Phase)
}

func TestExecuteRunVcsStepCreatesBranchAndCommits(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t)
	now := time.Now()

	p := &plan.Plan{OpID: "op-5", Command: "create", Steps: []plan.Step{
		{Kind: plan.StepRunVcs, Args: []string{"checkout", "-b", "feature-b"}, Description: "create branch"},
	}}

	res, err := f.executor().Execute(context.Background(), snap, p, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)

	_, err = f.gw.ResolveRef(context.Background(), "refs/heads/feature-b")
	require.NoError(t, err)
}

func TestExecuteWorktreeOccupancyAbortsWhenBranchCheckedOutElsewhere(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t)
	snap.Worktrees = append(snap.Worktrees, vcsgw.Worktree{Path: "/some/other/worktree", Branch: "feature-c"})

	p := &plan.Plan{OpID: "op-6", Command: "delete", Steps: []plan.Step{
		{Kind: plan.StepDeleteRefCas, Refname: "refs/heads/feature-c", OldOid: snap.Branches["main"]},
	}}

	res, err := f.executor().Execute(context.Background(), snap, p, time.Now())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, res.Outcome)

	state, err := journal.ReadOpState(f.paths)
	require.NoError(t, err)
	assert.Nil(t, state, "a pre-journal abort must never write an op-state marker")
}

func TestExecutePausesOnConflictedRebase(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t)
	ctx := context.Background()

	f.run(t, "checkout", "-b", "feature-d")
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "README.md"), []byte("feature change\n"), 0644))
	f.run(t, "commit", "-am", "feature change")

	f.run(t, "checkout", "main")
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "README.md"), []byte("main change\n"), 0644))
	f.run(t, "commit", "-am", "main change")
	mainOid, err := f.gw.ResolveRef(ctx, "refs/heads/main")
	require.NoError(t, err)
	snap.Branches["main"] = latticemodel.Oid(mainOid)

	f.run(t, "checkout", "feature-d")

	p := &plan.Plan{OpID: "op-7", Command: "restack", Steps: []plan.Step{
		{Kind: plan.StepCheckpoint, Name: "restack-feature-d"},
		{Kind: plan.StepRunVcs, Args: []string{"rebase", "--onto", mainOid, "HEAD~1", "feature-d"}, Description: "rebase feature-d onto main"},
		{Kind: plan.StepPotentialConflictPause, Branch: "feature-d", VcsOperation: "rebase"},
		{Kind: plan.StepCheckpoint, Name: "should-not-run"},
	}}

	res, err := f.executor().Execute(ctx, snap, p, time.Now())
	require.NoError(t, err)
	require.Equal(t, OutcomePaused, res.Outcome)
	assert.Equal(t, latticemodel.BranchName("feature-d"), res.Branch)
	assert.Len(t, res.RemainingSteps, 1)

	state, err := journal.ReadOpState(f.paths)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, journal.PhasePaused, state.Phase)

	j, err := journal.Load(f.paths, "op-7")
	require.NoError(t, err)
	assert.Equal(t, journal.PhasePaused, j.Phase)
}
