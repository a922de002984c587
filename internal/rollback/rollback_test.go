package rollback

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func (f *fixture) executor() *executor.Executor {
	return executor.New(f.gw, f.store, f.led, f.paths, nil, "origin")
}

func TestAbortRestoresCreatedRefAndRemovesOpState(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t)
	now := time.Now()

	p := &plan.Plan{OpID: "op-1", Command: "create", Steps: []plan.Step{
		{Kind: plan.StepCreateSnapshotBranch, BranchName: "snap-a", HeadOid: snap.Branches["main"]},
	}}
	res, err := f.executor().Execute(context.Background(), snap, p, now)
	require.NoError(t, err)
	require.Equal(t, executor.OutcomeSuccess, res.Outcome)

	// Abort only reads the journal's step entries, not its phase; this
	// exercises the reverse-traversal logic directly against the journal
	// Execute already wrote.
	require.NoError(t, journal.WriteOpState(f.paths, journal.OpState{
		OpID: "op-1", Command: "create", Phase: journal.PhaseInProgress,
		OriginWorktree: f.gw.GitDir(), StartedAt: now,
	}))

	state, err := journal.ReadOpState(f.paths)
	require.NoError(t, err)
	require.NotNil(t, state)

	rec := New(f.gw, f.store, f.led, f.paths)
	result, err := rec.Abort(context.Background(), state, now)
	require.NoError(t, err)
	assert.Empty(t, result.Failed)
	assert.Contains(t, result.RestoredRefs, "refs/heads/snap-a")

	_, err = f.gw.ResolveRef(context.Background(), "refs/heads/snap-a")
	require.Error(t, err, "snap-a should have been deleted by abort")

	gotState, err := journal.ReadOpState(f.paths)
	require.NoError(t, err)
	assert.Nil(t, gotState)
}

func TestAbortRefusesFromOtherWorktree(t *testing.T) {
	f := newFixture(t)
	rec := New(f.gw, f.store, f.led, f.paths)

	state := &journal.OpState{OpID: "op-2", Command: "restack", Phase: journal.PhaseInProgress, OriginWorktree: "/somewhere/else"}
	_, err := rec.Abort(context.Background(), state, time.Now())
	require.Error(t, err)
}

func TestAbortReportsMetadataDeleteAsIncomplete(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t)
	now := time.Now()

	record := latticemodel.NewMetadataRecord("feature-a", latticemodel.Parent{Kind: latticemodel.ParentKindTrunk, Name: "main"}, snap.Branches["main"], now)
	create := &plan.Plan{OpID: "op-3", Command: "track", Steps: []plan.Step{
		{Kind: plan.StepWriteMetadataCas, Branch: "feature-a", OldRefOid: latticemodel.ZeroOid, Metadata: record},
	}}
	_, err := f.executor().Execute(context.Background(), snap, create, now)
	require.NoError(t, err)

	entry, err := f.store.Read(context.Background(), "feature-a")
	require.NoError(t, err)

	untrack := &plan.Plan{OpID: "op-4", Command: "untrack", Steps: []plan.Step{
		{Kind: plan.StepDeleteMetadataCas, Branch: "feature-a", OldRefOid: entry.RefOid},
	}}
	_, err = f.executor().Execute(context.Background(), snap, untrack, now)
	require.NoError(t, err)

	require.NoError(t, journal.WriteOpState(f.paths, journal.OpState{
		OpID: "op-4", Command: "untrack", Phase: journal.PhaseInProgress,
		OriginWorktree: f.gw.GitDir(), StartedAt: now,
	}))
	state, err := journal.ReadOpState(f.paths)
	require.NoError(t, err)

	rec := New(f.gw, f.store, f.led, f.paths)
	result, err := rec.Abort(context.Background(), state, now)
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, journal.StepKindMetadataDelete, result.Failed[0].Kind)
}

func TestContinueRefusesWhenNotPaused(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t)
	state := &journal.OpState{OpID: "op-5", Command: "restack", Phase: journal.PhaseInProgress, OriginWorktree: f.gw.GitDir()}
	_, err := Continue(context.Background(), f.executor(), f.paths, state, snap, time.Now())
	require.Error(t, err)
}
