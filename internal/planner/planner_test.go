package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
	"github.com/kofron/lattice/internal/scanner"
)

func fullCapabilities() scanner.CapabilitySet {
	return scanner.CapabilitySet{
		scanner.CapRepoOpen: true, scanner.CapWorkingDir: true, scanner.CapTrunkKnown: true,
		scanner.CapNoOpsInProgress: true, scanner.CapWorktreeClean: true, scanner.CapMetadataReadable: true,
	}
}

func baseSnapshot() *scanner.RepoSnapshot {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mainOid := latticemodel.Oid("1111111111111111111111111111111111111111")
	aOid := latticemodel.Oid("2222222222222222222222222222222222222222")

	aRecord := latticemodel.NewMetadataRecord("a", latticemodel.Parent{Kind: latticemodel.ParentKindTrunk, Name: "main"}, mainOid, now)

	return &scanner.RepoSnapshot{
		Trunk:         "main",
		CurrentBranch: "a",
		Branches: map[latticemodel.BranchName]latticemodel.Oid{
			"main": mainOid,
			"a":    aOid,
		},
		Tracked: map[latticemodel.BranchName]scanner.TrackedBranch{
			"a": {RefOid: "blobaaa", Record: aRecord},
		},
		Graph: scanner.StackGraph{
			Children: map[latticemodel.BranchName][]latticemodel.BranchName{"main": {"a"}},
			Parents:  map[latticemodel.BranchName]latticemodel.BranchName{"a": "main"},
		},
		Capabilities: fullCapabilities(),
	}
}

func TestTrackPlan(t *testing.T) {
	snap := baseSnapshot()
	snap.Branches["b"] = "3333333333333333333333333333333333333333"
	cmd := &Track{Branch: "b", Parent: latticemodel.Parent{Kind: latticemodel.ParentKindBranch, Name: "a"}, Now: time.Now()}

	p, err := cmd.Plan(&gate.ReadyContext{Snapshot: snap})
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, plan.StepWriteMetadataCas, p.Steps[0].Kind)
	assert.Equal(t, latticemodel.BranchName("b"), p.Steps[0].Branch)
}

func TestTrackRejectsAlreadyTracked(t *testing.T) {
	snap := baseSnapshot()
	cmd := &Track{Branch: "a", Parent: latticemodel.Parent{Kind: latticemodel.ParentKindTrunk, Name: "main"}}

	_, err := cmd.Plan(&gate.ReadyContext{Snapshot: snap})
	assert.Error(t, err)
}

func TestUntrackPlanIsMetadataOnly(t *testing.T) {
	snap := baseSnapshot()
	cmd := &Untrack{Branch: "a"}

	p, err := cmd.Plan(&gate.ReadyContext{Snapshot: snap})
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, plan.StepDeleteMetadataCas, p.Steps[0].Kind)
}

func TestFreezeThenUnfreezeIsIdentityExceptTimestamp(t *testing.T) {
	snap := baseSnapshot()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	freezePlan, err := (&Freeze{Branch: "a", Reason: "release", Now: now}).Plan(&gate.ReadyContext{Snapshot: snap})
	require.NoError(t, err)
	frozen := freezePlan.Steps[0].Metadata
	assert.True(t, frozen.IsFrozen())

	snap.Tracked["a"] = scanner.TrackedBranch{RefOid: "blobaaa2", Record: frozen}
	unfreezePlan, err := (&Unfreeze{Branch: "a", Now: now}).Plan(&gate.ReadyContext{Snapshot: snap})
	require.NoError(t, err)
	unfrozen := unfreezePlan.Steps[0].Metadata
	assert.False(t, unfrozen.IsFrozen())
	assert.Equal(t, snap.Tracked["a"].Record.Parent, unfrozen.Parent)
	assert.Equal(t, snap.Tracked["a"].Record.Base, unfrozen.Base)
}

func TestDeleteRefusesWhenChildrenExistWithoutForce(t *testing.T) {
	snap := baseSnapshot()

	cmd := &Delete{Name: "main"} // has child "a" per baseSnapshot's graph
	_, err := cmd.Plan(&gate.ReadyContext{Snapshot: snap})
	assert.Error(t, err)
}

func TestDeleteWithForceReparentsChildren(t *testing.T) {
	snap := baseSnapshot()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bRecord := latticemodel.NewMetadataRecord("b", latticemodel.Parent{Kind: latticemodel.ParentKindBranch, Name: "a"}, snap.Branches["a"], now)
	snap.Tracked["b"] = scanner.TrackedBranch{RefOid: "blobbbb", Record: bRecord}
	snap.Branches["b"] = "4444444444444444444444444444444444444444"
	snap.Graph.Children["a"] = []latticemodel.BranchName{"b"}
	snap.Graph.Parents["b"] = "a"

	cmd := &Delete{Name: "a", Force: true, Now: now}
	p, err := cmd.Plan(&gate.ReadyContext{Snapshot: snap})
	require.NoError(t, err)

	var reparented *plan.Step
	for i := range p.Steps {
		if p.Steps[i].Kind == plan.StepWriteMetadataCas && p.Steps[i].Branch == "b" {
			reparented = &p.Steps[i]
		}
	}
	require.NotNil(t, reparented)
	assert.Equal(t, latticemodel.ParentKindTrunk, reparented.Metadata.Parent.Kind)
}

func TestCheckFrozenBlocksMutatingCommands(t *testing.T) {
	snap := baseSnapshot()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	frozen := *snap.Tracked["a"].Record
	frozen.Freeze = latticemodel.Freeze{State: latticemodel.FreezeStateFrozen, Reason: "cut"}
	snap.Tracked["a"] = scanner.TrackedBranch{RefOid: "blobaaa", Record: &frozen}

	cmd := &Rename{From: "a", To: "a2", Now: now}
	_, err := cmd.Plan(&gate.ReadyContext{Snapshot: snap})
	assert.Error(t, err)
}

func TestRestackNoOpWhenBaseAligned(t *testing.T) {
	snap := baseSnapshot()
	cmd := &Restack{Now: time.Now()}

	p, err := cmd.Plan(&gate.ReadyContext{Snapshot: snap})
	require.NoError(t, err)
	assert.True(t, p.IsEmpty(), "branch a's base already matches main's tip")
}

func TestRestackPlansRebaseWhenBaseStale(t *testing.T) {
	snap := baseSnapshot()
	snap.Branches["main"] = "9999999999999999999999999999999999999999"
	cmd := &Restack{Now: time.Now()}

	p, err := cmd.Plan(&gate.ReadyContext{Snapshot: snap})
	require.NoError(t, err)
	require.NotEmpty(t, p.Steps)
	var sawRebase bool
	for _, s := range p.Steps {
		if s.Kind == plan.StepRunVcs && len(s.Args) > 0 && s.Args[0] == "rebase" {
			sawRebase = true
		}
	}
	assert.True(t, sawRebase)
}
