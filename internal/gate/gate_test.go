package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kofron/lattice/internal/config"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/scanner"
)

func TestGateReadyWhenCapabilitiesSatisfied(t *testing.T) {
	snap := &scanner.RepoSnapshot{
		Capabilities: scanner.CapabilitySet{
			scanner.CapRepoOpen: true, scanner.CapWorkingDir: true, scanner.CapTrunkKnown: true,
			scanner.CapNoOpsInProgress: true, scanner.CapWorktreeClean: true, scanner.CapMetadataReadable: true,
		},
	}

	result := Gate(snap, Mutating, config.Default())
	require.NotNil(t, result.Ready)
	assert.Nil(t, result.Repair)
}

func TestGateRepairWhenCapabilitiesMissing(t *testing.T) {
	snap := &scanner.RepoSnapshot{
		Capabilities: scanner.CapabilitySet{scanner.CapRepoOpen: true},
	}

	result := Gate(snap, Mutating, config.Default())
	require.Nil(t, result.Ready)
	require.NotNil(t, result.Repair)
	assert.Contains(t, result.Repair.MissingCapabilities, scanner.CapTrunkKnown)
	assert.NotEmpty(t, result.Repair.SuggestedFixes)
}

func TestGateRefusesOnDivergenceWhenPolicyIsRefuse(t *testing.T) {
	snap := &scanner.RepoSnapshot{
		Capabilities: scanner.CapabilitySet{
			scanner.CapRepoOpen: true, scanner.CapWorkingDir: true, scanner.CapTrunkKnown: true,
			scanner.CapNoOpsInProgress: true, scanner.CapWorktreeClean: true, scanner.CapMetadataReadable: true,
		},
		Divergence: &scanner.DivergenceInfo{RecordedFingerprint: "old", CurrentFingerprint: "new"},
	}
	cfg := config.Default()
	cfg.Divergence.OnMutatingCommand = config.DivergenceRefuse

	result := Gate(snap, Mutating, cfg)
	require.Nil(t, result.Ready)
	require.NotNil(t, result.Repair)
}

func TestGateAllowsDivergenceWhenPolicyIsWarn(t *testing.T) {
	snap := &scanner.RepoSnapshot{
		Capabilities: scanner.CapabilitySet{
			scanner.CapRepoOpen: true, scanner.CapWorkingDir: true, scanner.CapTrunkKnown: true,
			scanner.CapNoOpsInProgress: true, scanner.CapWorktreeClean: true, scanner.CapMetadataReadable: true,
		},
		Divergence: &scanner.DivergenceInfo{RecordedFingerprint: "old", CurrentFingerprint: "new"},
	}
	cfg := config.Default()
	cfg.Divergence.OnMutatingCommand = config.DivergenceWarn

	result := Gate(snap, Mutating, cfg)
	require.NotNil(t, result.Ready)
}

func TestGateDivergenceIgnoredForReadOnly(t *testing.T) {
	snap := &scanner.RepoSnapshot{
		Capabilities: scanner.CapabilitySet{scanner.CapRepoOpen: true},
		Divergence:   &scanner.DivergenceInfo{RecordedFingerprint: "old", CurrentFingerprint: "new"},
	}
	cfg := config.Default()
	cfg.Divergence.OnMutatingCommand = config.DivergenceRefuse

	result := Gate(snap, ReadOnly, cfg)
	require.NotNil(t, result.Ready)
}

func TestCheckFrozenBlocksFrozenBranch(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	record := latticemodel.NewMetadataRecord("feature-a", latticemodel.Parent{Kind: latticemodel.ParentKindTrunk, Name: "main"}, latticemodel.Oid("abcdef0123456789abcdef0123456789abcdef01"), now)
	record.Freeze = latticemodel.Freeze{State: latticemodel.FreezeStateFrozen, Reason: "release cut"}

	snap := &scanner.RepoSnapshot{
		Tracked: map[latticemodel.BranchName]scanner.TrackedBranch{
			"feature-a": {Record: record},
		},
	}

	err := CheckFrozen(snap, []latticemodel.BranchName{"feature-a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frozen_branch")
}

func TestCheckFrozenAllowsUnfrozenBranch(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	record := latticemodel.NewMetadataRecord("feature-a", latticemodel.Parent{Kind: latticemodel.ParentKindTrunk, Name: "main"}, latticemodel.Oid("abcdef0123456789abcdef0123456789abcdef01"), now)

	snap := &scanner.RepoSnapshot{
		Tracked: map[latticemodel.BranchName]scanner.TrackedBranch{
			"feature-a": {Record: record},
		},
	}

	err := CheckFrozen(snap, []latticemodel.BranchName{"feature-a"})
	assert.NoError(t, err)
}
