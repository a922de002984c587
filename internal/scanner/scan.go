package scanner

import (
	"context"
	"fmt"

	"github.com/kofron/lattice/internal/config"
	"github.com/kofron/lattice/internal/constants"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/ledger"
	"github.com/kofron/lattice/internal/metadata"
	"github.com/kofron/lattice/internal/vcsgw"
)

// Scanner reads a repository's current state into a RepoSnapshot. It never
// writes anything.
type Scanner struct {
	gw     *vcsgw.Gateway
	store  *metadata.Store
	ledger *ledger.Ledger
	cfg    *config.Config
}

// New builds a Scanner over the given collaborators.
func New(gw *vcsgw.Gateway, store *metadata.Store, led *ledger.Ledger, cfg *config.Config) *Scanner {
	return &Scanner{gw: gw, store: store, ledger: led, cfg: cfg}
}

// Scan produces a fresh RepoSnapshot. Any I/O error that prevents producing
// a coherent snapshot is returned, wrapped with what was being read; there
// is no dedicated scan error type.
func (s *Scanner) Scan(ctx context.Context) (*RepoSnapshot, error) {
	snap := &RepoSnapshot{
		Branches: map[latticemodel.BranchName]latticemodel.Oid{},
		Tracked:  map[latticemodel.BranchName]TrackedBranch{},
		Graph: StackGraph{
			Children: map[latticemodel.BranchName][]latticemodel.BranchName{},
			Parents:  map[latticemodel.BranchName]latticemodel.BranchName{},
		},
		Capabilities: CapabilitySet{CapRepoOpen: true},
	}

	headRefs, err := s.gw.ListHeadRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing branch refs: %w", err)
	}
	for _, ref := range headRefs {
		name, err := latticemodel.NewBranchName(refSuffix(ref.Ref, "refs/heads/"))
		if err != nil {
			continue
		}
		oid, err := latticemodel.NewOid(ref.Oid)
		if err != nil {
			continue
		}
		snap.Branches[name] = oid
	}
	if len(snap.Branches) > 0 {
		snap.Capabilities[CapNotBareRepo] = true
	}

	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing metadata: %w", err)
	}
	for _, e := range entries {
		if e.Err != nil {
			snap.Health.Add(IssueMetadataCorrupt, SeverityError, string(e.Branch), e.Err.Error())
			continue
		}
		snap.Tracked[e.Branch] = TrackedBranch{RefOid: e.Entry.RefOid, Record: e.Entry.Record}
	}
	snap.Capabilities[CapMetadataReadable] = true

	s.buildGraphAndValidate(ctx, snap)

	trunk := s.determineTrunk(snap)
	snap.Trunk = trunk
	if trunk != "" {
		if _, ok := snap.Branches[trunk]; ok {
			snap.Capabilities[CapTrunkKnown] = true
		} else {
			snap.Health.Add(IssueMissingTrunk, SeverityError, string(trunk), "configured trunk branch does not exist")
		}
	} else {
		snap.Health.Add(IssueMissingTrunk, SeverityError, "", "no trunk branch configured or discoverable")
	}

	vcsState := s.gw.State(ctx)
	snap.VcsState = vcsState
	if vcsState == vcsgw.VcsStateClean {
		snap.Capabilities[CapNoOpsInProgress] = true
		snap.Capabilities[CapWorkingDir] = true
	}

	worktrees, err := s.gw.ListWorktrees(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing worktrees: %w", err)
	}
	snap.Worktrees = worktrees
	for _, wt := range worktrees {
		if wt.Branch != "" {
			snap.CurrentBranch = latticemodel.BranchName(wt.Branch)
			break
		}
	}
	if vcsState == vcsgw.VcsStateClean {
		snap.Capabilities[CapWorktreeClean] = true
	}

	if s.cfg.Repo.Remote != "" {
		snap.Capabilities[CapRemoteConfigured] = true
	}

	refOids := make([]latticemodel.RefOid, 0, len(snap.Branches)+len(snap.Tracked))
	for name, oid := range snap.Branches {
		refOids = append(refOids, latticemodel.RefOid{Ref: string(latticemodel.HeadsRef(name)), Oid: oid})
	}
	for name, tracked := range snap.Tracked {
		refOids = append(refOids, latticemodel.RefOid{Ref: string(latticemodel.MetadataRef(name)), Oid: tracked.RefOid})
	}
	snap.Fingerprint = latticemodel.ComputeFingerprint(refOids)

	if s.ledger != nil {
		recorded, ok, err := s.ledger.LastRecordedFingerprint(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading event ledger: %w", err)
		}
		if ok && recorded != snap.Fingerprint {
			snap.Divergence = &DivergenceInfo{RecordedFingerprint: recorded, CurrentFingerprint: snap.Fingerprint}
		}
	}

	return snap, nil
}

// buildGraphAndValidate derives StackGraph adjacency from tracked branches'
// parent fields and records HealthReport issues for dangling references,
// without failing the scan.
func (s *Scanner) buildGraphAndValidate(ctx context.Context, snap *RepoSnapshot) {
	for name, tracked := range snap.Tracked {
		parent := tracked.Record.Parent
		if parent.Kind == latticemodel.ParentKindBranch {
			if _, ok := snap.Tracked[parent.Name]; !ok {
				snap.Health.Add(IssueMissingParent, SeverityError, string(name),
					fmt.Sprintf("parent branch %q is not tracked", parent.Name))
				continue
			}
			snap.Graph.Parents[name] = parent.Name
			snap.Graph.Children[parent.Name] = append(snap.Graph.Children[parent.Name], name)
		}

		if _, ok := snap.Branches[name]; !ok {
			snap.Health.Add(IssueOrphanMetadata, SeverityWarn, string(name), "metadata exists but the branch ref is gone")
			continue
		}

		s.validateBase(ctx, snap, name, tracked)
	}

	if cycleNode, hasCycle := detectCycle(snap.Graph); hasCycle {
		snap.Health.Add(IssueGraphCycle, SeverityError, string(cycleNode), "stack graph contains a cycle")
	}
}

// validateBase checks invariant 1: the parent's tip must be an ancestor of
// base.oid, or the scan records a stale-base issue for the doctor to offer
// UpdateBase on.
func (s *Scanner) validateBase(ctx context.Context, snap *RepoSnapshot, name latticemodel.BranchName, tracked TrackedBranch) {
	if tracked.Record.Base.Oid.IsZero() {
		return
	}

	var parentTip latticemodel.Oid
	switch tracked.Record.Parent.Kind {
	case latticemodel.ParentKindTrunk:
		parentTip = snap.Branches[snap.Trunk]
	case latticemodel.ParentKindBranch:
		parentTip = snap.Branches[tracked.Record.Parent.Name]
	}
	if parentTip == "" {
		return
	}

	isAncestor, err := s.gw.IsAncestor(ctx, string(parentTip), string(tracked.Record.Base.Oid))
	if err != nil {
		snap.Health.Add(IssueBaseUnreachable, SeverityError, string(name), fmt.Sprintf("base oid %s is not a reachable object", tracked.Record.Base.Oid))
		return
	}
	if !isAncestor {
		snap.Health.Add(IssueBaseUnreachable, SeverityWarn, string(name), "parent has moved past recorded base; branch needs a restack")
	}
}

// detectCycle runs a DFS over the parent adjacency to find a cycle; this
// should be structurally impossible given CAS-safe writes, but the scanner
// checks defensively per the invariant in spec section 3.
func detectCycle(graph StackGraph) (latticemodel.BranchName, bool) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[latticemodel.BranchName]int{}

	var visit func(n latticemodel.BranchName) (latticemodel.BranchName, bool)
	visit = func(n latticemodel.BranchName) (latticemodel.BranchName, bool) {
		switch state[n] {
		case visiting:
			return n, true
		case done:
			return "", false
		}
		state[n] = visiting
		for _, child := range graph.Children[n] {
			if cycleNode, found := visit(child); found {
				return cycleNode, true
			}
		}
		state[n] = done
		return "", false
	}

	roots := map[latticemodel.BranchName]bool{}
	for n := range graph.Children {
		if _, hasParent := graph.Parents[n]; !hasParent {
			roots[n] = true
		}
	}
	for n := range graph.Parents {
		roots[graph.Parents[n]] = true
	}

	for root := range roots {
		if cycleNode, found := visit(root); found {
			return cycleNode, true
		}
	}
	return "", false
}

// determineTrunk resolves the configured trunk, falling back to "main" or
// "master" if one of them exists and no override is configured.
func (s *Scanner) determineTrunk(snap *RepoSnapshot) latticemodel.BranchName {
	if s.cfg.Repo.Trunk != "" {
		name, err := latticemodel.NewBranchName(s.cfg.Repo.Trunk)
		if err == nil {
			return name
		}
	}
	for _, candidate := range []string{constants.DefaultBranch, constants.MasterBranch} {
		name, err := latticemodel.NewBranchName(candidate)
		if err != nil {
			continue
		}
		if _, ok := snap.Branches[name]; ok {
			return name
		}
	}
	return ""
}

func refSuffix(ref, prefix string) string {
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ref
}
