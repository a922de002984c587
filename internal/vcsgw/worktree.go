package vcsgw

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/kofron/lattice/internal/constants"
)

// VcsState names an in-progress foreground operation the underlying VCS is
// tracking via files under GitDir, independent of anything Lattice records.
type VcsState string

const (
	VcsStateClean         VcsState = "clean"
	VcsStateRebaseInteractive VcsState = "rebase_interactive"
	VcsStateRebaseMerge   VcsState = "rebase_merge"
	VcsStateMerge         VcsState = "merge"
	VcsStateCherryPick    VcsState = "cherry_pick"
	VcsStateRevert        VcsState = "revert"
	VcsStateAm            VcsState = "am"
	VcsStateBisect        VcsState = "bisect"
)

// State inspects GitDir for the marker files git leaves behind during a
// paused foreground operation (interrupted rebase, unresolved merge, and so
// on). Lattice's own Gate consults this before treating the working tree as
// eligible for a new mutating command.
func (g *Gateway) State(ctx context.Context) VcsState {
	gd := g.gitDir
	switch {
	case exists(filepath.Join(gd, "rebase-merge", "interactive")):
		return VcsStateRebaseInteractive
	case exists(filepath.Join(gd, "rebase-merge")):
		return VcsStateRebaseMerge
	case exists(filepath.Join(gd, "rebase-apply", "rebasing")):
		return VcsStateRebaseMerge
	case exists(filepath.Join(gd, "rebase-apply")):
		return VcsStateAm
	case exists(filepath.Join(gd, "MERGE_HEAD")):
		return VcsStateMerge
	case exists(filepath.Join(gd, "CHERRY_PICK_HEAD")):
		return VcsStateCherryPick
	case exists(filepath.Join(gd, "REVERT_HEAD")):
		return VcsStateRevert
	case exists(filepath.Join(gd, "BISECT_LOG")):
		return VcsStateBisect
	default:
		return VcsStateClean
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Worktree describes one entry of `git worktree list`.
type Worktree struct {
	Path   string
	Head   string
	Branch string // empty when detached
	Bare   bool
}

// ListWorktrees enumerates every worktree linked to this repository,
// including the primary one. The Gate consults this to detect whether a
// branch a command wants to mutate is checked out elsewhere.
func (g *Gateway) ListWorktrees(ctx context.Context) ([]Worktree, error) {
	ctx, cancel := g.withTimeout(ctx, constants.BranchOperationTimeout)
	defer cancel()
	out, err := g.run(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreePorcelain(out), nil
}

func parseWorktreePorcelain(out string) []Worktree {
	var worktrees []Worktree
	var current *Worktree

	flush := func() {
		if current != nil {
			worktrees = append(worktrees, *current)
		}
	}

	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			current = &Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "HEAD "):
			if current != nil {
				current.Head = strings.TrimPrefix(line, "HEAD ")
			}
		case strings.HasPrefix(line, "branch "):
			if current != nil {
				current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
			}
		case line == "bare":
			if current != nil {
				current.Bare = true
			}
		case line == "":
			flush()
			current = nil
		}
	}
	flush()
	return worktrees
}
