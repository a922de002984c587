package vcsgw

import (
	"context"
	"fmt"

	"github.com/kofron/lattice/internal/constants"
)

// RunGit executes an arbitrary git subcommand in the worktree (checkout,
// rebase, merge, reset, commit, revert, branch -m, ...) and returns combined
// stdout. Callers that need to distinguish a real failure from a foreground
// operation left in-progress (a conflicted rebase, say) should follow up
// with State, since git itself exits non-zero for both.
func (g *Gateway) RunGit(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := g.withTimeout(ctx, constants.DefaultOperationTimeout)
	defer cancel()
	return g.run(ctx, args...)
}

// RunGitStdin is RunGit for subcommands that read a patch or object from
// stdin (git apply --index, fed a diff `lattice split --by-file` extracted).
func (g *Gateway) RunGitStdin(ctx context.Context, stdin []byte, args ...string) (string, error) {
	ctx, cancel := g.withTimeout(ctx, constants.DefaultOperationTimeout)
	defer cancel()
	return g.runStdin(ctx, stdin, args...)
}

// Fetch runs `git fetch <remote>`, updating remote-tracking refs so a
// subsequent restack or merge sees the forge's current state.
func (g *Gateway) Fetch(ctx context.Context, remote string) error {
	if remote == "" {
		return fmt.Errorf("fetch: no remote configured")
	}
	ctx, cancel := g.withTimeout(ctx, constants.DefaultFetchTimeout)
	defer cancel()
	_, err := g.run(ctx, "fetch", remote)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", remote, err)
	}
	return nil
}

// Push runs `git push <remote> <branch>`, force-with-lease when force is
// set (the only safe form after a rebase has rewritten the branch).
func (g *Gateway) Push(ctx context.Context, remote, branch string, force bool) error {
	if remote == "" {
		return fmt.Errorf("push: no remote configured")
	}
	ctx, cancel := g.withTimeout(ctx, constants.DefaultFetchTimeout)
	defer cancel()
	args := []string{"push"}
	if force {
		args = append(args, "--force-with-lease")
	}
	args = append(args, remote, branch)
	_, err := g.run(ctx, args...)
	if err != nil {
		return fmt.Errorf("pushing %s to %s: %w", branch, remote, err)
	}
	return nil
}
