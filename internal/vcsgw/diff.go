package vcsgw

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/kofron/lattice/internal/constants"
)

// Diff returns the unified diff between base and tip, restricted to the
// given pathspecs (a bare "--" with no pathspecs diffs everything). Used
// by `lattice split --by-file` to extract a file-scoped patch and its
// complement before synthesising the two resulting branches.
func (g *Gateway) Diff(ctx context.Context, base, tip string, pathspecs ...string) (string, error) {
	ctx, cancel := g.withTimeout(ctx, constants.DefaultOperationTimeout)
	defer cancel()
	args := append([]string{"diff", base, tip, "--"}, pathspecs...)
	// Not g.run: it trims stdout, and a patch that loses its final newline
	// (or a trailing blank context line) no longer applies.
	g.mu.Lock()
	defer g.mu.Unlock()
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workdir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w\nstderr: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}
