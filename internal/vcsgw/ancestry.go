package vcsgw

import (
	"context"
	"fmt"
	"strings"

	"github.com/kofron/lattice/internal/constants"
)

// CommitParents returns the parent oids of the commit at oid, in order.
// A root commit returns an empty slice.
func (g *Gateway) CommitParents(ctx context.Context, oid string) ([]string, error) {
	ctx, cancel := g.withTimeout(ctx, constants.QuickOperationTimeout)
	defer cancel()
	out, err := g.run(ctx, "rev-list", "--parents", "-n", "1", oid)
	if err != nil {
		return nil, &ObjectNotFoundError{Oid: oid}
	}
	fields := strings.Fields(out)
	if len(fields) <= 1 {
		return nil, nil
	}
	return fields[1:], nil
}

// MergeBase returns the best common ancestor of a and b.
func (g *Gateway) MergeBase(ctx context.Context, a, b string) (string, error) {
	ctx, cancel := g.withTimeout(ctx, constants.QuickOperationTimeout)
	defer cancel()
	out, err := g.run(ctx, "merge-base", a, b)
	if err != nil {
		return "", err
	}
	return out, nil
}

// CommitsInRange returns the oids reachable from tip but not base, oldest
// first — the commits `lattice split --by-commit` turns into one branch
// each.
func (g *Gateway) CommitsInRange(ctx context.Context, base, tip string) ([]string, error) {
	ctx, cancel := g.withTimeout(ctx, constants.QuickOperationTimeout)
	defer cancel()
	out, err := g.run(ctx, "rev-list", "--reverse", base+".."+tip)
	if err != nil {
		return nil, fmt.Errorf("listing commits %s..%s: %w", base, tip, err)
	}
	var oids []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			oids = append(oids, line)
		}
	}
	return oids, nil
}

// IsAncestor reports whether ancestor is an ancestor of (or equal to) descendant.
func (g *Gateway) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	ctx, cancel := g.withTimeout(ctx, constants.QuickOperationTimeout)
	defer cancel()
	_, err := g.run(ctx, "merge-base", "--is-ancestor", ancestor, descendant)
	if err != nil {
		if exitCode(err) == 1 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
