package vcsgw

import (
	"context"
	"fmt"
	"strings"

	"github.com/kofron/lattice/internal/constants"
)

const zeroOid = "0000000000000000000000000000000000000000"

// ResolveRef returns the oid a ref currently points to, or RefNotFoundError.
func (g *Gateway) ResolveRef(ctx context.Context, ref string) (string, error) {
	ctx, cancel := g.withTimeout(ctx, constants.QuickOperationTimeout)
	defer cancel()
	oid, err := g.run(ctx, "rev-parse", "--verify", "--quiet", ref)
	if err != nil {
		return "", &RefNotFoundError{Ref: ref}
	}
	return oid, nil
}

// TryResolveRef is ResolveRef but returns ("", nil) instead of an error when
// the ref does not exist, for call sites that treat absence as a valid case.
func (g *Gateway) TryResolveRef(ctx context.Context, ref string) (string, error) {
	oid, err := g.ResolveRef(ctx, ref)
	if err != nil {
		if _, ok := err.(*RefNotFoundError); ok {
			return "", nil
		}
		return "", err
	}
	return oid, nil
}

// TryResolveRefToObject resolves ref and dereferences it to the object it
// ultimately points to (peeling annotated tags); returns ("", nil) if absent.
func (g *Gateway) TryResolveRefToObject(ctx context.Context, ref string) (string, error) {
	ctx, cancel := g.withTimeout(ctx, constants.QuickOperationTimeout)
	defer cancel()
	oid, err := g.run(ctx, "rev-parse", "--verify", "--quiet", ref+"^{}")
	if err != nil {
		return "", nil
	}
	return oid, nil
}

// ReadBlobAsString reads the blob at oid and returns its contents as a string.
func (g *Gateway) ReadBlobAsString(ctx context.Context, oid string) (string, error) {
	ctx, cancel := g.withTimeout(ctx, constants.QuickOperationTimeout)
	defer cancel()
	out, err := g.run(ctx, "cat-file", "-p", oid)
	if err != nil {
		return "", &ObjectNotFoundError{Oid: oid}
	}
	return out, nil
}

// WriteBlob hashes content into the object store and returns its oid.
// The blob is not reachable from any ref until one is pointed at it.
func (g *Gateway) WriteBlob(ctx context.Context, content []byte) (string, error) {
	ctx, cancel := g.withTimeout(ctx, constants.QuickOperationTimeout)
	defer cancel()
	oid, err := g.runStdin(ctx, content, "hash-object", "-w", "--stdin")
	if err != nil {
		return "", fmt.Errorf("writing blob: %w", err)
	}
	return oid, nil
}

// UpdateRefCas atomically updates ref to newOid iff its current value equals
// expectedOid (expectedOid == "" means the ref must not currently exist).
func (g *Gateway) UpdateRefCas(ctx context.Context, ref, newOid, expectedOid string) error {
	ctx, cancel := g.withTimeout(ctx, constants.QuickOperationTimeout)
	defer cancel()
	old := expectedOid
	if old == "" {
		old = zeroOid
	}
	cmd := fmt.Sprintf("update %s %s %s\n", ref, newOid, old)
	_, err := g.runStdin(ctx, []byte(cmd), "update-ref", "--stdin")
	if err != nil {
		actual, resolveErr := g.TryResolveRef(ctx, ref)
		if resolveErr == nil {
			return &CasFailedError{Ref: ref, Expected: expectedOid, Actual: actual}
		}
		return &CasFailedError{Ref: ref, Expected: expectedOid, Actual: "<unknown>"}
	}
	return nil
}

// DeleteRefCas atomically deletes ref iff its current value equals expectedOid.
func (g *Gateway) DeleteRefCas(ctx context.Context, ref, expectedOid string) error {
	ctx, cancel := g.withTimeout(ctx, constants.QuickOperationTimeout)
	defer cancel()
	cmd := fmt.Sprintf("delete %s %s\n", ref, expectedOid)
	_, err := g.runStdin(ctx, []byte(cmd), "update-ref", "--stdin")
	if err != nil {
		actual, resolveErr := g.TryResolveRef(ctx, ref)
		if resolveErr == nil {
			return &CasFailedError{Ref: ref, Expected: expectedOid, Actual: actual}
		}
		return &CasFailedError{Ref: ref, Expected: expectedOid, Actual: "<unknown>"}
	}
	return nil
}

// UpdateRefForce sets ref to newOid unconditionally. Reserved for recovery
// paths (rollback, doctor fixes) that have already established exclusivity
// via the repository lock; ordinary mutation goes through UpdateRefCas.
func (g *Gateway) UpdateRefForce(ctx context.Context, ref, newOid string) error {
	ctx, cancel := g.withTimeout(ctx, constants.QuickOperationTimeout)
	defer cancel()
	_, err := g.run(ctx, "update-ref", ref, newOid)
	if err != nil {
		return fmt.Errorf("force-updating %s: %w", ref, err)
	}
	return nil
}

// DeleteRefForce deletes ref unconditionally.
func (g *Gateway) DeleteRefForce(ctx context.Context, ref string) error {
	ctx, cancel := g.withTimeout(ctx, constants.QuickOperationTimeout)
	defer cancel()
	_, err := g.run(ctx, "update-ref", "-d", ref)
	if err != nil {
		return fmt.Errorf("force-deleting %s: %w", ref, err)
	}
	return nil
}

// ListMetadataRefs returns every ref under refs/branch-metadata/.
func (g *Gateway) ListMetadataRefs(ctx context.Context) ([]RefOid, error) {
	ctx, cancel := g.withTimeout(ctx, constants.QuickOperationTimeout)
	defer cancel()
	out, err := g.run(ctx, "for-each-ref", "--format=%(refname) %(objectname)", "refs/branch-metadata/")
	if err != nil {
		return nil, fmt.Errorf("listing metadata refs: %w", err)
	}
	return parseRefOidLines(out), nil
}

// ListHeadRefs returns every local branch ref under refs/heads/.
func (g *Gateway) ListHeadRefs(ctx context.Context) ([]RefOid, error) {
	ctx, cancel := g.withTimeout(ctx, constants.QuickOperationTimeout)
	defer cancel()
	out, err := g.run(ctx, "for-each-ref", "--format=%(refname) %(objectname)", "refs/heads/")
	if err != nil {
		return nil, fmt.Errorf("listing head refs: %w", err)
	}
	return parseRefOidLines(out), nil
}

// RefOid pairs a fully-qualified ref name with the oid it resolves to.
type RefOid struct {
	Ref string
	Oid string
}

func parseRefOidLines(out string) []RefOid {
	if out == "" {
		return nil
	}
	lines := strings.Split(out, "\n")
	refs := make([]RefOid, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		refs = append(refs, RefOid{Ref: parts[0], Oid: parts[1]})
	}
	return refs
}
