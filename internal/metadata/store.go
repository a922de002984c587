// Package metadata is a thin typed layer over the VCS Gateway: it reads and
// CAS-writes the per-branch MetadataRecord blobs under
// refs/branch-metadata/<branch>, and nothing else touches that namespace.
package metadata

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/vcsgw"
)

// Entry pairs the ref oid a branch's metadata blob is currently stored at
// with the parsed record, so a caller can CAS-write an update against it.
type Entry struct {
	RefOid latticemodel.Oid
	Record *latticemodel.MetadataRecord
}

// Store is the typed CAS layer over a Gateway's refs/branch-metadata/ namespace.
type Store struct {
	gw *vcsgw.Gateway
}

// New wraps gw for metadata access.
func New(gw *vcsgw.Gateway) *Store {
	return &Store{gw: gw}
}

// Read returns the current metadata for branch, or (nil, nil) if untracked.
// A blob that fails strict parsing is surfaced as an error so the caller
// (ordinarily the scanner) can turn it into a MetadataCorrupt health issue
// instead of failing outright.
func (s *Store) Read(ctx context.Context, branch latticemodel.BranchName) (*Entry, error) {
	ref := string(latticemodel.MetadataRef(branch))

	oid, err := s.gw.TryResolveRefToObject(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolving metadata ref %s: %w", ref, err)
	}
	if oid == "" {
		return nil, nil
	}

	raw, err := s.gw.ReadBlobAsString(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("reading metadata blob for %s: %w", branch, err)
	}

	record, err := latticemodel.ParseMetadataRecord([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing metadata for %s: %w", branch, err)
	}

	refOid, err := latticemodel.NewOid(oid)
	if err != nil {
		return nil, fmt.Errorf("invalid ref oid %q: %w", oid, err)
	}

	return &Entry{RefOid: refOid, Record: record}, nil
}

// WriteCas serialises record to canonical JSON, writes it as a new blob, and
// CAS-updates the branch's metadata ref to point at it. expectedOld must be
// the ZeroOid when creating metadata for a previously-untracked branch.
func (s *Store) WriteCas(ctx context.Context, branch latticemodel.BranchName, expectedOld latticemodel.Oid, record *latticemodel.MetadataRecord) (latticemodel.Oid, error) {
	body, err := record.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("serialising metadata for %s: %w", branch, err)
	}

	newBlob, err := s.gw.WriteBlob(ctx, body)
	if err != nil {
		return "", fmt.Errorf("writing metadata blob for %s: %w", branch, err)
	}

	ref := string(latticemodel.MetadataRef(branch))
	if err := s.gw.UpdateRefCas(ctx, ref, newBlob, string(expectedOld)); err != nil {
		if casErr, ok := err.(*vcsgw.CasFailedError); ok {
			return "", fmt.Errorf("metadata for %s changed concurrently: %w", branch, casErr)
		}
		return "", err
	}

	oid, err := latticemodel.NewOid(newBlob)
	if err != nil {
		return "", fmt.Errorf("invalid blob oid %q: %w", newBlob, err)
	}
	return oid, nil
}

// DeleteCas removes a branch's metadata ref, failing if it has since moved.
func (s *Store) DeleteCas(ctx context.Context, branch latticemodel.BranchName, expectedOld latticemodel.Oid) error {
	ref := string(latticemodel.MetadataRef(branch))
	if err := s.gw.DeleteRefCas(ctx, ref, string(expectedOld)); err != nil {
		if casErr, ok := err.(*vcsgw.CasFailedError); ok {
			return fmt.Errorf("metadata for %s changed concurrently: %w", branch, casErr)
		}
		return err
	}
	return nil
}

// List returns every tracked branch name, sorted.
func (s *Store) List(ctx context.Context) ([]latticemodel.BranchName, error) {
	refs, err := s.gw.ListMetadataRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing metadata refs: %w", err)
	}

	names := make([]latticemodel.BranchName, 0, len(refs))
	for _, r := range refs {
		name := strings.TrimPrefix(r.Ref, "refs/branch-metadata/")
		branch, err := latticemodel.NewBranchName(name)
		if err != nil {
			// An unparseable ref name is a health issue for the scanner to
			// surface, not something this layer should fail list() over.
			continue
		}
		names = append(names, branch)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}

// ListedEntry pairs a tracked branch name with its parsed Entry, or the
// error that prevented it from parsing.
type ListedEntry struct {
	Branch latticemodel.BranchName
	Entry  *Entry
	Err    error
}

// ListEntries reads every metadata ref, tolerating parse failures so the
// caller can fold them into a HealthReport rather than aborting the scan.
func (s *Store) ListEntries(ctx context.Context) ([]ListedEntry, error) {
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ListedEntry, 0, len(names))
	for _, name := range names {
		entry, err := s.Read(ctx, name)
		out = append(out, ListedEntry{Branch: name, Entry: entry, Err: err})
	}
	return out, nil
}
