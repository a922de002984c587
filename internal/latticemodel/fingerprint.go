package latticemodel

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Fingerprint is a deterministic SHA-256 over the sorted list of
// (refname, oid) pairs for every branch ref and metadata ref in a repo
// snapshot. Order-independent: two snapshots with identical ref state yield
// identical fingerprints.
type Fingerprint string

// RefOid pairs a ref with its resolved object id, the unit Fingerprint hashes.
type RefOid struct {
	Ref RefName
	Oid Oid
}

// ComputeFingerprint hashes the sorted (ref, oid) pairs.
func ComputeFingerprint(refs []RefOid) Fingerprint {
	sorted := make([]RefOid, len(refs))
	copy(sorted, refs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Ref != sorted[j].Ref {
			return sorted[i].Ref < sorted[j].Ref
		}
		return sorted[i].Oid < sorted[j].Oid
	})

	h := sha256.New()
	for _, ro := range sorted {
		h.Write([]byte(ro.Ref))
		h.Write([]byte{0})
		h.Write([]byte(ro.Oid))
		h.Write([]byte{0x1e}) // record separator
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
