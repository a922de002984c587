package latticemodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is the only MetadataRecord schema this build understands.
// Readers reject any other value; the scanner records such a record as a
// metadata_corrupt issue, which doctor reports without proposing a fix.
const SchemaVersion = 1

// ParentKind distinguishes a trunk-rooted branch from one stacked on another.
type ParentKind string

const (
	ParentKindTrunk  ParentKind = "trunk"
	ParentKindBranch ParentKind = "branch"
)

// Parent is the tagged union describing a branch's parent.
type Parent struct {
	Kind ParentKind `json:"kind"`
	Name BranchName `json:"name,omitempty"`
}

// FreezeState is either unfrozen or frozen with a scope/reason.
type FreezeState string

const (
	FreezeStateUnfrozen FreezeState = "unfrozen"
	FreezeStateFrozen   FreezeState = "frozen"
)

type Freeze struct {
	State  FreezeState `json:"state"`
	Scope  string      `json:"scope,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// PrState is either none or linked to a forge PR.
type PrState string

const (
	PrStateNone   PrState = "none"
	PrStateLinked PrState = "linked"
)

type PrLink struct {
	State  PrState `json:"state"`
	Forge  string  `json:"forge,omitempty"`
	Number int     `json:"number,omitempty"`
	URL    string  `json:"url,omitempty"`
}

type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Base records the parent's tip Oid at the moment this branch was created or
// last restacked -- the "rebase-from" point.
type Base struct {
	Oid Oid `json:"oid"`
}

// MetadataRecord is the per-tracked-branch record persisted as a JSON blob
// pointed at by refs/branch-metadata/<name>.
type MetadataRecord struct {
	SchemaVersion int        `json:"schema_version"`
	Branch        BranchRef  `json:"branch"`
	Parent        Parent     `json:"parent"`
	Base          Base       `json:"base"`
	Freeze        Freeze     `json:"freeze"`
	Pr            PrLink     `json:"pr"`
	Timestamps    Timestamps `json:"timestamps"`
}

// BranchRef names the tracked branch itself; branch.name must equal the key
// under which the record is stored (Invariant 1 in spec.md section 3).
type BranchRef struct {
	Name BranchName `json:"name"`
}

// IsFrozen reports whether this branch currently blocks mutation.
func (m *MetadataRecord) IsFrozen() bool {
	return m.Freeze.State == FreezeStateFrozen
}

// Touch refreshes Timestamps.UpdatedAt; CreatedAt is set once by NewMetadataRecord.
func (m *MetadataRecord) Touch(now time.Time) {
	m.Timestamps.UpdatedAt = now
}

// NewMetadataRecord builds a fresh record for a newly tracked branch.
func NewMetadataRecord(branch BranchName, parent Parent, base Oid, now time.Time) *MetadataRecord {
	return &MetadataRecord{
		SchemaVersion: SchemaVersion,
		Branch:        BranchRef{Name: branch},
		Parent:        parent,
		Base:          Base{Oid: base},
		Freeze:        Freeze{State: FreezeStateUnfrozen},
		Pr:            PrLink{State: PrStateNone},
		Timestamps:    Timestamps{CreatedAt: now, UpdatedAt: now},
	}
}

// strictUnmarshal rejects unknown fields so a forward-incompatible reader
// fails loudly instead of silently dropping data a newer writer produced.
func strictUnmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ParseMetadataRecord strict-parses a canonical JSON blob into a
// MetadataRecord. Unknown fields and a mismatched schema_version are
// reported as ordinary errors; callers in the Scanner convert these into
// HealthReport issues rather than failing the whole scan.
func ParseMetadataRecord(data []byte) (*MetadataRecord, error) {
	var m MetadataRecord
	if err := strictUnmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse metadata record: %w", err)
	}
	if m.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("unsupported schema_version %d (expected %d)", m.SchemaVersion, SchemaVersion)
	}
	return &m, nil
}

// CanonicalJSON serialises a MetadataRecord deterministically: every
// object's keys sorted, no insignificant whitespace. The struct is
// marshalled once and re-encoded through generic maps, whose keys
// encoding/json always writes in sorted order.
func (m *MetadataRecord) CanonicalJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata record: %w", err)
	}
	var generic map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalise metadata record: %w", err)
	}
	return json.Marshal(generic)
}
