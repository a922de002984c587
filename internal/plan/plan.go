// Package plan defines Plan and its typed PlanSteps: the sole vocabulary
// the Executor understands. A Command's planning function is pure — it
// builds a Plan value, touching nothing, and hands it to the executor.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kofron/lattice/internal/latticemodel"
)

// StepKind discriminates the union of step types a Plan can contain.
type StepKind string

const (
	StepUpdateRefCas           StepKind = "update_ref_cas"
	StepDeleteRefCas           StepKind = "delete_ref_cas"
	StepWriteMetadataCas       StepKind = "write_metadata_cas"
	StepDeleteMetadataCas      StepKind = "delete_metadata_cas"
	StepRunVcs                 StepKind = "run_vcs"
	StepCheckpoint             StepKind = "checkpoint"
	StepPotentialConflictPause StepKind = "potential_conflict_pause"
	StepCreateSnapshotBranch   StepKind = "create_snapshot_branch"
	StepCheckout               StepKind = "checkout"
	StepForgeFetch             StepKind = "forge_fetch"
	StepForgePush              StepKind = "forge_push"
	StepForgeCreatePr          StepKind = "forge_create_pr"
	StepForgeUpdatePr          StepKind = "forge_update_pr"
	StepForgeDraftToggle       StepKind = "forge_draft_toggle"
	StepForgeRequestReviewers  StepKind = "forge_request_reviewers"
	StepForgeMergePr           StepKind = "forge_merge_pr"
)

// Step is one tagged-union entry of a Plan. Only the fields relevant to
// Kind are populated; this mirrors the JSON the journal and doctor-proposed
// plans exchange, so a single flat struct beats a Go interface here.
type Step struct {
	Kind StepKind `json:"kind"`

	// UpdateRefCas / DeleteRefCas
	Refname string           `json:"refname,omitempty"`
	OldOid  latticemodel.Oid `json:"old_oid,omitempty"`
	NewOid  latticemodel.Oid `json:"new_oid,omitempty"`
	Reason  string           `json:"reason,omitempty"`

	// WriteMetadataCas / DeleteMetadataCas
	Branch    latticemodel.BranchName      `json:"branch,omitempty"`
	OldRefOid latticemodel.Oid             `json:"old_ref_oid,omitempty"`
	Metadata  *latticemodel.MetadataRecord `json:"metadata,omitempty"`
	// ResolveBaseFromRef, when set on a WriteMetadataCas step, tells the
	// executor to resolve this ref to its current oid and overwrite
	// Metadata.Base.Oid with it immediately before writing — for metadata
	// whose base is a branch this same plan creates earlier, whose tip
	// can't be known until that step has actually run.
	ResolveBaseFromRef string `json:"resolve_base_from_ref,omitempty"`

	// RunVcs
	Args            []string `json:"args,omitempty"`
	Description     string   `json:"description,omitempty"`
	ExpectedEffects []string `json:"expected_effects,omitempty"`
	// Stdin, when set, is piped to the subprocess instead of leaving stdin
	// closed (git apply --index fed a diff).
	Stdin []byte `json:"stdin,omitempty"`

	// Checkpoint
	Name string `json:"name,omitempty"`

	// PotentialConflictPause
	VcsOperation string `json:"vcs_operation,omitempty"`

	// CreateSnapshotBranch
	BranchName string           `json:"branch_name,omitempty"`
	PrNumber   int              `json:"pr_number,omitempty"`
	HeadBranch string           `json:"head_branch,omitempty"`
	HeadOid    latticemodel.Oid `json:"head_oid,omitempty"`

	// Checkout
	CheckoutReason string `json:"checkout_reason,omitempty"`

	// Forge* steps
	Forge       string   `json:"forge,omitempty"`
	PrTitle     string   `json:"pr_title,omitempty"`
	PrBody      string   `json:"pr_body,omitempty"`
	PrBase      string   `json:"pr_base,omitempty"`
	Draft       bool     `json:"draft,omitempty"`
	Reviewers   []string `json:"reviewers,omitempty"`
	MergeMethod string   `json:"merge_method,omitempty"`
}

// Plan is an ordered sequence of steps produced by a Command's pure
// planning function, identified by OpID and digested for auditability.
type Plan struct {
	OpID    string `json:"op_id"`
	Command string `json:"command"`
	Steps   []Step `json:"steps"`
}

// IsEmpty reports whether the plan has no steps (the executor treats this
// as an immediate no-op success).
func (p *Plan) IsEmpty() bool {
	return len(p.Steps) == 0
}

// Digest is the SHA-256 of the plan's canonical JSON encoding.
func (p *Plan) Digest() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshaling plan for digest: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// TouchedRefs returns the deduplicated, sorted list of refs any step may
// touch.
func (p *Plan) TouchedRefs() []string {
	seen := map[string]bool{}
	for _, s := range p.Steps {
		for _, ref := range stepRefs(s) {
			seen[ref] = true
		}
	}
	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// TouchedRefWithOid is one entry of TouchedRefsWithOids: a ref and the old
// oid the executor expected before mutating it, used for rollback CAS.
type TouchedRefWithOid struct {
	Ref         string
	ExpectedOld string
}

// TouchedRefsWithOids returns (refname, expected_old) pairs for every ref a
// step may mutate, in step order, used by rollback to CAS refs back.
func (p *Plan) TouchedRefsWithOids() []TouchedRefWithOid {
	var out []TouchedRefWithOid
	for _, s := range p.Steps {
		switch s.Kind {
		case StepUpdateRefCas, StepDeleteRefCas:
			out = append(out, TouchedRefWithOid{Ref: s.Refname, ExpectedOld: string(s.OldOid)})
		case StepWriteMetadataCas, StepDeleteMetadataCas:
			out = append(out, TouchedRefWithOid{Ref: string(latticemodel.MetadataRef(s.Branch)), ExpectedOld: string(s.OldRefOid)})
		}
	}
	return out
}

// TouchedBranches returns only refs/heads/<name> entries, as BranchNames,
// used by the executor's worktree-occupancy check.
func (p *Plan) TouchedBranches() []latticemodel.BranchName {
	var out []latticemodel.BranchName
	seen := map[latticemodel.BranchName]bool{}
	for _, s := range p.Steps {
		var branch latticemodel.BranchName
		switch s.Kind {
		case StepUpdateRefCas, StepDeleteRefCas:
			name, ok := latticemodel.BranchFromHeadsRef(latticemodel.RefName(s.Refname))
			if !ok {
				continue
			}
			branch = name
		case StepCheckout:
			branch = s.Branch
		default:
			continue
		}
		if branch != "" && !seen[branch] {
			seen[branch] = true
			out = append(out, branch)
		}
	}
	return out
}

func stepRefs(s Step) []string {
	switch s.Kind {
	case StepUpdateRefCas, StepDeleteRefCas:
		return []string{s.Refname}
	case StepWriteMetadataCas, StepDeleteMetadataCas:
		return []string{string(latticemodel.MetadataRef(s.Branch))}
	default:
		return nil
	}
}
