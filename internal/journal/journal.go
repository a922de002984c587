// Package journal implements the per-operation append-only step log and the
// op-state marker the Executor uses to detect a crashed or paused
// operation. Every write is followed by an fsync before the executor
// proceeds to the next step; this is the only durability boundary in the
// whole mutation pathway.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kofron/lattice/internal/paths"
)

// Phase is the lifecycle state of a single operation's journal.
type Phase string

const (
	PhaseInProgress Phase = "in_progress"
	PhasePaused     Phase = "paused"
	PhaseCommitted  Phase = "committed"
	PhaseRolledBack Phase = "rolled_back"
)

// StepEntryKind names the kind of a journaled step record.
type StepEntryKind string

const (
	StepKindRefUpdate      StepEntryKind = "ref_update"
	StepKindMetadataWrite  StepEntryKind = "metadata_write"
	StepKindMetadataDelete StepEntryKind = "metadata_delete"
	StepKindCheckpoint     StepEntryKind = "checkpoint"
	StepKindVcsProcess     StepEntryKind = "vcs_process"
	StepKindConflictPaused StepEntryKind = "conflict_paused"
)

// StepEntry is one journaled record of a step the executor actually carried
// out (or the conflict-pause marker when a RunVcs step halts mid-operation).
type StepEntry struct {
	Kind StepEntryKind `json:"kind"`

	// RefUpdate / MetadataWrite / MetadataDelete
	Refname string `json:"refname,omitempty"`
	OldOid  string `json:"old_oid,omitempty"`
	NewOid  string `json:"new_oid,omitempty"`
	Branch  string `json:"branch,omitempty"`

	// Checkpoint
	Name string `json:"name,omitempty"`

	// VcsProcess
	Args        []string `json:"args,omitempty"`
	Description string   `json:"description,omitempty"`

	// ConflictPaused
	VcsState          string          `json:"vcs_state,omitempty"`
	RemainingBranches []string        `json:"remaining_branches,omitempty"`
	RemainingSteps    json.RawMessage `json:"remaining_steps_json,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// Journal is the ordered, fsync'd step log for a single operation.
type Journal struct {
	OpID       string      `json:"op_id"`
	Command    string      `json:"command"`
	Phase      Phase       `json:"phase"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Steps      []StepEntry `json:"steps"`

	path string
}

// NewOpID generates a fresh operation id.
func NewOpID() string {
	return uuid.NewString()
}

// Create starts a new in-progress journal for opID/command and fsyncs it to
// <common_dir>/lattice/ops/<op_id>.json.
func Create(p paths.LatticePaths, opID, command string, now time.Time) (*Journal, error) {
	if err := os.MkdirAll(p.OpsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating ops directory: %w", err)
	}
	j := &Journal{
		OpID:      opID,
		Command:   command,
		Phase:     PhaseInProgress,
		StartedAt: now,
		path:      p.OpJournal(opID),
	}
	if err := j.flush(); err != nil {
		return nil, err
	}
	return j, nil
}

// Load reads an existing journal file for opID.
func Load(p paths.LatticePaths, opID string) (*Journal, error) {
	path := p.OpJournal(opID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading journal %s: %w", path, err)
	}
	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parsing journal %s: %w", path, err)
	}
	j.path = path
	return &j, nil
}

// flush fsyncs the journal's current contents to disk. This, not any
// in-memory append, is what the Executor contract calls durable.
func (j *Journal) flush() error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling journal: %w", err)
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("opening journal file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing journal file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("fsyncing journal file: %w", err)
	}
	return nil
}

func (j *Journal) append(entry StepEntry, now time.Time) error {
	entry.RecordedAt = now
	j.Steps = append(j.Steps, entry)
	return j.flush()
}

// AppendRefUpdate records a completed UpdateRefCas/DeleteRefCas step.
func (j *Journal) AppendRefUpdate(refname, oldOid, newOid string, now time.Time) error {
	return j.append(StepEntry{Kind: StepKindRefUpdate, Refname: refname, OldOid: oldOid, NewOid: newOid}, now)
}

// AppendMetadataWrite records a completed WriteMetadataCas step.
func (j *Journal) AppendMetadataWrite(branch, oldRefOid, newRefOid string, now time.Time) error {
	return j.append(StepEntry{Kind: StepKindMetadataWrite, Branch: branch, OldOid: oldRefOid, NewOid: newRefOid}, now)
}

// AppendMetadataDelete records a completed DeleteMetadataCas step.
func (j *Journal) AppendMetadataDelete(branch, oldRefOid string, now time.Time) error {
	return j.append(StepEntry{Kind: StepKindMetadataDelete, Branch: branch, OldOid: oldRefOid}, now)
}

// AppendCheckpoint records a Checkpoint marker; it has no side effect of
// its own and exists purely to make rollback/inspection legible.
func (j *Journal) AppendCheckpoint(name string, now time.Time) error {
	return j.append(StepEntry{Kind: StepKindCheckpoint, Name: name}, now)
}

// AppendVcsProcess records a completed RunVcs step that did not pause.
func (j *Journal) AppendVcsProcess(args []string, description string, now time.Time) error {
	return j.append(StepEntry{Kind: StepKindVcsProcess, Args: args, Description: description}, now)
}

// AppendConflictPaused records that a RunVcs step left the VCS mid-operation,
// along with the serialised remaining plan steps needed to resume.
func (j *Journal) AppendConflictPaused(branch, vcsState string, remainingBranches []string, remainingSteps json.RawMessage, now time.Time) error {
	return j.append(StepEntry{
		Kind:              StepKindConflictPaused,
		Branch:            branch,
		VcsState:          vcsState,
		RemainingBranches: remainingBranches,
		RemainingSteps:    remainingSteps,
	}, now)
}

// MarkCommitted transitions the journal to committed and fsyncs.
func (j *Journal) MarkCommitted(now time.Time) error {
	j.Phase = PhaseCommitted
	j.FinishedAt = &now
	return j.flush()
}

// MarkPaused transitions the journal to paused and fsyncs.
func (j *Journal) MarkPaused() error {
	j.Phase = PhasePaused
	return j.flush()
}

// MarkRolledBack transitions the journal to rolled_back and fsyncs.
func (j *Journal) MarkRolledBack(now time.Time) error {
	j.Phase = PhaseRolledBack
	j.FinishedAt = &now
	return j.flush()
}

// RecordStepForTest appends a step to the in-memory journal without
// fsyncing. The executor's step loop must never call this; it exists so
// tests can build a fixture journal cheaply without touching disk per step.
func (j *Journal) RecordStepForTest(entry StepEntry, now time.Time) {
	entry.RecordedAt = now
	j.Steps = append(j.Steps, entry)
}
