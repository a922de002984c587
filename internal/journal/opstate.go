package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kofron/lattice/internal/paths"
)

// OpState is the marker advertising an in-progress operation. Its presence,
// independent of the repository lock, is what a process arriving after a
// crash uses to detect unfinished work: the lock is released on crash, the
// marker is not.
type OpState struct {
	OpID              string    `json:"op_id"`
	Command           string    `json:"command"`
	Phase             Phase     `json:"phase"`
	OriginWorktree    string    `json:"origin_worktree"`
	PlanSchemaVersion int       `json:"plan_schema_version"`
	StartedAt         time.Time `json:"started_at"`
}

// WriteOpState atomically writes the marker via write-then-rename so a
// reader never observes a partial file.
func WriteOpState(p paths.LatticePaths, state OpState) error {
	if err := os.MkdirAll(p.Root(), 0o755); err != nil {
		return fmt.Errorf("creating lattice directory: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling op-state: %w", err)
	}

	tmp := fmt.Sprintf("%s.%d.tmp", p.OpState(), os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temporary op-state file: %w", err)
	}
	if err := os.Rename(tmp, p.OpState()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming op-state file: %w", err)
	}
	return nil
}

// ReadOpState returns the current marker, or (nil, nil) if no operation is
// in progress.
func ReadOpState(p paths.LatticePaths) (*OpState, error) {
	data, err := os.ReadFile(p.OpState())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading op-state: %w", err)
	}
	var state OpState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing op-state: %w", err)
	}
	return &state, nil
}

// RemoveOpState deletes the marker once an operation commits or fully
// rolls back. Removing an already-absent marker is not an error.
func RemoveOpState(p paths.LatticePaths) error {
	if err := os.Remove(p.OpState()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing op-state: %w", err)
	}
	return nil
}

// CheckOriginWorktree reports whether the paused operation recorded in
// state originated in gitDir. continue and abort refuse to run otherwise:
// the VCS conflict they need to see is only visible from that worktree.
func (s *OpState) CheckOriginWorktree(gitDir string) bool {
	return s.OriginWorktree == gitDir
}
