// Package errs defines Lattice's error taxonomy: a typed, hint-carrying
// error plus constructors for every row of the error table in spec.md
// section 7, and the exit-code mapping the CLI applies to them.
package errs

import (
	"fmt"
)

// Kind classifies an error for exit-code mapping and doctor guidance.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindNeedsRepair         Kind = "needs_repair"
	KindOperationInProgress Kind = "operation_in_progress"
	KindAlreadyLocked       Kind = "already_locked"
	KindCasFailed           Kind = "cas_failed"
	KindWorktreeOccupied    Kind = "worktree_occupied"
	KindFrozenBranch        Kind = "frozen_branch"
	KindVcsConflict         Kind = "vcs_conflict"
	KindForgeTransient      Kind = "forge_transient"
	KindForgeAuth           Kind = "forge_auth"
	KindRollbackIncomplete  Kind = "rollback_incomplete"
	KindInternalBug         Kind = "internal_bug"
)

// ExitCode maps a Kind to the process exit code spec.md section 6 specifies.
func (k Kind) ExitCode() int {
	switch k {
	case KindNeedsRepair, KindForgeAuth:
		return 2
	case KindVcsConflict:
		return 3
	default:
		return 1
	}
}

// LatticeError is a structured error carrying a Kind, a user-facing message,
// an optional remediation hint, and the underlying cause.
type LatticeError struct {
	Kind    Kind
	Message string
	Hint    string
	Err     error
}

func (e *LatticeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *LatticeError) Unwrap() error {
	return e.Err
}

// UserFriendlyMessage renders the message plus hint, if any, for CLI output.
func (e *LatticeError) UserFriendlyMessage() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nSuggestion: " + e.Hint
	}
	return msg
}

// New creates a LatticeError with no wrapped cause.
func New(kind Kind, message string) *LatticeError {
	return &LatticeError{Kind: kind, Message: message}
}

// Wrap creates a LatticeError wrapping an existing error.
func Wrap(kind Kind, message string, err error) *LatticeError {
	return &LatticeError{Kind: kind, Message: message, Err: err}
}

// WithHint attaches a remediation hint and returns the same error instance.
func WithHint(err *LatticeError, hint string) *LatticeError {
	err.Hint = hint
	return err
}

// Common constructors, one per row of spec.md section 7's error table.

func InvalidInput(message string) *LatticeError {
	return New(KindInvalidInput, message)
}

func NeedsRepair(message string) *LatticeError {
	return WithHint(New(KindNeedsRepair, message), "Run 'lattice doctor' to see repair options.")
}

func OperationInProgress(command, opID string) *LatticeError {
	return WithHint(
		New(KindOperationInProgress, fmt.Sprintf("operation %q (op %s) is already in progress", command, opID)),
		"Run 'lattice continue' to resume it or 'lattice abort' to cancel it.",
	)
}

func AlreadyLocked() *LatticeError {
	return WithHint(
		New(KindAlreadyLocked, "another process holds the repository lock"),
		"Wait for the other lattice process to finish, or check for a stale lock file under <common_dir>/lattice/lock.",
	)
}

func CasFailed(refname, expected, actual string) *LatticeError {
	return WithHint(
		New(KindCasFailed, fmt.Sprintf("ref %s changed out from under us (expected %s, found %s)", refname, expected, actual)),
		"The repository changed out-of-band; re-run the command.",
	)
}

func WorktreeOccupied(branch, worktree string) *LatticeError {
	return WithHint(
		New(KindWorktreeOccupied, fmt.Sprintf("branch %q is checked out in another worktree", branch)),
		fmt.Sprintf("Switch to or close the worktree at %s before mutating this branch.", worktree),
	)
}

func FrozenBranch(branch string) *LatticeError {
	return WithHint(
		New(KindFrozenBranch, fmt.Sprintf("branch %q is frozen", branch)),
		fmt.Sprintf("Run 'lattice unfreeze %s' to allow mutation.", branch),
	)
}

func VcsConflict(branch, vcsState string) *LatticeError {
	return WithHint(
		New(KindVcsConflict, fmt.Sprintf("%s paused on branch %q: conflicts must be resolved", vcsState, branch)),
		"Resolve the conflicts, stage the result, then run 'lattice continue'.",
	)
}

func ForgeTransient(operation string, err error) *LatticeError {
	return WithHint(
		Wrap(KindForgeTransient, fmt.Sprintf("forge request failed during %s", operation), err),
		"This looks transient; re-run the command.",
	)
}

func ForgeAuth(err error) *LatticeError {
	return WithHint(
		Wrap(KindForgeAuth, "forge authentication failed", err),
		"Run 'lattice auth' to refresh credentials.",
	)
}

func RollbackIncomplete(detail string) *LatticeError {
	return WithHint(
		New(KindRollbackIncomplete, fmt.Sprintf("rollback could not fully restore prior state: %s", detail)),
		"The operation's op-state has been left paused for inspection; run 'lattice doctor' before retrying.",
	)
}

func InternalBug(detail string) *LatticeError {
	return WithHint(
		New(KindInternalBug, fmt.Sprintf("internal invariant violated: %s", detail)),
		"This is a bug in lattice itself, not your repository; please file an issue with the --debug output.",
	)
}
