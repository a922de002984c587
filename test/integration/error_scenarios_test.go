package integration

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kofron/lattice/internal/errs"
)

// TestCreateRefusesUntrackedParent verifies --onto naming a branch lattice
// has never tracked is refused with a user-facing error, not a panic or a
// silent no-op.
func TestCreateRefusesUntrackedParent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	bin := latticeBinary(t)

	dir := t.TempDir()
	initRepo(t, dir)
	run(t, dir, "git", "checkout", "-b", "ghost")
	run(t, dir, "git", "checkout", "main")

	out, err := lattice(t, dir, bin, "create", "feature-a", "--onto", "ghost")
	if err == nil {
		t.Fatalf("expected create --onto ghost to fail, got:\n%s", out)
	}
	if !strings.Contains(out, "ghost") {
		t.Errorf("expected error output to mention the untracked branch, got:\n%s", out)
	}
}

// TestRestackConflictPausesThenContinue drives a real rebase conflict
// through 'lattice restack', confirms the operation pauses rather than
// leaving the repository mid-rebase with no explanation, then resolves
// the conflict and resumes with 'lattice continue'.
func TestRestackConflictPausesThenContinue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	bin := latticeBinary(t)

	dir := t.TempDir()
	initRepo(t, dir)
	writeFile(t, dir, "shared.txt", "line one\nline two\nline three\n")
	run(t, dir, "git", "add", ".")
	run(t, dir, "git", "commit", "-m", "seed shared.txt")

	if out, err := lattice(t, dir, bin, "create", "feature-a"); err != nil {
		t.Fatalf("create feature-a failed: %v\n%s", err, out)
	}
	writeFile(t, dir, "shared.txt", "line one\nfeature change\nline three\n")
	run(t, dir, "git", "add", ".")
	run(t, dir, "git", "commit", "-m", "feature-a edits shared.txt")

	run(t, dir, "git", "checkout", "main")
	writeFile(t, dir, "shared.txt", "line one\ntrunk change\nline three\n")
	run(t, dir, "git", "add", ".")
	run(t, dir, "git", "commit", "-m", "main edits shared.txt")

	out, err := lattice(t, dir, bin, "restack")
	if err != nil {
		t.Fatalf("restack returned an error instead of pausing: %v\n%s", err, out)
	}
	if !strings.Contains(strings.ToLower(out), "paused") {
		t.Fatalf("expected restack to report a paused operation, got:\n%s", out)
	}

	writeFile(t, dir, "shared.txt", "line one\nresolved\nline three\n")
	run(t, dir, "git", "add", "shared.txt")

	out, err = lattice(t, dir, bin, "continue")
	if err != nil {
		t.Fatalf("continue failed after resolving conflict: %v\n%s", err, out)
	}
}

// TestAuthOnUnconfiguredForge checks that 'lattice auth' reports the
// absence of forge configuration instead of erroring when no [repo].forge
// is set in config.toml.
func TestAuthOnUnconfiguredForge(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	bin := latticeBinary(t)

	dir := t.TempDir()
	initRepo(t, dir)

	out, err := lattice(t, dir, bin, "auth")
	if err != nil {
		t.Fatalf("auth failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "no forge configured") {
		t.Errorf("expected 'no forge configured' message, got:\n%s", out)
	}
}

// TestErrorMessageQuality checks that a sample of the errs constructors
// produce a user-facing message carrying the expected details and
// remediation text.
func TestErrorMessageQuality(t *testing.T) {
	tests := []struct {
		name     string
		err      *errs.LatticeError
		mustHave []string
	}{
		{
			name:     "NeedsRepair",
			err:      errs.NeedsRepair("trunk branch could not be resolved"),
			mustHave: []string{"trunk branch", "Suggestion", "doctor"},
		},
		{
			name:     "OperationInProgress",
			err:      errs.OperationInProgress("restack", "op-123"),
			mustHave: []string{"op-123", "Suggestion", "continue", "abort"},
		},
		{
			name:     "AlreadyLocked",
			err:      errs.AlreadyLocked(),
			mustHave: []string{"lock", "Suggestion"},
		},
		{
			name:     "FrozenBranch",
			err:      errs.FrozenBranch("feature-a"),
			mustHave: []string{"feature-a", "frozen", "unfreeze"},
		},
		{
			name:     "VcsConflict",
			err:      errs.VcsConflict("feature-a", "rebase"),
			mustHave: []string{"feature-a", "rebase", "Resolve the conflicts"},
		},
		{
			name:     "ForgeAuth",
			err:      errs.ForgeAuth(fmt.Errorf("401 unauthorized")),
			mustHave: []string{"authentication failed", "Suggestion", "auth"},
		},
		{
			name:     "InternalBug",
			err:      errs.InternalBug("fast_verify mismatch"),
			mustHave: []string{"fast_verify mismatch", "not your repository"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.UserFriendlyMessage()
			for _, want := range tt.mustHave {
				if !strings.Contains(msg, want) {
					t.Errorf("expected message to contain %q, got: %s", want, msg)
				}
			}
			if tt.err.Kind == "" {
				t.Error("expected a non-empty Kind")
			}
		})
	}
}

// TestExitCodes checks the Kind -> process exit code mapping spec.md's
// error table specifies.
func TestExitCodes(t *testing.T) {
	cases := []struct {
		kind errs.Kind
		want int
	}{
		{errs.KindNeedsRepair, 2},
		{errs.KindVcsConflict, 3},
		{errs.KindInvalidInput, 1},
		{errs.KindInternalBug, 1},
	}
	for _, c := range cases {
		if got := c.kind.ExitCode(); got != c.want {
			t.Errorf("%s.ExitCode() = %d, want %d", c.kind, got, c.want)
		}
	}
}
