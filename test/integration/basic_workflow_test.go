package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
)

var (
	buildOnce sync.Once
	buildErr  error
	binPath   string
)

// latticeBinary builds the lattice CLI once per test process and returns
// its path. Integration tests exec the real binary against real git
// repositories instead of calling cobra commands in-process, the same way
// spec.md's five-phase lifecycle is meant to be exercised end to end.
func latticeBinary(t *testing.T) string {
	t.Helper()
	buildOnce.Do(func() {
		dir := t.TempDir()
		binPath = filepath.Join(dir, "lattice")
		cmd := exec.Command("go", "build", "-o", binPath, "github.com/kofron/lattice/cmd/lattice")
		if out, err := cmd.CombinedOutput(); err != nil {
			buildErr = err
			t.Logf("go build output:\n%s", out)
		}
	})
	if buildErr != nil {
		t.Fatalf("failed to build lattice binary: %v", buildErr)
	}
	return binPath
}

func initRepo(t *testing.T, dir string) {
	t.Helper()
	run(t, dir, "git", "init", "--initial-branch=main")
	run(t, dir, "git", "config", "user.name", "Test User")
	run(t, dir, "git", "config", "user.email", "test@example.com")
	writeFile(t, dir, "README.md", "# test project\n")
	run(t, dir, "git", "add", ".")
	run(t, dir, "git", "commit", "-m", "initial commit")
}

func lattice(t *testing.T, dir, bin string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// TestTrackAndStack exercises create → track inference → restack → log
// across a small stack of dependent branches.
func TestTrackAndStack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	bin := latticeBinary(t)

	dir := t.TempDir()
	initRepo(t, dir)

	if out, err := lattice(t, dir, bin, "create", "feature-a"); err != nil {
		t.Fatalf("create feature-a failed: %v\n%s", err, out)
	}
	writeFile(t, dir, "a.txt", "a")
	run(t, dir, "git", "add", ".")
	run(t, dir, "git", "commit", "-m", "feature-a work")

	if out, err := lattice(t, dir, bin, "create", "feature-b"); err != nil {
		t.Fatalf("create feature-b failed: %v\n%s", err, out)
	}
	writeFile(t, dir, "b.txt", "b")
	run(t, dir, "git", "add", ".")
	run(t, dir, "git", "commit", "-m", "feature-b work")

	out, err := lattice(t, dir, bin, "log")
	if err != nil {
		t.Fatalf("log failed: %v\n%s", err, out)
	}
	if !contains(out, "feature-a") || !contains(out, "feature-b") {
		t.Errorf("expected log to list both branches, got:\n%s", out)
	}

	out, err = lattice(t, dir, bin, "parent", "feature-b")
	if err != nil {
		t.Fatalf("parent failed: %v\n%s", err, out)
	}
	if !contains(out, "feature-a") {
		t.Errorf("expected feature-b's parent to be feature-a, got:\n%s", out)
	}

	run(t, dir, "git", "checkout", "main")
	writeFile(t, dir, "README.md", "# test project\n\nupdated\n")
	run(t, dir, "git", "add", ".")
	run(t, dir, "git", "commit", "-m", "trunk moved")

	if out, err := lattice(t, dir, bin, "restack"); err != nil {
		t.Fatalf("restack failed: %v\n%s", err, out)
	}
}

// TestDoctorReportsHealthyRepo runs doctor against a freshly tracked repo
// with nothing to fix.
func TestDoctorReportsHealthyRepo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	bin := latticeBinary(t)

	dir := t.TempDir()
	initRepo(t, dir)

	out, err := lattice(t, dir, bin, "doctor")
	if err != nil {
		t.Fatalf("doctor failed: %v\n%s", err, out)
	}
}

// TestHelpCommands checks that every top-level command prints cobra usage.
func TestHelpCommands(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	bin := latticeBinary(t)

	dir := t.TempDir()
	initRepo(t, dir)

	for _, name := range []string{"--help", "create", "restack", "submit", "doctor"} {
		t.Run(name, func(t *testing.T) {
			out, err := lattice(t, dir, bin, name, "--help")
			if err != nil {
				t.Fatalf("%s --help failed: %v\n%s", name, err, out)
			}
			if !contains(out, "Usage:") {
				t.Errorf("expected Usage: in %s --help output, got:\n%s", name, out)
			}
		})
	}
}

// TestSplitByCommit checks that each commit on a tracked branch becomes
// its own branch in the resulting stack, and that the original branch is
// gone afterward.
func TestSplitByCommit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	bin := latticeBinary(t)

	dir := t.TempDir()
	initRepo(t, dir)

	if out, err := lattice(t, dir, bin, "create", "feature"); err != nil {
		t.Fatalf("create feature failed: %v\n%s", err, out)
	}
	writeFile(t, dir, "one.txt", "one")
	run(t, dir, "git", "add", ".")
	run(t, dir, "git", "commit", "-m", "first commit")
	writeFile(t, dir, "two.txt", "two")
	run(t, dir, "git", "add", ".")
	run(t, dir, "git", "commit", "-m", "second commit")

	if out, err := lattice(t, dir, bin, "split", "feature", "--by-commit"); err != nil {
		t.Fatalf("split --by-commit failed: %v\n%s", err, out)
	}

	out, err := lattice(t, dir, bin, "log")
	if err != nil {
		t.Fatalf("log failed: %v\n%s", err, out)
	}
	if !contains(out, "feature-1") || !contains(out, "feature-2") {
		t.Errorf("expected feature-1 and feature-2 in the stack, got:\n%s", out)
	}
	if contains(out, "feature\n") {
		t.Errorf("expected the original feature branch to be gone, got:\n%s", out)
	}
}

// TestSplitByFile checks that changes to a named file are extracted into
// their own branch, with the original branch reparented onto it and left
// holding only the remaining changes.
func TestSplitByFile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	bin := latticeBinary(t)

	dir := t.TempDir()
	initRepo(t, dir)

	if out, err := lattice(t, dir, bin, "create", "feature"); err != nil {
		t.Fatalf("create feature failed: %v\n%s", err, out)
	}
	writeFile(t, dir, "isolated.txt", "isolated")
	writeFile(t, dir, "other.txt", "other")
	run(t, dir, "git", "add", ".")
	run(t, dir, "git", "commit", "-m", "touch both files")

	if out, err := lattice(t, dir, bin, "split", "feature", "--by-file", "isolated.txt"); err != nil {
		t.Fatalf("split --by-file failed: %v\n%s", err, out)
	}

	out, err := lattice(t, dir, bin, "log")
	if err != nil {
		t.Fatalf("log failed: %v\n%s", err, out)
	}
	if !contains(out, "feature-files") || !contains(out, "feature") {
		t.Errorf("expected feature-files and feature in the stack, got:\n%s", out)
	}

	out, err = lattice(t, dir, bin, "parent", "feature")
	if err != nil {
		t.Fatalf("parent failed: %v\n%s", err, out)
	}
	if !contains(out, "feature-files") {
		t.Errorf("expected feature's parent to be feature-files, got:\n%s", out)
	}
}

// Helper functions shared with error_scenarios_test.go.

func run(t *testing.T, dir, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("%s %v failed: %v\n%s", name, args, err, out)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func contains(s, substr string) bool {
	return len(substr) == 0 || (len(s) >= len(substr) && indexOf(s, substr) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
