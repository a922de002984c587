package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestRepo initializes a throwaway git repository with one commit on
// main and chdirs the test process into it, restoring the original
// working directory on cleanup.
func newTestRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "--initial-branch=main")
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0644))
	run("add", "README.md")
	run("commit", "-m", "init")

	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(root))
	t.Cleanup(func() { _ = os.Chdir(orig) })

	return root
}

// execRoot runs rootCmd with args against captured stdout/stderr and
// resets the package-level persistent flags args leaves behind.
func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		format, noColor, quiet, verbose = "", false, false, false
	})

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(t.Context())
	return buf.String(), err
}

func TestTrunkCommandOnFreshRepo(t *testing.T) {
	newTestRepo(t)

	out, err := execRoot(t, "trunk")
	require.NoError(t, err)
	require.Contains(t, out, "main")
}

func TestTrackAndStatus(t *testing.T) {
	newTestRepo(t)

	cmd := exec.Command("git", "checkout", "-b", "feature-a")
	require.NoError(t, cmd.Run())

	_, err := execRoot(t, "track", "feature-a", "--parent", "main")
	require.NoError(t, err)

	out, err := execRoot(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "feature-a")
}

func TestCreateRefusesUntrackedParent(t *testing.T) {
	newTestRepo(t)

	_, err := execRoot(t, "create", "feature-b", "--onto", "ghost")
	require.Error(t, err)
}

func TestStatusOutsideGitRepo(t *testing.T) {
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })

	_, err = execRoot(t, "status")
	require.Error(t, err)
}
