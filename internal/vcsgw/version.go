package vcsgw

import (
	"os/exec"
	"strings"
)

// CheckGitVersion verifies a git binary is installed and reachable on PATH
// before any command touches a repository.
func CheckGitVersion() error {
	out, err := exec.Command("git", "--version").Output()
	if err != nil {
		return &GitNotInstalledError{Err: err}
	}
	if !strings.Contains(string(out), "git version") {
		return &GitNotInstalledError{Err: nil}
	}
	return nil
}

// GitNotInstalledError is returned when the git binary cannot be found or
// run at all.
type GitNotInstalledError struct {
	Err error
}

func (e *GitNotInstalledError) Error() string {
	if e.Err != nil {
		return "git is not installed or not in PATH: " + e.Err.Error()
	}
	return "git is not installed or not in PATH"
}

func (e *GitNotInstalledError) Unwrap() error { return e.Err }
