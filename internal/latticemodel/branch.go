package latticemodel

import (
	"fmt"
	"strings"
)

// BranchName is a validated, canonical branch name honoring the host VCS's
// ref-naming rules. Construct only via NewBranchName.
type BranchName string

// NewBranchName validates a candidate branch name and returns its canonical
// form. Mirrors the subset of `git check-ref-format` rules Lattice relies on.
func NewBranchName(s string) (BranchName, error) {
	if s == "" {
		return "", fmt.Errorf("branch name must not be empty")
	}
	if strings.HasPrefix(s, ".") || strings.HasPrefix(s, "-") {
		return "", fmt.Errorf("branch name %q must not start with '.' or '-'", s)
	}
	if strings.Contains(s, "..") {
		return "", fmt.Errorf("branch name %q must not contain '..'", s)
	}
	if strings.HasSuffix(s, "/") || strings.HasSuffix(s, ".lock") {
		return "", fmt.Errorf("branch name %q must not end with '/' or '.lock'", s)
	}
	if strings.Contains(s, "@{") {
		return "", fmt.Errorf("branch name %q must not contain '@{'", s)
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("branch name %q contains a control character", s)
		}
	}
	if strings.ContainsAny(s, " ~^:?*[\\") {
		return "", fmt.Errorf("branch name %q contains a disallowed character", s)
	}
	return BranchName(s), nil
}

func (b BranchName) String() string { return string(b) }

// RefName is a fully-qualified ref path.
type RefName string

// HeadsRef returns the refs/heads/<name> ref for a branch.
func HeadsRef(b BranchName) RefName {
	return RefName("refs/heads/" + string(b))
}

// MetadataRef returns the refs/branch-metadata/<name> ref for a branch.
func MetadataRef(b BranchName) RefName {
	return RefName("refs/branch-metadata/" + string(b))
}

// EventLogRef is the fixed location of the event ledger.
const EventLogRef = RefName("refs/lattice/event-log")

// BranchFromMetadataRef extracts the branch name from a metadata ref, or
// false if the ref is not under refs/branch-metadata/.
func BranchFromMetadataRef(r RefName) (BranchName, bool) {
	const prefix = "refs/branch-metadata/"
	s := string(r)
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	return BranchName(strings.TrimPrefix(s, prefix)), true
}

// BranchFromHeadsRef extracts the branch name from a refs/heads/ ref, or
// false if the ref is not under refs/heads/.
func BranchFromHeadsRef(r RefName) (BranchName, bool) {
	const prefix = "refs/heads/"
	s := string(r)
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	return BranchName(strings.TrimPrefix(s, prefix)), true
}
