package github

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGitHubURLSsh(t *testing.T) {
	owner, repo, err := parseGitHubURL("git@github.com:kofron/lattice.git")
	require.NoError(t, err)
	assert.Equal(t, "kofron", owner)
	assert.Equal(t, "lattice", repo)
}

func TestParseGitHubURLHttps(t *testing.T) {
	owner, repo, err := parseGitHubURL("https://github.com/kofron/lattice.git")
	require.NoError(t, err)
	assert.Equal(t, "kofron", owner)
	assert.Equal(t, "lattice", repo)
}

func TestParseGitHubURLRejectsOtherHosts(t *testing.T) {
	_, _, err := parseGitHubURL("https://gitlab.com/kofron/lattice.git")
	assert.Error(t, err)
}

func TestIsTransientClassifiesClientErrorsAsNonTransient(t *testing.T) {
	assert.False(t, isTransient(errors.New("GET https://api.github.com/...: 404 Not Found")))
	assert.False(t, isTransient(errors.New("401 Bad credentials")))
	assert.True(t, isTransient(errors.New("connection reset by peer")))
}

func TestWrapErrReturnsNilForNilError(t *testing.T) {
	assert.NoError(t, wrapErr("op", nil))
}
