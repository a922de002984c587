// Package github implements forge.Platform against the GitHub REST API via
// google/go-github, the way the teacher's remote/github client wraps it,
// generalized from repository administration to pull-request operations.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v58/github"
	"golang.org/x/oauth2"

	"github.com/kofron/lattice/internal/forge"
)

// Client implements forge.Platform against one owner/repo pair.
type Client struct {
	api   *github.Client
	owner string
	repo  string
}

var _ forge.Platform = (*Client)(nil)

// NewClient builds a Client for remoteURL, authenticating with token.
// remoteURL accepts both SSH (git@github.com:owner/repo.git) and HTTPS
// (https://github.com/owner/repo.git) forms.
func NewClient(ctx context.Context, remoteURL, token string) (*Client, error) {
	owner, repo, err := parseGitHubURL(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub remote: %w", err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	return &Client{api: github.NewClient(tc), owner: owner, repo: repo}, nil
}

func (c *Client) Name() string { return "github" }

func parseGitHubURL(remoteURL string) (owner, repo string, err error) {
	if strings.HasPrefix(remoteURL, "git@github.com:") {
		path := strings.TrimSuffix(strings.TrimPrefix(remoteURL, "git@github.com:"), ".git")
		parts := strings.Split(path, "/")
		if len(parts) != 2 {
			return "", "", fmt.Errorf("invalid ssh remote %q", remoteURL)
		}
		return parts[0], parts[1], nil
	}

	u, err := url.Parse(remoteURL)
	if err != nil {
		return "", "", err
	}
	if u.Host != "github.com" {
		return "", "", fmt.Errorf("not a github.com remote: %s", u.Host)
	}
	path := strings.TrimSuffix(strings.TrimPrefix(u.Path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid remote path %q", path)
	}
	return parts[0], parts[1], nil
}

func wrapErr(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &forge.Error{Operation: operation, Transient: isTransient(err), Err: err}
}

// isTransient treats anything but a clear 4xx client error as retryable;
// go-github doesn't expose a typed timeout/5xx error so this is a coarse
// classification on the error's rendered message.
func isTransient(err error) bool {
	msg := err.Error()
	for _, code := range []string{"401", "403", "404", "422"} {
		if strings.Contains(msg, code) {
			return false
		}
	}
	return true
}

func toPr(pr *github.PullRequest) *forge.Pr {
	if pr == nil {
		return nil
	}
	state := forge.PrStateOpen
	switch pr.GetState() {
	case "closed":
		if pr.GetMerged() {
			state = forge.PrStateMerged
		} else {
			state = forge.PrStateClosed
		}
	}

	reviewers := make([]string, 0, len(pr.RequestedReviewers))
	for _, r := range pr.RequestedReviewers {
		reviewers = append(reviewers, r.GetLogin())
	}

	return &forge.Pr{
		Number:     pr.GetNumber(),
		URL:        pr.GetHTMLURL(),
		State:      state,
		Draft:      pr.GetDraft(),
		HeadBranch: pr.GetHead().GetRef(),
		BaseBranch: pr.GetBase().GetRef(),
		Title:      pr.GetTitle(),
		Body:       pr.GetBody(),
		Reviewers:  reviewers,
	}
}
