package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v58/github"

	"github.com/kofron/lattice/internal/forge"
)

func (c *Client) CreatePr(ctx context.Context, base, head, title, body string, draft bool) (*forge.Pr, error) {
	pr, _, err := c.api.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: &title,
		Head:  &head,
		Base:  &base,
		Body:  &body,
		Draft: &draft,
	})
	if err != nil {
		return nil, wrapErr("create_pr", err)
	}
	return toPr(pr), nil
}

func (c *Client) UpdatePr(ctx context.Context, number int, title, body string) (*forge.Pr, error) {
	pr, _, err := c.api.PullRequests.Edit(ctx, c.owner, c.repo, number, &github.PullRequest{
		Title: &title,
		Body:  &body,
	})
	if err != nil {
		return nil, wrapErr("update_pr", err)
	}
	return toPr(pr), nil
}

func (c *Client) GetPr(ctx context.Context, number int) (*forge.Pr, error) {
	pr, _, err := c.api.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, wrapErr("get_pr", err)
	}
	return toPr(pr), nil
}

func (c *Client) FindPrByHead(ctx context.Context, head string) (*forge.Pr, error) {
	prs, _, err := c.api.PullRequests.List(ctx, c.owner, c.repo, &github.PullRequestListOptions{
		Head:  fmt.Sprintf("%s:%s", c.owner, head),
		State: "open",
	})
	if err != nil {
		return nil, wrapErr("find_pr_by_head", err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return toPr(prs[0]), nil
}

// SetDraft only supports marking a draft ready for review; GitHub's REST
// API has no endpoint to convert an open PR back into a draft, only the
// GraphQL markPullRequestReadyForReview mutation covers the other
// direction, so draft=true always fails.
func (c *Client) SetDraft(ctx context.Context, number int, draft bool) (*forge.Pr, error) {
	if draft {
		return nil, wrapErr("set_draft", fmt.Errorf("github has no REST endpoint to convert an open pull request back to draft"))
	}
	pr, _, err := c.api.PullRequests.Edit(ctx, c.owner, c.repo, number, &github.PullRequest{
		Draft: github.Bool(false),
	})
	if err != nil {
		return nil, wrapErr("set_draft", err)
	}
	return toPr(pr), nil
}

func (c *Client) RequestReviewers(ctx context.Context, number int, reviewers []string) error {
	_, _, err := c.api.PullRequests.RequestReviewers(ctx, c.owner, c.repo, number, github.ReviewersRequest{
		Reviewers: reviewers,
	})
	return wrapErr("request_reviewers", err)
}

func (c *Client) MergePr(ctx context.Context, number int, method string) error {
	_, _, err := c.api.PullRequests.Merge(ctx, c.owner, c.repo, number, "", &github.PullRequestOptions{
		MergeMethod: method,
	})
	return wrapErr("merge_pr", err)
}
