// Package github wraps the tracker API behind a narrow contract.
// Rate limits and authentication are the tracker's concern; callers only
// see the handful of reads and writes the engine needs.
package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v60/github"
)

// Tracker is the narrow tracker contract consumed by the engine. Tests
// substitute a fake; production uses *Client.
type Tracker interface {
	// GetIssue fetches one issue snapshot.
	GetIssue(ctx context.Context, org, repo string, number int) (*github.Issue, error)

	// ListComments returns the issue's comments in creation order.
	ListComments(ctx context.Context, org, repo string, number int) ([]*github.IssueComment, error)

	// CreateComment posts a single comment and returns the written
	// artifact.
	CreateComment(ctx context.Context, org, repo string, number int, body string) (*github.IssueComment, error)

	// AddLabels applies labels without touching existing ones.
	AddLabels(ctx context.Context, org, repo string, number int, labels []string) error

	// ListRecentIssues returns up to count most recently created open
	// issues, optionally restricted to unlabeled ones.
	ListRecentIssues(ctx context.Context, org, repo string, count int, unlabeledOnly bool) ([]*github.Issue, error)
}

// Client implements Tracker against the GitHub REST API.
type Client struct {
	client *github.Client
}

var _ Tracker = (*Client)(nil)

// GetIssue fetches issue details.
func (c *Client) GetIssue(ctx context.Context, org, repo string, number int) (*github.Issue, error) {
	issue, _, err := c.client.Issues.Get(ctx, org, repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue: %w", err)
	}
	return issue, nil
}

// ListComments returns all comments on an issue, oldest first.
func (c *Client) ListComments(ctx context.Context, org, repo string, number int) ([]*github.IssueComment, error) {
	opts := &github.IssueListCommentsOptions{
		Sort:        github.String("created"),
		Direction:   github.String("asc"),
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var all []*github.IssueComment
	for {
		comments, resp, err := c.client.Issues.ListComments(ctx, org, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments: %w", err)
		}
		all = append(all, comments...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// CreateComment posts a comment on an issue.
func (c *Client) CreateComment(ctx context.Context, org, repo string, number int, body string) (*github.IssueComment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("comment body cannot be empty")
	}

	comment := &github.IssueComment{
		Body: github.String(body),
	}
	created, _, err := c.client.Issues.CreateComment(ctx, org, repo, number, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return created, nil
}

// AddLabels adds labels to an issue. Existing labels are preserved; the
// endpoint appends rather than replaces.
func (c *Client) AddLabels(ctx context.Context, org, repo string, number int, labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("labels cannot be empty")
	}

	_, _, err := c.client.Issues.AddLabelsToIssue(ctx, org, repo, number, labels)
	if err != nil {
		return fmt.Errorf("failed to add labels: %w", err)
	}
	return nil
}

// ListRecentIssues returns the most recently created open issues via the
// search API. When unlabeledOnly is set the query carries "no:label" and
// the results are double-checked, since search indexing can lag.
func (c *Client) ListRecentIssues(ctx context.Context, org, repo string, count int, unlabeledOnly bool) ([]*github.Issue, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive")
	}

	query := fmt.Sprintf("repo:%s/%s is:open is:issue", org, repo)
	if unlabeledOnly {
		query += " no:label"
	}

	opts := &github.SearchOptions{
		Sort:        "created",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: count, Page: 1},
	}

	result, _, err := c.client.Search.Issues(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}

	issues := make([]*github.Issue, 0, len(result.Issues))
	for _, issue := range result.Issues {
		if unlabeledOnly && len(issue.Labels) > 0 {
			continue
		}
		issues = append(issues, issue)
		if len(issues) == count {
			break
		}
	}
	return issues, nil
}
