// Package api wraps the GitHub REST and GraphQL APIs behind the small
// client surface a sync run needs: repository lookup, the full label set,
// and issues updated since a watermark.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/tilpner/github-label-feed/internal/models"
	"github.com/tilpner/github-label-feed/internal/retry"
)

// GitHubClient is a client for the GitHub REST API.
type GitHubClient struct {
	client *github.Client
	retry  retry.Policy
}

// NewGitHubClient creates a new GitHub REST API client.
func NewGitHubClient(token string, pol retry.Policy) *GitHubClient {
	client := github.NewClient(oauthHTTPClient(token))
	return &GitHubClient{client: client, retry: pol}
}

// NewGitHubClientWithBaseURL creates a REST client against a non-default API
// endpoint, such as a GitHub Enterprise installation.
func NewGitHubClientWithBaseURL(token, baseURL string, pol retry.Policy) (*GitHubClient, error) {
	client, err := github.NewClient(oauthHTTPClient(token)).WithEnterpriseURLs(baseURL, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to configure API base URL: %w", err)
	}
	return &GitHubClient{client: client, retry: pol}, nil
}

func oauthHTTPClient(token string) *http.Client {
	if token == "" {
		return nil
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	return oauth2.NewClient(context.Background(), ts)
}

// GetRepository gets a repository by owner and name
func (c *GitHubClient) GetRepository(ctx context.Context, owner, name string) (*models.Repository, error) {
	var repo *github.Repository
	err := c.retry.Do(ctx, func() error {
		var err error
		repo, _, err = c.client.Repositories.Get(ctx, owner, name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}

	return &models.Repository{
		ID:       repo.GetID(),
		Owner:    repo.GetOwner().GetLogin(),
		Name:     repo.GetName(),
		FullName: repo.GetFullName(),
	}, nil
}

// ListLabels gets all labels defined on a repository.
func (c *GitHubClient) ListLabels(ctx context.Context, owner, name string) ([]*models.Label, error) {
	labels, err := CollectPages(ctx, c.retry,
		func(ctx context.Context, page int) ([]*github.Label, *github.Response, error) {
			opts := &github.ListOptions{Page: page, PerPage: perPage}
			return c.client.Issues.ListLabels(ctx, owner, name, opts)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}

	converted := make([]*models.Label, 0, len(labels))
	for _, label := range labels {
		converted = append(converted, convertLabel(label))
	}
	return converted, nil
}

// ListIssuesSince gets issues updated at or after since, oldest last. Pull
// requests are skipped. Each issue carries at most the first page of its
// labels; labels beyond that page are dropped.
func (c *GitHubClient) ListIssuesSince(ctx context.Context, owner, name string, since time.Time) ([]*models.Issue, error) {
	issues, err := CollectPages(ctx, c.retry,
		func(ctx context.Context, page int) ([]*github.Issue, *github.Response, error) {
			opts := &github.IssueListByRepoOptions{
				State:     "all",
				Sort:      "updated",
				Direction: "desc",
				ListOptions: github.ListOptions{
					Page:    page,
					PerPage: perPage,
				},
			}
			if !since.IsZero() {
				opts.Since = since
			}
			return c.client.Issues.ListByRepo(ctx, owner, name, opts)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}

	var converted []*models.Issue
	for _, ghIssue := range issues {
		if ghIssue.IsPullRequest() {
			continue
		}
		issue := convertIssue(ghIssue)

		labels, err := c.listIssueLabels(ctx, owner, name, issue.Number)
		if err != nil {
			return nil, fmt.Errorf("failed to list labels for issue #%d: %w", issue.Number, err)
		}
		issue.Labels = labels

		converted = append(converted, issue)
	}
	return converted, nil
}

// listIssueLabels issues a single unpaginated request for an issue's labels.
// Issues with more than one page of labels silently lose the excess.
func (c *GitHubClient) listIssueLabels(ctx context.Context, owner, name string, number int) ([]string, error) {
	var labels []*github.Label
	err := c.retry.Do(ctx, func() error {
		var err error
		opts := &github.ListOptions{PerPage: models.MaxLabelsPerIssue}
		labels, _, err = c.client.Issues.ListLabelsByIssue(ctx, owner, name, number, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(labels))
	for _, label := range labels {
		names = append(names, label.GetName())
	}
	return names, nil
}

func convertLabel(label *github.Label) *models.Label {
	return &models.Label{
		Name:        label.GetName(),
		Color:       label.GetColor(),
		Description: label.GetDescription(),
	}
}

func convertIssue(issue *github.Issue) *models.Issue {
	userLogin := "ghost"
	if issue.User != nil {
		userLogin = issue.User.GetLogin()
	}

	return &models.Issue{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		State:     issue.GetState(),
		HTMLURL:   issue.GetHTMLURL(),
		UserLogin: userLogin,
		UpdatedAt: issue.GetUpdatedAt().Time,
	}
}
