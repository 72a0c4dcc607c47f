package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/tilpner/github-label-feed/internal/models"
	"github.com/tilpner/github-label-feed/internal/retry"
)

// GraphQLClient is a client for the GitHub GraphQL API. It fetches the same
// data as GitHubClient, with the per-issue label cap expressed directly as a
// nested labels(first: N) selection.
type GraphQLClient struct {
	client *githubv4.Client
	retry  retry.Policy
}

// NewGraphQLClient creates a new GraphQL client.
func NewGraphQLClient(token string, pol retry.Policy) *GraphQLClient {
	src := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	httpClient := oauth2.NewClient(context.Background(), src)
	return &GraphQLClient{client: githubv4.NewClient(httpClient), retry: pol}
}

// NewGraphQLClientWithBaseURL creates a GraphQL client against a non-default
// endpoint, such as a GitHub Enterprise installation.
func NewGraphQLClientWithBaseURL(token, baseURL string, pol retry.Policy) *GraphQLClient {
	return &GraphQLClient{
		client: githubv4.NewEnterpriseClient(baseURL, oauthHTTPClient(token)),
		retry:  pol,
	}
}

func (c *GraphQLClient) query(ctx context.Context, q any, variables map[string]interface{}) error {
	return c.retry.Do(ctx, func() error {
		return c.client.Query(ctx, q, variables)
	})
}

// GetRepository gets a repository by owner and name
func (c *GraphQLClient) GetRepository(ctx context.Context, owner, name string) (*models.Repository, error) {
	var query struct {
		Repository struct {
			DatabaseID githubv4.Int
			Name       githubv4.String
			Owner      struct {
				Login githubv4.String
			}
			NameWithOwner githubv4.String
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	variables := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(name),
	}

	if err := c.query(ctx, &query, variables); err != nil {
		return nil, fmt.Errorf("failed to query repository: %w", err)
	}

	return &models.Repository{
		ID:       int64(query.Repository.DatabaseID),
		Owner:    string(query.Repository.Owner.Login),
		Name:     string(query.Repository.Name),
		FullName: string(query.Repository.NameWithOwner),
	}, nil
}

// ListLabels gets all labels defined on a repository.
func (c *GraphQLClient) ListLabels(ctx context.Context, owner, name string) ([]*models.Label, error) {
	var all []*models.Label
	var cursor *githubv4.String

	for {
		var query struct {
			Repository struct {
				Labels struct {
					Nodes []struct {
						Name        githubv4.String
						Color       githubv4.String
						Description githubv4.String
					}
					PageInfo struct {
						EndCursor   githubv4.String
						HasNextPage githubv4.Boolean
					}
				} `graphql:"labels(first: $perPage, after: $cursor)"`
			} `graphql:"repository(owner: $owner, name: $name)"`
		}

		variables := map[string]interface{}{
			"owner":   githubv4.String(owner),
			"name":    githubv4.String(name),
			"perPage": githubv4.Int(perPage),
			"cursor":  cursor,
		}

		if err := c.query(ctx, &query, variables); err != nil {
			return nil, fmt.Errorf("failed to query labels: %w", err)
		}

		for _, node := range query.Repository.Labels.Nodes {
			all = append(all, &models.Label{
				Name:        string(node.Name),
				Color:       string(node.Color),
				Description: string(node.Description),
			})
		}

		if !query.Repository.Labels.PageInfo.HasNextPage {
			return all, nil
		}
		cursor = &query.Repository.Labels.PageInfo.EndCursor
	}
}

type graphqlIssue struct {
	Number githubv4.Int
	Title  githubv4.String
	Body   githubv4.String
	State  githubv4.String
	URL    githubv4.String `graphql:"url"`
	Author struct {
		Login githubv4.String
	}
	UpdatedAt githubv4.DateTime
	// Only the first page of labels; anything beyond the cap is dropped.
	Labels struct {
		Nodes []struct {
			Name githubv4.String
		}
	} `graphql:"labels(first: 100)"`
}

// ListIssuesSince gets issues updated at or after since. Each issue carries
// at most the first page of its labels.
func (c *GraphQLClient) ListIssuesSince(ctx context.Context, owner, name string, since time.Time) ([]*models.Issue, error) {
	var all []*models.Issue
	var cursor *githubv4.String

	var sinceVar *githubv4.DateTime
	if !since.IsZero() {
		sinceVar = &githubv4.DateTime{Time: since}
	}

	for {
		var query struct {
			Repository struct {
				Issues struct {
					Nodes    []graphqlIssue
					PageInfo struct {
						EndCursor   githubv4.String
						HasNextPage githubv4.Boolean
					}
				} `graphql:"issues(first: $perPage, after: $cursor, orderBy: {field: UPDATED_AT, direction: DESC}, filterBy: {since: $since})"`
			} `graphql:"repository(owner: $owner, name: $name)"`
		}

		variables := map[string]interface{}{
			"owner":   githubv4.String(owner),
			"name":    githubv4.String(name),
			"perPage": githubv4.Int(perPage),
			"cursor":  cursor,
			"since":   sinceVar,
		}

		if err := c.query(ctx, &query, variables); err != nil {
			return nil, fmt.Errorf("failed to query issues: %w", err)
		}

		for _, node := range query.Repository.Issues.Nodes {
			all = append(all, convertGraphQLIssue(node))
		}

		if !query.Repository.Issues.PageInfo.HasNextPage {
			return all, nil
		}
		cursor = &query.Repository.Issues.PageInfo.EndCursor
	}
}

func convertGraphQLIssue(node graphqlIssue) *models.Issue {
	userLogin := string(node.Author.Login)
	if userLogin == "" {
		userLogin = "ghost"
	}

	labels := make([]string, 0, len(node.Labels.Nodes))
	for _, label := range node.Labels.Nodes {
		labels = append(labels, string(label.Name))
	}

	return &models.Issue{
		Number:    int(node.Number),
		Title:     string(node.Title),
		Body:      string(node.Body),
		State:     strings.ToLower(string(node.State)),
		HTMLURL:   string(node.URL),
		UserLogin: userLogin,
		UpdatedAt: node.UpdatedAt.Time,
		Labels:    labels,
	}
}
