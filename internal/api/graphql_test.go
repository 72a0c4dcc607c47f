package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func newTestGraphQLClient(t *testing.T, handler http.HandlerFunc) *GraphQLClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewGraphQLClientWithBaseURL("", srv.URL, testPolicy())
}

func decodeGraphQLRequest(t *testing.T, r *http.Request) graphqlRequest {
	t.Helper()

	var req graphqlRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestGraphQLGetRepository(t *testing.T) {
	client := newTestGraphQLClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"repository": map[string]any{
					"databaseId":    42,
					"name":          "r",
					"owner":         map[string]any{"login": "o"},
					"nameWithOwner": "o/r",
				},
			},
		})
	})

	repo, err := client.GetRepository(context.Background(), "o", "r")

	require.NoError(t, err)
	assert.Equal(t, int64(42), repo.ID)
	assert.Equal(t, "o", repo.Owner)
	assert.Equal(t, "r", repo.Name)
	assert.Equal(t, "o/r", repo.FullName)
}

func TestGraphQLListLabelsFollowsCursors(t *testing.T) {
	var cursors []any
	client := newTestGraphQLClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeGraphQLRequest(t, r)
		cursors = append(cursors, req.Variables["cursor"])

		page := map[string]any{
			"nodes": []map[string]any{
				{"name": "bug", "color": "ff0000", "description": "something broke"},
				{"name": "feature", "color": "00ff00", "description": ""},
			},
			"pageInfo": map[string]any{"endCursor": "CUR1", "hasNextPage": true},
		}
		if req.Variables["cursor"] == "CUR1" {
			page = map[string]any{
				"nodes": []map[string]any{
					{"name": "stale", "color": "cccccc", "description": ""},
				},
				"pageInfo": map[string]any{"endCursor": "CUR2", "hasNextPage": false},
			}
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"repository": map[string]any{"labels": page},
			},
		})
	})

	labels, err := client.ListLabels(context.Background(), "o", "r")

	require.NoError(t, err)
	require.Len(t, labels, 3)
	assert.Equal(t, "bug", labels[0].Name)
	assert.Equal(t, "something broke", labels[0].Description)
	assert.Equal(t, "stale", labels[2].Name)

	// First request starts without a cursor, the second resumes from the
	// advertised end cursor.
	require.Len(t, cursors, 2)
	assert.Nil(t, cursors[0])
	assert.Equal(t, "CUR1", cursors[1])
}

func TestGraphQLListIssuesSince(t *testing.T) {
	var req graphqlRequest
	client := newTestGraphQLClient(t, func(w http.ResponseWriter, r *http.Request) {
		req = decodeGraphQLRequest(t, r)

		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"repository": map[string]any{
					"issues": map[string]any{
						"nodes": []map[string]any{
							{
								"number":    7,
								"title":     "crash on startup",
								"body":      "stack trace",
								"state":     "OPEN",
								"url":       "https://github.com/o/r/issues/7",
								"author":    map[string]any{"login": "alice"},
								"updatedAt": "2024-03-01T12:00:00Z",
								"labels": map[string]any{
									"nodes": []map[string]any{{"name": "bug"}, {"name": "crash"}},
								},
							},
							{
								"number":    8,
								"title":     "orphaned issue",
								"body":      "",
								"state":     "CLOSED",
								"url":       "https://github.com/o/r/issues/8",
								"author":    nil,
								"updatedAt": "2024-03-02T12:00:00Z",
								"labels":    map[string]any{"nodes": []map[string]any{}},
							},
						},
						"pageInfo": map[string]any{"endCursor": "", "hasNextPage": false},
					},
				},
			},
		})
	})

	since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	issues, err := client.ListIssuesSince(context.Background(), "o", "r", since)

	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, 7, issues[0].Number)
	assert.Equal(t, "open", issues[0].State, "states are stored lowercase")
	assert.Equal(t, "alice", issues[0].UserLogin)
	assert.Equal(t, []string{"bug", "crash"}, issues[0].Labels)
	assert.Equal(t, "https://github.com/o/r/issues/7", issues[0].HTMLURL)
	assert.True(t, issues[0].UpdatedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))

	assert.Equal(t, "closed", issues[1].State)
	assert.Equal(t, "ghost", issues[1].UserLogin, "deleted authors fall back to ghost")
	assert.Empty(t, issues[1].Labels)

	// The watermark travels as the since filter, and the per-issue label
	// cap is part of the query itself.
	assert.Equal(t, "2024-02-01T00:00:00Z", req.Variables["since"])
	assert.Contains(t, req.Query, "labels(first: 100)")
}

func TestGraphQLListIssuesSinceZeroWatermark(t *testing.T) {
	var req graphqlRequest
	client := newTestGraphQLClient(t, func(w http.ResponseWriter, r *http.Request) {
		req = decodeGraphQLRequest(t, r)

		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"repository": map[string]any{
					"issues": map[string]any{
						"nodes":    []map[string]any{},
						"pageInfo": map[string]any{"endCursor": "", "hasNextPage": false},
					},
				},
			},
		})
	})

	issues, err := client.ListIssuesSince(context.Background(), "o", "r", time.Time{})

	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Nil(t, req.Variables["since"], "a never-synced repository fetches everything")
}

func TestGraphQLRecoversFromTransientFailures(t *testing.T) {
	failures := 0
	client := newTestGraphQLClient(t, func(w http.ResponseWriter, r *http.Request) {
		if failures < 4 {
			failures++
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"repository": map[string]any{
					"labels": map[string]any{
						"nodes":    []map[string]any{{"name": "bug", "color": "ff0000", "description": ""}},
						"pageInfo": map[string]any{"endCursor": "", "hasNextPage": false},
					},
				},
			},
		})
	})

	labels, err := client.ListLabels(context.Background(), "o", "r")

	require.NoError(t, err)
	assert.Len(t, labels, 1)
	assert.Equal(t, 4, failures)
}

func TestGraphQLFailsAfterExhaustedRetries(t *testing.T) {
	requests := 0
	client := newTestGraphQLClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	_, err := client.ListLabels(context.Background(), "o", "r")

	require.Error(t, err)
	assert.Equal(t, 5, requests)
}
