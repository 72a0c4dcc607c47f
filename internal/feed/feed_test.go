package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilpner/github-label-feed/internal/db"
	"github.com/tilpner/github-label-feed/internal/models"
)

func seededDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Initialize())

	repo := &models.Repository{ID: 1, Owner: "o", Name: "r", FullName: "o/r"}
	require.NoError(t, database.SaveRepository(repo))

	require.NoError(t, database.ReplaceLabels(repo.ID, []*models.Label{
		{Name: "bug", Color: "ff0000"},
		{Name: "help wanted", Color: "00ff00"},
	}))

	require.NoError(t, database.UpsertIssues(repo.ID, []*models.Issue{
		{Number: 1, Title: "crash on startup", Body: "<p>stack trace</p>", State: "open",
			HTMLURL: "https://github.com/o/r/issues/1", UserLogin: "alice",
			UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Labels:    []string{"bug"}},
		{Number: 2, Title: "fixed crash", State: "closed",
			HTMLURL: "https://github.com/o/r/issues/2", UserLogin: "bob",
			UpdatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Labels:    []string{"bug", "help wanted"}},
	}))

	return database
}

func TestGenerateWritesFeedPerLabel(t *testing.T) {
	database := seededDB(t)
	outDir := t.TempDir()

	require.NoError(t, Generate(database, "o", "r", outDir, Options{}))

	bugFeed, err := os.ReadFile(filepath.Join(outDir, "bug", "atom.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(bugFeed), "crash on startup")
	assert.Contains(t, string(bugFeed), "https://github.com/o/r/issues/1")
	assert.Contains(t, string(bugFeed), "alice")

	// Whitespace in label names is escaped in the directory name.
	_, err = os.Stat(filepath.Join(outDir, "help_wanted", "atom.xml"))
	assert.NoError(t, err)
}

func TestGenerateOnlyOpen(t *testing.T) {
	database := seededDB(t)
	outDir := t.TempDir()

	require.NoError(t, Generate(database, "o", "r", outDir, Options{OnlyOpen: true}))

	bugFeed, err := os.ReadFile(filepath.Join(outDir, "bug", "atom.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(bugFeed), "crash on startup")
	assert.NotContains(t, string(bugFeed), "fixed crash")
}

func TestGenerateSelectedLabels(t *testing.T) {
	database := seededDB(t)
	outDir := t.TempDir()

	require.NoError(t, Generate(database, "o", "r", outDir, Options{Labels: []string{"bug"}}))

	_, err := os.Stat(filepath.Join(outDir, "bug", "atom.xml"))
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(outDir, "help_wanted"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateUnknownRepository(t *testing.T) {
	database := seededDB(t)

	err := Generate(database, "nobody", "nothing", t.TempDir(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has not been synced")
}

func TestPathEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"bug", "bug"},
		{"help wanted", "help_wanted"},
		{"area/storage", "area_storage"},
		{"good first issue", "good_first_issue"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pathEscape(tt.in))
	}
}
