// Package sync orchestrates a sync run: labels first, then issues updated
// since the stored watermark, then the watermark commit. The watermark only
// advances after both phases succeed, so a failed run is retried from the
// same point.
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tilpner/github-label-feed/internal/db"
	"github.com/tilpner/github-label-feed/internal/logging"
	"github.com/tilpner/github-label-feed/internal/models"
)

// Client is the subset of the GitHub API a sync run needs.
type Client interface {
	GetRepository(ctx context.Context, owner, name string) (*models.Repository, error)
	ListLabels(ctx context.Context, owner, name string) ([]*models.Label, error)
	ListIssuesSince(ctx context.Context, owner, name string, since time.Time) ([]*models.Issue, error)
}

// Phase identifies the stage of a sync run.
type Phase string

const (
	PhaseRepository Phase = "repository"
	PhaseLabels     Phase = "labels"
	PhaseIssues     Phase = "issues"
	PhaseCommit     Phase = "commit"
)

// PhaseError attributes a sync failure to the phase it occurred in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Syncer runs syncs against the local database. A Syncer must not be used
// for concurrent runs against the same database.
type Syncer struct {
	db     *db.DB
	client Client

	// now is the clock used for the watermark; overridable in tests.
	now func() time.Time
}

// New creates a new syncer
func New(database *db.DB, client Client) *Syncer {
	return &Syncer{
		db:     database,
		client: client,
		now:    time.Now,
	}
}

// SyncRepository syncs a repository's labels and issues to the local
// database. On success the watermark advances to the time the run started,
// so items updated mid-run are re-fetched next time rather than missed. On
// failure nothing before the failed phase is rolled back, but the watermark
// is left untouched.
func (s *Syncer) SyncRepository(ctx context.Context, owner, name string) error {
	fullName := owner + "/" + name
	start := s.now()

	repo, err := s.client.GetRepository(ctx, owner, name)
	if err != nil {
		return &PhaseError{Phase: PhaseRepository, Err: err}
	}
	if err := s.db.SaveRepository(repo); err != nil {
		return &PhaseError{Phase: PhaseRepository, Err: err}
	}

	watermark, err := s.db.GetWatermark(fullName)
	if err != nil {
		return &PhaseError{Phase: PhaseRepository, Err: err}
	}
	logging.Info("syncing repository", "repo", fullName, "last_sync", watermark)

	labels, err := s.client.ListLabels(ctx, owner, name)
	if err != nil {
		return &PhaseError{Phase: PhaseLabels, Err: err}
	}
	if err := s.db.ReplaceLabels(repo.ID, dedupeLabels(labels)); err != nil {
		return &PhaseError{Phase: PhaseLabels, Err: err}
	}
	logging.Info("labels synced", "repo", fullName, "count", len(labels))

	issues, err := s.client.ListIssuesSince(ctx, owner, name, watermark)
	if err != nil {
		return &PhaseError{Phase: PhaseIssues, Err: err}
	}
	if err := s.db.UpsertIssues(repo.ID, issues); err != nil {
		return &PhaseError{Phase: PhaseIssues, Err: err}
	}
	logging.Info("issues synced", "repo", fullName, "count", len(issues))

	if err := s.db.SetWatermark(fullName, start); err != nil {
		return &PhaseError{Phase: PhaseCommit, Err: err}
	}

	logging.Info("sync complete", "repo", fullName, "duration", s.now().Sub(start))
	return nil
}

// dedupeLabels keeps the last record per label name.
func dedupeLabels(labels []*models.Label) []*models.Label {
	byName := make(map[string]*models.Label, len(labels))
	order := make([]string, 0, len(labels))
	for _, label := range labels {
		if _, seen := byName[label.Name]; !seen {
			order = append(order, label.Name)
		}
		byName[label.Name] = label
	}

	out := make([]*models.Label, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

// ParseRepositoryString parses a repository string in the format "owner/name"
func ParseRepositoryString(repoStr string) (string, string, error) {
	parts := strings.Split(repoStr, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format, expected 'owner/name', got '%s'", repoStr)
	}
	return parts[0], parts[1], nil
}
