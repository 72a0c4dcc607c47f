// Package feed renders per-label Atom feeds from the local database. Each
// label gets its own directory under the output path, holding one atom.xml
// with the label's issues, newest first.
package feed

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gorilla/feeds"

	"github.com/tilpner/github-label-feed/internal/db"
	"github.com/tilpner/github-label-feed/internal/logging"
	"github.com/tilpner/github-label-feed/internal/models"
)

// Options controls feed generation for one repository.
type Options struct {
	// Labels to generate feeds for; empty means every stored label.
	Labels []string

	// OnlyOpen skips closed issues.
	OnlyOpen bool
}

// Generate writes one Atom feed per label to outDir. The repository must
// have been synced before.
func Generate(database *db.DB, owner, name, outDir string, opts Options) error {
	fullName := owner + "/" + name

	repo, err := database.GetRepositoryByFullName(fullName)
	if err != nil {
		return err
	}
	if repo == nil {
		return fmt.Errorf("repository %s has not been synced yet", fullName)
	}

	labels := opts.Labels
	if len(labels) == 0 {
		stored, err := database.ListLabels(repo.ID)
		if err != nil {
			return err
		}
		for _, label := range stored {
			labels = append(labels, label.Name)
		}
	}

	for _, label := range labels {
		issues, err := database.ListIssuesByLabel(repo.ID, label, opts.OnlyOpen)
		if err != nil {
			return err
		}
		logging.Info("generating feed", "label", label, "issues", len(issues))

		atom, err := render(fullName, label, issues)
		if err != nil {
			return fmt.Errorf("failed to render feed for label %s: %w", label, err)
		}

		dir := filepath.Join(outDir, pathEscape(label))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create feed directory: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "atom.xml"), []byte(atom), 0644); err != nil {
			return fmt.Errorf("failed to write feed for label %s: %w", label, err)
		}
	}

	return nil
}

func render(fullName, label string, issues []*models.Issue) (string, error) {
	feed := &feeds.Feed{
		Title: label,
		Link:  &feeds.Link{Href: fmt.Sprintf("https://github.com/%s/labels/%s", fullName, label)},
		Id:    fmt.Sprintf("https://github.com/%s/labels/%s", fullName, label),
	}

	for _, issue := range issues {
		item := &feeds.Item{
			Id:      issue.HTMLURL,
			Title:   issue.Title,
			Link:    &feeds.Link{Href: issue.HTMLURL},
			Author:  &feeds.Author{Name: issue.UserLogin},
			Content: issue.Body,
			Updated: issue.UpdatedAt,
		}
		feed.Items = append(feed.Items, item)

		if issue.UpdatedAt.After(feed.Updated) {
			feed.Updated = issue.UpdatedAt
		}
	}

	return feed.ToAtom()
}

// pathEscape makes a label name safe to use as a directory name.
func pathEscape(label string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == filepath.Separator || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, label)
}
