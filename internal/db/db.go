// Package db implements the local SQLite store: repositories, their label
// and issue sets, and the per-repository sync watermark.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tilpner/github-label-feed/internal/models"
)

// DB represents the database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Initialize creates the database schema if it doesn't exist
func (db *DB) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS repositories (
		id INTEGER PRIMARY KEY,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		full_name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS labels (
		repository_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (repository_id, name),
		FOREIGN KEY (repository_id) REFERENCES repositories(id)
	);

	CREATE TABLE IF NOT EXISTS issues (
		repository_id INTEGER NOT NULL,
		number INTEGER NOT NULL,
		title TEXT NOT NULL,
		body TEXT,
		state TEXT NOT NULL,
		html_url TEXT NOT NULL DEFAULT '',
		user_login TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (repository_id, number),
		FOREIGN KEY (repository_id) REFERENCES repositories(id)
	);

	CREATE TABLE IF NOT EXISTS issue_labels (
		repository_id INTEGER NOT NULL,
		issue_number INTEGER NOT NULL,
		label_name TEXT NOT NULL,
		PRIMARY KEY (repository_id, issue_number, label_name),
		FOREIGN KEY (repository_id, issue_number) REFERENCES issues(repository_id, number)
	);

	CREATE TABLE IF NOT EXISTS sync_metadata (
		repository TEXT PRIMARY KEY,
		last_sync_time TIMESTAMP NOT NULL
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveRepository saves a repository to the database
func (db *DB) SaveRepository(repo *models.Repository) error {
	query := `
	INSERT INTO repositories (id, owner, name, full_name)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(full_name) DO UPDATE SET
		owner = excluded.owner,
		name = excluded.name
	`

	_, err := db.Exec(query, repo.ID, repo.Owner, repo.Name, repo.FullName)
	if err != nil {
		return fmt.Errorf("failed to save repository: %w", err)
	}

	return nil
}

// GetRepositoryByFullName gets a repository by its full name. Returns nil
// without error when the repository is unknown.
func (db *DB) GetRepositoryByFullName(fullName string) (*models.Repository, error) {
	query := `SELECT id, owner, name, full_name FROM repositories WHERE full_name = ?`

	var repo models.Repository
	err := db.QueryRow(query, fullName).Scan(&repo.ID, &repo.Owner, &repo.Name, &repo.FullName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}

	return &repo, nil
}

// RepositoryInfo is a repository together with its stored label and issue
// counts, as shown by the list command.
type RepositoryInfo struct {
	models.Repository
	LabelCount int
	IssueCount int
}

// ListRepositories returns all stored repositories with label and issue counts.
func (db *DB) ListRepositories() ([]RepositoryInfo, error) {
	query := `
	SELECT id, owner, name, full_name,
		(SELECT COUNT(*) FROM labels WHERE repository_id = repositories.id) AS label_count,
		(SELECT COUNT(*) FROM issues WHERE repository_id = repositories.id) AS issue_count
	FROM repositories
	ORDER BY full_name
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer rows.Close()

	var repos []RepositoryInfo
	for rows.Next() {
		var info RepositoryInfo
		if err := rows.Scan(&info.ID, &info.Owner, &info.Name, &info.FullName,
			&info.LabelCount, &info.IssueCount); err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		repos = append(repos, info)
	}
	return repos, rows.Err()
}

// ReplaceLabels atomically replaces the stored label set for a repository.
// Readers never observe a partial overwrite: the delete and all inserts
// happen in one transaction.
func (db *DB) ReplaceLabels(repoID int64, labels []*models.Label) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM labels WHERE repository_id = ?`, repoID); err != nil {
		return fmt.Errorf("failed to clear labels: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO labels (repository_id, name, color, description) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare label insert: %w", err)
	}
	defer stmt.Close()

	for _, label := range labels {
		if _, err := stmt.Exec(repoID, label.Name, label.Color, label.Description); err != nil {
			return fmt.Errorf("failed to insert label %s: %w", label.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit labels: %w", err)
	}
	return nil
}

// ListLabels returns the stored label set for a repository, ordered by name.
func (db *DB) ListLabels(repoID int64) ([]*models.Label, error) {
	rows, err := db.Query(
		`SELECT name, color, description FROM labels WHERE repository_id = ? ORDER BY name`, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	defer rows.Close()

	var labels []*models.Label
	for rows.Next() {
		var label models.Label
		if err := rows.Scan(&label.Name, &label.Color, &label.Description); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, &label)
	}
	return labels, rows.Err()
}

// UpsertIssues upserts the given issues, keyed by issue number, and replaces
// each issue's label associations. All writes happen in one transaction.
func (db *DB) UpsertIssues(repoID int64, issues []*models.Issue) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	issueStmt, err := tx.Prepare(`
	INSERT INTO issues (repository_id, number, title, body, state, html_url, user_login, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(repository_id, number) DO UPDATE SET
		title = excluded.title,
		body = excluded.body,
		state = excluded.state,
		html_url = excluded.html_url,
		user_login = excluded.user_login,
		updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare issue upsert: %w", err)
	}
	defer issueStmt.Close()

	labelStmt, err := tx.Prepare(
		`INSERT INTO issue_labels (repository_id, issue_number, label_name) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare issue label insert: %w", err)
	}
	defer labelStmt.Close()

	for _, issue := range issues {
		if _, err := issueStmt.Exec(repoID, issue.Number, issue.Title, issue.Body,
			issue.State, issue.HTMLURL, issue.UserLogin, issue.UpdatedAt); err != nil {
			return fmt.Errorf("failed to upsert issue #%d: %w", issue.Number, err)
		}

		if _, err := tx.Exec(
			`DELETE FROM issue_labels WHERE repository_id = ? AND issue_number = ?`,
			repoID, issue.Number); err != nil {
			return fmt.Errorf("failed to clear labels for issue #%d: %w", issue.Number, err)
		}

		for _, name := range issue.Labels {
			if _, err := labelStmt.Exec(repoID, issue.Number, name); err != nil {
				return fmt.Errorf("failed to label issue #%d with %s: %w", issue.Number, name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit issues: %w", err)
	}
	return nil
}

// ListIssuesByLabel returns stored issues carrying the given label, newest
// issue number first. With onlyOpen set, closed issues are skipped.
func (db *DB) ListIssuesByLabel(repoID int64, labelName string, onlyOpen bool) ([]*models.Issue, error) {
	query := `
	SELECT issues.number, issues.title, issues.body, issues.state,
		issues.html_url, issues.user_login, issues.updated_at
	FROM issues
	INNER JOIN issue_labels ON issue_labels.repository_id = issues.repository_id
		AND issue_labels.issue_number = issues.number
	WHERE issues.repository_id = ? AND issue_labels.label_name = ?
	`
	args := []any{repoID, labelName}
	if onlyOpen {
		query += ` AND issues.state = 'open'`
	}
	query += ` ORDER BY issues.number DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues for label %s: %w", labelName, err)
	}
	defer rows.Close()

	var issues []*models.Issue
	for rows.Next() {
		var issue models.Issue
		if err := rows.Scan(&issue.Number, &issue.Title, &issue.Body, &issue.State,
			&issue.HTMLURL, &issue.UserLogin, &issue.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, &issue)
	}
	return issues, rows.Err()
}

// GetWatermark gets the last successful sync time for a repository. A zero
// time means the repository has never been synced.
func (db *DB) GetWatermark(repoFullName string) (time.Time, error) {
	var watermark time.Time
	query := `SELECT last_sync_time FROM sync_metadata WHERE repository = ?`

	err := db.QueryRow(query, repoFullName).Scan(&watermark)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get sync watermark: %w", err)
	}

	return watermark, nil
}

// SetWatermark updates the last successful sync time for a repository.
func (db *DB) SetWatermark(repoFullName string, syncTime time.Time) error {
	query := `
	INSERT INTO sync_metadata (repository, last_sync_time)
	VALUES (?, ?)
	ON CONFLICT(repository) DO UPDATE SET
		last_sync_time = excluded.last_sync_time
	`

	_, err := db.Exec(query, repoFullName, syncTime)
	if err != nil {
		return fmt.Errorf("failed to set sync watermark: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
