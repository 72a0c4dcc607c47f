package models

import (
	"time"
)

// Repository represents a GitHub repository
type Repository struct {
	ID       int64
	Owner    string
	Name     string
	FullName string
}

// Label represents a GitHub label. Labels are identified by name within a
// repository; the numeric GitHub ID is not stored because label sets are
// replaced wholesale on every sync.
type Label struct {
	Name        string
	Color       string
	Description string
}

// MaxLabelsPerIssue is the number of labels kept per issue. Only the first
// page of an issue's labels is fetched; anything beyond it is dropped.
const MaxLabelsPerIssue = 100

// Issue represents a GitHub issue
type Issue struct {
	Number    int
	Title     string
	Body      string
	State     string
	HTMLURL   string
	UserLogin string
	UpdatedAt time.Time

	// Label names attached to the issue, capped at MaxLabelsPerIssue.
	Labels []string
}
