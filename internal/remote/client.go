package remote

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the remote API answers 404 for a lookup.
	// Column probing treats it as an expected outcome.
	ErrNotFound = errors.New("remote: not found")

	// ErrRemote marks transport failures and non-2xx answers other than 404.
	ErrRemote = errors.New("remote: request failed")
)

// APIError carries the status and body of a failed remote call.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Unwrap classifies the error as ErrNotFound or ErrRemote.
func (e *APIError) Unwrap() error {
	if e.Status == 404 {
		return ErrNotFound
	}
	return ErrRemote
}

// Client is the authenticated request/response access to the remote API.
// Every call is safe to retry on transport failure.
type Client interface {
	// AccountID identifies the account the client talks to.
	AccountID() string

	ListProjects(ctx context.Context, status ProjectStatus, page int) ([]Project, error)
	GetProject(ctx context.Context, projectID int64) (*Project, error)

	// GetColumn fetches a single board column. A missing column yields an
	// error wrapping ErrNotFound.
	GetColumn(ctx context.Context, projectID, columnID int64) (*Column, error)
	ListCards(ctx context.Context, projectID, columnID int64, page int) ([]Card, error)

	ListPeople(ctx context.Context, page int) ([]Person, error)
	ListProjectPeople(ctx context.Context, projectID int64) ([]Person, error)

	CreateCard(ctx context.Context, projectID, columnID int64, in CardCreate) (*Card, error)
	UpdateCard(ctx context.Context, projectID, cardID int64, in CardUpdate) (*Card, error)
	MoveCard(ctx context.Context, projectID, cardID, columnID int64) error
	CreateComment(ctx context.Context, projectID, recordingID int64, content string) (*Comment, error)
}

// maxPages bounds page walking so a misbehaving server cannot loop forever.
const maxPages = 500

// AllProjects walks every page of projects with the given status.
func AllProjects(ctx context.Context, c Client, status ProjectStatus) ([]Project, error) {
	var all []Project
	for page := 1; page <= maxPages; page++ {
		items, err := c.ListProjects(ctx, status, page)
		if err != nil {
			return nil, fmt.Errorf("listing %s projects page %d: %w", status, page, err)
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
	}
	return all, nil
}

// AllCards walks every page of cards in a column.
func AllCards(ctx context.Context, c Client, projectID, columnID int64) ([]Card, error) {
	var all []Card
	for page := 1; page <= maxPages; page++ {
		items, err := c.ListCards(ctx, projectID, columnID, page)
		if err != nil {
			return nil, fmt.Errorf("listing cards of column %d page %d: %w", columnID, page, err)
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
	}
	return all, nil
}

// AllPeople walks every page of the people directory.
func AllPeople(ctx context.Context, c Client) ([]Person, error) {
	var all []Person
	for page := 1; page <= maxPages; page++ {
		items, err := c.ListPeople(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("listing people page %d: %w", page, err)
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
	}
	return all, nil
}
