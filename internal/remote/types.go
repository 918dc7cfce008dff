// Package remote is the boundary to the hosted project-management API.
//
// Everything the rest of boardmirror knows about the remote system goes
// through the Client interface: listing projects and people, probing board
// columns, paging through cards, and the handful of mutations the
// automation workflows issue. HTTPClient is the production implementation;
// remotetest.Fake backs the tests.
package remote

import (
	"fmt"
	"time"
)

// --- Project status enum ---

// ProjectStatus is the lifecycle state of a remote project.
type ProjectStatus string

const (
	StatusActive   ProjectStatus = "active"
	StatusArchived ProjectStatus = "archived"
	StatusTrashed  ProjectStatus = "trashed"
)

// validStatuses is the set of allowed project statuses.
var validStatuses = map[ProjectStatus]bool{
	StatusActive:   true,
	StatusArchived: true,
	StatusTrashed:  true,
}

// ValidateStatus returns an error if the status is not recognized.
func ValidateStatus(s ProjectStatus) error {
	if !validStatuses[s] {
		return fmt.Errorf("invalid project status %q: must be one of: active, archived, trashed", s)
	}
	return nil
}

// Project is a remote project. BoardID is nil when the project has no
// card table.
type Project struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	BoardID     *int64        `json:"board_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	URL         string        `json:"app_url"`
}

// HasBoard reports whether the project carries a card table.
func (p Project) HasBoard() bool { return p.BoardID != nil }

// Column is a lane on a board as the remote API reports it.
type Column struct {
	ID         int64  `json:"id"`
	ProjectID  int64  `json:"project_id"`
	Title      string `json:"title"`
	Position   *int   `json:"position,omitempty"`
	CardsCount int    `json:"cards_count"`
}

// Person is an entry in the account's people directory.
type Person struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email_address"`
	Title     string `json:"title"`
	Admin     bool   `json:"admin"`
	Owner     bool   `json:"owner"`
	AvatarURL string `json:"avatar_url"`
}

// Card is a single card. Content is the raw HTML body.
type Card struct {
	ID        int64      `json:"id"`
	ProjectID int64      `json:"project_id"`
	ColumnID  int64      `json:"column_id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Completed bool       `json:"completed"`
	DueOn     *time.Time `json:"due_on,omitempty"`
	Assignees []Person   `json:"assignees"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	URL       string     `json:"app_url"`
}

// AssigneeIDs returns the ids of the card's assignees in order.
func (c Card) AssigneeIDs() []int64 {
	ids := make([]int64, 0, len(c.Assignees))
	for _, a := range c.Assignees {
		ids = append(ids, a.ID)
	}
	return ids
}

// HasAssignee reports whether the person is already assigned.
func (c Card) HasAssignee(id int64) bool {
	for _, a := range c.Assignees {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Overdue reports whether the card is open with a due date strictly
// before now.
func (c Card) Overdue(now time.Time) bool {
	return !c.Completed && c.DueOn != nil && c.DueOn.Before(now)
}

// CardCreate holds the input for creating a card in a column.
type CardCreate struct {
	Title   string     `json:"title"`
	Content string     `json:"content,omitempty"`
	DueOn   *time.Time `json:"due_on,omitempty"`
}

// CardUpdate holds partial update fields for a card. Nil fields are left
// untouched on the remote side.
type CardUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Content     *string    `json:"content,omitempty"`
	DueOn       *time.Time `json:"due_on,omitempty"`
	AssigneeIDs *[]int64   `json:"assignee_ids,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
}

// Comment is a comment posted on a card.
type Comment struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
