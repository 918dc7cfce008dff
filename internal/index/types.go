// Package index is the local mirror of the remote project hierarchy.
//
// A Snapshot holds four maps (projects, columns, cards, people) plus Meta.
// The Store persists snapshots in SQLite and keeps the committed one in
// memory so searches and statistics never touch the network. Builder
// produces snapshots from the remote API; commits are all-or-nothing.
package index

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/remote"
)

var (
	// ErrNotFound is returned when a keyed entry does not exist.
	ErrNotFound = errors.New("index: not found")

	// ErrInvalidInput rejects malformed keys and search options.
	ErrInvalidInput = errors.New("index: invalid input")

	// ErrBuildInProgress is returned when a second build starts while one
	// is running.
	ErrBuildInProgress = errors.New("index: build already in progress")

	// ErrEmptyIndex is returned by operations that need a committed build.
	ErrEmptyIndex = errors.New("index: not built yet")
)

// Key builds the project-scoped composite key of a column or card.
func Key(projectID, id int64) string {
	return strconv.FormatInt(projectID, 10) + ":" + strconv.FormatInt(id, 10)
}

// ParseKey splits a composite key into project and entity ids.
func ParseKey(key string) (projectID, id int64, err error) {
	left, right, ok := strings.Cut(key, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: key %q is not <project>:<id>", ErrInvalidInput, key)
	}
	projectID, err = strconv.ParseInt(left, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: key %q: bad project id", ErrInvalidInput, key)
	}
	id, err = strconv.ParseInt(right, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: key %q: bad id", ErrInvalidInput, key)
	}
	return projectID, id, nil
}

// ColumnEntry is an indexed board column.
type ColumnEntry struct {
	Key       string           `json:"key"`
	ID        int64            `json:"id"`
	ProjectID int64            `json:"project_id"`
	Title     string           `json:"title"`
	Position  *int             `json:"position,omitempty"`
	Type      board.ColumnType `json:"type"`
	Label     string           `json:"label"`
}

func newColumnEntry(c board.Column) ColumnEntry {
	return ColumnEntry{
		Key:       Key(c.ProjectID, c.ID),
		ID:        c.ID,
		ProjectID: c.ProjectID,
		Title:     c.Title,
		Position:  c.Position,
		Type:      c.Type,
		Label:     c.Label,
	}
}

// CardEntry is an indexed card with its column and assignees denormalized
// for search. Content is plain text.
type CardEntry struct {
	Key           string           `json:"key"`
	ID            int64            `json:"id"`
	ProjectID     int64            `json:"project_id"`
	ProjectName   string           `json:"project_name"`
	ColumnID      int64            `json:"column_id"`
	ColumnTitle   string           `json:"column_title"`
	ColumnType    board.ColumnType `json:"column_type"`
	Title         string           `json:"title"`
	Content       string           `json:"content"`
	Completed     bool             `json:"completed"`
	DueOn         *time.Time       `json:"due_on,omitempty"`
	AssigneeIDs   []int64          `json:"assignee_ids"`
	AssigneeNames []string         `json:"assignee_names"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	URL           string           `json:"url"`
}

// Overdue reports whether the card is open and due strictly before now.
func (c CardEntry) Overdue(now time.Time) bool {
	return !c.Completed && c.DueOn != nil && c.DueOn.Before(now)
}

// NewCardEntry denormalizes a remote card into its index entry.
func NewCardEntry(project remote.Project, column board.Column, card remote.Card) CardEntry {
	names := make([]string, 0, len(card.Assignees))
	for _, a := range card.Assignees {
		names = append(names, a.Name)
	}
	return CardEntry{
		Key:           Key(project.ID, card.ID),
		ID:            card.ID,
		ProjectID:     project.ID,
		ProjectName:   project.Name,
		ColumnID:      column.ID,
		ColumnTitle:   column.Title,
		ColumnType:    column.Type,
		Title:         card.Title,
		Content:       remote.PlainText(card.Content),
		Completed:     card.Completed,
		DueOn:         card.DueOn,
		AssigneeIDs:   card.AssigneeIDs(),
		AssigneeNames: names,
		CreatedAt:     card.CreatedAt,
		UpdatedAt:     card.UpdatedAt,
		URL:           card.URL,
	}
}

// CardPatch holds partial update fields for a card entry. Nil fields are
// preserved. A column move sets ColumnID, ColumnTitle and ColumnType
// together. ClearDueOn removes the due date; it cannot be combined with
// DueOn.
type CardPatch struct {
	Title         *string           `json:"title,omitempty"`
	Content       *string           `json:"content,omitempty"`
	Completed     *bool             `json:"completed,omitempty"`
	DueOn         *time.Time        `json:"due_on,omitempty"`
	ClearDueOn    bool              `json:"clear_due_on,omitempty"`
	ColumnID      *int64            `json:"column_id,omitempty"`
	ColumnTitle   *string           `json:"column_title,omitempty"`
	ColumnType    *board.ColumnType `json:"column_type,omitempty"`
	AssigneeIDs   *[]int64          `json:"assignee_ids,omitempty"`
	AssigneeNames *[]string         `json:"assignee_names,omitempty"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
}

// Empty reports whether the patch sets no field.
func (p CardPatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Completed == nil && p.DueOn == nil && !p.ClearDueOn &&
		p.ColumnID == nil && p.ColumnTitle == nil && p.ColumnType == nil &&
		p.AssigneeIDs == nil && p.AssigneeNames == nil && p.UpdatedAt == nil
}

func (p CardPatch) apply(c CardEntry) CardEntry {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Content != nil {
		c.Content = *p.Content
	}
	if p.Completed != nil {
		c.Completed = *p.Completed
	}
	if p.ClearDueOn {
		c.DueOn = nil
	}
	if p.DueOn != nil {
		due := *p.DueOn
		c.DueOn = &due
	}
	if p.ColumnID != nil {
		c.ColumnID = *p.ColumnID
	}
	if p.ColumnTitle != nil {
		c.ColumnTitle = *p.ColumnTitle
		if p.ColumnType == nil {
			c.ColumnType = board.Classify(*p.ColumnTitle)
		}
	}
	if p.ColumnType != nil {
		c.ColumnType = *p.ColumnType
	}
	if p.AssigneeIDs != nil {
		c.AssigneeIDs = append([]int64(nil), (*p.AssigneeIDs)...)
	}
	if p.AssigneeNames != nil {
		c.AssigneeNames = append([]string(nil), (*p.AssigneeNames)...)
	}
	if p.UpdatedAt != nil {
		c.UpdatedAt = *p.UpdatedAt
	}
	return c
}

// Meta describes the committed snapshot.
type Meta struct {
	BuildID         string     `json:"build_id,omitempty"`
	BuildStartedAt  *time.Time `json:"build_started_at,omitempty"`
	BuildFinishedAt *time.Time `json:"build_finished_at,omitempty"`
	ElapsedSeconds  float64    `json:"elapsed_seconds"`
	TotalProjects   int        `json:"total_projects"`
	TotalColumns    int        `json:"total_columns"`
	TotalCards      int        `json:"total_cards"`
	TotalPeople     int        `json:"total_people"`
	AccountID       string     `json:"account_id,omitempty"`
}

// Built reports whether a build has ever been committed.
func (m Meta) Built() bool { return m.BuildFinishedAt != nil }

// Snapshot is an immutable view of the index. The store never mutates a
// snapshot it has handed out; writes produce a new one.
type Snapshot struct {
	Projects map[int64]remote.Project `json:"projects"`
	Columns  map[string]ColumnEntry   `json:"columns"`
	Cards    map[string]CardEntry     `json:"cards"`
	People   map[int64]remote.Person  `json:"people"`
	Meta     Meta                     `json:"meta"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Projects: map[int64]remote.Project{},
		Columns:  map[string]ColumnEntry{},
		Cards:    map[string]CardEntry{},
		People:   map[int64]remote.Person{},
	}
}

// syncCounts sets the Meta counts to the live map sizes.
func (s *Snapshot) syncCounts() {
	s.Meta.TotalProjects = len(s.Projects)
	s.Meta.TotalColumns = len(s.Columns)
	s.Meta.TotalCards = len(s.Cards)
	s.Meta.TotalPeople = len(s.People)
}

// withCards returns a copy sharing every map but Cards.
func (s *Snapshot) withCards() *Snapshot {
	cp := *s
	cp.Cards = make(map[string]CardEntry, len(s.Cards))
	for k, v := range s.Cards {
		cp.Cards[k] = v
	}
	return &cp
}
