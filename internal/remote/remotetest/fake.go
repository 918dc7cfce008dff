// Package remotetest provides an in-memory remote.Client for tests.
package remotetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/HendryAvila/boardmirror/internal/remote"
)

// Fake is a thread-safe in-memory remote.Client. Cards are stored per
// column in insertion order; mutations change the stored state so a
// second workflow run observes the first one's effects.
type Fake struct {
	mu sync.Mutex

	Account  string
	PageSize int

	projects      []remote.Project
	people        []remote.Person
	projectPeople map[int64][]remote.Person
	columns       map[int64]map[int64]remote.Column // projectID -> columnID -> column
	cards         map[int64][]remote.Card           // columnID -> cards

	// Error injection.
	ProjectsErr  error
	PeopleErr    error
	ColumnErrs   map[int64]error // columnID -> GetColumn error
	CardErrs     map[int64]error // columnID -> ListCards error
	UpdateErrs   map[int64]error // cardID -> UpdateCard error
	MoveErrs     map[int64]error // cardID -> MoveCard error
	CommentErrs  map[int64]error // cardID -> CreateComment error
	ColumnProbes []int64         // every id passed to GetColumn

	Updates  []Update
	Moves    []Move
	Comments []PostedComment

	nextID int64
}

// Update records one UpdateCard call.
type Update struct {
	ProjectID, CardID int64
	In                remote.CardUpdate
}

// Move records one MoveCard call.
type Move struct {
	ProjectID, CardID, ColumnID int64
}

// PostedComment records one CreateComment call.
type PostedComment struct {
	ProjectID, RecordingID int64
	Content                string
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		Account:       "999",
		PageSize:      50,
		projectPeople: map[int64][]remote.Person{},
		columns:       map[int64]map[int64]remote.Column{},
		cards:         map[int64][]remote.Card{},
		ColumnErrs:    map[int64]error{},
		CardErrs:      map[int64]error{},
		UpdateErrs:    map[int64]error{},
		MoveErrs:      map[int64]error{},
		CommentErrs:   map[int64]error{},
		nextID:        100000,
	}
}

// AddProject registers a project.
func (f *Fake) AddProject(p remote.Project) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Status == "" {
		p.Status = remote.StatusActive
	}
	f.projects = append(f.projects, p)
}

// AddPerson registers a person in the directory and, when projectIDs are
// given, on those projects.
func (f *Fake) AddPerson(p remote.Person, projectIDs ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.people = append(f.people, p)
	for _, id := range projectIDs {
		f.projectPeople[id] = append(f.projectPeople[id], p)
	}
}

// AddColumn registers a column on a project's board.
func (f *Fake) AddColumn(c remote.Column) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.columns[c.ProjectID] == nil {
		f.columns[c.ProjectID] = map[int64]remote.Column{}
	}
	f.columns[c.ProjectID][c.ID] = c
}

// AddCard stores a card in its column.
func (f *Fake) AddCard(c remote.Card) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cards[c.ColumnID] = append(f.cards[c.ColumnID], c)
}

// Card returns the stored state of a card.
func (f *Fake) Card(cardID int64) (remote.Card, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	col, i := f.findCard(cardID)
	if i < 0 {
		return remote.Card{}, false
	}
	return f.cards[col][i], true
}

func (f *Fake) findCard(cardID int64) (int64, int) {
	for col, cards := range f.cards {
		for i, c := range cards {
			if c.ID == cardID {
				return col, i
			}
		}
	}
	return 0, -1
}

func page[T any](items []T, page, size int) []T {
	if size <= 0 {
		size = len(items)
	}
	start := (page - 1) * size
	if page < 1 || start >= len(items) {
		return nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}

func notFound(what string, id int64) error {
	return &remote.APIError{Method: "GET", Path: fmt.Sprintf("/%s/%d", what, id), Status: 404, Body: "not found"}
}

// AccountID implements remote.Client.
func (f *Fake) AccountID() string { return f.Account }

// ListProjects implements remote.Client.
func (f *Fake) ListProjects(ctx context.Context, status remote.ProjectStatus, p int) ([]remote.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ProjectsErr != nil {
		return nil, f.ProjectsErr
	}
	var matching []remote.Project
	for _, pr := range f.projects {
		if pr.Status == status {
			matching = append(matching, pr)
		}
	}
	return page(matching, p, f.PageSize), nil
}

// GetProject implements remote.Client.
func (f *Fake) GetProject(ctx context.Context, projectID int64) (*remote.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ProjectsErr != nil {
		return nil, f.ProjectsErr
	}
	for _, p := range f.projects {
		if p.ID == projectID {
			cp := p
			return &cp, nil
		}
	}
	return nil, notFound("projects", projectID)
}

// GetColumn implements remote.Client.
func (f *Fake) GetColumn(ctx context.Context, projectID, columnID int64) (*remote.Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ColumnProbes = append(f.ColumnProbes, columnID)
	if err := f.ColumnErrs[columnID]; err != nil {
		return nil, err
	}
	c, ok := f.columns[projectID][columnID]
	if !ok || c.Title == "" {
		return nil, notFound("columns", columnID)
	}
	return &c, nil
}

// ListCards implements remote.Client.
func (f *Fake) ListCards(ctx context.Context, projectID, columnID int64, p int) ([]remote.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.CardErrs[columnID]; err != nil {
		return nil, err
	}
	return page(f.cards[columnID], p, f.PageSize), nil
}

// ListPeople implements remote.Client.
func (f *Fake) ListPeople(ctx context.Context, p int) ([]remote.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PeopleErr != nil {
		return nil, f.PeopleErr
	}
	return page(f.people, p, f.PageSize), nil
}

// ListProjectPeople implements remote.Client.
func (f *Fake) ListProjectPeople(ctx context.Context, projectID int64) ([]remote.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PeopleErr != nil {
		return nil, f.PeopleErr
	}
	out := make([]remote.Person, len(f.projectPeople[projectID]))
	copy(out, f.projectPeople[projectID])
	return out, nil
}

// CreateCard implements remote.Client.
func (f *Fake) CreateCard(ctx context.Context, projectID, columnID int64, in remote.CardCreate) (*remote.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.columns[projectID][columnID]; !ok {
		return nil, notFound("columns", columnID)
	}
	f.nextID++
	now := time.Now().UTC()
	c := remote.Card{
		ID: f.nextID, ProjectID: projectID, ColumnID: columnID,
		Title: in.Title, Content: in.Content, DueOn: in.DueOn,
		CreatedAt: now, UpdatedAt: now,
	}
	f.cards[columnID] = append(f.cards[columnID], c)
	return &c, nil
}

// UpdateCard implements remote.Client.
func (f *Fake) UpdateCard(ctx context.Context, projectID, cardID int64, in remote.CardUpdate) (*remote.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Updates = append(f.Updates, Update{ProjectID: projectID, CardID: cardID, In: in})
	if err := f.UpdateErrs[cardID]; err != nil {
		return nil, err
	}
	col, i := f.findCard(cardID)
	if i < 0 {
		return nil, notFound("cards", cardID)
	}
	c := &f.cards[col][i]
	if in.Title != nil {
		c.Title = *in.Title
	}
	if in.Content != nil {
		c.Content = *in.Content
	}
	if in.DueOn != nil {
		c.DueOn = in.DueOn
	}
	if in.Completed != nil {
		c.Completed = *in.Completed
	}
	if in.AssigneeIDs != nil {
		c.Assignees = f.resolvePeople(*in.AssigneeIDs)
	}
	c.UpdatedAt = time.Now().UTC()
	out := *c
	return &out, nil
}

func (f *Fake) resolvePeople(ids []int64) []remote.Person {
	out := make([]remote.Person, 0, len(ids))
	for _, id := range ids {
		p := remote.Person{ID: id}
		for _, known := range f.people {
			if known.ID == id {
				p = known
				break
			}
		}
		out = append(out, p)
	}
	return out
}

// MoveCard implements remote.Client.
func (f *Fake) MoveCard(ctx context.Context, projectID, cardID, columnID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Moves = append(f.Moves, Move{ProjectID: projectID, CardID: cardID, ColumnID: columnID})
	if err := f.MoveErrs[cardID]; err != nil {
		return err
	}
	col, i := f.findCard(cardID)
	if i < 0 {
		return notFound("cards", cardID)
	}
	c := f.cards[col][i]
	f.cards[col] = append(f.cards[col][:i:i], f.cards[col][i+1:]...)
	c.ColumnID = columnID
	f.cards[columnID] = append(f.cards[columnID], c)
	return nil
}

// CreateComment implements remote.Client.
func (f *Fake) CreateComment(ctx context.Context, projectID, recordingID int64, content string) (*remote.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.CommentErrs[recordingID]; err != nil {
		return nil, err
	}
	f.Comments = append(f.Comments, PostedComment{ProjectID: projectID, RecordingID: recordingID, Content: content})
	f.nextID++
	return &remote.Comment{ID: f.nextID, Content: content, CreatedAt: time.Now().UTC()}, nil
}

// Probes returns the distinct column ids probed so far, sorted.
func (f *Fake) Probes() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[int64]bool{}
	var out []int64
	for _, id := range f.ColumnProbes {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var _ remote.Client = (*Fake)(nil)
