package index

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/remote"
)

// --- Entity filter enum ---

// EntityType restricts a search to one kind of entry.
type EntityType string

const (
	EntityAll      EntityType = "all"
	EntityProjects EntityType = "projects"
	EntityCards    EntityType = "cards"
	EntityPeople   EntityType = "people"
)

var validEntityTypes = map[EntityType]bool{
	EntityAll:      true,
	EntityProjects: true,
	EntityCards:    true,
	EntityPeople:   true,
}

// ValidateEntityType returns an error if the type is not recognized.
func ValidateEntityType(t EntityType) error {
	if !validEntityTypes[t] {
		return fmt.Errorf("%w: entity type %q: must be one of: all, projects, cards, people", ErrInvalidInput, t)
	}
	return nil
}

// SearchOptions narrows a search. Zero values mean "no filter". ProjectID
// applies to projects and cards, Assignee to cards (assignee names) and
// people (name), Completed and ColumnType to cards only.
type SearchOptions struct {
	Type       EntityType
	ProjectID  int64
	Assignee   string
	Completed  *bool
	ColumnType board.ColumnType
	Limit      int // per entity type; <= 0 is unlimited
}

// SearchResults holds matches per entity type, each sorted by key.
type SearchResults struct {
	Projects []remote.Project `json:"projects"`
	Cards    []CardEntry      `json:"cards"`
	People   []remote.Person  `json:"people"`
}

// Total returns the number of matches across all types.
func (r SearchResults) Total() int {
	return len(r.Projects) + len(r.Cards) + len(r.People)
}

// Search filters the committed snapshot. Matching is case-insensitive
// substring containment OR-ed across each type's text fields; an empty
// query matches everything the filters allow. Search is a filter, not a
// ranking.
func (s *Store) Search(query string, opts SearchOptions) (SearchResults, error) {
	if opts.Type == "" {
		opts.Type = EntityAll
	}
	if err := ValidateEntityType(opts.Type); err != nil {
		return SearchResults{}, err
	}
	if opts.ColumnType != "" {
		if err := board.ValidateColumnType(opts.ColumnType); err != nil {
			return SearchResults{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if opts.ProjectID < 0 {
		return SearchResults{}, fmt.Errorf("%w: project id must not be negative", ErrInvalidInput)
	}

	snap := s.Snapshot()
	q := strings.ToLower(strings.TrimSpace(query))
	assignee := strings.ToLower(strings.TrimSpace(opts.Assignee))
	res := SearchResults{Projects: []remote.Project{}, Cards: []CardEntry{}, People: []remote.Person{}}

	if opts.Type == EntityAll || opts.Type == EntityProjects {
		for _, p := range snap.Projects {
			if opts.ProjectID != 0 && p.ID != opts.ProjectID {
				continue
			}
			if containsAny(q, p.Name, p.Description) {
				res.Projects = append(res.Projects, p)
			}
		}
		sort.Slice(res.Projects, func(i, j int) bool { return res.Projects[i].ID < res.Projects[j].ID })
		res.Projects = limit(res.Projects, opts.Limit)
	}

	if opts.Type == EntityAll || opts.Type == EntityCards {
		for _, c := range snap.Cards {
			if !cardFilter(c, opts, assignee) {
				continue
			}
			fields := append([]string{c.Title, c.Content}, c.AssigneeNames...)
			if containsAny(q, fields...) {
				res.Cards = append(res.Cards, c)
			}
		}
		sort.Slice(res.Cards, func(i, j int) bool {
			if res.Cards[i].ProjectID != res.Cards[j].ProjectID {
				return res.Cards[i].ProjectID < res.Cards[j].ProjectID
			}
			return res.Cards[i].ID < res.Cards[j].ID
		})
		res.Cards = limit(res.Cards, opts.Limit)
	}

	if opts.Type == EntityAll || opts.Type == EntityPeople {
		for _, p := range snap.People {
			if assignee != "" && !strings.Contains(strings.ToLower(p.Name), assignee) {
				continue
			}
			if containsAny(q, p.Name, p.Email, p.Title) {
				res.People = append(res.People, p)
			}
		}
		sort.Slice(res.People, func(i, j int) bool { return res.People[i].ID < res.People[j].ID })
		res.People = limit(res.People, opts.Limit)
	}

	return res, nil
}

func cardFilter(c CardEntry, opts SearchOptions, assignee string) bool {
	if opts.ProjectID != 0 && c.ProjectID != opts.ProjectID {
		return false
	}
	if opts.Completed != nil && c.Completed != *opts.Completed {
		return false
	}
	if opts.ColumnType != "" && c.ColumnType != opts.ColumnType {
		return false
	}
	if assignee != "" {
		for _, n := range c.AssigneeNames {
			if strings.Contains(strings.ToLower(n), assignee) {
				return true
			}
		}
		return false
	}
	return true
}

// containsAny reports whether the lower-cased query q appears in any of
// fields. An empty query matches.
func containsAny(q string, fields ...string) bool {
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

// --- Accessors ---

// Projects returns all indexed projects sorted by id.
func (s *Store) Projects() []remote.Project {
	snap := s.Snapshot()
	out := make([]remote.Project, 0, len(snap.Projects))
	for _, p := range snap.Projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Columns returns a project's indexed columns in board order.
func (s *Store) Columns(projectID int64) []ColumnEntry {
	snap := s.Snapshot()
	var out []ColumnEntry
	for _, c := range snap.Columns {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := columnPosition(out[i]), columnPosition(out[j])
		if pi != pj {
			return pi < pj
		}
		return out[i].ID < out[j].ID
	})
	if out == nil {
		out = []ColumnEntry{}
	}
	return out
}

// Cards returns a project's indexed cards sorted by id.
func (s *Store) Cards(projectID int64) []CardEntry {
	snap := s.Snapshot()
	var out []CardEntry
	for _, c := range snap.Cards {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if out == nil {
		out = []CardEntry{}
	}
	return out
}

func columnPosition(c ColumnEntry) int {
	if c.Position == nil {
		return math.MaxInt
	}
	return *c.Position
}
