// Package board recovers a project's board columns and classifies each
// column's purpose from its title.
//
// The remote API exposes no "list columns of a board" call, so
// ProbeDiscoverer probes a fixed identifier window after the board's
// anchor id. Callers depend on the Discoverer interface only.
package board

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/boardmirror/internal/remote"
)

// --- Column type enum ---

// ColumnType is the semantic purpose of a column.
type ColumnType string

const (
	TypeBugs        ColumnType = "bugs"
	TypeTesting     ColumnType = "testing"
	TypeReview      ColumnType = "review"
	TypeDevelopment ColumnType = "development"
	TypeDone        ColumnType = "done"
	TypeTodo        ColumnType = "todo"
	TypeOther       ColumnType = "other"
)

// validColumnTypes is the set of allowed column types.
var validColumnTypes = map[ColumnType]bool{
	TypeBugs:        true,
	TypeTesting:     true,
	TypeReview:      true,
	TypeDevelopment: true,
	TypeDone:        true,
	TypeTodo:        true,
	TypeOther:       true,
}

// ValidateColumnType returns an error if the type is not recognized.
func ValidateColumnType(t ColumnType) error {
	if !validColumnTypes[t] {
		return fmt.Errorf("invalid column type %q: must be one of: bugs, testing, review, development, done, todo, other", t)
	}
	return nil
}

// TypeValues returns the column type enum for tool definitions.
func TypeValues() []string {
	return []string{
		string(TypeBugs), string(TypeTesting), string(TypeReview),
		string(TypeDevelopment), string(TypeDone), string(TypeTodo), string(TypeOther),
	}
}

// classification pairs a type with its title keywords. The order is the
// match priority: "Testing & Done" is testing, not done.
var classification = []struct {
	typ      ColumnType
	keywords []string
}{
	{TypeBugs, []string{"bug", "issue", "error", "fix", "problem", "defect"}},
	{TypeTesting, []string{"test", "testing", "qa", "quality", "verify", "validation"}},
	{TypeReview, []string{"review", "pending", "approval", "waiting"}},
	{TypeDevelopment, []string{"dev", "development", "coding", "implement", "progress", "doing", "work"}},
	{TypeDone, []string{"done", "complete", "finished", "closed", "resolved", "live", "deployed"}},
	{TypeTodo, []string{"todo", "to do", "backlog", "planned", "new", "open", "start"}},
}

// Classify derives a column's type from its title. Keywords match as
// substrings of the lower-cased title; the first category that matches
// wins and no match is TypeOther.
func Classify(title string) ColumnType {
	t := strings.ToLower(title)
	for _, c := range classification {
		for _, kw := range c.keywords {
			if strings.Contains(t, kw) {
				return c.typ
			}
		}
	}
	return TypeOther
}

// Label returns the presentation marker for a column type.
func Label(t ColumnType) string {
	switch t {
	case TypeBugs:
		return "🐛"
	case TypeTesting:
		return "🧪"
	case TypeReview:
		return "👀"
	case TypeDevelopment:
		return "🔨"
	case TypeDone:
		return "✅"
	case TypeTodo:
		return "📋"
	case TypeOther:
		return "📌"
	}
	return "📌"
}

// Column is a discovered board column with its derived type.
type Column struct {
	remote.Column
	Type  ColumnType `json:"type"`
	Label string     `json:"label"`
}

// DisplayName implements match.Named.
func (c Column) DisplayName() string { return c.Title }

// NewColumn classifies a remote column.
func NewColumn(c remote.Column) Column {
	typ := Classify(c.Title)
	return Column{Column: c, Type: typ, Label: Label(typ)}
}

// FindByType returns the first column of the given type.
func FindByType(columns []Column, t ColumnType) (Column, bool) {
	for _, c := range columns {
		if c.Type == t {
			return c, true
		}
	}
	return Column{}, false
}
