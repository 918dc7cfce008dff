// Package automation runs rule-based workflows over a project's cards.
//
// A run loads the project, discovers its board columns, fetches every
// card and evaluates one workflow. Each card the workflow acts on yields
// an Outcome; a single card's failure never aborts the run. Mutations go
// to the remote system first and are then patched into the local index.
package automation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/boardmirror/internal/index"
)

var (
	// ErrInvalidInput rejects unknown workflows and malformed arguments
	// before any remote call.
	ErrInvalidInput = errors.New("automation: invalid input")

	// ErrNoBoard is returned for a project without a board.
	ErrNoBoard = errors.New("automation: no board found")
)

// --- Workflow enum ---

// Workflow names one automation.
type Workflow string

const (
	AutoAssign      Workflow = "auto-assign"
	MoveCompleted   Workflow = "move-completed"
	EscalateOverdue Workflow = "escalate-overdue"
	BalanceWorkload Workflow = "balance-workload"
)

// Workflows lists every workflow in presentation order.
var Workflows = []Workflow{AutoAssign, MoveCompleted, EscalateOverdue, BalanceWorkload}

// ParseWorkflow converts a name into a Workflow. Matching ignores case
// and surrounding whitespace.
func ParseWorkflow(name string) (Workflow, error) {
	w := Workflow(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Workflows {
		if w == known {
			return w, nil
		}
	}
	return "", fmt.Errorf("%w: unknown workflow %q: must be one of: auto-assign, move-completed, escalate-overdue, balance-workload", ErrInvalidInput, name)
}

// --- Rules ---

// Rule maps a keyword found in a card's title or content to a role. The
// role is resolved to a person by substring match on title or name.
type Rule struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	Role    string `json:"role" yaml:"role"`
}

// DefaultRules are evaluated after caller rules.
var DefaultRules = []Rule{
	{Keyword: "bug", Role: "developer"},
	{Keyword: "feature", Role: "lead"},
	{Keyword: "test", Role: "qa"},
	{Keyword: "urgent", Role: "lead"},
}

// MergeRules puts caller rules first. A caller rule replaces the default
// for the same keyword.
func MergeRules(custom []Rule) []Rule {
	seen := map[string]bool{}
	out := make([]Rule, 0, len(custom)+len(DefaultRules))
	for _, r := range append(append([]Rule{}, custom...), DefaultRules...) {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, Rule{Keyword: kw, Role: strings.TrimSpace(r.Role)})
	}
	return out
}

// --- Options ---

const (
	DefaultOverdueDays  = 3
	DefaultUrgentMarker = "[URGENT] "
	DefaultMaxCards     = 10
	DefaultLeadRole     = "lead"
)

// Options tunes a workflow run.
type Options struct {
	// Rules are caller assignment rules for auto-assign.
	Rules []Rule

	// DoneColumn names the completion column for move-completed. Empty
	// means the first column classified as done.
	DoneColumn string

	// Escalation thresholds and actions.
	OverdueDays  int
	UrgentMarker string
	LeadRole     string
	MarkUrgent   bool
	AddLead      bool
	Notify       bool

	// MaxCards is the per-assignee open card ceiling for balance-workload.
	MaxCards int

	// DryRun records planned outcomes and issues no mutation.
	DryRun bool
}

// DefaultOptions enables every escalation action.
func DefaultOptions() Options {
	return Options{
		OverdueDays:  DefaultOverdueDays,
		UrgentMarker: DefaultUrgentMarker,
		LeadRole:     DefaultLeadRole,
		MarkUrgent:   true,
		AddLead:      true,
		Notify:       true,
		MaxCards:     DefaultMaxCards,
	}
}

func (o Options) withDefaults() Options {
	if o.OverdueDays <= 0 {
		o.OverdueDays = DefaultOverdueDays
	}
	if o.UrgentMarker == "" {
		o.UrgentMarker = DefaultUrgentMarker
	}
	if o.LeadRole == "" {
		o.LeadRole = DefaultLeadRole
	}
	if o.MaxCards <= 0 {
		o.MaxCards = DefaultMaxCards
	}
	return o
}

// --- Outcomes ---

// Status is the recorded state of one item.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusPlanned   Status = "planned"
)

// Outcome records what a workflow did to one card.
type Outcome struct {
	CardID    int64  `json:"card_id"`
	CardTitle string `json:"card_title"`
	Action    string `json:"action"`
	Status    Status `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result is the structured report of one workflow run.
type Result struct {
	RunID       string    `json:"run_id"`
	Workflow    Workflow  `json:"workflow"`
	ProjectID   int64     `json:"project_id"`
	ProjectName string    `json:"project_name"`
	DryRun      bool      `json:"dry_run"`
	StartedAt   time.Time `json:"started_at"`
	Outcomes    []Outcome `json:"outcomes"`
	Message     string    `json:"message,omitempty"`
}

// Count returns the number of outcomes with status s.
func (r *Result) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Succeeded returns the number of succeeded outcomes.
func (r *Result) Succeeded() int { return r.Count(StatusSucceeded) }

// Failed returns the number of failed outcomes.
func (r *Result) Failed() int { return r.Count(StatusFailed) }

// CardPatcher applies a mutation to the local index after the remote
// system accepted it.
type CardPatcher interface {
	PatchCard(key string, patch index.CardPatch) (index.CardEntry, error)
}
