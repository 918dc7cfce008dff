package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/index"
	"github.com/HendryAvila/boardmirror/internal/remote"
)

// Engine evaluates workflows. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	client     remote.Client
	discoverer board.Discoverer
	patcher    CardPatcher
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates an Engine. patcher may be nil when no local index is
// available; mutations then only reach the remote system.
func NewEngine(client remote.Client, discoverer board.Discoverer, patcher CardPatcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:     client,
		discoverer: discoverer,
		patcher:    patcher,
		logger:     logger,
		now:        time.Now,
	}
}

// boardCard is a card with the column it was fetched from.
type boardCard struct {
	remote.Card
	column board.Column
}

// projectBoard is everything a workflow reads.
type projectBoard struct {
	project remote.Project
	columns []board.Column
	cards   []boardCard
}

// run carries one workflow evaluation.
type run struct {
	e      *Engine
	ctx    context.Context
	opts   Options
	pb     *projectBoard
	result *Result
}

// Run executes workflow wf on a project. It fails only when the project,
// its board or its cards cannot be loaded; per-card failures are
// recorded as outcomes.
func (e *Engine) Run(ctx context.Context, wf Workflow, projectID int64, opts Options) (*Result, error) {
	wf, err := ParseWorkflow(string(wf))
	if err != nil {
		return nil, err
	}
	if projectID <= 0 {
		return nil, fmt.Errorf("%w: project id must be positive", ErrInvalidInput)
	}
	opts = opts.withDefaults()

	pb, err := e.load(ctx, projectID)
	if err != nil {
		return nil, err
	}

	r := &run{
		e:    e,
		ctx:  ctx,
		opts: opts,
		pb:   pb,
		result: &Result{
			RunID:       uuid.New().String(),
			Workflow:    wf,
			ProjectID:   pb.project.ID,
			ProjectName: pb.project.Name,
			DryRun:      opts.DryRun,
			StartedAt:   e.now().UTC(),
			Outcomes:    []Outcome{},
		},
	}

	switch wf {
	case AutoAssign:
		err = r.autoAssign()
	case MoveCompleted:
		r.moveCompleted()
	case EscalateOverdue:
		err = r.escalateOverdue()
	case BalanceWorkload:
		err = r.balanceWorkload()
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("workflow finished",
		"run_id", r.result.RunID,
		"workflow", wf,
		"project", projectID,
		"succeeded", r.result.Succeeded(),
		"failed", r.result.Failed(),
		"dry_run", opts.DryRun,
	)
	return r.result, nil
}

func (e *Engine) load(ctx context.Context, projectID int64) (*projectBoard, error) {
	project, err := e.client.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("automation: load project %d: %w", projectID, err)
	}
	if !project.HasBoard() {
		return nil, fmt.Errorf("project %d %q: %w", project.ID, project.Name, ErrNoBoard)
	}
	columns, err := e.discoverer.Discover(ctx, *project)
	if err != nil {
		return nil, fmt.Errorf("automation: discover columns of project %d: %w", projectID, err)
	}

	pb := &projectBoard{project: *project, columns: columns}
	for _, col := range columns {
		cards, err := remote.AllCards(ctx, e.client, project.ID, col.ID)
		if err != nil {
			return nil, fmt.Errorf("automation: load cards of project %d: %w", projectID, err)
		}
		for _, c := range cards {
			pb.cards = append(pb.cards, boardCard{Card: c, column: col})
		}
	}
	return pb, nil
}

func (r *run) people() ([]remote.Person, error) {
	people, err := r.e.client.ListProjectPeople(r.ctx, r.pb.project.ID)
	if err != nil {
		return nil, fmt.Errorf("automation: load people of project %d: %w", r.pb.project.ID, err)
	}
	return people, nil
}

// record appends an outcome.
func (r *run) record(c boardCard, action string, status Status, detail string, err error) {
	o := Outcome{CardID: c.ID, CardTitle: c.Title, Action: action, Status: status, Detail: detail}
	if err != nil {
		o.Error = err.Error()
	}
	r.result.Outcomes = append(r.result.Outcomes, o)
}

// mutate runs fn unless this is a dry run, then records the outcome.
// It reports whether the mutation was applied or planned.
func (r *run) mutate(c boardCard, action, detail string, fn func() error) bool {
	if r.opts.DryRun {
		r.record(c, action, StatusPlanned, detail, nil)
		return true
	}
	if err := fn(); err != nil {
		r.e.logger.Warn("workflow action failed", "workflow", r.result.Workflow, "card", c.ID, "action", action, "err", err)
		r.record(c, action, StatusFailed, detail, err)
		return false
	}
	r.record(c, action, StatusSucceeded, detail, nil)
	return true
}

// updateCard updates a card remotely, then patches the local entry.
func (r *run) updateCard(c boardCard, in remote.CardUpdate) error {
	updated, err := r.e.client.UpdateCard(r.ctx, r.pb.project.ID, c.ID, in)
	if err != nil {
		return err
	}
	patch := index.CardPatch{}
	if in.Title != nil {
		patch.Title = in.Title
	}
	if in.AssigneeIDs != nil {
		ids := append([]int64(nil), (*in.AssigneeIDs)...)
		patch.AssigneeIDs = &ids
		if updated != nil {
			names := make([]string, 0, len(updated.Assignees))
			for _, p := range updated.Assignees {
				names = append(names, p.Name)
			}
			patch.AssigneeNames = &names
		}
	}
	if updated != nil && !updated.UpdatedAt.IsZero() {
		at := updated.UpdatedAt
		patch.UpdatedAt = &at
	}
	r.patchLocal(c, patch)
	return nil
}

func (r *run) patchLocal(c boardCard, patch index.CardPatch) {
	if r.e.patcher == nil || patch.Empty() {
		return
	}
	key := index.Key(r.pb.project.ID, c.ID)
	if _, err := r.e.patcher.PatchCard(key, patch); err != nil {
		if errors.Is(err, index.ErrNotFound) {
			r.e.logger.Debug("card not in local index", "key", key)
			return
		}
		r.e.logger.Warn("local index patch failed", "key", key, "err", err)
	}
}

// findPerson returns the first person whose title or name contains role.
func findPerson(people []remote.Person, role string) (remote.Person, bool) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return remote.Person{}, false
	}
	for _, p := range people {
		if strings.Contains(strings.ToLower(p.Title), role) {
			return p, true
		}
	}
	for _, p := range people {
		if strings.Contains(strings.ToLower(p.Name), role) {
			return p, true
		}
	}
	return remote.Person{}, false
}
