package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/remote"
)

// BuildFailure is one project or column that could not be scanned. The
// build continues past it.
type BuildFailure struct {
	ProjectID   int64  `json:"project_id"`
	ProjectName string `json:"project_name"`
	ColumnID    int64  `json:"column_id,omitempty"`
	Error       string `json:"error"`
}

// BuildReport summarizes a committed build or project refresh.
type BuildReport struct {
	BuildID         string         `json:"build_id"`
	Meta            Meta           `json:"meta"`
	ScannedProjects int            `json:"scanned_projects"`
	Failures        []BuildFailure `json:"failures"`
}

// Builder scans the remote hierarchy into the Store.
type Builder struct {
	client      remote.Client
	discoverer  board.Discoverer
	store       *Store
	concurrency int
	logger      *slog.Logger
	now         func() time.Time

	building sync.Mutex
}

// NewBuilder creates a Builder. concurrency caps how many projects are
// scanned at once; <= 0 means one.
func NewBuilder(client remote.Client, discoverer board.Discoverer, store *Store, concurrency int, logger *slog.Logger) *Builder {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		client:      client,
		discoverer:  discoverer,
		store:       store,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// projectScan is the result of scanning one project.
type projectScan struct {
	columns  []ColumnEntry
	cards    []CardEntry
	failures []BuildFailure
}

// Build runs a full scan and commits it as the new snapshot. Failing to
// list projects or people aborts the build. A failing project or column
// is reported and skipped. Cancellation is checked between projects; a
// cancelled build commits nothing.
func (b *Builder) Build(ctx context.Context) (*BuildReport, error) {
	if !b.building.TryLock() {
		return nil, ErrBuildInProgress
	}
	defer b.building.Unlock()

	started := b.now().UTC()
	buildID := uuid.New().String()
	b.logger.Info("index build started", "build_id", buildID)

	var projects []remote.Project
	for _, status := range []remote.ProjectStatus{remote.StatusActive, remote.StatusArchived, remote.StatusTrashed} {
		page, err := remote.AllProjects(ctx, b.client, status)
		if err != nil {
			return nil, fmt.Errorf("index: build: list %s projects: %w", status, err)
		}
		projects = append(projects, page...)
	}
	people, err := remote.AllPeople(ctx, b.client)
	if err != nil {
		return nil, fmt.Errorf("index: build: list people: %w", err)
	}

	snap := NewSnapshot()
	var scan []remote.Project
	for _, p := range projects {
		snap.Projects[p.ID] = p
		if p.Status == remote.StatusActive && p.HasBoard() {
			scan = append(scan, p)
		}
	}
	for _, p := range people {
		snap.People[p.ID] = p
	}

	results, err := b.scanAll(ctx, scan)
	if err != nil {
		b.logger.Warn("index build cancelled", "build_id", buildID, "err", err)
		return nil, err
	}

	report := &BuildReport{BuildID: buildID, ScannedProjects: len(scan), Failures: []BuildFailure{}}
	for _, r := range results {
		for _, c := range r.columns {
			snap.Columns[c.Key] = c
		}
		for _, c := range r.cards {
			snap.Cards[c.Key] = c
		}
		report.Failures = append(report.Failures, r.failures...)
	}

	finished := b.now().UTC()
	snap.Meta = Meta{
		BuildID:         buildID,
		BuildStartedAt:  &started,
		BuildFinishedAt: &finished,
		ElapsedSeconds:  finished.Sub(started).Seconds(),
		AccountID:       b.client.AccountID(),
	}
	if err := b.store.Commit(snap); err != nil {
		return nil, err
	}

	report.Meta = snap.Meta
	b.logger.Info("index build committed",
		"build_id", buildID,
		"projects", snap.Meta.TotalProjects,
		"columns", snap.Meta.TotalColumns,
		"cards", snap.Meta.TotalCards,
		"people", snap.Meta.TotalPeople,
		"failures", len(report.Failures),
		"elapsed", finished.Sub(started),
	)
	return report, nil
}

// RefreshProject re-scans one project and replaces only its columns and
// cards. The rest of the snapshot is untouched.
func (b *Builder) RefreshProject(ctx context.Context, projectID int64) (*BuildReport, error) {
	if projectID <= 0 {
		return nil, fmt.Errorf("%w: project id must be positive", ErrInvalidInput)
	}
	if !b.building.TryLock() {
		return nil, ErrBuildInProgress
	}
	defer b.building.Unlock()

	project, err := b.client.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("index: refresh project %d: %w", projectID, err)
	}

	report := &BuildReport{BuildID: b.store.Meta().BuildID, Failures: []BuildFailure{}}
	var scan projectScan
	if project.Status == remote.StatusActive && project.HasBoard() {
		scan = b.scanProject(ctx, *project)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.ScannedProjects = 1
		report.Failures = append(report.Failures, scan.failures...)
	}

	if err := b.store.CommitProject(*project, scan.columns, scan.cards); err != nil {
		return nil, err
	}
	report.Meta = b.store.Meta()
	b.logger.Info("project refreshed", "project", project.ID, "columns", len(scan.columns), "cards", len(scan.cards))
	return report, nil
}

// scanAll scans projects with at most b.concurrency in flight. Results
// come back in input order.
func (b *Builder) scanAll(ctx context.Context, projects []remote.Project) ([]projectScan, error) {
	results := make([]projectScan, len(projects))
	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for i, p := range projects {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, p remote.Project) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = b.scanProject(ctx, p)
		}(i, p)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// scanProject discovers a project's columns and fetches their cards.
func (b *Builder) scanProject(ctx context.Context, p remote.Project) projectScan {
	var out projectScan

	cols, err := b.discoverer.Discover(ctx, p)
	if err != nil {
		if ctx.Err() == nil {
			b.logger.Warn("column discovery failed", "project", p.ID, "err", err)
			out.failures = append(out.failures, BuildFailure{ProjectID: p.ID, ProjectName: p.Name, Error: err.Error()})
		}
		return out
	}

	for _, col := range cols {
		out.columns = append(out.columns, newColumnEntry(col))
	}
	for _, col := range cols {
		if ctx.Err() != nil {
			return out
		}
		cards, err := remote.AllCards(ctx, b.client, p.ID, col.ID)
		if err != nil {
			b.logger.Warn("card fetch failed", "project", p.ID, "column", col.ID, "err", err)
			out.failures = append(out.failures, BuildFailure{
				ProjectID:   p.ID,
				ProjectName: p.Name,
				ColumnID:    col.ID,
				Error:       err.Error(),
			})
			continue
		}
		for _, c := range cards {
			out.cards = append(out.cards, NewCardEntry(p, col, c))
		}
	}
	b.logger.Debug("project scanned", "project", p.ID, "columns", len(out.columns), "cards", len(out.cards))
	return out
}
