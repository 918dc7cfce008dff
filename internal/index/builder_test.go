package index_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/index"
	"github.com/HendryAvila/boardmirror/internal/remote"
	"github.com/HendryAvila/boardmirror/internal/remote/remotetest"
)

var (
	alice = remote.Person{ID: 7, Name: "Alice Developer", Email: "alice@example.com", Title: "Developer"}
	bob   = remote.Person{ID: 8, Name: "Bob Tester", Email: "bob@example.com", Title: "QA"}
	carol = remote.Person{ID: 9, Name: "Carol Lead", Email: "carol@example.com", Title: "Project Lead"}

	pastDue   = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	futureDue = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	statsNow  = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newPortfolio builds the remote fixture: 3 projects, 2 boards,
// 5 columns and 12 cards.
func newPortfolio() *remotetest.Fake {
	f := remotetest.New()
	f.AddProject(remote.Project{ID: 1, Name: "Reign Theme", Description: "WordPress theme", BoardID: int64Ptr(100)})
	f.AddProject(remote.Project{ID: 2, Name: "BuddyPress Business Profile", Description: "Business pages for members", BoardID: int64Ptr(200)})
	f.AddProject(remote.Project{ID: 3, Name: "Legacy Site", Status: remote.StatusArchived})

	f.AddPerson(alice, 1, 2)
	f.AddPerson(bob, 2)
	f.AddPerson(carol, 1, 2)

	f.AddColumn(remote.Column{ID: 101, ProjectID: 1, Title: "To Do", Position: intPtr(1)})
	f.AddColumn(remote.Column{ID: 102, ProjectID: 1, Title: "In Progress", Position: intPtr(2)})
	f.AddColumn(remote.Column{ID: 103, ProjectID: 1, Title: "Done", Position: intPtr(3)})
	f.AddColumn(remote.Column{ID: 201, ProjectID: 2, Title: "Bugs", Position: intPtr(1)})
	f.AddColumn(remote.Column{ID: 202, ProjectID: 2, Title: "QA", Position: intPtr(2)})

	add := func(id, project, column int64, title string, mods ...func(*remote.Card)) {
		c := remote.Card{ID: id, ProjectID: project, ColumnID: column, Title: title}
		for _, m := range mods {
			m(&c)
		}
		f.AddCard(c)
	}
	assigned := func(p ...remote.Person) func(*remote.Card) {
		return func(c *remote.Card) { c.Assignees = p }
	}
	due := func(t time.Time) func(*remote.Card) {
		return func(c *remote.Card) { d := t; c.DueOn = &d }
	}
	done := func(c *remote.Card) { c.Completed = true }

	add(1001, 1, 101, "Header layout", assigned(alice))
	add(1002, 1, 101, "Footer widgets")
	add(1003, 1, 101, "Dark mode", due(futureDue))
	add(1004, 1, 102, "Menu dropdown", assigned(alice), due(pastDue))
	add(1005, 1, 102, "Sticky sidebar", assigned(carol))
	add(1006, 1, 103, "Typography", done)
	add(1007, 1, 103, "Color palette", done, due(pastDue))
	add(2001, 2, 201, "Login broken", assigned(bob), func(c *remote.Card) {
		c.Content = "<div>Login <b>fails</b> on Safari</div>"
	})
	add(2002, 2, 201, "Avatar upload error")
	add(2003, 2, 201, "Profile tabs", assigned(alice, bob))
	add(2004, 2, 202, "Verify checkout")
	add(2005, 2, 202, "Regression suite", assigned(bob), done)
	return f
}

func newBuilder(t *testing.T, f *remotetest.Fake) (*index.Builder, *index.Store) {
	t.Helper()
	s := newTestStore(t)
	d := board.NewProbeDiscoverer(f, 4, quietLogger())
	return index.NewBuilder(f, d, s, 2, quietLogger()), s
}

func mustBuild(t *testing.T, b *index.Builder) *index.BuildReport {
	t.Helper()
	rep, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return rep
}

func assertCountsMatch(t *testing.T, s *index.Store) {
	t.Helper()
	snap := s.Snapshot()
	m := snap.Meta
	if m.TotalProjects != len(snap.Projects) || m.TotalColumns != len(snap.Columns) ||
		m.TotalCards != len(snap.Cards) || m.TotalPeople != len(snap.People) {
		t.Errorf("meta counts %d/%d/%d/%d, maps %d/%d/%d/%d",
			m.TotalProjects, m.TotalColumns, m.TotalCards, m.TotalPeople,
			len(snap.Projects), len(snap.Columns), len(snap.Cards), len(snap.People))
	}
}

// ─── Build ──────────────────────────────────────────────────────────────────

func TestBuild_Portfolio(t *testing.T) {
	b, s := newBuilder(t, newPortfolio())
	rep := mustBuild(t, b)

	m := s.Meta()
	if m.TotalProjects != 3 {
		t.Errorf("total_projects = %d, want 3", m.TotalProjects)
	}
	if m.TotalCards != 12 {
		t.Errorf("total_cards = %d, want 12", m.TotalCards)
	}
	if m.TotalColumns != 5 {
		t.Errorf("total_columns = %d, want 5", m.TotalColumns)
	}
	if m.TotalPeople != 3 {
		t.Errorf("total_people = %d, want 3", m.TotalPeople)
	}
	if !m.Built() || m.BuildID == "" || m.AccountID != "999" {
		t.Errorf("meta not stamped: %+v", m)
	}
	if rep.BuildID != m.BuildID {
		t.Errorf("report build id %q != meta %q", rep.BuildID, m.BuildID)
	}
	if rep.ScannedProjects != 2 {
		t.Errorf("scanned %d projects, want 2", rep.ScannedProjects)
	}
	if len(rep.Failures) != 0 {
		t.Errorf("unexpected failures: %+v", rep.Failures)
	}
	assertCountsMatch(t, s)
}

func TestBuild_DenormalizesCards(t *testing.T) {
	b, s := newBuilder(t, newPortfolio())
	mustBuild(t, b)

	c, err := s.Card(index.Key(2, 2001))
	if err != nil {
		t.Fatalf("Card: %v", err)
	}
	if c.ColumnTitle != "Bugs" || c.ColumnType != board.TypeBugs {
		t.Errorf("column = %q/%s, want Bugs/bugs", c.ColumnTitle, c.ColumnType)
	}
	if c.ProjectName != "BuddyPress Business Profile" {
		t.Errorf("project name = %q", c.ProjectName)
	}
	if c.Content != "Login fails on Safari" {
		t.Errorf("content = %q, want HTML stripped", c.Content)
	}
	if len(c.AssigneeIDs) != 1 || c.AssigneeIDs[0] != bob.ID || c.AssigneeNames[0] != bob.Name {
		t.Errorf("assignees = %v %v", c.AssigneeIDs, c.AssigneeNames)
	}

	cols := s.Columns(1)
	if len(cols) != 3 || cols[0].Title != "To Do" || cols[2].Type != board.TypeDone {
		t.Errorf("project 1 columns = %+v", cols)
	}
}

func TestBuild_SkipsArchivedBoards(t *testing.T) {
	f := newPortfolio()
	f.AddProject(remote.Project{ID: 4, Name: "Old Board", Status: remote.StatusArchived, BoardID: int64Ptr(400)})
	f.AddColumn(remote.Column{ID: 401, ProjectID: 4, Title: "Done"})
	f.AddCard(remote.Card{ID: 4001, ProjectID: 4, ColumnID: 401, Title: "Archived card"})

	b, s := newBuilder(t, f)
	mustBuild(t, b)

	if s.Meta().TotalProjects != 4 {
		t.Errorf("archived project should still be indexed")
	}
	if len(s.Cards(4)) != 0 {
		t.Errorf("archived board should not be scanned")
	}
}

func TestBuild_ColumnFailureIsPartial(t *testing.T) {
	f := newPortfolio()
	f.CardErrs[201] = &remote.APIError{Method: "GET", Path: "/cards", Status: 500}

	b, s := newBuilder(t, f)
	rep := mustBuild(t, b)

	if len(rep.Failures) != 1 || rep.Failures[0].ColumnID != 201 || rep.Failures[0].ProjectID != 2 {
		t.Fatalf("failures = %+v, want one for column 201", rep.Failures)
	}
	if s.Meta().TotalCards != 9 {
		t.Errorf("total_cards = %d, want 9", s.Meta().TotalCards)
	}
	assertCountsMatch(t, s)
}

func TestBuild_ProjectListFailureKeepsPriorSnapshot(t *testing.T) {
	f := newPortfolio()
	b, s := newBuilder(t, f)
	first := mustBuild(t, b)

	f.ProjectsErr = &remote.APIError{Method: "GET", Path: "/projects.json", Status: 503}
	if _, err := b.Build(context.Background()); !errors.Is(err, remote.ErrRemote) {
		t.Fatalf("err = %v, want remote failure", err)
	}
	if got := s.Meta().BuildID; got != first.BuildID {
		t.Errorf("build id = %q, want prior %q", got, first.BuildID)
	}
	if s.Meta().TotalCards != 12 {
		t.Errorf("prior snapshot lost: %d cards", s.Meta().TotalCards)
	}
}

func TestBuild_CancelledCommitsNothing(t *testing.T) {
	f := newPortfolio()
	b, s := newBuilder(t, f)
	first := mustBuild(t, b)

	f.AddCard(remote.Card{ID: 1099, ProjectID: 1, ColumnID: 101, Title: "Late card"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Build(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if s.Meta().BuildID != first.BuildID || s.Meta().TotalCards != 12 {
		t.Errorf("cancelled build changed the snapshot: %+v", s.Meta())
	}
}

// blockingDiscoverer parks every Discover call until release is closed.
type blockingDiscoverer struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	inner   board.Discoverer
}

func (d *blockingDiscoverer) Discover(ctx context.Context, p remote.Project) ([]board.Column, error) {
	d.once.Do(func() { close(d.entered) })
	<-d.release
	return d.inner.Discover(ctx, p)
}

func TestBuild_SecondBuildIsRejectedAndReadersSeePriorSnapshot(t *testing.T) {
	f := newPortfolio()
	s := newTestStore(t)
	d := &blockingDiscoverer{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		inner:   board.NewProbeDiscoverer(f, 4, quietLogger()),
	}
	b := index.NewBuilder(f, d, s, 1, quietLogger())

	done := make(chan error, 1)
	go func() {
		_, err := b.Build(context.Background())
		done <- err
	}()
	<-d.entered

	if _, err := b.Build(context.Background()); !errors.Is(err, index.ErrBuildInProgress) {
		t.Errorf("concurrent Build err = %v, want ErrBuildInProgress", err)
	}
	if s.Meta().Built() {
		t.Error("readers should still see the empty prior snapshot")
	}
	res, err := s.Search("", index.SearchOptions{})
	if err != nil || res.Total() != 0 {
		t.Errorf("search during build = %d results, %v", res.Total(), err)
	}

	close(d.release)
	if err := <-done; err != nil {
		t.Fatalf("Build: %v", err)
	}
	if s.Meta().TotalCards != 12 {
		t.Errorf("total_cards = %d, want 12", s.Meta().TotalCards)
	}
}

// ─── RefreshProject ─────────────────────────────────────────────────────────

func TestRefreshProject_ReplacesOnlyThatProject(t *testing.T) {
	f := newPortfolio()
	b, s := newBuilder(t, f)
	first := mustBuild(t, b)

	f.AddCard(remote.Card{ID: 1008, ProjectID: 1, ColumnID: 101, Title: "New card"})
	f.AddCard(remote.Card{ID: 2006, ProjectID: 2, ColumnID: 201, Title: "Not refreshed"})

	rep, err := b.RefreshProject(context.Background(), 1)
	if err != nil {
		t.Fatalf("RefreshProject: %v", err)
	}
	if rep.ScannedProjects != 1 || rep.BuildID != first.BuildID {
		t.Errorf("report = %+v", rep)
	}
	if _, err := s.Card(index.Key(1, 1008)); err != nil {
		t.Errorf("refreshed card missing: %v", err)
	}
	if _, err := s.Card(index.Key(2, 2006)); !errors.Is(err, index.ErrNotFound) {
		t.Errorf("other project should not be rescanned, err = %v", err)
	}
	if s.Meta().TotalCards != 13 {
		t.Errorf("total_cards = %d, want 13", s.Meta().TotalCards)
	}
	assertCountsMatch(t, s)
}

func TestRefreshProject_InvalidID(t *testing.T) {
	b, _ := newBuilder(t, newPortfolio())
	if _, err := b.RefreshProject(context.Background(), 0); !errors.Is(err, index.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRefreshProject_UnknownProject(t *testing.T) {
	b, _ := newBuilder(t, newPortfolio())
	if _, err := b.RefreshProject(context.Background(), 42); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("err = %v, want remote.ErrNotFound", err)
	}
}
