package match

import (
	"testing"

	"github.com/HendryAvila/boardmirror/internal/remote"
)

func testProjects() []remote.Project {
	return []remote.Project{
		{ID: 1, Name: "Reign Theme", Status: remote.StatusActive},
		{ID: 2, Name: "BuddyPress Business Profile", Status: remote.StatusActive},
		{ID: 3, Name: "buddypress-checkins-pro", Status: remote.StatusActive},
		{ID: 4, Name: "BuddyPress Checkins (old)", Status: remote.StatusArchived},
		{ID: 5, Name: "Checkins", Description: "duplicate name", Status: remote.StatusActive},
		{ID: 6, Name: "Unrelated Billing", Status: remote.StatusActive},
	}
}

func TestResolve_SortedNonIncreasing(t *testing.T) {
	queries := []string{"checkins", "bp", "buddypress", "reign", "profile", "zzz"}
	for _, q := range queries {
		got := Resolve(q, testProjects(), ResolveOptions{IncludeArchived: true})
		for i := 1; i < len(got); i++ {
			if got[i].Score > got[i-1].Score {
				t.Errorf("Resolve(%q) not sorted at %d: %d > %d", q, i, got[i].Score, got[i-1].Score)
			}
		}
	}
}

func TestResolve_ExactFirst(t *testing.T) {
	got := Resolve("checkins", testProjects(), ResolveOptions{})
	if len(got) == 0 {
		t.Fatal("expected candidates")
	}
	if got[0].Project.ID != 5 {
		t.Errorf("best = %d (%s), want 5 (exact name)", got[0].Project.ID, got[0].Project.Name)
	}
	if got[0].Label != LabelExact {
		t.Errorf("best label = %s, want exact", got[0].Label)
	}
}

func TestResolve_ExcludesArchivedByDefault(t *testing.T) {
	for _, c := range Resolve("checkins", testProjects(), ResolveOptions{}) {
		if c.Project.ID == 4 {
			t.Error("archived project returned without IncludeArchived")
		}
	}

	found := false
	for _, c := range Resolve("checkins", testProjects(), ResolveOptions{IncludeArchived: true}) {
		if c.Project.ID == 4 {
			found = true
		}
	}
	if !found {
		t.Error("archived project missing with IncludeArchived")
	}
}

func TestResolve_NoMatchIsEmptyNotNil(t *testing.T) {
	got := Resolve("qqqqqq", testProjects(), ResolveOptions{})
	if got == nil {
		t.Fatal("Resolve returned nil, want empty slice")
	}
	if len(got) != 0 {
		t.Errorf("got %d candidates, want 0", len(got))
	}
}

func TestResolve_StableTies(t *testing.T) {
	projects := []remote.Project{
		{ID: 10, Name: "Alpha Board"},
		{ID: 11, Name: "Alpha Board"},
		{ID: 12, Name: "Alpha Board"},
	}
	got := Resolve("alpha", projects, ResolveOptions{})
	if len(got) != 3 {
		t.Fatalf("got %d, want 3", len(got))
	}
	for i, want := range []int64{10, 11, 12} {
		if got[i].Project.ID != want {
			t.Errorf("position %d = %d, want %d", i, got[i].Project.ID, want)
		}
	}
}

func TestResolve_CloserMatchWinsOverListOrder(t *testing.T) {
	projects := []remote.Project{
		{ID: 20, Name: "Reignite Media"},
		{ID: 21, Name: "Reign Pro"},
	}
	got := Resolve("reign", projects, ResolveOptions{})
	if len(got) != 2 {
		t.Fatalf("got %d, want 2", len(got))
	}
	if got[0].Project.ID != 21 {
		t.Errorf("best = %d (%s), want 21 (whole-word match)", got[0].Project.ID, got[0].Project.Name)
	}
	if got[0].Raw <= got[1].Raw {
		t.Errorf("raw %d should exceed %d", got[0].Raw, got[1].Raw)
	}
}

func TestResolve_LimitAndMinScore(t *testing.T) {
	got := Resolve("buddypress", testProjects(), ResolveOptions{Limit: 1, IncludeArchived: true})
	if len(got) != 1 {
		t.Errorf("Limit 1 returned %d", len(got))
	}

	for _, c := range Resolve("buddypress", testProjects(), ResolveOptions{MinScore: 70}) {
		if c.Score < 70 {
			t.Errorf("candidate %q scored %d below MinScore", c.Project.Name, c.Score)
		}
	}
}

type name string

func (n name) DisplayName() string { return string(n) }

func TestBest(t *testing.T) {
	items := []name{"Backlog", "In Progress", "Done", "Done (archive)"}

	idx, r := Best("done", items, 20)
	if idx != 2 || r.Score != MaxScore {
		t.Errorf("Best(done) = %d/%d, want 2/%d", idx, r.Score, MaxScore)
	}

	idx, _ = Best("reign", []name{"Reignite Media", "Reign Pro"}, 20)
	if idx != 1 {
		t.Errorf("Best(reign) = %d, want 1 (whole-word match)", idx)
	}

	idx, _ = Best("zzz", items, 20)
	if idx != -1 {
		t.Errorf("Best(zzz) = %d, want -1", idx)
	}
}
