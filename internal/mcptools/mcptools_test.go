package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HendryAvila/boardmirror/internal/automation"
	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/index"
	"github.com/HendryAvila/boardmirror/internal/remote"
	"github.com/HendryAvila/boardmirror/internal/remote/remotetest"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

var (
	alice = remote.Person{ID: 7, Name: "Alice", Email: "alice@example.com", Title: "Developer"}
	carol = remote.Person{ID: 8, Name: "Carol", Email: "carol@example.com", Title: "Project Lead"}
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture returns a fake with two active projects, one of them with a
// three-column board holding four cards, and one archived project.
func newFixture() *remotetest.Fake {
	f := remotetest.New()
	f.AddProject(remote.Project{ID: 1, Name: "Reign Theme", Description: "WordPress theme", BoardID: int64Ptr(100)})
	f.AddProject(remote.Project{ID: 2, Name: "Mobile App", Description: "iOS and Android"})
	f.AddProject(remote.Project{ID: 3, Name: "Reign Legacy", Status: remote.StatusArchived})

	f.AddPerson(alice, 1)
	f.AddPerson(carol, 1)

	f.AddColumn(remote.Column{ID: 101, ProjectID: 1, Title: "To Do", Position: intPtr(1)})
	f.AddColumn(remote.Column{ID: 102, ProjectID: 1, Title: "In Progress", Position: intPtr(2)})
	f.AddColumn(remote.Column{ID: 103, ProjectID: 1, Title: "Done", Position: intPtr(3)})

	past := time.Now().AddDate(0, 0, -10)
	f.AddCard(remote.Card{ID: 1001, ProjectID: 1, ColumnID: 101, Title: "Fix login bug",
		Content: "<p>Users <b>cannot</b> log in</p>", Assignees: []remote.Person{alice}, DueOn: &past})
	f.AddCard(remote.Card{ID: 1002, ProjectID: 1, ColumnID: 102, Title: "Write release notes"})
	f.AddCard(remote.Card{ID: 1003, ProjectID: 1, ColumnID: 102, Title: "Ship header", Completed: true,
		Assignees: []remote.Person{carol}})
	f.AddCard(remote.Card{ID: 1004, ProjectID: 1, ColumnID: 103, Title: "Logo", Completed: true})
	return f
}

type deps struct {
	fake    *remotetest.Fake
	store   *index.Store
	builder *index.Builder
	engine  *automation.Engine
}

func newDeps(t *testing.T) *deps {
	t.Helper()
	f := newFixture()
	store, err := index.New(index.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := quietLogger()
	disc := board.NewProbeDiscoverer(f, 4, logger)
	return &deps{
		fake:    f,
		store:   store,
		builder: index.NewBuilder(f, disc, store, 2, logger),
		engine:  automation.NewEngine(f, disc, store, logger),
	}
}

// built returns deps with a committed index.
func built(t *testing.T) *deps {
	t.Helper()
	d := newDeps(t)
	if _, err := d.builder.Build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}
	return d
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// mustNotError asserts the Handle call succeeded.
func mustNotError(t *testing.T, r *mcp.CallToolResult, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	if r.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(r))
	}
}

// mustBeToolError asserts the Handle call returns a tool error (not a Go error).
func mustBeToolError(t *testing.T, r *mcp.CallToolResult, err error, wantSubstr string) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	if !r.IsError {
		t.Fatalf("expected tool error containing %q, got success: %s", wantSubstr, resultText(r))
	}
	if wantSubstr != "" && !strings.Contains(resultText(r), wantSubstr) {
		t.Errorf("error text %q does not contain %q", resultText(r), wantSubstr)
	}
}

func mustContain(t *testing.T, text string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(text, w) {
			t.Errorf("output missing %q:\n%s", w, text)
		}
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func TestIDArg(t *testing.T) {
	req := makeReq(map[string]interface{}{"a": float64(42), "b": " 17 ", "c": "x", "d": true})
	if id, ok := idArg(req, "a"); !ok || id != 42 {
		t.Errorf("number: %d, %v", id, ok)
	}
	if id, ok := idArg(req, "b"); !ok || id != 17 {
		t.Errorf("string: %d, %v", id, ok)
	}
	if _, ok := idArg(req, "c"); ok {
		t.Error("non-numeric string should not parse")
	}
	if _, ok := idArg(req, "d"); ok {
		t.Error("bool should not parse")
	}
	if _, ok := idArg(req, "missing"); ok {
		t.Error("missing key should not parse")
	}
}

func TestNavigationHint(t *testing.T) {
	if got := navigationHint(5, 5, "x"); got != "" {
		t.Errorf("all shown: %q", got)
	}
	if got := navigationHint(0, 0, ""); got != "" {
		t.Errorf("empty: %q", got)
	}
	if got := navigationHint(2, 9, "More."); !strings.Contains(got, "Showing 2 of 9. More.") {
		t.Errorf("capped: %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567"}
	for n, want := range tests {
		if got := formatNumber(n); got != want {
			t.Errorf("formatNumber(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestParseRules(t *testing.T) {
	rules, err := ParseRules(" css:designer, db : backend ,")
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if len(rules) != 2 || rules[0] != (automation.Rule{Keyword: "css", Role: "designer"}) ||
		rules[1] != (automation.Rule{Keyword: "db", Role: "backend"}) {
		t.Errorf("rules = %+v", rules)
	}
	for _, bad := range []string{"css", ":designer", "css:"} {
		if _, err := ParseRules(bad); err == nil {
			t.Errorf("ParseRules(%q) should fail", bad)
		}
	}
}

// ─── ResolveTool ─────────────────────────────────────────────────────────────

func TestResolveTool_Definition(t *testing.T) {
	def := NewResolveTool(nil).Definition()
	if def.Name != "resolve_project" {
		t.Errorf("tool name = %q", def.Name)
	}
	if len(def.InputSchema.Required) != 1 || def.InputSchema.Required[0] != "query" {
		t.Errorf("required = %v, want [query]", def.InputSchema.Required)
	}
}

func TestResolveTool_FromRemote(t *testing.T) {
	d := newDeps(t)
	tool := NewResolveTool(NewProjectSource(d.fake, d.store))

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "reign"}))
	mustNotError(t, r, err)
	text := resultText(r)
	mustContain(t, text, "Reign Theme", "Source: remote")
	if strings.Contains(text, "Reign Legacy") {
		t.Errorf("archived project returned without include_archived:\n%s", text)
	}
}

func TestResolveTool_IncludeArchived(t *testing.T) {
	d := newDeps(t)
	tool := NewResolveTool(NewProjectSource(d.fake, nil))

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"query": "reign", "include_archived": true,
	}))
	mustNotError(t, r, err)
	mustContain(t, resultText(r), "Reign Theme", "Reign Legacy", "[archived]")
}

func TestResolveTool_UsesIndexWhenBuilt(t *testing.T) {
	d := built(t)
	d.fake.ProjectsErr = errors.New("remote down")
	tool := NewResolveTool(NewProjectSource(d.fake, d.store))

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "mobile"}))
	mustNotError(t, r, err)
	mustContain(t, resultText(r), "Mobile App", "(no board)", "Source: index")
}

func TestResolveTool_NoMatch(t *testing.T) {
	d := newDeps(t)
	tool := NewResolveTool(NewProjectSource(d.fake, nil))

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "zzzzqqq"}))
	mustNotError(t, r, err)
	mustContain(t, resultText(r), "No projects match")
}

func TestResolveTool_Errors(t *testing.T) {
	d := newDeps(t)
	tool := NewResolveTool(NewProjectSource(d.fake, nil))

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	mustBeToolError(t, r, err, "'query' is required")

	r, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "x", "min_score": float64(120)}))
	mustBeToolError(t, r, err, "min_score")

	d.fake.ProjectsErr = errors.New("remote down")
	r, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "reign"}))
	mustBeToolError(t, r, err, "remote down")
}

// ─── DiscoverTool ────────────────────────────────────────────────────────────

func TestDiscoverTool_ListsColumnsInOrder(t *testing.T) {
	d := newDeps(t)
	tool := NewDiscoverTool(d.fake, board.NewProbeDiscoverer(d.fake, 4, quietLogger()))

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"project_id": float64(1)}))
	mustNotError(t, r, err)
	text := resultText(r)
	mustContain(t, text, "3 columns", "| 101 |", " done |")
	if strings.Index(text, "To Do") > strings.Index(text, "Done") {
		t.Errorf("columns out of board order:\n%s", text)
	}
}

func TestDiscoverTool_NoBoard(t *testing.T) {
	d := newDeps(t)
	tool := NewDiscoverTool(d.fake, board.NewProbeDiscoverer(d.fake, 4, quietLogger()))

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"project_id": float64(2)}))
	mustNotError(t, r, err)
	mustContain(t, resultText(r), "has no board")
	if len(d.fake.Probes()) != 0 {
		t.Errorf("probed %v for a project without a board", d.fake.Probes())
	}
}

func TestDiscoverTool_Errors(t *testing.T) {
	d := newDeps(t)
	tool := NewDiscoverTool(d.fake, board.NewProbeDiscoverer(d.fake, 4, quietLogger()))

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	mustBeToolError(t, r, err, "'project_id' is required")

	r, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"project_id": float64(-4)}))
	mustBeToolError(t, r, err, "positive")

	r, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"project_id": float64(404)}))
	mustBeToolError(t, r, err, "failed to load project 404")
}

// ─── BuildTool / RefreshTool ─────────────────────────────────────────────────

func TestBuildTool_Handle(t *testing.T) {
	d := newDeps(t)
	tool := NewBuildTool(d.builder)

	r, err := tool.Handle(context.Background(), makeReq(nil))
	mustNotError(t, r, err)
	mustContain(t, resultText(r), "Index built", "3 projects, 3 columns, 4 cards, 2 people")

	if got := d.store.Meta().TotalCards; got != 4 {
		t.Errorf("TotalCards = %d, want 4", got)
	}
}

func TestBuildTool_ReportsFailures(t *testing.T) {
	d := newDeps(t)
	d.fake.CardErrs[102] = errors.New("column exploded")
	tool := NewBuildTool(d.builder)

	r, err := tool.Handle(context.Background(), makeReq(nil))
	mustNotError(t, r, err)
	mustContain(t, resultText(r), "1 failures", "column 102", "column exploded")
}

func TestBuildTool_AbortsWhenProjectsFail(t *testing.T) {
	d := newDeps(t)
	d.fake.ProjectsErr = errors.New("remote down")

	r, err := NewBuildTool(d.builder).Handle(context.Background(), makeReq(nil))
	mustBeToolError(t, r, err, "build failed")
	if d.store.Meta().Built() {
		t.Error("a failed build must not commit")
	}
}

func TestRefreshTool_Handle(t *testing.T) {
	d := built(t)
	d.fake.AddCard(remote.Card{ID: 1005, ProjectID: 1, ColumnID: 101, Title: "New card"})

	r, err := NewRefreshTool(d.builder).Handle(context.Background(), makeReq(map[string]interface{}{"project_id": float64(1)}))
	mustNotError(t, r, err)
	mustContain(t, resultText(r), "Project 1 refreshed")
	if _, err := d.store.Card(index.Key(1, 1005)); err != nil {
		t.Errorf("refreshed card missing: %v", err)
	}

	r, err = NewRefreshTool(d.builder).Handle(context.Background(), makeReq(map[string]interface{}{}))
	mustBeToolError(t, r, err, "'project_id' is required")
}

// ─── SearchTool ──────────────────────────────────────────────────────────────

func TestSearchTool_Definition(t *testing.T) {
	def := NewSearchTool(nil).Definition()
	for _, p := range []string{"query", "type", "project_id", "assignee", "completed", "column_type", "limit", "detail_level"} {
		if _, ok := def.InputSchema.Properties[p]; !ok {
			t.Errorf("missing %q parameter", p)
		}
	}
}

func TestSearchTool_EmptyIndex(t *testing.T) {
	d := newDeps(t)
	r, err := NewSearchTool(d.store).Handle(context.Background(), makeReq(map[string]interface{}{"query": "x"}))
	mustBeToolError(t, r, err, "run build_index first")
}

func TestSearchTool_Handle(t *testing.T) {
	d := built(t)
	tool := NewSearchTool(d.store)

	tests := []struct {
		name    string
		args    map[string]interface{}
		want    []string
		notWant []string
	}{
		{
			name: "content match strips html",
			args: map[string]interface{}{"query": "cannot log in"},
			want: []string{"Fix login bug", "`1:1001`", "Users cannot log in"},
		},
		{
			name:    "open cards only",
			args:    map[string]interface{}{"type": "cards", "completed": false},
			want:    []string{"Fix login bug", "Write release notes"},
			notWant: []string{"Ship header", "Logo"},
		},
		{
			name:    "by assignee",
			args:    map[string]interface{}{"assignee": "carol"},
			want:    []string{"Ship header", "**Carol**"},
			notWant: []string{"Fix login bug", "**Alice**"},
		},
		{
			name:    "by column type",
			args:    map[string]interface{}{"column_type": "done"},
			want:    []string{"Logo"},
			notWant: []string{"Ship header"},
		},
		{
			name:    "summary hides content",
			args:    map[string]interface{}{"query": "login", "detail_level": "summary"},
			want:    []string{"Fix login bug"},
			notWant: []string{"Users cannot"},
		},
		{
			name: "limit adds a hint",
			args: map[string]interface{}{"type": "cards", "limit": float64(1)},
			want: []string{"Cards (4)", "Showing 1 of 4"},
		},
		{
			name: "no matches",
			args: map[string]interface{}{"query": "nothing like this"},
			want: []string{"No entries found"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tool.Handle(context.Background(), makeReq(tt.args))
			mustNotError(t, r, err)
			text := resultText(r)
			mustContain(t, text, tt.want...)
			for _, nw := range tt.notWant {
				if strings.Contains(text, nw) {
					t.Errorf("output should not contain %q:\n%s", nw, text)
				}
			}
		})
	}
}

func TestSearchTool_InvalidOptions(t *testing.T) {
	d := built(t)
	tool := NewSearchTool(d.store)

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"type": "boards"}))
	mustBeToolError(t, r, err, "entity type")

	r, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"column_type": "icebox"}))
	mustBeToolError(t, r, err, "column type")

	r, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"limit": float64(-1)}))
	mustBeToolError(t, r, err, "limit")
}

// ─── StatsTool ───────────────────────────────────────────────────────────────

func TestStatsTool_Handle(t *testing.T) {
	d := built(t)
	tool := NewStatsTool(d.store)
	tool.now = func() time.Time { return time.Now().Add(2*time.Hour + 5*time.Minute) }

	r, err := tool.Handle(context.Background(), makeReq(nil))
	mustNotError(t, r, err)
	mustContain(t, resultText(r),
		"**Cards**: 4 (2 open, 2 completed)",
		"**Overdue**: 1",
		"**Projects**: 3 (2 active)",
		"- Reign Theme: 4",
		"- (unassigned): 2",
		"2h ago",
	)
}

func TestStatsTool_EmptyIndex(t *testing.T) {
	d := newDeps(t)
	r, err := NewStatsTool(d.store).Handle(context.Background(), makeReq(nil))
	mustBeToolError(t, r, err, "run build_index first")
}

// ─── PatchCardTool ───────────────────────────────────────────────────────────

func TestPatchCardTool_Handle(t *testing.T) {
	d := built(t)
	tool := NewPatchCardTool(d.store)

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"key":          "1:1002",
		"completed":    true,
		"column_id":    float64(103),
		"column_title": "Done",
		"due_on":       "2026-05-01",
	}))
	mustNotError(t, r, err)
	mustContain(t, resultText(r), "Card `1:1002` patched", "[done]")

	c, err := d.store.Card("1:1002")
	if err != nil {
		t.Fatalf("Card: %v", err)
	}
	if !c.Completed || c.ColumnID != 103 || c.ColumnType != board.TypeDone {
		t.Errorf("card = %+v", c)
	}
	if c.Title != "Write release notes" {
		t.Errorf("unpatched title changed to %q", c.Title)
	}
	if c.DueOn == nil || c.DueOn.Format(time.DateOnly) != "2026-05-01" {
		t.Errorf("DueOn = %v", c.DueOn)
	}
	if len(d.fake.Updates) != 0 || len(d.fake.Moves) != 0 {
		t.Error("patch_card must not touch the remote")
	}
}

func TestPatchCardTool_ClearDueOn(t *testing.T) {
	d := built(t)
	if c, _ := d.store.Card("1:1001"); c.DueOn == nil {
		t.Fatal("fixture card 1:1001 should have a due date")
	}

	r, err := NewPatchCardTool(d.store).Handle(context.Background(), makeReq(map[string]interface{}{
		"key": "1:1001", "clear_due_on": true,
	}))
	mustNotError(t, r, err)

	c, err := d.store.Card("1:1001")
	if err != nil {
		t.Fatalf("Card: %v", err)
	}
	if c.DueOn != nil {
		t.Errorf("DueOn = %v, want cleared", c.DueOn)
	}
}

func TestPatchCardTool_MissingKeyIsNoOp(t *testing.T) {
	d := built(t)
	before := d.store.Meta()

	r, err := NewPatchCardTool(d.store).Handle(context.Background(), makeReq(map[string]interface{}{
		"key": "1:9999", "title": "ghost",
	}))
	mustBeToolError(t, r, err, "not in the index")
	if after := d.store.Meta(); after.TotalCards != before.TotalCards {
		t.Errorf("TotalCards %d → %d", before.TotalCards, after.TotalCards)
	}
}

func TestPatchCardTool_Errors(t *testing.T) {
	d := built(t)
	tool := NewPatchCardTool(d.store)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"no key", map[string]interface{}{"title": "x"}, "'key' is required"},
		{"no fields", map[string]interface{}{"key": "1:1001"}, "nothing to patch"},
		{"bad date", map[string]interface{}{"key": "1:1001", "due_on": "tomorrow"}, "YYYY-MM-DD"},
		{"bad column type", map[string]interface{}{"key": "1:1001", "column_type": "icebox"}, "invalid column type"},
		{"bad column id", map[string]interface{}{"key": "1:1001", "column_id": float64(0)}, "positive"},
		{"set and clear due", map[string]interface{}{"key": "1:1001", "due_on": "2026-05-01", "clear_due_on": true}, "cannot be combined"},
		{"malformed key", map[string]interface{}{"key": "1001", "title": "x"}, "patch failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tool.Handle(context.Background(), makeReq(tt.args))
			mustBeToolError(t, r, err, tt.want)
		})
	}
}

// ─── ClearTool / ExportTool ──────────────────────────────────────────────────

func TestClearTool_RequiresConfirm(t *testing.T) {
	d := built(t)
	tool := NewClearTool(d.store)

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	mustBeToolError(t, r, err, "confirm=true")
	if !d.store.Meta().Built() {
		t.Fatal("index cleared without confirmation")
	}

	r, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"confirm": true}))
	mustNotError(t, r, err)
	if m := d.store.Meta(); m.Built() || m.TotalCards != 0 {
		t.Errorf("meta after clear = %+v", m)
	}
}

func TestExportTool_Handle(t *testing.T) {
	d := built(t)
	path, err := d.store.ExportPath(filepath.Join("out", "mirror.json"))
	if err != nil {
		t.Fatal(err)
	}

	r, err := NewExportTool(d.store).Handle(context.Background(), makeReq(map[string]interface{}{"path": filepath.Join("out", "mirror.json")}))
	mustNotError(t, r, err)
	mustContain(t, resultText(r), path)
	mustContain(t, resultText(r), "Exported 4 cards from 3 projects")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	var snap index.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(snap.Cards) != 4 || snap.Meta.TotalCards != 4 {
		t.Errorf("exported %d cards, meta says %d", len(snap.Cards), snap.Meta.TotalCards)
	}
}

func TestExportTool_DefaultPathAndEmptyIndex(t *testing.T) {
	d := newDeps(t)
	tool := NewExportTool(d.store)

	r, err := tool.Handle(context.Background(), makeReq(nil))
	mustBeToolError(t, r, err, "run build_index first")

	if _, err := d.builder.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	r, err = tool.Handle(context.Background(), makeReq(nil))
	mustNotError(t, r, err)
	if _, err := os.Stat(d.store.DefaultExportPath()); err != nil {
		t.Errorf("default export missing: %v", err)
	}
}

func TestExportTool_StaysInsideDataDir(t *testing.T) {
	d := built(t)
	tool := NewExportTool(d.store)
	outside := filepath.Join(t.TempDir(), "victim.json")
	if err := os.WriteFile(outside, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name, path, want string
	}{
		{"absolute outside", outside, "outside the data directory"},
		{"parent traversal", filepath.Join("..", "escape.json"), "outside the data directory"},
		{"not json", "notes.txt", "must end in .json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"path": tt.path}))
			mustBeToolError(t, r, err, tt.want)
		})
	}

	data, err := os.ReadFile(outside)
	if err != nil || string(data) != "keep" {
		t.Errorf("file outside the data directory changed: %q, %v", data, err)
	}
}

// ─── WorkflowTool ────────────────────────────────────────────────────────────

func TestWorkflowTool_Definition(t *testing.T) {
	def := NewWorkflowTool(nil, automation.DefaultOptions()).Definition()
	if def.Name != "run_workflow" {
		t.Errorf("tool name = %q", def.Name)
	}
	req := strings.Join(def.InputSchema.Required, ",")
	if !strings.Contains(req, "workflow") || !strings.Contains(req, "project_id") {
		t.Errorf("required = %v", def.InputSchema.Required)
	}
}

func TestWorkflowTool_MoveCompleted(t *testing.T) {
	d := built(t)
	tool := NewWorkflowTool(d.engine, automation.DefaultOptions())

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"workflow": "move-completed", "project_id": float64(1),
	}))
	mustNotError(t, r, err)
	mustContain(t, resultText(r), "move-completed on Reign Theme", "1 succeeded", "Ship header", "In Progress → Done")

	if len(d.fake.Moves) != 1 || d.fake.Moves[0].CardID != 1003 {
		t.Fatalf("moves = %+v", d.fake.Moves)
	}
	c, err := d.store.Card("1:1003")
	if err != nil {
		t.Fatal(err)
	}
	if c.ColumnID != 103 || c.ColumnType != board.TypeDone {
		t.Errorf("local card not patched: %+v", c)
	}
}

func TestWorkflowTool_DryRunChangesNothing(t *testing.T) {
	d := built(t)
	tool := NewWorkflowTool(d.engine, automation.DefaultOptions())

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"workflow": "escalate-overdue", "project_id": float64(1), "dry_run": true,
	}))
	mustNotError(t, r, err)
	mustContain(t, resultText(r), "[dry run]", "mark-urgent", "add-lead", "notify")
	if len(d.fake.Updates)+len(d.fake.Comments) != 0 {
		t.Errorf("dry run mutated: %d updates, %d comments", len(d.fake.Updates), len(d.fake.Comments))
	}
}

func TestWorkflowTool_CallerRules(t *testing.T) {
	d := built(t)
	tool := NewWorkflowTool(d.engine, automation.DefaultOptions())

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"workflow": "auto-assign", "project_id": float64(1), "rules": "release:lead",
	}))
	mustNotError(t, r, err)
	mustContain(t, resultText(r), "Write release notes", "Carol")

	c, ok := d.fake.Card(1002)
	if !ok || len(c.Assignees) != 1 || c.Assignees[0].ID != carol.ID {
		t.Errorf("card 1002 assignees = %+v", c.Assignees)
	}
}

func TestWorkflowTool_Errors(t *testing.T) {
	d := built(t)
	tool := NewWorkflowTool(d.engine, automation.DefaultOptions())

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"unknown workflow", map[string]interface{}{"workflow": "teleport", "project_id": float64(1)}, "teleport"},
		{"missing project", map[string]interface{}{"workflow": "auto-assign"}, "'project_id' is required"},
		{"bad max cards", map[string]interface{}{"workflow": "balance-workload", "project_id": float64(1), "max_cards": float64(1)}, "max_cards"},
		{"bad overdue days", map[string]interface{}{"workflow": "escalate-overdue", "project_id": float64(1), "overdue_days": float64(0)}, "overdue_days"},
		{"bad rules", map[string]interface{}{"workflow": "auto-assign", "project_id": float64(1), "rules": "nope"}, "keyword:role"},
		{"no board", map[string]interface{}{"workflow": "auto-assign", "project_id": float64(2)}, "has no board"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tool.Handle(context.Background(), makeReq(tt.args))
			mustBeToolError(t, r, err, tt.want)
		})
	}
	if len(d.fake.Updates)+len(d.fake.Moves)+len(d.fake.Comments) != 0 {
		t.Error("rejected runs must not mutate the remote")
	}
}
