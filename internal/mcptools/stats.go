package mcptools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/index"
	"github.com/mark3labs/mcp-go/mcp"
)

// StatsTool handles the index_stats MCP tool.
type StatsTool struct {
	store *index.Store
	now   func() time.Time
}

// NewStatsTool creates a StatsTool with the given index store.
func NewStatsTool(store *index.Store) *StatsTool {
	return &StatsTool{store: store, now: time.Now}
}

// Definition returns the MCP tool definition for index_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("index_stats",
		mcp.WithDescription(
			"Show portfolio statistics from the local index: open, completed and overdue cards, "+
				"cards per column, column type, project and assignee, and how old the index is.",
		),
		mcp.WithNumber("top",
			mcp.Description("Rows shown per breakdown (default: 10, 0 for all)"),
		),
	)
}

// Handle processes the index_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !t.store.Meta().Built() {
		return mcp.NewToolResultError("the index is empty; run build_index first"), nil
	}
	top := intArg(req, "top", 10)
	st := t.store.Statistics(t.now())

	var sb strings.Builder
	sb.WriteString("## Index Statistics\n\n")
	fmt.Fprintf(&sb, "- **Projects**: %d (%d active)\n", st.ProjectsTotal, st.ProjectsActive)
	fmt.Fprintf(&sb, "- **People**: %d\n", st.People)
	fmt.Fprintf(&sb, "- **Cards**: %s (%s open, %s completed)\n",
		formatNumber(st.TotalCards), formatNumber(st.Open), formatNumber(st.Completed))
	fmt.Fprintf(&sb, "- **Overdue**: %s\n", formatNumber(st.Overdue))
	if st.LastBuild != nil {
		fmt.Fprintf(&sb, "- **Last build**: %s (%s ago)\n", st.LastBuild.Format(time.RFC3339), formatAge(st.AgeSeconds))
	}

	typeCounts := make(map[string]int, len(st.ByColumnType))
	for k, v := range st.ByColumnType {
		typeCounts[board.Label(k)+" "+string(k)] = v
	}
	writeBreakdown(&sb, "By column type", typeCounts, top)
	writeBreakdown(&sb, "By column", st.ByColumn, top)
	writeBreakdown(&sb, "By project", st.ByProject, top)
	writeBreakdown(&sb, "By assignee", st.ByAssignee, top)

	return mcp.NewToolResultText(sb.String()), nil
}

// writeBreakdown lists counts descending, ties by name.
func writeBreakdown(sb *strings.Builder, title string, counts map[string]int, top int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	shown := capped(len(keys), top)

	fmt.Fprintf(sb, "\n### %s\n\n", title)
	for _, k := range keys[:shown] {
		fmt.Fprintf(sb, "- %s: %d\n", k, counts[k])
	}
	sb.WriteString(navigationHint(shown, len(keys), ""))
}
