package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/boardmirror/internal/match"
	"github.com/HendryAvila/boardmirror/internal/remote"
	"github.com/mark3labs/mcp-go/mcp"
)

// ResolveTool handles the resolve_project MCP tool.
type ResolveTool struct {
	source *ProjectSource
}

// NewResolveTool creates a ResolveTool.
func NewResolveTool(source *ProjectSource) *ResolveTool {
	return &ResolveTool{source: source}
}

// Definition returns the MCP tool definition for resolve_project.
func (t *ResolveTool) Definition() mcp.Tool {
	return mcp.NewTool("resolve_project",
		mcp.WithDescription(
			"Find projects by a loose name: exact names, substrings, acronyms (\"bpbp\"), "+
				"word prefixes and typos all match. Returns ranked candidates with a score "+
				"(0-100) and a confidence label. Uses the local index when built.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Project name, acronym or fragment"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max candidates (default: 5)"),
		),
		mcp.WithNumber("min_score",
			mcp.Description("Drop candidates scoring below this (default: 0)"),
		),
		mcp.WithBoolean("include_archived",
			mcp.Description("Also rank archived and trashed projects (default: false)"),
		),
	)
}

// Handle processes the resolve_project tool call.
func (t *ResolveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	opts := match.ResolveOptions{
		Limit:           intArg(req, "limit", 5),
		MinScore:        intArg(req, "min_score", 0),
		IncludeArchived: boolArg(req, "include_archived", false),
	}
	if opts.MinScore < 0 || opts.MinScore > 100 {
		return mcp.NewToolResultError("'min_score' must be between 0 and 100"), nil
	}

	projects, source, err := t.source.Projects(ctx, opts.IncludeArchived)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list projects: %v", err)), nil
	}

	candidates := match.Resolve(query, projects, opts)
	if len(candidates) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No projects match %q (searched %d from %s).", query, len(projects), source)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Projects matching %q\n\n", query)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. **%s** (id %d) score %d, %s", i+1, c.Project.Name, c.Project.ID, c.Score, c.Label)
		if c.Project.Status != "" && c.Project.Status != remote.StatusActive {
			fmt.Fprintf(&b, " [%s]", c.Project.Status)
		}
		if !c.Project.HasBoard() {
			b.WriteString(" (no board)")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nSource: %s", source)
	return mcp.NewToolResultText(b.String()), nil
}
