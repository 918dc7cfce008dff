package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/remote"
	"github.com/mark3labs/mcp-go/mcp"
)

// DiscoverTool handles the discover_columns MCP tool.
type DiscoverTool struct {
	client     remote.Client
	discoverer board.Discoverer
}

// NewDiscoverTool creates a DiscoverTool.
func NewDiscoverTool(client remote.Client, discoverer board.Discoverer) *DiscoverTool {
	return &DiscoverTool{client: client, discoverer: discoverer}
}

// Definition returns the MCP tool definition for discover_columns.
func (t *DiscoverTool) Definition() mcp.Tool {
	return mcp.NewTool("discover_columns",
		mcp.WithDescription(
			fmt.Sprintf("List the columns of a project's board, in board order, with their "+
				"workflow type (bugs, testing, review, development, done, todo, other). "+
				"Columns are found by probing the %d ids after the board id; the "+
				"result always reflects the remote system, not the local index.", board.ProbeWindow+1),
		),
		mcp.WithNumber("project_id",
			mcp.Required(),
			mcp.Description("Project id (use resolve_project to find it)"),
		),
	)
}

// Handle processes the discover_columns tool call.
func (t *DiscoverTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, errResult := requireID(req, "project_id")
	if errResult != nil {
		return errResult, nil
	}

	project, err := t.client.GetProject(ctx, projectID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load project %d: %v", projectID, err)), nil
	}
	if !project.HasBoard() {
		return mcp.NewToolResultText(fmt.Sprintf("Project **%s** (id %d) has no board.", project.Name, project.ID)), nil
	}

	columns, err := t.discoverer.Discover(ctx, *project)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("column discovery failed: %v", err)), nil
	}
	if len(columns) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf(
			"No columns found for **%s** within ids %d..%d.", project.Name, *project.BoardID, *project.BoardID+board.ProbeWindow)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s: %d columns\n\n", project.Name, len(columns))
	b.WriteString("| # | Column | Id | Type | Cards |\n|---|---|---|---|---|\n")
	for i, c := range columns {
		fmt.Fprintf(&b, "| %d | %s | %d | %s %s | %d |\n", i+1, c.Title, c.ID, c.Label, c.Type, c.CardsCount)
	}
	return mcp.NewToolResultText(b.String()), nil
}
