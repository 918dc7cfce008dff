package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/boardmirror/internal/index"
	"github.com/mark3labs/mcp-go/mcp"
)

// BuildTool handles the build_index MCP tool.
type BuildTool struct {
	builder *index.Builder
}

// NewBuildTool creates a BuildTool.
func NewBuildTool(builder *index.Builder) *BuildTool {
	return &BuildTool{builder: builder}
}

// Definition returns the MCP tool definition for build_index.
func (t *BuildTool) Definition() mcp.Tool {
	return mcp.NewTool("build_index",
		mcp.WithDescription(
			"Scan every project, board column, card and person from the remote system into "+
				"the local index. Replaces the previous index only when the scan completes; "+
				"columns that fail to load are reported and skipped. Can take a while on large accounts.",
		),
	)
}

// Handle processes the build_index tool call.
func (t *BuildTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := t.builder.Build(ctx)
	if err != nil {
		if errors.Is(err, index.ErrBuildInProgress) {
			return mcp.NewToolResultError("a build is already running; wait for it to finish"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("build failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatReport("Index built", report)), nil
}

// RefreshTool handles the refresh_project MCP tool.
type RefreshTool struct {
	builder *index.Builder
}

// NewRefreshTool creates a RefreshTool.
func NewRefreshTool(builder *index.Builder) *RefreshTool {
	return &RefreshTool{builder: builder}
}

// Definition returns the MCP tool definition for refresh_project.
func (t *RefreshTool) Definition() mcp.Tool {
	return mcp.NewTool("refresh_project",
		mcp.WithDescription(
			"Rescan one project's columns and cards into the local index without a full rebuild. "+
				"Other projects are left untouched.",
		),
		mcp.WithNumber("project_id",
			mcp.Required(),
			mcp.Description("Project id to rescan"),
		),
	)
}

// Handle processes the refresh_project tool call.
func (t *RefreshTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, errResult := requireID(req, "project_id")
	if errResult != nil {
		return errResult, nil
	}
	report, err := t.builder.RefreshProject(ctx, projectID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refresh of project %d failed: %v", projectID, err)), nil
	}
	return mcp.NewToolResultText(formatReport(fmt.Sprintf("Project %d refreshed", projectID), report)), nil
}

// formatReport renders a build report as markdown.
func formatReport(title string, r *index.BuildReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", title)
	fmt.Fprintf(&b, "- **Build**: %s\n", r.BuildID)
	fmt.Fprintf(&b, "- **Projects scanned**: %d\n", r.ScannedProjects)
	fmt.Fprintf(&b, "- **Index**: %s projects, %s columns, %s cards, %s people\n",
		formatNumber(r.Meta.TotalProjects), formatNumber(r.Meta.TotalColumns),
		formatNumber(r.Meta.TotalCards), formatNumber(r.Meta.TotalPeople))
	fmt.Fprintf(&b, "- **Elapsed**: %.1fs\n", r.Meta.ElapsedSeconds)

	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, "\n### ⚠️ %d failures\n\n", len(r.Failures))
		for _, f := range r.Failures {
			if f.ColumnID != 0 {
				fmt.Fprintf(&b, "- %s (id %d), column %d: %s\n", f.ProjectName, f.ProjectID, f.ColumnID, f.Error)
			} else {
				fmt.Fprintf(&b, "- %s (id %d): %s\n", f.ProjectName, f.ProjectID, f.Error)
			}
		}
	}
	return b.String()
}
