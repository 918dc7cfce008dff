package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/index"
	"github.com/mark3labs/mcp-go/mcp"
)

// SearchTool handles the search_index MCP tool.
type SearchTool struct {
	store *index.Store
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(store *index.Store) *SearchTool {
	return &SearchTool{store: store}
}

// Definition returns the MCP tool definition for search_index.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("search_index",
		mcp.WithDescription(
			"Search the local index for projects, cards and people. Case-insensitive substring "+
				"match over names, titles, card content, emails and job titles. Never calls the "+
				"remote system; run build_index first.",
		),
		mcp.WithString("query",
			mcp.Description("Text to look for (empty matches everything the filters allow)"),
		),
		mcp.WithString("type",
			mcp.Description("Entity type to search (default: all)"),
			mcp.Enum(string(index.EntityAll), string(index.EntityProjects), string(index.EntityCards), string(index.EntityPeople)),
		),
		mcp.WithNumber("project_id",
			mcp.Description("Only projects and cards of this project"),
		),
		mcp.WithString("assignee",
			mcp.Description("Only cards assigned to, and people named like, this name"),
		),
		mcp.WithBoolean("completed",
			mcp.Description("Only completed (true) or open (false) cards"),
		),
		mcp.WithString("column_type",
			mcp.Description("Only cards in columns of this type"),
			mcp.Enum(board.TypeValues()...),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results per entity type (default: 10, 0 for no limit)"),
		),
		mcp.WithString("detail_level",
			mcp.Description("summary: ids and titles; standard: content snippets (default); full: complete content"),
			mcp.Enum(detailLevelValues()...),
		),
	)
}

// Handle processes the search_index tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !t.store.Meta().Built() {
		return mcp.NewToolResultError("the index is empty; run build_index first"), nil
	}

	query := req.GetString("query", "")
	limit := intArg(req, "limit", 10)
	if limit < 0 {
		return mcp.NewToolResultError("'limit' must not be negative"), nil
	}
	projectID, _ := idArg(req, "project_id")
	opts := index.SearchOptions{
		Type:       index.EntityType(req.GetString("type", string(index.EntityAll))),
		ProjectID:  projectID,
		Assignee:   req.GetString("assignee", ""),
		Completed:  optBoolArg(req, "completed"),
		ColumnType: board.ColumnType(req.GetString("column_type", "")),
	}
	detail := parseDetailLevel(req.GetString("detail_level", ""))

	// Search unlimited so the footer can say how many were cut.
	res, err := t.store.Search(query, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if res.Total() == 0 {
		return mcp.NewToolResultText("No entries found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d entries:\n", res.Total())

	if n := len(res.Projects); n > 0 {
		shown := capped(n, limit)
		fmt.Fprintf(&b, "\n### Projects (%d)\n\n", n)
		for _, p := range res.Projects[:shown] {
			fmt.Fprintf(&b, "- **%s** (id %d) [%s]", p.Name, p.ID, p.Status)
			if detail != DetailSummary && p.Description != "" {
				fmt.Fprintf(&b, ": %s", descriptionText(p.Description, detail))
			}
			b.WriteString("\n")
		}
		b.WriteString(navigationHint(shown, n, "Narrow with project_id or raise limit."))
	}

	if n := len(res.Cards); n > 0 {
		shown := capped(n, limit)
		fmt.Fprintf(&b, "\n### Cards (%d)\n\n", n)
		for _, c := range res.Cards[:shown] {
			writeCard(&b, c, detail)
		}
		b.WriteString(navigationHint(shown, n, "Narrow with project_id, assignee or column_type."))
	}

	if n := len(res.People); n > 0 {
		shown := capped(n, limit)
		fmt.Fprintf(&b, "\n### People (%d)\n\n", n)
		for _, p := range res.People[:shown] {
			fmt.Fprintf(&b, "- **%s** (id %d)", p.Name, p.ID)
			if detail != DetailSummary {
				if p.Title != "" {
					fmt.Fprintf(&b, ", %s", p.Title)
				}
				if p.Email != "" {
					fmt.Fprintf(&b, " <%s>", p.Email)
				}
			}
			b.WriteString("\n")
		}
		b.WriteString(navigationHint(shown, n, ""))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func capped(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

func descriptionText(s, detail string) string {
	if detail == DetailFull {
		return s
	}
	return snippet(s, snippetLen)
}

func writeCard(b *strings.Builder, c index.CardEntry, detail string) {
	state := "open"
	if c.Completed {
		state = "done"
	}
	fmt.Fprintf(b, "- **%s** `%s` %s / %s [%s]", c.Title, c.Key, c.ProjectName, c.ColumnTitle, state)
	if detail == DetailSummary {
		b.WriteString("\n")
		return
	}
	if len(c.AssigneeNames) > 0 {
		fmt.Fprintf(b, ", %s", strings.Join(c.AssigneeNames, ", "))
	}
	if c.DueOn != nil {
		fmt.Fprintf(b, ", due %s", formatDate(c.DueOn))
	}
	b.WriteString("\n")
	if c.Content != "" {
		fmt.Fprintf(b, "  %s\n", descriptionText(c.Content, detail))
	}
}
