package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/index"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── PatchCardTool ──────────────────────────────────────────────────────────

// PatchCardTool handles the patch_card MCP tool.
type PatchCardTool struct {
	store *index.Store
}

// NewPatchCardTool creates a PatchCardTool with the given index store.
func NewPatchCardTool(store *index.Store) *PatchCardTool {
	return &PatchCardTool{store: store}
}

// Definition returns the MCP tool definition for patch_card.
func (t *PatchCardTool) Definition() mcp.Tool {
	return mcp.NewTool("patch_card",
		mcp.WithDescription(
			"Correct a card in the local index without touching the remote system. Only provided "+
				"fields change. A key that is not in the index is reported, never created.",
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Card key as <project_id>:<card_id>, as shown by search_index"),
		),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New plain-text content")),
		mcp.WithBoolean("completed", mcp.Description("Completion state")),
		mcp.WithString("due_on", mcp.Description("Due date as YYYY-MM-DD")),
		mcp.WithBoolean("clear_due_on", mcp.Description("Remove the due date (cannot be combined with due_on)")),
		mcp.WithNumber("column_id", mcp.Description("Column the card now sits in")),
		mcp.WithString("column_title", mcp.Description("Title of that column; its type is derived unless column_type is given")),
		mcp.WithString("column_type",
			mcp.Description("Type of that column"),
			mcp.Enum(board.TypeValues()...),
		),
	)
}

// Handle processes the patch_card tool call.
func (t *PatchCardTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := strings.TrimSpace(req.GetString("key", ""))
	if key == "" {
		return mcp.NewToolResultError("'key' is required"), nil
	}

	patch := index.CardPatch{
		Title:       optStringArg(req, "title"),
		Content:     optStringArg(req, "content"),
		Completed:   optBoolArg(req, "completed"),
		ColumnTitle: optStringArg(req, "column_title"),
		ClearDueOn:  boolArg(req, "clear_due_on", false),
	}
	if due := req.GetString("due_on", ""); due != "" {
		d, err := time.Parse(time.DateOnly, due)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("'due_on' must be YYYY-MM-DD: %v", err)), nil
		}
		if patch.ClearDueOn {
			return mcp.NewToolResultError("'due_on' and 'clear_due_on' cannot be combined"), nil
		}
		patch.DueOn = &d
	}
	if id, ok := idArg(req, "column_id"); ok {
		if id <= 0 {
			return mcp.NewToolResultError("'column_id' must be a positive id"), nil
		}
		patch.ColumnID = &id
	}
	if ct := req.GetString("column_type", ""); ct != "" {
		typ := board.ColumnType(ct)
		if err := board.ValidateColumnType(typ); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		patch.ColumnType = &typ
	}
	if patch.Empty() {
		return mcp.NewToolResultError("nothing to patch: provide at least one field"), nil
	}

	card, err := t.store.PatchCard(key, patch)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("card %s is not in the index; nothing changed", key)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("patch failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Card `%s` patched:\n\n", card.Key)
	writeCard(&b, card, DetailStandard)
	return mcp.NewToolResultText(b.String()), nil
}

// ─── ClearTool ──────────────────────────────────────────────────────────────

// ClearTool handles the clear_index MCP tool.
type ClearTool struct {
	store *index.Store
}

// NewClearTool creates a ClearTool with the given index store.
func NewClearTool(store *index.Store) *ClearTool {
	return &ClearTool{store: store}
}

// Definition returns the MCP tool definition for clear_index.
func (t *ClearTool) Definition() mcp.Tool {
	return mcp.NewTool("clear_index",
		mcp.WithDescription(
			"Delete everything in the local index. The remote system is not touched. "+
				"Requires confirm=true.",
		),
		mcp.WithBoolean("confirm",
			mcp.Required(),
			mcp.Description("Must be true to clear the index"),
		),
	)
}

// Handle processes the clear_index tool call.
func (t *ClearTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !boolArg(req, "confirm", false) {
		return mcp.NewToolResultError("refusing to clear the index without confirm=true"), nil
	}
	if err := t.store.Clear(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("clear failed: %v", err)), nil
	}
	return mcp.NewToolResultText("Index cleared. Run build_index to repopulate it."), nil
}

// ─── ExportTool ─────────────────────────────────────────────────────────────

// ExportTool handles the export_index MCP tool.
type ExportTool struct {
	store *index.Store
}

// NewExportTool creates an ExportTool with the given index store.
func NewExportTool(store *index.Store) *ExportTool {
	return &ExportTool{store: store}
}

// Definition returns the MCP tool definition for export_index.
func (t *ExportTool) Definition() mcp.Tool {
	return mcp.NewTool("export_index",
		mcp.WithDescription(
			"Write the whole local index (projects, columns, cards, people and build metadata) "+
				"to a JSON file.",
		),
		mcp.WithString("path",
			mcp.Description("Output .json file inside the data directory, relative to it (default: index.json)"),
		),
	)
}

// Handle processes the export_index tool call.
func (t *ExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := t.store.ExportPath(req.GetString("path", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := t.store.Export(path); err != nil {
		if errors.Is(err, index.ErrEmptyIndex) {
			return mcp.NewToolResultError("the index is empty; run build_index first"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	m := t.store.Meta()
	return mcp.NewToolResultText(fmt.Sprintf("Exported %s cards from %s projects to %s",
		formatNumber(m.TotalCards), formatNumber(m.TotalProjects), path)), nil
}
