// Package mcptools provides the MCP tool handlers of boardmirror.
//
// Each tool handler follows the same pattern:
//   - A struct with its dependencies injected via constructor
//   - Definition() returns the mcp.Tool schema
//   - Handle() processes the request and returns a result
//
// Handlers never return a Go error for bad input or failed calls; they
// report them with mcp.NewToolResultError so the caller can react.
package mcptools

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// idArg extracts a remote id. Ids may arrive as numbers or numeric strings.
func idArg(req mcp.CallToolRequest, key string) (int64, bool) {
	switch v := req.GetArguments()[key].(type) {
	case float64:
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// optBoolArg returns nil when the argument is absent.
func optBoolArg(req mcp.CallToolRequest, key string) *bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return nil
	}
	return &v
}

// optStringArg returns nil when the argument is absent.
func optStringArg(req mcp.CallToolRequest, key string) *string {
	v, ok := req.GetArguments()[key].(string)
	if !ok {
		return nil
	}
	return &v
}

// requireID reads a positive id argument or returns the tool error to send.
func requireID(req mcp.CallToolRequest, key string) (int64, *mcp.CallToolResult) {
	id, ok := idArg(req, key)
	if !ok {
		return 0, mcp.NewToolResultError(fmt.Sprintf("'%s' is required", key))
	}
	if id <= 0 {
		return 0, mcp.NewToolResultError(fmt.Sprintf("'%s' must be a positive id", key))
	}
	return id, nil
}

// ─── Detail levels ──────────────────────────────────────────────────────────

// Detail level constants for the detail_level parameter.
const (
	DetailSummary  = "summary"
	DetailStandard = "standard"
	DetailFull     = "full"
)

// detailLevelValues returns the enum values for tool definitions.
func detailLevelValues() []string {
	return []string{DetailSummary, DetailStandard, DetailFull}
}

// parseDetailLevel defaults to standard for empty or unrecognized values.
func parseDetailLevel(s string) string {
	switch s {
	case DetailSummary, DetailFull:
		return s
	default:
		return DetailStandard
	}
}

// snippetLen is the content length shown at the standard detail level.
const snippetLen = 160

// snippet shortens s to n runes.
func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// navigationHint returns a one-line footer when results are capped by a
// limit, or "" when everything fits.
func navigationHint(showing, total int, hint string) string {
	if total <= 0 || showing >= total {
		return ""
	}
	if hint != "" {
		return fmt.Sprintf("\n📊 Showing %d of %d. %s", showing, total, hint)
	}
	return fmt.Sprintf("\n📊 Showing %d of %d.", showing, total)
}

// ─── Formatting ─────────────────────────────────────────────────────────────

// formatNumber formats an integer with comma separators.
func formatNumber(n int) string {
	s := strconv.Itoa(n)
	if n < 1000 {
		return s
	}
	var out []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, byte(c))
	}
	return string(out)
}

// formatDate renders an optional date as YYYY-MM-DD, or "-" when unset.
func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

// formatAge renders a duration in the largest whole unit.
func formatAge(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
