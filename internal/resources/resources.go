// Package resources implements the MCP resource handlers of boardmirror.
//
// Resources provide read-only data the host can consume for context.
// They use URI-based addressing (boardmirror://...) following MCP
// conventions and never call the remote system.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/HendryAvila/boardmirror/internal/index"
	"github.com/mark3labs/mcp-go/mcp"
)

// Resource URIs.
const (
	MetaURI  = "boardmirror://index/meta"
	StatsURI = "boardmirror://index/stats"
)

// Handler serves the index resources.
type Handler struct {
	store *index.Store
	now   func() time.Time
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store *index.Store) *Handler {
	return &Handler{store: store, now: time.Now}
}

// MetaResource returns the MCP resource definition for the index metadata.
func (h *Handler) MetaResource() mcp.Resource {
	return mcp.NewResource(
		MetaURI,
		"Index Metadata",
		mcp.WithResourceDescription("Build id, build time, age and entry counts of the local index"),
		mcp.WithMIMEType("application/json"),
	)
}

// metaView is Meta plus the fields a reader needs to judge freshness.
type metaView struct {
	index.Meta
	Built      bool    `json:"built"`
	AgeSeconds float64 `json:"age_seconds,omitempty"`
}

// HandleMeta returns the index metadata as JSON.
func (h *Handler) HandleMeta(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	m := h.store.Meta()
	view := metaView{Meta: m, Built: m.Built()}
	if m.BuildFinishedAt != nil {
		view.AgeSeconds = h.now().Sub(*m.BuildFinishedAt).Seconds()
	}
	return jsonResource(req.Params.URI, view)
}

// StatsResource returns the MCP resource definition for index statistics.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		StatsURI,
		"Index Statistics",
		mcp.WithResourceDescription("Card counts by state, column, column type, project and assignee"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStats returns the index statistics as JSON.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if !h.store.Meta().Built() {
		return errorResource(req.Params.URI, "the index is empty; run build_index first"), nil
	}
	return jsonResource(req.Params.URI, h.store.Statistics(h.now()))
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
