// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools, prompts and resources that depend on them.
// No business logic lives here, only wiring.
package server

import (
	"fmt"
	"log/slog"

	"github.com/HendryAvila/boardmirror/internal/automation"
	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/config"
	"github.com/HendryAvila/boardmirror/internal/index"
	"github.com/HendryAvila/boardmirror/internal/mcptools"
	"github.com/HendryAvila/boardmirror/internal/prompts"
	"github.com/HendryAvila/boardmirror/internal/remote"
	"github.com/HendryAvila/boardmirror/internal/resources"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Deps are the shared dependencies of every caller surface. Client is
// nil when no credentials are configured; Store, Builder and Engine's
// local patching are nil when the index cannot be opened.
type Deps struct {
	Config     config.Config
	Client     remote.Client
	Discoverer board.Discoverer
	Store      *index.Store
	Builder    *index.Builder
	Engine     *automation.Engine
}

// NewDeps resolves the dependencies for cfg. The remote client and the
// index are independent: either may be missing and the other still works.
//
// The returned cleanup function closes the index database and must be
// called on shutdown. It is always non-nil.
func NewDeps(cfg config.Config, logger *slog.Logger) (*Deps, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Deps{Config: cfg}

	if err := cfg.RequireRemote(); err != nil {
		logger.Warn("remote tools disabled", "err", err)
	} else {
		hc, err := remote.NewHTTPClient(cfg.HTTP())
		if err != nil {
			return nil, noop, fmt.Errorf("creating remote client: %w", err)
		}
		d.Client = hc
		d.Discoverer = board.NewProbeDiscoverer(hc, cfg.ProbeConcurrency, logger)
	}

	cleanup := noop
	store, err := index.New(index.Config{DataDir: cfg.DataDir})
	if err != nil {
		logger.Warn("local index disabled", "data_dir", cfg.DataDir, "err", err)
	} else {
		d.Store = store
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("index store close", "err", err)
			}
		}
	}

	if d.Client != nil {
		// A typed nil *index.Store must not reach the engine as a
		// non-nil CardPatcher.
		var patcher automation.CardPatcher
		if d.Store != nil {
			patcher = d.Store
			d.Builder = index.NewBuilder(d.Client, d.Discoverer, d.Store, cfg.BuildConcurrency, logger)
		}
		d.Engine = automation.NewEngine(d.Client, d.Discoverer, patcher, logger)
	}
	return d, cleanup, nil
}

// New creates and configures the MCP server with every tool, prompt and
// resource its dependencies allow.
func New(cfg config.Config, logger *slog.Logger) (*server.MCPServer, func(), error) {
	d, cleanup, err := NewDeps(cfg, logger)
	if err != nil {
		return nil, noop, err
	}

	s := server.NewMCPServer(
		"boardmirror",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	s.AddTools(Tools(d)...)

	// --- Register prompts ---

	triagePrompt := prompts.NewTriagePrompt()
	s.AddPrompt(triagePrompt.Definition(), triagePrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	if d.Store != nil {
		resourceHandler := resources.NewHandler(d.Store)
		s.AddResource(resourceHandler.MetaResource(), resourceHandler.HandleMeta)
		s.AddResource(resourceHandler.StatsResource(), resourceHandler.HandleStats)
	}

	return s, cleanup, nil
}

// Tools returns the tools d can serve. Remote tools need a client, index
// tools need a store, and build tools need both.
func Tools(d *Deps) []server.ServerTool {
	var out []server.ServerTool

	resolveTool := mcptools.NewResolveTool(mcptools.NewProjectSource(d.Client, d.Store))
	out = append(out, server.ServerTool{Tool: resolveTool.Definition(), Handler: resolveTool.Handle})

	if d.Client != nil {
		discoverTool := mcptools.NewDiscoverTool(d.Client, d.Discoverer)
		out = append(out, server.ServerTool{Tool: discoverTool.Definition(), Handler: discoverTool.Handle})

		workflowTool := mcptools.NewWorkflowTool(d.Engine, d.Config.WorkflowOptions())
		out = append(out, server.ServerTool{Tool: workflowTool.Definition(), Handler: workflowTool.Handle})
	}

	if d.Builder != nil {
		buildTool := mcptools.NewBuildTool(d.Builder)
		out = append(out, server.ServerTool{Tool: buildTool.Definition(), Handler: buildTool.Handle})

		refreshTool := mcptools.NewRefreshTool(d.Builder)
		out = append(out, server.ServerTool{Tool: refreshTool.Definition(), Handler: refreshTool.Handle})
	}

	if d.Store != nil {
		searchTool := mcptools.NewSearchTool(d.Store)
		out = append(out, server.ServerTool{Tool: searchTool.Definition(), Handler: searchTool.Handle})

		statsTool := mcptools.NewStatsTool(d.Store)
		out = append(out, server.ServerTool{Tool: statsTool.Definition(), Handler: statsTool.Handle})

		patchTool := mcptools.NewPatchCardTool(d.Store)
		out = append(out, server.ServerTool{Tool: patchTool.Definition(), Handler: patchTool.Handle})

		clearTool := mcptools.NewClearTool(d.Store)
		out = append(out, server.ServerTool{Tool: clearTool.Definition(), Handler: clearTool.Handle})

		exportTool := mcptools.NewExportTool(d.Store)
		out = append(out, server.ServerTool{Tool: exportTool.Definition(), Handler: exportTool.Handle})
	}
	return out
}

// noop is the cleanup function used when the index is disabled.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use boardmirror.
func serverInstructions() string {
	return `You have access to boardmirror, a mirror of the user's project portfolio: projects, their kanban boards (card tables), cards and people.

## Finding things

- Users name projects loosely ("bpbp", "reign", "the buddypress one"). Always call resolve_project first and use the returned id. If the best candidate is not an exact or strong match, ask which project they meant.
- search_index and index_stats read the local index only and answer instantly. If they report an empty index, call build_index once.
- discover_columns always asks the remote system and shows each column's workflow type.

## Keeping the index fresh

- build_index rescans everything and replaces the index only when it completes. It can take minutes.
- After changing one project, prefer refresh_project over a full rebuild.
- patch_card corrects the local index only; it never changes the remote system.

## Automations

run_workflow changes the remote board. ALWAYS run it with dry_run=true first, show the planned outcomes, and only run it for real when the user agrees.

- auto-assign: open unassigned cards get a person by keyword rules (bug → developer, feature → lead, test → qa, urgent → lead)
- move-completed: completed cards move into the done column
- escalate-overdue: overdue cards get an urgent marker, the lead as assignee and a comment
- balance-workload: cards move from assignees above max_cards to assignees well below it

Report failed and skipped outcomes to the user; a run never stops at the first failing card.`
}
