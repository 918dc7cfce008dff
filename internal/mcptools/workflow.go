package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/boardmirror/internal/automation"
	"github.com/mark3labs/mcp-go/mcp"
)

// WorkflowTool handles the run_workflow MCP tool.
type WorkflowTool struct {
	engine   *automation.Engine
	defaults automation.Options
}

// NewWorkflowTool creates a WorkflowTool. defaults are the configured
// options each call starts from.
func NewWorkflowTool(engine *automation.Engine, defaults automation.Options) *WorkflowTool {
	return &WorkflowTool{engine: engine, defaults: defaults}
}

// Definition returns the MCP tool definition for run_workflow.
func (t *WorkflowTool) Definition() mcp.Tool {
	names := make([]string, 0, len(automation.Workflows))
	for _, wf := range automation.Workflows {
		names = append(names, string(wf))
	}
	return mcp.NewTool("run_workflow",
		mcp.WithDescription(
			"Run a board automation on one project against the remote system.\n"+
				"- auto-assign: give open unassigned cards to a person by keyword rules\n"+
				"- move-completed: move completed cards into the done column\n"+
				"- escalate-overdue: mark, add the lead to and comment on overdue cards\n"+
				"- balance-workload: move cards from overloaded assignees to lighter ones\n"+
				"Use dry_run=true to see the plan without changing anything.",
		),
		mcp.WithString("workflow",
			mcp.Required(),
			mcp.Description("Workflow to run"),
			mcp.Enum(names...),
		),
		mcp.WithNumber("project_id",
			mcp.Required(),
			mcp.Description("Project id (use resolve_project to find it)"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Plan only, change nothing (default: false)"),
		),
		mcp.WithString("rules",
			mcp.Description("auto-assign: extra keyword:role pairs, comma separated, tried before the defaults (e.g. \"css:designer,db:backend\")"),
		),
		mcp.WithString("done_column",
			mcp.Description("move-completed: name of the destination column (default: first done-type column)"),
		),
		mcp.WithNumber("overdue_days",
			mcp.Description(fmt.Sprintf("escalate-overdue: minimum whole days overdue (default: %d)", t.defaults.OverdueDays)),
		),
		mcp.WithBoolean("mark_urgent",
			mcp.Description("escalate-overdue: prefix the title with the urgent marker (default: true)"),
		),
		mcp.WithBoolean("add_lead",
			mcp.Description("escalate-overdue: add the project lead as assignee (default: true)"),
		),
		mcp.WithBoolean("notify",
			mcp.Description("escalate-overdue: post an overdue comment (default: true)"),
		),
		mcp.WithString("lead_role",
			mcp.Description("escalate-overdue: role text that identifies the lead (default: lead)"),
		),
		mcp.WithNumber("max_cards",
			mcp.Description(fmt.Sprintf("balance-workload: open cards per assignee before rebalancing (default: %d)", t.defaults.MaxCards)),
		),
	)
}

// Handle processes the run_workflow tool call.
func (t *WorkflowTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wf, err := automation.ParseWorkflow(req.GetString("workflow", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	projectID, errResult := requireID(req, "project_id")
	if errResult != nil {
		return errResult, nil
	}

	opts := t.defaults
	opts.DryRun = boolArg(req, "dry_run", false)
	opts.DoneColumn = strings.TrimSpace(req.GetString("done_column", opts.DoneColumn))
	opts.MarkUrgent = boolArg(req, "mark_urgent", opts.MarkUrgent)
	opts.AddLead = boolArg(req, "add_lead", opts.AddLead)
	opts.Notify = boolArg(req, "notify", opts.Notify)
	opts.LeadRole = req.GetString("lead_role", opts.LeadRole)
	opts.OverdueDays = intArg(req, "overdue_days", opts.OverdueDays)
	opts.MaxCards = intArg(req, "max_cards", opts.MaxCards)
	if opts.OverdueDays < 1 {
		return mcp.NewToolResultError("'overdue_days' must be at least 1"), nil
	}
	if opts.MaxCards < 2 {
		return mcp.NewToolResultError("'max_cards' must be at least 2"), nil
	}
	if raw := req.GetString("rules", ""); raw != "" {
		rules, err := ParseRules(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		opts.Rules = append(rules, opts.Rules...)
	}

	res, err := t.engine.Run(ctx, wf, projectID, opts)
	if err != nil {
		if errors.Is(err, automation.ErrNoBoard) {
			return mcp.NewToolResultError(fmt.Sprintf("project %d has no board to automate", projectID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", wf, err)), nil
	}
	return mcp.NewToolResultText(formatResult(res)), nil
}

// ParseRules reads "keyword:role" pairs separated by commas.
func ParseRules(raw string) ([]automation.Rule, error) {
	var rules []automation.Rule
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kw, role, ok := strings.Cut(pair, ":")
		kw, role = strings.TrimSpace(kw), strings.TrimSpace(role)
		if !ok || kw == "" || role == "" {
			return nil, fmt.Errorf("rule %q must look like keyword:role", pair)
		}
		rules = append(rules, automation.Rule{Keyword: kw, Role: role})
	}
	return rules, nil
}

var statusIcon = map[automation.Status]string{
	automation.StatusSucceeded: "✅",
	automation.StatusFailed:    "❌",
	automation.StatusSkipped:   "⏭️",
	automation.StatusPlanned:   "📝",
}

// formatResult renders a workflow result as markdown.
func formatResult(r *automation.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s on %s (id %d)", r.Workflow, r.ProjectName, r.ProjectID)
	if r.DryRun {
		b.WriteString(" [dry run]")
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Run %s: %d succeeded, %d failed, %d skipped, %d planned\n",
		r.RunID, r.Succeeded(), r.Failed(), r.Count(automation.StatusSkipped), r.Count(automation.StatusPlanned))
	if r.Message != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Message)
	}
	if len(r.Outcomes) > 0 {
		b.WriteString("\n")
	}
	for _, o := range r.Outcomes {
		fmt.Fprintf(&b, "- %s **%s** (card %d) %s", statusIcon[o.Status], o.CardTitle, o.CardID, o.Action)
		if o.Detail != "" {
			fmt.Fprintf(&b, ": %s", o.Detail)
		}
		if o.Error != "" {
			fmt.Fprintf(&b, " (error: %s)", o.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}
