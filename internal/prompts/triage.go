// Package prompts implements the MCP prompt handlers of boardmirror.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to run a specific sequence of tools. Unlike tools
// (which the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// TriagePrompt handles the portfolio-triage MCP prompt.
// It walks the AI from a loose project name to a reviewed automation run.
type TriagePrompt struct{}

// NewTriagePrompt creates a TriagePrompt.
func NewTriagePrompt() *TriagePrompt {
	return &TriagePrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *TriagePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("portfolio-triage",
		mcp.WithPromptDescription(
			"Triage a project board: find the project, review its overdue and unassigned "+
				"cards, and plan the automations that would clean it up. "+
				"Without a project, triages the whole portfolio.",
		),
		mcp.WithArgument("project",
			mcp.ArgumentDescription("Project name, acronym or id. Empty for the whole portfolio"),
		),
		mcp.WithArgument("apply",
			mcp.ArgumentDescription("'yes' to run the planned workflows after the dry run. Default: no"),
		),
	)
}

// Handle processes the portfolio-triage prompt request.
func (p *TriagePrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	project := ""
	apply := false
	if args := req.Params.Arguments; args != nil {
		project = strings.TrimSpace(args["project"])
		apply = strings.EqualFold(strings.TrimSpace(args["apply"]), "yes")
	}

	var b strings.Builder
	if project == "" {
		b.WriteString("Please triage my whole project portfolio.\n\n" +
			"1. Run `index_stats`. If the index is empty or more than a day old, run `build_index` first\n" +
			"2. Show the projects with the most overdue and unassigned open cards\n" +
			"3. Pick the three projects that need attention most and triage each one as below\n\n")
	} else {
		fmt.Fprintf(&b, "Please triage the board of the project '%s'.\n\n", project)
		fmt.Fprintf(&b, "1. Run `resolve_project` with query='%s'. If the best candidate is not an exact or strong match, ask me which project I meant\n", project)
		b.WriteString("2. Run `refresh_project` for it so the index is current\n")
	}
	b.WriteString("For each project:\n" +
		"- Run `search_index` with type='cards', the project_id and completed=false, and list overdue and unassigned cards\n" +
		"- Run `run_workflow` with dry_run=true for escalate-overdue, auto-assign, move-completed and balance-workload\n" +
		"- Summarize the planned changes per workflow in a short table\n\n")
	if apply {
		b.WriteString("Then run the workflows whose plan has at least one planned change, without dry_run, and report the outcomes.")
	} else {
		b.WriteString("Do not run any workflow without dry_run; ask me which ones to apply.")
	}

	desc := "Portfolio triage"
	if project != "" {
		desc = fmt.Sprintf("Triage project: %s", project)
	}
	return &mcp.GetPromptResult{
		Description: desc,
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(b.String()),
			},
		},
	}, nil
}
