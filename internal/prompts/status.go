package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the index-status MCP prompt.
// It instructs the AI to report how fresh and complete the local index is.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("index-status",
		mcp.WithPromptDescription(
			"Check the local portfolio index: when it was built, what it holds, "+
				"and whether it needs a rebuild.",
		),
	)
}

// Handle processes the index-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Index Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `index_stats` to check the local portfolio index.\n\n" +
						"Then:\n" +
						"1. Tell me when it was last built and how many projects, cards and people it holds\n" +
						"2. If it is empty or older than a day, offer to run `build_index`\n" +
						"3. Point out anything unusual: many overdue cards, a large unassigned bucket, or projects with no cards",
				),
			},
		},
	}, nil
}
