package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func promptText(t *testing.T, r *mcp.GetPromptResult) string {
	t.Helper()
	if len(r.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(r.Messages))
	}
	tc, ok := r.Messages[0].Content.(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", r.Messages[0].Content)
	}
	return tc.Text
}

func TestTriagePrompt_Definition(t *testing.T) {
	def := NewTriagePrompt().Definition()
	if def.Name != "portfolio-triage" {
		t.Errorf("prompt name = %q", def.Name)
	}
	if len(def.Arguments) != 2 {
		t.Errorf("arguments = %d, want 2", len(def.Arguments))
	}
}

func TestTriagePrompt_Project(t *testing.T) {
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"project": "bpbp"}

	r, err := NewTriagePrompt().Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	text := promptText(t, r)
	for _, want := range []string{"query='bpbp'", "resolve_project", "refresh_project", "dry_run=true", "ask me which ones to apply"} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt missing %q:\n%s", want, text)
		}
	}
	if r.Description != "Triage project: bpbp" {
		t.Errorf("Description = %q", r.Description)
	}
}

func TestTriagePrompt_PortfolioApply(t *testing.T) {
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"apply": "YES"}

	r, err := NewTriagePrompt().Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	text := promptText(t, r)
	if !strings.Contains(text, "whole project portfolio") || !strings.Contains(text, "without dry_run, and report") {
		t.Errorf("unexpected prompt:\n%s", text)
	}
	if strings.Contains(text, "resolve_project") {
		t.Error("portfolio triage should not resolve a single project")
	}
}

func TestStatusPrompt_Handle(t *testing.T) {
	r, err := NewStatusPrompt().Handle(context.Background(), mcp.GetPromptRequest{})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(promptText(t, r), "index_stats") {
		t.Error("status prompt should call index_stats")
	}
}
