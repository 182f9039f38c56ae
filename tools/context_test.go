package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m4xw311/pivot/session"
)

type fakeContextProvider struct {
	prompt string
	msgs   []session.Message
	path   string
}

func (f *fakeContextProvider) SystemPrompt() string { return f.prompt }

func (f *fakeContextProvider) SessionContext() []session.Message { return f.msgs }

func (f *fakeContextProvider) ContextFilePath() string { return f.path }

func TestSaveContextToolWritesTranscript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "context.md")
	provider := &fakeContextProvider{
		prompt: "You are a coding assistant.",
		path:   path,
		msgs: []session.Message{
			session.UserMessage("what is in this directory?"),
			session.AssistantMessage("Let me check.", []session.ToolCall{
				{ID: "call_1", Name: "list_directory", Args: map[string]interface{}{"path": "."}},
			}),
			session.ToolResultsMessage([]session.ToolResult{
				{ToolCallID: "call_1", ToolName: "list_directory", Content: "a.txt"},
			}),
			session.AssistantMessage("Just a.txt.", nil),
		},
	}

	tool := NewSaveContextTool(provider)
	result, err := tool.Execute(context.Background(), map[string]interface{}{"reason": "before refactor"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(result, "Saved 4 messages") {
		t.Errorf("unexpected result: %q", result)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading transcript: %v", err)
	}
	transcript := string(data)

	for _, want := range []string{
		"## System Prompt",
		"You are a coding assistant.",
		"Reason: before refactor",
		"[1] user: what is in this directory?",
		"[2] assistant: Let me check.",
		`requested list_directory({"path":"."})`,
		"list_directory -> a.txt",
		"[4] assistant: Just a.txt.",
	} {
		if !strings.Contains(transcript, want) {
			t.Errorf("transcript missing %q:\n%s", want, transcript)
		}
	}
}

func TestSaveContextToolReadsLiveState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context.md")
	provider := &fakeContextProvider{prompt: "original prompt", path: path}
	tool := NewSaveContextTool(provider)

	// state changes after the tool is constructed
	provider.prompt = "updated prompt"
	provider.msgs = append(provider.msgs, session.UserMessage("first"))

	if _, err := tool.Execute(context.Background(), nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "updated prompt") {
		t.Error("transcript should reflect the prompt at save time")
	}
	if !strings.Contains(string(data), "first") {
		t.Error("transcript should include messages appended after construction")
	}

	// a later save overwrites rather than appends
	provider.msgs = append(provider.msgs, session.UserMessage("second"))
	if _, err := tool.Execute(context.Background(), nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	data, _ = os.ReadFile(path)
	if got := strings.Count(string(data), "# Session Context"); got != 1 {
		t.Errorf("expected one transcript after overwrite, found %d headers", got)
	}
	if !strings.Contains(string(data), "second") {
		t.Error("latest save should include the newest message")
	}
}
