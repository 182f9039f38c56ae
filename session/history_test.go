package session

import "testing"

func TestHistoryAppendAndLen(t *testing.T) {
	h := NewHistory()
	if h.Len() != 0 {
		t.Fatalf("expected empty history, got %d messages", h.Len())
	}

	h.Append(UserMessage("hello"))
	h.Append(AssistantMessage("hi there", nil))

	if h.Len() != 2 {
		t.Fatalf("expected 2 messages, got %d", h.Len())
	}
	msgs := h.Messages()
	if msgs[0].Role != RoleUser || msgs[0].Content != "hello" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Content != "hi there" {
		t.Errorf("unexpected second message: %+v", msgs[1])
	}
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory()
	h.Append(UserMessage("one"))
	h.Append(UserMessage("two"))

	h.Clear()
	if h.Len() != 0 {
		t.Fatalf("expected history to be empty after clear, got %d", h.Len())
	}

	h.Append(UserMessage("three"))
	if h.Len() != 1 {
		t.Fatalf("expected 1 message after clear and append, got %d", h.Len())
	}
}

func TestHistorySnapshotDoesNotGrow(t *testing.T) {
	h := NewHistory()
	h.Append(UserMessage("first"))

	snapshot := h.Messages()
	h.Append(UserMessage("second"))

	if len(snapshot) != 1 {
		t.Errorf("expected earlier snapshot to keep length 1, got %d", len(snapshot))
	}
	if h.Len() != 2 {
		t.Errorf("expected live history length 2, got %d", h.Len())
	}
}

func TestMessageResults(t *testing.T) {
	batched := ToolResultsMessage([]ToolResult{
		{ToolCallID: "call_1", ToolName: "read_file", Content: "data"},
		{ToolCallID: "call_2", ToolName: "list_directory", Content: "entries"},
	})
	if got := batched.Results(); len(got) != 2 || got[1].ToolName != "list_directory" {
		t.Errorf("unexpected batched results: %+v", got)
	}

	legacy := Message{Role: RoleTool, ToolCallID: "call_9", ToolName: "read_file", Content: "data"}
	got := legacy.Results()
	if len(got) != 1 {
		t.Fatalf("expected one synthesized result, got %d", len(got))
	}
	if got[0].ToolCallID != "call_9" || got[0].ToolName != "read_file" || got[0].Content != "data" {
		t.Errorf("unexpected legacy result: %+v", got[0])
	}

	empty := Message{Role: RoleTool}
	if got := empty.Results(); got != nil {
		t.Errorf("expected nil results for empty tool message, got %+v", got)
	}
}
