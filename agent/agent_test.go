package agent

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/m4xw311/pivot/config"
	"github.com/m4xw311/pivot/llm"
	"github.com/m4xw311/pivot/session"
	"github.com/m4xw311/pivot/tools"
)

// scriptedTurn is one backend response: deltas first, then tool calls,
// then an optional terminal error.
type scriptedTurn struct {
	deltas []string
	calls  []session.ToolCall
	err    error
}

// scriptedClient plays back turns in order and records every request.
type scriptedClient struct {
	turns []scriptedTurn
	reqs  []llm.ChatRequest
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	c.reqs = append(c.reqs, req)
	if len(c.turns) == 0 {
		return nil, &llm.ProviderError{Provider: "scripted", Message: "no turns left"}
	}
	turn := c.turns[0]
	c.turns = c.turns[1:]

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		for _, d := range turn.deltas {
			out <- llm.StreamChunk{Delta: d}
		}
		if len(turn.calls) > 0 {
			out <- llm.StreamChunk{ToolCalls: turn.calls}
		}
		if turn.err != nil {
			out <- llm.StreamChunk{Err: turn.err}
		}
	}()
	return out, nil
}

func installClient(t *testing.T, c llm.Client) {
	t.Helper()
	orig := newClient
	newClient = func(ctx context.Context, prov config.Provider) (llm.Client, error) {
		return c, nil
	}
	t.Cleanup(func() { newClient = orig })
}

func testCatalog() *config.Providers {
	return &config.Providers{
		Default: "local",
		Providers: []config.Provider{
			{
				Name:         "local",
				Type:         config.TypeOllama,
				DefaultModel: "small",
				Models:       []config.Model{{Name: "llama3.2:3b", Key: "small"}},
			},
			{
				Name:         "cloud",
				Type:         config.TypeOpenAI,
				DefaultModel: "big",
				Models:       []config.Model{{Name: "openai/gpt-4o", Key: "big"}},
			},
		},
	}
}

// countingTool records executions and returns a fixed result.
type countingTool struct {
	name   string
	result string
	count  int
}

func (t *countingTool) Name() string { return t.name }

func (t *countingTool) Schema() llm.ToolDefinition {
	return llm.ToolDefinition{Name: t.name, Description: "test tool"}
}

func (t *countingTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	t.count++
	return t.result, nil
}

func newTestAgent(t *testing.T, client llm.Client, reg *tools.Registry) *Agent {
	t.Helper()
	installClient(t, client)
	if reg == nil {
		reg = tools.NewRegistry()
	}
	a, err := New(context.Background(), testCatalog(), reg, "be terse", "ctx.md")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestRespondPlainText(t *testing.T) {
	client := &scriptedClient{turns: []scriptedTurn{
		{deltas: []string{"Hel", "lo ", "there"}},
	}}
	a := newTestAgent(t, client, nil)

	var streamed strings.Builder
	got, err := a.Respond(context.Background(), "hi", func(d string) { streamed.WriteString(d) })
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got != "Hello there" {
		t.Errorf("answer = %q, want %q", got, "Hello there")
	}
	if streamed.String() != got {
		t.Errorf("onDelta saw %q, answer was %q", streamed.String(), got)
	}

	msgs := a.SessionContext()
	if len(msgs) != 2 {
		t.Fatalf("history length = %d, want 2", len(msgs))
	}
	if msgs[0].Role != session.RoleUser || msgs[0].Content != "hi" {
		t.Errorf("first message = %+v, want user 'hi'", msgs[0])
	}
	if msgs[1].Role != session.RoleAssistant || msgs[1].Content != "Hello there" {
		t.Errorf("second message = %+v, want assistant answer", msgs[1])
	}
}

func TestRespondSendsSystemPromptAndTools(t *testing.T) {
	client := &scriptedClient{turns: []scriptedTurn{{deltas: []string{"ok"}}}}
	reg := tools.NewRegistry()
	reg.Register(&countingTool{name: "probe", result: "x"})
	a := newTestAgent(t, client, reg)

	if _, err := a.Respond(context.Background(), "hi", nil); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	req := client.reqs[0]
	if req.Model != "llama3.2:3b" {
		t.Errorf("model = %q, want resolved default model", req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != session.RoleSystem {
		t.Fatalf("messages = %+v, want system prompt first", req.Messages)
	}
	if req.Messages[0].Content != "be terse" {
		t.Errorf("system prompt = %q", req.Messages[0].Content)
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != "probe" {
		t.Errorf("tools = %+v, want the enabled schema", req.Tools)
	}
}

func TestRespondExecutesToolsAndBatchesResults(t *testing.T) {
	client := &scriptedClient{turns: []scriptedTurn{
		{
			deltas: []string{"Let me check."},
			calls: []session.ToolCall{
				{ID: "c1", Name: "probe", Args: map[string]interface{}{"path": "a.txt"}},
				{ID: "c2", Name: "probe", Args: map[string]interface{}{"path": "b.txt"}},
			},
		},
		{deltas: []string{"Both files exist."}},
	}}
	tool := &countingTool{name: "probe", result: "found it"}
	reg := tools.NewRegistry()
	reg.Register(tool)
	a := newTestAgent(t, client, reg)

	var calls, results []string
	a.OnToolCall = func(c session.ToolCall) { calls = append(calls, c.Name) }
	a.OnToolResult = func(c session.ToolCall, r string) { results = append(results, r) }

	got, err := a.Respond(context.Background(), "check a and b", nil)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got != "Both files exist." {
		t.Errorf("answer = %q", got)
	}
	if tool.count != 2 {
		t.Errorf("tool executed %d times, want 2", tool.count)
	}
	if len(calls) != 2 || len(results) != 2 {
		t.Errorf("hooks saw %d calls, %d results, want 2 and 2", len(calls), len(results))
	}

	// user, assistant with calls, one batched tool message, final assistant
	msgs := a.SessionContext()
	if len(msgs) != 4 {
		t.Fatalf("history length = %d, want 4", len(msgs))
	}
	toolMsg := msgs[2]
	if toolMsg.Role != session.RoleTool {
		t.Fatalf("third message role = %q, want tool", toolMsg.Role)
	}
	res := toolMsg.Results()
	if len(res) != 2 {
		t.Fatalf("tool message carries %d results, want 2", len(res))
	}
	if res[0].ToolCallID != "c1" || res[1].ToolCallID != "c2" {
		t.Errorf("result ids = %q, %q", res[0].ToolCallID, res[1].ToolCallID)
	}
	if res[0].Content != "found it" {
		t.Errorf("result content = %q", res[0].Content)
	}

	// the second request must replay the whole exchange
	if len(client.reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(client.reqs))
	}
	if len(client.reqs[1].Messages) != 4 {
		t.Errorf("second request has %d messages, want system + 3 history", len(client.reqs[1].Messages))
	}
}

func TestRespondIterationBudget(t *testing.T) {
	// a model that never stops asking for tools
	turns := make([]scriptedTurn, 8)
	for i := range turns {
		turns[i] = scriptedTurn{
			deltas: []string{"still working"},
			calls:  []session.ToolCall{{ID: "c", Name: "probe", Args: map[string]interface{}{}}},
		}
	}
	client := &scriptedClient{turns: turns}
	reg := tools.NewRegistry()
	reg.Register(&countingTool{name: "probe", result: "ok"})
	a := newTestAgent(t, client, reg)
	a.maxToolIterations = 3

	got, err := a.Respond(context.Background(), "loop forever", nil)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got != "still working" {
		t.Errorf("answer = %q, want the last streamed text", got)
	}
	if len(client.reqs) != 3 {
		t.Errorf("backend called %d times, want 3", len(client.reqs))
	}
}

func TestRespondPromptModeDecline(t *testing.T) {
	client := &scriptedClient{turns: []scriptedTurn{
		{calls: []session.ToolCall{{ID: "c1", Name: "probe", Args: map[string]interface{}{}}}},
		{deltas: []string{"understood"}},
	}}
	tool := &countingTool{name: "probe", result: "secret"}
	reg := tools.NewRegistry()
	reg.Register(tool)
	a := newTestAgent(t, client, reg)
	a.Mode = ModePrompt
	a.ConfirmTool = func(session.ToolCall) bool { return false }

	if _, err := a.Respond(context.Background(), "go", nil); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if tool.count != 0 {
		t.Errorf("declined tool ran %d times", tool.count)
	}
	res := a.SessionContext()[2].Results()
	if len(res) != 1 || res[0].Content != declinedResult {
		t.Errorf("declined result = %+v, want %q", res, declinedResult)
	}
}

func TestRespondStreamError(t *testing.T) {
	client := &scriptedClient{turns: []scriptedTurn{
		{deltas: []string{"partial"}, err: &llm.ProviderError{Provider: "scripted", Message: "boom"}},
	}}
	a := newTestAgent(t, client, nil)

	_, err := a.Respond(context.Background(), "hi", nil)
	if err == nil {
		t.Fatal("expected the stream error to surface")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v", err)
	}
}

func TestSwitchProviderKeepsHistory(t *testing.T) {
	client := &scriptedClient{turns: []scriptedTurn{
		{deltas: []string{"first answer"}},
		{deltas: []string{"second answer"}},
	}}
	a := newTestAgent(t, client, nil)

	if _, err := a.Respond(context.Background(), "one", nil); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if err := a.SwitchProvider(context.Background(), "cloud", "big"); err != nil {
		t.Fatalf("SwitchProvider: %v", err)
	}

	prov, model := a.ActiveProvider()
	if prov != "cloud" || model != "openai/gpt-4o" {
		t.Errorf("active = %s/%s", prov, model)
	}
	if len(a.SessionContext()) != 2 {
		t.Errorf("history length after switch = %d, want 2", len(a.SessionContext()))
	}

	// the next turn replays the old conversation against the new backend
	if _, err := a.Respond(context.Background(), "two", nil); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	second := client.reqs[1]
	if second.Model != "openai/gpt-4o" {
		t.Errorf("second request model = %q", second.Model)
	}
	if len(second.Messages) != 4 {
		t.Errorf("second request messages = %d, want system + 3 history", len(second.Messages))
	}
}

func TestSwitchProviderUnknown(t *testing.T) {
	a := newTestAgent(t, &scriptedClient{}, nil)
	if err := a.SwitchProvider(context.Background(), "nope", ""); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if prov, _ := a.ActiveProvider(); prov != "local" {
		t.Errorf("failed switch changed the active provider to %q", prov)
	}
}

func TestSaveContextThroughRegistry(t *testing.T) {
	t.Chdir(t.TempDir())

	client := &scriptedClient{turns: []scriptedTurn{{deltas: []string{"hello"}}}}
	reg := tools.NewRegistry()
	a := newTestAgent(t, client, reg)
	reg.Register(tools.NewSaveContextTool(a))

	if _, err := a.Respond(context.Background(), "hi", nil); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	result := a.SaveContext(context.Background(), "end of session")
	if !strings.Contains(result, "Saved 2 messages") {
		t.Errorf("result = %q", result)
	}
	data, err := os.ReadFile("ctx.md")
	if err != nil {
		t.Fatalf("reading context file: %v", err)
	}
	if !strings.Contains(string(data), "# Session Context") {
		t.Errorf("transcript missing header:\n%s", data)
	}
	if !strings.Contains(string(data), "end of session") {
		t.Errorf("transcript missing reason:\n%s", data)
	}
}

func TestClearSession(t *testing.T) {
	client := &scriptedClient{turns: []scriptedTurn{{deltas: []string{"hi"}}}}
	a := newTestAgent(t, client, nil)
	if _, err := a.Respond(context.Background(), "hello", nil); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	a.ClearSession()
	if len(a.SessionContext()) != 0 {
		t.Errorf("history not cleared: %d messages", len(a.SessionContext()))
	}
}
