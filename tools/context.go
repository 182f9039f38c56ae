package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m4xw311/pivot/errors"
	"github.com/m4xw311/pivot/llm"
	"github.com/m4xw311/pivot/session"
)

// SaveContextToolName is the registry name of the context snapshot tool.
const SaveContextToolName = "save_context"

// ContextProvider exposes live views of the agent state the save_context
// tool writes out. Implementations must return current values on every
// call; the tool never snapshots at construction time.
type ContextProvider interface {
	SystemPrompt() string
	SessionContext() []session.Message
	ContextFilePath() string
}

// SaveContextTool writes the current conversation to the context file as a
// readable transcript. Each save overwrites the previous one.
type SaveContextTool struct {
	provider ContextProvider
	runID    string
}

func NewSaveContextTool(provider ContextProvider) *SaveContextTool {
	return &SaveContextTool{provider: provider, runID: uuid.New().String()}
}

func (t *SaveContextTool) Name() string { return SaveContextToolName }

func (t *SaveContextTool) Schema() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: "Saves the current conversation to the context file so it survives the session. Call this before risky changes or when asked to remember progress.",
		Parameters: objectSchema(map[string]interface{}{
			"reason": stringProp("Why the context is being saved."),
		}),
	}
}

func (t *SaveContextTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	reason := optionalStringArg(args, "reason", "")

	prompt := t.provider.SystemPrompt()
	messages := t.provider.SessionContext()
	path := t.provider.ContextFilePath()

	transcript := renderTranscript(prompt, messages, reason, t.runID, time.Now())
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "could not create directory %q", dir)
		}
	}
	if err := os.WriteFile(path, []byte(transcript), 0o644); err != nil {
		return "", errors.Wrapf(err, "could not write context file %q", path)
	}
	return fmt.Sprintf("Saved %d messages to %s", len(messages), path), nil
}

// renderTranscript lays the session out as markdown: the system prompt,
// save metadata, then the numbered conversation.
func renderTranscript(prompt string, messages []session.Message, reason, runID string, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Session Context\n\n")
	b.WriteString("## System Prompt\n\n")
	if prompt == "" {
		prompt = "(none)"
	}
	b.WriteString(prompt)
	b.WriteString("\n\n")
	b.WriteString("Saved: " + now.Format(time.RFC3339) + "\n")
	b.WriteString("Run: " + runID + "\n")
	if reason != "" {
		b.WriteString("Reason: " + reason + "\n")
	}
	b.WriteString("\n## Conversation\n\n")

	for i, m := range messages {
		fmt.Fprintf(&b, "[%d] %s:", i+1, m.Role)
		if m.Role == session.RoleTool {
			b.WriteString("\n")
			for _, r := range m.Results() {
				fmt.Fprintf(&b, "    %s -> %s\n", r.ToolName, r.Content)
			}
			continue
		}
		if m.Content != "" {
			b.WriteString(" " + m.Content)
		}
		b.WriteString("\n")
		for _, c := range m.ToolCalls {
			args, err := json.Marshal(c.Args)
			if err != nil {
				args = []byte("{}")
			}
			fmt.Fprintf(&b, "    requested %s(%s)\n", c.Name, args)
		}
	}
	return b.String()
}
