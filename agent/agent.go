package agent

import (
	"context"
	"strings"

	"github.com/m4xw311/pivot/config"
	"github.com/m4xw311/pivot/llm"
	"github.com/m4xw311/pivot/session"
	"github.com/m4xw311/pivot/tools"
	"github.com/m4xw311/pivot/trace"
)

// Mode controls whether tool calls run unattended or wait for the user.
type Mode string

const (
	// ModeAuto executes tool calls as soon as the model requests them.
	ModeAuto Mode = "auto"
	// ModePrompt asks the user before every tool call.
	ModePrompt Mode = "prompt"
)

// ToolVerbosity controls how much tool activity the interaction surface
// shows. The agent ignores it; it is carried here so every surface sees
// the same setting.
type ToolVerbosity string

const (
	ToolVerbosityNone ToolVerbosity = "none"
	ToolVerbosityInfo ToolVerbosity = "info"
	ToolVerbosityAll  ToolVerbosity = "all"
)

// DefaultSystemPrompt is used when no system_prompt is configured.
const DefaultSystemPrompt = "You are a capable software engineering assistant working in the user's project directory. " +
	"Use the available tools to inspect and change files when an answer needs ground truth instead of guessing. " +
	"Keep responses short and concrete; prefer showing the relevant lines over describing them."

// declinedResult is what the model sees when the user refuses a tool call.
const declinedResult = "Tool execution declined by user."

// defaultMaxToolIterations bounds how many round trips one user turn may
// spend executing tools before the agent answers with whatever it has.
const defaultMaxToolIterations = 10

// newClient builds backend adapters; a variable so tests can substitute a
// scripted client.
var newClient = llm.NewClient

// Agent owns the conversation: it keeps the history, talks to the active
// backend, and runs the request/execute/respond loop for tool calls.
//
// All methods are meant for a single goroutine; the terminal drives one
// turn at a time.
type Agent struct {
	catalog  *config.Providers
	registry *tools.Registry

	client       llm.Client
	providerName string
	model        string

	systemPrompt string
	history      *session.History
	contextFile  string

	maxToolIterations int

	// Mode gates tool execution; Verbosity and the hooks let the
	// interaction surface follow along. All optional.
	Mode         Mode
	Verbosity    ToolVerbosity
	ConfirmTool  func(call session.ToolCall) bool
	OnToolCall   func(call session.ToolCall)
	OnToolResult func(call session.ToolCall, result string)
}

// New builds an agent on the catalog's default provider.
func New(ctx context.Context, catalog *config.Providers, registry *tools.Registry, systemPrompt, contextFile string) (*Agent, error) {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	a := &Agent{
		catalog:           catalog,
		registry:          registry,
		systemPrompt:      systemPrompt,
		history:           session.NewHistory(),
		contextFile:       contextFile,
		maxToolIterations: defaultMaxToolIterations,
		Mode:              ModeAuto,
		Verbosity:         ToolVerbosityInfo,
	}
	if err := a.SwitchProvider(ctx, catalog.Default, ""); err != nil {
		return nil, err
	}
	return a, nil
}

// SwitchProvider resolves a provider and model from the catalog and swaps
// the active client. The conversation history is deliberately untouched, so
// a session can move between backends mid-conversation.
func (a *Agent) SwitchProvider(ctx context.Context, name, modelKey string) error {
	prov, err := a.catalog.Get(name)
	if err != nil {
		return err
	}
	model, err := prov.ResolveModel(modelKey)
	if err != nil {
		return err
	}
	client, err := newClient(ctx, *prov)
	if err != nil {
		return err
	}
	a.client = client
	a.providerName = prov.Name
	a.model = model
	return nil
}

// Respond runs one user turn: it streams the model's answer, executes any
// requested tools, and repeats until the model answers without tool calls
// or the iteration budget runs out. onDelta receives text fragments as they
// arrive and may be nil.
func (a *Agent) Respond(ctx context.Context, userText string, onDelta func(string)) (string, error) {
	a.history.Append(session.UserMessage(userText))

	log := trace.Logger().With().
		Str("turn", trace.TurnID()).
		Str("provider", a.providerName).
		Str("model", a.model).
		Logger()

	var finalText string
	for iteration := 0; iteration < a.maxToolIterations; iteration++ {
		req := a.buildRequest()
		log.Debug().Int("iteration", iteration).Int("messages", len(req.Messages)).Msg("requesting completion")

		stream, err := a.client.StreamChat(ctx, req)
		if err != nil {
			return "", err
		}

		var text strings.Builder
		var calls []session.ToolCall
		for chunk := range stream {
			if chunk.Err != nil {
				return "", chunk.Err
			}
			if chunk.Delta != "" {
				text.WriteString(chunk.Delta)
				if onDelta != nil {
					onDelta(chunk.Delta)
				}
			}
			if len(chunk.ToolCalls) > 0 {
				calls = chunk.ToolCalls
			}
		}
		// adapters close the stream without an error chunk on cancellation
		if err := ctx.Err(); err != nil {
			return "", err
		}

		finalText = text.String()
		a.history.Append(session.AssistantMessage(finalText, calls))

		if len(calls) == 0 {
			return finalText, nil
		}

		results := make([]session.ToolResult, 0, len(calls))
		for _, call := range calls {
			if a.OnToolCall != nil {
				a.OnToolCall(call)
			}
			result := a.executeCall(ctx, call)
			log.Debug().Str("tool", call.Name).Int("result_len", len(result)).Msg("tool executed")
			if a.OnToolResult != nil {
				a.OnToolResult(call, result)
			}
			results = append(results, session.ToolResult{
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Content:    result,
			})
		}
		a.history.Append(session.ToolResultsMessage(results))
	}

	// budget exhausted: answer with the last text rather than failing
	log.Warn().Int("limit", a.maxToolIterations).Msg("tool iteration budget exhausted")
	return finalText, nil
}

func (a *Agent) executeCall(ctx context.Context, call session.ToolCall) string {
	if a.Mode == ModePrompt && a.ConfirmTool != nil && !a.ConfirmTool(call) {
		return declinedResult
	}
	return a.registry.Execute(ctx, call.Name, call.Args)
}

// buildRequest assembles the wire-neutral request: the system prompt first,
// then the history, with the currently enabled tool schemas.
func (a *Agent) buildRequest() llm.ChatRequest {
	msgs := make([]session.Message, 0, a.history.Len()+1)
	if a.systemPrompt != "" {
		msgs = append(msgs, session.Message{Role: session.RoleSystem, Content: a.systemPrompt})
	}
	msgs = append(msgs, a.history.Messages()...)
	return llm.ChatRequest{
		Messages: msgs,
		Model:    a.model,
		Tools:    a.registry.EnabledSchemas(),
	}
}

// SaveContext snapshots the conversation through the save_context tool, so
// a user command and a model-initiated save behave identically.
func (a *Agent) SaveContext(ctx context.Context, reason string) string {
	args := map[string]interface{}{}
	if reason != "" {
		args["reason"] = reason
	}
	return a.registry.Execute(ctx, tools.SaveContextToolName, args)
}

// ClearSession drops the conversation history.
func (a *Agent) ClearSession() {
	a.history.Clear()
}

// SystemPrompt returns the current system prompt.
func (a *Agent) SystemPrompt() string {
	return a.systemPrompt
}

// SetSystemPrompt replaces the system prompt for subsequent turns.
func (a *Agent) SetSystemPrompt(prompt string) {
	a.systemPrompt = prompt
}

// SessionContext returns the conversation as it stands right now.
func (a *Agent) SessionContext() []session.Message {
	return a.history.Messages()
}

// ContextFilePath is where save_context writes its transcript.
func (a *Agent) ContextFilePath() string {
	return a.contextFile
}

// ActiveProvider reports the provider and model currently in use.
func (a *Agent) ActiveProvider() (provider, model string) {
	return a.providerName, a.model
}

// Catalog exposes the provider catalog for listing and switching.
func (a *Agent) Catalog() *config.Providers {
	return a.catalog
}

// Registry exposes the tool registry for the tool management commands.
func (a *Agent) Registry() *tools.Registry {
	return a.registry
}
