// Package agent implements the conversation loop that sits between the
// user, the language model backends, and the tool registry.
//
// # Overview
//
// An Agent owns a session: an append-only message history, the active
// backend client, and the system prompt. One call to Respond handles one
// user turn. The agent streams the model's reply, and when the reply asks
// for tool calls it executes them through the registry, appends the
// results to the history, and asks the model again. The loop ends when the
// model answers in plain text or after a fixed number of tool iterations,
// in which case the last text is returned rather than an error.
//
// # Providers
//
// The agent is constructed on the catalog's default provider and can be
// moved to any other declared provider or model with SwitchProvider. Only
// the client changes; the history survives the switch, so a conversation
// started against a local model can continue against a hosted one.
//
// # Tool gating
//
// Mode decides what happens when the model requests a tool. In ModeAuto
// the call runs immediately. In ModePrompt the ConfirmTool hook is asked
// first, and a refusal is reported back to the model as a normal tool
// result so the conversation can continue. OnToolCall and OnToolResult
// let an interactive surface display progress without being involved in
// execution.
//
// # Usage
//
//	catalog, err := config.LoadProviders(path)
//	if err != nil {
//		log.Fatal(err)
//	}
//	reg := tools.NewRegistry()
//	reg.Register(tools.NewReadFileTool(access))
//
//	ag, err := agent.New(ctx, catalog, reg, "", ".pivot/context.md")
//	if err != nil {
//		log.Fatal(err)
//	}
//	answer, err := ag.Respond(ctx, "what does main.go do?", func(delta string) {
//		fmt.Print(delta)
//	})
package agent
