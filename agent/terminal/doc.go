// Package terminal implements the command-line interaction mode for the
// pivot agent.
//
// It reads user turns line by line, streams the model's answer as it
// arrives, and shows tool activity according to the agent's verbosity
// setting. In prompt mode it asks for confirmation before each tool call.
// A spinner covers backend latency until the first visible output, and it
// is only shown when stdout is a real terminal.
//
// # Usage
//
//	ag, err := agent.New(ctx, catalog, registry, systemPrompt, contextFile)
//	if err != nil {
//	    // handle error
//	}
//
//	term := terminal.New(ag)
//	err = term.Run(ctx, initialPrompt)
//
// NewWithIO takes explicit streams for tests and scripted use; it never
// shows the spinner.
//
// # Commands
//
// Lines starting with / are commands rather than user turns:
//
//   - /provider lists providers; /provider NAME [KEY] switches live, the
//     conversation carries over to the new backend
//   - /tools lists registered tools and toggles them by number
//   - /save [REASON] snapshots the conversation to the context file
//   - /context prints the conversation so far
//   - /clear forgets the conversation
//   - /exit and /quit end the session, as does end of input
package terminal
