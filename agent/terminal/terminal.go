package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/m4xw311/pivot/agent"
	"github.com/m4xw311/pivot/session"
)

// Terminal handles the terminal/CLI interaction mode for the agent.
type Terminal struct {
	agent   *agent.Agent
	in      io.Reader
	out     io.Writer
	scanner *bufio.Scanner

	// spinner only makes sense on a real terminal
	useSpinner bool

	userStyle   *color.Color
	answerStyle *color.Color
	toolStyle   *color.Color
	noticeStyle *color.Color
	errorStyle  *color.Color
}

// New creates a terminal on stdin/stdout.
func New(a *agent.Agent) *Terminal {
	t := NewWithIO(a, os.Stdin, os.Stdout)
	t.useSpinner = isatty.IsTerminal(os.Stdout.Fd())
	return t
}

// NewWithIO creates a terminal on the given streams. The spinner stays off
// so output is plain text, which also makes the terminal scriptable.
func NewWithIO(a *agent.Agent, in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		agent:       a,
		in:          in,
		out:         out,
		userStyle:   color.New(color.FgCyan, color.Bold),
		answerStyle: color.New(color.FgGreen),
		toolStyle:   color.New(color.FgYellow),
		noticeStyle: color.New(color.FgHiBlack),
		errorStyle:  color.New(color.FgRed),
	}
}

// Run starts the interactive session. An initial prompt from the command
// line is processed before reading from the input stream.
func (t *Terminal) Run(ctx context.Context, initialPrompt string) error {
	t.scanner = bufio.NewScanner(t.in)

	provider, model := t.agent.ActiveProvider()
	t.noticeStyle.Fprintf(t.out, "pivot ready on %s / %s. Type /help for commands.\n", provider, model)

	if initialPrompt != "" {
		if err := t.processTurn(ctx, initialPrompt); err != nil {
			return err
		}
	}

	for {
		t.userStyle.Fprint(t.out, "You: ")
		line, ok := t.readLine()
		if !ok {
			// EOF or read error ends the session
			break
		}
		if line == "" {
			continue
		}

		if handled, quit := t.handleCommand(ctx, line); handled {
			if quit {
				break
			}
			continue
		}

		if err := t.processTurn(ctx, line); err != nil {
			t.errorStyle.Fprintf(t.out, "Error: %v\n", err)
		}
	}

	return t.scanner.Err()
}

func (t *Terminal) readLine() (string, bool) {
	if !t.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(t.scanner.Text()), true
}

// processTurn handles a single user input turn. The spinner runs until the
// backend produces its first visible output.
func (t *Terminal) processTurn(ctx context.Context, userInput string) error {
	var spin *spinner.Spinner
	if t.useSpinner {
		spin = spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(t.out))
		spin.Suffix = " thinking..."
		spin.Start()
	}
	stopSpin := func() {
		if spin != nil {
			spin.Stop()
		}
	}
	defer stopSpin()

	streaming := false
	breakLine := func() {
		if streaming {
			fmt.Fprintln(t.out)
			streaming = false
		}
	}

	t.agent.OnToolCall = func(call session.ToolCall) {
		stopSpin()
		breakLine()
		switch t.agent.Verbosity {
		case agent.ToolVerbosityAll:
			t.toolStyle.Fprintf(t.out, "Pivot wants to call tool `%s` with args: %v\n", call.Name, call.Args)
		case agent.ToolVerbosityInfo:
			t.toolStyle.Fprintf(t.out, "Pivot wants to call tool `%s`\n", call.Name)
		}
	}
	t.agent.OnToolResult = func(call session.ToolCall, result string) {
		if t.agent.Verbosity == agent.ToolVerbosityAll {
			t.toolStyle.Fprintf(t.out, "Tool `%s` output: %s\n", call.Name, result)
		}
	}
	t.agent.ConfirmTool = func(call session.ToolCall) bool {
		stopSpin()
		breakLine()
		t.userStyle.Fprint(t.out, "Do you want to allow this? (y/n): ")
		answer, ok := t.readLine()
		return ok && strings.ToLower(answer) == "y"
	}

	_, err := t.agent.Respond(ctx, userInput, func(delta string) {
		stopSpin()
		if !streaming {
			t.answerStyle.Fprint(t.out, "Pivot: ")
			streaming = true
		}
		fmt.Fprint(t.out, delta)
	})
	if err != nil {
		breakLine()
		return err
	}
	if streaming {
		fmt.Fprintln(t.out)
	} else {
		t.answerStyle.Fprintln(t.out, "Pivot:")
	}
	return nil
}

// handleCommand runs a slash command. It reports whether the line was a
// command and whether the session should end.
func (t *Terminal) handleCommand(ctx context.Context, line string) (handled, quit bool) {
	if !strings.HasPrefix(line, "/") {
		return false, false
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return true, true
	case "/help":
		t.printHelp()
	case "/clear":
		t.agent.ClearSession()
		t.noticeStyle.Fprintln(t.out, "Session cleared.")
	case "/context":
		t.printContext()
	case "/save":
		reason := strings.TrimSpace(strings.TrimPrefix(line, "/save"))
		t.noticeStyle.Fprintln(t.out, t.agent.SaveContext(ctx, reason))
	case "/provider":
		t.handleProvider(ctx, fields[1:])
	case "/tools":
		t.handleTools()
	default:
		t.errorStyle.Fprintf(t.out, "Unknown command %s. Type /help for commands.\n", fields[0])
	}
	return true, false
}

func (t *Terminal) printHelp() {
	fmt.Fprint(t.out, `Commands:
  /provider              list configured providers and models
  /provider NAME [KEY]   switch provider, optionally picking a model key
  /tools                 list tools and toggle them by number
  /save [REASON]         write the conversation to the context file
  /context               print the conversation so far
  /clear                 forget the conversation
  /help                  show this help
  /exit, /quit           leave
Anything else is sent to the model.
`)
}

func (t *Terminal) printContext() {
	msgs := t.agent.SessionContext()
	if len(msgs) == 0 {
		t.noticeStyle.Fprintln(t.out, "Session is empty.")
		return
	}
	for i, msg := range msgs {
		if msg.Role == session.RoleTool {
			for _, res := range msg.Results() {
				t.toolStyle.Fprintf(t.out, "[%d] %s -> %s\n", i+1, res.ToolName, res.Content)
			}
			continue
		}
		fmt.Fprintf(t.out, "[%d] %s: %s\n", i+1, msg.Role, msg.Content)
		for _, call := range msg.ToolCalls {
			t.toolStyle.Fprintf(t.out, "    requested %s(%v)\n", call.Name, call.Args)
		}
	}
}

func (t *Terminal) handleProvider(ctx context.Context, args []string) {
	catalog := t.agent.Catalog()
	if len(args) == 0 {
		active, model := t.agent.ActiveProvider()
		for _, name := range catalog.Names() {
			prov, err := catalog.Get(name)
			if err != nil {
				continue
			}
			marker := " "
			if name == active {
				marker = "*"
			}
			fmt.Fprintf(t.out, "%s %s (%s) models: %s\n", marker, name, prov.Type, strings.Join(prov.ModelKeys(), ", "))
		}
		t.noticeStyle.Fprintf(t.out, "Active: %s / %s\n", active, model)
		return
	}

	modelKey := ""
	if len(args) > 1 {
		modelKey = args[1]
	}
	if err := t.agent.SwitchProvider(ctx, args[0], modelKey); err != nil {
		t.errorStyle.Fprintf(t.out, "Error: %v\n", err)
		return
	}
	provider, model := t.agent.ActiveProvider()
	t.noticeStyle.Fprintf(t.out, "Switched to %s / %s\n", provider, model)
}

// handleTools shows a numbered menu and toggles tools until the user
// enters an empty line.
func (t *Terminal) handleTools() {
	reg := t.agent.Registry()
	for {
		names := reg.Names()
		if len(names) == 0 {
			t.noticeStyle.Fprintln(t.out, "No tools registered.")
			return
		}
		for i, name := range names {
			mark := " "
			if reg.Enabled(name) {
				mark = "x"
			}
			fmt.Fprintf(t.out, "%2d. [%s] %s\n", i+1, mark, name)
		}
		t.noticeStyle.Fprint(t.out, "Toggle by number (Enter to finish): ")
		line, ok := t.readLine()
		if !ok || line == "" {
			return
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(names) {
			t.errorStyle.Fprintln(t.out, "Not a valid tool number.")
			continue
		}
		name := names[n-1]
		if reg.Enabled(name) {
			reg.Disable(name)
		} else {
			reg.Enable(name)
		}
	}
}
