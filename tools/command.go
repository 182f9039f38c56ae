package tools

import (
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/m4xw311/pivot/errors"
	"github.com/m4xw311/pivot/llm"
)

const defaultCommandTimeout = 60 * time.Second

// ExecuteCommandTool runs shell commands that match the configured
// allowlist. Every run is bounded by a wall-clock timeout; a command that
// exceeds it is killed and the timeout reported as a failed run.
type ExecuteCommandTool struct {
	allowed []string
	timeout time.Duration
}

func NewExecuteCommandTool(allowed []string, timeout time.Duration) *ExecuteCommandTool {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &ExecuteCommandTool{allowed: allowed, timeout: timeout}
}

func (t *ExecuteCommandTool) Name() string { return "execute_command" }

func (t *ExecuteCommandTool) Schema() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: "Executes a shell command. Only commands matching the configured allowlist run; execution is killed after a timeout.",
		Parameters: objectSchema(map[string]interface{}{
			"command": stringProp("The command line to execute."),
		}, "command"),
	}
}

func (t *ExecuteCommandTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	command, err := stringArg(args, "command")
	if err != nil {
		return "", err
	}
	allowed, err := isCommandAllowed(command, t.allowed)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", errors.Newf("command %q is not allowed by the configured allowlist", command)
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	output, err := cmd.CombinedOutput()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("Command timed out after %s and was killed (exit status -1)\nPartial output:\n%s",
			t.timeout, output), nil
	}
	if err != nil {
		// a failing command is a result the model should see, not a crash
		exitCode := -1
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return fmt.Sprintf("Command failed (exit status %d)\nOutput:\n%s", exitCode, output), nil
	}
	if len(output) == 0 {
		return "Command completed with no output", nil
	}
	return string(output), nil
}
