package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/m4xw311/pivot/agent"
	"github.com/m4xw311/pivot/agent/terminal"
	"github.com/m4xw311/pivot/config"
	"github.com/m4xw311/pivot/tools"
	"github.com/m4xw311/pivot/tools/mcp"
	"github.com/m4xw311/pivot/trace"
)

func main() {
	modeFlag := flag.String("m", "auto", "Execution mode: 'auto' or 'prompt'")
	verbosityFlag := flag.String("tool-verbosity", "info", "Tool verbosity level: 'none', 'info', or 'all'")
	providersFlag := flag.String("providers", "", "Path to the provider catalog (defaults to ./.pivot/providers.json, then ~/.pivot/providers.json)")
	providerFlag := flag.String("p", "", "Provider to start on (defaults to the catalog default)")
	modelFlag := flag.String("model", "", "Model key to start on (defaults to the provider's default_model)")
	traceFlag := flag.Bool("trace", false, "Enable execution tracing to troubleshoot issues")
	flag.Parse()

	// Validate mode
	var mode agent.Mode
	switch *modeFlag {
	case "auto":
		mode = agent.ModeAuto
	case "prompt":
		mode = agent.ModePrompt
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode '%s'. Must be 'auto' or 'prompt'.\n", *modeFlag)
		os.Exit(1)
	}

	// Validate tool verbosity
	var verbosity agent.ToolVerbosity
	switch *verbosityFlag {
	case "none":
		verbosity = agent.ToolVerbosityNone
	case "info":
		verbosity = agent.ToolVerbosityInfo
	case "all":
		verbosity = agent.ToolVerbosityAll
	default:
		fmt.Fprintf(os.Stderr, "Invalid tool verbosity '%s'. Must be 'none', 'info', or 'all'.\n", *verbosityFlag)
		os.Exit(1)
	}

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading settings: %+v\n", err)
		os.Exit(1)
	}
	trace.Init(*traceFlag, settings.LogLevel)

	policy, err := config.LoadPolicy()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading policy: %+v\n", err)
		os.Exit(1)
	}

	providersPath := *providersFlag
	if providersPath == "" {
		providersPath = settings.ProvidersPath
	}
	if providersPath == "" {
		providersPath, err = config.DefaultProvidersPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error locating provider catalog: %+v\n", err)
			os.Exit(1)
		}
	}
	catalog, err := config.LoadProviders(providersPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading providers: %+v\n", err)
		os.Exit(1)
	}

	registry := tools.NewRegistry()
	access := &policy.FilesystemAccess
	registry.Register(tools.NewReadFileTool(access))
	registry.Register(tools.NewWriteFileTool(access))
	registry.Register(tools.NewListDirectoryTool(access))
	registry.Register(tools.NewMoveFileTool(access))
	registry.Register(tools.NewRemoveFileTool(access))
	registry.Register(tools.NewTextSearchTool(access))
	registry.Register(tools.NewGlobSearchTool(access))
	registry.Register(tools.NewExecuteCommandTool(policy.AllowedCommands,
		time.Duration(policy.CommandTimeoutSeconds)*time.Second))

	ctx := context.Background()

	pivotAgent, err := agent.New(ctx, catalog, registry, policy.SystemPrompt, settings.ContextFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing agent: %+v\n", err)
		os.Exit(1)
	}
	if *providerFlag != "" || *modelFlag != "" {
		name := *providerFlag
		if name == "" {
			name = catalog.Default
		}
		if err := pivotAgent.SwitchProvider(ctx, name, *modelFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error selecting provider: %+v\n", err)
			os.Exit(1)
		}
	}
	pivotAgent.Mode = mode
	pivotAgent.Verbosity = verbosity

	// save_context needs the agent as its view of the conversation
	registry.Register(tools.NewSaveContextTool(pivotAgent))

	// MCP tools register disabled so the /tools menu gates them
	for _, server := range policy.AdditionalMCPServers {
		client, err := mcp.Connect(ctx, server)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not start MCP server '%s': %v\n", server.Name, err)
			continue
		}
		defer client.Close()
		serverTools, err := client.Tools(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not list tools of MCP server '%s': %v\n", server.Name, err)
			continue
		}
		for _, tool := range serverTools {
			registry.Register(tool)
			registry.Disable(tool.Name())
		}
	}

	// Remaining arguments form an initial prompt
	initialPrompt := strings.Join(flag.Args(), " ")

	term := terminal.New(pivotAgent)
	if err := term.Run(ctx, initialPrompt); err != nil {
		fmt.Fprintf(os.Stderr, "Agent stopped with an error: %+v\n", err)
		os.Exit(1)
	}
}
