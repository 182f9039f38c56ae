// Package mcp connects external Model Context Protocol servers over stdio
// and exposes their tools through the same interface as the builtins. Tool
// names are prefixed with the server name so servers cannot shadow builtin
// tools or each other.
package mcp

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/m4xw311/pivot/config"
	"github.com/m4xw311/pivot/errors"
	"github.com/m4xw311/pivot/llm"
	"github.com/m4xw311/pivot/tools"
)

// Client owns one MCP server subprocess for the life of the session.
type Client struct {
	name    string
	session *mcpsdk.ClientSession
}

// Connect starts the server process and performs the MCP handshake.
func Connect(ctx context.Context, server config.MCPServer) (*Client, error) {
	cmd := exec.Command(server.Command, server.Args...)
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "pivot", Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to MCP server %q (%s)", server.Name, server.Command)
	}
	return &Client{name: server.Name, session: session}, nil
}

// Close shuts down the server subprocess.
func (c *Client) Close() error {
	return c.session.Close()
}

// Tools lists the server's tools, following pagination, wrapped for the
// registry.
func (c *Client) Tools(ctx context.Context) ([]tools.Tool, error) {
	var out []tools.Tool
	var cursor string
	for {
		res, err := c.session.ListTools(ctx, &mcpsdk.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, errors.Wrapf(err, "could not list tools of MCP server %q", c.name)
		}
		for _, t := range res.Tools {
			out = append(out, &serverTool{
				client:      c,
				tool:        t.Name,
				description: t.Description,
				schema:      schemaToMap(t.InputSchema),
			})
		}
		if res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

// serverTool adapts one remote tool to the registry interface.
type serverTool struct {
	client      *Client
	tool        string
	description string
	schema      map[string]interface{}
}

func (t *serverTool) Name() string {
	return t.client.name + "_" + t.tool
}

func (t *serverTool) Schema() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: t.description,
		Parameters:  t.schema,
	}
}

func (t *serverTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	res, err := t.client.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: t.tool, Arguments: args})
	if err != nil {
		return "", errors.Wrapf(err, "MCP tool %q failed", t.Name())
	}
	var parts []string
	for _, content := range res.Content {
		if text, ok := content.(*mcpsdk.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	result := strings.Join(parts, "\n")
	if res.IsError {
		return "", errors.Newf("MCP tool %q reported: %s", t.Name(), result)
	}
	if result == "" {
		result = "(no text content)"
	}
	return result, nil
}

// schemaToMap converts the SDK's schema value into the plain map form the
// adapters expect, falling back to an empty object schema.
func schemaToMap(schema interface{}) map[string]interface{} {
	fallback := map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	if schema == nil {
		return fallback
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return fallback
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return fallback
	}
	return m
}
