// Package tools implements the agent's executable capabilities and the
// registry that exposes them to the model. Builtin tools cover the
// filesystem, searching and command execution; external MCP servers plug in
// through the same interface.
package tools

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/m4xw311/pivot/config"
	"github.com/m4xw311/pivot/errors"
	"github.com/m4xw311/pivot/llm"
)

// Tool is one executable capability. Execute receives the arguments exactly
// as the model produced them; implementations validate their own inputs and
// return an error for anything unusable.
type Tool interface {
	Name() string
	Schema() llm.ToolDefinition
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// objectSchema builds the JSON-schema object shape every builtin tool uses
// for its parameters.
func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func boolProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": description}
}

// stringArg extracts a required string argument.
func stringArg(args map[string]interface{}, key string) (string, error) {
	value, ok := args[key].(string)
	if !ok || value == "" {
		return "", errors.Newf("missing or invalid '%s' argument", key)
	}
	return value, nil
}

// optionalStringArg extracts a string argument, returning fallback when it
// is absent.
func optionalStringArg(args map[string]interface{}, key, fallback string) string {
	if value, ok := args[key].(string); ok && value != "" {
		return value
	}
	return fallback
}

// pathMatchesAny reports whether path matches any of the glob patterns.
// Patterns use forward slashes; a trailing /** also covers the directory
// itself.
func pathMatchesAny(path string, patterns []string) bool {
	cleaned := filepath.ToSlash(filepath.Clean(path))
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, cleaned); err == nil && ok {
			return true
		}
		if trimmed, found := strings.CutSuffix(pattern, "/**"); found {
			if ok, err := doublestar.Match(trimmed, cleaned); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func isHidden(access *config.FilesystemAccess, path string) bool {
	return access != nil && pathMatchesAny(path, access.Hidden)
}

func isReadOnly(access *config.FilesystemAccess, path string) bool {
	return access != nil && pathMatchesAny(path, access.ReadOnly)
}

// isCommandAllowed reports whether command matches any allowlist pattern.
// Patterns are regular expressions matched against the whole command line.
func isCommandAllowed(command string, allowed []string) (bool, error) {
	trimmed := strings.TrimSpace(command)
	for _, pattern := range allowed {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, errors.Wrapf(err, "invalid allowed command pattern %q", pattern)
		}
		if re.MatchString(trimmed) {
			return true, nil
		}
	}
	return false, nil
}
