// Package config loads the three configuration surfaces: the JSON provider
// catalog, the YAML policy file and the process environment. Provider
// catalog problems fail fast with the offending field named; the policy file
// is optional and falls back to conservative defaults.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/m4xw311/pivot/errors"
)

const policyFileName = "config.yaml"

// FilesystemAccess restricts what the filesystem tools may touch. Patterns
// are doublestar globs matched against the path given to the tool.
type FilesystemAccess struct {
	// Hidden paths are invisible to every filesystem tool.
	Hidden []string `yaml:"hidden"`
	// ReadOnly paths can be read and listed but not written, moved or
	// removed.
	ReadOnly []string `yaml:"read_only"`
}

// MCPServer describes an external MCP tool server started over stdio.
type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Policy is the YAML-configured behavior of the agent and its tools.
type Policy struct {
	SystemPrompt          string           `yaml:"system_prompt"`
	AllowedCommands       []string         `yaml:"allowed_commands"`
	CommandTimeoutSeconds int              `yaml:"command_timeout_seconds"`
	FilesystemAccess      FilesystemAccess `yaml:"filesystem_access"`
	AdditionalMCPServers  []MCPServer      `yaml:"additional_mcp_servers"`
}

// DefaultPolicy returns the policy used when no config file exists. The
// command allowlist covers common read-only inspection commands only.
func DefaultPolicy() *Policy {
	return &Policy{
		AllowedCommands: []string{
			`^ls(\s|$)`,
			`^cat\s`,
			`^head(\s|$)`,
			`^tail(\s|$)`,
			`^grep\s`,
			`^find\s`,
			`^pwd$`,
			`^wc(\s|$)`,
			`^git (status|log|diff|show|branch)(\s|$)`,
		},
		CommandTimeoutSeconds: 60,
		FilesystemAccess: FilesystemAccess{
			Hidden: []string{".git/**", ".pivot/**"},
		},
	}
}

// LoadPolicy reads ~/.pivot/config.yaml and ./.pivot/config.yaml, merging
// the project file over the home file over the defaults. A missing file is
// not an error; a malformed one is.
func LoadPolicy() (*Policy, error) {
	policy := DefaultPolicy()

	if home, err := os.UserHomeDir(); err == nil {
		if err := mergePolicyFile(policy, filepath.Join(home, ".pivot", policyFileName)); err != nil {
			return nil, err
		}
	}
	if err := mergePolicyFile(policy, filepath.Join(".pivot", policyFileName)); err != nil {
		return nil, err
	}
	return policy, nil
}

// mergePolicyFile overlays the file at path onto dst. Only fields the file
// sets are taken; list fields replace rather than append so a project can
// tighten what the home config allows.
func mergePolicyFile(dst *Policy, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "could not read config %s", path)
	}
	var overlay Policy
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return errors.Wrapf(err, "config %s is not valid YAML", path)
	}
	if overlay.SystemPrompt != "" {
		dst.SystemPrompt = overlay.SystemPrompt
	}
	if len(overlay.AllowedCommands) > 0 {
		dst.AllowedCommands = overlay.AllowedCommands
	}
	if overlay.CommandTimeoutSeconds > 0 {
		dst.CommandTimeoutSeconds = overlay.CommandTimeoutSeconds
	}
	if len(overlay.FilesystemAccess.Hidden) > 0 {
		dst.FilesystemAccess.Hidden = overlay.FilesystemAccess.Hidden
	}
	if len(overlay.FilesystemAccess.ReadOnly) > 0 {
		dst.FilesystemAccess.ReadOnly = overlay.FilesystemAccess.ReadOnly
	}
	dst.AdditionalMCPServers = append(dst.AdditionalMCPServers, overlay.AdditionalMCPServers...)
	return nil
}
