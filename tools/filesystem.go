package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/m4xw311/pivot/config"
	"github.com/m4xw311/pivot/errors"
	"github.com/m4xw311/pivot/llm"
)

// ReadFileTool returns a file's content.
type ReadFileTool struct {
	access *config.FilesystemAccess
}

func NewReadFileTool(access *config.FilesystemAccess) *ReadFileTool {
	return &ReadFileTool{access: access}
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Schema() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: "Reads the entire content of a file at the given path.",
		Parameters: objectSchema(map[string]interface{}{
			"path": stringProp("Path of the file to read."),
		}, "path"),
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	if isHidden(t.access, path) {
		return "", errors.Newf("access to %q is restricted", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "could not read %q", path)
	}
	return string(data), nil
}

// WriteFileTool creates or overwrites a file, creating parent directories
// as needed.
type WriteFileTool struct {
	access *config.FilesystemAccess
}

func NewWriteFileTool(access *config.FilesystemAccess) *WriteFileTool {
	return &WriteFileTool{access: access}
}

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Schema() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: "Writes content to a file, replacing anything already there. Parent directories are created automatically.",
		Parameters: objectSchema(map[string]interface{}{
			"path":    stringProp("Path of the file to write."),
			"content": stringProp("Content to write."),
		}, "path", "content"),
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	content, ok := args["content"].(string)
	if !ok {
		return "", errors.New("missing or invalid 'content' argument")
	}
	if isHidden(t.access, path) {
		return "", errors.Newf("access to %q is restricted", path)
	}
	if isReadOnly(t.access, path) {
		return "", errors.Newf("%q is read-only", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "could not create directory %q", dir)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errors.Wrapf(err, "could not write %q", path)
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
}

// ListDirectoryTool lists directory entries, directories marked with a
// trailing slash.
type ListDirectoryTool struct {
	access *config.FilesystemAccess
}

func NewListDirectoryTool(access *config.FilesystemAccess) *ListDirectoryTool {
	return &ListDirectoryTool{access: access}
}

func (t *ListDirectoryTool) Name() string { return "list_directory" }

func (t *ListDirectoryTool) Schema() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: "Lists the entries of a directory. Directories are marked with a trailing slash.",
		Parameters: objectSchema(map[string]interface{}{
			"path": stringProp("Directory to list. Defaults to the current directory."),
		}),
	}
}

func (t *ListDirectoryTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path := optionalStringArg(args, "path", ".")
	if isHidden(t.access, path) {
		return "", errors.Newf("access to %q is restricted", path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", errors.Wrapf(err, "could not list %q", path)
	}
	var lines []string
	for _, entry := range entries {
		full := filepath.Join(path, entry.Name())
		if isHidden(t.access, full) {
			continue
		}
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		lines = append(lines, name)
	}
	if len(lines) == 0 {
		return fmt.Sprintf("Directory %s is empty", path), nil
	}
	return strings.Join(lines, "\n"), nil
}

// MoveFileTool renames or moves a file or directory.
type MoveFileTool struct {
	access *config.FilesystemAccess
}

func NewMoveFileTool(access *config.FilesystemAccess) *MoveFileTool {
	return &MoveFileTool{access: access}
}

func (t *MoveFileTool) Name() string { return "move_file" }

func (t *MoveFileTool) Schema() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: "Moves or renames a file or directory.",
		Parameters: objectSchema(map[string]interface{}{
			"source":      stringProp("Current path."),
			"destination": stringProp("New path."),
		}, "source", "destination"),
	}
}

func (t *MoveFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	source, err := stringArg(args, "source")
	if err != nil {
		return "", err
	}
	destination, err := stringArg(args, "destination")
	if err != nil {
		return "", err
	}
	for _, p := range []string{source, destination} {
		if isHidden(t.access, p) {
			return "", errors.Newf("access to %q is restricted", p)
		}
		if isReadOnly(t.access, p) {
			return "", errors.Newf("%q is read-only", p)
		}
	}
	if err := os.Rename(source, destination); err != nil {
		return "", errors.Wrapf(err, "could not move %q to %q", source, destination)
	}
	return fmt.Sprintf("Moved %s to %s", source, destination), nil
}

// RemoveFileTool deletes a file or an empty directory.
type RemoveFileTool struct {
	access *config.FilesystemAccess
}

func NewRemoveFileTool(access *config.FilesystemAccess) *RemoveFileTool {
	return &RemoveFileTool{access: access}
}

func (t *RemoveFileTool) Name() string { return "remove_file" }

func (t *RemoveFileTool) Schema() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: "Removes a file or an empty directory.",
		Parameters: objectSchema(map[string]interface{}{
			"path": stringProp("Path to remove."),
		}, "path"),
	}
}

func (t *RemoveFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	if isHidden(t.access, path) {
		return "", errors.Newf("access to %q is restricted", path)
	}
	if isReadOnly(t.access, path) {
		return "", errors.Newf("%q is read-only", path)
	}
	if err := os.Remove(path); err != nil {
		return "", errors.Wrapf(err, "could not remove %q", path)
	}
	return fmt.Sprintf("Removed %s", path), nil
}
