package tools

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/m4xw311/pivot/config"
	"github.com/m4xw311/pivot/errors"
	"github.com/m4xw311/pivot/llm"
)

const (
	maxTextMatches = 100
	maxGlobMatches = 200
)

// TextSearchTool searches file contents line by line under a root
// directory.
type TextSearchTool struct {
	access *config.FilesystemAccess
}

func NewTextSearchTool(access *config.FilesystemAccess) *TextSearchTool {
	return &TextSearchTool{access: access}
}

func (t *TextSearchTool) Name() string { return "text_search" }

func (t *TextSearchTool) Schema() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: "Searches file contents for a substring or regular expression. Returns path:line: text for each match.",
		Parameters: objectSchema(map[string]interface{}{
			"query": stringProp("Text to search for."),
			"path":  stringProp("Directory to search under. Defaults to the current directory."),
			"regex": boolProp("Treat the query as a regular expression."),
		}, "query"),
	}
}

func (t *TextSearchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}
	root := optionalStringArg(args, "path", ".")
	useRegex, _ := args["regex"].(bool)

	var matches func(string) bool
	if useRegex {
		re, err := regexp.Compile(query)
		if err != nil {
			return "", errors.Wrapf(err, "invalid regular expression %q", query)
		}
		matches = re.MatchString
	} else {
		matches = func(line string) bool { return strings.Contains(line, query) }
	}

	var hits []string
	truncated := false
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if isHidden(t.access, path) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil || bytes.IndexByte(data, 0) >= 0 {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if matches(line) {
				hits = append(hits, fmt.Sprintf("%s:%d: %s", path, i+1, strings.TrimSpace(line)))
				if len(hits) >= maxTextMatches {
					truncated = true
					return fs.SkipAll
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return "", errors.Wrapf(walkErr, "search under %q failed", root)
	}

	if len(hits) == 0 {
		return fmt.Sprintf("No matches found for %q", query), nil
	}
	result := strings.Join(hits, "\n")
	if truncated {
		result += fmt.Sprintf("\n(stopped after %d matches)", maxTextMatches)
	}
	return result, nil
}

// GlobSearchTool finds files whose paths match a doublestar glob pattern.
type GlobSearchTool struct {
	access *config.FilesystemAccess
}

func NewGlobSearchTool(access *config.FilesystemAccess) *GlobSearchTool {
	return &GlobSearchTool{access: access}
}

func (t *GlobSearchTool) Name() string { return "glob_search" }

func (t *GlobSearchTool) Schema() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: "Finds files matching a glob pattern such as '**/*.go'. Patterns use forward slashes and ** for any depth.",
		Parameters: objectSchema(map[string]interface{}{
			"pattern": stringProp("Glob pattern to match against file paths."),
			"path":    stringProp("Directory to search under. Defaults to the current directory."),
		}, "pattern"),
	}
}

func (t *GlobSearchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	pattern, err := stringArg(args, "pattern")
	if err != nil {
		return "", err
	}
	root := optionalStringArg(args, "path", ".")
	if !doublestar.ValidatePattern(pattern) {
		return "", errors.Newf("invalid glob pattern %q", pattern)
	}

	found, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return "", errors.Wrapf(err, "glob %q under %q failed", pattern, root)
	}

	var lines []string
	truncated := false
	for _, match := range found {
		full := match
		if root != "." {
			full = filepath.Join(root, match)
		}
		if isHidden(t.access, full) {
			continue
		}
		lines = append(lines, full)
		if len(lines) >= maxGlobMatches {
			truncated = true
			break
		}
	}

	if len(lines) == 0 {
		return fmt.Sprintf("No files match pattern %q", pattern), nil
	}
	result := strings.Join(lines, "\n")
	if truncated {
		result += fmt.Sprintf("\n(stopped after %d matches)", maxGlobMatches)
	}
	return result, nil
}
