package tools

import (
	"testing"
)

func TestPathMatchesAny(t *testing.T) {
	patterns := []string{".git/**", "secret/**", "*.key"}

	cases := []struct {
		path string
		want bool
	}{
		{".git/config", true},
		{".git", true}, // the directory itself is covered by its /** pattern
		{"secret/nested/deep.txt", true},
		{"server.key", true},
		{"main.go", false},
		{"src/secret.go", false},
	}
	for _, tc := range cases {
		if got := pathMatchesAny(tc.path, patterns); got != tc.want {
			t.Errorf("pathMatchesAny(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestIsCommandAllowed(t *testing.T) {
	allowed := []string{`^ls(\s|$)`, `^git (status|log)(\s|$)`}

	cases := []struct {
		command string
		want    bool
	}{
		{"ls", true},
		{"ls -la /tmp", true},
		{"lsof", false},
		{"git status", true},
		{"git push origin main", false},
		{"rm -rf /", false},
		{"  ls  ", true}, // surrounding whitespace is ignored
	}
	for _, tc := range cases {
		got, err := isCommandAllowed(tc.command, allowed)
		if err != nil {
			t.Fatalf("isCommandAllowed(%q): %v", tc.command, err)
		}
		if got != tc.want {
			t.Errorf("isCommandAllowed(%q) = %v, want %v", tc.command, got, tc.want)
		}
	}
}

func TestIsCommandAllowedBadPattern(t *testing.T) {
	_, err := isCommandAllowed("ls", []string{"["})
	if err == nil {
		t.Error("expected an error for an invalid pattern")
	}
}

func TestObjectSchema(t *testing.T) {
	schema := objectSchema(map[string]interface{}{
		"path": stringProp("A path."),
	}, "path")

	if schema["type"] != "object" {
		t.Errorf("expected object type, got %v", schema["type"])
	}
	required, ok := schema["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "path" {
		t.Errorf("unexpected required list: %v", schema["required"])
	}

	optional := objectSchema(map[string]interface{}{"reason": stringProp("Why.")})
	if _, exists := optional["required"]; exists {
		t.Error("schemas without required fields should omit the required key")
	}
}
