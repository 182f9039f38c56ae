package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProviders(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

const validCatalog = `{
  "default": "local",
  "providers": [
    {
      "name": "local",
      "type": "ollama",
      "host": "http://localhost:11434",
      "models": [
        {"name": "llama3.1:8b", "key": "llama"},
        {"name": "qwen2.5-coder:7b", "key": "qwen"}
      ],
      "default_model": "llama"
    },
    {
      "name": "aws",
      "type": "bedrock",
      "region": "us-west-2",
      "models": [{"name": "anthropic.claude-3-5-sonnet-20241022-v2:0", "key": "sonnet"}],
      "default_model": "sonnet"
    }
  ]
}`

func TestLoadProvidersValid(t *testing.T) {
	path := writeProviders(t, validCatalog)
	doc, err := LoadProviders(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Default != "local" {
		t.Errorf("expected default 'local', got %q", doc.Default)
	}
	if len(doc.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(doc.Providers))
	}

	prov, err := doc.Get("aws")
	if err != nil {
		t.Fatalf("Get(aws): %v", err)
	}
	if prov.Type != TypeBedrock || prov.Region != "us-west-2" {
		t.Errorf("unexpected provider: %+v", prov)
	}
}

func TestLoadProvidersMissingFile(t *testing.T) {
	_, err := LoadProviders(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !strings.Contains(err.Error(), "could not read provider config") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestLoadProvidersInvalidJSON(t *testing.T) {
	path := writeProviders(t, `{"default": "local",`)
	_, err := LoadProviders(path)
	if err == nil {
		t.Fatal("expected an error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "not valid JSON") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestLoadProvidersDanglingDefault(t *testing.T) {
	path := writeProviders(t, `{
  "default": "cloud",
  "providers": [
    {"name": "local", "type": "ollama", "models": [{"name": "M", "key": "m"}], "default_model": "m"},
    {"name": "aws", "type": "bedrock", "models": [{"name": "C", "key": "c"}], "default_model": "c"}
  ]
}`)
	_, err := LoadProviders(path)
	if err == nil {
		t.Fatal("expected an error for a dangling default")
	}
	msg := err.Error()
	if !strings.Contains(msg, `"cloud"`) {
		t.Errorf("expected the bad name in the message, got %v", err)
	}
	if !strings.Contains(msg, "local") || !strings.Contains(msg, "aws") {
		t.Errorf("expected the valid provider names in the message, got %v", err)
	}
}

func TestLoadProvidersDanglingDefaultModel(t *testing.T) {
	path := writeProviders(t, `{
  "default": "local",
  "providers": [
    {"name": "local", "type": "ollama", "models": [{"name": "M", "key": "m1"}, {"name": "N", "key": "m2"}], "default_model": "m3"}
  ]
}`)
	_, err := LoadProviders(path)
	if err == nil {
		t.Fatal("expected an error for a dangling default_model")
	}
	msg := err.Error()
	if !strings.Contains(msg, `"m3"`) || !strings.Contains(msg, "m1") || !strings.Contains(msg, "m2") {
		t.Errorf("expected bad key and valid keys in the message, got %v", err)
	}
}

func TestLoadProvidersDuplicateName(t *testing.T) {
	path := writeProviders(t, `{
  "default": "local",
  "providers": [
    {"name": "local", "type": "ollama", "models": [{"name": "M", "key": "m"}], "default_model": "m"},
    {"name": "local", "type": "openai", "models": [{"name": "G", "key": "g"}], "default_model": "g"}
  ]
}`)
	_, err := LoadProviders(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate provider name") {
		t.Errorf("expected a duplicate-name error, got %v", err)
	}
}

func TestLoadProvidersDuplicateModelKey(t *testing.T) {
	path := writeProviders(t, `{
  "default": "local",
  "providers": [
    {"name": "local", "type": "ollama", "models": [{"name": "A", "key": "m"}, {"name": "B", "key": "m"}], "default_model": "m"}
  ]
}`)
	_, err := LoadProviders(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate model key") {
		t.Errorf("expected a duplicate-key error, got %v", err)
	}
}

func TestLoadProvidersUnsupportedType(t *testing.T) {
	path := writeProviders(t, `{
  "default": "x",
  "providers": [
    {"name": "x", "type": "cohere", "models": [{"name": "M", "key": "m"}], "default_model": "m"}
  ]
}`)
	_, err := LoadProviders(path)
	if err == nil {
		t.Fatal("expected an error for an unsupported type")
	}
	msg := err.Error()
	if !strings.Contains(msg, `"cohere"`) || !strings.Contains(msg, "ollama") || !strings.Contains(msg, "bedrock") || !strings.Contains(msg, "openai") {
		t.Errorf("expected bad type and supported types in the message, got %v", err)
	}
}

func TestLoadProvidersMissingFields(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "no providers",
			content: `{"default": "x", "providers": []}`,
			want:    "declares no providers",
		},
		{
			name:    "missing name",
			content: `{"default": "x", "providers": [{"type": "ollama", "models": [{"name": "M", "key": "m"}], "default_model": "m"}]}`,
			want:    "missing required field 'name'",
		},
		{
			name:    "missing type",
			content: `{"default": "x", "providers": [{"name": "x", "models": [{"name": "M", "key": "m"}], "default_model": "m"}]}`,
			want:    "missing required field 'type'",
		},
		{
			name:    "no models",
			content: `{"default": "x", "providers": [{"name": "x", "type": "ollama", "models": [], "default_model": "m"}]}`,
			want:    "declares no models",
		},
		{
			name:    "missing default_model",
			content: `{"default": "x", "providers": [{"name": "x", "type": "ollama", "models": [{"name": "M", "key": "m"}]}]}`,
			want:    "missing required field 'default_model'",
		},
		{
			name:    "missing default",
			content: `{"providers": [{"name": "x", "type": "ollama", "models": [{"name": "M", "key": "m"}], "default_model": "m"}]}`,
			want:    "missing required field 'default'",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadProviders(writeProviders(t, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestResolveModel(t *testing.T) {
	prov := Provider{
		Name:         "local",
		Models:       []Model{{Name: "A", Key: "a"}, {Name: "B", Key: "b"}},
		DefaultModel: "a",
	}

	if got, err := prov.ResolveModel(""); err != nil || got != "A" {
		t.Errorf("empty key should resolve to the default model's identifier, got %q, %v", got, err)
	}
	if got, err := prov.ResolveModel("b"); err != nil || got != "B" {
		t.Errorf("ResolveModel(b) = %q, %v", got, err)
	}
	if _, err := prov.ResolveModel("c"); err == nil || !strings.Contains(err.Error(), `"c"`) {
		t.Errorf("expected an unknown-key error naming the key, got %v", err)
	}
}
