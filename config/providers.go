package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/m4xw311/pivot/errors"
)

// Backend kinds a provider entry may declare.
const (
	TypeOllama  = "ollama"
	TypeBedrock = "bedrock"
	TypeOpenAI  = "openai"
)

var supportedTypes = []string{TypeOllama, TypeBedrock, TypeOpenAI}

// Model pairs the identifier the backend expects (name) with the short key
// used to select it in default_model and on the command line.
type Model struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Provider is one configured backend. Connection fields apply per type: Host
// for ollama, Region for bedrock, BaseURL/APIKey/Referer/Title for
// openai-compatible endpoints.
type Provider struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Models       []Model `json:"models"`
	DefaultModel string  `json:"default_model"`

	Host    string `json:"host,omitempty"`
	Region  string `json:"region,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	Referer string `json:"referer,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Providers is the parsed provider catalog.
type Providers struct {
	Default   string     `json:"default"`
	Providers []Provider `json:"providers"`
}

// DefaultProvidersPath returns the provider catalog location: the
// project-local file when present, the home directory file otherwise.
func DefaultProvidersPath() (string, error) {
	local := filepath.Join(".pivot", "providers.json")
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".pivot", "providers.json"), nil
}

// LoadProviders reads and validates the provider catalog at path. Every
// problem is reported immediately with the offending field named; nothing is
// silently defaulted.
func LoadProviders(path string) (*Providers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read provider config %s", path)
	}
	var doc Providers
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "provider config %s is not valid JSON", path)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the catalog for missing fields, duplicate names, duplicate
// model keys and dangling references.
func (p *Providers) Validate() error {
	if len(p.Providers) == 0 {
		return errors.New("provider config declares no providers")
	}
	seen := make(map[string]bool)
	for i := range p.Providers {
		prov := &p.Providers[i]
		if prov.Name == "" {
			return errors.Newf("provider at index %d is missing required field 'name'", i)
		}
		if seen[prov.Name] {
			return errors.Newf("duplicate provider name %q", prov.Name)
		}
		seen[prov.Name] = true
		if prov.Type == "" {
			return errors.Newf("provider %q is missing required field 'type'", prov.Name)
		}
		if !isSupportedType(prov.Type) {
			return errors.Newf("provider %q has unsupported type %q (supported types: %s)",
				prov.Name, prov.Type, strings.Join(supportedTypes, ", "))
		}
		if len(prov.Models) == 0 {
			return errors.Newf("provider %q declares no models", prov.Name)
		}
		keys := make(map[string]bool)
		for _, m := range prov.Models {
			if m.Key == "" {
				return errors.Newf("provider %q has a model with an empty key", prov.Name)
			}
			if keys[m.Key] {
				return errors.Newf("provider %q has duplicate model key %q", prov.Name, m.Key)
			}
			keys[m.Key] = true
		}
		if prov.DefaultModel == "" {
			return errors.Newf("provider %q is missing required field 'default_model'", prov.Name)
		}
		if !keys[prov.DefaultModel] {
			return errors.Newf("provider %q default_model %q does not match any model key (valid keys: %s)",
				prov.Name, prov.DefaultModel, strings.Join(prov.ModelKeys(), ", "))
		}
	}
	if p.Default == "" {
		return errors.New("provider config is missing required field 'default'")
	}
	if !seen[p.Default] {
		return errors.Newf("default provider %q is not declared (valid providers: %s)",
			p.Default, strings.Join(p.Names(), ", "))
	}
	return nil
}

// Get returns the provider entry with the given name.
func (p *Providers) Get(name string) (*Provider, error) {
	for i := range p.Providers {
		if p.Providers[i].Name == name {
			return &p.Providers[i], nil
		}
	}
	return nil, errors.Newf("unknown provider %q (valid providers: %s)", name, strings.Join(p.Names(), ", "))
}

// Names lists the declared provider names in catalog order.
func (p *Providers) Names() []string {
	names := make([]string, 0, len(p.Providers))
	for i := range p.Providers {
		names = append(names, p.Providers[i].Name)
	}
	return names
}

// ModelKeys lists the provider's model keys in catalog order.
func (prov *Provider) ModelKeys() []string {
	keys := make([]string, 0, len(prov.Models))
	for _, m := range prov.Models {
		keys = append(keys, m.Key)
	}
	return keys
}

// ResolveModel maps a model key to the backend model identifier, falling
// back to the default model when key is empty.
func (prov *Provider) ResolveModel(key string) (string, error) {
	if key == "" {
		key = prov.DefaultModel
	}
	for _, m := range prov.Models {
		if m.Key == key {
			return m.Name, nil
		}
	}
	return "", errors.Newf("provider %q has no model with key %q (valid keys: %s)",
		prov.Name, key, strings.Join(prov.ModelKeys(), ", "))
}

func isSupportedType(t string) bool {
	for _, s := range supportedTypes {
		if s == t {
			return true
		}
	}
	return false
}
