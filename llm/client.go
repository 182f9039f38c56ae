// Package llm defines the backend-neutral chat contract and the adapters
// that implement it for Ollama, Amazon Bedrock and OpenAI-compatible HTTP
// endpoints. Callers build requests from session messages and consume one
// uniform stream shape; every protocol difference is confined to the
// adapter that owns it.
package llm

import (
	"context"
	"encoding/json"

	"github.com/m4xw311/pivot/config"
	"github.com/m4xw311/pivot/errors"
	"github.com/m4xw311/pivot/session"
)

// ToolDefinition describes one callable tool to the model. Parameters is a
// JSON-schema object; adapters reshape it into their backend's tool format.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ChatRequest is one model turn: the full conversation so far, the model to
// use and the tools it may call.
type ChatRequest struct {
	Messages []session.Message
	Model    string
	Tools    []ToolDefinition
}

// StreamChunk is one increment of a streamed response. Text arrives as
// Delta fragments; tool calls arrive fully assembled in a single terminal
// chunk once the backend has finished emitting them. A chunk with Err set
// is the last one on the channel.
type StreamChunk struct {
	Delta     string
	ToolCalls []session.ToolCall
	Err       error
}

// Client streams chat completions from one configured backend.
//
// StreamChat returns immediately after the request is accepted; the channel
// is closed by the adapter when the response is complete, fails or the
// context is canceled. Callers should drain the channel.
type Client interface {
	Name() string
	StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}

// NewClient builds the adapter for a provider entry. This is the single
// place that maps a configured type to a concrete backend.
func NewClient(ctx context.Context, provider config.Provider) (Client, error) {
	switch provider.Type {
	case config.TypeOllama:
		return NewOllamaClient(provider)
	case config.TypeBedrock:
		return NewBedrockClient(ctx, provider)
	case config.TypeOpenAI:
		return NewOpenAIClient(provider)
	default:
		return nil, errors.Newf("provider %q has unsupported type %q", provider.Name, provider.Type)
	}
}

// send delivers a chunk unless the context is done first. Reports whether
// the chunk was delivered.
func send(ctx context.Context, out chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// parseToolArguments parses a backend-accumulated argument string into the
// map form tool executors expect. Anything that is not a JSON object is
// preserved under a "raw" key instead of being dropped.
func parseToolArguments(raw string) map[string]interface{} {
	if raw == "" {
		return map[string]interface{}{}
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]interface{}{"raw": raw}
	}
	return args
}
