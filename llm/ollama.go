package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/url"
	"os"

	"github.com/ollama/ollama/api"

	"github.com/m4xw311/pivot/config"
	"github.com/m4xw311/pivot/errors"
	"github.com/m4xw311/pivot/session"
	"github.com/m4xw311/pivot/trace"
)

const defaultOllamaHost = "http://localhost:11434"

// OllamaClient streams chat completions from an Ollama server, usually a
// local one.
type OllamaClient struct {
	api  *api.Client
	name string
	host string
}

// NewOllamaClient builds a client for the provider's host, falling back to
// OLLAMA_HOST and then the standard local address.
func NewOllamaClient(p config.Provider) (*OllamaClient, error) {
	if p.Host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, errors.Wrap(err, "could not configure ollama client from environment")
		}
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = defaultOllamaHost
		}
		return &OllamaClient{api: client, name: p.Name, host: host}, nil
	}
	base, err := url.Parse(p.Host)
	if err != nil {
		return nil, errors.Wrapf(err, "provider %q has invalid host %q", p.Name, p.Host)
	}
	return &OllamaClient{api: api.NewClient(base, http.DefaultClient), name: p.Name, host: p.Host}, nil
}

func (c *OllamaClient) Name() string {
	return c.name
}

// StreamChat sends the conversation to /api/chat and forwards the streamed
// response. Content arrives as deltas; tool calls may be spread across
// several callbacks and are collected into one terminal chunk.
func (c *OllamaClient) StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	stream := true
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: convertMessagesToOllama(req.Messages),
		Tools:    convertToolsToOllama(req.Tools),
		Stream:   &stream,
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		var calls []session.ToolCall
		err := c.api.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				if !send(ctx, out, StreamChunk{Delta: resp.Message.Content}) {
					return ctx.Err()
				}
			}
			for _, tc := range resp.Message.ToolCalls {
				calls = append(calls, session.ToolCall{
					Name: tc.Function.Name,
					Args: argumentsToMap(tc.Function.Arguments),
				})
			}
			return nil
		})
		if err != nil {
			send(ctx, out, StreamChunk{Err: mapOllamaError(c.name, c.host, err, req.Model)})
			return
		}
		trace.Logger().Debug().Str("provider", c.name).Int("tool_calls", len(calls)).Msg("chat stream complete")
		if len(calls) > 0 {
			send(ctx, out, StreamChunk{ToolCalls: calls})
		}
	}()
	return out, nil
}

// convertMessagesToOllama reshapes the neutral history for /api/chat. Ollama
// has no call-id concept, so a batched tool message is exploded into one
// wire message per result with the tool name carried alongside.
func convertMessagesToOllama(msgs []session.Message) []api.Message {
	var out []api.Message
	for _, m := range msgs {
		switch m.Role {
		case session.RoleTool:
			for _, r := range m.Results() {
				out = append(out, api.Message{Role: "tool", Content: r.Content, ToolName: r.ToolName})
			}
		case session.RoleAssistant:
			am := api.Message{Role: "assistant", Content: m.Content}
			for _, tc := range m.ToolCalls {
				fn := api.ToolCallFunction{Name: tc.Name}
				if raw, err := json.Marshal(tc.Args); err == nil {
					_ = json.Unmarshal(raw, &fn.Arguments)
				}
				am.ToolCalls = append(am.ToolCalls, api.ToolCall{Function: fn})
			}
			out = append(out, am)
		default:
			msg := api.Message{Role: m.Role, Content: m.Content}
			for _, img := range m.Images {
				msg.Images = append(msg.Images, api.ImageData(img))
			}
			out = append(out, msg)
		}
	}
	return out
}

// convertToolsToOllama maps tool definitions through their JSON form, which
// matches Ollama's wire schema field for field.
func convertToolsToOllama(defs []ToolDefinition) api.Tools {
	if len(defs) == 0 {
		return nil
	}
	tools := make(api.Tools, 0, len(defs))
	for _, d := range defs {
		spec := map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        d.Name,
				"description": d.Description,
				"parameters":  d.Parameters,
			},
		}
		raw, err := json.Marshal(spec)
		if err != nil {
			continue
		}
		var t api.Tool
		if err := json.Unmarshal(raw, &t); err != nil {
			continue
		}
		tools = append(tools, t)
	}
	return tools
}

// argumentsToMap converts the SDK's argument container into a plain map via
// its JSON form.
func argumentsToMap(v interface{}) map[string]interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{}
	}
	return parseToolArguments(string(raw))
}

// mapOllamaError converts a failure from the Ollama client into the shared
// taxonomy. An unreachable service is reported as an authentication-class
// failure: the provider cannot be used as configured.
func mapOllamaError(provider, host string, err error, model string) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var status api.StatusError
	if stderrors.As(err, &status) {
		msg := status.ErrorMessage
		if msg == "" {
			msg = status.Status
		}
		base := ProviderError{Provider: provider, Message: msg, Err: err}
		switch status.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &AuthenticationError{ProviderError: base}
		case http.StatusTooManyRequests:
			return &RateLimitError{ProviderError: base}
		case http.StatusNotFound:
			return &ModelNotFoundError{ProviderError: base, Model: model}
		default:
			return &base
		}
	}

	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		return &AuthenticationError{ProviderError: ProviderError{
			Provider: provider,
			Message:  "ollama service unreachable at " + host,
			Err:      err,
		}}
	}

	return &ProviderError{Provider: provider, Message: "chat request failed", Err: err}
}
