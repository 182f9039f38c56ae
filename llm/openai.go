package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/m4xw311/pivot/config"
	"github.com/m4xw311/pivot/session"
	"github.com/m4xw311/pivot/trace"
)

const (
	defaultOpenAIBaseURL = "https://openrouter.ai/api/v1"
	ssePrefix            = "data: "
	sseDone              = "[DONE]"
)

// OpenAIClient streams chat completions from any OpenAI-compatible HTTP
// endpoint. OpenRouter is the default, but anything speaking the same SSE
// dialect works.
type OpenAIClient struct {
	httpClient *http.Client
	name       string
	baseURL    string
	apiKey     string
	referer    string
	title      string
}

// NewOpenAIClient builds a client for the provider's base URL, falling back
// to OPENAI_BASE_URL and then OpenRouter. The API key falls back to
// OPENROUTER_API_KEY and OPENAI_API_KEY.
func NewOpenAIClient(p config.Provider) (*OpenAIClient, error) {
	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	apiKey := p.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return &OpenAIClient{
		// no overall timeout: responses stream for as long as the model talks
		httpClient: &http.Client{},
		name:       p.Name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		referer:    p.Referer,
		title:      p.Title,
	}, nil
}

func (c *OpenAIClient) Name() string {
	return c.name
}

// Wire shapes for /chat/completions. Argument strings stay strings here;
// parsing happens only after a finish_reason confirms the calls are whole.
type oaiRequest struct {
	Model    string       `json:"model"`
	Messages []oaiMessage `json:"messages"`
	Tools    []oaiTool    `json:"tools,omitempty"`
	Stream   bool         `json:"stream"`
}

type oaiMessage struct {
	Role       string        `json:"role"`
	Content    string        `json:"content"`
	ToolCalls  []oaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type oaiToolCall struct {
	ID       string      `json:"id,omitempty"`
	Type     string      `json:"type"`
	Function oaiFunction `json:"function"`
}

type oaiFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type oaiTool struct {
	Type     string        `json:"type"`
	Function oaiToolSchema `json:"function"`
}

type oaiToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type oaiStreamResponse struct {
	Choices []oaiStreamChoice `json:"choices"`
	Error   *oaiAPIError      `json:"error"`
}

type oaiStreamChoice struct {
	Delta        oaiDelta `json:"delta"`
	FinishReason string   `json:"finish_reason"`
}

type oaiDelta struct {
	Content   string         `json:"content"`
	ToolCalls []oaiDeltaCall `json:"tool_calls"`
}

// oaiDeltaCall is one fragment of a streamed tool call. Index identifies
// which call the fragment belongs to; id and name may arrive once while the
// argument string accretes across many fragments.
type oaiDeltaCall struct {
	Index    int         `json:"index"`
	ID       string      `json:"id"`
	Type     string      `json:"type"`
	Function oaiFunction `json:"function"`
}

type oaiAPIError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"`
}

// StreamChat posts to /chat/completions with stream enabled and decodes the
// SSE response.
func (c *OpenAIClient) StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	body := oaiRequest{
		Model:    req.Model,
		Messages: convertMessagesToOpenAI(req.Messages),
		Tools:    convertToolsToOpenAI(req.Tools),
		Stream:   true,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Provider: c.name, Message: "could not encode chat request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Provider: c.name, Message: "could not build chat request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		httpReq.Header.Set("X-Title", c.title)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &ProviderError{Provider: c.name, Message: "request to " + c.baseURL + " failed", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, mapOpenAIStatus(c.name, resp.StatusCode, errorMessageFrom(raw), req.Model, resp.Header.Get("Retry-After"))
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		c.consumeStream(ctx, resp.Body, ch)
	}()
	return ch, nil
}

// toolCallAccumulator rebuilds one tool call from its stream fragments.
type toolCallAccumulator struct {
	id   string
	name string
	args strings.Builder
}

// consumeStream reads the SSE body line by line. Only "data: " lines count;
// a [DONE] marker ends the stream and anything after it is ignored. Lines
// that fail to parse are skipped rather than failing the response, since
// gateways are known to interleave comments and keep-alives.
func (c *OpenAIClient) consumeStream(ctx context.Context, body io.Reader, out chan<- StreamChunk) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	pending := make(map[int]*toolCallAccumulator)
	var indexes []int

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, ssePrefix) {
			continue
		}
		data := strings.TrimSpace(line[len(ssePrefix):])
		if data == sseDone {
			return
		}

		var payload oaiStreamResponse
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			trace.Logger().Debug().Str("provider", c.name).Msg("skipping unparseable stream line")
			continue
		}
		if payload.Error != nil {
			send(ctx, out, StreamChunk{Err: &ProviderError{Provider: c.name, Message: payload.Error.Message}})
			return
		}
		if len(payload.Choices) == 0 {
			continue
		}
		choice := payload.Choices[0]

		if choice.Delta.Content != "" {
			if !send(ctx, out, StreamChunk{Delta: choice.Delta.Content}) {
				return
			}
		}
		for _, fragment := range choice.Delta.ToolCalls {
			acc, ok := pending[fragment.Index]
			if !ok {
				acc = &toolCallAccumulator{}
				pending[fragment.Index] = acc
				indexes = append(indexes, fragment.Index)
			}
			if fragment.ID != "" {
				acc.id = fragment.ID
			}
			acc.name += fragment.Function.Name
			acc.args.WriteString(fragment.Function.Arguments)
		}

		if choice.FinishReason == "tool_calls" && len(indexes) > 0 {
			sort.Ints(indexes)
			calls := make([]session.ToolCall, 0, len(indexes))
			for _, idx := range indexes {
				acc := pending[idx]
				calls = append(calls, session.ToolCall{
					ID:   acc.id,
					Name: acc.name,
					Args: parseToolArguments(acc.args.String()),
				})
			}
			if !send(ctx, out, StreamChunk{ToolCalls: calls}) {
				return
			}
			pending = make(map[int]*toolCallAccumulator)
			indexes = nil
		}
	}

	if err := scanner.Err(); err != nil {
		send(ctx, out, StreamChunk{Err: &ProviderError{Provider: c.name, Message: "stream read failed", Err: err}})
	}
}

// convertMessagesToOpenAI reshapes the neutral history for the OpenAI chat
// format. A batched tool message is exploded into one role:"tool" message
// per result, each carrying its tool_call_id.
func convertMessagesToOpenAI(msgs []session.Message) []oaiMessage {
	var out []oaiMessage
	for _, m := range msgs {
		switch m.Role {
		case session.RoleTool:
			for _, r := range m.Results() {
				out = append(out, oaiMessage{Role: "tool", Content: r.Content, ToolCallID: r.ToolCallID})
			}
		case session.RoleAssistant:
			am := oaiMessage{Role: "assistant", Content: m.Content}
			for _, tc := range m.ToolCalls {
				args, err := json.Marshal(tc.Args)
				if err != nil {
					args = []byte("{}")
				}
				am.ToolCalls = append(am.ToolCalls, oaiToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: oaiFunction{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, am)
		default:
			out = append(out, oaiMessage{Role: m.Role, Content: m.Content})
		}
	}
	return out
}

func convertToolsToOpenAI(defs []ToolDefinition) []oaiTool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]oaiTool, 0, len(defs))
	for _, d := range defs {
		params := d.Parameters
		if params == nil {
			params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		tools = append(tools, oaiTool{
			Type: "function",
			Function: oaiToolSchema{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

// errorMessageFrom extracts the error message from an OpenAI-style error
// body, falling back to the raw text.
func errorMessageFrom(raw []byte) string {
	var body struct {
		Error *oaiAPIError `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != nil && body.Error.Message != "" {
		return body.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = "request failed"
	}
	return msg
}

// mapOpenAIStatus converts a non-200 HTTP status into the shared taxonomy.
// Pure so it can be exercised without a server.
func mapOpenAIStatus(provider string, status int, msg, model, retryAfter string) error {
	base := ProviderError{Provider: provider, Message: msg}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthenticationError{ProviderError: base}
	case http.StatusNotFound:
		return &ModelNotFoundError{ProviderError: base, Model: model}
	case http.StatusTooManyRequests:
		e := &RateLimitError{ProviderError: base}
		if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
		return e
	default:
		base.Message = "HTTP " + strconv.Itoa(status) + ": " + msg
		return &base
	}
}
