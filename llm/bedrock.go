package llm

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/m4xw311/pivot/config"
	"github.com/m4xw311/pivot/errors"
	"github.com/m4xw311/pivot/session"
	"github.com/m4xw311/pivot/trace"
)

const defaultBedrockRegion = "us-east-1"

// BedrockClient streams chat completions through the Amazon Bedrock
// Converse API.
type BedrockClient struct {
	client *bedrockruntime.Client
	name   string
	region string
}

// NewBedrockClient builds a client using the standard AWS credential chain.
// The region comes from the provider entry, then AWS_REGION, then
// AWS_DEFAULT_REGION, then us-east-1.
func NewBedrockClient(ctx context.Context, p config.Provider) (*BedrockClient, error) {
	region := p.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region == "" {
		region = defaultBedrockRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "could not load AWS configuration")
	}
	return &BedrockClient{client: bedrockruntime.NewFromConfig(cfg), name: p.Name, region: region}, nil
}

func (c *BedrockClient) Name() string {
	return c.name
}

// StreamChat opens a ConverseStream and forwards its events. Text deltas
// are emitted as they arrive; tool-use blocks are assembled from their
// start/delta/stop events and emitted together once the stream ends
// cleanly.
func (c *BedrockClient) StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(req.Model),
		Messages: convertMessagesToBedrock(req.Messages),
	}
	if system := systemTextOf(req.Messages); system != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		}
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = convertToolsToBedrock(req.Tools)
	}

	output, err := c.client.ConverseStream(ctx, input)
	if err != nil {
		return nil, mapBedrockError(c.name, err, req.Model)
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		stream := output.GetStream()
		defer stream.Close()

		calls, ok := consumeConverseEvents(ctx, stream.Events(), ch)
		if !ok {
			return
		}
		if err := stream.Err(); err != nil {
			send(ctx, ch, StreamChunk{Err: mapBedrockError(c.name, err, req.Model)})
			return
		}
		trace.Logger().Debug().Str("provider", c.name).Int("tool_calls", len(calls)).Msg("converse stream complete")
		if len(calls) > 0 {
			send(ctx, ch, StreamChunk{ToolCalls: calls})
		}
	}()
	return ch, nil
}

// toolUseState accumulates one tool-use content block. The id and name
// arrive in the block start; the JSON input arrives as string fragments.
type toolUseState struct {
	id    string
	name  string
	input strings.Builder
}

// consumeConverseEvents runs the ConverseStream event machine: text deltas
// are forwarded on out, tool-use blocks are keyed by content block index and
// parsed independently when their stop event arrives. Returns the completed
// calls in block order, and false when the context ended delivery early.
func consumeConverseEvents(ctx context.Context, events <-chan types.ConverseStreamOutput, out chan<- StreamChunk) ([]session.ToolCall, bool) {
	open := make(map[int32]*toolUseState)
	var calls []session.ToolCall

	for event := range events {
		switch ev := event.(type) {
		case *types.ConverseStreamOutputMemberContentBlockStart:
			start, isToolUse := ev.Value.Start.(*types.ContentBlockStartMemberToolUse)
			if !isToolUse {
				continue
			}
			idx := aws.ToInt32(ev.Value.ContentBlockIndex)
			open[idx] = &toolUseState{
				id:   aws.ToString(start.Value.ToolUseId),
				name: aws.ToString(start.Value.Name),
			}

		case *types.ConverseStreamOutputMemberContentBlockDelta:
			switch delta := ev.Value.Delta.(type) {
			case *types.ContentBlockDeltaMemberText:
				if delta.Value != "" {
					if !send(ctx, out, StreamChunk{Delta: delta.Value}) {
						return nil, false
					}
				}
			case *types.ContentBlockDeltaMemberToolUse:
				idx := aws.ToInt32(ev.Value.ContentBlockIndex)
				if state, ok := open[idx]; ok {
					state.input.WriteString(aws.ToString(delta.Value.Input))
				}
			}

		case *types.ConverseStreamOutputMemberContentBlockStop:
			idx := aws.ToInt32(ev.Value.ContentBlockIndex)
			state, ok := open[idx]
			if !ok {
				continue
			}
			calls = append(calls, session.ToolCall{
				ID:   state.id,
				Name: state.name,
				Args: parseToolArguments(state.input.String()),
			})
			delete(open, idx)
		}
	}
	return calls, true
}

// systemTextOf collects system-role content, which Bedrock takes as a
// top-level field rather than a message.
func systemTextOf(msgs []session.Message) string {
	var parts []string
	for _, m := range msgs {
		if m.Role == session.RoleSystem && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// convertMessagesToBedrock reshapes the neutral history into Converse
// messages. System messages are lifted out, assistant tool calls become
// toolUse blocks, and a batched tool message becomes a single user message
// holding one toolResult block per result.
func convertMessagesToBedrock(msgs []session.Message) []types.Message {
	var out []types.Message
	for _, m := range msgs {
		switch m.Role {
		case session.RoleSystem:
			continue
		case session.RoleAssistant:
			var blocks []types.ContentBlock
			if m.Content != "" {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := tc.Args
				if args == nil {
					args = map[string]interface{}{}
				}
				blocks = append(blocks, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(args),
				}})
			}
			if len(blocks) > 0 {
				out = append(out, types.Message{Role: types.ConversationRoleAssistant, Content: blocks})
			}
		case session.RoleTool:
			var blocks []types.ContentBlock
			for _, r := range m.Results() {
				blocks = append(blocks, &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
					ToolUseId: aws.String(r.ToolCallID),
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberText{Value: r.Content},
					},
				}})
			}
			if len(blocks) > 0 {
				out = append(out, types.Message{Role: types.ConversationRoleUser, Content: blocks})
			}
		default:
			if m.Content == "" {
				continue
			}
			out = append(out, types.Message{Role: types.ConversationRoleUser, Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: m.Content},
			}})
		}
	}
	return out
}

// convertToolsToBedrock wraps tool definitions as tool specifications with
// lazy JSON schema documents.
func convertToolsToBedrock(defs []ToolDefinition) *types.ToolConfiguration {
	cfg := &types.ToolConfiguration{}
	for _, d := range defs {
		params := d.Parameters
		if params == nil {
			params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		spec := types.ToolSpecification{
			Name:        aws.String(d.Name),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(params)},
		}
		if d.Description != "" {
			spec.Description = aws.String(d.Description)
		}
		cfg.Tools = append(cfg.Tools, &types.ToolMemberToolSpec{Value: spec})
	}
	return cfg
}

// mapBedrockError converts an AWS SDK failure into the shared taxonomy.
func mapBedrockError(provider string, err error, model string) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var throttled *types.ThrottlingException
	if stderrors.As(err, &throttled) {
		return &RateLimitError{ProviderError: ProviderError{
			Provider: provider, Message: aws.ToString(throttled.Message), Err: err,
		}}
	}
	var notFound *types.ResourceNotFoundException
	if stderrors.As(err, &notFound) {
		return &ModelNotFoundError{ProviderError: ProviderError{
			Provider: provider, Message: aws.ToString(notFound.Message), Err: err,
		}, Model: model}
	}
	var denied *types.AccessDeniedException
	if stderrors.As(err, &denied) {
		return &AuthenticationError{ProviderError: ProviderError{
			Provider: provider, Message: aws.ToString(denied.Message), Err: err,
		}}
	}
	var invalid *types.ValidationException
	if stderrors.As(err, &invalid) {
		msg := aws.ToString(invalid.Message)
		if strings.Contains(strings.ToLower(msg), "model") {
			return &ModelNotFoundError{ProviderError: ProviderError{
				Provider: provider, Message: msg, Err: err,
			}, Model: model}
		}
		return &ProviderError{Provider: provider, Message: msg, Err: err}
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "UnrecognizedClientException", "InvalidSignatureException", "ExpiredTokenException":
			return &AuthenticationError{ProviderError: ProviderError{
				Provider: provider, Message: apiErr.ErrorMessage(), Err: err,
			}}
		}
		return &ProviderError{Provider: provider, Message: apiErr.ErrorMessage(), Err: err}
	}

	return &ProviderError{Provider: provider, Message: "converse stream failed", Err: err}
}
