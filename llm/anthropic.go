package llm

import (
	"context"
	"encoding/json"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/session"
	"github.com/m4xw311/aide/tools"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicClient speaks the block-format wire shape: tool calls and tool
// results are tool_use/tool_result content blocks addressed by id inside a
// turn, and system-role content is extracted into a separate system field
// rather than left inline.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new AnthropicClient. It requires the
// ANTHROPIC_API_KEY environment variable to be set.
func NewAnthropicClient(ctx context.Context) (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, errors.Newk(errors.KindConfiguration, "ANTHROPIC_API_KEY environment variable not set")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &AnthropicClient{client: &client}, nil
}

func (a *AnthropicClient) params(req Request) anthropic.MessageNewParams {
	anthropicMessages, systemPrompt := toAnthropicMessages(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  anthropicMessages,
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}
	for _, toolParam := range toAnthropicTools(req.Tools) {
		tp := toolParam
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &tp})
	}
	return params
}

// Complete sends one messages request and normalizes the response.
func (a *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := a.client.Messages.New(ctx, a.params(req))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to Anthropic")
	}
	return fromAnthropicResponse(resp)
}

// StreamComplete yields text fragments as the model produces them.
func (a *AnthropicClient) StreamComplete(ctx context.Context, req Request) (<-chan Chunk, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.params(req))
	out := make(chan Chunk)
	go func() {
		defer close(out)
		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if ev.Delta.Text != "" {
					select {
					case out <- Chunk{Text: ev.Delta.Text}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- Chunk{Err: errors.WithKind(errors.KindProvider,
				errors.Wrapf(err, "Anthropic stream failed"))}
		}
	}()
	return out, nil
}

// toAnthropicMessages converts the internal message model to Anthropic's
// block format. The last system-role message becomes the out-of-band
// system prompt; tool results become tool_result blocks on user turns.
func toAnthropicMessages(messages []session.Message) ([]anthropic.MessageParam, string) {
	var anthropicMessages []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case session.RoleUser:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case session.RoleAssistant:
			var contentItems []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				contentItems = append(contentItems, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{Text: msg.Content},
				})
			}
			for _, tc := range msg.ToolCalls {
				argsBytes, err := json.Marshal(tc.Args)
				if err != nil {
					continue
				}
				contentItems = append(contentItems, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						Type:  "tool_use",
						ID:    tc.ID,
						Name:  tc.Name,
						Input: json.RawMessage(argsBytes),
					}})
			}
			if len(contentItems) == 0 {
				continue
			}
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: contentItems,
			})
		case session.RoleTool:
			if len(msg.ToolResults) != 1 {
				continue
			}
			result := msg.ToolResults[0]
			block := &anthropic.ToolResultBlockParam{
				ToolUseID: result.ToolCallID,
				Content: []anthropic.ToolResultBlockParamContentUnion{{
					OfText: &anthropic.TextBlockParam{Text: msg.Content},
				}},
			}
			if !result.Success {
				block.IsError = anthropic.Bool(true)
			}
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{{OfToolResult: block}},
			})
		case session.RoleSystem:
			// The last system message wins as the out-of-band prompt.
			systemPrompt = msg.Content
		}
	}

	return anthropicMessages, systemPrompt
}

// toAnthropicTools converts the internal Tool contract to Anthropic's tool
// declarations, carrying the full input schema.
func toAnthropicTools(ts []tools.Tool) []anthropic.ToolParam {
	if len(ts) == 0 {
		return nil
	}
	var anthropicTools []anthropic.ToolParam
	for _, t := range ts {
		schema := t.Schema()
		properties := map[string]interface{}{}
		for name, prop := range schema.Properties {
			properties[name] = prop.AsMap()
		}
		anthropicTools = append(anthropicTools, anthropic.ToolParam{
			Name:        t.Name(),
			Description: anthropic.String(t.Description()),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   schema.Required,
			},
		})
	}
	return anthropicTools
}

// fromAnthropicResponse converts an Anthropic API response into the
// internal normalized Response.
func fromAnthropicResponse(resp *anthropic.Message) (*Response, error) {
	out := &Response{FinishReason: FinishStop}
	if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
		out.Usage = &Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}
	}
	switch resp.StopReason {
	case anthropic.StopReasonMaxTokens:
		out.FinishReason = FinishLength
	case anthropic.StopReasonToolUse:
		out.FinishReason = FinishToolCalls
	}

	for _, content := range resp.Content {
		switch c := content.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += c.Text
		case anthropic.ToolUseBlock:
			var args map[string]interface{}
			if err := json.Unmarshal(c.Input, &args); err != nil {
				return nil, errors.Wrapf(err, "failed to unmarshal tool call input")
			}
			out.ToolCalls = append(out.ToolCalls, session.ToolCall{
				ID:   c.ID,
				Name: c.Name,
				Args: args,
			})
		}
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = FinishToolCalls
	}
	return out, nil
}
