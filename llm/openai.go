package llm

import (
	"context"
	"encoding/json"
	"os"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/session"
	"github.com/m4xw311/aide/tools"
)

// OpenAIClient speaks the turn-format wire shape: tool results travel as
// dedicated tool-role turns linked by a top-level tool_call_id, and the
// system prompt stays inline as a system-role turn.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAIClient. It requires the
// OPENAI_API_KEY environment variable to be set and honors OPENAI_BASE_URL
// for custom endpoints.
func NewOpenAIClient(ctx context.Context) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.Newk(errors.KindConfiguration, "OPENAI_API_KEY environment variable not set")
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	c := openai.NewClient(options...)
	// The &c is required, do not replace and just use c
	return &OpenAIClient{client: &c}, nil
}

func (o *OpenAIClient) params(req Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: toOpenAIMessages(req.Messages),
		Tools:    toOpenAITools(req.Tools),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	return params
}

// Complete sends one chat request and normalizes the response.
func (o *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := o.client.Chat.Completions.New(ctx, o.params(req))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to OpenAI")
	}
	return fromOpenAIResponse(resp)
}

// StreamComplete yields text fragments as the model produces them.
func (o *OpenAIClient) StreamComplete(ctx context.Context, req Request) (<-chan Chunk, error) {
	stream := o.client.Chat.Completions.NewStreaming(ctx, o.params(req))
	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				select {
				case out <- Chunk{Text: delta}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- Chunk{Err: errors.WithKind(errors.KindProvider,
				errors.Wrapf(err, "OpenAI stream failed"))}
		}
	}()
	return out, nil
}

// fromOpenAIResponse converts an OpenAI API response into the internal
// normalized Response.
func fromOpenAIResponse(resp *openai.ChatCompletion) (*Response, error) {
	out := &Response{FinishReason: FinishStop}
	if resp.Usage.TotalTokens > 0 {
		out.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	if len(resp.Choices) == 0 {
		return out, nil
	}

	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	switch choice.FinishReason {
	case "length":
		out.FinishReason = FinishLength
	case "tool_calls":
		out.FinishReason = FinishToolCalls
	}

	for _, tc := range choice.Message.ToolCalls {
		var args map[string]interface{}
		// Arguments arrive as a JSON string.
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal tool call arguments from OpenAI")
		}
		out.ToolCalls = append(out.ToolCalls, session.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = FinishToolCalls
	}
	return out, nil
}

// toOpenAIMessages converts the internal message model to OpenAI's turn
// format. Tool results become tool-role turns addressed by tool_call_id.
func toOpenAIMessages(messages []session.Message) []openai.ChatCompletionMessageParamUnion {
	var chatMessages []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case session.RoleSystem:
			chatMessages = append(chatMessages, openai.SystemMessage(msg.Content))
		case session.RoleAssistant:
			assistantMessage := openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: msg.Content,
			}
			for _, tc := range msg.ToolCalls {
				argsBytes, err := json.Marshal(tc.Args)
				if err != nil {
					// Unmarshalable args would already have failed dispatch;
					// skip the call rather than send a half-formed turn.
					continue
				}
				assistantMessage.ToolCalls = append(assistantMessage.ToolCalls,
					openai.ChatCompletionMessageToolCallUnion{
						ID:   tc.ID,
						Type: "function",
						Function: openai.ChatCompletionMessageFunctionToolCallFunction{
							Name:      tc.Name,
							Arguments: string(argsBytes),
						},
					})
			}
			chatMessages = append(chatMessages, assistantMessage.ToParam())
		case session.RoleTool:
			if len(msg.ToolResults) != 1 {
				continue
			}
			chatMessages = append(chatMessages, openai.ToolMessage(msg.Content, msg.ToolResults[0].ToolCallID))
		case session.RoleUser:
			fallthrough
		default:
			chatMessages = append(chatMessages, openai.UserMessage(msg.Content))
		}
	}
	return chatMessages
}

// toOpenAITools converts the internal Tool contract to OpenAI's function
// declarations, carrying the full parameter schema so the provider can
// validate arguments.
func toOpenAITools(ts []tools.Tool) []openai.ChatCompletionToolUnionParam {
	if len(ts) == 0 {
		return nil
	}
	var openAITools []openai.ChatCompletionToolUnionParam
	for _, t := range ts {
		openAITools = append(openAITools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name(),
			Description: openai.String(t.Description()),
			Parameters:  openai.FunctionParameters(t.Schema().AsMap()),
		}))
	}
	return openAITools
}
