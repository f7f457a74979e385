package llm

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/session"
	"github.com/m4xw311/aide/tools"
)

// OllamaClient addresses a local Ollama server. It is the preferred
// backend for personal-type tasks so their content stays on the machine.
type OllamaClient struct {
	client *api.Client
}

// NewOllamaClient creates a new OllamaClient. baseURL defaults to the
// local server.
func NewOllamaClient(baseURL string) (*OllamaClient, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.WithKind(errors.KindConfiguration,
			errors.Wrapf(err, "invalid ollama base URL %q", baseURL))
	}
	httpClient := &http.Client{Timeout: 120 * time.Second}
	return &OllamaClient{client: api.NewClient(parsedURL, httpClient)}, nil
}

func (o *OllamaClient) request(req Request, stream bool) *api.ChatRequest {
	options := map[string]interface{}{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	return &api.ChatRequest{
		Model:    req.Model,
		Messages: toOllamaMessages(req.Messages),
		Tools:    toOllamaTools(req.Tools),
		Stream:   &stream,
		Options:  options,
	}
}

// Complete sends one chat request and normalizes the response.
func (o *OllamaClient) Complete(ctx context.Context, req Request) (*Response, error) {
	var last *api.ChatResponse
	err := o.client.Chat(ctx, o.request(req, false), func(resp api.ChatResponse) error {
		last = &resp
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to chat with ollama")
	}
	if last == nil {
		return &Response{FinishReason: FinishStop}, nil
	}
	return fromOllamaResponse(last), nil
}

// StreamComplete bridges Ollama's callback API into the chunk channel.
func (o *OllamaClient) StreamComplete(ctx context.Context, req Request) (<-chan Chunk, error) {
	out := make(chan Chunk)
	go func() {
		defer close(out)
		err := o.client.Chat(ctx, o.request(req, true), func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			select {
			case out <- Chunk{Text: resp.Message.Content}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			out <- Chunk{Err: errors.WithKind(errors.KindProvider,
				errors.Wrapf(err, "ollama stream failed"))}
		}
	}()
	return out, nil
}

// toOllamaMessages converts the internal message model to Ollama's turn
// format. Ollama threads tool results positionally as tool-role turns.
func toOllamaMessages(messages []session.Message) []api.Message {
	var out []api.Message
	for _, msg := range messages {
		m := api.Message{Role: string(msg.Role), Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, api.ToolCall{
				Function: api.ToolCallFunction{
					Name:      tc.Name,
					Arguments: api.ToolCallFunctionArguments(tc.Args),
				},
			})
		}
		out = append(out, m)
	}
	return out
}

// toOllamaTools converts the internal Tool contract to Ollama's typed
// declarations. Nested object properties flatten into the generic items
// slot, the closest Ollama's schema gets to arbitrary nesting.
func toOllamaTools(ts []tools.Tool) api.Tools {
	if len(ts) == 0 {
		return nil
	}
	var out api.Tools
	for _, t := range ts {
		schema := t.Schema()
		fn := api.ToolFunction{
			Name:        t.Name(),
			Description: t.Description(),
		}
		fn.Parameters.Type = "object"
		fn.Parameters.Required = schema.Required
		fn.Parameters.Properties = map[string]api.ToolProperty{}
		for name, prop := range schema.Properties {
			property := api.ToolProperty{
				Type:        api.PropertyType{prop.Type},
				Description: prop.Description,
			}
			for _, e := range prop.Enum {
				property.Enum = append(property.Enum, e)
			}
			if prop.Items != nil {
				property.Items = prop.Items.AsMap()
			}
			fn.Parameters.Properties[name] = property
		}
		out = append(out, api.Tool{Type: "function", Function: fn})
	}
	return out
}

// fromOllamaResponse converts an Ollama response into the internal
// normalized Response. Ollama issues no call ids, so they are synthesized.
func fromOllamaResponse(resp *api.ChatResponse) *Response {
	out := &Response{Content: resp.Message.Content, FinishReason: FinishStop}
	if resp.DoneReason == "length" {
		out.FinishReason = FinishLength
	}
	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
		out.Usage = &Usage{
			PromptTokens:     int64(resp.PromptEvalCount),
			CompletionTokens: int64(resp.EvalCount),
			TotalTokens:      int64(resp.PromptEvalCount + resp.EvalCount),
		}
	}
	for _, tc := range resp.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls,
			session.NewToolCall(tc.Function.Name, map[string]interface{}(tc.Function.Arguments)))
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = FinishToolCalls
	}
	return out
}
