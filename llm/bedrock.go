package llm

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/session"
)

// BedrockClient addresses Anthropic models on AWS Bedrock. The wire shape
// is the same block format the AnthropicClient speaks, hand-built as JSON
// for InvokeModel.
type BedrockClient struct {
	client *bedrockruntime.Client
}

// NewBedrockClient creates a new BedrockClient. It requires AWS
// credentials to be configured in the environment.
func NewBedrockClient(ctx context.Context) (*BedrockClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.WithKind(errors.KindConfiguration,
			errors.Wrapf(err, "failed to load AWS config"))
	}
	return &BedrockClient{client: bedrockruntime.NewFromConfig(cfg)}, nil
}

// Complete sends one request via InvokeModel and normalizes the response.
func (b *BedrockClient) Complete(ctx context.Context, req Request) (*Response, error) {
	body, err := bedrockRequestBody(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build Bedrock request")
	}

	resp, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to invoke Bedrock model")
	}
	return fromBedrockResponse(resp.Body)
}

// StreamComplete delegates to Complete and emits the result as a single
// fragment. The stream contract (lazy, finite, fail-on-error) holds;
// incremental delivery is not promised per backend.
func (b *BedrockClient) StreamComplete(ctx context.Context, req Request) (<-chan Chunk, error) {
	out := make(chan Chunk, 1)
	go func() {
		defer close(out)
		resp, err := b.Complete(ctx, req)
		if err != nil {
			out <- Chunk{Err: err}
			return
		}
		if resp.Content != "" {
			out <- Chunk{Text: resp.Content}
		}
	}()
	return out, nil
}

// bedrockRequestBody builds the Anthropic-on-Bedrock JSON body.
func bedrockRequestBody(req Request) ([]byte, error) {
	messages, systemPrompt := toBedrockMessages(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	request := map[string]interface{}{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        maxTokens,
		"messages":          messages,
	}
	if req.Temperature > 0 {
		request["temperature"] = req.Temperature
	}
	if systemPrompt != "" {
		request["system"] = systemPrompt
	}
	if len(req.Tools) > 0 {
		var declared []map[string]interface{}
		for _, t := range req.Tools {
			declared = append(declared, map[string]interface{}{
				"name":         t.Name(),
				"description":  t.Description(),
				"input_schema": t.Schema().AsMap(),
			})
		}
		request["tools"] = declared
	}

	return json.Marshal(request)
}

// toBedrockMessages converts the internal message model to the Anthropic
// block format as generic maps.
func toBedrockMessages(messages []session.Message) ([]map[string]interface{}, string) {
	var out []map[string]interface{}
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case session.RoleUser:
			out = append(out, map[string]interface{}{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": msg.Content},
				},
			})
		case session.RoleAssistant:
			var blocks []map[string]interface{}
			if msg.Content != "" {
				blocks = append(blocks, map[string]interface{}{
					"type": "text", "text": msg.Content,
				})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, map[string]interface{}{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  tc.Name,
					"input": tc.Args,
				})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, map[string]interface{}{
				"role":    "assistant",
				"content": blocks,
			})
		case session.RoleTool:
			if len(msg.ToolResults) != 1 {
				continue
			}
			result := msg.ToolResults[0]
			block := map[string]interface{}{
				"type":        "tool_result",
				"tool_use_id": result.ToolCallID,
				"content":     msg.Content,
			}
			if !result.Success {
				block["is_error"] = true
			}
			out = append(out, map[string]interface{}{
				"role":    "user",
				"content": []map[string]interface{}{block},
			})
		case session.RoleSystem:
			systemPrompt = msg.Content
		}
	}

	return out, systemPrompt
}

// fromBedrockResponse converts a Bedrock response body into the internal
// normalized Response.
func fromBedrockResponse(body []byte) (*Response, error) {
	var response map[string]interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal Bedrock response")
	}

	if errMsg, ok := response["error"]; ok {
		return nil, errors.New("Bedrock API error: %v", errMsg)
	}

	out := &Response{FinishReason: FinishStop}
	switch response["stop_reason"] {
	case "max_tokens":
		out.FinishReason = FinishLength
	case "tool_use":
		out.FinishReason = FinishToolCalls
	}
	if usage, ok := response["usage"].(map[string]interface{}); ok {
		prompt, _ := usage["input_tokens"].(float64)
		completion, _ := usage["output_tokens"].(float64)
		if prompt > 0 || completion > 0 {
			out.Usage = &Usage{
				PromptTokens:     int64(prompt),
				CompletionTokens: int64(completion),
				TotalTokens:      int64(prompt) + int64(completion),
			}
		}
	}

	content, ok := response["content"].([]interface{})
	if !ok {
		return out, nil
	}
	for _, item := range content {
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		switch itemMap["type"] {
		case "text":
			if text, ok := itemMap["text"].(string); ok {
				out.Content += text
			}
		case "tool_use":
			name, nameOk := itemMap["name"].(string)
			input, inputOk := itemMap["input"].(map[string]interface{})
			if !nameOk || !inputOk {
				continue
			}
			call := session.NewToolCall(name, input)
			if id, ok := itemMap["id"].(string); ok && id != "" {
				call.ID = id
			}
			out.ToolCalls = append(out.ToolCalls, call)
		}
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = FinishToolCalls
	}
	return out, nil
}
