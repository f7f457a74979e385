package llm

import (
	"context"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/session"
	"github.com/m4xw311/aide/tools"
)

// GeminiClient speaks Gemini's content/part shape: tool calls are
// FunctionCall parts, tool results FunctionResponse parts threaded by
// function name, and the system prompt moves into SystemInstruction.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a new GeminiClient. It requires the
// GEMINI_API_KEY environment variable to be set.
func NewGeminiClient(ctx context.Context) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, errors.Newk(errors.KindConfiguration, "GEMINI_API_KEY environment variable not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create genai client")
	}
	return &GeminiClient{client: client}, nil
}

// chat prepares a configured model and chat session for one request. The
// returned parts are the final user turn to send.
func (g *GeminiClient) chat(req Request) (*genai.ChatSession, []genai.Part, error) {
	model := g.client.GenerativeModel(req.Model)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if declarations := toGeminiTools(req.Tools); len(declarations) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	history, systemPrompt := toGeminiContents(req.Messages)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	if len(history) == 0 {
		return nil, nil, errors.New("no sendable messages in request")
	}

	cs := model.StartChat()
	cs.History = history[:len(history)-1]
	return cs, history[len(history)-1].Parts, nil
}

// Complete sends one chat request and normalizes the response.
func (g *GeminiClient) Complete(ctx context.Context, req Request) (*Response, error) {
	cs, parts, err := g.chat(req)
	if err != nil {
		return nil, err
	}
	resp, err := cs.SendMessage(ctx, parts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to Gemini")
	}
	return fromGeminiResponse(resp), nil
}

// StreamComplete yields text fragments as the model produces them.
func (g *GeminiClient) StreamComplete(ctx context.Context, req Request) (<-chan Chunk, error) {
	cs, parts, err := g.chat(req)
	if err != nil {
		return nil, err
	}
	iter := cs.SendMessageStream(ctx, parts...)
	out := make(chan Chunk)
	go func() {
		defer close(out)
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				out <- Chunk{Err: errors.WithKind(errors.KindProvider,
					errors.Wrapf(err, "Gemini stream failed"))}
				return
			}
			fragment := fromGeminiResponse(resp)
			if fragment.Content == "" {
				continue
			}
			select {
			case out <- Chunk{Text: fragment.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// toGeminiContents converts the internal message model to Gemini contents.
// Tool results are threaded back by function name; the conversion tracks
// which call id belongs to which name across turns.
func toGeminiContents(messages []session.Message) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemPrompt string
	callNames := map[string]string{}

	for _, msg := range messages {
		switch msg.Role {
		case session.RoleSystem:
			systemPrompt = msg.Content
		case session.RoleAssistant:
			var parts []genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				callNames[tc.ID] = tc.Name
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: tc.Args})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case session.RoleTool:
			if len(msg.ToolResults) != 1 {
				continue
			}
			result := msg.ToolResults[0]
			name := callNames[result.ToolCallID]
			response := map[string]interface{}{"output": result.Output}
			if !result.Success {
				response = map[string]interface{}{"error": result.Error}
			}
			contents = append(contents, &genai.Content{
				Role:  "function",
				Parts: []genai.Part{genai.FunctionResponse{Name: name, Response: response}},
			})
		case session.RoleUser:
			fallthrough
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		}
	}
	return contents, systemPrompt
}

// toGeminiTools converts the internal Tool contract to Gemini function
// declarations with the full parameter schema.
func toGeminiTools(ts []tools.Tool) []*genai.FunctionDeclaration {
	var declarations []*genai.FunctionDeclaration
	for _, t := range ts {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  toGeminiSchema(t.Schema()),
		})
	}
	return declarations
}

// toGeminiSchema maps the internal Schema into genai's typed schema.
func toGeminiSchema(s *tools.Schema) *genai.Schema {
	if s == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	out := &genai.Schema{
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
	}
	switch s.Type {
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		out.Type = genai.TypeObject
	}
	if len(s.Properties) > 0 {
		out.Properties = map[string]*genai.Schema{}
		for name, prop := range s.Properties {
			out.Properties[name] = toGeminiSchema(prop)
		}
	}
	if s.Items != nil {
		out.Items = toGeminiSchema(s.Items)
	}
	return out
}

// fromGeminiResponse converts a Gemini response into the internal
// normalized Response. Gemini issues no call ids, so they are synthesized.
func fromGeminiResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{FinishReason: FinishStop}
	if resp.UsageMetadata != nil {
		out.Usage = &Usage{
			PromptTokens:     int64(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int64(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		out.FinishReason = FinishLength
	}
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			out.Content += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, session.NewToolCall(p.Name, p.Args))
		}
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = FinishToolCalls
	}
	return out
}
