// Package llm normalizes structurally different chat-completion backends
// behind one contract. Each client translates the internal message/tool
// model into its backend's wire shape and back, preserving tool-call
// threading and reporting normalized usage. This layer never retries;
// retry policy belongs to callers that know a retry is safe.
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/session"
	"github.com/m4xw311/aide/tools"
)

// FinishReason is the normalized reason a completion ended.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishError     FinishReason = "error"
)

// Usage is token accounting normalized across backend field names.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Request is one completion request in the internal model. Model carries
// the backend model name; provider resolution happens in the Adapter
// before a client ever sees the request.
type Request struct {
	Model       string
	Messages    []session.Message
	Tools       []tools.Tool
	MaxTokens   int64
	Temperature float64
}

// Response is the normalized completion result.
type Response struct {
	Content      string
	ToolCalls    []session.ToolCall
	Usage        *Usage
	FinishReason FinishReason
}

// Chunk is one fragment of a streamed completion. A transport failure
// mid-stream arrives as a final chunk with Err set; text already delivered
// is not retracted.
type Chunk struct {
	Text string
	Err  error
}

// Client is the interface every completion backend implements.
// StreamComplete produces a lazy, finite, non-restartable sequence; the
// channel is closed when the stream ends, after an error chunk if the
// transport failed.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	StreamComplete(ctx context.Context, req Request) (<-chan Chunk, error)
}

// knownProviders are the prefixes recognized in a "provider:name" model id.
// Anything else before a colon is part of the model name (ollama tags like
// "llama3:8b" stay intact).
var knownProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"gemini":    true,
	"bedrock":   true,
	"ollama":    true,
}

// ParseModelID splits an optional "provider:name" pair. When the id has no
// recognized provider prefix the returned provider is empty and the whole
// id is the model name.
func ParseModelID(id string) (provider, name string) {
	if i := strings.Index(id, ":"); i > 0 && knownProviders[id[:i]] {
		return id[:i], id[i+1:]
	}
	return "", id
}

// Adapter routes requests to the configured client for the model's
// provider. It implements Client itself, so callers that only ever need
// one contract can hold an Adapter where a Client is expected.
type Adapter struct {
	clients         map[string]Client
	defaultProvider string
	log             *logrus.Entry
}

// NewAdapter creates an adapter with no clients registered.
func NewAdapter(defaultProvider string, log *logrus.Entry) *Adapter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Adapter{
		clients:         make(map[string]Client),
		defaultProvider: defaultProvider,
		log:             log,
	}
}

// RegisterClient attaches a backend client under a provider name.
func (a *Adapter) RegisterClient(provider string, client Client) {
	a.clients[provider] = client
}

// Providers returns the configured provider names, sorted.
func (a *Adapter) Providers() []string {
	names := make([]string, 0, len(a.clients))
	for name := range a.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolve picks the client for a model id. A missing client is a
// configuration error raised before any network attempt.
func (a *Adapter) resolve(model string) (Client, string, error) {
	provider, name := ParseModelID(model)
	if provider == "" {
		provider = a.defaultProvider
	}
	client, ok := a.clients[provider]
	if !ok {
		return nil, "", errors.Newk(errors.KindConfiguration,
			"no client configured for provider %q (model %q)", provider, model)
	}
	return client, name, nil
}

// Complete resolves the provider and delegates. Transport errors propagate
// unmodified apart from the provider kind tag.
func (a *Adapter) Complete(ctx context.Context, req Request) (*Response, error) {
	client, name, err := a.resolve(req.Model)
	if err != nil {
		return nil, err
	}
	req.Model = name
	resp, err := client.Complete(ctx, req)
	if err != nil {
		if errors.KindOf(err) == "" {
			err = errors.WithKind(errors.KindProvider, err)
		}
		return nil, err
	}
	return resp, nil
}

// StreamComplete resolves the provider and delegates.
func (a *Adapter) StreamComplete(ctx context.Context, req Request) (<-chan Chunk, error) {
	client, name, err := a.resolve(req.Model)
	if err != nil {
		return nil, err
	}
	req.Model = name
	return client.StreamComplete(ctx, req)
}

// MockClient is a canned-response client used when no provider is
// configured and in tests.
type MockClient struct{}

func (m *MockClient) Complete(ctx context.Context, req Request) (*Response, error) {
	last := ""
	if len(req.Messages) > 0 {
		last = req.Messages[len(req.Messages)-1].Content
	}
	return &Response{
		Content:      fmt.Sprintf("I am a mock model. You said: %q.", last),
		FinishReason: FinishStop,
	}, nil
}

func (m *MockClient) StreamComplete(ctx context.Context, req Request) (<-chan Chunk, error) {
	resp, _ := m.Complete(ctx, req)
	ch := make(chan Chunk, 1)
	ch <- Chunk{Text: resp.Content}
	close(ch)
	return ch, nil
}
