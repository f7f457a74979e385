package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/llm"
	"github.com/m4xw311/aide/memory"
	"github.com/m4xw311/aide/session"
	"github.com/m4xw311/aide/task"
	"github.com/m4xw311/aide/tools"
)

// scriptedLLM replays canned responses and records every request. When the
// script runs out it keeps returning the last response.
type scriptedLLM struct {
	responses []*llm.Response
	err       error
	requests  []llm.Request
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	idx := len(s.requests) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func (s *scriptedLLM) StreamComplete(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk)
	close(ch)
	return ch, nil
}

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echoes text back." }
func (echoTool) Schema() *tools.Schema {
	return tools.ObjectSchema(map[string]*tools.Schema{
		"text": tools.StringSchema("Text to echo."),
	}, "text")
}
func (echoTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	text, _ := args["text"].(string)
	return "echo: " + text, nil
}

type brokenTool struct{}

func (brokenTool) Name() string          { return "broken" }
func (brokenTool) Description() string   { return "Always fails." }
func (brokenTool) Schema() *tools.Schema { return tools.ObjectSchema(nil) }
func (brokenTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	return "", errors.New("backend unreachable")
}

func testAgent(toolList ...tools.Tool) *Agent {
	registry := tools.NewRegistry(nil)
	for _, t := range toolList {
		registry.Register(t)
	}
	return New("agent-1", "assistant", "personal", "You are helpful.", "mock:model", registry)
}

func testEngine(client llm.Client, journal memory.Journal, maxIterations int) *Engine {
	return NewEngine(client, journal, nil, maxIterations, 10, time.Minute, nil)
}

func toolCallResponse(calls ...session.ToolCall) *llm.Response {
	return &llm.Response{Content: "working on it", ToolCalls: calls, FinishReason: llm.FinishToolCalls}
}

func stopResponse(content string) *llm.Response {
	return &llm.Response{Content: content, FinishReason: llm.FinishStop}
}

func TestEngineCompletesWithoutTools(t *testing.T) {
	client := &scriptedLLM{responses: []*llm.Response{stopResponse("all done")}}
	engine := testEngine(client, nil, 10)
	tk := task.New("say hi", "say hi", task.TypePersonal, task.PriorityMedium)

	if err := engine.Execute(context.Background(), testAgent(), tk); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if tk.Status != task.StatusCompleted {
		t.Errorf("expected completed, got %q", tk.Status)
	}
	if tk.Result == nil || tk.Result.Output != "all done" {
		t.Errorf("expected result output, got %+v", tk.Result)
	}
	if len(client.requests) != 1 {
		t.Errorf("expected one completion call, got %d", len(client.requests))
	}
}

func TestEngineRunsToolLoop(t *testing.T) {
	client := &scriptedLLM{responses: []*llm.Response{
		toolCallResponse(session.ToolCall{ID: "c1", Name: "echo", Args: map[string]interface{}{"text": "hi"}}),
		stopResponse("done after tool"),
	}}
	engine := testEngine(client, nil, 10)
	tk := task.New("echo something", "", task.TypePersonal, task.PriorityMedium)

	if err := engine.Execute(context.Background(), testAgent(echoTool{}), tk); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if tk.Status != task.StatusCompleted {
		t.Fatalf("expected completed, got %q", tk.Status)
	}
	if len(client.requests) != 2 {
		t.Fatalf("expected two completion calls, got %d", len(client.requests))
	}

	// The second request must carry the assistant turn and the tool result.
	second := client.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != session.RoleTool {
		t.Fatalf("expected trailing tool message, got role %q", last.Role)
	}
	if len(last.ToolResults) != 1 || last.ToolResults[0].ToolCallID != "c1" {
		t.Errorf("tool result not threaded: %+v", last.ToolResults)
	}
	if !last.ToolResults[0].Success || last.ToolResults[0].Output != "echo: hi" {
		t.Errorf("unexpected tool result: %+v", last.ToolResults[0])
	}
}

func TestEngineCapsIterations(t *testing.T) {
	// The model never stops asking for tools.
	client := &scriptedLLM{responses: []*llm.Response{
		toolCallResponse(session.ToolCall{ID: "c1", Name: "echo", Args: map[string]interface{}{"text": "again"}}),
	}}
	engine := testEngine(client, nil, 3)
	tk := task.New("loop forever", "", task.TypePersonal, task.PriorityMedium)

	err := engine.Execute(context.Background(), testAgent(echoTool{}), tk)
	if err == nil {
		t.Fatal("expected iteration cap error")
	}
	if errors.KindOf(err) != errors.KindMaxIterations {
		t.Errorf("expected max-iterations kind, got %q", errors.KindOf(err))
	}
	if tk.Status != task.StatusFailed {
		t.Errorf("expected failed task, got %q", tk.Status)
	}
	if len(client.requests) != 3 {
		t.Errorf("expected exactly 3 completion calls, got %d", len(client.requests))
	}
}

func TestEngineContainsUnknownTool(t *testing.T) {
	client := &scriptedLLM{responses: []*llm.Response{
		toolCallResponse(session.ToolCall{ID: "c1", Name: "no_such_tool", Args: map[string]interface{}{}}),
		stopResponse("recovered"),
	}}
	engine := testEngine(client, nil, 10)
	tk := task.New("use a ghost tool", "", task.TypePersonal, task.PriorityMedium)

	if err := engine.Execute(context.Background(), testAgent(echoTool{}), tk); err != nil {
		t.Fatalf("unknown tool must not fail the run: %v", err)
	}
	if tk.Status != task.StatusCompleted {
		t.Fatalf("expected completed, got %q", tk.Status)
	}

	second := client.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != session.RoleTool || last.ToolResults[0].Success {
		t.Fatalf("expected failed tool message, got %+v", last)
	}
	if !strings.Contains(last.ToolResults[0].Error, "Unknown tool") {
		t.Errorf("expected unknown-tool error, got %q", last.ToolResults[0].Error)
	}
}

func TestEngineContainsToolError(t *testing.T) {
	client := &scriptedLLM{responses: []*llm.Response{
		toolCallResponse(session.ToolCall{ID: "c1", Name: "broken", Args: map[string]interface{}{}}),
		stopResponse("worked around it"),
	}}
	engine := testEngine(client, nil, 10)
	tk := task.New("use the broken tool", "", task.TypePersonal, task.PriorityMedium)

	if err := engine.Execute(context.Background(), testAgent(brokenTool{}), tk); err != nil {
		t.Fatalf("tool error must not fail the run: %v", err)
	}

	second := client.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != session.RoleTool {
		t.Fatalf("expected tool message, got role %q", last.Role)
	}
	result := last.ToolResults[0]
	if result.Success || result.Error == "" {
		t.Errorf("expected failed result with an error message, got %+v", result)
	}
	if last.Content == "" {
		t.Error("tool message content must mirror the error")
	}
}

func TestEngineProviderErrorFailsTask(t *testing.T) {
	client := &scriptedLLM{err: errors.New("upstream 500")}
	engine := testEngine(client, nil, 10)
	tk := task.New("doomed", "", task.TypeWork, task.PriorityMedium)

	err := engine.Execute(context.Background(), testAgent(), tk)
	if err == nil {
		t.Fatal("expected provider error")
	}
	if errors.KindOf(err) != errors.KindProvider {
		t.Errorf("expected provider kind, got %q", errors.KindOf(err))
	}
	if tk.Status != task.StatusFailed || tk.Result == nil || tk.Result.Error == "" {
		t.Errorf("expected failed task with error, got %+v", tk)
	}
}

func TestEngineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &scriptedLLM{responses: []*llm.Response{stopResponse("never seen")}}
	engine := testEngine(client, nil, 10)
	tk := task.New("cancelled before start", "", task.TypePersonal, task.PriorityMedium)

	err := engine.Execute(ctx, testAgent(), tk)
	if errors.KindOf(err) != errors.KindCancelled {
		t.Fatalf("expected cancelled kind, got %v", err)
	}
	if tk.Status != task.StatusFailed {
		t.Errorf("expected failed task, got %q", tk.Status)
	}
	if len(client.requests) != 0 {
		t.Errorf("expected no completion calls after cancellation, got %d", len(client.requests))
	}
}

func TestEngineJournalsTranscript(t *testing.T) {
	journal := memory.NewInMemoryJournal()
	client := &scriptedLLM{responses: []*llm.Response{
		toolCallResponse(session.ToolCall{ID: "c1", Name: "echo", Args: map[string]interface{}{"text": "hi"}}),
		stopResponse("done"),
	}}
	engine := testEngine(client, journal, 10)
	tk := task.New("journal me", "", task.TypePersonal, task.PriorityMedium)
	worker := testAgent(echoTool{})

	if err := engine.Execute(context.Background(), worker, tk); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	msgs, err := journal.RecentMessages(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	// The user turn, two assistant turns, and one tool turn.
	if len(msgs) != 4 {
		t.Fatalf("expected 4 journaled messages, got %d", len(msgs))
	}
	if msgs[0].Role != session.RoleUser || msgs[0].Content != "journal me" {
		t.Errorf("expected the task's user turn first, got %+v", msgs[0])
	}

	// The agent's own history carries the question too, so a follow-up
	// task seeds a conversation that makes sense.
	history := worker.History()
	if len(history) != 4 || history[0].Role != session.RoleUser {
		t.Errorf("expected the user turn at the head of agent history, got %+v", history)
	}
}

func TestRegistryFindsAndExecutes(t *testing.T) {
	journal := memory.NewInMemoryJournal()
	client := &scriptedLLM{responses: []*llm.Response{stopResponse("routed fine")}}
	engine := testEngine(client, journal, 10)
	registry := NewRegistry(engine, journal, nil)

	coder := New("agent-coder", "coder", "work", "You write code.", "mock:model", tools.NewRegistry(nil))
	helper := New("agent-helper", "assistant", "personal", "You help.", "mock:model", tools.NewRegistry(nil))
	registry.Register(coder)
	registry.Register(helper)

	tk := task.New("fix the build", "", task.TypeWork, task.PriorityHigh)
	tk.Metadata["suggested_agent"] = "coder"

	if err := registry.ExecuteTask(context.Background(), tk); err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}
	if tk.AssignedAgent != "agent-coder" {
		t.Errorf("expected suggested agent, got %q", tk.AssignedAgent)
	}
	if tk.Status != task.StatusCompleted {
		t.Errorf("expected completed task, got %q", tk.Status)
	}

	stored, err := journal.Task(context.Background(), tk.ID)
	if err != nil {
		t.Fatalf("journal task: %v", err)
	}
	if stored.Status != task.StatusCompleted {
		t.Errorf("journal holds stale status %q", stored.Status)
	}
}

func TestRegistryFallsBackByType(t *testing.T) {
	client := &scriptedLLM{responses: []*llm.Response{stopResponse("ok")}}
	registry := NewRegistry(testEngine(client, nil, 10), nil, nil)
	registry.Register(New("agent-helper", "assistant", "personal", "", "mock:model", tools.NewRegistry(nil)))

	tk := task.New("anything", "", task.TypePersonal, task.PriorityMedium)
	tk.Metadata["suggested_agent"] = "researcher" // not registered

	agent, err := registry.FindAgentForTask(tk)
	if err != nil {
		t.Fatalf("FindAgentForTask: %v", err)
	}
	if agent.Role != "assistant" {
		t.Errorf("expected type fallback, got %q", agent.Role)
	}

	empty := NewRegistry(testEngine(client, nil, 10), nil, nil)
	if _, err := empty.FindAgentForTask(tk); errors.KindOf(err) != errors.KindConfiguration {
		t.Errorf("expected configuration error from empty registry, got %v", err)
	}
}
