package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/session"
)

// fakeTool is a configurable tool for registry tests.
type fakeTool struct {
	name    string
	schema  *Schema
	output  string
	err     error
	panics  bool
	called  int
	lastCtx context.Context
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "test tool" }
func (f *fakeTool) Schema() *Schema     { return f.schema }

func (f *fakeTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	f.called++
	f.lastCtx = ctx
	if f.panics {
		panic("tool blew up")
	}
	return f.output, f.err
}

func TestDispatchUnknownToolContained(t *testing.T) {
	r := NewRegistry(nil)
	result := r.Dispatch(context.Background(), session.ToolCall{ID: "c1", Name: "nope"})
	if result.Success {
		t.Fatal("expected failure for unknown tool")
	}
	if !strings.Contains(result.Error, "Unknown tool") {
		t.Errorf("expected unknown-tool error, got %q", result.Error)
	}
	if result.ToolCallID != "c1" {
		t.Errorf("result must carry the call id, got %q", result.ToolCallID)
	}
}

func TestDispatchValidatesBeforeExecute(t *testing.T) {
	ft := &fakeTool{
		name:   "echo",
		schema: ObjectSchema(map[string]*Schema{"text": StringSchema("")}, "text"),
	}
	r := NewRegistry(nil)
	r.Register(ft)

	result := r.Dispatch(context.Background(), session.ToolCall{ID: "c2", Name: "echo", Args: map[string]interface{}{}})
	if result.Success {
		t.Fatal("expected validation failure")
	}
	if ft.called != 0 {
		t.Error("tool must not run when arguments are invalid")
	}
}

func TestDispatchContainsPanic(t *testing.T) {
	ft := &fakeTool{name: "volatile", schema: ObjectSchema(nil), panics: true}
	r := NewRegistry(nil)
	r.Register(ft)

	result := r.Dispatch(context.Background(), session.ToolCall{ID: "c3", Name: "volatile"})
	if result.Success {
		t.Fatal("expected contained failure")
	}
	if !strings.Contains(result.Error, "panicked") {
		t.Errorf("expected panic message, got %q", result.Error)
	}
}

func TestDispatchContainsToolError(t *testing.T) {
	ft := &fakeTool{name: "flaky", schema: ObjectSchema(nil), err: errors.New("backend unavailable")}
	r := NewRegistry(nil)
	r.Register(ft)

	result := r.Dispatch(context.Background(), session.ToolCall{ID: "c4", Name: "flaky"})
	if result.Success || result.Error == "" {
		t.Errorf("expected contained failure with message, got %+v", result)
	}
}

func TestDispatchSuccess(t *testing.T) {
	ft := &fakeTool{name: "greet", schema: ObjectSchema(nil), output: "hello"}
	r := NewRegistry(nil)
	r.Register(ft)

	result := r.Dispatch(context.Background(), session.ToolCall{ID: "c5", Name: "greet"})
	if !result.Success || result.Output != "hello" || result.Error != "" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestResolveWildcards(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeTool{name: "memory_store", schema: ObjectSchema(nil)})
	r.Register(&fakeTool{name: "memory_load", schema: ObjectSchema(nil)})
	r.Register(&fakeTool{name: "clock", schema: ObjectSchema(nil)})

	resolved, err := r.Resolve([]string{"memory_*", "clock"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 3 {
		t.Errorf("expected 3 tools, got %d", len(resolved))
	}

	if _, err := r.Resolve([]string{"calendar_*"}); err == nil {
		t.Error("expected error for pattern matching nothing")
	}
}

func TestResolveDeduplicates(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeTool{name: "clock", schema: ObjectSchema(nil)})

	resolved, err := r.Resolve([]string{"clock", "clo*"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 1 {
		t.Errorf("expected deduplicated single tool, got %d", len(resolved))
	}
}
