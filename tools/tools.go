package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/session"
)

// Tool defines the interface for any action an agent can take. Schema
// declares the parameters; arguments are validated against it before
// Execute is ever called. A well-formed Execute never panics; the registry
// contains it if it does.
type Tool interface {
	Name() string
	Description() string
	Schema() *Schema
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// Registry holds the tools available to one agent.
type Registry struct {
	tools map[string]Tool
	log   *logrus.Entry
}

func NewRegistry(log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{tools: make(map[string]Tool), log: log}
}

func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered tool in name order.
func (r *Registry) All() []Tool {
	all := make([]Tool, 0, len(r.tools))
	for _, name := range r.Names() {
		all = append(all, r.tools[name])
	}
	return all
}

// Resolve returns the tools matching a toolset's patterns. Patterns may use
// wildcards ("memory_*", "calc:*"); a pattern that matches nothing is an
// error so misconfigured toolsets surface at startup, not mid-task.
func (r *Registry) Resolve(patterns []string) ([]Tool, error) {
	seen := map[string]bool{}
	var resolved []Tool
	for _, pattern := range patterns {
		matched := false
		for _, name := range r.Names() {
			ok, err := doublestar.Match(pattern, name)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid tool pattern %q", pattern)
			}
			if !ok {
				continue
			}
			matched = true
			if seen[name] {
				continue
			}
			seen[name] = true
			resolved = append(resolved, r.tools[name])
		}
		if !matched {
			return nil, errors.New("tool pattern %q matches no registered tool", pattern)
		}
	}
	return resolved, nil
}

// Dispatch executes one model-issued call and contains every failure mode
// into a ToolResult: unknown names, argument validation failures, tool
// errors, and panics all come back as failed results, never as a thrown
// error. The transcript always gets an entry.
func (r *Registry) Dispatch(ctx context.Context, call session.ToolCall) session.ToolResult {
	tool, ok := r.Get(call.Name)
	if !ok {
		r.log.WithField("tool", call.Name).Warn("unknown tool requested")
		return session.FailedResult(call.ID, fmt.Sprintf("Unknown tool: %s", call.Name))
	}

	if err := tool.Schema().Validate(call.Args); err != nil {
		r.log.WithFields(logrus.Fields{"tool": call.Name, "error": err}).Warn("tool arguments rejected")
		return session.FailedResult(call.ID, fmt.Sprintf("Invalid arguments: %v", err))
	}

	output, err := r.execute(ctx, tool, call.Args)
	if err != nil {
		r.log.WithFields(logrus.Fields{"tool": call.Name, "error": err}).Warn("tool execution failed")
		return session.FailedResult(call.ID, err.Error())
	}
	return session.SucceededResult(call.ID, output)
}

// execute runs the tool with panic containment.
func (r *Registry) execute(ctx context.Context, tool Tool, args map[string]interface{}) (output string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.WithKind(errors.KindToolExecution,
				errors.New("tool %q panicked: %v", tool.Name(), rec))
		}
	}()
	output, err = tool.Execute(ctx, args)
	if err != nil {
		err = errors.WithKind(errors.KindToolExecution, err)
	}
	return output, err
}

// IsMCPName reports whether a tool name addresses an external MCP server
// ("server:tool").
func IsMCPName(name string) bool {
	return strings.Contains(name, ":")
}
