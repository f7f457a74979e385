package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/llm"
	"github.com/m4xw311/aide/memory"
	"github.com/m4xw311/aide/session"
	"github.com/m4xw311/aide/task"
)

// Engine runs the completion/tool loop for one task at a time. The loop is
// bounded: it ends when the model stops asking for tools, when the
// iteration cap is reached, when the provider fails, or when the context is
// cancelled. Tool failures never end the loop; they go back to the model as
// failed results.
type Engine struct {
	client        llm.Client
	journal       memory.Journal
	observer      Observer
	maxIterations int
	historyWindow int
	callTimeout   time.Duration
	log           *logrus.Entry
}

// NewEngine creates an engine. journal and observer may be nil.
func NewEngine(client llm.Client, journal memory.Journal, observer Observer, maxIterations, historyWindow int, callTimeout time.Duration, log *logrus.Entry) *Engine {
	if observer == nil {
		observer = NopObserver{}
	}
	if maxIterations <= 0 {
		maxIterations = 10
	}
	if historyWindow <= 0 {
		historyWindow = 10
	}
	if callTimeout <= 0 {
		callTimeout = 120 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		client:        client,
		journal:       journal,
		observer:      observer,
		maxIterations: maxIterations,
		historyWindow: historyWindow,
		callTimeout:   callTimeout,
		log:           log.WithField("component", "engine"),
	}
}

// Execute runs the task on the agent until a terminal outcome. The task
// always leaves terminal: completed on a final answer, failed on provider
// error, cancellation or cap exhaustion.
func (e *Engine) Execute(ctx context.Context, agent *Agent, t *task.Task) error {
	agent.setActive(true)
	defer agent.setActive(false)

	e.observer.TaskStarted(agent, t)

	messages, user := e.seedMessages(agent, t)
	e.record(ctx, agent, user)

	for i := 0; i < e.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return e.fail(agent, t, errors.WithKind(errors.KindCancelled,
				errors.Wrapf(err, "task cancelled before iteration %d", i+1)))
		}

		resp, err := e.complete(ctx, agent, messages)
		if err != nil {
			return e.fail(agent, t, err)
		}
		e.observer.Thinking(agent, resp.Content)

		assistant := session.NewMessage(session.RoleAssistant, resp.Content)
		assistant.AgentID = agent.ID
		assistant.ToolCalls = resp.ToolCalls
		messages = append(messages, assistant)
		e.record(ctx, agent, assistant)

		if len(resp.ToolCalls) == 0 {
			t.Complete(resp.Content)
			e.observer.TaskCompleted(agent, t)
			return nil
		}

		// Dispatch in the order the model asked. A failed or unknown tool
		// produces a failed result the model sees on the next turn.
		for _, call := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				return e.fail(agent, t, errors.WithKind(errors.KindCancelled,
					errors.Wrapf(err, "task cancelled before dispatching %s", call.Name)))
			}
			e.observer.ToolCalled(agent, call)
			result := e.dispatch(ctx, agent, call)
			e.observer.ToolReturned(agent, result)

			toolMsg := session.ToolMessage(result)
			toolMsg.AgentID = agent.ID
			messages = append(messages, toolMsg)
			e.record(ctx, agent, toolMsg)
		}
	}

	return e.fail(agent, t, errors.Newk(errors.KindMaxIterations,
		"task %s exceeded %d iterations without completing", t.ID, e.maxIterations))
}

// seedMessages builds the initial conversation: system prompt, a trailing
// window of the agent's history, then the task itself as the user turn.
// The user turn is returned separately so the caller can record it; the
// history an agent carries into its next task must hold the questions, not
// just the answers.
func (e *Engine) seedMessages(agent *Agent, t *task.Task) ([]session.Message, session.Message) {
	var messages []session.Message
	if agent.SystemPrompt != "" {
		messages = append(messages, session.NewMessage(session.RoleSystem, agent.SystemPrompt))
	}
	messages = append(messages, session.Window(agent.History(), e.historyWindow)...)

	prompt := t.Title
	if t.Description != "" && t.Description != t.Title {
		prompt = fmt.Sprintf("%s\n\n%s", t.Title, t.Description)
	}
	user := session.NewMessage(session.RoleUser, prompt)
	messages = append(messages, user)
	return messages, user
}

// complete performs one bounded completion call.
func (e *Engine) complete(ctx context.Context, agent *Agent, messages []session.Message) (*llm.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	resp, err := e.client.Complete(callCtx, llm.Request{
		Model:    agent.Model,
		Messages: messages,
		Tools:    agent.Tools.All(),
	})
	if err != nil {
		if errors.KindOf(err) == "" {
			err = errors.WithKind(errors.KindProvider, err)
		}
		return nil, err
	}
	return resp, nil
}

// dispatch runs one tool call under the per-call deadline. A timed-out
// tool comes back as a contained failure like any other tool error.
func (e *Engine) dispatch(ctx context.Context, agent *Agent, call session.ToolCall) session.ToolResult {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return agent.Tools.Dispatch(callCtx, call)
}

// fail marks the task failed and notifies the observer. The original error
// propagates to the caller.
func (e *Engine) fail(agent *Agent, t *task.Task, err error) error {
	t.Fail(err.Error())
	e.observer.TaskFailed(agent, t, err)
	return err
}

// record appends the message to the agent's history and the journal. A
// journal write failure is logged, not fatal; losing a journal entry must
// not fail a running task.
func (e *Engine) record(ctx context.Context, agent *Agent, msg session.Message) {
	agent.appendHistory(msg)
	if e.journal == nil {
		return
	}
	if err := e.journal.AddMessage(ctx, msg); err != nil {
		e.log.WithError(err).Warn("Failed to journal message")
	}
}
