package agent

import (
	"github.com/sirupsen/logrus"

	"github.com/m4xw311/aide/session"
	"github.com/m4xw311/aide/task"
)

// Observer receives execution lifecycle events. Observers are strictly
// observational; nothing they do can change the outcome of a run, and a
// slow or broken observer must not be able to fail a task.
type Observer interface {
	TaskStarted(agent *Agent, t *task.Task)
	Thinking(agent *Agent, content string)
	ToolCalled(agent *Agent, call session.ToolCall)
	ToolReturned(agent *Agent, result session.ToolResult)
	TaskCompleted(agent *Agent, t *task.Task)
	TaskFailed(agent *Agent, t *task.Task, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) TaskStarted(*Agent, *task.Task)          {}
func (NopObserver) Thinking(*Agent, string)                 {}
func (NopObserver) ToolCalled(*Agent, session.ToolCall)     {}
func (NopObserver) ToolReturned(*Agent, session.ToolResult) {}
func (NopObserver) TaskCompleted(*Agent, *task.Task)        {}
func (NopObserver) TaskFailed(*Agent, *task.Task, error)    {}

// LogObserver writes lifecycle events as structured log lines.
type LogObserver struct {
	Log *logrus.Entry
}

func NewLogObserver(log *logrus.Entry) *LogObserver {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LogObserver{Log: log}
}

func (o *LogObserver) fields(agent *Agent) *logrus.Entry {
	return o.Log.WithFields(logrus.Fields{"agent": agent.ID, "role": agent.Role})
}

func (o *LogObserver) TaskStarted(agent *Agent, t *task.Task) {
	o.fields(agent).WithField("task_id", t.ID).Info("Task started")
}

func (o *LogObserver) Thinking(agent *Agent, content string) {
	o.fields(agent).WithField("chars", len(content)).Debug("Model turn")
}

func (o *LogObserver) ToolCalled(agent *Agent, call session.ToolCall) {
	o.fields(agent).WithFields(logrus.Fields{
		"tool":    call.Name,
		"call_id": call.ID,
	}).Info("Tool call")
}

func (o *LogObserver) ToolReturned(agent *Agent, result session.ToolResult) {
	entry := o.fields(agent).WithFields(logrus.Fields{
		"call_id": result.ToolCallID,
		"success": result.Success,
	})
	if result.Success {
		entry.Debug("Tool result")
	} else {
		entry.WithField("error", result.Error).Warn("Tool failed")
	}
}

func (o *LogObserver) TaskCompleted(agent *Agent, t *task.Task) {
	o.fields(agent).WithField("task_id", t.ID).Info("Task completed")
}

func (o *LogObserver) TaskFailed(agent *Agent, t *task.Task, err error) {
	o.fields(agent).WithFields(logrus.Fields{
		"task_id": t.ID,
		"error":   err.Error(),
	}).Error("Task failed")
}
