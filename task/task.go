package task

import (
	"time"

	"github.com/google/uuid"
)

// Type separates work requests from personal ones; model selection prefers
// cloud backends for work and local backends for personal.
type Type string

const (
	TypeWork     Type = "work"
	TypePersonal Type = "personal"
	// TypeUnclear marks requests the classifier could not place; low
	// confidence unclear requests turn into clarification questions
	// instead of tasks.
	TypeUnclear Type = "unclear"
)

// Priority of a routed task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Status of a task in its lifecycle. Tasks are created pending, move to
// in_progress when dispatched, and reach exactly one terminal status.
type Status string

const (
	StatusPending      Status = "pending"
	StatusInProgress   Status = "in_progress"
	StatusWaitingInput Status = "waiting_input"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Result is the terminal outcome of executing a task.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Task is one unit of routed work.
type Task struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Type          Type                   `json:"type"`
	Priority      Priority               `json:"priority"`
	Status        Status                 `json:"status"`
	AssignedAgent string                 `json:"assigned_agent,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	Result        *Result                `json:"result,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// New creates a pending task with a fresh id.
func New(title, description string, typ Type, priority Priority) *Task {
	now := time.Now()
	return &Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Type:        typ,
		Priority:    priority,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Metadata:    map[string]interface{}{},
	}
}

// MarkInProgress records dispatch to an agent.
func (t *Task) MarkInProgress(agentID string) {
	t.Status = StatusInProgress
	t.AssignedAgent = agentID
	t.UpdatedAt = time.Now()
}

// Complete moves the task to its successful terminal state. It is a no-op
// if the task is already terminal.
func (t *Task) Complete(output string) {
	if t.Terminal() {
		return
	}
	now := time.Now()
	t.Status = StatusCompleted
	t.Result = &Result{Success: true, Output: output}
	t.UpdatedAt = now
	t.CompletedAt = &now
}

// Fail moves the task to its failed terminal state. It is a no-op if the
// task is already terminal.
func (t *Task) Fail(errMsg string) {
	if t.Terminal() {
		return
	}
	now := time.Now()
	t.Status = StatusFailed
	t.Result = &Result{Success: false, Error: errMsg}
	t.UpdatedAt = now
	t.CompletedAt = &now
}

// Terminal reports whether the task has reached a terminal status.
func (t *Task) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}
