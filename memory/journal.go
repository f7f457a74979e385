// Package memory defines the journal consumed by the rest of the system for
// durable messages, tasks, and preferences. The core only appends and
// queries; it never coordinates access beyond per-call durability.
package memory

import (
	"context"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/session"
	"github.com/m4xw311/aide/task"
)

// ErrNotFound is returned when a task or preference key does not exist.
var ErrNotFound = errors.New("not found")

// Journal is the append/query contract for conversation history, tasks, and
// user preferences.
type Journal interface {
	AddMessage(ctx context.Context, msg session.Message) error
	RecentMessages(ctx context.Context, n int) ([]session.Message, error)
	StoreTask(ctx context.Context, t *task.Task) error
	Task(ctx context.Context, id string) (*task.Task, error)
	Preference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error
}
