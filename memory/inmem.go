package memory

import (
	"context"
	"sync"

	"github.com/m4xw311/aide/session"
	"github.com/m4xw311/aide/task"
)

// InMemoryJournal keeps everything in process memory. It is the default
// driver and the one tests use.
type InMemoryJournal struct {
	mu          sync.RWMutex
	messages    []session.Message
	tasks       map[string]*task.Task
	preferences map[string]string
}

// NewInMemoryJournal creates an empty journal.
func NewInMemoryJournal() *InMemoryJournal {
	return &InMemoryJournal{
		tasks:       make(map[string]*task.Task),
		preferences: make(map[string]string),
	}
}

func (j *InMemoryJournal) AddMessage(ctx context.Context, msg session.Message) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.messages = append(j.messages, msg)
	return nil
}

// RecentMessages returns the trailing n messages, oldest first.
func (j *InMemoryJournal) RecentMessages(ctx context.Context, n int) ([]session.Message, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	window := session.Window(j.messages, n)
	out := make([]session.Message, len(window))
	copy(out, window)
	return out, nil
}

func (j *InMemoryJournal) StoreTask(ctx context.Context, t *task.Task) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	cp := *t
	j.tasks[t.ID] = &cp
	return nil
}

func (j *InMemoryJournal) Task(ctx context.Context, id string) (*task.Task, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	t, ok := j.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (j *InMemoryJournal) Preference(ctx context.Context, key string) (string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	v, ok := j.preferences[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (j *InMemoryJournal) SetPreference(ctx context.Context, key, value string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.preferences[key] = value
	return nil
}
