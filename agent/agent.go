package agent

import (
	"sync"

	"github.com/m4xw311/aide/session"
	"github.com/m4xw311/aide/tools"
)

// Agent is one configured worker: a role, a system prompt, a model id and
// the tools it may call. Capabilities are a flat set; an agent either has a
// tool or it does not.
type Agent struct {
	ID           string
	Role         string
	Type         string // "work", "personal" or "" for either
	SystemPrompt string
	Model        string
	Tools        *tools.Registry

	// runMu serializes task execution so two tasks never interleave on one
	// agent's conversation.
	runMu sync.Mutex

	mu      sync.Mutex
	history []session.Message
	active  bool
}

// New creates an idle agent.
func New(id, role, typ, systemPrompt, model string, registry *tools.Registry) *Agent {
	return &Agent{
		ID:           id,
		Role:         role,
		Type:         typ,
		SystemPrompt: systemPrompt,
		Model:        model,
		Tools:        registry,
	}
}

// History returns a copy of the agent's conversation history.
func (a *Agent) History() []session.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]session.Message, len(a.history))
	copy(out, a.history)
	return out
}

func (a *Agent) appendHistory(msgs ...session.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, msgs...)
}

// Active reports whether the agent is currently executing a task.
func (a *Agent) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func (a *Agent) setActive(active bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = active
}
