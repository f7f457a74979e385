package agent

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/memory"
	"github.com/m4xw311/aide/task"
)

// Registry holds the configured agents and dispatches tasks to them.
type Registry struct {
	mu       sync.RWMutex
	agents   map[string]*Agent // by role
	defaults map[string]string // task type to fallback role
	engine   *Engine
	journal  memory.Journal
	log      *logrus.Entry
}

func NewRegistry(engine *Engine, journal memory.Journal, log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		agents:   make(map[string]*Agent),
		defaults: make(map[string]string),
		engine:   engine,
		journal:  journal,
		log:      log.WithField("component", "agents"),
	}
}

// Register adds an agent under its role. The first agent registered for a
// task type becomes that type's fallback.
func (r *Registry) Register(agent *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.Role] = agent
	if agent.Type != "" {
		if _, ok := r.defaults[agent.Type]; !ok {
			r.defaults[agent.Type] = agent.Role
		}
	}
}

// Get returns the agent registered under a role.
func (r *Registry) Get(role string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[role]
	return agent, ok
}

// Roles returns the registered roles, sorted.
func (r *Registry) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roles := make([]string, 0, len(r.agents))
	for role := range r.agents {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// FindAgentForTask picks an agent for the task. The router's suggested
// agent wins when registered; otherwise the task type's fallback agent,
// then any agent at all. Only an empty registry fails.
func (r *Registry) FindAgentForTask(t *task.Task) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if suggested, ok := t.Metadata["suggested_agent"].(string); ok && suggested != "" {
		if agent, ok := r.agents[suggested]; ok {
			return agent, nil
		}
	}
	if role, ok := r.defaults[string(t.Type)]; ok {
		return r.agents[role], nil
	}
	if roles := r.sortedRolesLocked(); len(roles) > 0 {
		return r.agents[roles[0]], nil
	}
	return nil, errors.Newk(errors.KindConfiguration, "no agents registered")
}

func (r *Registry) sortedRolesLocked() []string {
	roles := make([]string, 0, len(r.agents))
	for role := range r.agents {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// ExecuteTask finds an agent for the task and runs it to a terminal state.
// Execution is serialized per agent.
func (r *Registry) ExecuteTask(ctx context.Context, t *task.Task) error {
	agent, err := r.FindAgentForTask(t)
	if err != nil {
		t.Fail(err.Error())
		return err
	}

	agent.runMu.Lock()
	defer agent.runMu.Unlock()

	t.MarkInProgress(agent.ID)
	r.storeTask(ctx, t)

	r.log.WithFields(logrus.Fields{
		"task_id": t.ID,
		"agent":   agent.ID,
		"role":    agent.Role,
	}).Info("Dispatching task")

	execErr := r.engine.Execute(ctx, agent, t)
	r.storeTask(ctx, t)
	return execErr
}

func (r *Registry) storeTask(ctx context.Context, t *task.Task) {
	if r.journal == nil {
		return
	}
	if err := r.journal.StoreTask(ctx, t); err != nil {
		r.log.WithError(err).Warn("Failed to journal task")
	}
}
