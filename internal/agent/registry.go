package agent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/CuriosityQuantified/tandemai/internal/approval"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// Registry manages agent (role) configurations.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewRegistry creates a new agent registry seeded with the built-in
// role set and validates the supervisor/worker tool-isolation
// invariant immediately.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		agents: make(map[string]*Agent),
	}

	for name, agent := range BuiltInAgents() {
		r.agents[name] = agent
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// Validate checks that no role bound as (or overridden into) the
// supervisor carries a forbidden research tool. It is re-run after
// LoadFromConfig so user overrides cannot silently reintroduce the
// violation it exists to prevent.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	supervisor, ok := r.agents[RoleSupervisor]
	if !ok {
		return fmt.Errorf("agent registry: no %q role registered", RoleSupervisor)
	}
	for toolName, enabled := range supervisor.Tools {
		if enabled && SupervisorForbidden(toolName) {
			return fmt.Errorf("agent registry: supervisor tool set must not contain %q", toolName)
		}
	}
	return nil
}

// Get retrieves an agent by name.
func (r *Registry) Get(name string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("agent not found: %s", name)
	}

	return agent, nil
}

// Register adds or updates an agent.
func (r *Registry) Register(agent *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.Name] = agent
}

// Unregister removes an agent by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, name)
}

// List returns all registered agents.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]*Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		agents = append(agents, agent)
	}
	return agents
}

// ListPrimary returns agents with primary mode.
func (r *Registry) ListPrimary() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var agents []*Agent
	for _, agent := range r.agents {
		if agent.IsPrimary() {
			agents = append(agents, agent)
		}
	}
	return agents
}

// ListSubagents returns agents with subagent mode.
func (r *Registry) ListSubagents() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var agents []*Agent
	for _, agent := range r.agents {
		if agent.IsSubagent() {
			agents = append(agents, agent)
		}
	}
	return agents
}

// Names returns all agent names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	return names
}

// Exists checks if an agent exists.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// LoadFromConfig applies user configuration overrides on top of the
// built-in role set, then re-validates the tool-isolation invariant so
// a misconfigured override surfaces as the same startup error a
// mis-coded built-in would.
func (r *Registry) LoadFromConfig(config map[string]types.AgentConfig) error {
	r.mu.Lock()
	for name, cfg := range config {
		agent, exists := r.agents[name]
		if !exists {
			agent = &Agent{
				Name:    name,
				Mode:    ModeSubagent,
				BuiltIn: false,
				Tools:   make(map[string]bool),
			}
		} else {
			agent = agent.Clone()
			agent.BuiltIn = false
		}

		if cfg.Description != "" {
			agent.Description = cfg.Description
		}
		if cfg.Mode != "" {
			agent.Mode = Mode(cfg.Mode)
		}
		if cfg.Prompt != "" {
			agent.Prompt = cfg.Prompt
		}
		if cfg.Model != "" {
			if providerID, modelID, ok := strings.Cut(cfg.Model, "/"); ok {
				agent.Model = &ModelRef{ProviderID: providerID, ModelID: modelID}
			}
		}
		if cfg.Temperature != nil {
			agent.Temperature = *cfg.Temperature
		}
		if cfg.TopP != nil {
			agent.TopP = *cfg.TopP
		}
		if cfg.Tools != nil {
			if agent.Tools == nil {
				agent.Tools = make(map[string]bool)
			}
			for k, v := range cfg.Tools {
				agent.Tools[k] = v
			}
		}
		if cfg.Permission != nil {
			if cfg.Permission.Write != "" {
				agent.Permission.Write = approval.Action(cfg.Permission.Write)
			}
			if cfg.Permission.Edit != "" {
				agent.Permission.Edit = approval.Action(cfg.Permission.Edit)
			}
		}

		r.agents[name] = agent
	}
	r.mu.Unlock()

	return r.Validate()
}
