// Package agent defines TandemAI's fixed role registry: the supervisor
// and its five specialized workers, each with its own tool set,
// system prompt, and write/edit permission policy.
//
// # Roles
//
// The package provides six built-in roles:
//
//   - supervisor: plans, delegates, coordinates, verifies, synthesizes.
//     Has no research or data-gathering tools of its own.
//   - researcher: searches cached sources, extracts and verifies quotes.
//   - data_scientist: statistical analysis over researcher output.
//   - expert_analyst: deep interpretation; reads files, no web search.
//   - writer: produces text artifacts; writes via the HITL-gated tools.
//   - reviewer: read-only critique of produced artifacts.
//
// # Agent Modes
//
// Roles operate in one of three modes:
//
//   - ModePrimary: can be selected as the supervisor
//   - ModeSubagent: can only be invoked via delegation
//   - ModeAll: can operate in either context
//
// # Tool Access Control
//
// Each role has a Tools map that controls which tools are available,
// by exact name or wildcard pattern:
//
//	agent.Tools = map[string]bool{
//	    "search_cached":     true,
//	    "delegate_to_*":     false,
//	}
//
// [Agent.ToolEnabled] checks tool availability, supporting doublestar
// (**) patterns for complex matching. Unlike a permissive default, an
// unlisted tool is disabled — a role only gets what it is explicitly
// granted.
//
// # Permission System
//
// Roles define a write/edit policy through [AgentPermission]; the
// delete-class and sandbox-root carve-outs live in
// github.com/CuriosityQuantified/tandemai/internal/approval and cannot
// be overridden here.
//
// # Registry
//
// [Registry] manages role configurations with thread-safe operations
// and validates, at construction and after every config load, that the
// supervisor's resolved tool set never contains a forbidden research
// tool ([SupervisorForbidden]):
//
//	registry, err := agent.NewRegistry()
//	registry.Register(customAgent)
//	a, err := registry.Get(agent.RoleResearcher)
//	workers := registry.ListSubagents()
//
// # Custom Configuration
//
// Custom overrides load from github.com/CuriosityQuantified/tandemai/pkg/types.AgentConfig
// via [Registry.LoadFromConfig], which re-runs the tool-isolation check
// before returning.
package agent
