// Package agent defines the role registry: the frozen, per-role set of
// tools and permissions each worker (and the supervisor) receives when
// the orchestrator graph is constructed.
package agent

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/CuriosityQuantified/tandemai/internal/approval"
)

// Agent represents a worker or supervisor role configuration.
type Agent struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Mode        Mode            `json:"mode"`
	BuiltIn     bool            `json:"builtIn"`
	Permission  AgentPermission `json:"permission"`
	Tools       map[string]bool `json:"tools"`
	Options     map[string]any  `json:"options,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	TopP        float64         `json:"topP,omitempty"`
	Model       *ModelRef       `json:"model,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	Color       string          `json:"color,omitempty"`
}

// Mode represents the agent operation mode.
type Mode string

const (
	ModePrimary  Mode = "primary"
	ModeSubagent Mode = "subagent"
	ModeAll      Mode = "all"
)

// ModelRef references a specific model.
type ModelRef struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// PermissionKind identifies which approval policy GetPermission looks up.
type PermissionKind string

const (
	PermWrite PermissionKind = "write"
	PermEdit  PermissionKind = "edit"
)

// AgentPermission defines a role's default policy for file-mutating
// tool calls. There is no bash-specific or external-directory field:
// TandemAI has no bash tool, and every write/edit already routes
// through approval.Gate, which enforces the sandbox-root and
// delete-class carve-outs regardless of this policy.
type AgentPermission struct {
	Write approval.Action `json:"write,omitempty"`
	Edit  approval.Action `json:"edit,omitempty"`
}

// ToolEnabled checks if a tool is enabled for this agent.
func (a *Agent) ToolEnabled(toolID string) bool {
	if enabled, ok := a.Tools[toolID]; ok {
		return enabled
	}
	for pattern, enabled := range a.Tools {
		if matchWildcard(pattern, toolID) {
			return enabled
		}
	}
	return false
}

// GetPermission returns the configured approval.Action for a kind,
// defaulting to Ask when unset.
func (a *Agent) GetPermission(kind PermissionKind) approval.Action {
	switch kind {
	case PermWrite:
		if a.Permission.Write != "" {
			return a.Permission.Write
		}
	case PermEdit:
		if a.Permission.Edit != "" {
			return a.Permission.Edit
		}
	}
	return approval.Ask
}

// IsPrimary returns true if the agent can be used as a primary (i.e.
// supervisor) agent.
func (a *Agent) IsPrimary() bool {
	return a.Mode == ModePrimary || a.Mode == ModeAll
}

// IsSubagent returns true if the agent can be used as a delegated
// worker.
func (a *Agent) IsSubagent() bool {
	return a.Mode == ModeSubagent || a.Mode == ModeAll
}

// Clone creates a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	clone := &Agent{
		Name:        a.Name,
		Description: a.Description,
		Mode:        a.Mode,
		BuiltIn:     a.BuiltIn,
		Temperature: a.Temperature,
		TopP:        a.TopP,
		Prompt:      a.Prompt,
		Color:       a.Color,
		Permission:  a.Permission,
	}

	if a.Tools != nil {
		clone.Tools = make(map[string]bool, len(a.Tools))
		for k, v := range a.Tools {
			clone.Tools[k] = v
		}
	}

	if a.Options != nil {
		clone.Options = make(map[string]any, len(a.Options))
		for k, v := range a.Options {
			clone.Options[k] = v
		}
	}

	if a.Model != nil {
		clone.Model = &ModelRef{
			ProviderID: a.Model.ProviderID,
			ModelID:    a.Model.ModelID,
		}
	}

	return clone
}

// matchWildcard checks if a string matches a wildcard pattern.
// For simple patterns (* at start/end), uses string matching.
// For complex patterns (containing **), uses doublestar.
func matchWildcard(pattern, s string) bool {
	if pattern == "*" {
		return true
	}

	if strings.Contains(pattern, "**") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}

	if strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(s, prefix)
	}

	if strings.HasPrefix(pattern, "*") && !strings.HasSuffix(pattern, "*") {
		suffix := strings.TrimPrefix(pattern, "*")
		return strings.HasSuffix(s, suffix)
	}

	if strings.Contains(pattern, "*") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}

	return pattern == s
}

// Role names the fixed worker/supervisor roles TandemAI ships.
const (
	RoleSupervisor     = "supervisor"
	RoleResearcher     = "researcher"
	RoleDataScientist  = "data_scientist"
	RoleExpertAnalyst  = "expert_analyst"
	RoleWriter         = "writer"
	RoleReviewer       = "reviewer"
)

// supervisorForbiddenTools is the set of tool names that must never
// appear in the supervisor's resolved tool set. Registry validates this
// at construction time.
var supervisorForbiddenTools = map[string]bool{
	"search_cached":     true,
	"get_cached_source": true,
	"verify_citations":  true,
}

// BuiltInAgents returns the fixed role registry: the supervisor plus
// its five specialized workers.
func BuiltInAgents() map[string]*Agent {
	planTools := map[string]bool{
		"read_current_plan":   true,
		"update_plan_progress": true,
	}
	readOnlyFileTools := map[string]bool{
		"read_file": true,
		"glob":      true,
		"grep":      true,
		"list":      true,
	}

	return map[string]*Agent{
		RoleSupervisor: {
			Name:        RoleSupervisor,
			Description: "Plans, delegates to workers, coordinates, verifies, and synthesizes the final artifact. Has no research or data-gathering tools of its own.",
			Mode:        ModePrimary,
			BuiltIn:     true,
			Permission: AgentPermission{
				Write: approval.Ask,
				Edit:  approval.Ask,
			},
			Tools: map[string]bool{
				"delegate_to_researcher":      true,
				"delegate_to_data_scientist":  true,
				"delegate_to_expert_analyst":  true,
				"delegate_to_writer":          true,
				"delegate_to_reviewer":        true,
				"create_research_plan":        true,
				"read_current_plan":           true,
				"update_plan_progress":        true,
				"edit_plan":                   true,
				"read_file":                    true,
				"write_file":                   true,
				"edit_file":                    true,
				"search_cached":               false,
				"get_cached_source":           false,
				"verify_citations":            false,
			},
		},
		RoleResearcher: {
			Name:        RoleResearcher,
			Description: "Plans research steps, searches cached sources, extracts and verifies quotes, and updates plan progress. Never replies until all plan steps are completed.",
			Mode:        ModeSubagent,
			BuiltIn:     true,
			Permission: AgentPermission{
				Write: approval.Deny,
				Edit:  approval.Deny,
			},
			Tools: merge(planTools, readOnlyFileTools, map[string]bool{
				"search_cached":      true,
				"get_cached_source":  true,
				"verify_citations":   true,
			}),
		},
		RoleDataScientist: {
			Name:        RoleDataScientist,
			Description: "Performs statistical analysis over data the researcher produced. No web search; no writes outside the workspace.",
			Mode:        ModeSubagent,
			BuiltIn:     true,
			Permission: AgentPermission{
				Write: approval.Ask,
				Edit:  approval.Deny,
			},
			Tools: merge(planTools, readOnlyFileTools, map[string]bool{
				"write_file": true,
			}),
		},
		RoleExpertAnalyst: {
			Name:        RoleExpertAnalyst,
			Description: "Deep interpretation of gathered material. Reads files; no web search.",
			Mode:        ModeSubagent,
			BuiltIn:     true,
			Permission: AgentPermission{
				Write: approval.Deny,
				Edit:  approval.Deny,
			},
			Tools: merge(planTools, readOnlyFileTools),
		},
		RoleWriter: {
			Name:        RoleWriter,
			Description: "Produces text artifacts from worker output. Reads files and writes via the HITL-gated write/edit tools.",
			Mode:        ModeSubagent,
			BuiltIn:     true,
			Permission: AgentPermission{
				Write: approval.Ask,
				Edit:  approval.Ask,
			},
			Tools: merge(planTools, readOnlyFileTools, map[string]bool{
				"write_file": true,
				"edit_file":  true,
			}),
		},
		RoleReviewer: {
			Name:        RoleReviewer,
			Description: "Read-only critique of produced artifacts. Never writes or edits.",
			Mode:        ModeSubagent,
			BuiltIn:     true,
			Permission: AgentPermission{
				Write: approval.Deny,
				Edit:  approval.Deny,
			},
			Tools: merge(readOnlyFileTools, map[string]bool{
				"read_current_plan": true,
			}),
		},
	}
}

// SupervisorForbidden reports whether toolName must never be bound to
// the supervisor role.
func SupervisorForbidden(toolName string) bool {
	return supervisorForbiddenTools[toolName]
}

func merge(maps ...map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
