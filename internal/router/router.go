// Package router implements the delegation router (C4): a pure function
// that inspects the supervisor's latest assistant message and decides
// which graph node runs next.
package router

import (
	"fmt"
	"strings"

	"github.com/CuriosityQuantified/tandemai/internal/agent"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// Target identifies which node the orchestrator graph should enter next.
type Target int

const (
	// TargetWorker hands control to the named worker role.
	TargetWorker Target = iota
	// TargetSupervisorTools runs the supervisor's own local tools
	// (plan, file, approval) and returns control to the supervisor.
	TargetSupervisorTools
	// TargetTerminal ends the graph run; the supervisor's message is
	// the final user-facing reply.
	TargetTerminal
)

func (t Target) String() string {
	switch t {
	case TargetWorker:
		return "worker"
	case TargetSupervisorTools:
		return "supervisor_tools"
	case TargetTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Decision is the router's output for one supervisor step.
type Decision struct {
	Target     Target
	WorkerRole string
	Reason     string
}

// delegatePrefix names the per-role delegation tools, e.g.
// "delegate_to_researcher".
const delegatePrefix = "delegate_to_"

// DelegateToolName returns the delegation tool name for a worker role.
func DelegateToolName(role string) string {
	return delegatePrefix + role
}

// supervisorLocalTools are the plan/file/approval tools the supervisor
// may call directly without delegating to a worker.
var supervisorLocalTools = map[string]bool{
	"create_research_plan": true,
	"read_current_plan":    true,
	"update_plan_progress": true,
	"edit_plan":            true,
	"read_file":            true,
	"write_file":           true,
	"edit_file":            true,
	"glob":                 true,
	"grep":                 true,
	"list":                 true,
	"batch":                true,
}

// Router validates, at construction time, that no worker's tool set
// overlaps the supervisor's forbidden set, and that the supervisor
// carries exactly one delegation tool per registered worker role.
type Router struct {
	registry *agent.Registry
}

// New builds a Router bound to registry, failing fast if the
// tool-isolation or delegation-coverage invariants don't hold.
func New(registry *agent.Registry) (*Router, error) {
	if registry == nil {
		return nil, fmt.Errorf("router: nil agent registry")
	}
	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	supervisor, err := registry.Get(agent.RoleSupervisor)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	for _, name := range registry.Names() {
		if name == agent.RoleSupervisor {
			continue
		}
		worker, err := registry.Get(name)
		if err != nil {
			return nil, fmt.Errorf("router: %w", err)
		}
		for toolID, enabled := range worker.Tools {
			if enabled && agent.SupervisorForbidden(toolID) && supervisor.Tools[toolID] {
				return nil, fmt.Errorf("router: supervisor tool set overlaps forbidden research tool %q bound to worker %q", toolID, name)
			}
		}

		toolName := DelegateToolName(name)
		if !supervisor.Tools[toolName] {
			return nil, fmt.Errorf("router: supervisor is missing delegation tool %q for registered worker role %q", toolName, name)
		}
	}

	return &Router{registry: registry}, nil
}

// Route inspects the tool-call parts of the supervisor's latest
// assistant message and returns exactly one of {TargetWorker,
// TargetSupervisorTools, TargetTerminal}. Only the first recognized
// tool call is consulted: per §4.4, exactly one worker may be selected
// per supervisor step.
func (r *Router) Route(msg *types.Message, parts []types.Part) Decision {
	if msg == nil {
		return Decision{Target: TargetTerminal, Reason: "no message to route"}
	}

	for _, part := range parts {
		toolPart, ok := part.(*types.ToolPart)
		if !ok {
			continue
		}

		if role, isDelegate := strings.CutPrefix(toolPart.ToolName, delegatePrefix); isDelegate {
			if _, err := r.registry.Get(role); err == nil {
				return Decision{
					Target:     TargetWorker,
					WorkerRole: role,
					Reason:     fmt.Sprintf("delegated via %s", toolPart.ToolName),
				}
			}
		}

		if supervisorLocalTools[toolPart.ToolName] {
			return Decision{
				Target: TargetSupervisorTools,
				Reason: fmt.Sprintf("supervisor-local tool call %s", toolPart.ToolName),
			}
		}
	}

	return Decision{Target: TargetTerminal, Reason: "no further tool calls in supervisor message"}
}
