package orchestrator

import (
	"context"
	"strings"

	"github.com/CuriosityQuantified/tandemai/internal/agent"
	"github.com/CuriosityQuantified/tandemai/internal/tool"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// gateTracker enforces the completion-gate invariant (§4.3) for a
// worker, and the supervisor's own delegation-before-reply contract
// (§4.5), across one runLoop invocation.
type gateTracker struct {
	role string

	// Worker-side tracking.
	sawReadPlan  bool
	planComplete bool
	dirty        bool // a plan-mutating call happened since the last read

	// Supervisor-side tracking.
	sawDelegation bool
}

func newGateTracker(role string) *gateTracker {
	return &gateTracker{role: role}
}

// observe updates the tracker from one executed tool call.
func (g *gateTracker) observe(tp *types.ToolPart) {
	switch tp.ToolName {
	case "read_current_plan":
		if tp.State == "completed" && tp.Metadata != nil {
			if v, ok := tp.Metadata["allStepsCompleted"].(bool); ok {
				g.sawReadPlan = true
				g.planComplete = v
				g.dirty = false
			}
		}
	case "create_research_plan", "update_plan_progress", "edit_plan":
		g.dirty = true
	}
	if strings.HasPrefix(tp.ToolName, "delegate_to_") {
		g.sawDelegation = true
	}
}

// violation returns a human-readable nudge if terminal-reply rules
// would be violated right now, or "" if the reply may proceed.
func (g *gateTracker) violation(ctx context.Context, p *Processor, sessionID string) string {
	if g.role == agent.RoleSupervisor {
		return g.supervisorViolation(ctx, p, sessionID)
	}

	if !g.sawReadPlan {
		return "You must call read_current_plan and confirm allStepsCompleted before replying."
	}
	if g.dirty {
		return "The plan changed since your last read_current_plan call. Call it again and confirm allStepsCompleted before replying."
	}
	if !g.planComplete {
		return "read_current_plan reported allStepsCompleted=false. Keep executing plan steps before replying."
	}
	return ""
}

func (g *gateTracker) supervisorViolation(ctx context.Context, p *Processor, sessionID string) string {
	plan, err := tool.LoadPlan(ctx, p.tools.Storage(), sessionID)
	if err != nil || plan == nil {
		return ""
	}
	if !plan.AllTerminal() {
		return "The research plan still has pending or in-progress steps. Delegate them before replying."
	}
	if len(plan.Steps) > 0 && !g.sawDelegation {
		return "A plan exists but no delegate_to_<role> call has been issued this run. Delegate the work before replying."
	}
	return ""
}
