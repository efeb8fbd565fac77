package orchestrator

import (
	"context"

	"github.com/CuriosityQuantified/tandemai/internal/logging"
	"github.com/CuriosityQuantified/tandemai/internal/router"
	"github.com/CuriosityQuantified/tandemai/internal/tool"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// GraphState is the checkpointed state of one session's position in the
// orchestrator graph (§4.6/§6.6): {supervisor, <workers>, supervisor_tools, end}.
// The interpreter itself is the recursive runLoop/ExecuteWorker call
// chain; GraphState is the durable record of where that chain last
// crossed a node boundary, so a crashed or disconnected run can report
// (and eventually resume from) its last checkpoint rather than silently
// losing progress.
type GraphState struct {
	SessionID       string           `json:"sessionID"`
	Messages        int              `json:"messages"` // transcript length at checkpoint time
	Plan            *types.Plan      `json:"plan,omitempty"`
	ActiveWorker    string           `json:"activeWorker,omitempty"`
	RoutingReason   string           `json:"routingReason,omitempty"`
	ToolsInContext  []string         `json:"toolsInContext,omitempty"`
	PendingApprovals []string        `json:"pendingApprovals,omitempty"`
}

func checkpointPath(sessionID string) []string {
	return []string{"checkpoint", sessionID}
}

// checkpoint persists state via p.sessions' underlying storage. Node
// boundaries are: after a model step resolves into a Decision (about to
// enter a worker, the supervisor's own tools, or terminate) and after a
// delegated worker returns control to its caller.
func (p *Processor) checkpoint(ctx context.Context, state GraphState) error {
	return p.sessions.storage.Put(ctx, checkpointPath(state.SessionID), state)
}

// loadCheckpoint returns the last checkpointed state for a session, or
// the storage error (storage.ErrNotFound) if the session was never
// checkpointed (e.g. it never got past its first model call).
func (p *Processor) loadCheckpoint(ctx context.Context, sessionID string) (*GraphState, error) {
	var state GraphState
	if err := p.sessions.storage.Get(ctx, checkpointPath(sessionID), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// checkpointStep records one node transition: the plan as it stands,
// which worker (if any) the router just selected, and any approvals
// still outstanding. Failures are logged, not fatal — a missed
// checkpoint never blocks the run itself, only a would-be resume.
func (p *Processor) checkpointStep(ctx context.Context, sess *types.Session, role string, decision router.Decision) {
	messages, err := p.sessions.GetMessages(ctx, sess.ID)
	if err != nil {
		logging.Debug().Str("session", sess.ID).Err(err).Msg("checkpoint: load messages failed")
		return
	}

	plan, err := tool.LoadPlan(ctx, p.tools.Storage(), sess.ID)
	if err != nil {
		plan = nil
	}

	state := GraphState{
		SessionID:        sess.ID,
		Messages:         len(messages),
		Plan:             plan,
		ActiveWorker:     decision.WorkerRole,
		RoutingReason:    decision.Reason,
		PendingApprovals: p.gate.PendingForSession(sess.ID),
	}
	if decision.Target != router.TargetWorker {
		state.ActiveWorker = role
	}

	if err := p.checkpoint(ctx, state); err != nil {
		logging.Debug().Str("session", sess.ID).Err(err).Msg("checkpoint: save failed")
	}
}
