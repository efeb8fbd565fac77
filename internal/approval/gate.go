// Package approval is the human-in-the-loop gate on file-mutating tool
// calls (write_file, edit_file, delete_file). It generalizes the
// allow/deny/ask session model of a simpler permission checker with an
// explicit four-state lifecycle — pending, approved, rejected, expired
// — and a TTL timer per request so a gate nobody answers does not hang
// a run forever.
package approval

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/CuriosityQuantified/tandemai/internal/event"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// Action is the configured policy for a request before the sandbox and
// delete-class carve-outs are applied.
type Action string

const (
	Allow Action = "allow"
	Deny  Action = "deny"
	Ask   Action = "ask"
)

// DefaultTTL is used when an ApprovalRequest does not specify one.
const DefaultTTL = 5 * time.Minute

// ErrRejected is returned by RequestApproval when the request resolves
// to rejected or expired instead of approved.
type ErrRejected struct {
	ID     string
	Status types.ApprovalStatus
}

func (e *ErrRejected) Error() string {
	return fmt.Sprintf("approval %s: %s", e.ID, e.Status)
}

type pendingRequest struct {
	req      types.ApprovalRequest
	response chan types.ApprovalStatus
	timer    *time.Timer
}

// Gate tracks outstanding approval requests for a set of sessions and
// resolves them either by explicit Respond, TTL expiry, or the
// auto-approve fast path.
type Gate struct {
	mu          sync.Mutex
	pending     map[string]*pendingRequest
	resolved    map[string]types.ApprovalStatus
	sandboxRoot string
}

// NewGate creates a Gate. sandboxRoot is the directory tree that
// auto_approve is allowed to touch; requests whose TargetPath resolves
// outside it always fall back to ask, regardless of configured action.
func NewGate(sandboxRoot string) *Gate {
	return &Gate{
		pending:     make(map[string]*pendingRequest),
		resolved:    make(map[string]types.ApprovalStatus),
		sandboxRoot: sandboxRoot,
	}
}

// autoApproveEligible reports whether req is allowed to take the
// auto_approve fast path at all. Delete-kind requests are never
// eligible. Requests outside the sandbox root are never eligible. This
// check runs before the configured Action is even consulted, so no
// configuration can re-enable it.
func (g *Gate) autoApproveEligible(req types.ApprovalRequest) bool {
	if req.Kind == types.ApprovalDeleteFile {
		return false
	}
	return g.withinSandbox(req.TargetPath)
}

func (g *Gate) withinSandbox(path string) bool {
	if g.sandboxRoot == "" {
		return true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	root, err := filepath.Abs(g.sandboxRoot)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// RequestApproval resolves req against configured, the policy action
// for req's session+kind. When req is not auto_approve-eligible,
// configured is forced to Ask regardless of its value.
func (g *Gate) RequestApproval(ctx context.Context, req types.ApprovalRequest, configured Action) (types.ApprovalStatus, error) {
	if !g.autoApproveEligible(req) {
		configured = Ask
	}

	switch configured {
	case Deny:
		return types.ApprovalRejected, &ErrRejected{ID: req.ID, Status: types.ApprovalRejected}
	case Allow:
		return types.ApprovalApproved, nil
	default:
		return g.ask(ctx, req)
	}
}

func (g *Gate) ask(ctx context.Context, req types.ApprovalRequest) (types.ApprovalStatus, error) {
	if req.ID == "" {
		req.ID = ulid.Make().String()
	}
	if req.CreatedAt == 0 {
		req.CreatedAt = time.Now().Unix()
	}
	ttl := DefaultTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	} else {
		req.TTLSeconds = int(DefaultTTL.Seconds())
	}
	req.Status = types.ApprovalPending

	pr := &pendingRequest{
		req:      req,
		response: make(chan types.ApprovalStatus, 1),
	}
	pr.timer = time.AfterFunc(ttl, func() { g.expire(req.ID) })

	g.mu.Lock()
	g.pending[req.ID] = pr
	g.mu.Unlock()

	event.Publish(event.Event{
		Type: event.ApprovalRequest,
		Data: event.ApprovalRequestData{Request: req},
	})

	select {
	case status := <-pr.response:
		if status != types.ApprovalApproved {
			return status, &ErrRejected{ID: req.ID, Status: status}
		}
		return status, nil
	case <-ctx.Done():
		g.resolve(req.ID, types.ApprovalExpired)
		return types.ApprovalExpired, ctx.Err()
	}
}

// Respond answers a pending request. It is a no-op if the request is
// not pending (already resolved or expired).
func (g *Gate) Respond(id string, approved bool) {
	status := types.ApprovalRejected
	if approved {
		status = types.ApprovalApproved
	}
	g.resolve(id, status)
}

func (g *Gate) expire(id string) {
	g.resolve(id, types.ApprovalExpired)
}

func (g *Gate) resolve(id string, status types.ApprovalStatus) {
	g.mu.Lock()
	pr, ok := g.pending[id]
	if ok {
		delete(g.pending, id)
		g.resolved[id] = status
	}
	g.mu.Unlock()
	if !ok {
		return
	}
	pr.timer.Stop()
	pr.response <- status

	event.Publish(event.Event{
		Type: event.ApprovalResolved,
		Data: event.ApprovalResolvedData{ID: id, SessionID: pr.req.SessionID, Status: status},
	})
}

// Pending returns the still-open request for id, if any.
func (g *Gate) Pending(id string) (types.ApprovalRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pr, ok := g.pending[id]
	if !ok {
		return types.ApprovalRequest{}, false
	}
	return pr.req, true
}

// LastStatus reports how id resolved, for callers that only learn about
// a request after the fact (an HTTP handler answering a decision that
// raced the TTL). It distinguishes three outcomes the caller cannot
// tell apart from Pending alone: never existed, resolved (approved or
// rejected by Respond), or expired (TTL fired with no Respond).
func (g *Gate) LastStatus(id string) (types.ApprovalStatus, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.resolved[id]
	return status, ok
}

// PendingForSession returns the IDs of every still-open request for
// sessionID, for checkpointing a graph node's outstanding approvals.
func (g *Gate) PendingForSession(sessionID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []string
	for id, pr := range g.pending {
		if pr.req.SessionID == sessionID {
			ids = append(ids, id)
		}
	}
	return ids
}

// ClearSession cancels and expires every pending request for a session,
// used when a session is torn down with outstanding gates.
func (g *Gate) ClearSession(sessionID string) {
	g.mu.Lock()
	var ids []string
	for id, pr := range g.pending {
		if pr.req.SessionID == sessionID {
			ids = append(ids, id)
		}
	}
	g.mu.Unlock()
	for _, id := range ids {
		g.expire(id)
	}
}
